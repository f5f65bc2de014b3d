package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/identity"
	"github.com/artisansflow/portal/internal/identity/identitytest"
	"github.com/artisansflow/portal/internal/repository/repositorytest"
	"github.com/artisansflow/portal/internal/session"
)

type fixture struct {
	backend  *identitytest.Backend
	client   *identity.Client
	profiles *repositorytest.Profiles
	cache    *repositorytest.RoleCache
	resolver *session.Resolver
}

func newFixture(t *testing.T, metadata map[string]any, rows ...domain.Profile) *fixture {
	t.Helper()
	backend := identitytest.NewBackend()
	backend.AddUser("u1", "jane@example.com", "pw", metadata)
	backend.AddUser("u2", "omar@example.com", "pw", map[string]any{"role": "VIP"})

	f := &fixture{
		backend:  backend,
		client:   identity.NewClient(backend, backend.Session("jane@example.com")),
		profiles: repositorytest.NewProfiles(rows...),
		cache:    repositorytest.NewRoleCache(),
	}
	f.resolver = session.NewResolver(f.client, f.profiles, f.cache, zap.NewNop())
	t.Cleanup(f.resolver.Close)
	return f
}

func (f *fixture) settle(t *testing.T) session.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := f.resolver.Wait(ctx)
	require.NoError(t, err)
	return state
}

func TestResolverCreatesMissingProfileFromMetadata(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "PRO", "full_name": "Jane Doe", "company": "Doe Electric"})

	f.resolver.Start(context.Background())
	state := f.settle(t)

	assert.Equal(t, session.PhaseResolved, state.Phase)
	assert.Equal(t, domain.RolePro, state.Role)
	row, ok := f.profiles.Row("u1")
	require.True(t, ok)
	assert.Equal(t, domain.RolePro, row.Role)
	assert.Equal(t, "Jane Doe", row.FullName)
	assert.Equal(t, "Doe Electric", row.Company)

	// a later page load reads the stored profile
	next := session.NewResolver(f.client, f.profiles, f.cache, zap.NewNop())
	t.Cleanup(next.Close)
	next.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	again, err := next.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.RolePro, again.Role)
	assert.Equal(t, 1, f.profiles.Ensures())

	f.resolver.Close()
	assert.Zero(t, f.backend.UpdateCount())
}

func TestResolverProfileWinsAndHealsMetadata(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "PRO"}, domain.Profile{ID: "u1", Role: domain.RoleAdmin})

	f.resolver.Start(context.Background())
	state := f.settle(t)

	assert.Equal(t, domain.RoleAdmin, state.Role)
	f.resolver.Close()

	require.Equal(t, 1, f.backend.UpdateCount())
	assert.Equal(t, "ADMIN", f.backend.LastUpdate()["role"])
	assert.Equal(t, "ADMIN", f.client.CurrentSession().User.RawRole())
}

func TestResolverHealFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "basic"}, domain.Profile{ID: "u1", Role: domain.RoleUltimate})
	f.backend.UpdateErr = errors.New("provider down")

	f.resolver.Start(context.Background())
	state := f.settle(t)
	f.resolver.Close()

	assert.Equal(t, domain.RoleUltimate, state.Role)
	assert.Equal(t, 1, f.backend.UpdateCount())
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "ULTIMATE"})
	held := f.client.CurrentSession()

	first := f.resolver.Resolve(context.Background(), held)
	second := f.resolver.Resolve(context.Background(), held)

	assert.Equal(t, domain.RoleUltimate, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.profiles.Ensures())
}

func TestResolveRoundTripsCreatedProfile(t *testing.T) {
	for _, role := range domain.RoleOrder() {
		t.Run(string(role), func(t *testing.T) {
			f := newFixture(t, map[string]any{"role": string(role)})
			held := f.client.CurrentSession()

			created := f.resolver.Resolve(context.Background(), held)
			row, ok := f.profiles.Row("u1")
			require.True(t, ok)

			assert.Equal(t, role, created)
			assert.Equal(t, role, row.Role)
			assert.Equal(t, role, f.resolver.Resolve(context.Background(), held))
		})
	}
}

func TestResolverDegradesWhenProfileCreateFails(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "PRO"})
	f.profiles.EnsureErr = errors.New("insert failed")

	f.resolver.Start(context.Background())
	state := f.settle(t)

	assert.Equal(t, session.PhaseResolved, state.Phase)
	assert.Equal(t, domain.RolePro, state.Role)
	assert.Nil(t, state.Profile)
	_, stored := f.profiles.Row("u1")
	assert.False(t, stored)
}

func TestResolverReadFailureSkipsWrite(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "VIP"})
	f.profiles.GetErr = errors.New("connection reset")

	f.resolver.Start(context.Background())
	state := f.settle(t)

	assert.Equal(t, domain.RoleVIP, state.Role)
	assert.Zero(t, f.profiles.Ensures())
}

func TestResolverAnonymousWithoutSession(t *testing.T) {
	backend := identitytest.NewBackend()
	client := identity.NewClient(backend, nil)
	resolver := session.NewResolver(client, repositorytest.NewProfiles(), nil, zap.NewNop())
	defer resolver.Close()

	assert.Equal(t, session.PhaseUnresolved, resolver.Snapshot().Phase)
	resolver.Start(context.Background())

	state := resolver.Snapshot()
	assert.Equal(t, session.PhaseAnonymous, state.Phase)
	assert.False(t, state.HasSession())
}

func TestResolverSignOutIsSynchronous(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "ADMIN"}, domain.Profile{ID: "u1", Role: domain.RoleAdmin})
	f.resolver.Start(context.Background())
	f.settle(t)

	require.NoError(t, f.client.SignOut(context.Background()))

	state := f.resolver.Snapshot()
	assert.Equal(t, session.PhaseAnonymous, state.Phase)
	assert.Empty(t, state.Role)
	assert.Nil(t, state.Session)
}

func TestResolverDiscardsSupersededResolution(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "ADMIN"},
		domain.Profile{ID: "u1", Role: domain.RoleAdmin},
		domain.Profile{ID: "u2", Role: domain.RoleVIP},
	)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.profiles.BeforeGet = func(ctx context.Context, id string) {
		if id != "u1" {
			return
		}
		entered <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	f.resolver.Start(context.Background())
	<-entered
	first := f.resolver.Snapshot()
	assert.Equal(t, session.PhaseResolving, first.Phase)

	_, err := f.client.SignInWithPassword(context.Background(), "omar@example.com", "pw")
	require.NoError(t, err)
	state := f.settle(t)
	close(release)
	f.resolver.Close()

	assert.Equal(t, "u2", state.UserID())
	assert.Equal(t, domain.RoleVIP, state.Role)
	assert.Greater(t, state.Generation, first.Generation)

	final := f.resolver.Snapshot()
	assert.Equal(t, "u2", final.UserID())
	assert.Equal(t, domain.RoleVIP, final.Role)
}

func TestResolverSlowCacheWriteCannotOverwriteNewerRole(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "ADMIN"}, domain.Profile{ID: "u1", Role: domain.RoleAdmin})

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.cache.BeforePut = func(ctx context.Context, _ string, role domain.Role) {
		if role != domain.RoleAdmin {
			return
		}
		entered <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	f.resolver.Start(context.Background())
	<-entered

	f.profiles.Put(domain.Profile{ID: "u1", Role: domain.RoleBasic})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := f.resolver.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.RoleBasic, state.Role)

	close(release)
	f.resolver.Close()

	cached, ok, err := f.cache.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.RoleBasic, cached)
}

func TestResolverWaitHonoursContext(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "PRO"})
	release := make(chan struct{})
	defer close(release)
	f.profiles.BeforeGet = func(ctx context.Context, _ string) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	f.resolver.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	state, err := f.resolver.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, session.PhaseResolving, state.Phase)
}

func TestResolverRefreshPicksUpProfileChanges(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "BASIC"}, domain.Profile{ID: "u1", Role: domain.RoleBasic})
	f.resolver.Start(context.Background())
	require.Equal(t, domain.RoleBasic, f.settle(t).Role)

	f.profiles.Put(domain.Profile{ID: "u1", Role: domain.RoleUltimate})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := f.resolver.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.RoleUltimate, state.Role)
	assert.Eventually(t, func() bool {
		cached, ok, _ := f.cache.Get(context.Background(), "u1")
		return ok && cached == domain.RoleUltimate
	}, time.Second, 5*time.Millisecond)
}

func TestResolverUserUpdatedKeepsGeneration(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "PRO", "full_name": "Jane"}, domain.Profile{ID: "u1", Role: domain.RolePro})
	f.resolver.Start(context.Background())
	before := f.settle(t)

	_, err := f.client.UpdateUserMetadata(context.Background(), map[string]any{"full_name": "Jane Doe"})
	require.NoError(t, err)

	after := f.resolver.Snapshot()
	assert.Equal(t, session.PhaseResolved, after.Phase)
	assert.Equal(t, before.Generation, after.Generation)
	assert.Equal(t, "Jane Doe", after.Session.User.MetadataString("full_name"))
}

func TestResolverTokenRefreshReResolves(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "PRO"}, domain.Profile{ID: "u1", Role: domain.RolePro})
	f.resolver.Start(context.Background())
	before := f.settle(t)

	_, err := f.client.RefreshSession(context.Background())
	require.NoError(t, err)
	after := f.settle(t)

	assert.Greater(t, after.Generation, before.Generation)
	assert.NotEqual(t, before.Session.AccessToken, after.Session.AccessToken)
	assert.Equal(t, domain.RolePro, after.Role)
}

func TestResolverIgnoresEventsAfterClose(t *testing.T) {
	f := newFixture(t, map[string]any{"role": "PRO"})
	f.resolver.Start(context.Background())
	f.settle(t)
	f.resolver.Close()

	_, err := f.client.SignInWithPassword(context.Background(), "omar@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, "u1", f.resolver.Snapshot().UserID())
}
