package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/identity/identitytest"
	"github.com/artisansflow/portal/internal/persistence"
	"github.com/artisansflow/portal/internal/repository/repositorytest"
	"github.com/artisansflow/portal/internal/shell"
	"github.com/artisansflow/portal/internal/worker"
)

func TestProfileListenerRefreshesUserContexts(t *testing.T) {
	backend := identitytest.NewBackend()
	backend.AddUser("u1", "jane@example.com", "pw", map[string]any{"role": "BASIC"})
	profiles := repositorytest.NewProfiles(domain.Profile{ID: "u1", Role: domain.RoleBasic})
	cache := repositorytest.NewRoleCache()
	registry := shell.NewRegistry(backend, profiles, cache, zap.NewNop())
	t.Cleanup(registry.Close)

	ctx := context.Background()
	bc := registry.Mount(ctx, "ctx", backend.Session("jane@example.com"))
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	state, err := bc.Resolver.Wait(waitCtx)
	require.NoError(t, err)
	require.Equal(t, domain.RoleBasic, state.Role)

	feed := persistence.NewChangeFeed(nil, "table_changes", zap.NewNop())
	listener := worker.NewProfileListener(feed, registry, cache, zap.NewNop())
	stop := listener.Start()
	defer stop()

	// inserts and unrelated updates are ignored
	feed.Deliver(ctx, []byte(`{"table":"profiles","op":"UPDATE","record":{"id":"u1","role":"BASIC","company":"X"},"old_record":{"id":"u1","role":"BASIC"}}`))
	assert.Equal(t, state.Generation, bc.Resolver.Snapshot().Generation)

	profiles.Put(domain.Profile{ID: "u1", Role: domain.RoleAdmin})
	feed.Deliver(ctx, []byte(`{"table":"profiles","op":"UPDATE","record":{"id":"u1","role":"ADMIN"},"old_record":{"id":"u1","role":"BASIC"}}`))

	assert.Eventually(t, func() bool {
		s := bc.Resolver.Snapshot()
		return s.Phase == "resolved" && s.Role == domain.RoleAdmin
	}, 2*time.Second, 5*time.Millisecond)
}

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(time.Duration) int {
	s.calls.Add(1)
	return 1
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.RunSweeper(ctx, "contexts", sweeper, 5*time.Millisecond, time.Minute, zap.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
