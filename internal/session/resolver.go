package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/events"
	"github.com/artisansflow/portal/internal/identity"
)

// IdentityClient is the part of the identity client a resolver consumes.
type IdentityClient interface {
	OnAuthStateChange(fn identity.AuthStateListener) (unsubscribe func())
	GetSession(ctx context.Context) (*identity.Session, error)
	CurrentSession() *identity.Session
	UpdateUserMetadata(ctx context.Context, patch map[string]any) (*identity.User, error)
}

// ProfileStore reads and lazily creates profiles. GetByID returns
// domain.ErrProfileNotFound when no row exists.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Ensure(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
}

// RoleCache shares resolved roles with the edge gate.
type RoleCache interface {
	Get(ctx context.Context, userID string) (domain.Role, bool, error)
	Put(ctx context.Context, userID string, role domain.Role) error
}

// Resolver owns the authorization state of one browser context and keeps it
// in step with the identity client it observes.
type Resolver struct {
	client   IdentityClient
	profiles ProfileStore
	cache    RoleCache
	logger   *zap.Logger

	base       context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	cacheMu   sync.Mutex
	cachedGen uint64

	mu          sync.Mutex
	state       State
	gen         uint64
	inflight    context.CancelFunc
	changed     chan struct{}
	unsubscribe func()
	closed      bool
}

// NewResolver wires a resolver. cache may be nil.
func NewResolver(client IdentityClient, profiles ProfileStore, cache RoleCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Resolver{
		client:     client,
		profiles:   profiles,
		cache:      cache,
		logger:     logger,
		base:       base,
		baseCancel: cancel,
		state:      State{Phase: PhaseUnresolved},
		changed:    make(chan struct{}),
	}
}

// Start subscribes to auth events and performs the initial session fetch.
// A failed fetch leaves the context anonymous.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	if r.unsubscribe != nil || r.closed {
		r.mu.Unlock()
		return
	}
	r.unsubscribe = r.client.OnAuthStateChange(r.onAuthEvent)
	startGen := r.gen
	r.mu.Unlock()

	session, err := r.client.GetSession(ctx)
	if err != nil {
		r.logger.Warn("initial session fetch failed", zap.Error(err))
		session = nil
	}

	r.mu.Lock()
	superseded := r.gen != startGen
	r.mu.Unlock()
	if superseded {
		// an event delivered during the fetch already moved the state on
		return
	}
	if session == nil {
		r.signOut()
		return
	}
	r.begin(session)
}

// Snapshot returns the current state.
func (r *Resolver) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// Wait blocks until the state is settled or ctx ends. It returns the latest
// snapshot in both cases.
func (r *Resolver) Wait(ctx context.Context) (State, error) {
	for {
		r.mu.Lock()
		state := r.state.clone()
		changed := r.changed
		r.mu.Unlock()

		if state.Phase.Settled() {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Refresh re-resolves the held session and waits for the outcome. It is a
// no-op for anonymous contexts.
func (r *Resolver) Refresh(ctx context.Context) (State, error) {
	r.mu.Lock()
	session := r.state.Session.Clone()
	r.mu.Unlock()
	if session == nil {
		return r.Snapshot(), nil
	}
	r.begin(session)
	return r.Wait(ctx)
}

// Resolve computes the role of session: the stored profile role when a
// profile exists, otherwise the metadata role, which is persisted as a new
// profile. It also aligns the provider metadata with the result. Resolve
// does not change the published state.
func (r *Resolver) Resolve(ctx context.Context, session *identity.Session) domain.Role {
	if session == nil {
		return domain.DefaultRole
	}
	role, _ := r.lookup(ctx, session)
	r.heal(ctx, session, role)
	return role
}

// Close unsubscribes from the identity client and abandons in-flight work.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.gen++
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.baseCancel()
	r.wg.Wait()
}

func (r *Resolver) onAuthEvent(_ context.Context, event events.EventType, session *identity.Session) {
	switch event {
	case events.EventSignedOut:
		r.signOut()
	case events.EventUserUpdated:
		r.replaceSession(session)
	case events.EventInitialSession, events.EventSignedIn, events.EventTokenRefreshed:
		if session == nil {
			r.signOut()
			return
		}
		r.begin(session)
	}
}

// begin moves to Resolving under a new generation and resolves in the
// background. Any older resolution is cancelled.
func (r *Resolver) begin(session *identity.Session) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	if r.inflight != nil {
		r.inflight()
	}
	ctx, cancel := context.WithCancel(r.base)
	r.inflight = cancel

	next := State{Phase: PhaseResolving, Session: session.Clone(), Generation: gen}
	if r.state.Session != nil && r.state.Session.User.ID == session.User.ID {
		next.Role = r.state.Role
		next.Profile = r.state.Profile
	}
	r.publishLocked(next)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, gen, session)
	}()
}

func (r *Resolver) run(ctx context.Context, gen uint64, session *identity.Session) {
	role, profile := r.lookup(ctx, session)
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	if r.closed || r.gen != gen {
		r.mu.Unlock()
		r.logger.Debug("discarding superseded resolution",
			zap.String("user_id", session.User.ID),
			zap.Uint64("generation", gen),
		)
		return
	}
	r.publishLocked(State{
		Phase:      PhaseResolved,
		Session:    r.state.Session,
		Profile:    profile,
		Role:       role,
		Generation: gen,
	})
	r.inflight = nil
	r.mu.Unlock()

	r.storeRole(ctx, gen, session.User.ID, role)
	r.heal(ctx, session, role)
}

// storeRole shares role with the edge gate. Writes are serialized and a
// generation older than the last one written is dropped, so a slow write
// cannot overwrite a newer role.
func (r *Resolver) storeRole(ctx context.Context, gen uint64, userID string, role domain.Role) {
	if r.cache == nil {
		return
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if gen <= r.cachedGen {
		r.logger.Debug("skipping stale role cache write", zap.String("user_id", userID), zap.Uint64("generation", gen))
		return
	}
	if err := r.cache.Put(ctx, userID, role); err != nil {
		r.logger.Warn("role cache write failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	r.cachedGen = gen
}

// lookup implements the profile-wins rule. Every failure degrades to the
// metadata role.
func (r *Resolver) lookup(ctx context.Context, session *identity.Session) (domain.Role, *domain.Profile) {
	userID := session.User.ID
	metadataRole := domain.NormalizeRole(session.User.RawRole())

	profile, err := r.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		return domain.NormalizeRole(string(profile.Role)), profile
	case !errors.Is(err, domain.ErrProfileNotFound):
		r.logger.Warn("profile read failed, using metadata role",
			zap.String("user_id", userID),
			zap.String("role", string(metadataRole)),
			zap.Error(err),
		)
		return metadataRole, nil
	}

	stored, err := r.profiles.Ensure(ctx, domain.Profile{
		ID:       userID,
		FullName: session.User.MetadataString(identity.MetadataFullName),
		Company:  session.User.MetadataString(identity.MetadataCompany),
		Role:     metadataRole,
	})
	if err != nil {
		r.logger.Warn("profile create failed, using metadata role",
			zap.String("user_id", userID),
			zap.String("role", string(metadataRole)),
			zap.Error(err),
		)
		return metadataRole, nil
	}
	return domain.NormalizeRole(string(stored.Role)), stored
}

// heal writes role back into the provider metadata when they disagree.
// Failures are logged and left for the next resolution.
func (r *Resolver) heal(ctx context.Context, session *identity.Session, role domain.Role) {
	if session.User.RawRole() == string(role) {
		return
	}
	current := r.client.CurrentSession()
	if current == nil || current.User.ID != session.User.ID {
		return
	}
	patch := map[string]any{identity.MetadataRole: string(role)}
	if _, err := r.client.UpdateUserMetadata(ctx, patch); err != nil {
		r.logger.Warn("metadata role update failed",
			zap.String("user_id", session.User.ID),
			zap.String("role", string(role)),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("metadata role aligned with profile",
		zap.String("user_id", session.User.ID),
		zap.String("from", session.User.RawRole()),
		zap.String("to", string(role)),
	)
}

func (r *Resolver) signOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.gen++
	if r.inflight != nil {
		r.inflight()
		r.inflight = nil
	}
	r.publishLocked(State{Phase: PhaseAnonymous, Generation: r.gen})
}

func (r *Resolver) replaceSession(session *identity.Session) {
	if session == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Session == nil || r.state.Session.User.ID != session.User.ID {
		return
	}
	next := r.state
	next.Session = session.Clone()
	r.publishLocked(next)
}

func (r *Resolver) publishLocked(next State) {
	r.state = next
	close(r.changed)
	r.changed = make(chan struct{})
}
