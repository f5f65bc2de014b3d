// Package shell keeps one application shell per browser: the identity client
// holding that browser's session and the resolver derived from it.
package shell

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/identity"
	"github.com/artisansflow/portal/internal/session"
)

// Context is the server-side state of one browser.
type Context struct {
	ID       string
	Client   *identity.Client
	Resolver *session.Resolver

	started  sync.Once
	lastSeen atomic.Int64
}

func (c *Context) touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the browser last sent a request.
func (c *Context) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Registry owns every mounted browser context.
type Registry struct {
	backend  identity.Backend
	profiles session.ProfileStore
	cache    session.RoleCache
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	contexts map[string]*Context
}

// NewRegistry builds an empty registry. cache may be nil.
func NewRegistry(backend identity.Backend, profiles session.ProfileStore, cache session.RoleCache, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		backend:  backend,
		profiles: profiles,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
		contexts: make(map[string]*Context),
	}
}

// Mount returns the context for id, creating and starting it on first use.
// For an existing context the held session is reconciled with snapshot, the
// session the browser presented on this request.
func (r *Registry) Mount(ctx context.Context, id string, snapshot *identity.Session) *Context {
	r.mu.Lock()
	bc, existed := r.contexts[id]
	if !existed {
		client := identity.NewClient(r.backend, snapshot)
		bc = &Context{
			ID:       id,
			Client:   client,
			Resolver: session.NewResolver(client, r.profiles, r.cache, r.logger.With(zap.String("context_id", id))),
		}
		r.contexts[id] = bc
	}
	bc.touch(r.now())
	r.mu.Unlock()

	bc.started.Do(func() {
		bc.Resolver.Start(ctx)
	})
	if existed {
		reconcile(ctx, bc.Client, snapshot)
	}
	return bc
}

// reconcile aligns the held session with the one presented by the browser.
func reconcile(ctx context.Context, client *identity.Client, snapshot *identity.Session) {
	held := client.CurrentSession()
	switch {
	case snapshot == nil && held == nil:
	case snapshot == nil:
		client.ClearSession(ctx)
	case held == nil || held.User.ID != snapshot.User.ID:
		client.SetSession(ctx, snapshot)
	case held.AccessToken != snapshot.AccessToken:
		next := snapshot.Clone()
		if next.RefreshToken == "" {
			next.RefreshToken = held.RefreshToken
		}
		// metadata written through this client is newer than the token's copy
		next.User.Metadata = identity.MergeMetadata(next.User.Metadata, held.User.Metadata)
		client.SetSession(ctx, next)
	}
}

// Get returns a mounted context without touching it.
func (r *Registry) Get(id string) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bc, ok := r.contexts[id]
	return bc, ok
}

// Unmount tears down the context for id.
func (r *Registry) Unmount(id string) {
	r.mu.Lock()
	bc, ok := r.contexts[id]
	delete(r.contexts, id)
	r.mu.Unlock()

	if ok {
		bc.Resolver.Close()
	}
}

// Sweep unmounts contexts idle for longer than idle and returns how many
// were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Context
	for id, bc := range r.contexts {
		if bc.LastSeen().Before(cutoff) {
			stale = append(stale, bc)
			delete(r.contexts, id)
		}
	}
	r.mu.Unlock()

	for _, bc := range stale {
		bc.Resolver.Close()
	}
	if len(stale) > 0 {
		r.logger.Debug("swept idle browser contexts", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// ForUser returns the contexts currently signed in as userID.
func (r *Registry) ForUser(userID string) []*Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Context
	for _, bc := range r.contexts {
		if held := bc.Client.CurrentSession(); held != nil && held.User.ID == userID {
			out = append(out, bc)
		}
	}
	return out
}

// Len returns the number of mounted contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// Close unmounts every context.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.contexts
	r.contexts = make(map[string]*Context)
	r.mu.Unlock()

	for _, bc := range all {
		bc.Resolver.Close()
	}
}
