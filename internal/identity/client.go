package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artisansflow/portal/internal/events"
)

// AuthStateListener observes session changes of a Client.
type AuthStateListener func(ctx context.Context, event events.EventType, session *Session)

// Client holds the session of a single browser context and pushes auth
// state changes to its listeners, in the order they happen.
type Client struct {
	backend    Backend
	dispatcher events.Dispatcher
	now        func() time.Time

	mu      sync.Mutex
	session *Session
}

// NewClient builds a client seeded with initial, which may be nil.
func NewClient(backend Backend, initial *Session) *Client {
	return &Client{
		backend:    backend,
		dispatcher: events.NewInMemoryDispatcher(),
		now:        time.Now,
		session:    initial.Clone(),
	}
}

// OnAuthStateChange registers fn for every auth event and returns the
// function that removes it.
func (c *Client) OnAuthStateChange(fn AuthStateListener) (unsubscribe func()) {
	var unsubs []func()
	for _, eventType := range events.AuthEventTypes() {
		unsubs = append(unsubs, c.dispatcher.Subscribe(eventType, func(ctx context.Context, e events.Event) error {
			session, _ := e.Payload.(*Session)
			fn(ctx, e.Type, session)
			return nil
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// CurrentSession returns the held session without contacting the provider.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// GetSession returns the held session, refreshing it first when the access
// token expired and a refresh token is available. An expired session that
// cannot be refreshed is dropped.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	current := c.session.Clone()
	c.mu.Unlock()

	if current == nil || !current.Expired(c.now()) {
		return current, nil
	}
	if current.RefreshToken == "" {
		c.ClearSession(ctx)
		return nil, nil
	}
	return c.RefreshSession(ctx)
}

// SetSession installs next and emits SIGNED_IN for a new user or
// TOKEN_REFRESHED for a new token of the same user. A nil session signs out.
func (c *Client) SetSession(ctx context.Context, next *Session) {
	if next == nil {
		c.ClearSession(ctx)
		return
	}

	c.mu.Lock()
	prev := c.session
	c.session = next.Clone()
	c.mu.Unlock()

	switch {
	case prev == nil || prev.User.ID != next.User.ID:
		c.emit(ctx, events.EventSignedIn, next)
	case prev.AccessToken != next.AccessToken:
		c.emit(ctx, events.EventTokenRefreshed, next)
	}
}

// ClearSession forgets the held session locally and emits SIGNED_OUT.
func (c *Client) ClearSession(ctx context.Context) {
	c.mu.Lock()
	prev := c.session
	c.session = nil
	c.mu.Unlock()

	if prev != nil {
		c.emit(ctx, events.EventSignedOut, nil)
	}
}

// Announce emits INITIAL_SESSION with the held session.
func (c *Client) Announce(ctx context.Context) {
	c.emit(ctx, events.EventInitialSession, c.CurrentSession())
}

// SignInWithPassword authenticates against the provider and installs the session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.SetSession(ctx, session)
	return session.Clone(), nil
}

// SignOut revokes the session at the provider and clears it locally. The
// local session is cleared even if revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.CurrentSession()
	var err error
	if current != nil {
		err = c.backend.SignOut(ctx, current.AccessToken)
	}
	c.ClearSession(ctx)
	return err
}

// RefreshSession exchanges the held refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	current := c.CurrentSession()
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoSession
	}
	next, err := c.backend.RefreshSession(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	c.SetSession(ctx, next)
	return next.Clone(), nil
}

// UpdateUserMetadata merges patch into the user's metadata at the provider
// and emits USER_UPDATED.
func (c *Client) UpdateUserMetadata(ctx context.Context, patch map[string]any) (*User, error) {
	current := c.CurrentSession()
	if current == nil {
		return nil, ErrNoSession
	}

	merged := MergeMetadata(current.User.Metadata, patch)
	updated, err := c.backend.UpdateUser(ctx, current.AccessToken, merged)
	if err != nil {
		return nil, err
	}
	if updated.Metadata == nil {
		updated.Metadata = merged
	}

	c.mu.Lock()
	if c.session == nil || c.session.User.ID != current.User.ID {
		c.mu.Unlock()
		return updated, nil
	}
	c.session.User.Metadata = cloneMetadata(updated.Metadata)
	if updated.Email != "" {
		c.session.User.Email = updated.Email
	}
	snapshot := c.session.Clone()
	c.mu.Unlock()

	c.emit(ctx, events.EventUserUpdated, snapshot)
	return updated, nil
}

func (c *Client) emit(ctx context.Context, eventType events.EventType, session *Session) {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: c.now(),
		Payload:   session.Clone(),
	}
	if session != nil {
		event.SubjectID = session.User.ID
	}
	_ = c.dispatcher.Publish(ctx, event)
}
