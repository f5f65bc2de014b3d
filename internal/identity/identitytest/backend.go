// Package identitytest provides an in-memory identity provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/artisansflow/portal/internal/identity"
)

// Backend is a scriptable identity.Backend.
type Backend struct {
	mu sync.Mutex

	Users     map[string]*Account
	SignedOut []string
	Updates   []map[string]any

	SignInErr  error
	SignUpErr  error
	SignOutErr error
	RefreshErr error
	UpdateErr  error

	seq int
}

// Account is a registered user with its password.
type Account struct {
	User     identity.User
	Password string
}

// NewBackend returns an empty provider.
func NewBackend() *Backend {
	return &Backend{Users: map[string]*Account{}}
}

// AddUser registers a user directly.
func (b *Backend) AddUser(id, email, password string, metadata map[string]any) identity.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	user := identity.User{ID: id, Email: email, Metadata: identity.MergeMetadata(nil, metadata)}
	b.Users[email] = &Account{User: user, Password: password}
	return user
}

// Session mints a session for the user registered under email.
func (b *Backend) Session(email string) *identity.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionLocked(b.Users[email].User)
}

func (b *Backend) sessionLocked(user identity.User) *identity.Session {
	b.seq++
	return &identity.Session{
		AccessToken:  fmt.Sprintf("access-%s-%d", user.ID, b.seq),
		RefreshToken: fmt.Sprintf("refresh-%s-%d", user.ID, b.seq),
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         identity.User{ID: user.ID, Email: user.Email, Metadata: identity.MergeMetadata(nil, user.Metadata)},
	}
}

func (b *Backend) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SignInErr != nil {
		return nil, b.SignInErr
	}
	account, ok := b.Users[email]
	if !ok || account.Password != password {
		return nil, &identity.APIError{Status: http.StatusBadRequest, Message: "Invalid login credentials"}
	}
	return b.sessionLocked(account.User), nil
}

func (b *Backend) SignUp(_ context.Context, email, password string, metadata map[string]any) (*identity.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SignUpErr != nil {
		return nil, b.SignUpErr
	}
	if _, exists := b.Users[email]; exists {
		return nil, &identity.APIError{Status: http.StatusUnprocessableEntity, Message: "User already registered"}
	}
	b.seq++
	user := identity.User{ID: fmt.Sprintf("user-%d", b.seq), Email: email, Metadata: identity.MergeMetadata(nil, metadata)}
	b.Users[email] = &Account{User: user, Password: password}
	return &user, nil
}

func (b *Backend) SignOut(_ context.Context, accessToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SignedOut = append(b.SignedOut, accessToken)
	return b.SignOutErr
}

func (b *Backend) RefreshSession(_ context.Context, refreshToken string) (*identity.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.RefreshErr != nil {
		return nil, b.RefreshErr
	}
	for _, account := range b.Users {
		prefix := "refresh-" + account.User.ID + "-"
		if len(refreshToken) > len(prefix) && refreshToken[:len(prefix)] == prefix {
			return b.sessionLocked(account.User), nil
		}
	}
	return nil, &identity.APIError{Status: http.StatusBadRequest, Message: "Invalid Refresh Token"}
}

func (b *Backend) UpdateUser(_ context.Context, accessToken string, metadata map[string]any) (*identity.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Updates = append(b.Updates, identity.MergeMetadata(nil, metadata))
	if b.UpdateErr != nil {
		return nil, b.UpdateErr
	}
	for _, account := range b.Users {
		prefix := "access-" + account.User.ID + "-"
		if len(accessToken) > len(prefix) && accessToken[:len(prefix)] == prefix {
			account.User.Metadata = identity.MergeMetadata(nil, metadata)
			user := account.User
			user.Metadata = identity.MergeMetadata(nil, metadata)
			return &user, nil
		}
	}
	return nil, &identity.APIError{Status: http.StatusUnauthorized, Message: "invalid JWT"}
}

// UpdateCount returns how many metadata updates were attempted.
func (b *Backend) UpdateCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Updates)
}

// LastUpdate returns the metadata of the latest update attempt.
func (b *Backend) LastUpdate() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Updates) == 0 {
		return nil
	}
	return b.Updates[len(b.Updates)-1]
}
