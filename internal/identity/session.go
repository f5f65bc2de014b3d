package identity

import (
	"errors"
	"time"
)

// ErrNoSession is returned by operations that need an authenticated session.
var ErrNoSession = errors.New("identity: no active session")

// Metadata keys written by the portal into the provider's user metadata.
const (
	MetadataRole     = "role"
	MetadataFullName = "full_name"
	MetadataCompany  = "company"
)

// User is the provider-side account as seen by the portal.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
}

// MetadataString returns a string metadata value, or "" when absent or not a string.
func (u User) MetadataString(key string) string {
	if u.Metadata == nil {
		return ""
	}
	if v, ok := u.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// RawRole returns the self-reported role carried in metadata, unnormalized.
func (u User) RawRole() string {
	return u.MetadataString(MetadataRole)
}

func (u User) clone() User {
	out := u
	out.Metadata = cloneMetadata(u.Metadata)
	return out
}

// Session is one authenticated browser context as issued by the provider.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy so holders never share metadata maps.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.User = s.User.clone()
	return &out
}

func cloneMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MergeMetadata returns base overlaid with patch, leaving both untouched.
func MergeMetadata(base, patch map[string]any) map[string]any {
	out := cloneMetadata(base)
	for k, v := range patch {
		out[k] = v
	}
	return out
}
