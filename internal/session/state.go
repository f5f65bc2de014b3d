package session

import (
	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/identity"
)

// Phase is the resolution stage of a browser context.
type Phase string

const (
	PhaseUnresolved Phase = "unresolved"
	PhaseAnonymous  Phase = "anonymous"
	PhaseResolving  Phase = "resolving"
	PhaseResolved   Phase = "resolved"
)

// Settled reports whether the phase is final until the next auth event.
func (p Phase) Settled() bool {
	return p == PhaseAnonymous || p == PhaseResolved
}

// State is an immutable snapshot of a resolver.
type State struct {
	Phase      Phase
	Session    *identity.Session
	Profile    *domain.Profile
	Role       domain.Role
	Generation uint64
}

// HasSession reports whether the snapshot carries an authenticated session.
func (s State) HasSession() bool {
	return s.Session != nil && (s.Phase == PhaseResolving || s.Phase == PhaseResolved)
}

// UserID returns the id of the session owner, or "".
func (s State) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}

func (s State) clone() State {
	out := s
	out.Session = s.Session.Clone()
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	return out
}
