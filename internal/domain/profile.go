package domain

import (
	"errors"
	"time"
)

// Profile is the persisted, authoritative record of a tenant account.
type Profile struct {
	ID        string
	FullName  string
	Company   string
	LogoURL   string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileDisplay holds the attributes a tenant may edit from settings.
type ProfileDisplay struct {
	FullName string
	Company  string
	LogoURL  string
}

// ErrProfileNotFound is returned by profile stores when no row exists for an id.
var ErrProfileNotFound = errors.New("profile not found")
