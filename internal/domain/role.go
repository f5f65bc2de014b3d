package domain

import "strings"

// Role enumerates tenant subscription tiers.
type Role string

const (
	RoleBasic    Role = "BASIC"
	RolePro      Role = "PRO"
	RoleUltimate Role = "ULTIMATE"
	RoleVIP      Role = "VIP"
	RoleAdmin    Role = "ADMIN"
)

// DefaultRole is assigned whenever a role cannot be determined.
const DefaultRole = RoleBasic

// DefaultHomeRoute is used when no role is known.
const DefaultHomeRoute = "/dashboard"

// UnlimitedFeatures marks a tier without a feature cap.
const UnlimitedFeatures = -1

type roleSpec struct {
	label       string
	description string
	limit       int
	features    []FeatureKey
	home        string
}

var roleOrder = []Role{RoleBasic, RolePro, RoleUltimate, RoleVIP, RoleAdmin}

var roleSpecs = map[Role]roleSpec{
	RoleBasic: {
		label:       "Basic",
		description: "The foundations to launch your business.",
		limit:       5,
		features:    []FeatureKey{FeatureDashboard, FeatureClients},
		home:        "/dashboard",
	},
	RolePro: {
		label:       "Pro",
		description: "Advanced automation and day-to-day tracking.",
		limit:       15,
		features:    []FeatureKey{FeatureDashboard, FeatureClients, FeatureStats},
		home:        "/dashboard",
	},
	RoleUltimate: {
		label:       "Ultimate",
		description: "The complete ArtisansFlow experience.",
		limit:       25,
		features:    []FeatureKey{FeatureDashboard, FeatureClients, FeatureStats, FeatureSettings},
		home:        "/dashboard",
	},
	RoleVIP: {
		label:       "VIP",
		description: "Premium coaching and priority support.",
		limit:       25,
		features:    []FeatureKey{FeatureDashboard, FeatureClients, FeatureStats, FeatureSettings},
		home:        "/dashboard",
	},
	RoleAdmin: {
		label:       "Admin",
		description: "Full control and global visibility.",
		limit:       UnlimitedFeatures,
		features:    allFeatures,
		home:        "/admin",
	},
}

// RoleOrder lists every role from least to most privileged.
func RoleOrder() []Role {
	return append([]Role(nil), roleOrder...)
}

// NormalizeRole maps raw input onto a known role, case-insensitively.
// Anything unrecognised yields DefaultRole.
func NormalizeRole(raw string) Role {
	candidate := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := roleSpecs[candidate]; ok {
		return candidate
	}
	return DefaultRole
}

// IsKnown reports whether r is one of the declared roles.
func (r Role) IsKnown() bool {
	_, ok := roleSpecs[r]
	return ok
}

func (r Role) spec() roleSpec {
	if s, ok := roleSpecs[r]; ok {
		return s
	}
	return roleSpecs[DefaultRole]
}

// FeaturesFor returns the features granted to role.
func FeaturesFor(role Role) []FeatureKey {
	return append([]FeatureKey(nil), role.spec().features...)
}

// Allows reports whether the role grants feature.
func (r Role) Allows(feature FeatureKey) bool {
	for _, f := range r.spec().features {
		if f == feature {
			return true
		}
	}
	return false
}

// HomeRouteFor returns the landing path of role, or DefaultHomeRoute when the
// role is empty or unknown.
func HomeRouteFor(role Role) string {
	s, ok := roleSpecs[role]
	if !ok {
		return DefaultHomeRoute
	}
	return s.home
}

// Label returns the display name.
func (r Role) Label() string { return r.spec().label }

// Description returns the marketing blurb of the tier.
func (r Role) Description() string { return r.spec().description }

// FeatureLimit returns the number of plan features included, or UnlimitedFeatures.
func (r Role) FeatureLimit() int { return r.spec().limit }

// Rank orders roles; higher is more privileged.
func (r Role) Rank() int {
	for i, candidate := range roleOrder {
		if candidate == r {
			return i
		}
	}
	return 0
}
