package guard

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artisansflow/portal/internal/domain"
)

// PathClass is the coarse category of a request path.
type PathClass string

const (
	PathOpen      PathClass = "open"
	PathAuth      PathClass = "auth"
	PathProtected PathClass = "protected"
)

// FeatureRoute binds a path prefix to the feature it requires.
type FeatureRoute struct {
	Prefix  string            `yaml:"prefix"`
	Feature domain.FeatureKey `yaml:"feature"`
}

// RouteTable is the routing configuration the guard decides against.
type RouteTable struct {
	AuthPrefix     string            `yaml:"auth_prefix"`
	SignInPath     string            `yaml:"sign_in_path"`
	RedirectParam  string            `yaml:"redirect_param"`
	Protected      []string          `yaml:"protected"`
	Features       []FeatureRoute    `yaml:"features"`
	DefaultFeature domain.FeatureKey `yaml:"default_feature"`
}

// DefaultRouteTable returns the portal's built-in routing.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		AuthPrefix:    "/auth",
		SignInPath:    "/auth/sign-in",
		RedirectParam: "redirectTo",
		Protected:     []string{"/dashboard", "/admin"},
		Features: []FeatureRoute{
			{Prefix: "/dashboard/clients", Feature: domain.FeatureClients},
			{Prefix: "/dashboard/stats", Feature: domain.FeatureStats},
			{Prefix: "/dashboard/settings", Feature: domain.FeatureSettings},
			{Prefix: "/admin", Feature: domain.FeatureAdmin},
		},
		DefaultFeature: domain.FeatureDashboard,
	}
}

// LoadRouteTable reads a YAML override from path. Keys missing from the file
// keep their default. An empty path yields the default table.
func LoadRouteTable(path string) (RouteTable, error) {
	table := DefaultRouteTable()
	if path == "" {
		return table, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return RouteTable{}, fmt.Errorf("read route table: %w", err)
	}
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return RouteTable{}, fmt.Errorf("parse route table %s: %w", path, err)
	}
	if err := table.Validate(); err != nil {
		return RouteTable{}, fmt.Errorf("route table %s: %w", path, err)
	}
	return table, nil
}

// Validate checks that prefixes are absolute, features are known and every
// role's home route is reachable for that role.
func (t RouteTable) Validate() error {
	var errs []error
	check := func(field, value string) {
		if !isAbsolutePath(value) {
			errs = append(errs, fmt.Errorf("%s %q must be an absolute path", field, value))
		}
	}

	check("auth_prefix", t.AuthPrefix)
	check("sign_in_path", t.SignInPath)
	if t.RedirectParam == "" {
		errs = append(errs, errors.New("redirect_param is required"))
	}
	if len(t.Protected) == 0 {
		errs = append(errs, errors.New("at least one protected prefix is required"))
	}
	for _, prefix := range t.Protected {
		check("protected prefix", prefix)
	}
	for _, route := range t.Features {
		check("feature prefix", route.Prefix)
		if !domain.IsKnownFeature(route.Feature) {
			errs = append(errs, fmt.Errorf("feature %q for %s is unknown", route.Feature, route.Prefix))
		}
	}
	if !domain.IsKnownFeature(t.DefaultFeature) {
		errs = append(errs, fmt.Errorf("default_feature %q is unknown", t.DefaultFeature))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if t.Classify(t.SignInPath) == PathProtected {
		errs = append(errs, fmt.Errorf("sign_in_path %s must not be protected", t.SignInPath))
	}
	for _, role := range domain.RoleOrder() {
		home := domain.HomeRouteFor(role)
		if d := Decide(t, home, true, role); d.Outcome != OutcomeAllow {
			errs = append(errs, fmt.Errorf("home route %s is not reachable for %s", home, role))
		}
	}
	return errors.Join(errs...)
}

// Classify sorts path into auth, protected or open.
func (t RouteTable) Classify(path string) PathClass {
	if matchesPrefix(path, t.AuthPrefix) {
		return PathAuth
	}
	for _, prefix := range t.Protected {
		if matchesPrefix(path, prefix) {
			return PathProtected
		}
	}
	return PathOpen
}

// FeatureFor returns the feature required by path, using the longest
// matching prefix and the default feature when none matches.
func (t RouteTable) FeatureFor(path string) domain.FeatureKey {
	best, feature := -1, t.DefaultFeature
	for _, route := range t.Features {
		if len(route.Prefix) > best && matchesPrefix(path, route.Prefix) {
			best, feature = len(route.Prefix), route.Feature
		}
	}
	return feature
}

// matchesPrefix is a segment-aware prefix test: /admin matches /admin and
// /admin/users but not /administrator. Case is ignored so that /Admin is
// gated like /admin whatever the router does with it.
func matchesPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" || len(path) < len(prefix) {
		return false
	}
	if !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func isAbsolutePath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//")
}
