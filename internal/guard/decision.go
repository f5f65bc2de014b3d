package guard

import (
	"net/url"
	"strings"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/session"
)

// Outcome is the kind of a guard decision.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
	OutcomePending  Outcome = "pending"
)

// Reasons attached to decisions, used in logs and metrics.
const (
	ReasonOpen            = "open"
	ReasonGranted         = "granted"
	ReasonUnauthenticated = "unauthenticated"
	ReasonAuthenticated   = "already_authenticated"
	ReasonFeatureDenied   = "feature_denied"
	ReasonRoleNotAllowed  = "role_not_allowed"
	ReasonResolving       = "resolving"
)

// Decision is the result of gating one path.
type Decision struct {
	Outcome  Outcome           `json:"outcome"`
	Location string            `json:"location,omitempty"`
	Reason   string            `json:"reason"`
	Class    PathClass         `json:"class"`
	Feature  domain.FeatureKey `json:"feature,omitempty"`
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Decide applies the gating rules shared by the edge and render gates. It is
// a pure function of its arguments.
func Decide(table RouteTable, path string, hasSession bool, role domain.Role) Decision {
	class := table.Classify(path)

	if !hasSession {
		if class == PathProtected {
			return Decision{
				Outcome:  OutcomeRedirect,
				Location: table.SignInURL(path),
				Reason:   ReasonUnauthenticated,
				Class:    class,
			}
		}
		return Decision{Outcome: OutcomeAllow, Reason: ReasonOpen, Class: class}
	}

	switch class {
	case PathAuth:
		return Decision{
			Outcome:  OutcomeRedirect,
			Location: domain.HomeRouteFor(role),
			Reason:   ReasonAuthenticated,
			Class:    class,
		}
	case PathProtected:
		feature := table.FeatureFor(path)
		if !domain.NormalizeRole(string(role)).Allows(feature) {
			return Decision{
				Outcome:  OutcomeRedirect,
				Location: domain.HomeRouteFor(role),
				Reason:   ReasonFeatureDenied,
				Class:    class,
				Feature:  feature,
			}
		}
		return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted, Class: class, Feature: feature}
	}
	return Decision{Outcome: OutcomeAllow, Reason: ReasonOpen, Class: class}
}

// DecideRender gates a page against a resolver snapshot. It stays pending
// while resolution is in flight and then applies Decide followed by the
// page's role allow-list. An empty allow-list admits every role.
func DecideRender(table RouteTable, path string, state session.State, allowed []domain.Role) Decision {
	if !state.Phase.Settled() {
		return Decision{Outcome: OutcomePending, Reason: ReasonResolving, Class: table.Classify(path)}
	}

	hasSession := state.HasSession()
	decision := Decide(table, path, hasSession, state.Role)
	if !decision.Allowed() || len(allowed) == 0 {
		return decision
	}

	if !hasSession {
		return Decision{
			Outcome:  OutcomeRedirect,
			Location: table.SignInURL(path),
			Reason:   ReasonUnauthenticated,
			Class:    decision.Class,
		}
	}
	for _, role := range allowed {
		if role == state.Role {
			return decision
		}
	}
	return Decision{
		Outcome:  OutcomeRedirect,
		Location: domain.HomeRouteFor(state.Role),
		Reason:   ReasonRoleNotAllowed,
		Class:    decision.Class,
		Feature:  decision.Feature,
	}
}

// SignInURL builds the sign-in location carrying path as the return
// destination. Slashes are kept readable.
func (t RouteTable) SignInURL(path string) string {
	value := strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
	return t.SignInPath + "?" + url.QueryEscape(t.RedirectParam) + "=" + value
}

// SafeReturnPath returns raw when it is a same-site absolute path and
// fallback otherwise.
func SafeReturnPath(raw, fallback string) string {
	if raw == "" || !isAbsolutePath(raw) || strings.Contains(raw, `\`) {
		return fallback
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return fallback
	}
	return raw
}
