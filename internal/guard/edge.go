package guard

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/identity"
)

// Gate names passed to a DecisionRecorder.
const (
	GateEdge   = "edge"
	GateRender = "render"
)

// RoleSource supplies the role the edge gate decides with.
type RoleSource interface {
	RoleFor(ctx context.Context, session *identity.Session) domain.Role
}

// DecisionRecorder observes gate decisions.
type DecisionRecorder interface {
	RecordDecision(gate string, decision Decision)
}

// EdgeGate gates every request on the session snapshot it carries, before
// any handler runs.
func EdgeGate(table RouteTable, roles RoleSource, recorder DecisionRecorder, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if table.Classify(path) == PathOpen {
			return c.Next()
		}

		snapshot, hasSession := identity.SessionFromLocals(c)
		role := domain.DefaultRole
		if hasSession {
			role = roles.RoleFor(c.UserContext(), snapshot)
		}

		decision := Decide(table, path, hasSession, role)
		if recorder != nil {
			recorder.RecordDecision(GateEdge, decision)
		}
		if decision.Allowed() {
			return c.Next()
		}

		logger.Debug("edge gate redirect",
			zap.String("path", path),
			zap.String("reason", decision.Reason),
			zap.String("location", decision.Location),
			zap.String("role", string(role)),
		)
		return c.Redirect(decision.Location, RedirectStatus(c.Method()))
	}
}

// RedirectStatus keeps page loads on 307 and turns form posts into a GET.
func RedirectStatus(method string) int {
	if method == fiber.MethodGet || method == fiber.MethodHead {
		return fiber.StatusTemporaryRedirect
	}
	return fiber.StatusSeeOther
}
