package guard

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/session"
	"github.com/artisansflow/portal/internal/shell"
	apperrors "github.com/artisansflow/portal/pkg/util"
)

const renderStateKey = "render_state"

// RenderGate gates a page on the resolved state of the browser context.
// It waits up to wait for resolution; a page still resolving answers 202 so
// the browser can poll instead of rendering protected content early.
type RenderGate struct {
	table    RouteTable
	wait     time.Duration
	recorder DecisionRecorder
	logger   *zap.Logger
}

// NewRenderGate builds the gate.
func NewRenderGate(table RouteTable, wait time.Duration, recorder DecisionRecorder, logger *zap.Logger) *RenderGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderGate{table: table, wait: wait, recorder: recorder, logger: logger}
}

// Require admits only the listed roles. No roles admits any signed-in role.
func (g *RenderGate) Require(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bc, ok := shell.FromLocals(c)
		if !ok {
			return apperrors.NewInternalError(nil)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), g.wait)
		state, _ := bc.Resolver.Wait(ctx)
		cancel()

		decision := DecideRender(g.table, c.Path(), state, allowed)
		if g.recorder != nil {
			g.recorder.RecordDecision(GateRender, decision)
		}

		switch decision.Outcome {
		case OutcomeAllow:
			c.Locals(renderStateKey, state)
			return c.Next()
		case OutcomePending:
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"status": "resolving",
				"path":   c.Path(),
			})
		}

		g.logger.Debug("render gate redirect",
			zap.String("path", c.Path()),
			zap.String("reason", decision.Reason),
			zap.String("role", string(state.Role)),
		)
		return c.Redirect(decision.Location, RedirectStatus(c.Method()))
	}
}

// RenderState returns the settled state the render gate admitted the request with.
func RenderState(c *fiber.Ctx) (session.State, bool) {
	state, ok := c.Locals(renderStateKey).(session.State)
	return state, ok
}
