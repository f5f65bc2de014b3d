package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/artisansflow/portal/internal/api/dto"
	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/guard"
	"github.com/artisansflow/portal/internal/session"
	apperrors "github.com/artisansflow/portal/pkg/util"
)

// PagesHandler serves the landing page and the tenant dashboard pages.
type PagesHandler struct{}

// NewPagesHandler constructs handler.
func NewPagesHandler() *PagesHandler {
	return &PagesHandler{}
}

// Landing handles GET /.
func (h *PagesHandler) Landing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"page":  "landing",
		"plans": dto.NewPlanResponses(domain.SignupPlans()),
	}})
}

// Dashboard handles GET /dashboard.
func (h *PagesHandler) Dashboard(c *fiber.Ctx) error {
	return renderPage(c, "dashboard", "Dashboard", nil)
}

// Clients handles GET /dashboard/clients.
func (h *PagesHandler) Clients(c *fiber.Ctx) error {
	return renderPage(c, "clients", "Clients", nil)
}

// Stats handles GET /dashboard/stats.
func (h *PagesHandler) Stats(c *fiber.Ctx) error {
	return renderPage(c, "stats", "Statistics", nil)
}

func renderPage(c *fiber.Ctx, page, title string, data any) error {
	state, err := renderState(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PageResponse{
		Page:   page,
		Title:  title,
		Viewer: viewer(state),
		Data:   data,
	}})
}

func renderState(c *fiber.Ctx) (session.State, error) {
	state, ok := guard.RenderState(c)
	if !ok || !state.HasSession() {
		return session.State{}, apperrors.NewUnauthorized("sign in required")
	}
	return state, nil
}

func viewer(state session.State) dto.ViewerResponse {
	role := state.Role
	features := domain.FeaturesFor(role)
	keys := make([]string, 0, len(features))
	for _, f := range features {
		keys = append(keys, string(f))
	}
	return dto.ViewerResponse{
		ID:           state.Session.User.ID,
		Email:        state.Session.User.Email,
		Role:         string(role),
		RoleLabel:    role.Label(),
		Description:  role.Description(),
		FeatureLimit: role.FeatureLimit(),
		PlanFeatures: role.PlanFeatures(),
		Features:     keys,
		Navigation:   domain.NavigationFor(role),
	}
}
