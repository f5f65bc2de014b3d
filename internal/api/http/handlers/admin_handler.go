package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/artisansflow/portal/internal/api/dto"
	"github.com/artisansflow/portal/internal/service"
)

// AdminHandler serves the admin panel.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Overview handles GET /admin.
func (h *AdminHandler) Overview(c *fiber.Ctx) error {
	overview := h.admin.Overview(c.UserContext())
	return renderPage(c, "admin", "Administration", dto.OverviewResponse{
		TotalUsers:        overview.TotalUsers,
		TotalSignIns:      overview.TotalSignIns,
		ConnectionAverage: overview.ConnectionAverage,
		Connections:       dto.NewActivityDays(overview.Connections),
	})
}

// Analytics handles GET /admin/analytics.
func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	overview := h.admin.Overview(c.UserContext())
	return renderPage(c, "analytics", "Analytics", fiber.Map{
		"connections":        dto.NewActivityDays(overview.Connections),
		"connection_average": overview.ConnectionAverage,
	})
}

// Users handles GET /admin/users.
func (h *AdminHandler) Users(c *fiber.Ctx) error {
	users, err := h.admin.Users(c.UserContext(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	out := make([]dto.ProfileResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewProfileResponse(u))
	}
	return renderPage(c, "users", "Users", out)
}

// SetRole handles POST /admin/users/:id/role.
func (h *AdminHandler) SetRole(c *fiber.Ctx) error {
	var req dto.SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	profile, err := h.admin.SetRole(c.UserContext(), c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(*profile)})
}
