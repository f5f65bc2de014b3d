package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/artisansflow/portal/internal/api/dto"
	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/service"
)

// SettingsHandler reads and saves the tenant's display attributes.
type SettingsHandler struct {
	accounts *service.AccountService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(accounts *service.AccountService) *SettingsHandler {
	return &SettingsHandler{accounts: accounts}
}

// Get handles GET /dashboard/settings.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	state, err := renderState(c)
	if err != nil {
		return err
	}
	display, err := h.accounts.Settings(c.UserContext(), state.Session)
	if err != nil {
		return err
	}
	return renderPage(c, "settings", "Settings", settingsResponse(display))
}

// Save handles POST /dashboard/settings.
func (h *SettingsHandler) Save(c *fiber.Ctx) error {
	var req dto.SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	bc, err := browserContext(c)
	if err != nil {
		return err
	}

	profile, err := h.accounts.SaveSettings(c.UserContext(), bc, domain.ProfileDisplay{
		FullName: req.FullName,
		Company:  req.Company,
		LogoURL:  req.LogoURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": settingsResponse(domain.ProfileDisplay{
		FullName: profile.FullName,
		Company:  profile.Company,
		LogoURL:  profile.LogoURL,
	})})
}

func settingsResponse(d domain.ProfileDisplay) dto.SettingsResponse {
	return dto.SettingsResponse{FullName: d.FullName, Company: d.Company, LogoURL: d.LogoURL}
}
