package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/artisansflow/portal/internal/api/dto"
	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/guard"
	"github.com/artisansflow/portal/internal/identity"
	"github.com/artisansflow/portal/internal/service"
	"github.com/artisansflow/portal/internal/shell"
	apperrors "github.com/artisansflow/portal/pkg/util"
)

// SessionCookies names the cookies carrying the provider session.
type SessionCookies struct {
	Access     string
	Refresh    string
	Secure     bool
	RefreshTTL time.Duration
}

// AuthHandler exposes sign-in, sign-up, sign-out and token refresh.
type AuthHandler struct {
	accounts *service.AccountService
	routes   guard.RouteTable
	cookies  SessionCookies
}

// NewAuthHandler constructs handler.
func NewAuthHandler(accounts *service.AccountService, routes guard.RouteTable, cookies SessionCookies) *AuthHandler {
	if cookies.RefreshTTL <= 0 {
		cookies.RefreshTTL = 30 * 24 * time.Hour
	}
	return &AuthHandler{accounts: accounts, routes: routes, cookies: cookies}
}

// SignInPage handles GET /auth/sign-in.
func (h *AuthHandler) SignInPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.AuthPageResponse{
		Page:       "sign-in",
		RedirectTo: guard.SafeReturnPath(c.Query(h.routes.RedirectParam), ""),
		Registered: c.Query("registered") == "1",
	}})
}

// SignUpPage handles GET /auth/sign-up.
func (h *AuthHandler) SignUpPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.AuthPageResponse{
		Page:  "sign-up",
		Plans: dto.NewPlanResponses(domain.SignupPlans()),
	}})
}

// SignIn handles POST /auth/sign-in.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if req.RedirectTo == "" {
		req.RedirectTo = c.Query(h.routes.RedirectParam)
	}

	bc, err := browserContext(c)
	if err != nil {
		return err
	}
	result, err := h.accounts.SignIn(c.UserContext(), bc, service.SignInInput{
		Email:      req.Email,
		Password:   req.Password,
		RedirectTo: req.RedirectTo,
	})
	if err != nil {
		return err
	}

	h.setSessionCookies(c, result.Session)
	return respond(c, fiber.StatusOK, h.authResponse(result))
}

// SignUp handles POST /auth/sign-up.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.accounts.SignUp(c.UserContext(), service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Company:  req.Company,
		Plan:     domain.Role(req.Plan),
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, h.authResponse(result))
}

// SignOut handles POST /auth/sign-out.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	bc, err := browserContext(c)
	if err != nil {
		return err
	}
	result := h.accounts.SignOut(c.UserContext(), bc)
	h.clearSessionCookies(c)
	return respond(c, fiber.StatusOK, h.authResponse(result))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	bc, err := browserContext(c)
	if err != nil {
		return err
	}
	sess, err := h.accounts.Refresh(c.UserContext(), bc)
	if err != nil {
		return err
	}
	h.setSessionCookies(c, sess)

	resp := dto.AuthResponse{UserID: sess.User.ID}
	if !sess.ExpiresAt.IsZero() {
		resp.ExpiresAt = &sess.ExpiresAt
	}
	return c.JSON(fiber.Map{"data": resp})
}

func (h *AuthHandler) authResponse(result *service.AuthResult) dto.AuthResponse {
	resp := dto.AuthResponse{Location: result.Location}
	if result.Role != "" {
		resp.Role = string(result.Role)
	}
	if result.Session != nil {
		resp.UserID = result.Session.User.ID
		if !result.Session.ExpiresAt.IsZero() {
			resp.ExpiresAt = &result.Session.ExpiresAt
		}
	}
	return resp
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, sess *identity.Session) {
	if sess == nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookies.Access,
		Value:    sess.AccessToken,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	if sess.RefreshToken != "" {
		c.Cookie(&fiber.Cookie{
			Name:     h.cookies.Refresh,
			Value:    sess.RefreshToken,
			Path:     "/",
			Expires:  time.Now().Add(h.cookies.RefreshTTL),
			HTTPOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

func (h *AuthHandler) clearSessionCookies(c *fiber.Ctx) {
	for _, name := range []string{h.cookies.Access, h.cookies.Refresh} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HTTPOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

// respond answers JSON clients with the payload and browsers posting forms
// with a redirect to its location.
func respond(c *fiber.Ctx, status int, resp dto.AuthResponse) error {
	if c.Is("json") || resp.Location == "" {
		return c.Status(status).JSON(fiber.Map{"data": resp})
	}
	return c.Redirect(resp.Location, fiber.StatusSeeOther)
}

func browserContext(c *fiber.Ctx) (*shell.Context, error) {
	bc, ok := shell.FromLocals(c)
	if !ok {
		return nil, apperrors.NewInternalError(nil)
	}
	return bc, nil
}
