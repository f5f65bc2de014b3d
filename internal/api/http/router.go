package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/artisansflow/portal/internal/api/http/handlers"
	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/guard"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Metrics  *handlers.MetricsHandler
	Auth     *handlers.AuthHandler
	Pages    *handlers.PagesHandler
	Settings *handlers.SettingsHandler
	Admin    *handlers.AdminHandler

	// Session parses the provider session; Shell mounts the browser
	// context; Edge gates on the session snapshot. They run in that order.
	Session fiber.Handler
	Shell   fiber.Handler
	Edge    fiber.Handler

	Render      *guard.RenderGate
	AuthLimiter *RateLimiter
}

// statsRoles may open the statistics page.
var statsRoles = []domain.Role{domain.RolePro, domain.RoleUltimate, domain.RoleVIP, domain.RoleAdmin}

// NewApp builds the portal's Fiber app. Routing is case-sensitive so that
// a path reaches a handler only in the spelling the guards check.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:       name,
		CaseSensitive: true,
	})
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/internal/metrics", cfg.Metrics.Snapshot)

	app.Use(cfg.Session, cfg.Shell, cfg.Edge)

	app.Get("/", cfg.Pages.Landing)

	limit := cfg.AuthLimiter.Handler()
	authGroup := app.Group("/auth")
	authGroup.Get("/sign-in", cfg.Auth.SignInPage)
	authGroup.Get("/sign-up", cfg.Auth.SignUpPage)
	authGroup.Post("/sign-in", limit, cfg.Auth.SignIn)
	authGroup.Post("/sign-up", limit, cfg.Auth.SignUp)

	// sign-out and refresh must reach signed-in browsers, which the edge
	// gate bounces off /auth, so they live outside the auth prefix.
	app.Post("/session/sign-out", cfg.Auth.SignOut)
	app.Post("/session/refresh", cfg.Auth.Refresh)

	dashboard := app.Group("/dashboard")
	dashboard.Get("/", cfg.Render.Require(), cfg.Pages.Dashboard)
	dashboard.Get("/clients", cfg.Render.Require(), cfg.Pages.Clients)
	dashboard.Get("/stats", cfg.Render.Require(statsRoles...), cfg.Pages.Stats)
	dashboard.Get("/settings", cfg.Render.Require(), cfg.Settings.Get)
	dashboard.Post("/settings", cfg.Render.Require(), cfg.Settings.Save)

	admin := app.Group("/admin", cfg.Render.Require(domain.RoleAdmin))
	admin.Get("/", cfg.Admin.Overview)
	admin.Get("/users", cfg.Admin.Users)
	admin.Get("/analytics", cfg.Admin.Analytics)
	admin.Post("/users/:id/role", cfg.Admin.SetRole)
}
