package shell

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/artisansflow/portal/internal/identity"
)

const contextKey = "browser_context"

// CookieOptions controls the browser context cookie.
type CookieOptions struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Middleware mounts the browser context of every request, assigning a new
// context id cookie when the browser has none. It must run after
// identity.SessionMiddleware.
func Middleware(registry *Registry, opts CookieOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(opts.Name)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     opts.Name,
				Value:    id,
				Path:     "/",
				Expires:  time.Now().Add(opts.TTL),
				HTTPOnly: true,
				Secure:   opts.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		snapshot, _ := identity.SessionFromLocals(c)
		c.Locals(contextKey, registry.Mount(c.UserContext(), id, snapshot))
		return c.Next()
	}
}

// FromLocals returns the browser context mounted for the request.
func FromLocals(c *fiber.Ctx) (*Context, bool) {
	bc, ok := c.Locals(contextKey).(*Context)
	return bc, ok && bc != nil
}
