package identity

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const sessionKey = "identity_session"

// SessionMiddleware parses the provider session carried by the request into
// locals. Missing, malformed or expired tokens leave the request anonymous.
func SessionMiddleware(verifier *TokenVerifier, accessCookie, refreshCookie string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(accessCookie)
		}
		if token == "" {
			return c.Next()
		}

		session, err := verifier.SessionFromToken(token)
		if err != nil {
			return c.Next()
		}
		session.RefreshToken = c.Cookies(refreshCookie)
		c.Locals(sessionKey, session)
		return c.Next()
	}
}

// SessionFromLocals retrieves the session snapshot of the request, if any.
func SessionFromLocals(c *fiber.Ctx) (*Session, bool) {
	session, ok := c.Locals(sessionKey).(*Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
