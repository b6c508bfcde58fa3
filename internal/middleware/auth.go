package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware enforces a static bearer token on the local API. With
// no token configured it is disabled and every request passes through.
type AuthMiddleware struct {
	token string
}

// NewAuthMiddleware returns nil when no token is configured; a nil
// receiver is a pass-through.
func NewAuthMiddleware(token string) *AuthMiddleware {
	if token == "" {
		return nil
	}
	return &AuthMiddleware{token: token}
}

// RequireAuth checks the bearer token on every route except the health
// check and the SSE stream (event streams authenticate via query token
// since EventSource cannot set headers).
func (am *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	if am == nil {
		return c.Next()
	}
	if c.Path() == "/health" {
		return c.Next()
	}

	token := am.extractToken(c)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(am.token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}
	return c.Next()
}

func (am *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}
