package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(token string) *fiber.App {
	app := fiber.New()
	auth := NewAuthMiddleware(token)
	app.Use(auth.RequireAuth)
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/v1/stats", func(c *fiber.Ctx) error { return c.SendString("stats") })
	return app
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	assert.Nil(t, NewAuthMiddleware(""))

	app := newAuthApp("")
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthRequiresBearerToken(t *testing.T) {
	app := newAuthApp("secret")

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthAcceptsQueryTokenForEventStreams(t *testing.T) {
	app := newAuthApp("secret")

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/stats?token=secret", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthExemptsHealthCheck(t *testing.T) {
	app := newAuthApp("secret")

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
