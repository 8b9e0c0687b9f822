package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(pass string) *fiber.App {
	app := fiber.New()
	app.Use(AdminAuth(pass))
	app.Get("/api/players", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAdminAuth_CorrectPass(t *testing.T) {
	app := newAuthApp("s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/players", nil)
	req.Header.Set("X-Admin-Pass", "s3cret")
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminAuth_WrongPass(t *testing.T) {
	app := newAuthApp("s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/players", nil)
	req.Header.Set("X-Admin-Pass", "wrong")
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminAuth_MissingHeader(t *testing.T) {
	app := newAuthApp("s3cret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/players", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminAuth_EmptyPassDisablesCheck(t *testing.T) {
	app := newAuthApp("")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/players", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
