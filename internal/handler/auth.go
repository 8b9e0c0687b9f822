package handler

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// AdminAuth returns a middleware that requires the X-Admin-Pass header to
// match the configured pass. An empty configured pass disables the check,
// which is only sensible for local development.
func AdminAuth(pass string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pass == "" {
			return c.Next()
		}
		got := c.Get("X-Admin-Pass")
		if subtle.ConstantTimeCompare([]byte(got), []byte(pass)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}
