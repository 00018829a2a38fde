package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// ShopifyAdminOrigin is where embedded app frames are served from.
const ShopifyAdminOrigin = "https://admin.shopify.com"

// CORS allows the listed origins to call the admin API. An empty list allows any origin.
func CORS(allowedOrigins ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if len(allowed) == 0 {
			c.Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			c.Set("Access-Control-Allow-Origin", origin)
			c.Vary(fiber.HeaderOrigin)
		}
		c.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Set("Access-Control-Expose-Headers", "Content-Length, Content-Type, Location, X-Request-ID")
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
