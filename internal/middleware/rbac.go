package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRoles restricts a route to the given rescue roles.
// Usage: route(..., RequireRoles("ngo")) for claim endpoints,
// RequireRoles("rider") for the pickup/delivery flow.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no role on token"})
			}

			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "requires " + strings.Join(roles, " or ") + " role",
			})
		}
	}
}
