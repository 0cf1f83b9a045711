package auth

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/rescuebite/rescuebite/internal/db"
)

type bootstrapRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

// BootstrapAdmin promotes an existing account to admin. Signup only
// hands out donor/ngo/rider, so the first admin of a deployment comes
// through here, gated on ADMIN_BOOTSTRAP_SECRET. Unset secret means the
// endpoint is off.
func BootstrapAdmin(c echo.Context) error {
	req := new(bootstrapRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	secret := os.Getenv("ADMIN_BOOTSTRAP_SECRET")
	if secret == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "bootstrap disabled"})
	}
	if req.Secret != secret {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid secret"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ct, err := db.Conn.Exec(context.Background(),
		`UPDATE users SET role = 'admin' WHERE email = $1`, req.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to promote user"})
	}
	if ct.RowsAffected() == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no account with that email"})
	}

	log.Printf("[auth] bootstrap promoted %s to admin", req.Email)
	return c.JSON(http.StatusOK, echo.Map{"email": req.Email, "role": "admin"})
}
