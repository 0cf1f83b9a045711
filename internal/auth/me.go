package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rescuebite/rescuebite/internal/db"
	"github.com/rescuebite/rescuebite/internal/karma"
)

// Me returns the currently authenticated user's profile along with
// karma and impact counters.
func Me(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var (
		id, name, email, role                string
		karmaPoints, mealsSaved, mealsGotten int64
	)
	err := db.Conn.QueryRow(context.Background(),
		`SELECT id, name, email, role, karma, meals_saved, meals_received FROM users WHERE id=$1`, userID).
		Scan(&id, &name, &email, &role, &karmaPoints, &mealsSaved, &mealsGotten)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":             id,
		"name":           name,
		"email":          email,
		"role":           role,
		"karma":          karmaPoints,
		"rescues":        karmaPoints / karma.DeliveryPoints,
		"meals_saved":    mealsSaved,
		"meals_received": mealsGotten,
	})
}
