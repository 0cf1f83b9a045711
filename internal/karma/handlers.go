package karma

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rescuebite/rescuebite/internal/db"
)

// HandleLeaderboard serves the community rider leaderboard.
// GET /community/leaderboard?limit=10
func HandleLeaderboard(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := Leaderboard(c.Request().Context(), db.Conn, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load leaderboard"})
	}
	return c.JSON(http.StatusOK, echo.Map{"leaderboard": entries})
}
