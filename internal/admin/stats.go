package admin

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rescuebite/rescuebite/internal/db"
)

// GET /admin/stats
func Stats(c echo.Context) error {
    ctx := context.Background()

    var users, listings, active, completed, expired int
    var mealsSaved int64

    _ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users)
    _ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&listings)
    _ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE status IN ('available','claimed','accepted','transit')`).Scan(&active)
    _ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE status = 'completed'`).Scan(&completed)
    _ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE status = 'expired'`).Scan(&expired)
    _ = db.Conn.QueryRow(ctx, `SELECT COALESCE(SUM(qty_value), 0) FROM listings WHERE status = 'completed'`).Scan(&mealsSaved)

    return c.JSON(http.StatusOK, echo.Map{
        "users":             users,
        "listings":          listings,
        "active_rescues":    active,
        "completed_rescues": completed,
        "expired_listings":  expired,
        "meals_saved":       mealsSaved,
    })
}
