package auth

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/rescuebite/rescuebite/internal/alerts"
	"github.com/rescuebite/rescuebite/internal/db"
)

type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required"`
}

type SignupResponse struct {
	Token string `json:"token"`
}

var signupRoles = map[string]bool{
	"donor": true,
	"ngo":   true,
	"rider": true,
}

// ===== Signup =====
func Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if !signupRoles[req.Role] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be donor, ngo or rider"})
	}
	if len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too short"})
	}

	// Hash password
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}

	conn := db.Conn
	ctx := context.Background()

	var userID string
	err = conn.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, uuid.New().String(), req.Name, req.Email, string(hashed), req.Role).Scan(&userID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already exists"})
	}

	// Welcome email is best-effort; signup never fails on it.
	_ = alerts.EnqueueWelcomeEmail(userID, req.Email, req.Name)

	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    req.Role,
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}

	return c.JSON(http.StatusOK, SignupResponse{Token: signed})
}
