package middleware

import (
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
)

// RequireAuth returns a middleware that verifies Firebase session cookies
// and resolves the Guardian row for downstream handlers.
func RequireAuth(authClient *auth.Client, db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Check if Firebase is initialized
			if authClient == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "Auth is not configured")
			}

			// Get the session cookie
			cookie, err := c.Cookie("session")
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not logged in")
			}

			// Verify the session cookie
			decodedToken, err := authClient.VerifySessionCookie(c.Request().Context(), cookie.Value)
			if err != nil {
				// Invalid session, clear cookie
				clearCookie := &http.Cookie{
					Name:     "session",
					Value:    "",
					MaxAge:   -1,
					HttpOnly: true,
					Path:     "/",
				}
				c.SetCookie(clearCookie)
				return echo.NewHTTPError(http.StatusUnauthorized, "Session expired")
			}

			email, _ := decodedToken.Claims["email"].(string)
			if email == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Session has no email claim")
			}

			// Resolve the guardian record for this session
			var guardian models.Guardian
			if err := db.Where("email = ?", email).First(&guardian).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return echo.NewHTTPError(http.StatusForbidden, "No guardian account for this login")
				}
				return err
			}

			c.Set("userUID", decodedToken.UID)
			c.Set("userEmail", email)
			c.Set("guardian", &guardian)

			return next(c)
		}
	}
}

// RequireAdmin restricts a route group to administrators. Must run after
// RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			guardian, ok := c.Get("guardian").(*models.Guardian)
			if !ok || guardian.Role != models.GuardianRoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "Administrator access required")
			}
			return next(c)
		}
	}
}
