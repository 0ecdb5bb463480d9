package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/middleware"
)

// RegisterRoutes sets up the auth endpoints. Login and register are
// rate-limited to slow brute-force and credential stuffing attempts.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	g := e.Group("/api/auth")

	g.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me, RequireAuth(service))
}
