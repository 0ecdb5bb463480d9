package memories

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/middleware"
	"github.com/memoria-app/memoria/internal/plugins/auth"
)

// RegisterRoutes sets up the memory REST endpoints. All routes require a
// session; the write endpoints are rate limited because they can carry
// blob uploads.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/api/memories", auth.RequireAuth(authSvc))

	g.GET("", h.List)
	g.GET("/:id", h.Get)

	writeLimit := middleware.RateLimit(30, time.Minute)
	g.POST("", h.Create, writeLimit)
	g.PUT("/:id", h.Update, writeLimit)
	g.DELETE("/:id", h.Delete, writeLimit)
}
