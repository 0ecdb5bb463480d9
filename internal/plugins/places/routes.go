package places

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/middleware"
	"github.com/memoria-app/memoria/internal/plugins/auth"
)

// RegisterRoutes sets up the place proxy endpoints. Both are rate limited
// because every hit can fan out to the metered upstream API.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/api/places",
		auth.RequireAuth(authSvc),
		middleware.RateLimit(60, time.Minute),
	)
	g.GET("/search", h.Search)
	g.GET("/:place_id", h.Detail)
}
