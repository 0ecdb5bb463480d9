package tags

import (
	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/plugins/auth"
)

// RegisterRoutes sets up the tag endpoints. The order route is registered
// before the parameterized routes so "order" never matches as a tag ID.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/api/tags", auth.RequireAuth(authSvc))

	g.GET("", h.List)
	g.GET("/events", h.Events)
	g.POST("", h.Create)
	g.PUT("/order", h.Reorder)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
