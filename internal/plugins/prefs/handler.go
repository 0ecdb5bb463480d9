package prefs

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/plugins/auth"
)

// Handler exposes the preference endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /api/prefs.
func (h *Handler) Get(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	p, err := h.service.Get(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Update handles PATCH /api/prefs.
func (h *Handler) Update(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	var input UpdateInput
	if err := c.Bind(&input); err != nil {
		return apperror.NewBadRequest("malformed preferences request")
	}
	p, err := h.service.Update(c.Request().Context(), userID, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// RegisterRoutes sets up the preference endpoints.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	g := e.Group("/api/prefs", auth.RequireAuth(authSvc))
	g.GET("", h.Get)
	g.PATCH("", h.Update)
}
