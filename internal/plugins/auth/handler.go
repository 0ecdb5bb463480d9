package auth

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/config"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	service AuthService
	cfg     config.AuthConfig
	secure  bool
}

// NewHandler creates an auth handler. Cookies are marked Secure outside of
// development.
func NewHandler(service AuthService, cfg config.AuthConfig, production bool) *Handler {
	return &Handler{service: service, cfg: cfg, secure: production}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("malformed registration request")
	}
	if err := validateRegistration(req); err != nil {
		return err
	}

	user, err := h.service.Register(c.Request().Context(), RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// Login handles POST /api/auth/login. The session token is set as an
// HTTP-only cookie and also returned in the body for non-browser clients.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("malformed login request")
	}
	if req.Email == "" || req.Password == "" {
		return apperror.NewValidation("email and password are required")
	}

	token, user, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	setSessionCookie(c, token, int(h.cfg.SessionTTL.Seconds()), h.secure)
	return c.JSON(http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		if err := h.service.DestroySession(c.Request().Context(), token); err != nil {
			return err
		}
	}
	clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /api/auth/me, returning the current session.
func (h *Handler) Me(c echo.Context) error {
	session, err := GetSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func validateRegistration(req RegisterRequest) error {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperror.NewValidation("a valid email address is required")
	}
	name := strings.TrimSpace(req.DisplayName)
	if len(name) < 2 || len(name) > 100 {
		return apperror.NewValidation("display name must be between 2 and 100 characters")
	}
	if len(req.Password) < 8 || len(req.Password) > 128 {
		return apperror.NewValidation("password must be between 8 and 128 characters")
	}
	return nil
}
