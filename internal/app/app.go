// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB pool, Redis client,
// Echo instance) and wires together all plugins.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/config"
	"github.com/memoria-app/memoria/internal/middleware"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis is the Redis client shared for sessions, preferences, and the
	// tag realtime channel.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message; we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's. Rate limiting depends on this.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	// Serve uploaded blobs under the public media prefix.
	e.Static(cfg.Upload.PublicPath, cfg.Upload.MediaPath)

	return app
}

// Start runs the HTTP server on the configured port. Blocks until the
// server stops.
func (a *App) Start() error {
	return a.Echo.Start(fmt.Sprintf(":%d", a.Config.Port))
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: recovery is outermost so it catches panics from everything
// below it.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   []string{a.Config.BaseURL},
		AllowCredentials: true,
	}))
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to a structured JSON body {"error": {"type", "message"}} so
// clients can branch on the machine-readable type.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if the response is already committed.
	if c.Response().Committed {
		return
	}

	appErr := &apperror.AppError{
		Code:    http.StatusInternalServerError,
		Type:    "internal_error",
		Message: "An unexpected error occurred. Please try again.",
	}

	var domainErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &domainErr):
		appErr = domainErr
		if domainErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", domainErr.Type),
				slog.String("message", domainErr.Message),
				slog.Any("internal", domainErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		appErr = &apperror.AppError{Code: echoErr.Code, Type: "http_error", Message: http.StatusText(echoErr.Code)}
		if msg, ok := echoErr.Message.(string); ok {
			appErr.Message = msg
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if writeErr := c.JSON(appErr.Code, map[string]any{"error": appErr}); writeErr != nil {
		slog.Error("writing error response", slog.Any("error", writeErr))
	}
}
