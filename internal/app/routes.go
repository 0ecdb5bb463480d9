package app

import (
	"fmt"
	"log/slog"

	"github.com/memoria-app/memoria/internal/mapview"
	"github.com/memoria-app/memoria/internal/plugins/auth"
	"github.com/memoria-app/memoria/internal/plugins/media"
	"github.com/memoria-app/memoria/internal/plugins/memories"
	"github.com/memoria-app/memoria/internal/plugins/places"
	"github.com/memoria-app/memoria/internal/plugins/prefs"
	"github.com/memoria-app/memoria/internal/plugins/tags"
)

// RegisterRoutes constructs every plugin's repository, service, and handler
// and mounts their routes. This is the single place where the dependency
// graph is assembled.
func RegisterRoutes(a *App) error {
	logger := slog.Default()

	// Auth: argon2id password hashing, Redis-backed sessions.
	userRepo := auth.NewUserRepository(a.DB)
	authSvc := auth.NewAuthService(userRepo, a.Redis, a.Config.Auth.SessionTTL)
	auth.RegisterRoutes(a.Echo, auth.NewHandler(authSvc, a.Config.Auth, a.Config.IsProduction()), authSvc)

	// Places: upstream proxy, resolver, reverse geocoding.
	placeSvc, err := places.NewService(a.Config.Places, logger)
	if err != nil {
		return fmt.Errorf("building place service: %w", err)
	}
	places.RegisterRoutes(a.Echo, places.NewHandler(placeSvc), authSvc)

	// Media: filesystem blob store serving the memory attachments.
	blobs := media.NewDiskStore(
		a.Config.Upload.MediaPath,
		a.Config.BaseURL+a.Config.Upload.PublicPath,
		a.Config.Upload.MaxSize,
	)

	// Memories: the core domain.
	memoryRepo := memories.NewRepository(a.DB)
	memorySvc := memories.NewService(memoryRepo, blobs, placeSvc, logger)
	memories.RegisterRoutes(a.Echo, memories.NewHandler(memorySvc), authSvc)

	// Tags: vocabulary plus the realtime channel.
	tagRepo := tags.NewRepository(a.DB)
	tagSvc := tags.NewService(tagRepo, tags.NewNotifier(a.Redis, logger))
	tags.RegisterRoutes(a.Echo, tags.NewHandler(tagSvc, a.Redis, logger), authSvc)

	// Preferences: per-user sort orders.
	prefs.RegisterRoutes(a.Echo, prefs.NewHandler(prefs.NewService(a.Redis)), authSvc)

	// Map sessions: the interactive selection state machine over websocket.
	mapview.RegisterRoutes(a.Echo, mapview.NewHandler(memorySvc, placeSvc, a.Config.Map, logger), authSvc)

	return nil
}
