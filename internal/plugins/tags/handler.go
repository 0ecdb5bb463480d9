package tags

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/plugins/auth"
)

// Handler exposes the tag REST surface plus the realtime event stream.
type Handler struct {
	service TagService
	redis   *redis.Client
	logger  *slog.Logger
}

func NewHandler(service TagService, redisClient *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{service: service, redis: redisClient, logger: logger}
}

type createRequest struct {
	Name       string `json:"name"`
	IsFavorite bool   `json:"is_favorite"`
}

type updateRequest struct {
	Name       string `json:"name"`
	IsFavorite bool   `json:"is_favorite"`
}

type reorderRequest struct {
	Order []string `json:"order"`
}

// Create handles POST /api/tags.
func (h *Handler) Create(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("malformed tag request")
	}

	tag, err := h.service.Create(c.Request().Context(), CreateInput{
		UserID:     userID,
		Name:       req.Name,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tag)
}

// List handles GET /api/tags.
func (h *Handler) List(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	out, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"tags": out})
}

// Update handles PUT /api/tags/:id.
func (h *Handler) Update(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("malformed tag request")
	}

	tag, err := h.service.Update(c.Request().Context(), userID, c.Param("id"), UpdateInput{
		Name:       req.Name,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tag)
}

// Reorder handles PUT /api/tags/order.
func (h *Handler) Reorder(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("malformed reorder request")
	}
	if err := h.service.Reorder(c.Request().Context(), userID, req.Order); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete handles DELETE /api/tags/:id.
func (h *Handler) Delete(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer; the session cookie or bearer
	// token already gates this endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Events handles GET /api/tags/events: a websocket relay of the user's tag
// channel. The connection carries server-to-client events only; anything
// the client sends besides control frames is discarded.
func (h *Handler) Events(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return apperror.NewBadRequest("websocket upgrade failed")
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Read pump: we only care about the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := Subscribe(ctx, h.redis, userID)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("tag event relay closed", "user_id", userID, "error", err)
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
