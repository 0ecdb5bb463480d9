package mapview

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/config"
	"github.com/memoria-app/memoria/internal/plugins/auth"
	"github.com/memoria-app/memoria/internal/plugins/memories"
	"github.com/memoria-app/memoria/internal/plugins/places"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin is enforced by the CORS layer; the session already gates
	// this endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades map session connections.
type Handler struct {
	store  memories.Service
	places *places.Service
	cfg    config.MapConfig
	logger *slog.Logger
}

func NewHandler(store memories.Service, placeSvc *places.Service, cfg config.MapConfig, logger *slog.Logger) *Handler {
	return &Handler{store: store, places: placeSvc, cfg: cfg, logger: logger}
}

// Connect handles GET /api/map/session. The optional device query
// parameter ("compact" or "regular") picks the focus padding profile.
func (h *Handler) Connect(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	device := DeviceRegular
	if c.QueryParam("device") == string(DeviceCompact) {
		device = DeviceCompact
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return apperror.NewBadRequest("websocket upgrade failed")
	}
	defer conn.Close()

	viewport, focusCh := NewChannelViewport(8)
	ctl := NewController(userID, device, h.store, h.places, viewport, h.cfg, h.logger)

	session := NewSession(conn, ctl, h.places, focusCh, h.cfg.SearchDebounce, h.logger)
	session.Run(c.Request().Context())
	return nil
}

// RegisterRoutes sets up the map session endpoint.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	e.GET("/api/map/session", h.Connect, auth.RequireAuth(authSvc))
}
