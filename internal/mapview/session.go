package mapview

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/plugins/media"
	"github.com/memoria-app/memoria/internal/plugins/memories"
	"github.com/memoria-app/memoria/internal/plugins/places"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 32 << 20 // drafts can carry an attachment inline
)

// clientMessage is the envelope for everything the client sends.
type clientMessage struct {
	Type string `json:"type"`

	Click    *ClickPayload      `json:"click,omitempty"`
	MemoryID string             `json:"memory_id,omitempty"`
	Draft    *draftPayload      `json:"draft,omitempty"`
	Query    string             `json:"query,omitempty"`
	Coord    *places.Coordinate `json:"coord,omitempty"`
}

// draftPayload is the wire form of a compose or edit draft. Attachments
// travel inline, base64-encoded.
type draftPayload struct {
	Emotion     string        `json:"emotion"`
	Text        string        `json:"text"`
	Tags        []string      `json:"tags"`
	Media       *mediaPayload `json:"media,omitempty"`
	RemoveMedia bool          `json:"remove_media,omitempty"`
}

type mediaPayload struct {
	Name string `json:"name"`
	Mime string `json:"mime"`
	Data string `json:"data"`
}

// serverMessage is the envelope for everything the server sends.
type serverMessage struct {
	Type string `json:"type"`

	Selection *Selection           `json:"selection,omitempty"`
	Memories  []memories.Memory    `json:"memories,omitempty"`
	Focus     *FocusCommand        `json:"focus,omitempty"`
	Places    []places.PlaceRecord `json:"places,omitempty"`
	Error     *apperror.AppError   `json:"error,omitempty"`
}

// searcher is the slice of the place service the session uses for
// search-as-you-type.
type searcher interface {
	Search(ctx context.Context, origin places.Coordinate, query string, radius int) ([]places.PlaceRecord, error)
}

// Session binds one websocket connection to one Controller. The read pump
// dispatches client events into the controller; the write pump serializes
// state snapshots, search results, and viewport commands back out.
type Session struct {
	conn     *websocket.Conn
	ctl      *Controller
	searcher searcher
	logger   *slog.Logger

	send     chan serverMessage
	focusCh  <-chan FocusCommand
	placeDeb *Debouncer
	textDeb  *Debouncer
}

// NewSession wraps an upgraded connection. focusCh must be the channel
// backing the controller's viewport.
func NewSession(conn *websocket.Conn, ctl *Controller, s searcher, focusCh <-chan FocusCommand, debounce time.Duration, logger *slog.Logger) *Session {
	return &Session{
		conn:     conn,
		ctl:      ctl,
		searcher: s,
		logger:   logger,
		send:     make(chan serverMessage, 32),
		focusCh:  focusCh,
		placeDeb: NewDebouncer(debounce),
		textDeb:  NewDebouncer(debounce),
	}
}

// Run services the connection until the client goes away or ctx is
// cancelled. It blocks; the caller owns the connection's lifetime.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.placeDeb.Stop()
	defer s.textDeb.Stop()

	// The memory list loads before the pumps start so a failure reaches
	// the client as an error frame instead of a silent close.
	if err := s.ctl.Load(ctx); err != nil {
		s.logger.Error("map session load failed", "error", err)
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteJSON(serverMessage{Type: "error", Error: asAppError(err)})
		return
	}

	go s.writePump(ctx, cancel)

	// Initial state snapshot, including the memory list.
	s.pushState(true)

	s.readPump(ctx, cancel)
}

func (s *Session) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("map session closed unexpectedly", "error", err)
			}
			return
		}
		s.dispatch(ctx, msg)
	}
}

// dispatch routes one client message. Controller errors become error
// frames; the selection state frame follows every mutating event so the
// client always converges on the server's view.
func (s *Session) dispatch(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case "map_click":
		if msg.Click != nil {
			s.ctl.HandleMapClick(ctx, *msg.Click)
		}
		s.pushState(false)

	case "marker_click":
		s.ctl.HandleMarkerClick(msg.MemoryID)
		s.pushState(false)

	case "compose_from_place":
		s.reportIfError(s.ctl.ComposeFromPlace())
		s.pushState(false)

	case "start_edit":
		s.reportIfError(s.ctl.StartEdit())
		s.pushState(false)

	case "cancel":
		s.ctl.Cancel()
		s.pushState(false)

	case "save":
		draft, err := decodeDraft(msg.Draft)
		if err == nil {
			_, err = s.ctl.SaveCompose(ctx, draft)
		}
		s.reportIfError(err)
		s.pushState(err == nil)

	case "save_edit":
		draft, err := decodeDraft(msg.Draft)
		if err == nil {
			_, err = s.ctl.SaveEdit(ctx, draft)
		}
		s.reportIfError(err)
		s.pushState(err == nil)

	case "delete":
		err := s.ctl.Delete(ctx)
		s.reportIfError(err)
		s.pushState(err == nil)

	case "place_search":
		s.debouncePlaceSearch(ctx, msg)

	case "memory_search":
		s.debounceMemorySearch(ctx, msg.Query)

	default:
		s.reportIfError(apperror.NewBadRequest("unknown message type " + msg.Type))
	}
}

// debouncePlaceSearch coalesces keystrokes and runs the place search after
// the idle window.
func (s *Session) debouncePlaceSearch(ctx context.Context, msg clientMessage) {
	if msg.Coord == nil {
		s.reportIfError(apperror.NewMissingParameter("coord"))
		return
	}
	origin, query := *msg.Coord, msg.Query
	s.placeDeb.Trigger(func() {
		records, err := s.searcher.Search(ctx, origin, query, 0)
		if err != nil && err != places.ErrNoResults {
			s.reportIfError(apperror.NewUpstream(err))
			return
		}
		s.enqueue(serverMessage{Type: "place_results", Places: records})
	})
}

// debounceMemorySearch coalesces keystrokes and runs the text filter after
// the idle window.
func (s *Session) debounceMemorySearch(ctx context.Context, query string) {
	s.textDeb.Trigger(func() {
		out, err := s.ctl.Search(ctx, memories.Filter{Query: query})
		if err != nil {
			s.reportIfError(err)
			return
		}
		s.enqueue(serverMessage{Type: "memory_results", Memories: out})
	})
}

// pushState sends the current selection, optionally with the full memory
// list when it changed.
func (s *Session) pushState(withList bool) {
	sel := s.ctl.Selection()
	msg := serverMessage{Type: "state", Selection: &sel}
	if withList {
		msg.Memories = s.ctl.Memories()
	}
	s.enqueue(msg)
}

func (s *Session) reportIfError(err error) {
	if err == nil {
		return
	}
	appErr := asAppError(err)
	if appErr.Internal != nil {
		s.logger.Error("map session error", "error", appErr.Internal)
	}
	s.enqueue(serverMessage{Type: "error", Error: appErr})
}

func asAppError(err error) *apperror.AppError {
	if appErr, ok := err.(*apperror.AppError); ok {
		return appErr
	}
	return apperror.NewInternal(err)
}

func (s *Session) enqueue(msg serverMessage) {
	select {
	case s.send <- msg:
	default:
		s.logger.Warn("map session send buffer full, dropping frame", "type", msg.Type)
	}
}

func (s *Session) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-s.ctl.StateChanges():
			s.pushState(false)
		case focus := <-s.focusCh:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(serverMessage{Type: "viewport", Focus: &focus}); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// decodeDraft converts the wire draft into controller input, decoding any
// inline attachment.
func decodeDraft(p *draftPayload) (Draft, error) {
	if p == nil {
		return Draft{}, apperror.NewBadRequest("draft is required")
	}
	draft := Draft{
		Emotion:     memories.Emotion(p.Emotion),
		Text:        p.Text,
		Tags:        p.Tags,
		RemoveMedia: p.RemoveMedia,
	}
	if p.Media != nil {
		data, err := base64.StdEncoding.DecodeString(p.Media.Data)
		if err != nil {
			return Draft{}, apperror.NewBadRequest("attachment is not valid base64")
		}
		draft.Media = &media.UploadInput{
			OriginalName: p.Media.Name,
			MimeType:     p.Media.Mime,
			FileBytes:    data,
		}
	}
	return draft, nil
}
