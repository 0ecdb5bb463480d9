package mapview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/config"
	"github.com/memoria-app/memoria/internal/plugins/media"
	"github.com/memoria-app/memoria/internal/plugins/memories"
	"github.com/memoria-app/memoria/internal/plugins/places"
)

// placeResolver is the slice of the place service the controller needs.
type placeResolver interface {
	Resolve(ctx context.Context, coord places.Coordinate, name string) places.PlaceRecord
}

// Draft is the compose or edit panel contents submitted by the client.
type Draft struct {
	Emotion     memories.Emotion
	Text        string
	Tags        []string
	Media       *media.UploadInput
	RemoveMedia bool
}

// Controller drives one map session. It owns the selection slot, the
// session's in-memory list of the user's memories, and the save, update,
// and delete flows. All methods are safe for concurrent use; the selection
// slot is the only synchronization needed because entering a state always
// overwrites it whole.
//
// Failed writes leave the selection where the user left it: a save that
// errors keeps the compose panel open with the draft intact.
type Controller struct {
	mu      sync.Mutex
	sel     Selection
	list    []memories.Memory
	stateCh chan struct{}

	userID   string
	device   DeviceClass
	store    memories.Service
	resolver placeResolver
	viewport Viewport
	cfg      config.MapConfig
	logger   *slog.Logger
}

// NewController creates a controller for one authenticated map session.
func NewController(userID string, device DeviceClass, store memories.Service, resolver placeResolver, viewport Viewport, cfg config.MapConfig, logger *slog.Logger) *Controller {
	return &Controller{
		sel:      Idle(),
		stateCh:  make(chan struct{}, 1),
		userID:   userID,
		device:   device,
		store:    store,
		resolver: resolver,
		viewport: viewport,
		cfg:      cfg,
		logger:   logger,
	}
}

// StateChanges signals selection transitions that happen outside a client
// event, like an async place resolution landing. The channel is buffered and
// coalescing; consumers re-read the selection, so one pending signal is
// enough however many transitions it covers.
func (ctl *Controller) StateChanges() <-chan struct{} {
	return ctl.stateCh
}

func (ctl *Controller) notifyStateChange() {
	select {
	case ctl.stateCh <- struct{}{}:
	default:
	}
}

// Selection returns the current selection.
func (ctl *Controller) Selection() Selection {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.sel
}

// Memories returns the session's memory list.
func (ctl *Controller) Memories() []memories.Memory {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	out := make([]memories.Memory, len(ctl.list))
	copy(out, ctl.list)
	return out
}

// Load fetches the user's memories into the session list.
func (ctl *Controller) Load(ctx context.Context) error {
	list, err := ctl.store.List(ctx, ctl.userID, memories.Filter{})
	if err != nil {
		return err
	}
	ctl.mu.Lock()
	ctl.list = list
	ctl.mu.Unlock()
	return nil
}

// Search runs a filtered listing without touching the selection or the
// session list.
func (ctl *Controller) Search(ctx context.Context, f memories.Filter) ([]memories.Memory, error) {
	return ctl.store.List(ctx, ctl.userID, f)
}

// HandleMapClick classifies a raw map click and transitions the selection.
//
// Clicks on our own marker or popup elements are suppressed entirely; the
// marker's own handler fires instead. A click on a recognized point of
// interest opens the place inspector, except that tapping the same POI
// again dismisses it. Any other click is empty ground and opens the compose
// panel there directly, whatever state was active before.
func (ctl *Controller) HandleMapClick(ctx context.Context, click ClickPayload) {
	if click.OnMarkerDOM {
		return
	}

	name := poiName(click.Features)

	ctl.mu.Lock()
	if name == "" {
		ctl.sel = ComposingAt(click.Coord, nil)
		ctl.mu.Unlock()
		return
	}

	if ctl.sel.Mode() == ModeInspectingPlace && ctl.sel.InspectedPlace().Name == name {
		ctl.sel = Idle()
		ctl.mu.Unlock()
		return
	}

	ctl.sel = InspectingPOI(click.Coord, name)
	ctl.mu.Unlock()

	go ctl.resolveInspected(ctx, click.Coord, name)
}

// resolveInspected runs the place lookup for an inspected POI and installs
// the result if the user is still looking at the same place. Installing
// signals StateChanges so the session pushes the resolved frame without
// waiting for another client event.
func (ctl *Controller) resolveInspected(ctx context.Context, coord places.Coordinate, name string) {
	record := ctl.resolver.Resolve(ctx, coord, name)

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.sel.Mode() != ModeInspectingPlace || !ctl.sel.Searching() || ctl.sel.InspectedPlace().Name != name {
		return
	}
	ctl.sel = InspectingResolved(coord, &record)
	ctl.notifyStateChange()
}

// HandleMarkerClick opens a saved memory and frames its coordinate.
func (ctl *Controller) HandleMarkerClick(memoryID string) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	for _, m := range ctl.list {
		if m.ID == memoryID {
			ctl.sel = ViewingMemory(memoryID)
			ctl.viewport.Focus(places.Coordinate{Lat: m.Lat, Lng: m.Lng}, ctl.cfg.FocusZoom, PaddingFor(ctl.device))
			return
		}
	}
}

// ComposeFromPlace moves from inspecting a place to composing a memory
// there, carrying the resolved record as the compose-time snapshot.
func (ctl *Controller) ComposeFromPlace() error {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	if ctl.sel.Mode() != ModeInspectingPlace {
		return apperror.NewBadRequest("no place is being inspected")
	}
	ctl.sel = ComposingAt(ctl.sel.Coord(), ctl.sel.InspectedPlace())
	return nil
}

// StartEdit moves from viewing a memory to editing it.
func (ctl *Controller) StartEdit() error {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	if ctl.sel.Mode() != ModeViewing {
		return apperror.NewBadRequest("no memory is being viewed")
	}
	ctl.sel = EditingMemory(ctl.sel.MemoryID())
	return nil
}

// Cancel abandons the current panel and returns to idle.
func (ctl *Controller) Cancel() {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.sel = Idle()
}

// SaveCompose persists the composed memory. The place snapshot is the hint
// captured when composing started, used verbatim. On success the new entry
// goes to the front of the session list, the viewport reframes onto it, and the
// selection returns to idle. On failure the compose panel stays open.
func (ctl *Controller) SaveCompose(ctx context.Context, draft Draft) (*memories.Memory, error) {
	ctl.mu.Lock()
	if ctl.sel.Mode() != ModeComposing {
		ctl.mu.Unlock()
		return nil, apperror.NewBadRequest("nothing is being composed")
	}
	coord := ctl.sel.Coord()
	hint := ctl.sel.PlaceHint()
	ctl.mu.Unlock()

	m, err := ctl.store.Create(ctx, memories.CreateInput{
		UserID:  ctl.userID,
		Emotion: draft.Emotion,
		Text:    draft.Text,
		Lat:     coord.Lat,
		Lng:     coord.Lng,
		Tags:    draft.Tags,
		Place:   hint,
		Media:   draft.Media,
	})
	if err != nil {
		return nil, err
	}

	ctl.mu.Lock()
	ctl.list = append([]memories.Memory{*m}, ctl.list...)
	ctl.sel = Idle()
	ctl.mu.Unlock()

	ctl.viewport.Focus(coord, ctl.cfg.FocusZoom, PaddingFor(ctl.device))
	return m, nil
}

// SaveEdit persists edits to the selected memory. On success the session
// list entry is replaced and the selection returns to idle; on failure the
// edit panel stays open.
func (ctl *Controller) SaveEdit(ctx context.Context, draft Draft) (*memories.Memory, error) {
	ctl.mu.Lock()
	if ctl.sel.Mode() != ModeEditing {
		ctl.mu.Unlock()
		return nil, apperror.NewBadRequest("nothing is being edited")
	}
	id := ctl.sel.MemoryID()
	ctl.mu.Unlock()

	m, err := ctl.store.Update(ctx, ctl.userID, id, memories.UpdateInput{
		Emotion:     draft.Emotion,
		Text:        draft.Text,
		Tags:        draft.Tags,
		Media:       draft.Media,
		RemoveMedia: draft.RemoveMedia,
	})
	if err != nil {
		return nil, err
	}

	ctl.mu.Lock()
	for i := range ctl.list {
		if ctl.list[i].ID == id {
			ctl.list[i] = *m
			break
		}
	}
	ctl.sel = Idle()
	ctl.mu.Unlock()
	return m, nil
}

// Delete removes the viewed memory. The session list drops the entry only
// when the row delete succeeds; a failed delete leaves both the list and
// the selection untouched so the UI stays truthful.
func (ctl *Controller) Delete(ctx context.Context) error {
	ctl.mu.Lock()
	if ctl.sel.Mode() != ModeViewing {
		ctl.mu.Unlock()
		return apperror.NewBadRequest("no memory is being viewed")
	}
	id := ctl.sel.MemoryID()
	ctl.mu.Unlock()

	if err := ctl.store.Delete(ctx, ctl.userID, id); err != nil {
		return err
	}

	ctl.mu.Lock()
	for i := range ctl.list {
		if ctl.list[i].ID == id {
			ctl.list = append(ctl.list[:i], ctl.list[i+1:]...)
			break
		}
	}
	ctl.sel = Idle()
	ctl.mu.Unlock()
	return nil
}
