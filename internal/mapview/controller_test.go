package mapview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/memoria-app/memoria/internal/config"
	"github.com/memoria-app/memoria/internal/plugins/memories"
	"github.com/memoria-app/memoria/internal/plugins/places"
)

// --- Mocks ---

// mockStore implements memories.Service for testing.
type mockStore struct {
	createFn func(ctx context.Context, input memories.CreateInput) (*memories.Memory, error)
	updateFn func(ctx context.Context, userID, id string, input memories.UpdateInput) (*memories.Memory, error)
	deleteFn func(ctx context.Context, userID, id string) error
	listFn   func(ctx context.Context, userID string, f memories.Filter) ([]memories.Memory, error)
}

func (m *mockStore) Create(ctx context.Context, input memories.CreateInput) (*memories.Memory, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return &memories.Memory{
		ID:      uuid.NewString(),
		UserID:  input.UserID,
		Emotion: input.Emotion,
		Text:    input.Text,
		Lat:     input.Lat,
		Lng:     input.Lng,
		Tags:    input.Tags,
	}, nil
}

func (m *mockStore) Get(ctx context.Context, userID, id string) (*memories.Memory, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) List(ctx context.Context, userID string, f memories.Filter) ([]memories.Memory, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, f)
	}
	return []memories.Memory{}, nil
}

func (m *mockStore) Update(ctx context.Context, userID, id string, input memories.UpdateInput) (*memories.Memory, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, input)
	}
	return &memories.Memory{ID: id, UserID: userID, Emotion: input.Emotion, Text: input.Text, Tags: input.Tags}, nil
}

func (m *mockStore) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

// blockingResolver lets tests control when the place lookup completes.
type blockingResolver struct {
	mu      sync.Mutex
	release chan struct{}
	record  places.PlaceRecord
}

func newBlockingResolver(record places.PlaceRecord) *blockingResolver {
	return &blockingResolver{release: make(chan struct{}), record: record}
}

func (r *blockingResolver) Resolve(ctx context.Context, coord places.Coordinate, name string) places.PlaceRecord {
	<-r.release
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

// immediateResolver resolves synchronously, echoing the query name when no
// canned record is set, like the real resolver's degraded path.
type immediateResolver struct {
	record places.PlaceRecord
}

func (r immediateResolver) Resolve(ctx context.Context, coord places.Coordinate, name string) places.PlaceRecord {
	if r.record.Name == "" {
		return places.PlaceRecord{Name: name, Lat: coord.Lat, Lng: coord.Lng}
	}
	return r.record
}

// recordingViewport collects focus commands.
type recordingViewport struct {
	mu    sync.Mutex
	calls []FocusCommand
}

func (v *recordingViewport) Focus(coord places.Coordinate, zoom float64, padding Padding) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, FocusCommand{Coord: coord, Zoom: zoom, Padding: padding})
}

func (v *recordingViewport) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.calls)
}

func testConfig() config.MapConfig {
	return config.MapConfig{FocusZoom: 15, SearchDebounce: 10 * time.Millisecond}
}

func newTestController(store memories.Service, resolver placeResolver, viewport Viewport) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewController("user-1", DeviceCompact, store, resolver, viewport, testConfig(), logger)
}

func groundClick(lat, lng float64) ClickPayload {
	return ClickPayload{Coord: places.Coordinate{Lat: lat, Lng: lng}}
}

func poiClick(lat, lng float64, name string) ClickPayload {
	return ClickPayload{
		Coord:    places.Coordinate{Lat: lat, Lng: lng},
		Features: []Feature{{Properties: map[string]string{"name_ja": name}}},
	}
}

// assertExclusive fails if more than one selection target is populated.
func assertExclusive(t *testing.T, sel Selection) {
	t.Helper()
	populated := 0
	if sel.Mode() == ModeComposing {
		populated++
	}
	if sel.MemoryID() != "" {
		populated++
	}
	if sel.InspectedPlace() != nil {
		populated++
	}
	if populated > 1 {
		t.Fatalf("selection holds %d targets at once: %+v", populated, sel)
	}
}

// --- State machine ---

func TestGroundClickOpensCompose(t *testing.T) {
	ctl := newTestController(&mockStore{}, immediateResolver{}, &recordingViewport{})

	ctl.HandleMapClick(context.Background(), groundClick(35.0, 139.0))

	sel := ctl.Selection()
	if sel.Mode() != ModeComposing {
		t.Fatalf("expected composing, got %s", sel.Mode())
	}
	if sel.Coord().Lat != 35.0 || sel.Coord().Lng != 139.0 {
		t.Errorf("compose anchored at wrong coordinate: %+v", sel.Coord())
	}
	if sel.PlaceHint() != nil {
		t.Error("empty ground compose must carry no place hint")
	}
	assertExclusive(t, sel)
}

func TestMarkerDOMClickIsSuppressed(t *testing.T) {
	ctl := newTestController(&mockStore{}, immediateResolver{}, &recordingViewport{})

	click := groundClick(35.0, 139.0)
	click.OnMarkerDOM = true
	ctl.HandleMapClick(context.Background(), click)

	if got := ctl.Selection().Mode(); got != ModeIdle {
		t.Fatalf("marker DOM clicks must not enter any selection state, got %s", got)
	}

	// Same suppression when a POI feature is also under the tap point.
	click = poiClick(35.0, 139.0, "駅前食堂")
	click.OnMarkerDOM = true
	ctl.HandleMapClick(context.Background(), click)

	if got := ctl.Selection().Mode(); got != ModeIdle {
		t.Fatalf("marker DOM clicks must not enter any selection state, got %s", got)
	}
}

func TestPOIClickInspectsThenResolves(t *testing.T) {
	resolver := newBlockingResolver(places.PlaceRecord{PlaceID: "p-1", Name: "駅前食堂", Rating: 4.2})
	ctl := newTestController(&mockStore{}, resolver, &recordingViewport{})

	ctl.HandleMapClick(context.Background(), poiClick(35.0, 139.0, "駅前食堂"))

	sel := ctl.Selection()
	if sel.Mode() != ModeInspectingPlace || !sel.Searching() {
		t.Fatalf("expected pending inspection, got %+v", sel)
	}
	if sel.InspectedPlace().Name != "駅前食堂" {
		t.Errorf("placeholder must carry the tapped name, got %q", sel.InspectedPlace().Name)
	}

	close(resolver.release)
	waitFor(t, func() bool {
		s := ctl.Selection()
		return s.Mode() == ModeInspectingPlace && !s.Searching()
	})

	sel = ctl.Selection()
	if sel.InspectedPlace().PlaceID != "p-1" || sel.InspectedPlace().Rating != 4.2 {
		t.Errorf("resolved record not installed: %+v", sel.InspectedPlace())
	}
}

func TestSamePOITwiceDismisses(t *testing.T) {
	ctl := newTestController(&mockStore{}, immediateResolver{record: places.PlaceRecord{Name: "駅前食堂"}}, &recordingViewport{})

	ctl.HandleMapClick(context.Background(), poiClick(35.0, 139.0, "駅前食堂"))
	if ctl.Selection().Mode() != ModeInspectingPlace {
		t.Fatal("first click must inspect")
	}

	ctl.HandleMapClick(context.Background(), poiClick(35.0, 139.0, "駅前食堂"))
	if got := ctl.Selection().Mode(); got != ModeIdle {
		t.Fatalf("second click on the same POI must dismiss, got %s", got)
	}
}

func TestDifferentPOISupersedes(t *testing.T) {
	ctl := newTestController(&mockStore{}, immediateResolver{}, &recordingViewport{})

	ctl.HandleMapClick(context.Background(), poiClick(35.0, 139.0, "駅前食堂"))
	ctl.HandleMapClick(context.Background(), poiClick(35.1, 139.1, "本屋"))

	sel := ctl.Selection()
	if sel.Mode() != ModeInspectingPlace || sel.InspectedPlace().Name != "本屋" {
		t.Fatalf("expected inspection of the second POI, got %+v", sel)
	}
	assertExclusive(t, sel)
}

func TestStaleResolveDoesNotOverwrite(t *testing.T) {
	resolver := newBlockingResolver(places.PlaceRecord{PlaceID: "p-1", Name: "駅前食堂"})
	ctl := newTestController(&mockStore{}, resolver, &recordingViewport{})

	ctl.HandleMapClick(context.Background(), poiClick(35.0, 139.0, "駅前食堂"))
	// User moves on before the lookup lands.
	ctl.HandleMapClick(context.Background(), groundClick(36.0, 140.0))
	close(resolver.release)

	time.Sleep(20 * time.Millisecond)
	if got := ctl.Selection().Mode(); got != ModeComposing {
		t.Fatalf("stale resolution must not clobber the new state, got %s", got)
	}
}

func TestMarkerClickViewsAndFocuses(t *testing.T) {
	store := &mockStore{
		listFn: func(ctx context.Context, userID string, f memories.Filter) ([]memories.Memory, error) {
			return []memories.Memory{{ID: "m-1", Lat: 35.5, Lng: 139.5}}, nil
		},
	}
	viewport := &recordingViewport{}
	ctl := newTestController(store, immediateResolver{}, viewport)
	if err := ctl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctl.HandleMarkerClick("m-1")

	sel := ctl.Selection()
	if sel.Mode() != ModeViewing || sel.MemoryID() != "m-1" {
		t.Fatalf("expected viewing m-1, got %+v", sel)
	}
	if viewport.count() != 1 {
		t.Errorf("expected one focus command, got %d", viewport.count())
	}
	assertExclusive(t, sel)
}

func TestUnknownMarkerClickIsIgnored(t *testing.T) {
	ctl := newTestController(&mockStore{}, immediateResolver{}, &recordingViewport{})

	ctl.HandleMarkerClick("no-such-memory")
	if got := ctl.Selection().Mode(); got != ModeIdle {
		t.Fatalf("unknown marker must not change state, got %s", got)
	}
}

func TestComposeFromInspectedPlaceCarriesHint(t *testing.T) {
	ctl := newTestController(&mockStore{}, immediateResolver{record: places.PlaceRecord{PlaceID: "p-1", Name: "駅前食堂"}}, &recordingViewport{})

	ctl.HandleMapClick(context.Background(), poiClick(35.0, 139.0, "駅前食堂"))
	waitFor(t, func() bool { return !ctl.Selection().Searching() })

	if err := ctl.ComposeFromPlace(); err != nil {
		t.Fatalf("ComposeFromPlace: %v", err)
	}

	sel := ctl.Selection()
	if sel.Mode() != ModeComposing {
		t.Fatalf("expected composing, got %s", sel.Mode())
	}
	if sel.PlaceHint() == nil || sel.PlaceHint().PlaceID != "p-1" {
		t.Errorf("compose must carry the resolved place as hint: %+v", sel.PlaceHint())
	}
}

// --- Save / edit / delete flows ---

func TestSaveComposeAppendsAndFocuses(t *testing.T) {
	viewport := &recordingViewport{}
	ctl := newTestController(&mockStore{}, immediateResolver{}, viewport)

	ctl.HandleMapClick(context.Background(), groundClick(35.6895, 139.6917))
	before := len(ctl.Memories())

	m, err := ctl.SaveCompose(context.Background(), Draft{
		Emotion: memories.EmotionHappy,
		Text:    "hello",
		Tags:    []string{"旅行"},
	})
	if err != nil {
		t.Fatalf("SaveCompose: %v", err)
	}

	if got := ctl.Selection().Mode(); got != ModeIdle {
		t.Fatalf("successful save must return to idle, got %s", got)
	}
	if len(ctl.Memories()) != before+1 {
		t.Fatalf("list must grow by exactly one: %d -> %d", before, len(ctl.Memories()))
	}
	if m.MediaURL != "" {
		t.Errorf("no-media save must produce a row without media, got %q", m.MediaURL)
	}
	if viewport.count() != 1 {
		t.Errorf("expected one focus command after save, got %d", viewport.count())
	}
}

func TestSaveFailureKeepsComposeOpen(t *testing.T) {
	store := &mockStore{
		createFn: func(ctx context.Context, input memories.CreateInput) (*memories.Memory, error) {
			return nil, errors.New("insert failed")
		},
	}
	viewport := &recordingViewport{}
	ctl := newTestController(store, immediateResolver{}, viewport)

	ctl.HandleMapClick(context.Background(), groundClick(35.0, 139.0))
	_, err := ctl.SaveCompose(context.Background(), Draft{Emotion: memories.EmotionHappy, Text: "x"})
	if err == nil {
		t.Fatal("expected error")
	}

	sel := ctl.Selection()
	if sel.Mode() != ModeComposing {
		t.Fatalf("failed save must leave the compose panel open, got %s", sel.Mode())
	}
	if len(ctl.Memories()) != 0 {
		t.Error("failed save must not touch the list")
	}
	if viewport.count() != 0 {
		t.Error("failed save must not move the camera")
	}
}

func TestEditFlow(t *testing.T) {
	store := &mockStore{
		listFn: func(ctx context.Context, userID string, f memories.Filter) ([]memories.Memory, error) {
			return []memories.Memory{{ID: "m-1", Emotion: memories.EmotionHappy, Text: "old"}}, nil
		},
	}
	ctl := newTestController(store, immediateResolver{}, &recordingViewport{})
	if err := ctl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctl.HandleMarkerClick("m-1")
	if err := ctl.StartEdit(); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	if sel := ctl.Selection(); sel.Mode() != ModeEditing || sel.MemoryID() != "m-1" {
		t.Fatalf("expected editing m-1, got %+v", sel)
	}

	m, err := ctl.SaveEdit(context.Background(), Draft{Emotion: memories.EmotionLaugh, Text: "new"})
	if err != nil {
		t.Fatalf("SaveEdit: %v", err)
	}
	if ctl.Selection().Mode() != ModeIdle {
		t.Fatal("successful update must return to idle")
	}
	list := ctl.Memories()
	if len(list) != 1 || list[0].Text != m.Text {
		t.Errorf("list entry must be replaced in place: %+v", list)
	}
}

func TestDeleteFailureKeepsList(t *testing.T) {
	store := &mockStore{
		listFn: func(ctx context.Context, userID string, f memories.Filter) ([]memories.Memory, error) {
			return []memories.Memory{{ID: "m-1", Text: "x"}}, nil
		},
		deleteFn: func(ctx context.Context, userID, id string) error {
			return errors.New("row locked")
		},
	}
	ctl := newTestController(store, immediateResolver{}, &recordingViewport{})
	if err := ctl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctl.HandleMarkerClick("m-1")
	if err := ctl.Delete(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if len(ctl.Memories()) != 1 {
		t.Error("failed row delete must leave the list unchanged")
	}
	if sel := ctl.Selection(); sel.Mode() != ModeViewing {
		t.Errorf("failed delete must leave the selection as the user left it, got %s", sel.Mode())
	}
}

func TestDeleteSuccessRemovesFromList(t *testing.T) {
	store := &mockStore{
		listFn: func(ctx context.Context, userID string, f memories.Filter) ([]memories.Memory, error) {
			return []memories.Memory{{ID: "m-1"}, {ID: "m-2"}}, nil
		},
	}
	ctl := newTestController(store, immediateResolver{}, &recordingViewport{})
	if err := ctl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctl.HandleMarkerClick("m-1")
	if err := ctl.Delete(context.Background()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	list := ctl.Memories()
	if len(list) != 1 || list[0].ID != "m-2" {
		t.Errorf("expected only m-2 to remain, got %+v", list)
	}
	if ctl.Selection().Mode() != ModeIdle {
		t.Error("successful delete must return to idle")
	}
}

func TestCancelFromAnyPanel(t *testing.T) {
	ctl := newTestController(&mockStore{}, immediateResolver{}, &recordingViewport{})

	ctl.HandleMapClick(context.Background(), groundClick(35.0, 139.0))
	ctl.Cancel()
	if ctl.Selection().Mode() != ModeIdle {
		t.Fatal("cancel from composing must idle")
	}

	ctl.HandleMapClick(context.Background(), poiClick(35.0, 139.0, "本屋"))
	ctl.Cancel()
	if ctl.Selection().Mode() != ModeIdle {
		t.Fatal("cancel from inspecting must idle")
	}
}

// --- Debounce ---

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var mu sync.Mutex
	calls := 0

	for i := 0; i < 5; i++ {
		d.Trigger(func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("burst of 5 triggers must run once, ran %d times", calls)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
