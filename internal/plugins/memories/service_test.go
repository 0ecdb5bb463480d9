package memories

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/plugins/media"
	"github.com/memoria-app/memoria/internal/plugins/places"
)

// --- Mocks ---

// mockRepo implements Repository for testing.
type mockRepo struct {
	createFn  func(ctx context.Context, m *Memory) error
	getByIDFn func(ctx context.Context, userID, id string) (*Memory, error)
	listFn    func(ctx context.Context, userID string, f Filter) ([]Memory, error)
	updateFn  func(ctx context.Context, m *Memory) error
	deleteFn  func(ctx context.Context, userID, id string) error
}

func (m *mockRepo) Create(ctx context.Context, mem *Memory) error {
	if m.createFn != nil {
		return m.createFn(ctx, mem)
	}
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, userID, id string) (*Memory, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockRepo) ListByUser(ctx context.Context, userID string, f Filter) ([]Memory, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, f)
	}
	return nil, nil
}

func (m *mockRepo) Update(ctx context.Context, mem *Memory) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, mem)
	}
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

// recordingStore implements media.BlobStore and records the order of calls
// so ordering properties can be asserted.
type recordingStore struct {
	calls     []string
	uploadErr error
	deleteErr error
}

func (s *recordingStore) Upload(ctx context.Context, input media.UploadInput) (string, error) {
	if s.uploadErr != nil {
		s.calls = append(s.calls, "upload-fail:"+input.OriginalName)
		return "", s.uploadErr
	}
	s.calls = append(s.calls, "upload:"+input.OriginalName)
	return "http://test/media/" + input.OwnerID + "/" + input.OriginalName, nil
}

func (s *recordingStore) Delete(ctx context.Context, publicURL string) error {
	s.calls = append(s.calls, "delete:"+publicURL)
	return s.deleteErr
}

// staticGeo is a geocoder returning a fixed admin area.
type staticGeo struct {
	area places.AdminArea
}

func (g staticGeo) AdminArea(ctx context.Context, coord places.Coordinate) places.AdminArea {
	return g.area
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Create ---

func TestCreateWithoutMedia(t *testing.T) {
	var inserted *Memory
	repo := &mockRepo{
		createFn: func(ctx context.Context, m *Memory) error {
			inserted = m
			return nil
		},
	}
	store := &recordingStore{}
	svc := NewService(repo, store, staticGeo{places.AdminArea{Region: "東京都", Locality: "新宿区"}}, discardLogger())

	m, err := svc.Create(context.Background(), CreateInput{
		UserID:  "user-1",
		Emotion: EmotionHappy,
		Text:    "hello",
		Lat:     35.6895,
		Lng:     139.6917,
		Tags:    []string{"旅行"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if inserted == nil {
		t.Fatal("expected one insert")
	}
	if m.MediaURL != "" || m.ThumbnailURL != "" {
		t.Errorf("expected no media, got %q / %q", m.MediaURL, m.ThumbnailURL)
	}
	if len(store.calls) != 0 {
		t.Errorf("blob store should not be touched, got %v", store.calls)
	}
	if m.Text != "hello" || m.Emotion != EmotionHappy || m.Lat != 35.6895 || m.Lng != 139.6917 {
		t.Errorf("fields not stored verbatim: %+v", m)
	}
	if len(m.Tags) != 1 || m.Tags[0] != "旅行" {
		t.Errorf("tags not stored verbatim: %v", m.Tags)
	}
	if m.Region != "東京都" || m.Locality != "新宿区" {
		t.Errorf("admin area not snapshotted: %+v", m)
	}
	if m.ID == "" {
		t.Error("expected generated id")
	}
}

func TestCreateUploadsBlobBeforeInsert(t *testing.T) {
	store := &recordingStore{}
	order := []string{}
	repo := &mockRepo{
		createFn: func(ctx context.Context, m *Memory) error {
			order = append(order, "insert")
			if m.MediaURL == "" {
				t.Error("insert must carry the blob URL")
			}
			return nil
		},
	}
	svc := NewService(repo, store, staticGeo{}, discardLogger())

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:  "user-1",
		Emotion: EmotionLove,
		Text:    "with photo",
		Media:   &media.UploadInput{OriginalName: "a.jpg", MimeType: "image/jpeg", FileBytes: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(store.calls) != 1 || store.calls[0] != "upload:a.jpg" {
		t.Fatalf("expected exactly one upload before insert, got %v", store.calls)
	}
	if len(order) != 1 {
		t.Fatalf("expected one insert, got %v", order)
	}
}

func TestCreateAbortsWhenUploadFails(t *testing.T) {
	store := &recordingStore{uploadErr: errors.New("disk full")}
	inserts := 0
	repo := &mockRepo{
		createFn: func(ctx context.Context, m *Memory) error {
			inserts++
			return nil
		},
	}
	svc := NewService(repo, store, staticGeo{}, discardLogger())

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:  "user-1",
		Emotion: EmotionSad,
		Text:    "doomed",
		Media:   &media.UploadInput{OriginalName: "a.jpg", MimeType: "image/jpeg", FileBytes: []byte("x")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if inserts != 0 {
		t.Errorf("row store must not be touched after a failed upload, got %d inserts", inserts)
	}
}

func TestCreateUsesPlaceHintVerbatim(t *testing.T) {
	var inserted *Memory
	repo := &mockRepo{
		createFn: func(ctx context.Context, m *Memory) error {
			inserted = m
			return nil
		},
	}
	svc := NewService(repo, &recordingStore{}, staticGeo{}, discardLogger())

	hint := &places.PlaceRecord{PlaceID: "p-1", Name: "喫茶ポエム", Address: "somewhere"}
	_, err := svc.Create(context.Background(), CreateInput{
		UserID:  "user-1",
		Emotion: EmotionThinking,
		Text:    "coffee",
		Place:   hint,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inserted.PlaceID != "p-1" || inserted.PlaceName != "喫茶ポエム" || inserted.PlaceAddress != "somewhere" {
		t.Errorf("place hint not snapshotted verbatim: %+v", inserted)
	}
}

func TestCreateRejectsUnknownEmotion(t *testing.T) {
	svc := NewService(&mockRepo{}, &recordingStore{}, staticGeo{}, discardLogger())

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:  "user-1",
		Emotion: Emotion("🙃"),
		Text:    "nope",
	})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Type != "validation_error" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// --- Update ---

func TestUpdateReplacesMediaInOrder(t *testing.T) {
	existing := &Memory{
		ID:       "m-1",
		UserID:   "user-1",
		Emotion:  EmotionHappy,
		Text:     "old",
		MediaURL: "http://test/media/user-1/old.jpg",
	}
	store := &recordingStore{}
	var updateSeen int
	repo := &mockRepo{
		getByIDFn: func(ctx context.Context, userID, id string) (*Memory, error) {
			cp := *existing
			return &cp, nil
		},
		updateFn: func(ctx context.Context, m *Memory) error {
			updateSeen = len(store.calls)
			return nil
		},
	}
	svc := NewService(repo, store, staticGeo{}, discardLogger())

	m, err := svc.Update(context.Background(), "user-1", "m-1", UpdateInput{
		Emotion: EmotionHappy,
		Text:    "new",
		Media:   &media.UploadInput{OriginalName: "new.jpg", MimeType: "image/jpeg", FileBytes: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := []string{"upload:new.jpg", "delete:http://test/media/user-1/old.jpg"}
	if len(store.calls) != 2 || store.calls[0] != want[0] || store.calls[1] != want[1] {
		t.Fatalf("old blob must be deleted only after the new upload: %v", store.calls)
	}
	if updateSeen != 2 {
		t.Errorf("row update must come after both blob calls, saw %d", updateSeen)
	}
	if !strings.Contains(m.MediaURL, "new.jpg") {
		t.Errorf("row must carry the new blob URL, got %q", m.MediaURL)
	}
}

func TestUpdateKeepsOldBlobWhenUploadFails(t *testing.T) {
	existing := &Memory{ID: "m-1", UserID: "user-1", Emotion: EmotionHappy, Text: "old", MediaURL: "http://test/media/user-1/old.jpg"}
	store := &recordingStore{uploadErr: errors.New("boom")}
	updates := 0
	repo := &mockRepo{
		getByIDFn: func(ctx context.Context, userID, id string) (*Memory, error) {
			cp := *existing
			return &cp, nil
		},
		updateFn: func(ctx context.Context, m *Memory) error {
			updates++
			return nil
		},
	}
	svc := NewService(repo, store, staticGeo{}, discardLogger())

	_, err := svc.Update(context.Background(), "user-1", "m-1", UpdateInput{
		Emotion: EmotionHappy,
		Text:    "new",
		Media:   &media.UploadInput{OriginalName: "new.jpg", MimeType: "image/jpeg", FileBytes: []byte("x")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, call := range store.calls {
		if strings.HasPrefix(call, "delete:") {
			t.Errorf("old blob must survive a failed replacement upload: %v", store.calls)
		}
	}
	if updates != 0 {
		t.Errorf("row must not be updated after a failed upload")
	}
}

func TestUpdateClearsMediaWithSingleDelete(t *testing.T) {
	existing := &Memory{ID: "m-1", UserID: "user-1", Emotion: EmotionHappy, Text: "old", MediaURL: "http://test/media/user-1/old.jpg", ThumbnailURL: "thumb"}
	store := &recordingStore{}
	var updated *Memory
	repo := &mockRepo{
		getByIDFn: func(ctx context.Context, userID, id string) (*Memory, error) {
			cp := *existing
			return &cp, nil
		},
		updateFn: func(ctx context.Context, m *Memory) error {
			updated = m
			return nil
		},
	}
	svc := NewService(repo, store, staticGeo{}, discardLogger())

	_, err := svc.Update(context.Background(), "user-1", "m-1", UpdateInput{
		Emotion:     EmotionHappy,
		Text:        "no photo now",
		RemoveMedia: true,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(store.calls) != 1 || store.calls[0] != "delete:http://test/media/user-1/old.jpg" {
		t.Fatalf("expected exactly one blob delete, got %v", store.calls)
	}
	if updated.MediaURL != "" || updated.ThumbnailURL != "" || updated.MediaType != "" {
		t.Errorf("media columns must be cleared: %+v", updated)
	}
}

// --- Delete ---

func TestDeleteRowFailureSurfaces(t *testing.T) {
	existing := &Memory{ID: "m-1", UserID: "user-1", Emotion: EmotionHappy, Text: "x", MediaURL: "http://test/media/user-1/a.jpg"}
	store := &recordingStore{}
	repo := &mockRepo{
		getByIDFn: func(ctx context.Context, userID, id string) (*Memory, error) {
			cp := *existing
			return &cp, nil
		},
		deleteFn: func(ctx context.Context, userID, id string) error {
			return errors.New("row locked")
		},
	}
	svc := NewService(repo, store, staticGeo{}, discardLogger())

	err := svc.Delete(context.Background(), "user-1", "m-1")
	if err == nil {
		t.Fatal("a failed row delete must surface")
	}
	// Blob delete ran first, best-effort; its success is not rolled back.
	if len(store.calls) != 1 || store.calls[0] != "delete:http://test/media/user-1/a.jpg" {
		t.Errorf("expected the best-effort blob delete, got %v", store.calls)
	}
}

func TestDeleteToleratesBlobFailure(t *testing.T) {
	existing := &Memory{ID: "m-1", UserID: "user-1", Emotion: EmotionHappy, Text: "x", MediaURL: "http://test/media/user-1/a.jpg"}
	store := &recordingStore{deleteErr: errors.New("gone already")}
	rowDeleted := false
	repo := &mockRepo{
		getByIDFn: func(ctx context.Context, userID, id string) (*Memory, error) {
			cp := *existing
			return &cp, nil
		},
		deleteFn: func(ctx context.Context, userID, id string) error {
			rowDeleted = true
			return nil
		},
	}
	svc := NewService(repo, store, staticGeo{}, discardLogger())

	if err := svc.Delete(context.Background(), "user-1", "m-1"); err != nil {
		t.Fatalf("blob failure must not block the row delete: %v", err)
	}
	if !rowDeleted {
		t.Error("row delete did not run")
	}
}
