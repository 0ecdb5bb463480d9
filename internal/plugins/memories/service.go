package memories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/plugins/media"
	"github.com/memoria-app/memoria/internal/plugins/places"
	"github.com/memoria-app/memoria/internal/sanitize"
)

const maxTextLength = 2000

// geocoder is the slice of the place service the memory service needs.
type geocoder interface {
	AdminArea(ctx context.Context, coord places.Coordinate) places.AdminArea
}

// Service defines business logic for memories. Writes follow a strict
// ordering between the blob store and the database, documented per method.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Memory, error)
	Get(ctx context.Context, userID, id string) (*Memory, error)
	List(ctx context.Context, userID string, f Filter) ([]Memory, error)
	Update(ctx context.Context, userID, id string, input UpdateInput) (*Memory, error)
	Delete(ctx context.Context, userID, id string) error
}

// memoryService is the default Service implementation.
type memoryService struct {
	repo   Repository
	blobs  media.BlobStore
	geo    geocoder
	logger *slog.Logger
}

// NewService creates a Service backed by the given repository, blob store,
// and reverse geocoder.
func NewService(repo Repository, blobs media.BlobStore, geo geocoder, logger *slog.Logger) Service {
	return &memoryService{repo: repo, blobs: blobs, geo: geo, logger: logger}
}

// Create saves a new memory. The write order is fixed: the blob is uploaded
// first, then the row is inserted carrying its URL. If the insert fails the
// blob stays behind as an orphan; that leak is accepted over the inverse
// failure of a row pointing at a blob that was never written.
//
// The place snapshot comes verbatim from the hint captured at compose time.
// It is never re-resolved here. Region and locality are reverse-geocoded
// from the coordinate, best-effort.
func (s *memoryService) Create(ctx context.Context, input CreateInput) (*Memory, error) {
	if err := validateContent(input.Emotion, input.Text); err != nil {
		return nil, err
	}

	m := &Memory{
		ID:      uuid.NewString(),
		UserID:  input.UserID,
		Emotion: input.Emotion,
		Text:    sanitize.Text(input.Text),
		Lat:     input.Lat,
		Lng:     input.Lng,
		Tags:    sanitizeTags(input.Tags),
	}
	if input.Place != nil {
		m.PlaceID = input.Place.PlaceID
		m.PlaceName = input.Place.Name
		m.PlaceAddress = input.Place.Address
	}

	if input.Media != nil {
		input.Media.OwnerID = input.UserID
		url, err := s.blobs.Upload(ctx, *input.Media)
		if err != nil {
			return nil, fmt.Errorf("uploading attachment: %w", err)
		}
		m.MediaURL = url
		m.MediaType = input.Media.MimeType
		if media.HasThumbnails(input.Media.MimeType) {
			m.ThumbnailURL = media.ThumbnailURL(url, 300)
		}
	}

	area := s.geo.AdminArea(ctx, places.Coordinate{Lat: input.Lat, Lng: input.Lng})
	m.Region = area.Region
	m.Locality = area.Locality

	if err := s.repo.Create(ctx, m); err != nil {
		if m.MediaURL != "" {
			s.logger.Warn("memory insert failed after blob upload, blob orphaned",
				"user_id", input.UserID, "blob", m.MediaURL, "error", err)
		}
		return nil, fmt.Errorf("create memory: %w", err)
	}
	return m, nil
}

// Get returns one memory, scoped to its owner.
func (s *memoryService) Get(ctx context.Context, userID, id string) (*Memory, error) {
	m, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	if m == nil {
		return nil, apperror.NewNotFound("memory not found")
	}
	return m, nil
}

// List returns the user's memories, newest first, narrowed by the filter.
func (s *memoryService) List(ctx context.Context, userID string, f Filter) ([]Memory, error) {
	for _, e := range f.Emotions {
		if !e.Valid() {
			return nil, apperror.NewValidation("unknown emotion in filter")
		}
	}
	out, err := s.repo.ListByUser(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	if out == nil {
		out = []Memory{}
	}
	return out, nil
}

// Update edits a memory's content, tags, and attachment. The coordinate and
// place snapshot are immutable. When the attachment is replaced the order
// is: upload the new blob, delete the old one, then rewrite the row. A
// failed upload aborts with the old attachment intact; a failed delete of
// the old blob is logged and tolerated.
func (s *memoryService) Update(ctx context.Context, userID, id string, input UpdateInput) (*Memory, error) {
	if err := validateContent(input.Emotion, input.Text); err != nil {
		return nil, err
	}

	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	oldBlob := m.MediaURL
	m.Emotion = input.Emotion
	m.Text = sanitize.Text(input.Text)
	m.Tags = sanitizeTags(input.Tags)

	switch {
	case input.Media != nil:
		input.Media.OwnerID = userID
		url, err := s.blobs.Upload(ctx, *input.Media)
		if err != nil {
			return nil, fmt.Errorf("uploading replacement attachment: %w", err)
		}
		m.MediaURL = url
		m.MediaType = input.Media.MimeType
		m.ThumbnailURL = ""
		if media.HasThumbnails(input.Media.MimeType) {
			m.ThumbnailURL = media.ThumbnailURL(url, 300)
		}
		s.removeBlob(ctx, userID, oldBlob)
	case input.RemoveMedia:
		m.MediaURL = ""
		m.ThumbnailURL = ""
		m.MediaType = ""
		s.removeBlob(ctx, userID, oldBlob)
	}

	if err := s.repo.Update(ctx, m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("memory not found")
		}
		return nil, fmt.Errorf("update memory: %w", err)
	}
	return m, nil
}

// Delete removes a memory. The blob goes first, best-effort: a blob that
// cannot be removed never blocks the row delete, but a failed row delete
// keeps the memory listed so the client state stays truthful.
func (s *memoryService) Delete(ctx context.Context, userID, id string) error {
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	s.removeBlob(ctx, userID, m.MediaURL)

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NewNotFound("memory not found")
		}
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

func (s *memoryService) removeBlob(ctx context.Context, userID, url string) {
	if url == "" {
		return
	}
	if err := s.blobs.Delete(ctx, url); err != nil {
		s.logger.Warn("blob delete failed", "user_id", userID, "blob", url, "error", err)
	}
}

func validateContent(emotion Emotion, text string) error {
	if !emotion.Valid() {
		return apperror.NewValidation("emotion must be one of the six supported emoji")
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return apperror.NewValidation(fmt.Sprintf("memory text exceeds %d characters", maxTextLength))
	}
	return nil
}

// sanitizeTags strips markup from each tag and drops empties while keeping
// the caller's order.
func sanitizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if cleaned := sanitize.TagName(t); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
