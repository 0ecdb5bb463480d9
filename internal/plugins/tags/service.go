package tags

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/sanitize"
)

const maxNameLength = 50

// TagService defines business logic for the tag vocabulary. Every
// successful mutation is broadcast on the owner's realtime channel.
type TagService interface {
	Create(ctx context.Context, input CreateInput) (*Tag, error)
	List(ctx context.Context, userID string) ([]Tag, error)
	Update(ctx context.Context, userID, id string, input UpdateInput) (*Tag, error)
	Reorder(ctx context.Context, userID string, orderedIDs []string) error
	Delete(ctx context.Context, userID, id string) error
}

// tagService is the default TagService implementation.
type tagService struct {
	repo     Repository
	notifier Notifier
}

// NewService creates a TagService backed by the given repository.
func NewService(repo Repository, notifier Notifier) TagService {
	return &tagService{repo: repo, notifier: notifier}
}

// Create adds a tag to the user's vocabulary. Names are compared
// case-sensitively, so creating "Cafe" next to "cafe" succeeds.
func (s *tagService) Create(ctx context.Context, input CreateInput) (*Tag, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}

	tag := &Tag{
		ID:         uuid.NewString(),
		UserID:     input.UserID,
		Name:       name,
		IsFavorite: input.IsFavorite,
	}
	if err := s.repo.Create(ctx, tag); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, input.UserID, Event{Type: "created", Tag: tag})
	return tag, nil
}

// List returns the user's tags, favorites first, then by display order.
func (s *tagService) List(ctx context.Context, userID string) ([]Tag, error) {
	out, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	if out == nil {
		out = []Tag{}
	}
	return out, nil
}

// Update renames a tag or toggles its favorite flag.
func (s *tagService) Update(ctx context.Context, userID, id string, input UpdateInput) (*Tag, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}

	tag, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	tag.Name = name
	tag.IsFavorite = input.IsFavorite

	if err := s.repo.Update(ctx, tag); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, userID, Event{Type: "updated", Tag: tag})
	return tag, nil
}

// Reorder rewrites the display order to match the given ID sequence.
func (s *tagService) Reorder(ctx context.Context, userID string, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return apperror.NewValidation("order must list at least one tag")
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return apperror.NewValidation("order lists tag " + id + " twice")
		}
		seen[id] = true
	}

	if err := s.repo.Reorder(ctx, userID, orderedIDs); err != nil {
		return err
	}

	s.notifier.Publish(ctx, userID, Event{Type: "reordered", Order: orderedIDs})
	return nil
}

// Delete removes a tag from the vocabulary. Memories already carrying the
// tag name keep it; the vocabulary and the labels on saved entries are
// deliberately decoupled.
func (s *tagService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.notifier.Publish(ctx, userID, Event{Type: "deleted", TagID: id})
	return nil
}

func validateName(raw string) (string, error) {
	name := sanitize.TagName(raw)
	if name == "" {
		return "", apperror.NewValidation("tag name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apperror.NewValidation(fmt.Sprintf("tag name exceeds %d characters", maxNameLength))
	}
	return name, nil
}
