// Package prefs stores small per-user presentation preferences, currently
// the sort orders for the tag picker and the memory list. Preferences live
// in a Redis hash per user so they follow the account across devices.
package prefs

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/memoria-app/memoria/internal/apperror"
)

// Sort orders accepted for both the tag picker and the memory list.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortAZ     = "az"
	SortZA     = "za"
)

var validSorts = map[string]bool{
	SortNewest: true,
	SortOldest: true,
	SortAZ:     true,
	SortZA:     true,
}

// Preferences holds a user's presentation settings with defaults applied.
type Preferences struct {
	TagSort    string `json:"tag_sort"`
	MemorySort string `json:"memory_sort"`
}

// UpdateInput carries partial preference changes; empty fields are left
// untouched.
type UpdateInput struct {
	TagSort    string `json:"tag_sort"`
	MemorySort string `json:"memory_sort"`
}

func prefsKey(userID string) string {
	return "prefs:" + userID
}

// Service reads and writes user preferences.
type Service struct {
	redis *redis.Client
}

func NewService(redisClient *redis.Client) *Service {
	return &Service{redis: redisClient}
}

// Get returns the user's preferences, falling back to newest-first where
// nothing has been stored.
func (s *Service) Get(ctx context.Context, userID string) (Preferences, error) {
	stored, err := s.redis.HGetAll(ctx, prefsKey(userID)).Result()
	if err != nil {
		return Preferences{}, fmt.Errorf("loading preferences: %w", err)
	}

	p := Preferences{TagSort: SortNewest, MemorySort: SortNewest}
	if v, ok := stored["tag_sort"]; ok && validSorts[v] {
		p.TagSort = v
	}
	if v, ok := stored["memory_sort"]; ok && validSorts[v] {
		p.MemorySort = v
	}
	return p, nil
}

// Update applies the non-empty fields of the input and returns the full
// resulting preferences.
func (s *Service) Update(ctx context.Context, userID string, input UpdateInput) (Preferences, error) {
	fields := map[string]any{}
	for name, value := range map[string]string{
		"tag_sort":    input.TagSort,
		"memory_sort": input.MemorySort,
	} {
		if value == "" {
			continue
		}
		if !validSorts[value] {
			return Preferences{}, apperror.NewValidation(name + " must be one of newest, oldest, az, za")
		}
		fields[name] = value
	}
	if len(fields) == 0 {
		return Preferences{}, apperror.NewValidation("no preferences given")
	}

	if err := s.redis.HSet(ctx, prefsKey(userID), fields).Err(); err != nil {
		return Preferences{}, fmt.Errorf("storing preferences: %w", err)
	}
	return s.Get(ctx, userID)
}
