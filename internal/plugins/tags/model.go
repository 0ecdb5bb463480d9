// Package tags manages the per-user tag vocabulary used to label memories.
// Tag names are unique per user and compared case-sensitively; favorites
// and an explicit display order drive how pickers present them. Every
// mutation is broadcast over a per-user realtime channel so that other
// open sessions converge without polling.
package tags

import "time"

// Tag is one entry in a user's tag vocabulary.
type Tag struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	Name         string    `json:"name"`
	IsFavorite   bool      `json:"is_favorite"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateInput carries a new tag.
type CreateInput struct {
	UserID     string
	Name       string
	IsFavorite bool
}

// UpdateInput carries edits to an existing tag.
type UpdateInput struct {
	Name       string
	IsFavorite bool
}

// Event is one realtime notification on a user's tag channel.
type Event struct {
	// Type is one of "created", "updated", "deleted", "reordered".
	Type string `json:"type"`

	// Tag is populated for created and updated events.
	Tag *Tag `json:"tag,omitempty"`

	// TagID is populated for deleted events.
	TagID string `json:"tag_id,omitempty"`

	// Order lists tag IDs in their new display order for reordered events.
	Order []string `json:"order,omitempty"`
}
