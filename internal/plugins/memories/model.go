// Package memories implements the core domain of Memoria: emotion-tagged
// notes pinned to map coordinates, each with an optional photo or video and
// a snapshot of the place it was written at.
package memories

import (
	"time"

	"github.com/memoria-app/memoria/internal/plugins/media"
	"github.com/memoria-app/memoria/internal/plugins/places"
)

// Emotion is one of the six fixed feelings a memory can carry. The values
// are the emoji themselves; they are stored verbatim and rendered verbatim.
type Emotion string

const (
	EmotionHappy    Emotion = "😊"
	EmotionLaugh    Emotion = "😂"
	EmotionLove     Emotion = "😍"
	EmotionSad      Emotion = "😢"
	EmotionSurprise Emotion = "😮"
	EmotionThinking Emotion = "🤔"
)

// Emotions lists every valid emotion in display order.
var Emotions = []Emotion{
	EmotionHappy, EmotionLaugh, EmotionLove,
	EmotionSad, EmotionSurprise, EmotionThinking,
}

// Valid reports whether e is one of the six known emotions.
func (e Emotion) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// Memory is a saved entry. The place fields are a snapshot taken at creation
// time: they never change afterwards, even if the underlying place listing
// does. Region and Locality come from reverse geocoding the coordinate.
type Memory struct {
	ID      string  `json:"id"`
	UserID  string  `json:"-"`
	Emotion Emotion `json:"emotion"`
	Text    string  `json:"text"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`

	MediaURL     string `json:"media_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	MediaType    string `json:"media_type,omitempty"`

	PlaceID      string `json:"place_id,omitempty"`
	PlaceName    string `json:"place_name,omitempty"`
	PlaceAddress string `json:"place_address,omitempty"`
	Region       string `json:"region,omitempty"`
	Locality     string `json:"locality,omitempty"`

	Tags []string `json:"tags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries a new memory. Place is the hint captured when the
// entry was composed (a tapped point of interest or a resolved record) and
// is snapshotted verbatim; it is never re-resolved at save time.
type CreateInput struct {
	UserID  string
	Emotion Emotion
	Text    string
	Lat     float64
	Lng     float64
	Tags    []string
	Place   *places.PlaceRecord
	Media   *media.UploadInput
}

// UpdateInput carries edits to an existing memory. A nil Media leaves the
// attachment alone; RemoveMedia deletes it without a replacement. The
// coordinate and place snapshot are immutable and absent here.
type UpdateInput struct {
	Emotion     Emotion
	Text        string
	Tags        []string
	Media       *media.UploadInput
	RemoveMedia bool
}

// Filter narrows a memory listing. Zero values mean no constraint.
type Filter struct {
	Emotions []Emotion
	Tags     []string
	From     *time.Time
	To       *time.Time
	Query    string
}
