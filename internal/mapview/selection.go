// Package mapview implements the interactive map session: the selection
// state machine driving what the map UI shows, point-of-interest hit
// testing, place inspection, and the save/update/delete flows for memories
// pinned to the map. Each websocket connection owns one Controller.
package mapview

import (
	"encoding/json"

	"github.com/memoria-app/memoria/internal/plugins/places"
)

// Mode identifies which selection the map currently holds.
type Mode string

const (
	ModeIdle            Mode = "idle"
	ModeComposing       Mode = "composing"
	ModeViewing         Mode = "viewing"
	ModeEditing         Mode = "editing"
	ModeInspectingPlace Mode = "inspecting_place"
)

// Selection is the single slot of map UI state. Exactly one selection is
// active at any instant; entering a new state always overwrites the whole
// slot, so two "exclusive" targets can never both be populated. The fields
// are unexported and only reachable through the constructors below.
type Selection struct {
	mode     Mode
	coord    places.Coordinate   // Composing, InspectingPlace
	hint     *places.PlaceRecord // Composing: snapshot taken at compose time
	memoryID string              // Viewing, Editing
	place    *places.PlaceRecord // InspectingPlace
	// searching marks an InspectingPlace whose resolver lookup is still
	// pending; the UI shows a placeholder label, not a separate state.
	searching bool
}

// Idle is the empty selection.
func Idle() Selection {
	return Selection{mode: ModeIdle}
}

// ComposingAt opens the compose panel at a coordinate. hint is the place
// snapshot captured beforehand, or nil for an empty-ground compose.
func ComposingAt(coord places.Coordinate, hint *places.PlaceRecord) Selection {
	return Selection{mode: ModeComposing, coord: coord, hint: hint}
}

// ViewingMemory shows a saved memory.
func ViewingMemory(id string) Selection {
	return Selection{mode: ModeViewing, memoryID: id}
}

// EditingMemory opens the edit panel for a saved memory.
func EditingMemory(id string) Selection {
	return Selection{mode: ModeEditing, memoryID: id}
}

// InspectingPOI shows a tapped point of interest while its details are
// being resolved.
func InspectingPOI(coord places.Coordinate, name string) Selection {
	return Selection{
		mode:      ModeInspectingPlace,
		coord:     coord,
		place:     &places.PlaceRecord{Name: name, Lat: coord.Lat, Lng: coord.Lng},
		searching: true,
	}
}

// InspectingResolved shows a fully resolved place.
func InspectingResolved(coord places.Coordinate, place *places.PlaceRecord) Selection {
	return Selection{mode: ModeInspectingPlace, coord: coord, place: place}
}

// Mode returns the active selection mode.
func (s Selection) Mode() Mode {
	if s.mode == "" {
		return ModeIdle
	}
	return s.mode
}

// Coord returns the anchor coordinate for Composing and InspectingPlace.
func (s Selection) Coord() places.Coordinate { return s.coord }

// MemoryID returns the selected memory for Viewing and Editing, or "".
func (s Selection) MemoryID() string { return s.memoryID }

// PlaceHint returns the compose-time place snapshot, or nil.
func (s Selection) PlaceHint() *places.PlaceRecord { return s.hint }

// InspectedPlace returns the place under inspection, or nil.
func (s Selection) InspectedPlace() *places.PlaceRecord { return s.place }

// Searching reports whether an inspected place's lookup is still pending.
func (s Selection) Searching() bool { return s.searching }

// MarshalJSON renders the selection for the client, carrying only the
// fields relevant to the active mode.
func (s Selection) MarshalJSON() ([]byte, error) {
	out := map[string]any{"mode": s.Mode()}
	switch s.Mode() {
	case ModeComposing:
		out["coord"] = s.coord
		if s.hint != nil {
			out["place_hint"] = s.hint
		}
	case ModeViewing, ModeEditing:
		out["memory_id"] = s.memoryID
	case ModeInspectingPlace:
		out["coord"] = s.coord
		out["place"] = s.place
		out["searching"] = s.searching
	}
	return json.Marshal(out)
}
