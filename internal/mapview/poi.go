package mapview

import "github.com/memoria-app/memoria/internal/plugins/places"

// ClickPayload is a raw map click as reported by the client: the tapped
// coordinate, whether the tap landed on one of our own marker or popup
// elements, and the rendered map features under the tap point.
type ClickPayload struct {
	Coord       places.Coordinate `json:"coord"`
	OnMarkerDOM bool              `json:"on_marker_dom"`
	Features    []Feature         `json:"features"`
}

// Feature is one rendered map feature under a click, with its raw
// properties as the map renderer reported them.
type Feature struct {
	Properties map[string]string `json:"properties"`
}

// poiNameFields is the ordered list of name-like properties checked when
// classifying a feature as a point of interest. Localized names win over
// the generic one; first non-empty field wins.
var poiNameFields = []string{"name_ja", "name:ja", "name_en", "name:en", "name"}

// poiName extracts the display name of the first feature that qualifies as
// a recognized point of interest, or "" when the click is empty ground.
func poiName(features []Feature) string {
	for _, f := range features {
		for _, field := range poiNameFields {
			if name := f.Properties[field]; name != "" {
				return name
			}
		}
	}
	return ""
}
