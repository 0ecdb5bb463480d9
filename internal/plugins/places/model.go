// Package places resolves map coordinates and human-entered queries into
// normalized place records by querying the Google Places and Geocoding
// backends. All upstream quirks are confined to this package: the rest of
// the application only ever sees PlaceRecord and AdminArea.
//
// Lookups degrade instead of failing. An upstream outage produces a record
// carrying the original coordinate and query with Unavailable set, never an
// error surfaced into the interaction layer.
package places

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceRecord is the normalized result of a place lookup. PhotoURL is a
// directly fetchable URL; upstream photo references never leave this package.
type PlaceRecord struct {
	PlaceID string  `json:"place_id,omitempty"`
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Phone   string  `json:"phone,omitempty"`
	Hours   []string `json:"hours,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`

	// DistanceMeters is the approximate distance from the search origin,
	// populated on nearby-search results.
	DistanceMeters int `json:"distance_meters,omitempty"`

	// Unavailable marks a degraded record: the lookup failed and only the
	// caller-supplied coordinate and name are populated.
	Unavailable bool `json:"unavailable,omitempty"`
}

// AdminArea is the reverse-geocoded administrative context of a coordinate,
// snapshotted onto a memory at creation time.
type AdminArea struct {
	Region   string `json:"region"`
	Locality string `json:"locality"`
}
