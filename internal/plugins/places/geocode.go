package places

import (
	"math"
	"sort"
)

// Component precedence for the place-level name. Japanese addresses often
// report the ward rather than a locality, so finer types follow locality.
var localityTypes = []string{"locality", "administrative_area_level_2"}

var finerTypes = []string{"sublocality_level_1", "sublocality", "ward", "administrative_area_level_2", "neighborhood"}

// adminAreaFromComponents extracts the region and place-level names from a
// reverse-geocode component list. For metropolis-style addresses where the
// region and the locality share a name (Google reports both for e.g. Tokyo),
// the place level falls through to the next finer component so the pair
// stays distinguishable.
func adminAreaFromComponents(components []addressComponent) AdminArea {
	area := AdminArea{
		Region:   componentByType(components, "administrative_area_level_1"),
		Locality: firstComponent(components, localityTypes),
	}
	if area.Locality == "" || (area.Region != "" && area.Locality == area.Region) {
		if finer := firstComponent(components, finerTypes); finer != "" && finer != area.Region {
			area.Locality = finer
		}
	}
	return area
}

func componentByType(components []addressComponent, want string) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == want {
				return c.LongName
			}
		}
	}
	return ""
}

func firstComponent(components []addressComponent, wants []string) string {
	for _, want := range wants {
		if name := componentByType(components, want); name != "" {
			return name
		}
	}
	return ""
}

const earthRadiusMeters = 6371000

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func sortByDistance(records []PlaceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DistanceMeters < records[j].DistanceMeters
	})
}
