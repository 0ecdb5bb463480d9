package places

import (
	"math"
	"testing"
)

func comp(name string, types ...string) addressComponent {
	return addressComponent{LongName: name, Types: types}
}

func TestAdminAreaFromComponents(t *testing.T) {
	tests := []struct {
		name       string
		components []addressComponent
		want       AdminArea
	}{
		{
			name: "region and locality distinct",
			components: []addressComponent{
				comp("Minamiuonuma", "locality", "political"),
				comp("Niigata", "administrative_area_level_1", "political"),
				comp("Japan", "country", "political"),
			},
			want: AdminArea{Region: "Niigata", Locality: "Minamiuonuma"},
		},
		{
			name: "metropolis falls to ward",
			components: []addressComponent{
				comp("Shibuya", "sublocality_level_1", "sublocality", "political"),
				comp("Tokyo", "locality", "political"),
				comp("Tokyo", "administrative_area_level_1", "political"),
			},
			want: AdminArea{Region: "Tokyo", Locality: "Shibuya"},
		},
		{
			name: "no locality uses admin level 2",
			components: []addressComponent{
				comp("Kitaazumi District", "administrative_area_level_2", "political"),
				comp("Nagano", "administrative_area_level_1", "political"),
			},
			want: AdminArea{Region: "Nagano", Locality: "Kitaazumi District"},
		},
		{
			name: "duplicate with no finer component stays as is",
			components: []addressComponent{
				comp("Tokyo", "locality", "political"),
				comp("Tokyo", "administrative_area_level_1", "political"),
			},
			want: AdminArea{Region: "Tokyo", Locality: "Tokyo"},
		},
		{
			name:       "empty components",
			components: nil,
			want:       AdminArea{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adminAreaFromComponents(tt.components); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHaversineMeters(t *testing.T) {
	// Tokyo Station to Shinjuku Station is roughly 6.1 km.
	tokyo := Coordinate{Lat: 35.6812, Lng: 139.7671}
	shinjuku := Coordinate{Lat: 35.6896, Lng: 139.7006}

	d := haversineMeters(tokyo, shinjuku)
	if d < 5500 || d > 6700 {
		t.Errorf("distance = %.0f m, want roughly 6100", d)
	}
	if haversineMeters(tokyo, tokyo) != 0 {
		t.Error("distance to self must be zero")
	}
}

func TestSortByDistance(t *testing.T) {
	records := []PlaceRecord{
		{PlaceID: "far", DistanceMeters: 900},
		{PlaceID: "near", DistanceMeters: 12},
		{PlaceID: "mid", DistanceMeters: 340},
	}
	sortByDistance(records)
	for i, want := range []string{"near", "mid", "far"} {
		if records[i].PlaceID != want {
			t.Fatalf("records[%d] = %s, want %s", i, records[i].PlaceID, want)
		}
	}
}

func TestHaversineSmallDistances(t *testing.T) {
	a := Coordinate{Lat: 35.68120, Lng: 139.76710}
	b := Coordinate{Lat: 35.68121, Lng: 139.76710}
	if d := haversineMeters(a, b); math.Abs(d-1.11) > 0.5 {
		t.Errorf("one latitude ten-thousandth of a degree = %.2f m, want ~1.11", d)
	}
}
