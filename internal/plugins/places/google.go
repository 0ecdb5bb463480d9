package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/memoria-app/memoria/internal/config"
)

// googleClient talks to the Google Places and Geocoding web services. The
// API key stays server-side; clients only ever reach these endpoints through
// the proxy handlers in this package.
type googleClient struct {
	places   *resty.Client
	geocode  *resty.Client
	apiKey   string
	language string
	radius   int
}

func newGoogleClient(cfg config.PlacesConfig) *googleClient {
	return &googleClient{
		places: resty.New().
			SetBaseURL(cfg.PlacesBaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		geocode: resty.New().
			SetBaseURL(cfg.GeocodeBaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		radius:   cfg.SearchRadius,
	}
}

// Upstream response shapes. Only the fields we normalize are declared.

type searchResponse struct {
	Status  string        `json:"status"`
	Results []placeResult `json:"results"`
}

type detailResponse struct {
	Status string      `json:"status"`
	Result placeResult `json:"result"`
}

type placeResult struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Vicinity         string  `json:"vicinity"`
	Rating           float64 `json:"rating"`
	Phone            string  `json:"formatted_phone_number"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	OpeningHours struct {
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		AddressComponents []addressComponent `json:"address_components"`
	} `json:"results"`
}

type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

// TextSearch runs a biased text search around the given coordinate. An empty
// result set returns (nil, nil); only transport and upstream faults error.
func (g *googleClient) TextSearch(ctx context.Context, origin Coordinate, query string, radius int) ([]PlaceRecord, error) {
	if radius <= 0 {
		radius = g.radius
	}
	var body searchResponse
	resp, err := g.places.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":    query,
			"location": fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
			"radius":   fmt.Sprintf("%d", radius),
			"language": g.language,
			"key":      g.apiKey,
		}).
		SetResult(&body).
		Get("/textsearch/json")
	if err != nil {
		return nil, fmt.Errorf("places textsearch: %w", err)
	}
	return g.collectResults(resp.StatusCode(), body)
}

// NearbySearch lists places around the coordinate without a query term,
// sorted nearest first.
func (g *googleClient) NearbySearch(ctx context.Context, origin Coordinate, radius int) ([]PlaceRecord, error) {
	if radius <= 0 {
		radius = g.radius
	}
	var body searchResponse
	resp, err := g.places.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"location": fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
			"radius":   fmt.Sprintf("%d", radius),
			"language": g.language,
			"key":      g.apiKey,
		}).
		SetResult(&body).
		Get("/nearbysearch/json")
	if err != nil {
		return nil, fmt.Errorf("places nearbysearch: %w", err)
	}
	records, err := g.collectResults(resp.StatusCode(), body)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].DistanceMeters = int(haversineMeters(origin, Coordinate{Lat: records[i].Lat, Lng: records[i].Lng}))
	}
	sortByDistance(records)
	return records, nil
}

// Details fetches the full record for a known place ID.
func (g *googleClient) Details(ctx context.Context, placeID string) (PlaceRecord, error) {
	var body detailResponse
	resp, err := g.places.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"place_id": placeID,
			"language": g.language,
			"key":      g.apiKey,
		}).
		SetResult(&body).
		Get("/details/json")
	if err != nil {
		return PlaceRecord{}, fmt.Errorf("place details: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || (body.Status != "OK" && body.Status != "ZERO_RESULTS") {
		return PlaceRecord{}, fmt.Errorf("place details: upstream status %q (http %d)", body.Status, resp.StatusCode())
	}
	if body.Status == "ZERO_RESULTS" || body.Result.PlaceID == "" {
		return PlaceRecord{}, ErrNoResults
	}
	return g.normalize(body.Result), nil
}

// ReverseGeocode resolves a coordinate into its administrative context.
func (g *googleClient) ReverseGeocode(ctx context.Context, coord Coordinate) (AdminArea, error) {
	var body geocodeResponse
	resp, err := g.geocode.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latlng":   fmt.Sprintf("%f,%f", coord.Lat, coord.Lng),
			"language": g.language,
			"key":      g.apiKey,
		}).
		SetResult(&body).
		Get("/json")
	if err != nil {
		return AdminArea{}, fmt.Errorf("reverse geocode: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || (body.Status != "OK" && body.Status != "ZERO_RESULTS") {
		return AdminArea{}, fmt.Errorf("reverse geocode: upstream status %q (http %d)", body.Status, resp.StatusCode())
	}
	if len(body.Results) == 0 {
		return AdminArea{}, nil
	}
	return adminAreaFromComponents(body.Results[0].AddressComponents), nil
}

func (g *googleClient) collectResults(httpStatus int, body searchResponse) ([]PlaceRecord, error) {
	if httpStatus != http.StatusOK || (body.Status != "OK" && body.Status != "ZERO_RESULTS") {
		return nil, fmt.Errorf("places search: upstream status %q (http %d)", body.Status, httpStatus)
	}
	records := make([]PlaceRecord, 0, len(body.Results))
	for _, r := range body.Results {
		records = append(records, g.normalize(r))
	}
	return records, nil
}

func (g *googleClient) normalize(r placeResult) PlaceRecord {
	rec := PlaceRecord{
		PlaceID: r.PlaceID,
		Name:    r.Name,
		Address: r.FormattedAddress,
		Lat:     r.Geometry.Location.Lat,
		Lng:     r.Geometry.Location.Lng,
		Phone:   r.Phone,
		Hours:   r.OpeningHours.WeekdayText,
		Rating:  r.Rating,
	}
	if rec.Address == "" {
		rec.Address = r.Vicinity
	}
	if len(r.Photos) > 0 && r.Photos[0].PhotoReference != "" {
		rec.PhotoURL = g.photoURL(r.Photos[0].PhotoReference)
	}
	return rec
}

// photoURL converts an opaque photo reference into a fetchable URL. The key
// is embedded; these URLs are only handed to authenticated clients.
func (g *googleClient) photoURL(ref string) string {
	q := url.Values{}
	q.Set("maxwidth", "800")
	q.Set("photo_reference", ref)
	q.Set("key", g.apiKey)
	return g.places.BaseURL + "/photo?" + q.Encode()
}
