package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/memoria-app/memoria/internal/config"
)

// ErrNoResults reports a lookup that reached the upstream but matched
// nothing. Callers distinguish it from transport faults.
var ErrNoResults = errors.New("no matching places")

// upstream is the slice of the place backend the service depends on,
// satisfied by googleClient and by test fakes.
type upstream interface {
	TextSearch(ctx context.Context, origin Coordinate, query string, radius int) ([]PlaceRecord, error)
	NearbySearch(ctx context.Context, origin Coordinate, radius int) ([]PlaceRecord, error)
	Details(ctx context.Context, placeID string) (PlaceRecord, error)
	ReverseGeocode(ctx context.Context, coord Coordinate) (AdminArea, error)
}

// Service resolves coordinates and queries into place records, caching
// recent answers so repeated taps on the same marker stay off the network.
type Service struct {
	client   upstream
	cache    *ristretto.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewService(cfg config.PlacesConfig, logger *slog.Logger) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("place cache: %w", err)
	}
	return &Service{
		client:   newGoogleClient(cfg),
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}, nil
}

// Resolve looks up the place under a tapped point of interest. The name and
// coordinate come from the map hit and are authoritative fallbacks: when the
// upstream is unreachable the returned record carries them with Unavailable
// set, and the caller proceeds with the degraded snapshot.
func (s *Service) Resolve(ctx context.Context, coord Coordinate, name string) PlaceRecord {
	key := fmt.Sprintf("resolve:%.5f:%.5f:%s", coord.Lat, coord.Lng, name)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(PlaceRecord)
	}

	records, err := s.client.TextSearch(ctx, coord, name, 0)
	if err != nil {
		s.logger.Warn("place resolve degraded", "name", name, "error", err)
		return PlaceRecord{Name: name, Lat: coord.Lat, Lng: coord.Lng, Unavailable: true}
	}
	rec := PlaceRecord{Name: name, Lat: coord.Lat, Lng: coord.Lng}
	if len(records) > 0 {
		rec = records[0]
	}
	s.cache.SetWithTTL(key, rec, 1, s.cacheTTL)
	return rec
}

// Search runs a text search around the origin. Results are uncached; the
// query space is too wide to be worth the memory.
func (s *Service) Search(ctx context.Context, origin Coordinate, query string, radius int) ([]PlaceRecord, error) {
	records, err := s.client.TextSearch(ctx, origin, query, radius)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoResults
	}
	return records, nil
}

// Nearby lists places around the origin, nearest first.
func (s *Service) Nearby(ctx context.Context, origin Coordinate, radius int) ([]PlaceRecord, error) {
	records, err := s.client.NearbySearch(ctx, origin, radius)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoResults
	}
	return records, nil
}

// Details fetches the full record for a place ID, with caching.
func (s *Service) Details(ctx context.Context, placeID string) (PlaceRecord, error) {
	key := "detail:" + placeID
	if cached, ok := s.cache.Get(key); ok {
		return cached.(PlaceRecord), nil
	}
	rec, err := s.client.Details(ctx, placeID)
	if err != nil {
		return PlaceRecord{}, err
	}
	s.cache.SetWithTTL(key, rec, 1, s.cacheTTL)
	return rec, nil
}

// AdminArea reverse-geocodes a coordinate into region and locality names.
// Failures return zero values, never an error: the administrative snapshot
// is best-effort context, not a save precondition.
func (s *Service) AdminArea(ctx context.Context, coord Coordinate) AdminArea {
	key := fmt.Sprintf("admin:%.4f:%.4f", coord.Lat, coord.Lng)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(AdminArea)
	}
	area, err := s.client.ReverseGeocode(ctx, coord)
	if err != nil {
		s.logger.Warn("reverse geocode degraded", "lat", coord.Lat, "lng", coord.Lng, "error", err)
		return AdminArea{}
	}
	s.cache.SetWithTTL(key, area, 1, s.cacheTTL)
	return area
}
