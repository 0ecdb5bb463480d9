package places

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/apperror"
)

// Handler exposes the place proxy endpoints. The upstream API key never
// leaves the server; clients search and fetch details only through here.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Search handles GET /api/places/search. With a query it runs a text search
// biased to the given coordinate; without one it lists nearby places sorted
// by distance. lat and lng are required.
func (h *Handler) Search(c echo.Context) error {
	origin, err := parseCoordinate(c)
	if err != nil {
		return err
	}

	radius := 0
	if raw := c.QueryParam("radius"); raw != "" {
		radius, err = strconv.Atoi(raw)
		if err != nil || radius <= 0 {
			return apperror.NewBadRequest("radius must be a positive integer")
		}
	}

	var records []PlaceRecord
	if query := c.QueryParam("query"); query != "" {
		records, err = h.service.Search(c.Request().Context(), origin, query, radius)
	} else {
		records, err = h.service.Nearby(c.Request().Context(), origin, radius)
	}
	if err != nil {
		if err == ErrNoResults {
			return apperror.NewNoResults("no places found near this location")
		}
		return apperror.NewUpstream(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"results": records})
}

// Detail handles GET /api/places/:place_id.
func (h *Handler) Detail(c echo.Context) error {
	placeID := c.Param("place_id")
	if placeID == "" {
		return apperror.NewMissingParameter("place_id")
	}

	record, err := h.service.Details(c.Request().Context(), placeID)
	if err != nil {
		if err == ErrNoResults {
			return apperror.NewNoResults("place not found")
		}
		return apperror.NewUpstream(err)
	}

	return c.JSON(http.StatusOK, record)
}

func parseCoordinate(c echo.Context) (Coordinate, error) {
	rawLat := c.QueryParam("lat")
	if rawLat == "" {
		return Coordinate{}, apperror.NewMissingParameter("lat")
	}
	rawLng := c.QueryParam("lng")
	if rawLng == "" {
		return Coordinate{}, apperror.NewMissingParameter("lng")
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || lat < -90 || lat > 90 {
		return Coordinate{}, apperror.NewBadRequest("lat must be a latitude between -90 and 90")
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil || lng < -180 || lng > 180 {
		return Coordinate{}, apperror.NewBadRequest("lng must be a longitude between -180 and 180")
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}
