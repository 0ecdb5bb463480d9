package memories

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/apperror"
	"github.com/memoria-app/memoria/internal/plugins/auth"
	"github.com/memoria-app/memoria/internal/plugins/media"
	"github.com/memoria-app/memoria/internal/plugins/places"
)

// Handler exposes the memory REST surface. Create and Update accept
// multipart form data so the attachment travels with the entry in one
// request; the blob and row writes are then ordered by the service.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/memories.
func (h *Handler) Create(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	input := CreateInput{
		UserID:  userID,
		Emotion: Emotion(c.FormValue("emotion")),
		Text:    c.FormValue("text"),
	}

	input.Lat, err = parseFloatField(c, "lat", -90, 90)
	if err != nil {
		return err
	}
	input.Lng, err = parseFloatField(c, "lng", -180, 180)
	if err != nil {
		return err
	}
	input.Tags, err = parseTagsField(c)
	if err != nil {
		return err
	}
	input.Place, err = parsePlaceField(c)
	if err != nil {
		return err
	}
	input.Media, err = readAttachment(c)
	if err != nil {
		return err
	}

	m, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

// List handles GET /api/memories. Filters arrive as query parameters:
// emotions (comma-separated emoji), tags (comma-separated), from and to
// (RFC 3339 dates), and q (text substring).
func (h *Handler) List(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	f := Filter{Query: c.QueryParam("q")}
	for _, raw := range splitParam(c.QueryParam("emotions")) {
		f.Emotions = append(f.Emotions, Emotion(raw))
	}
	f.Tags = splitParam(c.QueryParam("tags"))

	f.From, err = parseTimeParam(c, "from")
	if err != nil {
		return err
	}
	f.To, err = parseTimeParam(c, "to")
	if err != nil {
		return err
	}

	out, err := h.service.List(c.Request().Context(), userID, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": out})
}

// Get handles GET /api/memories/:id.
func (h *Handler) Get(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	m, err := h.service.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// Update handles PUT /api/memories/:id.
func (h *Handler) Update(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	input := UpdateInput{
		Emotion:     Emotion(c.FormValue("emotion")),
		Text:        c.FormValue("text"),
		RemoveMedia: c.FormValue("remove_media") == "true",
	}
	input.Tags, err = parseTagsField(c)
	if err != nil {
		return err
	}
	input.Media, err = readAttachment(c)
	if err != nil {
		return err
	}

	m, err := h.service.Update(c.Request().Context(), userID, c.Param("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /api/memories/:id.
func (h *Handler) Delete(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// readAttachment pulls the optional "media" file out of the multipart form.
func readAttachment(c echo.Context) (*media.UploadInput, error) {
	fh, err := c.FormFile("media")
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		// Echo surfaces a missing multipart section as a generic error.
		if strings.Contains(err.Error(), "no such file") || err == echo.ErrBadRequest {
			return nil, nil
		}
		return nil, apperror.NewBadRequest("malformed multipart form")
	}

	src, err := fh.Open()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	return &media.UploadInput{
		OriginalName: fh.Filename,
		MimeType:     fh.Header.Get("Content-Type"),
		FileBytes:    data,
	}, nil
}

// parsePlaceField decodes the optional "place" form field, a JSON-encoded
// place record captured at compose time.
func parsePlaceField(c echo.Context) (*places.PlaceRecord, error) {
	raw := c.FormValue("place")
	if raw == "" {
		return nil, nil
	}
	var rec places.PlaceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, apperror.NewBadRequest("place must be a JSON place record")
	}
	return &rec, nil
}

// parseTagsField decodes the "tags" form field, a JSON array of tag names.
func parseTagsField(c echo.Context) ([]string, error) {
	raw := c.FormValue("tags")
	if raw == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, apperror.NewBadRequest("tags must be a JSON array of strings")
	}
	return tags, nil
}

func parseFloatField(c echo.Context, name string, min, max float64) (float64, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return 0, apperror.NewMissingParameter(name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < min || v > max {
		return 0, apperror.NewBadRequest(name + " is out of range")
	}
	return v, nil
}

func parseTimeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if t, err = time.Parse("2006-01-02", raw); err != nil {
			return nil, apperror.NewBadRequest(name + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
		}
	}
	return &t, nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
