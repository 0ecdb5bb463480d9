package memories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Repository defines persistence operations for memories.
type Repository interface {
	Create(ctx context.Context, m *Memory) error
	GetByID(ctx context.Context, userID, id string) (*Memory, error)
	ListByUser(ctx context.Context, userID string, f Filter) ([]Memory, error)
	Update(ctx context.Context, m *Memory) error
	Delete(ctx context.Context, userID, id string) error
}

// memoryRepo is the MariaDB implementation of Repository.
type memoryRepo struct {
	db *sql.DB
}

// NewRepository creates a MariaDB-backed memory repository.
func NewRepository(db *sql.DB) Repository {
	return &memoryRepo{db: db}
}

// memoryCols is the column list for memory queries.
const memoryCols = `id, user_id, emotion, text, lat, lng,
       media_url, thumbnail_url, media_type,
       place_id, place_name, place_address, region, locality,
       tags, created_at, updated_at`

// scanMemory reads a row into a Memory. Tags are stored as a JSON array.
func scanMemory(scanner interface{ Scan(...any) error }) (*Memory, error) {
	m := &Memory{}
	var tagsJSON []byte
	err := scanner.Scan(&m.ID, &m.UserID, &m.Emotion, &m.Text, &m.Lat, &m.Lng,
		&m.MediaURL, &m.ThumbnailURL, &m.MediaType,
		&m.PlaceID, &m.PlaceName, &m.PlaceAddress, &m.Region, &m.Locality,
		&tagsJSON, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &m.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for memory %s: %w", m.ID, err)
		}
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

// Create inserts a new memory.
func (r *memoryRepo) Create(ctx context.Context, m *Memory) error {
	tagsJSON, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, emotion, text, lat, lng,
		        media_url, thumbnail_url, media_type,
		        place_id, place_name, place_address, region, locality, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Emotion, m.Text, m.Lat, m.Lng,
		m.MediaURL, m.ThumbnailURL, m.MediaType,
		m.PlaceID, m.PlaceName, m.PlaceAddress, m.Region, m.Locality, tagsJSON,
	)
	return err
}

// GetByID returns one memory scoped to its owner, or nil when absent.
func (r *memoryRepo) GetByID(ctx context.Context, userID, id string) (*Memory, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memoryCols+` FROM memories WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	return scanMemory(row)
}

// ListByUser returns the user's memories, newest first, narrowed by the
// filter. Tag matching is overlap: a memory qualifies when it carries any
// of the requested tags.
func (r *memoryRepo) ListByUser(ctx context.Context, userID string, f Filter) ([]Memory, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + memoryCols + ` FROM memories WHERE user_id = ?`)
	args := []any{userID}

	if len(f.Emotions) > 0 {
		sb.WriteString(` AND emotion IN (?` + strings.Repeat(", ?", len(f.Emotions)-1) + `)`)
		for _, e := range f.Emotions {
			args = append(args, string(e))
		}
	}
	if len(f.Tags) > 0 {
		clauses := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			encoded, err := json.Marshal(tag)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, `JSON_CONTAINS(tags, ?)`)
			args = append(args, string(encoded))
		}
		sb.WriteString(` AND (` + strings.Join(clauses, " OR ") + `)`)
	}
	if f.From != nil {
		sb.WriteString(` AND created_at >= ?`)
		args = append(args, f.From.UTC().Format(time.DateTime))
	}
	if f.To != nil {
		sb.WriteString(` AND created_at <= ?`)
		args = append(args, f.To.UTC().Format(time.DateTime))
	}
	if f.Query != "" {
		// Case-insensitive by collation; covers the text and the place
		// snapshot names.
		sb.WriteString(` AND (text LIKE ? OR region LIKE ? OR locality LIKE ? OR place_name LIKE ?)`)
		needle := "%" + escapeLike(f.Query) + "%"
		args = append(args, needle, needle, needle, needle)
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Update rewrites the mutable columns of a memory. The coordinate and place
// snapshot columns are deliberately not in the SET list.
func (r *memoryRepo) Update(ctx context.Context, m *Memory) error {
	tagsJSON, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}
	// updated_at is set explicitly so a no-op edit still reports an
	// affected row; the driver otherwise returns 0 for identical values.
	res, err := r.db.ExecContext(ctx,
		`UPDATE memories
		 SET emotion = ?, text = ?, media_url = ?, thumbnail_url = ?,
		     media_type = ?, tags = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		m.Emotion, m.Text, m.MediaURL, m.ThumbnailURL,
		m.MediaType, tagsJSON, m.ID, m.UserID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// Delete removes a memory scoped to its owner.
func (r *memoryRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM memories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// escapeLike escapes LIKE metacharacters in a user-supplied substring.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
