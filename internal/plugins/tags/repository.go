package tags

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/memoria-app/memoria/internal/apperror"
)

// Repository defines the data access contract for tags. All SQL lives here.
type Repository interface {
	Create(ctx context.Context, tag *Tag) error
	FindByID(ctx context.Context, userID, id string) (*Tag, error)
	ListByUser(ctx context.Context, userID string) ([]Tag, error)
	Update(ctx context.Context, tag *Tag) error
	Reorder(ctx context.Context, userID string, orderedIDs []string) error
	Delete(ctx context.Context, userID, id string) error
}

// tagRepository implements Repository using MariaDB with hand-written SQL.
// The tags.name column uses a binary collation, so the per-user uniqueness
// constraint is case-sensitive: "Cafe" and "cafe" are distinct tags.
type tagRepository struct {
	db *sql.DB
}

// NewRepository creates a Repository backed by the given database connection.
func NewRepository(db *sql.DB) Repository {
	return &tagRepository{db: db}
}

const tagCols = `id, user_id, name, is_favorite, display_order, created_at`

// Create inserts a new tag at the end of the user's display order. The
// order is computed inside the INSERT so two concurrent creates cannot
// claim the same slot.
func (r *tagRepository) Create(ctx context.Context, tag *Tag) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, user_id, name, is_favorite, display_order)
		 SELECT ?, ?, ?, ?, COALESCE(MAX(display_order), -1) + 1
		 FROM tags WHERE user_id = ?`,
		tag.ID, tag.UserID, tag.Name, tag.IsFavorite, tag.UserID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return apperror.NewConflict("a tag with this name already exists")
		}
		return fmt.Errorf("inserting tag: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT display_order FROM tags WHERE id = ?`, tag.ID,
	).Scan(&tag.DisplayOrder)
	if err != nil {
		return fmt.Errorf("reading back display order: %w", err)
	}
	return nil
}

// FindByID retrieves a single tag scoped to its owner.
func (r *tagRepository) FindByID(ctx context.Context, userID, id string) (*Tag, error) {
	var t Tag
	err := r.db.QueryRowContext(ctx,
		`SELECT `+tagCols+` FROM tags WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&t.ID, &t.UserID, &t.Name, &t.IsFavorite, &t.DisplayOrder, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.NewNotFound("tag not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying tag by id: %w", err)
	}
	return &t, nil
}

// ListByUser returns the user's tags: favorites first, then by display
// order. Ties fall back to name so the listing is stable.
func (r *tagRepository) ListByUser(ctx context.Context, userID string) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagCols+` FROM tags WHERE user_id = ?
		 ORDER BY is_favorite DESC, display_order ASC, name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.IsFavorite, &t.DisplayOrder, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}
	return out, nil
}

// Update modifies a tag's name and favorite flag.
func (r *tagRepository) Update(ctx context.Context, tag *Tag) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, is_favorite = ? WHERE id = ? AND user_id = ?`,
		tag.Name, tag.IsFavorite, tag.ID, tag.UserID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return apperror.NewConflict("a tag with this name already exists")
		}
		return fmt.Errorf("updating tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return apperror.NewNotFound("tag not found")
	}
	return err
}

// Reorder rewrites display_order for the given IDs in one transaction. IDs
// not owned by the user are silently skipped by the WHERE clause.
func (r *tagRepository) Reorder(ctx context.Context, userID string, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting reorder: %w", err)
	}
	defer tx.Rollback()

	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tags SET display_order = ? WHERE id = ? AND user_id = ?`,
			i, id, userID,
		); err != nil {
			return fmt.Errorf("reordering tag %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Delete removes a tag scoped to its owner.
func (r *tagRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tags WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return apperror.NewNotFound("tag not found")
	}
	return err
}

// isDuplicateEntry detects MariaDB unique constraint violations.
func isDuplicateEntry(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}
