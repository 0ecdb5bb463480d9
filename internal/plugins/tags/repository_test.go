package tags

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/memoria-app/memoria/internal/apperror"
)

func newMockDB(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("opening mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestCreateComputesOrderInsideInsert(t *testing.T) {
	repo, mock := newMockDB(t)

	// A single statement both picks the next slot and inserts, so two
	// concurrent creates cannot claim the same display order.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tags`)).
		WithArgs("t-1", "user-1", "Coffee", false, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT display_order FROM tags WHERE id = ?`)).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"display_order"}).AddRow(3))

	tag := &Tag{ID: "t-1", UserID: "user-1", Name: "Coffee"}
	if err := repo.Create(context.Background(), tag); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tag.DisplayOrder != 3 {
		t.Errorf("assigned display order not read back, got %d", tag.DisplayOrder)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateMapsDuplicateToConflict(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tags`)).
		WillReturnError(errors.New("Error 1062: Duplicate entry 'user-1-Coffee' for key 'uq_user_tag_name'"))

	err := repo.Create(context.Background(), &Tag{ID: "t-1", UserID: "user-1", Name: "Coffee"})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Type != "conflict" {
		t.Fatalf("expected a conflict error, got %v", err)
	}
}
