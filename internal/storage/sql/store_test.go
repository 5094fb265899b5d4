package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/backend/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := newStoreWithDB(db, "postgres")
	require.NoError(t, err)
	return store, mock
}

func TestNewStore(t *testing.T) {
	t.Run("不支持的驱动返回错误", func(t *testing.T) {
		_, err := NewStore(context.Background(), Config{Driver: "sqlite", DSN: "file::memory:"})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})
}

func TestStore_InsertSubmission(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "submissions"`).
		WithArgs(sqlmock.AnyArg(), "A", "a@x.com", "hi", "2024-01-01T00:00:00.000Z", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	submission := &domain.Submission{Name: "A", Email: "a@x.com", Message: "hi", CreatedAt: "2024-01-01T00:00:00.000Z"}
	err := store.InsertSubmission(context.Background(), submission)

	require.NoError(t, err)
	assert.Len(t, submission.ID, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListSubmissions(t *testing.T) {
	store, mock := newMockStore(t)

	updated := "2024-01-03T00:00:00.000Z"
	rows := sqlmock.NewRows([]string{"id", "name", "email", "message", "created_at", "updated_at"}).
		AddRow("b", "B", "b@x.com", "second", "2024-01-02T00:00:00.000Z", updated).
		AddRow("a", "A", "a@x.com", "first", "2024-01-01T00:00:00.000Z", nil)
	mock.ExpectQuery(`SELECT \* FROM "submissions" ORDER BY created_at DESC`).WillReturnRows(rows)

	submissions, err := store.ListSubmissions(context.Background())

	require.NoError(t, err)
	require.Len(t, submissions, 2)
	assert.Equal(t, "b", submissions[0].ID)
	assert.Equal(t, updated, submissions[0].UpdatedAt)
	assert.Empty(t, submissions[1].UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateSubmission(t *testing.T) {
	t.Run("更新后返回最新记录", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE "submissions" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "submissions" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "message", "created_at", "updated_at"}).
				AddRow("a", "A", "a@x.com", "hi there", "2024-01-01T00:00:00.000Z", "2024-01-02T00:00:00.000Z"))

		message := "hi there"
		got, err := store.UpdateSubmission(context.Background(), "a", domain.SubmissionPatch{Message: &message}, "2024-01-02T00:00:00.000Z")

		require.NoError(t, err)
		assert.Equal(t, "hi there", got.Message)
		assert.Equal(t, "2024-01-02T00:00:00.000Z", got.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("记录不存在返回 ErrNotFound", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE "submissions" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "submissions" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := store.UpdateSubmission(context.Background(), "missing", domain.SubmissionPatch{}, "2024-01-02T00:00:00.000Z")

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_DeleteSubmission(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM "submissions" WHERE id = \$1`).
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "submissions" WHERE id = \$1`).
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := store.DeleteSubmission(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = store.DeleteSubmission(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
