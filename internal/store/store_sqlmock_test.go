package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/agencyos/internal/model"
)

// newMockStore builds a Store over a go-sqlmock connection so a test can
// assert the exact SQL a write path issues, without a real sqlite file.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	// "sqlite3" here only selects sqlx's '?' bindvar style for NamedExecContext;
	// the actual driver is still the sqlmock one registered by sqlmock.New().
	return &Store{db: sqlx.NewDb(db, "sqlite3")}, mock
}

func TestSetTaskDerivedLinkIssuesExpectedUpdate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	clientID := "client_1"
	mock.ExpectExec(`UPDATE tasks SET brand_id=\?, client_id=\?, project_link_status=\?, client_link_status=\?, updated_at=\? WHERE id=\?`).
		WithArgs(nil, clientID, string(model.LinkUnlinked), string(model.LinkLinked), sqlmock.AnyArg(), "task_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SetTaskDerivedLink(ctx, "task_1", nil, &clientID, model.LinkUnlinked, model.LinkLinked)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertClientIssuesUpsertOnConflict(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO clients`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := &model.Client{
		ID:         "client_1",
		Name:       "Acme Co",
		Tier:       model.TierA,
		Lifecycle:  model.ClientActive,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.UpsertClient(ctx, c)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
