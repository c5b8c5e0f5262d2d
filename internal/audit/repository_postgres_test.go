package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pgAuditRowColumns = []string{"id", "action", "entity_type", "entity_id", "user_id", "source", "details", "created_at"}

func newPostgresRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+audit_logs\s*\(id, action, entity_type, entity_id, user_id, source, details, created_at\)\s*VALUES\s*\(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)$`).
		WithArgs(sqlmock.AnyArg(), ActionSelfDestruct, EntityGadget, "g-1", nil, SourceAPI, `{"code":"AB12CD"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), &AuditLog{
		Action:     ActionSelfDestruct,
		EntityType: EntityGadget,
		EntityID:   "g-1",
		Details:    map[string]any{"code": "AB12CD"},
	}))
}

func TestPostgresRepository_Create_Error(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+audit_logs`).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &AuditLog{Action: ActionLogin, EntityType: EntityUser})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inserting audit log")
}

func TestPostgresRepository_List(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM audit_logs WHERE action = \$1 AND entity_id = \$2$`).
		WithArgs(ActionDecommission, "g-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`(?s)FROM audit_logs WHERE action = \$1 AND entity_id = \$2\s+ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4$`).
		WithArgs(ActionDecommission, "g-1", 2, 1).
		WillReturnRows(sqlmock.NewRows(pgAuditRowColumns).
			AddRow("aud-2", ActionDecommission, EntityGadget, "g-1", "u-1", SourceAPI, []byte(`{"from":"Available"}`), at).
			AddRow("aud-1", ActionDecommission, EntityGadget, "g-1", nil, SourceAPI, nil, at.Add(-time.Hour)))

	res, err := repo.List(context.Background(), Filter{Action: ActionDecommission, EntityID: "g-1", Limit: 2, Offset: 1})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Limit)
	assert.Equal(t, 1, res.Offset)
	require.Len(t, res.Logs, 2)
	assert.Equal(t, "u-1", res.Logs[0].UserID)
	assert.Equal(t, "Available", res.Logs[0].Details["from"])
	assert.True(t, res.Logs[0].CreatedAt.Equal(at))
	assert.Empty(t, res.Logs[1].UserID)
	assert.Nil(t, res.Logs[1].Details)
}

func TestPostgresRepository_List_CountError(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("relation does not exist"))

	_, err := repo.List(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "counting audit logs")
}
