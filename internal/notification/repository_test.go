package notification

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gdb, mock
}

func TestRepositoryMarkInAppAsReadNotFound(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "in_app_notifications" SET "is_read"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkInAppAsRead(context.Background(), 7, "u-2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryMarkAllInAppAsRead(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "in_app_notifications" SET "is_read"=$1,"updated_at"=$2 WHERE user_id = $3 AND is_read = $4`)).
		WithArgs(true, sqlmock.AnyArg(), "u-1", false).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkAllInAppAsRead(context.Background(), "u-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetUserDeviceTokens(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "device_token" FROM "device_tokens" WHERE user_id = $1 AND is_active = $2`)).
		WithArgs("u-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"device_token"}).AddRow("tok-a").AddRow("tok-b"))

	tokens, err := repo.GetUserDeviceTokens(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b"}, tokens)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDeactivateTokensEmpty(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewRepository(gdb)

	require.NoError(t, repo.DeactivateTokens(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
