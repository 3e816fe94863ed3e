package idempotency

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return gormDB, mock, func() { _ = db.Close() }
}

func TestGormStore_Acquire_Created(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `idempotency_records`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := NewStore(gormDB)
	result, err := store.Acquire(context.Background(), "key-1", "/v1/orders", "hash")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
}

func TestGormStore_Acquire_ReplayOnFinalizedRecord(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `idempotency_records`")).
		WillReturnError(errors.New("Error 1062: Duplicate entry"))
	mock.ExpectRollback()

	status := 201
	body := `{"id":"order-1"}`
	rows := sqlmock.NewRows([]string{"idempotency_key", "resource_path", "request_body_hash", "response_status", "response_body", "created_at"}).
		AddRow("key-1", "/v1/orders", "hash", status, body, time.Now())
	mock.ExpectQuery("SELECT \\* FROM `idempotency_records` WHERE idempotency_key = \\?").
		WillReturnRows(rows)

	store := NewStore(gormDB)
	result, err := store.Acquire(context.Background(), "key-1", "/v1/orders", "hash")

	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, result.Outcome)
	assert.Equal(t, 201, result.ResponseStatus)
	assert.Equal(t, body, result.ResponseBody)
}

func TestGormStore_Acquire_ConflictOnPendingRecord(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `idempotency_records`")).
		WillReturnError(errors.New("Error 1062: Duplicate entry"))
	mock.ExpectRollback()

	rows := sqlmock.NewRows([]string{"idempotency_key", "resource_path", "request_body_hash", "response_status", "response_body", "created_at"}).
		AddRow("key-1", "/v1/orders", "hash", nil, nil, time.Now())
	mock.ExpectQuery("SELECT \\* FROM `idempotency_records` WHERE idempotency_key = \\?").
		WillReturnRows(rows)

	store := NewStore(gormDB)
	result, err := store.Acquire(context.Background(), "key-1", "/v1/orders", "hash")

	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, result.Outcome)
}

func TestGormStore_Finalize_AlreadyFinalized(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `idempotency_records`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	store := NewStore(gormDB)
	err := store.Finalize(context.Background(), "key-1", 201, `{}`)

	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}
