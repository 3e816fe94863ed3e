package orderdb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ordercore/saga-platform/internal/order"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	dialector := mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true})
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return gormDB, mock, func() { _ = db.Close() }
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:              "order-1",
		CustomerID:      "cust-1",
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentStatusPending,
		TotalAmount:     decimal.NewFromFloat(47.50),
		TotalsSignature: "abc123",
		IdempotencyKey:  "idem-1",
		Items: []order.OrderItem{
			{
				ProductID:   "p1",
				SKU:         "SKU-1",
				ProductName: "Widget",
				Quantity:    2,
				UnitPrice:   decimal.NewFromInt(10),
				TaxRate:     decimal.NewFromFloat(0.05),
				Status:      order.LineStatusPending,
			},
		},
	}
}

func TestRepository_Create_HappyPath(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_items`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := New(gormDB)
	err := repo.Create(context.Background(), sampleOrder())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_DuplicateIdempotencyKey(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).
		WillReturnError(errors.New("Error 1062: Duplicate entry 'idem-1' for key 'idempotency_key'"))
	mock.ExpectRollback()

	repo := New(gormDB)
	err := repo.Create(context.Background(), sampleOrder())

	assert.ErrorIs(t, err, order.ErrDuplicateOrder)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := New(gormDB)
	_, err := repo.GetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestRepository_GetByID_DBError(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\?").
		WillReturnError(sql.ErrConnDone)

	repo := New(gormDB)
	_, err := repo.GetByID(context.Background(), "order-1")

	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestRepository_UpdateStatus_NotFound(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := New(gormDB)
	err := repo.UpdateStatus(context.Background(), "missing", order.StatusCancelled, order.PaymentStatusFailed, nil)

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql 1062", errors.New("Error 1062: Duplicate entry"), true},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"other error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDuplicateKeyError(tt.err))
		})
	}
}

func TestOrderModel_TableName(t *testing.T) {
	assert.Equal(t, "orders", OrderModel{}.TableName())
	assert.Equal(t, "order_items", OrderItemModel{}.TableName())
}

func TestModelFromDomain_RoundTrip(t *testing.T) {
	o := sampleOrder()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt

	model := modelFromDomain(o)
	back := model.toDomain()

	assert.Equal(t, o.ID, back.ID)
	assert.Equal(t, o.IdempotencyKey, back.IdempotencyKey)
	assert.True(t, o.TotalAmount.Equal(back.TotalAmount))
	require.Len(t, back.Items, 1)
	assert.Equal(t, o.Items[0].ProductID, back.Items[0].ProductID)
}
