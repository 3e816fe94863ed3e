package inventorydb

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ordercore/saga-platform/internal/inventory"
)

type repository struct {
	db *gorm.DB
}

// New creates a GORM-backed inventory.Repository.
func New(db *gorm.DB) inventory.Repository {
	return &repository{db: db}
}

// WithinTx runs fn inside one GORM transaction and hands it a tx-scoped
// txRepository, giving every operation inside fn the row-locking guarantees
// required by §5.
func (r *repository) WithinTx(ctx context.Context, fn func(tx inventory.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepository{db: tx})
	})
}

type txRepository struct {
	db *gorm.DB
}

// RowsForProduct locks every warehouse row for productID with SELECT ... FOR
// UPDATE, so concurrent reservers serialize on the rows they actually touch
// (§4.2.1 step 2, §5).
func (t *txRepository) RowsForProduct(ctx context.Context, productID string) ([]inventory.Row, error) {
	var models []RowModel
	if err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		Find(&models).Error; err != nil {
		return nil, err
	}

	rows := make([]inventory.Row, len(models))
	for i := range models {
		rows[i] = models[i].toDomain()
	}
	return rows, nil
}

// ConditionalReserve performs `reserved = reserved + qty WHERE on_hand -
// reserved >= qty`; zero affected rows means a concurrent reserver won the
// race (§4.2.1 step 3).
func (t *txRepository) ConditionalReserve(ctx context.Context, productID, warehouse string, qty int64) (bool, error) {
	result := t.db.WithContext(ctx).
		Model(&RowModel{}).
		Where("product_id = ? AND warehouse = ? AND on_hand - reserved >= ?", productID, warehouse, qty).
		UpdateColumn("reserved", gorm.Expr("reserved + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (t *txRepository) ActiveReservations(ctx context.Context, idempotencyKey, orderID string) ([]inventory.Reservation, error) {
	var models []ReservationModel
	if err := t.db.WithContext(ctx).
		Where("idempotency_key = ? AND order_id = ?", idempotencyKey, orderID).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.Reservation, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func (t *txRepository) ReservationFor(ctx context.Context, idempotencyKey, orderID, productID string) (*inventory.Reservation, error) {
	var model ReservationModel
	err := t.db.WithContext(ctx).
		Where("idempotency_key = ? AND order_id_key = ? AND product_id_key = ?", idempotencyKey, orderID, productID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	domain := model.toDomain()
	return &domain, nil
}

// InsertReservation inserts a reservation row. A unique-key collision on
// (idempotency_key, order_id, product_id) is swallowed — the caller already
// consulted ReservationFor and treats the existing row as authoritative
// (§4.2.1 step 4).
func (t *txRepository) InsertReservation(ctx context.Context, r inventory.Reservation) error {
	model := reservationModelFromDomain(r)
	err := t.db.WithContext(ctx).Create(model).Error
	if err != nil && isDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (t *txRepository) InsertMovement(ctx context.Context, m inventory.Movement) error {
	return t.db.WithContext(ctx).Create(movementModelFromDomain(m)).Error
}

func (t *txRepository) ReservationsByOrder(ctx context.Context, orderID string) ([]inventory.Reservation, error) {
	var models []ReservationModel
	if err := t.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.Reservation, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func (t *txRepository) UpdateReservationStatus(ctx context.Context, id string, status inventory.ReservationStatus) error {
	result := t.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return inventory.ErrOrderNotFound
	}
	return nil
}

// ReleaseRow decrements reserved by qty, clamped at zero via GREATEST
// (§4.2.3).
func (t *txRepository) ReleaseRow(ctx context.Context, productID, warehouse string, qty int64) error {
	return t.db.WithContext(ctx).
		Model(&RowModel{}).
		Where("product_id = ? AND warehouse = ?", productID, warehouse).
		UpdateColumn("reserved", gorm.Expr("GREATEST(reserved - ?, 0)", qty)).Error
}

// ShipRow decrements both on_hand and reserved by qty, clamped at zero
// (§4.2.4).
func (t *txRepository) ShipRow(ctx context.Context, productID, warehouse string, qty int64) error {
	return t.db.WithContext(ctx).
		Model(&RowModel{}).
		Where("product_id = ? AND warehouse = ?", productID, warehouse).
		Updates(map[string]interface{}{
			"on_hand":  gorm.Expr("GREATEST(on_hand - ?, 0)", qty),
			"reserved": gorm.Expr("GREATEST(reserved - ?, 0)", qty),
		}).Error
}

func (t *txRepository) ExpiredReservations(ctx context.Context, now time.Time) ([]inventory.Reservation, error) {
	var models []ReservationModel
	if err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND expires_at < ?", string(inventory.ReservationActive), now).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.Reservation, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

func (t *txRepository) RowByKey(ctx context.Context, productID, warehouse string) (inventory.Row, error) {
	var model RowModel
	if err := t.db.WithContext(ctx).Where("product_id = ? AND warehouse = ?", productID, warehouse).First(&model).Error; err != nil {
		return inventory.Row{}, err
	}
	return model.toDomain(), nil
}

// isDuplicateKeyError reports whether err is a MySQL duplicate-key error
// (error 1062), surfaced by the composite unique index on
// (idempotency_key, order_id_key, product_id_key).
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062")
}
