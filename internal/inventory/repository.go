package inventory

import (
	"context"
	"time"
)

// Repository is the Inventory Engine's persistence contract. All mutating
// operations that span more than one row happen inside WithinTx so the
// row-locking / conditional-update guarantees of §5 hold.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository is the set of row-level operations available inside one
// Repository transaction (§4.2.1–§4.2.5).
type TxRepository interface {
	// RowsForProduct returns every warehouse's Row for productID, locked for
	// update, in no particular order; Engine sorts them by descending
	// available quantity itself (§4.2.1 step 2).
	RowsForProduct(ctx context.Context, productID string) ([]Row, error)

	// ConditionalReserve attempts `reserved += qty` guarded by
	// `on_hand - reserved >= qty`; ok is false when a concurrent reserver
	// won the race (§4.2.1 step 3).
	ConditionalReserve(ctx context.Context, productID, warehouse string, qty int64) (ok bool, err error)

	// ActiveReservations returns reservations already recorded under
	// (idempotencyKey, orderID), regardless of status (§4.2.1 step 1).
	ActiveReservations(ctx context.Context, idempotencyKey, orderID string) ([]Reservation, error)

	// ReservationFor returns the existing reservation for the unique key
	// (idempotencyKey, orderID, productID), if any — reused instead of
	// re-inserted on retry (§4.2.1 step 4).
	ReservationFor(ctx context.Context, idempotencyKey, orderID, productID string) (*Reservation, error)

	// InsertReservation persists a new ACTIVE reservation row.
	InsertReservation(ctx context.Context, r Reservation) error

	// InsertMovement appends one ledger entry.
	InsertMovement(ctx context.Context, m Movement) error

	// ReservationsByOrder returns all reservations for orderID.
	ReservationsByOrder(ctx context.Context, orderID string) ([]Reservation, error)

	// UpdateReservationStatus transitions one reservation's status.
	UpdateReservationStatus(ctx context.Context, id string, status ReservationStatus) error

	// ReleaseRow sets a Row's reserved field to max(reserved - qty, 0)
	// (§4.2.3).
	ReleaseRow(ctx context.Context, productID, warehouse string, qty int64) error

	// ShipRow decrements both on-hand and reserved by qty, clamped at zero
	// (§4.2.4).
	ShipRow(ctx context.Context, productID, warehouse string, qty int64) error

	// ExpiredReservations returns ACTIVE reservations with expiresAt < now,
	// locked for update (§4.2.5).
	ExpiredReservations(ctx context.Context, now time.Time) ([]Reservation, error)

	// RowByKey returns the Row for (productID, warehouse), used to compute
	// post-reservation available for the low-stock signal (§4.2.1).
	RowByKey(ctx context.Context, productID, warehouse string) (Row, error)
}
