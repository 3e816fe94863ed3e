// Package inventorydb is the Inventory Engine's GORM persistence layer
// (§3, §5): stock rows, reservations, and the append-only movement ledger,
// adapted from the order service's repository conventions.
package inventorydb

import (
	"time"

	"github.com/ordercore/saga-platform/internal/inventory"
)

// RowModel is the GORM model for the inventory_rows table.
type RowModel struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID string    `gorm:"column:product_id;type:varchar(36);not null;uniqueIndex:idx_product_warehouse"`
	Warehouse string    `gorm:"column:warehouse;type:varchar(64);not null;uniqueIndex:idx_product_warehouse"`
	OnHand    int64     `gorm:"column:on_hand;not null"`
	Reserved  int64     `gorm:"column:reserved;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (RowModel) TableName() string { return "inventory_rows" }

func (m *RowModel) toDomain() inventory.Row {
	return inventory.Row{
		ProductID: m.ProductID,
		Warehouse: m.Warehouse,
		OnHand:    m.OnHand,
		Reserved:  m.Reserved,
		UpdatedAt: m.UpdatedAt,
	}
}

// ReservationModel is the GORM model for the reservations table.
type ReservationModel struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID         string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID       string    `gorm:"column:product_id;type:varchar(36);not null"`
	SKU             string    `gorm:"column:sku;type:varchar(64);not null"`
	Warehouse       string    `gorm:"column:warehouse;type:varchar(64);not null"`
	Quantity        int64     `gorm:"column:quantity;not null"`
	IdempotencyKey  string    `gorm:"column:idempotency_key;type:varchar(64);not null;uniqueIndex:idx_idem_order_product"`
	OrderIDForKey   string    `gorm:"column:order_id_key;type:varchar(36);not null;uniqueIndex:idx_idem_order_product"`
	ProductIDForKey string    `gorm:"column:product_id_key;type:varchar(36);not null;uniqueIndex:idx_idem_order_product"`
	ReservedAt      time.Time `gorm:"column:reserved_at;not null"`
	ExpiresAt       time.Time `gorm:"column:expires_at;not null;index"`
	Status          string    `gorm:"column:status;type:varchar(20);not null;index"`
}

func (ReservationModel) TableName() string { return "reservations" }

func (m *ReservationModel) toDomain() inventory.Reservation {
	return inventory.Reservation{
		ID:             m.ID,
		OrderID:        m.OrderID,
		ProductID:      m.ProductID,
		SKU:            m.SKU,
		Warehouse:      m.Warehouse,
		Quantity:       m.Quantity,
		IdempotencyKey: m.IdempotencyKey,
		ReservedAt:     m.ReservedAt,
		ExpiresAt:      m.ExpiresAt,
		Status:         inventory.ReservationStatus(m.Status),
	}
}

func reservationModelFromDomain(r inventory.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:              r.ID,
		OrderID:         r.OrderID,
		ProductID:       r.ProductID,
		SKU:             r.SKU,
		Warehouse:       r.Warehouse,
		Quantity:        r.Quantity,
		IdempotencyKey:  r.IdempotencyKey,
		OrderIDForKey:   r.OrderID,
		ProductIDForKey: r.ProductID,
		ReservedAt:      r.ReservedAt,
		ExpiresAt:       r.ExpiresAt,
		Status:          string(r.Status),
	}
}

// MovementModel is the GORM model for the movements table — append-only,
// never updated (§3).
type MovementModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	ProductID string    `gorm:"column:product_id;type:varchar(36);not null;index"`
	SKU       string    `gorm:"column:sku;type:varchar(64);not null"`
	Warehouse string    `gorm:"column:warehouse;type:varchar(64);not null"`
	Type      string    `gorm:"column:type;type:varchar(20);not null"`
	Quantity  int64     `gorm:"column:quantity;not null"`
	OrderID   string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	Note      string    `gorm:"column:note;type:varchar(255)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MovementModel) TableName() string { return "movements" }

func movementModelFromDomain(m inventory.Movement) *MovementModel {
	return &MovementModel{
		ID:        m.ID,
		ProductID: m.ProductID,
		SKU:       m.SKU,
		Warehouse: m.Warehouse,
		Type:      string(m.Type),
		Quantity:  m.Quantity,
		OrderID:   m.OrderID,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}
