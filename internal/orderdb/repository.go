// Package orderdb persists the Order Orchestrator's orders and order items
// (§3), adapted from the order service's GORM repository.
package orderdb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ordercore/saga-platform/internal/order"
)

// Repository defines the persistence operations the saga depends on.
type Repository interface {
	// Create persists a new order with its items in one transaction.
	Create(ctx context.Context, o *order.Order) error
	// GetByID returns an order with its items loaded.
	GetByID(ctx context.Context, id string) (*order.Order, error)
	// GetByIdempotencyKey returns the order created under the given client
	// idempotency key. CreateOrder does not call it; duplicate creation
	// requests are caught by the idempotency store's gate (§4.1).
	GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error)
	// List returns the most recent orders, newest first (§6).
	List(ctx context.Context, limit int) ([]*order.Order, error)
	// UpdateStatus atomically updates an order's status, payment status,
	// and optional payment reference.
	UpdateStatus(ctx context.Context, id string, status order.Status, paymentStatus order.PaymentStatus, paymentReference *string) error
}

// OrderModel is the GORM model for the orders table.
type OrderModel struct {
	ID               string           `gorm:"column:id;type:varchar(36);primaryKey"`
	CustomerID       string           `gorm:"column:customer_id;type:varchar(36);not null;index"`
	Status           string           `gorm:"column:status;type:varchar(20);not null;index"`
	PaymentStatus    string           `gorm:"column:payment_status;type:varchar(20);not null"`
	TotalAmount      string           `gorm:"column:total_amount;type:decimal(14,2);not null"`
	TotalsSignature  string           `gorm:"column:totals_signature;type:char(64);not null"`
	PaymentReference *string          `gorm:"column:payment_reference;type:varchar(64)"`
	IdempotencyKey   *string          `gorm:"column:idempotency_key;type:varchar(64);uniqueIndex"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Items            []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the orders table name.
func (OrderModel) TableName() string { return "orders" }

// OrderItemModel is the GORM model for the order_items table.
type OrderItemModel struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID     string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID   string    `gorm:"column:product_id;type:varchar(36);not null"`
	SKU         string    `gorm:"column:sku;type:varchar(64);not null"`
	ProductName string    `gorm:"column:product_name;type:varchar(255);not null"`
	Quantity    int64     `gorm:"column:quantity;not null"`
	UnitPrice   string    `gorm:"column:unit_price;type:decimal(14,2);not null"`
	TaxRate     string    `gorm:"column:tax_rate;type:decimal(6,4);not null"`
	Status      string    `gorm:"column:status;type:varchar(20);not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the order_items table name.
func (OrderItemModel) TableName() string { return "order_items" }

func (m *OrderModel) toDomain() *order.Order {
	o := &order.Order{
		ID:               m.ID,
		CustomerID:       m.CustomerID,
		Status:           order.Status(m.Status),
		PaymentStatus:    order.PaymentStatus(m.PaymentStatus),
		TotalAmount:      decimal.RequireFromString(m.TotalAmount),
		TotalsSignature:  m.TotalsSignature,
		PaymentReference: m.PaymentReference,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		Items:            make([]order.OrderItem, len(m.Items)),
	}
	if m.IdempotencyKey != nil {
		o.IdempotencyKey = *m.IdempotencyKey
	}
	for i, item := range m.Items {
		o.Items[i] = *item.toDomain()
	}
	return o
}

func (m *OrderItemModel) toDomain() *order.OrderItem {
	return &order.OrderItem{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductID:   m.ProductID,
		SKU:         m.SKU,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice:   decimal.RequireFromString(m.UnitPrice),
		TaxRate:     decimal.RequireFromString(m.TaxRate),
		Status:      order.LineStatus(m.Status),
	}
}

func modelFromDomain(o *order.Order) *OrderModel {
	model := &OrderModel{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		TotalAmount:      o.TotalAmount.StringFixed(2),
		TotalsSignature:  o.TotalsSignature,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            make([]OrderItemModel, len(o.Items)),
	}
	if o.IdempotencyKey != "" {
		model.IdempotencyKey = &o.IdempotencyKey
	}
	for i, item := range o.Items {
		model.Items[i] = *itemModelFromDomain(&item)
	}
	return model
}

func itemModelFromDomain(oi *order.OrderItem) *OrderItemModel {
	return &OrderItemModel{
		ID:          oi.ID,
		OrderID:     oi.OrderID,
		ProductID:   oi.ProductID,
		SKU:         oi.SKU,
		ProductName: oi.ProductName,
		Quantity:    oi.Quantity,
		UnitPrice:   oi.UnitPrice.StringFixed(2),
		TaxRate:     oi.TaxRate.StringFixed(4),
		Status:      string(oi.Status),
	}
}

type repository struct {
	db *gorm.DB
}

// New creates a GORM-backed Repository.
func New(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create persists the order and its items in a single transaction (§4.1
// phase 3). Items are inserted via GORM's association on the parent Create.
func (r *repository) Create(ctx context.Context, o *order.Order) error {
	model := modelFromDomain(o)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return order.ErrDuplicateOrder
		}
		return err
	}

	o.CreatedAt = model.CreatedAt
	o.UpdatedAt = model.UpdatedAt
	for i := range o.Items {
		o.Items[i].ID = model.Items[i].ID
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *repository) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Preload("Items").Where("idempotency_key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// List returns the most recent orders (§6: GET /v1/orders → last 50 desc).
func (r *repository) List(ctx context.Context, limit int) ([]*order.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	orders := make([]*order.Order, len(models))
	for i := range models {
		orders[i] = models[i].toDomain()
	}
	return orders, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status order.Status, paymentStatus order.PaymentStatus, paymentReference *string) error {
	updates := map[string]interface{}{
		"status":         string(status),
		"payment_status": string(paymentStatus),
		"updated_at":     time.Now(),
	}
	if paymentReference != nil {
		updates["payment_reference"] = *paymentReference
	}

	result := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// isDuplicateKeyError reports whether err is a MySQL duplicate-key error
// (error 1062), surfaced by a unique index violation on idempotency_key.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062")
}
