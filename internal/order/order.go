// Package order contains the Order Orchestrator's domain entities — the
// persisted shape of an order and its line items, independent of GORM or
// HTTP (§3).
package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the order's lifecycle state (§3).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentStatus tracks the outcome of the saga's payment phase (§3).
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// LineStatus is an order item's independent shipment state (§3).
type LineStatus string

const (
	LineStatusPending   LineStatus = "PENDING"
	LineStatusShipped   LineStatus = "SHIPPED"
	LineStatusCancelled LineStatus = "CANCELLED"
)

// Order is the saga's central entity: a customer's request for a set of
// priced, quantified products, carrying its own lifecycle and a
// tamper-evident signature over its totals.
type Order struct {
	ID               string
	CustomerID       string
	Items            []OrderItem
	Status           Status
	PaymentStatus    PaymentStatus
	TotalAmount      decimal.Decimal
	TotalsSignature  string
	PaymentReference *string
	IdempotencyKey   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderItem is one priced, quantified line of an order. Its price, name,
// SKU, and tax rate are immutable snapshots taken at order-creation time
// (§3) — later catalog changes never retroactively alter a placed order.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	SKU         string
	ProductName string
	Quantity    int64
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
	Status      LineStatus
}

// Validate checks the order's required fields before it is persisted.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerID) == "" {
		return ErrInvalidCustomerID
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrderItems
	}
	for i := range o.Items {
		if err := o.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one order item's required fields.
func (oi *OrderItem) Validate() error {
	if strings.TrimSpace(oi.ProductID) == "" {
		return ErrInvalidProductID
	}
	if strings.TrimSpace(oi.ProductName) == "" {
		return ErrInvalidProductName
	}
	if oi.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if oi.UnitPrice.Sign() <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// CanCancel reports whether the order may still transition to CANCELLED.
// Only a PENDING order — one the saga has not yet finalized — can be
// cancelled, either by client request or by saga compensation (§4.1).
func (o *Order) CanCancel() bool {
	return o.Status == StatusPending
}

// Cancel marks a PENDING order CANCELLED with payment status FAILED; for
// any other status it returns ErrOrderCannotCancel (§4.1 compensation).
func (o *Order) Cancel() error {
	if !o.CanCancel() {
		return ErrOrderCannotCancel
	}
	o.Status = StatusCancelled
	o.PaymentStatus = PaymentStatusFailed
	o.UpdatedAt = time.Now()
	return nil
}

// MarkPaymentSuccess finalizes the saga's happy path: payment succeeded,
// the order stays PENDING until shipment moves it to DELIVERED (§3).
func (o *Order) MarkPaymentSuccess(paymentReference string) error {
	if o.Status != StatusPending {
		return ErrOrderCannotFail
	}
	o.PaymentStatus = PaymentStatusSuccess
	o.PaymentReference = &paymentReference
	o.UpdatedAt = time.Now()
	return nil
}

// CanDeliver reports whether the order may transition to DELIVERED —
// requires a successfully paid, still-pending order (outside the creation
// saga; driven by the shipment pipeline, §3).
func (o *Order) CanDeliver() bool {
	return o.Status == StatusPending && o.PaymentStatus == PaymentStatusSuccess
}

// Deliver marks the order DELIVERED.
func (o *Order) Deliver() error {
	if !o.CanDeliver() {
		return ErrOrderCannotDeliver
	}
	o.Status = StatusDelivered
	o.UpdatedAt = time.Now()
	return nil
}
