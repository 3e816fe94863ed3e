package inventory

import "errors"

var (
	// ErrEmptyItems is returned when Reserve or Ship is called with no lines.
	ErrEmptyItems = errors.New("inventory: список позиций не может быть пустым")
	// ErrInvalidQuantity is returned for a non-positive requested quantity.
	ErrInvalidQuantity = errors.New("inventory: количество должно быть положительным")
	// ErrMissingIdempotencyKey is returned when Reserve is called without a key.
	ErrMissingIdempotencyKey = errors.New("inventory: idempotency key обязателен")
	// ErrDuplicateIdempotencyKey mirrors §4.2.1: a non-ACTIVE reservation set
	// already exists for this (key, order) pair.
	ErrDuplicateIdempotencyKey = errors.New("inventory: дублирующийся idempotency key")
	// ErrOrderNotFound is returned when a reservation status update matches
	// no row. Release and Confirm of an order with no reservations return nil.
	ErrOrderNotFound = errors.New("inventory: резервы для заказа не найдены")
)
