package totals

import "errors"

var (
	// ErrNoItems is returned when Calculate is given an empty item list.
	ErrNoItems = errors.New("totals: список позиций пуст")
	// ErrInvalidQuantity is returned when any line item has a non-positive quantity.
	ErrInvalidQuantity = errors.New("totals: количество позиции должно быть положительным")
)
