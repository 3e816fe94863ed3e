package inventoryclient

import "errors"

var (
	// ErrInventoryUnavailable is returned when the Inventory Engine cannot
	// be reached or responds with a transport-level failure.
	ErrInventoryUnavailable = errors.New("inventoryclient: сервис инвентаря недоступен")
	// ErrDuplicateIdempotencyKey mirrors the Inventory Engine's 409
	// DUPLICATE_IDEMPOTENCY_KEY response (§4.2.1, §6).
	ErrDuplicateIdempotencyKey = errors.New("inventoryclient: дублирующийся idempotency key")
)
