package paymentclient

import "errors"

var (
	// ErrPaymentUnavailable is returned when the Payment gateway cannot be
	// reached or responds with a transport-level failure.
	ErrPaymentUnavailable = errors.New("paymentclient: платёжный шлюз недоступен")
	// ErrMissingIdempotencyKey is returned when Charge is called without an
	// idempotency key — the gateway requires one on every charge (§4.6).
	ErrMissingIdempotencyKey = errors.New("paymentclient: отсутствует idempotency key")
)
