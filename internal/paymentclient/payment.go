// Package paymentclient implements the Payment Adapter consumed by the
// order saga (§4.6, §6): a single idempotent charge call. Status SUCCESS is
// required for the saga to finalize; a missing payment identifier is itself
// a failure even when the HTTP call itself succeeds.
package paymentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/platform/resilience"
)

// Status mirrors the Payment gateway's response status (§4.6).
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

// ChargeRequest is the outbound charge request.
type ChargeRequest struct {
	OrderID        string
	Amount         decimal.Decimal
	Method         string
	IdempotencyKey string
}

// ChargeResult is the gateway's response to a charge attempt.
type ChargeResult struct {
	PaymentID string
	OrderID   string
	Amount    decimal.Decimal
	Status    Status
	Reference string
}

// Succeeded reports whether the saga may finalize on this result: status
// SUCCESS and a non-empty payment identifier are both required (§4.6).
func (r ChargeResult) Succeeded() bool {
	return r.Status == StatusSuccess && r.PaymentID != ""
}

// Adapter is the narrow contract the saga depends on.
type Adapter interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// Client is an Adapter backed by the Payment gateway's HTTP API (§6).
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.Breaker
}

// NewClient builds a Client with a per-hop timeout and Circuit Breaker
// (§5: Payment default 10s).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.New("payment"),
	}
}

type chargeWireRequest struct {
	OrderID string `json:"orderId"`
	Amount  string `json:"amount"`
	Method  string `json:"method"`
}

type chargeWireResponse struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// Charge calls POST /v1/payments with the Idempotency-Key header set to
// req.IdempotencyKey (derived by the caller from the client key or the
// order identifier per §4.1 step 5).
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if req.IdempotencyKey == "" {
		return ChargeResult{}, ErrMissingIdempotencyKey
	}

	body, err := json.Marshal(chargeWireRequest{
		OrderID: req.OrderID,
		Amount:  req.Amount.StringFixed(2),
		Method:  req.Method,
	})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("paymentclient: не удалось сериализовать запрос: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/payments", c.baseURL)

	result, err := resilience.Execute(ctx, c.breaker, isTransportFailure, func(ctx context.Context) (chargeWireResponse, error) {
		return doPOST(ctx, c.http, endpoint, req.IdempotencyKey, body)
	})
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("order_id", req.OrderID).Msg("Payment недоступен")
		return ChargeResult{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	amount, err := decimal.NewFromString(result.Amount)
	if err != nil {
		amount = req.Amount
	}

	return ChargeResult{
		PaymentID: result.PaymentID,
		OrderID:   result.OrderID,
		Amount:    amount,
		Status:    Status(result.Status),
		Reference: result.Reference,
	}, nil
}

func doPOST(ctx context.Context, client *http.Client, endpoint, idempotencyKey string, body []byte) (chargeWireResponse, error) {
	var zero chargeWireResponse

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return zero, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return zero, fmt.Errorf("payment ответил статусом %d", resp.StatusCode)
	}

	var out chargeWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("некорректный ответ payment: %w", err)
	}
	return out, nil
}

// isTransportFailure: any non-decode error surfaced from doPOST is a
// network/5xx failure here — the Payment dependency has no documented
// "business miss" shape (§4.6), so every error trips the breaker.
func isTransportFailure(err error) bool {
	return err != nil
}
