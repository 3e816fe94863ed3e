// Package inventoryclient is the Order Orchestrator's HTTP client for the
// Inventory Engine's reserve/release operations (§4.1 step 4, §6). The
// Inventory Engine runs as its own service — the saga never touches its
// database directly.
package inventoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/platform/resilience"
)

// ReserveStatus mirrors the Inventory Engine's reserve response status (§4.2.1).
type ReserveStatus string

const (
	StatusReserved         ReserveStatus = "RESERVED"
	StatusPartial          ReserveStatus = "PARTIAL"
	StatusDuplicateIdemKey ReserveStatus = "DUPLICATE_IDEMPOTENCY_KEY"
)

// ReserveItem is one line of a reserve request.
type ReserveItem struct {
	ProductID string
	Quantity  int64
	SKU       string
}

// ReservedLine is one allocated (or unsatisfied) line of a reserve response.
type ReservedLine struct {
	ProductID     string
	SKU           string
	Warehouse     string
	ReservedQty   int64
	RequestedQty  int64
	ReservationID string
}

// ReserveResult is the Inventory Engine's reserve response (§4.2.1).
type ReserveResult struct {
	Status     ReserveStatus
	OrderID    string
	Items      []ReservedLine
	ExpiresAt  time.Time
	Idempotent bool
}

// Succeeded reports whether every requested item was allocated — the only
// outcome the saga treats as success (§4.1 step 4: PARTIAL is failure).
func (r ReserveResult) Succeeded() bool {
	return r.Status == StatusReserved
}

// Adapter is the narrow contract the saga depends on; implemented here by
// Client (real HTTP) and swappable for a test double in saga tests.
type Adapter interface {
	Reserve(ctx context.Context, orderID, idempotencyKey string, items []ReserveItem) (ReserveResult, error)
	Release(ctx context.Context, orderID string) error
}

// Client is the Inventory Engine's HTTP client.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.Breaker
}

// NewClient builds a Client with a per-hop timeout and Circuit Breaker
// (§5: Inventory default 8s).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.New("inventory"),
	}
}

type reserveWireItem struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
	SKU       string `json:"sku,omitempty"`
}

type reserveWireRequest struct {
	OrderID string            `json:"orderId"`
	Items   []reserveWireItem `json:"items"`
}

type reserveWireLine struct {
	ProductID     string `json:"productId"`
	SKU           string `json:"sku"`
	Warehouse     string `json:"warehouse"`
	ReservedQty   int64  `json:"reservedQty"`
	RequestedQty  int64  `json:"requestedQty"`
	ReservationID string `json:"reservationId"`
}

type reserveWireResponse struct {
	Status     string            `json:"status"`
	OrderID    string            `json:"orderId"`
	Items      []reserveWireLine `json:"items"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	Idempotent bool              `json:"idempotent"`
}

// Reserve calls POST /v1/inventory/reserve with the given Idempotency-Key.
func (c *Client) Reserve(ctx context.Context, orderID, idempotencyKey string, items []ReserveItem) (ReserveResult, error) {
	wireItems := make([]reserveWireItem, len(items))
	for i, it := range items {
		wireItems[i] = reserveWireItem{ProductID: it.ProductID, Qty: it.Quantity, SKU: it.SKU}
	}

	body, err := json.Marshal(reserveWireRequest{OrderID: orderID, Items: wireItems})
	if err != nil {
		return ReserveResult{}, fmt.Errorf("inventoryclient: не удалось сериализовать запрос: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/inventory/reserve", c.baseURL)

	resp, err := resilience.Execute(ctx, c.breaker, isTransportFailure, func(ctx context.Context) (reserveWireResponse, error) {
		return doPOST(ctx, c.http, endpoint, idempotencyKey, body)
	})
	if err != nil {
		if errors.Is(err, errDuplicateWire) {
			return ReserveResult{}, ErrDuplicateIdempotencyKey
		}
		logger.FromContext(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Inventory Engine недоступен")
		return ReserveResult{}, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}

	lines := make([]ReservedLine, len(resp.Items))
	for i, it := range resp.Items {
		lines[i] = ReservedLine{
			ProductID:     it.ProductID,
			SKU:           it.SKU,
			Warehouse:     it.Warehouse,
			ReservedQty:   it.ReservedQty,
			RequestedQty:  it.RequestedQty,
			ReservationID: it.ReservationID,
		}
	}

	return ReserveResult{
		Status:     ReserveStatus(resp.Status),
		OrderID:    resp.OrderID,
		Items:      lines,
		ExpiresAt:  resp.ExpiresAt,
		Idempotent: resp.Idempotent,
	}, nil
}

// Release calls POST /v1/inventory/release for the given order identifier.
// This is the saga's compensation action (§4.1) and is itself idempotent:
// re-release of an already-released order is a no-op on the Inventory side.
func (c *Client) Release(ctx context.Context, orderID string) error {
	body, err := json.Marshal(map[string]string{"orderId": orderID})
	if err != nil {
		return fmt.Errorf("inventoryclient: не удалось сериализовать запрос: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/inventory/release", c.baseURL)

	_, err = resilience.Execute(ctx, c.breaker, isTransportFailure, func(ctx context.Context) (struct{}, error) {
		_, postErr := doPOST(ctx, c.http, endpoint, "", body)
		return struct{}{}, postErr
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	return nil
}

func doPOST(ctx context.Context, client *http.Client, endpoint, idempotencyKey string, body []byte) (reserveWireResponse, error) {
	var zero reserveWireResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return zero, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		return zero, errDuplicateWire
	}
	if resp.StatusCode >= 500 {
		return zero, fmt.Errorf("inventory ответил статусом %d", resp.StatusCode)
	}

	var out reserveWireResponse
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return zero, fmt.Errorf("некорректный ответ inventory: %w", err)
		}
	}
	return out, nil
}

var errDuplicateWire = errors.New("inventoryclient: 409 duplicate idempotency key")

func isTransportFailure(err error) bool {
	return err != nil && !errors.Is(err, errDuplicateWire)
}
