package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercore/saga-platform/internal/catalogclient"
	"github.com/ordercore/saga-platform/internal/events"
	"github.com/ordercore/saga-platform/internal/idempotency"
	"github.com/ordercore/saga-platform/internal/inventoryclient"
	"github.com/ordercore/saga-platform/internal/order"
	"github.com/ordercore/saga-platform/internal/paymentclient"
	"github.com/ordercore/saga-platform/internal/saga"
)

// ---- fakes shared across this package's tests ----

type fakeIdempotencyStore struct{}

func (f *fakeIdempotencyStore) Acquire(ctx context.Context, key, resourcePath, bodyHash string) (idempotency.AcquireResult, error) {
	return idempotency.AcquireResult{Outcome: idempotency.OutcomeCreated}, nil
}

func (f *fakeIdempotencyStore) Finalize(ctx context.Context, key string, status int, body string) error {
	return nil
}

type fakeOrderRepo struct {
	orders map[string]*order.Order
	err    error
}

func newFakeOrderRepo() *fakeOrderRepo { return &fakeOrderRepo{orders: map[string]*order.Order{}} }

func (f *fakeOrderRepo) Create(ctx context.Context, o *order.Order) error {
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, order.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return nil, order.ErrOrderNotFound
}

func (f *fakeOrderRepo) List(ctx context.Context, limit int) ([]*order.Order, error) {
	out := make([]*order.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id string, status order.Status, paymentStatus order.PaymentStatus, paymentReference *string) error {
	o, ok := f.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	return nil
}

type fakeCatalog struct{}

func (f *fakeCatalog) Prices(ctx context.Context, ids []string) (catalogclient.PriceMap, error) {
	m := catalogclient.PriceMap{}
	for _, id := range ids {
		m[id] = decimal.NewFromInt(10)
	}
	return m, nil
}

func (f *fakeCatalog) Details(ctx context.Context, id string) (catalogclient.Details, error) {
	return catalogclient.Details{SKU: "SKU-1", Name: "Widget"}, nil
}

type fakeInventory struct{}

func (f *fakeInventory) Reserve(ctx context.Context, orderID, idempotencyKey string, items []inventoryclient.ReserveItem) (inventoryclient.ReserveResult, error) {
	return inventoryclient.ReserveResult{Status: inventoryclient.StatusReserved}, nil
}

func (f *fakeInventory) Release(ctx context.Context, orderID string) error { return nil }

type fakePayment struct{}

func (f *fakePayment) Charge(ctx context.Context, req paymentclient.ChargeRequest) (paymentclient.ChargeResult, error) {
	return paymentclient.ChargeResult{PaymentID: "pay-1", Status: paymentclient.StatusSuccess}, nil
}

func newTestOrchestrator(orderRepo *fakeOrderRepo) *saga.Orchestrator {
	return saga.New(&fakeIdempotencyStore{}, orderRepo, &fakeCatalog{}, &fakeInventory{}, &fakePayment{}, events.NewPublisher(nil))
}

func init() { gin.SetMode(gin.TestMode) }

func TestCreateOrder_HappyPath(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	router := NewRouter(RouterConfig{Orchestrator: newTestOrchestrator(orderRepo), OrderRepo: orderRepo})

	body, _ := json.Marshal(map[string]interface{}{
		"customerId": "cust-1",
		"items":      []map[string]interface{}{{"productId": "p1", "quantity": 2}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "idem-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "SUCCESS", resp.PaymentStatus)
}

func TestCreateOrder_MissingIdempotencyKey(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	router := NewRouter(RouterConfig{Orchestrator: newTestOrchestrator(orderRepo), OrderRepo: orderRepo})

	body, _ := json.Marshal(map[string]interface{}{
		"customerId": "cust-1",
		"items":      []map[string]interface{}{{"productId": "p1", "quantity": 2}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MISSING_IDEMPOTENCY_KEY", resp.Error)
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	router := NewRouter(RouterConfig{Orchestrator: newTestOrchestrator(orderRepo), OrderRepo: orderRepo})

	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader([]byte(`{"items":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "idem-2")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	router := NewRouter(RouterConfig{Orchestrator: newTestOrchestrator(orderRepo), OrderRepo: orderRepo})

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/does-not-exist", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrder_Found(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	orderRepo.orders["order-1"] = &order.Order{ID: "order-1", CustomerID: "cust-1", Status: order.StatusPending, TotalAmount: decimal.NewFromInt(10)}
	router := NewRouter(RouterConfig{Orchestrator: newTestOrchestrator(orderRepo), OrderRepo: orderRepo})

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/order-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.ID)
}

func TestListOrders(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	orderRepo.orders["order-1"] = &order.Order{ID: "order-1", TotalAmount: decimal.NewFromInt(10)}
	router := NewRouter(RouterConfig{Orchestrator: newTestOrchestrator(orderRepo), OrderRepo: orderRepo})

	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	router := NewRouter(RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
