package saga

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercore/saga-platform/internal/catalogclient"
	"github.com/ordercore/saga-platform/internal/events"
	"github.com/ordercore/saga-platform/internal/idempotency"
	"github.com/ordercore/saga-platform/internal/inventoryclient"
	"github.com/ordercore/saga-platform/internal/order"
	"github.com/ordercore/saga-platform/internal/paymentclient"
)

// ---- in-memory fakes ----

type fakeIdempotencyStore struct {
	records map[string]idempotency.AcquireResult
	created map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{records: map[string]idempotency.AcquireResult{}, created: map[string]bool{}}
}

func (f *fakeIdempotencyStore) Acquire(ctx context.Context, key, resourcePath, bodyHash string) (idempotency.AcquireResult, error) {
	if result, ok := f.records[key]; ok {
		return result, nil
	}
	f.created[key] = true
	return idempotency.AcquireResult{Outcome: idempotency.OutcomeCreated}, nil
}

func (f *fakeIdempotencyStore) Finalize(ctx context.Context, key string, status int, body string) error {
	f.records[key] = idempotency.AcquireResult{Outcome: idempotency.OutcomeReplay, ResponseStatus: status, ResponseBody: body}
	return nil
}

type fakeOrderRepo struct {
	orders map[string]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo { return &fakeOrderRepo{orders: map[string]*order.Order{}} }

func (f *fakeOrderRepo) Create(ctx context.Context, o *order.Order) error {
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, order.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	for _, o := range f.orders {
		if o.IdempotencyKey == key {
			return o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (f *fakeOrderRepo) List(ctx context.Context, limit int) ([]*order.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id string, status order.Status, paymentStatus order.PaymentStatus, paymentReference *string) error {
	o, ok := f.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	if paymentReference != nil {
		o.PaymentReference = paymentReference
	}
	return nil
}

type fakeCatalog struct {
	prices  catalogclient.PriceMap
	details map[string]catalogclient.Details
}

func (f *fakeCatalog) Prices(ctx context.Context, ids []string) (catalogclient.PriceMap, error) {
	return f.prices, nil
}

func (f *fakeCatalog) Details(ctx context.Context, id string) (catalogclient.Details, error) {
	return f.details[id], nil
}

type fakeInventory struct {
	result      inventoryclient.ReserveResult
	err         error
	releaseErr  error
	releaseCall int
}

func (f *fakeInventory) Reserve(ctx context.Context, orderID, idempotencyKey string, items []inventoryclient.ReserveItem) (inventoryclient.ReserveResult, error) {
	return f.result, f.err
}

func (f *fakeInventory) Release(ctx context.Context, orderID string) error {
	f.releaseCall++
	return f.releaseErr
}

type fakePayment struct {
	result paymentclient.ChargeResult
	err    error
}

func (f *fakePayment) Charge(ctx context.Context, req paymentclient.ChargeRequest) (paymentclient.ChargeResult, error) {
	return f.result, f.err
}

// ---- test setup helpers ----

func happyPathOrchestrator() (*Orchestrator, *fakeIdempotencyStore, *fakeOrderRepo, *fakeInventory) {
	idemStore := newFakeIdempotencyStore()
	orderRepo := newFakeOrderRepo()
	catalog := &fakeCatalog{
		prices: catalogclient.PriceMap{"p1": decimal.NewFromInt(10)},
		details: map[string]catalogclient.Details{
			"p1": {SKU: "SKU-1", Name: "Widget"},
		},
	}
	inventory := &fakeInventory{
		result: inventoryclient.ReserveResult{
			Status: inventoryclient.StatusReserved,
			Items:  []inventoryclient.ReservedLine{{ProductID: "p1", ReservationID: "res-1"}},
		},
	}
	payment := &fakePayment{result: paymentclient.ChargeResult{PaymentID: "pay-1", Status: paymentclient.StatusSuccess}}
	publisher := events.NewPublisher(nil)

	orch := New(idemStore, orderRepo, catalog, inventory, payment, publisher)
	return orch, idemStore, orderRepo, inventory
}

func req() CreateRequest {
	return CreateRequest{
		CustomerID:     "cust-1",
		Items:          []RequestItem{{ProductID: "p1", Quantity: 2}},
		IdempotencyKey: "idem-1",
		ResourcePath:   "/v1/orders",
	}
}

func TestCreateOrder_HappyPath(t *testing.T) {
	orch, _, _, _ := happyPathOrchestrator()

	result, err := orch.CreateOrder(context.Background(), req())

	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, order.StatusPending, result.Order.Status)
	assert.Equal(t, order.PaymentStatusSuccess, result.Order.PaymentStatus)
	assert.Equal(t, "pay-1", *result.Order.PaymentReference)
}

func TestCreateOrder_MissingIdempotencyKey(t *testing.T) {
	orch, _, _, _ := happyPathOrchestrator()

	r := req()
	r.IdempotencyKey = ""
	_, err := orch.CreateOrder(context.Background(), r)

	var sagaErrVal *SagaError
	require.ErrorAs(t, err, &sagaErrVal)
	assert.Equal(t, "MISSING_IDEMPOTENCY_KEY", sagaErrVal.Kind)
	assert.Equal(t, 400, sagaErrVal.Status)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	orch, _, _, _ := happyPathOrchestrator()

	r := req()
	r.Items = nil
	_, err := orch.CreateOrder(context.Background(), r)

	var sagaErrVal *SagaError
	require.ErrorAs(t, err, &sagaErrVal)
	assert.Equal(t, "EMPTY_ITEMS", sagaErrVal.Kind)
}

func TestCreateOrder_PricingFailed_NoStateWritten(t *testing.T) {
	orch, _, orderRepo, _ := happyPathOrchestrator()
	orch.catalog = &fakeCatalog{prices: catalogclient.PriceMap{}}

	_, err := orch.CreateOrder(context.Background(), req())

	var sagaErrVal *SagaError
	require.ErrorAs(t, err, &sagaErrVal)
	assert.Equal(t, "PRICING_FAILED", sagaErrVal.Kind)
	assert.Empty(t, orderRepo.orders)
}

func TestCreateOrder_ReservationPartial_CompensatesWithRelease(t *testing.T) {
	orch, _, orderRepo, inventory := happyPathOrchestrator()
	inventory.result = inventoryclient.ReserveResult{Status: inventoryclient.StatusPartial}

	_, err := orch.CreateOrder(context.Background(), req())

	var sagaErrVal *SagaError
	require.ErrorAs(t, err, &sagaErrVal)
	assert.Equal(t, "RESERVATION_FAILED", sagaErrVal.Kind)
	// PARTIAL still reserved the items that succeeded (§4.2.1 step 5), so
	// compensation must release them even though the saga never reached CHARGED.
	assert.Equal(t, 1, inventory.releaseCall)

	require.Len(t, orderRepo.orders, 1)
	for _, o := range orderRepo.orders {
		assert.Equal(t, order.StatusCancelled, o.Status)
	}
}

func TestCreateOrder_PaymentFailed_CompensatesWithRelease(t *testing.T) {
	orch, _, orderRepo, inventory := happyPathOrchestrator()
	orch.payment = &fakePayment{result: paymentclient.ChargeResult{Status: paymentclient.StatusFailed}}

	_, err := orch.CreateOrder(context.Background(), req())

	var sagaErrVal *SagaError
	require.ErrorAs(t, err, &sagaErrVal)
	assert.Equal(t, "PAYMENT_FAILED", sagaErrVal.Kind)
	assert.Equal(t, 1, inventory.releaseCall)

	require.Len(t, orderRepo.orders, 1)
	for _, o := range orderRepo.orders {
		assert.Equal(t, order.StatusCancelled, o.Status)
	}
}

func TestCreateOrder_DuplicateIdempotencyKey_Conflict(t *testing.T) {
	orch, idemStore, _, _ := happyPathOrchestrator()
	idemStore.records["idem-1"] = idempotency.AcquireResult{Outcome: idempotency.OutcomeConflict}

	_, err := orch.CreateOrder(context.Background(), req())

	var sagaErrVal *SagaError
	require.ErrorAs(t, err, &sagaErrVal)
	assert.Equal(t, 409, sagaErrVal.Status)
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	orch, idemStore, _, _ := happyPathOrchestrator()

	first, err := orch.CreateOrder(context.Background(), req())
	require.NoError(t, err)
	require.NotEmpty(t, idemStore.records)

	second, err := orch.CreateOrder(context.Background(), req())
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Order.ID, second.Order.ID)
}
