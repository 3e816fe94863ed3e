package saga

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordercore/saga-platform/internal/catalogclient"
	"github.com/ordercore/saga-platform/internal/events"
	"github.com/ordercore/saga-platform/internal/idempotency"
	"github.com/ordercore/saga-platform/internal/inventoryclient"
	"github.com/ordercore/saga-platform/internal/order"
	"github.com/ordercore/saga-platform/internal/orderdb"
	"github.com/ordercore/saga-platform/internal/paymentclient"
	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/platform/metrics"
	"github.com/ordercore/saga-platform/internal/totals"
)

// RequestItem is one requested line of a CreateOrder call (§4.1 input contract).
type RequestItem struct {
	ProductID string
	Quantity  int64
	SKU       string
}

// CreateRequest is the saga's input contract (§4.1).
type CreateRequest struct {
	CustomerID     string
	Items          []RequestItem
	PaymentMethod  string
	IdempotencyKey string
	ResourcePath   string
}

// CreateResult is the saga's output contract on success.
type CreateResult struct {
	Order      *order.Order
	Idempotent bool
}

// Orchestrator drives the create-order saga: price → persist PENDING →
// reserve → charge → finalize, with compensation on any failure after
// persistence (§4.1).
type Orchestrator struct {
	idempotencyStore idempotency.Store
	orderRepo        orderdb.Repository
	catalog          catalogclient.Adapter
	inventory        inventoryclient.Adapter
	payment          paymentclient.Adapter
	publisher        *events.Publisher
}

// New builds an Orchestrator from its collaborators.
func New(
	idempotencyStore idempotency.Store,
	orderRepo orderdb.Repository,
	catalog catalogclient.Adapter,
	inventory inventoryclient.Adapter,
	payment paymentclient.Adapter,
	publisher *events.Publisher,
) *Orchestrator {
	return &Orchestrator{
		idempotencyStore: idempotencyStore,
		orderRepo:        orderRepo,
		catalog:          catalog,
		inventory:        inventory,
		payment:          payment,
		publisher:        publisher,
	}
}

// SagaError carries a stable error kind and, once the order exists, its
// identifier — the shape the HTTP surface translates into the error
// envelope (§6, §7).
type SagaError struct {
	Kind    string
	Message string
	OrderID string
	Status  int
}

func (e *SagaError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func sagaErr(status int, kind, message, orderID string) *SagaError {
	return &SagaError{Kind: kind, Message: message, OrderID: orderID, Status: status}
}

// CreateOrder executes the full saga for req (§4.1).
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateRequest) (CreateResult, error) {
	start := time.Now()
	defer func() { metrics.SagaDuration.Observe(time.Since(start).Seconds()) }()

	log := logger.FromContext(ctx)
	phase := PhaseGate

	if req.IdempotencyKey == "" {
		return CreateResult{}, sagaErr(400, "MISSING_IDEMPOTENCY_KEY", "заголовок Idempotency-Key обязателен", "")
	}
	if len(req.Items) == 0 {
		return CreateResult{}, sagaErr(400, "EMPTY_ITEMS", "заказ должен содержать хотя бы одну позицию", "")
	}

	bodyHash := hashRequest(req)

	// Phase: GATE — idempotency gate.
	acquired, err := o.idempotencyStore.Acquire(ctx, req.IdempotencyKey, req.ResourcePath, bodyHash)
	if err != nil {
		metrics.SagaPhaseTotal.WithLabelValues(string(PhaseGate), "error").Inc()
		return CreateResult{}, fmt.Errorf("idempotency store: %w", err)
	}
	switch acquired.Outcome {
	case idempotency.OutcomeReplay:
		metrics.SagaPhaseTotal.WithLabelValues(string(PhaseGate), "replay").Inc()
		replayed, err := decodeReplayedOrder(acquired.ResponseBody)
		if err != nil {
			return CreateResult{}, fmt.Errorf("idempotency replay: %w", err)
		}
		return CreateResult{Order: replayed, Idempotent: true}, nil
	case idempotency.OutcomeConflict:
		metrics.SagaPhaseTotal.WithLabelValues(string(PhaseGate), "conflict").Inc()
		return CreateResult{}, sagaErr(409, "IDEMPOTENCY_CONFLICT", "запрос с этим ключом уже выполняется", "")
	}
	metrics.SagaPhaseTotal.WithLabelValues(string(PhaseGate), "ok").Inc()

	// Phase: PRICED — price & detail lookup (§4.1 phase 2).
	priced, sagaErrVal := o.priceItems(ctx, req.Items)
	if sagaErrVal != nil {
		o.finalizeFailure(ctx, req.IdempotencyKey, sagaErrVal)
		metrics.SagaPhaseTotal.WithLabelValues(string(PhasePriced), "error").Inc()
		return CreateResult{}, sagaErrVal
	}
	phase, _ = TransitionTo(phase, PhasePriced)
	metrics.SagaPhaseTotal.WithLabelValues(string(PhasePriced), "ok").Inc()

	// Phase: PERSISTED — totals & persistence (§4.1 phase 3).
	breakdown, newOrder, err := o.buildOrder(req, priced)
	if err != nil {
		sagaErrVal := sagaErr(500, "TOTALS_FAILED", err.Error(), "")
		o.finalizeFailure(ctx, req.IdempotencyKey, sagaErrVal)
		metrics.SagaPhaseTotal.WithLabelValues(string(PhasePersisted), "error").Inc()
		return CreateResult{}, sagaErrVal
	}

	if err := o.orderRepo.Create(ctx, newOrder); err != nil {
		sagaErrVal := sagaErr(500, "PERSIST_FAILED", err.Error(), "")
		o.finalizeFailure(ctx, req.IdempotencyKey, sagaErrVal)
		metrics.SagaPhaseTotal.WithLabelValues(string(PhasePersisted), "error").Inc()
		return CreateResult{}, sagaErrVal
	}
	phase, _ = TransitionTo(phase, PhasePersisted)
	metrics.SagaPhaseTotal.WithLabelValues(string(PhasePersisted), "ok").Inc()
	log.Info().Str("order_id", newOrder.ID).Str("signature", breakdown.Signature).Msg("Заказ создан в статусе PENDING")

	// Phase: RESERVED — inventory reservation (§4.1 phase 4).
	reserveItems := make([]inventoryclient.ReserveItem, len(newOrder.Items))
	for i, it := range newOrder.Items {
		reserveItems[i] = inventoryclient.ReserveItem{ProductID: it.ProductID, Quantity: it.Quantity, SKU: it.SKU}
	}

	reserveResult, err := o.inventory.Reserve(ctx, newOrder.ID, req.IdempotencyKey, reserveItems)
	if err != nil || !reserveResult.Succeeded() {
		reason := "резервирование отклонено"
		if err != nil {
			reason = err.Error()
		}
		sagaErrVal := sagaErr(500, "RESERVATION_FAILED", reason, newOrder.ID)
		// A PARTIAL response (err == nil) still reserved the items that
		// succeeded (§4.2.1 step 5) — release whenever the Inventory Engine
		// actually answered, not only once payment has run.
		o.compensate(ctx, newOrder, phase, err == nil, sagaErrVal)
		metrics.SagaPhaseTotal.WithLabelValues(string(PhaseReserved), "error").Inc()
		return CreateResult{}, sagaErrVal
	}
	phase, _ = TransitionTo(phase, PhaseReserved)
	metrics.SagaPhaseTotal.WithLabelValues(string(PhaseReserved), "ok").Inc()

	// Phase: CHARGED — payment charge (§4.1 phase 5).
	chargeIdemKey := req.IdempotencyKey
	if chargeIdemKey == "" {
		chargeIdemKey = newOrder.ID
	}
	chargeResult, err := o.payment.Charge(ctx, paymentclient.ChargeRequest{
		OrderID:        newOrder.ID,
		Amount:         newOrder.TotalAmount,
		Method:         req.PaymentMethod,
		IdempotencyKey: chargeIdemKey,
	})
	if err != nil || !chargeResult.Succeeded() {
		reason := "платёж отклонён"
		if err != nil {
			reason = err.Error()
		}
		sagaErrVal := sagaErr(500, "PAYMENT_FAILED", reason, newOrder.ID)
		o.compensate(ctx, newOrder, phase, true, sagaErrVal)
		metrics.SagaPhaseTotal.WithLabelValues(string(PhaseCharged), "error").Inc()
		return CreateResult{}, sagaErrVal
	}
	phase, _ = TransitionTo(phase, PhaseCharged)
	metrics.SagaPhaseTotal.WithLabelValues(string(PhaseCharged), "ok").Inc()

	// Phase: COMPLETED — finalize.
	if err := newOrder.MarkPaymentSuccess(chargeResult.PaymentID); err != nil {
		log.Error().Err(err).Str("order_id", newOrder.ID).Msg("Невозможно пометить заказ оплаченным")
	}
	if err := o.orderRepo.UpdateStatus(ctx, newOrder.ID, newOrder.Status, newOrder.PaymentStatus, newOrder.PaymentReference); err != nil {
		log.Error().Err(err).Str("order_id", newOrder.ID).Msg("Не удалось сохранить финальный статус заказа")
	}
	phase, _ = TransitionTo(phase, PhaseCompleted)
	metrics.SagaPhaseTotal.WithLabelValues(string(PhaseCompleted), "ok").Inc()

	responseBody, err := json.Marshal(orderEnvelope{Order: newOrder, Breakdown: breakdown})
	if err == nil {
		if err := o.idempotencyStore.Finalize(ctx, req.IdempotencyKey, 201, string(responseBody)); err != nil {
			log.Warn().Err(err).Str("order_id", newOrder.ID).Msg("Не удалось финализировать idempotency запись")
		}
	}

	log.Info().Str("order_id", newOrder.ID).Str("phase", string(phase)).Msg("Сага создания заказа завершена успешно")
	return CreateResult{Order: newOrder}, nil
}

type pricedItem struct {
	RequestItem
	UnitPrice   decimal.Decimal
	ProductName string
	SKU         string
}

// priceItems implements §4.1 phase 2: a single batch price lookup, then
// concurrent per-product detail fetches. Missing price or detail data fails
// the saga with PRICING_FAILED before any state has been written.
func (o *Orchestrator) priceItems(ctx context.Context, items []RequestItem) ([]pricedItem, *SagaError) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	prices, err := o.catalog.Prices(ctx, ids)
	if err != nil {
		return nil, sagaErr(500, "PRICING_FAILED", err.Error(), "")
	}

	for _, it := range items {
		if _, ok := prices[it.ProductID]; !ok {
			return nil, sagaErr(500, "PRICING_FAILED", fmt.Sprintf("нет цены на товар %s", it.ProductID), "")
		}
	}

	// Detail lookups are independent per product, so §4.1 phase 2 fans them
	// out concurrently; each goroutine writes only its own index, so the
	// result order matches the request order without extra synchronization.
	details := make([]catalogclient.Details, len(items))
	detailErrs := make([]error, len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, it := range items {
		go func(i int, productID string) {
			defer wg.Done()
			d, err := o.catalog.Details(ctx, productID)
			if err != nil {
				detailErrs[i] = err
				return
			}
			details[i] = d
		}(i, it.ProductID)
	}
	wg.Wait()

	for _, err := range detailErrs {
		if err != nil {
			return nil, sagaErr(500, "PRICING_FAILED", err.Error(), "")
		}
	}

	priced := make([]pricedItem, len(items))
	for i, it := range items {
		sku := it.SKU
		if sku == "" {
			sku = details[i].SKU
		}
		priced[i] = pricedItem{RequestItem: it, UnitPrice: prices[it.ProductID], ProductName: details[i].Name, SKU: sku}
	}

	return priced, nil
}

// buildOrder computes totals (§4.5) and assembles the PENDING order and its
// line-item snapshots (§4.1 phase 3).
func (o *Orchestrator) buildOrder(req CreateRequest, priced []pricedItem) (totals.Breakdown, *order.Order, error) {
	lineItems := make([]totals.LineItem, len(priced))
	for i, p := range priced {
		lineItems[i] = totals.LineItem{ProductID: p.ProductID, Quantity: p.Quantity, UnitPrice: p.UnitPrice}
	}

	breakdown, err := totals.Calculate(lineItems, totals.Options{})
	if err != nil {
		return totals.Breakdown{}, nil, err
	}

	newOrder := &order.Order{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentStatusPending,
		TotalAmount:     breakdown.Total,
		TotalsSignature: breakdown.Signature,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		Items:           make([]order.OrderItem, len(priced)),
	}
	for i, p := range priced {
		newOrder.Items[i] = order.OrderItem{
			ID:          uuid.New().String(),
			ProductID:   p.ProductID,
			SKU:         p.SKU,
			ProductName: p.ProductName,
			Quantity:    p.Quantity,
			UnitPrice:   p.UnitPrice,
			TaxRate:     breakdown.TaxRate,
			Status:      order.LineStatusPending,
		}
	}

	return breakdown, newOrder, nil
}

// compensate runs the saga's compensation path (§4.1 compensation): cancel
// the order, release inventory if it was reserved, and finalize the
// idempotency record with the failure. A compensation failure is logged as
// a reconciliation event and never overrides the original error.
func (o *Orchestrator) compensate(ctx context.Context, ord *order.Order, phase Phase, releaseInventory bool, sagaErrVal *SagaError) {
	log := logger.FromContext(ctx)

	if _, err := TransitionTo(phase, PhaseCompensating); err != nil {
		log.Warn().Err(err).Str("order_id", ord.ID).Str("phase", string(phase)).Msg("Недопустимый переход в COMPENSATING, продолжаем компенсацию")
	}

	if err := ord.Cancel(); err != nil {
		log.Error().Err(err).Str("order_id", ord.ID).Msg("Не удалось отменить заказ при компенсации")
	}
	if err := o.orderRepo.UpdateStatus(ctx, ord.ID, ord.Status, ord.PaymentStatus, nil); err != nil {
		log.Error().Err(err).Str("order_id", ord.ID).Msg("Не удалось сохранить статус CANCELLED")
	}

	if releaseInventory {
		if err := o.inventory.Release(ctx, ord.ID); err != nil {
			log.Error().Err(err).Str("order_id", ord.ID).Msg("Компенсация: не удалось освободить резерв — требуется сверка")
			o.publisher.PublishReconciliationAlert(ctx, ord.ID, "release_failed: "+err.Error())
		}
	}

	o.finalizeFailure(ctx, ord.IdempotencyKey, sagaErrVal)
	log.Warn().Str("order_id", ord.ID).Str("kind", sagaErrVal.Kind).Msg("Сага скомпенсирована, заказ отменён")
}

func (o *Orchestrator) finalizeFailure(ctx context.Context, idempotencyKey string, sagaErrVal *SagaError) {
	if idempotencyKey == "" {
		return
	}
	body, _ := json.Marshal(map[string]string{
		"error":   sagaErrVal.Kind,
		"message": sagaErrVal.Message,
		"orderId": sagaErrVal.OrderID,
	})
	if err := o.idempotencyStore.Finalize(ctx, idempotencyKey, sagaErrVal.Status, string(body)); err != nil {
		logger.FromContext(ctx).Debug().Err(err).Str("idempotency_key", idempotencyKey).Msg("Не удалось финализировать неуспешную idempotency запись")
	}
}

func hashRequest(req CreateRequest) string {
	encoded, _ := json.Marshal(req)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// orderEnvelope is the JSON shape cached in the idempotency record on
// success (§4.1, §6). A replay decodes only its order, which the HTTP layer
// renders the same way as a fresh creation; the stored bytes themselves,
// including the totals breakdown, are not returned to the client.
type orderEnvelope struct {
	Order     *order.Order     `json:"order"`
	Breakdown totals.Breakdown `json:"totals"`
}

func decodeReplayedOrder(body string) (*order.Order, error) {
	var env struct {
		Order *order.Order `json:"order"`
	}
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, err
	}
	return env.Order, nil
}
