package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ordercore/saga-platform/internal/events"
	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/platform/metrics"
)

// DefaultTTL is the reservation lifetime applied when Config.ReservationTTL
// is zero (§4.2.1).
const DefaultTTL = 15 * time.Minute

// DefaultLowStockThreshold is the available-quantity floor that triggers a
// low-stock warning when crossed by a reservation (§4.2.1).
const DefaultLowStockThreshold = 10

// Config tunes the Engine's TTL and low-stock threshold.
type Config struct {
	ReservationTTL    time.Duration
	LowStockThreshold int64
}

func (c Config) ttl() time.Duration {
	if c.ReservationTTL <= 0 {
		return DefaultTTL
	}
	return c.ReservationTTL
}

func (c Config) lowStockThreshold() int64 {
	if c.LowStockThreshold <= 0 {
		return DefaultLowStockThreshold
	}
	return c.LowStockThreshold
}

// Engine implements the Inventory Engine's four operations plus the reaper
// sweep (§4.2).
type Engine struct {
	repo      Repository
	publisher *events.Publisher
	cfg       Config
}

// NewEngine builds an Engine.
func NewEngine(repo Repository, publisher *events.Publisher, cfg Config) *Engine {
	return &Engine{repo: repo, publisher: publisher, cfg: cfg}
}

// Reserve implements §4.2.1.
func (e *Engine) Reserve(ctx context.Context, orderID, idempotencyKey string, lines []RequestLine) (ReserveResult, error) {
	if idempotencyKey == "" {
		return ReserveResult{}, ErrMissingIdempotencyKey
	}
	if len(lines) == 0 {
		return ReserveResult{}, ErrEmptyItems
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return ReserveResult{}, ErrInvalidQuantity
		}
	}

	var result ReserveResult
	err := e.repo.WithinTx(ctx, func(tx TxRepository) error {
		// Step 1: idempotency replay / duplicate detection.
		existing, err := tx.ActiveReservations(ctx, idempotencyKey, orderID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			anyActive := false
			for _, r := range existing {
				if r.Status.IsActive() {
					anyActive = true
					break
				}
			}
			if !anyActive {
				return ErrDuplicateIdempotencyKey
			}
			result = replayResult(orderID, existing)
			return nil
		}

		// Steps 2-5: allocate each line, single-warehouse-first then split.
		result = e.allocate(ctx, tx, orderID, idempotencyKey, lines)
		return nil
	})
	if err != nil {
		return ReserveResult{}, err
	}

	outcomeLabel := string(result.Outcome)
	metrics.ReservationOutcomeTotal.WithLabelValues(outcomeLabel).Inc()
	return result, nil
}

// allocate runs §4.2.1 steps 2-5 inside the caller's transaction. It never
// returns an error: partial allocation is a normal result, not a failure.
func (e *Engine) allocate(ctx context.Context, tx TxRepository, orderID, idempotencyKey string, lines []RequestLine) ReserveResult {
	log := logger.FromContext(ctx)

	strategy, rowsByProduct := e.chooseStrategy(ctx, tx, lines)

	result := ReserveResult{
		Outcome:  OutcomeReserved,
		Strategy: strategy,
		OrderID:  orderID,
	}

	for _, line := range lines {
		reserved := e.reserveLine(ctx, tx, orderID, idempotencyKey, line, rowsByProduct[line.ProductID])
		if reserved.allocatedLine != nil {
			result.Allocated = append(result.Allocated, *reserved.allocatedLine)
		}
		if reserved.unsatisfiedLine != nil {
			result.Unsatisfied = append(result.Unsatisfied, *reserved.unsatisfiedLine)
			result.Outcome = OutcomePartial
		}
	}

	if result.Outcome == OutcomeReserved {
		result.ExpiresAt = time.Now().Add(e.cfg.ttl())
	}

	log.Info().Str("order_id", orderID).Str("outcome", string(result.Outcome)).Int("allocated", len(result.Allocated)).Int("unsatisfied", len(result.Unsatisfied)).Msg("Резервирование завершено")
	return result
}

// chooseStrategy implements §4.2.1 step 2: prefer a single warehouse that
// can satisfy every line; otherwise split per-line across the best-available
// warehouses.
func (e *Engine) chooseStrategy(ctx context.Context, tx TxRepository, lines []RequestLine) (AllocationStrategy, map[string][]Row) {
	rowsByProduct := make(map[string][]Row, len(lines))
	for _, l := range lines {
		rows, err := tx.RowsForProduct(ctx, l.ProductID)
		if err != nil {
			rowsByProduct[l.ProductID] = nil
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Available() > rows[j].Available() })
		rowsByProduct[l.ProductID] = rows
	}

	warehouses := candidateWarehouses(rowsByProduct)
	for _, wh := range warehouses {
		if warehouseSatisfiesAll(rowsByProduct, lines, wh) {
			return StrategySingleWarehouse, pinWarehouse(rowsByProduct, wh)
		}
	}
	return StrategySplit, rowsByProduct
}

func candidateWarehouses(rowsByProduct map[string][]Row) []string {
	seen := map[string]bool{}
	var out []string
	for _, rows := range rowsByProduct {
		for _, r := range rows {
			if !seen[r.Warehouse] {
				seen[r.Warehouse] = true
				out = append(out, r.Warehouse)
			}
		}
	}
	sort.Strings(out)
	return out
}

func warehouseSatisfiesAll(rowsByProduct map[string][]Row, lines []RequestLine, warehouse string) bool {
	for _, l := range lines {
		row, ok := rowForWarehouse(rowsByProduct[l.ProductID], warehouse)
		if !ok || row.Available() < l.Quantity {
			return false
		}
	}
	return true
}

func rowForWarehouse(rows []Row, warehouse string) (Row, bool) {
	for _, r := range rows {
		if r.Warehouse == warehouse {
			return r, true
		}
	}
	return Row{}, false
}

// pinWarehouse reorders every product's row list so the chosen single
// warehouse is tried first, preserving split-allocation as the fallback path
// if a concurrent writer beats this transaction to the conditional update.
func pinWarehouse(rowsByProduct map[string][]Row, warehouse string) map[string][]Row {
	out := make(map[string][]Row, len(rowsByProduct))
	for productID, rows := range rowsByProduct {
		reordered := make([]Row, 0, len(rows))
		for _, r := range rows {
			if r.Warehouse == warehouse {
				reordered = append([]Row{r}, reordered...)
			} else {
				reordered = append(reordered, r)
			}
		}
		out[productID] = reordered
	}
	return out
}

type lineOutcome struct {
	allocatedLine   *AllocatedLine
	unsatisfiedLine *UnsatisfiedLine
}

// reserveLine implements §4.2.1 steps 3-4 for a single requested line: scan
// candidate warehouses by descending available, attempt the conditional
// update, and record a Reservation + RESERVE Movement on success.
func (e *Engine) reserveLine(ctx context.Context, tx TxRepository, orderID, idempotencyKey string, line RequestLine, rows []Row) lineOutcome {
	if existing, err := tx.ReservationFor(ctx, idempotencyKey, orderID, line.ProductID); err == nil && existing != nil {
		return lineOutcome{allocatedLine: &AllocatedLine{
			ProductID:     existing.ProductID,
			SKU:           existing.SKU,
			Warehouse:     existing.Warehouse,
			ReservedQty:   existing.Quantity,
			RequestedQty:  line.Quantity,
			ReservationID: existing.ID,
		}}
	}

	var maxAvailable int64
	for _, row := range rows {
		if row.Available() > maxAvailable {
			maxAvailable = row.Available()
		}
		ok, err := tx.ConditionalReserve(ctx, row.ProductID, row.Warehouse, line.Quantity)
		if err != nil || !ok {
			continue
		}

		reservation := Reservation{
			ID:             uuid.New().String(),
			OrderID:        orderID,
			ProductID:      line.ProductID,
			SKU:            line.SKU,
			Warehouse:      row.Warehouse,
			Quantity:       line.Quantity,
			IdempotencyKey: idempotencyKey,
			ReservedAt:     time.Now(),
			ExpiresAt:      time.Now().Add(e.cfg.ttl()),
			Status:         ReservationActive,
		}
		if err := tx.InsertReservation(ctx, reservation); err != nil {
			continue
		}
		if err := tx.InsertMovement(ctx, Movement{
			ID:        uuid.New().String(),
			ProductID: line.ProductID,
			SKU:       line.SKU,
			Warehouse: row.Warehouse,
			Type:      MovementReserve,
			Quantity:  line.Quantity,
			OrderID:   orderID,
			CreatedAt: time.Now(),
		}); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Не удалось записать движение RESERVE")
		}

		e.checkLowStock(ctx, tx, line.ProductID, row.Warehouse)

		return lineOutcome{allocatedLine: &AllocatedLine{
			ProductID:     line.ProductID,
			SKU:           line.SKU,
			Warehouse:     row.Warehouse,
			ReservedQty:   line.Quantity,
			RequestedQty:  line.Quantity,
			ReservationID: reservation.ID,
		}}
	}

	action := "BACKORDER_OR_REDUCE"
	return lineOutcome{unsatisfiedLine: &UnsatisfiedLine{
		ProductID:      line.ProductID,
		SKU:            line.SKU,
		RequestedQty:   line.Quantity,
		AvailableQty:   maxAvailable,
		ActionRequired: action,
	}}
}

func (e *Engine) checkLowStock(ctx context.Context, tx TxRepository, productID, warehouse string) {
	row, err := tx.RowByKey(ctx, productID, warehouse)
	if err != nil {
		return
	}
	threshold := e.cfg.lowStockThreshold()
	if row.Available() < threshold {
		metrics.LowStockWarningTotal.WithLabelValues(productID, warehouse).Inc()
		e.publisher.PublishLowStockWarning(ctx, productID, warehouse, row.Available(), threshold)
	}
}

func replayResult(orderID string, existing []Reservation) ReserveResult {
	result := ReserveResult{Outcome: OutcomeReserved, OrderID: orderID, Idempotent: true}
	var latestExpiry time.Time
	for _, r := range existing {
		if !r.Status.IsActive() {
			continue
		}
		result.Allocated = append(result.Allocated, AllocatedLine{
			ProductID:     r.ProductID,
			SKU:           r.SKU,
			Warehouse:     r.Warehouse,
			ReservedQty:   r.Quantity,
			RequestedQty:  r.Quantity,
			ReservationID: r.ID,
		})
		if r.ExpiresAt.After(latestExpiry) {
			latestExpiry = r.ExpiresAt
		}
	}
	result.ExpiresAt = latestExpiry
	return result
}

// Confirm implements §4.2.2: ACTIVE → CONFIRMED for an order's reservations,
// optionally scoped to specific reservation identifiers.
func (e *Engine) Confirm(ctx context.Context, orderID string, reservationIDs []string) error {
	return e.repo.WithinTx(ctx, func(tx TxRepository) error {
		reservations, err := tx.ReservationsByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		ids := toSet(reservationIDs)
		for _, r := range reservations {
			if !r.Status.IsActive() {
				continue
			}
			if len(ids) > 0 && !ids[r.ID] {
				continue
			}
			if err := tx.UpdateReservationStatus(ctx, r.ID, ReservationConfirmed); err != nil {
				return err
			}
		}
		return nil
	})
}

// Release implements §4.2.3: release all ACTIVE reservations for an order.
// Idempotent — a second call finds nothing ACTIVE and is a no-op.
func (e *Engine) Release(ctx context.Context, orderID string) error {
	return e.repo.WithinTx(ctx, func(tx TxRepository) error {
		return e.releaseActive(ctx, tx, orderID, "release")
	})
}

func (e *Engine) releaseActive(ctx context.Context, tx TxRepository, orderID, note string) error {
	reservations, err := tx.ReservationsByOrder(ctx, orderID)
	if err != nil {
		return err
	}

	for _, r := range reservations {
		if !r.Status.IsActive() {
			continue
		}
		if err := tx.ReleaseRow(ctx, r.ProductID, r.Warehouse, r.Quantity); err != nil {
			return err
		}
		if err := tx.UpdateReservationStatus(ctx, r.ID, ReservationReleased); err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, Movement{
			ID:        uuid.New().String(),
			ProductID: r.ProductID,
			SKU:       r.SKU,
			Warehouse: r.Warehouse,
			Type:      MovementRelease,
			Quantity:  r.Quantity,
			OrderID:   orderID,
			Note:      note,
			CreatedAt: time.Now(),
		}); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Не удалось записать движение RELEASE")
		}
	}
	return nil
}

// Ship implements §4.2.4: consume previously reserved stock for an explicit
// set of {product, quantity, warehouse} lines.
func (e *Engine) Ship(ctx context.Context, orderID string, lines []ShipLine) error {
	if len(lines) == 0 {
		return ErrEmptyItems
	}

	return e.repo.WithinTx(ctx, func(tx TxRepository) error {
		for _, l := range lines {
			if l.Quantity <= 0 {
				return ErrInvalidQuantity
			}
			if err := tx.ShipRow(ctx, l.ProductID, l.Warehouse, l.Quantity); err != nil {
				return err
			}
			if err := tx.InsertMovement(ctx, Movement{
				ID:        uuid.New().String(),
				ProductID: l.ProductID,
				SKU:       l.SKU,
				Warehouse: l.Warehouse,
				Type:      MovementShip,
				Quantity:  l.Quantity,
				OrderID:   orderID,
				CreatedAt: time.Now(),
			}); err != nil {
				logger.FromContext(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Не удалось записать движение SHIP")
			}
		}
		return nil
	})
}

// ReapExpired implements §4.2.5: transition every ACTIVE reservation whose
// TTL has passed to EXPIRED and release its held stock.
func (e *Engine) ReapExpired(ctx context.Context) (ReaperResult, error) {
	var result ReaperResult

	err := e.repo.WithinTx(ctx, func(tx TxRepository) error {
		expired, err := tx.ExpiredReservations(ctx, time.Now())
		if err != nil {
			return err
		}

		for _, r := range expired {
			if err := tx.ReleaseRow(ctx, r.ProductID, r.Warehouse, r.Quantity); err != nil {
				return err
			}
			if err := tx.UpdateReservationStatus(ctx, r.ID, ReservationExpired); err != nil {
				return err
			}
			if err := tx.InsertMovement(ctx, Movement{
				ID:        uuid.New().String(),
				ProductID: r.ProductID,
				SKU:       r.SKU,
				Warehouse: r.Warehouse,
				Type:      MovementRelease,
				Quantity:  r.Quantity,
				OrderID:   r.OrderID,
				Note:      "auto-release: reservation TTL expired",
				CreatedAt: time.Now(),
			}); err != nil {
				logger.FromContext(ctx).Warn().Err(err).Str("reservation_id", r.ID).Msg("Не удалось записать движение авто-релиза")
			}
			result.Released = append(result.Released, r.ID)
		}
		result.ExpiredCount = len(expired)
		return nil
	})
	if err != nil {
		return ReaperResult{}, err
	}

	metrics.ReaperExpiredTotal.Add(float64(result.ExpiredCount))
	return result, nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
