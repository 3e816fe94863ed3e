// Package metrics предоставляет Prometheus метрики для саги заказов и инвентаря.
//
// Типы метрик:
//   - Counter: только растёт — "сколько всего произошло"
//   - Histogram: распределение значений — "как быстро работает"
//
// Использование:
//
//	go metrics.StartServer(ctx, ":9090")
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ordercore/saga-platform/internal/platform/logger"
)

var (
	// SagaPhaseTotal считает завершения фаз саги по (phase, result).
	SagaPhaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_saga_phase_total",
			Help: "Количество завершений фазы саги создания заказа по результату",
		},
		[]string{"phase", "result"},
	)

	// SagaDuration измеряет длительность полной саги создания заказа.
	SagaDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_saga_duration_seconds",
			Help:    "Длительность полной саги создания заказа в секундах",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// ReservationOutcomeTotal считает результаты попыток резервирования.
	ReservationOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_reservation_outcome_total",
			Help: "Количество результатов операции reserve по типу исхода",
		},
		[]string{"outcome"},
	)

	// ReaperExpiredTotal считает количество истёкших резервов, собранных reaper'ом.
	ReaperExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_reaper_expired_total",
			Help: "Общее количество резервов, переведённых reaper'ом в EXPIRED",
		},
	)

	// LowStockWarningTotal считает предупреждения о низком остатке.
	LowStockWarningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_low_stock_warning_total",
			Help: "Количество предупреждений о падении доступного остатка ниже порога",
		},
		[]string{"product_id", "warehouse"},
	)
)

// StartServer запускает HTTP сервер с /metrics и /healthz, блокируя до отмены ctx.
func StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info().Str("addr", addr).Msg("Остановка metrics сервера")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
