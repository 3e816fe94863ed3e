// Order Orchestrator — HTTP service driving the create-order saga (§4.1):
// price → persist PENDING → reserve → charge → finalize, with compensation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordercore/saga-platform/internal/catalogclient"
	"github.com/ordercore/saga-platform/internal/events"
	"github.com/ordercore/saga-platform/internal/httpapi"
	"github.com/ordercore/saga-platform/internal/idempotency"
	"github.com/ordercore/saga-platform/internal/inventoryclient"
	"github.com/ordercore/saga-platform/internal/orderdb"
	"github.com/ordercore/saga-platform/internal/paymentclient"
	"github.com/ordercore/saga-platform/internal/platform/config"
	"github.com/ordercore/saga-platform/internal/platform/dbconn"
	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/platform/metrics"
	"github.com/ordercore/saga-platform/internal/saga"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	log := logger.With().Str("service", "order-orchestrator").Logger()
	log.Info().Int("port", cfg.App.HTTPPort).Msg("Запуск Order Orchestrator")

	db, err := dbconn.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}

	idemStore := idempotency.NewCachedStore(idempotency.NewStore(db), dbconn.ConnectRedis(cfg.Redis))

	orderRepo := orderdb.New(db)

	var brokers []string
	if cfg.Kafka.Enabled {
		brokers = cfg.Kafka.Brokers
	}
	publisher := events.NewPublisher(brokers)

	catalog := catalogclient.NewClient(cfg.Clients.CatalogBaseURL, cfg.Clients.CatalogTimeout)
	inventory := inventoryclient.NewClient(cfg.Clients.InventoryBaseURL, cfg.Clients.InventoryTimeout)
	payment := paymentclient.NewClient(cfg.Clients.PaymentBaseURL, cfg.Clients.PaymentTimeout)

	orchestrator := saga.New(idemStore, orderRepo, catalog, inventory, payment, publisher)

	readinessCheck := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Orchestrator:   orchestrator,
		OrderRepo:      orderRepo,
		ReadinessCheck: readinessCheck,
		Debug:          cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Addr()); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка graceful shutdown HTTP сервера")
	}

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	log.Info().Msg("Order Orchestrator остановлен")
}
