// Inventory Engine — HTTP service owning multi-warehouse stock rows,
// time-bounded reservations, and the movement ledger (§4.2), plus a
// ticker-driven reaper that sweeps expired reservations (§4.2.5).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordercore/saga-platform/internal/events"
	"github.com/ordercore/saga-platform/internal/inventory"
	"github.com/ordercore/saga-platform/internal/inventoryapi"
	"github.com/ordercore/saga-platform/internal/inventorydb"
	"github.com/ordercore/saga-platform/internal/platform/config"
	"github.com/ordercore/saga-platform/internal/platform/dbconn"
	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/platform/metrics"
	"github.com/ordercore/saga-platform/internal/reaper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	log := logger.With().Str("service", "inventory-engine").Logger()
	log.Info().Int("port", cfg.App.HTTPPort).Msg("Запуск Inventory Engine")

	db, err := dbconn.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}

	repo := inventorydb.New(db)

	var brokers []string
	if cfg.Kafka.Enabled {
		brokers = cfg.Kafka.Brokers
	}
	publisher := events.NewPublisher(brokers)

	engine := inventory.NewEngine(repo, publisher, inventory.Config{
		ReservationTTL:    cfg.Inventory.ReservationTTL,
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
	})

	readinessCheck := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	router := inventoryapi.NewRouter(inventoryapi.RouterConfig{
		Engine:         engine,
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

	reaperLoop := reaper.New(engine, reaper.Config{PollInterval: cfg.Inventory.ReaperInterval})
	go reaperLoop.Run(ctx)

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

	log.Info().Msg("Inventory Engine остановлен")
}
