// Package reaper runs the Inventory Engine's TTL sweep (§4.2.5) on a ticker,
// adapted from the order service's outbox-polling worker.
package reaper

import (
	"context"
	"time"

	"github.com/ordercore/saga-platform/internal/inventory"
	"github.com/ordercore/saga-platform/internal/platform/logger"
)

// Config tunes the Reaper's poll interval.
type Config struct {
	PollInterval time.Duration
}

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 30 * time.Second

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

// Reaper periodically calls Engine.ReapExpired until its context is cancelled.
type Reaper struct {
	engine *inventory.Engine
	cfg    Config
}

// New builds a Reaper.
func New(engine *inventory.Engine, cfg Config) *Reaper {
	return &Reaper{engine: engine, cfg: cfg}
}

// Run blocks until ctx is cancelled, sweeping expired reservations every
// poll interval. Intended to be started with `go reaper.Run(ctx)`.
func (r *Reaper) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().Dur("poll_interval", r.cfg.pollInterval()).Msg("Запуск Reaper")

	ticker := time.NewTicker(r.cfg.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Reaper")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)

	result, err := r.engine.ReapExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка обработки истёкших резервов")
		return
	}
	if result.ExpiredCount == 0 {
		return
	}

	log.Info().Int("expired_count", result.ExpiredCount).Strs("released", result.Released).Msg("Reaper освободил истёкшие резервы")
}
