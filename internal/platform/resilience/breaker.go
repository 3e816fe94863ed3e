// Package resilience предоставляет Circuit Breaker для защиту outbound HTTP
// вызовов Catalog/Payment адаптеров от каскадных сбоев.
//
// Состояния Circuit Breaker:
//   - Closed: нормальная работа, запросы проходят
//   - Open: сервис недоступен, запросы отклоняются мгновенно
//   - Half-Open: пробный период, пропускаем часть запросов для проверки восстановления
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ordercore/saga-platform/internal/platform/logger"
)

// ErrCircuitOpen сигнализирует, что breaker отклонил вызов без обращения к сети.
var ErrCircuitOpen = errors.New("circuit breaker открыт: сервис временно недоступен")

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultSettings возвращает настройки по умолчанию, подходящие для адаптеров
// Catalog и Payment — быстрое восстановление, консервативный порог срабатывания.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker оборачивает gobreaker с логированием переходов состояния.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New создаёт Circuit Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker открыт — сервис недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker полуоткрыт — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker закрыт — сервис восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}

// Execute выполняет fn через Circuit Breaker. Таймауты и статус-коды >=500
// считаются сетевыми сбоями, что приоткрывает breaker; ошибки, определённые
// как "бизнес-ошибки" вызывающим кодом через isBreakerFailure=false, его не
// затрагивают.
func Execute[T any](ctx context.Context, b *Breaker, isBreakerFailure func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	result, err := b.cb.Execute(func() (any, error) {
		v, callErr := fn(ctx)
		if callErr != nil && isBreakerFailure != nil && !isBreakerFailure(callErr) {
			// Бизнес-ошибка: не учитываем в статистике breaker, но сообщаем вызывающему коду.
			return breakerIgnoredResult{err: callErr}, nil
		}
		return v, callErr
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return zero, ErrCircuitOpen
	}
	if err != nil {
		return zero, err
	}

	if ignored, ok := result.(breakerIgnoredResult); ok {
		return zero, ignored.err
	}

	v, _ := result.(T)
	return v, nil
}

type breakerIgnoredResult struct {
	err error
}
