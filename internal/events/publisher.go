// Package events предоставляет best-effort Kafka publisher для сигналов,
// никогда не блокирующих сагу или резервирование: low-stock предупреждения
// и алерты о необходимости ручной сверки при провале компенсации.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ordercore/saga-platform/internal/platform/logger"
)

// Топики для наблюдаемых сигналов, не входящих в критический путь саги.
const (
	TopicLowStockWarnings     = "inventory.low_stock_warnings"
	TopicReconciliationAlerts = "orders.reconciliation_alerts"
)

// Publisher отправляет JSON-сериализованные события в Kafka. Ошибки отправки
// логируются и проглатываются — публикация никогда не должна провалить
// вызывающую операцию (резервирование, компенсацию).
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher создаёт Publisher поверх списка брокеров. nil-safe: если
// brokers пуст, возвращает Publisher, чьи методы — no-op.
func NewPublisher(brokers []string) *Publisher {
	if len(brokers) == 0 {
		return &Publisher{}
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// PublishLowStockWarning сигнализирует, что доступный остаток по товару на
// складе упал ниже настроенного порога (§4.2.1).
func (p *Publisher) PublishLowStockWarning(ctx context.Context, productID, warehouse string, available, threshold int64) {
	payload := fmt.Sprintf(`{"product_id":%q,"warehouse":%q,"available":%d,"threshold":%d,"time":%q}`,
		productID, warehouse, available, threshold, time.Now().UTC().Format(time.RFC3339))
	p.publish(ctx, TopicLowStockWarnings, productID, payload)
}

// PublishReconciliationAlert сигнализирует о провале компенсации саги — требуется
// ручное вмешательство (§4.1, §7).
func (p *Publisher) PublishReconciliationAlert(ctx context.Context, orderID, reason string) {
	payload := fmt.Sprintf(`{"order_id":%q,"reason":%q,"time":%q}`,
		orderID, reason, time.Now().UTC().Format(time.RFC3339))
	p.publish(ctx, TopicReconciliationAlerts, orderID, payload)
}

func (p *Publisher) publish(ctx context.Context, topic, key, value string) {
	log := logger.FromContext(ctx)

	if p.writer == nil {
		log.Debug().Str("topic", topic).Str("key", key).Msg("Kafka publisher отключён, событие только залогировано")
		return
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: []byte(value),
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Warn().Err(err).Str("topic", topic).Str("key", key).Msg("Не удалось опубликовать событие — продолжаем без него")
	}
}

// Close закрывает writer, если он был создан.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
