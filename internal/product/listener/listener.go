package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/fekuna/omnipos-product-dal/internal/product"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader used by the listener.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// StockListener reserves product stock for every created order.
type StockListener struct {
	reader MessageReader
	uc     product.UseCase
	logger logger.ZapLogger
}

func NewStockListener(reader MessageReader, uc product.UseCase, logger logger.ZapLogger) *StockListener {
	return &StockListener{
		reader: reader,
		uc:     uc,
		logger: logger,
	}
}

// NewKafkaReader returns a consumer group reader of the order topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func (l *StockListener) Start(ctx context.Context) {
	l.logger.Info("Starting stock Kafka listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping stock Kafka listener")
			return
		default:
			msg, err := l.reader.ReadMessage(ctx)
			if err != nil {
				// Don't log context canceled error as error
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OrderCreatedEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID    string             `json:"id"`
	Items []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (l *StockListener) processMessage(ctx context.Context, value []byte) {
	var event OrderCreatedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != "OrderCreated" {
		return
	}

	l.logger.Info("Processing OrderCreated event", zap.String("order_id", event.Payload.ID))

	items := make(map[string]int32, len(event.Payload.Items))
	for _, item := range event.Payload.Items {
		items[item.ProductID] += item.Quantity
	}

	if err := l.uc.ReserveStock(ctx, items); err != nil {
		l.logger.Error("Failed to reserve stock for order",
			zap.String("order_id", event.Payload.ID),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
	}
}
