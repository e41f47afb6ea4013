// Package event publishes data-access events to the log and to Kafka.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Message is the JSON envelope of a published event.
type Message struct {
	Event      string           `json:"event"`
	Definition string           `json:"definition"`
	Projection string           `json:"projection,omitempty"`
	IDs        []string         `json:"ids"`
	Payloads   []map[string]any `json:"payloads,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewMessage converts a dal event into its envelope.
func NewMessage(e dal.Event, now time.Time) (*Message, error) {
	msg := &Message{Event: e.EventName(), OccurredAt: now.UTC()}
	switch ev := e.(type) {
	case *dal.WrittenEvent:
		msg.Definition = ev.Definition
		msg.IDs = ev.IDs
		msg.Payloads = ev.Payloads
	case *dal.LoadedEvent:
		msg.Definition = ev.Definition
		msg.Projection = ev.Projection.String()
		msg.IDs = ev.IDs
	default:
		return nil, fmt.Errorf("unsupported event %T", e)
	}
	return msg, nil
}

// LogSink writes every event to the logger at debug level.
type LogSink struct {
	logger logger.ZapLogger
}

func NewLogSink(log logger.ZapLogger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Dispatch(ctx context.Context, e dal.Event) error {
	fields := []zap.Field{zap.String("event", e.EventName())}
	switch ev := e.(type) {
	case *dal.WrittenEvent:
		fields = append(fields, zap.Strings("ids", ev.IDs))
	case *dal.LoadedEvent:
		fields = append(fields, zap.Strings("ids", ev.IDs))
	}
	s.logger.Debug("dal event", fields...)
	return nil
}

// MessageWriter is the part of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes written events, and loaded events when enabled, as JSON
// messages keyed by definition name.
type KafkaSink struct {
	writer      MessageWriter
	publishLoad bool
	now         func() time.Time
}

type KafkaSinkOption func(*KafkaSink)

// WithLoadedEvents also publishes loaded events.
func WithLoadedEvents() KafkaSinkOption {
	return func(s *KafkaSink) {
		s.publishLoad = true
	}
}

func NewKafkaSink(writer MessageWriter, opts ...KafkaSinkOption) *KafkaSink {
	s := &KafkaSink{writer: writer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewKafkaWriter returns a writer balancing messages by key over the topic partitions.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func (s *KafkaSink) Dispatch(ctx context.Context, e dal.Event) error {
	if _, loaded := e.(*dal.LoadedEvent); loaded && !s.publishLoad {
		return nil
	}
	msg, err := NewMessage(e, s.now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Event, err)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.Definition), Value: value}); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Event, err)
	}
	return nil
}
