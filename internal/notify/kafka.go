// internal/notify/kafka.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/signalnine/threatscope/internal/protocol"
)

// Publisher forwards alerts raised by an analysis to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, source string, alerts []protocol.Alert) error
	Close() error
}

// Nop drops everything. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, []protocol.Alert) error { return nil }
func (Nop) Close() error                                             { return nil }

// AlertEvent is the message body written for each alert.
type AlertEvent struct {
	Source string         `json:"source"`
	Alert  protocol.Alert `json:"alert"`
}

// KafkaPublisher writes one message per alert, keyed by source.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher builds a synchronous writer for the given brokers.
// No connection is made until the first publish.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka alert publisher configured",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)
	return &KafkaPublisher{writer: w, logger: logger}
}

// Messages converts alerts into kafka messages. Topic is left to the writer.
func Messages(source string, alerts []protocol.Alert) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		value, err := json.Marshal(AlertEvent{Source: source, Alert: a})
		if err != nil {
			return nil, fmt.Errorf("encode alert %s: %w", a.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(source),
			Value: value,
			Headers: []kafka.Header{
				{Key: "severity", Value: []byte(a.Severity)},
				{Key: "triggered_by", Value: []byte(a.TriggeredBy)},
			},
		})
	}
	return msgs, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, source string, alerts []protocol.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs, err := Messages(source, alerts)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}

	p.logger.Debug("published alerts",
		zap.String("source", source),
		zap.Int("count", len(msgs)),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("failed to close kafka writer", zap.Error(err))
		return err
	}
	return nil
}
