package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Consumer tails the payment topic as a reconciliation audit trail. Each
// message is decoded into a PaymentEvent before it reaches the handler;
// undecodable messages and handler errors are logged and skipped so one
// bad record never stalls the stream.
type Consumer struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log.With().Str("component", "payment_consumer").Logger(),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// ConsumePaymentEvents reads until the context is cancelled or the broker
// connection is lost.
func (c *Consumer) ConsumePaymentEvents(ctx context.Context, handler func(context.Context, PaymentEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.dispatch(ctx, msg, handler)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message, handler func(context.Context, PaymentEvent) error) {
	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Warn().Err(err).Str("key", string(msg.Key)).Msg("undecodable payment event")
		return
	}
	if err := handler(ctx, event); err != nil {
		c.log.Warn().Err(err).
			Str("event", event.Type).
			Str("payment_id", event.PaymentID).
			Msg("payment event handler failed")
	}
}
