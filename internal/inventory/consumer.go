package inventory

import (
	"context"
	"encoding/json"
	"errors"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer applies order-placed events to the stock levels.
type Consumer struct {
	store  *MemoryStore
	reader MessageReader
	log    *zap.Logger
}

func NewConsumer(store *MemoryStore, log *zap.Logger, topic, groupID string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{store: store, reader: reader, log: log}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.Error("error reading message", zap.Error(err))
		return
	}
	c.handle(m)
}

func (c *Consumer) handle(m kafka.Message) {
	if eventType := header(m, "event_type"); eventType != "" && eventType != d.EventOrderPlaced {
		return
	}

	var event d.OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.Error("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	if event.OrderID == "" {
		c.log.Error("order placed event without order id", zap.Int64("offset", m.Offset))
		return
	}

	applied, short := c.store.Deduct(event.OrderID, event.Items)
	if !applied {
		c.log.Info("order already applied to stock, skipping", zap.String("order_id", event.OrderID))
		return
	}
	if len(short) > 0 {
		c.log.Warn("stock ran short for placed order",
			zap.String("order_id", event.OrderID),
			zap.Int64s("product_ids", short))
	}
	c.log.Info("stock deducted for order", zap.String("order_id", event.OrderID))
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
