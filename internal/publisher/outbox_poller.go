package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/checkout-flow/internal/repository"
	"github.com/fjod/go_cart/checkout-flow/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Repository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

// Writer is the part of *kafka.Writer the poller uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Metrics interface {
	ObservePublished(outcome string)
}

const batchSize = 100

// OutboxPoller relays committed outbox rows to Kafka and purges rows that
// were delivered longer than retention ago.
type OutboxPoller struct {
	timeout     time.Duration
	eventTick   time.Duration
	cleanupTick time.Duration
	retention   time.Duration
	repo        Repository
	writer      Writer
	breaker     *circuitbreaker.Breaker
	metrics     Metrics
	log         *zap.Logger
}

type Options struct {
	Topic     string
	EventTick time.Duration
	Retention time.Duration
	Metrics   Metrics
}

func NewOutboxPoller(repo Repository, log *zap.Logger, opts Options, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  opts.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newPoller(repo, w, log, opts)
}

func newPoller(repo Repository, w Writer, log *zap.Logger, opts Options) *OutboxPoller {
	if opts.EventTick <= 0 {
		opts.EventTick = time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &OutboxPoller{
		timeout:     5 * time.Second,
		eventTick:   opts.EventTick,
		cleanupTick: time.Minute,
		retention:   opts.Retention,
		repo:        repo,
		writer:      w,
		breaker: circuitbreaker.New(circuitbreaker.Settings{
			Name:                "kafka-outbox",
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		}, log),
		metrics: opts.Metrics,
		log:     log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	cleanupTicker := time.NewTicker(p.cleanupTick)
	defer eventTicker.Stop()
	defer cleanupTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-cleanupTicker.C:
			p.purgeProcessedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		errPublish := p.breaker.Do(func() error { return p.publishToKafka(ctx, event) })
		if errors.Is(errPublish, circuitbreaker.ErrOpen) {
			p.observe("rejected")
			p.log.Warn("kafka breaker open, postponing outbox batch", zap.Int("pending", len(events)))
			return
		}
		if errPublish != nil {
			p.observe("error")
			p.log.Error("failed to publish event", zap.Int64("event_id", event.ID), zap.Error(errPublish))
			continue
		}
		p.observe("ok")

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			// redelivered next tick; the consumer ignores duplicates
			p.log.Error("failed to mark event as processed", zap.Int64("event_id", event.ID), zap.Error(errMark))
		}
	}
}

func (p *OutboxPoller) purgeProcessedEvents(ctx context.Context) {
	n, err := p.repo.DeleteProcessedEvents(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.log.Error("failed to purge processed outbox events", zap.Error(err))
		return
	}
	if n > 0 {
		p.log.Info("purged processed outbox events", zap.Int64("count", n))
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,             // already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *OutboxPoller) observe(outcome string) {
	if p.metrics != nil {
		p.metrics.ObservePublished(outcome)
	}
}
