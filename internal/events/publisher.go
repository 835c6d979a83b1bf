package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Envelope is the JSON value of every published message
type Envelope struct {
	EventID    string                 `json:"event_id"`
	EventType  domain.EventType       `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// OutboxPublisher drains order_events rows written by checkout and the
// status transitions, and marks them published once Kafka accepted them.
type OutboxPublisher struct {
	events    repository.OrderEventRepository
	writer    MessageWriter
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewKafkaWriter builds the writer used in production. Messages for the
// same order hash to the same partition.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPublisher(events repository.OrderEventRepository, writer MessageWriter, cfg config.OutboxConfig, logger *zap.Logger) *OutboxPublisher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPublisher{
		events:    events,
		writer:    writer,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Outbox publisher started",
		zap.Duration("interval", p.interval),
		zap.Int("batch_size", p.batchSize),
	)
	for {
		select {
		case <-ticker.C:
			p.ProcessBatch(ctx)
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopped")
			return
		}
	}
}

// ProcessBatch publishes one batch of pending events in creation order and
// returns how many were marked published. It stops at the first event that
// cannot be encoded, written or marked, so later events for the same order
// are never sent ahead of it.
func (p *OutboxPublisher) ProcessBatch(ctx context.Context) int {
	pending, err := p.events.ListUnpublished(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to fetch unpublished events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range pending {
		msg, err := toMessage(event)
		if err != nil {
			p.logger.Error("Failed to encode event",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			return published
		}

		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.logger.Warn("Failed to publish event, will retry",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.EventType)),
				zap.Error(err),
			)
			return published
		}

		if err := p.events.MarkPublished(ctx, event.ID); err != nil {
			p.logger.Error("Failed to mark event published",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			return published
		}
		published++
	}

	if published > 0 {
		p.logger.Debug("Published outbox events", zap.Int("count", published))
	}
	return published
}

func toMessage(event *domain.OrderEvent) (kafka.Message, error) {
	value, err := json.Marshal(Envelope{
		EventID:    event.ID.String(),
		EventType:  event.EventType,
		OrderID:    event.OrderID.String(),
		OccurredAt: event.CreatedAt,
		Data:       event.EventData,
	})
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.CreatedAt,
	}, nil
}
