package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

type orderEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderEventRepository creates a new outbox repository
func NewOrderEventRepository(db *sql.DB, logger *zap.Logger) *orderEventRepository {
	return &orderEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderEventRepository) Create(ctx context.Context, event *domain.OrderEvent) error {
	if !event.EventType.IsValid() {
		return &errors.ErrInvalidArgument{Field: "event_type", Message: "unknown event type " + string(event.EventType)}
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.EventData == nil {
		event.EventData = map[string]interface{}{}
	}

	data, err := json.Marshal(event.EventData)
	if err != nil {
		return errors.Dependency("encode order event", err)
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO order_events (id, order_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.OrderID, string(event.EventType), data, event.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create order event", zap.Error(err))
		return errors.Dependency("create order event", err)
	}

	return nil
}

func (r *orderEventRepository) ListUnpublished(ctx context.Context, limit int) ([]*domain.OrderEvent, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, order_id, event_type, event_data, created_at
		FROM order_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		r.logger.Error("Failed to list unpublished events", zap.Error(err))
		return nil, errors.Dependency("list unpublished events", err)
	}
	defer rows.Close()

	events := make([]*domain.OrderEvent, 0)
	for rows.Next() {
		var event domain.OrderEvent
		var eventType string
		var data []byte
		if err := rows.Scan(&event.ID, &event.OrderID, &eventType, &data, &event.CreatedAt); err != nil {
			return nil, errors.Dependency("scan order event", err)
		}
		event.EventType = domain.EventType(eventType)
		if err := json.Unmarshal(data, &event.EventData); err != nil {
			// Later events may belong to the same order, so the batch ends at
			// the first row that cannot be decoded.
			r.logger.Error("Order event has malformed data, holding back the rest of the batch",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			break
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Dependency("list unpublished events", err)
	}

	return events, nil
}

func (r *orderEventRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE order_events SET published_at = NOW() WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to mark event published", zap.Error(err))
		return errors.Dependency("mark event published", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return &errors.ErrNotFound{Resource: "order event", ID: id.String()}
	}

	return nil
}
