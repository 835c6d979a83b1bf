package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

const orderItemColumns = `
	id, order_id, product_id, name, quantity, image, price,
	customization_details, customization_surcharge, created_at
`

type orderItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderItemRepository creates a new order item repository
func NewOrderItemRepository(db *sql.DB, logger *zap.Logger) *orderItemRepository {
	return &orderItemRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderItemRepository) CreateBatch(ctx context.Context, items []domain.OrderLineItem) error {
	query := `
		INSERT INTO order_items (` + orderItemColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	q := conn(ctx, r.db)
	now := time.Now()
	for i := range items {
		item := &items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}

		_, err := q.ExecContext(ctx, query,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.Quantity,
			item.Image,
			item.Price,
			item.CustomizationDetails,
			item.CustomizationSurcharge,
			item.CreatedAt,
			i,
		)
		if err != nil {
			r.logger.Error("Failed to create order item",
				zap.String("order_id", item.OrderID.String()),
				zap.Error(err),
			)
			return errors.Dependency("create order item", err)
		}
	}

	return nil
}

func (r *orderItemRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLineItem, error) {
	byOrder, err := r.GetByOrderIDs(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, err
	}
	return byOrder[orderID], nil
}

func (r *orderItemRepository) GetByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderLineItem, error) {
	out := make(map[uuid.UUID][]domain.OrderLineItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT ` + orderItemColumns + `
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, pq.Array(uuidStrings(orderIDs)))
	if err != nil {
		r.logger.Error("Failed to get order items", zap.Error(err))
		return nil, errors.Dependency("get order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderLineItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.Quantity,
			&item.Image,
			&item.Price,
			&item.CustomizationDetails,
			&item.CustomizationSurcharge,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, errors.Dependency("scan order item", err)
		}
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Dependency("get order items", err)
	}

	for _, id := range orderIDs {
		if out[id] == nil {
			out[id] = []domain.OrderLineItem{}
		}
	}

	return out, nil
}
