package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

type shippingAddressRecord struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

const orderColumns = `
	o.id, o.customer_id, o.shipping_address, o.payment_method,
	o.items_price, o.tax_price, o.shipping_price, o.total_price,
	o.is_paid, o.paid_at, o.is_delivered, o.delivered_at,
	o.created_at, o.updated_at
`

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var shipping []byte
	var paidAt, deliveredAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&shipping,
		&order.PaymentMethod,
		&order.ItemsPrice,
		&order.TaxPrice,
		&order.ShippingPrice,
		&order.TotalPrice,
		&order.IsPaid,
		&paidAt,
		&order.IsDelivered,
		&deliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var addr shippingAddressRecord
	if err := json.Unmarshal(shipping, &addr); err != nil {
		return nil, err
	}
	order.ShippingAddress = domain.ShippingAddress(addr)

	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}

	return &order, nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, customer_id, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price,
			is_paid, paid_at, is_delivered, delivered_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	shipping, err := json.Marshal(shippingAddressRecord(order.ShippingAddress))
	if err != nil {
		return errors.Dependency("encode shipping address", err)
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		shipping,
		order.PaymentMethod,
		order.ItemsPrice,
		order.TaxPrice,
		order.ShippingPrice,
		order.TotalPrice,
		order.IsPaid,
		order.PaidAt,
		order.IsDelivered,
		order.DeliveredAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return errors.Dependency("create order", err)
	}

	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	order, err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, errors.Dependency("get order", err)
	}

	return order, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC
	`
	return r.list(ctx, "list customer orders", query, customerID)
}

func (r *orderRepository) ListContainingProducts(ctx context.Context, productIDs []uuid.UUID) ([]*domain.Order, error) {
	if len(productIDs) == 0 {
		return []*domain.Order{}, nil
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = o.id AND oi.product_id = ANY($1::uuid[])
		)
		ORDER BY o.created_at DESC
	`
	return r.list(ctx, "list seller orders", query, pq.Array(uuidStrings(productIDs)))
}

func (r *orderRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query orders", zap.String("op", op), zap.Error(err))
		return nil, errors.Dependency(op, err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan order", zap.Error(err))
			return nil, errors.Dependency(op, err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Dependency(op, err)
	}

	return orders, nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET is_paid = TRUE, paid_at = $2, updated_at = $2
		WHERE id = $1 AND is_paid = FALSE
	`
	return r.setFlag(ctx, "mark order paid", query, id, at)
}

func (r *orderRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET is_delivered = TRUE, delivered_at = $2, updated_at = $2
		WHERE id = $1 AND is_delivered = FALSE
	`
	return r.setFlag(ctx, "mark order delivered", query, id, at)
}

func (r *orderRepository) setFlag(ctx context.Context, op, query string, id uuid.UUID, at time.Time) (bool, error) {
	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, at)
	if err != nil {
		r.logger.Error("Failed to update order", zap.String("op", op), zap.Error(err))
		return false, errors.Dependency(op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Dependency(op, err)
	}
	if affected == 1 {
		return true, nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, errors.Dependency(op, err)
	}
	if !exists {
		return false, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}

	return false, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
