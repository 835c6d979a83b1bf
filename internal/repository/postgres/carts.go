package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

// cartItemRecord is the JSONB shape of a cart line
type cartItemRecord struct {
	ID                     uuid.UUID       `json:"id"`
	ProductID              uuid.UUID       `json:"product_id"`
	Name                   string          `json:"name"`
	Price                  decimal.Decimal `json:"price"`
	Image                  string          `json:"image"`
	Quantity               int             `json:"quantity"`
	CustomizationDetails   string          `json:"customization_details"`
	CustomizationSurcharge decimal.Decimal `json:"customization_surcharge"`
}

func encodeCartItems(items []domain.CartItem) ([]byte, error) {
	records := make([]cartItemRecord, len(items))
	for i, item := range items {
		records[i] = cartItemRecord(item)
	}
	return json.Marshal(records)
}

func decodeCartItems(raw []byte) ([]domain.CartItem, error) {
	var records []cartItemRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	items := make([]domain.CartItem, len(records))
	for i, rec := range records {
		items[i] = domain.CartItem(rec)
	}
	return items, nil
}

type cartRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB, logger *zap.Logger) *cartRepository {
	return &cartRepository{
		db:     db,
		logger: logger,
	}
}

func (r *cartRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Cart, error) {
	query := `
		SELECT id, customer_id, items, total_amount, version, created_at, updated_at
		FROM carts
		WHERE customer_id = $1
	`
	// Checkout reads the cart it is about to delete; lock the row
	if _, ok := txFromContext(ctx); ok {
		query += " FOR UPDATE"
	}

	var cart domain.Cart
	var items []byte
	err := conn(ctx, r.db).QueryRowContext(ctx, query, customerID).Scan(
		&cart.ID,
		&cart.CustomerID,
		&items,
		&cart.TotalAmount,
		&cart.Version,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "cart", ID: customerID.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get cart", zap.Error(err))
		return nil, errors.Dependency("get cart", err)
	}

	if cart.Items, err = decodeCartItems(items); err != nil {
		r.logger.Error("Failed to decode cart items", zap.String("cart_id", cart.ID.String()), zap.Error(err))
		return nil, errors.Dependency("decode cart items", err)
	}

	return &cart, nil
}

func (r *cartRepository) Upsert(ctx context.Context, cart *domain.Cart) error {
	items, err := encodeCartItems(cart.Items)
	if err != nil {
		return errors.Dependency("encode cart items", err)
	}

	now := time.Now()
	q := conn(ctx, r.db)

	var row *sql.Row
	if cart.Version == 0 {
		if cart.ID == uuid.Nil {
			cart.ID = uuid.New()
		}
		row = q.QueryRowContext(ctx, `
			INSERT INTO carts (id, customer_id, items, total_amount, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5, $5)
			ON CONFLICT (customer_id) DO NOTHING
			RETURNING id, version, created_at, updated_at
		`, cart.ID, cart.CustomerID, items, cart.TotalAmount, now)
	} else {
		row = q.QueryRowContext(ctx, `
			UPDATE carts
			SET items = $2, total_amount = $3, version = version + 1, updated_at = $4
			WHERE customer_id = $1 AND version = $5
			RETURNING id, version, created_at, updated_at
		`, cart.CustomerID, items, cart.TotalAmount, now, cart.Version)
	}

	err = row.Scan(&cart.ID, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt)
	if err == sql.ErrNoRows {
		return &errors.ErrConflict{Resource: "cart", Message: "cart was modified concurrently"}
	}
	if err != nil {
		r.logger.Error("Failed to save cart", zap.String("customer_id", cart.CustomerID.String()), zap.Error(err))
		return errors.Dependency("save cart", err)
	}

	return nil
}

func (r *cartRepository) DeleteByCustomer(ctx context.Context, customerID uuid.UUID) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM carts WHERE customer_id = $1`, customerID)
	if err != nil {
		r.logger.Error("Failed to delete cart", zap.String("customer_id", customerID.String()), zap.Error(err))
		return errors.Dependency("delete cart", err)
	}
	return nil
}
