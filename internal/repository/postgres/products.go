package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

type productRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB, logger *zap.Logger) *productRepository {
	return &productRepository{
		db:     db,
		logger: logger,
	}
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, seller_id, name, price, stock, verified, image_url, image_id, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var product domain.Product
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.SellerID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.Verified,
		&product.Image.URL,
		&product.Image.ID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get product by ID", zap.Error(err))
		return nil, errors.Dependency("get product", err)
	}

	return &product, nil
}

func (r *productRepository) ListIDsBySeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT id FROM products WHERE seller_id = $1`, sellerID)
	if err != nil {
		r.logger.Error("Failed to list seller products", zap.Error(err))
		return nil, errors.Dependency("list seller products", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Dependency("scan product id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Dependency("list seller products", err)
	}

	return ids, nil
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, seller_id, name, price, stock, verified, image_url, image_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		product.ID,
		product.SellerID,
		product.Name,
		product.Price,
		product.Stock,
		product.Verified,
		product.Image.URL,
		product.Image.ID,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create product", zap.Error(err))
		return errors.Dependency("create product", err)
	}

	return nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, quantity)
	if err != nil {
		r.logger.Error("Failed to decrement stock", zap.String("product_id", id.String()), zap.Error(err))
		return errors.Dependency("decrement stock", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Dependency("decrement stock", err)
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated: the product is gone or has too little stock
	var available int
	err = q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&available)
	if err == sql.ErrNoRows {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if err != nil {
		return errors.Dependency("read stock", err)
	}

	return &errors.ErrInsufficientStock{ProductID: id, Requested: quantity, Available: available}
}
