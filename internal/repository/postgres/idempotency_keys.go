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

type idempotencyKeyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIdempotencyKeyRepository creates a new idempotency key repository
func NewIdempotencyKeyRepository(db *sql.DB, logger *zap.Logger) *idempotencyKeyRepository {
	return &idempotencyKeyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *idempotencyKeyRepository) Get(ctx context.Context, customerID uuid.UUID, key string) (*domain.IdempotencyKey, error) {
	var k domain.IdempotencyKey
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT key, customer_id, order_id, request_hash, created_at
		FROM idempotency_keys
		WHERE customer_id = $1 AND key = $2
	`, customerID, key).Scan(&k.Key, &k.CustomerID, &k.OrderID, &k.RequestHash, &k.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "idempotency key", ID: key}
	}
	if err != nil {
		r.logger.Error("Failed to get idempotency key", zap.Error(err))
		return nil, errors.Dependency("get idempotency key", err)
	}

	return &k, nil
}

func (r *idempotencyKeyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, customer_id, order_id, request_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, key.Key, key.CustomerID, key.OrderID, key.RequestHash, key.CreatedAt)

	if isUniqueViolation(err) {
		return &errors.ErrConflict{Resource: "idempotency key", Message: "key already used"}
	}
	if err != nil {
		r.logger.Error("Failed to create idempotency key", zap.Error(err))
		return errors.Dependency("create idempotency key", err)
	}

	return nil
}
