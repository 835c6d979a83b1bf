package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veilvogue/marketapi/internal/domain"
)

// Repositories groups all repositories used by the services
type Repositories struct {
	Product        ProductRepository
	Cart           CartRepository
	Order          OrderRepository
	OrderItem      OrderItemRepository
	OrderEvent     OrderEventRepository
	IdempotencyKey IdempotencyKeyRepository
	Tx             TxManager
}

// TxManager runs fn inside a single transaction. Repository calls made with
// the ctx passed to fn take part in it. A non-nil error from fn rolls back.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListIDsBySeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, product *domain.Product) error
	// DecrementStock subtracts quantity only if enough stock remains.
	// Returns ErrNotFound when the product is gone and ErrInsufficientStock
	// when the condition fails.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

// CartRepository stores at most one cart per customer.
type CartRepository interface {
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Cart, error)
	// Upsert writes the cart if its Version still matches the stored one
	// (0 for a cart that was never stored) and bumps Version. A lost race
	// returns ErrConflict.
	Upsert(ctx context.Context, cart *domain.Cart) error
	DeleteByCustomer(ctx context.Context, customerID uuid.UUID) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error)
	// ListContainingProducts returns orders with at least one line for any
	// of productIDs, newest first.
	ListContainingProducts(ctx context.Context, productIDs []uuid.UUID) ([]*domain.Order, error)
	// MarkPaid sets the paid flag if not already set and reports whether it
	// changed anything.
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type OrderItemRepository interface {
	CreateBatch(ctx context.Context, items []domain.OrderLineItem) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLineItem, error)
	GetByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderLineItem, error)
}

type OrderEventRepository interface {
	Create(ctx context.Context, event *domain.OrderEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]*domain.OrderEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

type IdempotencyKeyRepository interface {
	Get(ctx context.Context, customerID uuid.UUID, key string) (*domain.IdempotencyKey, error)
	// Create returns ErrConflict when the key already exists for the
	// customer.
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}
