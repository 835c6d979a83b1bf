package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
)

// Store is an in-process implementation of every repository. It backs the
// memory storage driver and the service tests.
type Store struct {
	mu   sync.Mutex
	data *state
}

type state struct {
	products    map[uuid.UUID]domain.Product
	carts       map[uuid.UUID]domain.Cart // keyed by customer
	orders      map[uuid.UUID]domain.Order
	orderItems  map[uuid.UUID][]domain.OrderLineItem
	events      map[uuid.UUID]domain.OrderEvent
	eventOrder  []uuid.UUID
	idempotency map[idempotencyID]domain.IdempotencyKey
}

type idempotencyID struct {
	customerID uuid.UUID
	key        string
}

func newState() *state {
	return &state{
		products:    make(map[uuid.UUID]domain.Product),
		carts:       make(map[uuid.UUID]domain.Cart),
		orders:      make(map[uuid.UUID]domain.Order),
		orderItems:  make(map[uuid.UUID][]domain.OrderLineItem),
		events:      make(map[uuid.UUID]domain.OrderEvent),
		idempotency: make(map[idempotencyID]domain.IdempotencyKey),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.carts {
		items := make([]domain.CartItem, len(v.Items))
		copy(items, v.Items)
		v.Items = items
		cp.carts[k] = v
	}
	for k, v := range s.orders {
		cp.orders[k] = v
	}
	for k, v := range s.orderItems {
		items := make([]domain.OrderLineItem, len(v))
		copy(items, v)
		cp.orderItems[k] = items
	}
	for k, v := range s.events {
		cp.events[k] = v
	}
	cp.eventOrder = append([]uuid.UUID(nil), s.eventOrder...)
	for k, v := range s.idempotency {
		cp.idempotency[k] = v
	}
	return cp
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// NewRepositories wires every repository to a fresh store
func NewRepositories() (*repository.Repositories, *Store) {
	s := NewStore()
	return s.Repositories(), s
}

// Repositories returns repository views over the store
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Product:        &productRepository{s},
		Cart:           &cartRepository{s},
		Order:          &orderRepository{s},
		OrderItem:      &orderItemRepository{s},
		OrderEvent:     &orderEventRepository{s},
		IdempotencyKey: &idempotencyKeyRepository{s},
		Tx:             s,
	}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(txKey{}).(bool)
	return ok && v
}

func (s *Store) lock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Lock()
	}
}

func (s *Store) unlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Unlock()
	}
}

// WithTransaction holds the store lock for the duration of fn and restores
// the previous state when fn fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = saved
		return err
	}
	return nil
}
