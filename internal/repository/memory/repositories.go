package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
	"github.com/veilvogue/marketapi/pkg/errors"
)

var (
	_ repository.ProductRepository        = (*productRepository)(nil)
	_ repository.CartRepository           = (*cartRepository)(nil)
	_ repository.OrderRepository          = (*orderRepository)(nil)
	_ repository.OrderItemRepository      = (*orderItemRepository)(nil)
	_ repository.OrderEventRepository     = (*orderEventRepository)(nil)
	_ repository.IdempotencyKeyRepository = (*idempotencyKeyRepository)(nil)
	_ repository.TxManager                = (*Store)(nil)
)

type productRepository struct{ s *Store }

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	p, ok := r.s.data.products[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return &p, nil
}

func (r *productRepository) ListIDsBySeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	ids := make([]uuid.UUID, 0)
	for id, p := range r.s.data.products {
		if p.SellerID == sellerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	now := time.Now()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.s.data.products[product.ID] = *product
	return nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	p, ok := r.s.data.products[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if p.Stock < quantity {
		return &errors.ErrInsufficientStock{ProductID: id, Requested: quantity, Available: p.Stock}
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now()
	r.s.data.products[id] = p
	return nil
}

type cartRepository struct{ s *Store }

func (r *cartRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*domain.Cart, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	c, ok := r.s.data.carts[customerID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "cart", ID: customerID.String()}
	}
	return (&c).Clone(), nil
}

func (r *cartRepository) Upsert(ctx context.Context, cart *domain.Cart) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	stored, exists := r.s.data.carts[cart.CustomerID]
	storedVersion := 0
	if exists {
		storedVersion = stored.Version
	}
	if storedVersion != cart.Version {
		return &errors.ErrConflict{Resource: "cart", Message: "cart was modified concurrently"}
	}

	now := time.Now()
	if exists {
		cart.ID = stored.ID
		cart.CreatedAt = stored.CreatedAt
	} else {
		if cart.ID == uuid.Nil {
			cart.ID = uuid.New()
		}
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cart.Version = storedVersion + 1
	r.s.data.carts[cart.CustomerID] = *cart.Clone()
	return nil
}

func (r *cartRepository) DeleteByCustomer(ctx context.Context, customerID uuid.UUID) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	delete(r.s.data.carts, customerID)
	return nil
}

type orderRepository struct{ s *Store }

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

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
	stored := *order
	stored.Items = nil
	r.s.data.orders[order.ID] = stored
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return &o, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	return r.s.data.sortedOrders(func(o domain.Order) bool {
		return o.CustomerID == customerID
	}), nil
}

func (r *orderRepository) ListContainingProducts(ctx context.Context, productIDs []uuid.UUID) ([]*domain.Order, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	set := make(map[uuid.UUID]struct{}, len(productIDs))
	for _, id := range productIDs {
		set[id] = struct{}{}
	}
	return r.s.data.sortedOrders(func(o domain.Order) bool {
		for _, item := range r.s.data.orderItems[o.ID] {
			if _, ok := set[item.ProductID]; ok {
				return true
			}
		}
		return false
	}), nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	o, ok := r.s.data.orders[id]
	if !ok {
		return false, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if o.IsPaid {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &at
	o.UpdatedAt = at
	r.s.data.orders[id] = o
	return true, nil
}

func (r *orderRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	o, ok := r.s.data.orders[id]
	if !ok {
		return false, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if o.IsDelivered {
		return false, nil
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	o.UpdatedAt = at
	r.s.data.orders[id] = o
	return true, nil
}

// sortedOrders returns matching orders newest first
func (s *state) sortedOrders(match func(domain.Order) bool) []*domain.Order {
	orders := make([]*domain.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			o := o
			orders = append(orders, &o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

type orderItemRepository struct{ s *Store }

func (r *orderItemRepository) CreateBatch(ctx context.Context, items []domain.OrderLineItem) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now()
		}
		existing := r.s.data.orderItems[item.OrderID]
		next := make([]domain.OrderLineItem, len(existing), len(existing)+1)
		copy(next, existing)
		r.s.data.orderItems[item.OrderID] = append(next, item)
	}
	return nil
}

func (r *orderItemRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLineItem, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	items := make([]domain.OrderLineItem, len(r.s.data.orderItems[orderID]))
	copy(items, r.s.data.orderItems[orderID])
	return items, nil
}

func (r *orderItemRepository) GetByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderLineItem, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	out := make(map[uuid.UUID][]domain.OrderLineItem, len(orderIDs))
	for _, id := range orderIDs {
		items := make([]domain.OrderLineItem, len(r.s.data.orderItems[id]))
		copy(items, r.s.data.orderItems[id])
		out[id] = items
	}
	return out, nil
}

type orderEventRepository struct{ s *Store }

func (r *orderEventRepository) Create(ctx context.Context, event *domain.OrderEvent) error {
	if !event.EventType.IsValid() {
		return &errors.ErrInvalidArgument{Field: "event_type", Message: "unknown event type " + string(event.EventType)}
	}

	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.s.data.events[event.ID] = *event
	r.s.data.eventOrder = append(r.s.data.eventOrder, event.ID)
	return nil
}

func (r *orderEventRepository) ListUnpublished(ctx context.Context, limit int) ([]*domain.OrderEvent, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	events := make([]*domain.OrderEvent, 0)
	for _, id := range r.s.data.eventOrder {
		if limit > 0 && len(events) >= limit {
			break
		}
		e := r.s.data.events[id]
		if e.PublishedAt == nil {
			events = append(events, &e)
		}
	}
	return events, nil
}

func (r *orderEventRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	e, ok := r.s.data.events[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order event", ID: id.String()}
	}
	now := time.Now()
	e.PublishedAt = &now
	r.s.data.events[id] = e
	return nil
}

type idempotencyKeyRepository struct{ s *Store }

func (r *idempotencyKeyRepository) Get(ctx context.Context, customerID uuid.UUID, key string) (*domain.IdempotencyKey, error) {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	k, ok := r.s.data.idempotency[idempotencyID{customerID, key}]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "idempotency key", ID: key}
	}
	return &k, nil
}

func (r *idempotencyKeyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	r.s.lock(ctx)
	defer r.s.unlock(ctx)

	id := idempotencyID{key.CustomerID, key.Key}
	if _, exists := r.s.data.idempotency[id]; exists {
		return &errors.ErrConflict{Resource: "idempotency key", Message: "key already used"}
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	r.s.data.idempotency[id] = *key
	return nil
}
