package memory

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

func TestWithTransaction_RollbackRestoresState(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()

	p := &domain.Product{Name: "Kaftan", Price: decimal.NewFromInt(80), Stock: 5, Verified: true}
	require.NoError(t, repos.Product.Create(ctx, p))

	boom := stderrors.New("boom")
	err := repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repos.Product.DecrementStock(ctx, p.ID, 3))
		require.NoError(t, repos.Order.Create(ctx, &domain.Order{CustomerID: uuid.New()}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repos.Product.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestWithTransaction_Commit(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()

	p := &domain.Product{Name: "Kaftan", Price: decimal.NewFromInt(80), Stock: 5, Verified: true}
	require.NoError(t, repos.Product.Create(ctx, p))

	err := repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		return repos.Product.DecrementStock(ctx, p.ID, 2)
	})
	require.NoError(t, err)

	got, err := repos.Product.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestDecrementStock_Insufficient(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()

	p := &domain.Product{Name: "Scarf", Price: decimal.NewFromInt(10), Stock: 1}
	require.NoError(t, repos.Product.Create(ctx, p))

	err := repos.Product.DecrementStock(ctx, p.ID, 2)
	var stock *errors.ErrInsufficientStock
	require.True(t, stderrors.As(err, &stock))
	assert.Equal(t, 1, stock.Available)

	err = repos.Product.DecrementStock(ctx, uuid.New(), 1)
	var notFound *errors.ErrNotFound
	assert.True(t, stderrors.As(err, &notFound))
}

func TestCartUpsert_OptimisticVersion(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	customerID := uuid.New()

	cart := domain.NewEmptyCart(customerID)
	require.NoError(t, repos.Cart.Upsert(ctx, cart))
	assert.Equal(t, 1, cart.Version)
	assert.NotEqual(t, uuid.Nil, cart.ID)

	stale, err := repos.Cart.FindByCustomer(ctx, customerID)
	require.NoError(t, err)

	require.NoError(t, repos.Cart.Upsert(ctx, cart))
	assert.Equal(t, 2, cart.Version)

	err = repos.Cart.Upsert(ctx, stale)
	var conflict *errors.ErrConflict
	assert.True(t, stderrors.As(err, &conflict))

	require.NoError(t, repos.Cart.DeleteByCustomer(ctx, customerID))
	_, err = repos.Cart.FindByCustomer(ctx, customerID)
	var notFound *errors.ErrNotFound
	assert.True(t, stderrors.As(err, &notFound))
}

func TestOrders_NewestFirst(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	customerID := uuid.New()
	base := time.Now()

	older := &domain.Order{CustomerID: customerID, CreatedAt: base.Add(-time.Hour)}
	newer := &domain.Order{CustomerID: customerID, CreatedAt: base}
	require.NoError(t, repos.Order.Create(ctx, older))
	require.NoError(t, repos.Order.Create(ctx, newer))
	require.NoError(t, repos.Order.Create(ctx, &domain.Order{CustomerID: uuid.New()}))

	orders, err := repos.Order.ListByCustomer(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Equal(t, older.ID, orders[1].ID)
}

func TestOrderEvents_Unpublished(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()

	first := &domain.OrderEvent{OrderID: uuid.New(), EventType: domain.EventOrderPlaced}
	second := &domain.OrderEvent{OrderID: uuid.New(), EventType: domain.EventOrderPaid}
	require.NoError(t, repos.OrderEvent.Create(ctx, first))
	require.NoError(t, repos.OrderEvent.Create(ctx, second))
	require.NoError(t, repos.OrderEvent.MarkPublished(ctx, first.ID))

	events, err := repos.OrderEvent.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, second.ID, events[0].ID)
}

func TestOrderEvents_RejectsUnknownType(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()

	err := repos.OrderEvent.Create(ctx, &domain.OrderEvent{OrderID: uuid.New(), EventType: "order_shipped"})
	var invalid *errors.ErrInvalidArgument
	require.True(t, stderrors.As(err, &invalid), "got %v", err)
	assert.Equal(t, "event_type", invalid.Field)

	events, err := repos.OrderEvent.ListUnpublished(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestIdempotencyKey_Duplicate(t *testing.T) {
	repos, _ := NewRepositories()
	ctx := context.Background()
	key := &domain.IdempotencyKey{Key: "abc", CustomerID: uuid.New(), OrderID: uuid.New(), RequestHash: "h"}

	require.NoError(t, repos.IdempotencyKey.Create(ctx, key))
	err := repos.IdempotencyKey.Create(ctx, &domain.IdempotencyKey{Key: "abc", CustomerID: key.CustomerID})
	var conflict *errors.ErrConflict
	assert.True(t, stderrors.As(err, &conflict))

	got, err := repos.IdempotencyKey.Get(ctx, key.CustomerID, "abc")
	require.NoError(t, err)
	assert.Equal(t, key.OrderID, got.OrderID)
}
