package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
	"github.com/veilvogue/marketapi/pkg/errors"
)

func setupTestDB(t *testing.T) *repository.Repositories {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("marketplace"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db))
	return NewRepositories(db, zap.NewNop())
}

func TestPostgres_Repositories(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()
	sellerID := uuid.New()
	customerID := uuid.New()

	product := &domain.Product{
		SellerID: sellerID,
		Name:     "Linen Kaftan",
		Price:    decimal.NewFromInt(100),
		Stock:    10,
		Verified: true,
		Image:    domain.ImageRef{URL: "https://img.example/k.jpg", ID: "k"},
	}
	require.NoError(t, repos.Product.Create(ctx, product))

	t.Run("product round trip", func(t *testing.T) {
		got, err := repos.Product.GetByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, product.Name, got.Name)
		assert.True(t, got.Price.Equal(product.Price))
		assert.Equal(t, "https://img.example/k.jpg", got.Image.URL)

		ids, err := repos.Product.ListIDsBySeller(ctx, sellerID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{product.ID}, ids)
	})

	t.Run("conditional stock decrement", func(t *testing.T) {
		require.NoError(t, repos.Product.DecrementStock(ctx, product.ID, 2))

		err := repos.Product.DecrementStock(ctx, product.ID, 100)
		var stock *errors.ErrInsufficientStock
		require.True(t, stderrors.As(err, &stock))
		assert.Equal(t, 8, stock.Available)

		err = repos.Product.DecrementStock(ctx, uuid.New(), 1)
		var notFound *errors.ErrNotFound
		assert.True(t, stderrors.As(err, &notFound))
	})

	t.Run("cart versioned upsert", func(t *testing.T) {
		cart := domain.NewEmptyCart(customerID)
		cart.Items = append(cart.Items, domain.NewCartItem(product, 2, `{"chest":"38"}`, domain.DefaultCustomizationSurcharge))
		cart.Recalculate()
		require.NoError(t, repos.Cart.Upsert(ctx, cart))
		assert.Equal(t, 1, cart.Version)

		stale, err := repos.Cart.FindByCustomer(ctx, customerID)
		require.NoError(t, err)
		require.Len(t, stale.Items, 1)
		assert.True(t, stale.TotalAmount.Equal(decimal.NewFromInt(500)))
		assert.True(t, stale.Items[0].CustomizationSurcharge.Equal(decimal.NewFromInt(150)))

		cart.Items[0].Quantity = 3
		cart.Recalculate()
		require.NoError(t, repos.Cart.Upsert(ctx, cart))
		assert.Equal(t, 2, cart.Version)

		err = repos.Cart.Upsert(ctx, stale)
		var conflict *errors.ErrConflict
		assert.True(t, stderrors.As(err, &conflict))

		dup := domain.NewEmptyCart(customerID)
		err = repos.Cart.Upsert(ctx, dup)
		assert.True(t, stderrors.As(err, &conflict))
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		boom := stderrors.New("boom")
		err := repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			if err := repos.Product.DecrementStock(ctx, product.ID, 1); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repos.Product.GetByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, got.Stock)
	})

	t.Run("orders and items", func(t *testing.T) {
		order := &domain.Order{
			CustomerID:      customerID,
			ShippingAddress: domain.ShippingAddress{Address: "1 Main St", City: "Amman", PostalCode: "11118", Country: "JO"},
			PaymentMethod:   "card",
			ItemsPrice:      decimal.NewFromInt(250),
			TotalPrice:      decimal.NewFromInt(250),
		}
		require.NoError(t, repos.Order.Create(ctx, order))

		lines := []domain.OrderLineItem{
			{OrderID: order.ID, ProductID: product.ID, Name: "Linen Kaftan", Quantity: 1, Price: decimal.NewFromInt(100), CustomizationSurcharge: decimal.NewFromInt(150)},
			{OrderID: order.ID, ProductID: uuid.New(), Name: "Other", Quantity: 1, Price: decimal.NewFromInt(5)},
		}
		require.NoError(t, repos.OrderItem.CreateBatch(ctx, lines))

		items, err := repos.OrderItem.GetByOrderID(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "Linen Kaftan", items[0].Name)

		got, err := repos.Order.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "Amman", got.ShippingAddress.City)
		assert.False(t, got.IsPaid)

		seller, err := repos.Order.ListContainingProducts(ctx, []uuid.UUID{product.ID})
		require.NoError(t, err)
		require.Len(t, seller, 1)
		assert.Equal(t, order.ID, seller[0].ID)

		changed, err := repos.Order.MarkPaid(ctx, order.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, changed)
		changed, err = repos.Order.MarkPaid(ctx, order.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, changed)

		_, err = repos.Order.MarkPaid(ctx, uuid.New(), time.Now())
		var notFound *errors.ErrNotFound
		assert.True(t, stderrors.As(err, &notFound))

		key := &domain.IdempotencyKey{Key: "k-1", CustomerID: customerID, OrderID: order.ID, RequestHash: "h"}
		require.NoError(t, repos.IdempotencyKey.Create(ctx, key))
		err = repos.IdempotencyKey.Create(ctx, key)
		var conflict *errors.ErrConflict
		assert.True(t, stderrors.As(err, &conflict))

		event := &domain.OrderEvent{OrderID: order.ID, EventType: domain.EventOrderPlaced, EventData: map[string]interface{}{"total": "250"}}
		require.NoError(t, repos.OrderEvent.Create(ctx, event))
		pending, err := repos.OrderEvent.ListUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.NoError(t, repos.OrderEvent.MarkPublished(ctx, event.ID))
		pending, err = repos.OrderEvent.ListUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		err = repos.OrderEvent.Create(ctx, &domain.OrderEvent{OrderID: order.ID, EventType: "order_shipped"})
		var invalid *errors.ErrInvalidArgument
		assert.True(t, stderrors.As(err, &invalid))
	})
}
