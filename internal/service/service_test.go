package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
	"github.com/veilvogue/marketapi/internal/repository/memory"
)

type fixture struct {
	repos  *repository.Repositories
	carts  *CartService
	orders *OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos, _ := memory.NewRepositories()
	logger := zap.NewNop()
	return &fixture{
		repos: repos,
		carts: NewCartService(repos, config.CartConfig{
			CustomizationSurcharge: domain.DefaultCustomizationSurcharge,
			MaxRetries:             5,
		}, logger),
		orders: NewOrderService(repos, config.CheckoutConfig{}, logger),
	}
}

func (f *fixture) product(t *testing.T, price int64, stock int, mutate ...func(*domain.Product)) *domain.Product {
	t.Helper()
	p := &domain.Product{
		SellerID: uuid.New(),
		Name:     "Silk Abaya",
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		Verified: true,
		Image:    domain.ImageRef{URL: "https://img.example/abaya.jpg", ID: "abaya"},
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, f.repos.Product.Create(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.repos.Product.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.Error(t, err)
	require.True(t, stderrors.As(err, &target), "expected %T, got %v", target, err)
	return target
}

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Address:    "12 Rainbow St",
		City:       "Amman",
		PostalCode: "11118",
		Country:    "Jordan",
	}
}
