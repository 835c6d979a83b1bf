package service

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
	"github.com/veilvogue/marketapi/pkg/errors"
)

type CartService struct {
	repos      *repository.Repositories
	logger     *zap.Logger
	surcharge  decimal.Decimal
	maxRetries int
}

// NewCartService creates a new cart service
func NewCartService(repos *repository.Repositories, cfg config.CartConfig, logger *zap.Logger) *CartService {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &CartService{
		repos:      repos,
		logger:     logger,
		surcharge:  cfg.CustomizationSurcharge,
		maxRetries: maxRetries,
	}
}

// GetCart returns the customer's cart, or an empty unsaved cart when none
// exists yet.
func (s *CartService) GetCart(ctx context.Context, customerID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.repos.Cart.FindByCustomer(ctx, customerID)
	if isNotFound(err) {
		return domain.NewEmptyCart(customerID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem merges quantity into the existing line for the product or
// appends a new snapshot line. The cart is created on first use.
func (s *CartService) AddItem(ctx context.Context, customerID uuid.UUID, in AddItemInput) (*domain.Cart, error) {
	if in.Quantity < 1 {
		return nil, &errors.ErrInvalidArgument{Field: "quantity", Message: "must be at least 1"}
	}

	product, err := s.repos.Product.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Verified {
		// Unverified listings are invisible to customers
		return nil, &errors.ErrNotFound{Resource: "product", ID: in.ProductID.String()}
	}
	if product.Stock < in.Quantity {
		return nil, &errors.ErrInsufficientStock{
			ProductID: product.ID,
			Requested: in.Quantity,
			Available: product.Stock,
		}
	}

	return s.mutate(ctx, customerID, true, func(cart *domain.Cart) error {
		if idx := cart.ItemIndexByProduct(product.ID); idx >= 0 {
			cart.Items[idx].Quantity += in.Quantity
			return nil
		}
		cart.Items = append(cart.Items, domain.NewCartItem(product, in.Quantity, in.CustomizationDetails, s.surcharge))
		return nil
	})
}

// RemoveItem drops the line with the given cart item id.
func (s *CartService) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*domain.Cart, error) {
	return s.mutate(ctx, customerID, false, func(cart *domain.Cart) error {
		if !cart.RemoveItem(itemID) {
			return &errors.ErrNotFound{Resource: "cart item", ID: itemID.String()}
		}
		return nil
	})
}

// UpdateQuantity sets the quantity of the line for productID, checked
// against the product's current stock.
func (s *CartService) UpdateQuantity(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, &errors.ErrInvalidArgument{Field: "quantity", Message: "must be at least 1"}
	}

	return s.mutate(ctx, customerID, false, func(cart *domain.Cart) error {
		idx := cart.ItemIndexByProduct(productID)
		if idx < 0 {
			return &errors.ErrNotFound{Resource: "cart item", ID: productID.String()}
		}

		product, err := s.repos.Product.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if product.Stock < quantity {
			return &errors.ErrInsufficientStock{
				ProductID: productID,
				Requested: quantity,
				Available: product.Stock,
			}
		}

		cart.Items[idx].Quantity = quantity
		return nil
	})
}

// mutate loads the cart, applies fn, recomputes the total and writes it
// back with a version check, retrying when a concurrent write wins.
func (s *CartService) mutate(ctx context.Context, customerID uuid.UUID, create bool, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		cart, err := s.repos.Cart.FindByCustomer(ctx, customerID)
		switch {
		case isNotFound(err) && create:
			cart = domain.NewEmptyCart(customerID)
		case err != nil:
			return nil, err
		}

		if err := fn(cart); err != nil {
			return nil, err
		}
		cart.Recalculate()

		err = s.repos.Cart.Upsert(ctx, cart)
		if err == nil {
			return cart, nil
		}

		var conflict *errors.ErrConflict
		if !stderrors.As(err, &conflict) {
			return nil, err
		}

		lastErr = err
		s.logger.Warn("Cart write lost a concurrent update, retrying",
			zap.String("customer_id", customerID.String()),
			zap.Int("attempt", attempt),
		)
	}

	return nil, lastErr
}

func isNotFound(err error) bool {
	var notFound *errors.ErrNotFound
	return stderrors.As(err, &notFound)
}
