package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
	"github.com/veilvogue/marketapi/pkg/errors"
)

type OrderService struct {
	repos        *repository.Repositories
	logger       *zap.Logger
	strictTotals bool
	now          func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(repos *repository.Repositories, cfg config.CheckoutConfig, logger *zap.Logger) *OrderService {
	return &OrderService{
		repos:        repos,
		logger:       logger,
		strictTotals: cfg.StrictTotals,
		now:          time.Now,
	}
}

// PlaceOrder turns the customer's cart into an order. The order, its lines,
// the stock decrements, the cart deletion and the outbox event are written
// in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID uuid.UUID, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := validatePlaceOrder(in); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		result, err := s.replay(ctx, customerID, in)
		if err != nil || result != nil {
			return result, err
		}
	}

	var (
		order    *domain.Order
		replayed *PlaceOrderResult
	)
	err := s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.repos.Cart.FindByCustomer(ctx, customerID)
		if err != nil && !isNotFound(err) {
			return err
		}

		// The cart row lock serializes checkouts of one customer, so a
		// concurrent request with the same key waits here and then sees the
		// key committed by the first one.
		if in.IdempotencyKey != "" {
			replayed, err = s.replay(ctx, customerID, in)
			if err != nil || replayed != nil {
				return err
			}
		}

		if cart == nil || cart.IsEmpty() {
			return &errors.ErrInvalidState{Message: "no items in cart"}
		}

		itemsPrice := cart.Recalculate()
		totalPrice := itemsPrice.Add(in.TaxPrice).Add(in.ShippingPrice)
		if err := s.checkClientTotals(customerID, in, itemsPrice, totalPrice); err != nil {
			return err
		}

		now := s.now()
		order = &domain.Order{
			ID:              uuid.New(),
			CustomerID:      customerID,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			ItemsPrice:      itemsPrice,
			TaxPrice:        in.TaxPrice,
			ShippingPrice:   in.ShippingPrice,
			TotalPrice:      totalPrice,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		order.Items = cart.SnapshotLines(order.ID, now)

		if err := s.repos.Order.Create(ctx, order); err != nil {
			return err
		}
		if err := s.repos.OrderItem.CreateBatch(ctx, order.Items); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := s.decrementStock(ctx, order.ID, item); err != nil {
				return err
			}
		}

		if err := s.repos.Cart.DeleteByCustomer(ctx, customerID); err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			key := &domain.IdempotencyKey{
				Key:         in.IdempotencyKey,
				CustomerID:  customerID,
				OrderID:     order.ID,
				RequestHash: in.RequestHash,
			}
			if err := s.repos.IdempotencyKey.Create(ctx, key); err != nil {
				return err
			}
		}

		return s.repos.OrderEvent.Create(ctx, &domain.OrderEvent{
			OrderID:   order.ID,
			EventType: domain.EventOrderPlaced,
			EventData: map[string]interface{}{
				"customer_id": customerID.String(),
				"items_price": itemsPrice.String(),
				"total_price": totalPrice.String(),
				"item_count":  len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if replayed != nil {
		return replayed, nil
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("total_price", order.TotalPrice.String()),
		zap.Int("items", len(order.Items)),
	)

	return &PlaceOrderResult{Order: order}, nil
}

// replay returns the order an earlier request with the same key produced,
// or nil when the key is new.
func (s *OrderService) replay(ctx context.Context, customerID uuid.UUID, in PlaceOrderInput) (*PlaceOrderResult, error) {
	existing, err := s.repos.IdempotencyKey.Get(ctx, customerID, in.IdempotencyKey)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if existing.RequestHash != in.RequestHash {
		return nil, &errors.ErrConflict{
			Resource: "idempotency key",
			Message:  "key was already used with a different request body",
		}
	}

	order, err := s.GetOrderByID(ctx, existing.OrderID, customerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Replaying idempotent checkout",
		zap.String("order_id", order.ID.String()),
		zap.String("idempotency_key", in.IdempotencyKey),
	)
	return &PlaceOrderResult{Order: order, Replayed: true}, nil
}

func (s *OrderService) decrementStock(ctx context.Context, orderID uuid.UUID, item domain.OrderLineItem) error {
	err := s.repos.Product.DecrementStock(ctx, item.ProductID, item.Quantity)
	if isNotFound(err) {
		// A delisted product does not block checkout
		s.logger.Warn("Product missing during checkout, stock not decremented",
			zap.String("order_id", orderID.String()),
			zap.String("product_id", item.ProductID.String()),
		)
		return nil
	}
	return err
}

func (s *OrderService) checkClientTotals(customerID uuid.UUID, in PlaceOrderInput, itemsPrice, totalPrice decimal.Decimal) error {
	mismatch := (in.ItemsPrice != nil && !in.ItemsPrice.Equal(itemsPrice)) ||
		(in.TotalPrice != nil && !in.TotalPrice.Equal(totalPrice))
	if !mismatch {
		return nil
	}

	if s.strictTotals {
		return &errors.ErrInvalidArgument{
			Field:   "totalPrice",
			Message: "totals do not match the cart, expected " + totalPrice.String(),
		}
	}

	s.logger.Warn("Client totals differ from cart, using server totals",
		zap.String("customer_id", customerID.String()),
		zap.String("items_price", itemsPrice.String()),
		zap.String("total_price", totalPrice.String()),
	)
	return nil
}

func validatePlaceOrder(in PlaceOrderInput) error {
	if field, ok := in.ShippingAddress.Validate(); !ok {
		return &errors.ErrInvalidArgument{Field: field, Message: "is required"}
	}
	if in.PaymentMethod == "" {
		return &errors.ErrInvalidArgument{Field: "paymentMethod", Message: "is required"}
	}
	if in.TaxPrice.IsNegative() {
		return &errors.ErrInvalidArgument{Field: "taxPrice", Message: "must not be negative"}
	}
	if in.ShippingPrice.IsNegative() {
		return &errors.ErrInvalidArgument{Field: "shippingPrice", Message: "must not be negative"}
	}
	amounts := []struct {
		field string
		value *decimal.Decimal
	}{
		{"taxPrice", &in.TaxPrice},
		{"shippingPrice", &in.ShippingPrice},
		{"itemsPrice", in.ItemsPrice},
		{"totalPrice", in.TotalPrice},
	}
	for _, a := range amounts {
		if a.value != nil && !domain.FitsMoneyScale(*a.value) {
			return &errors.ErrInvalidArgument{Field: a.field, Message: "must have at most 2 decimal places"}
		}
	}
	return nil
}

// MarkPaid flags the order as paid. Paying an already paid order changes
// nothing and keeps the original paidAt.
func (s *OrderService) MarkPaid(ctx context.Context, orderID, requesterID uuid.UUID) (*domain.Order, error) {
	order, err := s.GetOrderByID(ctx, orderID, requesterID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return order, nil
	}

	err = s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		changed, err := s.repos.Order.MarkPaid(ctx, orderID, s.now())
		if err != nil || !changed {
			return err
		}
		return s.repos.OrderEvent.Create(ctx, &domain.OrderEvent{
			OrderID:   orderID,
			EventType: domain.EventOrderPaid,
			EventData: map[string]interface{}{
				"customer_id":    order.CustomerID.String(),
				"payment_method": order.PaymentMethod,
				"total_price":    order.TotalPrice.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order paid", zap.String("order_id", orderID.String()))
	return s.GetOrderByID(ctx, orderID, requesterID)
}

// MarkDelivered flags a paid order as delivered.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsDelivered {
		return order, nil
	}
	if !order.IsPaid {
		return nil, &errors.ErrInvalidState{Message: "order is not paid"}
	}

	err = s.repos.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		changed, err := s.repos.Order.MarkDelivered(ctx, orderID, s.now())
		if err != nil || !changed {
			return err
		}
		return s.repos.OrderEvent.Create(ctx, &domain.OrderEvent{
			OrderID:   orderID,
			EventType: domain.EventOrderDelivered,
			EventData: map[string]interface{}{
				"customer_id": order.CustomerID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order delivered", zap.String("order_id", orderID.String()))
	return s.loadOrder(ctx, orderID)
}

// GetOrderByID returns the order if requesterID owns it. Orders of other
// customers are reported as not found.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID, requesterID uuid.UUID) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != requesterID {
		return nil, &errors.ErrNotFound{Resource: "order", ID: orderID.String()}
	}
	return order, nil
}

// ListMyOrders returns the customer's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.repos.Order.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListSellerOrders returns every order containing at least one of the
// seller's products, newest first, with lines restricted to those products.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	productIDs, err := s.repos.Product.ListIDsBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return []*domain.Order{}, nil
	}

	orders, err := s.repos.Order.ListContainingProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	owned := make(map[uuid.UUID]struct{}, len(productIDs))
	for _, id := range productIDs {
		owned[id] = struct{}{}
	}

	views := make([]*domain.Order, 0, len(orders))
	for _, order := range orders {
		if order.ContainsAnyProduct(owned) {
			views = append(views, order.ForSeller(owned))
		}
	}
	return views, nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repos.OrderItem.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *OrderService) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	byOrder, err := s.repos.OrderItem.GetByOrderIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, o := range orders {
		o.Items = byOrder[o.ID]
		if o.Items == nil {
			o.Items = []domain.OrderLineItem{}
		}
	}
	return nil
}
