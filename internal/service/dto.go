package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veilvogue/marketapi/internal/domain"
)

// AddItemInput is the payload of a cart add
type AddItemInput struct {
	ProductID            uuid.UUID
	Quantity             int
	CustomizationDetails string
}

// PlaceOrderInput carries everything checkout needs besides the cart.
// ItemsPrice and TotalPrice are the client's view of the totals and are
// only compared against the server computation.
type PlaceOrderInput struct {
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
	ItemsPrice      *decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	TotalPrice      *decimal.Decimal

	IdempotencyKey string
	RequestHash    string
}

// PlaceOrderResult reports the order and whether it was replayed from an
// earlier request with the same idempotency key.
type PlaceOrderResult struct {
	Order    *domain.Order
	Replayed bool
}
