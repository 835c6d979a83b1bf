package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImageRef points at an externally hosted product image
type ImageRef struct {
	URL string
	ID  string
}

// Product is a catalog listing. This service only reads products and
// decrements their stock.
type Product struct {
	ID        uuid.UUID
	SellerID  uuid.UUID
	Name      string
	Price     decimal.Decimal
	Stock     int
	Verified  bool
	Image     ImageRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrimaryImageURL returns the URL of the product image, or "" when the
// product has none.
func (p *Product) PrimaryImageURL() string {
	return p.Image.URL
}

// Cart is the single mutable cart of a customer.
type Cart struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	Items       []CartItem
	TotalAmount decimal.Decimal
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem is a product snapshot taken when the line was first added.
type CartItem struct {
	ID                     uuid.UUID
	ProductID              uuid.UUID
	Name                   string
	Price                  decimal.Decimal
	Image                  string
	Quantity               int
	CustomizationDetails   string
	CustomizationSurcharge decimal.Decimal
}

// ShippingAddress is the delivery address captured at checkout
type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

// Order is created once from a cart and never edited except for its
// paid and delivered flags.
type Order struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	Items           []OrderLineItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	TotalPrice      decimal.Decimal
	IsPaid          bool
	PaidAt          *time.Time
	IsDelivered     bool
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderLineItem is the immutable copy of a cart line
type OrderLineItem struct {
	ID                     uuid.UUID
	OrderID                uuid.UUID
	ProductID              uuid.UUID
	Name                   string
	Quantity               int
	Image                  string
	Price                  decimal.Decimal
	CustomizationDetails   string
	CustomizationSurcharge decimal.Decimal
	CreatedAt              time.Time
}

// Subtotal returns quantity × (price + surcharge) for the line.
func (i OrderLineItem) Subtotal() decimal.Decimal {
	return i.Price.Add(i.CustomizationSurcharge).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IdempotencyKey binds a client supplied key to the order it produced
type IdempotencyKey struct {
	Key         string
	CustomerID  uuid.UUID
	OrderID     uuid.UUID
	RequestHash string
	CreatedAt   time.Time
}

// OrderEvent is an outbox row describing an order lifecycle change
type OrderEvent struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	EventType   EventType
	EventData   map[string]interface{} // JSONB
	CreatedAt   time.Time
	PublishedAt *time.Time
}
