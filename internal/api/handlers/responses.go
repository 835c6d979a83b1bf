package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// CartItemResponse represents a cart line
type CartItemResponse struct {
	ID                     string          `json:"id"`
	ProductID              string          `json:"productId"`
	Name                   string          `json:"name"`
	Price                  decimal.Decimal `json:"price"`
	Image                  string          `json:"image"`
	Quantity               int             `json:"quantity"`
	CustomizationDetails   string          `json:"customizationDetails"`
	CustomizationSurcharge decimal.Decimal `json:"customizationSurcharge"`
}

// CartResponse represents the cart response
type CartResponse struct {
	ID          string             `json:"id,omitempty"`
	CustomerID  string             `json:"customerId"`
	Items       []CartItemResponse `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	UpdatedAt   string             `json:"updatedAt,omitempty"`
}

type ShippingAddressBody struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderItemResponse represents an order line
type OrderItemResponse struct {
	ID                     string          `json:"id"`
	ProductID              string          `json:"productId"`
	Name                   string          `json:"name"`
	Quantity               int             `json:"quantity"`
	Image                  string          `json:"image"`
	Price                  decimal.Decimal `json:"price"`
	CustomizationDetails   string          `json:"customizationDetails"`
	CustomizationSurcharge decimal.Decimal `json:"customizationSurcharge"`
}

// OrderResponse represents the order response
type OrderResponse struct {
	ID              string              `json:"id"`
	CustomerID      string              `json:"customerId"`
	Items           []OrderItemResponse `json:"items"`
	ShippingAddress ShippingAddressBody `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal     `json:"itemsPrice"`
	TaxPrice        decimal.Decimal     `json:"taxPrice"`
	ShippingPrice   decimal.Decimal     `json:"shippingPrice"`
	TotalPrice      decimal.Decimal     `json:"totalPrice"`
	IsPaid          bool                `json:"isPaid"`
	PaidAt          *string             `json:"paidAt,omitempty"`
	IsDelivered     bool                `json:"isDelivered"`
	DeliveredAt     *string             `json:"deliveredAt,omitempty"`
	CreatedAt       string              `json:"createdAt"`
	UpdatedAt       string              `json:"updatedAt"`
}

func newCartResponse(cart *domain.Cart) CartResponse {
	items := make([]CartItemResponse, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemResponse{
			ID:                     item.ID.String(),
			ProductID:              item.ProductID.String(),
			Name:                   item.Name,
			Price:                  item.Price,
			Image:                  item.Image,
			Quantity:               item.Quantity,
			CustomizationDetails:   item.CustomizationDetails,
			CustomizationSurcharge: item.CustomizationSurcharge,
		}
	}

	response := CartResponse{
		CustomerID:  cart.CustomerID.String(),
		Items:       items,
		TotalAmount: cart.TotalAmount,
	}
	if cart.IsPersisted() {
		response.ID = cart.ID.String()
		response.CreatedAt = cart.CreatedAt.Format(timeLayout)
		response.UpdatedAt = cart.UpdatedAt.Format(timeLayout)
	}
	return response
}

func newOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			ID:                     item.ID.String(),
			ProductID:              item.ProductID.String(),
			Name:                   item.Name,
			Quantity:               item.Quantity,
			Image:                  item.Image,
			Price:                  item.Price,
			CustomizationDetails:   item.CustomizationDetails,
			CustomizationSurcharge: item.CustomizationSurcharge,
		}
	}

	return OrderResponse{
		ID:              order.ID.String(),
		CustomerID:      order.CustomerID.String(),
		Items:           items,
		ShippingAddress: ShippingAddressBody(order.ShippingAddress),
		PaymentMethod:   order.PaymentMethod,
		ItemsPrice:      order.ItemsPrice,
		TaxPrice:        order.TaxPrice,
		ShippingPrice:   order.ShippingPrice,
		TotalPrice:      order.TotalPrice,
		IsPaid:          order.IsPaid,
		PaidAt:          formatTime(order.PaidAt),
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     formatTime(order.DeliveredAt),
		CreatedAt:       order.CreatedAt.Format(timeLayout),
		UpdatedAt:       order.UpdatedAt.Format(timeLayout),
	}
}

func newOrderListResponse(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = newOrderResponse(o)
	}
	return out
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

// respondError writes the status mapped from err. Server-side failures are
// logged and their details are not exposed.
func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := errors.HTTPStatus(err)
	switch {
	case status == http.StatusServiceUnavailable:
		logger.Error(msg, zap.Error(err))
		c.JSON(status, gin.H{"error": "service temporarily unavailable"})
	case status >= http.StatusInternalServerError:
		logger.Error(msg, zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
