package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/api/middleware"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/service"
)

// OrderManager is the order behaviour the handlers depend on
type OrderManager interface {
	PlaceOrder(ctx context.Context, customerID uuid.UUID, in service.PlaceOrderInput) (*service.PlaceOrderResult, error)
	GetOrderByID(ctx context.Context, orderID, requesterID uuid.UUID) (*domain.Order, error)
	ListMyOrders(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error)
	MarkPaid(ctx context.Context, orderID, requesterID uuid.UUID) (*domain.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// PlaceOrderRequest represents the checkout payload. Prices the client
// sends are compared with the cart, never trusted.
type PlaceOrderRequest struct {
	ShippingAddress ShippingAddressBody `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	ItemsPrice      *decimal.Decimal    `json:"itemsPrice,omitempty"`
	TaxPrice        decimal.Decimal     `json:"taxPrice"`
	ShippingPrice   decimal.Decimal     `json:"shippingPrice"`
	TotalPrice      *decimal.Decimal    `json:"totalPrice,omitempty"`
}

// HandlePlaceOrder handles POST /api/orders
func HandlePlaceOrder(orders OrderManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		key, requestHash := middleware.GetIdempotencyInfo(c)
		result, err := orders.PlaceOrder(c.Request.Context(), principal.UserID, service.PlaceOrderInput{
			ShippingAddress: domain.ShippingAddress(req.ShippingAddress),
			PaymentMethod:   req.PaymentMethod,
			ItemsPrice:      req.ItemsPrice,
			TaxPrice:        req.TaxPrice,
			ShippingPrice:   req.ShippingPrice,
			TotalPrice:      req.TotalPrice,
			IdempotencyKey:  key,
			RequestHash:     requestHash,
		})
		if err != nil {
			respondError(c, logger, "Failed to place order", err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, newOrderResponse(result.Order))
	}
}

// HandleGetMyOrders handles GET /api/orders/myorders
func HandleGetMyOrders(orders OrderManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		list, err := orders.ListMyOrders(c.Request.Context(), principal.UserID)
		if err != nil {
			respondError(c, logger, "Failed to list orders", err)
			return
		}

		c.JSON(http.StatusOK, newOrderListResponse(list))
	}
}

// HandleGetOrder handles GET /api/orders/:id
func HandleGetOrder(orders OrderManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		order, err := orders.GetOrderByID(c.Request.Context(), orderID, principal.UserID)
		if err != nil {
			respondError(c, logger, "Failed to get order", err)
			return
		}

		c.JSON(http.StatusOK, newOrderResponse(order))
	}
}

// HandleMarkPaid handles PUT /api/orders/:id/pay
func HandleMarkPaid(orders OrderManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		order, err := orders.MarkPaid(c.Request.Context(), orderID, principal.UserID)
		if err != nil {
			respondError(c, logger, "Failed to mark order paid", err)
			return
		}

		c.JSON(http.StatusOK, newOrderResponse(order))
	}
}

// HandleGetSellerOrders handles GET /api/orders/seller/myorders
func HandleGetSellerOrders(orders OrderManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		list, err := orders.ListSellerOrders(c.Request.Context(), principal.UserID)
		if err != nil {
			respondError(c, logger, "Failed to list seller orders", err)
			return
		}

		c.JSON(http.StatusOK, newOrderListResponse(list))
	}
}

func parseOrderID(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return orderID, true
}
