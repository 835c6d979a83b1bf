package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/api/middleware"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/service"
)

// CartEngine is the cart behaviour the handlers depend on
type CartEngine interface {
	GetCart(ctx context.Context, customerID uuid.UUID) (*domain.Cart, error)
	AddItem(ctx context.Context, customerID uuid.UUID, in service.AddItemInput) (*domain.Cart, error)
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, customerID, productID uuid.UUID, quantity int) (*domain.Cart, error)
}

// AddToCartRequest represents the add-to-cart payload.
// CustomizationDetails is either a serialized map or the map itself.
type AddToCartRequest struct {
	ProductID            string          `json:"productId" binding:"required"`
	Quantity             int             `json:"quantity" binding:"required,min=1"`
	CustomizationDetails json.RawMessage `json:"customizationDetails,omitempty"`
}

// UpdateQuantityRequest represents the quantity update payload
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// HandleGetCart handles GET /api/cart
func HandleGetCart(carts CartEngine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		cart, err := carts.GetCart(c.Request.Context(), principal.UserID)
		if err != nil {
			respondError(c, logger, "Failed to get cart", err)
			return
		}

		c.JSON(http.StatusOK, newCartResponse(cart))
	}
}

// HandleAddToCart handles POST /api/cart/add
func HandleAddToCart(carts CartEngine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req AddToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
			return
		}

		cart, err := carts.AddItem(c.Request.Context(), principal.UserID, service.AddItemInput{
			ProductID:            productID,
			Quantity:             req.Quantity,
			CustomizationDetails: customizationText(req.CustomizationDetails),
		})
		if err != nil {
			respondError(c, logger, "Failed to add item to cart", err)
			return
		}

		c.JSON(http.StatusCreated, newCartResponse(cart))
	}
}

// HandleRemoveFromCart handles DELETE /api/cart/remove/:itemId
func HandleRemoveFromCart(carts CartEngine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		itemID, err := uuid.Parse(c.Param("itemId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item ID"})
			return
		}

		cart, err := carts.RemoveItem(c.Request.Context(), principal.UserID, itemID)
		if err != nil {
			respondError(c, logger, "Failed to remove cart item", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Product removed from cart",
			"cart":    newCartResponse(cart),
		})
	}
}

// HandleUpdateCartQuantity handles PUT /api/cart/update/:productId
func HandleUpdateCartQuantity(carts CartEngine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipalFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		productID, err := uuid.Parse(c.Param("productId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
			return
		}

		var req UpdateQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		cart, err := carts.UpdateQuantity(c.Request.Context(), principal.UserID, productID, req.Quantity)
		if err != nil {
			respondError(c, logger, "Failed to update cart quantity", err)
			return
		}

		c.JSON(http.StatusOK, newCartResponse(cart))
	}
}

// customizationText accepts a JSON string holding the serialized map, a raw
// object, or nothing. Objects are kept as their compact JSON text.
func customizationText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
