package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleMarkDelivered handles PUT /api/orders/:id/deliver. The router
// restricts it to admins.
func HandleMarkDelivered(orders OrderManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		order, err := orders.MarkDelivered(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, logger, "Failed to mark order delivered", err)
			return
		}

		c.JSON(http.StatusOK, newOrderResponse(order))
	}
}
