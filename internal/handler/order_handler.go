package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/Rijughosh14/EShop/internal/dto"
	"github.com/Rijughosh14/EShop/internal/middleware"
	"github.com/Rijughosh14/EShop/internal/service"
	"github.com/Rijughosh14/EShop/pkg/response"
	"github.com/gin-gonic/gin"
)

// OrderHandler handles mock checkout
type OrderHandler struct {
	orders service.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// PlaceOrder handles POST /api/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid order payload")
			return
		}
	}

	userID, _ := middleware.GetUserID(c)
	order, err := h.orders.PlaceOrder(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrder) {
			msg := strings.TrimPrefix(err.Error(), service.ErrInvalidOrder.Error()+": ")
			response.Error(c, http.StatusBadRequest, "INVALID_ORDER", msg, "")
			return
		}
		response.Error(c, http.StatusBadGateway, "PAYMENT_UNAVAILABLE", "Payment processing failed", err.Error())
		return
	}

	if order.Status != domain.OrderStatusPlaced {
		c.JSON(http.StatusBadRequest, dto.OrderResponse{
			Success: false,
			Message: "Payment processing failed",
		})
		return
	}

	c.JSON(http.StatusOK, dto.OrderResponse{
		Success: true,
		OrderID: order.ID,
		Message: "Order placed successfully",
		Total:   order.Total,
	})
}
