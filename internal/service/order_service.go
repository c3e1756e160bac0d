package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
	"github.com/Rijughosh14/EShop/internal/dto"
	"github.com/Rijughosh14/EShop/internal/gateway"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidOrder = errors.New("invalid order")

// OrderService runs the mock checkout
type OrderService interface {
	// PlaceOrder charges the mock gateway; a declined charge is a failed order, not an error
	PlaceOrder(ctx context.Context, userID string, req *dto.PlaceOrderRequest) (*domain.Order, error)
}

type orderService struct {
	gateway   gateway.PaymentGateway
	publisher EventPublisher
	log       *logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(gw gateway.PaymentGateway, publisher EventPublisher, log *logger.Logger) OrderService {
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	if log == nil {
		log = logger.Get()
	}
	return &orderService{gateway: gw, publisher: publisher, log: log}
}

func (s *orderService) PlaceOrder(ctx context.Context, userID string, req *dto.PlaceOrderRequest) (*domain.Order, error) {
	if ok, msg := req.Validate(); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, msg)
	}

	order := &domain.Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     req.Items,
		Shipping:  req.Shipping,
		CreatedAt: time.Now().UTC(),
	}
	order.Total = order.Subtotal()
	if len(order.Items) == 0 {
		order.Total = req.Total
	}

	charge, err := s.gateway.Charge(ctx, &gateway.ChargeRequest{
		OrderID:  order.ID,
		UserID:   userID,
		Amount:   order.Total,
		Currency: "USD",
	})
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}

	if charge.Success {
		order.Status = domain.OrderStatusPlaced
		order.TransactionID = charge.TransactionID
		err = s.publisher.PublishOrderPlaced(ctx, order)
	} else {
		order.Status = domain.OrderStatusFailed
		order.FailureReason = charge.FailureReason
		err = s.publisher.PublishOrderFailed(ctx, order)
	}
	if err != nil {
		s.log.WarnContext(ctx, "Failed to publish order event",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.Error(err),
		)
	}

	s.log.InfoContext(ctx, "Order processed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("status", string(order.Status)),
		zap.Float64("total", order.Total),
	)
	return order, nil
}
