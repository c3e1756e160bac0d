package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCharge = errors.New("charge amount must not be negative")

// ChargeRequest is a payment attempt for one order
type ChargeRequest struct {
	OrderID  string
	UserID   string
	Amount   float64
	Currency string
}

// ChargeResponse is the gateway's verdict
type ChargeResponse struct {
	Success       bool
	TransactionID string
	FailureReason string
}

// PaymentGateway charges customers
type PaymentGateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
	Name() string
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// SuccessRate is the probability of approval, clamped to [0,1]
	SuccessRate float64
	// DelayMs simulates processing time
	DelayMs        int
	FailureReasons []string
}

// DefaultMockGatewayConfig approves nine charges in ten
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{
		SuccessRate: 0.9,
		FailureReasons: []string{
			"insufficient_funds",
			"card_declined",
			"expired_card",
			"processing_error",
		},
	}
}

// MockGateway approves charges at random; nothing is ever captured
type MockGateway struct {
	config *MockGatewayConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	return newMockGateway(config, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func newMockGateway(config *MockGatewayConfig, rnd *rand.Rand) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	cfg := *config
	if cfg.SuccessRate < 0 {
		cfg.SuccessRate = 0
	}
	if cfg.SuccessRate > 1 {
		cfg.SuccessRate = 1
	}
	if len(cfg.FailureReasons) == 0 {
		cfg.FailureReasons = []string{"payment_failed"}
	}
	return &MockGateway{config: &cfg, rnd: rnd}
}

// Charge processes a mock payment charge
func (g *MockGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	if req.Amount < 0 {
		return nil, ErrInvalidCharge
	}

	if g.config.DelayMs > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(g.config.DelayMs) * time.Millisecond):
		}
	}

	g.mu.Lock()
	approved := g.rnd.Float64() < g.config.SuccessRate
	reason := g.config.FailureReasons[g.rnd.Intn(len(g.config.FailureReasons))]
	g.mu.Unlock()

	if !approved {
		return &ChargeResponse{FailureReason: reason}, nil
	}
	return &ChargeResponse{
		Success:       true,
		TransactionID: fmt.Sprintf("mock_txn_%s", uuid.New().String()[:8]),
	}, nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}
