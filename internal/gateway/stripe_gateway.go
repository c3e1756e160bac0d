package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// DefaultStripePaymentMethod is Stripe's always-approving test card
const DefaultStripePaymentMethod = "pm_card_visa"

// StripeGatewayConfig holds configuration for Stripe gateway
type StripeGatewayConfig struct {
	SecretKey string
	// PaymentMethod is attached to every intent; the storefront collects no card details
	PaymentMethod string
	// APIURL replaces https://api.stripe.com
	APIURL     string
	HTTPClient *http.Client
}

// StripeGateway charges through confirmed PaymentIntents
type StripeGateway struct {
	api           *client.API
	paymentMethod string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil || config.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}

	bc := &stripe.BackendConfig{
		HTTPClient:        config.HTTPClient,
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(1),
	}
	if config.APIURL != "" {
		bc.URL = stripe.String(strings.TrimRight(config.APIURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, bc)

	api := &client.API{}
	api.Init(config.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	pm := config.PaymentMethod
	if pm == "" {
		pm = DefaultStripePaymentMethod
	}
	return &StripeGateway{api: api, paymentMethod: pm}, nil
}

// Charge creates and confirms a PaymentIntent. Card declines are a failed
// ChargeResponse; anything else Stripe rejects is an error.
func (g *StripeGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	if req.Amount < 0 {
		return nil, ErrInvalidCharge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cents := int64(math.Round(req.Amount * 100))
	if cents == 0 {
		return &ChargeResponse{Success: true}, nil
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(cents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(g.paymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("user_id", req.UserID)
	params.SetIdempotencyKey("order-" + req.OrderID)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			reason := string(serr.DeclineCode)
			if reason == "" {
				reason = string(serr.Code)
			}
			return &ChargeResponse{FailureReason: reason}, nil
		}
		return nil, fmt.Errorf("stripe: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &ChargeResponse{TransactionID: pi.ID, FailureReason: string(pi.Status)}, nil
	}
	return &ChargeResponse{Success: true, TransactionID: pi.ID}, nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

// GatewayType names a PaymentGateway implementation
type GatewayType string

const (
	GatewayTypeMock   GatewayType = "mock"
	GatewayTypeStripe GatewayType = "stripe"
)

// NewPaymentGateway builds the gateway named by gatewayType
func NewPaymentGateway(gatewayType string, mock *MockGatewayConfig, stripeCfg *StripeGatewayConfig) (PaymentGateway, error) {
	switch GatewayType(strings.ToLower(gatewayType)) {
	case GatewayTypeMock, "":
		return NewMockGateway(mock), nil
	case GatewayTypeStripe:
		return NewStripeGateway(stripeCfg)
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", gatewayType)
	}
}
