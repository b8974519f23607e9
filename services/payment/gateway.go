package payment

//go:generate mockgen -source=gateway.go -destination=mock_intent_client_test.go -package=payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/services/order"

	"github.com/spf13/cast"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"
)

// IntentClient is the part of the Stripe payment intent API the gateway uses.
// *paymentintent.Client satisfies it.
type IntentClient interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type CreateIntentInput struct {
	// Amount is in the currency's minor unit.
	Amount        int64
	Currency      string
	OrderID       string
	CustomerID    string
	CustomerEmail string
	Metadata      map[string]any
}

type Intent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

var reservedMetadata = map[string]bool{
	"orderId":    true,
	"customerId": true,
}

type Gateway struct {
	client IntentClient
}

func NewGateway(cfg *config.Config) *Gateway {
	if cfg.Stripe.SecretKey == "" {
		zap.L().Warn("[Stripe] STRIPE_SECRET_KEY not set, payment intents are disabled")
		return &Gateway{}
	}
	return &Gateway{client: &paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: cfg.Stripe.SecretKey,
	}}
}

func NewGatewayWithClient(client IntentClient) *Gateway {
	return &Gateway{client: client}
}

// ToMinorUnits converts a major unit amount to minor units by rounding.
func ToMinorUnits(amount float64) int64 {
	return order.MinorUnits(amount)
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	if in.Amount <= 0 {
		return nil, errutil.ValidationFailed("invalid amount", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "must be greater than zero"}))
	}
	if g.client == nil {
		return nil, errutil.ConfigError("payment processor is not configured", nil)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx

	for k, v := range in.Metadata {
		// The webhook trusts these two, so only the server sets them.
		if reservedMetadata[k] {
			continue
		}
		params.AddMetadata(k, cast.ToString(v))
	}
	if in.OrderID != "" {
		params.AddMetadata("orderId", in.OrderID)
	}
	if in.CustomerID != "" {
		params.AddMetadata("customerId", in.CustomerID)
	}
	if in.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(in.CustomerEmail)
	}

	log := logger.FromContext(ctx).With(zap.String("order_id", in.OrderID), zap.Int64("amount", in.Amount))

	pi, err := g.client.New(params)
	if err != nil {
		metrics.PaymentIntentsTotal.WithLabelValues("error").Inc()
		log.Error("failed to create payment intent", zap.Error(err))
		return nil, errutil.GatewayError("payment processor error", err)
	}
	if pi == nil || pi.ClientSecret == "" {
		metrics.PaymentIntentsTotal.WithLabelValues("error").Inc()
		log.Error("payment intent has no client secret")
		return nil, errutil.GatewayError("payment processor returned no client secret", nil)
	}

	metrics.PaymentIntentsTotal.WithLabelValues("created").Inc()
	log.Info("payment intent created", zap.String("payment_intent_id", pi.ID))

	return &Intent{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID}, nil
}

func (g *Gateway) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errutil.ValidationFailed("payment intent id is required", nil)
	}
	if g.client == nil {
		return nil, errutil.ConfigError("payment processor is not configured", nil)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.client.Get(id, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, errutil.NotFound("payment intent not found", err)
		}
		return nil, errutil.GatewayError("payment processor error", err)
	}
	return pi, nil
}
