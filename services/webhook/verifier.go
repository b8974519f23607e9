package webhook

import (
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/errutil"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// Verifier authenticates processor callbacks against the shared signing
// secret. There is no unsigned path.
type Verifier struct {
	secret string
}

func NewVerifier(cfg *config.Config) *Verifier {
	if cfg.Stripe.WebhookSecret == "" {
		zap.L().Warn("[Stripe] STRIPE_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}
	return &Verifier{secret: cfg.Stripe.WebhookSecret}
}

func (v *Verifier) Verify(payload []byte, header string) (stripe.Event, error) {
	if v.secret == "" {
		return stripe.Event{}, errutil.ConfigError("webhook signing secret is not configured", nil)
	}

	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, errutil.SignatureError("invalid webhook signature", err)
	}
	return event, nil
}

func IsTestModeEvent(e stripe.Event) bool {
	return !e.Livemode
}
