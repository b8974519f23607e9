package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/services/order"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxBodyBytes = int64(65536)

var eventMapping = map[stripe.EventType]order.Event{
	stripe.EventTypePaymentIntentSucceeded:     order.EventPaymentSucceeded,
	stripe.EventTypePaymentIntentPaymentFailed: order.EventPaymentFailed,
	stripe.EventTypePaymentIntentCanceled:      order.EventPaymentFailed,
}

type OrderTransitioner interface {
	Apply(ctx context.Context, actor *auth.Principal, orderID string, cmd order.Command) (*order.Result, error)
}

type Handler struct {
	verifier         *Verifier
	orders           OrderTransitioner
	acceptTestEvents bool
}

type HandlerParams struct {
	fx.In
	Config   *config.Config
	Verifier *Verifier
	Orders   *order.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		verifier:         p.Verifier,
		orders:           p.Orders,
		acceptTestEvents: p.Config.Stripe.AcceptTestEvents,
	}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Engine.POST("/api/webhooks/stripe", h.receive)
}

func ack(c *gin.Context, outcome string) {
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}

func (h *Handler) receive(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		_ = c.Error(errutil.ValidationFailed("unreadable webhook body", err))
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		log.Warn("webhook verification failed", zap.Error(err))
		_ = c.Error(err)
		return
	}

	eventType := string(event.Type)
	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", eventType))

	if IsTestModeEvent(event) && !h.acceptTestEvents {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "test_mode").Inc()
		log.Info("skipping test mode webhook event")
		ack(c, "test_mode")
		return
	}

	orderEvent, ok := eventMapping[event.Type]
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "unhandled").Inc()
		ack(c, "unhandled")
		return
	}

	var pi stripe.PaymentIntent
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &pi) != nil {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "malformed").Inc()
		log.Warn("webhook event has no payment intent object")
		ack(c, "malformed")
		return
	}

	orderID := pi.Metadata["orderId"]
	if orderID == "" {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		log.Info("payment intent without order reference", zap.String("payment_intent_id", pi.ID))
		ack(c, "ignored")
		return
	}
	log = log.With(zap.String("order_id", orderID), zap.String("payment_intent_id", pi.ID))

	cmd := order.Command{
		Event:           orderEvent,
		PaymentIntentID: pi.ID,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
	}
	if orderEvent == order.EventPaymentFailed && pi.LastPaymentError != nil {
		cmd.Reason = pi.LastPaymentError.Msg
	}

	res, err := h.orders.Apply(ctx, auth.System, orderID, cmd)
	if err != nil {
		// Redelivery cannot fix a missing order or an illegal transition.
		if errutil.StatusOf(err).HTTPStatus() < http.StatusInternalServerError {
			metrics.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
			log.Warn("webhook event not applied", zap.Error(err))
			ack(c, "ignored")
			return
		}
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "error").Inc()
		log.Error("failed to apply webhook event", zap.Error(err))
		_ = c.Error(err)
		return
	}

	if !res.Applied {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "duplicate").Inc()
		ack(c, "duplicate")
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(eventType, "applied").Inc()
	log.Info("webhook event applied", zap.String("status", string(res.Order.Status)))
	ack(c, "applied")
}
