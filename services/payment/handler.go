package payment

import (
	"context"
	"net/http"
	"strings"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/services/order"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type OrderLookup interface {
	Get(ctx context.Context, actor *auth.Principal, id string) (*order.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID, intentID string) error
}

type Handler struct {
	gateway        *Gateway
	orders         OrderLookup
	publishableKey string
}

type HandlerParams struct {
	fx.In
	Config  *config.Config
	Gateway *Gateway
	Orders  *order.Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{gateway: p.Gateway, orders: p.Orders, publishableKey: p.Config.Stripe.PublishableKey}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Public.GET("/checkout/config", h.config)
	r.Private.POST("/checkout/create-payment-intent", h.createPaymentIntent)
	r.Private.GET("/checkout/payment-intents/:id", h.getPaymentIntent)
}

func (h *Handler) config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publishableKey": h.publishableKey})
}

type createIntentRequest struct {
	// Amount is in major units.
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	OrderID       string         `json:"orderId"`
	CustomerEmail string         `json:"customerEmail"`
	Metadata      map[string]any `json:"metadata"`
}

func (h *Handler) createPaymentIntent(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := auth.FromContext(ctx)

	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", err))
		return
	}
	if req.Amount <= 0 {
		_ = c.Error(errutil.ValidationFailed("invalid amount", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "must be greater than zero"})))
		return
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = order.DefaultCurrency
	}
	amount := ToMinorUnits(req.Amount)

	if req.OrderID != "" {
		o, err := h.orders.Get(ctx, actor, req.OrderID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if o.CustomerID != actor.UserID {
			_ = c.Error(errutil.Forbidden("order belongs to another customer", nil))
			return
		}
		if o.Status != order.StatusPendingPayment {
			_ = c.Error(errutil.Conflict("order is not awaiting payment", nil))
			return
		}
		if amount != ToMinorUnits(o.Total) || currency != o.Currency {
			_ = c.Error(errutil.ValidationFailed("amount does not match the order total", nil,
				errutil.WithDetails(errutil.Detail{Field: "amount", Message: "expected the order total"})))
			return
		}
	}

	email := req.CustomerEmail
	if email == "" {
		email = actor.Email
	}

	intent, err := h.gateway.CreatePaymentIntent(ctx, CreateIntentInput{
		Amount:        amount,
		Currency:      currency,
		OrderID:       req.OrderID,
		CustomerID:    actor.UserID,
		CustomerEmail: email,
		Metadata:      req.Metadata,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	if req.OrderID != "" {
		// The webhook correlates by metadata, so a failed attach is not fatal.
		if err := h.orders.AttachPaymentIntent(ctx, req.OrderID, intent.PaymentIntentID); err != nil {
			logger.FromContext(ctx).Warn("failed to attach payment intent to order",
				zap.String("order_id", req.OrderID),
				zap.String("payment_intent_id", intent.PaymentIntentID),
				zap.Error(err),
			)
		}
	}

	c.JSON(http.StatusOK, intent)
}

type intentStatus struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	OrderID         string `json:"orderId,omitempty"`
}

func (h *Handler) getPaymentIntent(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := auth.FromContext(ctx)

	pi, err := h.gateway.RetrievePaymentIntent(ctx, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if pi.Metadata["customerId"] != actor.UserID && !actor.IsAdmin() {
		_ = c.Error(errutil.NotFound("payment intent not found", nil))
		return
	}

	c.JSON(http.StatusOK, intentStatus{
		PaymentIntentID: pi.ID,
		Status:          string(pi.Status),
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		OrderID:         pi.Metadata["orderId"],
	})
}
