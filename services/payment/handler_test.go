package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/mock/gomock"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"
	"delivery-marketplace/pkg/middleware"
	"delivery-marketplace/services/order"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOrders struct {
	orders   map[string]*order.Order
	attached map[string]string
}

func (f *fakeOrders) Get(_ context.Context, actor *auth.Principal, id string) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, errutil.NotFound("order not found", nil)
	}
	if o.CustomerID != actor.UserID {
		return nil, errutil.Forbidden("order belongs to someone else", nil)
	}
	return o, nil
}

func (f *fakeOrders) AttachPaymentIntent(_ context.Context, orderID, intentID string) error {
	f.attached[orderID] = intentID
	return nil
}

var customer = &auth.Principal{UserID: "cust-1", Email: "anna@example.ch", Role: auth.RoleCustomer}

func newRouter(h *Handler) *gin.Engine {
	e := gin.New()
	e.Use(middleware.Error())
	withPrincipal := func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), customer))
		c.Next()
	}
	RegisterRoutes(&httpapi.Router{Engine: e, Public: e.Group("/api"), Private: e.Group("/api", withPrincipal)}, h)
	return e
}

func post(e *gin.Engine, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/create-payment-intent", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestCreateIntentForOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := NewMockIntentClient(ctrl)
	orders := &fakeOrders{
		orders: map[string]*order.Order{
			"order-1": {ID: "order-1", CustomerID: "cust-1", Status: order.StatusPendingPayment, Total: 45.00, Currency: "chf"},
		},
		attached: map[string]string{},
	}
	e := newRouter(&Handler{gateway: NewGatewayWithClient(client), orders: orders})

	client.EXPECT().New(gomock.Any()).DoAndReturn(func(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		require.Equal(t, int64(4500), *p.Amount)
		require.Equal(t, "chf", *p.Currency)
		require.Equal(t, "order-1", p.Metadata["orderId"])
		require.Equal(t, "cust-1", p.Metadata["customerId"])
		return &stripe.PaymentIntent{ID: "pi_9", ClientSecret: "pi_9_secret"}, nil
	})

	w := post(e, map[string]any{"amount": 45.00, "currency": "CHF", "orderId": "order-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var intent Intent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &intent))
	require.Equal(t, "pi_9_secret", intent.ClientSecret)
	require.Equal(t, "pi_9", intent.PaymentIntentID)
	require.Equal(t, "pi_9", orders.attached["order-1"])
}

func TestCreateIntentRejects(t *testing.T) {
	ctrl := gomock.NewController(t)
	orders := &fakeOrders{
		orders: map[string]*order.Order{
			"order-1": {ID: "order-1", CustomerID: "cust-1", Status: order.StatusPendingPayment, Total: 45.00, Currency: "chf"},
			"order-2": {ID: "order-2", CustomerID: "cust-1", Status: order.StatusConfirmed, Total: 45.00, Currency: "chf"},
			"order-3": {ID: "order-3", CustomerID: "cust-9", Status: order.StatusPendingPayment, Total: 45.00, Currency: "chf"},
		},
		attached: map[string]string{},
	}
	// No call reaches the processor.
	e := newRouter(&Handler{gateway: NewGatewayWithClient(NewMockIntentClient(ctrl)), orders: orders})

	require.Equal(t, http.StatusBadRequest, post(e, map[string]any{"amount": 0}).Code)
	require.Equal(t, http.StatusBadRequest, post(e, map[string]any{"amount": -5, "currency": "chf"}).Code)
	require.Equal(t, http.StatusBadRequest, post(e, "not an object").Code)
	require.Equal(t, http.StatusBadRequest, post(e, map[string]any{"amount": 40.00, "orderId": "order-1"}).Code)
	require.Equal(t, http.StatusConflict, post(e, map[string]any{"amount": 45.00, "orderId": "order-2"}).Code)
	require.Equal(t, http.StatusForbidden, post(e, map[string]any{"amount": 45.00, "orderId": "order-3"}).Code)
	require.Equal(t, http.StatusNotFound, post(e, map[string]any{"amount": 45.00, "orderId": "order-x"}).Code)
}

func TestCreateIntentProcessorFailureIs502(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := NewMockIntentClient(ctrl)
	e := newRouter(&Handler{gateway: NewGatewayWithClient(client), orders: &fakeOrders{attached: map[string]string{}}})

	client.EXPECT().New(gomock.Any()).Return(nil, &stripe.Error{Msg: "api_key_expired sk_live_123"})

	w := post(e, map[string]any{"amount": 12.50, "currency": "chf"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.NotContains(t, w.Body.String(), "sk_live_123")
}

func TestMetadataOrderIDIsNotTrusted(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := NewMockIntentClient(ctrl)
	orders := &fakeOrders{attached: map[string]string{}}
	e := newRouter(&Handler{gateway: NewGatewayWithClient(client), orders: orders})

	client.EXPECT().New(gomock.Any()).DoAndReturn(func(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		require.Equal(t, int64(50), *p.Amount)
		require.NotContains(t, p.Metadata, "orderId")
		return &stripe.PaymentIntent{ID: "pi_5", ClientSecret: "pi_5_secret"}, nil
	})

	w := post(e, map[string]any{"amount": 0.5, "metadata": map[string]any{"orderId": "order-1"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, orders.attached)
}

func TestCheckoutConfig(t *testing.T) {
	e := newRouter(&Handler{publishableKey: "pk_test_123"})
	req := httptest.NewRequest(http.MethodGet, "/api/checkout/config", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"publishableKey":"pk_test_123"}`, w.Body.String())
}
