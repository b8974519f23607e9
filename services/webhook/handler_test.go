package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"
	"delivery-marketplace/pkg/middleware"
	"delivery-marketplace/pkg/sequence"
	"delivery-marketplace/services/activity"
	"delivery-marketplace/services/address"
	"delivery-marketplace/services/approval"
	"delivery-marketplace/services/driver"
	"delivery-marketplace/services/loyalty"
	"delivery-marketplace/services/notification"
	"delivery-marketplace/services/order"
	"delivery-marketplace/services/restaurant"
	"delivery-marketplace/services/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	db     *gorm.DB
	engine *gin.Engine
	order  *order.Order
}

func newHarness(t *testing.T, acceptTestEvents bool) *harness {
	t.Helper()

	db := testutil.NewTestDB(t,
		&order.Order{}, &order.OrderItem{},
		&restaurant.Restaurant{}, &restaurant.MenuItem{},
		&driver.Driver{},
		&activity.ActivityLog{}, &notification.Notification{},
		&loyalty.LoyaltyPoints{}, &loyalty.Transaction{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{FrontendURL: "https://eat.example.ch"}
	cfg.Stripe.WebhookSecret = testSecret
	cfg.Stripe.AcceptTestEvents = acceptTestEvents

	activities := activity.NewService(activity.ServiceParams{DB: db, Node: node})
	notifier := notification.NewService(notification.ServiceParams{DB: db})
	orders := order.NewService(order.ServiceParams{
		DB:          db,
		Config:      cfg,
		Sequence:    sequence.NewGenerator(sequence.Params{}),
		Addresses:   address.NewValidator(),
		Restaurants: restaurant.NewService(restaurant.ServiceParams{DB: db, Activity: activities, Notifier: notifier}),
		Drivers:     driver.NewService(driver.ServiceParams{DB: db, Activity: activities, Notifier: notifier}),
		Activity:    activities,
		Notifier:    notifier,
		Loyalty:     loyalty.NewService(loyalty.ServiceParams{DB: db, Node: node, Config: cfg}),
	})

	r := &restaurant.Restaurant{ID: uuid.NewString(), OwnerID: "owner-1", Name: "Zum Goldenen Hirschen", Status: approval.StatusActive}
	require.NoError(t, db.Create(r).Error)

	o := &order.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "ORD-TEST-1",
		CustomerID:    uuid.NewString(),
		RestaurantID:  r.ID,
		Status:        order.StatusPendingPayment,
		Subtotal:      40.00,
		DeliveryFee:   5.00,
		Total:         45.00,
		Currency:      "chf",
		PaymentStatus: order.PaymentPending,
	}
	require.NoError(t, db.Create(o).Error)

	e := gin.New()
	e.Use(middleware.Error())
	RegisterRoutes(&httpapi.Router{Engine: e}, &Handler{
		verifier:         NewVerifier(cfg),
		orders:           orders,
		acceptTestEvents: acceptTestEvents,
	})

	return &harness{db: db, engine: e, order: o}
}

func paymentEvent(eventType, orderID string, livemode bool) []byte {
	return intentEvent(eventType, orderID, "pi_e2e", 4500, livemode)
}

func intentEvent(eventType, orderID, intentID string, amount int64, livemode bool) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_%s",
  "object": "event",
  "type": %q,
  "livemode": %t,
  "data": {"object": {"id": %q, "object": "payment_intent", "amount": %d, "currency": "chf", "metadata": {"orderId": %q}}}
}`, uuid.NewString()[:8], eventType, livemode, intentID, amount, orderID))
}

func (h *harness) deliver(payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *harness) reload(t *testing.T) *order.Order {
	t.Helper()
	var o order.Order
	require.NoError(t, h.db.First(&o, "id = ?", h.order.ID).Error)
	return &o
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func TestSucceededEventConfirmsOrder(t *testing.T) {
	h := newHarness(t, false)
	payload := paymentEvent("payment_intent.succeeded", h.order.ID, true)

	w := h.deliver(payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"applied"`)

	o := h.reload(t)
	require.Equal(t, order.StatusConfirmed, o.Status)
	require.Equal(t, order.PaymentPaid, o.PaymentStatus)
	require.NotNil(t, o.PaymentIntentID)
	require.Equal(t, "pi_e2e", *o.PaymentIntentID)

	var txns []loyalty.Transaction
	require.NoError(t, h.db.Where("customer_id = ?", o.CustomerID).Find(&txns).Error)
	require.Len(t, txns, 1)
	require.Equal(t, int64(45), txns[0].Points)
	require.Equal(t, loyalty.Earned, txns[0].Type)
}

func TestRedeliveredEventHasOneSetOfSideEffects(t *testing.T) {
	h := newHarness(t, false)
	payload := paymentEvent("payment_intent.succeeded", h.order.ID, true)
	header := sign(payload, testSecret)

	require.Equal(t, http.StatusOK, h.deliver(payload, header).Code)
	w := h.deliver(payload, header)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"duplicate"`)

	require.Equal(t, order.StatusConfirmed, h.reload(t).Status)
	require.Equal(t, int64(1), h.count(t, &activity.ActivityLog{}))
	require.Equal(t, int64(1), h.count(t, &notification.Notification{}))
	require.Equal(t, int64(1), h.count(t, &loyalty.Transaction{}))
}

func TestFailedAndCanceledEventsCancelOrder(t *testing.T) {
	for _, eventType := range []string{"payment_intent.payment_failed", "payment_intent.canceled"} {
		t.Run(eventType, func(t *testing.T) {
			h := newHarness(t, false)
			payload := paymentEvent(eventType, h.order.ID, true)

			require.Equal(t, http.StatusOK, h.deliver(payload, sign(payload, testSecret)).Code)

			o := h.reload(t)
			require.Equal(t, order.StatusCancelled, o.Status)
			require.Equal(t, order.PaymentFailed, o.PaymentStatus)
			require.Equal(t, int64(0), h.count(t, &loyalty.Transaction{}))
		})
	}
}

func TestTamperedDeliveryIsRejected(t *testing.T) {
	h := newHarness(t, false)
	payload := paymentEvent("payment_intent.succeeded", h.order.ID, true)
	header := sign(payload, testSecret)

	tampered := bytes.Replace(payload, []byte(`"amount": 4500`), []byte(`"amount": 1`), 1)
	w := h.deliver(tampered, header)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), string(errutil.StatusSignatureInvalid))

	require.Equal(t, order.StatusPendingPayment, h.reload(t).Status)
	require.Equal(t, int64(0), h.count(t, &activity.ActivityLog{}))
}

func TestEventsThatAreAcknowledgedWithoutChanges(t *testing.T) {
	h := newHarness(t, false)

	cases := map[string][]byte{
		"test_mode": paymentEvent("payment_intent.succeeded", h.order.ID, false),
		"ignored":   paymentEvent("payment_intent.succeeded", "", true),
		"unhandled": paymentEvent("charge.refunded", h.order.ID, true),
	}
	for outcome, payload := range cases {
		w := h.deliver(payload, sign(payload, testSecret))
		require.Equal(t, http.StatusOK, w.Code, outcome)
		require.Contains(t, w.Body.String(), `"`+outcome+`"`)
	}

	unknown := paymentEvent("payment_intent.succeeded", uuid.NewString(), true)
	w := h.deliver(unknown, sign(unknown, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"ignored"`)

	require.Equal(t, order.StatusPendingPayment, h.reload(t).Status)
}

func TestTestModeEventsAppliedWhenAccepted(t *testing.T) {
	h := newHarness(t, true)
	payload := paymentEvent("payment_intent.succeeded", h.order.ID, false)

	require.Equal(t, http.StatusOK, h.deliver(payload, sign(payload, testSecret)).Code)
	require.Equal(t, order.StatusConfirmed, h.reload(t).Status)
}

func TestLateSuccessForCancelledOrderIsIgnored(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.db.Model(&order.Order{}).Where("id = ?", h.order.ID).Update("status", order.StatusCancelled).Error)

	payload := paymentEvent("payment_intent.succeeded", h.order.ID, true)
	w := h.deliver(payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"ignored"`)
	require.Equal(t, order.StatusCancelled, h.reload(t).Status)
}

func TestUnderpaidIntentDoesNotConfirmOrder(t *testing.T) {
	h := newHarness(t, false)
	payload := intentEvent("payment_intent.succeeded", h.order.ID, "pi_cheap", 50, true)

	w := h.deliver(payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"ignored"`)

	o := h.reload(t)
	require.Equal(t, order.StatusPendingPayment, o.Status)
	require.Equal(t, order.PaymentPending, o.PaymentStatus)
	require.Equal(t, int64(0), h.count(t, &loyalty.Transaction{}))
	require.Equal(t, int64(0), h.count(t, &notification.Notification{}))
}

func TestEventForForeignIntentIsIgnored(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.db.Model(&order.Order{}).Where("id = ?", h.order.ID).Update("payment_intent_id", "pi_attached").Error)

	payload := intentEvent("payment_intent.succeeded", h.order.ID, "pi_other", 4500, true)
	w := h.deliver(payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"ignored"`)
	require.Equal(t, order.StatusPendingPayment, h.reload(t).Status)

	payload = intentEvent("payment_intent.succeeded", h.order.ID, "pi_attached", 4500, true)
	w = h.deliver(payload, sign(payload, testSecret))
	require.Contains(t, w.Body.String(), `"applied"`)
	require.Equal(t, order.StatusConfirmed, h.reload(t).Status)
}

type failingOrders struct{}

func (failingOrders) Apply(context.Context, *auth.Principal, string, order.Command) (*order.Result, error) {
	return nil, errutil.DatabaseError("failed to update order status", nil)
}

func TestPrimaryWriteFailureAsksForRedelivery(t *testing.T) {
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = testSecret

	e := gin.New()
	e.Use(middleware.Error())
	RegisterRoutes(&httpapi.Router{Engine: e}, &Handler{verifier: NewVerifier(cfg), orders: failingOrders{}})

	payload := paymentEvent("payment_intent.succeeded", "order-1", true)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", sign(payload, testSecret))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
