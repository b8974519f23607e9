package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/db/pagination"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/repository"
	"delivery-marketplace/services/activity"
	"delivery-marketplace/services/address"
	"delivery-marketplace/services/approval"
	"delivery-marketplace/services/driver"
	"delivery-marketplace/services/loyalty"
	"delivery-marketplace/services/notification"
	"delivery-marketplace/services/restaurant"
	"delivery-marketplace/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeActivity struct {
	entries []activity.Entry
	err     error
}

func (f *fakeActivity) Record(_ context.Context, e activity.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

type fakeNotifier struct {
	messages []notification.Message
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, m notification.Message) (*notification.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.messages = append(f.messages, m)
	return &notification.Notification{UserID: m.UserID}, nil
}

type fakeLoyalty struct {
	awards    []loyalty.AwardRequest
	reversals []string
}

func (f *fakeLoyalty) ScheduleAward(_ context.Context, req loyalty.AwardRequest) error {
	f.awards = append(f.awards, req)
	return nil
}

func (f *fakeLoyalty) ReverseForOrder(_ context.Context, _, orderID string) (*loyalty.Transaction, error) {
	f.reversals = append(f.reversals, orderID)
	return nil, nil
}

type fakeRestaurants struct {
	restaurants map[string]*restaurant.Restaurant
	menu        map[string]*restaurant.MenuItem
}

func (f *fakeRestaurants) Get(_ context.Context, id string) (*restaurant.Restaurant, error) {
	r, ok := f.restaurants[id]
	if !ok {
		return nil, errutil.NotFound("restaurant not found", nil)
	}
	return r, nil
}

func (f *fakeRestaurants) MenuItems(_ context.Context, restaurantID string, ids []string) (map[string]*restaurant.MenuItem, error) {
	out := map[string]*restaurant.MenuItem{}
	for _, id := range ids {
		if m, ok := f.menu[id]; ok && m.RestaurantID == restaurantID {
			out[id] = m
		}
	}
	return out, nil
}

type fakeDrivers map[string]*driver.Driver

func (f fakeDrivers) GetByUserID(_ context.Context, userID string) (*driver.Driver, error) {
	d, ok := f[userID]
	if !ok {
		return nil, errutil.NotFound("driver profile not found", nil)
	}
	return d, nil
}

type fixedSequence struct{ n int }

func (s *fixedSequence) NextOrderNumber(context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("ORD-261014-%06d", s.n), nil
}

var (
	customer   = &auth.Principal{UserID: "cust-1", Email: "anna@example.ch", Role: auth.RoleCustomer}
	stranger   = &auth.Principal{UserID: "cust-2", Role: auth.RoleCustomer}
	owner      = &auth.Principal{UserID: "owner-1", Role: auth.RoleRestaurantOwner}
	otherOwner = &auth.Principal{UserID: "owner-2", Role: auth.RoleRestaurantOwner}
	courier    = &auth.Principal{UserID: "driver-user-1", Role: auth.RoleDriver}
	rival      = &auth.Principal{UserID: "driver-user-2", Role: auth.RoleDriver}
	admin      = &auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin}
)

const (
	restaurantID = "rest-1"
	pizzaID      = "item-pizza"
	colaID       = "item-cola"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	activity *fakeActivity
	notifier *fakeNotifier
	loyalty  *fakeLoyalty
	rests    *fakeRestaurants
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t, &Order{}, &OrderItem{})
	f := &fixture{
		db:       db,
		activity: &fakeActivity{},
		notifier: &fakeNotifier{},
		loyalty:  &fakeLoyalty{},
		rests: &fakeRestaurants{
			restaurants: map[string]*restaurant.Restaurant{
				restaurantID: {ID: restaurantID, OwnerID: owner.UserID, Name: "Pizzeria Napoli", Status: approval.StatusActive},
				"rest-closed": {ID: "rest-closed", OwnerID: owner.UserID, Name: "Closed", Status: approval.StatusSuspended},
			},
			menu: map[string]*restaurant.MenuItem{
				pizzaID: {ID: pizzaID, RestaurantID: restaurantID, Name: "Margherita", Price: 18.50, Available: true},
				colaID:  {ID: colaID, RestaurantID: restaurantID, Name: "Cola", Price: 4.00, Available: true},
				"gone":  {ID: "gone", RestaurantID: restaurantID, Name: "Calzone", Price: 21, Available: false},
			},
		},
	}
	f.svc = &Service{
		orders:      repository.ProvideStore[Order](db),
		frontendURL: "https://app.example.ch",
		sequence:    &fixedSequence{},
		addresses:   address.NewValidator(),
		restaurants: f.rests,
		drivers: fakeDrivers{
			courier.UserID: {ID: "drv-1", UserID: courier.UserID, Status: approval.StatusActive},
			rival.UserID:   {ID: "drv-2", UserID: rival.UserID, Status: approval.StatusActive},
		},
		activity: f.activity,
		notifier: f.notifier,
		loyalty:  f.loyalty,
	}
	return f
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		RestaurantID: restaurantID,
		Items: []CheckoutItem{
			{MenuItemID: pizzaID, Quantity: 2},
			{MenuItemID: colaID, Quantity: 1},
		},
		Address: DeliveryAddress{PostalCode: "8004", City: "Zurich", Street: "Langstrasse 10"},
	}
}

func (f *fixture) checkout(t *testing.T) *Order {
	o, err := f.svc.Checkout(context.Background(), customer, checkoutRequest(), "10.0.0.1")
	require.NoError(t, err)
	return o
}

// settled is the command a processor success for the full order total carries.
func (f *fixture) settled(t *testing.T, id string) Command {
	var o Order
	require.NoError(t, f.db.First(&o, "id = ?", id).Error)
	return Command{Event: EventPaymentSucceeded, PaymentIntentID: "pi_test", Amount: MinorUnits(o.Total), Currency: o.Currency}
}

func (f *fixture) apply(t *testing.T, actor *auth.Principal, id string, event Event) *Result {
	cmd := Command{Event: event}
	if event == EventPaymentSucceeded {
		cmd = f.settled(t, id)
	}
	res, err := f.svc.Apply(context.Background(), actor, id, cmd)
	require.NoError(t, err)
	return res
}

func TestCheckoutPricesFromMenu(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)

	require.Equal(t, StatusPendingPayment, o.Status)
	require.Equal(t, PaymentPending, o.PaymentStatus)
	require.Equal(t, 41.00, o.Subtotal)
	require.Equal(t, 5.00, o.DeliveryFee)
	require.Equal(t, 46.00, o.Total)
	require.Equal(t, "chf", o.Currency)
	require.Equal(t, "Zürich", o.City)
	require.Nil(t, o.DriverID)
	require.Equal(t, "ORD-261014-000001", o.OrderNumber)

	stored, err := f.svc.Get(context.Background(), customer, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)

	require.Len(t, f.activity.entries, 1)
	require.Equal(t, "order.created", f.activity.entries[0].Action)
}

func TestCheckoutRejectsAddressOutsideZones(t *testing.T) {
	f := newFixture(t)
	req := checkoutRequest()
	req.Address = DeliveryAddress{PostalCode: "7000", City: "Chur", Street: "Bahnhofstrasse 1"}

	_, err := f.svc.Checkout(context.Background(), customer, req, "")
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Greater(t, len(be.Details), 1)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := checkoutRequest()
	req.Items = nil
	_, err := f.svc.Checkout(ctx, customer, req, "")
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	req = checkoutRequest()
	req.Items[0].Quantity = 0
	_, err = f.svc.Checkout(ctx, customer, req, "")
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	req = checkoutRequest()
	req.Items = append(req.Items, CheckoutItem{MenuItemID: "gone", Quantity: 1})
	_, err = f.svc.Checkout(ctx, customer, req, "")
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	req = checkoutRequest()
	req.RestaurantID = "rest-closed"
	_, err = f.svc.Checkout(ctx, customer, req, "")
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	req = checkoutRequest()
	past := time.Now().Add(-time.Hour)
	req.ScheduledDeliveryAt = &past
	_, err = f.svc.Checkout(ctx, customer, req, "")
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))
}

func TestPaymentSucceededIsIdempotent(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)
	f.activity.entries = nil

	res := f.apply(t, auth.System, o.ID, EventPaymentSucceeded)
	require.True(t, res.Applied)
	require.Equal(t, StatusConfirmed, res.Order.Status)
	require.Equal(t, PaymentPaid, res.Order.PaymentStatus)

	again := f.apply(t, auth.System, o.ID, EventPaymentSucceeded)
	require.False(t, again.Applied)
	require.Equal(t, StatusConfirmed, again.Order.Status)

	require.Len(t, f.activity.entries, 1)
	require.Empty(t, f.activity.entries[0].UserID)
	require.Equal(t, StatusPendingPayment, f.activity.entries[0].Details["previous_status"])
	require.Equal(t, StatusConfirmed, f.activity.entries[0].Details["new_status"])

	require.Len(t, f.notifier.messages, 1)
	require.Equal(t, owner.UserID, f.notifier.messages[0].UserID)
	require.Equal(t, "https://app.example.ch/orders/"+o.ID, f.notifier.messages[0].Data["link"])

	require.Len(t, f.loyalty.awards, 1)
	require.Equal(t, 46.00, f.loyalty.awards[0].Total)
}

func TestPaymentSucceededRequiresFullAmount(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)
	ctx := context.Background()

	short := f.settled(t, o.ID)
	short.Amount = 50
	_, err := f.svc.Apply(ctx, auth.System, o.ID, short)
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	euro := f.settled(t, o.ID)
	euro.Currency = "eur"
	_, err = f.svc.Apply(ctx, auth.System, o.ID, euro)
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	anonymous := f.settled(t, o.ID)
	anonymous.PaymentIntentID = ""
	_, err = f.svc.Apply(ctx, auth.System, o.ID, anonymous)
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))

	stored, err := f.svc.Get(ctx, customer, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingPayment, stored.Status)
	require.Equal(t, PaymentPending, stored.PaymentStatus)
	require.Empty(t, f.loyalty.awards)
	require.Empty(t, f.notifier.messages)
}

func TestPaymentEventForAnotherIntentIsRejected(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)
	ctx := context.Background()
	require.NoError(t, f.svc.AttachPaymentIntent(ctx, o.ID, "pi_attached"))

	other := f.settled(t, o.ID)
	other.PaymentIntentID = "pi_other"
	_, err := f.svc.Apply(ctx, auth.System, o.ID, other)
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	_, err = f.svc.Apply(ctx, auth.System, o.ID, Command{Event: EventPaymentFailed, PaymentIntentID: "pi_other"})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	ok := f.settled(t, o.ID)
	ok.PaymentIntentID = "pi_attached"
	res, err := f.svc.Apply(ctx, auth.System, o.ID, ok)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, StatusConfirmed, res.Order.Status)
}

func TestPaymentFailedCancels(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)

	res := f.apply(t, auth.System, o.ID, EventPaymentFailed)
	require.Equal(t, StatusCancelled, res.Order.Status)
	require.Equal(t, PaymentFailed, res.Order.PaymentStatus)
	require.Equal(t, customer.UserID, f.notifier.messages[0].UserID)
	require.Empty(t, f.loyalty.reversals)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)

	f.apply(t, auth.System, o.ID, EventPaymentSucceeded)
	f.apply(t, owner, o.ID, EventAccept)
	f.apply(t, owner, o.ID, EventMarkReady)

	// Waiting orders are visible to any driver.
	_, err := f.svc.Get(context.Background(), rival, o.ID)
	require.NoError(t, err)

	res := f.apply(t, courier, o.ID, EventPickUp)
	require.Equal(t, StatusOutForDelivery, res.Order.Status)
	require.NotNil(t, res.Order.DriverID)
	require.Equal(t, "drv-1", *res.Order.DriverID)

	_, err = f.svc.Apply(context.Background(), rival, o.ID, Command{Event: EventDeliver})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))
	_, err = f.svc.Get(context.Background(), rival, o.ID)
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	res = f.apply(t, courier, o.ID, EventDeliver)
	require.Equal(t, StatusDelivered, res.Order.Status)
	require.NotNil(t, res.Order.DeliveredAt)

	// checkout + five transitions
	require.Len(t, f.activity.entries, 6)
	require.Len(t, f.notifier.messages, 5)
}

func TestOwnershipIsEnforced(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)
	f.apply(t, auth.System, o.ID, EventPaymentSucceeded)
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, otherOwner, o.ID, Command{Event: EventAccept})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	_, err = f.svc.Apply(ctx, stranger, o.ID, Command{Event: EventCancel})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	_, err = f.svc.Get(ctx, stranger, o.ID)
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	_, err = f.svc.Apply(ctx, customer, o.ID, Command{Event: EventAccept})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))

	_, err = f.svc.Apply(ctx, admin, uuid.NewString(), Command{Event: EventAccept})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestIllegalTransitionConflicts(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)

	_, err := f.svc.Apply(context.Background(), owner, o.ID, Command{Event: EventMarkReady})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	stored, err := f.svc.Get(context.Background(), admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingPayment, stored.Status)
}

func TestCancelAfterPaymentReversesLoyalty(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)
	f.apply(t, auth.System, o.ID, EventPaymentSucceeded)

	res, err := f.svc.Apply(context.Background(), customer, o.ID, Command{Event: EventCancel, Reason: "changed my mind"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, res.Order.Status)
	require.Equal(t, "changed my mind", res.Order.CancelReason)
	require.Equal(t, []string{o.ID}, f.loyalty.reversals)

	last := f.notifier.messages[len(f.notifier.messages)-1]
	require.Equal(t, owner.UserID, last.UserID)
}

func TestSideEffectFailuresDoNotRollBack(t *testing.T) {
	f := newFixture(t)
	o := f.checkout(t)
	f.activity.err = errors.New("activity insert failed")
	f.notifier.err = errors.New("notification insert failed")

	res := f.apply(t, auth.System, o.ID, EventPaymentSucceeded)
	require.Equal(t, StatusConfirmed, res.Order.Status)

	stored, err := f.svc.Get(context.Background(), admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, stored.Status)
}

func TestListForCustomerPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 41; i++ {
		require.NoError(t, f.db.Create(&Order{
			ID:            uuid.NewString(),
			OrderNumber:   fmt.Sprintf("ORD-%02d", i),
			CustomerID:    customer.UserID,
			RestaurantID:  restaurantID,
			Status:        StatusDelivered,
			Currency:      DefaultCurrency,
			PaymentStatus: PaymentPaid,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, f.db.Create(&Order{
		ID: uuid.NewString(), OrderNumber: "ORD-OTHER", CustomerID: stranger.UserID, RestaurantID: restaurantID,
		Status: StatusDelivered, Currency: DefaultCurrency, PaymentStatus: PaymentPaid,
	}).Error)

	page, err := f.svc.ListForCustomer(ctx, customer, customer.UserID, pagination.Pagination{Page: 2, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Data, 20)
	// Newest first: record 21 is ORD-21 counting down from ORD-41.
	require.Equal(t, "ORD-21", page.Data[0].OrderNumber)
	require.Equal(t, "ORD-02", page.Data[19].OrderNumber)
	require.Equal(t, int64(41), page.Page.Total)
	require.True(t, page.Page.HasMore)

	page, err = f.svc.ListForCustomer(ctx, customer, customer.UserID, pagination.Pagination{Page: 3, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.False(t, page.Page.HasMore)

	page, err = f.svc.ListForCustomer(ctx, admin, customer.UserID, pagination.Pagination{Page: 1, Limit: 500})
	require.NoError(t, err)
	require.Equal(t, pagination.MaxLimit, page.Page.Limit)

	_, err = f.svc.ListForCustomer(ctx, stranger, customer.UserID, pagination.Pagination{})
	require.True(t, errutil.Is(err, errutil.StatusForbidden))
}

func TestListHasMoreFalseOnExactBoundary(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 40; i++ {
		require.NoError(t, f.db.Create(&Order{
			ID: uuid.NewString(), OrderNumber: fmt.Sprintf("ORD-%02d", i), CustomerID: customer.UserID, RestaurantID: restaurantID,
			Status: StatusDelivered, Currency: DefaultCurrency, PaymentStatus: PaymentPaid,
		}).Error)
	}

	page, err := f.svc.ListForCustomer(context.Background(), customer, customer.UserID, pagination.Pagination{Page: 2, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Data, 20)
	require.False(t, page.Page.HasMore)
}

func TestAttachPaymentIntentAndEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.checkout(t)

	require.NoError(t, f.svc.AttachPaymentIntent(ctx, o.ID, "pi_123"))

	ok, err := f.svc.EligibleForAward(ctx, o.ID)
	require.NoError(t, err)
	require.False(t, ok)

	f.apply(t, auth.System, o.ID, EventPaymentSucceeded)
	ok, err = f.svc.EligibleForAward(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.True(t, errutil.Is(f.svc.AttachPaymentIntent(ctx, o.ID, "pi_456"), errutil.StatusConflict))

	f.apply(t, admin, o.ID, EventCancel)
	ok, err = f.svc.EligibleForAward(ctx, o.ID)
	require.NoError(t, err)
	require.False(t, ok)
}
