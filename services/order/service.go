package order

import (
	"context"
	"strings"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/db/option"
	"delivery-marketplace/pkg/db/pagination"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/repository"
	"delivery-marketplace/pkg/sequence"
	"delivery-marketplace/services/activity"
	"delivery-marketplace/services/address"
	"delivery-marketplace/services/driver"
	"delivery-marketplace/services/loyalty"
	"delivery-marketplace/services/notification"
	"delivery-marketplace/services/restaurant"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry) error
}

type Notifier interface {
	Notify(ctx context.Context, m notification.Message) (*notification.Notification, error)
}

type LoyaltyAwarder interface {
	ScheduleAward(ctx context.Context, req loyalty.AwardRequest) error
	ReverseForOrder(ctx context.Context, customerID, orderID string) (*loyalty.Transaction, error)
}

type RestaurantDirectory interface {
	Get(ctx context.Context, id string) (*restaurant.Restaurant, error)
	MenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]*restaurant.MenuItem, error)
}

type DriverDirectory interface {
	GetByUserID(ctx context.Context, userID string) (*driver.Driver, error)
}

type AddressValidator interface {
	Validate(postalCode, city string) address.Result
}

type Service struct {
	orders repository.Repository[Order]

	frontendURL string
	sequence    sequence.Generator
	addresses   AddressValidator
	restaurants RestaurantDirectory
	drivers     DriverDirectory
	activity    ActivityRecorder
	notifier    Notifier
	loyalty     LoyaltyAwarder
}

type ServiceParams struct {
	fx.In
	DB          *gorm.DB
	Config      *config.Config
	Sequence    sequence.Generator
	Addresses   *address.Validator
	Restaurants *restaurant.Service
	Drivers     *driver.Service
	Activity    *activity.Service
	Notifier    *notification.Service
	Loyalty     *loyalty.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		orders:      repository.ProvideStore[Order](p.DB),
		frontendURL: strings.TrimRight(p.Config.FrontendURL, "/"),
		sequence:    p.Sequence,
		addresses:   p.Addresses,
		restaurants: p.Restaurants,
		drivers:     p.Drivers,
		activity:    p.Activity,
		notifier:    p.Notifier,
		loyalty:     p.Loyalty,
	}
}

func (s *Service) load(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.FindOne(ctx, &Order{ID: id}, option.WithPreload("Items"))
	if err != nil {
		return nil, errutil.DatabaseError("failed to load order", err)
	}
	if o == nil {
		return nil, errutil.NotFound("order not found", nil)
	}
	return o, nil
}

// Get returns an order the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor *auth.Principal, id string) (*Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) authorizeView(ctx context.Context, actor *auth.Principal, o *Order) error {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleSystem:
		return nil
	case auth.RoleCustomer:
		if o.CustomerID == actor.UserID {
			return nil
		}
	case auth.RoleRestaurantOwner:
		r, err := s.restaurants.Get(ctx, o.RestaurantID)
		if err != nil && !errutil.Is(err, errutil.StatusNotFound) {
			return err
		}
		if r != nil && r.OwnerID == actor.UserID {
			return nil
		}
	case auth.RoleDriver:
		d, err := s.drivers.GetByUserID(ctx, actor.UserID)
		if err != nil && !errutil.Is(err, errutil.StatusNotFound) {
			return err
		}
		// Drivers see what they carry and what is waiting for a driver.
		if d != nil && (o.DriverID != nil && *o.DriverID == d.ID || o.Status == StatusReadyForPickup && o.DriverID == nil) {
			return nil
		}
	}
	return errutil.Forbidden("order belongs to someone else", nil)
}

// ListForCustomer pages through a customer's orders, newest first.
func (s *Service) ListForCustomer(ctx context.Context, actor *auth.Principal, customerID string, p pagination.Pagination) (*pagination.Page[Order], error) {
	if actor.UserID != customerID && !actor.IsAdmin() {
		return nil, errutil.Forbidden("cannot list another customer's orders", nil)
	}

	p = p.Normalize(pagination.MaxLimit)
	query := &Order{CustomerID: customerID}

	total, err := s.orders.Count(ctx, query)
	if err != nil {
		return nil, errutil.DatabaseError("failed to count orders", err)
	}

	rows, err := s.orders.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: map[string]bool{"id": true}}),
		option.ApplyPagination(p),
		option.WithPreload("Items"),
	)
	if err != nil {
		return nil, errutil.DatabaseError("failed to list orders", err)
	}

	return pagination.NewPage(rows, p, total), nil
}

// AttachPaymentIntent stores the intent created for an order still awaiting
// payment.
func (s *Service) AttachPaymentIntent(ctx context.Context, orderID, intentID string) error {
	affected, err := s.orders.UpdateWhere(ctx, orderID, map[string]any{"payment_intent_id": intentID},
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: StatusPendingPayment}),
	)
	if err != nil {
		return errutil.DatabaseError("failed to attach payment intent", err)
	}
	if affected == 0 {
		return errutil.Conflict("order is no longer awaiting payment", nil)
	}
	return nil
}

// EligibleForAward reports whether a queued loyalty award may still credit
// the order.
func (s *Service) EligibleForAward(ctx context.Context, orderID string) (bool, error) {
	o, err := s.orders.FindOne(ctx, &Order{ID: orderID})
	if err != nil {
		return false, errutil.DatabaseError("failed to load order", err)
	}
	if o == nil {
		return false, nil
	}
	switch o.Status {
	case StatusCancelled, StatusRejectedByRestaurant:
		return false, nil
	}
	return o.PaymentStatus == PaymentPaid, nil
}
