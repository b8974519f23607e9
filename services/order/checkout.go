package order

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/services/activity"
	"delivery-marketplace/services/address"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultCurrency = "chf"

type CheckoutItem struct {
	MenuItemID string `json:"menuItemId" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
}

type DeliveryAddress struct {
	PostalCode string `json:"postalCode" binding:"required"`
	City       string `json:"city" binding:"required"`
	Street     string `json:"street" binding:"required"`
}

type CheckoutRequest struct {
	RestaurantID        string          `json:"restaurantId" binding:"required"`
	Items               []CheckoutItem  `json:"items" binding:"required"`
	Address             DeliveryAddress `json:"address" binding:"required"`
	ScheduledDeliveryAt *time.Time      `json:"scheduledDeliveryAt"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Checkout prices the cart from the menu, validates the delivery address and
// creates the order in pending_payment with the zone delivery fee.
func (s *Service) Checkout(ctx context.Context, actor *auth.Principal, req CheckoutRequest, ip string) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, errutil.ValidationFailed("order has no items", nil)
	}
	ids := make([]string, 0, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, errutil.ValidationFailed("quantity must be positive", nil,
				errutil.WithDetails(errutil.Detail{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be greater than zero"}))
		}
		ids = append(ids, it.MenuItemID)
	}
	if req.ScheduledDeliveryAt != nil && !req.ScheduledDeliveryAt.After(time.Now()) {
		return nil, errutil.ValidationFailed("scheduled delivery must be in the future", nil)
	}

	addr := s.addresses.Validate(req.Address.PostalCode, req.Address.City)
	if !addr.Valid || addr.Zone == nil {
		details := []errutil.Detail{{Field: "address", Message: addr.Message}}
		for _, sug := range addr.Suggestions {
			details = append(details, errutil.Detail{Field: "suggestion", Message: sug.PostalCode + " " + sug.City})
		}
		return nil, errutil.ValidationFailed("delivery address is not in a delivery zone", nil, errutil.WithDetails(details...))
	}

	rest, err := s.restaurants.Get(ctx, req.RestaurantID)
	if err != nil {
		return nil, err
	}
	if !rest.IsActive() {
		return nil, errutil.UnprocessableEntity("restaurant is not accepting orders", nil)
	}

	menu, err := s.restaurants.MenuItems(ctx, rest.ID, ids)
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	items := make([]OrderItem, 0, len(req.Items))
	var subtotal float64
	for i, it := range req.Items {
		m, ok := menu[it.MenuItemID]
		if !ok || !m.Available {
			return nil, errutil.ValidationFailed("menu item is not available", nil,
				errutil.WithDetails(errutil.Detail{Field: fmt.Sprintf("items[%d].menuItemId", i), Message: it.MenuItemID}))
		}
		line := round2(m.Price * float64(it.Quantity))
		subtotal += line
		items = append(items, OrderItem{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			MenuItemID: m.ID,
			Name:       m.Name,
			Quantity:   it.Quantity,
			UnitPrice:  m.Price,
			LineTotal:  line,
		})
	}
	subtotal = round2(subtotal)
	fee := address.ZoneFee(*addr.Zone)

	number, err := s.sequence.NextOrderNumber(ctx)
	if err != nil {
		return nil, errutil.Internal("failed to allocate order number", err)
	}

	o := &Order{
		ID:                  orderID,
		OrderNumber:         number,
		CustomerID:          actor.UserID,
		CustomerEmail:       actor.Email,
		RestaurantID:        rest.ID,
		Status:              StatusPendingPayment,
		Subtotal:            subtotal,
		DeliveryFee:         fee,
		Total:               round2(subtotal + fee),
		Currency:            DefaultCurrency,
		PaymentStatus:       PaymentPending,
		PostalCode:          strings.TrimSpace(req.Address.PostalCode),
		City:                addr.Zone.City,
		Street:              strings.TrimSpace(req.Address.Street),
		Region:              addr.Region,
		ScheduledDeliveryAt: req.ScheduledDeliveryAt,
		Items:               items,
	}

	// Items are inserted with the order in the same create transaction.
	if err := s.orders.Create(ctx, o); err != nil {
		logger.FromContext(ctx).Error("failed to create order", zap.String("customer_id", actor.UserID), zap.Error(err))
		return nil, errutil.DatabaseError("failed to create order", err)
	}

	if err := s.activity.Record(ctx, activity.Entry{
		UserID:     actor.UserID,
		EntityType: activity.EntityOrder,
		EntityID:   o.ID,
		Action:     "order.created",
		Details: map[string]any{
			"order_number":  o.OrderNumber,
			"restaurant_id": o.RestaurantID,
			"total":         o.Total,
			"new_status":    o.Status,
		},
		IPAddress: ip,
	}); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("activity_log").Inc()
		logger.FromContext(ctx).Warn("failed to record checkout activity", zap.String("order_id", o.ID), zap.Error(err))
	}

	return o, nil
}
