package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/db/option"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/services/activity"
	"delivery-marketplace/services/driver"
	"delivery-marketplace/services/loyalty"
	"delivery-marketplace/services/notification"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Command struct {
	Event  Event
	Reason string
	// PaymentIntentID, Amount (minor units) and Currency are set for
	// processor driven events.
	PaymentIntentID string
	Amount          int64
	Currency        string
	IPAddress       string
}

type Result struct {
	Order    *Order `json:"order"`
	Previous Status `json:"previousStatus"`
	Applied  bool   `json:"applied"`
}

var eventTitles = map[Event]string{
	EventPaymentSucceeded: "New paid order",
	EventPaymentFailed:    "Payment failed",
	EventAccept:           "Your order is being prepared",
	EventReject:           "Your order was rejected by the restaurant",
	EventMarkReady:        "Your order is ready for pickup",
	EventPickUp:           "Your order is on its way",
	EventDeliver:          "Your order has been delivered",
	EventFailDelivery:     "Delivery failed",
	EventCancel:           "Order cancelled",
}

// Apply runs one lifecycle event against an order. The status write is
// conditional on the status read, so a concurrent transition surfaces as a
// conflict. Activity log, notification and loyalty effects follow the write
// and never undo it.
func (s *Service) Apply(ctx context.Context, actor *auth.Principal, orderID string, cmd Command) (*Result, error) {
	log := logger.FromContext(ctx).With(
		zap.String("order_id", orderID),
		zap.String("event", string(cmd.Event)),
		zap.String("role", string(actor.Role)),
	)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	d, err := s.authorizeEvent(ctx, actor, o, cmd.Event)
	if err != nil {
		metrics.OrderTransitionsTotal.WithLabelValues(string(cmd.Event), "rejected").Inc()
		return nil, err
	}

	t, noop, err := Resolve(o.Status, cmd.Event, actor.Role)
	if err != nil {
		metrics.OrderTransitionsTotal.WithLabelValues(string(cmd.Event), "rejected").Inc()
		log.Info("order transition rejected", zap.String("status", string(o.Status)), zap.Error(err))
		return nil, err
	}
	if noop {
		metrics.OrderTransitionsTotal.WithLabelValues(string(cmd.Event), "noop").Inc()
		log.Info("order already in target status", zap.String("status", string(o.Status)))
		return &Result{Order: o, Previous: o.Status}, nil
	}

	if err := matchPayment(o, cmd); err != nil {
		metrics.OrderTransitionsTotal.WithLabelValues(string(cmd.Event), "rejected").Inc()
		log.Warn("payment event does not match order",
			zap.String("payment_intent_id", cmd.PaymentIntentID),
			zap.Int64("amount", cmd.Amount),
			zap.String("currency", cmd.Currency),
			zap.Error(err),
		)
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{
		"status":     t.To,
		"updated_at": now,
	}
	switch cmd.Event {
	case EventPaymentSucceeded:
		updates["payment_status"] = PaymentPaid
	case EventPaymentFailed:
		updates["payment_status"] = PaymentFailed
	case EventPickUp:
		updates["driver_id"] = d.ID
	case EventDeliver:
		updates["delivered_at"] = now
	}
	if cmd.PaymentIntentID != "" && o.PaymentIntentID == nil {
		updates["payment_intent_id"] = cmd.PaymentIntentID
	}
	if t.To == StatusCancelled || t.To == StatusRejectedByRestaurant || t.To == StatusDeliveryFailed {
		if cmd.Reason != "" {
			updates["cancel_reason"] = cmd.Reason
		}
	}

	previous := o.Status
	affected, err := s.orders.UpdateWhere(ctx, o.ID, updates,
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: previous}),
	)
	if err != nil {
		metrics.OrderTransitionsTotal.WithLabelValues(string(cmd.Event), "error").Inc()
		log.Error("failed to update order status", zap.Error(err))
		return nil, errutil.DatabaseError("failed to update order status", err)
	}
	if affected == 0 {
		metrics.OrderTransitionsTotal.WithLabelValues(string(cmd.Event), "conflict").Inc()
		return nil, errutil.Conflict("order status changed concurrently", nil)
	}

	updated, err := s.load(ctx, o.ID)
	if err != nil {
		// The write went through; report it with what we know.
		log.Warn("failed to reload order after transition", zap.Error(err))
		o.Status = t.To
		updated = o
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(cmd.Event), "applied").Inc()
	log.Info("order transitioned", zap.String("from", string(previous)), zap.String("to", string(t.To)))

	s.recordTransition(ctx, actor, updated, previous, t, cmd)
	s.applyLoyalty(ctx, updated, previous, t)

	return &Result{Order: updated, Previous: previous, Applied: true}, nil
}

// matchPayment checks that a processor event belongs to the intent stored on
// the order and, for a success, that it settles the full total.
func matchPayment(o *Order, cmd Command) error {
	if cmd.Event != EventPaymentSucceeded && cmd.Event != EventPaymentFailed {
		return nil
	}
	if o.PaymentIntentID != nil && *o.PaymentIntentID != cmd.PaymentIntentID {
		return errutil.Conflict("payment intent does not belong to this order", nil)
	}
	if cmd.Event == EventPaymentFailed {
		return nil
	}
	if cmd.PaymentIntentID == "" {
		return errutil.ValidationFailed("payment intent id is required", nil)
	}
	if cmd.Amount != MinorUnits(o.Total) || !strings.EqualFold(cmd.Currency, o.Currency) {
		return errutil.UnprocessableEntity("payment does not match the order total", nil,
			errutil.WithDetails(errutil.Detail{
				Field:   "amount",
				Message: fmt.Sprintf("expected %d %s", MinorUnits(o.Total), o.Currency),
			}))
	}
	return nil
}

// authorizeEvent checks that the actor is party to the order. It returns the
// acting driver for driver events.
func (s *Service) authorizeEvent(ctx context.Context, actor *auth.Principal, o *Order, event Event) (*driver.Driver, error) {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleSystem:
		return nil, nil
	case auth.RoleCustomer:
		if o.CustomerID != actor.UserID {
			return nil, errutil.Forbidden("order belongs to another customer", nil)
		}
		return nil, nil
	case auth.RoleRestaurantOwner:
		r, err := s.restaurants.Get(ctx, o.RestaurantID)
		if err != nil {
			return nil, err
		}
		if r.OwnerID != actor.UserID {
			return nil, errutil.Forbidden("order belongs to another restaurant", nil)
		}
		return nil, nil
	case auth.RoleDriver:
		d, err := s.drivers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if errutil.Is(err, errutil.StatusNotFound) {
				return nil, errutil.Forbidden("no driver profile for this user", nil)
			}
			return nil, err
		}
		if !d.IsActive() {
			return nil, errutil.Forbidden("driver account is not active", nil)
		}
		// Any active driver may take an unassigned order, after that only
		// the assigned one acts on it.
		if event == EventPickUp && o.DriverID == nil {
			return d, nil
		}
		if o.DriverID == nil || *o.DriverID != d.ID {
			return nil, errutil.Forbidden("order is assigned to another driver", nil)
		}
		return d, nil
	}
	return nil, errutil.Forbidden("role cannot act on orders", nil)
}

func (s *Service) recordTransition(ctx context.Context, actor *auth.Principal, o *Order, previous Status, t Transition, cmd Command) {
	log := logger.FromContext(ctx).With(zap.String("order_id", o.ID), zap.String("event", string(t.Event)))

	entry := activity.Entry{
		EntityType: activity.EntityOrder,
		EntityID:   o.ID,
		Action:     "order." + string(t.Event),
		Details: map[string]any{
			"previous_status": previous,
			"new_status":      t.To,
			"event":           t.Event,
			"order_number":    o.OrderNumber,
		},
		IPAddress: cmd.IPAddress,
	}
	if actor.Role != auth.RoleSystem {
		entry.UserID = actor.UserID
	}
	if cmd.Reason != "" {
		entry.Details["reason"] = cmd.Reason
	}
	if cmd.PaymentIntentID != "" {
		entry.Details["payment_intent_id"] = cmd.PaymentIntentID
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("activity_log").Inc()
		log.Warn("failed to record order activity", zap.Error(err))
	}

	recipient, err := s.recipientID(ctx, o, t.Notify)
	if err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("notification").Inc()
		log.Warn("failed to resolve notification recipient", zap.Error(err))
		return
	}

	body := fmt.Sprintf("Order %s is now %s.", o.OrderNumber, t.To)
	if cmd.Reason != "" {
		body += " Reason: " + cmd.Reason
	}
	if _, err := s.notifier.Notify(ctx, notification.Message{
		UserID: recipient,
		Type:   notification.TypeOrderUpdate,
		Title:  eventTitles[t.Event],
		Body:   body,
		Data: map[string]any{
			"orderId": o.ID,
			"status":  t.To,
			"link":    s.frontendURL + "/orders/" + o.ID,
		},
	}); err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues("notification").Inc()
		log.Warn("failed to notify order update", zap.Error(err))
	}
}

func (s *Service) recipientID(ctx context.Context, o *Order, r Recipient) (string, error) {
	if r == RecipientCustomer {
		return o.CustomerID, nil
	}
	rest, err := s.restaurants.Get(ctx, o.RestaurantID)
	if err != nil {
		return "", err
	}
	return rest.OwnerID, nil
}

// applyLoyalty credits paid orders and takes points back from orders that
// were paid and then cancelled or rejected.
func (s *Service) applyLoyalty(ctx context.Context, o *Order, previous Status, t Transition) {
	log := logger.FromContext(ctx).With(zap.String("order_id", o.ID))

	switch {
	case t.Event == EventPaymentSucceeded:
		req := loyalty.AwardRequest{
			CustomerID:  o.CustomerID,
			OrderID:     o.ID,
			Total:       o.Total,
			Subtotal:    o.Subtotal,
			DeliveryFee: o.DeliveryFee,
			Currency:    o.Currency,
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			req.TraceID = sc.TraceID().String()
		}
		if err := s.loyalty.ScheduleAward(ctx, req); err != nil {
			metrics.SideEffectFailuresTotal.WithLabelValues("loyalty_award").Inc()
			log.Warn("failed to schedule loyalty award", zap.Error(err))
		}

	case (t.To == StatusCancelled || t.To == StatusRejectedByRestaurant) && previous != StatusPendingPayment:
		if _, err := s.loyalty.ReverseForOrder(ctx, o.CustomerID, o.ID); err != nil {
			metrics.SideEffectFailuresTotal.WithLabelValues("loyalty_reversal").Inc()
			log.Warn("failed to reverse loyalty points", zap.Error(err))
		}
	}
}
