package order

import (
	"fmt"
	"slices"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/errutil"
)

type Event string

const (
	EventPaymentSucceeded Event = "payment_succeeded"
	EventPaymentFailed    Event = "payment_failed"
	EventAccept           Event = "accept"
	EventReject           Event = "reject"
	EventMarkReady        Event = "mark_ready"
	EventPickUp           Event = "pick_up"
	EventDeliver          Event = "deliver"
	EventFailDelivery     Event = "fail_delivery"
	EventCancel           Event = "cancel"
)

// Recipient is who gets notified about a transition.
type Recipient string

const (
	RecipientCustomer        Recipient = "customer"
	RecipientRestaurantOwner Recipient = "restaurant_owner"
)

type Transition struct {
	Event  Event
	From   []Status
	To     Status
	Actors []auth.Role
	Notify Recipient
}

var preDelivery = []Status{
	StatusPendingPayment,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForPickup,
	StatusOutForDelivery,
}

// Transitions is the complete order lifecycle. Every status change goes
// through Resolve against this table.
var Transitions = []Transition{
	{Event: EventPaymentSucceeded, From: []Status{StatusPendingPayment}, To: StatusConfirmed, Actors: []auth.Role{auth.RoleSystem}, Notify: RecipientRestaurantOwner},
	{Event: EventPaymentFailed, From: []Status{StatusPendingPayment}, To: StatusCancelled, Actors: []auth.Role{auth.RoleSystem}, Notify: RecipientCustomer},
	{Event: EventAccept, From: []Status{StatusConfirmed}, To: StatusPreparing, Actors: []auth.Role{auth.RoleRestaurantOwner, auth.RoleAdmin}, Notify: RecipientCustomer},
	{Event: EventReject, From: []Status{StatusConfirmed}, To: StatusRejectedByRestaurant, Actors: []auth.Role{auth.RoleRestaurantOwner, auth.RoleAdmin}, Notify: RecipientCustomer},
	{Event: EventMarkReady, From: []Status{StatusPreparing}, To: StatusReadyForPickup, Actors: []auth.Role{auth.RoleRestaurantOwner, auth.RoleAdmin}, Notify: RecipientCustomer},
	{Event: EventPickUp, From: []Status{StatusReadyForPickup}, To: StatusOutForDelivery, Actors: []auth.Role{auth.RoleDriver}, Notify: RecipientCustomer},
	{Event: EventDeliver, From: []Status{StatusOutForDelivery}, To: StatusDelivered, Actors: []auth.Role{auth.RoleDriver, auth.RoleAdmin}, Notify: RecipientCustomer},
	{Event: EventFailDelivery, From: []Status{StatusOutForDelivery}, To: StatusDeliveryFailed, Actors: []auth.Role{auth.RoleDriver, auth.RoleAdmin}, Notify: RecipientRestaurantOwner},
	{Event: EventCancel, From: []Status{StatusPendingPayment, StatusConfirmed}, To: StatusCancelled, Actors: []auth.Role{auth.RoleCustomer}, Notify: RecipientRestaurantOwner},
	{Event: EventCancel, From: preDelivery, To: StatusCancelled, Actors: []auth.Role{auth.RoleRestaurantOwner, auth.RoleAdmin}, Notify: RecipientCustomer},
}

func ParseEvent(s string) (Event, error) {
	e := Event(s)
	for _, t := range Transitions {
		if t.Event == e {
			return e, nil
		}
	}
	return "", errutil.ValidationFailed(fmt.Sprintf("unknown order event %q", s), nil)
}

// Resolve picks the transition for event from current on behalf of role.
// noop is true when the order already sits in the target status, which
// makes redelivered events succeed without side effects. A role that no
// row admits is forbidden; a status no row leaves is a conflict.
func Resolve(current Status, event Event, role auth.Role) (t Transition, noop bool, err error) {
	var (
		known     bool
		roleRows  []Transition
		legalRole bool
	)

	for _, row := range Transitions {
		if row.Event != event {
			continue
		}
		known = true
		if slices.Contains(row.Actors, role) {
			roleRows = append(roleRows, row)
		} else if slices.Contains(row.From, current) {
			legalRole = true
		}
	}

	if !known {
		return Transition{}, false, errutil.ValidationFailed(fmt.Sprintf("unknown order event %q", event), nil)
	}

	for _, row := range roleRows {
		if row.To == current {
			return row, true, nil
		}
	}
	for _, row := range roleRows {
		if slices.Contains(row.From, current) {
			return row, false, nil
		}
	}

	if len(roleRows) == 0 || legalRole {
		return Transition{}, false, errutil.Forbidden(fmt.Sprintf("role %s cannot %s this order", role, event), nil)
	}
	return Transition{}, false, errutil.Conflict(fmt.Sprintf("cannot %s an order in status %s", event, current), nil)
}
