// Package approval holds the admin status lifecycle shared by restaurants
// and drivers.
package approval

import (
	"fmt"

	"delivery-marketplace/pkg/errutil"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

type Action string

const (
	ActionApprove    Action = "approve"
	ActionDeactivate Action = "deactivate"
	ActionReactivate Action = "reactivate"
	ActionSuspend    Action = "suspend"
)

type rule struct {
	from []Status
	to   Status
}

var rules = map[Action]rule{
	ActionApprove:    {from: []Status{StatusPending}, to: StatusActive},
	ActionDeactivate: {from: []Status{StatusActive}, to: StatusInactive},
	ActionReactivate: {from: []Status{StatusInactive, StatusSuspended}, to: StatusActive},
	ActionSuspend:    {from: []Status{StatusActive, StatusInactive}, to: StatusSuspended},
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := rules[a]; !ok {
		return "", errutil.ValidationFailed(fmt.Sprintf("unknown action %q", s), nil)
	}
	return a, nil
}

// Resolve returns the target status of applying action to current. noop is
// true when current already equals the target.
func Resolve(current Status, action Action) (next Status, noop bool, err error) {
	r, ok := rules[action]
	if !ok {
		return "", false, errutil.ValidationFailed(fmt.Sprintf("unknown action %q", action), nil)
	}
	if current == r.to {
		return current, true, nil
	}
	for _, from := range r.from {
		if from == current {
			return r.to, false, nil
		}
	}
	return "", false, errutil.Conflict(fmt.Sprintf("cannot %s from status %s", action, current), nil)
}
