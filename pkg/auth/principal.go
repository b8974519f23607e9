package auth

import "context"

type Role string

const (
	RoleCustomer        Role = "customer"
	RoleRestaurantOwner Role = "restaurant_owner"
	RoleDriver          Role = "driver"
	RoleAdmin           Role = "admin"
	// RoleSystem is used for transitions driven by verified payment events.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleRestaurantOwner, RoleDriver, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// System is the actor recorded for webhook driven changes.
var System = &Principal{UserID: "system", Role: RoleSystem}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
