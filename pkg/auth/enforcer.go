package auth

import (
	"delivery-marketplace/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"go.uber.org/zap"
)

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Route level permissions. Ownership of the addressed resource is checked by
// the services.
const defaultPolicy = `
p, user, /api/orders/:id, GET
p, user, /api/orders/:id/events, POST
p, user, /api/customers/:id/orders, GET
p, user, /api/customers/:id/loyalty, GET
p, user, /api/checkout/payment-intents/:id, GET
p, user, /api/notifications, GET
p, user, /api/notifications/read-all, POST
p, user, /api/notifications/:id/read, PATCH
p, user, /api/notifications/:id, DELETE
p, customer, /api/orders, POST
p, customer, /api/checkout/create-payment-intent, POST
p, customer, /api/customers/:id/loyalty/redeem, POST
p, admin, /api/admin/*, (GET)|(PATCH)
g, customer, user
g, restaurant_owner, user
g, driver, user
g, admin, user
`

type Enforcer struct {
	e *casbin.Enforcer
}

func NewEnforcer(cfg *config.Config) (*Enforcer, error) {
	text, policy := defaultModel, defaultPolicy
	if cfg != nil && cfg.AccessControl.Model != "" {
		text = cfg.AccessControl.Model
	}
	if cfg != nil && cfg.AccessControl.Policy != "" {
		policy = cfg.AccessControl.Policy
	}

	m, err := model.NewModelFromString(text)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policy))
	if err != nil {
		return nil, err
	}

	return &Enforcer{e: e}, nil
}

// Allow reports whether role may perform method on path.
func (e *Enforcer) Allow(role Role, path, method string) bool {
	ok, err := e.e.Enforce(string(role), path, method)
	if err != nil {
		zap.L().Error("failed to evaluate access policy", zap.String("role", string(role)), zap.String("path", path), zap.Error(err))
		return false
	}
	return ok
}
