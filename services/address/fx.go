package address

import "go.uber.org/fx"

var Module = fx.Module("address.service",
	fx.Provide(NewValidator, NewHandler),
	fx.Invoke(RegisterRoutes),
)
