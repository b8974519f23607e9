package restaurant

import "go.uber.org/fx"

var Module = fx.Module("restaurant.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(RegisterRoutes),
)
