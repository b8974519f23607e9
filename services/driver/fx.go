package driver

import "go.uber.org/fx"

var Module = fx.Module("driver.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(RegisterRoutes),
)
