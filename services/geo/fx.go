package geo

import "go.uber.org/fx"

var Module = fx.Module("geo.service",
	fx.Invoke(RegisterRoutes),
)
