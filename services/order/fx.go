package order

import (
	"delivery-marketplace/services/loyalty"

	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(
		NewService,
		NewHandler,
		func(s *Service) loyalty.OrderEligibility { return s },
	),
	fx.Invoke(RegisterRoutes),
)
