package loyalty

import "go.uber.org/fx"

var Module = fx.Module("loyalty.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(RegisterRoutes),
)

// TaskModule registers the award handler on the asynq mux.
var TaskModule = fx.Module("task.loyalty",
	fx.Provide(NewTask),
	fx.Invoke(registerTaskHandlers),
)
