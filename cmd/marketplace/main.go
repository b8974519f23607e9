package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/db"
	"delivery-marketplace/pkg/gen"
	"delivery-marketplace/pkg/health"
	"delivery-marketplace/pkg/httpapi"
	"delivery-marketplace/pkg/logger"
	"delivery-marketplace/pkg/otelcol"
	"delivery-marketplace/pkg/ratelimit"
	"delivery-marketplace/pkg/redis"
	"delivery-marketplace/pkg/secretmanager"
	"delivery-marketplace/pkg/sequence"
	"delivery-marketplace/pkg/server"
	"delivery-marketplace/pkg/task"
	"delivery-marketplace/services/activity"
	"delivery-marketplace/services/address"
	"delivery-marketplace/services/driver"
	"delivery-marketplace/services/geo"
	"delivery-marketplace/services/loyalty"
	"delivery-marketplace/services/notification"
	"delivery-marketplace/services/order"
	"delivery-marketplace/services/payment"
	"delivery-marketplace/services/restaurant"
	"delivery-marketplace/services/webhook"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Client,
		task.Server,
		sequence.Module,
		ratelimit.Module,
		auth.Module,
		health.Module,
		httpapi.Module,

		geo.Module,
		address.Module,
		activity.Module,
		notification.Module,
		loyalty.Module,
		loyalty.TaskModule,
		restaurant.Module,
		driver.Module,
		order.Module,
		payment.Module,
		webhook.Module,

		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
