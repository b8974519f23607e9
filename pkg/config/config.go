package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv      string `mapstructure:"APP_ENV"`
	AppName     string `mapstructure:"APP_NAME"`
	AppVersion  string `mapstructure:"APP_VERSION"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	TLS         struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		URL            string `mapstructure:"URL"`
		MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`
		AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`
		ConnectionPool struct {
			MaxIdleConns    int           `mapstructure:"MAX_IDLE_CONNS"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Stripe struct {
		SecretKey        string `mapstructure:"SECRET_KEY"`
		PublishableKey   string `mapstructure:"PUBLISHABLE_KEY"`
		WebhookSecret    string `mapstructure:"WEBHOOK_SECRET"`
		AcceptTestEvents bool   `mapstructure:"ACCEPT_TEST_EVENTS"`
	} `mapstructure:"STRIPE"`
	Auth struct {
		JWTSecret string        `mapstructure:"JWT_SECRET"`
		Issuer    string        `mapstructure:"ISSUER"`
		Leeway    time.Duration `mapstructure:"LEEWAY"`
	} `mapstructure:"AUTH"`
	AccessControl struct {
		Model  string `mapstructure:"MODEL"`
		Policy string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	RateLimit struct {
		Requests int           `mapstructure:"REQUESTS"`
		Window   time.Duration `mapstructure:"WINDOW"`
	} `mapstructure:"RATE_LIMIT"`
	Loyalty struct {
		EarnExpression string `mapstructure:"EARN_EXPRESSION"`
	} `mapstructure:"LOYALTY"`
	Vault struct {
		Path string `mapstructure:"PATH"`
	} `mapstructure:"VAULT"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "delivery-marketplace")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.MIGRATIONS_PATH", "migrations")
	v.SetDefault("DATABASE.AUTO_MIGRATE", true)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONNS", 10)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 5*time.Minute)
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)
	v.SetDefault("AUTH.LEEWAY", 30*time.Second)
	v.SetDefault("RATE_LIMIT.REQUESTS", 60)
	v.SetDefault("RATE_LIMIT.WINDOW", time.Minute)
	v.SetDefault("LOYALTY.EARN_EXPRESSION", "int(total)")
}

// Load reads config.yaml (optional) and the environment. A .env file in the
// working directory is loaded first so local runs need no exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

var envOnlyKeys = []string{
	"APP_VERSION",
	"TLS.ENABLE", "TLS.CERT_PATH", "TLS.KEY_PATH",
	"OTEL.ADDR",
	"DATABASE.URL",
	"REDIS.ADDR", "REDIS.PASSWORD", "REDIS.DB",
	"STRIPE.SECRET_KEY", "STRIPE.PUBLISHABLE_KEY", "STRIPE.WEBHOOK_SECRET", "STRIPE.ACCEPT_TEST_EVENTS",
	"AUTH.JWT_SECRET", "AUTH.ISSUER",
	"ACCESS_CONTROL.MODEL", "ACCESS_CONTROL.POLICY",
	"VAULT.PATH",
}

func LoadConfig(p Params) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if p.Vault != nil {
		if err := overlayVaultSecrets(context.Background(), p.Vault, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func overlayVaultSecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	path := cfg.Vault.Path
	if path == "" {
		path = cfg.AppEnv
	}

	zap.L().Info("Starting Get Secrets", zap.String("path", path))
	secret, err := client.Secrets.KvV2Read(ctx, path, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		return fmt.Errorf("read vault secrets: %w", err)
	}
	zap.L().Info("Success Get Secret")

	get := func(key, fallback string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.URL = get("database_url", cfg.Database.URL)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Stripe.SecretKey = get("stripe_secret_key", cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = get("stripe_webhook_secret", cfg.Stripe.WebhookSecret)
	cfg.Auth.JWTSecret = get("jwt_secret", cfg.Auth.JWTSecret)

	return nil
}
