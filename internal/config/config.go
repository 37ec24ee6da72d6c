package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Retry    RetryConfig    `koanf:"retry"`
	Logger   LoggerConfig   `koanf:"logger"`
	Redis    RedisConfig    `koanf:"redis"`

	// Methods carries the per-payment-method settings keyed by method
	// code (cc, dd, ddsec, iv, ivsec, pp, dc).
	Methods map[string]MethodConfig `koanf:"methods"`

	// Stores holds per-store overrides of Methods, keyed by store id and
	// then by method code. A store without an entry for a method falls
	// back to the default in Methods.
	Stores map[string]map[string]MethodConfig `koanf:"stores"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`

	// HealthCheckPeriod is how often idle pool connections are probed.
	// Zero means the 30s default.
	HealthCheckPeriod time.Duration `koanf:"health_check_period"`
}

// GatewayConfig holds the connection and credential set for the hosted
// payment gateway plus the shop-side callback URLs sent with every request.
type GatewayConfig struct {
	LiveURL     string        `koanf:"live_url" validate:"required"`
	SandboxURL  string        `koanf:"sandbox_url" validate:"required"`
	Sandbox     bool          `koanf:"sandbox"`
	ConnTimeout time.Duration `koanf:"conn_timeout" validate:"required"`

	Sender   string `koanf:"sender" validate:"required"`
	Login    string `koanf:"login" validate:"required"`
	Password string `koanf:"password" validate:"required"`

	// Secret keys the notification authentication hash (CRITERION.SECRET).
	Secret string `koanf:"secret" validate:"required"`

	ResponseURL string `koanf:"response_url" validate:"required"`
	SuccessURL  string `koanf:"success_url" validate:"required"`
	FailureURL  string `koanf:"failure_url" validate:"required"`
	PushURL     string `koanf:"push_url" validate:"required"`

	ShopType      string `koanf:"shop_type"`
	ModuleVersion string `koanf:"module_version"`
}

// URL returns the gateway endpoint for the configured transaction mode.
func (c GatewayConfig) URL() string {
	if c.Sandbox {
		return c.SandboxURL
	}
	return c.LiveURL
}

// TransactionMode is the wire value of the configured mode.
func (c GatewayConfig) TransactionMode() string {
	if c.Sandbox {
		return "CONNECTOR_TEST"
	}
	return "LIVE"
}

// MethodConfig is the store-level configuration of one payment method.
type MethodConfig struct {
	Enabled bool   `koanf:"enabled"`
	Channel string `koanf:"channel"`

	// BookingMode selects the initial transaction type: DB for direct
	// booking or PA for preauthorization.
	BookingMode string `koanf:"booking_mode"`

	// AutoInvoice creates and captures an invoice once an order is fully
	// paid.
	AutoInvoice bool `koanf:"auto_invoice"`

	MinAmount string `koanf:"min_amount"`
	MaxAmount string `koanf:"max_amount"`
}

type RetryConfig struct {
	BaseDelay  int32 `koanf:"base_delay"`
	MaxRetries int32 `koanf:"max_retries"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// RedisConfig configures the push-notification dedup store. An empty Addr
// falls back to the in-memory deduper.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	DedupTTL time.Duration `koanf:"dedup_ttl"`
}

// NewLogger builds the process logger at the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// Method returns the configuration for a method code, zero value when the
// method has no store-level settings.
func (c *Config) Method(code string) MethodConfig {
	return c.Methods[code]
}

// MethodForStore resolves a method configuration for one store view,
// falling back to the module-wide defaults when the store carries no
// override for the method.
func (c *Config) MethodForStore(storeID, code string) MethodConfig {
	if store, ok := c.Stores[storeID]; ok {
		if mcfg, ok := store[code]; ok {
			return mcfg
		}
	}
	return c.Methods[code]
}
