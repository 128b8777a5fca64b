package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "parkwise/backend/libs/config"
	"parkwise/backend/services/parking-service/internal/billing"
)

// Config defines parking service configuration.
type Config struct {
	HTTP struct {
		Port            string        `yaml:"port" env:"PARKING_HTTP_PORT"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"PARKING_HTTP_SHUTDOWN_TIMEOUT"`
	} `yaml:"http"`
	Database struct {
		DSN          string `yaml:"dsn" env:"PARKING_POSTGRES_DSN"`
		MaxOpenConns int    `yaml:"maxOpenConns" env:"PARKING_POSTGRES_MAX_OPEN_CONNS"`
		AutoMigrate  bool   `yaml:"autoMigrate" env:"PARKING_AUTO_MIGRATE"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"PARKING_REDIS_ADDR"`
		Password string `yaml:"password" env:"PARKING_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"PARKING_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"PARKING_REDIS_TTL"`
	} `yaml:"redis"`
	Billing struct {
		RoundingThresholdMinutes int           `yaml:"roundingThresholdMinutes" env:"PARKING_ROUNDING_THRESHOLD_MINUTES"`
		ExitBufferMinutes        float64       `yaml:"exitBufferMinutes" env:"PARKING_EXIT_BUFFER_MINUTES"`
		HourlyRate               float64       `yaml:"hourlyRate" env:"PARKING_HOURLY_RATE"`
		PaymentValidity          time.Duration `yaml:"paymentValidity" env:"PARKING_PAYMENT_VALIDITY"`
		VIPDiscount              float64       `yaml:"vipDiscount" env:"PARKING_VIP_DISCOUNT"`
	} `yaml:"billing"`
	Feed struct {
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"PARKING_FEED_WRITE_TIMEOUT"`
		PingInterval time.Duration `yaml:"pingInterval" env:"PARKING_FEED_PING_INTERVAL"`
	} `yaml:"feed"`
}

// Default returns the configuration used before file and env overrides.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8085"
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.Database.MaxOpenConns = 20
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.TTL = 86400
	cfg.Billing.RoundingThresholdMinutes = billing.BuiltinDefaults.RoundingThresholdMinutes
	cfg.Billing.ExitBufferMinutes = billing.BuiltinDefaults.ExitBufferMinutes
	cfg.Billing.HourlyRate = billing.BuiltinDefaults.HourlyRate
	cfg.Billing.PaymentValidity = billing.BuiltinDefaults.PaymentValidity
	cfg.Feed.WriteTimeout = 10 * time.Second
	cfg.Feed.PingInterval = 30 * time.Second
	return cfg
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate implements libconfig.Validator.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("config: redis addr required")
	}
	if t := c.Billing.RoundingThresholdMinutes; t < 0 || t > 59 {
		return fmt.Errorf("config: billing rounding threshold must be within 0..59, got %d", t)
	}
	if c.Billing.HourlyRate <= 0 {
		return errors.New("config: billing hourly rate must be positive")
	}
	if c.Billing.PaymentValidity <= 0 {
		return errors.New("config: billing payment validity must be positive")
	}
	if c.Billing.VIPDiscount < 0 {
		return errors.New("config: vip discount must not be negative")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ActiveVisitTTL returns ttl as duration.
func (c *Config) ActiveVisitTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// BillingDefaults is the static layer under stored billing configuration.
func (c *Config) BillingDefaults() billing.Defaults {
	return billing.Defaults{
		RoundingThresholdMinutes: c.Billing.RoundingThresholdMinutes,
		ExitBufferMinutes:        c.Billing.ExitBufferMinutes,
		HourlyRate:               c.Billing.HourlyRate,
		PaymentValidity:          c.Billing.PaymentValidity,
	}
}
