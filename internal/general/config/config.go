package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // YAML key: "database"
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Host string
		Port int
	}
	Services struct {
		RideServicePort    int
		PaymentServicePort int
	}
	JWT struct {
		SecretKey string `yaml:"secret_key"`
	}
	// Timeouts are the per-state lifecycle deadlines. Deadlines are measured
	// from the persisted timestamp that entered the state.
	Timeouts struct {
		RequestGraceSeconds    int
		DriverSearchSeconds    int
		DriverArrivalSeconds   int
		NoShowSeconds          int
		MaxRideDurationSeconds int
		SweepIntervalSeconds   int
	}
	Payments struct {
		MaxRetries        int
		RetryBaseSeconds  int
		RetrySweepSeconds int
		AllowRefund       bool
		RefundWindowHours int
		MaxRefundAmount   int64 // 0 = unlimited
		StripeSecretKey   string
	}
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Services
	if cfg.Services.RideServicePort == 0 {
		cfg.Services.RideServicePort = 3000
	}
	if cfg.Services.PaymentServicePort == 0 {
		cfg.Services.PaymentServicePort = 3002
	}

	// Timeouts
	if cfg.Timeouts.RequestGraceSeconds == 0 {
		cfg.Timeouts.RequestGraceSeconds = 60
	}
	if cfg.Timeouts.DriverSearchSeconds == 0 {
		cfg.Timeouts.DriverSearchSeconds = 300
	}
	if cfg.Timeouts.DriverArrivalSeconds == 0 {
		cfg.Timeouts.DriverArrivalSeconds = 900
	}
	if cfg.Timeouts.NoShowSeconds == 0 {
		cfg.Timeouts.NoShowSeconds = 300
	}
	if cfg.Timeouts.MaxRideDurationSeconds == 0 {
		cfg.Timeouts.MaxRideDurationSeconds = 4 * 3600
	}
	if cfg.Timeouts.SweepIntervalSeconds == 0 {
		cfg.Timeouts.SweepIntervalSeconds = 15
	}

	// Payments
	if cfg.Payments.MaxRetries == 0 {
		cfg.Payments.MaxRetries = 5
	}
	if cfg.Payments.RetryBaseSeconds == 0 {
		cfg.Payments.RetryBaseSeconds = 30
	}
	if cfg.Payments.RetrySweepSeconds == 0 {
		cfg.Payments.RetrySweepSeconds = 20
	}
	if cfg.Payments.RefundWindowHours == 0 {
		cfg.Payments.RefundWindowHours = 72
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.name is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// Redis
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		problems = append(problems, "redis.port must be in 1..65535")
	}

	// Services
	if c.Services.RideServicePort <= 0 || c.Services.RideServicePort > 65535 {
		problems = append(problems, "services.ride_service must be in 1..65535")
	}
	if c.Services.PaymentServicePort <= 0 || c.Services.PaymentServicePort > 65535 {
		problems = append(problems, "services.payment_service must be in 1..65535")
	}

	// Timeouts
	if c.Timeouts.RequestGraceSeconds < 0 ||
		c.Timeouts.DriverSearchSeconds < 0 ||
		c.Timeouts.DriverArrivalSeconds < 0 ||
		c.Timeouts.NoShowSeconds < 0 ||
		c.Timeouts.MaxRideDurationSeconds < 0 {
		problems = append(problems, "timeouts must not be negative")
	}
	if c.Timeouts.SweepIntervalSeconds <= 0 {
		problems = append(problems, "timeouts.sweep_interval must be positive")
	}

	// Payments
	if c.Payments.MaxRetries < 0 {
		problems = append(problems, "payments.max_retries must not be negative")
	}
	if c.Payments.RetryBaseSeconds <= 0 {
		problems = append(problems, "payments.retry_base_seconds must be positive")
	}
	if c.Payments.MaxRefundAmount < 0 {
		problems = append(problems, "payments.max_refund_amount must not be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// RequestGrace returns the REQUESTED state deadline as a duration.
func (c *Config) RequestGrace() time.Duration {
	return time.Duration(c.Timeouts.RequestGraceSeconds) * time.Second
}

// DriverSearch returns the SEARCHING_DRIVER state deadline as a duration.
func (c *Config) DriverSearch() time.Duration {
	return time.Duration(c.Timeouts.DriverSearchSeconds) * time.Second
}

// DriverArrival returns the DRIVER_ASSIGNED state deadline as a duration.
func (c *Config) DriverArrival() time.Duration {
	return time.Duration(c.Timeouts.DriverArrivalSeconds) * time.Second
}

// NoShow returns the DRIVER_ARRIVED state deadline as a duration.
func (c *Config) NoShow() time.Duration {
	return time.Duration(c.Timeouts.NoShowSeconds) * time.Second
}

// MaxRideDuration returns the STARTED state deadline as a duration.
func (c *Config) MaxRideDuration() time.Duration {
	return time.Duration(c.Timeouts.MaxRideDurationSeconds) * time.Second
}
