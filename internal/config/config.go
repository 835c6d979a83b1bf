package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/veilvogue/marketapi/internal/domain"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	StorageDriver  string
	RequestTimeout time.Duration
	Database       DatabaseConfig
	Auth           AuthConfig
	Cart           CartConfig
	Checkout       CheckoutConfig
	Kafka          KafkaConfig
	Outbox         OutboxConfig
}

type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxOpenConns  int
	RunMigrations bool
}

// DSN returns the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type CartConfig struct {
	CustomizationSurcharge decimal.Decimal
	MaxRetries             int
}

type CheckoutConfig struct {
	// StrictTotals rejects checkouts whose client-side totals disagree with
	// the server computation instead of overriding them.
	StrictTotals bool
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.AutomaticEnv()

	// .env is optional, environment variables are enough
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	surcharge, err := decimal.NewFromString(getEnvOrViper("CUSTOMIZATION_SURCHARGE", "150"))
	if err != nil {
		return nil, fmt.Errorf("CUSTOMIZATION_SURCHARGE is not a number: %w", err)
	}

	maxOpenConns, err := getIntOrViper("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getIntOrViper("CART_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	batchSize, err := getIntOrViper("OUTBOX_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getDurationOrViper("OUTBOX_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getDurationOrViper("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	runMigrations, err := getBoolOrViper("DB_RUN_MIGRATIONS", true)
	if err != nil {
		return nil, err
	}
	strictTotals, err := getBoolOrViper("CHECKOUT_STRICT_TOTALS", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           getEnvOrViper("PORT", "8080"),
		Environment:    getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:       getEnvOrViper("LOG_LEVEL", "info"),
		StorageDriver:  getEnvOrViper("STORAGE_DRIVER", StorageDriverPostgres),
		RequestTimeout: requestTimeout,
		Database: DatabaseConfig{
			Host:          getEnvOrViper("DB_HOST", "localhost"),
			Port:          getEnvOrViper("DB_PORT", "5432"),
			User:          getEnvOrViper("DB_USER", "postgres"),
			Password:      getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:        getEnvOrViper("DB_NAME", "marketplace"),
			SSLMode:       getEnvOrViper("DB_SSLMODE", "disable"),
			MaxOpenConns:  maxOpenConns,
			RunMigrations: runMigrations,
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrViper("JWT_SECRET", ""),
			Issuer:    getEnvOrViper("JWT_ISSUER", "veilvogue"),
		},
		Cart: CartConfig{
			CustomizationSurcharge: surcharge,
			MaxRetries:             maxRetries,
		},
		Checkout: CheckoutConfig{
			StrictTotals: strictTotals,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnvOrViper("KAFKA_BROKERS", "")),
			Topic:   getEnvOrViper("KAFKA_TOPIC", "order-events"),
		},
		Outbox: OutboxConfig{
			PollInterval: pollInterval,
			BatchSize:    batchSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and ranges
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is required and must be at least 32 characters")
	}
	if c.StorageDriver != StorageDriverPostgres && c.StorageDriver != StorageDriverMemory {
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q",
			StorageDriverPostgres, StorageDriverMemory, c.StorageDriver)
	}
	if c.Cart.CustomizationSurcharge.IsNegative() {
		return fmt.Errorf("CUSTOMIZATION_SURCHARGE must not be negative")
	}
	if !domain.FitsMoneyScale(c.Cart.CustomizationSurcharge) {
		return fmt.Errorf("CUSTOMIZATION_SURCHARGE must have at most %d decimal places", domain.MoneyScale)
	}
	if c.Cart.MaxRetries < 1 {
		return fmt.Errorf("CART_MAX_RETRIES must be at least 1")
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1")
	}
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getIntOrViper(key string, defaultValue int) (int, error) {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getBoolOrViper(key string, defaultValue bool) (bool, error) {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

func getDurationOrViper(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
