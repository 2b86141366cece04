package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store drivers selectable with STORE_DRIVER.
const (
	StoreDynamoDB = "dynamodb"
	StoreBadger   = "badger"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress  string
	Environment    string
	RequestTimeout time.Duration

	// AWS configuration
	AWSRegion    string
	TableName    string
	EventBusName string

	// Store configuration
	StoreDriver       string
	BadgerPath        string
	CollectorMaxPages int

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Listing
	DefaultListingLimit int

	// Logging
	LogLevel string

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
	OTLPEndpoint  string

	// ConfigFile is the optional YAML overlay.
	ConfigFile string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		ServerAddress:       ":8080",
		Environment:         "development",
		RequestTimeout:      10 * time.Second,
		AWSRegion:           "us-west-2",
		TableName:           "cms",
		EventBusName:        "cms-events",
		StoreDriver:         StoreMemory,
		BadgerPath:          "./data/badger",
		CollectorMaxPages:   1000,
		DefaultListingLimit: 6,
		LogLevel:            "info",
		JWTIssuer:           "cms-backend",
		JWTAudience:         "cms-api",
		EnableCORS:          true,
		OTLPEndpoint:        "localhost:4317",
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by CONFIG_FILE, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	cfg.ConfigFile = getEnv("CONFIG_FILE", "")
	if cfg.ConfigFile != "" {
		overlay, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.Apply(overlay)
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.TableName = getEnv("TABLE_NAME", c.TableName)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.BadgerPath = getEnv("BADGER_PATH", c.BadgerPath)
	c.CollectorMaxPages = getEnvInt("COLLECTOR_MAX_PAGES", c.CollectorMaxPages)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda)
	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", c.LambdaFunctionName)
	if c.LambdaFunctionName != "" {
		c.IsLambda = true
	}

	c.DefaultListingLimit = getEnvInt("DEFAULT_LISTING_LIMIT", c.DefaultListingLimit)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTAudience = getEnv("JWT_AUDIENCE", c.JWTAudience)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDynamoDB, StoreMemory:
	case StoreBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required for the badger store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of %s, %s, %s; got %q", StoreDynamoDB, StoreBadger, StoreMemory, c.StoreDriver)
	}
	if c.DefaultListingLimit <= 0 {
		return fmt.Errorf("DEFAULT_LISTING_LIMIT must be positive")
	}
	if c.CollectorMaxPages <= 0 {
		return fmt.Errorf("COLLECTOR_MAX_PAGES must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StoreDriver != StoreDynamoDB {
			return fmt.Errorf("production requires the %s store", StoreDynamoDB)
		}
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or whole seconds ("15").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
