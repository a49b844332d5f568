// Package config loads process configuration. Values come from defaults,
// then an optional YAML file named by CONFIG_FILE, then environment
// variables, each layer overriding the one before.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Persistence
	StoreDriver   string `yaml:"store_driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	AWSRegion     string `yaml:"aws_region"`
	DynamoDBTable string `yaml:"dynamodb_table"`

	// Events
	EventBusName string `yaml:"event_bus_name"`

	// Export cache
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	ExportCacheTTL time.Duration `yaml:"export_cache_ttl"`

	// Language model
	OpenAIKey   string `yaml:"openai_key"`
	OpenAIModel string `yaml:"openai_model"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Feature flags
	EnableMetrics      bool `yaml:"enable_metrics"`
	EnableTracing      bool `yaml:"enable_tracing"`
	EnableCORS         bool `yaml:"enable_cors"`
	AtomicEdgeTransfer bool `yaml:"atomic_edge_transfer"`
	EnableSummary      bool `yaml:"enable_summary"`

	// LoadedFrom lists the sources applied, lowest priority first
	LoadedFrom []string `yaml:"-"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		ServerAddress:  ":8080",
		Environment:    "development",
		StoreDriver:    StoreMemory,
		SQLitePath:     "data/canvas.db",
		AWSRegion:      "us-west-2",
		DynamoDBTable:  "canvas",
		EventBusName:   "",
		ExportCacheTTL: 10 * time.Minute,
		LogLevel:       "info",
		JWTIssuer:      "canvas-backend",
		EnableCORS:     true,
		LoadedFrom:     []string{"defaults"},
	}
}

// LoadConfig loads configuration from CONFIG_FILE and the environment
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	c.LoadedFrom = append(c.LoadedFrom, path)
	return nil
}

func (c *Config) loadEnvironment() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.ExportCacheTTL = getEnvDuration("EXPORT_CACHE_TTL", c.ExportCacheTTL)

	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda) || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.AtomicEdgeTransfer = getEnvBool("ATOMIC_EDGE_TRANSFER", c.AtomicEdgeTransfer)
	c.EnableSummary = getEnvBool("ENABLE_SUMMARY", c.EnableSummary)

	c.LoadedFrom = append(c.LoadedFrom, "environment")
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreDynamoDB:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, sqlite, dynamodb; got %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
	}
	if c.StoreDriver == StoreDynamoDB && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
	}
	if c.EnableSummary && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when ENABLE_SUMMARY is set")
	}
	if c.ExportCacheTTL < 0 {
		return fmt.Errorf("EXPORT_CACHE_TTL must not be negative")
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StoreDriver == StoreMemory {
			return fmt.Errorf("the memory store is not allowed in production")
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
