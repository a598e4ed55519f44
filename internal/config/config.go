// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// BrokerConfig holds venue credentials and environment selection
type BrokerConfig struct {
	Name      string // sim or bybit
	APIKey    string
	APISecret string
	Category  string // spot, linear, inverse
	Testnet   bool
	Demo      bool
}

// Config is the full runtime configuration
type Config struct {
	Broker BrokerConfig

	// Trading
	Capital        float64
	RiskParamsFile string
	PollInterval   time.Duration

	// Observability
	LogDir      string
	MetricsPort int
	HealthPort  int
	ReportDir   string
}

// Load reads configuration from an optional .env file and the environment
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		Broker: BrokerConfig{
			Name:      getEnv("BROKER", "sim"),
			APIKey:    os.Getenv("BYBIT_API_KEY"),
			APISecret: os.Getenv("BYBIT_API_SECRET"),
			Category:  getEnv("BYBIT_CATEGORY", "spot"),
			Testnet:   getEnvBool("BYBIT_TESTNET", false),
			Demo:      getEnvBool("BYBIT_DEMO", true),
		},
		Capital:        getEnvFloat("TRADING_CAPITAL", 100000),
		RiskParamsFile: getEnv("RISK_PARAMS_FILE", ""),
		PollInterval:   getEnvDuration("ORDER_POLL_INTERVAL", 100*time.Millisecond),
		LogDir:         getEnv("LOG_DIR", "logs"),
		MetricsPort:    getEnvInt("METRICS_PORT", 8080),
		HealthPort:     getEnvInt("HEALTH_PORT", 8081),
		ReportDir:      getEnv("REPORT_DIR", "reports"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch strings.ToLower(c.Broker.Name) {
	case "sim":
	case "bybit":
		var missing []string
		if c.Broker.APIKey == "" {
			missing = append(missing, "BYBIT_API_KEY")
		}
		if c.Broker.APISecret == "" {
			missing = append(missing, "BYBIT_API_SECRET")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown broker %q (expected sim or bybit)", c.Broker.Name)
	}

	if c.Capital <= 0 {
		return fmt.Errorf("TRADING_CAPITAL must be positive, got %.2f", c.Capital)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("ORDER_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	return nil
}

// loadEnvFile loads a .env file when present; a missing file is not an error
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
