package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by BELLWETHER_ENV (or .env by
// default), then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("BELLWETHER_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// APIKey returns the static bearer key protecting the v1 API.
// An empty key disables authentication.
func APIKey() string {
	return os.Getenv("API_KEY")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// AggregationInterval returns the index computation tick.
// Defaults to 10s if not set.
func AggregationInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("AGGREGATION_INTERVAL"))
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ExpiryInterval returns the market expiry sweep tick.
// Defaults to 1m if not set.
func ExpiryInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("EXPIRY_INTERVAL"))
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// OracleProvider returns the configured signal oracle provider.
// Defaults to "http" if not set.
// Valid values: http, mock
func OracleProvider() string {
	p := os.Getenv("ORACLE_PROVIDER")
	if p == "" {
		return "http"
	}
	return p
}

// OracleEndpoints returns the comma-separated oracle feed URLs.
func OracleEndpoints() string {
	return os.Getenv("ORACLE_ENDPOINTS")
}

// OraclePollInterval returns the oracle polling tick.
// Defaults to 30s if not set.
func OraclePollInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("ORACLE_POLL_INTERVAL"))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
