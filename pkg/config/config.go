package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel    string
	HTTPPort    string
	CORSOrigins []string

	// Gamma API
	GammaAPIURL      string
	MarketsLimit     int
	MarketsActiveTTL time.Duration

	// Sessions
	SessionLimit int

	// Risk model calibration
	RiskVarianceScale    float64
	RiskPortfolioWeight  float64
	RiskIndividualWeight float64
	RiskNeutralPrice     float64

	// Storage
	StorageMode  string // "console", "postgres" or "sqlite"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
	SQLitePath   string
}

// fileConfig mirrors the optional YAML calibration file. Pointer fields
// distinguish "absent" from an explicit zero.
type fileConfig struct {
	Risk struct {
		VarianceScale    *float64 `yaml:"variance_scale"`
		PortfolioWeight  *float64 `yaml:"portfolio_weight"`
		IndividualWeight *float64 `yaml:"individual_weight"`
		NeutralPrice     *float64 `yaml:"neutral_price"`
	} `yaml:"risk"`
}

// Load builds the configuration in three layers: built-in defaults, the
// optional YAML calibration file, then environment variables. Later layers
// win. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		err := cfg.applyFile(path)
		if err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func defaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		HTTPPort:    "8080",
		CORSOrigins: []string{"*"},

		GammaAPIURL:      "https://gamma-api.polymarket.com",
		MarketsLimit:     50,
		MarketsActiveTTL: 30 * time.Second,

		SessionLimit: 100,

		RiskVarianceScale:    400.0,
		RiskPortfolioWeight:  0.7,
		RiskIndividualWeight: 0.3,
		RiskNeutralPrice:     0.5,

		StorageMode:  "console",
		PostgresHost: "localhost",
		PostgresPort: "5432",
		PostgresUser: "polyhedge",
		PostgresPass: "polyhedge123",
		PostgresDB:   "polyhedge",
		PostgresSSL:  "disable",
		SQLitePath:   "polyhedge.db",
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var f fileConfig
	err = yaml.Unmarshal(data, &f)
	if err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	if f.Risk.VarianceScale != nil {
		c.RiskVarianceScale = *f.Risk.VarianceScale
	}
	if f.Risk.PortfolioWeight != nil {
		c.RiskPortfolioWeight = *f.Risk.PortfolioWeight
	}
	if f.Risk.IndividualWeight != nil {
		c.RiskIndividualWeight = *f.Risk.IndividualWeight
	}
	if f.Risk.NeutralPrice != nil {
		c.RiskNeutralPrice = *f.Risk.NeutralPrice
	}

	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.HTTPPort = getEnvOrDefault("HTTP_PORT", c.HTTPPort)
	c.CORSOrigins = getListOrDefault("CORS_ORIGINS", c.CORSOrigins)

	c.GammaAPIURL = getEnvOrDefault("GAMMA_API_URL", c.GammaAPIURL)
	c.MarketsLimit = getIntOrDefault("MARKETS_LIMIT", c.MarketsLimit)
	c.MarketsActiveTTL = getDurationOrDefault("MARKETS_ACTIVE_TTL", c.MarketsActiveTTL)

	c.SessionLimit = getIntOrDefault("SESSION_LIMIT", c.SessionLimit)

	c.RiskVarianceScale = getFloat64OrDefault("RISK_VARIANCE_SCALE", c.RiskVarianceScale)
	c.RiskPortfolioWeight = getFloat64OrDefault("RISK_PORTFOLIO_WEIGHT", c.RiskPortfolioWeight)
	c.RiskIndividualWeight = getFloat64OrDefault("RISK_INDIVIDUAL_WEIGHT", c.RiskIndividualWeight)
	c.RiskNeutralPrice = getFloat64OrDefault("RISK_NEUTRAL_PRICE", c.RiskNeutralPrice)

	c.StorageMode = getEnvOrDefault("STORAGE_MODE", c.StorageMode)
	c.PostgresHost = getEnvOrDefault("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnvOrDefault("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = getEnvOrDefault("POSTGRES_USER", c.PostgresUser)
	c.PostgresPass = getEnvOrDefault("POSTGRES_PASSWORD", c.PostgresPass)
	c.PostgresDB = getEnvOrDefault("POSTGRES_DB", c.PostgresDB)
	c.PostgresSSL = getEnvOrDefault("POSTGRES_SSLMODE", c.PostgresSSL)
	c.SQLitePath = getEnvOrDefault("SQLITE_PATH", c.SQLitePath)
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.GammaAPIURL == "" {
		return fmt.Errorf("GAMMA_API_URL cannot be empty")
	}

	if c.MarketsLimit < 0 {
		return fmt.Errorf("MARKETS_LIMIT must be non-negative (0 = unlimited), got %d", c.MarketsLimit)
	}

	if c.MarketsActiveTTL < 0 {
		return fmt.Errorf("MARKETS_ACTIVE_TTL must be non-negative, got %v", c.MarketsActiveTTL)
	}

	if c.SessionLimit < 1 {
		return fmt.Errorf("SESSION_LIMIT must be at least 1, got %d", c.SessionLimit)
	}

	if c.RiskVarianceScale <= 0 {
		return fmt.Errorf("RISK_VARIANCE_SCALE must be positive, got %f", c.RiskVarianceScale)
	}

	if c.RiskPortfolioWeight < 0 || c.RiskPortfolioWeight > 1 {
		return fmt.Errorf("RISK_PORTFOLIO_WEIGHT must be between 0 and 1, got %f", c.RiskPortfolioWeight)
	}

	if c.RiskIndividualWeight < 0 || c.RiskIndividualWeight > 1 {
		return fmt.Errorf("RISK_INDIVIDUAL_WEIGHT must be between 0 and 1, got %f", c.RiskIndividualWeight)
	}

	if sum := c.RiskPortfolioWeight + c.RiskIndividualWeight; math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("risk weights must sum to 1.0, got %f", sum)
	}

	if c.RiskNeutralPrice <= 0 || c.RiskNeutralPrice >= 1 {
		return fmt.Errorf("RISK_NEUTRAL_PRICE must be between 0 and 1 exclusive, got %f", c.RiskNeutralPrice)
	}

	switch c.StorageMode {
	case "console", "postgres", "sqlite":
	default:
		return fmt.Errorf("STORAGE_MODE must be 'console', 'postgres' or 'sqlite', got %q", c.StorageMode)
	}

	if c.StorageMode == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH cannot be empty when STORAGE_MODE is 'sqlite'")
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}

	return out
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
