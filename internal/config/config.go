// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Log       LogConfig       `yaml:"log"`
	CEX       CEXConfig       `yaml:"cex"`
	DEX       DEXConfig       `yaml:"dex"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Market    MarketConfig    `yaml:"market"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Journal   JournalConfig   `yaml:"journal"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// CEXConfig contains the futures exchange credentials and instrument settings
type CEXConfig struct {
	APIKey            string  `yaml:"api_key"`
	SecretKey         string  `yaml:"secret_key"`
	BaseURL           string  `yaml:"base_url"` // Optional override for the REST API
	WsURL             string  `yaml:"ws_url"`   // Optional override for market streams
	Symbol            string  `yaml:"symbol"`
	MakerFee          float64 `yaml:"maker_fee"`
	TakerFee          float64 `yaml:"taker_fee"`
	PricePrecision    int     `yaml:"price_precision"`
	QuantityPrecision int     `yaml:"quantity_precision"`
}

// DEXConfig contains the onchain perp venue credentials and instrument settings
type DEXConfig struct {
	PrivateKey        string  `yaml:"private_key"`
	WalletAddress     string  `yaml:"wallet_address"`
	BaseURL           string  `yaml:"base_url"`
	WsURL             string  `yaml:"ws_url"`
	Symbol            string  `yaml:"symbol"`
	MakerFee          float64 `yaml:"maker_fee"`
	TakerFee          float64 `yaml:"taker_fee"`
	PricePrecision    int     `yaml:"price_precision"`
	QuantityPrecision int     `yaml:"quantity_precision"`
	Testnet           bool    `yaml:"testnet"`
}

// StrategyConfig contains the arbitrage parameters
type StrategyConfig struct {
	OrderQuantity       float64 `yaml:"order_quantity"`
	OpenThreshold       float64 `yaml:"open_threshold"`
	CloseThreshold      float64 `yaml:"close_threshold"`
	OrderTimeoutSeconds int     `yaml:"order_timeout_seconds"`
	MaxChaseAttempts    int     `yaml:"max_chase_attempts"`
	ChaseStep           float64 `yaml:"chase_step"`
	TickIntervalSeconds int     `yaml:"tick_interval_seconds"`
}

// MarketConfig contains market data settings
type MarketConfig struct {
	MaxDelayMs  int `yaml:"max_delay_ms"`
	DepthLevels int `yaml:"depth_levels"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	EnableMetrics bool `yaml:"enable_metrics"`
	MetricsPort   int  `yaml:"metrics_port"`
}

// JournalConfig contains trade journal settings
type JournalConfig struct {
	Path string `yaml:"path"` // empty disables the journal
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.CEX.BaseURL == "" {
		c.CEX.BaseURL = "https://fapi.binance.com"
	}
	if c.CEX.WsURL == "" {
		c.CEX.WsURL = "wss://fstream.binance.com"
	}
	if c.DEX.BaseURL == "" {
		if c.DEX.Testnet {
			c.DEX.BaseURL = "https://api.hyperliquid-testnet.xyz"
		} else {
			c.DEX.BaseURL = "https://api.hyperliquid.xyz"
		}
	}
	if c.DEX.WsURL == "" {
		if c.DEX.Testnet {
			c.DEX.WsURL = "wss://api.hyperliquid-testnet.xyz/ws"
		} else {
			c.DEX.WsURL = "wss://api.hyperliquid.xyz/ws"
		}
	}
	if c.Strategy.OrderTimeoutSeconds == 0 {
		c.Strategy.OrderTimeoutSeconds = 5
	}
	if c.Strategy.MaxChaseAttempts == 0 {
		c.Strategy.MaxChaseAttempts = 3
	}
	if c.Strategy.ChaseStep == 0 {
		c.Strategy.ChaseStep = 0.001
	}
	if c.Strategy.TickIntervalSeconds == 0 {
		c.Strategy.TickIntervalSeconds = 1
	}
	if c.Market.MaxDelayMs == 0 {
		c.Market.MaxDelayMs = 1000
	}
	if c.Market.DepthLevels == 0 {
		c.Market.DepthLevels = 20
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateLogConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateCEXConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateDEXConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateStrategyConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateMarketConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateLogConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.Log.Level)) {
		return ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateCEXConfig() error {
	if c.CEX.APIKey == "" {
		return ValidationError{
			Field:   "cex.api_key",
			Message: "API key is required",
		}
	}
	if c.CEX.SecretKey == "" {
		return ValidationError{
			Field:   "cex.secret_key",
			Message: "secret key is required",
		}
	}
	if c.CEX.Symbol == "" {
		return ValidationError{
			Field:   "cex.symbol",
			Message: "symbol is required",
		}
	}
	if c.CEX.MakerFee < 0 || c.CEX.MakerFee >= 1 {
		return ValidationError{
			Field:   "cex.maker_fee",
			Value:   c.CEX.MakerFee,
			Message: "must be a fraction in [0, 1)",
		}
	}
	if c.CEX.TakerFee < 0 || c.CEX.TakerFee >= 1 {
		return ValidationError{
			Field:   "cex.taker_fee",
			Value:   c.CEX.TakerFee,
			Message: "must be a fraction in [0, 1)",
		}
	}
	return nil
}

func (c *Config) validateDEXConfig() error {
	if c.DEX.PrivateKey == "" {
		return ValidationError{
			Field:   "dex.private_key",
			Message: "private key is required",
		}
	}
	if c.DEX.Symbol == "" {
		return ValidationError{
			Field:   "dex.symbol",
			Message: "symbol is required",
		}
	}
	if c.DEX.MakerFee < 0 || c.DEX.MakerFee >= 1 {
		return ValidationError{
			Field:   "dex.maker_fee",
			Value:   c.DEX.MakerFee,
			Message: "must be a fraction in [0, 1)",
		}
	}
	if c.DEX.TakerFee < 0 || c.DEX.TakerFee >= 1 {
		return ValidationError{
			Field:   "dex.taker_fee",
			Value:   c.DEX.TakerFee,
			Message: "must be a fraction in [0, 1)",
		}
	}
	return nil
}

func (c *Config) validateStrategyConfig() error {
	if c.Strategy.OrderQuantity <= 0 {
		return ValidationError{
			Field:   "strategy.order_quantity",
			Value:   c.Strategy.OrderQuantity,
			Message: "order quantity must be positive",
		}
	}
	if c.Strategy.OpenThreshold < 0 {
		return ValidationError{
			Field:   "strategy.open_threshold",
			Value:   c.Strategy.OpenThreshold,
			Message: "open threshold must not be negative",
		}
	}
	if c.Strategy.CloseThreshold < 0 {
		return ValidationError{
			Field:   "strategy.close_threshold",
			Value:   c.Strategy.CloseThreshold,
			Message: "close threshold must not be negative",
		}
	}
	if c.Strategy.OrderTimeoutSeconds < 1 || c.Strategy.OrderTimeoutSeconds > 60 {
		return ValidationError{
			Field:   "strategy.order_timeout_seconds",
			Value:   c.Strategy.OrderTimeoutSeconds,
			Message: "must be between 1 and 60",
		}
	}
	if c.Strategy.MaxChaseAttempts < 0 || c.Strategy.MaxChaseAttempts > 10 {
		return ValidationError{
			Field:   "strategy.max_chase_attempts",
			Value:   c.Strategy.MaxChaseAttempts,
			Message: "must be between 0 and 10",
		}
	}
	if c.Strategy.ChaseStep <= 0 || c.Strategy.ChaseStep > 0.1 {
		return ValidationError{
			Field:   "strategy.chase_step",
			Value:   c.Strategy.ChaseStep,
			Message: "must be a fraction in (0, 0.1]",
		}
	}
	if c.Strategy.TickIntervalSeconds < 1 || c.Strategy.TickIntervalSeconds > 60 {
		return ValidationError{
			Field:   "strategy.tick_interval_seconds",
			Value:   c.Strategy.TickIntervalSeconds,
			Message: "must be between 1 and 60",
		}
	}
	return nil
}

func (c *Config) validateMarketConfig() error {
	if c.Market.MaxDelayMs < 100 || c.Market.MaxDelayMs > 60000 {
		return ValidationError{
			Field:   "market.max_delay_ms",
			Value:   c.Market.MaxDelayMs,
			Message: "must be between 100 and 60000",
		}
	}
	return nil
}

// OrderTimeout returns the active order timeout as a duration
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.Strategy.OrderTimeoutSeconds) * time.Second
}

// TickInterval returns the periodic sweep interval as a duration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Strategy.TickIntervalSeconds) * time.Second
}

// MaxDelay returns the market data freshness bound as a duration
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Market.MaxDelayMs) * time.Millisecond
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	configCopy := *c
	configCopy.CEX.APIKey = maskString(configCopy.CEX.APIKey)
	configCopy.CEX.SecretKey = maskString(configCopy.CEX.SecretKey)
	configCopy.DEX.PrivateKey = maskString(configCopy.DEX.PrivateKey)

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		Log: LogConfig{
			Level: "INFO",
		},
		CEX: CEXConfig{
			APIKey:            "test_api_key",
			SecretKey:         "test_secret_key",
			Symbol:            "ETHUSDT",
			MakerFee:          0.0002,
			TakerFee:          0.0004,
			PricePrecision:    2,
			QuantityPrecision: 3,
		},
		DEX: DEXConfig{
			PrivateKey:        "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
			WalletAddress:     "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			Symbol:            "ETH",
			MakerFee:          0.0001,
			TakerFee:          0.00035,
			PricePrecision:    2,
			QuantityPrecision: 4,
		},
		Strategy: StrategyConfig{
			OrderQuantity:       0.01,
			OpenThreshold:       0.5,
			CloseThreshold:      0.3,
			OrderTimeoutSeconds: 5,
			MaxChaseAttempts:    3,
			ChaseStep:           0.001,
			TickIntervalSeconds: 1,
		},
		Market: MarketConfig{
			MaxDelayMs:  1000,
			DepthLevels: 20,
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			MetricsPort:   9090,
		},
		Journal: JournalConfig{
			Path: ":memory:",
		},
	}
	cfg.applyDefaults()
	return cfg
}
