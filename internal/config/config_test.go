package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "api_key: ${TEST_API_KEY}",
			envVars: map[string]string{
				"TEST_API_KEY": "test_key_123",
			},
			expected: "api_key: test_key_123",
		},
		{
			name:  "expand multiple env vars",
			input: "api_key: ${API_KEY}\nsecret: ${SECRET_KEY}",
			envVars: map[string]string{
				"API_KEY":    "key_value",
				"SECRET_KEY": "secret_value",
			},
			expected: "api_key: key_value\nsecret: secret_value",
		},
		{
			name:     "missing env var returns empty string",
			input:    "api_key: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "api_key: ",
		},
		{
			name:  "mixed static and env vars",
			input: "static_value: 123\napi_key: ${TEST_KEY}",
			envVars: map[string]string{
				"TEST_KEY": "dynamic_key",
			},
			expected: "static_value: 123\napi_key: dynamic_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `log:
  level: "INFO"

cex:
  api_key: "${TEST_CEX_API_KEY}"
  secret_key: "${TEST_CEX_SECRET_KEY}"
  symbol: "ETHUSDT"
  maker_fee: 0.0002
  taker_fee: 0.0004
  price_precision: 2
  quantity_precision: 3

dex:
  private_key: "${TEST_DEX_PRIVATE_KEY}"
  symbol: "ETH"
  maker_fee: 0.0001
  taker_fee: 0.00035
  price_precision: 2
  quantity_precision: 4

strategy:
  order_quantity: 0.01
  open_threshold: 0.5
  close_threshold: 0.3
`

	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_CEX_API_KEY", "test_api_key_from_env")
	os.Setenv("TEST_CEX_SECRET_KEY", "test_secret_key_from_env")
	os.Setenv("TEST_DEX_PRIVATE_KEY", "test_private_key_from_env")
	defer os.Unsetenv("TEST_CEX_API_KEY")
	defer os.Unsetenv("TEST_CEX_SECRET_KEY")
	defer os.Unsetenv("TEST_DEX_PRIVATE_KEY")

	config, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err, "LoadConfig() error")

	assert.Equal(t, "test_api_key_from_env", config.CEX.APIKey)
	assert.Equal(t, "test_secret_key_from_env", config.CEX.SecretKey)
	assert.Equal(t, "test_private_key_from_env", config.DEX.PrivateKey)

	// Omitted fields fall back to defaults
	assert.Equal(t, "https://fapi.binance.com", config.CEX.BaseURL)
	assert.Equal(t, "https://api.hyperliquid.xyz", config.DEX.BaseURL)
	assert.Equal(t, 5, config.Strategy.OrderTimeoutSeconds)
	assert.Equal(t, 3, config.Strategy.MaxChaseAttempts)
	assert.Equal(t, 0.001, config.Strategy.ChaseStep)
	assert.Equal(t, 1000, config.Market.MaxDelayMs)
}

func TestApplyDefaultsTestnetURLs(t *testing.T) {
	cfg := &Config{}
	cfg.DEX.Testnet = true
	cfg.applyDefaults()

	assert.Equal(t, "https://api.hyperliquid-testnet.xyz", cfg.DEX.BaseURL)
	assert.Equal(t, "wss://api.hyperliquid-testnet.xyz/ws", cfg.DEX.WsURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing cex api key",
			mutate:  func(c *Config) { c.CEX.APIKey = "" },
			wantErr: "cex.api_key",
		},
		{
			name:    "missing cex symbol",
			mutate:  func(c *Config) { c.CEX.Symbol = "" },
			wantErr: "cex.symbol",
		},
		{
			name:    "missing dex private key",
			mutate:  func(c *Config) { c.DEX.PrivateKey = "" },
			wantErr: "dex.private_key",
		},
		{
			name:    "fee out of range",
			mutate:  func(c *Config) { c.CEX.TakerFee = 1.5 },
			wantErr: "cex.taker_fee",
		},
		{
			name:    "zero order quantity",
			mutate:  func(c *Config) { c.Strategy.OrderQuantity = 0 },
			wantErr: "strategy.order_quantity",
		},
		{
			name:    "negative open threshold",
			mutate:  func(c *Config) { c.Strategy.OpenThreshold = -1 },
			wantErr: "strategy.open_threshold",
		},
		{
			name:    "order timeout too large",
			mutate:  func(c *Config) { c.Strategy.OrderTimeoutSeconds = 120 },
			wantErr: "strategy.order_timeout_seconds",
		},
		{
			name:    "chase step too large",
			mutate:  func(c *Config) { c.Strategy.ChaseStep = 0.5 },
			wantErr: "strategy.chase_step",
		},
		{
			name:    "max delay too small",
			mutate:  func(c *Config) { c.Market.MaxDelayMs = 10 },
			wantErr: "market.max_delay_ms",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "LOUD" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CEX.APIKey = "my_super_secret_api_key"
	cfg.CEX.SecretKey = "my_super_secret_secret_key"
	cfg.DEX.PrivateKey = "my_super_secret_private_key"

	output := cfg.String()

	assert.Contains(t, output, "********", "output should contain masked characters")
	assert.NotContains(t, output, "my_super_secret_api_key", "output should NOT contain full API key")
	assert.NotContains(t, output, "my_super_secret_secret_key", "output should NOT contain full secret key")
	assert.NotContains(t, output, "my_super_secret_private_key", "output should NOT contain full private key")
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy.OrderTimeoutSeconds = 5
	cfg.Strategy.TickIntervalSeconds = 1
	cfg.Market.MaxDelayMs = 1000

	assert.Equal(t, 5*time.Second, cfg.OrderTimeout())
	assert.Equal(t, time.Second, cfg.TickInterval())
	assert.Equal(t, time.Second, cfg.MaxDelay())
}
