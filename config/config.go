package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ExchangeConfig     ExchangeConfig     `json:"exchange"`
	MarketDataConfig   MarketDataConfig   `json:"market_data"`
	TradingConfig      TradingConfig      `json:"trading"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	NotificationConfig NotificationConfig `json:"notification"`
	BotConfig          BotConfig          `json:"bot"`
	ServerConfig       ServerConfig       `json:"server"`
	AuthConfig         AuthConfig         `json:"auth"`
	VaultConfig        VaultConfig        `json:"vault"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ExchangeConfig holds futures exchange connectivity settings
type ExchangeConfig struct {
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	BaseURL    string `json:"base_url"`
	TestNet    bool   `json:"testnet"`
	SendOrders bool   `json:"send_orders"` // Kill switch: false runs signal bookkeeping only
}

// MarketDataConfig holds snapshot feed settings
type MarketDataConfig struct {
	Symbol           string `json:"symbol"`
	Interval         string `json:"interval"` // e.g. "1h"
	IndicatorURL     string `json:"indicator_url"`
	StreamURL        string `json:"stream_url"` // Mark price websocket endpoint
	PollSeconds      int    `json:"poll_seconds"`
	FirstMinuteCheck bool   `json:"first_minute_check"` // Only poll during the first minute of the hour
}

// TradingConfig holds decision engine settings shared by all strategies
type TradingConfig struct {
	InitialCapital  float64 `json:"initial_capital"`
	TakerFeeRate    float64 `json:"taker_fee_rate"`
	MakerFeeRate    float64 `json:"maker_fee_rate"`
	ErrorBackoffSec int     `json:"error_backoff_sec"` // Wait after a failed tick body
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for the position state cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"` // Fallback chat for broadcast messages
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// BotConfig holds the interactive Telegram command bot settings
type BotConfig struct {
	Enabled        bool   `json:"enabled"`
	Token          string `json:"token"`
	PollTimeoutSec int    `json:"poll_timeout_sec"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	AdminUser           string        `json:"admin_user"`
	AdminPasswordHash   string        `json:"admin_password_hash"` // bcrypt hash
}

// VaultConfig holds HashiCorp Vault settings for exchange API keys
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Exchange config
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.ExchangeConfig.SecretKey)
	cfg.ExchangeConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.ExchangeConfig.BaseURL)
	if cfg.ExchangeConfig.BaseURL == "" {
		cfg.ExchangeConfig.BaseURL = "https://fapi.binance.com"
	}
	cfg.ExchangeConfig.TestNet = getEnvOrDefault("EXCHANGE_TESTNET", "false") == "true"
	cfg.ExchangeConfig.SendOrders = getEnvOrDefault("EXCHANGE_SEND_ORDERS", "false") == "true"

	// Market data config
	cfg.MarketDataConfig.Symbol = getEnvOrDefault("MARKET_SYMBOL", defaultString(cfg.MarketDataConfig.Symbol, "BTCUSDT"))
	cfg.MarketDataConfig.Interval = getEnvOrDefault("MARKET_INTERVAL", defaultString(cfg.MarketDataConfig.Interval, "1h"))
	cfg.MarketDataConfig.IndicatorURL = getEnvOrDefault("MARKET_INDICATOR_URL", cfg.MarketDataConfig.IndicatorURL)
	cfg.MarketDataConfig.StreamURL = getEnvOrDefault("MARKET_STREAM_URL", defaultString(cfg.MarketDataConfig.StreamURL, "wss://fstream.binance.com/ws"))
	cfg.MarketDataConfig.PollSeconds = getEnvIntOrDefault("MARKET_POLL_SECONDS", 60)
	cfg.MarketDataConfig.FirstMinuteCheck = getEnvOrDefault("MARKET_FIRST_MINUTE_CHECK", "true") == "true"

	// Trading config
	cfg.TradingConfig.InitialCapital = getEnvFloatOrDefault("TRADING_INITIAL_CAPITAL", 1000.0)
	cfg.TradingConfig.TakerFeeRate = getEnvFloatOrDefault("TRADING_TAKER_FEE_RATE", 0.0004)
	cfg.TradingConfig.MakerFeeRate = getEnvFloatOrDefault("TRADING_MAKER_FEE_RATE", 0.0002)
	cfg.TradingConfig.ErrorBackoffSec = getEnvIntOrDefault("TRADING_ERROR_BACKOFF_SEC", 300)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "true") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultString(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "rsi_trend_trader"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", "false") == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Bot config
	cfg.BotConfig.Enabled = getEnvOrDefault("BOT_ENABLED", "false") == "true"
	cfg.BotConfig.Token = getEnvOrDefault("BOT_TOKEN", defaultString(cfg.BotConfig.Token, cfg.NotificationConfig.Telegram.BotToken))
	cfg.BotConfig.PollTimeoutSec = getEnvIntOrDefault("BOT_POLL_TIMEOUT_SEC", 30)

	// Server config
	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", "true") == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Auth config
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "false") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 24*time.Hour)
	cfg.AuthConfig.AdminUser = getEnvOrDefault("AUTH_ADMIN_USER", defaultString(cfg.AuthConfig.AdminUser, "admin"))
	cfg.AuthConfig.AdminPasswordHash = getEnvOrDefault("AUTH_ADMIN_PASSWORD_HASH", cfg.AuthConfig.AdminPasswordHash)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultString(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultString(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultString(cfg.VaultConfig.SecretPath, "rsi-trend-trader/api-keys"))
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ExchangeConfig: ExchangeConfig{
			APIKey:     "your_api_key_here",
			SecretKey:  "your_secret_key_here",
			BaseURL:    "https://fapi.binance.com",
			TestNet:    true,
			SendOrders: false,
		},
		MarketDataConfig: MarketDataConfig{
			Symbol:           "BTCUSDT",
			Interval:         "1h",
			StreamURL:        "wss://fstream.binance.com/ws",
			PollSeconds:      60,
			FirstMinuteCheck: true,
		},
		TradingConfig: TradingConfig{
			InitialCapital:  1000.0,
			TakerFeeRate:    0.0004,
			MakerFeeRate:    0.0002,
			ErrorBackoffSec: 300,
		},
		DatabaseConfig: DatabaseConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "rsi_trend_trader",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		NotificationConfig: NotificationConfig{
			Enabled: false,
			Telegram: TelegramConfig{
				Enabled: false,
			},
			Discord: DiscordConfig{
				Enabled: false,
			},
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
