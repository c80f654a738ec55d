package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/solana"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/risk"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/venue"
)

// Config holds all configuration for the bot
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Database
	DatabasePath string

	// Venues
	BagsAPIURL      string
	BagsAPIKey      string
	JupiterAPIURL   string
	JupiterPriceURL string
	SolanaRPCURL    string
	VenueTimeout    time.Duration

	// Wallet
	WalletAddress string
	SignerURL     string // external signing service, required for live trading
	SignerAPIKey  string

	// Trading
	DefaultSlippageBps  int
	DefaultTPPercent    decimal.Decimal
	DefaultSLPercent    decimal.Decimal
	DefaultTrailPercent decimal.Decimal // zero disables trailing stops by default

	// Exits
	AutoExecuteExits bool
	MonitorInterval  time.Duration

	// Kill switch
	MaxConsecutiveLosses int
	KillSwitchCooldown   time.Duration

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Metrics
	MetricsAddr string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Mode
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		// Database
		DatabasePath: getEnv("DATABASE_PATH", "data/jarvis.db"),

		// Venues
		BagsAPIURL:      getEnv("BAGS_API_URL", venue.BagsDefaultURL),
		BagsAPIKey:      os.Getenv("BAGS_API_KEY"),
		JupiterAPIURL:   getEnv("JUPITER_API_URL", venue.JupiterDefaultURL),
		JupiterPriceURL: getEnv("JUPITER_PRICE_URL", venue.JupiterPriceURL),
		SolanaRPCURL:    getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		VenueTimeout:    getEnvDuration("VENUE_TIMEOUT", venue.DefaultTimeout),

		// Wallet
		WalletAddress: os.Getenv("WALLET_ADDRESS"),
		SignerURL:     os.Getenv("SIGNER_URL"),
		SignerAPIKey:  os.Getenv("SIGNER_API_KEY"),

		// Trading
		DefaultSlippageBps:  getEnvInt("DEFAULT_SLIPPAGE_BPS", 100),
		DefaultTPPercent:    getEnvDecimal("DEFAULT_TP_PERCENT", decimal.NewFromInt(50)),
		DefaultSLPercent:    getEnvDecimal("DEFAULT_SL_PERCENT", decimal.NewFromInt(20)),
		DefaultTrailPercent: getEnvDecimal("DEFAULT_TRAIL_PERCENT", decimal.Zero),

		// Exits
		AutoExecuteExits: getEnvBool("AUTO_EXECUTE_EXITS", false),
		MonitorInterval:  getEnvDuration("MONITOR_INTERVAL", 30*time.Second),

		// Kill switch
		MaxConsecutiveLosses: getEnvInt("MAX_CONSECUTIVE_LOSSES", 5),
		KillSwitchCooldown:   getEnvDuration("KILL_SWITCH_COOLDOWN", time.Hour),

		// Telegram
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Metrics
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	// Venues build the transaction for this pubkey even in paper mode.
	if c.WalletAddress == "" {
		return fmt.Errorf("WALLET_ADDRESS is required")
	}
	if err := solana.ValidateWallet(c.WalletAddress); err != nil {
		return fmt.Errorf("invalid WALLET_ADDRESS: %w", err)
	}
	if !c.DryRun && c.SignerURL == "" {
		return fmt.Errorf("SIGNER_URL is required when DRY_RUN=false")
	}
	if c.DefaultSlippageBps <= 0 || c.DefaultSlippageBps > 10000 {
		return fmt.Errorf("DEFAULT_SLIPPAGE_BPS must be in (0, 10000], got %d", c.DefaultSlippageBps)
	}
	if err := risk.ValidateThresholds(c.DefaultTPPercent, c.DefaultSLPercent); err != nil {
		return fmt.Errorf("default thresholds: %w", err)
	}
	if c.DefaultTrailPercent.IsNegative() || c.DefaultTrailPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("DEFAULT_TRAIL_PERCENT must be in [0, 100), got %s", c.DefaultTrailPercent)
	}
	if c.VenueTimeout <= 0 || c.VenueTimeout > 30*time.Second {
		return fmt.Errorf("VENUE_TIMEOUT must be in (0, 30s], got %s", c.VenueTimeout)
	}
	if c.MonitorInterval < time.Second {
		return fmt.Errorf("MONITOR_INTERVAL must be at least 1s, got %s", c.MonitorInterval)
	}
	if c.MaxConsecutiveLosses < 0 {
		return fmt.Errorf("MAX_CONSECUTIVE_LOSSES must not be negative")
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// TelegramEnabled reports whether alerts should be pushed to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
