package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"taixiu/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP API
	HTTPAddr string

	// Telegram configuration
	TelegramBotToken       string
	TelegramAnnounceChatID int64  // Chat that receives round announcements, 0 disables them
	WebAppURL              string // Mini-app URL attached to the /start button
	AdminTelegramIDs       []int64

	// Game configuration, amounts in minor units
	StartingBalance int64
	MinBet          int64
	MaxBet          int64 // 0 means no upper limit
	WinMultiplier   decimal.Decimal
	BettingWindow   time.Duration
	Cooldown        time.Duration

	// NATS configuration
	NATSServers string // empty disables event export

	// Redis configuration
	RedisAddr     string // empty disables bet rate limiting
	RedisPassword string
	RedisDB       int
	BetRateLimit  int // bets per user per second

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // console, otlp or none
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int
	OTelServiceName          string

	// Logging
	LogLevel  string
	LogFormat string // text or json

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsAdminID reports whether the Telegram ID is configured as an administrator
func (c *Config) IsAdminID(telegramID int64) bool {
	for _, id := range c.AdminTelegramIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STARTING_BALANCE", 100000) // 1000.00
	v.SetDefault("MIN_BET", 100)             // 1.00
	v.SetDefault("MAX_BET", 0)
	v.SetDefault("WIN_MULTIPLIER", "1.95")
	v.SetDefault("BETTING_WINDOW", "30s")
	v.SetDefault("COOLDOWN", "15s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BET_RATE_LIMIT", 5)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_TYPE", "console")
	v.SetDefault("OTEL_OTLP_ENDPOINT", "otel-collector:4317")
	v.SetDefault("OTEL_EXPORT_INTERVAL_MS", 30000)
	v.SetDefault("OTEL_SERVICE_NAME", "taixiu")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("ENVIRONMENT", "development")
	return v
}

// load loads configuration from environment variables
func load() (*Config, error) {
	v := newViper()

	config := &Config{
		DatabaseURL:  v.GetString("DATABASE_URL"),
		DatabaseName: v.GetString("DATABASE_NAME"),

		HTTPAddr: v.GetString("HTTP_ADDR"),

		TelegramBotToken:       v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramAnnounceChatID: v.GetInt64("TELEGRAM_ANNOUNCE_CHAT_ID"),
		WebAppURL:              v.GetString("WEBAPP_URL"),

		StartingBalance: v.GetInt64("STARTING_BALANCE"),
		MinBet:          v.GetInt64("MIN_BET"),
		MaxBet:          v.GetInt64("MAX_BET"),
		BettingWindow:   v.GetDuration("BETTING_WINDOW"),
		Cooldown:        v.GetDuration("COOLDOWN"),

		NATSServers: v.GetString("NATS_SERVERS"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		BetRateLimit:  v.GetInt("BET_RATE_LIMIT"),

		OTelEnabled:              v.GetBool("OTEL_ENABLED"),
		OTelExporterType:         v.GetString("OTEL_EXPORTER_TYPE"),
		OTelOTLPEndpoint:         v.GetString("OTEL_OTLP_ENDPOINT"),
		OTelExportIntervalMillis: v.GetInt("OTEL_EXPORT_INTERVAL_MS"),
		OTelServiceName:          v.GetString("OTEL_SERVICE_NAME"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		Environment: v.GetString("ENVIRONMENT"),
	}

	multiplier, err := decimal.NewFromString(v.GetString("WIN_MULTIPLIER"))
	if err != nil {
		return nil, fmt.Errorf("invalid WIN_MULTIPLIER: %w", err)
	}
	config.WinMultiplier = multiplier

	config.AdminTelegramIDs = parseIDList(v.GetString("ADMIN_TELEGRAM_IDS"))

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if !c.WinMultiplier.GreaterThan(decimal.NewFromInt(1)) || !c.WinMultiplier.LessThan(decimal.NewFromInt(2)) {
		return fmt.Errorf("WIN_MULTIPLIER must be between 1 and 2 (exclusive), got %s", c.WinMultiplier)
	}
	if c.BettingWindow <= 0 {
		return fmt.Errorf("BETTING_WINDOW must be positive")
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("COOLDOWN cannot be negative")
	}
	if c.MinBet <= 0 {
		return fmt.Errorf("MIN_BET must be positive")
	}
	if c.MaxBet != 0 && c.MaxBet < c.MinBet {
		return fmt.Errorf("MAX_BET must be zero or at least MIN_BET")
	}

	if c.Environment != "test" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
			return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}
	return nil
}

// parseIDList parses a comma-separated list of Telegram IDs, skipping invalid entries
func parseIDList(raw string) []int64 {
	var ids []int64
	for _, idStr := range strings.Split(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:      "test",
		HTTPAddr:         ":0",
		StartingBalance:  100000,
		MinBet:           1,
		WinMultiplier:    decimal.RequireFromString("1.95"),
		BettingWindow:    30 * time.Second,
		Cooldown:         15 * time.Second,
		AdminTelegramIDs: []int64{999999},
		BetRateLimit:     5,
		OTelExporterType: "none",
		OTelServiceName:  "taixiu-test",
		LogLevel:         "debug",
		LogFormat:        "text",
	}
}
