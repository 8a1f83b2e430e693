package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Zerodha (primary broker) credentials
	KiteAPIKey     string
	KiteAPISecret  string
	KiteUserID     string
	KitePassword   string
	KiteTOTPSecret string

	// Fallback broker credentials (optional; a broker with no credentials
	// is simply never registered)
	FyersAppID       string
	FyersAccessToken string

	StoxkartAPIKey      string
	StoxkartAccessToken string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	JournalPath   string
	MetricsAddr   string

	// Desk behaviour
	DefaultBroker string
	TickInterval  time.Duration
	PaperTrading  bool

	// Alerts (optional)
	TelegramBotToken string
	TelegramChatID   string
	AlertWebhookURL  string
}

// Load reads configuration from environment variables with sensible defaults.
// In paper-trading mode no broker credentials are required.
func Load() *Config {
	cfg := &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", "data/orders.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		DefaultBroker: getEnv("DEFAULT_BROKER", "zerodha"),
		TickInterval:  getDuration("TICK_INTERVAL", 30*time.Second),
		PaperTrading:  getBool("PAPER_TRADING", false),

		FyersAppID:       getEnv("FYERS_APP_ID", ""),
		FyersAccessToken: getEnv("FYERS_ACCESS_TOKEN", ""),

		StoxkartAPIKey:      getEnv("STOXKART_API_KEY", ""),
		StoxkartAccessToken: getEnv("STOXKART_ACCESS_TOKEN", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
	}

	if cfg.PaperTrading {
		cfg.KiteAPIKey = getEnv("KITE_API_KEY", "")
		cfg.KiteAPISecret = getEnv("KITE_API_SECRET", "")
	} else {
		cfg.KiteAPIKey = mustEnv("KITE_API_KEY")
		cfg.KiteAPISecret = mustEnv("KITE_API_SECRET")
	}
	cfg.KiteUserID = getEnv("KITE_USER_ID", "")
	cfg.KitePassword = getEnv("KITE_PASSWORD", "")
	cfg.KiteTOTPSecret = getEnv("KITE_TOTP_SECRET", "")

	return cfg
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
