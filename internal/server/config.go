package server

import (
	"os"
	"time"
)

// Config holds server configuration from environment variables.
type Config struct {
	Port     string
	GRPCPort string
	NatsURL  string

	// Timezone is applied to the default policy's quiet hours when no
	// stored policy exists yet.
	Timezone string

	ImportInterval   time.Duration
	DispatchInterval time.Duration
	CleanupInterval  time.Duration

	// DispatchTimeout bounds one notifier call during a sweep.
	DispatchTimeout time.Duration
	// CleanupGrace is how long past its report time a key is retained.
	CleanupGrace time.Duration

	// NotifierMode selects the delivery transport: "simulate" or "webhook".
	NotifierMode string
	WebhookURL   string

	// PairingFeedURL is the upstream JSON feed of upcoming pairings.
	// Empty disables the import job; keys can still be registered directly.
	PairingFeedURL string
	FeedTimeout    time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadConfig reads configuration from environment variables with defaults.
// The job cadence defaults mirror the stock deployment: import every
// minute, dispatch tick every 30s, cleanup every 30m.
func LoadConfig() Config {
	return Config{
		Port:     getEnv("DW_PORT", "8080"),
		GRPCPort: getEnv("DW_GRPC_PORT", "9090"),
		NatsURL:  getEnv("NATS_URL", "nats://localhost:4222"),

		Timezone: getEnv("DW_TIMEZONE", ""),

		ImportInterval:   getEnvDuration("DW_IMPORT_INTERVAL", time.Minute),
		DispatchInterval: getEnvDuration("DW_DISPATCH_INTERVAL", 30*time.Second),
		CleanupInterval:  getEnvDuration("DW_CLEANUP_INTERVAL", 30*time.Minute),

		DispatchTimeout: getEnvDuration("DW_DISPATCH_TIMEOUT", 10*time.Second),
		CleanupGrace:    getEnvDuration("DW_CLEANUP_GRACE", 24*time.Hour),

		NotifierMode: getEnv("DW_NOTIFIER", "simulate"),
		WebhookURL:   getEnv("DW_WEBHOOK_URL", ""),

		PairingFeedURL: getEnv("DW_PAIRING_FEED_URL", ""),
		FeedTimeout:    getEnvDuration("DW_FEED_TIMEOUT", 10*time.Second),

		ReadTimeout:     getEnvDuration("DW_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getEnvDuration("DW_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("DW_IDLE_TIMEOUT", 2*time.Minute),
		ShutdownTimeout: getEnvDuration("DW_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
