// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration.  Required values are enforced
// by must()/mustInt(); optional values fall back to sensible defaults.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret string // secret verifying request JWTs

	HoldTTL       time.Duration // how long a fresh hold lives (T)
	CheckoutGrace time.Duration // extension window granted when pausing for checkout
	CookieTTL     time.Duration // hold cookie lifetime; must outlive any single lease
	CookieSecure  bool          // mark the hold cookie Secure (disable only for local dev)

	InventoryBaseURL  string // remote inventory service base URL
	InventoryToken    string // bearer credential for the remote service
	AttendeeBatchSize int    // batch size for attendee reference cleanup
	CapacityCacheTTL  time.Duration // redis cache TTL for capacity reads (0 disables)
}

// Load reads configuration from the environment.  Missing required
// variables abort startup with a fatal log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret: must("JWT_SECRET"),

		HoldTTL:       envDur("HOLD_TTL", 15*time.Minute),
		CheckoutGrace: envDur("CHECKOUT_GRACE", 5*time.Minute),
		CookieTTL:     envDur("HOLD_COOKIE_TTL", 24*time.Hour),
		CookieSecure:  envBool("HOLD_COOKIE_SECURE", true),

		InventoryBaseURL:  must("INVENTORY_BASE_URL"),
		InventoryToken:    must("INVENTORY_API_TOKEN"),
		AttendeeBatchSize: envInt("ATTENDEE_BATCH_SIZE", 100),
		CapacityCacheTTL:  envDur("CAPACITY_CACHE_TTL", 5*time.Second),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
