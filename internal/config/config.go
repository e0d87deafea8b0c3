// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// RedisAddr is the address of the Redis instance backing the session
	// store. Optional; when empty, session state is disabled.
	RedisAddr string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// QuoteSigningSecret keys the HMAC over quote payloads. Required.
	// Process-wide; never derived from request data.
	QuoteSigningSecret string

	// PaymentWebhookSecret keys the HMAC verification of inbound payment
	// provider webhooks. Required.
	PaymentWebhookSecret string

	// PaymentAPIBase and PaymentAPIKey configure the outbound checkout
	// session client. Optional; when PaymentAPIBase is empty no checkout
	// sessions are created and card bookings settle out-of-band.
	PaymentAPIBase string
	PaymentAPIKey  string

	// NotifyURL is the endpoint of the notification gateway invoked after a
	// payment is confirmed. Optional; empty disables notifications.
	NotifyURL string

	// FleetDispatchURL is the endpoint of the external fleet system that
	// receives paid bookings. Optional; calls to it are best-effort.
	FleetDispatchURL string

	// GoogleMapsAPIKey authenticates routing and geocoding calls. Required.
	GoogleMapsAPIKey string

	// Pricing knobs. All amounts are integer pence.
	MinimumFarePence int64
	PerMilePence     int64
	VATBasisPoints   int64
	NightStartHour   int   // local hour at or after which the night uplift applies
	NightPercent     int64 // 150 means 1.5×
	// NightAppliesToFixedFares controls whether the night uplift also applies
	// to fixed zone fares. The default (false) is the documented policy:
	// night pricing is for metered journeys only.
	NightAppliesToFixedFares bool

	// Timezone is the IANA zone used to evaluate the local pickup hour.
	// Defaults to "Europe/London".
	Timezone string

	// ZoneFares maps a lowercase address substring to a fixed fare in pence,
	// e.g. "manchester airport" → 9500. Parsed from ZONE_FARES, format
	// "match=pence;match=pence". Defaults cover the firm's airport runs.
	ZoneFares map[string]int64

	// ExternalTimeoutMS bounds each routing, geocoding, and payment provider
	// call. The pricing fallback chain activates on timeout, not just on
	// hard failure.
	ExternalTimeoutMS int

	// SessionTTLMinutes is the expiry of per-session quote state in Redis.
	SessionTTLMinutes int
}

// defaultZoneFares is the built-in zone override table: fixed fares for the
// airport runs the firm prices by hand, keyed by address substring.
var defaultZoneFares = map[string]int64{
	"manchester airport": 9500,
	"liverpool airport":  11000,
	"leeds bradford":     10500,
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:                     getEnv("PORT", "8080"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		CORSOrigins:              splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		PaymentAPIBase:           os.Getenv("PAYMENT_API_BASE"),
		PaymentAPIKey:            os.Getenv("PAYMENT_API_KEY"),
		NotifyURL:                os.Getenv("NOTIFY_URL"),
		FleetDispatchURL:         os.Getenv("FLEET_DISPATCH_URL"),
		MinimumFarePence:         getEnvInt64("MINIMUM_FARE_PENCE", 500),
		PerMilePence:             getEnvInt64("PER_MILE_PENCE", 250),
		VATBasisPoints:           getEnvInt64("VAT_BPS", 2000),
		NightStartHour:           getEnvInt("NIGHT_START_HOUR", 23),
		NightPercent:             getEnvInt64("NIGHT_PERCENT", 150),
		NightAppliesToFixedFares: getEnvBool("NIGHT_APPLIES_TO_FIXED", false),
		Timezone:                 getEnv("TIMEZONE", "Europe/London"),
		ExternalTimeoutMS:        getEnvInt("EXTERNAL_TIMEOUT_MS", 3000),
		SessionTTLMinutes:        getEnvInt("SESSION_TTL_MIN", 15),
	}

	zones, err := parseZoneFares(os.Getenv("ZONE_FARES"))
	if err != nil {
		return Config{}, fmt.Errorf("config: ZONE_FARES: %w", err)
	}
	cfg.ZoneFares = zones

	var missing []string
	for _, v := range []struct {
		name string
		dst  *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"QUOTE_SIGNING_SECRET", &cfg.QuoteSigningSecret},
		{"PAYMENT_WEBHOOK_SECRET", &cfg.PaymentWebhookSecret},
		{"GOOGLE_MAPS_API_KEY", &cfg.GoogleMapsAPIKey},
	} {
		*v.dst = os.Getenv(v.name)
		if *v.dst == "" {
			missing = append(missing, v.name)
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// ZoneMatches returns the substrings of the zone table in deterministic
// (sorted) order, so that when an address matches more than one zone the
// chosen fare does not depend on map iteration order.
func (c Config) ZoneMatches() []string {
	keys := make([]string, 0, len(c.ZoneFares))
	for k := range c.ZoneFares {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseZoneFares parses "match=pence;match=pence" into a zone table.
// An empty input returns the built-in defaults.
func parseZoneFares(s string) (map[string]int64, error) {
	if strings.TrimSpace(s) == "" {
		out := make(map[string]int64, len(defaultZoneFares))
		for k, v := range defaultZoneFares {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]int64)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		match, price, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not match=pence", entry)
		}
		match = strings.ToLower(strings.TrimSpace(match))
		pence, err := strconv.ParseInt(strings.TrimSpace(price), 10, 64)
		if err != nil || match == "" || pence <= 0 {
			return nil, fmt.Errorf("entry %q is not match=pence", entry)
		}
		out[match] = pence
	}
	return out, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
