package app

import (
	"os"
	"strconv"
	"time"

	"github.com/sessionkit/sessiond/pkg/jwtx"
)

type Config struct {
	Issuer         string        // Issuer claim for access tokens (default: sessiond)
	DatabaseFile   string        // Path to SQLite database file (default: ./sessiond.db)
	PepperFile     string        // Path to file containing pepper for password hashing (default: ./pepper)
	SigningKeyFile string        // Optional: path to PKCS8 Ed25519 PEM; empty means ephemeral keys
	TransportMode  string        // How tokens travel: cookie or bearer (default: cookie)
	CookieSecure   bool          // Set Secure on session cookies (default: true outside dev)
	RotateRefresh  bool          // Rotate refresh tokens on every refresh (default: true)
	LogoutAll      bool          // Logout ends every session of the user, not just one (default: false)
	AccessTTL      time.Duration // Access token lifetime (default: 15m)
	RefreshTTL     time.Duration // Refresh token lifetime (default: 168h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:         getEnvOrDefault("SESSIOND_ISSUER", "sessiond"),
		DatabaseFile:   getEnvOrDefault("SESSIOND_DATABASE_FILE", "sessiond.db"),
		PepperFile:     getEnvOrDefault("SESSIOND_PEPPER_FILE", "pepper"),
		SigningKeyFile: os.Getenv("SESSIOND_SIGNING_KEY_FILE"),
		TransportMode:  getEnvOrDefault("SESSIOND_TRANSPORT_MODE", "cookie"),
		RotateRefresh:  getEnvBoolOrDefault("SESSIOND_ROTATE_REFRESH", true),
		LogoutAll:      getEnvBoolOrDefault("SESSIOND_LOGOUT_ALL_SESSIONS", false),
		AccessTTL:      getEnvDurationOrDefault("SESSIOND_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:     getEnvDurationOrDefault("SESSIOND_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// Cookies go out without Secure only in local dev, unless overridden.
	cfg.CookieSecure = getEnvBoolOrDefault("SESSIOND_COOKIE_SECURE", cfg.Env != "dev")

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
