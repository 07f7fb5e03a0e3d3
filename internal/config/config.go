package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Env            string
	BaseURL        string
	DatabaseURL    string
	RedisURL       string
	LogFile        string
	TLS            bool
	TOTPIssuer     string
	TrustedProxies []string

	JWTSecret        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	AccessCookieTTL  time.Duration
	RefreshCookieTTL time.Duration
	ResetTokenTTL    time.Duration

	Email EmailConfig
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Secure   bool
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

func (c Config) Production() bool {
	return c.Env == "production"
}

// Load reads the environment once at startup. Nothing else in the process
// consults env vars; the token service and handlers receive this struct.
func Load() (Config, error) {
	clean := func(val string) string {
		return strings.Trim(val, "\"' \t\r\n")
	}

	rawPort := strings.Trim(getenvDefault("EMAIL_SERVER_PORT", "587"), "\"' ")
	emailPort, err := strconv.Atoi(rawPort)
	if err != nil {
		emailPort = 587
	}

	cfg := Config{
		Port:           getenvDefault("PORT", "8080"),
		Env:            getenvDefault("APP_ENV", "development"),
		BaseURL:        getenvDefault("APP_BASE_URL", "http://localhost:8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getenvDefault("REDIS_URL", "redis://localhost:6379"),
		LogFile:        getenvDefault("LOG_FILE", "logs/server.log"),
		TLS:            parseBool(os.Getenv("TLS_ENABLED")),
		TOTPIssuer:     getenvDefault("TOTP_ISSUER", "My Tours"),
		TrustedProxies: parseList(os.Getenv("TRUSTED_PROXIES")),

		JWTSecret:        os.Getenv("JWT_SECRET_KEY"),
		AccessTokenTTL:   getenvDuration("ACCESS_TOKEN_EXPIRES_IN", time.Hour),
		RefreshTokenTTL:  getenvDuration("REFRESH_TOKEN_EXPIRES_IN", 30*24*time.Hour),
		AccessCookieTTL:  getenvDuration("ACCESS_COOKIE_EXPIRES_IN", 24*time.Hour),
		RefreshCookieTTL: getenvDuration("REFRESH_COOKIE_EXPIRES_IN", 30*24*time.Hour),
		ResetTokenTTL:    getenvDuration("RESET_TOKEN_EXPIRES_IN", 10*time.Minute),
	}

	cfg.Email = EmailConfig{
		Host:     clean(os.Getenv("EMAIL_SERVER_HOST")),
		Port:     emailPort,
		Username: clean(os.Getenv("EMAIL_SERVER_USER")),
		Password: clean(os.Getenv("EMAIL_SERVER_PASSWORD")),
		From:     clean(os.Getenv("EMAIL_FROM")),
		Secure:   parseBool(os.Getenv("EMAIL_SERVER_SECURE")),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET_KEY is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseBool(val string) bool {
	if val == "" {
		return false
	}
	val = strings.ToLower(strings.Trim(val, "\"' "))
	return val == "1" || val == "true" || val == "yes"
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
