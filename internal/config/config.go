package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"taskmanager/internal/domain"
)

const (
	defaultPort           = "8000"
	defaultRequestTimeout = "10s"
	defaultLedgerBackend  = LedgerSQL
	defaultRedisPrefix    = "tm"
	defaultEventsTopic    = "auth-events"
	defaultLogLevel       = "info"
)

const (
	LedgerSQL   = "sql"
	LedgerRedis = "redis"
)

type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	LogLevel           string
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
	TrustedProxies     []string

	Ledger LedgerConfig
	Events EventsConfig
	Auth   *AuthRuntimeConfig
}

type LedgerConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// EventsConfig is empty of brokers when auth events are disabled.
type EventsConfig struct {
	KafkaBrokers []string
	Topic        string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: load .env: %v", domain.ErrConfiguration, err)
	}

	auth, err := LoadAuthRuntimeConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:      auth.AppEnv,
		Port:        strings.TrimSpace(getEnv("APP_PORT", defaultPort)),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogLevel:    strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)),
		Auth:        auth,
		Ledger: LedgerConfig{
			Backend:       strings.ToLower(strings.TrimSpace(getEnv("LEDGER_BACKEND", defaultLedgerBackend))),
			RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisPrefix:   strings.TrimSpace(getEnv("REDIS_PREFIX", defaultRedisPrefix)),
		},
		Events: EventsConfig{
			KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
			Topic:        strings.TrimSpace(getEnv("AUTH_EVENTS_TOPIC", defaultEventsTopic)),
		},
	}

	origins := CSV(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if frontend := strings.TrimSpace(os.Getenv("FRONTEND_URL")); frontend != "" {
		origins = append(origins, frontend)
	}
	cfg.CORSAllowedOrigins = origins
	cfg.TrustedProxies = CSV(os.Getenv("TRUSTED_PROXIES"))

	cfg.RequestTimeout, err = parseDurationEnv("REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return nil, err
	}

	cfg.Ledger.RedisDB, err = parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether AppEnv names a production-like environment.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL must be set", domain.ErrConfiguration)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("%w: REQUEST_TIMEOUT must be > 0", domain.ErrConfiguration)
	}
	switch cfg.Ledger.Backend {
	case LedgerSQL:
	case LedgerRedis:
		if cfg.Ledger.RedisAddr == "" {
			return fmt.Errorf("%w: REDIS_ADDR must be set when LEDGER_BACKEND=redis", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: LEDGER_BACKEND must be one of: %s, %s", domain.ErrConfiguration, LedgerSQL, LedgerRedis)
	}
	for _, p := range cfg.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("%w: TRUSTED_PROXIES entry %q is not an IP or CIDR", domain.ErrConfiguration, p)
		}
	}
	if len(cfg.Events.KafkaBrokers) > 0 && cfg.Events.Topic == "" {
		return fmt.Errorf("%w: AUTH_EVENTS_TOPIC must not be empty", domain.ErrConfiguration)
	}
	return nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s value %q: %v", domain.ErrConfiguration, name, value, err)
	}
	return d, nil
}

func parseIntEnv(name string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s value %q: %v", domain.ErrConfiguration, name, value, err)
	}
	return n, nil
}
