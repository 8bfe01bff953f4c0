package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	ServiceName string
	AppEnv      string
	Port        string
	LogLevel    string
	LogFile     string

	GatewayCeiling          int64
	GatewayKnownUsers       []string
	GatewayDeclinedUsers    []string
	GatewayPendingThreshold int64

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	OutcomeArchiveKey string
	OutcomeArchiveCap int64

	OTLPEndpoint    string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return fromKoanf(k)
}

// MustLoad is Load for process bootstrap.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests builds a Config from explicit values without touching the process environment.
func LoadForTests(values map[string]string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	var errs []string
	intVal := func(key string, fallback int64) int64 {
		raw := strings.TrimSpace(k.String(key))
		if raw == "" {
			return fallback
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, raw))
			return fallback
		}
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s: must not be negative", key))
			return fallback
		}
		return v
	}

	cfg := &Config{
		ServiceName: valueOrDefault(k.String("SERVICE_NAME"), "payfacade"),
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "dev"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		LogLevel:    valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFile:     strings.TrimSpace(k.String("LOG_FILE")),

		GatewayCeiling:          intVal("GATEWAY_CEILING", 20000),
		GatewayKnownUsers:       splitAndTrim(k.String("GATEWAY_KNOWN_USERS")),
		GatewayDeclinedUsers:    splitAndTrim(k.String("GATEWAY_DECLINED_USERS")),
		GatewayPendingThreshold: intVal("GATEWAY_PENDING_THRESHOLD", 0),

		RedisAddr:         strings.TrimSpace(k.String("REDIS_ADDR")),
		RedisPassword:     k.String("REDIS_PASSWORD"),
		RedisDB:           int(intVal("REDIS_DB", 0)),
		OutcomeArchiveKey: valueOrDefault(k.String("OUTCOME_ARCHIVE_KEY"), "payfacade:outcomes"),
		OutcomeArchiveCap: intVal("OUTCOME_ARCHIVE_CAP", 1000),

		OTLPEndpoint: strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	timeout, err := time.ParseDuration(valueOrDefault(k.String("SHUTDOWN_TIMEOUT"), "10s"))
	if err != nil || timeout <= 0 {
		errs = append(errs, fmt.Sprintf("SHUTDOWN_TIMEOUT: %q is not a positive duration", k.String("SHUTDOWN_TIMEOUT")))
		timeout = 10 * time.Second
	}
	cfg.ShutdownTimeout = timeout

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// ArchiveEnabled reports whether outcome entries should be copied to Redis.
func (c *Config) ArchiveEnabled() bool { return c.RedisAddr != "" }

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}
