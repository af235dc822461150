package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	MailTransportSMTP = "smtp"
	MailTransportNATS = "nats"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Config holds everything the server and mail worker read from the environment.
type Config struct {
	Port        string
	StoreDriver string
	DB          DBConfig

	JWTSecret    string
	JWTExpiresIn time.Duration
	ClientURL    string

	MailTransport      string
	SMTP               SMTPConfig
	NatsURL            string
	MailRequestTimeout time.Duration

	RateLimitMax        int
	RateLimitExpiration time.Duration

	OtelEnabled     bool
	OtelEndpoint    string
	OtelSampleRatio float64
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// DSN renders the pgx connection string.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Load reads the process environment. A missing JWT secret or a malformed
// duration is an error rather than a silent default.
func Load() (*Config, error) {
	expiresIn, err := parseDays(getEnv("JWT_EXPIRES_IN", "7d"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}

	mailTimeout, err := time.ParseDuration(getEnv("MAIL_REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("MAIL_REQUEST_TIMEOUT: %w", err)
	}

	window, err := parseSeconds(getEnv("RATE_LIMIT_EXPIRATION", "60"))
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_EXPIRATION: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("APP_PORT", "8001"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DB: DBConfig{
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
		},
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTExpiresIn:        expiresIn,
		ClientURL:           getEnv("CLIENT_URL", "http://localhost:3000"),
		MailTransport:       strings.ToLower(getEnv("MAIL_TRANSPORT", MailTransportSMTP)),
		SMTP:                loadSMTP(),
		NatsURL:             getEnv("NATS_URL", "nats://localhost:4222"),
		MailRequestTimeout:  mailTimeout,
		RateLimitMax:        getInt("RATE_LIMIT_MAX", 100),
		RateLimitExpiration: window,
		OtelEnabled:         getBool("OTEL_ENABLED", true),
		OtelEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
		OtelSampleRatio:     getFloat("OTEL_SAMPLE_RATIO", 1),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver)
	}

	switch cfg.MailTransport {
	case MailTransportSMTP, MailTransportNATS:
	default:
		return nil, fmt.Errorf("MAIL_TRANSPORT: unknown transport %q", cfg.MailTransport)
	}

	return cfg, nil
}

// parseDays accepts Go durations plus a whole-day suffix such as "7d".
func parseDays(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", v)
	}
	return d, nil
}

// parseSeconds accepts a bare number of seconds or a Go duration.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// WorkerConfig is the subset the mail worker needs.
type WorkerConfig struct {
	NatsURL string
	SMTP    SMTPConfig
}

func LoadWorker() (*WorkerConfig, error) {
	cfg := &WorkerConfig{
		NatsURL: getEnv("NATS_URL", "nats://localhost:4222"),
		SMTP:    loadSMTP(),
	}
	if cfg.SMTP.Username == "" {
		return nil, errors.New("EMAIL_USER is required")
	}
	return cfg, nil
}

func loadSMTP() SMTPConfig {
	return SMTPConfig{
		Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		Port:     getInt("SMTP_PORT", 587),
		Username: os.Getenv("EMAIL_USER"),
		Password: os.Getenv("EMAIL_PASS"),
		Timeout:  getDuration("SMTP_TIMEOUT", 15*time.Second),
	}
}
