package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envPracticumToken = "PRACTICUM_TOKEN"
	envTelegramToken  = "TELEGRAM_TOKEN"
	envTelegramChatID = "TELEGRAM_CHAT_ID"
	envEndpoint       = "HW_ENDPOINT"
	envPollInterval   = "HW_POLL_INTERVAL"
	envRequestTimeout = "HW_REQUEST_TIMEOUT"
	envLogLevel       = "HW_LOG_LEVEL"
	envDryRun         = "HW_DRY_RUN"
	envHealthPort     = "HW_HEALTH_PORT"
	envMetricsPort    = "HW_METRICS_PORT"
	envTelegramAPIURL = "HW_TELEGRAM_API_URL"
)

const (
	defaultEndpoint       = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	defaultPollInterval   = 10 * time.Minute
	defaultRequestTimeout = 30 * time.Second
	defaultLogLevel       = "info"
	defaultTelegramAPIURL = "https://api.telegram.org"
)

// Credentials holds the secrets required before the poll loop may start.
type Credentials struct {
	PracticumToken string
	TelegramToken  string
	TelegramChatID string
}

// Missing returns the environment variable names of empty credentials.
func (c Credentials) Missing() []string {
	var missing []string
	if c.PracticumToken == "" {
		missing = append(missing, envPracticumToken)
	}
	if c.TelegramToken == "" {
		missing = append(missing, envTelegramToken)
	}
	if c.TelegramChatID == "" {
		missing = append(missing, envTelegramChatID)
	}
	return missing
}

// Config describes runtime configuration loaded from the environment.
type Config struct {
	Credentials    Credentials
	Endpoint       string
	TelegramAPIURL string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	LogLevel       string
	DryRun         bool
	HealthPort     int
	MetricsPort    int
}

// StartupConfigError reports required credentials absent from the environment.
type StartupConfigError struct {
	Missing []string
}

func (e *StartupConfigError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Missing, ", ")
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Endpoint:       defaultEndpoint,
		TelegramAPIURL: defaultTelegramAPIURL,
		PollInterval:   defaultPollInterval,
		RequestTimeout: defaultRequestTimeout,
		LogLevel:       defaultLogLevel,
	}

	cfg.Credentials.PracticumToken, _ = lookupTrimmed(envPracticumToken)
	cfg.Credentials.TelegramToken, _ = lookupTrimmed(envTelegramToken)
	cfg.Credentials.TelegramChatID, _ = lookupTrimmed(envTelegramChatID)

	if missing := cfg.Credentials.Missing(); len(missing) > 0 {
		return Config{}, &StartupConfigError{Missing: missing}
	}

	if value, ok := lookupTrimmed(envEndpoint); ok {
		cfg.Endpoint = value
	}
	if value, ok := lookupTrimmed(envTelegramAPIURL); ok {
		cfg.TelegramAPIURL = value
	}
	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	var err error
	if cfg.PollInterval, err = durationFromEnv(envPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = durationFromEnv(envRequestTimeout, cfg.RequestTimeout); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envDryRun); ok {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDryRun, err)
		}
		cfg.DryRun = dryRun
	}

	if cfg.HealthPort, err = portFromEnv(envHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = portFromEnv(envMetricsPort); err != nil {
		return Config{}, err
	}

	if err := validateURL(cfg.Endpoint, envEndpoint); err != nil {
		return Config{}, err
	}
	if err := validateURL(cfg.TelegramAPIURL, envTelegramAPIURL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// lookupTrimmed treats blank values as unset.
func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return parsed, nil
}

func portFromEnv(key string) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 0 and 65535", key)
	}
	return port, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
