package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	RTC      RTCConfig
	Payments PaymentsConfig
	Calls    CallsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// RTCConfig configures the video room provider (LiveKit-compatible).
type RTCConfig struct {
	HostURL   string
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

// PaymentsConfig configures the hosted escrow payment provider.
type PaymentsConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// CallsConfig holds call lifecycle policy knobs.
// Ring timeout and session exclusivity are policy, not business logic.
type CallsConfig struct {
	// RingTimeout is how long an invitee has to accept or reject
	// before the session times out.
	RingTimeout time.Duration

	// MaxSessionLength bounds the redis call-slot TTL so a crashed
	// process cannot block a user from calling indefinitely.
	MaxSessionLength time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.RTC.HostURL = strings.TrimSpace(os.Getenv("RTC_HOST_URL"))
	c.RTC.APIKey = strings.TrimSpace(os.Getenv("RTC_API_KEY"))
	c.RTC.APISecret = os.Getenv("RTC_API_SECRET")
	c.RTC.TokenTTL = mustDuration("RTC_TOKEN_TTL")

	c.Payments.BaseURL = strings.TrimSpace(os.Getenv("PAYMENTS_BASE_URL"))
	c.Payments.SecretKey = os.Getenv("PAYMENTS_SECRET_KEY")
	c.Payments.WebhookSecret = os.Getenv("PAYMENTS_WEBHOOK_SECRET")
	c.Payments.Currency = strings.TrimSpace(os.Getenv("PAYMENTS_CURRENCY"))

	c.Calls.RingTimeout = mustDuration("CALL_RING_TIMEOUT")
	c.Calls.MaxSessionLength = mustDuration("CALL_MAX_SESSION_LENGTH")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		}
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.RTC.APIKey == "" {
		errs = append(errs, errors.New("RTC_API_KEY is required"))
	}
	if c.RTC.APISecret == "" {
		errs = append(errs, errors.New("RTC_API_SECRET is required"))
	}
	if c.IsProduction() && c.RTC.HostURL == "" {
		errs = append(errs, errors.New("RTC_HOST_URL is required in production"))
	}

	if c.Payments.SecretKey == "" {
		errs = append(errs, errors.New("PAYMENTS_SECRET_KEY is required"))
	}
	if c.IsProduction() && c.Payments.WebhookSecret == "" {
		errs = append(errs, errors.New("PAYMENTS_WEBHOOK_SECRET is required in production"))
	}

	return joinErrors(errs)
}

// WithDefaults fills optional values after validation.
// Defaults live here so tests and main see identical policy.
func (c Config) WithDefaults() Config {
	out := c
	if out.Auth.AccessTokenTTL <= 0 {
		out.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if out.Auth.RefreshTokenTTL <= 0 {
		out.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if out.DB.SSLMode == "" {
		out.DB.SSLMode = "disable"
	}
	if out.RTC.TokenTTL <= 0 {
		out.RTC.TokenTTL = 6 * time.Hour
	}
	if out.Payments.BaseURL == "" {
		out.Payments.BaseURL = "https://api.paystack.co"
	}
	if out.Payments.Currency == "" {
		out.Payments.Currency = "NGN"
	}
	if out.Calls.RingTimeout <= 0 {
		out.Calls.RingTimeout = 40 * time.Second
	}
	if out.Calls.MaxSessionLength <= 0 {
		out.Calls.MaxSessionLength = 4 * time.Hour
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
