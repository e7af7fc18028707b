package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "meetnmart"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret"},
		RTC:      RTCConfig{APIKey: "lk-key", APISecret: "lk-secret"},
		Payments: PaymentsConfig{SecretKey: "sk_test"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalMinimumPasses(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_ProductionRequirements(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected production requirements to fail")
	}
	for _, want := range []string{"DB_SSLMODE", "JWT_ISSUER", "JWT_AUDIENCE", "RTC_HOST_URL", "PAYMENTS_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in error, got: %v", want, err)
		}
	}

	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "meetnmart"
	c.Auth.JWTAudience = "meetnmart-app"
	c.RTC.HostURL = "https://rtc.example.com"
	c.Payments.WebhookSecret = "whsec"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected production config to pass, got %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	c := validLocal().WithDefaults()

	if c.Calls.RingTimeout != 40*time.Second {
		t.Fatalf("expected 40s ring timeout default, got %v", c.Calls.RingTimeout)
	}
	if c.Calls.MaxSessionLength != 4*time.Hour {
		t.Fatalf("expected 4h session bound default, got %v", c.Calls.MaxSessionLength)
	}
	if c.Payments.Currency != "NGN" {
		t.Fatalf("expected NGN default, got %q", c.Payments.Currency)
	}
	if c.Payments.BaseURL != "https://api.paystack.co" {
		t.Fatalf("unexpected payments base url %q", c.Payments.BaseURL)
	}
	if c.RTC.TokenTTL != 6*time.Hour {
		t.Fatalf("expected 6h token ttl default, got %v", c.RTC.TokenTTL)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute || c.Auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("unexpected token ttl defaults: %+v", c.Auth)
	}
}

func TestDSNAndAddrFormatting(t *testing.T) {
	c := validLocal().WithDefaults()

	dsn := c.PostgresDSN()
	if !strings.Contains(dsn, "host=localhost") || !strings.Contains(dsn, "dbname=meetnmart") {
		t.Fatalf("unexpected dsn: %q", dsn)
	}
	if c.RedisAddr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", c.RedisAddr())
	}
	if c.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected http addr %q", c.HTTPAddr())
	}
}
