package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("SENTIMENT_BACKEND", "")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":5000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Sentiment.Backend != SentimentBackendHTTP {
		t.Fatalf("unexpected sentiment backend %q", cfg.Sentiment.Backend)
	}
	if cfg.Sentiment.ServiceURL != "http://localhost:5001/analyze" {
		t.Fatalf("unexpected sentiment url %q", cfg.Sentiment.ServiceURL)
	}
	if cfg.Sentiment.Timeout != 5*time.Second {
		t.Fatalf("unexpected sentiment timeout %v", cfg.Sentiment.Timeout)
	}
	if cfg.AI.Temperature != 0.7 || cfg.AI.TopP != 0.95 || cfg.AI.MaxTokens != 1024 {
		t.Fatalf("unexpected generation parameters %+v", cfg.AI)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Fatalf("unexpected store backend %q", cfg.Store.Backend)
	}
	if cfg.RateLimit.AdminMax != 100 || cfg.RateLimit.AdminWindow != 15*time.Minute {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SENTIMENT_TIMEOUT": "soon",
		"SENTIMENT_BACKEND": "magic",
		"ARK_TEMPERATURE":   "warm",
		"STORE_BACKEND":     "mongo",
		"OTEL_ENABLED":      "maybe",
		"PORT":              "80 80",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("STORE_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{Model: "m"}).Enabled() {
		t.Fatal("expected disabled without credentials")
	}
	if !(AIConfig{Model: "m", APIKey: "k"}).Enabled() {
		t.Fatal("expected enabled with api key")
	}
	if !(AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Fatal("expected enabled with AK/SK")
	}
}
