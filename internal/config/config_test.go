package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("WHATSAPP_TIMEOUT", "")
	t.Setenv("WEBHOOK_DEDUP_ENABLED", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.WhatsAppTimeout != 10*time.Second {
		t.Fatalf("expected default whatsapp timeout, got %s", cfg.WhatsAppTimeout)
	}
	if cfg.CacheSize != 1024 {
		t.Fatalf("expected default cache size, got %d", cfg.CacheSize)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("expected default cache ttl, got %s", cfg.CacheTTL)
	}
	if !cfg.DedupEnabled {
		t.Fatalf("expected dedup enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token-123")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "5550001111")
	t.Setenv("WHATSAPP_TIMEOUT", "3s")
	t.Setenv("CONVERSATION_CACHE_SIZE", "64")
	t.Setenv("CONVERSATION_CACHE_TTL", "5m")
	t.Setenv("WEBHOOK_DEDUP_ENABLED", "false")
	t.Setenv("CHAT_HISTORY_TTL", "24h")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.WhatsAppAccessToken != "token-123" {
		t.Fatalf("expected token override, got %s", cfg.WhatsAppAccessToken)
	}
	if cfg.WhatsAppPhoneNumberID != "5550001111" {
		t.Fatalf("expected phone number id override, got %s", cfg.WhatsAppPhoneNumberID)
	}
	if cfg.WhatsAppTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.WhatsAppTimeout)
	}
	if cfg.CacheSize != 64 {
		t.Fatalf("expected cache size override, got %d", cfg.CacheSize)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("expected cache ttl override, got %s", cfg.CacheTTL)
	}
	if cfg.DedupEnabled {
		t.Fatalf("expected dedup disabled")
	}
	if cfg.HistoryTTL != 24*time.Hour {
		t.Fatalf("expected history ttl override, got %s", cfg.HistoryTTL)
	}
}
