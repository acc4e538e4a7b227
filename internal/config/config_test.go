package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "postgres://localhost:5432/taskmind")
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_dGVzdA==")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.AuditRetentionDays != 90 {
		t.Errorf("expected default retention 90 days, got %d", cfg.AuditRetentionDays)
	}
	if cfg.AuditRetentionInterval != 6*time.Hour {
		t.Errorf("expected default retention interval 6h, got %s", cfg.AuditRetentionInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected default CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestLoad_MissingDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_dGVzdA==")

	if _, err := Load(); err == nil {
		t.Error("expected error without DB_DSN")
	}
}

func TestLoad_SecretRequiredOutsideTestMode(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost:5432/taskmind")
	t.Setenv("CLERK_WEBHOOK_SECRET", "")
	t.Setenv("WEBHOOK_TEST_MODE", "")

	if _, err := Load(); err == nil {
		t.Error("expected error without webhook secret")
	}

	t.Setenv("WEBHOOK_TEST_MODE", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("test mode should not require the secret: %v", err)
	}
	if !cfg.WebhookTestMode {
		t.Error("expected WebhookTestMode true")
	}
}

func TestLoad_ArchiveKeysMustBeJSON(t *testing.T) {
	setRequired(t)
	t.Setenv("ARCHIVE_KEYS", "not json")

	if _, err := Load(); err == nil {
		t.Error("expected error for malformed ARCHIVE_KEYS")
	}

	t.Setenv("ARCHIVE_KEYS", `{"access_key_id":"ak","secret_access_key":"sk"}`)
	if _, err := Load(); err != nil {
		t.Errorf("expected valid json keys to load, got %v", err)
	}
}

func TestLoad_CORSOriginsParsing(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}
