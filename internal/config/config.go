package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	// raw secrets kept in-memory only; never log these
	WebhookSecret   string
	WebhookTestMode bool
	ServiceAPIKey   string
	CORSOrigins     []string

	// telemetry collector (Axiom-style ingest API)
	AxiomToken    string
	AxiomOrgID    string
	AxiomDataset  string
	AxiomEndpoint string

	// audit log archival
	ArchiveEndpoint        string
	ArchiveBucket          string
	ArchiveKeysRaw         string
	AuditRetentionDays     int
	AuditRetentionInterval time.Duration

	TelemetryWorkerCount int
}

func Load() (Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := Config{
		DBDSN:           os.Getenv("DB_DSN"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:        getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		WebhookSecret:   os.Getenv("CLERK_WEBHOOK_SECRET"),
		ServiceAPIKey:   getenvDefault("SERVICE_API_KEY", ""),
		AxiomToken:      os.Getenv("AXIOM_TOKEN"),
		AxiomOrgID:      os.Getenv("AXIOM_ORG_ID"),
		AxiomDataset:    getenvDefault("AXIOM_DATASET", "taskmind-webhooks"),
		AxiomEndpoint:   getenvDefault("AXIOM_ENDPOINT", "https://api.axiom.co"),
		ArchiveEndpoint: getenvDefault("ARCHIVE_ENDPOINT", ""),
		ArchiveBucket:   getenvDefault("ARCHIVE_BUCKET", ""),
		ArchiveKeysRaw:  os.Getenv("ARCHIVE_KEYS"),
	}

	cfg.WebhookTestMode = parseBool(os.Getenv("WEBHOOK_TEST_MODE"))

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// test mode relaxes the signature proof only, so a secret is still
	// required everywhere else
	if cfg.WebhookSecret == "" && !cfg.WebhookTestMode {
		return Config{}, errors.New("missing CLERK_WEBHOOK_SECRET")
	}

	// light validation: ensure archive keys are valid json if set
	if cfg.ArchiveKeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.ArchiveKeysRaw), &tmp); err != nil {
			return Config{}, errors.New("ARCHIVE_KEYS must be valid json")
		}
	}

	cfg.AuditRetentionDays = getenvInt("AUDIT_RETENTION_DAYS", 90)
	if cfg.AuditRetentionDays < 1 {
		return Config{}, errors.New("AUDIT_RETENTION_DAYS must be >= 1")
	}
	cfg.AuditRetentionInterval = time.Duration(getenvInt("AUDIT_RETENTION_INTERVAL_HOURS", 6)) * time.Hour

	cfg.TelemetryWorkerCount = getenvInt("TELEMETRY_WORKERS", 2)

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
