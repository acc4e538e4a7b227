package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskmind-sync/internal/db"
	"taskmind-sync/internal/models"
	"taskmind-sync/internal/redis"
)

const (
	retentionLockKey = "audit:retention:lock"
	retentionLockTTL = 30 * time.Minute
	archiveBatchSize = 1000
)

// RetentionJob moves audit rows older than the retention window out of the
// hot table. Each pass uploads a JSONL snapshot to the archive bucket,
// copies the rows into audit_logs_archive and deletes them from audit_logs.
type RetentionJob struct {
	log      *slog.Logger
	db       *db.DB
	redis    *redis.Client
	archive  ArchiveClient
	days     int
	interval time.Duration
}

func NewRetentionJob(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, archive ArchiveClient, retentionDays int, interval time.Duration) *RetentionJob {
	return &RetentionJob{
		log:      log,
		db:       dbConn,
		redis:    redisClient,
		archive:  archive,
		days:     retentionDays,
		interval: interval,
	}
}

// Run loops until ctx is canceled, with one pass immediately on start.
func (j *RetentionJob) Run(ctx context.Context) {
	j.log.Info("audit_retention_started", "retention_days", j.days, "interval", j.interval.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.log.Info("audit_retention_stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *RetentionJob) runOnce(ctx context.Context) {
	if !j.acquireLock(ctx) {
		j.log.Debug("audit_retention_lock_held")
		return
	}

	total := 0
	for {
		n, err := j.archiveBatch(ctx)
		if err != nil {
			j.log.Error("audit_retention_failed", "archived", total, "error", err)
			return
		}
		if n == 0 {
			break
		}
		total += n
	}

	if total > 0 {
		j.log.Info("audit_retention_complete", "archived", total)
	}
}

// acquireLock takes the distributed job lock. Without redis the job runs
// unguarded; acceptable for single-instance deployments.
func (j *RetentionJob) acquireLock(ctx context.Context) bool {
	if j.redis == nil {
		return true
	}
	ok, err := j.redis.SetNX(ctx, retentionLockKey, time.Now().Unix(), retentionLockTTL)
	if err != nil {
		j.log.Warn("audit_retention_lock_error", "error", err)
		return true
	}
	return ok
}

// archiveBatch moves up to archiveBatchSize expired rows. Returns how many
// rows were moved.
func (j *RetentionJob) archiveBatch(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -j.days)

	rows, err := j.db.Pool.Query(ctx,
		`SELECT id, user_id, action, resource, details, COALESCE(ip_address, ''), COALESCE(user_agent, ''), status, error_message, created_at
		 FROM audit_logs
		 WHERE created_at < $1
		 ORDER BY id
		 LIMIT $2`,
		cutoff, archiveBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("select expired audit rows: %w", err)
	}
	defer rows.Close()

	var (
		entries []models.AuditLogEntry
		ids     []int64
	)
	for rows.Next() {
		var (
			e           models.AuditLogEntry
			detailsJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &detailsJSON, &e.IPAddress, &e.UserAgent, &e.Status, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return 0, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &e.Details)
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	key := fmt.Sprintf("audit/%s/%s.jsonl", time.Now().UTC().Format("2006-01-02"), uuid.NewString())
	url, err := j.archive.Upload(ctx, key, encodeJSONL(entries))
	if err != nil {
		return 0, fmt.Errorf("upload archive object: %w", err)
	}

	values := make([][]any, 0, len(entries))
	for _, e := range entries {
		detailsJSON, _ := json.Marshal(e.Details)
		values = append(values, []any{
			e.ID, e.UserID, e.Action, e.Resource, detailsJSON,
			nullable(e.IPAddress), nullable(e.UserAgent), e.Status, e.ErrorMessage, e.CreatedAt, url,
		})
	}

	if _, err := j.db.BatchInsert(ctx, "audit_logs_archive",
		[]string{"id", "user_id", "action", "resource", "details", "ip_address", "user_agent", "status", "error_message", "created_at", "archive_url"},
		values, db.DefaultBatchConfig(),
	); err != nil {
		// upload succeeded but the copy failed; rows stay in audit_logs and
		// the next pass re-archives them under a new object key
		return 0, fmt.Errorf("copy rows into archive table: %w", err)
	}

	if _, err := j.db.Pool.Exec(ctx, `DELETE FROM audit_logs WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("prune archived rows: %w", err)
	}

	j.log.Info("audit_batch_archived", "rows", len(entries), "object", key)
	return len(entries), nil
}

func encodeJSONL(entries []models.AuditLogEntry) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		_ = enc.Encode(e)
	}
	return buf.Bytes()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
