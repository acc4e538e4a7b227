package db

import (
	"context"
	"fmt"
	"time"
)

// BatchConfig holds configuration for batched COPY operations.
type BatchConfig struct {
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
	OnProgress func(processed, total int)
}

// DefaultBatchConfig returns sensible defaults for batch copies.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:  500,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
		OnProgress: nil,
	}
}

// BatchInsert copies rows into tableName in chunks using COPY. Returns the
// total number of rows written and any error encountered.
func (d *DB) BatchInsert(ctx context.Context, tableName string, columns []string, values [][]any, cfg BatchConfig) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}

	totalInserted := 0
	totalRows := len(values)

	for i := 0; i < len(values); i += cfg.BatchSize {
		end := i + cfg.BatchSize
		if end > len(values) {
			end = len(values)
		}

		batch := values[i:end]
		inserted, err := d.insertBatch(ctx, tableName, columns, batch, cfg.MaxRetries, cfg.RetryDelay)
		if err != nil {
			return totalInserted, fmt.Errorf("batch insert failed at offset %d: %w", i, err)
		}

		totalInserted += inserted

		if cfg.OnProgress != nil {
			cfg.OnProgress(totalInserted, totalRows)
		}
	}

	return totalInserted, nil
}

func (d *DB) insertBatch(ctx context.Context, tableName string, columns []string, batch [][]any, maxRetries int, retryDelay time.Duration) (int, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		rowsCopied, err := d.Pool.CopyFrom(
			ctx,
			[]string{tableName},
			columns,
			&batchSource{rows: batch},
		)
		if err == nil {
			return int(rowsCopied), nil
		}

		lastErr = err
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	return 0, lastErr
}

// batchSource implements pgx.CopyFromSource.
type batchSource struct {
	rows  [][]any
	index int
}

func (b *batchSource) Next() bool {
	b.index++
	return b.index <= len(b.rows)
}

func (b *batchSource) Values() ([]any, error) {
	return b.rows[b.index-1], nil
}

func (b *batchSource) Err() error {
	return nil
}
