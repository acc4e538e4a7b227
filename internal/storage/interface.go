package storage

import "context"

// ArchiveClient writes an immutable archive object and returns its location.
// Backed by S3-compatible storage in production and a simulator in tests and
// local runs.
type ArchiveClient interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}
