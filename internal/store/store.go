package store

import (
	"context"
	"errors"

	"taskmind-sync/internal/models"
)

// ErrNotFound is returned by lookups when no profile row exists.
var ErrNotFound = errors.New("profile not found")

// Store is the persistence boundary for profiles and audit logs. All write
// operations are idempotent: creates are conflict-safe on the user id, and
// updates/deletes report whether a row was touched instead of erroring on
// absence.
type Store interface {
	// CreateProfile inserts p unless a profile with the same user id already
	// exists. Returns true when a new row was written, false for the
	// duplicate no-op.
	CreateProfile(ctx context.Context, p models.Profile) (bool, error)

	// UpdateIdentity overwrites only the provider-mirrored fields (email,
	// full name). Returns false when no row matched.
	UpdateIdentity(ctx context.Context, userID, email, fullName string) (bool, error)

	// DeleteProfile removes the row if present. Returns false when there was
	// nothing to delete.
	DeleteProfile(ctx context.Context, userID string) (bool, error)

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)

	UpdateSettings(ctx context.Context, userID string, s models.UserSettings) (bool, error)
	UpdateWorkingDays(ctx context.Context, userID string, wd models.WorkingDays) (bool, error)

	InsertAuditLog(ctx context.Context, e models.AuditLogEntry) error
	ListAuditLogs(ctx context.Context, userID string, limit, offset int) ([]models.AuditLogEntry, error)
}
