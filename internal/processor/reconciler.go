package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskmind-sync/internal/clerk"
	"taskmind-sync/internal/models"
	"taskmind-sync/internal/store"
	"taskmind-sync/internal/telemetry"
)

// Cache is the slice of the redis client the reconciler uses for delivery
// dedup and daily counters. Satisfied by *redis.Client; nil disables both.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Increment(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// Reconciler applies verified identity events to the profile store. Every
// path tolerates at-least-once delivery: duplicate creates, updates before
// creates and deletes of absent rows all resolve to success.
type Reconciler struct {
	log   *slog.Logger
	store store.Store
	cache Cache
	tel   *telemetry.Client
}

func NewReconciler(log *slog.Logger, st store.Store, cache Cache, tel *telemetry.Client) *Reconciler {
	return &Reconciler{
		log:   log,
		store: st,
		cache: cache,
		tel:   tel,
	}
}

// Process routes one event to its handler. Exactly one reconciliation path
// runs per event; unrecognized types are acknowledged without touching
// storage.
func (r *Reconciler) Process(ctx context.Context, ev clerk.Event, requestID string) error {
	if r.alreadySeen(ctx, ev.DeliveryID) {
		r.log.Info("webhook_duplicate_delivery", "delivery_id", ev.DeliveryID, "event_type", ev.Type, "request_id", requestID)
		return nil
	}

	start := time.Now()
	var err error

	switch ev.Type {
	case clerk.EventUserCreated:
		err = r.handleCreated(ctx, ev, requestID)
	case clerk.EventUserUpdated:
		err = r.handleUpdated(ctx, ev, requestID)
	case clerk.EventUserDeleted:
		err = r.handleDeleted(ctx, ev, requestID)
	default:
		r.log.Debug("webhook_unhandled_event_type", "event_type", ev.Type, "request_id", requestID)
		r.tel.Metric("webhook_ignored", 1, map[string]any{"event_type": ev.Type})
		return nil
	}

	r.tel.Perf("reconcile_"+ev.Type, time.Since(start), map[string]any{
		"user_id":    ev.Data.ID,
		"request_id": requestID,
		"status":     statusTag(err),
	})
	if err == nil {
		// only a fully applied delivery is marked seen; a failed one must
		// stay retryable under the same delivery id
		r.markSeen(ctx, ev.DeliveryID)
		r.countProcessed(ctx)
	}
	return err
}

func (r *Reconciler) handleCreated(ctx context.Context, ev clerk.Event, requestID string) error {
	userID := ev.Data.ID
	email := ev.PrimaryEmail()
	if email == "" {
		r.tel.Metric("user_creation_error", 1, map[string]any{"error_type": "missing_email", "user_id": userID})
		return NewValidationError(fmt.Errorf("no email address on %s event for user %s", ev.Type, userID))
	}

	profile := models.Profile{
		UserID:      userID,
		Email:       email,
		Settings:    models.DefaultSettings(),
		WorkingDays: models.DefaultWorkingDays(),
	}
	if name := ev.FullName(); name != "" {
		profile.FullName = &name
	}

	inserted, err := r.store.CreateProfile(ctx, profile)
	if err != nil {
		r.tel.Metric("user_creation_error", 1, map[string]any{"error_type": "database", "user_id": userID})
		return NewDatabaseError(fmt.Errorf("create profile %s: %w", userID, err))
	}

	if !inserted {
		// redelivery of an already-applied create; nothing to do
		r.log.Info("profile_create_duplicate", "user_id", userID, "request_id", requestID)
		r.tel.Metric("user_creation_duplicate", 1, map[string]any{"user_id": userID})
		return nil
	}

	r.log.Info("profile_created", "user_id", userID, "request_id", requestID)
	r.tel.Metric("user_creation_success", 1, map[string]any{"user_id": userID})
	r.audit(ctx, userID, "user.created", map[string]any{"email": email})
	return nil
}

func (r *Reconciler) handleUpdated(ctx context.Context, ev clerk.Event, requestID string) error {
	userID := ev.Data.ID
	email := ev.PrimaryEmail()
	if email == "" {
		r.tel.Metric("user_update_error", 1, map[string]any{"error_type": "missing_email", "user_id": userID})
		return NewValidationError(fmt.Errorf("no email address on %s event for user %s", ev.Type, userID))
	}

	updated, err := r.store.UpdateIdentity(ctx, userID, email, ev.FullName())
	if err != nil {
		r.tel.Metric("user_update_error", 1, map[string]any{"error_type": "database", "user_id": userID})
		return NewDatabaseError(fmt.Errorf("update profile %s: %w", userID, err))
	}

	if !updated {
		// update arrived before the create; the provider will redeliver the
		// create eventually, so this is not an error
		r.log.Info("profile_update_before_create", "user_id", userID, "request_id", requestID)
		r.tel.Metric("user_update_skipped", 1, map[string]any{"user_id": userID})
		return nil
	}

	r.log.Info("profile_identity_updated", "user_id", userID, "request_id", requestID)
	r.tel.Metric("user_update_success", 1, map[string]any{"user_id": userID})
	r.audit(ctx, userID, "user.updated", map[string]any{"email": email})
	return nil
}

func (r *Reconciler) handleDeleted(ctx context.Context, ev clerk.Event, requestID string) error {
	userID := ev.Data.ID

	deleted, err := r.store.DeleteProfile(ctx, userID)
	if err != nil {
		r.tel.Metric("user_deletion_error", 1, map[string]any{"error_type": "database", "user_id": userID})
		return NewDatabaseError(fmt.Errorf("delete profile %s: %w", userID, err))
	}

	if !deleted {
		r.log.Info("profile_delete_absent", "user_id", userID, "request_id", requestID)
		r.tel.Metric("user_deletion_noop", 1, map[string]any{"user_id": userID})
		return nil
	}

	r.log.Info("profile_deleted", "user_id", userID, "request_id", requestID)
	r.tel.Metric("user_deletion_success", 1, map[string]any{"user_id": userID})
	r.audit(ctx, userID, "user.deleted", map[string]any{"deleted_at": time.Now().UTC().Format(time.RFC3339)})
	return nil
}

// alreadySeen short-circuits redeliveries by delivery id. Best-effort only:
// when redis is unavailable the event runs through the storage layer, which
// is idempotent on its own.
func (r *Reconciler) alreadySeen(ctx context.Context, deliveryID string) bool {
	if r.cache == nil || deliveryID == "" {
		return false
	}
	_, err := r.cache.Get(ctx, dedupKey(deliveryID))
	return err == nil
}

// markSeen records a delivery id after its mutation was applied. Two
// concurrent first deliveries can both pass alreadySeen and both run; the
// storage layer converges them, the cache only saves the second pass.
func (r *Reconciler) markSeen(ctx context.Context, deliveryID string) {
	if r.cache == nil || deliveryID == "" {
		return
	}
	if err := r.cache.Set(ctx, dedupKey(deliveryID), "1", 24*time.Hour); err != nil {
		r.log.Warn("webhook_dedup_unavailable", "error", err)
	}
}

func dedupKey(deliveryID string) string {
	return "webhook:dedup:" + deliveryID
}

func (r *Reconciler) countProcessed(ctx context.Context) {
	if r.cache == nil {
		return
	}
	key := "events:processed:" + time.Now().Format("2006-01-02")
	if _, err := r.cache.Increment(ctx, key, 48*time.Hour); err != nil {
		r.log.Debug("event_counter_failed", "error", err)
	}
}

// audit writes a best-effort audit row. A failed insert never fails the
// webhook; the provider would redeliver an already-applied mutation.
func (r *Reconciler) audit(ctx context.Context, userID, action string, details map[string]any) {
	entry := models.AuditLogEntry{
		UserID:   userID,
		Action:   action,
		Resource: "user_profile",
		Details:  details,
		Status:   models.AuditStatusSuccess,
	}
	if err := r.store.InsertAuditLog(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Warn("audit_log_failed", "user_id", userID, "action", action, "error", err)
	}
}

func statusTag(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
