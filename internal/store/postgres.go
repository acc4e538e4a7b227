package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"taskmind-sync/internal/db"
	"taskmind-sync/internal/models"
)

// Postgres implements Store over a pgx pool.
type Postgres struct {
	db *db.DB
}

func NewPostgres(dbConn *db.DB) *Postgres {
	return &Postgres{db: dbConn}
}

const pgUniqueViolation = "23505"

func (s *Postgres) CreateProfile(ctx context.Context, p models.Profile) (bool, error) {
	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return false, fmt.Errorf("marshal settings: %w", err)
	}
	daysJSON, err := json.Marshal(p.WorkingDays)
	if err != nil {
		return false, fmt.Errorf("marshal working days: %w", err)
	}

	// ON CONFLICT DO NOTHING makes concurrent duplicate deliveries converge
	// on a single row without surfacing a constraint error
	ct, err := s.db.Pool.Exec(ctx,
		`INSERT INTO user_profiles (user_id, email, full_name, settings, working_days, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		p.UserID, p.Email, p.FullName, settingsJSON, daysJSON,
	)
	if err != nil {
		// a unique violation that slips past the conflict clause is still
		// the expected duplicate, not a storage failure
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Postgres) UpdateIdentity(ctx context.Context, userID, email, fullName string) (bool, error) {
	ct, err := s.db.Pool.Exec(ctx,
		`UPDATE user_profiles
		 SET email = $2, full_name = NULLIF($3, ''), updated_at = NOW()
		 WHERE user_id = $1`,
		userID, email, fullName,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Postgres) DeleteProfile(ctx context.Context, userID string) (bool, error) {
	ct, err := s.db.Pool.Exec(ctx,
		`DELETE FROM user_profiles WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Postgres) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var (
		p            models.Profile
		settingsJSON []byte
		daysJSON     []byte
	)

	err := s.db.Pool.QueryRow(ctx,
		`SELECT user_id, email, full_name, settings, working_days, created_at, updated_at
		 FROM user_profiles
		 WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Email, &p.FullName, &settingsJSON, &daysJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(settingsJSON, &p.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings for %s: %w", userID, err)
	}
	if err := json.Unmarshal(daysJSON, &p.WorkingDays); err != nil {
		return nil, fmt.Errorf("unmarshal working days for %s: %w", userID, err)
	}
	return &p, nil
}

func (s *Postgres) UpdateSettings(ctx context.Context, userID string, settings models.UserSettings) (bool, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return false, fmt.Errorf("marshal settings: %w", err)
	}

	ct, err := s.db.Pool.Exec(ctx,
		`UPDATE user_profiles SET settings = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, settingsJSON,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Postgres) UpdateWorkingDays(ctx context.Context, userID string, wd models.WorkingDays) (bool, error) {
	daysJSON, err := json.Marshal(wd)
	if err != nil {
		return false, fmt.Errorf("marshal working days: %w", err)
	}

	ct, err := s.db.Pool.Exec(ctx,
		`UPDATE user_profiles SET working_days = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, daysJSON,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Postgres) InsertAuditLog(ctx context.Context, e models.AuditLogEntry) error {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO audit_logs (user_id, action, resource, details, ip_address, user_agent, status, error_message, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, NOW())`,
		e.UserID, e.Action, e.Resource, detailsJSON, e.IPAddress, e.UserAgent, e.Status, e.ErrorMessage,
	)
	return err
}

func (s *Postgres) ListAuditLogs(ctx context.Context, userID string, limit, offset int) ([]models.AuditLogEntry, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, user_id, action, resource, details, COALESCE(ip_address, ''), COALESCE(user_agent, ''), status, error_message, created_at
		 FROM audit_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.AuditLogEntry, 0, limit)
	for rows.Next() {
		var (
			e           models.AuditLogEntry
			detailsJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &detailsJSON, &e.IPAddress, &e.UserAgent, &e.Status, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &e.Details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
