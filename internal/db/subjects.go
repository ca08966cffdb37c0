package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"alivecheck-backend/internal/engine"
	"alivecheck-backend/internal/models"
)

// scanSubject decodes one subjects row. Policy and status live in JSONB
// columns; is_paused and overdue_cutoff are the denormalized root columns
// the detector's predicate query runs against.
func scanSubject(row pgx.Row) (models.Subject, error) {
	var s models.Subject
	var policyRaw, statusRaw []byte
	err := row.Scan(
		&s.ID,
		&s.DisplayName,
		&s.Email,
		&s.Language,
		&s.FCMToken,
		&policyRaw,
		&statusRaw,
		&s.IsPaused,
		&s.OverdueCutoff,
	)
	if err != nil {
		return models.Subject{}, err
	}
	if len(policyRaw) > 0 {
		if err := json.Unmarshal(policyRaw, &s.Policy); err != nil {
			return models.Subject{}, fmt.Errorf("failed to decode policy for subject %s: %w", s.ID, err)
		}
	}
	if len(statusRaw) > 0 {
		if err := json.Unmarshal(statusRaw, &s.Status); err != nil {
			return models.Subject{}, fmt.Errorf("failed to decode status for subject %s: %w", s.ID, err)
		}
	}
	return s, nil
}

const subjectColumns = `id, display_name, email, language, fcm_token, policy, status, is_paused, overdue_cutoff`

// GetSubject fetches one subject by id.
func (d *DB) GetSubject(ctx context.Context, id string) (models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	s, err := scanSubject(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Subject{}, engine.ErrSubjectNotFound
		}
		return models.Subject{}, fmt.Errorf("failed to get subject %s: %w", id, err)
	}
	return s, nil
}

// GetSubjectsByIDs is a best-effort multi-get: missing ids are simply absent
// from the returned map.
func (d *DB) GetSubjectsByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error) {
	out := make(map[string]models.Subject, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = ANY($1)`
	rows, err := d.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get subjects by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

// ListSubjects returns every subject. This is the full-scan fallback for
// the detector; QueryOverdueCandidates is the indexed path.
func (d *DB) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects ORDER BY id`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// QueryOverdueCandidates runs the index-backed predicate over the
// denormalized root columns. It must select exactly the subjects the
// full-scan path would flag as past their cutoff.
func (d *DB) QueryOverdueCandidates(ctx context.Context, now time.Time) ([]models.Subject, error) {
	query := `SELECT ` + subjectColumns + `
	FROM subjects
	WHERE is_paused = false AND overdue_cutoff IS NOT NULL AND overdue_cutoff < $1`

	rows, err := d.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue candidates: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// QueryStaleOverdue finds subjects whose stored overdue flag is still set
// even though the cutoff has moved back past now. The detector resets those;
// the overdue-candidate predicate alone would never surface them.
func (d *DB) QueryStaleOverdue(ctx context.Context, now time.Time) ([]models.Subject, error) {
	query := `SELECT ` + subjectColumns + `
	FROM subjects
	WHERE is_paused = false
	  AND (status->>'is_overdue')::boolean = true
	  AND overdue_cutoff IS NOT NULL
	  AND overdue_cutoff >= $1`

	rows, err := d.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale overdue subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// CreateSubject inserts a subject row if it does not exist yet.
func (d *DB) CreateSubject(ctx context.Context, s models.Subject) error {
	policyRaw, err := json.Marshal(s.Policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	statusRaw, err := json.Marshal(s.Status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	query := `
	INSERT INTO subjects (id, display_name, email, language, fcm_token, policy, status, is_paused, overdue_cutoff)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

	_, err = d.Pool.Exec(ctx, query,
		s.ID, s.DisplayName, s.Email, s.Language, s.FCMToken,
		policyRaw, statusRaw, s.IsPaused, s.OverdueCutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to create subject %s: %w", s.ID, err)
	}
	return nil
}

// UpdateSubject persists policy, status and the recomputed projection as a
// single statement so no reader observes a torn intermediate state.
func (d *DB) UpdateSubject(ctx context.Context, s models.Subject) error {
	policyRaw, err := json.Marshal(s.Policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	statusRaw, err := json.Marshal(s.Status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	query := `
	UPDATE subjects
	SET policy = $1, status = $2, is_paused = $3, overdue_cutoff = $4
	WHERE id = $5`

	tag, err := d.Pool.Exec(ctx, query, policyRaw, statusRaw, s.IsPaused, s.OverdueCutoff, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update subject %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrSubjectNotFound
	}
	return nil
}

// UpdateSubjectStatus persists the status document and projection, leaving
// the policy untouched. Used by the detector and the checkin handler.
func (d *DB) UpdateSubjectStatus(ctx context.Context, s models.Subject) error {
	statusRaw, err := json.Marshal(s.Status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	query := `
	UPDATE subjects
	SET status = $1, is_paused = $2, overdue_cutoff = $3
	WHERE id = $4`

	tag, err := d.Pool.Exec(ctx, query, statusRaw, s.IsPaused, s.OverdueCutoff, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update subject status %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrSubjectNotFound
	}
	return nil
}

// DeleteFCMToken clears a stored push token after the provider reports it
// invalid or unregistered.
func (d *DB) DeleteFCMToken(ctx context.Context, subjectID string) error {
	query := `UPDATE subjects SET fcm_token = '' WHERE id = $1`
	if _, err := d.Pool.Exec(ctx, query, subjectID); err != nil {
		return fmt.Errorf("failed to delete fcm token for subject %s: %w", subjectID, err)
	}
	return nil
}
