package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"alivecheck-backend/internal/engine"
	"alivecheck-backend/internal/models"
)

const alertColumns = `id, subject_id, due_at, overdue_at, created_at, status, current_step_index, step_results`

func scanAlert(row pgx.Row) (models.Alert, error) {
	var a models.Alert
	var stepsRaw []byte
	err := row.Scan(
		&a.ID,
		&a.SubjectID,
		&a.DueAt,
		&a.OverdueAt,
		&a.CreatedAt,
		&a.Status,
		&a.CurrentStepIndex,
		&stepsRaw,
	)
	if err != nil {
		return models.Alert{}, err
	}
	if len(stepsRaw) > 0 {
		if err := json.Unmarshal(stepsRaw, &a.StepResults); err != nil {
			return models.Alert{}, fmt.Errorf("failed to decode step results for alert %s: %w", a.ID, err)
		}
	}
	return a, nil
}

// CreateAlert inserts a new alert record. Alerts are an audit trail and are
// never deleted.
func (d *DB) CreateAlert(ctx context.Context, a models.Alert) error {
	stepsRaw, err := json.Marshal(a.StepResults)
	if err != nil {
		return fmt.Errorf("failed to encode step results: %w", err)
	}

	query := `
	INSERT INTO alerts (id, subject_id, due_at, overdue_at, created_at, status, current_step_index, step_results)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = d.Pool.Exec(ctx, query,
		a.ID, a.SubjectID, a.DueAt, a.OverdueAt, a.CreatedAt,
		a.Status, a.CurrentStepIndex, stepsRaw,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches one alert by id.
func (d *DB) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlert(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Alert{}, engine.ErrAlertNotFound
		}
		return models.Alert{}, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return a, nil
}

// ListPendingAlerts returns every pending alert across all subjects, oldest
// first, for the escalation sweep.
func (d *DB) ListPendingAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE status = 'pending' ORDER BY created_at`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ListAlertsBySubject returns a subject's alerts, newest first.
func (d *DB) ListAlertsBySubject(ctx context.Context, subjectID string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := d.Pool.Query(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for subject %s: %w", subjectID, err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UpdateAlertSteps writes the step results, cursor and status in one
// statement so readers never see a half-applied step outcome.
func (d *DB) UpdateAlertSteps(ctx context.Context, a models.Alert) error {
	stepsRaw, err := json.Marshal(a.StepResults)
	if err != nil {
		return fmt.Errorf("failed to encode step results: %w", err)
	}

	query := `
	UPDATE alerts
	SET step_results = $1, current_step_index = $2, status = $3
	WHERE id = $4`

	tag, err := d.Pool.Exec(ctx, query, stepsRaw, a.CurrentStepIndex, a.Status, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrAlertNotFound
	}
	return nil
}

// CancelPendingAlerts flips every pending alert for the subject to
// cancelled as one statement and reports how many rows flipped.
func (d *DB) CancelPendingAlerts(ctx context.Context, subjectID string) (int, error) {
	query := `UPDATE alerts SET status = 'cancelled' WHERE subject_id = $1 AND status = 'pending'`
	tag, err := d.Pool.Exec(ctx, query, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending alerts for subject %s: %w", subjectID, err)
	}
	return int(tag.RowsAffected()), nil
}
