package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"alivecheck-backend/internal/models"
)

// CreateAlert opens a new escalation episode for an overdue subject. The
// subject's plan is deep-copied into the alert, so later policy edits never
// touch it. A zero-delay first step is executed synchronously before this
// returns instead of waiting for the next escalation sweep.
func (e *Engine) CreateAlert(ctx context.Context, subj models.Subject, now time.Time) (models.Alert, error) {
	alert := models.Alert{
		ID:               uuid.New().String(),
		SubjectID:        subj.ID,
		DueAt:            timeOr(subj.Status.NextDueAt, now),
		OverdueAt:        timeOr(subj.Status.OverdueSince, now),
		CreatedAt:        now,
		Status:           models.AlertPending,
		StepResults:      models.SnapshotSteps(subj.Policy.Steps()),
		CurrentStepIndex: 0,
	}

	if err := e.alerts.CreateAlert(ctx, alert); err != nil {
		return models.Alert{}, err
	}
	e.logger.Infof("Created alert %s for subject %s (%d steps)", alert.ID, subj.ID, len(alert.StepResults))
	e.publish(Event{Type: EventAlertCreated, SubjectID: subj.ID, AlertID: alert.ID, At: now})

	if len(alert.StepResults) > 0 && alert.StepResults[0].DelayMinutes == 0 {
		e.executeStep(ctx, &alert, subj, 0, now)
		e.completeIfExhausted(&alert, now)
		if err := e.alerts.UpdateAlertSteps(ctx, alert); err != nil {
			return models.Alert{}, err
		}
	}

	return alert, nil
}

// CancelPendingAlerts flips every pending alert for a subject to cancelled
// and reports the count. Sent and already-cancelled alerts are untouched.
func (e *Engine) CancelPendingAlerts(ctx context.Context, subjectID string) (int, error) {
	count, err := e.alerts.CancelPendingAlerts(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		e.logger.Infof("Cancelled %d pending alerts for subject %s", count, subjectID)
		e.publish(Event{Type: EventAlertsCancelled, SubjectID: subjectID, Count: count, At: e.now()})
	}
	return count, nil
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}
