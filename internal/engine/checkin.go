package engine

import (
	"context"
	"fmt"

	"alivecheck-backend/internal/models"
)

// Checkin records a proof-of-life for a subject: the deadline moves forward
// one interval, overdue state is cleared, and every pending alert for the
// subject is cancelled. Unknown subjects surface ErrSubjectNotFound.
func (e *Engine) Checkin(ctx context.Context, subjectID string) (models.CheckinResult, error) {
	now := e.now()

	subj, err := e.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return models.CheckinResult{}, err
	}

	next := now.Add(subj.Policy.Interval())
	subj.Status.LastCheckinAt = &now
	subj.Status.NextDueAt = &next
	subj.Status.IsOverdue = false
	subj.Status.OverdueSince = nil
	subj.Status.LastAlertAt = nil
	subj.RecomputeProjection()

	if err := e.subjects.UpdateSubjectStatus(ctx, subj); err != nil {
		return models.CheckinResult{}, fmt.Errorf("failed to update subject status: %w", err)
	}

	cancelled, err := e.CancelPendingAlerts(ctx, subjectID)
	if err != nil {
		return models.CheckinResult{}, fmt.Errorf("failed to cancel pending alerts: %w", err)
	}

	e.logger.Infof("Checkin recorded for subject %s, next due %s", subjectID, next.Format("2006-01-02 15:04:05"))
	return models.CheckinResult{NextDueAt: next, CancelledAlerts: cancelled}, nil
}

// InitializeSubject backfills the default policy and a first deadline for a
// subject created without them. Existing values are never overwritten, so
// calling it twice is harmless.
func (e *Engine) InitializeSubject(ctx context.Context, subjectID string) (models.InitResult, error) {
	now := e.now()

	subj, err := e.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return models.InitResult{}, err
	}

	var result models.InitResult
	if subj.Policy.IntervalHours == 0 && len(subj.Policy.EscalationSteps) == 0 {
		subj.Policy = models.DefaultPolicy()
		result.PolicyInitialized = true
	}
	if subj.Status.NextDueAt == nil && subj.Status.LastCheckinAt == nil {
		next := now.Add(subj.Policy.Interval())
		subj.Status.NextDueAt = &next
		result.StatusInitialized = true
	}
	result.NextDueAt = subj.Status.NextDueAt

	if !result.PolicyInitialized && !result.StatusInitialized {
		return result, nil
	}

	subj.RecomputeProjection()
	if err := e.subjects.UpdateSubject(ctx, subj); err != nil {
		return models.InitResult{}, fmt.Errorf("failed to initialize subject: %w", err)
	}
	e.logger.Infof("Initialized defaults for subject %s (policy=%t status=%t)",
		subjectID, result.PolicyInitialized, result.StatusInitialized)
	return result, nil
}

// SendCheckinReminder pushes a "time to check in" nudge to the subject's own
// device. It never touches alert or overdue state.
func (e *Engine) SendCheckinReminder(ctx context.Context, subjectID string) error {
	subj, err := e.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return err
	}

	outcome := e.dispatcher.SendReminder(ctx, subj)
	if !outcome.Success {
		return fmt.Errorf("failed to send checkin reminder: %s", outcome.ErrorCode)
	}
	e.logger.Infof("Checkin reminder sent to subject %s", subjectID)
	return nil
}
