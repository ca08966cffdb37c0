package engine

import (
	"context"
	"time"

	"alivecheck-backend/internal/models"
)

// transition is the pure per-alert stepping decision.
type transition int

const (
	transitionNone     transition = iota // current step not due yet
	transitionComplete                   // every step handled; mark the alert sent
	transitionSkip                       // current step already resolved; advance the cursor only
	transitionDispatch                   // current step is due and pending; execute it
)

// nextTransition decides what the escalation processor should do with an
// alert at time now. All I/O is applied by the caller. A step that is
// already resolved is never re-dispatched, which is what makes overlapping
// sweeps safe against double-sending.
func nextTransition(a models.Alert, now time.Time) (transition, int) {
	if a.Status != models.AlertPending {
		return transitionNone, 0
	}
	if len(a.StepResults) == 0 || a.CurrentStepIndex >= len(a.StepResults) {
		return transitionComplete, a.CurrentStepIndex
	}

	idx := a.CurrentStepIndex
	if now.Before(a.StepDueAt(idx)) {
		return transitionNone, idx
	}
	if a.StepResults[idx].Status != models.StepPending {
		return transitionSkip, idx
	}
	return transitionDispatch, idx
}

// RunEscalationSweep advances every pending alert that has a due step. Like
// the overdue sweep, one alert's failure is isolated and counted.
func (e *Engine) RunEscalationSweep(ctx context.Context, now time.Time) models.EscalationReport {
	var report models.EscalationReport

	alerts, err := e.alerts.ListPendingAlerts(ctx)
	if err != nil {
		e.logger.Errorf("Escalation sweep: listing pending alerts failed: %v", err)
		report.Errors++
		return report
	}
	report.Scanned = len(alerts)

	for _, alert := range alerts {
		executed, completed, err := e.AdvanceAlert(ctx, alert, now)
		if err != nil {
			e.logger.Errorf("Escalation sweep: alert %s failed: %v", alert.ID, err)
			report.Errors++
			continue
		}
		if executed {
			report.StepsExecuted++
		}
		if completed {
			report.Completed++
		}
	}

	e.logger.Infof("Escalation sweep done: scanned=%d executed=%d completed=%d errors=%d",
		report.Scanned, report.StepsExecuted, report.Completed, report.Errors)
	return report
}

// AdvanceAlert applies one transition to an alert: completes it, skips an
// already-resolved step, or dispatches the current step. It reports whether
// a step was dispatched and whether the alert reached its terminal state.
func (e *Engine) AdvanceAlert(ctx context.Context, alert models.Alert, now time.Time) (bool, bool, error) {
	tr, idx := nextTransition(alert, now)
	switch tr {
	case transitionNone:
		return false, false, nil

	case transitionComplete:
		alert.Status = models.AlertSent
		if err := e.alerts.UpdateAlertSteps(ctx, alert); err != nil {
			return false, false, err
		}
		e.logger.Infof("Alert %s completed all steps", alert.ID)
		e.publish(Event{Type: EventAlertCompleted, SubjectID: alert.SubjectID, AlertID: alert.ID, At: now})
		return false, true, nil

	case transitionSkip:
		alert.CurrentStepIndex = idx + 1
		completed := e.completeIfExhausted(&alert, now)
		if err := e.alerts.UpdateAlertSteps(ctx, alert); err != nil {
			return false, false, err
		}
		return false, completed, nil

	case transitionDispatch:
		subj, err := e.subjects.GetSubject(ctx, alert.SubjectID)
		if err != nil {
			return false, false, err
		}
		e.executeStep(ctx, &alert, subj, idx, now)
		completed := e.completeIfExhausted(&alert, now)
		if err := e.alerts.UpdateAlertSteps(ctx, alert); err != nil {
			return true, completed, err
		}
		return true, completed, nil
	}
	return false, false, nil
}

// completeIfExhausted marks the alert sent once the cursor has moved past the
// last step, so the sweep that executes the final step also terminates the
// alert. The caller persists.
func (e *Engine) completeIfExhausted(alert *models.Alert, now time.Time) bool {
	if alert.CurrentStepIndex < len(alert.StepResults) {
		return false
	}
	alert.Status = models.AlertSent
	e.logger.Infof("Alert %s completed all steps", alert.ID)
	e.publish(Event{Type: EventAlertCompleted, SubjectID: alert.SubjectID, AlertID: alert.ID, At: now})
	return true
}

// executeStep dispatches one step, records its outcome, and advances the
// cursor. Failures advance too: a failed step is never retried, the plan
// simply moves on to the next channel. The caller persists the alert.
func (e *Engine) executeStep(ctx context.Context, alert *models.Alert, subj models.Subject, idx int, now time.Time) {
	step := &alert.StepResults[idx]

	e.logger.Infof("Executing step %d (%s) of alert %s", idx, step.Channel, alert.ID)
	outcome := e.dispatcher.Send(ctx, step.Channel, subj)

	sentAt := now
	step.SentAt = &sentAt
	step.Target = outcome.Target
	step.ProviderMessageID = outcome.MessageID
	if outcome.Success {
		step.Status = models.StepSent
		step.Error = ""
	} else {
		step.Status = models.StepFailed
		step.Error = outcome.ErrorCode
	}
	alert.CurrentStepIndex = idx + 1

	// Observability marker only; nothing reads it for control flow.
	subj.Status.LastEscalationAt = &sentAt
	subj.RecomputeProjection()
	if err := e.subjects.UpdateSubjectStatus(ctx, subj); err != nil {
		e.logger.Errorf("Failed to update lastEscalationAt for subject %s: %v", subj.ID, err)
	}

	e.publish(Event{
		Type:      EventStepExecuted,
		SubjectID: subj.ID,
		AlertID:   alert.ID,
		StepIndex: idx,
		Channel:   step.Channel,
		Status:    string(step.Status),
		At:        now,
	})
	e.logger.Infof("Step %d of alert %s finished with status %s", idx, alert.ID, step.Status)
}
