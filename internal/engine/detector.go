package engine

import (
	"context"
	"time"

	"alivecheck-backend/internal/models"
)

// ReminderInterval is the minimum spacing between successive alerts for a
// subject that stays overdue.
const ReminderInterval = 30 * time.Minute

// detectionDecision is the pure per-subject outcome of one detector pass.
type detectionDecision int

const (
	decisionSkip       detectionDecision = iota // paused, no deadline, or simply not overdue
	decisionReset                               // deadline moved past the stored flag; clear overdue state
	decisionTransition                          // newly overdue; flag and alert
	decisionRemind                              // still overdue and the reminder interval elapsed; alert again
	decisionWait                                // still overdue but a recent alert exists; no new alert
)

// evaluateSubject decides what the detector should do for one subject at
// time now. It reads the live policy and status, not the stored projection,
// so the indexed and full-scan query paths converge on the same behavior.
func evaluateSubject(s models.Subject, now time.Time) detectionDecision {
	if s.Policy.IsPaused {
		return decisionSkip
	}
	if s.Status.NextDueAt == nil {
		return decisionSkip
	}

	cutoff := s.Status.NextDueAt.Add(s.Policy.Grace())
	if !now.After(cutoff) {
		if s.Status.IsOverdue {
			return decisionReset
		}
		return decisionSkip
	}

	if !s.Status.IsOverdue {
		return decisionTransition
	}
	if s.Status.LastAlertAt == nil || now.Sub(*s.Status.LastAlertAt) >= ReminderInterval {
		return decisionRemind
	}
	return decisionWait
}

// RunOverdueSweep scans for subjects past their overdue cutoff, transitions
// their status, and requests alert creation. One subject's failure is
// logged and counted without aborting the rest of the sweep.
func (e *Engine) RunOverdueSweep(ctx context.Context, now time.Time) models.DetectionReport {
	var report models.DetectionReport

	subjects, err := e.detectionCandidates(ctx, now)
	if err != nil {
		e.logger.Errorf("Overdue sweep: candidate query failed: %v", err)
		report.Errors++
		return report
	}
	report.Scanned = len(subjects)

	for _, subj := range subjects {
		overdue, created, err := e.checkSubject(ctx, subj, now)
		if err != nil {
			e.logger.Errorf("Overdue sweep: subject %s failed: %v", subj.ID, err)
			report.Errors++
			continue
		}
		if overdue {
			report.OverdueCount++
		}
		if created {
			report.AlertsCreated++
		}
	}

	e.logger.Infof("Overdue sweep done: scanned=%d overdue=%d alerts=%d errors=%d",
		report.Scanned, report.OverdueCount, report.AlertsCreated, report.Errors)
	return report
}

// detectionCandidates returns the subjects a sweep must examine. The indexed
// path combines the overdue predicate with the stale-flag predicate; the
// fallback scans everything and lets evaluateSubject filter.
func (e *Engine) detectionCandidates(ctx context.Context, now time.Time) ([]models.Subject, error) {
	if !e.useIndexedQuery {
		return e.subjects.ListSubjects(ctx)
	}

	candidates, err := e.subjects.QueryOverdueCandidates(ctx, now)
	if err != nil {
		return nil, err
	}
	stale, err := e.subjects.QueryStaleOverdue(ctx, now)
	if err != nil {
		return nil, err
	}
	return append(candidates, stale...), nil
}

// checkSubject applies the detection decision for one subject. It reports
// whether the subject is overdue and whether an alert was created.
func (e *Engine) checkSubject(ctx context.Context, subj models.Subject, now time.Time) (bool, bool, error) {
	switch evaluateSubject(subj, now) {
	case decisionSkip:
		return false, false, nil

	case decisionReset:
		subj.Status.IsOverdue = false
		subj.Status.OverdueSince = nil
		subj.RecomputeProjection()
		if err := e.subjects.UpdateSubjectStatus(ctx, subj); err != nil {
			return false, false, err
		}
		e.logger.Infof("Subject %s no longer overdue, flag reset", subj.ID)
		return false, false, nil

	case decisionTransition:
		subj.Status.IsOverdue = true
		subj.Status.OverdueSince = &now
		subj.Status.LastAlertAt = &now
		subj.RecomputeProjection()
		if err := e.subjects.UpdateSubjectStatus(ctx, subj); err != nil {
			return true, false, err
		}
		e.logger.Infof("Subject %s is now overdue", subj.ID)
		if _, err := e.CreateAlert(ctx, subj, now); err != nil {
			return true, false, err
		}
		return true, true, nil

	case decisionRemind:
		subj.Status.LastAlertAt = &now
		subj.RecomputeProjection()
		if err := e.subjects.UpdateSubjectStatus(ctx, subj); err != nil {
			return true, false, err
		}
		e.logger.Infof("Subject %s still overdue, creating reminder alert", subj.ID)
		if _, err := e.CreateAlert(ctx, subj, now); err != nil {
			return true, false, err
		}
		return true, true, nil

	case decisionWait:
		e.logger.Debugf("Subject %s has a recent alert, skipping", subj.ID)
		return true, false, nil
	}
	return false, false, nil
}
