package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alivecheck-backend/internal/models"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestEvaluateSubject(t *testing.T) {
	due := baseTime
	recentAlert := baseTime.Add(80 * time.Minute)
	oldAlert := baseTime.Add(30 * time.Minute)

	tests := []struct {
		name string
		subj func() models.Subject
		now  time.Time
		want detectionDecision
	}{
		{
			name: "paused subject is skipped even past cutoff",
			subj: func() models.Subject {
				s := overdueSubject("a", due)
				s.Policy.IsPaused = true
				return s
			},
			now:  baseTime.Add(3 * time.Hour),
			want: decisionSkip,
		},
		{
			name: "no deadline is skipped",
			subj: func() models.Subject {
				s := overdueSubject("a", due)
				s.Status.NextDueAt = nil
				return s
			},
			now:  baseTime.Add(3 * time.Hour),
			want: decisionSkip,
		},
		{
			name: "within grace is skipped",
			subj: func() models.Subject { return overdueSubject("a", due) },
			now:  baseTime.Add(59 * time.Minute),
			want: decisionSkip,
		},
		{
			name: "exactly at cutoff is not yet overdue",
			subj: func() models.Subject { return overdueSubject("a", due) },
			now:  baseTime.Add(60 * time.Minute),
			want: decisionSkip,
		},
		{
			name: "stale flag within cutoff is reset",
			subj: func() models.Subject {
				s := overdueSubject("a", due)
				s.Status.IsOverdue = true
				return s
			},
			now:  baseTime.Add(30 * time.Minute),
			want: decisionReset,
		},
		{
			name: "past cutoff transitions",
			subj: func() models.Subject { return overdueSubject("a", due) },
			now:  baseTime.Add(61 * time.Minute),
			want: decisionTransition,
		},
		{
			name: "overdue without prior alert reminds",
			subj: func() models.Subject {
				s := overdueSubject("a", due)
				s.Status.IsOverdue = true
				return s
			},
			now:  baseTime.Add(61 * time.Minute),
			want: decisionRemind,
		},
		{
			name: "recent alert waits",
			subj: func() models.Subject {
				s := overdueSubject("a", due)
				s.Status.IsOverdue = true
				s.Status.LastAlertAt = &recentAlert
				return s
			},
			now:  baseTime.Add(90 * time.Minute),
			want: decisionWait,
		},
		{
			name: "reminder interval elapsed reminds again",
			subj: func() models.Subject {
				s := overdueSubject("a", due)
				s.Status.IsOverdue = true
				s.Status.LastAlertAt = &oldAlert
				return s
			},
			now:  baseTime.Add(61 * time.Minute),
			want: decisionRemind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateSubject(tt.subj(), tt.now))
		})
	}
}

func TestOverdueSweepCreatesAlertPastGrace(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, overdueSubject("alice", baseTime))

	report := h.engine.RunOverdueSweep(ctx, baseTime.Add(61*time.Minute))
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.OverdueCount)
	assert.Equal(t, 1, report.AlertsCreated)
	assert.Equal(t, 0, report.Errors)

	alerts := h.alerts.all()
	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, "alice", alert.SubjectID)
	assert.Equal(t, models.AlertPending, alert.Status)
	require.Len(t, alert.StepResults, 3)

	// The zero-delay push step runs inside alert creation.
	assert.Equal(t, models.StepSent, alert.StepResults[0].Status)
	assert.Equal(t, models.StepPending, alert.StepResults[1].Status)
	assert.Equal(t, 1, alert.CurrentStepIndex)
	assert.Equal(t, 1, h.dispatcher.sendCount())
	assert.Equal(t, models.ChannelPush, h.dispatcher.sends[0].Channel)

	subj := mustGetSubject(t, h, "alice")
	assert.True(t, subj.Status.IsOverdue)
	require.NotNil(t, subj.Status.OverdueSince)
	require.NotNil(t, subj.Status.LastAlertAt)
	assertProjection(t, subj)
}

func TestOverdueSweepReminderPacing(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, overdueSubject("alice", baseTime))

	first := baseTime.Add(61 * time.Minute)
	h.engine.RunOverdueSweep(ctx, first)
	require.Len(t, h.alerts.all(), 1)

	// 10 minutes later: still overdue, but a fresh alert exists.
	report := h.engine.RunOverdueSweep(ctx, first.Add(10*time.Minute))
	assert.Equal(t, 1, report.OverdueCount)
	assert.Equal(t, 0, report.AlertsCreated)
	assert.Len(t, h.alerts.all(), 1)

	// 31 minutes later: the reminder interval elapsed, one more alert.
	report = h.engine.RunOverdueSweep(ctx, first.Add(31*time.Minute))
	assert.Equal(t, 1, report.AlertsCreated)
	assert.Len(t, h.alerts.all(), 2)
}

func TestOverdueSweepResetsStaleFlag(t *testing.T) {
	ctx := context.Background()
	s := overdueSubject("alice", baseTime.Add(5*time.Hour))
	s.Status.IsOverdue = true
	since := baseTime
	s.Status.OverdueSince = &since

	for _, indexed := range []bool{true, false} {
		h := newTestHarness(t, s)
		h.engine.useIndexedQuery = indexed

		report := h.engine.RunOverdueSweep(ctx, baseTime.Add(time.Hour))
		assert.Equal(t, 0, report.OverdueCount)
		assert.Equal(t, 0, report.AlertsCreated)
		assert.Empty(t, h.alerts.all())

		subj := mustGetSubject(t, h, "alice")
		assert.False(t, subj.Status.IsOverdue, "indexed=%t", indexed)
		assert.Nil(t, subj.Status.OverdueSince)
	}
}

func TestOverdueSweepNeverAlertsPaused(t *testing.T) {
	ctx := context.Background()
	s := overdueSubject("alice", baseTime)
	s.Policy.IsPaused = true
	s.RecomputeProjection()

	for _, indexed := range []bool{true, false} {
		h := newTestHarness(t, s)
		h.engine.useIndexedQuery = indexed

		report := h.engine.RunOverdueSweep(ctx, baseTime.Add(24*time.Hour))
		assert.Equal(t, 0, report.OverdueCount, "indexed=%t", indexed)
		assert.Empty(t, h.alerts.all())
		assert.Equal(t, 0, h.dispatcher.sendCount())
	}
}

func TestDetectionQueryPathsEquivalent(t *testing.T) {
	ctx := context.Background()
	now := baseTime.Add(2 * time.Hour)

	build := func() []models.Subject {
		overdue := overdueSubject("overdue", baseTime)

		fresh := overdueSubject("fresh", baseTime.Add(90*time.Minute))

		paused := overdueSubject("paused", baseTime)
		paused.Policy.IsPaused = true
		paused.RecomputeProjection()

		stale := overdueSubject("stale", baseTime.Add(3*time.Hour))
		stale.Status.IsOverdue = true

		noDeadline := models.Subject{ID: "nodeadline", Policy: models.DefaultPolicy()}
		noDeadline.RecomputeProjection()

		return []models.Subject{overdue, fresh, paused, stale, noDeadline}
	}

	indexed := newTestHarness(t, build()...)
	indexed.engine.useIndexedQuery = true
	fullScan := newTestHarness(t, build()...)
	fullScan.engine.useIndexedQuery = false

	ri := indexed.engine.RunOverdueSweep(ctx, now)
	rf := fullScan.engine.RunOverdueSweep(ctx, now)

	assert.Equal(t, ri.OverdueCount, rf.OverdueCount)
	assert.Equal(t, ri.AlertsCreated, rf.AlertsCreated)
	assert.Equal(t, ri.Errors, rf.Errors)

	for _, id := range []string{"overdue", "fresh", "paused", "stale", "nodeadline"} {
		si := mustGetSubject(t, indexed, id)
		sf := mustGetSubject(t, fullScan, id)
		assert.Equal(t, si.Status.IsOverdue, sf.Status.IsOverdue, "subject %s", id)
		assert.Equal(t, si.Status.LastAlertAt == nil, sf.Status.LastAlertAt == nil, "subject %s", id)
	}

	ai := indexed.alerts.all()
	af := fullScan.alerts.all()
	require.Equal(t, len(ai), len(af))
	assert.Equal(t, "overdue", ai[0].SubjectID)
}

func assertProjection(t *testing.T, s models.Subject) {
	t.Helper()
	assert.Equal(t, s.Policy.IsPaused, s.IsPaused)
	if s.Status.NextDueAt == nil {
		assert.Nil(t, s.OverdueCutoff)
		return
	}
	require.NotNil(t, s.OverdueCutoff)
	assert.Equal(t, s.Status.NextDueAt.Add(s.Policy.Grace()), *s.OverdueCutoff)
}
