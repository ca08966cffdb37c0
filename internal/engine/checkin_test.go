package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alivecheck-backend/internal/dispatch"
	"alivecheck-backend/internal/models"
)

func TestCheckinResetsStateAndCancelsAlerts(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, overdueSubject("alice", baseTime))

	sweepAt := baseTime.Add(61 * time.Minute)
	h.engine.RunOverdueSweep(ctx, sweepAt)
	h.engine.RunOverdueSweep(ctx, sweepAt.Add(31*time.Minute))
	require.Len(t, h.alerts.all(), 2)

	checkinAt := sweepAt.Add(40 * time.Minute)
	h.engine.now = func() time.Time { return checkinAt }

	result, err := h.engine.Checkin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, result.CancelledAlerts)
	assert.Equal(t, checkinAt.Add(24*time.Hour), result.NextDueAt)

	subj := mustGetSubject(t, h, "alice")
	assert.False(t, subj.Status.IsOverdue)
	assert.Nil(t, subj.Status.OverdueSince)
	assert.Nil(t, subj.Status.LastAlertAt)
	require.NotNil(t, subj.Status.LastCheckinAt)
	assert.Equal(t, checkinAt, *subj.Status.LastCheckinAt)
	assertProjection(t, subj)

	for _, a := range h.alerts.all() {
		assert.Equal(t, models.AlertCancelled, a.Status)
	}
	assert.Contains(t, h.events.types(), EventAlertsCancelled)

	// The next sweep sees a fresh deadline and does nothing.
	report := h.engine.RunOverdueSweep(ctx, checkinAt.Add(time.Minute))
	assert.Equal(t, 0, report.OverdueCount)
	assert.Len(t, h.alerts.all(), 2)
}

func TestCheckinLeavesTerminalAlertsAlone(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, overdueSubject("alice", baseTime))

	sentAlert := models.Alert{
		ID:        "done",
		SubjectID: "alice",
		CreatedAt: baseTime,
		Status:    models.AlertSent,
	}
	require.NoError(t, h.alerts.CreateAlert(ctx, sentAlert))

	h.engine.now = func() time.Time { return baseTime.Add(time.Hour) }
	result, err := h.engine.Checkin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, result.CancelledAlerts)
	assert.Equal(t, models.AlertSent, h.alerts.all()[0].Status)
}

func TestCheckinUnknownSubject(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.engine.Checkin(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestInitializeSubjectAppliesDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, models.Subject{ID: "new", Email: "new@example.com"})
	h.engine.now = func() time.Time { return baseTime }

	result, err := h.engine.InitializeSubject(ctx, "new")
	require.NoError(t, err)
	assert.True(t, result.PolicyInitialized)
	assert.True(t, result.StatusInitialized)
	require.NotNil(t, result.NextDueAt)
	assert.Equal(t, baseTime.Add(24*time.Hour), *result.NextDueAt)

	subj := mustGetSubject(t, h, "new")
	assert.Equal(t, float64(models.DefaultIntervalHours), subj.Policy.IntervalHours)
	assert.Equal(t, models.DefaultGraceMinutes, subj.Policy.GraceMinutes)
	assert.Len(t, subj.Policy.EscalationSteps, 3)
	assertProjection(t, subj)

	// Second run must not move the deadline or touch the policy.
	again, err := h.engine.InitializeSubject(ctx, "new")
	require.NoError(t, err)
	assert.False(t, again.PolicyInitialized)
	assert.False(t, again.StatusInitialized)
	assert.Equal(t, *result.NextDueAt, *again.NextDueAt)
}

func TestInitializeSubjectKeepsCustomPolicy(t *testing.T) {
	ctx := context.Background()
	subj := models.Subject{
		ID: "custom",
		Policy: models.CheckinPolicy{
			IntervalHours: 8,
			GraceMinutes:  15,
		},
	}
	h := newTestHarness(t, subj)
	h.engine.now = func() time.Time { return baseTime }

	result, err := h.engine.InitializeSubject(ctx, "custom")
	require.NoError(t, err)
	assert.False(t, result.PolicyInitialized)
	assert.True(t, result.StatusInitialized)
	require.NotNil(t, result.NextDueAt)
	assert.Equal(t, baseTime.Add(8*time.Hour), *result.NextDueAt)

	got := mustGetSubject(t, h, "custom")
	assert.Equal(t, 8.0, got.Policy.IntervalHours)
}

func TestSendCheckinReminder(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, overdueSubject("alice", baseTime))

	require.NoError(t, h.engine.SendCheckinReminder(ctx, "alice"))
	assert.Equal(t, []string{"alice"}, h.dispatcher.reminders)

	h.dispatcher.fail("reminder", dispatch.CodeNoFCMToken)
	err := h.engine.SendCheckinReminder(ctx, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), dispatch.CodeNoFCMToken)
}
