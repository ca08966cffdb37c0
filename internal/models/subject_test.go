package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDefaults(t *testing.T) {
	var p CheckinPolicy

	assert.Equal(t, 24*time.Hour, p.Interval(), "zero interval falls back to the default")
	assert.Equal(t, time.Duration(0), p.Grace())

	steps := p.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, ChannelPush, steps[0].Channel)
	assert.Equal(t, 0, steps[0].DelayMinutes)
	assert.Equal(t, ChannelEmail, steps[1].Channel)
	assert.Equal(t, 30, steps[1].DelayMinutes)
	assert.Equal(t, ChannelSMS, steps[2].Channel)
	assert.Equal(t, 60, steps[2].DelayMinutes)

	p.EscalationSteps = []EscalationStep{{Channel: ChannelTelegram, DelayMinutes: 5}}
	assert.Len(t, p.Steps(), 1)

	p.IntervalHours = 0.5
	assert.Equal(t, 30*time.Minute, p.Interval())
}

func TestRecomputeProjection(t *testing.T) {
	due := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := Subject{
		Policy: CheckinPolicy{GraceMinutes: 45, IsPaused: true},
		Status: Status{NextDueAt: &due},
	}

	s.RecomputeProjection()
	assert.True(t, s.IsPaused)
	require.NotNil(t, s.OverdueCutoff)
	assert.Equal(t, due.Add(45*time.Minute), *s.OverdueCutoff)

	s.Status.NextDueAt = nil
	s.Policy.IsPaused = false
	s.RecomputeProjection()
	assert.False(t, s.IsPaused)
	assert.Nil(t, s.OverdueCutoff)
}

func TestSnapshotStepsIsADeepCopy(t *testing.T) {
	plan := []EscalationStep{
		{Channel: ChannelPush, DelayMinutes: 0},
		{Channel: ChannelEmail, DelayMinutes: 30},
	}

	snap := SnapshotSteps(plan)
	require.Len(t, snap, 2)
	for _, step := range snap {
		assert.Equal(t, StepPending, step.Status)
	}

	plan[0].Channel = ChannelSMS
	assert.Equal(t, ChannelPush, snap[0].Channel)
}

func TestChannelValid(t *testing.T) {
	assert.True(t, ChannelPush.Valid())
	assert.True(t, ChannelTelegram.Valid())
	assert.False(t, Channel("pager").Valid())
	assert.False(t, ContactType("fax").Valid())
	assert.True(t, ContactApp.Valid())
}
