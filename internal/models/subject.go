package models

import (
	"time"
)

// Subject is a monitored person. Policy is owned by the subject (mutable via
// the API), Status is owned by the engine and mutated only by the overdue
// detector and the checkin handler. IsPaused and OverdueCutoff are a
// denormalized projection of policy/status kept on the root row so the
// detector can run an indexed predicate query instead of a full scan.
type Subject struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"display_name,omitempty"`
	Email       string        `json:"email,omitempty"`
	Language    string        `json:"language,omitempty"`
	FCMToken    string        `json:"fcm_token,omitempty"`
	Policy      CheckinPolicy `json:"checkin_policy"`
	Status      Status        `json:"status"`

	IsPaused      bool       `json:"is_paused"`
	OverdueCutoff *time.Time `json:"overdue_cutoff,omitempty"`
}

// CheckinPolicy controls how often a subject must check in and how an
// escalation proceeds once they are overdue.
type CheckinPolicy struct {
	IntervalHours   float64          `json:"interval_hours"`
	ReminderTime    string           `json:"reminder_time,omitempty"`
	GraceMinutes    int              `json:"grace_minutes"`
	IsPaused        bool             `json:"is_paused"`
	EscalationSteps []EscalationStep `json:"escalation_steps,omitempty"`
}

// Status tracks the engine-owned check-in state of a subject.
type Status struct {
	LastCheckinAt    *time.Time `json:"last_checkin_at"`
	NextDueAt        *time.Time `json:"next_due_at"`
	IsOverdue        bool       `json:"is_overdue"`
	OverdueSince     *time.Time `json:"overdue_since"`
	LastAlertAt      *time.Time `json:"last_alert_at"`
	LastEscalationAt *time.Time `json:"last_escalation_at"`
}

const (
	DefaultIntervalHours = 24
	DefaultGraceMinutes  = 60
	DefaultReminderTime  = "09:00"
)

// DefaultEscalationSteps is the plan used when a subject's policy has no
// steps of its own: push immediately, email after 30 minutes, SMS after 60.
func DefaultEscalationSteps() []EscalationStep {
	return []EscalationStep{
		{Channel: ChannelPush, DelayMinutes: 0},
		{Channel: ChannelEmail, DelayMinutes: 30},
		{Channel: ChannelSMS, DelayMinutes: 60},
	}
}

// DefaultPolicy returns the policy assigned to newly created subjects.
func DefaultPolicy() CheckinPolicy {
	return CheckinPolicy{
		IntervalHours:   DefaultIntervalHours,
		ReminderTime:    DefaultReminderTime,
		GraceMinutes:    DefaultGraceMinutes,
		IsPaused:        false,
		EscalationSteps: DefaultEscalationSteps(),
	}
}

// Steps returns the subject's escalation plan, falling back to the default
// plan when the policy carries none.
func (p CheckinPolicy) Steps() []EscalationStep {
	if len(p.EscalationSteps) == 0 {
		return DefaultEscalationSteps()
	}
	return p.EscalationSteps
}

// Interval returns the check-in interval as a duration.
func (p CheckinPolicy) Interval() time.Duration {
	hours := p.IntervalHours
	if hours <= 0 {
		hours = DefaultIntervalHours
	}
	return time.Duration(hours * float64(time.Hour))
}

// Grace returns the grace period as a duration.
func (p CheckinPolicy) Grace() time.Duration {
	if p.GraceMinutes < 0 {
		return 0
	}
	return time.Duration(p.GraceMinutes) * time.Minute
}

// RecomputeProjection refreshes the denormalized root fields from policy and
// status. Every write path that touches policy.GraceMinutes, policy.IsPaused
// or status.NextDueAt must call this before persisting, or the detector's
// indexed query goes stale.
func (s *Subject) RecomputeProjection() {
	s.IsPaused = s.Policy.IsPaused
	if s.Status.NextDueAt == nil {
		s.OverdueCutoff = nil
		return
	}
	cutoff := s.Status.NextDueAt.Add(s.Policy.Grace())
	s.OverdueCutoff = &cutoff
}
