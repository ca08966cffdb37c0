package models

import (
	"time"
)

// Channel is the closed set of notification channels an escalation step can
// use. Anything else stored in a plan resolves to a NOT_IMPLEMENTED step
// result instead of silently defaulting.
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelPush, ChannelEmail, ChannelSMS, ChannelTelegram:
		return true
	}
	return false
}

// EscalationStep is one entry of an escalation plan. DelayMinutes is
// relative to the alert's CreatedAt, not to the previous step.
type EscalationStep struct {
	Channel      Channel `json:"channel"`
	DelayMinutes int     `json:"delay_minutes"`
}

type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertSent      AlertStatus = "sent"
	AlertCancelled AlertStatus = "cancelled"
)

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepSent    StepStatus = "sent"
	StepFailed  StepStatus = "failed"
)

// Alert is one escalation episode for an overdue subject. DueAt and
// OverdueAt snapshot the subject's status at creation; StepResults snapshots
// the escalation plan, so later policy edits never change an in-flight
// alert. Alerts are terminated (sent or cancelled) but never deleted.
type Alert struct {
	ID               string       `json:"id"`
	SubjectID        string       `json:"subject_id"`
	DueAt            time.Time    `json:"due_at"`
	OverdueAt        time.Time    `json:"overdue_at"`
	CreatedAt        time.Time    `json:"created_at"`
	Status           AlertStatus  `json:"status"`
	StepResults      []StepResult `json:"step_results"`
	CurrentStepIndex int          `json:"current_step_index"`
}

// StepResult records the outcome of one escalation step. Once a step leaves
// StepPending it is never reverted.
type StepResult struct {
	Channel           Channel    `json:"channel"`
	DelayMinutes      int        `json:"delay_minutes"`
	Status            StepStatus `json:"status"`
	Target            string     `json:"target,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Error             string     `json:"error,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
}

// SnapshotSteps deep-copies an escalation plan into pending step results for
// a new alert.
func SnapshotSteps(steps []EscalationStep) []StepResult {
	results := make([]StepResult, len(steps))
	for i, step := range steps {
		results[i] = StepResult{
			Channel:      step.Channel,
			DelayMinutes: step.DelayMinutes,
			Status:       StepPending,
		}
	}
	return results
}

// StepDueAt returns when step i becomes eligible for execution.
func (a Alert) StepDueAt(i int) time.Time {
	return a.CreatedAt.Add(time.Duration(a.StepResults[i].DelayMinutes) * time.Minute)
}
