package models

import "time"

// DetectionReport summarizes one overdue-detection sweep.
type DetectionReport struct {
	Scanned       int `json:"scanned"`
	OverdueCount  int `json:"overdue_count"`
	AlertsCreated int `json:"alerts_created"`
	Errors        int `json:"errors"`
}

// EscalationReport summarizes one escalation-stepping sweep.
type EscalationReport struct {
	Scanned       int `json:"scanned"`
	StepsExecuted int `json:"steps_executed"`
	Completed     int `json:"completed"`
	Errors        int `json:"errors"`
}

// CheckinResult is returned to the caller of a check-in.
type CheckinResult struct {
	NextDueAt       time.Time `json:"next_due_at"`
	CancelledAlerts int       `json:"cancelled_alerts"`
}

// InitResult reports which defaults were applied to a new subject.
type InitResult struct {
	PolicyInitialized bool       `json:"policy_initialized"`
	StatusInitialized bool       `json:"status_initialized"`
	NextDueAt         *time.Time `json:"next_due_at,omitempty"`
}
