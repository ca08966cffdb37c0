package engine

import (
	"context"
	"time"

	"alivecheck-backend/internal/dispatch"
	"alivecheck-backend/internal/logging"
	"alivecheck-backend/internal/models"
)

// SubjectStore is the subject-side persistence the engine needs. Implemented
// by db.DB; tests use an in-memory fake.
type SubjectStore interface {
	GetSubject(ctx context.Context, id string) (models.Subject, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	QueryOverdueCandidates(ctx context.Context, now time.Time) ([]models.Subject, error)
	QueryStaleOverdue(ctx context.Context, now time.Time) ([]models.Subject, error)
	UpdateSubject(ctx context.Context, s models.Subject) error
	UpdateSubjectStatus(ctx context.Context, s models.Subject) error
}

// AlertStore is the alert-side persistence the engine needs.
type AlertStore interface {
	CreateAlert(ctx context.Context, a models.Alert) error
	ListPendingAlerts(ctx context.Context) ([]models.Alert, error)
	UpdateAlertSteps(ctx context.Context, a models.Alert) error
	CancelPendingAlerts(ctx context.Context, subjectID string) (int, error)
}

// Dispatcher sends one escalation step (or a reminder) for a subject.
type Dispatcher interface {
	Send(ctx context.Context, ch models.Channel, subj models.Subject) dispatch.StepOutcome
	SendReminder(ctx context.Context, subj models.Subject) dispatch.StepOutcome
}

// EventSink receives alert lifecycle events for the live feed. May be nil.
type EventSink interface {
	Publish(subjectID string, event interface{})
}

// Event types published to the EventSink.
const (
	EventAlertCreated    = "alert_created"
	EventStepExecuted    = "step_executed"
	EventAlertCompleted  = "alert_completed"
	EventAlertsCancelled = "alerts_cancelled"
)

// Event is one alert lifecycle notification for watching clients.
type Event struct {
	Type      string         `json:"type"`
	SubjectID string         `json:"subject_id"`
	AlertID   string         `json:"alert_id,omitempty"`
	StepIndex int            `json:"step_index,omitempty"`
	Channel   models.Channel `json:"channel,omitempty"`
	Status    string         `json:"status,omitempty"`
	Count     int            `json:"count,omitempty"`
	At        time.Time      `json:"at"`
}

// Engine is the overdue detection and escalation core. It owns every
// mutation of subject status and alert records; everything it talks to is
// behind the narrow interfaces above.
type Engine struct {
	subjects   SubjectStore
	alerts     AlertStore
	dispatcher Dispatcher
	events     EventSink
	logger     *logging.Logger

	now func() time.Time

	// useIndexedQuery selects the predicate-query path for detection. The
	// full-scan fallback must produce identical results; it exists for
	// stores without the projection index.
	useIndexedQuery bool
}

func New(subjects SubjectStore, alerts AlertStore, dispatcher Dispatcher, events EventSink, logger *logging.Logger) *Engine {
	return &Engine{
		subjects:        subjects,
		alerts:          alerts,
		dispatcher:      dispatcher,
		events:          events,
		logger:          logger,
		now:             time.Now,
		useIndexedQuery: true,
	}
}

func (e *Engine) publish(ev Event) {
	if e.events == nil {
		return
	}
	e.events.Publish(ev.SubjectID, ev)
}
