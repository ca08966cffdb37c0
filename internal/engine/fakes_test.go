package engine

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alivecheck-backend/internal/dispatch"
	"alivecheck-backend/internal/logging"
	"alivecheck-backend/internal/models"
)

// memSubjectStore mirrors the store's query semantics in memory. The indexed
// queries filter on the projection columns only, exactly like the SQL.
type memSubjectStore struct {
	mu       sync.Mutex
	subjects map[string]models.Subject
}

func newMemSubjectStore(subjects ...models.Subject) *memSubjectStore {
	s := &memSubjectStore{subjects: make(map[string]models.Subject)}
	for _, subj := range subjects {
		s.subjects[subj.ID] = subj
	}
	return s
}

func (s *memSubjectStore) GetSubject(_ context.Context, id string) (models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj, ok := s.subjects[id]
	if !ok {
		return models.Subject{}, ErrSubjectNotFound
	}
	return subj, nil
}

func (s *memSubjectStore) ListSubjects(_ context.Context) ([]models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Subject, 0, len(s.subjects))
	for _, subj := range s.subjects {
		out = append(out, subj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memSubjectStore) QueryOverdueCandidates(_ context.Context, now time.Time) ([]models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subject
	for _, subj := range s.subjects {
		if !subj.IsPaused && subj.OverdueCutoff != nil && subj.OverdueCutoff.Before(now) {
			out = append(out, subj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memSubjectStore) QueryStaleOverdue(_ context.Context, now time.Time) ([]models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subject
	for _, subj := range s.subjects {
		if !subj.IsPaused && subj.Status.IsOverdue && subj.OverdueCutoff != nil && !subj.OverdueCutoff.Before(now) {
			out = append(out, subj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memSubjectStore) UpdateSubject(_ context.Context, subj models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subj.ID]; !ok {
		return ErrSubjectNotFound
	}
	s.subjects[subj.ID] = subj
	return nil
}

func (s *memSubjectStore) UpdateSubjectStatus(ctx context.Context, subj models.Subject) error {
	return s.UpdateSubject(ctx, subj)
}

// memAlertStore keeps alerts in insertion order so ListPendingAlerts matches
// the store's oldest-first ordering.
type memAlertStore struct {
	mu     sync.Mutex
	alerts map[string]models.Alert
	order  []string
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{alerts: make(map[string]models.Alert)}
}

func (s *memAlertStore) CreateAlert(_ context.Context, a models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	s.order = append(s.order, a.ID)
	return nil
}

func (s *memAlertStore) ListPendingAlerts(_ context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, id := range s.order {
		if a := s.alerts[id]; a.Status == models.AlertPending {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAlertStore) UpdateAlertSteps(_ context.Context, a models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return ErrAlertNotFound
	}
	s.alerts[a.ID] = a
	return nil
}

func (s *memAlertStore) CancelPendingAlerts(_ context.Context, subjectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, a := range s.alerts {
		if a.SubjectID == subjectID && a.Status == models.AlertPending {
			a.Status = models.AlertCancelled
			s.alerts[id] = a
			count++
		}
	}
	return count, nil
}

func (s *memAlertStore) all() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.alerts[id])
	}
	return out
}

type sendRecord struct {
	Channel   models.Channel
	SubjectID string
}

// recordingDispatcher returns a canned outcome per channel (success with a
// fixed message id unless overridden) and records every send.
type recordingDispatcher struct {
	mu        sync.Mutex
	outcomes  map[models.Channel]dispatch.StepOutcome
	sends     []sendRecord
	reminders []string
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{outcomes: make(map[models.Channel]dispatch.StepOutcome)}
}

func (d *recordingDispatcher) fail(ch models.Channel, code string) {
	d.outcomes[ch] = dispatch.StepOutcome{Success: false, ErrorCode: code}
}

func (d *recordingDispatcher) Send(_ context.Context, ch models.Channel, subj models.Subject) dispatch.StepOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends = append(d.sends, sendRecord{Channel: ch, SubjectID: subj.ID})
	if out, ok := d.outcomes[ch]; ok {
		return out
	}
	return dispatch.StepOutcome{Success: true, Target: "target-" + string(ch), MessageID: "msg-" + string(ch)}
}

func (d *recordingDispatcher) SendReminder(_ context.Context, subj models.Subject) dispatch.StepOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reminders = append(d.reminders, subj.ID)
	if out, ok := d.outcomes["reminder"]; ok {
		return out
	}
	return dispatch.StepOutcome{Success: true, MessageID: "msg-reminder"}
}

func (d *recordingDispatcher) sendCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sends)
}

type memEventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *memEventSink) Publish(_ string, event interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := event.(Event); ok {
		s.events = append(s.events, ev)
	}
}

func (s *memEventSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

type testHarness struct {
	engine     *Engine
	subjects   *memSubjectStore
	alerts     *memAlertStore
	dispatcher *recordingDispatcher
	events     *memEventSink
}

func newTestHarness(t *testing.T, subjects ...models.Subject) *testHarness {
	t.Helper()
	logger, err := logging.New(t.TempDir(), "error")
	require.NoError(t, err)

	h := &testHarness{
		subjects:   newMemSubjectStore(subjects...),
		alerts:     newMemAlertStore(),
		dispatcher: newRecordingDispatcher(),
		events:     &memEventSink{},
	}
	h.engine = New(h.subjects, h.alerts, h.dispatcher, h.events, logger)
	return h
}

// overdueSubject is a subject whose deadline passed at due; callers pick a
// sweep time past due+grace to make it overdue.
func overdueSubject(id string, due time.Time) models.Subject {
	s := models.Subject{
		ID:          id,
		DisplayName: "Subject " + id,
		Policy:      models.DefaultPolicy(),
		Status:      models.Status{NextDueAt: &due},
	}
	s.RecomputeProjection()
	return s
}

func mustGetSubject(t *testing.T, h *testHarness, id string) models.Subject {
	t.Helper()
	s, err := h.subjects.GetSubject(context.Background(), id)
	require.NoError(t, err)
	return s
}
