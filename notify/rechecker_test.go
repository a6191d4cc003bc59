package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chime-server/models"
)

type staticSource struct {
	events []models.EventOccurrence
	err    error
}

func (s *staticSource) TodayEvents(ctx context.Context) ([]models.EventOccurrence, error) {
	return s.events, s.err
}

type scheduleCall struct {
	key     string
	fireAt  time.Time
	title   string
	body    string
	derived bool
}

type recordingScheduler struct {
	scheduled []scheduleCall
	pruned    []map[string]struct{}
}

func (s *recordingScheduler) Schedule(key string, fireAt time.Time, title, body string) {
	s.scheduled = append(s.scheduled, scheduleCall{key, fireAt, title, body, false})
}

func (s *recordingScheduler) ScheduleDerived(key string, fireAt time.Time, title, body string) {
	s.scheduled = append(s.scheduled, scheduleCall{key, fireAt, title, body, true})
}

func (s *recordingScheduler) Cancel(key string) {}

func (s *recordingScheduler) Prune(active map[string]struct{}) {
	s.pruned = append(s.pruned, active)
}

func TestRecheckerArmsUpcomingReminder(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	source := &staticSource{events: []models.EventOccurrence{{
		ID:              "ev1",
		Title:           "Standup",
		StartTime:       now.Add(20 * time.Minute),
		ReminderMinutes: 10,
	}}}
	sched := &recordingScheduler{}

	r := NewRechecker(source, sched, "@every 1m", DefaultLookahead)
	r.now = func() time.Time { return now }
	r.RunOnce(context.Background())

	if len(sched.scheduled) != 1 {
		t.Fatalf("scheduled %d timers, want 1", len(sched.scheduled))
	}
	call := sched.scheduled[0]
	if call.key != "ev1" {
		t.Errorf("key = %q, want the event ID", call.key)
	}
	if want := now.Add(10 * time.Minute); !call.fireAt.Equal(want) {
		t.Errorf("fireAt = %v, want %v", call.fireAt, want)
	}
	if !strings.Contains(call.body, "Starts in 20 minutes") {
		t.Errorf("body = %q, want countdown text", call.body)
	}
	if !call.derived {
		t.Error("rechecker armed a non-derived schedule; Prune would never release it")
	}
}

func TestRecheckerKeepsPageRequestedSchedules(t *testing.T) {
	d := newRecordingDeliverer()
	reg := NewRegistry(d)
	defer reg.Close()

	// A page asked for this reminder directly; the store has never heard of
	// its key, so a recheck cycle with no events must leave it armed.
	reg.Schedule("Standup", time.Now().Add(5*time.Minute), "Standup", "Starts in 15 minutes")

	r := NewRechecker(&staticSource{}, reg, "@every 1m", DefaultLookahead)
	r.RunOnce(context.Background())

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d after recheck, want the page-requested timer to survive", reg.Len())
	}
	pending := reg.PendingList()
	if len(pending) != 1 || pending[0].Key != "Standup" {
		t.Errorf("PendingList() = %+v, want the page-requested entry", pending)
	}
}

func TestRecheckerSkipsStartedEvents(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	source := &staticSource{events: []models.EventOccurrence{{
		ID:        "ev1",
		Title:     "Already running",
		StartTime: now.Add(-5 * time.Minute),
	}}}
	sched := &recordingScheduler{}

	r := NewRechecker(source, sched, "@every 1m", DefaultLookahead)
	r.now = func() time.Time { return now }
	r.RunOnce(context.Background())

	if len(sched.scheduled) != 0 {
		t.Errorf("scheduled %d timers, want 0 for a started event", len(sched.scheduled))
	}
}

func TestRecheckerSkipsOutsideLookahead(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	source := &staticSource{events: []models.EventOccurrence{
		{
			// Fire-time two hours out: a later cycle arms it.
			ID:              "far",
			Title:           "Afternoon review",
			StartTime:       now.Add(130 * time.Minute),
			ReminderMinutes: 10,
		},
		{
			// Fire-time already behind us even though the event has not
			// started yet.
			ID:              "missed",
			Title:           "In five",
			StartTime:       now.Add(5 * time.Minute),
			ReminderMinutes: 10,
		},
	}}
	sched := &recordingScheduler{}

	r := NewRechecker(source, sched, "@every 1m", DefaultLookahead)
	r.now = func() time.Time { return now }
	r.RunOnce(context.Background())

	if len(sched.scheduled) != 0 {
		t.Errorf("scheduled %d timers, want 0 outside the lookahead window", len(sched.scheduled))
	}
}

func TestRecheckerPrunesWithActiveSet(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	source := &staticSource{events: []models.EventOccurrence{{
		ID:              "ev1",
		Title:           "Standup",
		StartTime:       now.Add(20 * time.Minute),
		ReminderMinutes: 10,
	}}}
	sched := &recordingScheduler{}

	r := NewRechecker(source, sched, "@every 1m", DefaultLookahead)
	r.now = func() time.Time { return now }
	r.RunOnce(context.Background())

	if len(sched.pruned) != 1 {
		t.Fatalf("Prune called %d times, want 1", len(sched.pruned))
	}
	if _, ok := sched.pruned[0]["ev1"]; !ok {
		t.Errorf("active set %v missing the armed key", sched.pruned[0])
	}
}

func TestRecheckerSkipsCycleOnFetchError(t *testing.T) {
	source := &staticSource{err: errors.New("db locked")}
	sched := &recordingScheduler{}

	r := NewRechecker(source, sched, "@every 1m", DefaultLookahead)
	r.RunOnce(context.Background())

	if len(sched.scheduled) != 0 || len(sched.pruned) != 0 {
		t.Error("a failed fetch must leave existing schedules untouched")
	}
}

func TestRecheckerRejectsBadSchedule(t *testing.T) {
	r := NewRechecker(&staticSource{}, &recordingScheduler{}, "not a cron spec", 0)
	if err := r.Start(); err == nil {
		r.Stop()
		t.Fatal("Start() = nil, want error for an invalid schedule")
	}
}
