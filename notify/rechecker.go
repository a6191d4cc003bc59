package notify

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/robfig/cron/v3"

	"chime-server/models"
)

// DefaultLookahead bounds how early a reminder may be armed. Anything whose
// fire-time lies further out is picked up by a later cycle.
const DefaultLookahead = 30 * time.Minute

// EventSource yields the events due today. The store implements it; tests
// substitute their own.
type EventSource interface {
	TodayEvents(ctx context.Context) ([]models.EventOccurrence, error)
}

// Rechecker periodically re-derives the notification schedule from the event
// source. A fetch failure skips the cycle; the next one retries naturally.
type Rechecker struct {
	source    EventSource
	sched     Scheduler
	spec      string
	lookahead time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewRechecker builds a rechecker running on the given cron spec
// (e.g. "@every 1m"). A zero lookahead falls back to DefaultLookahead.
func NewRechecker(source EventSource, sched Scheduler, spec string, lookahead time.Duration) *Rechecker {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Rechecker{
		source:    source,
		sched:     sched,
		spec:      spec,
		lookahead: lookahead,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start runs one immediate pass and then begins the periodic loop.
func (r *Rechecker) Start() error {
	if _, err := r.cron.AddFunc(r.spec, func() {
		r.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid recheck schedule %q: %w", r.spec, err)
	}
	go r.RunOnce(context.Background())
	r.cron.Start()
	log.Printf("[RECHECK] started (schedule %s, lookahead %s)", r.spec, r.lookahead)
	return nil
}

// Stop halts the loop and waits for a cycle in flight.
func (r *Rechecker) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce performs a single recheck cycle: fetch today's events, arm a timer
// for every upcoming reminder within the lookahead window, and prune
// schedules whose event has disappeared.
func (r *Rechecker) RunOnce(ctx context.Context) {
	events, err := r.source.TodayEvents(ctx)
	if err != nil {
		log.Printf("[RECHECK] event fetch failed, skipping cycle: %v", err)
		return
	}

	now := r.now()
	active := make(map[string]struct{})
	for _, ev := range events {
		if !ev.StartTime.After(now) {
			// Already started; nothing to remind about.
			continue
		}

		fireAt := FireTime(ev.StartTime, ev.ReminderMinutes)
		until := fireAt.Sub(now)
		if until <= 0 || until > r.lookahead {
			continue
		}

		active[ev.ID] = struct{}{}
		minutes := int(math.Round(ev.StartTime.Sub(now).Minutes()))
		body := fmt.Sprintf("Starts in %d minutes (%s)", minutes, ev.StartTime.Format("Mon 15:04"))
		r.sched.ScheduleDerived(ev.ID, fireAt, ev.Title, body)
	}

	r.sched.Prune(active)
}
