package notify

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"chime-server/metrics"
)

// Deliverer presents a notification once its timer fires.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification)
}

// Scheduler is the subset of Registry the rechecker and message handlers
// depend on.
type Scheduler interface {
	Schedule(key string, fireAt time.Time, title, body string)
	ScheduleDerived(key string, fireAt time.Time, title, body string)
	Cancel(key string)
	Prune(active map[string]struct{})
}

// Pending describes one armed (or in-flight) registry entry.
type Pending struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	FireAt     time.Time `json:"fire_at"`
	Delivering bool      `json:"delivering"`
}

type entry struct {
	title      string
	fireAt     time.Time
	cancel     context.CancelFunc
	delivering bool

	// derived entries were armed by the rechecker from stored events and are
	// re-derived every cycle; page-requested ones exist nowhere else and must
	// survive until they fire or are cancelled explicitly.
	derived bool
}

// Registry owns the key -> timer mapping. It guarantees at most one armed
// timer per key: a newer schedule for the same key cancels the older timer
// before arming its own. Registries are created explicitly and passed to
// whatever needs one; there is no package-level instance.
type Registry struct {
	deliver Deliverer
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(d Deliverer) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deliver: d,
		now:     time.Now,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule arms a timer that delivers the notification at fireAt. An
// existing timer for the same key is cancelled first. Requests whose
// fire-time is not in the future are dropped silently: that reminder's
// window has already passed and firing late would only confuse.
func (r *Registry) Schedule(key string, fireAt time.Time, title, body string) {
	r.schedule(key, fireAt, title, body, false)
}

// ScheduleDerived arms a timer for a schedule the rechecker re-derived from
// stored events. Only derived entries are eligible for Prune.
func (r *Registry) ScheduleDerived(key string, fireAt time.Time, title, body string) {
	r.schedule(key, fireAt, title, body, true)
}

func (r *Registry) schedule(key string, fireAt time.Time, title, body string, derived bool) {
	r.mu.Lock()

	if old, ok := r.entries[key]; ok && !old.delivering {
		// Supersede: the newer schedule wins.
		old.cancel()
		delete(r.entries, key)
		metrics.NotificationsSupersededTotal.Inc()
		log.Printf("[NOTIFY] superseded pending timer for %q", key)
	}

	delay := fireAt.Sub(r.now())
	if delay <= 0 {
		r.mu.Unlock()
		metrics.NotificationsDroppedTotal.Inc()
		log.Printf("[NOTIFY] not scheduling %q: fire-time already passed", key)
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	e := &entry{title: title, fireAt: fireAt, cancel: cancel, derived: derived}
	r.entries[key] = e
	r.wg.Add(1)
	go r.wait(ctx, key, e, delay, Notification{Key: key, Title: title, Body: body, FireAt: fireAt})
	r.mu.Unlock()

	metrics.NotificationsScheduledTotal.Inc()
	log.Printf("[NOTIFY] scheduled %q in %s (fires %s)", key, delay.Round(time.Second), fireAt.Format(time.RFC3339))
}

func (r *Registry) wait(ctx context.Context, key string, e *entry, delay time.Duration, n Notification) {
	defer r.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	// The timer fired. From here on a Cancel for this key is a no-op: a
	// notification mid-presentation cannot be un-shown.
	r.mu.Lock()
	if r.entries[key] != e {
		r.mu.Unlock()
		return
	}
	e.delivering = true
	r.mu.Unlock()

	// Delivery (including its one retry) runs on the registry's own
	// context so a supersede cannot abort it halfway.
	r.deliver.Deliver(r.ctx, n)

	// Remove the entry only now, success or not, so timers never leak.
	r.mu.Lock()
	if r.entries[key] == e {
		delete(r.entries, key)
	}
	r.mu.Unlock()
}

// Cancel disarms the timer for key if one is pending. Unknown keys and
// entries whose delivery is already in flight are no-ops.
func (r *Registry) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok || e.delivering {
		return
	}
	e.cancel()
	delete(r.entries, key)
	log.Printf("[NOTIFY] cancelled %q", key)
}

// Prune cancels every pending derived entry whose key is absent from active.
// The rechecker calls this so that schedules for deleted or moved events do
// not linger until their stale timer fires. Page-requested entries are left
// alone: the store knows nothing about them, so their absence from active
// says nothing.
func (r *Registry) Prune(active map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for key, e := range r.entries {
		if !e.derived || e.delivering {
			continue
		}
		if _, ok := active[key]; ok {
			continue
		}
		e.cancel()
		delete(r.entries, key)
		pruned++
	}
	if pruned > 0 {
		log.Printf("[NOTIFY] pruned %d stale timer(s)", pruned)
	}
}

// PendingList returns a snapshot of all registry entries sorted by
// fire-time.
func (r *Registry) PendingList() []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]Pending, 0, len(r.entries))
	for key, e := range r.entries {
		list = append(list, Pending{Key: key, Title: e.title, FireAt: e.fireAt, Delivering: e.delivering})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].FireAt.Before(list[j].FireAt) })
	return list
}

// Len reports the number of entries currently held (armed or delivering).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close cancels all pending timers and waits for in-flight goroutines.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
}
