package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chime-server/metrics"
)

// Sender presents a notification through one delivery channel (web push,
// a connected page, ...). The tag makes each presentation unique so the
// platform does not collapse distinct reminders into one.
type Sender interface {
	Send(ctx context.Context, n Notification, tag string) error
	Name() string
}

// Fanout sends through every channel and succeeds if at least one of them
// accepted the notification. A page-less session still reaches the service
// worker via push; a push-less session still reaches the open page.
type Fanout []Sender

func (f Fanout) Name() string { return "fanout" }

func (f Fanout) Send(ctx context.Context, n Notification, tag string) error {
	if len(f) == 0 {
		return errors.New("no delivery channels configured")
	}

	var errs []error
	delivered := false
	for _, s := range f {
		if err := s.Send(ctx, n, tag); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		delivered = true
	}
	if !delivered {
		return errors.Join(errs...)
	}
	return nil
}

// Engine performs deliveries handed over by the registry. Failures get
// exactly one retry after RetryDelay, with a distinguishable tag; a second
// failure is logged and abandoned. There is no synchronous UI to report to,
// so nothing further happens.
type Engine struct {
	sender    Sender
	messenger Messenger
	gate      *Gate

	// RetryDelay is the pause before the single retry. Defaults to one
	// second.
	RetryDelay time.Duration

	now func() time.Time
}

func NewEngine(sender Sender, messenger Messenger, gate *Gate) *Engine {
	return &Engine{
		sender:     sender,
		messenger:  messenger,
		gate:       gate,
		RetryDelay: time.Second,
		now:        time.Now,
	}
}

// Deliver presents n and, on success, announces it to every connected page.
// The permission gate is checked first; without consent the attempt is
// dropped silently so the caller's loop keeps running.
func (e *Engine) Deliver(ctx context.Context, n Notification) {
	if !e.gate.Allow() {
		log.Printf("[NOTIFY] permission %s, dropping %q", e.gate.State(), n.Key)
		return
	}

	tag := fmt.Sprintf("chime-%s-%d", n.Key, e.now().UnixMilli())

	err := e.sender.Send(ctx, n, tag)
	if err != nil {
		log.Printf("[NOTIFY] delivery of %q failed, retrying in %s: %v", n.Key, e.RetryDelay, err)
		metrics.NotificationRetriesTotal.Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.RetryDelay):
		}

		err = e.sender.Send(ctx, n, tag+"-retry")
	}
	if err != nil {
		metrics.NotificationFailuresTotal.Inc()
		log.Printf("[NOTIFY] delivery of %q failed twice, giving up: %v", n.Key, err)
		return
	}

	metrics.NotificationsDeliveredTotal.Inc()
	e.messenger.Publish(ShownMessage{Title: n.Title, Timestamp: e.now()})
}
