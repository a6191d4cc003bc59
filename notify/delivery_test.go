package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedSender fails the first failures calls, then succeeds. It records
// every tag it was asked to present.
type scriptedSender struct {
	mu       sync.Mutex
	failures int
	tags     []string
}

func (s *scriptedSender) Name() string { return "scripted" }

func (s *scriptedSender) Send(ctx context.Context, n Notification, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tag)
	if s.failures > 0 {
		s.failures--
		return errors.New("transient failure")
	}
	return nil
}

func (s *scriptedSender) sentTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tags...)
}

type recordingMessenger struct {
	mu   sync.Mutex
	msgs []Message
}

func (m *recordingMessenger) Publish(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *recordingMessenger) published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.msgs...)
}

func grantedGate() *Gate {
	g := NewGate()
	g.Report(PermissionGranted)
	return g
}

func TestEngineDeliverPublishesShown(t *testing.T) {
	sender := &scriptedSender{}
	messenger := &recordingMessenger{}
	e := NewEngine(sender, messenger, grantedGate())

	e.Deliver(context.Background(), Notification{Key: "standup", Title: "Standup"})

	if got := len(sender.sentTags()); got != 1 {
		t.Fatalf("sent %d times, want 1", got)
	}
	msgs := messenger.published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	shown, ok := msgs[0].(ShownMessage)
	if !ok {
		t.Fatalf("published %T, want ShownMessage", msgs[0])
	}
	if shown.Title != "Standup" {
		t.Errorf("ShownMessage.Title = %q, want %q", shown.Title, "Standup")
	}
}

func TestEngineRetriesOnceThenSucceeds(t *testing.T) {
	sender := &scriptedSender{failures: 1}
	messenger := &recordingMessenger{}
	e := NewEngine(sender, messenger, grantedGate())
	e.RetryDelay = time.Millisecond

	e.Deliver(context.Background(), Notification{Key: "standup", Title: "Standup"})

	tags := sender.sentTags()
	if len(tags) != 2 {
		t.Fatalf("sent %d times, want 2 (original + retry)", len(tags))
	}
	if !strings.HasSuffix(tags[1], "-retry") {
		t.Errorf("retry tag = %q, want -retry suffix", tags[1])
	}
	if len(messenger.published()) != 1 {
		t.Errorf("published %d messages, want 1 after the retry succeeded", len(messenger.published()))
	}
}

func TestEngineGivesUpAfterSecondFailure(t *testing.T) {
	sender := &scriptedSender{failures: 2}
	messenger := &recordingMessenger{}
	e := NewEngine(sender, messenger, grantedGate())
	e.RetryDelay = time.Millisecond

	e.Deliver(context.Background(), Notification{Key: "standup", Title: "Standup"})

	if got := len(sender.sentTags()); got != 2 {
		t.Errorf("sent %d times, want exactly 2 attempts", got)
	}
	if got := len(messenger.published()); got != 0 {
		t.Errorf("published %d messages, want 0 after giving up", got)
	}
}

func TestEngineDropsWithoutPermission(t *testing.T) {
	for _, state := range []PermissionState{PermissionUnrequested, PermissionDenied} {
		sender := &scriptedSender{}
		gate := NewGate()
		gate.Report(state)
		e := NewEngine(sender, &recordingMessenger{}, gate)

		e.Deliver(context.Background(), Notification{Key: "standup", Title: "Standup"})

		if got := len(sender.sentTags()); got != 0 {
			t.Errorf("state %v: sent %d times, want 0", state, got)
		}
	}
}

func TestEngineRetryAbortsOnContextCancel(t *testing.T) {
	sender := &scriptedSender{failures: 2}
	messenger := &recordingMessenger{}
	e := NewEngine(sender, messenger, grantedGate())
	e.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Deliver(ctx, Notification{Key: "standup", Title: "Standup"})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver did not return after context cancel")
	}
	if got := len(sender.sentTags()); got != 1 {
		t.Errorf("sent %d times, want 1 (retry aborted)", got)
	}
}

func TestFanoutSucceedsIfAnyChannelDoes(t *testing.T) {
	failing := &scriptedSender{failures: 10}
	ok := &scriptedSender{}
	f := Fanout{failing, ok}

	if err := f.Send(context.Background(), Notification{Key: "k"}, "tag"); err != nil {
		t.Errorf("Send() = %v, want nil when one channel succeeds", err)
	}
}

func TestFanoutFailsWhenAllChannelsFail(t *testing.T) {
	f := Fanout{&scriptedSender{failures: 10}, &scriptedSender{failures: 10}}

	if err := f.Send(context.Background(), Notification{Key: "k"}, "tag"); err == nil {
		t.Error("Send() = nil, want error when every channel fails")
	}
}

func TestFanoutEmptyIsError(t *testing.T) {
	if err := (Fanout{}).Send(context.Background(), Notification{}, "tag"); err == nil {
		t.Error("Send() = nil, want error with no channels configured")
	}
}
