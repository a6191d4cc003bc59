package notify

import "time"

// Notification is a reminder ready for presentation.
type Notification struct {
	Key    string
	Title  string
	Body   string
	FireAt time.Time
}

// Message is the closed set of frames exchanged between the scheduling core
// and connected pages. Only the two variants below exist; handlers switch on
// the concrete type instead of inspecting a type string.
type Message interface {
	isMessage()
}

// ScheduleMessage asks the scheduling core to arm (or supersede) a
// notification for Key at FireAt.
type ScheduleMessage struct {
	Key    string
	Title  string
	Body   string
	FireAt time.Time
}

func (ScheduleMessage) isMessage() {}

// ShownMessage announces a successfully presented notification to every
// connected page.
type ShownMessage struct {
	Title     string
	Timestamp time.Time
}

func (ShownMessage) isMessage() {}

// Messenger carries messages to the connected pages. Delivery is
// at-most-once: with no page connected the message is simply lost.
type Messenger interface {
	Publish(msg Message)
}

// NopMessenger discards every message. Used when no hub is wired up.
type NopMessenger struct{}

func (NopMessenger) Publish(Message) {}
