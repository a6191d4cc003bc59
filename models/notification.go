package models

import "time"

// WebSocket message envelope shared with the browser UI.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSTypeNotificationShown    = "notification_shown"
	WSTypeScheduleNotification = "schedule_notification"
	WSTypePermission           = "permission"
	WSTypeNotify               = "notify"
	WSTypeEventsRefresh        = "events_refresh"
)

// SchedulePayload is the foreground-originated schedule request carried over
// the WebSocket connection.
type SchedulePayload struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"` // fire-time, unix milliseconds
}

// ShownPayload acknowledges a presented notification back to every connected
// page.
type ShownPayload struct {
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// PermissionPayload reports the browser's Notification permission state.
type PermissionPayload struct {
	State string `json:"state"` // "granted", "denied" or "default"
}

// PushSubscription is a browser Web Push endpoint registered by the service
// worker.
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}
