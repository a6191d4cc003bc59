package models

import "time"

type Event struct {
	ID              string    `json:"id"`
	CalendarID      string    `json:"calendar_id"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Location        string    `json:"location,omitempty"`
	Description     string    `json:"description,omitempty"`
	ReminderMinutes int       `json:"reminder_minutes"`
	Attendees       []string  `json:"attendees,omitempty"`
	RRule           string    `json:"rrule,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EventOccurrence is a single concrete occurrence of an event within a query
// window, joined with its calendar's display attributes. For recurring events
// the ID is occurrence-qualified ("<event id>@<unix start>") so that every
// occurrence has a stable identity of its own.
type EventOccurrence struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	CalendarID      string    `json:"calendar_id"`
	CalendarName    string    `json:"calendar_name"`
	Color           string    `json:"color"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Location        string    `json:"location,omitempty"`
	Description     string    `json:"description,omitempty"`
	ReminderMinutes int       `json:"reminder_minutes"`
}

type CreateEventRequest struct {
	CalendarID      string   `json:"calendar_id"`
	Title           string   `json:"title"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	Location        string   `json:"location"`
	Description     string   `json:"description"`
	ReminderMinutes int      `json:"reminder_minutes"`
	Attendees       []string `json:"attendees"`
	RRule           string   `json:"rrule"`
}

type UpdateEventRequest struct {
	Title           *string  `json:"title,omitempty"`
	StartTime       *string  `json:"start_time,omitempty"`
	EndTime         *string  `json:"end_time,omitempty"`
	Location        *string  `json:"location,omitempty"`
	Description     *string  `json:"description,omitempty"`
	ReminderMinutes *int     `json:"reminder_minutes,omitempty"`
	Attendees       []string `json:"attendees,omitempty"`
	RRule           *string  `json:"rrule,omitempty"`
}
