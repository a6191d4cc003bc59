package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"chime-server/models"
)

// Safety cap so a malformed rule cannot blow up a single query window.
const maxOccurrencesPerEvent = 500

// TodayEvents returns the occurrences falling on the current day in the
// store's configured location, across every calendar. This is the
// process-wide feed the rechecker derives the notification schedule from.
func (s *Store) TodayEvents(ctx context.Context) ([]models.EventOccurrence, error) {
	start, end := s.todayWindow()
	return s.eventsBetween(ctx, "", start, end)
}

// TodayEventsForUser is TodayEvents restricted to the user's own calendars.
// The API serves this one.
func (s *Store) TodayEventsForUser(ctx context.Context, userID string) ([]models.EventOccurrence, error) {
	start, end := s.todayWindow()
	return s.eventsBetween(ctx, userID, start, end)
}

func (s *Store) todayWindow() (time.Time, time.Time) {
	now := time.Now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return dayStart, dayStart.AddDate(0, 0, 1)
}

// EventsBetween expands all events (including recurring ones) into concrete
// occurrences whose start lies within [windowStart, windowEnd).
func (s *Store) EventsBetween(ctx context.Context, windowStart, windowEnd time.Time) ([]models.EventOccurrence, error) {
	return s.eventsBetween(ctx, "", windowStart, windowEnd)
}

// EventsBetweenForUser is EventsBetween restricted to the user's calendars.
func (s *Store) EventsBetweenForUser(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]models.EventOccurrence, error) {
	return s.eventsBetween(ctx, userID, windowStart, windowEnd)
}

// eventsBetween runs the expansion query; an empty userID means no owner
// filter.
func (s *Store) eventsBetween(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]models.EventOccurrence, error) {
	query := `
		SELECT e.id, e.calendar_id, e.title, e.start_time, e.end_time, COALESCE(e.location, ''),
			COALESCE(e.description, ''), e.reminder_minutes, e.attendees, COALESCE(e.rrule, ''),
			e.created_at, e.updated_at, c.name, c.color
		FROM events e
		JOIN calendars c ON c.id = e.calendar_id`
	var args []interface{}
	if userID != "" {
		query += ` WHERE c.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY e.start_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occurrences []models.EventOccurrence
	for rows.Next() {
		var event models.Event
		var attendees sql.NullString
		var calName, color string
		err := rows.Scan(&event.ID, &event.CalendarID, &event.Title, &event.StartTime,
			&event.EndTime, &event.Location, &event.Description, &event.ReminderMinutes,
			&attendees, &event.RRule, &event.CreatedAt, &event.UpdatedAt, &calName, &color)
		if err != nil {
			return nil, err
		}

		expanded, err := expandEvent(event, calName, color, windowStart, windowEnd)
		if err != nil {
			// One bad rule should not take down the whole query window.
			log.Printf("[STORE] skipping event %s: %v", event.ID, err)
			continue
		}
		occurrences = append(occurrences, expanded...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].StartTime.Before(occurrences[j].StartTime)
	})
	return occurrences, nil
}

// expandEvent turns one stored event into its occurrences inside the window.
// Non-recurring events yield at most one occurrence; recurring ones yield an
// occurrence per RRULE hit, each with an occurrence-qualified identity.
func expandEvent(event models.Event, calName, color string, windowStart, windowEnd time.Time) ([]models.EventOccurrence, error) {
	if event.RRule == "" {
		if event.StartTime.Before(windowStart) || !event.StartTime.Before(windowEnd) {
			return nil, nil
		}
		return []models.EventOccurrence{makeOccurrence(event, calName, color, event.ID, event.StartTime)}, nil
	}

	ruleStr := strings.TrimPrefix(event.RRule, "RRULE:")
	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", event.RRule, err)
	}
	opt.Dtstart = event.StartTime

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule %q: %w", event.RRule, err)
	}

	// Between is inclusive on both ends; trim the right edge ourselves.
	starts := rule.Between(windowStart, windowEnd, true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	duration := event.EndTime.Sub(event.StartTime)
	var occurrences []models.EventOccurrence
	for _, start := range starts {
		if !start.Before(windowEnd) {
			continue
		}
		id := event.ID
		if !start.Equal(event.StartTime) {
			id = fmt.Sprintf("%s@%d", event.ID, start.Unix())
		}
		occ := makeOccurrence(event, calName, color, id, start)
		occ.EndTime = start.Add(duration)
		occurrences = append(occurrences, occ)
	}
	return occurrences, nil
}

func makeOccurrence(event models.Event, calName, color, id string, start time.Time) models.EventOccurrence {
	return models.EventOccurrence{
		ID:              id,
		EventID:         event.ID,
		CalendarID:      event.CalendarID,
		CalendarName:    calName,
		Color:           color,
		Title:           event.Title,
		StartTime:       start,
		EndTime:         event.EndTime,
		Location:        event.Location,
		Description:     event.Description,
		ReminderMinutes: event.ReminderMinutes,
	}
}
