package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"chime-server/models"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

// New opens (and if necessary creates) the SQLite database at dbPath. The
// location decides what "today" means for the events-due-today query.
func New(dbPath string, loc *time.Location) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if loc == nil {
		loc = time.Local
	}

	store := &Store{db: db, loc: loc}
	if err := store.init(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS calendars (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT,
		color TEXT NOT NULL DEFAULT '#039BE5',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_calendars_user ON calendars(user_id);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		calendar_id TEXT NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		location TEXT,
		description TEXT,
		reminder_minutes INTEGER NOT NULL DEFAULT 10,
		attendees TEXT,
		rrule TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_calendar ON events(calendar_id);
	CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		endpoint TEXT UNIQUE NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user ON push_subscriptions(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// User operations

func (s *Store) CreateUser(username, displayName, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO users (id, username, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.DisplayName, user.PasswordHash, user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(`
		SELECT id, username, display_name, password_hash, created_at
		FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByID(id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(`
		SELECT id, username, display_name, password_hash, created_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) ValidatePassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// Calendar operations

func (s *Store) CreateCalendar(userID, name, description, color string) (*models.Calendar, error) {
	if color == "" {
		color = "#039BE5"
	}

	cal := &models.Calendar{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Color:       color,
		CreatedAt:   time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO calendars (id, user_id, name, description, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cal.ID, cal.UserID, cal.Name, cal.Description, cal.Color, cal.CreatedAt)

	if err != nil {
		return nil, err
	}
	return cal, nil
}

func (s *Store) GetCalendar(id string) (*models.Calendar, error) {
	cal := &models.Calendar{}
	err := s.db.QueryRow(`
		SELECT id, user_id, name, COALESCE(description, ''), color, created_at
		FROM calendars WHERE id = ?
	`, id).Scan(&cal.ID, &cal.UserID, &cal.Name, &cal.Description, &cal.Color, &cal.CreatedAt)

	if err != nil {
		return nil, err
	}
	return cal, nil
}

func (s *Store) GetCalendarsForUser(userID string) ([]models.Calendar, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, COALESCE(description, ''), color, created_at
		FROM calendars
		WHERE user_id = ?
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calendars []models.Calendar
	for rows.Next() {
		var cal models.Calendar
		if err := rows.Scan(&cal.ID, &cal.UserID, &cal.Name, &cal.Description, &cal.Color, &cal.CreatedAt); err != nil {
			return nil, err
		}
		calendars = append(calendars, cal)
	}
	return calendars, rows.Err()
}

func (s *Store) UpdateCalendar(id string, req models.UpdateCalendarRequest) (*models.Calendar, error) {
	cal, err := s.GetCalendar(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		cal.Name = *req.Name
	}
	if req.Description != nil {
		cal.Description = *req.Description
	}
	if req.Color != nil {
		cal.Color = *req.Color
	}

	_, err = s.db.Exec(`
		UPDATE calendars SET name = ?, description = ?, color = ? WHERE id = ?
	`, cal.Name, cal.Description, cal.Color, cal.ID)

	if err != nil {
		return nil, err
	}
	return cal, nil
}

func (s *Store) DeleteCalendar(id string) error {
	if _, err := s.db.Exec("DELETE FROM events WHERE calendar_id = ?", id); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM calendars WHERE id = ?", id)
	return err
}

// Event operations

func (s *Store) CreateEvent(calendarID string, req models.CreateEventRequest, start, end time.Time) (*models.Event, error) {
	now := time.Now()
	event := &models.Event{
		ID:              uuid.New().String(),
		CalendarID:      calendarID,
		Title:           req.Title,
		StartTime:       start,
		EndTime:         end,
		Location:        req.Location,
		Description:     req.Description,
		ReminderMinutes: req.ReminderMinutes,
		Attendees:       req.Attendees,
		RRule:           req.RRule,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if event.ReminderMinutes <= 0 {
		event.ReminderMinutes = 10
	}

	attendees, err := marshalAttendees(event.Attendees)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		INSERT INTO events (id, calendar_id, title, start_time, end_time, location, description,
			reminder_minutes, attendees, rrule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.CalendarID, event.Title, event.StartTime, event.EndTime, event.Location,
		event.Description, event.ReminderMinutes, attendees, event.RRule, event.CreatedAt, event.UpdatedAt)

	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Store) GetEvent(calendarID, eventID string) (*models.Event, error) {
	event := &models.Event{}
	var attendees sql.NullString
	err := s.db.QueryRow(`
		SELECT id, calendar_id, title, start_time, end_time, COALESCE(location, ''),
			COALESCE(description, ''), reminder_minutes, attendees, COALESCE(rrule, ''),
			created_at, updated_at
		FROM events WHERE id = ? AND calendar_id = ?
	`, eventID, calendarID).Scan(&event.ID, &event.CalendarID, &event.Title, &event.StartTime,
		&event.EndTime, &event.Location, &event.Description, &event.ReminderMinutes,
		&attendees, &event.RRule, &event.CreatedAt, &event.UpdatedAt)

	if err != nil {
		return nil, err
	}

	event.Attendees, err = unmarshalAttendees(attendees)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Store) UpdateEvent(calendarID, eventID string, req models.UpdateEventRequest, start, end *time.Time) (*models.Event, error) {
	event, err := s.GetEvent(calendarID, eventID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if start != nil {
		event.StartTime = *start
	}
	if end != nil {
		event.EndTime = *end
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.ReminderMinutes != nil && *req.ReminderMinutes > 0 {
		event.ReminderMinutes = *req.ReminderMinutes
	}
	if req.Attendees != nil {
		event.Attendees = req.Attendees
	}
	if req.RRule != nil {
		event.RRule = *req.RRule
	}
	event.UpdatedAt = time.Now()

	attendees, err := marshalAttendees(event.Attendees)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		UPDATE events SET title = ?, start_time = ?, end_time = ?, location = ?, description = ?,
			reminder_minutes = ?, attendees = ?, rrule = ?, updated_at = ?
		WHERE id = ? AND calendar_id = ?
	`, event.Title, event.StartTime, event.EndTime, event.Location, event.Description,
		event.ReminderMinutes, attendees, event.RRule, event.UpdatedAt, event.ID, event.CalendarID)

	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Store) DeleteEvent(calendarID, eventID string) error {
	_, err := s.db.Exec("DELETE FROM events WHERE id = ? AND calendar_id = ?", eventID, calendarID)
	return err
}

// AllEventsForUser returns every stored event across the user's calendars,
// ordered by start time. Used by the ICS export and the backup snapshot.
func (s *Store) AllEventsForUser(userID string) ([]models.Event, error) {
	rows, err := s.db.Query(`
		SELECT e.id, e.calendar_id, e.title, e.start_time, e.end_time, COALESCE(e.location, ''),
			COALESCE(e.description, ''), e.reminder_minutes, e.attendees, COALESCE(e.rrule, ''),
			e.created_at, e.updated_at
		FROM events e
		JOIN calendars c ON c.id = e.calendar_id
		WHERE c.user_id = ?
		ORDER BY e.start_time ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var event models.Event
		var attendees sql.NullString
		err := rows.Scan(&event.ID, &event.CalendarID, &event.Title, &event.StartTime,
			&event.EndTime, &event.Location, &event.Description, &event.ReminderMinutes,
			&attendees, &event.RRule, &event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if event.Attendees, err = unmarshalAttendees(attendees); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Push subscription operations

func (s *Store) SavePushSubscription(userID string, req models.SubscribeRequest) (*models.PushSubscription, error) {
	sub := &models.PushSubscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET p256dh = excluded.p256dh, auth = excluded.auth
	`, sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt)

	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) ListPushSubscriptions() ([]models.PushSubscription, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) DeletePushSubscriptionByEndpoint(endpoint string) error {
	_, err := s.db.Exec("DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	return err
}

func marshalAttendees(attendees []string) (sql.NullString, error) {
	if len(attendees) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(attendees)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalAttendees(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var attendees []string
	if err := json.Unmarshal([]byte(raw.String), &attendees); err != nil {
		return nil, err
	}
	return attendees, nil
}
