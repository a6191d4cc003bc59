package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/store"
)

// EventHandler serves the event CRUD API consumed by the calendar UI. On
// every mutation it nudges connected pages to refresh; the next recheck
// cycle picks up the schedule changes.
type EventHandler struct {
	store *store.Store
	hub   *Hub
}

func NewEventHandler(s *store.Store, hub *Hub) *EventHandler {
	return &EventHandler{store: s, hub: hub}
}

func (h *EventHandler) Today(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	events, err := h.store.TodayEventsForUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to fetch events", http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []models.EventOccurrence{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.StartTime == "" || req.EndTime == "" {
		http.Error(w, "Title, start time, and end time are required", http.StatusBadRequest)
		return
	}

	cal, err := h.store.GetCalendar(req.CalendarID)
	if err != nil || cal.UserID != userID {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "Invalid start time: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "Invalid end time: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		// Same fixup the UI applies: a zero or negative span becomes a
		// half-hour block.
		end = start.Add(30 * time.Minute)
	}

	event, err := h.store.CreateEvent(req.CalendarID, req, start, end)
	if err != nil {
		http.Error(w, "Failed to create event", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastAll(models.WSMessage{Type: models.WSTypeEventsRefresh})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	calendarID := r.PathValue("calendarId")
	eventID := r.PathValue("id")

	cal, err := h.store.GetCalendar(calendarID)
	if err != nil || cal.UserID != userID {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}

	event, err := h.store.GetEvent(calendarID, eventID)
	if err != nil {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	calendarID := r.PathValue("calendarId")
	eventID := r.PathValue("id")

	cal, err := h.store.GetCalendar(calendarID)
	if err != nil || cal.UserID != userID {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}

	var req models.UpdateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var start, end *time.Time
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			http.Error(w, "Invalid start time: "+err.Error(), http.StatusBadRequest)
			return
		}
		start = &t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			http.Error(w, "Invalid end time: "+err.Error(), http.StatusBadRequest)
			return
		}
		end = &t
	}

	event, err := h.store.UpdateEvent(calendarID, eventID, req, start, end)
	if err != nil {
		http.Error(w, "Failed to update event", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastAll(models.WSMessage{Type: models.WSTypeEventsRefresh})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	calendarID := r.PathValue("calendarId")
	eventID := r.PathValue("id")

	cal, err := h.store.GetCalendar(calendarID)
	if err != nil || cal.UserID != userID {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}

	if err := h.store.DeleteEvent(calendarID, eventID); err != nil {
		http.Error(w, "Failed to delete event", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastAll(models.WSMessage{Type: models.WSTypeEventsRefresh})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
