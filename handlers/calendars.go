package handlers

import (
	"encoding/json"
	"net/http"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/store"
)

type CalendarHandler struct {
	store *store.Store
}

func NewCalendarHandler(s *store.Store) *CalendarHandler {
	return &CalendarHandler{store: s}
}

func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	calendars, err := h.store.GetCalendarsForUser(userID)
	if err != nil {
		http.Error(w, "Failed to fetch calendars", http.StatusInternalServerError)
		return
	}

	if calendars == nil {
		calendars = []models.Calendar{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(calendars)
}

func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.CreateCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	cal, err := h.store.CreateCalendar(userID, req.Name, req.Description, req.Color)
	if err != nil {
		http.Error(w, "Failed to create calendar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cal)
}

func (h *CalendarHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	calendarID := r.PathValue("id")

	cal, err := h.store.GetCalendar(calendarID)
	if err != nil || cal.UserID != userID {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}

	var req models.UpdateCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.store.UpdateCalendar(calendarID, req)
	if err != nil {
		http.Error(w, "Failed to update calendar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	calendarID := r.PathValue("id")

	cal, err := h.store.GetCalendar(calendarID)
	if err != nil || cal.UserID != userID {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}

	if err := h.store.DeleteCalendar(calendarID); err != nil {
		http.Error(w, "Failed to delete calendar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
