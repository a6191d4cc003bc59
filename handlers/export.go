package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	ics "github.com/arran4/golang-ical"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/store"
)

// ExportHandler renders the user's calendars as ICS and snapshots them into
// a local git repository so every backup is a browsable revision.
type ExportHandler struct {
	store     *store.Store
	backupDir string
}

func NewExportHandler(s *store.Store, backupDir string) *ExportHandler {
	return &ExportHandler{store: s, backupDir: backupDir}
}

// ExportICS streams a single ICS feed containing every event the user owns.
func (h *ExportHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	events, err := h.store.AllEventsForUser(userID)
	if err != nil {
		http.Error(w, "Failed to fetch events", http.StatusInternalServerError)
		return
	}

	cal := buildICS(events)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="chime.ics"`)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		log.Printf("[EXPORT] write failed: %v", err)
	}
}

// Backup writes one ICS file per calendar into the backup repository and
// commits the snapshot.
func (h *ExportHandler) Backup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	calendars, err := h.store.GetCalendarsForUser(userID)
	if err != nil {
		http.Error(w, "Failed to fetch calendars", http.StatusInternalServerError)
		return
	}

	events, err := h.store.AllEventsForUser(userID)
	if err != nil {
		http.Error(w, "Failed to fetch events", http.StatusInternalServerError)
		return
	}

	byCalendar := make(map[string][]models.Event)
	for _, ev := range events {
		byCalendar[ev.CalendarID] = append(byCalendar[ev.CalendarID], ev)
	}

	repo, err := openOrInitRepo(h.backupDir)
	if err != nil {
		log.Printf("[BACKUP] repo open failed: %v", err)
		http.Error(w, "Backup repository unavailable", http.StatusInternalServerError)
		return
	}

	for _, cal := range calendars {
		data := buildICS(byCalendar[cal.ID]).Serialize()
		name := filepath.Join(h.backupDir, cal.ID+".ics")
		if err := os.WriteFile(name, []byte(data), 0o644); err != nil {
			http.Error(w, "Failed to write snapshot", http.StatusInternalServerError)
			return
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		http.Error(w, "Backup repository unavailable", http.StatusInternalServerError)
		return
	}
	if err := wt.AddGlob("*.ics"); err != nil {
		http.Error(w, "Failed to stage snapshot", http.StatusInternalServerError)
		return
	}

	status, err := wt.Status()
	if err != nil {
		http.Error(w, "Failed to read repository status", http.StatusInternalServerError)
		return
	}
	if status.IsClean() {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "changed": false})
		return
	}

	msg := fmt.Sprintf("Snapshot %d calendars, %d events", len(calendars), len(events))
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "chime-server",
			Email: "chime@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		log.Printf("[BACKUP] commit failed: %v", err)
		http.Error(w, "Failed to commit snapshot", http.StatusInternalServerError)
		return
	}

	log.Printf("[BACKUP] committed %s (%s)", hash.String()[:8], msg)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"changed": true,
		"commit":  hash.String(),
	})
}

func openOrInitRepo(dir string) (*git.Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return git.PlainInit(dir, false)
	}
	return repo, err
}

func buildICS(events []models.Event) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//chime-server//calendar//EN")

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(ev.UpdatedAt)
		ve.SetCreatedTime(ev.CreatedAt)
		ve.SetStartAt(ev.StartTime)
		ve.SetEndAt(ev.EndTime)
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.RRule != "" {
			ve.AddRrule(ev.RRule)
		}
		for _, attendee := range ev.Attendees {
			ve.AddAttendee(attendee)
		}
	}
	return cal
}
