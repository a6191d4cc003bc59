package handlers

import (
	"encoding/json"
	"net/http"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/notify"
	"chime-server/store"
)

// NotificationHandler exposes the push subscription lifecycle, the
// permission report endpoint, and a read-only view of pending schedules.
type NotificationHandler struct {
	store          *store.Store
	registry       *notify.Registry
	gate           *notify.Gate
	vapidPublicKey string
}

func NewNotificationHandler(s *store.Store, registry *notify.Registry, gate *notify.Gate, vapidPublicKey string) *NotificationHandler {
	return &NotificationHandler{
		store:          s,
		registry:       registry,
		gate:           gate,
		vapidPublicKey: vapidPublicKey,
	}
}

// VAPIDKey hands the public key to the page so it can subscribe its service
// worker for push.
func (h *NotificationHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		http.Error(w, "Push notifications not configured", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"key": h.vapidPublicKey})
}

func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		http.Error(w, "Endpoint and keys are required", http.StatusBadRequest)
		return
	}

	sub, err := h.store.SavePushSubscription(userID, req)
	if err != nil {
		http.Error(w, "Failed to save subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sub)
}

func (h *NotificationHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		http.Error(w, "Endpoint is required", http.StatusBadRequest)
		return
	}

	if err := h.store.DeletePushSubscriptionByEndpoint(req.Endpoint); err != nil {
		http.Error(w, "Failed to remove subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

// ReportPermission records the browser's Notification permission state.
func (h *NotificationHandler) ReportPermission(w http.ResponseWriter, r *http.Request) {
	var req models.PermissionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.gate.Report(notify.ParsePermissionState(req.State))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"state": h.gate.State().String()})
}

// Pending lists the currently armed notification timers.
func (h *NotificationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.registry.PendingList())
}
