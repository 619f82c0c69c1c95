package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"wattWiseAPI/internal/responsestore"
	"wattWiseAPI/internal/types/notification"
	"wattWiseAPI/middleware"
	"wattWiseAPI/services"
)

type NotificationHandler struct {
	scheduler *services.SchedulerService
	store     *responsestore.Store
}

func NewNotificationHandler(scheduler *services.SchedulerService, store *responsestore.Store) *NotificationHandler {
	return &NotificationHandler{
		scheduler: scheduler,
		store:     store,
	}
}

// GET /api/v1/notifications - Current prompts for the user
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	respondWithJSON(w, http.StatusOK, h.scheduler.Notifications(clerkID))
}

// GET /api/v1/notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"unread_count": h.scheduler.UnreadCount(clerkID)})
}

// PUT /api/v1/notifications/{id}/read - Dismiss a single prompt
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}

	if err := h.scheduler.MarkRead(clerkID, id); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	h.scheduler.MarkAllRead(clerkID)
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// POST /api/v1/notifications/register-device - Store a push token
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req notification.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "A device token is required")
		return
	}

	if err := h.store.RegisterDevice(clerkID, req.Token, req.Platform); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to register device")
		return
	}

	h.scheduler.Track(clerkID)
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
