package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pokeayman/pokeayman/internal/model"
	"github.com/pokeayman/pokeayman/internal/push"
	"github.com/pokeayman/pokeayman/internal/store"
)

const notificationPageSize = 50

type NotificationHandler struct {
	notifications *store.NotificationStore
	subscriptions *store.PushStore
	push          *push.Service
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *store.NotificationStore, subscriptions *store.PushStore, pushSvc *push.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, subscriptions: subscriptions, push: pushSvc, logger: logger}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	notifications, err := h.notifications.ListByRecipient(id, notificationPageSize)
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notifications"})
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// VAPIDKey returns the public key browsers need to subscribe.
func (h *NotificationHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.push == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "push notifications are not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.push.VAPIDPublicKey()})
}

type subscribeRequest struct {
	StudentID int64  `json:"student_id"`
	Endpoint  string `json:"endpoint"`
	P256dh    string `json:"p256dh"`
	Auth      string `json:"auth"`
}

func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint, p256dh and auth are required"})
		return
	}

	sub, err := h.subscriptions.CreateSubscription(req.StudentID, req.Endpoint, req.P256dh, req.Auth)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create subscription"})
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *NotificationHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Endpoint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint is required"})
		return
	}

	if err := h.subscriptions.DeleteByEndpoint(req.Endpoint); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete subscription"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
