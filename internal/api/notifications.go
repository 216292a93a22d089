package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/deskd/internal/storage"
)

func handleListNotifications(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user query parameter is required")
			return
		}

		notes, err := deps.Store.NotificationsForUser(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list notifications: %v", err)
			return
		}

		type notificationResponse struct {
			ID        string `json:"id"`
			Kind      string `json:"kind"`
			Message   string `json:"message"`
			Read      bool   `json:"read"`
			CreatedAt string `json:"createdAt"`
		}
		resp := make([]notificationResponse, 0, len(notes))
		for _, n := range notes {
			resp = append(resp, notificationResponse{
				ID:        n.ID,
				Kind:      n.Kind,
				Message:   n.Message,
				Read:      n.Read,
				CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleMarkNotificationRead(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.MarkNotificationRead(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "notification not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to mark read: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}
}
