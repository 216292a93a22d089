// Package api exposes the helpdesk REST surface: users, tickets,
// comments, categories, notifications and the agent ranking endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/deskd/internal/blob"
	"github.com/kalambet/deskd/internal/matching"
	"github.com/kalambet/deskd/internal/metrics"
	"github.com/kalambet/deskd/internal/oracle"
	"github.com/kalambet/deskd/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxAttachmentSize = 10 << 20 // 10MB

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Store       *storage.Store
	Recommender *matching.Recommender
	Oracle      *oracle.Client
	Blobs       *blob.DiskStore
	Metrics     *metrics.Metrics
	Token       string
}

// NewHandler builds the full router. /health and /metrics are open;
// everything under /api requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/users", handleCreateUser(deps))
		r.Get("/users", handleListUsers(deps))
		r.Get("/users/expertise", handleUserExpertise(deps))
		r.Post("/users/priority-analysis", handlePriorityAnalysis(deps))
		r.Get("/users/{id}", handleGetUser(deps))
		r.Patch("/users/{id}/role", handleUpdateUserRole(deps))
		r.Delete("/users/{id}", handleDeleteUser(deps))

		r.Post("/tickets", handleCreateTicket(deps))
		r.Get("/tickets", handleListTickets(deps))
		r.Get("/tickets/recent", handleRecentTickets(deps))
		r.Get("/tickets/stats", handleTicketStats(deps))
		r.Get("/tickets/{id}", handleGetTicket(deps))
		r.Patch("/tickets/{id}/status", handleUpdateTicketStatus(deps))
		r.Post("/tickets/{id}/assign", handleAssignTicket(deps))
		r.Post("/tickets/{id}/comments", handleAddComment(deps))
		r.Get("/tickets/{id}/comments", handleListComments(deps))
		r.Get("/tickets/{id}/recommendations", handleRecommendations(deps))
		r.Get("/tickets/{id}/summary", handleTicketSummary(deps))
		r.Post("/tickets/{id}/attachment", handleUploadAttachment(deps))
		r.Get("/tickets/{id}/attachment", handleDownloadAttachment(deps))

		r.Post("/categories", handleCreateCategory(deps))
		r.Get("/categories", handleListCategories(deps))
		r.Delete("/categories/{id}", handleDeleteCategory(deps))

		r.Get("/notifications", handleListNotifications(deps))
		r.Post("/notifications/{id}/read", handleMarkNotificationRead(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
