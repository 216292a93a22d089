package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/deskd/internal/blob"
	"github.com/kalambet/deskd/internal/notify"
	"github.com/kalambet/deskd/internal/storage"
)

type createTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
	CreatedBy   string `json:"createdBy"`
}

type ticketResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Status      string    `json:"status"`
	Priority    int       `json:"priority"`
	CreatedBy   string    `json:"createdBy"`
	AssignedTo  string    `json:"assignedTo,omitempty"`
	Attachment  string    `json:"attachment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toTicketResponse(t storage.Ticket) ticketResponse {
	return ticketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		CategoryID:  t.CategoryID,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedBy:   t.CreatedBy,
		AssignedTo:  t.AssignedTo,
		Attachment:  t.Attachment,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTicketResponses(tickets []storage.Ticket) []ticketResponse {
	resp := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp = append(resp, toTicketResponse(t))
	}
	return resp
}

func handleCreateTicket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createTicketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Title = strings.TrimSpace(sanitizeHTML(req.Title))
		req.Description = strings.TrimSpace(sanitizeHTML(req.Description))
		if req.Title == "" || req.Description == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title and description are required")
			return
		}
		if req.CreatedBy != "" {
			if _, err := deps.Store.GetUser(req.CreatedBy); errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown creator %q", req.CreatedBy)
				return
			} else if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to verify creator: %v", err)
				return
			}
		}

		// Score urgency at creation; an unreachable oracle never blocks
		// ticket intake, the priority just bottoms out.
		priority := 1
		if deps.Oracle != nil {
			if p, err := deps.Oracle.PriorityScore(r.Context(), req.Title+": "+req.Description); err == nil {
				priority = p
				if deps.Metrics != nil {
					deps.Metrics.RecordOracle("priority_score", "ok")
				}
			} else if deps.Metrics != nil {
				deps.Metrics.RecordOracle("priority_score", oracleOutcome(err))
			}
		}

		now := time.Now().UTC()
		ticket := storage.Ticket{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Description: req.Description,
			CategoryID:  req.CategoryID,
			Status:      storage.StatusOpen,
			Priority:    priority,
			CreatedBy:   req.CreatedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := deps.Store.CreateTicket(ticket); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create ticket: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, toTicketResponse(ticket))
	}
}

func handleListTickets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			tickets []storage.Ticket
			err     error
		)
		switch {
		case r.URL.Query().Get("status") != "":
			status := r.URL.Query().Get("status")
			if !storage.ValidStatus(status) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", status)
				return
			}
			tickets, err = deps.Store.TicketsByStatus(status)
		case r.URL.Query().Get("assignee") != "":
			tickets, err = deps.Store.TicketsByAssignee(r.URL.Query().Get("assignee"))
		default:
			tickets, err = deps.Store.ListTickets()
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tickets: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toTicketResponses(tickets))
	}
}

func handleRecentTickets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user query parameter is required")
			return
		}
		limit := parseIntParam(r, "limit", 5, 50)

		tickets, err := deps.Store.TicketsByCreator(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tickets: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toTicketResponses(tickets))
	}
}

func handleTicketStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.Stats(r.URL.Query().Get("user"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleGetTicket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticket, err := deps.Store.GetTicket(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toTicketResponse(ticket))
	}
}

func handleUpdateTicketStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if !storage.ValidStatus(req.Status) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", req.Status)
			return
		}

		id := chi.URLParam(r, "id")
		ticket, err := deps.Store.GetTicket(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}

		if err := deps.Store.UpdateTicketStatus(id, req.Status); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update status: %v", err)
			return
		}

		if ticket.Status != req.Status {
			notifyQuietly(deps, ticket.CreatedBy, notify.KindStatus,
				"Ticket \""+ticket.Title+"\" is now "+req.Status)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleAssignTicket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			AgentID string `json:"agentId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.AgentID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "agentId is required")
			return
		}

		agent, err := deps.Store.GetUser(req.AgentID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "agent not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get agent: %v", err)
			return
		}
		if agent.Role != storage.RoleAgent {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user %q is not an agent", req.AgentID)
			return
		}

		id := chi.URLParam(r, "id")
		ticket, err := deps.Store.GetTicket(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}

		if err := deps.Store.AssignTicket(id, agent.ID); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to assign ticket: %v", err)
			return
		}

		notifyQuietly(deps, agent.ID, notify.KindAssignment,
			"You were assigned ticket \""+ticket.Title+"\"")
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "assigned",
			"assignedTo": agent.ID,
		})
	}
}

type commentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func handleAddComment(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			AuthorID string `json:"authorId"`
			Text     string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Text = strings.TrimSpace(sanitizeHTML(req.Text))
		if req.AuthorID == "" || req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "authorId and text are required")
			return
		}

		author, err := deps.Store.GetUser(req.AuthorID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "author not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get author: %v", err)
			return
		}

		id := chi.URLParam(r, "id")
		ticket, err := deps.Store.GetTicket(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}

		comment := storage.Comment{
			ID:        uuid.New().String(),
			TicketID:  id,
			AuthorID:  author.ID,
			Text:      req.Text,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.AddComment(comment); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add comment: %v", err)
			return
		}

		// An agent replying to an unassigned ticket picks it up.
		assignedTo := ticket.AssignedTo
		if author.Role == storage.RoleAgent && ticket.AssignedTo == "" {
			if err := deps.Store.AssignTicket(id, author.ID); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to assign ticket: %v", err)
				return
			}
			assignedTo = author.ID
		}

		if ticket.CreatedBy != author.ID {
			notifyQuietly(deps, ticket.CreatedBy, notify.KindComment,
				"New comment on ticket \""+ticket.Title+"\"")
		}
		if assignedTo != "" && assignedTo != author.ID {
			notifyQuietly(deps, assignedTo, notify.KindComment,
				"New comment on ticket \""+ticket.Title+"\"")
		}

		writeJSON(w, http.StatusCreated, commentResponse{
			ID:        comment.ID,
			TicketID:  comment.TicketID,
			AuthorID:  comment.AuthorID,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		})
	}
}

func handleListComments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetTicket(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}

		comments, err := deps.Store.CommentsByTicket(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list comments: %v", err)
			return
		}

		resp := make([]commentResponse, 0, len(comments))
		for _, c := range comments {
			resp = append(resp, commentResponse{
				ID:        c.ID,
				TicketID:  c.TicketID,
				AuthorID:  c.AuthorID,
				Text:      c.Text,
				CreatedAt: c.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleTicketSummary asks the oracle to condense the ticket, folding
// in attachment text when one is stored.
func handleTicketSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticket, err := deps.Store.GetTicket(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}

		text := ticket.Title + "\n\n" + ticket.Description
		if ticket.Attachment != "" && deps.Blobs != nil {
			attached, err := deps.Blobs.Text(ticket.Attachment)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to read attachment: %v", err)
				return
			}
			text += "\n\n" + attached
		}

		summary, err := deps.Oracle.Summarize(r.Context(), text)
		if deps.Metrics != nil {
			deps.Metrics.RecordOracle("summarize", oracleOutcome(err))
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "oracle_unavailable", "summarization failed: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"ticketId": ticket.ID,
			"summary":  summary,
		})
	}
}

func handleUploadAttachment(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ticket, err := deps.Store.GetTicket(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentSize)
		if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file field is required")
			return
		}
		defer file.Close()

		key, err := deps.Blobs.Save(header.Filename, file)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store attachment: %v", err)
			return
		}

		if ticket.Attachment != "" {
			_ = deps.Blobs.Delete(ticket.Attachment)
		}
		if err := deps.Store.SetTicketAttachment(id, key); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record attachment: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{
			"ticketId":   id,
			"attachment": key,
		})
	}
}

func handleDownloadAttachment(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticket, err := deps.Store.GetTicket(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}
		if ticket.Attachment == "" {
			httpError(w, http.StatusNotFound, "not_found", "ticket has no attachment")
			return
		}

		rc, err := deps.Blobs.Open(ticket.Attachment)
		if errors.Is(err, blob.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "attachment missing from store")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to open attachment: %v", err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}

// notifyQuietly enqueues a notification; delivery problems are logged
// by the queue, never surfaced to the request.
func notifyQuietly(deps Deps, userID, kind, message string) {
	_ = notify.Enqueue(deps.Store, userID, kind, message)
}
