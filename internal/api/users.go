package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/deskd/internal/storage"
)

type createUserRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	Expertise       []string `json:"expertise"`
	Skills          []string `json:"skills"`
	ExpertiseDomain string   `json:"expertiseDomain"`
	SolvedQueries   []string `json:"solvedQueries"`
}

type userResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	Expertise       []string  `json:"expertise"`
	Skills          []string  `json:"skills"`
	ExpertiseDomain string    `json:"expertiseDomain,omitempty"`
	SolvedQueries   []string  `json:"solvedQueries"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toUserResponse(u storage.User) userResponse {
	resp := userResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		Expertise:       u.Expertise,
		Skills:          u.Skills,
		ExpertiseDomain: u.ExpertiseDomain,
		SolvedQueries:   u.SolvedQueries,
		CreatedAt:       u.CreatedAt,
	}
	if resp.Expertise == nil {
		resp.Expertise = []string{}
	}
	if resp.Skills == nil {
		resp.Skills = []string{}
	}
	if resp.SolvedQueries == nil {
		resp.SolvedQueries = []string{}
	}
	return resp
}

func handleCreateUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name == "" || req.Email == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name and email are required")
			return
		}
		if req.Role == "" {
			req.Role = storage.RoleUser
		}
		if !storage.ValidRole(req.Role) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown role %q", req.Role)
			return
		}

		user := storage.User{
			ID:              uuid.New().String(),
			Name:            req.Name,
			Email:           req.Email,
			Role:            req.Role,
			Expertise:       req.Expertise,
			Skills:          req.Skills,
			ExpertiseDomain: req.ExpertiseDomain,
			SolvedQueries:   req.SolvedQueries,
			CreatedAt:       time.Now().UTC(),
		}
		if err := deps.Store.CreateUser(user); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				httpError(w, http.StatusConflict, "conflict", "email already registered")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create user: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(user))
	}
}

func handleListUsers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		if role == "" {
			role = storage.RoleAgent
		}
		if !storage.ValidRole(role) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown role %q", role)
			return
		}

		users, err := deps.Store.UsersByRole(role)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list users: %v", err)
			return
		}

		resp := make([]userResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, toUserResponse(u))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := deps.Store.GetUser(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get user: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	}
}

func handleUpdateUserRole(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if !storage.ValidRole(req.Role) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown role %q", req.Role)
			return
		}

		user, err := deps.Store.GetUser(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get user: %v", err)
			return
		}
		if user.Role == storage.RoleAdmin {
			httpError(w, http.StatusForbidden, "forbidden", "admin role cannot be changed")
			return
		}

		err = deps.Store.UpdateUserRole(user.ID, req.Role)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update role: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func handleDeleteUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteUser(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete user: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
