package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/deskd/internal/storage"
)

func handleCreateCategory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		cat := storage.Category{ID: uuid.New().String(), Name: req.Name}
		if err := deps.Store.CreateCategory(cat); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				httpError(w, http.StatusConflict, "conflict", "category already exists")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create category: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, cat)
	}
}

func handleListCategories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := deps.Store.ListCategories()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list categories: %v", err)
			return
		}
		if cats == nil {
			cats = []storage.Category{}
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

func handleDeleteCategory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteCategory(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "category not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete category: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
