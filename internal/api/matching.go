package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/deskd/internal/matching"
	"github.com/kalambet/deskd/internal/oracle"
	"github.com/kalambet/deskd/internal/storage"
)

// agentSummary is the candidate view returned when ranking cannot
// complete, so callers can still fall back to manual assignment.
type agentSummary struct {
	UserID          string `json:"userId"`
	ExpertiseDomain string `json:"expertiseDomain"`
	SolvedQueries   int    `json:"solvedQueries"`
}

func summarizeCorpus(corpus []oracle.Candidate) []agentSummary {
	out := make([]agentSummary, 0, len(corpus))
	for _, c := range corpus {
		out = append(out, agentSummary{
			UserID:          c.UserID,
			ExpertiseDomain: c.ExpertiseDomain,
			SolvedQueries:   len(c.SolvedQueries),
		})
	}
	return out
}

// writeRankingError maps pipeline failures onto HTTP statuses. Oracle
// failures still carry the assembled candidate set.
func writeRankingError(w http.ResponseWriter, err error, analysis *matching.Analysis) {
	var available []agentSummary
	if analysis != nil {
		available = summarizeCorpus(analysis.Corpus)
	}

	switch {
	case errors.Is(err, matching.ErrNoAgents):
		httpError(w, http.StatusNotFound, "no_agents_available", "no support agents found")
	case errors.Is(err, oracle.ErrInvalidQuery):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "query must not be empty")
	case errors.Is(err, oracle.ErrMalformed):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":           map[string]any{"message": "ranking service returned an unusable response", "type": "oracle_malformed"},
			"availableAgents": available,
		})
	case errors.Is(err, oracle.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":           map[string]any{"message": "ranking service unavailable", "type": "oracle_unavailable"},
			"availableAgents": available,
		})
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "ranking failed: %v", err)
	}
}

// recommendationsResponse carries the ranked list plus the oracle's
// unmodified payload for audit.
type recommendationsResponse struct {
	Question        string                    `json:"question"`
	TopN            int                       `json:"topN"`
	Recommendations []matching.Recommendation `json:"recommendations"`
	Oracle          json.RawMessage           `json:"oracle"`
}

func oracleOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, oracle.ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, oracle.ErrMalformed):
		return "malformed"
	case errors.Is(err, oracle.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func recordRanking(deps Deps, err error) {
	if deps.Metrics == nil {
		return
	}
	if !errors.Is(err, matching.ErrNoAgents) {
		deps.Metrics.RecordOracle("priority_users", oracleOutcome(err))
	}
	if err == nil {
		deps.Metrics.RecordRecommendation()
	}
}

// handlePriorityAnalysis ranks agents for a free-form question.
func handlePriorityAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		// top_n is accepted as an alias so clients speaking the
		// oracle's snake_case wire can call this endpoint directly.
		var req struct {
			Question string `json:"question"`
			TopN     int    `json:"topN"`
			TopNWire int    `json:"top_n"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TopN == 0 {
			req.TopN = req.TopNWire
		}

		analysis, err := deps.Recommender.Recommend(r.Context(), req.Question, req.TopN)
		recordRanking(deps, err)
		if err != nil {
			writeRankingError(w, err, analysis)
			return
		}

		writeJSON(w, http.StatusOK, recommendationsResponse{
			Question:        analysis.Question,
			TopN:            analysis.TopN,
			Recommendations: analysis.Recommendations,
			Oracle:          analysis.Raw,
		})
	}
}

// handleRecommendations ranks agents for an existing ticket.
func handleRecommendations(deps Deps) http.HandlerFunc {
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

		topN := parseIntParam(r, "top_n", 0, 50)
		analysis, err := deps.Recommender.RecommendTicket(r.Context(), ticket.Title, ticket.Description, topN)
		recordRanking(deps, err)
		if err != nil {
			writeRankingError(w, err, analysis)
			return
		}

		writeJSON(w, http.StatusOK, recommendationsResponse{
			Question:        analysis.Question,
			TopN:            analysis.TopN,
			Recommendations: analysis.Recommendations,
			Oracle:          analysis.Raw,
		})
	}
}

// handleUserExpertise lists agents with their resolved expertise label
// and derived solved-query corpus, without consulting the oracle.
func handleUserExpertise(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		corpus, directory, err := deps.Recommender.Corpus(r.Context())
		if errors.Is(err, matching.ErrNoAgents) {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build corpus: %v", err)
			return
		}

		type expertiseEntry struct {
			UserID          string   `json:"userId"`
			Name            string   `json:"name"`
			Email           string   `json:"email"`
			ExpertiseDomain string   `json:"expertiseDomain"`
			SolvedQueries   []string `json:"solvedQueries"`
		}
		resp := make([]expertiseEntry, 0, len(corpus))
		for _, c := range corpus {
			agent := directory[c.UserID]
			resp = append(resp, expertiseEntry{
				UserID:          c.UserID,
				Name:            agent.Name,
				Email:           agent.Email,
				ExpertiseDomain: c.ExpertiseDomain,
				SolvedQueries:   c.SolvedQueries,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
