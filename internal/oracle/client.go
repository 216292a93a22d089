// Package oracle implements the HTTP client for the external AI
// relevance-scoring service. The service is treated as an untrusted
// black box: every response is shape-checked before use, and transport
// failures are reported distinctly from malformed payloads so callers
// can tell "the oracle is down" from "the oracle returned garbage".
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrInvalidQuery is returned for empty or whitespace-only questions,
	// before any network call is made.
	ErrInvalidQuery = errors.New("query must not be empty")

	// ErrUnavailable covers network failures, timeouts, and non-2xx
	// responses from the oracle.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrMalformed is returned when the oracle responds 2xx but the body
	// does not contain the expected structure. Distinct from a valid
	// response with zero results.
	ErrMalformed = errors.New("oracle response malformed")
)

// Candidate is one agent profile in the wire format the oracle scores.
type Candidate struct {
	UserID          string   `json:"userId"`
	ExpertiseDomain string   `json:"expertise_domain"`
	SolvedQueries   []string `json:"Solved queries"`
}

// PriorityUser is one scored entry of the oracle's ranked output.
type PriorityUser struct {
	UserID             string   `json:"userId"`
	RelevanceScore     float64  `json:"relevance_score"`
	Reasoning          string   `json:"reasoning"`
	MatchingQueries    []string `json:"matching_queries"`
	TotalSolvedQueries int      `json:"total_solved_queries"`
}

// PriorityResult is the oracle's ranked relevance judgment. Raw holds
// the verbatim response body for audit output.
type PriorityResult struct {
	PriorityUsers []PriorityUser
	Raw           json.RawMessage
}

// Client communicates with the AI relevance/summarization service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a Client targeting the given oracle base URL. A
// non-positive timeout falls back to 10s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// priorityRequest is the JSON body for POST /priority-users.
type priorityRequest struct {
	Question string      `json:"question"`
	TopN     int         `json:"top_n"`
	Users    []Candidate `json:"users"`
}

// priorityResponse mirrors the oracle's response envelope. PriorityUsers
// is a pointer so a missing list can be told apart from an empty one.
type priorityResponse struct {
	PriorityUsers *[]PriorityUser `json:"priority_users"`
}

// PriorityUsers submits the question and candidate corpus for relevance
// scoring and returns the oracle's ranked list. topN values <= 0 are
// treated as "use the default of 5", never as "return zero results".
func (c *Client) PriorityUsers(ctx context.Context, question string, users []Candidate, topN int) (*PriorityResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrInvalidQuery
	}
	if topN <= 0 {
		topN = 5
	}

	body, err := c.post(ctx, "/priority-users", priorityRequest{
		Question: question,
		TopN:     topN,
		Users:    users,
	})
	if err != nil {
		return nil, err
	}

	var resp priorityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.PriorityUsers == nil {
		return nil, fmt.Errorf("%w: missing priority_users", ErrMalformed)
	}

	return &PriorityResult{
		PriorityUsers: *resp.PriorityUsers,
		Raw:           json.RawMessage(body),
	}, nil
}

// Summarize returns the oracle's summary of the given text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrInvalidQuery
	}

	body, err := c.post(ctx, "/summarize", map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	var resp struct {
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Summary == nil {
		return "", fmt.Errorf("%w: missing summary", ErrMalformed)
	}
	return *resp.Summary, nil
}

// PriorityScore asks the oracle to rate the urgency of a new ticket on
// a 1-10 scale. Callers typically fall back to the minimum priority
// when this fails.
func (c *Client) PriorityScore(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrInvalidQuery
	}

	body, err := c.post(ctx, "/priority_score", map[string]string{"text": text})
	if err != nil {
		return 0, err
	}

	var resp struct {
		PriorityScore *int `json:"priority_score"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.PriorityScore == nil {
		return 0, fmt.Errorf("%w: missing priority_score", ErrMalformed)
	}

	score := *resp.PriorityScore
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}

// post sends a JSON POST to the oracle and returns the response body.
// Transport errors, timeouts, and non-2xx statuses map to ErrUnavailable.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	return data, nil
}
