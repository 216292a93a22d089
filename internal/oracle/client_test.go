package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func priorityJSON(entries ...PriorityUser) []byte {
	if entries == nil {
		entries = []PriorityUser{}
	}
	b, _ := json.Marshal(map[string]any{"priority_users": entries})
	return b
}

func testCorpus() []Candidate {
	return []Candidate{
		{UserID: "a1", ExpertiseDomain: "Hardware", SolvedQueries: []string{"fix printer"}},
		{UserID: "a2", ExpertiseDomain: "Networking", SolvedQueries: []string{"VPN drops"}},
	}
}

func TestPriorityUsers(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Write(priorityJSON(
			PriorityUser{UserID: "a2", RelevanceScore: 8, Reasoning: "strong match", TotalSolvedQueries: 1},
			PriorityUser{UserID: "a1", RelevanceScore: 3, TotalSolvedQueries: 1},
		))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	result, err := c.PriorityUsers(context.Background(), "VPN keeps dropping", testCorpus(), 5)
	if err != nil {
		t.Fatalf("PriorityUsers: %v", err)
	}

	if len(result.PriorityUsers) != 2 {
		t.Fatalf("got %d entries, want 2", len(result.PriorityUsers))
	}
	if result.PriorityUsers[0].UserID != "a2" || result.PriorityUsers[0].RelevanceScore != 8 {
		t.Errorf("first entry = %+v", result.PriorityUsers[0])
	}
	if len(result.Raw) == 0 {
		t.Error("Raw response body not captured")
	}

	// Request carries the wire field names the oracle expects.
	if gotBody["question"] != "VPN keeps dropping" {
		t.Errorf("question = %v", gotBody["question"])
	}
	if gotBody["top_n"] != float64(5) {
		t.Errorf("top_n = %v, want 5", gotBody["top_n"])
	}
	users, ok := gotBody["users"].([]any)
	if !ok || len(users) != 2 {
		t.Fatalf("users = %v", gotBody["users"])
	}
	first := users[0].(map[string]any)
	if _, ok := first["Solved queries"]; !ok {
		t.Error(`corpus entry missing "Solved queries" wire field`)
	}
	if _, ok := first["expertise_domain"]; !ok {
		t.Error("corpus entry missing expertise_domain wire field")
	}
}

func TestPriorityUsersDefaultsTopN(t *testing.T) {
	var gotTopN float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotTopN = body["top_n"].(float64)
		w.Write(priorityJSON())
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if _, err := c.PriorityUsers(context.Background(), "q", testCorpus(), 0); err != nil {
		t.Fatalf("PriorityUsers: %v", err)
	}
	if gotTopN != 5 {
		t.Errorf("top_n = %v, want default 5", gotTopN)
	}

	if _, err := c.PriorityUsers(context.Background(), "q", testCorpus(), -3); err != nil {
		t.Fatalf("PriorityUsers: %v", err)
	}
	if gotTopN != 5 {
		t.Errorf("top_n = %v, want default 5 for negative input", gotTopN)
	}
}

func TestPriorityUsersEmptyQuestion(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	_, err := c.PriorityUsers(context.Background(), "   ", testCorpus(), 5)
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
	if called {
		t.Error("oracle was called for an empty question")
	}
}

func TestPriorityUsersNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	_, err := c.PriorityUsers(context.Background(), "q", testCorpus(), 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPriorityUsersConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, 2*time.Second)
	_, err := c.PriorityUsers(context.Background(), "q", testCorpus(), 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPriorityUsersMissingListIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something_else": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	_, err := c.PriorityUsers(context.Background(), "q", testCorpus(), 5)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestPriorityUsersEmptyListIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"priority_users": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	result, err := c.PriorityUsers(context.Background(), "q", testCorpus(), 5)
	if err != nil {
		t.Fatalf("PriorityUsers: %v", err)
	}
	if len(result.PriorityUsers) != 0 {
		t.Errorf("got %d entries, want 0", len(result.PriorityUsers))
	}
}

func TestPriorityUsersTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write(priorityJSON())
	}))
	defer srv.Close()

	c := New(srv.URL, 20*time.Millisecond)
	_, err := c.PriorityUsers(context.Background(), "q", testCorpus(), 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable on timeout", err)
	}
}

func TestSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary": "printer is jammed"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	got, err := c.Summarize(context.Background(), "long ticket text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "printer is jammed" {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarizeMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if _, err := c.Summarize(context.Background(), "text"); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestPriorityScoreClamped(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"in range", `{"priority_score": 7}`, 7},
		{"above range", `{"priority_score": 42}`, 10},
		{"below range", `{"priority_score": 0}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, 5*time.Second)
			got, err := c.PriorityScore(context.Background(), "urgent thing")
			if err != nil {
				t.Fatalf("PriorityScore: %v", err)
			}
			if got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}
