package matching

import (
	"context"
	"encoding/json"

	"github.com/kalambet/deskd/internal/oracle"
	"github.com/kalambet/deskd/internal/storage"
)

const defaultTopN = 5

// Scorer is the relevance oracle surface the recommender depends on.
// *oracle.Client satisfies it.
type Scorer interface {
	PriorityUsers(ctx context.Context, question string, users []oracle.Candidate, topN int) (*oracle.PriorityResult, error)
}

// Analysis is the full outcome of one ranking run. Corpus and AgentDir
// are populated before the oracle is consulted, so callers still get
// the candidate set when scoring fails.
type Analysis struct {
	Question        string
	TopN            int
	Corpus          []oracle.Candidate
	AgentDir        map[string]storage.User
	Raw             json.RawMessage
	Recommendations []Recommendation
}

// Recommender orchestrates corpus assembly, oracle scoring and the
// merge back into agent records.
type Recommender struct {
	builder *Builder
	scorer  Scorer
	topN    int
}

// NewRecommender wires the pipeline. topN is the fallback result limit
// used when a request does not specify one; values <= 0 select the
// package default.
func NewRecommender(builder *Builder, scorer Scorer, topN int) *Recommender {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Recommender{builder: builder, scorer: scorer, topN: topN}
}

// Corpus exposes the assembled candidate set without scoring it.
func (r *Recommender) Corpus(ctx context.Context) ([]oracle.Candidate, map[string]storage.User, error) {
	return r.builder.BuildCorpus(ctx)
}

// RecommendTicket ranks agents for a ticket, using "<title>: <description>"
// as the oracle question.
func (r *Recommender) RecommendTicket(ctx context.Context, title, description string, topN int) (*Analysis, error) {
	return r.Recommend(ctx, title+": "+description, topN)
}

// Recommend runs the pipeline for a free-form question. The corpus is
// built first: with zero agents it fails with ErrNoAgents before any
// oracle traffic. Oracle failures return the partially populated
// Analysis alongside the error so callers can still report the
// candidate set.
func (r *Recommender) Recommend(ctx context.Context, question string, topN int) (*Analysis, error) {
	if topN <= 0 {
		topN = r.topN
	}

	corpus, directory, err := r.builder.BuildCorpus(ctx)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		Question: question,
		TopN:     topN,
		Corpus:   corpus,
		AgentDir: directory,
	}

	result, err := r.scorer.PriorityUsers(ctx, question, corpus, topN)
	if err != nil {
		return analysis, err
	}
	analysis.Raw = result.Raw

	recs := Merge(result.PriorityUsers, directory)
	// The oracle is asked for topN but not trusted to honor it.
	if len(recs) > topN {
		recs = recs[:topN]
	}
	analysis.Recommendations = recs
	return analysis, nil
}
