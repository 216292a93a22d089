// Package matching implements the agent priority-ranking pipeline:
// assembling a per-agent solved-query corpus from profiles and ticket
// history, submitting it to the external relevance oracle, and merging
// the ranked result back into full agent records for assignment.
package matching

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/deskd/internal/oracle"
	"github.com/kalambet/deskd/internal/storage"
)

// ErrNoAgents is returned when no support agents exist; scoring never
// starts without candidates.
var ErrNoAgents = errors.New("no agents available")

const (
	defaultMaxQueries = 10
	defaultDomain     = "General Support"
)

// defaultFallbackQueries seed the corpus for agents with no recorded
// history, so every candidate reaches the oracle with a non-empty list.
var defaultFallbackQueries = []string{
	"General troubleshooting",
	"Password reset assistance",
	"Software installation help",
}

// Directory abstracts the persistence reads the corpus builder needs.
// *storage.Store satisfies it.
type Directory interface {
	UsersByRole(role string) ([]storage.User, error)
	TicketsByStatus(status string) ([]storage.Ticket, error)
}

// Options tune corpus assembly. Zero values fall back to package defaults.
type Options struct {
	// FallbackQueries substitute for agents with no explicit list and
	// no resolved-ticket history.
	FallbackQueries []string
	// DefaultDomain labels agents with no stated expertise.
	DefaultDomain string
	// MaxQueries caps each agent's list; truncation keeps the first
	// entries in assembly order.
	MaxQueries int
}

// Builder derives the candidate corpus submitted for relevance scoring.
type Builder struct {
	dir  Directory
	opts Options
}

func NewBuilder(dir Directory, opts Options) *Builder {
	if len(opts.FallbackQueries) == 0 {
		opts.FallbackQueries = defaultFallbackQueries
	}
	if opts.DefaultDomain == "" {
		opts.DefaultDomain = defaultDomain
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = defaultMaxQueries
	}
	return &Builder{dir: dir, opts: opts}
}

// BuildCorpus assembles one candidate entry per support agent, plus an
// id-keyed directory of the fetched agent records for the merge stage.
// Each entry carries a non-empty solved-query list capped at MaxQueries
// and a non-empty expertise label. Returns ErrNoAgents when no agents
// exist.
//
// An agent's explicit solvedQueries profile field always wins over
// ticket-derived history; the two sources are never merged.
func (b *Builder) BuildCorpus(ctx context.Context) ([]oracle.Candidate, map[string]storage.User, error) {
	var (
		agents   []storage.User
		resolved []storage.Ticket
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		agents, err = b.dir.UsersByRole(storage.RoleAgent)
		if err != nil {
			return fmt.Errorf("fetching agents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		resolved, err = b.dir.TicketsByStatus(storage.StatusResolved)
		if err != nil {
			return fmt.Errorf("fetching resolved tickets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(agents) == 0 {
		return nil, nil, ErrNoAgents
	}

	// Bucket resolved-ticket text per assignee, in ticket fetch order.
	history := make(map[string][]string)
	for _, t := range resolved {
		if t.AssignedTo == "" {
			continue
		}
		history[t.AssignedTo] = append(history[t.AssignedTo], t.Title+": "+t.Description)
	}

	directory := make(map[string]storage.User, len(agents))
	corpus := make([]oracle.Candidate, 0, len(agents))
	for _, a := range agents {
		directory[a.ID] = a

		queries := a.SolvedQueries
		if len(queries) == 0 {
			queries = history[a.ID]
		}
		if len(queries) == 0 {
			queries = b.opts.FallbackQueries
		}
		if len(queries) > b.opts.MaxQueries {
			queries = queries[:b.opts.MaxQueries]
		}
		// Copy so later mutation of profile or fallback slices cannot
		// alias into the corpus.
		queries = append([]string(nil), queries...)

		corpus = append(corpus, oracle.Candidate{
			UserID:          a.ID,
			ExpertiseDomain: b.domainFor(a),
			SolvedQueries:   queries,
		})
	}

	return corpus, directory, nil
}

// domainFor resolves an agent's expertise label: the explicit domain
// field, else the first expertise tag, else the configured default.
func (b *Builder) domainFor(a storage.User) string {
	if a.ExpertiseDomain != "" {
		return a.ExpertiseDomain
	}
	if len(a.Expertise) > 0 && a.Expertise[0] != "" {
		return a.Expertise[0]
	}
	return b.opts.DefaultDomain
}
