package matching

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kalambet/deskd/internal/oracle"
	"github.com/kalambet/deskd/internal/storage"
)

// placeholderEmail marks a recommendation whose agent was missing from
// the directory at merge time.
const placeholderEmail = "unknown@deskd.invalid"

// Recommendation is one ranked agent with its full directory record
// joined back in.
type Recommendation struct {
	AgentID            string   `json:"agentId"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	RelevanceScore     float64  `json:"relevanceScore"`
	Reasoning          string   `json:"reasoning"`
	MatchingQueries    []string `json:"matchingQueries"`
	TotalSolvedQueries int      `json:"totalSolvedQueries"`
}

// Merge joins ranked oracle entries with the agent directory. Entries
// whose id has no directory record are kept with placeholder identity
// fields rather than dropped, so the output count always matches the
// input count. The result is re-sorted by relevance score descending;
// the sort is stable, so oracle order survives among tied scores.
func Merge(ranked []oracle.PriorityUser, directory map[string]storage.User) []Recommendation {
	recs := make([]Recommendation, 0, len(ranked))
	for _, pu := range ranked {
		rec := Recommendation{
			AgentID:            pu.UserID,
			RelevanceScore:     pu.RelevanceScore,
			Reasoning:          pu.Reasoning,
			MatchingQueries:    pu.MatchingQueries,
			TotalSolvedQueries: pu.TotalSolvedQueries,
		}
		if a, ok := directory[pu.UserID]; ok {
			rec.Name = a.Name
			rec.Email = a.Email
		} else {
			slog.Warn("ranked agent missing from directory", "agent_id", pu.UserID)
			rec.Name = fmt.Sprintf("Unknown agent (%s)", pu.UserID)
			rec.Email = placeholderEmail
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].RelevanceScore > recs[j].RelevanceScore
	})
	return recs
}
