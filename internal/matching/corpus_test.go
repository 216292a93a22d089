package matching

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/kalambet/deskd/internal/storage"
)

type fakeDirectory struct {
	usersByRole     func(role string) ([]storage.User, error)
	ticketsByStatus func(status string) ([]storage.Ticket, error)
}

func (f *fakeDirectory) UsersByRole(role string) ([]storage.User, error) {
	return f.usersByRole(role)
}

func (f *fakeDirectory) TicketsByStatus(status string) ([]storage.Ticket, error) {
	return f.ticketsByStatus(status)
}

func agent(id string, mutate ...func(*storage.User)) storage.User {
	u := storage.User{
		ID:    id,
		Name:  "Agent " + id,
		Email: id + "@example.com",
		Role:  storage.RoleAgent,
	}
	for _, m := range mutate {
		m(&u)
	}
	return u
}

func resolvedTicket(assignee, title, description string) storage.Ticket {
	return storage.Ticket{
		Title:       title,
		Description: description,
		Status:      storage.StatusResolved,
		AssignedTo:  assignee,
	}
}

func staticDirectory(agents []storage.User, tickets []storage.Ticket) *fakeDirectory {
	return &fakeDirectory{
		usersByRole:     func(string) ([]storage.User, error) { return agents, nil },
		ticketsByStatus: func(string) ([]storage.Ticket, error) { return tickets, nil },
	}
}

func TestBuildCorpusDerivesHistoryPerAgent(t *testing.T) {
	dir := staticDirectory(
		[]storage.User{agent("a1"), agent("a2")},
		[]storage.Ticket{
			resolvedTicket("a1", "VPN down", "cannot reach internal network"),
			resolvedTicket("a2", "Printer jam", "tray two keeps jamming"),
			resolvedTicket("a1", "Slow laptop", "boot takes ten minutes"),
		},
	)

	corpus, directory, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	if len(corpus) != 2 {
		t.Fatalf("got %d entries, want 2", len(corpus))
	}
	if len(directory) != 2 {
		t.Fatalf("got %d directory records, want 2", len(directory))
	}

	want := []string{
		"VPN down: cannot reach internal network",
		"Slow laptop: boot takes ten minutes",
	}
	if !reflect.DeepEqual(corpus[0].SolvedQueries, want) {
		t.Errorf("a1 queries = %v, want %v", corpus[0].SolvedQueries, want)
	}
	if got := corpus[1].SolvedQueries; len(got) != 1 || got[0] != "Printer jam: tray two keeps jamming" {
		t.Errorf("a2 queries = %v", got)
	}
}

func TestBuildCorpusExplicitQueriesOverrideHistory(t *testing.T) {
	explicit := []string{"Kerberos ticket renewal", "LDAP group sync"}
	dir := staticDirectory(
		[]storage.User{agent("a1", func(u *storage.User) { u.SolvedQueries = explicit })},
		[]storage.Ticket{resolvedTicket("a1", "VPN down", "cannot reach internal network")},
	)

	corpus, _, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	if !reflect.DeepEqual(corpus[0].SolvedQueries, explicit) {
		t.Errorf("queries = %v, want explicit profile list %v", corpus[0].SolvedQueries, explicit)
	}
}

func TestBuildCorpusFallbackForIdleAgent(t *testing.T) {
	dir := staticDirectory([]storage.User{agent("a1")}, nil)

	corpus, _, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	if !reflect.DeepEqual(corpus[0].SolvedQueries, defaultFallbackQueries) {
		t.Errorf("queries = %v, want fallback %v", corpus[0].SolvedQueries, defaultFallbackQueries)
	}
}

func TestBuildCorpusCapsQueryList(t *testing.T) {
	var tickets []storage.Ticket
	for i := 0; i < 15; i++ {
		tickets = append(tickets, resolvedTicket("a1", fmt.Sprintf("Issue %02d", i), "details"))
	}
	dir := staticDirectory([]storage.User{agent("a1")}, tickets)

	corpus, _, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	got := corpus[0].SolvedQueries
	if len(got) != defaultMaxQueries {
		t.Fatalf("got %d queries, want %d", len(got), defaultMaxQueries)
	}
	// Cap keeps the earliest entries, untouched by any ranking.
	if got[0] != "Issue 00: details" || got[9] != "Issue 09: details" {
		t.Errorf("cap kept wrong window: first=%q last=%q", got[0], got[9])
	}
}

func TestBuildCorpusExpertiseLabelResolution(t *testing.T) {
	tests := []struct {
		name  string
		agent storage.User
		want  string
	}{
		{
			name:  "explicit domain wins",
			agent: agent("a1", func(u *storage.User) { u.ExpertiseDomain = "Networking"; u.Expertise = []string{"Hardware"} }),
			want:  "Networking",
		},
		{
			name:  "first expertise tag",
			agent: agent("a2", func(u *storage.User) { u.Expertise = []string{"Databases", "Linux"} }),
			want:  "Databases",
		},
		{
			name:  "generic default",
			agent: agent("a3"),
			want:  defaultDomain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := staticDirectory([]storage.User{tt.agent}, nil)
			corpus, _, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
			if err != nil {
				t.Fatalf("BuildCorpus: %v", err)
			}
			if corpus[0].ExpertiseDomain != tt.want {
				t.Errorf("domain = %q, want %q", corpus[0].ExpertiseDomain, tt.want)
			}
		})
	}
}

func TestBuildCorpusNoAgents(t *testing.T) {
	dir := staticDirectory(nil, nil)

	_, _, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
	if !errors.Is(err, ErrNoAgents) {
		t.Fatalf("err = %v, want ErrNoAgents", err)
	}
}

func TestBuildCorpusSkipsUnassignedResolvedTickets(t *testing.T) {
	dir := staticDirectory(
		[]storage.User{agent("a1")},
		[]storage.Ticket{resolvedTicket("", "Orphan", "closed without assignee")},
	)

	corpus, _, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	if !reflect.DeepEqual(corpus[0].SolvedQueries, defaultFallbackQueries) {
		t.Errorf("queries = %v, want fallback", corpus[0].SolvedQueries)
	}
}

func TestBuildCorpusDeterministic(t *testing.T) {
	dir := staticDirectory(
		[]storage.User{agent("a1"), agent("a2", func(u *storage.User) { u.Expertise = []string{"Networking"} })},
		[]storage.Ticket{
			resolvedTicket("a1", "VPN down", "cannot reach internal network"),
			resolvedTicket("a1", "Slow laptop", "boot takes ten minutes"),
		},
	)
	b := NewBuilder(dir, Options{})

	first, _, err := b.BuildCorpus(context.Background())
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	second, _, err := b.BuildCorpus(context.Background())
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated builds differ:\n%v\n%v", first, second)
	}
}

func TestBuildCorpusStoreErrorPropagates(t *testing.T) {
	boom := errors.New("disk gone")
	dir := &fakeDirectory{
		usersByRole:     func(string) ([]storage.User, error) { return nil, boom },
		ticketsByStatus: func(string) ([]storage.Ticket, error) { return nil, nil },
	}

	_, _, err := NewBuilder(dir, Options{}).BuildCorpus(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}
