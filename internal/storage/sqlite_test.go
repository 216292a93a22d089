package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testUser(id, role string) User {
	return User{
		ID:        id,
		Name:      "User " + id,
		Email:     id + "@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func testTicket(id, createdBy string) Ticket {
	now := time.Now().UTC().Truncate(time.Second)
	return Ticket{
		ID:          id,
		Title:       "Printer jam",
		Description: "Paper stuck in tray 2",
		Status:      StatusOpen,
		Priority:    1,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestIndexesExist verifies the migration creates the expected indexes.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{
		"idx_tickets_status", "idx_tickets_created_by", "idx_tickets_assigned_to",
		"idx_comments_ticket", "idx_notifications_user", "idx_jobs_status_run_after",
	}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := openTestStore(t)

	want := User{
		ID:              "u1",
		Name:            "Ada",
		Email:           "ada@example.com",
		Role:            RoleAgent,
		Expertise:       []string{"Networking", "Printers"},
		Skills:          []string{"tcpdump"},
		ExpertiseDomain: "Networking",
		SolvedQueries:   []string{"VPN drops", "DNS failures"},
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateUser(want); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != want.Name || got.Email != want.Email || got.Role != want.Role {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Expertise) != 2 || got.Expertise[0] != "Networking" {
		t.Errorf("Expertise round-trip failed: %v", got.Expertise)
	}
	if len(got.SolvedQueries) != 2 || got.SolvedQueries[1] != "DNS failures" {
		t.Errorf("SolvedQueries round-trip failed: %v", got.SolvedQueries)
	}
	if got.ExpertiseDomain != "Networking" {
		t.Errorf("ExpertiseDomain = %q, want %q", got.ExpertiseDomain, "Networking")
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetUser("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(missing) = %v, want ErrNotFound", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser(testUser("u1", RoleUser)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	dup := testUser("u2", RoleUser)
	dup.Email = "u1@example.com"
	if err := s.CreateUser(dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email = %v, want ErrDuplicate", err)
	}
}

func TestUsersByRole(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		u := testUser(fmt.Sprintf("agent-%d", i), RoleAgent)
		u.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.CreateUser(u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	if err := s.CreateUser(testUser("plain", RoleUser)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	agents, err := s.UsersByRole(RoleAgent)
	if err != nil {
		t.Fatalf("UsersByRole: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("got %d agents, want 3", len(agents))
	}
	// Newest first.
	if agents[0].ID != "agent-2" {
		t.Errorf("first agent = %s, want agent-2", agents[0].ID)
	}
}

func TestUpdateUserRole(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser(testUser("u1", RoleUser)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.UpdateUserRole("u1", RoleAgent); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	got, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Role != RoleAgent {
		t.Errorf("role = %q, want %q", got.Role, RoleAgent)
	}

	if err := s.UpdateUserRole("missing", RoleAgent); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateUserRole(missing) = %v, want ErrNotFound", err)
	}
}

func TestTicketLifecycle(t *testing.T) {
	s := openTestStore(t)

	tk := testTicket("t1", "u1")
	if err := s.CreateTicket(tk); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	got, err := s.GetTicket("t1")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Status != StatusOpen || got.Title != tk.Title {
		t.Errorf("got %+v", got)
	}

	if err := s.AssignTicket("t1", "agent-1"); err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	got, err = s.GetTicket("t1")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.AssignedTo != "agent-1" || got.Status != StatusInProgress {
		t.Errorf("after assign: assigned_to=%q status=%q", got.AssignedTo, got.Status)
	}

	if err := s.UpdateTicketStatus("t1", StatusResolved); err != nil {
		t.Fatalf("UpdateTicketStatus: %v", err)
	}
	resolved, err := s.TicketsByStatus(StatusResolved)
	if err != nil {
		t.Fatalf("TicketsByStatus: %v", err)
	}
	if len(resolved) != 1 || resolved[0].ID != "t1" {
		t.Errorf("TicketsByStatus(Resolved) = %v", resolved)
	}
}

func TestTicketsByCreatorLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		tk := testTicket(fmt.Sprintf("t%d", i), "u1")
		tk.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		tk.UpdatedAt = tk.CreatedAt
		if err := s.CreateTicket(tk); err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
	}

	recent, err := s.TicketsByCreator("u1", 3)
	if err != nil {
		t.Fatalf("TicketsByCreator: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d tickets, want 3", len(recent))
	}
	if recent[0].ID != "t4" {
		t.Errorf("first recent = %s, want t4 (newest first)", recent[0].ID)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)

	states := []string{StatusOpen, StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
	for i, st := range states {
		tk := testTicket(fmt.Sprintf("t%d", i), "u1")
		tk.Status = st
		if err := s.CreateTicket(tk); err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
	}

	st, err := s.Stats("u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := TicketStats{Total: 5, Open: 2, InProgress: 1, Resolved: 1, Closed: 1}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}

	empty, err := s.Stats("nobody")
	if err != nil {
		t.Fatalf("Stats(nobody): %v", err)
	}
	if empty.Total != 0 {
		t.Errorf("Stats(nobody).Total = %d, want 0", empty.Total)
	}
}

func TestComments(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateTicket(testTicket("t1", "u1")); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 2; i++ {
		c := Comment{
			ID:        fmt.Sprintf("c%d", i),
			TicketID:  "t1",
			AuthorID:  "u1",
			Text:      fmt.Sprintf("comment %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AddComment(c); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
	}

	comments, err := s.CommentsByTicket("t1")
	if err != nil {
		t.Fatalf("CommentsByTicket: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	// Chronological order.
	if comments[0].ID != "c0" {
		t.Errorf("first comment = %s, want c0", comments[0].ID)
	}
}

func TestCategories(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateCategory(Category{ID: "cat1", Name: "Hardware"}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if err := s.CreateCategory(Category{ID: "cat2", Name: "Hardware"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate name = %v, want ErrDuplicate", err)
	}

	cats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Hardware" {
		t.Errorf("ListCategories = %v", cats)
	}

	if err := s.DeleteCategory("cat1"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := s.DeleteCategory("cat1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestNotifications(t *testing.T) {
	s := openTestStore(t)

	n := Notification{
		ID:        "n1",
		UserID:    "agent-1",
		Message:   "You have been assigned ticket: Printer jam",
		Kind:      "assignment",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateNotification(n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	list, err := s.NotificationsForUser("agent-1")
	if err != nil {
		t.Fatalf("NotificationsForUser: %v", err)
	}
	if len(list) != 1 || list[0].Read {
		t.Fatalf("NotificationsForUser = %+v", list)
	}

	if err := s.MarkNotificationRead("n1"); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	list, err = s.NotificationsForUser("agent-1")
	if err != nil {
		t.Fatalf("NotificationsForUser: %v", err)
	}
	if !list[0].Read {
		t.Error("notification not marked read")
	}
}

func TestJobQueueClaimAndComplete(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "notify", PayloadJSON: `{"user_id":"u1"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"notify"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != "j1" {
		t.Fatalf("ClaimNextJob = %+v, want j1", job)
	}
	if job.Status != "running" {
		t.Errorf("claimed job status = %q, want running", job.Status)
	}

	// A second claim finds nothing while the job is running.
	again, err := s.ClaimNextJob([]string{"notify"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("second claim returned %+v, want nil", again)
	}

	if err := s.CompleteJob("j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

func TestJobQueueFailureBackoff(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "notify", PayloadJSON: `{}`, MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"notify"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	if err := s.FailJob("j1", "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	// First failure re-queues with backoff; not immediately claimable.
	job, err := s.ClaimNextJob([]string{"notify"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed backed-off job: %+v", job)
	}

	var status string
	var attempts int
	if err := s.db.QueryRow("SELECT status, attempts FROM jobs WHERE id = 'j1'").Scan(&status, &attempts); err != nil {
		t.Fatalf("query job: %v", err)
	}
	if status != "pending" || attempts != 1 {
		t.Errorf("after first failure: status=%q attempts=%d", status, attempts)
	}
}
