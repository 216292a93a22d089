package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const ticketColumns = "id, title, description, category_id, status, priority, created_by, assigned_to, attachment, created_at, updated_at"

func (s *Store) CreateTicket(t Ticket) error {
	_, err := s.db.Exec(`
		INSERT INTO tickets (id, title, description, category_id, status, priority, created_by, assigned_to, attachment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.CategoryID, t.Status, t.Priority,
		t.CreatedBy, t.AssignedTo, t.Attachment,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	return err
}

func (s *Store) GetTicket(id string) (Ticket, error) {
	row := s.db.QueryRow("SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return Ticket{}, ErrNotFound
	}
	return t, err
}

// ListTickets returns all tickets, newest first.
func (s *Store) ListTickets() ([]Ticket, error) {
	return s.queryTickets("SELECT " + ticketColumns + " FROM tickets ORDER BY created_at DESC")
}

// TicketsByStatus returns all tickets in the given lifecycle state,
// newest first. Assignee references are carried as-is; callers resolve
// them against the user table when needed.
func (s *Store) TicketsByStatus(status string) ([]Ticket, error) {
	return s.queryTickets("SELECT "+ticketColumns+" FROM tickets WHERE status = ? ORDER BY created_at DESC", status)
}

// TicketsByAssignee returns tickets assigned to the given agent, newest first.
func (s *Store) TicketsByAssignee(agentID string) ([]Ticket, error) {
	return s.queryTickets("SELECT "+ticketColumns+" FROM tickets WHERE assigned_to = ? ORDER BY created_at DESC", agentID)
}

// RecentTickets returns the latest tickets across all states.
func (s *Store) RecentTickets(limit int) ([]Ticket, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryTickets("SELECT "+ticketColumns+" FROM tickets ORDER BY created_at DESC LIMIT ?", limit)
}

// TicketsByCreator returns tickets created by the given user, newest
// first, capped at limit (0 = no cap).
func (s *Store) TicketsByCreator(userID string, limit int) ([]Ticket, error) {
	if limit <= 0 {
		return s.queryTickets("SELECT "+ticketColumns+" FROM tickets WHERE created_by = ? ORDER BY created_at DESC", userID)
	}
	return s.queryTickets("SELECT "+ticketColumns+" FROM tickets WHERE created_by = ? ORDER BY created_at DESC LIMIT ?", userID, limit)
}

func (s *Store) UpdateTicketStatus(id, status string) error {
	res, err := s.db.Exec("UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignTicket sets the assignee and moves the ticket to In Progress.
func (s *Store) AssignTicket(id, agentID string) error {
	res, err := s.db.Exec("UPDATE tickets SET assigned_to = ?, status = ?, updated_at = ? WHERE id = ?",
		agentID, StatusInProgress, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTicketAttachment records the blob key for a ticket's attachment.
func (s *Store) SetTicketAttachment(id, key string) error {
	res, err := s.db.Exec("UPDATE tickets SET attachment = ?, updated_at = ? WHERE id = ?",
		key, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns ticket counts by lifecycle state for one creator, or
// for all tickets when userID is empty.
func (s *Store) Stats(userID string) (TicketStats, error) {
	query := `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'Open' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'In Progress' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Resolved' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Closed' THEN 1 ELSE 0 END), 0)
		FROM tickets`
	args := []any{}
	if userID != "" {
		query += " WHERE created_by = ?"
		args = append(args, userID)
	}

	var st TicketStats
	err := s.db.QueryRow(query, args...).Scan(&st.Total, &st.Open, &st.InProgress, &st.Resolved, &st.Closed)
	return st, err
}

func (s *Store) queryTickets(query string, args ...any) ([]Ticket, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func scanTicket(sc scanner) (Ticket, error) {
	var t Ticket
	var createdAt, updatedAt string
	if err := sc.Scan(&t.ID, &t.Title, &t.Description, &t.CategoryID, &t.Status, &t.Priority,
		&t.CreatedBy, &t.AssignedTo, &t.Attachment, &createdAt, &updatedAt); err != nil {
		return Ticket{}, err
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Ticket{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Ticket{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, nil
}

// --- Comments ---

func (s *Store) AddComment(c Comment) error {
	_, err := s.db.Exec(`
		INSERT INTO comments (id, ticket_id, author_id, text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TicketID, c.AuthorID, c.Text, formatTime(c.CreatedAt),
	)
	return err
}

// CommentsByTicket returns a ticket's comments in chronological order.
func (s *Store) CommentsByTicket(ticketID string) ([]Comment, error) {
	rows, err := s.db.Query(`
		SELECT id, ticket_id, author_id, text, created_at
		FROM comments WHERE ticket_id = ? ORDER BY created_at ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Text, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
