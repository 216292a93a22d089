package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User roles.
const (
	RoleUser  = "User"
	RoleAgent = "Agent"
	RoleAdmin = "Admin"
)

// Ticket lifecycle states. Resolved is the terminal state that feeds
// the agent expertise corpus.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
)

// ValidRole reports whether role is one of the known user roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAgent || role == RoleAdmin
}

// ValidStatus reports whether status is one of the known lifecycle states.
func ValidStatus(status string) bool {
	switch status {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

type User struct {
	ID              string
	Name            string
	Email           string
	Role            string
	Expertise       []string // free-form expertise tags
	Skills          []string
	ExpertiseDomain string   // main expertise domain, optional
	SolvedQueries   []string // explicit solved-query history, optional
	CreatedAt       time.Time
}

type Ticket struct {
	ID          string
	Title       string
	Description string
	CategoryID  string
	Status      string
	Priority    int // 1..10, AI-scored at creation
	CreatedBy   string
	AssignedTo  string // empty when unassigned
	Attachment  string // blob store key, empty when none
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

type Category struct {
	ID   string
	Name string
}

type Notification struct {
	ID        string
	UserID    string
	Message   string
	Kind      string // "assignment", "comment"
	Read      bool
	CreatedAt time.Time
}

// TicketStats aggregates ticket counts by lifecycle state.
type TicketStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
