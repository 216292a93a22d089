package storage

import (
	"fmt"
	"strings"
)

// --- Categories ---

// ErrDuplicate is returned when a uniqueness constraint is violated
// (category names, user emails).
var ErrDuplicate = fmt.Errorf("already exists")

func (s *Store) CreateCategory(c Category) error {
	_, err := s.db.Exec("INSERT INTO categories (id, name) VALUES (?, ?)", c.ID, c.Name)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) ListCategories() ([]Category, error) {
	rows, err := s.db.Query("SELECT id, name FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) DeleteCategory(id string) error {
	res, err := s.db.Exec("DELETE FROM categories WHERE id = ?", id)
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

// isUniqueViolation matches on the driver's error text; modernc.org/sqlite
// does not export a stable typed error for constraint failures.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Notifications ---

func (s *Store) CreateNotification(n Notification) error {
	read := 0
	if n.Read {
		read = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, user_id, message, kind, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Message, n.Kind, read, formatTime(n.CreatedAt),
	)
	return err
}

// NotificationsForUser returns a user's notifications, newest first.
func (s *Store) NotificationsForUser(userID string) ([]Notification, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, message, kind, read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		var read int
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Kind, &read, &createdAt); err != nil {
			return nil, err
		}
		n.Read = read != 0
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) MarkNotificationRead(id string) error {
	res, err := s.db.Exec("UPDATE notifications SET read = 1 WHERE id = ?", id)
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
