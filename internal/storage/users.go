package storage

import (
	"database/sql"
	"fmt"
)

const userColumns = "id, name, email, role, expertise, skills, expertise_domain, solved_queries, created_at"

func (s *Store) CreateUser(u User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, name, email, role, expertise, skills, expertise_domain, solved_queries, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Role,
		marshalList(u.Expertise), marshalList(u.Skills),
		u.ExpertiseDomain, marshalList(u.SolvedQueries),
		formatTime(u.CreatedAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) GetUser(id string) (User, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

// UsersByRole returns all users with the given role, newest first.
func (s *Store) UsersByRole(role string) ([]User, error) {
	rows, err := s.db.Query("SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY created_at DESC", role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserRole(id, role string) error {
	res, err := s.db.Exec("UPDATE users SET role = ? WHERE id = ?", role, id)
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

func (s *Store) DeleteUser(id string) error {
	res, err := s.db.Exec("DELETE FROM users WHERE id = ?", id)
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

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (User, error) {
	var u User
	var expertise, skills, solvedQueries, createdAt string
	if err := sc.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &expertise, &skills, &u.ExpertiseDomain, &solvedQueries, &createdAt); err != nil {
		return User{}, err
	}
	u.Expertise = unmarshalList(expertise)
	u.Skills = unmarshalList(skills)
	u.SolvedQueries = unmarshalList(solvedQueries)
	t, err := parseTime(createdAt)
	if err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	u.CreatedAt = t
	return u, nil
}
