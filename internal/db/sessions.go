package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/mapadevsports/uwbv2/internal/report"
)

// Session storage. Span values are floats everywhere in the core and only
// stringified here: the legacy report_sessions schema keeps kx/ky as text.

// FindOpenSession returns the user's most recent session with no end time,
// or nil when none is open. Implements report.Store.
func (db *DB) FindOpenSession(ctx context.Context, user string) (*report.Session, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, "user", name, started_at, ended_at, kx, ky
		FROM report_sessions
		WHERE "user" = ? AND ended_at IS NULL
		ORDER BY id DESC LIMIT 1`, user)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open session for %q: %w", user, err)
	}
	return s, nil
}

// CreateSession inserts a new session row and fills in its ID. Implements
// report.Store.
func (db *DB) CreateSession(ctx context.Context, s *report.Session) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO report_sessions ("user", name, started_at, ended_at, kx, ky)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.User, s.Name, s.StartedAt, s.EndedAt, spanString(s.SpanX), spanString(s.SpanY),
	)
	if err != nil {
		return fmt.Errorf("insert session for %q: %w", s.User, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("session insert id: %w", err)
	}
	s.ID = id
	return nil
}

// UpdateSession rewrites a session row by ID. Implements report.Store.
func (db *DB) UpdateSession(ctx context.Context, s *report.Session) error {
	res, err := db.ExecContext(ctx, `
		UPDATE report_sessions
		SET "user" = ?, name = ?, started_at = ?, ended_at = ?, kx = ?, ky = ?
		WHERE id = ?`,
		s.User, s.Name, s.StartedAt, s.EndedAt, spanString(s.SpanX), spanString(s.SpanY), s.ID,
	)
	if err != nil {
		return fmt.Errorf("update session %d: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %d: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update session %d: no such session", s.ID)
	}
	return nil
}

func scanSession(row *sql.Row) (*report.Session, error) {
	var s report.Session
	var started, ended sql.NullTime
	var kx, ky sql.NullString
	if err := row.Scan(&s.ID, &s.User, &s.Name, &started, &ended, &kx, &ky); err != nil {
		return nil, err
	}
	if started.Valid {
		t := started.Time
		s.StartedAt = &t
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	s.SpanX = spanFloat(kx)
	s.SpanY = spanFloat(ky)
	return &s, nil
}

func spanString(v *float64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	return &s
}

func spanFloat(v sql.NullString) *float64 {
	if !v.Valid {
		return nil
	}
	f, err := strconv.ParseFloat(v.String, 64)
	if err != nil {
		return nil
	}
	return &f
}
