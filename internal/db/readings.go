package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Reading is one calibrated UWB reading row. Distance slots keep nil for
// absent measurements; they are stored as NULL, never zero-filled.
type Reading struct {
	ID        int64       `json:"id"`
	TagNumber string      `json:"tag_number"`
	Distances [8]*float64 `json:"distances"`
	KX        *float64    `json:"kx"`
	KY        *float64    `json:"ky"`
	CreatedAt time.Time   `json:"created_at"`
}

// InsertReadings stores a batch of readings in a single transaction and fills
// in their row IDs. The batch is all-or-nothing: any insert failure rolls the
// whole batch back.
func (db *DB) InsertReadings(ctx context.Context, rows []*Reading) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin readings transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			// ErrTxDone means the transaction was already committed.
			log.Printf("warning: failed to rollback readings transaction: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO uwb_readings (
			tag_number, da0, da1, da2, da3, da4, da5, da6, da7, kx, ky, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare readings insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		res, err := stmt.ExecContext(ctx,
			r.TagNumber,
			r.Distances[0], r.Distances[1], r.Distances[2], r.Distances[3],
			r.Distances[4], r.Distances[5], r.Distances[6], r.Distances[7],
			r.KX, r.KY, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert reading for tag %s: %w", r.TagNumber, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading insert id: %w", err)
		}
		r.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit readings: %w", err)
	}
	return nil
}

// CountReadings returns the number of stored readings, optionally filtered by
// tag ("" counts all).
func (db *DB) CountReadings(ctx context.Context, tag string) (int64, error) {
	var n int64
	var err error
	if tag == "" {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uwb_readings`).Scan(&n)
	} else {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uwb_readings WHERE tag_number = ?`, tag).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// RecentReadings returns up to limit readings, newest first.
func (db *DB) RecentReadings(ctx context.Context, limit int) ([]Reading, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, tag_number, da0, da1, da2, da3, da4, da5, da6, da7, kx, ky, created_at
		FROM uwb_readings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(
			&r.ID, &r.TagNumber,
			&r.Distances[0], &r.Distances[1], &r.Distances[2], &r.Distances[3],
			&r.Distances[4], &r.Distances[5], &r.Distances[6], &r.Distances[7],
			&r.KX, &r.KY, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
