package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Position is one processed positioning result. DistanceTravelled and
// ElapsedSeconds are nil on a tag's first-ever fix.
type Position struct {
	ID                int64     `json:"id"`
	TagNumber         string    `json:"tag_number"`
	X                 float64   `json:"x"`
	Y                 float64   `json:"y"`
	DistanceTravelled *float64  `json:"distance_travelled"`
	ElapsedSeconds    *int64    `json:"elapsed_seconds"`
	CreatedAt         time.Time `json:"created_at"`
}

// InsertPositions stores a batch of processed positions in a single
// transaction and fills in their row IDs.
func (db *DB) InsertPositions(ctx context.Context, rows []*Position) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin positions transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback positions transaction: %v", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO processed_positions (
			tag_number, x, y, distance_travelled, elapsed_seconds, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare positions insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range rows {
		res, err := stmt.ExecContext(ctx,
			p.TagNumber, p.X, p.Y, p.DistanceTravelled, p.ElapsedSeconds, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert position for tag %s: %w", p.TagNumber, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("position insert id: %w", err)
		}
		p.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit positions: %w", err)
	}
	return nil
}

// RecentPositions returns up to limit processed positions, newest first.
func (db *DB) RecentPositions(ctx context.Context, limit int) ([]Position, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, tag_number, x, y, distance_travelled, elapsed_seconds, created_at
		FROM processed_positions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent positions: %w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(
			&p.ID, &p.TagNumber, &p.X, &p.Y,
			&p.DistanceTravelled, &p.ElapsedSeconds, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
