package store

import (
	"context"
	"database/sql"
	"fmt"

	"qlcal/internal/schedule"
)

const ddlEvents = `CREATE TABLE IF NOT EXISTS events (
	position    INTEGER PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	predicate   TEXT NOT NULL,
	time_pair   TEXT NOT NULL
)`

// sqlTemplates differ only in placeholder style.
type sqlTemplates struct {
	Insert string
}

var (
	questionSQL = sqlTemplates{
		Insert: "INSERT INTO events (position, title, description, predicate, time_pair) VALUES (?, ?, ?, ?, ?)",
	}
	dollarSQL = sqlTemplates{
		Insert: "INSERT INTO events (position, title, description, predicate, time_pair) VALUES ($1, $2, $3, $4, $5)",
	}
)

// SQL stores one row per record; position keeps insertion order.
type SQL struct {
	db   *sql.DB
	tmpl sqlTemplates
}

func newSQL(ctx context.Context, db *sql.DB, tmpl sqlTemplates) (*SQL, error) {
	if _, err := db.ExecContext(ctx, ddlEvents); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create events table: %w", err)
	}
	return &SQL{db: db, tmpl: tmpl}, nil
}

func (s *SQL) Load(ctx context.Context) ([]schedule.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT title, description, predicate, time_pair FROM events ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Record
	for rows.Next() {
		var r schedule.Record
		if err := rows.Scan(&r.Title, &r.Description, &r.Predicate, &r.TimePair); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Save replaces every stored row in one transaction.
func (s *SQL) Save(ctx context.Context, records []schedule.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.tmpl.Insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, i, r.Title, r.Description, r.Predicate, r.TimePair); err != nil {
			return fmt.Errorf("store: insert %q: %w", r.Title, err)
		}
	}
	return tx.Commit()
}

func (s *SQL) Close() error {
	return s.db.Close()
}
