package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS game_log (
	game_id TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	payload BLOB NOT NULL,
	at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (game_id, seq)
);`

// SQLiteStore is the default durable store, a single embedded database
// file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path. Use
// ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite event log: %w", err)
	}
	// The engine serializes appends per game; a single connection keeps
	// SQLite's writer lock uncontended.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create event log schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec *Record) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM game_log WHERE game_id = ?`, rec.GameID)
	if err := row.Scan(&rec.Seq); err != nil {
		return fmt.Errorf("next log seq: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_log (game_id, seq, kind, payload) VALUES (?, ?, ?, ?)`,
		rec.GameID, rec.Seq, rec.Kind, rec.Payload)
	if err != nil {
		return fmt.Errorf("append log record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Replay(ctx context.Context, gameID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, payload, at FROM game_log WHERE game_id = ? ORDER BY seq`, gameID)
	if err != nil {
		return nil, fmt.Errorf("replay game %s: %w", gameID, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{GameID: gameID}
		if err := rows.Scan(&rec.Seq, &rec.Kind, &rec.Payload, &rec.At); err != nil {
			return nil, fmt.Errorf("scan log record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
