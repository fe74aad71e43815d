package eventlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS game_log (
	game_id TEXT NOT NULL,
	seq     BIGINT NOT NULL,
	kind    TEXT NOT NULL,
	payload JSONB NOT NULL,
	at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (game_id, seq)
);`

// PostgresStore backs the event log with Postgres for multi-node server
// deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres event log: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create event log schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO game_log (game_id, seq, kind, payload)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3 FROM game_log WHERE game_id = $1
		 RETURNING seq`,
		rec.GameID, rec.Kind, rec.Payload).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("append log record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Replay(ctx context.Context, gameID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, kind, payload, at FROM game_log WHERE game_id = $1 ORDER BY seq`, gameID)
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
