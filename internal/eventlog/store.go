// Package eventlog persists the append-only action log of each game. The
// log carries enough to rebuild a game deterministically: one setup record
// followed by every accepted action, in order.
package eventlog

import (
	"context"
	"sync"
	"time"
)

// Record kinds.
const (
	KindSetup  = "setup"
	KindAction = "action"
)

// Record is one appended log entry. Payload is opaque JSON owned by the
// engine; Seq is assigned per game by the store, starting at 1.
type Record struct {
	Seq     int64     `json:"seq"`
	GameID  string    `json:"game_id"`
	Kind    string    `json:"kind"`
	Payload []byte    `json:"payload"`
	At      time.Time `json:"at"`
}

// Store is an append-only action log.
type Store interface {
	// Append persists the record and assigns its sequence number.
	Append(ctx context.Context, rec *Record) error
	// Replay returns every record of the game in append order.
	Replay(ctx context.Context, gameID string) ([]Record, error)
	Close() error
}

// MemoryStore keeps logs in process memory. Used in tests and for games
// that need no durability.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string][]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]Record)}
}

func (s *MemoryStore) Append(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Seq = int64(len(s.logs[rec.GameID]) + 1)
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	s.logs[rec.GameID] = append(s.logs[rec.GameID], *rec)
	return nil
}

func (s *MemoryStore) Replay(_ context.Context, gameID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[gameID]
	out := make([]Record, len(log))
	copy(out, log)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
