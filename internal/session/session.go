// Package session tracks connected players for the gateway. Each session
// carries a bcrypt-hashed secret; the plaintext is handed out once at
// creation and must accompany every reconnect.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrBadSecret     = errors.New("session secret mismatch")
	ErrLimitReached  = errors.New("session limit reached")
	ErrSessionClosed = errors.New("session closed")
)

// Session is one authenticated player connection lease.
type Session struct {
	ID         string
	PlayerID   string
	PlayerName string
	CreatedAt  time.Time
	LastSeen   time.Time

	secretHash []byte
}

// Manager owns the session table.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	leasePeriod time.Duration
	maxSessions int
	logger      *zap.Logger
}

// NewManager creates a session manager. Sessions not renewed within the
// lease period are reaped by CleanupExpiredSessions.
func NewManager(leasePeriod time.Duration, maxSessions int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if leasePeriod <= 0 {
		leasePeriod = 5 * time.Minute
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		leasePeriod: leasePeriod,
		maxSessions: maxSessions,
		logger:      logger,
	}
}

// Create opens a session for a player and returns it together with the
// one-time plaintext secret.
func (m *Manager) Create(playerID, playerName string) (*Session, string, error) {
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, "", ErrLimitReached
	}

	now := time.Now()
	s := &Session{
		ID:         uuid.NewString(),
		PlayerID:   playerID,
		PlayerName: playerName,
		CreatedAt:  now,
		LastSeen:   now,
		secretHash: hash,
	}
	m.sessions[s.ID] = s
	m.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("player_id", playerID),
	)
	return s, secret, nil
}

// Validate checks the secret against the session and renews its lease.
func (m *Manager) Validate(sessionID, secret string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)); err != nil {
		return nil, ErrBadSecret
	}
	s.LastSeen = time.Now()
	return s, nil
}

// Touch renews the lease of a known-valid session.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.LastSeen = time.Now()
	}
}

// Close removes a single session.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		delete(m.sessions, sessionID)
		m.logger.Info("session closed", zap.String("session_id", sessionID))
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpiredSessions reaps sessions whose lease lapsed. It runs until
// the context is cancelled.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(m.leasePeriod / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reap()
		}
	}
}

func (m *Manager) reap() {
	cutoff := time.Now().Add(-m.leasePeriod)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.LastSeen.Before(cutoff) {
			delete(m.sessions, id)
			m.logger.Info("session expired",
				zap.String("session_id", id),
				zap.String("player_id", s.PlayerID),
			)
		}
	}
}

// CloseAll drops every session, used during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sessions)
	m.sessions = make(map[string]*Session)
	if n > 0 {
		m.logger.Info("all sessions closed", zap.Int("count", n))
	}
}
