package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCreateAndValidateRoundTrip(t *testing.T) {
	m := NewManager(time.Minute, 0, zaptest.NewLogger(t))

	s, secret, err := m.Create("p1", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.NotEmpty(t, secret)
	require.Equal(t, 1, m.Count())

	got, err := m.Validate(s.ID, secret)
	require.NoError(t, err)
	require.Equal(t, "p1", got.PlayerID)

	_, err = m.Validate(s.ID, "wrong-secret")
	require.ErrorIs(t, err, ErrBadSecret)

	_, err = m.Validate("no-such-session", secret)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionLimit(t *testing.T) {
	m := NewManager(time.Minute, 2, zaptest.NewLogger(t))

	_, _, err := m.Create("p1", "Alice")
	require.NoError(t, err)
	s2, _, err := m.Create("p2", "Bob")
	require.NoError(t, err)

	_, _, err = m.Create("p3", "Carol")
	require.ErrorIs(t, err, ErrLimitReached)

	// Closing a session frees a slot.
	m.Close(s2.ID)
	_, _, err = m.Create("p3", "Carol")
	require.NoError(t, err)
}

func TestReapDropsOnlyExpiredLeases(t *testing.T) {
	m := NewManager(time.Minute, 0, zaptest.NewLogger(t))

	stale, _, err := m.Create("p1", "Alice")
	require.NoError(t, err)
	fresh, _, err := m.Create("p2", "Bob")
	require.NoError(t, err)

	m.sessions[stale.ID].LastSeen = time.Now().Add(-2 * time.Minute)
	m.reap()

	require.Equal(t, 1, m.Count())
	require.NotContains(t, m.sessions, stale.ID)
	require.Contains(t, m.sessions, fresh.ID)
}

func TestTouchRenewsLease(t *testing.T) {
	m := NewManager(time.Minute, 0, zaptest.NewLogger(t))

	s, _, err := m.Create("p1", "Alice")
	require.NoError(t, err)
	m.sessions[s.ID].LastSeen = time.Now().Add(-2 * time.Minute)

	m.Touch(s.ID)
	m.reap()
	require.Equal(t, 1, m.Count())
}

func TestCloseAll(t *testing.T) {
	m := NewManager(time.Minute, 0, zaptest.NewLogger(t))
	for _, id := range []string{"p1", "p2", "p3"} {
		_, _, err := m.Create(id, id)
		require.NoError(t, err)
	}

	m.CloseAll()
	require.Equal(t, 0, m.Count())
}
