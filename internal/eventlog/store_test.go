package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAssignsSequencePerGame(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	a1 := &Record{GameID: "g1", Kind: KindSetup, Payload: []byte(`{}`)}
	require.NoError(t, s.Append(ctx, a1))
	require.Equal(t, int64(1), a1.Seq)
	require.False(t, a1.At.IsZero())

	a2 := &Record{GameID: "g1", Kind: KindAction, Payload: []byte(`{"t":1}`)}
	require.NoError(t, s.Append(ctx, a2))
	require.Equal(t, int64(2), a2.Seq)

	b1 := &Record{GameID: "g2", Kind: KindSetup, Payload: []byte(`{}`)}
	require.NoError(t, s.Append(ctx, b1))
	require.Equal(t, int64(1), b1.Seq, "sequence numbers are per game")
}

func TestMemoryStoreReplayReturnsAppendOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Append(ctx, &Record{GameID: "g1", Kind: KindSetup, Payload: []byte(`{}`)}))
	require.NoError(t, s.Append(ctx, &Record{GameID: "g1", Kind: KindAction, Payload: []byte(`{"t":1}`)}))
	require.NoError(t, s.Append(ctx, &Record{GameID: "g1", Kind: KindAction, Payload: []byte(`{"t":2}`)}))

	records, err := s.Replay(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, KindSetup, records[0].Kind)
	for i, rec := range records {
		require.Equal(t, int64(i+1), rec.Seq)
	}

	// Replay hands out a copy, not the backing slice.
	records[0].Payload = []byte(`tampered`)
	again, err := s.Replay(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []byte(`{}`), again[0].Payload)
}

func TestMemoryStoreReplayUnknownGameIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	records, err := s.Replay(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, records)
}
