package bbs

import (
	"context"
	"testing"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, limitCount, limitSize int64) *Store {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := New(ctx, nil, time.Hour, limitCount, limitSize, time.Hour)
	t.Cleanup(s.Close)
	return s
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t, 1000, 1<<30)

	msg := &Message{Channel: 1, Time: 100, Payload: []byte("hello")}
	require.NoError(t, s.Insert(msg))
	require.False(t, msg.ID.IsZero(), "Insert should assign an id when none is given")

	got, ok := s.Get(msg.ID)
	require.True(t, ok)
	require.Equal(t, msg.Payload, got.Payload)
}

func TestInsertRejectsOversizedPayload(t *testing.T) {
	s := newTestStore(t, 1000, 1<<30)

	msg := &Message{Channel: 1, Time: 1, Payload: make([]byte, maxPayloadBytes+1)}
	err := s.Insert(msg)
	require.Error(t, err)
}

func TestProofOfWorkRejectsLowDifficulty(t *testing.T) {
	s := newTestStore(t, 1000, 1<<30)
	s.SetDifficulty(1, 64) // unreasonably high, guaranteed to reject an arbitrary nonce

	msg := &Message{Channel: 1, Time: 1, ID: chainmodel.Hash{1}, Payload: []byte("x"), Nonce: 42}
	err := s.Insert(msg)
	require.Error(t, err)
}

func TestSyncReturnsOnlyNewerMessages(t *testing.T) {
	s := newTestStore(t, 1000, 1<<30)

	require.NoError(t, s.Insert(&Message{Channel: 1, Time: 10, ID: chainmodel.Hash{1}, Payload: []byte("a")}))
	require.NoError(t, s.Insert(&Message{Channel: 1, Time: 20, ID: chainmodel.Hash{2}, Payload: []byte("b")}))
	require.NoError(t, s.Insert(&Message{Channel: 1, Time: 30, ID: chainmodel.Hash{3}, Payload: []byte("c")}))

	msgs, cursor := s.Sync(1, 15)
	require.Len(t, msgs, 2)
	require.Equal(t, uint64(30), cursor)
	require.Equal(t, uint64(20), msgs[0].Time)
	require.Equal(t, uint64(30), msgs[1].Time)
}

func TestCleanupEvictsOldestWhenCountCapExceeded(t *testing.T) {
	s := newTestStore(t, 2, 1<<30)

	oldest := &Message{Channel: 1, Time: 1, ID: chainmodel.Hash{1}, Payload: []byte("old")}
	require.NoError(t, s.Insert(oldest))
	require.NoError(t, s.Insert(&Message{Channel: 1, Time: 2, ID: chainmodel.Hash{2}, Payload: []byte("mid")}))
	require.NoError(t, s.Insert(&Message{Channel: 1, Time: 3, ID: chainmodel.Hash{3}, Payload: []byte("new")}))

	require.LessOrEqual(t, s.Count(), int64(2))

	_, ok := s.Get(oldest.ID)
	require.False(t, ok, "oldest message should have been evicted")
}

func TestDuplicateInsertIsNoOp(t *testing.T) {
	s := newTestStore(t, 1000, 1<<30)

	msg := &Message{Channel: 1, Time: 1, ID: chainmodel.Hash{9}, Payload: []byte("a")}
	require.NoError(t, s.Insert(msg))
	require.NoError(t, s.Insert(msg))

	require.Equal(t, int64(1), s.Count())
}
