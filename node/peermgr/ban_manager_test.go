package peermgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	banned []NodeID
}

func (h *recordingHandler) OnPeerBanned(peerID NodeID, until time.Time, reason string) {
	h.banned = append(h.banned, peerID)
}

func TestAddScoreBansAtThreshold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := &recordingHandler{}
	m := NewBanManager(ctx, handler, 40, time.Minute, nil)

	score, banned := m.AddScore("peer-a", ReasonProtocolViolation)
	require.Equal(t, 20, score)
	require.False(t, banned)

	score, banned = m.AddScore("peer-a", ReasonProtocolViolation)
	require.Equal(t, 40, score)
	require.True(t, banned)
	require.Len(t, handler.banned, 1)
}

func TestIsBannedExpiresBan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewBanManager(ctx, nil, 10, 10*time.Millisecond, nil)
	m.AddScore("peer-a", ReasonSpam)

	require.True(t, m.IsBanned("peer-a"))

	time.Sleep(30 * time.Millisecond)
	require.False(t, m.IsBanned("peer-a"))
}

func TestBadDataWeighsMoreThanTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewBanManager(ctx, nil, 1000, time.Minute, nil)

	badDataScore, _ := m.AddScore("peer-a", ReasonBadData)
	timeoutScore, _ := m.AddScore("peer-b", ReasonTimeout)

	require.Greater(t, badDataScore, timeoutScore)
}
