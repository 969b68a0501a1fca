package peermgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPeerStartsNeutral(t *testing.T) {
	r := NewRegistry()
	r.AddPeer("peer-a", "10.0.0.1:9000")

	info, ok := r.GetPeer("peer-a")
	require.True(t, ok)
	require.Equal(t, 50.0, info.ReputationScore)
}

func TestSuccessRaisesReputationAboveBaseline(t *testing.T) {
	r := NewRegistry()
	r.AddPeer("peer-a", "")

	for i := 0; i < 5; i++ {
		r.RecordInteractionSuccess("peer-a", 10*time.Millisecond)
	}

	info, _ := r.GetPeer("peer-a")
	require.Greater(t, info.ReputationScore, 50.0)
}

func TestMaliciousDropsReputationToFive(t *testing.T) {
	r := NewRegistry()
	r.AddPeer("peer-a", "")

	r.RecordMaliciousInteraction("peer-a")

	info, _ := r.GetPeer("peer-a")
	require.Equal(t, 5.0, info.ReputationScore)
}

func TestGetPeersByReputationExcludesBanned(t *testing.T) {
	r := NewRegistry()
	r.AddPeer("good", "")
	r.AddPeer("bad", "")
	r.UpdateBanStatus("bad", 100, true)

	peers := r.GetPeersByReputation()
	require.Len(t, peers, 1)
	require.Equal(t, NodeID("good"), peers[0].ID)
}

func TestReconsiderBadPeersRecoversAfterCooldown(t *testing.T) {
	r := NewRegistry()
	r.AddPeer("peer-a", "")
	r.RecordMaliciousInteraction("peer-a")

	// No cooldown elapsed yet.
	require.Equal(t, 0, r.ReconsiderBadPeers(time.Hour))

	info, _ := r.GetPeer("peer-a")
	info.LastInteractionFailure = time.Now().Add(-2 * time.Hour)
	r.mu.Lock()
	r.peers["peer-a"].LastInteractionFailure = info.LastInteractionFailure
	r.mu.Unlock()

	require.Equal(t, 1, r.ReconsiderBadPeers(time.Hour))

	recovered, _ := r.GetPeer("peer-a")
	require.Equal(t, 30.0, recovered.ReputationScore)
}
