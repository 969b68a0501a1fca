// Package peermgr implements the node's address book, live reputation
// tracking, and time-limited bans (spec §4.7).
package peermgr

import (
	"sync"
	"time"
)

// NodeID identifies a peer by the hex encoding of its long-term public
// key (see node/peer.ID), kept as a plain string here so this package
// has no dependency on the peer connection package.
type NodeID string

// PeerInfo is the live, in-memory reputation record for a connected or
// recently-connected peer. It is distinct from the address book's
// persisted (nodeID, address, rating, bannedUntil) entry: PeerInfo
// tracks the richer per-session metrics the reputation formula needs.
type PeerInfo struct {
	ID         NodeID
	Address    string
	ConnectedAt time.Time

	InteractionSuccesses int
	InteractionFailures  int
	MaliciousCount       int

	LastInteractionSuccess time.Time
	LastInteractionFailure time.Time
	LastReputationReset    time.Time
	ReputationResetCount   int

	AvgResponseTime time.Duration
	ReputationScore float64

	IsBanned  bool
	BanScore  int
	IsActive  bool
}

// Registry is a pure data store for live per-peer reputation metrics,
// generalized from libp2p's peer.ID to this protocol's NodeID (grounded
// directly on services/p2p/peer_registry.go).
type Registry struct {
	mu    sync.RWMutex
	peers map[NodeID]*PeerInfo
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[NodeID]*PeerInfo)}
}

func (r *Registry) AddPeer(id NodeID, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; !exists {
		r.peers[id] = &PeerInfo{
			ID:              id,
			Address:         address,
			ConnectedAt:     time.Now(),
			ReputationScore: 50.0,
		}
	}
}

func (r *Registry) RemovePeer(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

func (r *Registry) GetPeer(id NodeID) (*PeerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.peers[id]
	if !exists {
		return nil, false
	}

	c := *info
	return &c, true
}

func (r *Registry) UpdateBanStatus(id NodeID, score int, banned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, exists := r.peers[id]; exists {
		info.BanScore = score
		info.IsBanned = banned
	}
}

// RecordInteractionSuccess records a successful reply and rescales the
// reputation score (§4.7: "successful reply: up").
func (r *Registry) RecordInteractionSuccess(id NodeID, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.peers[id]
	if !exists {
		return
	}

	info.InteractionSuccesses++
	info.LastInteractionSuccess = time.Now()

	if info.AvgResponseTime == 0 {
		info.AvgResponseTime = duration
	} else {
		info.AvgResponseTime = time.Duration(int64(float64(info.AvgResponseTime)*0.8 + float64(duration)*0.2))
	}

	r.calculateAndUpdateReputation(info)
}

// RecordInteractionFailure records a slow or failed reply (§4.7: "slow: down").
func (r *Registry) RecordInteractionFailure(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.peers[id]
	if !exists {
		return
	}

	info.InteractionFailures++
	info.LastInteractionFailure = time.Now()

	recentFailureWindow := 5 * time.Minute
	if !info.LastInteractionSuccess.IsZero() && time.Since(info.LastInteractionSuccess) < recentFailureWindow {
		if info.InteractionFailures-info.InteractionSuccesses > 2 {
			info.ReputationScore = 15.0
			return
		}
	}

	r.calculateAndUpdateReputation(info)
}

// RecordMaliciousInteraction records bad data (§4.7: "bad data: down down").
func (r *Registry) RecordMaliciousInteraction(id NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.peers[id]
	if !exists {
		return
	}

	info.MaliciousCount++
	info.InteractionFailures++
	info.LastInteractionFailure = time.Now()
	info.ReputationScore = 5.0
}

// calculateAndUpdateReputation must be called with the lock held.
//
// Base score 50, success rate weighted 60%, malicious peers pinned
// low, recency bonus/penalty within a one-hour window, clamped 0-100.
func (r *Registry) calculateAndUpdateReputation(info *PeerInfo) {
	const (
		baseScore     = 50.0
		successWeight = 0.6
		recencyBonus  = 10.0
		recencyWindow = time.Hour
	)

	if info.MaliciousCount > 0 {
		info.ReputationScore = 5.0
		return
	}

	total := info.InteractionSuccesses + info.InteractionFailures
	if total == 0 {
		info.ReputationScore = baseScore
		return
	}

	successRate := (float64(info.InteractionSuccesses) / float64(total)) * 100.0

	score := successRate*successWeight + baseScore*(1.0-successWeight)

	if !info.LastInteractionFailure.IsZero() && time.Since(info.LastInteractionFailure) < recencyWindow {
		score -= 15.0
	}

	if !info.LastInteractionSuccess.IsZero() && time.Since(info.LastInteractionSuccess) < recencyWindow {
		score += recencyBonus
	}

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	info.ReputationScore = score
}

// GetPeersByReputation returns non-banned peers sorted by descending
// reputation, most-recently-successful first among ties.
func (r *Registry) GetPeersByReputation() []*PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*PeerInfo, 0, len(r.peers))
	for _, info := range r.peers {
		if !info.IsBanned {
			c := *info
			result = append(result, &c)
		}
	}

	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[i].ReputationScore < result[j].ReputationScore {
				result[i], result[j] = result[j], result[i]
			} else if result[i].ReputationScore == result[j].ReputationScore &&
				result[i].LastInteractionSuccess.Before(result[j].LastInteractionSuccess) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}

	return result
}

// ReconsiderBadPeers recovers low-reputation peers after an
// exponentially growing cooldown, so a peer doesn't stay blacklisted
// forever after one bad episode.
func (r *Registry) ReconsiderBadPeers(cooldown time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	recovered := 0

	for _, info := range r.peers {
		if info.ReputationScore >= 20 {
			continue
		}

		if info.LastInteractionFailure.IsZero() || time.Since(info.LastInteractionFailure) < cooldown {
			continue
		}

		if !info.LastReputationReset.IsZero() {
			required := cooldown
			for i := 0; i < info.ReputationResetCount; i++ {
				required *= 3
			}

			if time.Since(info.LastReputationReset) < required {
				continue
			}
		}

		info.ReputationScore = 30
		info.MaliciousCount = 0
		info.LastReputationReset = time.Now()
		info.ReputationResetCount++
		recovered++
	}

	return recovered
}

func (r *Registry) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
