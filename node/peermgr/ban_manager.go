package peermgr

import (
	"context"
	"sync"
	"time"
)

// BanReason categorizes why a peer accrued ban score, matching the
// error taxonomy in spec §7.
type BanReason int

const (
	ReasonUnknown BanReason = iota
	ReasonProtocolViolation
	ReasonBadData
	ReasonTimeout
	ReasonSpam
)

func (r BanReason) String() string {
	switch r {
	case ReasonProtocolViolation:
		return "protocol_violation"
	case ReasonBadData:
		return "bad_data"
	case ReasonTimeout:
		return "timeout"
	case ReasonSpam:
		return "spam"
	default:
		return "unknown"
	}
}

// BanScore tracks accumulating penalties and ban state for one peer.
type BanScore struct {
	Score      int
	Banned     bool
	BanUntil   time.Time
	LastUpdate time.Time
	Reasons    []string
}

// BanEventHandler is notified when a peer crosses the ban threshold.
type BanEventHandler interface {
	OnPeerBanned(peerID NodeID, until time.Time, reason string)
}

// BanManagerI abstracts ban-state queries so the peer connection state
// machine can depend on an interface rather than the concrete type.
type BanManagerI interface {
	IsBanned(peerID NodeID) bool
	GetBanScore(peerID NodeID) (score int, banned bool, banUntil time.Time)
	AddScore(peerID NodeID, reason BanReason) (score int, banned bool)
}

// BanManager implements time-decaying ban scores with a configurable
// threshold and duration (grounded on services/p2p/BanManager.go,
// generalized from teranode's subtree/block/catchup reasons to this
// protocol's protocol-violation/bad-data/timeout/spam taxonomy).
type BanManager struct {
	ctx           context.Context
	mu            sync.RWMutex
	scores        map[NodeID]*BanScore
	reasonPoints  map[BanReason]int
	banThreshold  int
	banDuration   time.Duration
	decayInterval time.Duration
	decayAmount   int
	handler       BanEventHandler
	registry      *Registry
}

// NewBanManager builds a BanManager and starts its background decay loop.
func NewBanManager(ctx context.Context, handler BanEventHandler, banThreshold int, banDuration time.Duration, registry *Registry) *BanManager {
	m := &BanManager{
		ctx:    ctx,
		scores: make(map[NodeID]*BanScore),
		reasonPoints: map[BanReason]int{
			ReasonProtocolViolation: 20,
			ReasonBadData:           40,
			ReasonTimeout:           5,
			ReasonSpam:              50,
		},
		banThreshold:  banThreshold,
		banDuration:   banDuration,
		decayInterval: time.Minute,
		decayAmount:   1,
		handler:       handler,
		registry:      registry,
	}

	go m.runDecayLoop()

	return m
}

func (m *BanManager) runDecayLoop() {
	ticker := time.NewTicker(m.decayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanupBanScores()
		case <-m.ctx.Done():
			return
		}
	}
}

// AddScore applies decay since the last update, adds reason's points,
// and bans the peer if the threshold is now exceeded.
func (m *BanManager) AddScore(peerID NodeID, reason BanReason) (score int, banned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	entry, ok := m.scores[peerID]
	if !ok {
		entry = &BanScore{LastUpdate: now}
		m.scores[peerID] = entry
	}

	elapsed := now.Sub(entry.LastUpdate)
	if steps := int(elapsed / m.decayInterval); steps > 0 {
		entry.Score -= steps * m.decayAmount
		if entry.Score < 0 {
			entry.Score = 0
		}
		entry.LastUpdate = now
	}

	entry.Reasons = append(entry.Reasons, reason.String())

	points, found := m.reasonPoints[reason]
	if !found {
		points = 1
	}
	entry.Score += points

	if entry.Score >= m.banThreshold && !entry.Banned {
		entry.Banned = true
		entry.BanUntil = now.Add(m.banDuration)
		banned = true

		if m.handler != nil {
			m.handler.OnPeerBanned(peerID, entry.BanUntil, reason.String())
		}
	}

	if m.registry != nil {
		m.registry.UpdateBanStatus(peerID, entry.Score, entry.Banned)
	}

	return entry.Score, entry.Banned
}

func (m *BanManager) GetBanScore(peerID NodeID) (score int, banned bool, banUntil time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.scores[peerID]
	if !ok {
		return 0, false, time.Time{}
	}

	return entry.Score, entry.Banned, entry.BanUntil
}

func (m *BanManager) ResetBanScore(peerID NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scores, peerID)

	if m.registry != nil {
		m.registry.UpdateBanStatus(peerID, 0, false)
	}
}

// IsBanned reports whether peerID is currently banned, clearing an
// expired ban as a side effect.
func (m *BanManager) IsBanned(peerID NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.scores[peerID]
	if !ok || !entry.Banned {
		return false
	}

	if time.Now().After(entry.BanUntil) {
		delete(m.scores, peerID)

		if m.registry != nil {
			m.registry.UpdateBanStatus(peerID, 0, false)
		}

		return false
	}

	return true
}

func (m *BanManager) ListBanned() []NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var banned []NodeID

	now := time.Now()
	for peerID, entry := range m.scores {
		if entry.Banned && now.Before(entry.BanUntil) {
			banned = append(banned, peerID)
		}
	}

	return banned
}

func (m *BanManager) CleanupBanScores() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for peerID, entry := range m.scores {
		if entry.Score == 0 && !entry.Banned {
			delete(m.scores, peerID)
		}
	}
}

func (m *BanManager) GetBanReasons(peerID NodeID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.scores[peerID]
	if !ok {
		return nil
	}

	return append([]string{}, entry.Reasons...)
}
