package peermgr

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/ulogger"
)

// AddressBookEntry is the persisted (nodeID, address, rating,
// bannedUntil) record from spec §3, with both a raw rating (updated
// directly by events) and an adjusted rating that decays toward zero
// over wall time — the "intrusive live ordering" from spec §3 is
// realized here as a plain slice re-sorted on demand rather than an
// intrusive list, since Go has no container-of idiom (spec §9).
type AddressBookEntry struct {
	NodeID      NodeID
	Address     string
	RawRating   float64
	lastAdjust  time.Time
	BannedUntil time.Time
	Active      bool
	Reachable   bool
}

// AdjustedRating returns the entry's rating decayed toward zero since
// the last adjustment, evaluated at call time (no background timer
// needed — the decay is a pure function of elapsed time).
func (e *AddressBookEntry) AdjustedRating(decayHalfLife time.Duration) float64 {
	if e.RawRating == 0 || decayHalfLife <= 0 {
		return e.RawRating
	}

	elapsed := time.Since(e.lastAdjust)
	halfLives := float64(elapsed) / float64(decayHalfLife)

	decayFactor := 1.0
	for halfLives > 0 {
		decayFactor *= 0.5
		halfLives--
	}

	return e.RawRating * decayFactor
}

// Dialer connects to an address-book entry's address; the connection
// itself is owned by node/peer, kept as a narrow collaborator interface
// here to avoid a peermgr -> peer import cycle.
type Dialer interface {
	Dial(ctx context.Context, nodeID NodeID, address string) error
}

// AddressBook maintains the persistent set of known peers and decides
// which ones to actively connect to (§4.7 ActivateMorePeers).
type AddressBook struct {
	mu            sync.RWMutex
	entries       map[NodeID]*AddressBookEntry
	log           ulogger.Logger
	dialer        Dialer
	targetActive  int
	decayHalfLife time.Duration
	db            chainmodel.NodeDB
	dirty         bool
}

func NewAddressBook(log ulogger.Logger, dialer Dialer, db chainmodel.NodeDB, targetActive int) *AddressBook {
	return &AddressBook{
		entries:       make(map[NodeID]*AddressBookEntry),
		log:           log,
		dialer:        dialer,
		db:            db,
		targetActive:  targetActive,
		decayHalfLife: 24 * time.Hour,
	}
}

// Upsert adds or refreshes an address-book entry.
func (b *AddressBook) Upsert(nodeID NodeID, address string) *AddressBookEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[nodeID]
	if !ok {
		entry = &AddressBookEntry{NodeID: nodeID, Address: address, Reachable: true, lastAdjust: time.Now()}
		b.entries[nodeID] = entry
	} else if address != "" {
		entry.Address = address
	}

	b.dirty = true
	return entry
}

// Rate applies a rating delta to an entry's raw rating (successful
// reply: positive; bad data: large negative; slow: small negative,
// per §4.7).
func (b *AddressBook) Rate(nodeID NodeID, delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[nodeID]
	if !ok {
		return
	}

	entry.RawRating = entry.AdjustedRating(b.decayHalfLife) + delta
	entry.lastAdjust = time.Now()
	b.dirty = true
}

// Ban time-limits nodeID out of candidate selection.
func (b *AddressBook) Ban(nodeID NodeID, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.entries[nodeID]; ok {
		entry.BannedUntil = until
		b.dirty = true
	}
}

func (b *AddressBook) SetActive(nodeID NodeID, active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.entries[nodeID]; ok {
		entry.Active = active
		b.dirty = true
	}
}

// ActivateMorePeers connects to the best-adjusted-rating reachable,
// non-banned, inactive candidates until the active count reaches
// targetActive (§4.7, intended to be called every PeersUpdate_ms).
func (b *AddressBook) ActivateMorePeers(ctx context.Context) {
	b.mu.Lock()

	activeCount := 0
	candidates := make([]*AddressBookEntry, 0, len(b.entries))
	now := time.Now()

	for _, entry := range b.entries {
		if entry.Active {
			activeCount++
			continue
		}

		if !entry.Reachable || now.Before(entry.BannedUntil) {
			continue
		}

		candidates = append(candidates, entry)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].AdjustedRating(b.decayHalfLife) > candidates[j].AdjustedRating(b.decayHalfLife)
	})

	need := b.targetActive - activeCount
	b.mu.Unlock()

	if need <= 0 {
		return
	}

	for i := 0; i < need && i < len(candidates); i++ {
		entry := candidates[i]

		if err := b.dialer.Dial(ctx, entry.NodeID, entry.Address); err != nil {
			if b.log != nil {
				b.log.Warnf("ActivateMorePeers: dial %s failed: %v", entry.Address, err)
			}
			continue
		}

		b.SetActive(entry.NodeID, true)
	}
}

// Flush persists the address book if it has changed since the last
// flush, intended to be called every PeersDbFlush_ms (§4.7).
func (b *AddressBook) Flush(ctx context.Context) error {
	b.mu.Lock()
	if !b.dirty || b.db == nil {
		b.mu.Unlock()
		return nil
	}
	b.dirty = false
	b.mu.Unlock()

	return b.db.Flush(ctx)
}

func (b *AddressBook) Get(nodeID NodeID) (*AddressBookEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[nodeID]
	return entry, ok
}

func (b *AddressBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
