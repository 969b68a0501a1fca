// Package wanted implements the generic keyed "I want X; ask peers"
// lookup table with expiry timers (spec §2 Wanted-set). The reactor uses
// it for advertised transactions it has asked peers for; the peer's
// rejected-task memory and the BBS store keep their own structures.
package wanted

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Entry is a single wanted key with the peers that have already been
// asked and failed to supply it.
type Entry[K comparable] struct {
	Key      K
	AskedBy  map[string]struct{}
	Created  time.Time
}

// Set is a keyed want-list with per-key TTL, backed by
// jellydator/ttlcache so expiry is driven by the library's own loop
// rather than a hand-rolled sweep (grounded on
// stores/blockchain/sql/generational_cache.go's ttlcache usage).
type Set[K comparable] struct {
	cache *ttlcache.Cache[K, *Entry[K]]
}

// New builds a Set whose entries expire after ttl if not refreshed.
func New[K comparable](ttl time.Duration) *Set[K] {
	cache := ttlcache.New[K, *Entry[K]](
		ttlcache.WithTTL[K, *Entry[K]](ttl),
	)

	go cache.Start()

	return &Set[K]{cache: cache}
}

// Want registers k as wanted, or returns the existing entry if already present.
func (s *Set[K]) Want(k K) *Entry[K] {
	if item := s.cache.Get(k); item != nil {
		return item.Value()
	}

	entry := &Entry[K]{Key: k, AskedBy: map[string]struct{}{}, Created: time.Now()}
	s.cache.Set(k, entry, ttlcache.DefaultTTL)
	return entry
}

// MarkAsked records that peerID has been asked for k.
func (s *Set[K]) MarkAsked(k K, peerID string) {
	item := s.cache.Get(k)
	if item == nil {
		return
	}
	item.Value().AskedBy[peerID] = struct{}{}
}

// WasAsked reports whether peerID has already been asked for k.
func (s *Set[K]) WasAsked(k K, peerID string) bool {
	item := s.cache.Get(k)
	if item == nil {
		return false
	}
	_, ok := item.Value().AskedBy[peerID]
	return ok
}

// Forget removes k from the want-list, e.g. once satisfied.
func (s *Set[K]) Forget(k K) {
	s.cache.Delete(k)
}

// Has reports whether k is currently wanted.
func (s *Set[K]) Has(k K) bool {
	return s.cache.Get(k) != nil
}

// Len returns the number of currently wanted keys.
func (s *Set[K]) Len() int {
	return s.cache.Len()
}

// Close stops the background expiry loop.
func (s *Set[K]) Close() {
	s.cache.Stop()
}
