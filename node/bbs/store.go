// Package bbs implements the store-and-forward broadcast bus (spec §4.6):
// a channel-partitioned message bank with proof-of-work admission, expiry,
// and cursor-based resynchronization.
package bbs

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/errors"
	"github.com/BigRomanov/beam-1/ulogger"
	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Message is a single accepted BBS item, indexed by id and by (channel, time)
// per spec §3.
type Message struct {
	Channel uint32
	Time    uint64
	ID      chainmodel.Hash
	Payload []byte
	Nonce   uint64
}

func (m *Message) size() int64 {
	return int64(len(m.Payload)) + 64 // payload plus a fixed per-record overhead estimate
}

// Store holds every live BBS message, backed by a swiss-map existence index
// (grounded on util/txmap.go's SwissMap) plus a ttlcache value store whose
// own expiry loop drives the MessageTimeout_s eviction (grounded on
// stores/blockchain/sql/generational_cache.go's ttlcache usage). Per-channel
// slices give the (time, id)-ordered view that Sync needs.
type Store struct {
	mu sync.RWMutex

	ids      *swiss.Map[chainmodel.Hash, struct{}]
	cache    *ttlcache.Cache[chainmodel.Hash, *Message]
	channels map[uint32][]*Message

	totalSize int64

	log ulogger.Logger

	limitCount    int64
	limitSize     int64
	cleanupPeriod time.Duration

	difficulty map[uint32]uint8
}

// New builds a Store whose entries expire after messageTimeout and are
// swept for cap violations every cleanupPeriod.
func New(ctx context.Context, log ulogger.Logger, messageTimeout time.Duration, limitCount, limitSize int64, cleanupPeriod time.Duration) *Store {
	s := &Store{
		ids:           swiss.NewMap[chainmodel.Hash, struct{}](1024),
		channels:      make(map[uint32][]*Message),
		log:           log,
		limitCount:    limitCount,
		limitSize:     limitSize,
		cleanupPeriod: cleanupPeriod,
		difficulty:    make(map[uint32]uint8),
	}

	s.cache = ttlcache.New[chainmodel.Hash, *Message](
		ttlcache.WithTTL[chainmodel.Hash, *Message](messageTimeout),
	)
	s.cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[chainmodel.Hash, *Message]) {
		s.remove(item.Value())
	})

	go s.cache.Start()
	go s.runCleanupLoop(ctx)

	return s
}

// SetDifficulty sets the required leading zero bits for messages on channel.
func (s *Store) SetDifficulty(channel uint32, bits uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.difficulty[channel] = bits
}

func (s *Store) runCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// powHash computes the message's proof-of-work digest over its identifying
// fields and nonce.
func powHash(channel uint32, msgTime uint64, id chainmodel.Hash, payload []byte, nonce uint64) chainmodel.Hash {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], channel)
	h.Write(buf[:4])
	binary.BigEndian.PutUint64(buf[:], msgTime)
	h.Write(buf[:])
	h.Write(id[:])
	h.Write(payload)
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])

	var out chainmodel.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// leadingZeroBits counts the number of leading zero bits in h.
func leadingZeroBits(h chainmodel.Hash) uint8 {
	var n uint8
	for _, b := range h {
		if b == 0 {
			n += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return n
			}
			n++
		}
	}
	return n
}

// checkProofOfWork verifies that a message's powHash meets the channel's
// configured difficulty (spec §4.6).
func (s *Store) checkProofOfWork(msg *Message) error {
	s.mu.RLock()
	required := s.difficulty[msg.Channel]
	s.mu.RUnlock()

	if required == 0 {
		return nil
	}

	got := leadingZeroBits(powHash(msg.Channel, msg.Time, msg.ID, msg.Payload, msg.Nonce))
	if got < required {
		return errors.NewBbsProofOfWorkError("bbs message on channel %d needs %d leading zero bits, got %d", msg.Channel, required, got)
	}

	return nil
}

const maxPayloadBytes = 1 << 20 // 1 MiB (spec §3)

// Insert admits a message, assigning an id from uuid if the caller left one
// zero, and, if the insert pushes totals over a cap, evicts the oldest
// message(s) across all channels via Cleanup (spec §8 "BBS cleanup"
// scenario).
func (s *Store) Insert(msg *Message) error {
	if len(msg.Payload) > maxPayloadBytes {
		return errors.NewBbsPayloadTooLargeError("bbs payload is %d bytes", len(msg.Payload))
	}

	if msg.ID.IsZero() {
		id := uuid.New()
		msg.ID = sha256.Sum256(id[:])
	}

	if err := s.checkProofOfWork(msg); err != nil {
		return err
	}

	s.mu.Lock()

	if _, exists := s.ids.Get(msg.ID); exists {
		s.mu.Unlock()
		return nil // duplicate insert is a no-op, not an error
	}

	s.ids.Put(msg.ID, struct{}{})
	s.channels[msg.Channel] = insertSorted(s.channels[msg.Channel], msg)
	s.totalSize += msg.size()
	count := s.ids.Count()
	totalSize := s.totalSize

	s.mu.Unlock()

	s.cache.Set(msg.ID, msg, ttlcache.DefaultTTL)

	if int64(count) > s.limitCount || totalSize > s.limitSize {
		s.Cleanup()
	}

	return nil
}

// insertSorted keeps a channel's message slice ordered by (time, id).
func insertSorted(list []*Message, msg *Message) []*Message {
	i := sort.Search(len(list), func(i int) bool {
		return less(msg, list[i])
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = msg
	return list
}

func less(a, b *Message) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return string(a.ID[:]) < string(b.ID[:])
}

// remove drops msg from the id index, its channel slice, and the size
// total. Called both from explicit eviction and from the ttlcache
// OnEviction callback, so it must be idempotent.
func (s *Store) remove(msg *Message) {
	if msg == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids.Get(msg.ID); !exists {
		return
	}

	s.ids.Delete(msg.ID)
	s.totalSize -= msg.size()

	list := s.channels[msg.Channel]
	for i, m := range list {
		if m.ID == msg.ID {
			s.channels[msg.Channel] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Get looks up a message by id.
func (s *Store) Get(id chainmodel.Hash) (*Message, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Sync returns channel's messages newer than since in (time, id) order,
// along with the cursor the caller should hold to request the next batch
// (spec §4.6 "Synchronization").
func (s *Store) Sync(channel uint32, since uint64) (msgs []*Message, cursor uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.channels[channel]
	cursor = since

	for _, m := range list {
		if m.Time > since {
			msgs = append(msgs, m)
			if m.Time > cursor {
				cursor = m.Time
			}
		}
	}

	return msgs, cursor
}

// Cleanup evicts the oldest messages, globally across channels, until both
// the count and size caps hold (spec §4.6, §8 invariant 5).
func (s *Store) Cleanup() {
	for {
		s.mu.Lock()

		count := int64(s.ids.Count())
		if count <= s.limitCount && s.totalSize <= s.limitSize {
			s.mu.Unlock()
			return
		}

		oldest := s.findOldestLocked()
		s.mu.Unlock()

		if oldest == nil {
			return
		}

		s.cache.Delete(oldest.ID) // triggers OnEviction -> remove()

		if s.log != nil {
			s.log.Debugf("bbs cleanup: evicted message %s on channel %d", oldest.ID, oldest.Channel)
		}
	}
}

func (s *Store) findOldestLocked() *Message {
	var oldest *Message
	for _, list := range s.channels {
		if len(list) == 0 {
			continue
		}
		candidate := list[0]
		if oldest == nil || less(candidate, oldest) {
			oldest = candidate
		}
	}
	return oldest
}

// Count returns the total number of live messages.
func (s *Store) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(s.ids.Count())
}

// TotalSize returns the total size in bytes of all live messages.
func (s *Store) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSize
}

// Close stops the ttlcache expiry loop. The periodic cleanup loop is not
// stopped here; it ends when the ctx passed to New is canceled.
func (s *Store) Close() {
	s.cache.Stop()
}
