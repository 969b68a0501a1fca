package mempool

import (
	"context"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/jellydator/ttlcache/v3"
)

// stemEntry is a transaction under Dandelion embargo, awaiting either its
// timer, its confirm-height deadline, or an aggregation batch
// (original_source/node/txpool.h's Stem::Element: m_Time, m_Confirm,
// m_FeeReserve).
type stemEntry struct {
	id              chainmodel.Hash
	payload         []byte
	info            chainmodel.TxInfo
	confirmDeadline uint32
	aggregating     bool
}

// dummyOutput is bookkeeping for a padding output manufactured during
// aggregation (spec §4.4 "dummy outputs"): this core never constructs the
// real output bytes, only tracks when a dummy becomes spendable by a
// later dummy input.
type dummyOutput struct {
	id          chainmodel.Hash
	spendHeight uint32
	spent       bool
}

// stemPool holds embargoed transactions keyed by kernel hash. Embargo
// expiry is driven by a ttlcache per-entry TTL (grounded on
// bbs.Store/GenerationalCache's OnEviction idiom); the confirm-height
// deadline is checked separately against the chain controller's reported
// height, since ttlcache only knows wall-clock time.
type stemPool struct {
	embargo      *ttlcache.Cache[chainmodel.Hash, *stemEntry]
	pending      map[chainmodel.Hash]*stemEntry
	onExpire     func(*stemEntry)
	dummyOutputs []dummyOutput
}

func newStemPool() *stemPool {
	p := &stemPool{
		embargo: ttlcache.New[chainmodel.Hash, *stemEntry](),
		pending: make(map[chainmodel.Hash]*stemEntry),
	}

	p.embargo.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[chainmodel.Hash, *stemEntry]) {
		e := item.Value()
		delete(p.pending, e.id)
		if reason == ttlcache.EvictionReasonExpired && p.onExpire != nil {
			p.onExpire(e)
		}
	})

	go p.embargo.Start()
	return p
}

func (p *stemPool) insert(e *stemEntry, embargo time.Duration, onExpire func(*stemEntry)) {
	p.onExpire = onExpire
	p.pending[e.id] = e
	p.embargo.Set(e.id, e, embargo)
}

func (p *stemPool) count() int {
	return len(p.pending)
}

// expireByHeight fluffs any entry whose confirm-height deadline has
// arrived, independent of its wall-clock embargo timer (spec §4.4 "or
// deadline fires").
func (p *stemPool) expireByHeight(height uint32) {
	var due []*stemEntry
	for id, e := range p.pending {
		if !e.aggregating && e.confirmDeadline != 0 && height >= e.confirmDeadline {
			due = append(due, e)
			delete(p.pending, id)
			p.embargo.Delete(id)
		}
	}
	for _, e := range due {
		if p.onExpire != nil {
			p.onExpire(e)
		}
	}
}

// takeAggregationBatch removes non-aggregating entries for the caller to
// bundle into an aggregate transaction, bounded by the group's combined
// input+output count rather than the number of transactions (spec §4.4
// "groups stem transactions whose input+output counts fall in
// [OutputsMin, OutputsMax]").
func (p *stemPool) takeAggregationBatch(maxCombinedCount int) []*stemEntry {
	var batch []*stemEntry
	total := 0
	for id, e := range p.pending {
		if e.aggregating {
			continue
		}
		count := e.info.NumInputs + e.info.NumOutputs
		if total+count > maxCombinedCount {
			continue
		}
		e.aggregating = true
		batch = append(batch, e)
		delete(p.pending, id)
		p.embargo.Delete(id)
		total += count
		if total >= maxCombinedCount {
			break
		}
	}
	return batch
}
