package mempool

import (
	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/dolthub/swiss"
)

// fluffEntry is a transaction ready for gossip, along with the
// fee-density figure used to rank it against the rest of the pool
// (original_source/node/txpool.h's TxPool::Profit).
type fluffEntry struct {
	id         chainmodel.Hash
	payload    []byte
	info       chainmodel.TxInfo
	feeDensity float64
}

func feeDensity(info chainmodel.TxInfo) float64 {
	if info.SizeBytes == 0 {
		return 0
	}
	return float64(info.FeeSatoshi) / float64(info.SizeBytes)
}

// fluffPool holds transactions advertised to the network, evicting the
// lowest fee-density entries once MaxPoolTransactions is exceeded (spec
// §4.4 "Fluff phase").
type fluffPool struct {
	byID    *swiss.Map[chainmodel.Hash, *fluffEntry]
	entries []*fluffEntry
	maxSize int
}

func newFluffPool(maxSize int) *fluffPool {
	return &fluffPool{
		byID:    swiss.NewMap[chainmodel.Hash, *fluffEntry](1024),
		maxSize: maxSize,
	}
}

// insert adds the transaction, evicting the current lowest fee-density
// entry if the pool is at capacity. It returns false if the incoming
// transaction's own fee-density is no better than the entry it would have
// to evict, i.e. the pool is genuinely full for this transaction.
func (f *fluffPool) insert(id chainmodel.Hash, payload []byte, info chainmodel.TxInfo) bool {
	if _, exists := f.byID.Get(id); exists {
		return true
	}

	e := &fluffEntry{id: id, payload: payload, info: info, feeDensity: feeDensity(info)}

	if len(f.entries) >= f.maxSize {
		worstIdx := f.lowestDensityIndex()
		if worstIdx < 0 || f.entries[worstIdx].feeDensity >= e.feeDensity {
			return false
		}
		f.removeAt(worstIdx)
	}

	f.entries = append(f.entries, e)
	f.byID.Put(id, e)
	return true
}

func (f *fluffPool) lowestDensityIndex() int {
	if len(f.entries) == 0 {
		return -1
	}
	worst := 0
	for i, e := range f.entries {
		if e.feeDensity < f.entries[worst].feeDensity {
			worst = i
		}
	}
	return worst
}

func (f *fluffPool) removeAt(i int) {
	e := f.entries[i]
	f.byID.Delete(e.id)
	f.entries[i] = f.entries[len(f.entries)-1]
	f.entries = f.entries[:len(f.entries)-1]
}

func (f *fluffPool) count() int {
	return len(f.entries)
}

func (f *fluffPool) get(id chainmodel.Hash) (*fluffEntry, bool) {
	return f.byID.Get(id)
}
