package mempool

import "github.com/BigRomanov/beam-1/chainmodel"

// orphanTx is a dependent transaction whose declared parent context
// hasn't been seen yet, held until that parent becomes a root.
type orphanTx struct {
	id      chainmodel.Hash
	payload []byte
}

// dependentPool preserves the linear chain of dependent-transaction
// context hashes [ctx0 -> ctx1 -> ...] (spec §4.4 "Dependent chain").
// Every accepted transaction's own id becomes a root the moment it's
// accepted, whether it arrived as a dependent link or as a plain
// fluff/stem transaction starting a new chain; orphans (a child whose
// parent context hasn't been seen yet) are kept separately so a later
// link for the same parent can still find them.
type dependentPool struct {
	roots   map[chainmodel.Hash]struct{}
	orphans map[chainmodel.Hash][]orphanTx
}

func newDependentPool() *dependentPool {
	return &dependentPool{
		roots:   make(map[chainmodel.Hash]struct{}),
		orphans: make(map[chainmodel.Hash][]orphanTx),
	}
}

// hasRoot reports whether parentCtx is a context hash the pool already
// knows about, i.e. a valid anchor for a new link.
func (d *dependentPool) hasRoot(parentCtx chainmodel.Hash) bool {
	_, ok := d.roots[parentCtx]
	return ok
}

// addOrphan records a transaction whose declared parent context is
// unknown, so the pool can still recognize it once the parent shows up
// (spec §4.4 "DependentNotFound ... without propagation").
func (d *dependentPool) addOrphan(id chainmodel.Hash, payload []byte, parentCtx chainmodel.Hash) {
	d.orphans[parentCtx] = append(d.orphans[parentCtx], orphanTx{id: id, payload: payload})
}

// addRoot registers id as a valid chain anchor for future dependents and
// returns any orphans that were already waiting on it, so the caller can
// promote them in turn.
func (d *dependentPool) addRoot(id chainmodel.Hash) []orphanTx {
	d.roots[id] = struct{}{}

	pending := d.orphans[id]
	delete(d.orphans, id)
	return pending
}
