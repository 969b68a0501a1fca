package mempool

import (
	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
)

// deferredTx is a transaction received before fast-sync completed, queued
// for reprocessing once the node has a trustworthy view of the chain
// (spec §4.4 "Deferred acceptance").
type deferredTx struct {
	id       chainmodel.Hash
	payload  []byte
	ctxHash  *chainmodel.Hash
	fromPeer peermgr.NodeID
	fluff    bool
}

type deferredList struct {
	items []deferredTx
	max   int
}

func newDeferredList(max int) *deferredList {
	return &deferredList{max: max}
}

// add appends item, returning false if the list is already at its cap
// (spec §4.4 "cap MaxDeferredTransactions").
func (d *deferredList) add(item deferredTx) bool {
	if len(d.items) >= d.max {
		return false
	}
	d.items = append(d.items, item)
	return true
}

// drain empties the list for the caller to reprocess (spec §4.4 "drained
// by an idle event once fast-sync succeeds").
func (d *deferredList) drain() []deferredTx {
	items := d.items
	d.items = nil
	return items
}
