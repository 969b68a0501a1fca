// Package chain implements the chain controller (spec §4.3): it drives
// the out-of-scope ChainProcessor collaborator in reaction to peer
// events, using the same channel-of-channel reactor pattern as the
// teacher's block assembler.
package chain

import (
	"context"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/ulogger"
)

type eventKind int

const (
	eventNewState eventKind = iota
	eventRolledBack
	eventModified
	eventFastSyncSucceeded
	eventPeerInsane
	eventHeaderProgress
	eventBodyProgress
)

type event struct {
	kind     eventKind
	nodeID   peermgr.NodeID
	proposed *chainmodel.SystemState
	progress uint32
}

// Listeners are the controller's outward effects: broadcasting a new tip
// and disconnecting an insane peer must happen on the reactor thread that
// owns the peer set, never directly from the validator thread that
// detected the problem (spec §4.3 "onPeerInsane").
type Listeners struct {
	BroadcastNewTip func(tip *chainmodel.SystemState)
	DisconnectPeer  func(nodeID peermgr.NodeID)
	AnnotateRolledBack func(toHeight uint32)
}

// Config carries the controller's tunable ceilings, sourced from
// settings rather than a global singleton (spec §9 design note).
type Config struct {
	MaxAutoRollback    uint32
	RollbackRulesCeiling uint32
	TimeoutSinceTip    time.Duration
	FlushDebounce      time.Duration
}

// Controller drives chainmodel.ChainProcessor: it tracks the current and
// best-known tip, decides when to roll forward or back, and debounces
// storm writes into a single flush timer (spec §4.3).
type Controller struct {
	processor chainmodel.ChainProcessor
	db        chainmodel.NodeDB
	log       ulogger.Logger
	listeners Listeners
	cfg       Config

	events        chan event
	queryState    chan chan *chainmodel.SystemState
	queryProgress chan chan syncProgress

	currentTip *chainmodel.SystemState
	lastTipTime time.Time

	fastSyncDone bool

	baselineHeight uint32
	headersDone    uint32
	headersTotal   uint32
	bodiesDone     uint32
	bodiesTotal    uint32
}

func New(processor chainmodel.ChainProcessor, db chainmodel.NodeDB, log ulogger.Logger, listeners Listeners, cfg Config) *Controller {
	return &Controller{
		processor:  processor,
		db:         db,
		log:        log,
		listeners:  listeners,
		cfg:        cfg,
		events:        make(chan event, 64),
		queryState:    make(chan chan *chainmodel.SystemState),
		queryProgress: make(chan chan syncProgress),
	}
}

// syncProgress is the weighted (done, total) pair returned by SyncProgress,
// computed on the controller's own goroutine and handed back over
// queryProgress so callers never read headersDone/bodiesDone directly.
type syncProgress struct {
	done, total uint64
}

// Run is the controller's reactor loop: a select over incoming events, a
// query channel for synchronous state reads, and the debounced flush /
// TryGoUp timers (grounded on
// services/blockassembly/BlockAssembler.go's startChannelListeners and
// services/miner/miner.go's candidateTimer.Reset idiom).
func (c *Controller) Run(ctx context.Context) {
	flushTimer := time.NewTimer(c.cfg.FlushDebounce)
	flushTimer.Stop()

	tryGoUpTimer := time.NewTimer(time.Millisecond)
	tryGoUpTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case responseCh := <-c.queryState:
			responseCh <- c.currentTip

		case responseCh := <-c.queryProgress:
			responseCh <- c.computeSyncProgress()

		case ev := <-c.events:
			c.handleEvent(ctx, ev, flushTimer, tryGoUpTimer)

		case <-flushTimer.C:
			if err := c.db.Flush(ctx); err != nil && c.log != nil {
				c.log.Errorf("chain controller: flush failed: %v", err)
			}

		case <-tryGoUpTimer.C:
			c.tryGoUp(ctx)
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev event, flushTimer, tryGoUpTimer *time.Timer) {
	switch ev.kind {
	case eventNewState:
		c.recomputeSyncStatus(ev.proposed)
		resetTimer(tryGoUpTimer, 0)

	case eventRolledBack:
		if c.listeners.AnnotateRolledBack != nil {
			c.listeners.AnnotateRolledBack(ev.proposed.Height)
		}
		resetTimer(tryGoUpTimer, 0)

	case eventModified:
		resetTimer(flushTimer, c.cfg.FlushDebounce)

	case eventFastSyncSucceeded:
		c.fastSyncDone = true

	case eventPeerInsane:
		if c.listeners.DisconnectPeer != nil {
			c.listeners.DisconnectPeer(ev.nodeID)
		}

	case eventHeaderProgress:
		c.headersDone = ev.progress

	case eventBodyProgress:
		c.bodiesDone = ev.progress
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	t.Stop()
	t.Reset(d)
}

// recomputeSyncStatus updates the controller's view of the best-known tip
// without yet committing to it; tryGoUp decides whether to actually apply
// it (spec §4.3 "onNewState").
func (c *Controller) recomputeSyncStatus(proposed *chainmodel.SystemState) {
	if proposed == nil {
		return
	}
	if proposed.Height > c.headersTotal {
		c.headersTotal = proposed.Height
		c.bodiesTotal = proposed.Height
	}
	if proposed.BeatsChainWork(c.currentTip) {
		c.currentTip = proposed
	}
}

// tryGoUp applies c.currentTip, which recomputeSyncStatus has already set
// to the best tip seen by chain work. It does not compare a rollback's
// depth against MaxAutoRollback; CanAutoRollback is a separate query.
func (c *Controller) tryGoUp(ctx context.Context) {
	// Finding the best DAG head by chain work is ChainProcessor's job;
	// here the controller commits the tip it already holds.
	if c.currentTip == nil {
		return
	}

	if err := c.processor.ApplyNewTip(ctx, *c.currentTip); err != nil {
		if c.log != nil {
			c.log.Errorf("chain controller: apply tip failed: %v", err)
		}
		return
	}

	c.lastTipTime = time.Now()

	if c.listeners.BroadcastNewTip != nil {
		c.listeners.BroadcastNewTip(c.currentTip)
	}
}

// ProposeState is how a peer's NewTip enters the controller (spec §4.3
// "onNewState"); the reactor calls it as soon as the NewTip arrives,
// before any header validation.
func (c *Controller) ProposeState(proposed *chainmodel.SystemState) {
	c.events <- event{kind: eventNewState, proposed: proposed}
}

// OnRolledBack notifies the controller that the chain processor rolled
// back to toHeight.
func (c *Controller) OnRolledBack(toHeight uint32) {
	c.events <- event{kind: eventRolledBack, proposed: &chainmodel.SystemState{BlockID: chainmodel.BlockID{Height: toHeight}}}
}

// OnModified schedules a debounced flush (spec §4.3 "onModified").
func (c *Controller) OnModified() {
	c.events <- event{kind: eventModified}
}

// OnFastSyncSucceeded records, on the controller's goroutine, that
// fast-sync has completed. It does not notify the mempool or the miner.
func (c *Controller) OnFastSyncSucceeded() {
	c.events <- event{kind: eventFastSyncSucceeded}
}

// OnPeerInsane enqueues nodeID for disconnection on the reactor thread,
// safe to call from a worker-pool validation goroutine (spec §4.3
// "never from the validator thread").
func (c *Controller) OnPeerInsane(nodeID peermgr.NodeID) {
	c.events <- event{kind: eventPeerInsane, nodeID: nodeID}
}

// GetState synchronously queries the current tip via the channel-of-
// channel pattern, safe to call from any goroutine.
func (c *Controller) GetState() *chainmodel.SystemState {
	responseCh := make(chan *chainmodel.SystemState)
	c.queryState <- responseCh
	return <-responseCh
}

// MaxAutoRollback is min(Rules::MaxRollback, the configured ceiling)
// (spec §4.3).
func (c *Controller) MaxAutoRollback() uint32 {
	if c.cfg.RollbackRulesCeiling < c.cfg.MaxAutoRollback {
		return c.cfg.RollbackRulesCeiling
	}
	return c.cfg.MaxAutoRollback
}

// CanAutoRollback reports whether a rollback of depth is allowed right
// now: silently within the ceiling, or beyond it only once the current
// tip is older than TimeoutSinceTip_s (spec §4.3). Before any tip has
// been applied there is no tip age, so only rollbacks within the ceiling
// are allowed.
func (c *Controller) CanAutoRollback(depth uint32) bool {
	if depth <= c.MaxAutoRollback() {
		return true
	}
	if c.lastTipTime.IsZero() {
		return false
	}
	return time.Since(c.lastTipTime) > c.cfg.TimeoutSinceTip
}

// SyncProgress returns a weighted (done, total) metric combining headers
// (weight 1) and bodies (weight 8), normalized relative to the sync's
// starting baseline (spec §4.3 "Sync progress"), queried from the
// controller's own goroutine via the same channel-of-channel pattern as
// GetState so a caller on any other goroutine never touches
// headersDone/bodiesDone directly.
func (c *Controller) SyncProgress() (done, total uint64) {
	responseCh := make(chan syncProgress)
	c.queryProgress <- responseCh
	p := <-responseCh
	return p.done, p.total
}

func (c *Controller) computeSyncProgress() syncProgress {
	done := uint64(c.headersDone) + 8*uint64(c.bodiesDone)
	total := uint64(toRelative(c.headersTotal, c.baselineHeight)) + 8*uint64(toRelative(c.bodiesTotal, c.baselineHeight))
	return syncProgress{done: done, total: total}
}

func toRelative(height, baseline uint32) uint32 {
	if height < baseline {
		return 0
	}
	return height - baseline
}

// RecordHeaderProgress/RecordBodyProgress let the sync scheduler report
// completed work into the weighted progress metric, routed through the
// events channel like every other mutator so headersDone/bodiesDone stay
// single-writer even when called from the verifier's result-draining
// goroutine rather than Run's own.
func (c *Controller) RecordHeaderProgress(done uint32) {
	c.events <- event{kind: eventHeaderProgress, progress: done}
}

func (c *Controller) RecordBodyProgress(done uint32) {
	c.events <- event{kind: eventBodyProgress, progress: done}
}
