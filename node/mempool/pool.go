// Package mempool implements the three coupled transaction pools and the
// Dandelion++ stem/fluff acceptance pipeline (spec §4.4): fluffPool holds
// transactions ready for gossip, stemPool holds transactions under embargo
// awaiting aggregation, and dependentPool threads transactions that chain
// off an earlier context hash. A deferredList gates acceptance until
// fast-sync completes.
//
// Grounded on original_source/node/txpool.h's Fluff/Stem two-tier design
// (fee-density "Profit" ordering, per-element embargo Time and
// confirm-height Confirm deadline) and on util/txmap.go's swiss-map keyed
// set idiom, generalized from inv-vectors to kernel hashes.
package mempool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/errors"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/node/wire"
	"github.com/BigRomanov/beam-1/settings"
	"github.com/BigRomanov/beam-1/ulogger"
	"github.com/dolthub/swiss"
	"github.com/greatroar/blobloom"
)

// ReturnCode is the acceptance pipeline's verdict for a submitted
// transaction (spec §4.4 "Return codes").
type ReturnCode int

const (
	Ok ReturnCode = iota
	Invalid
	LowFee
	TooBig
	Obscured
	InsufficientFeeReserve
	DependentNotFound
	Duplicate
	MempoolFull
)

func (rc ReturnCode) String() string {
	switch rc {
	case Ok:
		return "Ok"
	case Invalid:
		return "Invalid"
	case LowFee:
		return "LowFee"
	case TooBig:
		return "TooBig"
	case Obscured:
		return "Obscured"
	case InsufficientFeeReserve:
		return "InsufficientFeeReserve"
	case DependentNotFound:
		return "DependentNotFound"
	case Duplicate:
		return "Duplicate"
	case MempoolFull:
		return "MempoolFull"
	default:
		return "Unknown"
	}
}

// Retained reports whether the pipeline keeps the transaction around for
// this return code (spec §4.4: "Only Ok, Duplicate, and DependentNotFound
// retain the transaction") — callers use this to decide whether a
// rejection should also drop any reservation they made for the tx.
func (rc ReturnCode) Retained() bool {
	return rc == Ok || rc == Duplicate || rc == DependentNotFound
}

// Err maps a non-Ok return code to the errors sentinel a caller can wrap
// or compare against, e.g. when reporting a rejection back over RPC.
func (rc ReturnCode) Err() error {
	switch rc {
	case Ok:
		return nil
	case Invalid:
		return errors.ErrTxInvalid
	case LowFee:
		return errors.ErrTxLowFee
	case TooBig:
		return errors.ErrTxTooBig
	case Obscured:
		return errors.ErrTxObscured
	case InsufficientFeeReserve:
		return errors.ErrTxInsufficientFee
	case DependentNotFound:
		return errors.ErrTxDependentMissing
	case Duplicate:
		return errors.ErrTxDuplicate
	case MempoolFull:
		return errors.ErrMempoolFull
	default:
		return errors.ErrUnknown
	}
}

// maxTxSize bounds a single transaction's size as reported by the
// validator; the pipeline checks it after validation.
const maxTxSize = 1 << 20

// Broadcaster is the peer-fanout side effect the pool needs: advertising a
// fluffed transaction, or forwarding a dependent-context link, to every
// peer that wants it except the one that sent it here.
type Broadcaster interface {
	BroadcastExcept(msg wire.Message, except peermgr.NodeID)
}

// Pool composes the fluff, stem, and dependent pools and the deferred
// list behind a single acceptance entrypoint (spec §4.4).
type Pool struct {
	mu sync.Mutex

	validator   chainmodel.TxValidator
	broadcaster Broadcaster
	log         ulogger.Logger

	cfg       settings.MempoolSettings
	dandelion settings.DandelionSettings

	fluff     *fluffPool
	stem      *stemPool
	dependent *dependentPool
	deferred  *deferredList

	seenFilter *blobloom.Filter
	seenExact  *swiss.Map[chainmodel.Hash, struct{}]

	fastSyncDone  bool
	currentHeight uint32

	rng *rand.Rand
}

func New(validator chainmodel.TxValidator, broadcaster Broadcaster, log ulogger.Logger, cfg settings.MempoolSettings, dandelion settings.DandelionSettings) *Pool {
	initMetrics()

	p := &Pool{
		validator:   validator,
		broadcaster: broadcaster,
		log:         log,
		cfg:         cfg,
		dandelion:   dandelion,
		fluff:       newFluffPool(cfg.MaxPoolTransactions),
		stem:        newStemPool(),
		dependent:   newDependentPool(),
		deferred:    newDeferredList(cfg.MaxDeferredTransactions),
		seenFilter:  blobloom.NewOptimized(blobloom.Config{Capacity: uint64(cfg.MaxPoolTransactions), FPRate: 0.01}),
		seenExact:   swiss.NewMap[chainmodel.Hash, struct{}](1024),
		rng:         rand.New(rand.NewSource(1)),
	}
	return p
}

// Run drives the aggregation ticker and stem embargo sweep until ctx is
// canceled (spec §4.4 "Aggregation").
func (p *Pool) Run(ctx context.Context) {
	aggTicker := time.NewTicker(p.dandelion.AggregationTimeMs)
	defer aggTicker.Stop()

	sweepTicker := time.NewTicker(time.Second)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-aggTicker.C:
			p.runAggregation(ctx)
		case <-sweepTicker.C:
			p.sweepExpiredStem(ctx)
		}
	}
}

// OnNewHeight lets the chain controller push the current tip height so the
// stem pool can evaluate confirm-height deadlines and dummy-output spend
// heights (spec §4.4 "stem-confirm height deadline").
func (p *Pool) OnNewHeight(height uint32) {
	p.mu.Lock()
	p.currentHeight = height
	p.mu.Unlock()
}

// OnFastSyncSucceeded drains the deferred list into the normal pipeline
// (spec §4.4 "Deferred acceptance").
func (p *Pool) OnFastSyncSucceeded(ctx context.Context) {
	p.mu.Lock()
	p.fastSyncDone = true
	items := p.deferred.drain()
	p.mu.Unlock()

	for _, item := range items {
		p.OnTransaction(ctx, item.id, item.payload, item.ctxHash, item.fromPeer, item.fluff)
	}
}

// OnTransaction runs the full acceptance pipeline (spec §4.4): validate,
// then dependent/fluff/stem dispatch.
func (p *Pool) OnTransaction(ctx context.Context, id chainmodel.Hash, payload []byte, ctxHash *chainmodel.Hash, fromPeer peermgr.NodeID, fluffRequested bool) ReturnCode {
	rc := p.onTransaction(ctx, id, payload, ctxHash, fromPeer, fluffRequested)
	txAccepted.WithLabelValues(rc.String()).Inc()
	fluffPoolSize.Set(float64(p.FluffCount()))
	stemPoolSize.Set(float64(p.StemCount()))
	deferredListLen.Set(float64(p.DeferredCount()))
	return rc
}

func (p *Pool) onTransaction(ctx context.Context, id chainmodel.Hash, payload []byte, ctxHash *chainmodel.Hash, fromPeer peermgr.NodeID, fluffRequested bool) ReturnCode {
	p.mu.Lock()
	if !p.fastSyncDone {
		full := !p.deferred.add(deferredTx{id: id, payload: payload, ctxHash: ctxHash, fromPeer: fromPeer, fluff: fluffRequested})
		p.mu.Unlock()
		if full {
			return MempoolFull
		}
		return Ok
	}

	if p.hasSeen(id) {
		p.mu.Unlock()
		return Duplicate
	}
	p.mu.Unlock()

	info, err := p.validator.ValidateTransaction(ctx, payload)
	if err != nil {
		return Invalid
	}
	if info.SizeBytes > maxTxSize {
		return TooBig
	}
	if info.Obscured {
		return Obscured
	}
	if info.FeeSatoshi < p.cfg.MinFee {
		return LowFee
	}
	if info.ShieldedOutputs > 0 && info.FeeReserve < requiredFeeReserve(info) {
		return InsufficientFeeReserve
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.markSeen(id)

	switch {
	case ctxHash != nil:
		return p.onDependentLocked(id, payload, *ctxHash, info)
	case fluffRequested || p.rollFluff():
		return p.onFluffLocked(id, payload, info, fromPeer)
	default:
		return p.onStemLocked(id, payload, info)
	}
}

// requiredFeeReserve is the minimum fee reserve a transaction carrying
// shielded outputs must set aside, scaled by how many it creates
// (original_source/node/txpool.h's Stem::Element::m_FeeReserve).
func requiredFeeReserve(info chainmodel.TxInfo) int64 {
	return int64(info.ShieldedOutputs) * 10
}

func (p *Pool) rollFluff() bool {
	return p.rng.Intn(1<<16) < p.dandelion.FluffProbability
}

func (p *Pool) hasSeen(id chainmodel.Hash) bool {
	if !p.seenFilter.Has(hashKey(id)) {
		return false
	}
	_, ok := p.seenExact.Get(id)
	return ok
}

func (p *Pool) markSeen(id chainmodel.Hash) {
	p.seenFilter.Add(hashKey(id))
	p.seenExact.Put(id, struct{}{})
}

func hashKey(id chainmodel.Hash) uint64 {
	var h uint64 = 14695981039346656037
	for _, b := range id {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}

// onFluffLocked inserts directly into the fluff pool and advertises it to
// peers, excluding the sender (spec §4.4 "Fluff phase").
func (p *Pool) onFluffLocked(id chainmodel.Hash, payload []byte, info chainmodel.TxInfo, fromPeer peermgr.NodeID) ReturnCode {
	if !p.fluff.insert(id, payload, info) {
		return MempoolFull
	}
	p.seedDependentRootLocked(id)
	if p.broadcaster != nil {
		p.broadcaster.BroadcastExcept(&wire.HaveTransaction{ID: id}, fromPeer)
	}
	if p.log != nil {
		p.log.Debugf("mempool: fluffed %s", id)
	}
	return Ok
}

// onStemLocked inserts into the stem pool behind an embargo timer and a
// confirm-height deadline (spec §4.4 "Stem phase").
func (p *Pool) onStemLocked(id chainmodel.Hash, payload []byte, info chainmodel.TxInfo) ReturnCode {
	embargoMs := p.dandelion.TimeoutMinMs
	span := p.dandelion.TimeoutMaxMs - p.dandelion.TimeoutMinMs
	if span > 0 {
		embargoMs += time.Duration(p.rng.Int63n(int64(span)))
	}

	p.stem.insert(&stemEntry{
		id:              id,
		payload:         payload,
		info:            info,
		confirmDeadline: p.currentHeight + uint32(p.dandelion.DhStemConfirm),
	}, embargoMs, p.fluffExpiredStem)

	p.seedDependentRootLocked(id)

	if p.log != nil {
		p.log.Debugf("mempool: stemmed %s, embargo %s", id, embargoMs)
	}
	return Ok
}

// seedDependentRootLocked registers a freshly accepted transaction's own
// id as a valid anchor for future dependents (spec §4.4 "the dependent
// pool preserves a linear chain [ctx0 -> ctx1 -> ...]" — every accepted
// transaction can start or extend a chain, not just ones that arrived
// with an explicit parent context), cascading into any orphans that were
// already waiting on it.
func (p *Pool) seedDependentRootLocked(id chainmodel.Hash) {
	for _, orphan := range p.dependent.addRoot(id) {
		p.promoteDependentLocked(orphan.id, id)
	}
}

// promoteDependentLocked links id into the chain rooted at parentCtx,
// broadcasts the link, and cascades into any orphans that were waiting on
// id itself becoming a valid parent (spec §4.4 "a later link for the same
// parent can still find them").
func (p *Pool) promoteDependentLocked(id chainmodel.Hash, parentCtx chainmodel.Hash) {
	pending := p.dependent.addRoot(id)

	if p.broadcaster != nil {
		p.broadcaster.BroadcastExcept(&wire.SetDependentContext{ID: id, ParentCtx: parentCtx}, "")
	}

	for _, orphan := range pending {
		p.promoteDependentLocked(orphan.id, id)
	}
}

// fluffExpiredStem is the stem pool's embargo callback: once the timer or
// confirm deadline fires, the transaction graduates straight to fluff
// (spec §4.4 "If the timer or deadline fires, the transaction is
// fluffed").
func (p *Pool) fluffExpiredStem(e *stemEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFluffLocked(e.id, e.payload, e.info, "")
}

func (p *Pool) sweepExpiredStem(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	p.mu.Lock()
	height := p.currentHeight
	p.mu.Unlock()

	p.stem.expireByHeight(height)
}

// onDependentLocked threads a transaction into the rolling dependent
// context chain and forwards the link to subscribed peers (spec §4.4
// "Dependent chain"). If the parent context is unknown, the transaction
// is retained without propagation.
func (p *Pool) onDependentLocked(id chainmodel.Hash, payload []byte, parentCtx chainmodel.Hash, info chainmodel.TxInfo) ReturnCode {
	if !p.dependent.hasRoot(parentCtx) {
		p.dependent.addOrphan(id, payload, parentCtx)
		return DependentNotFound
	}

	p.promoteDependentLocked(id, parentCtx)
	return Ok
}

// runAggregation groups ready stem entries into aggregate transactions and
// graduates each resulting batch to fluff (spec §4.4 "Aggregation").
func (p *Pool) runAggregation(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.mu.Lock()
	batch := p.stem.takeAggregationBatch(p.dandelion.OutputsMax)
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	combined := 0
	for _, e := range batch {
		combined += e.info.NumInputs + e.info.NumOutputs
	}

	dummyCount := 0
	if combined < p.dandelion.OutputsMin {
		dummyCount = p.dandelion.OutputsMin - combined
	}

	payloads := make([][]byte, len(batch))
	for i, e := range batch {
		payloads[i] = e.payload
	}

	id, payload, info, err := p.validator.AggregateTransactions(ctx, payloads, dummyCount)
	if err != nil {
		if p.log != nil {
			p.log.Warnf("mempool: aggregation failed, fluffing individually: %v", err)
		}
		p.mu.Lock()
		for _, e := range batch {
			p.onFluffLocked(e.id, e.payload, e.info, "")
		}
		p.mu.Unlock()
		return
	}

	if dummyCount > 0 {
		p.recordDummyOutputs(dummyCount)
	}

	p.mu.Lock()
	p.markSeen(id)
	p.onFluffLocked(id, payload, info, "")
	p.mu.Unlock()
}

func (p *Pool) recordDummyOutputs(n int) {
	for i := 0; i < n; i++ {
		spendHeight := p.currentHeight + uint32(p.dandelion.DummyLifetimeLo)
		span := p.dandelion.DummyLifetimeHi - p.dandelion.DummyLifetimeLo
		if span > 0 {
			spendHeight += uint32(p.rng.Intn(span))
		}
		var id chainmodel.Hash
		p.rng.Read(id[:])
		p.stem.dummyOutputs = append(p.stem.dummyOutputs, dummyOutput{id: id, spendHeight: spendHeight})
	}
}

// FluffCount, StemCount, DeferredCount report pool sizes for metrics.
func (p *Pool) FluffCount() int {
	return p.fluff.count()
}

func (p *Pool) StemCount() int {
	return p.stem.count()
}

func (p *Pool) DeferredCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deferred.items)
}
