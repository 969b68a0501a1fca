// Package miner implements the mining driver (spec §4.5): an internal
// worker-pool solver, a pluggable external-solver job ring, and finalizer
// handoff to a peer advertising MiningFinalization.
//
// Grounded on services/miner/miner.go's candidate-timer + cancel-context
// restart loop and services/miner/cpuminer/mine.go's ctx.Done()-cooperative
// nonce loop, generalized from a single HTTP-driven candidate poll to a
// soft-restart-debounced internal worker pool plus an external job ring.
package miner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/settings"
	"github.com/BigRomanov/beam-1/ulogger"
	"github.com/google/uuid"
)

// Finalizer is the connected peer a driver hands templates to instead of
// solving locally, once selected (spec §4.5 "Finalizer handoff").
type Finalizer interface {
	ID() peermgr.NodeID
	SendTemplate(tmpl chainmodel.Template) error
}

// Mode selects the driver's solving strategy; the two are mutually
// exclusive (spec §4.5).
type Mode int

const (
	ModeInternal Mode = iota
	ModeExternal
)

// Driver owns the current template, the soft-restart debounce, and
// (depending on Mode) either a worker pool or an external job ring.
type Driver struct {
	mu sync.Mutex

	collaborator chainmodel.MiningCollaborator
	log          ulogger.Logger
	cfg          settings.MinerSettings
	mode         Mode

	stop       *atomic.Bool
	lastRestart time.Time

	current   chainmodel.Template
	finalizer Finalizer

	jobs *jobRing

	fakeMode        bool
	fakeSolveTime   time.Duration

	solved chan chainmodel.Solution

	workersCancel context.CancelFunc
}

func New(collaborator chainmodel.MiningCollaborator, log ulogger.Logger, cfg settings.MinerSettings, mode Mode) *Driver {
	initMetrics()

	d := &Driver{
		collaborator: collaborator,
		log:          log,
		cfg:          cfg,
		mode:         mode,
		jobs:         newJobRing(64),
		solved:       make(chan chainmodel.Solution, 1),
	}
	if cfg.FakePowSolveTimeMs > 0 {
		d.fakeMode = true
		d.fakeSolveTime = cfg.FakePowSolveTimeMs
	}
	return d
}

// Run drives the restart/solution loop until ctx is canceled.
func (d *Driver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stopWorkers()
			return
		case sol := <-d.solved:
			d.submit(ctx, sol)
		}
	}
}

// OnNewState and OnMempoolChanged both trigger a soft restart with a new
// template (spec §4.5 "On new-state or mempool change").
func (d *Driver) OnNewState(ctx context.Context)      { d.restart(ctx) }
func (d *Driver) OnMempoolChanged(ctx context.Context) { d.restart(ctx) }

// restart rebuilds the template and cooperatively stops any in-flight
// solvers, throttled to at most once per MiningSoftRestart_ms (spec §4.5
// "soft restart").
func (d *Driver) restart(ctx context.Context) {
	d.mu.Lock()
	if time.Since(d.lastRestart) < d.cfg.MiningSoftRestartMs {
		d.mu.Unlock()
		return
	}
	d.lastRestart = time.Now()
	d.mu.Unlock()

	tmpl, err := d.collaborator.BuildTemplate(ctx)
	if err != nil {
		if d.log != nil {
			d.log.Warnf("miner: build template failed: %v", err)
		}
		return
	}

	d.mu.Lock()
	d.current = tmpl
	finalizer := d.finalizer
	d.mu.Unlock()

	d.stopWorkers()

	if finalizer != nil {
		if err := finalizer.SendTemplate(tmpl); err != nil && d.log != nil {
			d.log.Warnf("miner: send template to finalizer %s failed: %v", finalizer.ID(), err)
		}
		return
	}

	switch d.mode {
	case ModeInternal:
		d.startInternalWorkers(ctx, tmpl)
	case ModeExternal:
		d.jobs.put(uuid.New().String(), tmpl)
	}

	restartsTotal.Inc()
}

// stopWorkers flips the outgoing workers' stop flag (so they abort
// between nonce batches) and cancels their context, then detaches from
// them; a fresh flag is handed to whichever workers start next (spec §5
// "Soft mining restarts are cooperative (stop flag)").
func (d *Driver) stopWorkers() {
	d.mu.Lock()
	cancel := d.workersCancel
	d.workersCancel = nil
	stop := d.stop
	d.mu.Unlock()

	if stop != nil {
		stop.Store(true)
	}
	if cancel != nil {
		cancel()
	}
}

// startInternalWorkers launches MiningThreads cooperating solvers sharing
// a freshly minted stop flag, each publishing its solution on the
// driver's channel (spec §4.5 "Internal"; spec §5 "Miner threads").
func (d *Driver) startInternalWorkers(ctx context.Context, tmpl chainmodel.Template) {
	workCtx, cancel := context.WithCancel(ctx)
	stop := &atomic.Bool{}

	d.mu.Lock()
	d.workersCancel = cancel
	d.stop = stop
	d.mu.Unlock()

	threads := d.cfg.MiningThreads
	if threads <= 0 {
		threads = 1
	}

	for i := 0; i < threads; i++ {
		go d.runWorker(workCtx, tmpl, stop)
	}
}

// runWorker is a single internal mining worker: it owns the template
// privately once started and only reads the shared stop flag between
// nonce batches (spec §5 "mining threads read the template once").
func (d *Driver) runWorker(ctx context.Context, tmpl chainmodel.Template, stop *atomic.Bool) {
	var sol chainmodel.Solution
	var ok bool
	var err error

	if d.fakeMode {
		sol, ok, err = d.fakeSolve(ctx, tmpl)
	} else {
		sol, ok, err = d.collaborator.Solve(ctx, tmpl, stop)
	}

	if err != nil {
		if d.log != nil {
			d.log.Warnf("miner: solve failed: %v", err)
		}
		return
	}
	if !ok {
		return
	}

	select {
	case d.solved <- sol:
	case <-ctx.Done():
	}
}

// fakeSolve is the FakePowSolveTime_ms testing hook: it produces a block
// at a fixed cadence without doing real work (spec §4.5 "Testing hooks").
func (d *Driver) fakeSolve(ctx context.Context, tmpl chainmodel.Template) (chainmodel.Solution, bool, error) {
	select {
	case <-time.After(d.fakeSolveTime):
		return chainmodel.Solution{Nonce: uint64(tmpl.Height), Data: tmpl.Data}, true, nil
	case <-ctx.Done():
		return chainmodel.Solution{}, false, nil
	}
}

func (d *Driver) submit(ctx context.Context, sol chainmodel.Solution) {
	accepted, err := d.collaborator.SubmitSolution(ctx, sol)
	if err != nil {
		if d.log != nil {
			d.log.Errorf("miner: submit solution failed: %v", err)
		}
		return
	}
	if accepted {
		blocksMined.Inc()
	}
}

// GenerateFakeBlocks emits n blocks inline without waiting for the normal
// restart cadence (spec §4.5 "generateFakeBlocks(n)").
func (d *Driver) GenerateFakeBlocks(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		tmpl, err := d.collaborator.BuildTemplate(ctx)
		if err != nil {
			return err
		}
		sol, ok, err := d.fakeSolve(ctx, tmpl)
		if err != nil {
			return err
		}
		if ok {
			d.submit(ctx, sol)
		}
	}
	return nil
}

// CurrentTemplate returns the most recently built template.
func (d *Driver) CurrentTemplate() chainmodel.Template {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// SetFinalizer switches the driver into finalizer-handoff mode: the next
// restart sends its template to peer instead of solving locally (spec
// §4.5 "Finalizer handoff").
func (d *Driver) SetFinalizer(peer Finalizer) {
	d.mu.Lock()
	d.finalizer = peer
	d.mu.Unlock()
}

// ClearFinalizer falls back to local mode after a soft-restart, called
// when the finalizer peer disconnects (spec §4.5 "If the finalizer
// disconnects, the node falls back to its local mode after a
// soft-restart").
func (d *Driver) ClearFinalizer(ctx context.Context) {
	d.mu.Lock()
	d.finalizer = nil
	d.lastRestart = time.Time{}
	d.mu.Unlock()
	d.restart(ctx)
}

// OnFinalizedBlock accepts an assembled block returned by the finalizer
// peer, validating and proceeding as if it had been mined internally
// (spec §4.5 "the node accepts the assembled block from the peer").
func (d *Driver) OnFinalizedBlock(ctx context.Context, blockData []byte) {
	d.submit(ctx, chainmodel.Solution{Data: blockData})
}

// SubmitExternalResult accepts a solution for jobID from a pluggable
// external solver. A result for an unknown or evicted job is a stale
// response and is dropped silently (spec §4.5 "Rejected mining results
// (stale) are dropped silently").
func (d *Driver) SubmitExternalResult(ctx context.Context, jobID string, sol chainmodel.Solution) {
	if _, ok := d.jobs.get(jobID); !ok {
		staleResultsTotal.Inc()
		return
	}
	select {
	case d.solved <- sol:
	case <-ctx.Done():
	}
}
