package chain

import (
	"context"
	"sync"
)

// Job is a pure validation function submitted by the reactor: header
// validation, body validation, or signature verification. A worker must
// not touch shared mutable state beyond Run's own closure over its input
// argument (spec §5 "Workers must not touch shared mutable state beyond
// their input argument").
type Job struct {
	Run  func() error
	Done func(error)
}

// Verifier is the fixed-size worker pool that runs CPU-heavy validation
// off the reactor goroutine. Results are posted back as closures on a
// single results channel the reactor drains on its own select loop,
// grounded on services/blockassembly/BlockAssembler.go's
// startChannelListeners "subscription channel + select" idiom and spec
// §9's "thread-hopping callbacks" design note: a single-consumer queue
// with a wake event per direction, every queued closure move-only and
// self-contained.
type Verifier struct {
	jobs    chan Job
	results chan func()
	workers int
	wg      sync.WaitGroup
}

// NewVerifier builds a pool of workers. workers<=0 is treated as 1: the
// caller (settings.MinerSettings.VerificationThreads, negative meaning
// "cores minus mining threads") resolves the actual count before this
// constructor is called.
func NewVerifier(workers int) *Verifier {
	if workers <= 0 {
		workers = 1
	}

	return &Verifier{
		jobs:    make(chan Job, 256),
		results: make(chan func(), 256),
		workers: workers,
	}
}

// Run starts the worker goroutines and blocks until ctx is canceled,
// then waits for every worker to return. Jobs still queued when ctx is
// canceled are not run.
func (v *Verifier) Run(ctx context.Context) {
	v.wg.Add(v.workers)
	for i := 0; i < v.workers; i++ {
		go v.worker(ctx)
	}

	<-ctx.Done()
	v.wg.Wait()
}

func (v *Verifier) worker(ctx context.Context) {
	defer v.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-v.jobs:
			if !ok {
				return
			}

			err := job.Run()
			done := job.Done

			select {
			case v.results <- func() { done(err) }:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Submit enqueues a validation job. done is invoked on the reactor
// goroutine, not the worker, once Results() delivers its wrapping
// closure (spec §5 "posted back over a channel the reactor selects on").
func (v *Verifier) Submit(run func() error, done func(error)) {
	v.jobs <- Job{Run: run, Done: done}
}

// Results is the channel the reactor selects on to dispatch completed
// jobs' Done callbacks on its own goroutine.
func (v *Verifier) Results() <-chan func() {
	return v.results
}
