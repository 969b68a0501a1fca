package miner

import (
	"context"
	"sync"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/jellydator/ttlcache/v3"
)

// jobRing keeps a bounded set of outstanding external-solver job
// descriptors keyed by jobID, so a solver that is slow to respond on an
// obsolete job is still accepted when the result arrives, rather than
// only ever trusting the single most recent job (spec §4.5 "External").
//
// The ttlcache handles wall-clock expiry for jobs a solver never answers
// (grounded on bbs.Store's ttlcache usage); the ring itself additionally
// bounds the oldest-job count at maxJobs, evicting the longest-outstanding
// entry first once full.
type jobRing struct {
	mu      sync.Mutex
	cache   *ttlcache.Cache[string, chainmodel.Template]
	order   []string
	maxJobs int
}

const jobTTL = 10 * time.Minute

func newJobRing(maxJobs int) *jobRing {
	c := ttlcache.New[string, chainmodel.Template]()
	r := &jobRing{cache: c, maxJobs: maxJobs}

	c.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, chainmodel.Template]) {
		r.forget(item.Key())
	})

	go c.Start()
	return r
}

func (r *jobRing) put(jobID string, tmpl chainmodel.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) >= r.maxJobs {
		oldest := r.order[0]
		r.order = r.order[1:]
		r.cache.Delete(oldest)
	}

	r.order = append(r.order, jobID)
	r.cache.Set(jobID, tmpl, jobTTL)
}

func (r *jobRing) forget(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range r.order {
		if id == jobID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *jobRing) get(jobID string) (chainmodel.Template, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.cache.Get(jobID)
	if item == nil {
		return chainmodel.Template{}, false
	}
	return item.Value(), true
}
