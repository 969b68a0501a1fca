package sync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/node/wire"
	"github.com/BigRomanov/beam-1/ulogger"
	"github.com/dolthub/swiss"
)

// PeerHandle is the narrow view of a connection the scheduler needs:
// enough to pick a peer and track its outstanding work, without sync
// importing node/peer (node/peer already imports sync for TaskKey).
type PeerHandle interface {
	ID() peermgr.NodeID
	Tip() uint32
	TaskCount() int
	RejectedHas(TaskKey) bool
	AssignTask(TaskKey)
	ReleaseTask(TaskKey)
	Send(msg wire.Message, essential bool) error
}

// taskState is a task's scheduling bookkeeping: who owns it (if anyone)
// and when it was assigned, for the per-peer response-timeout check.
type taskState struct {
	key        TaskKey
	owner      peermgr.NodeID
	assignedAt time.Time
}

// Scheduler assigns header-pack and body-fetch tasks to peers under a
// global dedup set and a per-peer concurrency cap (spec §4.2). It is
// grounded on util/txmap.go's swiss-map keyed-set idiom for the global
// task index and on services/legacy/netsync's peer-scoped
// request-tracking shape, generalized from inv-vectors to TaskKey.
type Scheduler struct {
	mu sync.Mutex

	tasks      *swiss.Map[TaskKey, *taskState]
	unassigned []TaskKey

	peers     map[peermgr.NodeID]PeerHandle
	firstTask map[peermgr.NodeID]TaskKey

	maxConcurrentBodies  int
	maxConcurrentHeaders int
	timeout              time.Duration

	log          ulogger.Logger
	onPenalize   func(nodeID peermgr.NodeID, reason peermgr.BanReason)
	onDisconnect func(nodeID peermgr.NodeID)
}

func New(log ulogger.Logger, maxConcurrentBodies, maxConcurrentHeaders int, timeout time.Duration,
	onPenalize func(peermgr.NodeID, peermgr.BanReason), onDisconnect func(peermgr.NodeID)) *Scheduler {
	initMetrics()

	return &Scheduler{
		tasks:                swiss.NewMap[TaskKey, *taskState](1024),
		peers:                make(map[peermgr.NodeID]PeerHandle),
		firstTask:            make(map[peermgr.NodeID]TaskKey),
		maxConcurrentBodies:  maxConcurrentBodies,
		maxConcurrentHeaders: maxConcurrentHeaders,
		timeout:              timeout,
		log:                  log,
		onPenalize:           onPenalize,
		onDisconnect:         onDisconnect,
	}
}

// RequestData registers a demanded range as a deduplicated task (spec
// §4.2 step 1); a task already known is a no-op.
func (s *Scheduler) RequestData(id chainmodel.BlockID, isBody bool) {
	key := TaskKey{ID: id, IsBody: isBody}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks.Get(key); exists {
		return
	}

	s.tasks.Put(key, &taskState{key: key})
	s.unassigned = append(s.unassigned, key)
}

// AddPeer registers a connected peer as an assignment candidate.
func (s *Scheduler) AddPeer(p PeerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID()] = p
}

// RemovePeer returns every task owned by nodeID to unassigned (spec §4.1
// "Transitions out of Active free all owned tasks").
func (s *Scheduler) RemovePeer(nodeID peermgr.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.peers, nodeID)
	delete(s.firstTask, nodeID)

	s.tasks.Iter(func(key TaskKey, st *taskState) bool {
		if st.owner == nodeID {
			st.owner = ""
			s.unassigned = append(s.unassigned, key)
		}
		return false
	})
}

// AssignTasks iterates unassigned tasks and gives each to the best
// eligible peer: one whose announced tip covers the task, that hasn't
// already rejected it, and whose queue is under the concurrency cap for
// the task's kind (spec §4.2 step 2). Ties between equally eligible
// peers break on the lowest nodeID (Open Question (a) — chosen for
// reproducible scheduler behavior without needing a fixed RNG seed).
func (s *Scheduler) AssignTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := make([]TaskKey, 0, len(s.unassigned))

	for _, key := range s.unassigned {
		st, ok := s.tasks.Get(key)
		if !ok || st.owner != "" {
			continue
		}

		queueCap := s.maxConcurrentBodies
		if !key.IsBody {
			queueCap = s.maxConcurrentHeaders
		}

		best := s.pickPeerLocked(key, queueCap)
		if best == nil {
			remaining = append(remaining, key)
			continue
		}

		st.owner = best.ID()
		st.assignedAt = time.Now()
		best.AssignTask(key)

		if _, first := s.firstTask[best.ID()]; !first {
			s.firstTask[best.ID()] = key
		}

		if err := best.Send(requestFor(key), true); err != nil && s.log != nil {
			s.log.Warnf("sync: send request for %+v to %s failed: %v", key, best.ID(), err)
		}
	}

	s.unassigned = remaining
}

// headerPackCount is how many headers a single GetHdrPack asks for; the
// scheduler always requests a full pack rather than one header at a time
// (spec §6 "GetHdrPack").
const headerPackCount = 2000

// requestFor builds the outbound wire message for a freshly assigned
// task: GetBody for a body task, GetHdrPack starting at the task's
// BlockID for a header task.
func requestFor(key TaskKey) wire.Message {
	if key.IsBody {
		return &wire.GetBody{ID: key.ID}
	}
	return &wire.GetHdrPack{From: key.ID, Count: headerPackCount}
}

func (s *Scheduler) pickPeerLocked(key TaskKey, queueCap int) PeerHandle {
	var candidates []PeerHandle

	for _, p := range s.peers {
		if p.Tip() < key.ID.Height {
			continue
		}
		if p.RejectedHas(key) {
			continue
		}
		if p.TaskCount() >= queueCap {
			continue
		}
		candidates = append(candidates, p)
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID() < candidates[j].ID()
	})

	return candidates[0]
}

// OnAnswered records a task's response. If key isn't the peer's FirstTask,
// the peer violated the ordering guarantee and is disconnected (spec §4.2
// "Ordering guarantee"). A usable answer deletes the task globally; an
// unusable one returns it to unassigned.
func (s *Scheduler) OnAnswered(nodeID peermgr.NodeID, key TaskKey, usable bool) {
	s.mu.Lock()

	if first, ok := s.firstTask[nodeID]; ok && first != key {
		s.mu.Unlock()
		if s.onDisconnect != nil {
			s.onDisconnect(nodeID)
		}
		return
	}

	delete(s.firstTask, nodeID)

	st, ok := s.tasks.Get(key)
	if !ok {
		s.mu.Unlock()
		return
	}

	if p, ok := s.peers[nodeID]; ok {
		p.ReleaseTask(key)
	}

	if usable {
		s.tasks.Delete(key)
	} else {
		st.owner = ""
		s.unassigned = append(s.unassigned, key)
	}

	s.mu.Unlock()
}

// CheckTimeouts penalizes peers whose FirstTask has been outstanding
// longer than the configured timeout, returns that task to unassigned,
// and disconnects the peer if it had no other outstanding tasks (spec
// §4.2 step 3).
func (s *Scheduler) CheckTimeouts(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	now := time.Now()

	s.mu.Lock()
	var expired []peermgr.NodeID

	for nodeID, key := range s.firstTask {
		st, ok := s.tasks.Get(key)
		if !ok {
			continue
		}
		if now.Sub(st.assignedAt) > s.timeout {
			expired = append(expired, nodeID)
		}
	}

	for _, nodeID := range expired {
		key := s.firstTask[nodeID]
		delete(s.firstTask, nodeID)

		if st, ok := s.tasks.Get(key); ok {
			st.owner = ""
			s.unassigned = append(s.unassigned, key)
		}

		p := s.peers[nodeID]
		if p != nil {
			p.ReleaseTask(key)
		}
		s.mu.Unlock()

		if s.onPenalize != nil {
			s.onPenalize(nodeID, peermgr.ReasonTimeout)
		}

		if p != nil && p.TaskCount() == 0 {
			if s.onDisconnect != nil {
				s.onDisconnect(nodeID)
			}
		}

		s.mu.Lock()
	}

	s.mu.Unlock()
}

// PendingCount returns how many tasks are known to the scheduler, assigned
// or not.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.tasks.Count()
	pendingTasks.Set(float64(n))
	return n
}

// UnassignedCount returns how many tasks currently await assignment.
func (s *Scheduler) UnassignedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.unassigned)
	unassignedTasks.Set(float64(n))
	return n
}
