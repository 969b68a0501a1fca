package sync

import (
	"context"
	"testing"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/node/wire"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	id        peermgr.NodeID
	tip       uint32
	tasks     map[TaskKey]struct{}
	rejected  map[TaskKey]struct{}
}

func newFakePeer(id peermgr.NodeID, tip uint32) *fakePeer {
	return &fakePeer{id: id, tip: tip, tasks: map[TaskKey]struct{}{}, rejected: map[TaskKey]struct{}{}}
}

func (p *fakePeer) ID() peermgr.NodeID { return p.id }
func (p *fakePeer) Tip() uint32        { return p.tip }
func (p *fakePeer) TaskCount() int     { return len(p.tasks) }
func (p *fakePeer) RejectedHas(k TaskKey) bool {
	_, ok := p.rejected[k]
	return ok
}
func (p *fakePeer) AssignTask(k TaskKey)  { p.tasks[k] = struct{}{} }
func (p *fakePeer) ReleaseTask(k TaskKey) { delete(p.tasks, k) }
func (p *fakePeer) Send(wire.Message, bool) error { return nil }

func TestAssignTasksPrefersLowestNodeIDOnTie(t *testing.T) {
	s := New(nil, 18, 18, time.Minute, nil, nil)

	peerB := newFakePeer("b", 100)
	peerA := newFakePeer("a", 100)
	s.AddPeer(peerB)
	s.AddPeer(peerA)

	id := chainmodel.BlockID{Height: 5, Hash: chainmodel.Hash{1}}
	s.RequestData(id, false)
	s.AssignTasks()

	require.Equal(t, 1, peerA.TaskCount())
	require.Equal(t, 0, peerB.TaskCount())
}

func TestAssignTasksSkipsPeerBelowTip(t *testing.T) {
	s := New(nil, 18, 18, time.Minute, nil, nil)

	low := newFakePeer("low", 3)
	high := newFakePeer("high", 100)
	s.AddPeer(low)
	s.AddPeer(high)

	id := chainmodel.BlockID{Height: 50, Hash: chainmodel.Hash{1}}
	s.RequestData(id, true)
	s.AssignTasks()

	require.Equal(t, 0, low.TaskCount())
	require.Equal(t, 1, high.TaskCount())
}

func TestOnAnsweredUsableDeletesTaskGlobally(t *testing.T) {
	s := New(nil, 18, 18, time.Minute, nil, nil)
	p := newFakePeer("a", 100)
	s.AddPeer(p)

	id := chainmodel.BlockID{Height: 5, Hash: chainmodel.Hash{1}}
	key := TaskKey{ID: id, IsBody: false}
	s.RequestData(id, false)
	s.AssignTasks()
	require.Equal(t, 1, s.PendingCount())

	s.OnAnswered("a", key, true)
	require.Equal(t, 0, s.PendingCount())
}

func TestOnAnsweredOutOfOrderDisconnects(t *testing.T) {
	var disconnected peermgr.NodeID
	s := New(nil, 18, 18, time.Minute, nil, func(id peermgr.NodeID) { disconnected = id })

	p := newFakePeer("a", 100)
	s.AddPeer(p)

	id1 := chainmodel.BlockID{Height: 1, Hash: chainmodel.Hash{1}}
	id2 := chainmodel.BlockID{Height: 2, Hash: chainmodel.Hash{2}}
	s.RequestData(id1, false)
	s.RequestData(id2, false)
	s.AssignTasks()

	s.OnAnswered("a", TaskKey{ID: id2, IsBody: false}, true)
	require.Equal(t, peermgr.NodeID("a"), disconnected)
}

func TestRemovePeerReturnsTasksToUnassigned(t *testing.T) {
	s := New(nil, 18, 18, time.Minute, nil, nil)
	p := newFakePeer("a", 100)
	s.AddPeer(p)

	id := chainmodel.BlockID{Height: 5, Hash: chainmodel.Hash{1}}
	s.RequestData(id, false)
	s.AssignTasks()
	require.Equal(t, 0, s.UnassignedCount())

	s.RemovePeer("a")
	require.Equal(t, 1, s.UnassignedCount())
}

func TestCheckTimeoutsReturnsStaleTaskAndDisconnectsIdlePeer(t *testing.T) {
	var penalized peermgr.NodeID
	var disconnected peermgr.NodeID
	s := New(nil, 18, 18, time.Millisecond, func(id peermgr.NodeID, _ peermgr.BanReason) { penalized = id }, func(id peermgr.NodeID) { disconnected = id })

	p := newFakePeer("a", 100)
	s.AddPeer(p)

	id := chainmodel.BlockID{Height: 5, Hash: chainmodel.Hash{1}}
	s.RequestData(id, false)
	s.AssignTasks()

	time.Sleep(5 * time.Millisecond)
	s.CheckTimeouts(context.Background())

	require.Equal(t, peermgr.NodeID("a"), penalized)
	require.Equal(t, peermgr.NodeID("a"), disconnected)
	require.Equal(t, 1, s.UnassignedCount())
}
