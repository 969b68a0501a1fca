package chain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	applied []chainmodel.SystemState
}

func (f *fakeProcessor) ValidateHeaders(ctx context.Context, headers []chainmodel.BlockID) error { return nil }
func (f *fakeProcessor) ValidateBody(ctx context.Context, id chainmodel.BlockID, body []byte) error {
	return nil
}
func (f *fakeProcessor) ApplyNewTip(ctx context.Context, tip chainmodel.SystemState) error {
	f.applied = append(f.applied, tip)
	return nil
}
func (f *fakeProcessor) Rollback(ctx context.Context, toHeight uint32) error { return nil }
func (f *fakeProcessor) ProofState(ctx context.Context, id chainmodel.BlockID) ([]byte, error) {
	return nil, nil
}
func (f *fakeProcessor) ProofKernel(ctx context.Context, kernelID chainmodel.Hash) ([]byte, error) {
	return nil, nil
}
func (f *fakeProcessor) ProofUtxo(ctx context.Context, commitment chainmodel.Hash) ([]byte, error) {
	return nil, nil
}
func (f *fakeProcessor) ProofChainWork(ctx context.Context, id chainmodel.BlockID) ([]byte, error) {
	return nil, nil
}
func (f *fakeProcessor) StateSummary(ctx context.Context) ([]byte, error) { return nil, nil }

type fakeDB struct{ flushed int }

func (f *fakeDB) Get(ctx context.Context, key []byte) ([]byte, error)      { return nil, nil }
func (f *fakeDB) Put(ctx context.Context, key, value []byte) error         { return nil }
func (f *fakeDB) Delete(ctx context.Context, key []byte) error             { return nil }
func (f *fakeDB) Flush(ctx context.Context) error                         { f.flushed++; return nil }

func startController(t *testing.T, proc *fakeProcessor, db *fakeDB, listeners Listeners) *Controller {
	t.Helper()
	c := New(proc, db, nil, listeners, Config{
		MaxAutoRollback:      100,
		RollbackRulesCeiling: 1000,
		TimeoutSinceTip:      time.Hour,
		FlushDebounce:        10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)
	return c
}

func TestProposeStateAppliesBetterTip(t *testing.T) {
	proc := &fakeProcessor{}
	c := startController(t, proc, &fakeDB{}, Listeners{})

	tip := &chainmodel.SystemState{BlockID: chainmodel.BlockID{Height: 10}, ChainWork: big.NewInt(100)}
	c.ProposeState(tip)

	require.Eventually(t, func() bool { return len(proc.applied) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, uint32(10), proc.applied[0].Height)
}

func TestProposeStateIgnoresWeakerTip(t *testing.T) {
	proc := &fakeProcessor{}
	c := startController(t, proc, &fakeDB{}, Listeners{})

	strong := &chainmodel.SystemState{BlockID: chainmodel.BlockID{Height: 10}, ChainWork: big.NewInt(100)}
	weak := &chainmodel.SystemState{BlockID: chainmodel.BlockID{Height: 5}, ChainWork: big.NewInt(1)}

	c.ProposeState(strong)
	require.Eventually(t, func() bool { return len(proc.applied) == 1 }, time.Second, 5*time.Millisecond)

	c.ProposeState(weak)
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, strong, c.GetState())
}

func TestOnModifiedDebouncesFlush(t *testing.T) {
	db := &fakeDB{}
	c := startController(t, &fakeProcessor{}, db, Listeners{})

	for i := 0; i < 5; i++ {
		c.OnModified()
	}

	require.Eventually(t, func() bool { return db.flushed >= 1 }, time.Second, 5*time.Millisecond)
	require.LessOrEqual(t, db.flushed, 2)
}

func TestOnPeerInsaneCallsDisconnectListener(t *testing.T) {
	disconnected := make(chan peermgr.NodeID, 1)
	c := startController(t, &fakeProcessor{}, &fakeDB{}, Listeners{
		DisconnectPeer: func(nodeID peermgr.NodeID) { disconnected <- nodeID },
	})

	c.OnPeerInsane("bad-peer")

	select {
	case got := <-disconnected:
		require.Equal(t, peermgr.NodeID("bad-peer"), got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect callback")
	}
}

func TestRecordProgressFeedsSyncProgress(t *testing.T) {
	c := startController(t, &fakeProcessor{}, &fakeDB{}, Listeners{})

	tip := &chainmodel.SystemState{BlockID: chainmodel.BlockID{Height: 100}, ChainWork: big.NewInt(1)}
	c.ProposeState(tip)
	require.Eventually(t, func() bool {
		_, total := c.SyncProgress()
		return total > 0
	}, time.Second, 5*time.Millisecond)

	c.RecordHeaderProgress(40)
	c.RecordBodyProgress(10)

	require.Eventually(t, func() bool {
		done, _ := c.SyncProgress()
		return done == 40+8*10
	}, time.Second, 5*time.Millisecond)
}

func TestCanAutoRollbackWithinCeiling(t *testing.T) {
	c := startController(t, &fakeProcessor{}, &fakeDB{}, Listeners{})
	require.True(t, c.CanAutoRollback(50))
	require.False(t, c.CanAutoRollback(500))
}
