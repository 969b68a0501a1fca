package miner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/settings"
	"github.com/stretchr/testify/require"
)

type fakeCollaborator struct {
	templates int32
	submitted chan chainmodel.Solution
}

func newFakeCollaborator() *fakeCollaborator {
	return &fakeCollaborator{submitted: make(chan chainmodel.Solution, 4)}
}

func (f *fakeCollaborator) BuildTemplate(ctx context.Context) (chainmodel.Template, error) {
	atomic.AddInt32(&f.templates, 1)
	return chainmodel.Template{Height: uint32(f.templates), Data: []byte("tmpl")}, nil
}

func (f *fakeCollaborator) Solve(ctx context.Context, tmpl chainmodel.Template, stop *atomic.Bool) (chainmodel.Solution, bool, error) {
	<-ctx.Done()
	return chainmodel.Solution{}, false, nil
}

func (f *fakeCollaborator) SubmitSolution(ctx context.Context, sol chainmodel.Solution) (bool, error) {
	f.submitted <- sol
	return true, nil
}

func settingsForTest() settings.MinerSettings {
	return settings.MinerSettings{
		MiningThreads:       2,
		MiningSoftRestartMs: time.Millisecond,
		FakePowSolveTimeMs:  5 * time.Millisecond,
	}
}

func TestFakeModeProducesBlockAtFixedCadence(t *testing.T) {
	coll := newFakeCollaborator()
	d := New(coll, nil, settingsForTest(), ModeInternal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.OnNewState(ctx)

	select {
	case sol := <-coll.submitted:
		require.Equal(t, []byte("tmpl"), sol.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fake-mode solution")
	}
}

func TestGenerateFakeBlocksEmitsNInline(t *testing.T) {
	coll := newFakeCollaborator()
	d := New(coll, nil, settingsForTest(), ModeInternal)

	require.NoError(t, d.GenerateFakeBlocks(context.Background(), 3))
	require.Equal(t, int32(3), coll.templates)
	require.Len(t, coll.submitted, 3)
}

func TestSoftRestartThrottlesWithinWindow(t *testing.T) {
	coll := newFakeCollaborator()
	cfg := settingsForTest()
	cfg.MiningSoftRestartMs = time.Hour
	d := New(coll, nil, cfg, ModeInternal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.OnNewState(ctx)
	d.OnNewState(ctx)
	d.OnNewState(ctx)

	require.Equal(t, int32(1), coll.templates)
}

func TestSubmitExternalResultDropsUnknownJobSilently(t *testing.T) {
	coll := newFakeCollaborator()
	d := New(coll, nil, settingsForTest(), ModeExternal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.SubmitExternalResult(ctx, "unknown-job", chainmodel.Solution{Nonce: 1})

	select {
	case <-coll.submitted:
		t.Fatal("unexpected submission for unknown job")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSetFinalizerSendsTemplateInsteadOfSolvingLocally(t *testing.T) {
	coll := newFakeCollaborator()
	d := New(coll, nil, settingsForTest(), ModeInternal)

	sent := make(chan chainmodel.Template, 1)
	d.SetFinalizer(&fakeFinalizer{id: "f1", sendFn: func(tmpl chainmodel.Template) error {
		sent <- tmpl
		return nil
	}})

	d.OnNewState(context.Background())

	select {
	case tmpl := <-sent:
		require.Equal(t, []byte("tmpl"), tmpl.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for finalizer handoff")
	}

	select {
	case <-coll.submitted:
		t.Fatal("should not have solved locally while a finalizer is set")
	case <-time.After(30 * time.Millisecond):
	}
}

type fakeFinalizer struct {
	id     peermgr.NodeID
	sendFn func(chainmodel.Template) error
}

func (f *fakeFinalizer) ID() peermgr.NodeID { return f.id }
func (f *fakeFinalizer) SendTemplate(tmpl chainmodel.Template) error {
	return f.sendFn(tmpl)
}
