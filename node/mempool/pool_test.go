package mempool

import (
	"context"
	"testing"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/node/wire"
	"github.com/BigRomanov/beam-1/settings"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	info chainmodel.TxInfo
	err  error
}

func (f *fakeValidator) ValidateTransaction(ctx context.Context, payload []byte) (chainmodel.TxInfo, error) {
	return f.info, f.err
}

func (f *fakeValidator) AggregateTransactions(ctx context.Context, payloads [][]byte, dummyOutputCount int) (chainmodel.Hash, []byte, chainmodel.TxInfo, error) {
	var id chainmodel.Hash
	id[0] = 0xAA
	return id, []byte("aggregate"), chainmodel.TxInfo{FeeSatoshi: 100, SizeBytes: 10}, nil
}

type fakeBroadcaster struct {
	sent []wire.Message
}

func (f *fakeBroadcaster) BroadcastExcept(msg wire.Message, except peermgr.NodeID) {
	f.sent = append(f.sent, msg)
}

func defaultCfg() (settings.MempoolSettings, settings.DandelionSettings) {
	return settings.MempoolSettings{
			MaxPoolTransactions:     100,
			MaxDeferredTransactions: 10,
			MinFee:                  1,
		}, settings.DandelionSettings{
			FluffProbability:  0, // deterministic: never short-circuits to fluff in tests
			TimeoutMinMs:      time.Hour,
			TimeoutMaxMs:      time.Hour,
			DhStemConfirm:     5,
			AggregationTimeMs: time.Hour,
			OutputsMin:        5,
			OutputsMax:        40,
			DummyLifetimeLo:   720,
			DummyLifetimeHi:   10080,
		}
}

func txID(b byte) chainmodel.Hash {
	var id chainmodel.Hash
	id[0] = b
	return id
}

func TestOnTransactionStemsByDefault(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	b := &fakeBroadcaster{}
	p := New(v, b, nil, mempoolCfg, dandelionCfg)
	p.fastSyncDone = true

	rc := p.OnTransaction(context.Background(), txID(1), []byte("tx"), nil, "", false)
	require.Equal(t, Ok, rc)
	require.Equal(t, 1, p.StemCount())
	require.Equal(t, 0, p.FluffCount())
	require.Empty(t, b.sent)
}

func TestOnTransactionFluffRequestedBroadcasts(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	b := &fakeBroadcaster{}
	p := New(v, b, nil, mempoolCfg, dandelionCfg)
	p.fastSyncDone = true

	rc := p.OnTransaction(context.Background(), txID(2), []byte("tx"), nil, "sender", true)
	require.Equal(t, Ok, rc)
	require.Equal(t, 1, p.FluffCount())
	require.Len(t, b.sent, 1)
	require.Equal(t, wire.CmdHaveTransaction, b.sent[0].Command())
}

func TestOnTransactionRejectsLowFee(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	mempoolCfg.MinFee = 1000
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 1, SizeBytes: 100}}
	p := New(v, &fakeBroadcaster{}, nil, mempoolCfg, dandelionCfg)
	p.fastSyncDone = true

	rc := p.OnTransaction(context.Background(), txID(3), []byte("tx"), nil, "", true)
	require.Equal(t, LowFee, rc)
	require.Equal(t, 0, p.FluffCount())
}

func TestOnTransactionDuplicateIsRetainedWithoutRevalidation(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	p := New(v, &fakeBroadcaster{}, nil, mempoolCfg, dandelionCfg)
	p.fastSyncDone = true

	id := txID(4)
	require.Equal(t, Ok, p.OnTransaction(context.Background(), id, []byte("tx"), nil, "", true))
	require.Equal(t, Duplicate, p.OnTransaction(context.Background(), id, []byte("tx"), nil, "", true))
}

func TestOnTransactionDependentWithUnknownParentIsNotFound(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	p := New(v, &fakeBroadcaster{}, nil, mempoolCfg, dandelionCfg)
	p.fastSyncDone = true

	parent := txID(9)
	rc := p.OnTransaction(context.Background(), txID(5), []byte("tx"), &parent, "", true)
	require.Equal(t, DependentNotFound, rc)
}

func TestOnTransactionDependentLinksToAcceptedParent(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	b := &fakeBroadcaster{}
	p := New(v, b, nil, mempoolCfg, dandelionCfg)
	p.fastSyncDone = true

	parent := txID(1)
	require.Equal(t, Ok, p.OnTransaction(context.Background(), parent, []byte("tx"), nil, "", true))

	child := txID(2)
	rc := p.OnTransaction(context.Background(), child, []byte("tx"), &parent, "", true)
	require.Equal(t, Ok, rc)

	var links int
	for _, msg := range b.sent {
		if link, ok := msg.(*wire.SetDependentContext); ok {
			require.Equal(t, child, link.ID)
			require.Equal(t, parent, link.ParentCtx)
			links++
		}
	}
	require.Equal(t, 1, links)
}

func TestOnTransactionDependentOrphanIsPromotedWhenParentArrives(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	b := &fakeBroadcaster{}
	p := New(v, b, nil, mempoolCfg, dandelionCfg)
	p.fastSyncDone = true

	parent := txID(3)
	child := txID(4)

	rc := p.OnTransaction(context.Background(), child, []byte("tx"), &parent, "", true)
	require.Equal(t, DependentNotFound, rc)

	rc = p.OnTransaction(context.Background(), parent, []byte("tx"), nil, "", true)
	require.Equal(t, Ok, rc)

	var links int
	for _, msg := range b.sent {
		if link, ok := msg.(*wire.SetDependentContext); ok {
			require.Equal(t, child, link.ID)
			require.Equal(t, parent, link.ParentCtx)
			links++
		}
	}
	require.Equal(t, 1, links, "the orphaned child must be promoted once its parent is accepted")
}

func TestOnTransactionBeforeFastSyncIsDeferred(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	p := New(v, &fakeBroadcaster{}, nil, mempoolCfg, dandelionCfg)

	rc := p.OnTransaction(context.Background(), txID(6), []byte("tx"), nil, "", false)
	require.Equal(t, Ok, rc)
	require.Equal(t, 1, p.DeferredCount())
	require.Equal(t, 0, p.StemCount())
}

func TestOnFastSyncSucceededDrainsDeferred(t *testing.T) {
	mempoolCfg, dandelionCfg := defaultCfg()
	v := &fakeValidator{info: chainmodel.TxInfo{FeeSatoshi: 10, SizeBytes: 100}}
	p := New(v, &fakeBroadcaster{}, nil, mempoolCfg, dandelionCfg)

	p.OnTransaction(context.Background(), txID(7), []byte("tx"), nil, "", true)
	require.Equal(t, 1, p.DeferredCount())

	p.OnFastSyncSucceeded(context.Background())
	require.Equal(t, 0, p.DeferredCount())
	require.Equal(t, 1, p.FluffCount())
}

func TestFluffPoolEvictsLowestFeeDensityWhenFull(t *testing.T) {
	pool := newFluffPool(1)
	ok := pool.insert(txID(1), make([]byte, 100), chainmodel.TxInfo{FeeSatoshi: 1, SizeBytes: 100})
	require.True(t, ok)

	ok = pool.insert(txID(2), make([]byte, 100), chainmodel.TxInfo{FeeSatoshi: 100, SizeBytes: 100})
	require.True(t, ok)
	require.Equal(t, 1, pool.count())

	_, stillHasLow := pool.get(txID(1))
	require.False(t, stillHasLow)
}

func TestReturnCodeRetainedAndErr(t *testing.T) {
	require.True(t, Ok.Retained())
	require.True(t, Duplicate.Retained())
	require.True(t, DependentNotFound.Retained())
	require.False(t, LowFee.Retained())

	require.Nil(t, Ok.Err())
	require.ErrorIs(t, LowFee.Err(), LowFee.Err())
}

func TestFluffPoolRejectsWorseThanCurrentWorst(t *testing.T) {
	pool := newFluffPool(1)
	pool.insert(txID(1), make([]byte, 100), chainmodel.TxInfo{FeeSatoshi: 100, SizeBytes: 100})

	ok := pool.insert(txID(2), make([]byte, 100), chainmodel.TxInfo{FeeSatoshi: 1, SizeBytes: 100})
	require.False(t, ok)
}
