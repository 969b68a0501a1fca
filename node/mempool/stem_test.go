package mempool

import (
	"testing"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/stretchr/testify/require"
)

func TestTakeAggregationBatchBoundsByCombinedCount(t *testing.T) {
	p := newStemPool()

	p.insert(&stemEntry{id: txID(1), info: chainmodel.TxInfo{NumInputs: 5, NumOutputs: 5}}, time.Hour, nil)
	p.insert(&stemEntry{id: txID(2), info: chainmodel.TxInfo{NumInputs: 5, NumOutputs: 5}}, time.Hour, nil)
	p.insert(&stemEntry{id: txID(3), info: chainmodel.TxInfo{NumInputs: 5, NumOutputs: 5}}, time.Hour, nil)

	batch := p.takeAggregationBatch(20)

	var combined int
	for _, e := range batch {
		combined += e.info.NumInputs + e.info.NumOutputs
	}
	require.LessOrEqual(t, combined, 20, "a handful of small transactions must not exceed the combined-count ceiling")
	require.Equal(t, 2, len(batch), "only two 10-count entries fit under a ceiling of 20")
	require.Equal(t, 1, p.count(), "the entry that would overflow the ceiling stays pending for a later round")
}

func TestTakeAggregationBatchSkipsAlreadyAggregating(t *testing.T) {
	p := newStemPool()
	p.insert(&stemEntry{id: txID(1), info: chainmodel.TxInfo{NumInputs: 1, NumOutputs: 1}, aggregating: true}, time.Hour, nil)
	p.insert(&stemEntry{id: txID(2), info: chainmodel.TxInfo{NumInputs: 1, NumOutputs: 1}}, time.Hour, nil)

	batch := p.takeAggregationBatch(40)

	require.Len(t, batch, 1)
	require.Equal(t, txID(2), batch[0].id)
}
