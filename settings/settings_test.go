package settings

import (
	"testing"

	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsDefaults(t *testing.T) {
	c := gocore.Config()

	s := NewSettings(c)

	require.Equal(t, 18, s.Sync.MaxConcurrentBlocksRequest)
	require.Equal(t, 100000, s.Mempool.MaxPoolTransactions)
	require.Equal(t, 100000, s.Mempool.MaxDeferredTransactions)
	require.Equal(t, 5, s.Dandelion.DhStemConfirm)
	require.Equal(t, 5, s.Dandelion.OutputsMin)
	require.Equal(t, 40, s.Dandelion.OutputsMax)
	require.Equal(t, int64(1*1024*1024), s.Bandwidth.ChokingBytes)
	require.Equal(t, int64(20*1024*1024), s.Bandwidth.DrownBytes)
	require.Equal(t, 30, s.Recovery.Granularity)
}
