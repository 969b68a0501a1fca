package chainmodel

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBeatsChainWork(t *testing.T) {
	a := &SystemState{ChainWork: big.NewInt(100)}
	b := &SystemState{ChainWork: big.NewInt(200)}

	require.True(t, b.BeatsChainWork(a))
	require.False(t, a.BeatsChainWork(b))
	require.True(t, a.BeatsChainWork(nil))
}

func TestBlockIDEqual(t *testing.T) {
	h := Hash{1, 2, 3}
	a := BlockID{Height: 10, Hash: h}
	b := BlockID{Height: 10, Hash: h}
	c := BlockID{Height: 11, Hash: h}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
