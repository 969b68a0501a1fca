package wanted

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWantAndForget(t *testing.T) {
	s := New[string](time.Minute)
	defer s.Close()

	require.False(t, s.Has("a"))

	s.Want("a")
	require.True(t, s.Has("a"))

	s.Forget("a")
	require.False(t, s.Has("a"))
}

func TestMarkAskedTracksPerPeer(t *testing.T) {
	s := New[string](time.Minute)
	defer s.Close()

	s.Want("block-1")
	require.False(t, s.WasAsked("block-1", "peer-a"))

	s.MarkAsked("block-1", "peer-a")
	require.True(t, s.WasAsked("block-1", "peer-a"))
	require.False(t, s.WasAsked("block-1", "peer-b"))
}

func TestEntryExpires(t *testing.T) {
	s := New[string](20 * time.Millisecond)
	defer s.Close()

	s.Want("x")
	require.True(t, s.Has("x"))

	time.Sleep(100 * time.Millisecond)
	require.False(t, s.Has("x"))
}
