package peer

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/sync"
	"github.com/BigRomanov/beam-1/node/wire"
	"github.com/stretchr/testify/require"
)

func TestFSMTransitionsToActive(t *testing.T) {
	activated := false
	m := newFSM(StateDialing, func() { activated = true }, nil)

	require.NoError(t, m.Event(context.Background(), EventSecureEstablished))
	require.Equal(t, StateHandshakingSecure, m.Current())

	require.NoError(t, m.Event(context.Background(), EventAuthenticated))
	require.Equal(t, StateActive, m.Current())
	require.True(t, activated)
}

func TestFSMCloseFromAnyState(t *testing.T) {
	closed := false
	m := newFSM(StateDialing, nil, func() { closed = true })

	require.NoError(t, m.Event(context.Background(), EventClose))
	require.Equal(t, StateClosed, m.Current())
	require.True(t, closed)
}

func TestRejectedMemoryAddHasClear(t *testing.T) {
	mem := newRejectedMemory()
	key := sync.TaskKey{ID: chainmodel.BlockID{Height: 10, Hash: chainmodel.Hash{1, 2, 3}}}

	require.False(t, mem.has(key))

	mem.add(key)
	require.True(t, mem.has(key))

	mem.clear()
	require.False(t, mem.has(key))
}

func TestRejectedMemoryDistinguishesBodyFromHeader(t *testing.T) {
	mem := newRejectedMemory()
	id := chainmodel.BlockID{Height: 5, Hash: chainmodel.Hash{9}}

	mem.add(sync.TaskKey{ID: id, IsBody: false})

	require.True(t, mem.has(sync.TaskKey{ID: id, IsBody: false}))
	require.False(t, mem.has(sync.TaskKey{ID: id, IsBody: true}))
}

func TestDERRoundTrip(t *testing.T) {
	r := make([]byte, 32)
	s := make([]byte, 32)
	r[31] = 0x42
	s[0] = 0x80 // high bit set, exercises the DER zero-padding branch
	s[31] = 0x01

	der := encodeDERRS(r, s)
	gotR, gotS := parseDERRS(der)

	require.Equal(t, r, gotR)
	require.Equal(t, s, gotS)
}

func TestIsChokingAtThreshold(t *testing.T) {
	p := &Peer{cfg: Config{ChokingBytes: 100}}

	p.pendingBytes = 99
	require.False(t, p.IsChoking())
	require.False(t, p.choked)

	p.pendingBytes = 100
	require.True(t, p.IsChoking())
	require.True(t, p.choked)
}

func TestSendDropsNonEssentialWhileChoked(t *testing.T) {
	p := &Peer{cfg: Config{ChokingBytes: 100, DrownBytes: 1 << 20}}
	p.choked = true

	require.NoError(t, p.Send(&wire.Ping{Nonce: 1}, false))
	require.Zero(t, p.pendingBytes, "non-essential send while choked must not touch the wire")
}

func TestSendStillWritesEssentialWhileChoked(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go io.Copy(io.Discard, client)

	p := &Peer{
		conn:      server,
		fsmachine: newFSM(StateDialing, nil, nil),
		cfg:       Config{ChokingBytes: 100, DrownBytes: 1 << 20},
	}
	p.choked = true

	require.NoError(t, p.Send(&wire.Ping{Nonce: 1}, true))
}

func TestWriteMessageDisconnectsAtDrownThreshold(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	p := &Peer{
		conn: server,
		cfg:  Config{ChokingBytes: 1 << 20, DrownBytes: 3},
	}
	p.fsmachine = newFSM(StateDialing, p.onActive, p.onClosed)

	err := p.writeMessage(&wire.Ping{Nonce: 1})
	require.Error(t, err, "frame size already reaches DrownBytes, so the peer must be dropped")
	require.True(t, p.closed)
}

func TestUpdateChokedTracksPendingBytesAcrossWrite(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go io.Copy(io.Discard, client)

	p := &Peer{
		conn:      server,
		fsmachine: newFSM(StateDialing, nil, nil),
		cfg:       Config{ChokingBytes: 1 << 20, DrownBytes: 1 << 20},
	}

	require.NoError(t, p.writeMessage(&wire.Ping{Nonce: 1}))
	require.False(t, p.choked)
	require.Zero(t, p.pendingBytes, "pendingBytes must drain back to zero once the frame is flushed")
}
