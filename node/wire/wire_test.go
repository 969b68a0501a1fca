package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg Message, out Message) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, msg))

	cmd, payload, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, msg.Command(), cmd)

	require.NoError(t, out.Decode(bytes.NewReader(payload)))
}

func TestPingPongRoundTrip(t *testing.T) {
	in := &Ping{Nonce: 42}
	out := &Ping{}
	roundTrip(t, in, out)
	require.Equal(t, in.Nonce, out.Nonce)
}

func TestHdrPackRoundTrip(t *testing.T) {
	in := &HdrPack{Headers: []chainmodel.BlockID{
		{Height: 1, Hash: chainmodel.Hash{1}},
		{Height: 2, Hash: chainmodel.Hash{2}},
	}}
	out := &HdrPack{}
	roundTrip(t, in, out)
	require.Equal(t, in.Headers, out.Headers)
}

func TestNewTransactionRoundTripWithContext(t *testing.T) {
	ctx := chainmodel.Hash{9, 9}
	in := &NewTransaction{
		ID:      chainmodel.Hash{1},
		Payload: []byte("tx-bytes"),
		Ctx:     &ctx,
		Fluff:   true,
	}
	out := &NewTransaction{}
	roundTrip(t, in, out)

	require.Equal(t, in.ID, out.ID)
	require.Equal(t, in.Payload, out.Payload)
	require.NotNil(t, out.Ctx)
	require.Equal(t, *in.Ctx, *out.Ctx)
	require.True(t, out.Fluff)
}

func TestOversizedFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, CmdBody, make([]byte, 10)))

	// Corrupt the length varint to claim an oversized payload.
	corrupted := []byte{byte(CmdBody), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	_, _, err := ReadFrame(bufio.NewReader(bytes.NewReader(corrupted)))
	require.Error(t, err)
}

func TestBbsMsgPayloadCapEnforced(t *testing.T) {
	msg := &BbsMsg{}
	oversized := make([]byte, 2<<20)

	var buf bytes.Buffer
	require.NoError(t, writeUint32(&buf, 0))
	require.NoError(t, writeUint64(&buf, 0))
	require.NoError(t, writeHash(&buf, chainmodel.Hash{}))
	require.NoError(t, writeUint32(&buf, uint32(len(oversized))))
	buf.Write(oversized)

	err := msg.Decode(&buf)
	require.Error(t, err)
}
