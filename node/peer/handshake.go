package peer

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/flynn/noise"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

// secureHandshake runs the Noise XX pattern over conn and returns the
// resulting send/receive cipher states (spec §4.1 step 1, "Noise-style
// secure-channel handshake"). XX gives mutual authentication of the
// ephemeral/static keys without requiring out-of-band key distribution.
func secureHandshake(conn net.Conn, staticKeypair noise.DHKey, initiator bool) (send, recv *noise.CipherState, channelBinding []byte, err error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: staticKeypair,
		Random:        rand.Reader,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("noise handshake state: %w", err)
	}

	// XX is three messages: -> e, <- e,ee,s,es, -> s,se.
	if initiator {
		if err := writeHandshakeMsg(conn, hs, nil); err != nil {
			return nil, nil, nil, err
		}
		if _, err := readHandshakeMsg(conn, hs); err != nil {
			return nil, nil, nil, err
		}

		cs1, cs2, err := writeHandshakeFinal(conn, hs)
		if err != nil {
			return nil, nil, nil, err
		}
		return cs1, cs2, hs.ChannelBinding(), nil
	}

	if _, err := readHandshakeMsg(conn, hs); err != nil {
		return nil, nil, nil, err
	}
	if err := writeHandshakeMsg(conn, hs, nil); err != nil {
		return nil, nil, nil, err
	}

	cs1, cs2, err := readHandshakeFinal(conn, hs)
	if err != nil {
		return nil, nil, nil, err
	}
	return cs2, cs1, hs.ChannelBinding(), nil
}

func writeHandshakeMsg(conn net.Conn, hs *noise.HandshakeState, payload []byte) error {
	out, _, _, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return fmt.Errorf("noise write message: %w", err)
	}
	return writeFramed(conn, out)
}

func readHandshakeMsg(conn net.Conn, hs *noise.HandshakeState) ([]byte, error) {
	in, err := readFramed(conn)
	if err != nil {
		return nil, err
	}
	payload, _, _, err := hs.ReadMessage(nil, in)
	if err != nil {
		return nil, fmt.Errorf("noise read message: %w", err)
	}
	return payload, nil
}

func writeHandshakeFinal(conn net.Conn, hs *noise.HandshakeState) (cs1, cs2 *noise.CipherState, err error) {
	out, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("noise write final message: %w", err)
	}
	if err := writeFramed(conn, out); err != nil {
		return nil, nil, err
	}
	return cs1, cs2, nil
}

func readHandshakeFinal(conn net.Conn, hs *noise.HandshakeState) (cs1, cs2 *noise.CipherState, err error) {
	in, err := readFramed(conn)
	if err != nil {
		return nil, nil, err
	}
	_, cs1, cs2, err = hs.ReadMessage(nil, in)
	if err != nil {
		return nil, nil, fmt.Errorf("noise read final message: %w", err)
	}
	return cs1, cs2, nil
}

// writeFramed/readFramed send a raw handshake message length-prefixed, for
// use before the wire package's keyed framing is available (the secure
// channel isn't established yet during the Noise exchange itself).
func writeFramed(conn net.Conn, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func readFramed(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > 1<<20 {
		return nil, fmt.Errorf("handshake message too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// signAuthentication proves control of the node's long-term secp256k1 key
// over the session's handshake hash (spec §4.1 step 2, Authentication).
// The wire format carries a fixed 64-byte r||s signature rather than DER,
// since Authentication has no need for DER's variable-length encoding.
func signAuthentication(priv *secp256k1.PrivateKey, sessionHash []byte) [64]byte {
	sig := ecdsa.Sign(priv, sessionHash)
	der := sig.Serialize()

	var out [64]byte
	r, s := parseDERRS(der)
	copy(out[:32], r)
	copy(out[32:], s)
	return out
}

// verifyAuthentication checks a peer's Authentication signature against
// its claimed public key and the session's handshake hash.
func verifyAuthentication(pub *secp256k1.PublicKey, sessionHash []byte, sigBytes [64]byte) bool {
	der := encodeDERRS(sigBytes[:32], sigBytes[32:])
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	return sig.Verify(sessionHash, pub)
}

// parseDERRS extracts the 32-byte-padded r and s values from a DER-encoded
// ECDSA signature, for translation to the wire protocol's fixed 64-byte form.
func parseDERRS(der []byte) (r, s []byte) {
	// DER: 0x30 len 0x02 rlen r 0x02 slen s
	if len(der) < 6 || der[0] != 0x30 {
		return make([]byte, 32), make([]byte, 32)
	}
	i := 2
	rlen := int(der[i+1])
	rraw := der[i+2 : i+2+rlen]
	i += 2 + rlen
	slen := int(der[i+1])
	sraw := der[i+2 : i+2+slen]

	r = leftPad32(rraw)
	s = leftPad32(sraw)
	return r, s
}

func leftPad32(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// encodeDERRS rebuilds a minimal DER ECDSA signature from fixed-width r
// and s, the inverse of parseDERRS.
func encodeDERRS(r, s []byte) []byte {
	encodeInt := func(b []byte) []byte {
		for len(b) > 1 && b[0] == 0 && b[1] < 0x80 {
			b = b[1:]
		}
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return append([]byte{0x02, byte(len(b))}, b...)
	}

	rEnc := encodeInt(r)
	sEnc := encodeInt(s)
	body := append(rEnc, sEnc...)
	return append([]byte{0x30, byte(len(body))}, body...)
}
