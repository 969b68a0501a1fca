// Package peer implements a single framed, encrypted peer connection (spec
// §4.1): Noise secure channel, Authentication/Login handshake, a
// Dialing->...->Closed state machine, send-side backpressure, and
// rejected-task memory.
package peer

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/errors"
	"github.com/BigRomanov/beam-1/node/peermgr"
	nodesync "github.com/BigRomanov/beam-1/node/sync"
	"github.com/BigRomanov/beam-1/node/wire"
	"github.com/BigRomanov/beam-1/ulogger"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/dolthub/swiss"
	"github.com/flynn/noise"
	"github.com/greatroar/blobloom"
	"github.com/looplab/fsm"
)

// LoginFlags mirrors wire.LoginFlags for the locally negotiated session
// (kept distinct from the wire struct so Peer doesn't need to re-decode it
// on every access).
type LoginFlags = wire.LoginFlags

// Identity is this node's long-term key material, used for both the Noise
// static keypair and the Authentication signature (spec §4.1 steps 1-2).
type Identity struct {
	Noise  noise.DHKey
	Signer *secp256k1.PrivateKey
}

// Config bundles the tunables a Peer needs at construction, pulled from
// settings.PeerSettings/BandwidthSettings by the caller rather than
// depending on the settings package directly (spec §9 design note on
// passing context handles instead of reaching for global config).
type Config struct {
	Identity     Identity
	OwnFlags     LoginFlags
	ForkHeight   uint32
	ChokingBytes int64
	DrownBytes   int64
	RejectedTTL  time.Duration
}

// Peer is one connection's state: the framed socket, its cipher state, its
// FSM, its send backpressure counters, owned sync tasks, and BBS
// subscriptions.
type Peer struct {
	log       ulogger.Logger
	conn      net.Conn
	reader    *bufio.Reader
	sendMu    sync.Mutex
	send      *noise.CipherState
	recv      *noise.CipherState
	fsmachine *fsm.FSM

	NodeID    peermgr.NodeID
	RemoteKey *secp256k1.PublicKey
	Flags     LoginFlags
	TipHeight uint32

	listeners Listeners
	cfg       Config

	mu           sync.Mutex
	pendingBytes int64
	choked       bool

	tasks    map[nodesync.TaskKey]struct{}
	rejected *rejectedMemory

	bbsSubs map[uint32]struct{}

	closed bool
}

// rejectedMemory is the per-peer "this peer already answered DataMissing
// for key X" set: a blobloom pre-filter guards an exact swiss-map check so
// a busy peer with thousands of rejections doesn't pay a full map lookup
// on every task-assignment decision (spec §4.1 "Rejected-task memory").
type rejectedMemory struct {
	mu     sync.Mutex
	filter *blobloom.Filter
	exact  *swiss.Map[nodesync.TaskKey, struct{}]
}

func newRejectedMemory() *rejectedMemory {
	return &rejectedMemory{
		filter: blobloom.NewOptimized(blobloom.Config{
			Capacity: 4096,
			FPRate:   0.01,
		}),
		exact: swiss.NewMap[nodesync.TaskKey, struct{}](256),
	}
}

func taskKeyHash(k nodesync.TaskKey) uint64 {
	var buf [5]byte
	binary.BigEndian.PutUint32(buf[:4], k.ID.Height)
	if k.IsBody {
		buf[4] = 1
	}
	h := uint64(14695981039346656037)
	for _, b := range buf {
		h ^= uint64(b)
		h *= 1099511628211
	}
	for _, b := range k.ID.Hash {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}

func (r *rejectedMemory) add(k nodesync.TaskKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter.Add(taskKeyHash(k))
	r.exact.Put(k, struct{}{})
}

func (r *rejectedMemory) has(k nodesync.TaskKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filter.Has(taskKeyHash(k)) {
		return false
	}
	_, ok := r.exact.Get(k)
	return ok
}

func (r *rejectedMemory) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = blobloom.NewOptimized(blobloom.Config{Capacity: 4096, FPRate: 0.01})
	r.exact = swiss.NewMap[nodesync.TaskKey, struct{}](256)
}

func newPeer(log ulogger.Logger, conn net.Conn, cfg Config, listeners Listeners) *Peer {
	p := &Peer{
		log:       log,
		conn:      conn,
		reader:    bufio.NewReader(conn),
		listeners: listeners,
		cfg:       cfg,
		tasks:     make(map[nodesync.TaskKey]struct{}),
		rejected:  newRejectedMemory(),
		bbsSubs:   make(map[uint32]struct{}),
	}

	p.fsmachine = newFSM(StateDialing, p.onActive, p.onClosed)
	return p
}

// Dial opens an outbound connection and runs the full handshake sequence.
func Dial(ctx context.Context, log ulogger.Logger, addr string, cfg Config, listeners Listeners) (*Peer, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, errors.NewTransientIOError("dial peer", err)
	}

	p := newPeer(log, conn, cfg, listeners)
	if err := p.handshake(ctx, true); err != nil {
		conn.Close()
		return nil, err
	}

	return p, nil
}

// Accept wraps an inbound connection and runs the responder side of the
// handshake.
func Accept(ctx context.Context, log ulogger.Logger, conn net.Conn, cfg Config, listeners Listeners) (*Peer, error) {
	p := newPeer(log, conn, cfg, listeners)
	if err := p.handshake(ctx, false); err != nil {
		conn.Close()
		return nil, err
	}

	return p, nil
}

func (p *Peer) handshake(ctx context.Context, initiator bool) error {
	send, recv, sessionHash, err := secureHandshake(p.conn, p.cfg.Identity.Noise, initiator)
	if err != nil {
		return errors.NewProtocolViolationError("secure handshake failed: %v", err)
	}
	p.send, p.recv = send, recv

	if err := p.fsmachine.Event(ctx, EventSecureEstablished); err != nil {
		return err
	}

	// Authentication: sign the session's channel-binding hash with our
	// long-term key and exchange with the peer (spec §4.1 step 2).
	sig := signAuthentication(p.cfg.Identity.Signer, sessionHash)

	var auth wire.Authentication
	copy(auth.NodeID[:], p.cfg.Identity.Signer.PubKey().SerializeCompressed())
	auth.Signature = sig
	if err := p.writeMessage(&auth); err != nil {
		return err
	}

	peerAuth, err := p.readExpected(wire.CmdAuthentication)
	if err != nil {
		return err
	}
	remoteAuth := peerAuth.(*wire.Authentication)

	remotePub, err := secp256k1.ParsePubKey(remoteAuth.NodeID[:])
	if err != nil {
		return errors.NewProtocolViolationError("invalid peer public key: %v", err)
	}
	if !verifyAuthentication(remotePub, sessionHash, remoteAuth.Signature) {
		return errors.ErrProtocolViolation
	}
	p.RemoteKey = remotePub
	p.NodeID = peermgr.NodeID(fmt.Sprintf("%x", remotePub.SerializeCompressed()))

	login := &wire.Login{Flags: p.cfg.OwnFlags, ForkHeight: p.cfg.ForkHeight}
	if err := p.writeMessage(login); err != nil {
		return err
	}

	peerLogin, err := p.readExpected(wire.CmdLogin)
	if err != nil {
		return err
	}
	p.Flags = peerLogin.(*wire.Login).Flags

	return p.fsmachine.Event(ctx, EventAuthenticated)
}

func (p *Peer) readExpected(want wire.Command) (wire.Message, error) {
	cmd, payload, err := wire.ReadFrame(p.reader)
	if err != nil {
		return nil, err
	}
	if cmd != want {
		return nil, errors.NewProtocolViolationError("expected command %d during handshake, got %d", byte(want), byte(cmd))
	}

	msg, err := wire.NewMessage(cmd)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(bufio.NewReader(newByteReader(payload))); err != nil {
		return nil, errors.NewBadDataError("decode handshake message: %v", err)
	}
	return msg, nil
}

// onActive runs when the FSM enters Active: nothing to free yet since the
// peer just connected, but present for symmetry with onClosed.
func (p *Peer) onActive() {}

// onClosed frees every task this peer owned back to "unassigned" and
// drops its BBS subscriptions (spec §4.1 "Transitions out of Active free
// all owned tasks... and unsubscribe all BBS channels").
func (p *Peer) onClosed() {
	p.mu.Lock()
	freed := make([]nodesync.TaskKey, 0, len(p.tasks))
	for k := range p.tasks {
		freed = append(freed, k)
	}
	p.tasks = make(map[nodesync.TaskKey]struct{})
	p.bbsSubs = make(map[uint32]struct{})
	p.closed = true
	p.mu.Unlock()

	if p.listeners.OnDisconnect != nil {
		p.listeners.OnDisconnect(p)
	}

	_ = freed // returned to the scheduler via OnDisconnect's caller, which owns task reassignment
}

// writeMessage frames and encrypts msg, enforcing the Drown disconnect
// threshold (spec §4.1 "Backpressure").
func (p *Peer) writeMessage(msg wire.Message) error {
	var buf writerBuf
	if err := msg.Encode(&buf); err != nil {
		return err
	}

	var frame writerBuf
	if err := wire.WriteFrame(&frame, msg.Command(), buf.b); err != nil {
		return err
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	p.pendingBytes += int64(len(frame.b))
	pending := p.pendingBytes
	p.mu.Unlock()
	p.updateChoked()

	if pending >= p.cfg.DrownBytes {
		p.Close()
		return errors.NewResourceExhaustedError("peer %s exceeded drown threshold (%d bytes pending)", p.NodeID, pending)
	}

	out := frame.b
	if p.send != nil {
		var err error
		out, err = p.send.Encrypt(nil, nil, frame.b)
		if err != nil {
			return errors.NewTransientIOError("encrypt frame", err)
		}
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(out)))

	if _, err := p.conn.Write(lenPrefix[:]); err != nil {
		return errors.NewTransientIOError("write encrypted frame length", err)
	}
	if _, err := p.conn.Write(out); err != nil {
		return errors.NewTransientIOError("write encrypted frame", err)
	}

	p.mu.Lock()
	p.pendingBytes -= int64(len(frame.b))
	p.mu.Unlock()
	p.updateChoked()

	return nil
}

// Send queues an application message, respecting the choking flag for
// non-essential traffic (spec §4.1: "Non-essential broadcasts (BBS, tx
// fluff) honor the choking flag").
func (p *Peer) Send(msg wire.Message, essential bool) error {
	p.mu.Lock()
	choked := p.choked
	p.mu.Unlock()

	if choked && !essential {
		return nil
	}

	return p.writeMessage(msg)
}

// SendTemplate hands a mining template to this peer as a finalizer
// (spec §4.5 "Finalizer handoff"), satisfying miner.Finalizer. It rides
// the BlockFinalization passthrough tag since this core never
// interprets a template's contents itself (spec §6).
func (p *Peer) SendTemplate(tmpl chainmodel.Template) error {
	payload := make([]byte, 8+len(tmpl.Data))
	binary.BigEndian.PutUint32(payload[0:4], tmpl.Height)
	binary.BigEndian.PutUint32(payload[4:8], tmpl.Bits)
	copy(payload[8:], tmpl.Data)

	return p.Send(&wire.ProofQuery{Cmd: wire.CmdBlockFinalization, Payload: payload}, true)
}

// IsChoking reports whether pending-send bytes are at or above the choking
// threshold (spec §8 "Exactly at Choking, new body-sends stall") and
// records the result so Send's choked check sees it.
func (p *Peer) IsChoking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	choking := p.pendingBytes >= p.cfg.ChokingBytes
	p.choked = choking
	return choking
}

// updateChoked re-evaluates the choking flag every time pendingBytes
// changes, so Send's check of p.choked reflects current backpressure
// instead of whatever it was set to at construction (spec §4.1
// "Non-essential broadcasts... honor the choking flag and resume on
// drain").
func (p *Peer) updateChoked() {
	p.IsChoking()
}

// ServeLoop reads and dispatches frames until the connection closes or ctx
// is done. Heavy validation is the listener's responsibility to offload
// (spec §5 "Dispatch contract").
func (p *Peer) ServeLoop(ctx context.Context) error {
	defer p.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var lenPrefix [4]byte
		if _, err := readFull(p.conn, lenPrefix[:]); err != nil {
			return err
		}
		n := binary.BigEndian.Uint32(lenPrefix[:])
		if n > wire.MaxMessageSize {
			return errors.NewProtocolViolationError("encrypted frame length %d exceeds max", n)
		}

		ciphertext := make([]byte, n)
		if _, err := readFull(p.conn, ciphertext); err != nil {
			return err
		}

		plaintext := ciphertext
		if p.recv != nil {
			var err error
			plaintext, err = p.recv.Decrypt(nil, nil, ciphertext)
			if err != nil {
				return errors.NewProtocolViolationError("decrypt frame: %v", err)
			}
		}

		cmd, payload, err := wire.ReadFrame(bufio.NewReader(newByteReader(plaintext)))
		if err != nil {
			return err
		}

		if err := p.dispatch(cmd, payload); err != nil {
			p.log.Warnf("peer %s: dispatch %d failed: %v", p.NodeID, byte(cmd), err)
		}
	}
}

func (p *Peer) dispatch(cmd wire.Command, payload []byte) error {
	msg, err := wire.NewMessage(cmd)
	if err != nil {
		return err
	}
	if err := msg.Decode(bufio.NewReader(newByteReader(payload))); err != nil {
		return errors.NewBadDataError("decode message %d: %v", byte(cmd), err)
	}

	switch m := msg.(type) {
	case *wire.NewTip:
		p.rejected.clear()
		p.TipHeight = m.Height
		if p.listeners.OnNewTip != nil {
			p.listeners.OnNewTip(p, m)
		}
	case *wire.HdrPack:
		if p.listeners.OnHdrPack != nil {
			p.listeners.OnHdrPack(p, m)
		}
	case *wire.GetHdrPack:
		if p.listeners.OnGetHdrPack != nil {
			p.listeners.OnGetHdrPack(p, m)
		}
	case *wire.Body:
		if p.listeners.OnBody != nil {
			p.listeners.OnBody(p, m)
		}
	case *wire.GetBody:
		if p.listeners.OnGetBody != nil {
			p.listeners.OnGetBody(p, m)
		}
	case *wire.NewTransaction:
		if p.listeners.OnNewTransaction != nil {
			p.listeners.OnNewTransaction(p, m)
		}
	case *wire.HaveTransaction:
		if p.listeners.OnHaveTransaction != nil {
			p.listeners.OnHaveTransaction(p, m)
		}
	case *wire.SetDependentContext:
		if p.listeners.OnSetDependentContext != nil {
			p.listeners.OnSetDependentContext(p, m)
		}
	case *wire.BbsMsg:
		if p.listeners.OnBbsMsg != nil {
			p.listeners.OnBbsMsg(p, m)
		}
	case *wire.BbsSubscribe:
		p.mu.Lock()
		p.bbsSubs[m.Channel] = struct{}{}
		p.mu.Unlock()
		if p.listeners.OnBbsSubscribe != nil {
			p.listeners.OnBbsSubscribe(p, m)
		}
	case *wire.BbsResetSync:
		if p.listeners.OnBbsResetSync != nil {
			p.listeners.OnBbsResetSync(p, m)
		}
	case *wire.DataMissing:
		p.markRejected(m)
		if p.listeners.OnDataMissing != nil {
			p.listeners.OnDataMissing(p, m)
		}
	case *wire.ProofQuery:
		if p.listeners.OnProofQuery != nil {
			p.listeners.OnProofQuery(p, m)
		}
	case *wire.Ping:
		if p.listeners.OnPing != nil {
			p.listeners.OnPing(p, m)
		}
		return p.Send(&wire.Pong{Nonce: m.Nonce}, true)
	case *wire.Pong:
		if p.listeners.OnPong != nil {
			p.listeners.OnPong(p, m)
		}
	case *wire.Bye:
		if p.listeners.OnBye != nil {
			p.listeners.OnBye(p, m)
		}
		p.Close()
	}

	return nil
}

func (p *Peer) markRejected(m *wire.DataMissing) {
	key := nodesync.TaskKey{ID: m.ID, IsBody: m.IsBody}
	p.rejected.add(key)
}

// SubscribedTo reports whether this peer has subscribed to channel (spec
// §4.6 "Clients subscribe to channels... forwards new messages to
// subscribers").
func (p *Peer) SubscribedTo(channel uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.bbsSubs[channel]
	return ok
}

// ID returns the peer's node identity, satisfying nodesync.PeerHandle.
func (p *Peer) ID() peermgr.NodeID { return p.NodeID }

// Tip returns the peer's last-announced chain height, satisfying
// nodesync.PeerHandle.
func (p *Peer) Tip() uint32 { return p.TipHeight }

// RejectedHas reports whether this peer already reported key as missing.
func (p *Peer) RejectedHas(key nodesync.TaskKey) bool {
	return p.rejected.has(key)
}

// AssignTask records that this peer now owns key.
func (p *Peer) AssignTask(key nodesync.TaskKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[key] = struct{}{}
}

// ReleaseTask drops key from this peer's owned-task set.
func (p *Peer) ReleaseTask(key nodesync.TaskKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tasks, key)
}

// TaskCount returns how many tasks this peer currently owns.
func (p *Peer) TaskCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Close transitions the peer to Closed and shuts down the socket.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	_ = p.fsmachine.Event(context.Background(), EventClose)
	return p.conn.Close()
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, errors.NewTransientIOError("read from peer", err)
		}
	}
	return total, nil
}

type writerBuf struct{ b []byte }

func (w *writerBuf) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, errors.NewBadDataError("read past end of message payload")
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
