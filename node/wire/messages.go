package wire

import (
	"encoding/binary"
	"io"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/errors"
)

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeHash(w io.Writer, h chainmodel.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (chainmodel.Hash, error) {
	var h chainmodel.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader, maxLen uint32) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	if n > maxLen {
		return nil, errors.NewProtocolViolationError("payload length %d exceeds max %d", n, maxLen)
	}

	b := make([]byte, n)
	_, err = io.ReadFull(r, b)
	return b, err
}

// Authentication proves control of the sender's long-term key over the
// handshake transcript (§4.1 step 2).
type Authentication struct {
	NodeID    [33]byte
	Signature [64]byte
}

func (m *Authentication) Command() Command { return CmdAuthentication }

func (m *Authentication) Encode(w io.Writer) error {
	if _, err := w.Write(m.NodeID[:]); err != nil {
		return err
	}
	_, err := w.Write(m.Signature[:])
	return err
}

func (m *Authentication) Decode(r io.Reader) error {
	if _, err := io.ReadFull(r, m.NodeID[:]); err != nil {
		return err
	}
	_, err := io.ReadFull(r, m.Signature[:])
	return err
}

// LoginFlags matches the flag set enumerated in spec §4.1.
type LoginFlags struct {
	SpreadingTransactions bool
	Bbs                   bool
	Viewer                bool
	MiningFinalization    bool
}

func (f LoginFlags) encode() byte {
	var b byte
	if f.SpreadingTransactions {
		b |= 1
	}
	if f.Bbs {
		b |= 2
	}
	if f.Viewer {
		b |= 4
	}
	if f.MiningFinalization {
		b |= 8
	}
	return b
}

func decodeLoginFlags(b byte) LoginFlags {
	return LoginFlags{
		SpreadingTransactions: b&1 != 0,
		Bbs:                   b&2 != 0,
		Viewer:                b&4 != 0,
		MiningFinalization:    b&8 != 0,
	}
}

// Login exchanges protocol flags and supported fork height (§4.1 step 3).
type Login struct {
	Flags       LoginFlags
	ForkHeight  uint32
}

func (m *Login) Command() Command { return CmdLogin }

func (m *Login) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{m.Flags.encode()}); err != nil {
		return err
	}
	return writeUint32(w, m.ForkHeight)
}

func (m *Login) Decode(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	m.Flags = decodeLoginFlags(b[0])

	h, err := readUint32(r)
	if err != nil {
		return err
	}
	m.ForkHeight = h
	return nil
}

// ByeReason enumerates disconnect causes (§7).
type ByeReason byte

const (
	ByeProtocolBad ByeReason = iota
	ByeBadData
	ByeTimeout
	ByeDrowned
	ByeBanned
	ByeShutdown
)

// Bye announces a graceful or reason-coded disconnect.
type Bye struct {
	Reason ByeReason
}

func (m *Bye) Command() Command { return CmdBye }

func (m *Bye) Encode(w io.Writer) error {
	_, err := w.Write([]byte{byte(m.Reason)})
	return err
}

func (m *Bye) Decode(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	m.Reason = ByeReason(b[0])
	return nil
}

type Ping struct{ Nonce uint64 }

func (m *Ping) Command() Command       { return CmdPing }
func (m *Ping) Encode(w io.Writer) error { return writeUint64(w, m.Nonce) }
func (m *Ping) Decode(r io.Reader) error {
	n, err := readUint64(r)
	m.Nonce = n
	return err
}

type Pong struct{ Nonce uint64 }

func (m *Pong) Command() Command       { return CmdPong }
func (m *Pong) Encode(w io.Writer) error { return writeUint64(w, m.Nonce) }
func (m *Pong) Decode(r io.Reader) error {
	n, err := readUint64(r)
	m.Nonce = n
	return err
}

// NewTip announces the sender's current best SystemState.
type NewTip struct {
	Height    uint32
	Hash      chainmodel.Hash
	ChainWork []byte // big.Int bytes
}

func (m *NewTip) Command() Command { return CmdNewTip }

func (m *NewTip) Encode(w io.Writer) error {
	if err := writeUint32(w, m.Height); err != nil {
		return err
	}
	if err := writeHash(w, m.Hash); err != nil {
		return err
	}
	return writeBytes(w, m.ChainWork)
}

func (m *NewTip) Decode(r io.Reader) error {
	h, err := readUint32(r)
	if err != nil {
		return err
	}
	m.Height = h

	hash, err := readHash(r)
	if err != nil {
		return err
	}
	m.Hash = hash

	cw, err := readBytes(r, 64)
	if err != nil {
		return err
	}
	m.ChainWork = cw
	return nil
}

// GetHdrPack requests headers starting at From up to Count headers.
type GetHdrPack struct {
	From  chainmodel.BlockID
	Count uint32
}

func (m *GetHdrPack) Command() Command { return CmdGetHdrPack }

func (m *GetHdrPack) Encode(w io.Writer) error {
	if err := writeUint32(w, m.From.Height); err != nil {
		return err
	}
	if err := writeHash(w, m.From.Hash); err != nil {
		return err
	}
	return writeUint32(w, m.Count)
}

func (m *GetHdrPack) Decode(r io.Reader) error {
	h, err := readUint32(r)
	if err != nil {
		return err
	}
	m.From.Height = h

	hash, err := readHash(r)
	if err != nil {
		return err
	}
	m.From.Hash = hash

	c, err := readUint32(r)
	if err != nil {
		return err
	}
	m.Count = c
	return nil
}

// HdrPack is the reply to GetHdrPack: a contiguous chain of headers
// starting at From (strict chaining is required, see Open Question b).
type HdrPack struct {
	Headers []chainmodel.BlockID
}

func (m *HdrPack) Command() Command { return CmdHdrPack }

func (m *HdrPack) Encode(w io.Writer) error {
	if err := writeUint32(w, uint32(len(m.Headers))); err != nil {
		return err
	}
	for _, h := range m.Headers {
		if err := writeUint32(w, h.Height); err != nil {
			return err
		}
		if err := writeHash(w, h.Hash); err != nil {
			return err
		}
	}
	return nil
}

func (m *HdrPack) Decode(r io.Reader) error {
	n, err := readUint32(r)
	if err != nil {
		return err
	}

	if n > 100000 {
		return errors.NewProtocolViolationError("HdrPack claims %d headers, exceeds sane limit", n)
	}

	m.Headers = make([]chainmodel.BlockID, 0, n)
	for i := uint32(0); i < n; i++ {
		height, err := readUint32(r)
		if err != nil {
			return err
		}
		hash, err := readHash(r)
		if err != nil {
			return err
		}
		m.Headers = append(m.Headers, chainmodel.BlockID{Height: height, Hash: hash})
	}
	return nil
}

// GetBody requests a single block body.
type GetBody struct {
	ID chainmodel.BlockID
}

func (m *GetBody) Command() Command { return CmdGetBody }

func (m *GetBody) Encode(w io.Writer) error {
	if err := writeUint32(w, m.ID.Height); err != nil {
		return err
	}
	return writeHash(w, m.ID.Hash)
}

func (m *GetBody) Decode(r io.Reader) error {
	h, err := readUint32(r)
	if err != nil {
		return err
	}
	m.ID.Height = h

	hash, err := readHash(r)
	if err != nil {
		return err
	}
	m.ID.Hash = hash
	return nil
}

// Body carries an opaque block body payload; its cryptographic
// validation is delegated to the ChainProcessor collaborator.
type Body struct {
	ID      chainmodel.BlockID
	Payload []byte
}

func (m *Body) Command() Command { return CmdBody }

func (m *Body) Encode(w io.Writer) error {
	if err := writeUint32(w, m.ID.Height); err != nil {
		return err
	}
	if err := writeHash(w, m.ID.Hash); err != nil {
		return err
	}
	return writeBytes(w, m.Payload)
}

func (m *Body) Decode(r io.Reader) error {
	h, err := readUint32(r)
	if err != nil {
		return err
	}
	m.ID.Height = h

	hash, err := readHash(r)
	if err != nil {
		return err
	}
	m.ID.Hash = hash

	payload, err := readBytes(r, MaxMessageSize)
	if err != nil {
		return err
	}
	m.Payload = payload
	return nil
}

// NewTransaction carries an opaque transaction payload and routing hints.
type NewTransaction struct {
	ID      chainmodel.Hash
	Payload []byte
	Ctx     *chainmodel.Hash // dependent-context hash, if any
	Fluff   bool
}

func (m *NewTransaction) Command() Command { return CmdNewTransaction }

func (m *NewTransaction) Encode(w io.Writer) error {
	if err := writeHash(w, m.ID); err != nil {
		return err
	}
	if err := writeBytes(w, m.Payload); err != nil {
		return err
	}

	hasCtx := byte(0)
	if m.Ctx != nil {
		hasCtx = 1
	}
	if _, err := w.Write([]byte{hasCtx}); err != nil {
		return err
	}
	if m.Ctx != nil {
		if err := writeHash(w, *m.Ctx); err != nil {
			return err
		}
	}

	fluff := byte(0)
	if m.Fluff {
		fluff = 1
	}
	_, err := w.Write([]byte{fluff})
	return err
}

func (m *NewTransaction) Decode(r io.Reader) error {
	id, err := readHash(r)
	if err != nil {
		return err
	}
	m.ID = id

	payload, err := readBytes(r, MaxMessageSize)
	if err != nil {
		return err
	}
	m.Payload = payload

	var hasCtx [1]byte
	if _, err := io.ReadFull(r, hasCtx[:]); err != nil {
		return err
	}
	if hasCtx[0] == 1 {
		ctx, err := readHash(r)
		if err != nil {
			return err
		}
		m.Ctx = &ctx
	}

	var fluff [1]byte
	if _, err := io.ReadFull(r, fluff[:]); err != nil {
		return err
	}
	m.Fluff = fluff[0] == 1
	return nil
}

// HaveTransaction advertises a kernel hash already known to the sender.
type HaveTransaction struct {
	ID chainmodel.Hash
}

func (m *HaveTransaction) Command() Command         { return CmdHaveTransaction }
func (m *HaveTransaction) Encode(w io.Writer) error  { return writeHash(w, m.ID) }
func (m *HaveTransaction) Decode(r io.Reader) error {
	id, err := readHash(r)
	m.ID = id
	return err
}

// SetDependentContext links a new dependent-tx context to its parent.
type SetDependentContext struct {
	ID        chainmodel.Hash
	ParentCtx chainmodel.Hash
}

func (m *SetDependentContext) Command() Command { return CmdSetDependentContext }

func (m *SetDependentContext) Encode(w io.Writer) error {
	if err := writeHash(w, m.ID); err != nil {
		return err
	}
	return writeHash(w, m.ParentCtx)
}

func (m *SetDependentContext) Decode(r io.Reader) error {
	id, err := readHash(r)
	if err != nil {
		return err
	}
	m.ID = id

	parent, err := readHash(r)
	if err != nil {
		return err
	}
	m.ParentCtx = parent
	return nil
}

// BbsMsg carries a stored-and-forwarded broadcast message.
type BbsMsg struct {
	Channel uint32
	Time    uint64
	ID      chainmodel.Hash
	Payload []byte
	Nonce   uint64
}

func (m *BbsMsg) Command() Command { return CmdBbsMsg }

func (m *BbsMsg) Encode(w io.Writer) error {
	if err := writeUint32(w, m.Channel); err != nil {
		return err
	}
	if err := writeUint64(w, m.Time); err != nil {
		return err
	}
	if err := writeHash(w, m.ID); err != nil {
		return err
	}
	if err := writeBytes(w, m.Payload); err != nil {
		return err
	}
	return writeUint64(w, m.Nonce)
}

func (m *BbsMsg) Decode(r io.Reader) error {
	ch, err := readUint32(r)
	if err != nil {
		return err
	}
	m.Channel = ch

	t, err := readUint64(r)
	if err != nil {
		return err
	}
	m.Time = t

	id, err := readHash(r)
	if err != nil {
		return err
	}
	m.ID = id

	payload, err := readBytes(r, 1<<20) // 1 MiB cap (spec §3)
	if err != nil {
		return err
	}
	m.Payload = payload

	n, err := readUint64(r)
	if err != nil {
		return err
	}
	m.Nonce = n
	return nil
}

// BbsSubscribe registers interest in a channel.
type BbsSubscribe struct {
	Channel uint32
}

func (m *BbsSubscribe) Command() Command        { return CmdBbsSubscribe }
func (m *BbsSubscribe) Encode(w io.Writer) error { return writeUint32(w, m.Channel) }
func (m *BbsSubscribe) Decode(r io.Reader) error {
	ch, err := readUint32(r)
	m.Channel = ch
	return err
}

// BbsResetSync rewinds a client's per-channel cursor to Since.
type BbsResetSync struct {
	Channel uint32
	Since   uint64
}

func (m *BbsResetSync) Command() Command { return CmdBbsResetSync }

func (m *BbsResetSync) Encode(w io.Writer) error {
	if err := writeUint32(w, m.Channel); err != nil {
		return err
	}
	return writeUint64(w, m.Since)
}

func (m *BbsResetSync) Decode(r io.Reader) error {
	ch, err := readUint32(r)
	if err != nil {
		return err
	}
	m.Channel = ch

	since, err := readUint64(r)
	if err != nil {
		return err
	}
	m.Since = since
	return nil
}

// DataMissing is the task-scheduler's "I don't have that" reply, which
// triggers rejected-task memory on the requester (§4.1).
type DataMissing struct {
	IsBody bool
	ID     chainmodel.BlockID
}

func (m *DataMissing) Command() Command { return CmdDataMissing }

func (m *DataMissing) Encode(w io.Writer) error {
	isBody := byte(0)
	if m.IsBody {
		isBody = 1
	}
	if _, err := w.Write([]byte{isBody}); err != nil {
		return err
	}
	if err := writeUint32(w, m.ID.Height); err != nil {
		return err
	}
	return writeHash(w, m.ID.Hash)
}

func (m *DataMissing) Decode(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	m.IsBody = b[0] == 1

	h, err := readUint32(r)
	if err != nil {
		return err
	}
	m.ID.Height = h

	hash, err := readHash(r)
	if err != nil {
		return err
	}
	m.ID.Hash = hash
	return nil
}

// ProofQuery is a generic opaque-payload passthrough for the proof/
// contract/shielded-output query messages (§6) this core frames and
// routes to the ChainProcessor collaborator without interpreting.
type ProofQuery struct {
	Cmd     Command
	Payload []byte
}

func (m *ProofQuery) Command() Command { return m.Cmd }

func (m *ProofQuery) Encode(w io.Writer) error {
	return writeBytes(w, m.Payload)
}

func (m *ProofQuery) Decode(r io.Reader) error {
	payload, err := readBytes(r, MaxMessageSize)
	if err != nil {
		return err
	}
	m.Payload = payload
	return nil
}
