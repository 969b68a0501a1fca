// Package wire implements the node's framed, length-prefixed wire
// protocol (spec §6): a one-byte command tag followed by a varint
// length and a command-specific payload.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/BigRomanov/beam-1/errors"
)

// Command is the one-byte message tag.
type Command byte

const (
	CmdAuthentication Command = iota + 1
	CmdLogin
	CmdBye
	CmdPing
	CmdPong
	CmdNewTip
	CmdGetHdr
	CmdGetHdrPack
	CmdHdrPack
	CmdEnumHdrs
	CmdGetBody
	CmdGetBodyPack
	CmdBody
	CmdBodyPack
	CmdNewTransaction
	CmdHaveTransaction
	CmdGetTransaction
	CmdSetDependentContext
	CmdGetProofState
	CmdGetProofKernel
	CmdGetProofKernel2
	CmdGetProofUtxo
	CmdGetProofShieldedOutp
	CmdGetProofShieldedInp
	CmdGetProofAsset
	CmdGetShieldedList
	CmdGetProofChainWork
	CmdPeerInfo
	CmdPeerInfoSelf
	CmdGetExternalAddr
	CmdBbsMsg
	CmdBbsHaveMsg
	CmdBbsGetMsg
	CmdBbsSubscribe
	CmdBbsResetSync
	CmdGetEvents
	CmdBlockFinalization
	CmdGetStateSummary
	CmdContractVarsEnum
	CmdContractLogsEnum
	CmdGetContractVar
	CmdGetContractLogProof
	CmdGetShieldedOutputsAt
	CmdDataMissing
)

// MaxMessageSize bounds a single framed payload to guard against a
// malicious or buggy peer claiming an unbounded varint length.
const MaxMessageSize = 32 * 1024 * 1024

// Message is implemented by every wire protocol message.
type Message interface {
	Command() Command
	Encode(w io.Writer) error
	Decode(r io.Reader) error
}

// WriteFrame writes tag + varint(len(payload)) + payload to w.
func WriteFrame(w io.Writer, cmd Command, payload []byte) error {
	if _, err := w.Write([]byte{byte(cmd)}); err != nil {
		return errors.NewTransientIOError("write command tag", err)
	}

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))

	if _, err := w.Write(lenBuf[:n]); err != nil {
		return errors.NewTransientIOError("write frame length", err)
	}

	if _, err := w.Write(payload); err != nil {
		return errors.NewTransientIOError("write frame payload", err)
	}

	return nil
}

// ReadFrame reads a single tag + varint length + payload frame from r.
func ReadFrame(r *bufio.Reader) (Command, []byte, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return 0, nil, errors.NewTransientIOError("read command tag", err)
	}

	length, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, errors.NewProtocolViolationError("read frame length", err)
	}

	if length > MaxMessageSize {
		return 0, nil, errors.NewProtocolViolationError("frame length %d exceeds max %d", length, MaxMessageSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, errors.NewTransientIOError("read frame payload", err)
	}

	return Command(tag), payload, nil
}

// Encode serializes msg into a framed buffer using the Message's own
// Encode method for the payload.
func Encode(w io.Writer, msg Message) error {
	var buf writerBuf
	if err := msg.Encode(&buf); err != nil {
		return err
	}

	return WriteFrame(w, msg.Command(), buf.b)
}

type writerBuf struct{ b []byte }

func (w *writerBuf) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
