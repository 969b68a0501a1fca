package chainmodel

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync/atomic"
)

// Hash is a 32-byte digest identifying a block, transaction kernel, or
// dependent-tx context. This core never constructs or verifies a
// transaction/block body itself (that's the ChainProcessor collaborator's
// job, out of scope per spec §1), so a plain fixed-size array is enough —
// no BSV transaction library is pulled in just for a hash type.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// BlockID identifies a chain element by (height, hash).
type BlockID struct {
	Height uint32
	Hash   Hash
}

func (b BlockID) Equal(other BlockID) bool {
	return b.Height == other.Height && b.Hash == other.Hash
}

// SystemState is a node in the chain controller's DAG: a BlockID plus its
// previous link, cumulative chain work, and difficulty target.
type SystemState struct {
	BlockID
	Previous   *BlockID
	ChainWork  *big.Int
	Bits       uint32
}

// BeatsChainWork reports whether s has strictly greater chain work than other.
func (s *SystemState) BeatsChainWork(other *SystemState) bool {
	if other == nil {
		return true
	}

	if s.ChainWork == nil {
		return false
	}

	if other.ChainWork == nil {
		return true
	}

	return s.ChainWork.Cmp(other.ChainWork) > 0
}

// ChainProcessor is the out-of-scope collaborator that owns header/block
// cryptographic verification and Merkle proofs. The chain controller
// (node/chain) drives this interface; this core never implements it.
type ChainProcessor interface {
	ValidateHeaders(ctx context.Context, headers []BlockID) error
	ValidateBody(ctx context.Context, id BlockID, body []byte) error
	ApplyNewTip(ctx context.Context, tip SystemState) error
	Rollback(ctx context.Context, toHeight uint32) error

	// Proof-query passthroughs (§6): this core frames and routes these
	// requests to the processor; it never computes the proofs itself.
	ProofState(ctx context.Context, id BlockID) ([]byte, error)
	ProofKernel(ctx context.Context, kernelID Hash) ([]byte, error)
	ProofUtxo(ctx context.Context, commitment Hash) ([]byte, error)
	ProofChainWork(ctx context.Context, id BlockID) ([]byte, error)
	StateSummary(ctx context.Context) ([]byte, error)
}

// NodeDB is the out-of-scope on-disk key-value store collaborator. The
// chain controller and peer manager batch writes through it behind
// debounce timers; this core never implements persistence itself.
type NodeDB interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Flush(ctx context.Context) error
}

// TxInfo is what TxValidator reports back about a structurally and
// cryptographically valid transaction: the policy-relevant facts the
// mempool needs in order to run its own acceptance rules on top of
// raw validity.
type TxInfo struct {
	FeeSatoshi      int64
	SizeBytes       int
	NumInputs       int
	NumOutputs      int
	ShieldedOutputs int
	FeeReserve      int64
	Obscured        bool
}

// TxValidator is the out-of-scope collaborator that owns transaction
// parsing, signature and kernel verification, and aggregate-transaction
// construction. The mempool (node/mempool) drives this interface; this
// core never parses or verifies transaction bytes itself.
type TxValidator interface {
	ValidateTransaction(ctx context.Context, payload []byte) (TxInfo, error)
	AggregateTransactions(ctx context.Context, payloads [][]byte, dummyOutputCount int) (id Hash, payload []byte, info TxInfo, err error)
}

// Template is a block candidate handed to a solver: enough for the miner
// driver to track and soft-restart without understanding its contents.
type Template struct {
	Height uint32
	Bits   uint32
	Data   []byte
}

// Solution is a solver's answer to a Template.
type Solution struct {
	Nonce uint64
	Data  []byte
}

// MiningCollaborator is the out-of-scope collaborator that builds block
// templates, searches for proof-of-work, and submits an assembled block
// to the chain. The miner driver (node/miner) drives this interface;
// this core never computes a proof-of-work hash itself.
type MiningCollaborator interface {
	BuildTemplate(ctx context.Context) (Template, error)
	Solve(ctx context.Context, tmpl Template, stop *atomic.Bool) (Solution, bool, error)
	SubmitSolution(ctx context.Context, sol Solution) (bool, error)
}
