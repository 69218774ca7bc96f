// Package types holds the content-addressed domain values shared across the
// node: block/peer identity, hashes and the small value objects that travel
// through actions without owning any subsystem state themselves.
package types

import (
	"encoding/hex"
	"fmt"
)

// BlockHash is a 32-byte Mina state-hash, used as the content address for a
// block. Two BlockWithHash values carrying the same BlockHash are assumed to
// describe the same block body.
type BlockHash [32]byte

func (h BlockHash) String() string { return hex.EncodeToString(h[:]) }
func (h BlockHash) IsZero() bool   { return h == BlockHash{} }

// PeerID is a libp2p/WebRTC peer identity, the base58 or multihash string
// form used on the wire and as map keys throughout the node.
type PeerID string

func (p PeerID) String() string { return string(p) }

// LedgerHash identifies a Merkle-rooted ledger snapshot (snarked ledger,
// staged ledger, or a sub-tree thereof).
type LedgerHash [32]byte

func (h LedgerHash) String() string { return hex.EncodeToString(h[:]) }

// Address is an account's 32-byte public key compressed curve point,
// serving as the account identifier within a ledger.
type Address [32]byte

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// LedgerAddress identifies a node within a Merkle tree: a depth and the bit
// path from the root to that node.
type LedgerAddress struct {
	Depth int
	Path  uint64 // low Depth bits are significant, MSB-first traversal order
}

func (a LedgerAddress) String() string {
	return fmt.Sprintf("d%d:%x", a.Depth, a.Path)
}

// Block is the minimal block body this core cares about: enough to drive
// consensus comparisons and staged-ledger application. Concrete proof bytes
// and transaction contents are opaque payloads handled by the services.
type Block struct {
	Hash               BlockHash
	Height             uint64
	ParentHash         BlockHash
	SnarkedLedgerHash  LedgerHash
	StagedLedgerHash   LedgerHash
	EpochCount         uint32
	SlotInEpoch        uint32
	VRFOutput          [32]byte
	LockCheckpoint     BlockHash
	StakingLockCheck   BlockHash
	BlockchainLength   uint64
	ProofVerified      bool
	RawProof           []byte
	RawBody            []byte
}

// BlockWithHash bundles a block with the hash computed once so callers never
// recompute it. It is reference-counted in spirit (shared via pointer) since
// the same block is reachable from the consensus map, the best-chain
// sequence, and peer best-tip slots simultaneously.
type BlockWithHash struct {
	Block *Block
	Hash  BlockHash
}

func NewBlockWithHash(b *Block) *BlockWithHash {
	return &BlockWithHash{Block: b, Hash: b.Hash}
}

// JobID names a transaction-snark work unit: a ledger-hash transition that a
// proof can cover.
type JobID struct {
	SourceFirstPass  LedgerHash
	SourceSecondPass LedgerHash
	TargetFirstPass  LedgerHash
	TargetSecondPass LedgerHash
}

func (j JobID) String() string {
	return fmt.Sprintf("%x..%x->%x..%x", j.SourceFirstPass[:4], j.SourceSecondPass[:4], j.TargetFirstPass[:4], j.TargetSecondPass[:4])
}

// Fee is a currency amount, kept as a plain uint64 of nanomina the way the
// rest of the node treats ledger balances.
type Fee uint64
