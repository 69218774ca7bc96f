// Package ledgersvc implements the ledger-service boundary named in spec
// §6 (`ledger.write_init`/`read_init`). Concrete ledger storage (the
// Merkle-tree account database) is an explicit spec Non-goal; this package
// wires the remote-call shape — a dialable gRPC client plus an in-memory
// fake satisfying the same stub interface for tests — the way the teacher's
// core/ai.go wires AIEngine against an AIStubClient over grpc.ClientConn.
package ledgersvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"

	"mina-core/internal/frontier"
	"mina-core/internal/producer"
	"mina-core/internal/types"
)

// --- gRPC proto (compiled separately) – minimal stub interface here. -----

// SetHashesRequest/Response etc. stand in for the generated protobuf types
// a real `ledger.proto` would produce; StubClient is the interface that
// generated client code would satisfy.
type SetHashesRequest struct {
	LedgerHash  types.LedgerHash
	Addr        types.LedgerAddress
	ChildHashes [][32]byte
}

type SetAccountsRequest struct {
	LedgerHash types.LedgerHash
	Addr       types.LedgerAddress
	Accounts   [][]byte
}

type ValidatePartsRequest struct {
	TargetBlock types.BlockHash
	Parts       []byte
}

type ReconstructRequest struct {
	SnarkedLedger types.LedgerHash
	Parts         []byte
}

type ApplyBlockRequest struct {
	Block types.BlockWithHash
}

type ReleaseBelowRequest struct {
	Height uint64
}

type ApplyDiffRequest struct {
	Diff []byte
}

type ApplyDiffResponse struct {
	Block types.BlockWithHash
}

// Ack is the common acknowledgement shape for write operations, stamped
// with the server's processing time the way a real protobuf response
// would carry a google.protobuf.Timestamp.
type Ack struct {
	ProcessedAt *timestamppb.Timestamp
}

// StubClient is the gRPC-shaped ledger-service contract. A real deployment
// dials a remote ledger process generated from ledger.proto; tests use
// NewInMemoryClient instead.
type StubClient interface {
	SetHashes(ctx context.Context, req *SetHashesRequest) (*Ack, error)
	SetAccounts(ctx context.Context, req *SetAccountsRequest) (*Ack, error)
	ValidateStagedLedgerParts(ctx context.Context, req *ValidatePartsRequest) (*Ack, error)
	ReconstructStagedLedger(ctx context.Context, req *ReconstructRequest) (*Ack, error)
	ApplyBlock(ctx context.Context, req *ApplyBlockRequest) (*Ack, error)
	ReleaseBelow(ctx context.Context, req *ReleaseBelowRequest) (*Ack, error)
	ApplyDiff(ctx context.Context, req *ApplyDiffRequest) (*ApplyDiffResponse, error)
}

// --- Engine ----------------------------------------------------------------

// Engine adapts a StubClient to the frontier.Ledger and producer.Ledger
// interfaces, the two call sites that drive the ledger service.
type Engine struct {
	conn    *grpc.ClientConn // nil when built around an in-memory client
	client  StubClient
	timeout time.Duration
}

// Dial opens a gRPC connection to endpoint and wraps client around it. The
// generated stub would normally be built from the *grpc.ClientConn itself;
// client is accepted separately here because no .proto has been compiled
// into this repository, mirroring the teacher's own "minimal stub
// interface" comment in core/ai.go.
func Dial(endpoint string, client StubClient) (*Engine, error) {
	conn, err := grpc.Dial(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("ledgersvc: dial %s: %w", endpoint, err)
	}
	return &Engine{conn: conn, client: client, timeout: 5 * time.Second}, nil
}

// NewLocal builds an Engine directly around client, skipping the dial —
// used for the in-memory fake and for embedded single-process deployments.
func NewLocal(client StubClient) *Engine {
	return &Engine{client: client, timeout: 5 * time.Second}
}

// Close tears down the underlying connection, if any.
func (e *Engine) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

func (e *Engine) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.timeout)
}

var _ frontier.Ledger = (*Engine)(nil)
var _ producer.Ledger = (*Engine)(nil)

func (e *Engine) SetLedgerHashes(ledgerHash types.LedgerHash, addr types.LedgerAddress, childHashes [][32]byte) error {
	ctx, cancel := e.ctx()
	defer cancel()
	_, err := e.client.SetHashes(ctx, &SetHashesRequest{LedgerHash: ledgerHash, Addr: addr, ChildHashes: childHashes})
	return err
}

func (e *Engine) SetLedgerAccounts(ledgerHash types.LedgerHash, addr types.LedgerAddress, accounts [][]byte) error {
	ctx, cancel := e.ctx()
	defer cancel()
	_, err := e.client.SetAccounts(ctx, &SetAccountsRequest{LedgerHash: ledgerHash, Addr: addr, Accounts: accounts})
	return err
}

func (e *Engine) ValidateStagedLedgerParts(targetBlock types.BlockHash, parts []byte) error {
	ctx, cancel := e.ctx()
	defer cancel()
	_, err := e.client.ValidateStagedLedgerParts(ctx, &ValidatePartsRequest{TargetBlock: targetBlock, Parts: parts})
	return err
}

func (e *Engine) ReconstructStagedLedger(snarkedLedger types.LedgerHash, parts []byte) error {
	ctx, cancel := e.ctx()
	defer cancel()
	_, err := e.client.ReconstructStagedLedger(ctx, &ReconstructRequest{SnarkedLedger: snarkedLedger, Parts: parts})
	return err
}

func (e *Engine) ApplyBlock(block types.BlockWithHash) error {
	ctx, cancel := e.ctx()
	defer cancel()
	_, err := e.client.ApplyBlock(ctx, &ApplyBlockRequest{Block: block})
	return err
}

func (e *Engine) ReleaseBelow(height uint64) error {
	ctx, cancel := e.ctx()
	defer cancel()
	_, err := e.client.ReleaseBelow(ctx, &ReleaseBelowRequest{Height: height})
	return err
}

func (e *Engine) ApplyDiff(diff []byte) (types.BlockWithHash, error) {
	ctx, cancel := e.ctx()
	defer cancel()
	resp, err := e.client.ApplyDiff(ctx, &ApplyDiffRequest{Diff: diff})
	if err != nil {
		return types.BlockWithHash{}, err
	}
	return resp.Block, nil
}

// --- in-memory fake ---------------------------------------------------------

// InMemoryClient is a StubClient backed by plain maps, for tests and for a
// single-process node that doesn't run a separate ledger process. It does
// not implement real Merkle-tree semantics (concrete ledger storage is a
// spec Non-goal); it only tracks enough state for the frontier/producer
// pipelines to observe coherent success/error outcomes.
type InMemoryClient struct {
	mu       sync.Mutex
	hashes   map[types.LedgerAddress][][32]byte
	accounts map[types.LedgerAddress][][]byte
	applied  []types.BlockWithHash
	nextSlot uint64
}

func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		hashes:   make(map[types.LedgerAddress][][32]byte),
		accounts: make(map[types.LedgerAddress][][]byte),
	}
}

var _ StubClient = (*InMemoryClient)(nil)

func (c *InMemoryClient) SetHashes(_ context.Context, req *SetHashesRequest) (*Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[req.Addr] = req.ChildHashes
	return &Ack{ProcessedAt: timestamppb.Now()}, nil
}

func (c *InMemoryClient) SetAccounts(_ context.Context, req *SetAccountsRequest) (*Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[req.Addr] = req.Accounts
	return &Ack{ProcessedAt: timestamppb.Now()}, nil
}

func (c *InMemoryClient) ValidateStagedLedgerParts(_ context.Context, req *ValidatePartsRequest) (*Ack, error) {
	if len(req.Parts) == 0 {
		return nil, fmt.Errorf("ledgersvc: empty staged-ledger parts for %s", req.TargetBlock)
	}
	return &Ack{ProcessedAt: timestamppb.Now()}, nil
}

func (c *InMemoryClient) ReconstructStagedLedger(_ context.Context, req *ReconstructRequest) (*Ack, error) {
	return &Ack{ProcessedAt: timestamppb.Now()}, nil
}

func (c *InMemoryClient) ApplyBlock(_ context.Context, req *ApplyBlockRequest) (*Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, req.Block)
	return &Ack{ProcessedAt: timestamppb.Now()}, nil
}

func (c *InMemoryClient) ReleaseBelow(_ context.Context, req *ReleaseBelowRequest) (*Ack, error) {
	return &Ack{ProcessedAt: timestamppb.Now()}, nil
}

func (c *InMemoryClient) ApplyDiff(_ context.Context, req *ApplyDiffRequest) (*ApplyDiffResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSlot++
	block := &types.Block{Height: c.nextSlot, RawBody: req.Diff}
	bh := *types.NewBlockWithHash(block)
	c.applied = append(c.applied, bh)
	return &ApplyDiffResponse{Block: bh}, nil
}

// --- serving side (internal/rpc.ReaderLedger) -------------------------------
//
// A syncing peer's internal/rpc.Responder answers fetch requests straight
// out of this same in-memory store, the read half of the ledger-service
// boundary the Engine drives writes through.

func (c *InMemoryClient) ChildHashes(_ types.LedgerHash, addr types.LedgerAddress) ([][32]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hashes, ok := c.hashes[addr]
	return hashes, ok
}

func (c *InMemoryClient) Accounts(_ types.LedgerHash, addr types.LedgerAddress) ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	accounts, ok := c.accounts[addr]
	return accounts, ok
}

// StagedLedgerParts always misses: this node only ever validates staged-
// ledger parts it receives from a peer, it does not itself hold parts to
// serve onward (spec Non-goal: concrete ledger storage).
func (c *InMemoryClient) StagedLedgerParts(types.BlockHash) ([]byte, bool) { return nil, false }

func (c *InMemoryClient) Block(hash types.BlockHash) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.applied {
		if b.Hash == hash {
			return b.Block.RawBody, true
		}
	}
	return nil, false
}
