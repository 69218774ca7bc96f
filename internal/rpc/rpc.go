// Package rpc implements the P2P RPC channel's fetch surface (spec §4.5,
// §6): the request/response exchanges internal/frontier issues during
// transition-frontier sync — snarked-ledger address queries, staged-ledger
// parts, and block bodies — travel over the already-open "rpc" data
// channel from internal/p2p/channels and are answered by whichever peer
// holds the requested data.
//
// No ledger.proto exists in this repository (concrete ledger storage is a
// spec Non-goal, see internal/ledgersvc), so the wire envelope here is a
// plain Go struct framed with encoding/gob rather than protobuf — the
// gRPC/protobuf stack is exercised instead at the ledgersvc boundary,
// where a real generated stub would normally sit.
package rpc

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"mina-core/internal/frontier"
	"mina-core/internal/p2p"
	"mina-core/internal/types"
)

// Kind tags a wire envelope so the receiving peer's Responder knows which
// read to perform and the requester's callback knows which frontier action
// to build from the reply.
type Kind uint8

const (
	KindLedgerQuery Kind = iota
	KindLedgerQueryReply
	KindStagedLedgerParts
	KindStagedLedgerPartsReply
	KindBlockFetch
	KindBlockFetchReply
)

// envelope is the single wire message shape for every RPC kind; unused
// fields are simply zero for a given Kind, mirroring the teacher's
// channels.RPC tracking one request-id space across heterogeneous kinds.
type envelope struct {
	Kind        Kind
	ReqID       uint64
	LedgerHash  types.LedgerHash
	Addr        types.LedgerAddress
	ChildHashes [][32]byte
	Accounts    [][]byte
	Target      types.BlockHash
	Parts       []byte
	BlockHash   types.BlockHash
	Block       []byte
}

func encode(e envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("rpc: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (envelope, error) {
	var e envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return envelope{}, fmt.Errorf("rpc: decode: %w", err)
	}
	return e, nil
}

// Fetcher implements frontier.PeerFetch on top of the already-connected
// p2p.Service channel surface: every fetch is a ChannelSend of an envelope
// on the peer's rpc channel.
type Fetcher struct {
	svc    p2p.Service
	nextID uint64
}

func NewFetcher(svc p2p.Service) *Fetcher { return &Fetcher{svc: svc} }

var _ frontier.PeerFetch = (*Fetcher)(nil)

func (f *Fetcher) FetchLedgerQuery(peer types.PeerID, ledgerHash types.LedgerHash, addr types.LedgerAddress) error {
	f.nextID++
	data, err := encode(envelope{Kind: KindLedgerQuery, ReqID: f.nextID, LedgerHash: ledgerHash, Addr: addr})
	if err != nil {
		return err
	}
	return f.svc.ChannelSend(peer, f.nextID, data)
}

func (f *Fetcher) FetchStagedLedgerParts(peer types.PeerID, target types.BlockHash) error {
	f.nextID++
	data, err := encode(envelope{Kind: KindStagedLedgerParts, ReqID: f.nextID, Target: target})
	if err != nil {
		return err
	}
	return f.svc.ChannelSend(peer, f.nextID, data)
}

func (f *Fetcher) FetchBlock(peer types.PeerID, hash types.BlockHash) error {
	f.nextID++
	data, err := encode(envelope{Kind: KindBlockFetch, ReqID: f.nextID, BlockHash: hash})
	if err != nil {
		return err
	}
	return f.svc.ChannelSend(peer, f.nextID, data)
}

func (f *Fetcher) Disconnect(peer types.PeerID) error { return f.svc.Disconnect(peer) }

// ReaderLedger is implemented by this node's own ledger store to answer
// inbound fetch requests from syncing peers — the serving half of the
// ledger-service boundary (spec §6 "ledger.read_init").
type ReaderLedger interface {
	ChildHashes(ledgerHash types.LedgerHash, addr types.LedgerAddress) ([][32]byte, bool)
	Accounts(ledgerHash types.LedgerHash, addr types.LedgerAddress) ([][]byte, bool)
	StagedLedgerParts(target types.BlockHash) ([]byte, bool)
	Block(hash types.BlockHash) ([]byte, bool)
}

// Responder answers inbound envelopes read off a peer's rpc channel,
// registered as the node's handler for that channel's incoming messages.
type Responder struct {
	svc    p2p.Service
	ledger ReaderLedger
}

func NewResponder(svc p2p.Service, ledger ReaderLedger) *Responder {
	return &Responder{svc: svc, ledger: ledger}
}

// Handle decodes one inbound message from peer and, if this node holds the
// requested data, sends the reply envelope back on the same channel.
func (r *Responder) Handle(peer types.PeerID, data []byte) error {
	e, err := decode(data)
	if err != nil {
		return err
	}
	switch e.Kind {
	case KindLedgerQuery:
		hashes, hashesOK := r.ledger.ChildHashes(e.LedgerHash, e.Addr)
		if hashesOK {
			reply, err := encode(envelope{Kind: KindLedgerQueryReply, ReqID: e.ReqID, Addr: e.Addr, ChildHashes: hashes})
			if err != nil {
				return err
			}
			return r.svc.ChannelSend(peer, e.ReqID, reply)
		}
		accounts, ok := r.ledger.Accounts(e.LedgerHash, e.Addr)
		if !ok {
			return fmt.Errorf("rpc: no data for ledger query %v", e.Addr)
		}
		reply, err := encode(envelope{Kind: KindLedgerQueryReply, ReqID: e.ReqID, Addr: e.Addr, Accounts: accounts})
		if err != nil {
			return err
		}
		return r.svc.ChannelSend(peer, e.ReqID, reply)

	case KindStagedLedgerParts:
		parts, ok := r.ledger.StagedLedgerParts(e.Target)
		if !ok {
			return fmt.Errorf("rpc: no staged-ledger parts for %s", e.Target)
		}
		reply, err := encode(envelope{Kind: KindStagedLedgerPartsReply, ReqID: e.ReqID, Parts: parts})
		if err != nil {
			return err
		}
		return r.svc.ChannelSend(peer, e.ReqID, reply)

	case KindBlockFetch:
		body, ok := r.ledger.Block(e.BlockHash)
		if !ok {
			return fmt.Errorf("rpc: no block body for %s", e.BlockHash)
		}
		reply, err := encode(envelope{Kind: KindBlockFetchReply, ReqID: e.ReqID, BlockHash: e.BlockHash, Block: body})
		if err != nil {
			return err
		}
		return r.svc.ChannelSend(peer, e.ReqID, reply)

	default:
		return nil
	}
}

// Response is the decoded shape of an inbound reply, handed to the node's
// main loop so it can build the matching frontier *Response action without
// this package importing frontier's action types directly (the inverse
// coupling of Fetcher).
type Response struct {
	Kind        Kind
	ReqID       uint64
	Addr        types.LedgerAddress
	ChildHashes [][32]byte
	Accounts    [][]byte
	Parts       []byte
	BlockHash   types.BlockHash
	Block       []byte
}

// DecodeResponse parses a reply envelope read off a peer's rpc channel.
func DecodeResponse(data []byte) (Response, error) {
	e, err := decode(data)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Kind:        e.Kind,
		ReqID:       e.ReqID,
		Addr:        e.Addr,
		ChildHashes: e.ChildHashes,
		Accounts:    e.Accounts,
		Parts:       e.Parts,
		BlockHash:   e.BlockHash,
		Block:       e.Block,
	}, nil
}
