package rpc

import (
	"testing"

	"mina-core/internal/p2p"
	"mina-core/internal/types"
)

type fakeService struct {
	sent []struct {
		peer types.PeerID
		msg  []byte
	}
}

func (f *fakeService) OutgoingInit(types.PeerID, p2p.OutgoingOpts) error { return nil }
func (f *fakeService) IncomingInit(types.PeerID, []byte) error          { return nil }
func (f *fakeService) SetAnswer(types.PeerID, []byte) error             { return nil }
func (f *fakeService) ChannelOpen(types.PeerID, string) error           { return nil }
func (f *fakeService) ChannelSend(peer types.PeerID, _ uint64, msg []byte) error {
	f.sent = append(f.sent, struct {
		peer types.PeerID
		msg  []byte
	}{peer, msg})
	return nil
}
func (f *fakeService) Disconnect(types.PeerID) error { return nil }

type fakeLedger struct{}

func (fakeLedger) ChildHashes(types.LedgerHash, types.LedgerAddress) ([][32]byte, bool) {
	return [][32]byte{{1}, {2}}, true
}
func (fakeLedger) Accounts(types.LedgerHash, types.LedgerAddress) ([][]byte, bool) { return nil, false }
func (fakeLedger) StagedLedgerParts(types.BlockHash) ([]byte, bool)               { return []byte("parts"), true }
func (fakeLedger) Block(types.BlockHash) ([]byte, bool)                           { return []byte("body"), true }

func TestFetcherSendsLedgerQueryEnvelope(t *testing.T) {
	svc := &fakeService{}
	f := NewFetcher(svc)

	addr := types.LedgerAddress{Depth: 1, Path: 1}
	if err := f.FetchLedgerQuery("peerA", types.LedgerHash{0x01}, addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(svc.sent))
	}
	e, err := decode(svc.sent[0].msg)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if e.Kind != KindLedgerQuery || e.Addr != addr {
		t.Fatalf("unexpected envelope: %+v", e)
	}
}

func TestResponderAnswersLedgerQuery(t *testing.T) {
	svc := &fakeService{}
	r := NewResponder(svc, fakeLedger{})

	req, _ := encode(envelope{Kind: KindLedgerQuery, ReqID: 5, Addr: types.LedgerAddress{Depth: 2}})
	if err := r.Handle("peerB", req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(svc.sent))
	}
	resp, err := DecodeResponse(svc.sent[0].msg)
	if err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Kind != KindLedgerQueryReply || len(resp.ChildHashes) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

type emptyLedger struct{}

func (emptyLedger) ChildHashes(types.LedgerHash, types.LedgerAddress) ([][32]byte, bool) {
	return nil, false
}
func (emptyLedger) Accounts(types.LedgerHash, types.LedgerAddress) ([][]byte, bool) { return nil, false }
func (emptyLedger) StagedLedgerParts(types.BlockHash) ([]byte, bool)               { return nil, false }
func (emptyLedger) Block(types.BlockHash) ([]byte, bool)                           { return nil, false }

func TestResponderErrorsWhenDataMissing(t *testing.T) {
	svc := &fakeService{}
	r := NewResponder(svc, emptyLedger{})

	req, _ := encode(envelope{Kind: KindBlockFetch, ReqID: 10, BlockHash: types.BlockHash{0x03}})
	if err := r.Handle("peerC", req); err == nil {
		t.Fatalf("expected error when no block body is available")
	}
}
