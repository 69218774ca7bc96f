package frontier

import (
	"testing"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/types"
)

func TestPhaseMonotonicNoBacktrack(t *testing.T) {
	s := NewState(types.BlockWithHash{})
	meta := action.NewMeta(KindSyncInit, nil, time.Now())

	Reduce(s, SyncInitAction{Base: action.Base{Meta: meta}, Target: types.BlockHash{0x01}})
	if s.Phase != PhaseSnarkedLedgerPending {
		t.Fatalf("expected PhaseSnarkedLedgerPending, got %v", s.Phase)
	}

	Reduce(s, SnarkedLedgerSuccessAction{Base: action.Base{Meta: meta}})
	if s.Phase != PhaseSnarkedLedgerSuccess {
		t.Fatalf("expected PhaseSnarkedLedgerSuccess, got %v", s.Phase)
	}

	// Attempting to skip directly to reconstruct-success must not advance.
	Reduce(s, StagedLedgerReconstructSuccessAction{Base: action.Base{Meta: meta}})
	if s.Phase != PhaseSnarkedLedgerSuccess {
		t.Fatalf("expected phase to remain unchanged on out-of-order transition, got %v", s.Phase)
	}
}

func TestBlockApplyAppendsBestChain(t *testing.T) {
	genesis := types.BlockWithHash{Hash: types.BlockHash{0x00}}
	s := NewState(genesis)
	target := types.BlockHash{0x01}
	s.Target = target
	s.Phase = PhaseBlocksPending

	meta := action.NewMeta(KindBlockApplySuccess, nil, time.Now())
	Reduce(s, BlockApplySuccessAction{Base: action.Base{Meta: meta}, Block: types.BlockWithHash{Hash: target}})

	if len(s.BestChain) != 2 {
		t.Fatalf("expected best chain length 2, got %d", len(s.BestChain))
	}
	if s.Phase != PhaseBlocksSuccess {
		t.Fatalf("expected PhaseBlocksSuccess once target applied, got %v", s.Phase)
	}
}

func TestPeerErrorsAccumulate(t *testing.T) {
	s := NewState(types.BlockWithHash{})
	meta := action.NewMeta(KindPeerErrored, nil, time.Now())
	for i := 0; i < maxPeerErrorsBeforeDisconnect; i++ {
		Reduce(s, PeerErroredAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Peer: "peerA"})
	}
	if s.peerErrors["peerA"] != maxPeerErrorsBeforeDisconnect {
		t.Fatalf("expected %d errors recorded, got %d", maxPeerErrorsBeforeDisconnect, s.peerErrors["peerA"])
	}
}
