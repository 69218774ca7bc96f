package main

import (
	"testing"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/consensus"
	"mina-core/internal/frontier"
	"mina-core/internal/node"
	"mina-core/internal/p2p"
	"mina-core/internal/producer"
	"mina-core/internal/snarkpool"
	"mina-core/internal/snarkverify"
	"mina-core/internal/store"
	"mina-core/internal/types"
	"mina-core/internal/watched"
	"mina-core/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Network.ListenAddr = "/ip4/127.0.0.1/tcp/0"
	cfg.Network.DiscoveryTag = "mina-test"
	cfg.Verifier.WorkerPoolSize = 2
	return cfg
}

func TestBuildServicesWiresEveryCollaborator(t *testing.T) {
	w, svc, err := buildServices(testConfig(), snarkpool.NewState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		w.verify.Wait()
		_ = w.ledger.Close()
		_ = w.host.Close()
	}()

	if svc.P2P == nil || svc.Verify == nil || svc.Ledger == nil || svc.PeerFetch == nil ||
		svc.ProducerLedger == nil || svc.Prover == nil || svc.Broadcaster == nil || svc.PoolSource == nil ||
		svc.VerifyCallback == nil {
		t.Fatalf("expected every node.Services field to be populated, got %+v", svc)
	}
	if w.source == nil || w.resp == nil || w.fetcher == nil {
		t.Fatalf("expected wiring's internal collaborators to be populated")
	}
}

func TestBuildServicesSourceStartsEmpty(t *testing.T) {
	w, _, err := buildServices(testConfig(), snarkpool.NewState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		w.verify.Wait()
		_ = w.ledger.Close()
		_ = w.host.Close()
	}()

	if _, ok := w.source.Next(); ok {
		t.Fatalf("expected a freshly wired source to have no queued events")
	}
}

// stubP2P is a minimal p2p.Service fake recording the peer Disconnect was
// last called with, just enough for liveCallbacks.OnVerifyFailed's
// dispatch to complete without a real libp2p host.
type stubP2P struct {
	disconnected types.PeerID
}

func (s *stubP2P) OutgoingInit(types.PeerID, p2p.OutgoingOpts) error { return nil }
func (s *stubP2P) IncomingInit(types.PeerID, []byte) error           { return nil }
func (s *stubP2P) SetAnswer(types.PeerID, []byte) error              { return nil }
func (s *stubP2P) ChannelOpen(types.PeerID, string) error            { return nil }
func (s *stubP2P) ChannelSend(types.PeerID, uint64, []byte) error    { return nil }
func (s *stubP2P) Disconnect(peer types.PeerID) error {
	s.disconnected = peer
	return nil
}

// liveCallbacksFixture builds a real node.State/store.Store pair the way
// cmd/cli/replay.go's freshState does, wired to a liveCallbacks that
// dispatches into that same store, without going through buildServices (it
// needs a real libp2p host).
func liveCallbacksFixture(t *testing.T) (*store.Store[node.State], *liveCallbacks, *stubP2P) {
	t.Helper()
	genesis := types.BlockWithHash{}
	pool := snarkpool.NewState()
	state := &node.State{
		P2P:       p2p.NewReady(p2p.Config{MaxPeers: 50, ChurnInterval: time.Minute}),
		Snark:     snarkverify.NewState(),
		SnarkPool: pool,
		Frontier:  frontier.NewState(genesis),
		Consensus: consensus.NewState(genesis),
		Producer:  producer.NewState(),
		Watched:   watched.NewState(),
	}
	cb := &liveCallbacks{pool: pool}
	svcP2P := &stubP2P{}
	st := node.New(state, node.Services{P2P: svcP2P, VerifyCallback: cb})
	cb.store = st
	return st, cb, svcP2P
}

func TestOnBlockVerifiedWithNilBlockIsNoop(t *testing.T) {
	st, cb, _ := liveCallbacksFixture(t)
	before := st.State().Consensus.Candidates
	cb.OnBlockVerified("peer-1", types.BlockWithHash{})
	if len(st.State().Consensus.Candidates) != len(before) {
		t.Fatalf("expected a nil block to add no consensus candidate")
	}
}

func TestOnBlockVerifiedDispatchesCandidate(t *testing.T) {
	st, cb, _ := liveCallbacksFixture(t)
	block := &types.Block{
		Hash:             types.BlockHash{1},
		BlockchainLength: 7,
		VRFOutput:        [32]byte{9},
		EpochCount:       2,
		SlotInEpoch:      3,
		LockCheckpoint:   types.BlockHash{5},
	}
	bh := types.BlockWithHash{Block: block, Hash: block.Hash}

	cb.OnBlockVerified("peer-1", bh)

	cand, ok := st.State().Consensus.Candidates[block.Hash]
	if !ok {
		t.Fatalf("expected the verified block to be recorded as a candidate")
	}
	if cand.BlockchainLength != 7 || cand.VRFOutput != [32]byte{9} {
		t.Fatalf("expected candidate fields copied from the verified block, got %+v", cand)
	}
	if cand.StakingEpochData.EpochCount != 2 || cand.StakingEpochData.SlotInEpoch != 3 {
		t.Fatalf("expected staking epoch data copied from the verified block, got %+v", cand.StakingEpochData)
	}
}

func TestOnWorkVerifiedRecoversPendingFeeAndProver(t *testing.T) {
	st, cb, _ := liveCallbacksFixture(t)
	jobID := types.JobID{SourceFirstPass: types.LedgerHash{1}}
	info := snarkpool.SnarkInfo{JobID: jobID, Fee: 42, Prover: "peer-2"}
	st.Dispatch(snarkpool.CandidateFetchInitAction{
		EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: action.NewMeta(snarkpool.KindCandidateFetchInit, nil, time.Now())}},
		Info:          info,
	})

	cb.OnWorkVerified("peer-2", []types.JobID{jobID})

	work, ok := st.State().SnarkPool.Pool[jobID]
	if !ok {
		t.Fatalf("expected the verified job to be admitted into the pool")
	}
	if work.Fee != 42 || work.Prover != "peer-2" {
		t.Fatalf("expected the pool entry to carry the pending fee/prover, got %+v", work)
	}
}

func TestOnWorkVerifiedWithoutPendingEntryFallsBackToZeroFee(t *testing.T) {
	st, cb, _ := liveCallbacksFixture(t)
	jobID := types.JobID{SourceFirstPass: types.LedgerHash{7}}

	cb.OnWorkVerified("peer-3", []types.JobID{jobID})

	work, ok := st.State().SnarkPool.Pool[jobID]
	if !ok {
		t.Fatalf("expected a fallback SnarkInfo to still be admitted")
	}
	if work.Fee != 0 || work.Prover != "peer-3" {
		t.Fatalf("expected a zero-fee fallback entry naming the sender, got %+v", work)
	}
}

func TestOnVerifyFailedDisconnectsForAttributableError(t *testing.T) {
	_, cb, stub := liveCallbacksFixture(t)
	cb.OnVerifyFailed("peer-4", snarkverify.ErrVerificationFailed)
	if stub.disconnected != "peer-4" {
		t.Fatalf("expected an attributable failure to disconnect the sender, got %q", stub.disconnected)
	}
}

func TestOnVerifyFailedIgnoresNonAttributableError(t *testing.T) {
	_, cb, stub := liveCallbacksFixture(t)
	cb.OnVerifyFailed("peer-5", snarkverify.ErrValidatorThreadCrashed)
	if stub.disconnected != "" {
		t.Fatalf("expected a non-attributable failure to leave the peer connected, got %q", stub.disconnected)
	}
}

func TestOnUserCommandVerifiedDoesNotPanic(t *testing.T) {
	_, cb, _ := liveCallbacksFixture(t)
	cb.OnUserCommandVerified("peer-6", 3)
}
