package conn

import (
	"testing"
	"time"

	"mina-core/internal/types"
)

func TestBeginConnectingThenAdvanceAndMarkReady(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	peer := types.PeerID("peerA")

	rec := tbl.BeginConnecting(peer, Outgoing)
	if rec.Phase != PhaseInit {
		t.Fatalf("expected a fresh episode to start at PhaseInit, got %v", rec.Phase)
	}

	tbl.Advance(peer, PhaseOfferSdpCreatePending)
	tbl.Advance(peer, PhaseOfferReady)
	tbl.Advance(peer, PhaseAnswerReceived)
	tbl.Advance(peer, PhaseFinalizePending)

	got, _ := tbl.Get(peer)
	if got.Phase != PhaseFinalizePending {
		t.Fatalf("expected phase FinalizePending, got %v", got.Phase)
	}

	ready := tbl.MarkReady(peer, time.Now())
	if ready.Status != StatusReady {
		t.Fatalf("expected status Ready, got %v", ready.Status)
	}
	if tbl.Count() != 1 {
		t.Fatalf("expected one occupied slot, got %d", tbl.Count())
	}
}

func TestBeginConnectingOnLivePeerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic re-connecting an already-live peer")
		}
	}()
	tbl := NewTable(4, time.Minute)
	peer := types.PeerID("peerA")
	tbl.BeginConnecting(peer, Outgoing)
	tbl.BeginConnecting(peer, Outgoing)
}

func TestBeginConnectingAfterDisconnectStartsFreshEpisode(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	peer := types.PeerID("peerA")

	tbl.BeginConnecting(peer, Outgoing)
	tbl.Disconnect(peer, time.Now(), "test")

	rec := tbl.BeginConnecting(peer, Incoming)
	if rec.Phase != PhaseInit || rec.Direction != Incoming {
		t.Fatalf("expected a fresh Incoming episode, got %+v", rec)
	}
}

func TestAdvanceBackwardEdgePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic advancing backward in the phase DAG")
		}
	}()
	tbl := NewTable(4, time.Minute)
	peer := types.PeerID("peerA")
	tbl.BeginConnecting(peer, Outgoing)
	tbl.Advance(peer, PhaseOfferReady)
	tbl.Advance(peer, PhaseOfferSdpCreatePending)
}

func TestAdvanceToErrorIsAlwaysAllowed(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	peer := types.PeerID("peerA")
	tbl.BeginConnecting(peer, Outgoing)
	tbl.Advance(peer, PhaseOfferReady)
	tbl.Advance(peer, PhaseError)

	got, _ := tbl.Get(peer)
	if got.Phase != PhaseError {
		t.Fatalf("expected phase Error, got %v", got.Phase)
	}
}

func TestAdvanceOnUnknownPeerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic advancing an unknown peer")
		}
	}()
	NewTable(4, time.Minute).Advance(types.PeerID("ghost"), PhaseOfferReady)
}

func TestRecordChannelErrorReachesDisconnectThreshold(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	peer := types.PeerID("peerA")
	tbl.BeginConnecting(peer, Outgoing)

	if tbl.RecordChannelError(peer, "rpc") {
		t.Fatalf("expected the first error not to cross the threshold")
	}
	if tbl.RecordChannelError(peer, "rpc") {
		t.Fatalf("expected the second error not to cross the threshold")
	}
	if !tbl.RecordChannelError(peer, "rpc") {
		t.Fatalf("expected the third error to cross the disconnect threshold")
	}
}

func TestDisconnectClearsChannelFailCounters(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	peer := types.PeerID("peerA")
	tbl.BeginConnecting(peer, Outgoing)
	tbl.RecordChannelError(peer, "rpc")
	tbl.Disconnect(peer, time.Now(), "churn")
	tbl.BeginConnecting(peer, Outgoing)

	if tbl.RecordChannelError(peer, "rpc") {
		t.Fatalf("expected a fresh episode to reset the channel-error counter")
	}
}

func TestDisconnectOnUnknownPeerIsNoop(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	tbl.Disconnect(types.PeerID("ghost"), time.Now(), "test")
}

func TestAtCapacityAndShouldChurn(t *testing.T) {
	tbl := NewTable(1, time.Minute)
	peer := types.PeerID("peerA")
	tbl.BeginConnecting(peer, Outgoing)
	tbl.MarkReady(peer, time.Now())

	if !tbl.AtCapacity() {
		t.Fatalf("expected the table to be at capacity with maxPeers=1")
	}
	if !tbl.ShouldChurn(time.Now().Add(time.Hour)) {
		t.Fatalf("expected ShouldChurn to fire once the churn interval elapsed")
	}
	tbl.NoteChurn(time.Now())
	if tbl.ShouldChurn(time.Now()) {
		t.Fatalf("expected ShouldChurn to be false right after NoteChurn")
	}
}

func TestLeastUsefulPicksLowestScore(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	strong, weak := types.PeerID("strong"), types.PeerID("weak")

	tbl.BeginConnecting(strong, Outgoing)
	tbl.MarkReady(strong, time.Now())
	tbl.RecordSuccess(strong)
	tbl.RecordSuccess(strong)

	tbl.BeginConnecting(weak, Outgoing)
	tbl.MarkReady(weak, time.Now())
	tbl.RecordChannelError(weak, "rpc")

	worst, ok := tbl.LeastUseful()
	if !ok || worst != weak {
		t.Fatalf("expected %s to be least useful, got %s (ok=%v)", weak, worst, ok)
	}
}

func TestLeastUsefulOnEmptyTableReportsNotFound(t *testing.T) {
	if _, ok := NewTable(4, time.Minute).LeastUseful(); ok {
		t.Fatalf("expected no result from an empty table")
	}
}

func TestReadyPeersOnlyIncludesReadyStatus(t *testing.T) {
	tbl := NewTable(4, time.Minute)
	ready, connecting := types.PeerID("ready"), types.PeerID("connecting")
	tbl.BeginConnecting(ready, Outgoing)
	tbl.MarkReady(ready, time.Now())
	tbl.BeginConnecting(connecting, Outgoing)

	peers := tbl.ReadyPeers()
	if len(peers) != 1 || peers[0] != ready {
		t.Fatalf("expected only the ready peer to be listed, got %v", peers)
	}
}

func TestScoreWithNoHistoryIsNeutral(t *testing.T) {
	rec := NewConnecting(types.PeerID("peerA"), Outgoing, 1)
	if rec.Score() != 0.5 {
		t.Fatalf("expected a neutral score of 0.5 for a peer with no history, got %f", rec.Score())
	}
}
