package snarkpool

import (
	"testing"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/types"
)

func TestAdmitPrefersLowerFee(t *testing.T) {
	s := NewState()
	job := types.JobID{}

	Reduce(s, CandidateVerifiedAction{Info: SnarkInfo{JobID: job, Fee: 100, Prover: "peerA"}})
	if s.Pool[job].Fee != 100 {
		t.Fatalf("expected fee 100, got %d", s.Pool[job].Fee)
	}

	Reduce(s, CandidateVerifiedAction{Info: SnarkInfo{JobID: job, Fee: 50, Prover: "peerB"}})
	if s.Pool[job].Fee != 50 {
		t.Fatalf("expected lower fee 50 to win, got %d", s.Pool[job].Fee)
	}

	Reduce(s, CandidateVerifiedAction{Info: SnarkInfo{JobID: job, Fee: 200, Prover: "peerC"}})
	if s.Pool[job].Fee != 50 {
		t.Fatalf("expected higher fee 200 to lose, pool still has %d", s.Pool[job].Fee)
	}
}

func TestCandidateFetchWindow(t *testing.T) {
	s := NewState()
	peer := types.PeerID("peerA")
	for i := 0; i < candidateFetchWindow; i++ {
		Reduce(s, CandidateFetchInitAction{Info: SnarkInfo{Prover: peer}})
	}
	if s.CanFetch(peer) {
		t.Fatalf("expected peer to be at fetch window cap")
	}
}

func TestWorkPruned(t *testing.T) {
	s := NewState()
	job := types.JobID{}
	Reduce(s, CandidateVerifiedAction{Info: SnarkInfo{JobID: job, Fee: 10, Prover: "peerA"}})
	if len(s.Pool) != 1 {
		t.Fatalf("expected 1 entry before prune")
	}
	Reduce(s, WorkPrunedAction{JobIDs: []types.JobID{job}})
	if len(s.Pool) != 0 {
		t.Fatalf("expected pool empty after prune")
	}
}

type fakeDispatcher struct {
	dispatched []action.Action
}

func (f *fakeDispatcher) Dispatch(a action.Action) bool {
	f.dispatched = append(f.dispatched, a)
	return true
}
func (f *fakeDispatcher) Now() time.Time           { return time.Now() }
func (f *fakeDispatcher) ParentMeta() action.Meta { return action.Meta{} }

func TestEffectsFetchesUnderWindow(t *testing.T) {
	s := NewState()
	d := &fakeDispatcher{}
	meta := action.NewMeta(KindCandidateReceived, nil, time.Now())
	Effects(s, CandidateReceivedAction{Base: action.Base{Meta: meta}, Info: SnarkInfo{Prover: "peerA"}}, d)
	if len(d.dispatched) != 1 {
		t.Fatalf("expected one CandidateFetchInitAction dispatched, got %d", len(d.dispatched))
	}
}
