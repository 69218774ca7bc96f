// Package snarkpool implements the two-tier SNARK work marketplace (spec
// §4.7): per-peer candidates admitted only after verification, graduating
// into the pool proper where each job id holds at most one snark, ranked
// by fee then a deterministic tie-breaker hash. Candidate admission is
// rate-limited per peer by a bounded fetch-window counter; recently seen
// candidates are recorded in a bounded hashicorp/golang-lru/v2 cache.
package snarkpool

import (
	"crypto/sha256"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"mina-core/internal/action"
	"mina-core/internal/types"
)

const (
	// candidateFetchWindow caps per-peer concurrent outstanding fetches
	// (spec §4.7 "a bounded fetch window — no new WorkFetchInit for that
	// peer until the previous verifies").
	candidateFetchWindow = 16
)

// Kind constants for this subsystem.
const (
	KindCandidateReceived action.Kind = action.KindSnarkPool + iota
	KindCandidateFetchInit
	KindCandidateVerified
	KindCandidateRejected
	KindWorkAdmitted
	KindWorkPruned
)

// SnarkInfo is an incoming work announcement before it is verified (spec
// §4.7 "incoming SnarkInfo").
type SnarkInfo struct {
	JobID  types.JobID
	Fee    types.Fee
	Prover types.PeerID
}

// Work is a fully admitted, verified entry in the pool.
type Work struct {
	SnarkInfo
	TieBreaker [32]byte
}

// tieBreaker is a deterministic byte-level hash of job id and prover,
// used to order equal-fee entries for gossip (spec §4.7).
func tieBreaker(jobID types.JobID, prover types.PeerID) [32]byte {
	h := sha256.New()
	h.Write([]byte(jobID.String()))
	h.Write([]byte(prover))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// candidateKey uniquely identifies one peer's pending candidate fetch.
type candidateKey struct {
	Peer  types.PeerID
	JobID types.JobID
}

// State holds the two tiers: verified pool entries keyed by job id, and
// per-peer candidate fetch windows (spec §4.7).
type State struct {
	Pool       map[types.JobID]Work
	candidates map[types.PeerID]int               // outstanding fetch count per peer
	pending    map[candidateKey]SnarkInfo          // info for each outstanding fetch, for PendingInfo
	seen       *lru.Cache[candidateKey, struct{}]
}

// NewState builds an empty pool with a bounded LRU (4096 entries) that
// records recently-seen candidates. The cache is not consulted when
// deciding whether to fetch, so a repeated gossip of the same SnarkInfo
// is fetched again.
func NewState() *State {
	seen, _ := lru.New[candidateKey, struct{}](4096)
	return &State{
		Pool:       make(map[types.JobID]Work),
		candidates: make(map[types.PeerID]int),
		pending:    make(map[candidateKey]SnarkInfo),
		seen:       seen,
	}
}

// CanFetch reports whether peer is under its candidate fetch window (spec
// §4.7 rate limit).
func (s *State) CanFetch(peer types.PeerID) bool {
	return s.candidates[peer] < candidateFetchWindow
}

// PendingInfo looks up the SnarkInfo an outstanding fetch was opened with,
// so a verifier callback that only carries (peer, job id) can recover the
// fee the candidate was originally gossiped with.
func (s *State) PendingInfo(peer types.PeerID, jobID types.JobID) (SnarkInfo, bool) {
	info, ok := s.pending[candidateKey{Peer: peer, JobID: jobID}]
	return info, ok
}

// --- Actions -------------------------------------------------------------

// CandidateReceivedAction records a newly-gossiped SnarkInfo, not yet
// verified.
type CandidateReceivedAction struct {
	action.Base
	Info SnarkInfo
}

// CandidateFetchInitAction marks one outstanding verification fetch for a
// peer's candidate.
type CandidateFetchInitAction struct {
	action.EffectfulBase
	Info SnarkInfo
}

// CandidateVerifiedAction graduates a verified candidate into the pool,
// admitting it only if it beats (or ties with a lower tie-breaker) any
// existing entry for the same job id (spec §4.7).
type CandidateVerifiedAction struct {
	action.Base
	Info SnarkInfo
}

// CandidateRejectedAction discards a candidate that failed verification or
// lost the fee/tie-breaker comparison.
type CandidateRejectedAction struct {
	action.Base
	Info SnarkInfo
}

// WorkPrunedAction removes pool entries whose job id no longer corresponds
// to a scan-state position (spec §4.2 phase 5 "Snark-pool jobs ... are
// pruned").
type WorkPrunedAction struct {
	action.Base
	JobIDs []types.JobID
}

// Reduce applies a snark-pool action to State.
func Reduce(s *State, a action.Action) {
	switch act := a.(type) {
	case CandidateReceivedAction:
		key := candidateKey{Peer: act.Info.Prover, JobID: act.Info.JobID}
		if s.seen != nil {
			s.seen.Add(key, struct{}{})
		}
	case CandidateFetchInitAction:
		s.candidates[act.Info.Prover]++
		s.pending[candidateKey{Peer: act.Info.Prover, JobID: act.Info.JobID}] = act.Info
	case CandidateVerifiedAction:
		s.candidates[act.Info.Prover]--
		delete(s.pending, candidateKey{Peer: act.Info.Prover, JobID: act.Info.JobID})
		admitIfBetter(s, act.Info)
	case CandidateRejectedAction:
		s.candidates[act.Info.Prover]--
		delete(s.pending, candidateKey{Peer: act.Info.Prover, JobID: act.Info.JobID})
	case WorkPrunedAction:
		for _, id := range act.JobIDs {
			delete(s.Pool, id)
		}
	}
}

// Effects issues a rate-limited fetch for each freshly-received candidate
// (spec §4.7): when the peer is already at its fetch window, the
// candidate is dropped rather than queued locally; it is fetched only if
// gossip redelivers it while the peer is under its window.
func Effects(s *State, a action.Action, d action.Dispatcher) {
	switch act := a.(type) {
	case CandidateReceivedAction:
		if !s.CanFetch(act.Info.Prover) {
			return
		}
		meta := action.NewMeta(KindCandidateFetchInit, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(CandidateFetchInitAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Info: act.Info})
	}
}

func ptr(m action.Meta) *action.Meta { return &m }

func admitIfBetter(s *State, info SnarkInfo) {
	tb := tieBreaker(info.JobID, info.Prover)
	existing, ok := s.Pool[info.JobID]
	if !ok {
		s.Pool[info.JobID] = Work{SnarkInfo: info, TieBreaker: tb}
		return
	}
	if info.Fee < existing.Fee {
		s.Pool[info.JobID] = Work{SnarkInfo: info, TieBreaker: tb}
		return
	}
	if info.Fee == existing.Fee && lessTieBreaker(tb, existing.TieBreaker) {
		s.Pool[info.JobID] = Work{SnarkInfo: info, TieBreaker: tb}
	}
}

func lessTieBreaker(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Ordered returns the pool's entries sorted by (job_id, tie_breaker_hash)
// for gossip (spec §4.7 "ordered for gossip").
func (s *State) Ordered() []Work {
	out := make([]Work, 0, len(s.Pool))
	for _, w := range s.Pool {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		ji, jj := out[i].JobID.String(), out[j].JobID.String()
		if ji != jj {
			return ji < jj
		}
		return lessTieBreaker(out[i].TieBreaker, out[j].TieBreaker)
	})
	return out
}
