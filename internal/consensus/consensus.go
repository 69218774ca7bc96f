// Package consensus tracks the best-tip block and resolves forks between
// the current best tip and a newly-verified candidate (spec §4.3):
// short-range forks compare blockchain length with a VRF-output
// tie-breaker, long-range forks compare staking-epoch lock checkpoints.
package consensus

import (
	"bytes"

	"mina-core/internal/action"
	"mina-core/internal/types"
)

// Kind constants for this subsystem.
const (
	KindCandidateBlockReceived action.Kind = action.KindConsensus + iota
	KindBestTipSwitched
	KindBestTipKept
)

// EpochData carries the staking-epoch fields needed for fork comparison
// (spec §4.3). LockCheckpoint identifies the last block of the previous
// epoch that both chains agree on.
type EpochData struct {
	EpochCount      uint32
	SlotInEpoch     uint32
	SlotsPerEpoch   uint32
	LockCheckpoint  types.BlockHash
}

// CandidateBlock is a peer-delivered, already-verified block header plus
// the consensus fields needed to compare it to the current best tip.
type CandidateBlock struct {
	Block             types.BlockWithHash
	BlockchainLength   uint64
	VRFOutput          [32]byte
	StakingEpochData   EpochData
	NextEpochData      EpochData
}

// State holds the best-tip hash and every candidate block seen, keyed by
// hash (spec §3 "consensus: best-tip hash plus map of candidate blocks").
type State struct {
	BestTip    types.BlockHash
	Candidates map[types.BlockHash]CandidateBlock
}

// NewState builds an empty consensus substate. genesis becomes the
// initial best tip.
func NewState(genesis types.BlockWithHash) *State {
	return &State{
		BestTip:    genesis.Hash,
		Candidates: map[types.BlockHash]CandidateBlock{genesis.Hash: {Block: genesis}},
	}
}

// --- Actions -------------------------------------------------------------

type CandidateBlockReceivedAction struct {
	action.Base
	Candidate CandidateBlock
}

// BestTipSwitchedAction is effectful: it triggers transition-frontier
// sync toward the new target (spec §4.3 "triggers transition-frontier
// sync to the new target").
type BestTipSwitchedAction struct {
	action.EffectfulBase
	NewTip types.BlockHash
}

type BestTipKeptAction struct {
	action.Base
	Rejected types.BlockHash
}

// Reduce records every candidate and, on BestTipSwitched, updates BestTip.
func Reduce(s *State, a action.Action) {
	switch act := a.(type) {
	case CandidateBlockReceivedAction:
		s.Candidates[act.Candidate.Block.Hash] = act.Candidate
	case BestTipSwitchedAction:
		s.BestTip = act.NewTip
	}
}

// Effects compares a newly-received candidate to the current best tip and
// dispatches BestTipSwitched or BestTipKept accordingly (spec §4.3).
func Effects(s *State, a action.Action, d action.Dispatcher) {
	switch act := a.(type) {
	case CandidateBlockReceivedAction:
		current, ok := s.Candidates[s.BestTip]
		if !ok {
			switchTo(d, act.ActionMeta(), act.Candidate.Block.Hash)
			return
		}
		if Resolve(current, act.Candidate) == ResolveSwitch {
			switchTo(d, act.ActionMeta(), act.Candidate.Block.Hash)
		} else {
			meta := action.NewMeta(KindBestTipKept, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(BestTipKeptAction{Base: action.Base{Meta: meta}, Rejected: act.Candidate.Block.Hash})
		}
	}
}

func switchTo(d action.Dispatcher, parent action.Meta, newTip types.BlockHash) {
	meta := action.NewMeta(KindBestTipSwitched, &parent, d.Now())
	d.Dispatch(BestTipSwitchedAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, NewTip: newTip})
}

func ptr(m action.Meta) *action.Meta { return &m }

// Resolution is the verdict of comparing two candidate chains.
type Resolution int

const (
	ResolveKeep Resolution = iota
	ResolveSwitch
)

// epochGap is the maximum epoch-count difference for a fork to still be
// considered "short-range" when the later block is deep enough into its
// epoch (spec §4.3 "one-epoch-apart with the later block past 2/3 of the
// epoch").
const epochGap = 1

// Resolve implements spec §4.3's fork-choice rule: short-range forks
// compare blockchain length with a VRF tie-breaker; long-range forks
// compare staking-epoch lock checkpoints with a deterministic byte-level
// tie-breaker.
func Resolve(current, candidate CandidateBlock) Resolution {
	if isShortRange(current, candidate) {
		if candidate.BlockchainLength > current.BlockchainLength {
			return ResolveSwitch
		}
		if candidate.BlockchainLength < current.BlockchainLength {
			return ResolveKeep
		}
		if bytes.Compare(candidate.VRFOutput[:], current.VRFOutput[:]) > 0 {
			return ResolveSwitch
		}
		return ResolveKeep
	}
	return resolveLongRange(current, candidate)
}

func isShortRange(current, candidate CandidateBlock) bool {
	ce, se := current.StakingEpochData.EpochCount, candidate.StakingEpochData.EpochCount
	if ce == se {
		return true
	}
	diff := int64(se) - int64(ce)
	if diff < 0 {
		diff = -diff
	}
	if diff != epochGap {
		return false
	}
	later := current
	if se > ce {
		later = candidate
	}
	return uint64(later.StakingEpochData.SlotInEpoch)*3 > uint64(later.StakingEpochData.SlotsPerEpoch)*2
}

func resolveLongRange(current, candidate CandidateBlock) Resolution {
	cmp := bytes.Compare(candidate.StakingEpochData.LockCheckpoint[:], current.StakingEpochData.LockCheckpoint[:])
	if cmp > 0 {
		return ResolveSwitch
	}
	if cmp < 0 {
		return ResolveKeep
	}
	// Identical lock checkpoints: fall back to blockchain length, then the
	// same deterministic byte-level comparison of the block hash itself.
	if candidate.BlockchainLength != current.BlockchainLength {
		if candidate.BlockchainLength > current.BlockchainLength {
			return ResolveSwitch
		}
		return ResolveKeep
	}
	if bytes.Compare(candidate.Block.Hash[:], current.Block.Hash[:]) > 0 {
		return ResolveSwitch
	}
	return ResolveKeep
}
