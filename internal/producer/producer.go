// Package producer implements the block-producer lifecycle (spec §4.8):
// on a VRF-won slot, build a staged-ledger diff from the pools, apply it,
// assemble a block, invoke block-prove, and broadcast on success.
package producer

import (
	"mina-core/internal/action"
	"mina-core/internal/types"
)

// Kind constants for this subsystem.
const (
	KindSlotWon action.Kind = action.KindProducer + iota
	KindDiffBuilt
	KindApplySuccess
	KindApplyError
	KindProveInit
	KindProveSuccess
	KindProveError
	KindBroadcast
)

// Phase is the producer's own small state machine: inert between slots,
// then progressing once a slot is won (spec §4.8 "the producer is
// otherwise inert").
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuildingDiff
	PhaseApplyingDiff
	PhaseProving
	PhaseBroadcasting
)

// SlotWon carries the VRF evaluation result for a won slot.
type SlotWon struct {
	Slot      uint32
	VRFOutput [32]byte
}

// State is the block-producer substate.
type State struct {
	Phase   Phase
	Current *SlotWon
	Diff    []byte // opaque staged-ledger-diff payload
	Block   *types.BlockWithHash
}

// NewState builds an idle producer.
func NewState() *State { return &State{Phase: PhaseIdle} }

// Ledger is the §6 ledger-service contract this module drives to apply a
// diff and obtain the candidate staged ledger.
type Ledger interface {
	ApplyDiff(diff []byte) (types.BlockWithHash, error)
}

// Prover is the §6 block-prove service.
type Prover interface {
	Prove(blockHash types.BlockHash, input []byte) error
}

// Broadcaster is the §6 broadcast surface: best-tip channel and/or
// meshsub topic.
type Broadcaster interface {
	BroadcastBlock(block types.BlockWithHash) error
}

// PoolSource supplies the transaction/snark pools to build a diff from.
type PoolSource interface {
	BuildDiff(slot SlotWon) []byte
}

// --- Actions -------------------------------------------------------------

type SlotWonAction struct {
	action.EffectfulBase
	Won SlotWon
}

type DiffBuiltAction struct {
	action.EffectfulBase
	Diff []byte
}

type ApplySuccessAction struct {
	action.Base
	Block types.BlockWithHash
}

type ApplyErrorAction struct {
	action.Base
}

type ProveInitAction struct {
	action.EffectfulBase
}

type ProveSuccessAction struct {
	action.EffectfulBase
}

type ProveErrorAction struct {
	action.Base
}

// Reduce applies a producer action to State.
func Reduce(s *State, a action.Action) {
	switch act := a.(type) {
	case SlotWonAction:
		s.Phase = PhaseBuildingDiff
		won := act.Won
		s.Current = &won
	case DiffBuiltAction:
		s.Phase = PhaseApplyingDiff
		s.Diff = act.Diff
	case ApplySuccessAction:
		s.Phase = PhaseProving
		block := act.Block
		s.Block = &block
	case ApplyErrorAction:
		s.Phase = PhaseIdle
		s.Current = nil
	case ProveSuccessAction:
		s.Phase = PhaseBroadcasting
	case ProveErrorAction:
		s.Phase = PhaseIdle
		s.Current = nil
	}
}

// Effects drives the producer pipeline through the pool/ledger/prover/
// broadcaster services (spec §4.8).
func Effects(s *State, a action.Action, d action.Dispatcher, pool PoolSource, ledger Ledger, prover Prover, bcast Broadcaster) {
	switch act := a.(type) {
	case SlotWonAction:
		diff := pool.BuildDiff(act.Won)
		meta := action.NewMeta(KindDiffBuilt, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(DiffBuiltAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Diff: diff})

	case DiffBuiltAction:
		block, err := ledger.ApplyDiff(act.Diff)
		if err != nil {
			meta := action.NewMeta(KindApplyError, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(ApplyErrorAction{Base: action.Base{Meta: meta}})
			return
		}
		meta := action.NewMeta(KindApplySuccess, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(ApplySuccessAction{Base: action.Base{Meta: meta}, Block: block})

	case ApplySuccessAction:
		meta := action.NewMeta(KindProveInit, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(ProveInitAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}})

	case ProveInitAction:
		if s.Block == nil {
			return
		}
		if err := prover.Prove(s.Block.Hash, nil); err != nil {
			meta := action.NewMeta(KindProveError, ptr(act.ActionMeta()), d.Now())
			d.Dispatch(ProveErrorAction{Base: action.Base{Meta: meta}})
			return
		}
		meta := action.NewMeta(KindProveSuccess, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(ProveSuccessAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}})

	case ProveSuccessAction:
		if s.Block == nil {
			return
		}
		_ = bcast.BroadcastBlock(*s.Block)
	}
}

func ptr(m action.Meta) *action.Meta { return &m }
