// Package snarkverify implements the three pending-request tables that
// coordinate asynchronous proof verification (spec §4.6): block-verify,
// work-verify, and user-command-verify. Each follows the same Init →
// Pending → Success|Error → Finish skeleton built on reqreg.Table,
// mirroring how the p2p channels package reuses one small state-machine
// shape across several protocols.
package snarkverify

import (
	"time"

	"mina-core/internal/action"
	"mina-core/internal/fatal"
	"mina-core/internal/reqreg"
	"mina-core/internal/types"
)

// Kind constants for this subsystem.
const (
	KindBlockVerifyInit action.Kind = action.KindSnarkBase + iota
	KindBlockVerifySuccess
	KindBlockVerifyError
	KindBlockVerifyFinish
	KindWorkVerifyInit
	KindWorkVerifySuccess
	KindWorkVerifyError
	KindWorkVerifyFinish
	KindUserCommandVerifyInit
	KindUserCommandVerifySuccess
	KindUserCommandVerifyError
	KindUserCommandVerifyFinish
)

// ErrorKind distinguishes attributable verification failures from
// infrastructure crashes (spec §7).
type ErrorKind int

const (
	ErrAccumulatorCheckFailed ErrorKind = iota
	ErrVerificationFailed
	ErrValidatorThreadCrashed
)

// Attributable reports whether the error should degrade the sender's
// reputation / trigger disconnection (spec §4.6 "On error").
func (k ErrorKind) Attributable() bool {
	return k == ErrAccumulatorCheckFailed || k == ErrVerificationFailed
}

// reqStatus is shared by all three tables.
type reqStatus int

const (
	StatusPending reqStatus = iota
	StatusSucceeded
	StatusErrored
)

// BlockTag, WorkTag, UserCommandTag are phantom markers giving each
// table's request ids a distinct Go type (spec §3 "typed map
// RequestId<Kind> -> RequestState").
type BlockTag struct{}
type WorkTag struct{}
type UserCommandTag struct{}

// Entry is the pending-request payload common to all three tables: the
// sender peer (for reputation/disconnect on failure), submission time,
// and current status. Block and JobIDs carry the payload the request was
// opened with, so the Success callback has something to hand the
// consensus/snarkpool subsystems instead of a zero value.
type Entry struct {
	Sender    types.PeerID
	Kind      string // human label of the payload kind, logging only
	Count     int    // number of items in the batch (work/user-command)
	Block     types.BlockWithHash
	JobIDs    []types.JobID
	SubmitAt  time.Time
	Status    reqStatus
	ErrorKind ErrorKind
}

// State bundles the three pending-request tables (spec §3 "snark: {
// block_verify, work_verify, user_command_verify }").
type State struct {
	BlockVerify        *reqreg.Table[BlockTag, *Entry]
	WorkVerify         *reqreg.Table[WorkTag, *Entry]
	UserCommandVerify  *reqreg.Table[UserCommandTag, *Entry]
}

// NewState builds empty verification tables.
func NewState() *State {
	return &State{
		BlockVerify:       reqreg.NewTable[BlockTag, *Entry](),
		WorkVerify:        reqreg.NewTable[WorkTag, *Entry](),
		UserCommandVerify: reqreg.NewTable[UserCommandTag, *Entry](),
	}
}

// Service is the §6 verifier boundary: verify_init for each payload kind,
// batched for work and user commands, single-item for blocks.
type Service interface {
	VerifyBlockInit(reqID reqreg.ID[BlockTag], sender types.PeerID, block types.BlockWithHash) error
	VerifyWorkInit(reqID reqreg.ID[WorkTag], sender types.PeerID, jobIDs []types.JobID) error
	VerifyUserCommandInit(reqID reqreg.ID[UserCommandTag], sender types.PeerID, commandCount int) error
}

// --- Actions -------------------------------------------------------------

// BlockVerifyInitAction carries an out-param pointer that Reduce fills in
// with the id it allocated, so that Effects (which runs immediately after
// Reduce on the same dispatched value) knows which request to submit to
// the verifier service without recomputing it from table internals.
type BlockVerifyInitAction struct {
	action.EffectfulBase
	Sender     types.PeerID
	Block      types.BlockWithHash
	assignedID *reqreg.ID[BlockTag]
}

// NewBlockVerifyInit builds a BlockVerifyInitAction ready to dispatch.
func NewBlockVerifyInit(meta action.Meta, sender types.PeerID, block types.BlockWithHash) BlockVerifyInitAction {
	return BlockVerifyInitAction{
		EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}},
		Sender:        sender,
		Block:         block,
		assignedID:    new(reqreg.ID[BlockTag]),
	}
}

type BlockVerifySuccessAction struct {
	action.Base
	ReqID reqreg.ID[BlockTag]
}

type BlockVerifyErrorAction struct {
	action.Base
	ReqID reqreg.ID[BlockTag]
	Kind  ErrorKind
}

type BlockVerifyFinishAction struct {
	action.Base
	ReqID reqreg.ID[BlockTag]
}

type WorkVerifyInitAction struct {
	action.EffectfulBase
	Sender     types.PeerID
	JobIDs     []types.JobID
	assignedID *reqreg.ID[WorkTag]
}

// NewWorkVerifyInit builds a WorkVerifyInitAction ready to dispatch.
func NewWorkVerifyInit(meta action.Meta, sender types.PeerID, jobIDs []types.JobID) WorkVerifyInitAction {
	return WorkVerifyInitAction{
		EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}},
		Sender:        sender,
		JobIDs:        jobIDs,
		assignedID:    new(reqreg.ID[WorkTag]),
	}
}

type WorkVerifySuccessAction struct {
	action.Base
	ReqID reqreg.ID[WorkTag]
}

type WorkVerifyErrorAction struct {
	action.Base
	ReqID reqreg.ID[WorkTag]
	Kind  ErrorKind
}

type WorkVerifyFinishAction struct {
	action.Base
	ReqID reqreg.ID[WorkTag]
}

type UserCommandVerifyInitAction struct {
	action.EffectfulBase
	Sender     types.PeerID
	Count      int
	assignedID *reqreg.ID[UserCommandTag]
}

// NewUserCommandVerifyInit builds a UserCommandVerifyInitAction ready to
// dispatch.
func NewUserCommandVerifyInit(meta action.Meta, sender types.PeerID, count int) UserCommandVerifyInitAction {
	return UserCommandVerifyInitAction{
		EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}},
		Sender:        sender,
		Count:         count,
		assignedID:    new(reqreg.ID[UserCommandTag]),
	}
}

type UserCommandVerifySuccessAction struct {
	action.Base
	ReqID reqreg.ID[UserCommandTag]
}

type UserCommandVerifyErrorAction struct {
	action.Base
	ReqID reqreg.ID[UserCommandTag]
	Kind  ErrorKind
}

type UserCommandVerifyFinishAction struct {
	action.Base
	ReqID reqreg.ID[UserCommandTag]
}

// Reduce applies a verification action to State. Init is the only action
// that allocates a request id: it calls Insert, which enforces spec §4.6's
// "req_id == next_req_id" invariant by construction, and stamps the
// allocated id back into the action so Effects can use it without a
// second table lookup.
func Reduce(s *State, a action.Action) {
	switch act := a.(type) {
	case BlockVerifyInitAction:
		*act.assignedID = s.BlockVerify.Insert(&Entry{Sender: act.Sender, Kind: "block", Count: 1, Block: act.Block, SubmitAt: act.ActionMeta().Time, Status: StatusPending})
	case BlockVerifySuccessAction:
		transition(s.BlockVerify, act.ReqID, StatusSucceeded, 0)
	case BlockVerifyErrorAction:
		transition(s.BlockVerify, act.ReqID, StatusErrored, act.Kind)
	case BlockVerifyFinishAction:
		finish(s.BlockVerify, act.ReqID)

	case WorkVerifyInitAction:
		*act.assignedID = s.WorkVerify.Insert(&Entry{Sender: act.Sender, Kind: "work", Count: len(act.JobIDs), JobIDs: act.JobIDs, SubmitAt: act.ActionMeta().Time, Status: StatusPending})
	case WorkVerifySuccessAction:
		transition(s.WorkVerify, act.ReqID, StatusSucceeded, 0)
	case WorkVerifyErrorAction:
		transition(s.WorkVerify, act.ReqID, StatusErrored, act.Kind)
	case WorkVerifyFinishAction:
		finish(s.WorkVerify, act.ReqID)

	case UserCommandVerifyInitAction:
		*act.assignedID = s.UserCommandVerify.Insert(&Entry{Sender: act.Sender, Kind: "user_command", Count: act.Count, SubmitAt: act.ActionMeta().Time, Status: StatusPending})
	case UserCommandVerifySuccessAction:
		transition(s.UserCommandVerify, act.ReqID, StatusSucceeded, 0)
	case UserCommandVerifyErrorAction:
		transition(s.UserCommandVerify, act.ReqID, StatusErrored, act.Kind)
	case UserCommandVerifyFinishAction:
		finish(s.UserCommandVerify, act.ReqID)
	}
}

func transition[K any](t *reqreg.Table[K, *Entry], id reqreg.ID[K], status reqStatus, errKind ErrorKind) {
	e, ok := t.Get(id)
	if !ok {
		return
	}
	fatal.Assert(e.Status == StatusPending, "snarkverify: %v transitioned while not pending", id)
	e.Status = status
	e.ErrorKind = errKind
}

func finish[K any](t *reqreg.Table[K, *Entry], id reqreg.ID[K]) {
	e, ok := t.Get(id)
	if !ok {
		return
	}
	fatal.Assert(e.Status != StatusPending, "snarkverify: Finish on still-pending request %v", id)
	t.Remove(id)
}

// Callbacks is implemented by the consensus/snarkpool/rpc subsystems to
// react to a verification outcome without snarkverify importing them
// directly (spec §4.6 "the registered callback fires").
type Callbacks interface {
	OnBlockVerified(sender types.PeerID, block types.BlockWithHash)
	OnWorkVerified(sender types.PeerID, jobIDs []types.JobID)
	OnUserCommandVerified(sender types.PeerID, count int)
	OnVerifyFailed(sender types.PeerID, kind ErrorKind)
}

// Effects submits newly-inited requests to the verifier service and, on
// pending Success/Error actions already reduced, invokes the matching
// callback then dispatches Finish to prune the entry (spec §4.6).
func Effects(s *State, a action.Action, d action.Dispatcher, svc Service, cb Callbacks) {
	switch act := a.(type) {
	case BlockVerifyInitAction:
		_ = svc.VerifyBlockInit(*act.assignedID, act.Sender, act.Block)

	case BlockVerifySuccessAction:
		if e, ok := s.BlockVerify.Get(act.ReqID); ok {
			cb.OnBlockVerified(e.Sender, e.Block)
		}
		dispatchFinish(d, KindBlockVerifyFinish, act.ActionMeta(), func(meta action.Meta) action.Action {
			return BlockVerifyFinishAction{Base: action.Base{Meta: meta}, ReqID: act.ReqID}
		})
	case BlockVerifyErrorAction:
		if e, ok := s.BlockVerify.Get(act.ReqID); ok {
			cb.OnVerifyFailed(e.Sender, act.Kind)
		}
		dispatchFinish(d, KindBlockVerifyFinish, act.ActionMeta(), func(meta action.Meta) action.Action {
			return BlockVerifyFinishAction{Base: action.Base{Meta: meta}, ReqID: act.ReqID}
		})

	case WorkVerifyInitAction:
		_ = svc.VerifyWorkInit(*act.assignedID, act.Sender, act.JobIDs)
	case WorkVerifySuccessAction:
		if e, ok := s.WorkVerify.Get(act.ReqID); ok {
			cb.OnWorkVerified(e.Sender, e.JobIDs)
		}
		dispatchFinish(d, KindWorkVerifyFinish, act.ActionMeta(), func(meta action.Meta) action.Action {
			return WorkVerifyFinishAction{Base: action.Base{Meta: meta}, ReqID: act.ReqID}
		})
	case WorkVerifyErrorAction:
		if e, ok := s.WorkVerify.Get(act.ReqID); ok {
			cb.OnVerifyFailed(e.Sender, act.Kind)
		}
		dispatchFinish(d, KindWorkVerifyFinish, act.ActionMeta(), func(meta action.Meta) action.Action {
			return WorkVerifyFinishAction{Base: action.Base{Meta: meta}, ReqID: act.ReqID}
		})

	case UserCommandVerifyInitAction:
		_ = svc.VerifyUserCommandInit(*act.assignedID, act.Sender, act.Count)
	case UserCommandVerifySuccessAction:
		if e, ok := s.UserCommandVerify.Get(act.ReqID); ok {
			cb.OnUserCommandVerified(e.Sender, e.Count)
		}
		dispatchFinish(d, KindUserCommandVerifyFinish, act.ActionMeta(), func(meta action.Meta) action.Action {
			return UserCommandVerifyFinishAction{Base: action.Base{Meta: meta}, ReqID: act.ReqID}
		})
	case UserCommandVerifyErrorAction:
		if e, ok := s.UserCommandVerify.Get(act.ReqID); ok {
			cb.OnVerifyFailed(e.Sender, act.Kind)
		}
		dispatchFinish(d, KindUserCommandVerifyFinish, act.ActionMeta(), func(meta action.Meta) action.Action {
			return UserCommandVerifyFinishAction{Base: action.Base{Meta: meta}, ReqID: act.ReqID}
		})
	}
}

func dispatchFinish(d action.Dispatcher, kind action.Kind, parent action.Meta, build func(action.Meta) action.Action) {
	meta := action.NewMeta(kind, &parent, d.Now())
	d.Dispatch(build(meta))
}
