package snarkverify

import (
	"testing"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/types"
)

func TestBlockVerifyLifecycle(t *testing.T) {
	s := NewState()
	meta := action.NewMeta(KindBlockVerifyInit, nil, time.Now())
	init := NewBlockVerifyInit(meta, "peerA", types.BlockWithHash{})

	Reduce(s, init)

	if s.BlockVerify.Len() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", s.BlockVerify.Len())
	}
	id := *init.assignedID
	if id == 0 {
		t.Fatalf("expected a non-zero assigned id")
	}

	success := BlockVerifySuccessAction{Base: action.Base{Meta: action.NewMeta(KindBlockVerifySuccess, &meta, time.Now())}, ReqID: id}
	Reduce(s, success)

	e, ok := s.BlockVerify.Get(id)
	if !ok {
		t.Fatalf("expected entry to remain until Finish")
	}
	if e.Status != StatusSucceeded {
		t.Fatalf("expected StatusSucceeded, got %v", e.Status)
	}

	finish := BlockVerifyFinishAction{Base: action.Base{Meta: action.NewMeta(KindBlockVerifyFinish, &meta, time.Now())}, ReqID: id}
	Reduce(s, finish)

	if s.BlockVerify.Len() != 0 {
		t.Fatalf("expected table empty after Finish, got %d entries", s.BlockVerify.Len())
	}
}

func TestWorkVerifyIdsMonotonic(t *testing.T) {
	s := NewState()
	meta := action.NewMeta(KindWorkVerifyInit, nil, time.Now())

	first := NewWorkVerifyInit(meta, "peerA", []types.JobID{{}})
	Reduce(s, first)
	second := NewWorkVerifyInit(meta, "peerB", []types.JobID{{}})
	Reduce(s, second)

	if *second.assignedID <= *first.assignedID {
		t.Fatalf("expected strictly increasing ids, got %d then %d", *first.assignedID, *second.assignedID)
	}
}

func TestErrorKindAttributable(t *testing.T) {
	if !ErrVerificationFailed.Attributable() {
		t.Fatalf("expected VerificationFailed to be attributable")
	}
	if ErrValidatorThreadCrashed.Attributable() {
		t.Fatalf("expected ValidatorThreadCrashed to not be attributable")
	}
}
