package consensus

import (
	"testing"

	"mina-core/internal/types"
)

func blockWithHash(b byte) types.BlockWithHash {
	var h types.BlockHash
	h[0] = b
	return types.BlockWithHash{Hash: h}
}

func TestResolveShortRangeByLength(t *testing.T) {
	current := CandidateBlock{Block: blockWithHash(1), BlockchainLength: 10}
	candidate := CandidateBlock{Block: blockWithHash(2), BlockchainLength: 11}

	if Resolve(current, candidate) != ResolveSwitch {
		t.Fatalf("expected switch to longer chain")
	}
	if Resolve(candidate, current) != ResolveKeep {
		t.Fatalf("expected keep when candidate is shorter")
	}
}

func TestResolveShortRangeVRFTieBreak(t *testing.T) {
	current := CandidateBlock{Block: blockWithHash(1), BlockchainLength: 10, VRFOutput: [32]byte{0x01}}
	candidate := CandidateBlock{Block: blockWithHash(2), BlockchainLength: 10, VRFOutput: [32]byte{0x02}}

	if Resolve(current, candidate) != ResolveSwitch {
		t.Fatalf("expected switch on higher VRF output at equal length")
	}
}

func TestResolveLongRangeByLockCheckpoint(t *testing.T) {
	current := CandidateBlock{
		Block:            blockWithHash(1),
		StakingEpochData: EpochData{EpochCount: 0, LockCheckpoint: types.BlockHash{0x01}},
	}
	candidate := CandidateBlock{
		Block:            blockWithHash(2),
		StakingEpochData: EpochData{EpochCount: 5, LockCheckpoint: types.BlockHash{0x02}},
	}

	if Resolve(current, candidate) != ResolveSwitch {
		t.Fatalf("expected switch on higher lock checkpoint in long-range fork")
	}
}

func TestIsShortRangeWithinTwoThirdsEpoch(t *testing.T) {
	current := CandidateBlock{StakingEpochData: EpochData{EpochCount: 0}}
	candidate := CandidateBlock{StakingEpochData: EpochData{EpochCount: 1, SlotInEpoch: 700, SlotsPerEpoch: 1000}}

	if !isShortRange(current, candidate) {
		t.Fatalf("expected one-epoch-apart block past 2/3 to be short-range")
	}

	candidate.StakingEpochData.SlotInEpoch = 500
	if isShortRange(current, candidate) {
		t.Fatalf("expected one-epoch-apart block before 2/3 to be long-range")
	}
}
