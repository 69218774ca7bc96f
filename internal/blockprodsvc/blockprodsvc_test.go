package blockprodsvc

import (
	"encoding/binary"
	"testing"

	"mina-core/internal/producer"
	"mina-core/internal/snarkpool"
	"mina-core/internal/types"
)

func TestPoolAdapterBuildDiffEncodesSlot(t *testing.T) {
	pool := NewPoolAdapter(snarkpool.NewState())
	diff := pool.BuildDiff(producer.SlotWon{Slot: 42})
	if len(diff) < 4 {
		t.Fatalf("expected at least 4 bytes for the slot header, got %d", len(diff))
	}
	if got := binary.BigEndian.Uint32(diff[:4]); got != 42 {
		t.Fatalf("expected the slot header to encode 42, got %d", got)
	}
}

func TestProverRejectsZeroBlockHash(t *testing.T) {
	p := NewProver()
	if err := p.Prove(types.BlockHash{}, nil); err == nil {
		t.Fatalf("expected error for zero block hash")
	}
	if err := p.Prove(types.BlockHash{0x01}, []byte("input")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
