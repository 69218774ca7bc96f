package watched

import (
	"testing"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/types"
)

func TestWatchUnwatch(t *testing.T) {
	s := NewState()
	meta := action.NewMeta(KindAccountWatched, nil, time.Now())
	addr := types.Address{0x01}

	Reduce(s, AccountWatchedAction{Base: action.Base{Meta: meta}, Address: addr})
	if _, ok := s.Accounts[addr]; !ok {
		t.Fatalf("expected account to be watched")
	}

	Reduce(s, AccountUnwatchedAction{Base: action.Base{Meta: meta}, Address: addr})
	if _, ok := s.Accounts[addr]; ok {
		t.Fatalf("expected account to be unwatched")
	}
}

func TestBlockObservedUpdatesView(t *testing.T) {
	s := NewState()
	meta := action.NewMeta(KindAccountWatched, nil, time.Now())
	addr := types.Address{0x02}
	Reduce(s, AccountWatchedAction{Base: action.Base{Meta: meta}, Address: addr})

	blockHash := types.BlockHash{0x09}
	Reduce(s, BlockObservedAction{
		Base:  action.Base{Meta: meta},
		Block: blockHash,
		Deltas: []AccountDelta{
			{Address: addr, BalanceAfter: 500, NonceAfter: 3, TxCountDelta: 2},
		},
	})

	view := s.Accounts[addr]
	if view.Balance != 500 || view.Nonce != 3 || view.TxCount != 2 || view.LastBlock != blockHash {
		t.Fatalf("unexpected view after BlockObserved: %+v", view)
	}
}
