// Package watched maintains per-account derived views over applied
// blocks (spec §3 "watched_accounts: per-account derived state"): an
// operator registers accounts of interest, and each committed block
// apply updates the balance/nonce/transaction history visible through the
// RPC surface without the caller needing to re-scan the whole ledger.
package watched

import (
	"mina-core/internal/action"
	"mina-core/internal/types"
)

// Kind constants for this subsystem.
const (
	KindAccountWatched action.Kind = action.KindWatched + iota
	KindAccountUnwatched
	KindBlockObserved
)

// AccountView is the derived per-account state exposed to RPC.
type AccountView struct {
	Address      types.Address
	Balance      uint64
	Nonce        uint64
	LastBlock    types.BlockHash
	TxCount      uint64
}

// State maps watched addresses to their latest derived view.
type State struct {
	Accounts map[types.Address]*AccountView
}

// NewState builds an empty watch set.
func NewState() *State { return &State{Accounts: make(map[types.Address]*AccountView)} }

// AccountDelta is one account's change induced by a newly-applied block,
// as surfaced by the ledger service.
type AccountDelta struct {
	Address       types.Address
	BalanceAfter  uint64
	NonceAfter    uint64
	TxCountDelta  uint64
}

// --- Actions -------------------------------------------------------------

type AccountWatchedAction struct {
	action.Base
	Address types.Address
}

type AccountUnwatchedAction struct {
	action.Base
	Address types.Address
}

type BlockObservedAction struct {
	action.Base
	Block   types.BlockHash
	Deltas  []AccountDelta
}

// Reduce applies a watched-accounts action to State.
func Reduce(s *State, a action.Action) {
	switch act := a.(type) {
	case AccountWatchedAction:
		if _, ok := s.Accounts[act.Address]; !ok {
			s.Accounts[act.Address] = &AccountView{Address: act.Address}
		}
	case AccountUnwatchedAction:
		delete(s.Accounts, act.Address)
	case BlockObservedAction:
		for _, delta := range act.Deltas {
			view, ok := s.Accounts[delta.Address]
			if !ok {
				continue
			}
			view.Balance = delta.BalanceAfter
			view.Nonce = delta.NonceAfter
			view.LastBlock = act.Block
			view.TxCount += delta.TxCountDelta
		}
	}
}
