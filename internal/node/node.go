// Package node composes every subsystem substate into the single root
// State driven by one Store (spec §3 "Root State", §5 "a single logical
// event loop driving one Store"). Each subsystem keeps its own Reduce/
// Effects pair operating only on its own substate and the narrow
// action.Dispatcher interface; this package's Reduce/Effects simply fan
// a dispatched action out to every subsystem in turn — harmless for the
// subsystems that don't recognize the action's concrete type, since each
// subsystem's own Reduce is a type switch that falls through silently.
package node

import (
	"mina-core/internal/action"
	"mina-core/internal/consensus"
	"mina-core/internal/frontier"
	"mina-core/internal/p2p"
	"mina-core/internal/producer"
	"mina-core/internal/snarkpool"
	"mina-core/internal/snarkverify"
	"mina-core/internal/store"
	"mina-core/internal/watched"
)

// State is the process-wide root state (spec §3).
type State struct {
	P2P       *p2p.State
	Snark     *snarkverify.State
	SnarkPool *snarkpool.State
	Frontier  *frontier.State
	Consensus *consensus.State
	Producer  *producer.State
	Watched   *watched.State
}

// Services bundles every external collaborator the root Effects function
// needs to hand subsystem Effects calls (spec §6 "trait Service: EventSource
// + P2p + SnarkVerify + LedgerService + BlockProducer + Rpc" — the Go
// rendition is a plain struct of interfaces rather than a single trait
// object, since Go has no multiple-trait-object composition).
type Services struct {
	P2P            p2p.Service
	Verify         snarkverify.Service
	VerifyCallback snarkverify.Callbacks
	Ledger         frontier.Ledger
	PeerFetch      frontier.PeerFetch
	ProducerLedger producer.Ledger
	Prover         producer.Prover
	Broadcaster    producer.Broadcaster
	PoolSource     producer.PoolSource
}

// Reduce fans a is out to every subsystem's own Reduce (spec §4.1 step 2).
func Reduce(s *State, a action.Action) {
	p2p.Reduce(s.P2P, a)
	snarkverify.Reduce(s.Snark, a)
	snarkpool.Reduce(s.SnarkPool, a)
	frontier.Reduce(s.Frontier, a)
	consensus.Reduce(s.Consensus, a)
	producer.Reduce(s.Producer, a)
	watched.Reduce(s.Watched, a)
}

// NewEffects closes over svc and returns the store.Effects[State] value
// passed to store.New, fanning effects out to every subsystem in turn
// (spec §4.1 step 3). Each call receives d itself, which already
// implements action.Dispatcher structurally.
func NewEffects(svc Services) store.Effects[State] {
	return func(s *State, a action.Action, d *store.Dispatcher[State]) {
		p2p.Effects(s.P2P, a, d, svc.P2P)
		snarkverify.Effects(s.Snark, a, d, svc.Verify, svc.VerifyCallback)
		snarkpool.Effects(s.SnarkPool, a, d)
		frontier.Effects(s.Frontier, a, d, svc.Ledger, svc.PeerFetch)
		consensus.Effects(s.Consensus, a, d)
		producer.Effects(s.Producer, a, d, svc.PoolSource, svc.ProducerLedger, svc.Prover, svc.Broadcaster)
	}
}

// New builds a Store[State] wired with every subsystem reducer/effects
// and the given Services bundle. It passes a nil clock to store.New, so
// the system clock is used.
func New(initial *State, svc Services) *store.Store[State] {
	return store.New(initial, Reduce, NewEffects(svc), nil, nil)
}
