// Package action defines the tagged action algebra that drives every state
// transition in the node: networking callbacks, timer expiry, RPC
// responses, and proof-verification completions all enter the system as a
// value implementing Action.
package action

import "time"

// Kind tags an action's variant for stats, logging, and the no-recursion
// invariant (spec §4.1, §8 property 3). New subsystems register their own
// Kind ranges; see the Kind constants declared alongside each subsystem's
// action types (p2p, snarkverify, frontier, consensus, ...).
type Kind uint32

// Kind ranges. Each subsystem owns a contiguous block so kinds never
// collide without a central registry becoming a bottleneck.
const (
	KindNone         Kind = 0
	KindP2PBase      Kind = 1000
	KindSnarkBase    Kind = 2000
	KindSnarkPool    Kind = 2500
	KindFrontierBase Kind = 3000
	KindConsensus    Kind = 4000
	KindProducer     Kind = 5000
	KindWatched      Kind = 6000
	KindRPC          Kind = 7000
	KindLedger       Kind = 8000
)

// Meta is carried by every action: a monotonic wall-clock timestamp, the
// action's Kind, and its Depth within the current action chain (spec §4.1).
type Meta struct {
	Time  time.Time
	Kind  Kind
	Depth uint32
}

// Action is implemented by every pure or effectful action variant. Effect
// variants additionally implement Effectful so the dispatcher can route
// them to the service bundle without reflection.
type Action interface {
	ActionMeta() Meta
}

// Effectful marks an action as only producible from the effects phase and
// only consumable at a service boundary — never from a reducer.
type Effectful interface {
	Action
	effectfulMarker()
}

// Base embeds into concrete action structs to supply ActionMeta().
type Base struct {
	Meta Meta
}

func (b Base) ActionMeta() Meta { return b.Meta }

// EffectfulBase embeds into concrete effectful action structs.
type EffectfulBase struct {
	Base
}

func (EffectfulBase) effectfulMarker() {}

// NewMeta builds the metadata for an action chained from parent (nil for a
// root action coming from the event source).
func NewMeta(kind Kind, parent *Meta, now time.Time) Meta {
	depth := uint32(0)
	if parent != nil {
		depth = parent.Depth + 1
	}
	return Meta{Time: now, Kind: kind, Depth: depth}
}

// Dispatcher is the narrow interface subsystem Effects functions use to
// dispatch follow-up actions, satisfied by store.Dispatcher[S] for whatever
// root state type S the node composes. Keeping this interface here (rather
// than subsystems importing the generic store.Dispatcher[RootState]) lets
// every subsystem package stay independent of the root State type.
type Dispatcher interface {
	// Dispatch runs the action through reduce and then effects, exactly as
	// Store.Dispatch does for root actions (spec §4.1).
	Dispatch(a Action) bool
	// Now returns the dispatcher's clock, shared with the owning Store so
	// that a chain of actions stamps consistent timestamps.
	Now() time.Time
	// ParentMeta returns the Meta of the action whose effects are
	// currently dispatching this follow-up, so NewMeta can compute Depth.
	ParentMeta() Meta
}

