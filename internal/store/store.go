// Package store implements the Store: the single-threaded cooperative
// reducer/effects kernel described in spec §4.1 and §5. A Store owns State
// exclusively; every mutation happens inside Dispatch while no other
// component observes a partially-updated State.
package store

import (
	"sync"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/fatal"

	log "github.com/sirupsen/logrus"
)

// Reducer applies a pure transition: state' = reduce(state, a). It must
// never perform I/O (spec §8 property 1).
type Reducer[S any] func(s *S, a action.Action)

// Effects inspects state after a reducer ran and dispatches any effectful
// actions implied by the new state, by calling back into Dispatch.
type Effects[S any] func(s *S, a action.Action, d *Dispatcher[S])

// EnablingCheck reports whether an action is allowed to run against the
// current state. Actions that fail this check are dropped and logged
// (spec §4.1 step 1).
type EnablingCheck[S any] func(s *S, a action.Action) bool

// ChainGuard enforces spec §4.1's no-recursion invariant: dispatching an
// action whose Kind already appears on the current chain's stack is a bug.
type ChainGuard struct {
	mu    sync.Mutex
	stack []action.Kind
}

func (g *ChainGuard) push(k action.Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.stack {
		fatal.Assert(existing != k, "action-chain recursion: kind %d already on stack %v", k, g.stack)
	}
	g.stack = append(g.stack, k)
}

func (g *ChainGuard) pop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stack = g.stack[:len(g.stack)-1]
}

// Stats counts dispatched/rejected actions per kind, for diagnostics.
type Stats struct {
	mu       sync.Mutex
	Total    uint64
	Rejected uint64
	ByKind   map[action.Kind]uint64
}

func newStats() *Stats { return &Stats{ByKind: make(map[action.Kind]uint64)} }

func (s *Stats) recordApplied(k action.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	s.ByKind[k]++
}

func (s *Stats) recordRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rejected++
}

// Store bundles pure state with the reducer/effects/enabling functions that
// operate on it. Store is not safe for concurrent Dispatch calls from
// multiple goroutines by design (spec §5: reducer is single-threaded
// cooperative) — callers serialize through a single owning task.
type Store[S any] struct {
	state    *S
	reduce   Reducer[S]
	effects  Effects[S]
	enabled  EnablingCheck[S]
	guard    ChainGuard
	stats    *Stats
	lastMeta action.Meta
	appliedN uint64
	now      func() time.Time
}

// New constructs a Store. now defaults to time.Now when nil (tests may
// inject a deterministic clock for replay, see internal/replay).
func New[S any](initial *S, reduce Reducer[S], effects Effects[S], enabled EnablingCheck[S], now func() time.Time) *Store[S] {
	if now == nil {
		now = time.Now
	}
	return &Store[S]{
		state:   initial,
		reduce:  reduce,
		effects: effects,
		enabled: enabled,
		stats:   newStats(),
		now:     now,
	}
}

func (s *Store[S]) State() *S { return s.state }
func (s *Store[S]) Stats() *Stats { return s.stats }
func (s *Store[S]) AppliedActionsCount() uint64 { return s.appliedN }
func (s *Store[S]) LastActionMeta() action.Meta { return s.lastMeta }

// Dispatcher is the handle effects functions use to dispatch follow-up
// actions; it is a thin wrapper around Store.dispatch carrying the parent
// action's Meta so depth chains correctly (spec §4.1).
type Dispatcher[S any] struct {
	store  *Store[S]
	parent action.Meta
}

// Dispatch runs the full spec §4.1 pipeline for a follow-up action kind.
// Build the concrete action value with NewMeta(kind, &d.parent, now) before
// calling, e.g.:
//
//	d.Dispatch(MyAction{Base: action.Base{Meta: action.NewMeta(myKind, &parent, d.Now())}})
func (d *Dispatcher[S]) Dispatch(a action.Action) bool {
	return d.store.dispatch(a)
}

func (d *Dispatcher[S]) Now() time.Time { return d.store.now() }
func (d *Dispatcher[S]) ParentMeta() action.Meta { return d.parent }

// Dispatch is the entry point for root actions arriving from the event
// source (spec §6 event_source.next_event). It runs reduce then effects,
// and effects' follow-up dispatches re-enter via Dispatcher.Dispatch, all
// before Dispatch returns to the caller (effects never block, spec §5).
func (s *Store[S]) Dispatch(a action.Action) bool {
	return s.dispatch(a)
}

func (s *Store[S]) dispatch(a action.Action) bool {
	meta := a.ActionMeta()

	if s.enabled != nil && !s.enabled(s.state, a) {
		s.stats.recordRejected()
		log.WithFields(log.Fields{"kind": meta.Kind, "depth": meta.Depth}).Debug("action rejected by enabling predicate")
		return false
	}

	s.guard.push(meta.Kind)
	defer s.guard.pop()

	s.reduce(s.state, a)
	s.lastMeta = meta
	s.appliedN++
	s.stats.recordApplied(meta.Kind)

	if s.effects != nil {
		d := &Dispatcher[S]{store: s, parent: meta}
		s.effects(s.state, a, d)
	}
	return true
}
