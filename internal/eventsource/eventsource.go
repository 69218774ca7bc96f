// Package eventsource is the queue through which external completions —
// network bytes, timer expiry, proof-verifier results — reach the main
// loop, which translates each posted Event into an action (spec §6
// "event_source.next_event() -> Option<Event>"). It is not the only entry
// point: the operator HTTP handlers in internal/rpc/httpapi and the
// verifier callbacks in cmd/node call Store.Dispatch directly.
package eventsource

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Kind tags the origin of an Event for routing to the right subsystem's
// action-building step.
type Kind int

const (
	KindP2P Kind = iota
	KindTimer
	KindRPC
	KindVerifier
	KindLedger
)

// Event is an opaque envelope; the main loop type-switches Payload based
// on Kind to build the concrete action for the relevant subsystem.
type Event struct {
	Kind    Kind
	Payload any
}

// Source is a non-blocking multi-producer event queue. Producers
// (transport callbacks, timers, RPC handlers, verifier completions) call
// Post; the main loop blocks in Wait, and Next is the non-blocking pull.
type Source struct {
	ch chan Event
}

// New constructs a Source with the given buffer capacity. A bounded
// buffer gives backpressure to fast producers (e.g. a flood of gossip)
// without blocking the single-threaded main loop indefinitely — Post
// drops with a warning log when full rather than blocking, since the
// main loop must remain responsive to its own Next() moving forward.
func New(capacity int) *Source {
	return &Source{ch: make(chan Event, capacity)}
}

// Post enqueues an event from any goroutine. Never blocks.
func (s *Source) Post(e Event) {
	select {
	case s.ch <- e:
	default:
		log.WithField("kind", e.Kind).Warn("eventsource: queue full, dropping event")
	}
}

// Next performs the non-blocking pull named in spec §6: it returns
// immediately with (Event{}, false) if nothing is queued.
func (s *Source) Next() (Event, bool) {
	select {
	case e := <-s.ch:
		return e, true
	default:
		return Event{}, false
	}
}

// Wait blocks until an event arrives or ctx is done, for the main loop's
// idle-sleep between polls rather than a busy spin.
func (s *Source) Wait(ctx context.Context) (Event, bool) {
	select {
	case e := <-s.ch:
		return e, true
	case <-ctx.Done():
		return Event{}, false
	}
}
