package channels

import "mina-core/internal/fatal"

// Streaming implements the streaming-RPC channel (spec §4.5): the response
// to a request is a sequence of parts, and the requester must explicitly
// call Next between parts so backpressure stays explicit — one peer cannot
// flood memory by pushing unlimited unread parts. Used for large payloads
// such as ledger chunks during transition-frontier sync.
type Streaming struct {
	Status ChannelStatus

	active       bool
	partsWanted  int // 1 once a request is open; incremented by Next
	partsArrived int
	done         bool
}

func NewStreaming() *Streaming { return &Streaming{Status: Enabled} }

// Open starts a new streaming request. partsWanted starts at 1: the first
// part may arrive without an explicit Next call, mirroring the initial
// request itself acting as the first pull.
func (s *Streaming) Open() {
	fatal.Assert(!s.active, "streaming channel: Open while a request is already active")
	s.active = true
	s.partsWanted = 1
	s.partsArrived = 0
	s.done = false
}

// Next pulls the next part; must be called once per part after the first,
// enforcing explicit backpressure (spec §4.5).
func (s *Streaming) Next() {
	fatal.Assert(s.active && !s.done, "streaming channel: Next on inactive/finished request")
	fatal.Assert(s.partsArrived == s.partsWanted, "streaming channel: Next called before previous part arrived")
	s.partsWanted++
}

// ReceivePart consumes one part. final indicates the sequence is complete.
func (s *Streaming) ReceivePart(final bool) {
	fatal.Assert(s.active, "streaming channel: part received with no active request")
	fatal.Assert(s.partsArrived < s.partsWanted, "streaming channel: part received without a pending Next/Open pull")
	s.partsArrived++
	if final {
		s.done = true
		s.active = false
	}
}

// Done reports whether the stream has completed.
func (s *Streaming) Done() bool { return s.done }

// Active reports whether a request is in flight.
func (s *Streaming) Active() bool { return s.active }
