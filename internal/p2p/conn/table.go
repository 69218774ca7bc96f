package conn

import (
	"sync"
	"time"

	"mina-core/internal/fatal"
	"mina-core/internal/types"
)

// MaxChannelErrorsBeforeDisconnect is the "three such errors" threshold from
// spec §4.2 Phase 1 failure policy, reused network-wide for any per-channel
// error counter that should escalate to a full disconnect.
const MaxChannelErrorsBeforeDisconnect = 3

// Table owns every PeerRecord. It is the "P2P connection manager" component
// from spec §2 and is meant to be embedded as the p2p.Ready.peers field of
// the root State.
type Table struct {
	mu           sync.RWMutex
	peers        map[types.PeerID]*PeerRecord
	episodes     map[types.PeerID]uint64
	channelFails map[types.PeerID]map[string]int
	maxPeers     int
	lastChurn    time.Time
	churnEvery   time.Duration
}

// NewTable constructs an empty connection table. maxPeers and churnEvery
// configure the RandomTry policy (spec §4.4).
func NewTable(maxPeers int, churnEvery time.Duration) *Table {
	return &Table{
		peers:        make(map[types.PeerID]*PeerRecord),
		episodes:     make(map[types.PeerID]uint64),
		channelFails: make(map[types.PeerID]map[string]int),
		maxPeers:     maxPeers,
		churnEvery:   churnEvery,
	}
}

// BeginConnecting registers a new connection episode for id, starting at
// PhaseInit. If a record for id already exists it must be Disconnected
// (spec §3: a disconnection resets to Disconnected and the next episode
// starts fresh) — connecting over an existing live record is a bug.
func (t *Table) BeginConnecting(id types.PeerID, dir Direction) *PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.peers[id]; ok {
		fatal.Assert(existing.Status == StatusDisconnected, "BeginConnecting on non-disconnected peer %s (status=%d)", id, existing.Status)
	}
	t.episodes[id]++
	rec := NewConnecting(id, dir, t.episodes[id])
	t.peers[id] = rec
	return rec
}

// Advance moves a Connecting peer's phase forward, asserting the DAG
// invariant (spec §8 property 4).
func (t *Table) Advance(id types.PeerID, next ConnectingPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[id]
	fatal.Assert(ok, "Advance on unknown peer %s", id)
	fatal.Assert(rec.Status == StatusConnecting, "Advance on non-connecting peer %s", id)
	fatal.Assert(rec.canAdvanceTo(next), "connection DAG backward edge for %s: %d -> %d", id, rec.Phase, next)
	rec.Phase = next
}

// MarkReady transitions a Connecting peer into Ready.
func (t *Table) MarkReady(id types.PeerID, now time.Time) *PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[id]
	fatal.Assert(ok, "MarkReady on unknown peer %s", id)
	rec.MarkReady(now)
	return rec
}

// Disconnect transitions any peer to Disconnected, clearing per-peer
// channel-error counters so the next episode starts clean.
func (t *Table) Disconnect(id types.PeerID, now time.Time, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[id]
	if !ok {
		return
	}
	rec.MarkDisconnected(now, reason)
	delete(t.channelFails, id)
}

// RecordChannelError increments the per-channel error counter for a peer
// and reports whether the MaxChannelErrorsBeforeDisconnect threshold has
// now been reached (spec §4.2 failure policy: "A peer that delivers three
// such errors is disconnected entirely").
func (t *Table) RecordChannelError(id types.PeerID, channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.channelFails[id]
	if !ok {
		m = make(map[string]int)
		t.channelFails[id] = m
	}
	m[channel]++
	rec, ok := t.peers[id]
	if ok {
		rec.Failures++
	}
	return m[channel] >= MaxChannelErrorsBeforeDisconnect
}

// RecordSuccess bumps a peer's success counter, feeding Score.
func (t *Table) RecordSuccess(id types.PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.peers[id]; ok {
		rec.Successes++
	}
}

// Get returns a snapshot copy of a peer's record.
func (t *Table) Get(id types.PeerID) (PeerRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.peers[id]
	if !ok {
		return PeerRecord{}, false
	}
	return *rec, true
}

// ReadyPeers returns the ids of all peers currently Ready.
func (t *Table) ReadyPeers() []types.PeerID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.PeerID, 0, len(t.peers))
	for id, rec := range t.peers {
		if rec.Status == StatusReady {
			out = append(out, id)
		}
	}
	return out
}

// Count returns the number of peers in Connecting or Ready status (i.e.
// peers occupying a connection slot).
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.peers {
		if rec.Status != StatusDisconnected {
			n++
		}
	}
	return n
}

// AtCapacity reports whether the node is at or above its configured peer
// cap, gating the RandomTry churn policy (spec §4.4).
func (t *Table) AtCapacity() bool {
	return t.Count() >= t.maxPeers
}

// ShouldChurn reports whether enough time has elapsed since the last churn
// attempt and the node is at capacity, per spec §4.4's "RandomTry periodic
// action picks one least-useful peer when the node is near its configured
// cap and the churn interval elapsed".
func (t *Table) ShouldChurn(now time.Time) bool {
	if !t.AtCapacity() {
		return false
	}
	return now.Sub(t.lastChurn) >= t.churnEvery
}

// LeastUseful returns the id of the Ready peer with the lowest Score, or
// "" if there are no Ready peers. Called by RandomTry.
func (t *Table) LeastUseful() (types.PeerID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var worst types.PeerID
	var worstScore float64 = 2
	found := false
	for id, rec := range t.peers {
		if rec.Status != StatusReady {
			continue
		}
		sc := rec.Score()
		if !found || sc < worstScore {
			worst, worstScore, found = id, sc, true
		}
	}
	return worst, found
}

// NoteChurn records that a churn attempt just happened, resetting the
// interval timer regardless of outcome.
func (t *Table) NoteChurn(now time.Time) { t.lastChurn = now }
