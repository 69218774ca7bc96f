// Package conn implements the P2P connection lifecycle state machine (spec
// §3 "Connection state", §4.4): per-peer status tracking through the
// Connecting/Ready/Disconnected DAG, with separate Outgoing and Incoming
// sub-DAGs for the WebRTC-signaling path. The libp2p path has no
// connecting phases of its own in this package.
package conn

import (
	"time"

	"mina-core/internal/types"
)

// Direction distinguishes who initiated a connection episode.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// ConnectingPhase is the sub-state of a Connecting peer, following the DAG
// in spec §4.4: Init -> OfferSdpCreatePending -> OfferReady ->
// AnswerReceived -> FinalizePending -> Success | Error. Incoming mirrors the
// reverse (Init -> AnswerSdpCreatePending -> AnswerReady -> FinalizePending
// -> Success | Error).
type ConnectingPhase int

const (
	PhaseInit ConnectingPhase = iota
	PhaseOfferSdpCreatePending
	PhaseOfferReady
	PhaseAnswerReceived
	PhaseAnswerSdpCreatePending
	PhaseAnswerReady
	PhaseFinalizePending
	PhaseSuccess
	PhaseError
)

// phaseRank gives each phase a monotonic rank so Advance can assert no
// backward edges occur within one connection episode (spec §8 property 4).
var phaseRank = map[ConnectingPhase]int{
	PhaseInit:                   0,
	PhaseOfferSdpCreatePending:  1,
	PhaseAnswerSdpCreatePending: 1,
	PhaseOfferReady:             2,
	PhaseAnswerReady:            2,
	PhaseAnswerReceived:         3,
	PhaseFinalizePending:        4,
	PhaseSuccess:                5,
	PhaseError:                  5,
}

// ErrorKind classifies why a connecting episode failed.
type ErrorKind int

const (
	ErrTimedOut ErrorKind = iota
	ErrSdpRejected
	ErrHandshakeFailed
	ErrRemoteClosed
)

// Status is the top-level per-peer state (spec §3).
type Status int

const (
	StatusConnecting Status = iota
	StatusReady
	StatusDisconnected
)

// PeerRecord is the single record a peer occupies in the connection
// manager's table. Invariant: exactly one record per peer; within one
// connection episode status transitions are monotonic; a disconnection
// resets to Disconnected and the next episode starts fresh (spec §3).
type PeerRecord struct {
	ID        types.PeerID
	Status    Status
	Direction Direction

	// Connecting sub-state, valid while Status == StatusConnecting.
	Phase     ConnectingPhase
	ErrorKind ErrorKind
	episode   uint64 // bumped every time the peer re-enters Connecting

	// Ready sub-state, valid while Status == StatusReady.
	Incoming       bool
	ConnectedSince time.Time
	BestTip        *types.BlockWithHash

	// Disconnected sub-state, valid while Status == StatusDisconnected.
	DisconnectedAt time.Time
	DisconnectedBy string

	// Scoring feeds peer selection for sync fetches and RandomTry churn
	// (spec §4.2 "ties broken by peer scoring", §4.4 RandomTry).
	Successes uint32
	Failures  uint32
	LatencyMs uint32
}

// NewConnecting starts a fresh episode for a peer, resetting any previous
// sub-state. Called both for a brand-new peer and for the next episode
// after a Disconnected peer is retried.
func NewConnecting(id types.PeerID, dir Direction, episode uint64) *PeerRecord {
	return &PeerRecord{
		ID:        id,
		Status:    StatusConnecting,
		Direction: dir,
		Phase:     PhaseInit,
		episode:   episode,
	}
}

// canAdvanceTo reports whether a Connecting peer may move to next: the
// target phase's rank must be strictly greater than the current one, or
// next is Error from any non-terminal phase. Table.Advance asserts on the
// result, enforcing spec §8 property 4 (no backward edges within an
// episode).
func (p *PeerRecord) canAdvanceTo(next ConnectingPhase) bool {
	return phaseRank[next] > phaseRank[p.Phase] || (p.Phase != PhaseSuccess && p.Phase != PhaseError && next == PhaseError)
}

// MarkReady transitions Connecting -> Ready on handshake success.
func (p *PeerRecord) MarkReady(now time.Time) {
	p.Status = StatusReady
	p.Phase = PhaseSuccess
	p.Incoming = p.Direction == Incoming
	p.ConnectedSince = now
}

// MarkDisconnected resets the record to Disconnected, ending the current
// episode. The next Connecting episode via NewConnecting starts fresh.
func (p *PeerRecord) MarkDisconnected(now time.Time, reason string) {
	p.Status = StatusDisconnected
	p.DisconnectedAt = now
	p.DisconnectedBy = reason
	p.BestTip = nil
}

// Score computes liveness x success-rate used to break ties when choosing
// which peer to query next during sync (spec §4.2).
func (p *PeerRecord) Score() float64 {
	total := p.Successes + p.Failures
	if total == 0 {
		return 0.5
	}
	successRate := float64(p.Successes) / float64(total)
	liveness := 1.0
	if p.LatencyMs > 0 {
		liveness = 1000.0 / float64(p.LatencyMs+1000)
	}
	return liveness * successRate
}
