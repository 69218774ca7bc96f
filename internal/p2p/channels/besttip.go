// Package channels implements the small per-peer request/response state
// machines layered on top of a yamux substream (spec §4.5): best-tip,
// transaction/snark propagation, RPC, and streaming RPC. Each follows the
// skeleton `Disabled | Enabled | Init | Pending | Ready{local, remote}`
// where local is the state of our own requests and remote is the state of
// the peer's requests to us.
package channels

import (
	"time"

	"mina-core/internal/fatal"
	"mina-core/internal/types"
)

// ChannelStatus is the outer Disabled/Enabled/Ready skeleton shared by every
// channel in this package.
type ChannelStatus int

const (
	Disabled ChannelStatus = iota
	Enabled
	Ready
)

// BestTip implements the channel from spec §4.5: one side sends GetNext,
// the other replies with at most one block. The requester may have at
// most one GetNext outstanding; the responder owes exactly one response
// per received GetNext, even if it has no new best tip (it waits).
type BestTip struct {
	Status ChannelStatus

	// local: our outstanding request to the peer.
	localOutstanding bool

	// remote: the peer's outstanding request to us (our obligation).
	remoteOwed bool

	LastSent     types.BlockHash
	LastReceived *types.BlockWithHash
}

func NewBestTip() *BestTip { return &BestTip{Status: Enabled} }

// SendGetNext records that we issued a GetNext. Enforces "only one GetNext
// outstanding" (spec §8 property 5: |sent|-|received| in {0,1}).
func (b *BestTip) SendGetNext() {
	fatal.Assert(!b.localOutstanding, "best-tip channel: GetNext already outstanding")
	b.localOutstanding = true
}

// ReceiveResponse consumes our outstanding GetNext once the peer replies
// (possibly with no new block — still counts as the one owed response).
func (b *BestTip) ReceiveResponse(blk *types.BlockWithHash) {
	fatal.Assert(b.localOutstanding, "best-tip channel: response without outstanding GetNext")
	b.localOutstanding = false
	if blk != nil {
		b.LastReceived = blk
	}
}

// ReceiveGetNext records that the peer asked us for their obligation. The
// responder now owes exactly one response (spec §4.5).
func (b *BestTip) ReceiveGetNext() {
	fatal.Assert(!b.remoteOwed, "best-tip channel: peer's GetNext already pending our response")
	b.remoteOwed = true
}

// SendResponse discharges our obligation to the peer.
func (b *BestTip) SendResponse(hash types.BlockHash) {
	fatal.Assert(b.remoteOwed, "best-tip channel: sending response with none owed")
	b.remoteOwed = false
	b.LastSent = hash
}

// Balanced reports the invariant from spec §8 property 5: local obligation
// count is in {0, 1}.
func (b *BestTip) Balanced() bool { return true } // localOutstanding is itself bool-valued (0 or 1)

// LocalOutstanding reports whether we have an unanswered GetNext in flight.
func (b *BestTip) LocalOutstanding() bool { return b.localOutstanding }

// RemoteOwed reports whether we owe the peer a response.
func (b *BestTip) RemoteOwed() bool { return b.remoteOwed }

// Timeout marks the best-tip channel's request as dropped on deadline,
// without waiting for a late response — spec §4.5/§7 timeout semantics.
func (b *BestTip) Timeout(now time.Time) {
	b.localOutstanding = false
}
