package channels

import "mina-core/internal/fatal"

// Propagation implements the transaction/snark-work propagation channel
// (spec §4.5): GetNext{limit} -> WillSend{count<=limit} -> count individual
// items -> a new GetNext may follow. Pipelining is forbidden: a new GetNext
// must wait for the previous batch to finish delivering.
type Propagation struct {
	Status ChannelStatus
	Kind   string // "tx" or "snark", for logging/metrics only

	// local: our request and the batch we're still receiving.
	limitSent      int
	awaitingCommit bool // GetNext sent, WillSend not yet received
	remaining      int  // items still owed to us for the current batch

	// remote: the peer's request to us.
	remoteLimit     int
	remoteRemaining int
	remoteActive    bool
}

func NewPropagation(kind string) *Propagation {
	return &Propagation{Status: Enabled, Kind: kind}
}

// SendGetNext issues our request for up to limit items. Forbidden while a
// previous batch is still in flight (no pipelining).
func (p *Propagation) SendGetNext(limit int) {
	fatal.Assert(!p.awaitingCommit && p.remaining == 0, "%s propagation: GetNext while previous batch still in flight", p.Kind)
	p.limitSent = limit
	p.awaitingCommit = true
}

// ReceiveWillSend records the peer's promised count, which must not exceed
// the limit we requested.
func (p *Propagation) ReceiveWillSend(count int) {
	fatal.Assert(p.awaitingCommit, "%s propagation: WillSend without outstanding GetNext", p.Kind)
	fatal.Assert(count <= p.limitSent, "%s propagation: WillSend count %d exceeds limit %d", p.Kind, count, p.limitSent)
	p.awaitingCommit = false
	p.remaining = count
}

// ReceiveItem consumes one item of the current batch.
func (p *Propagation) ReceiveItem() {
	fatal.Assert(p.remaining > 0, "%s propagation: item received with none owed", p.Kind)
	p.remaining--
}

// BatchComplete reports whether the current batch has been fully delivered
// and a new GetNext may now be sent.
func (p *Propagation) BatchComplete() bool {
	return !p.awaitingCommit && p.remaining == 0
}

// ReceiveGetNext records the peer's request to us, limited to limit items.
func (p *Propagation) ReceiveGetNext(limit int) {
	fatal.Assert(!p.remoteActive, "%s propagation: peer pipelined a second GetNext", p.Kind)
	p.remoteLimit = limit
	p.remoteActive = true
}

// SendWillSend commits to delivering count items (count <= remoteLimit) to
// the peer, then SendItem must be called exactly count times before the
// obligation is considered discharged.
func (p *Propagation) SendWillSend(count int) {
	fatal.Assert(p.remoteActive, "%s propagation: WillSend without a pending GetNext", p.Kind)
	fatal.Assert(count <= p.remoteLimit, "%s propagation: WillSend count %d exceeds requested limit %d", p.Kind, count, p.remoteLimit)
	p.remoteRemaining = count
}

// SendItem discharges one item of our obligation; once the count reaches
// zero the remote GetNext is fully serviced and a new one may arrive.
func (p *Propagation) SendItem() {
	fatal.Assert(p.remoteRemaining > 0, "%s propagation: sending item with none owed", p.Kind)
	p.remoteRemaining--
	if p.remoteRemaining == 0 {
		p.remoteActive = false
	}
}

// Outstanding reports how many items are still owed to us this batch.
func (p *Propagation) Outstanding() int { return p.remaining }
