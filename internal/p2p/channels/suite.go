package channels

// Suite bundles the per-peer channel sub-state-machines opened once a
// connection reaches Ready (spec §3 "Ready { ... channels: {best_tip,
// snark, tx, rpc, ...} ... }", §4.4 "A Success dispatches PeerReady, which
// opens the suite of channel sub-state-machines").
type Suite struct {
	BestTip   *BestTip
	Tx        *Propagation
	Snark     *Propagation
	RPC       *RPC
	Streaming *Streaming
}

// NewSuite opens every channel for a newly-Ready peer.
func NewSuite() *Suite {
	return &Suite{
		BestTip:   NewBestTip(),
		Tx:        NewPropagation("tx"),
		Snark:     NewPropagation("snark"),
		RPC:       NewRPC(),
		Streaming: NewStreaming(),
	}
}
