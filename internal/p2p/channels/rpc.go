package channels

import (
	"time"

	"mina-core/internal/fatal"
)

// RPCRequestState tracks one in-flight request on the RPC channel (spec
// §4.5): multiple requests may be outstanding concurrently, each with a
// deadline, distinguished by a locally-assigned id.
type RPCRequestState struct {
	Kind     string
	Deadline time.Time
	TimedOut bool
}

// RPC implements the request/response RPC channel. Each request carries a
// deadline; on deadline the request is marked timed-out and dispatched as
// an error without waiting for a late response. Requests whose kind is not
// supported by the peer (per the exchanged menu) are rejected before being
// sent.
type RPC struct {
	Status ChannelStatus

	// Menu is the set of RPC kinds the remote peer has advertised support
	// for; a request outside this set must be rejected before sending.
	Menu map[string]bool

	nextLocalID uint64
	local       map[uint64]*RPCRequestState

	// remote: requests the peer has sent us that we have not yet answered.
	remote map[uint64]string
}

func NewRPC() *RPC {
	return &RPC{
		Status: Enabled,
		Menu:   make(map[string]bool),
		local:  make(map[uint64]*RPCRequestState),
		remote: make(map[uint64]string),
	}
}

// SetMenu records which RPC kinds the peer supports.
func (r *RPC) SetMenu(kinds []string) {
	r.Menu = make(map[string]bool, len(kinds))
	for _, k := range kinds {
		r.Menu[k] = true
	}
}

// Supports reports whether the peer's advertised menu includes kind.
func (r *RPC) Supports(kind string) bool { return r.Menu[kind] }

// SendRequest registers a new outstanding request and returns its locally
// assigned id. Callers must check Supports(kind) first (spec §4.5).
func (r *RPC) SendRequest(kind string, deadline time.Time) uint64 {
	r.nextLocalID++
	id := r.nextLocalID
	r.local[id] = &RPCRequestState{Kind: kind, Deadline: deadline}
	return id
}

// ReceiveResponse completes and removes a local request.
func (r *RPC) ReceiveResponse(id uint64) (RPCRequestState, bool) {
	st, ok := r.local[id]
	if !ok {
		return RPCRequestState{}, false
	}
	delete(r.local, id)
	return *st, true
}

// CheckTimeouts marks every local request past its deadline as timed out
// and returns their ids, so the caller can dispatch `*Error` actions for
// each without waiting for a late response (spec §4.5, §7).
func (r *RPC) CheckTimeouts(now time.Time) []uint64 {
	var timed []uint64
	for id, st := range r.local {
		if !st.TimedOut && now.After(st.Deadline) {
			st.TimedOut = true
			timed = append(timed, id)
		}
	}
	return timed
}

// Prune removes a timed-out request once its error has been dispatched.
func (r *RPC) Prune(id uint64) { delete(r.local, id) }

// ReceiveRequest records an incoming request from the peer, keyed by their
// locally-assigned id (namespaced separately from our own ids).
func (r *RPC) ReceiveRequest(id uint64, kind string) {
	fatal.Assert(r.remote[id] == "", "rpc channel: duplicate remote request id %d", id)
	r.remote[id] = kind
}

// SendResponse discharges our obligation to answer a remote request.
func (r *RPC) SendResponse(id uint64) {
	fatal.Assert(r.remote[id] != "", "rpc channel: response for unknown remote request %d", id)
	delete(r.remote, id)
}

// Outstanding returns the number of requests we're still waiting on.
func (r *RPC) Outstanding() int { return len(r.local) }
