// Package p2p is the root P2P subsystem substate and its action/reduce/
// effects triad (spec §3 "p2p: Disabled | Ready", §4.4, §6 service
// boundary). Concrete transport implementations (libp2p, WebRTC, noise,
// yamux, NAT, mDNS, pubsub) live in sibling packages under internal/p2p/...
// and are wired together behind the Service interface so this package
// never imports a concrete transport.
package p2p

import (
	"time"

	"mina-core/internal/action"
	"mina-core/internal/p2p/channels"
	"mina-core/internal/p2p/conn"
	"mina-core/internal/types"
)

// Kind constants for this subsystem, in action.KindP2PBase's range.
const (
	KindOutgoingInit action.Kind = action.KindP2PBase + iota
	KindIncomingInit
	KindOfferReady
	KindAnswerSet
	KindFinalizePending
	KindConnectionSuccess
	KindConnectionError
	KindPeerReady // its reducer opens the channel suite
	KindDisconnect
	KindDisconnected
	KindRandomTry
	KindChannelMessageIn
	KindChannelMessageOut
	KindChannelTimeout
)

// Config mirrors the subset of node configuration the p2p subsystem reads:
// peer cap, churn interval, per-channel timeouts (spec §4.4 "Timeouts per
// transition are configurable").
type Config struct {
	MaxPeers        int
	ChurnInterval   time.Duration
	HandshakeDeadline time.Duration
	RPCDeadline     time.Duration
	StreamDeadline  time.Duration
}

// State is either Disabled or Ready, matching spec §3's root-state p2p
// field. Enabled == false represents Disabled.
type State struct {
	Config   Config
	Enabled  bool
	Peers    *conn.Table
	Channels map[types.PeerID]*channels.Suite
}

// NewDisabled builds a disabled p2p substate.
func NewDisabled() *State { return &State{} }

// NewReady builds an enabled p2p substate with an empty peer table.
func NewReady(cfg Config) *State {
	return &State{
		Config:   cfg,
		Enabled:  true,
		Peers:    conn.NewTable(cfg.MaxPeers, cfg.ChurnInterval),
		Channels: make(map[types.PeerID]*channels.Suite),
	}
}

// Service is the §6 p2p service boundary consumed by this subsystem's
// Effects function. Concrete transports (libp2p+pion+noise+yamux stack)
// implement this; reducers never call it directly — only Effects does,
// for the outgoing/incoming init, answer and disconnect actions.
type Service interface {
	OutgoingInit(peer types.PeerID, opts OutgoingOpts) error
	IncomingInit(peer types.PeerID, offer []byte) error
	SetAnswer(peer types.PeerID, answer []byte) error
	ChannelOpen(peer types.PeerID, channelID string) error
	ChannelSend(peer types.PeerID, msgID uint64, msg []byte) error
	Disconnect(peer types.PeerID) error
}

// OutgoingOpts parametrizes an outbound connection attempt.
type OutgoingOpts struct {
	Addr string
}

// --- Actions -----------------------------------------------------------

type OutgoingInitAction struct {
	action.Base
	Peer types.PeerID
	Opts OutgoingOpts
}

type IncomingInitAction struct {
	action.Base
	Peer  types.PeerID
	Offer []byte
}

type OfferReadyAction struct {
	action.Base
	Peer  types.PeerID
	Offer []byte
}

type AnswerSetAction struct {
	action.Base
	Peer   types.PeerID
	Answer []byte
}

type FinalizePendingAction struct {
	action.Base
	Peer types.PeerID
}

type ConnectionSuccessAction struct {
	action.Base
	Peer types.PeerID
}

type ConnectionErrorAction struct {
	action.Base
	Peer types.PeerID
	Kind conn.ErrorKind
}

// PeerReadyAction opens the channel suite in Reduce; Effects performs no
// service call for it.
type PeerReadyAction struct {
	action.EffectfulBase
	Peer types.PeerID
}

type DisconnectAction struct {
	action.EffectfulBase
	Peer   types.PeerID
	Reason string
}

type DisconnectedAction struct {
	action.Base
	Peer   types.PeerID
	Reason string
}

type RandomTryAction struct {
	action.Base
	Now time.Time
}

// Reduce applies every p2p action kind to State. It never performs I/O
// (spec §8 property 1); connecting to peers and sending bytes only happens
// in Effects.
func Reduce(s *State, a action.Action) {
	if s == nil || !s.Enabled {
		return
	}
	switch act := a.(type) {
	case OutgoingInitAction:
		s.Peers.BeginConnecting(act.Peer, conn.Outgoing)
	case IncomingInitAction:
		s.Peers.BeginConnecting(act.Peer, conn.Incoming)
		s.Peers.Advance(act.Peer, conn.PhaseAnswerSdpCreatePending)
	case OfferReadyAction:
		s.Peers.Advance(act.Peer, conn.PhaseOfferReady)
	case AnswerSetAction:
		if rec, ok := s.Peers.Get(act.Peer); ok && rec.Direction == conn.Outgoing {
			s.Peers.Advance(act.Peer, conn.PhaseAnswerReceived)
		} else {
			s.Peers.Advance(act.Peer, conn.PhaseAnswerReady)
		}
	case FinalizePendingAction:
		s.Peers.Advance(act.Peer, conn.PhaseFinalizePending)
	case ConnectionSuccessAction:
		s.Peers.MarkReady(act.Peer, act.ActionMeta().Time)
	case ConnectionErrorAction:
		s.Peers.Advance(act.Peer, conn.PhaseError)
		s.Peers.Disconnect(act.Peer, act.ActionMeta().Time, "connection_error")
	case PeerReadyAction:
		s.Channels[act.Peer] = channels.NewSuite()
	case DisconnectedAction:
		s.Peers.Disconnect(act.Peer, act.ActionMeta().Time, act.Reason)
		delete(s.Channels, act.Peer)
	case RandomTryAction:
		// handled entirely in Effects (it only decides *who*; the actual
		// disconnect is dispatched as DisconnectAction there).
	}
}

// Effects inspects the action just reduced and calls the Service for every
// effectful action implied (spec §4.1 step 3).
func Effects(s *State, a action.Action, d action.Dispatcher, svc Service) {
	if s == nil || !s.Enabled {
		return
	}
	switch act := a.(type) {
	case OutgoingInitAction:
		if err := svc.OutgoingInit(act.Peer, act.Opts); err != nil {
			dispatchError(d, act.Peer, conn.ErrTimedOut)
		}
	case IncomingInitAction:
		if err := svc.IncomingInit(act.Peer, act.Offer); err != nil {
			dispatchError(d, act.Peer, conn.ErrSdpRejected)
		}
	case AnswerSetAction:
		if err := svc.SetAnswer(act.Peer, act.Answer); err != nil {
			dispatchError(d, act.Peer, conn.ErrHandshakeFailed)
		}
	case ConnectionSuccessAction:
		meta := action.NewMeta(KindPeerReady, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(PeerReadyAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Peer: act.Peer})
	case DisconnectAction:
		_ = svc.Disconnect(act.Peer)
		meta := action.NewMeta(KindDisconnected, ptr(act.ActionMeta()), d.Now())
		d.Dispatch(DisconnectedAction{Base: action.Base{Meta: meta}, Peer: act.Peer, Reason: act.Reason})
	case RandomTryAction:
		if s.Peers.ShouldChurn(act.Now) {
			if victim, ok := s.Peers.LeastUseful(); ok {
				s.Peers.NoteChurn(act.Now)
				meta := action.NewMeta(KindDisconnect, ptr(act.ActionMeta()), d.Now())
				d.Dispatch(DisconnectAction{EffectfulBase: action.EffectfulBase{Base: action.Base{Meta: meta}}, Peer: victim, Reason: "churn"})
			}
		}
	}
}

func dispatchError(d action.Dispatcher, peer types.PeerID, kind conn.ErrorKind) {
	meta := action.NewMeta(KindConnectionError, nil, d.Now())
	d.Dispatch(ConnectionErrorAction{Base: action.Base{Meta: meta}, Peer: peer, Kind: kind})
}

func ptr(m action.Meta) *action.Meta { return &m }
