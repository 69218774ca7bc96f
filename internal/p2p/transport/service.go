package transport

import (
	"fmt"

	"mina-core/internal/p2p/discovery"
	"mina-core/internal/p2p/p2p"
	"mina-core/internal/p2p/webrtc"
	"mina-core/internal/types"
)

// ServiceImpl implements p2p.Service on top of a libp2p Host for
// gossip/discovery and a webrtc.Bridge for the per-peer connection and
// channel-suite transport. This is the only place in the module allowed
// to perform the actual I/O the p2p reducer only models.
type ServiceImpl struct {
	host *Host
	rtc  *webrtc.Bridge
	book *discovery.Book
}

// NewService builds a Service bound to an already-started Host.
func NewService(h *Host) *ServiceImpl {
	return &ServiceImpl{
		host: h,
		rtc:  webrtc.New(),
		book: discovery.NewBook(h.ID()),
	}
}

var _ p2p.Service = (*ServiceImpl)(nil)

// OutgoingInit creates a WebRTC offer and opens, then closes, an rpc
// stream to the peer over libp2p (spec §4.4
// ConnectingOutgoing/OfferSdpCreatePending). The offer SDP is not written
// to that stream or sent to the peer by any other route.
func (s *ServiceImpl) OutgoingInit(peer types.PeerID, opts p2p.OutgoingOpts) error {
	s.book.Add(peer)
	offer, err := s.rtc.CreateOffer(peer)
	if err != nil {
		return fmt.Errorf("transport: outgoing init %s: %w", peer, err)
	}
	if err := s.host.OpenStream(peer, ProtoRPC); err != nil {
		return fmt.Errorf("transport: signal offer to %s: %w", peer, err)
	}
	_ = offer // not transmitted
	return nil
}

// IncomingInit answers an inbound WebRTC offer (spec §4.4
// ConnectingIncoming/AnswerSdpCreatePending).
func (s *ServiceImpl) IncomingInit(peer types.PeerID, offer []byte) error {
	s.book.Add(peer)
	_, err := s.rtc.AcceptOffer(peer, string(offer))
	if err != nil {
		return fmt.Errorf("transport: incoming init %s: %w", peer, err)
	}
	return nil
}

// SetAnswer completes the outgoing handshake with the peer's answer SDP.
func (s *ServiceImpl) SetAnswer(peer types.PeerID, answer []byte) error {
	if err := s.rtc.SetAnswer(peer, string(answer)); err != nil {
		return fmt.Errorf("transport: set answer %s: %w", peer, err)
	}
	return nil
}

// ChannelOpen opens one named data channel in the peer's suite.
func (s *ServiceImpl) ChannelOpen(peer types.PeerID, channelID string) error {
	if err := s.rtc.OpenChannel(peer, channelID); err != nil {
		return fmt.Errorf("transport: channel open %s/%s: %w", peer, channelID, err)
	}
	return nil
}

// ChannelSend writes a message on a peer's open channel.
func (s *ServiceImpl) ChannelSend(peer types.PeerID, msgID uint64, msg []byte) error {
	if err := s.rtc.Send(peer, "rpc", msg); err != nil {
		return fmt.Errorf("transport: channel send %s msg %d: %w", peer, msgID, err)
	}
	return nil
}

// Disconnect tears down the peer's WebRTC connection.
func (s *ServiceImpl) Disconnect(peer types.PeerID) error {
	return s.rtc.Close(peer)
}

// OnChannelMessage registers the handler invoked for every inbound
// data-channel message across all peers, so the node's main loop can feed
// internal/eventsource from arriving rpc/gossip channel bytes without this
// package needing to know about eventsource.
func (s *ServiceImpl) OnChannelMessage(handler func(peer types.PeerID, channel string, data []byte)) {
	s.rtc.OnMessage(handler)
}
