// Package webrtc implements the browser-reachable transport named in
// spec §4.4: an offer/answer SDP exchange (signaled over an existing
// libp2p/HTTP relay connection) establishing an encrypted WebRTC data
// channel per peer, used for the outgoing/incoming "Connecting"
// sub-phases that aren't plain TCP dials. Adapted from the teacher's
// core/rpc_webrtc.go RPCWebRTC bridge, generalized from a single "tx"
// data channel to the named sub-protocol channels peers open once
// Ready (best-tip, tx, snark, rpc).
package webrtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"mina-core/internal/types"
)

// Bridge manages WebRTC peer connections and their data channels.
type Bridge struct {
	mu    sync.Mutex
	peers map[types.PeerID]*peerConn
	onMsg func(peer types.PeerID, channel string, data []byte)
}

// OnMessage registers the handler invoked for every inbound data-channel
// message, across all peers and channels — the node's main loop uses this
// to feed internal/eventsource from whichever channel bytes arrive on.
func (b *Bridge) OnMessage(handler func(peer types.PeerID, channel string, data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMsg = handler
}

type peerConn struct {
	conn     *webrtc.PeerConnection
	channels map[string]*webrtc.DataChannel
}

// New constructs an empty bridge.
func New() *Bridge {
	return &Bridge{peers: make(map[types.PeerID]*peerConn)}
}

// CreateOffer starts an outgoing connection and returns the local offer
// SDP to be signaled to the remote peer (spec §4.4 OutgoingInit).
func (b *Bridge) CreateOffer(id types.PeerID) (string, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", fmt.Errorf("webrtc: new connection: %w", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("webrtc: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return "", fmt.Errorf("webrtc: set local description: %w", err)
	}
	b.mu.Lock()
	b.peers[id] = &peerConn{conn: pc, channels: make(map[string]*webrtc.DataChannel)}
	b.mu.Unlock()
	return offer.SDP, nil
}

// AcceptOffer answers an incoming offer SDP, returning our answer SDP
// (spec §4.4 IncomingInit).
func (b *Bridge) AcceptOffer(id types.PeerID, offerSDP string) (string, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", fmt.Errorf("webrtc: new connection: %w", err)
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return "", fmt.Errorf("webrtc: set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("webrtc: create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("webrtc: set local description: %w", err)
	}
	b.mu.Lock()
	b.peers[id] = &peerConn{conn: pc, channels: make(map[string]*webrtc.DataChannel)}
	b.mu.Unlock()
	return answer.SDP, nil
}

// SetAnswer completes an outgoing connection with the remote's answer
// SDP (spec §4.4 SetAnswer, the transition out of ConnectingOutgoing).
func (b *Bridge) SetAnswer(id types.PeerID, answerSDP string) error {
	b.mu.Lock()
	p, ok := b.peers[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("webrtc: no pending connection for peer %s", id)
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
	if err := p.conn.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("webrtc: set remote description: %w", err)
	}
	return nil
}

// OpenChannel opens a named data channel to a Ready peer, lazily creating
// it on first use (spec §4.4 ChannelOpen — one data channel per sub-
// protocol in the channel suite).
func (b *Bridge) OpenChannel(id types.PeerID, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.peers[id]
	if !ok {
		return fmt.Errorf("webrtc: unknown peer %s", id)
	}
	if _, exists := p.channels[channel]; exists {
		return nil
	}
	dc, err := p.conn.CreateDataChannel(channel, nil)
	if err != nil {
		return fmt.Errorf("webrtc: create data channel %s: %w", channel, err)
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		b.mu.Lock()
		handler := b.onMsg
		b.mu.Unlock()
		if handler != nil {
			handler(id, channel, msg.Data)
		}
	})
	p.channels[channel] = dc
	return nil
}

// Send writes data on a peer's named data channel (spec §4.4 ChannelSend).
func (b *Bridge) Send(id types.PeerID, channel string, data []byte) error {
	b.mu.Lock()
	p, ok := b.peers[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("webrtc: unknown peer %s", id)
	}
	dc, ok := p.channels[channel]
	if !ok {
		return fmt.Errorf("webrtc: channel %s not open for peer %s", channel, id)
	}
	return dc.Send(data)
}

// Close tears down one peer's connection and all its data channels (spec
// §4.4 Disconnect).
func (b *Bridge) Close(id types.PeerID) error {
	b.mu.Lock()
	p, ok := b.peers[id]
	delete(b.peers, id)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	for _, dc := range p.channels {
		_ = dc.Close()
	}
	return p.conn.Close()
}

// CloseAll tears down every peer connection, used on shutdown.
func (b *Bridge) CloseAll() {
	b.mu.Lock()
	peers := b.peers
	b.peers = make(map[types.PeerID]*peerConn)
	b.mu.Unlock()
	for _, p := range peers {
		for _, dc := range p.channels {
			_ = dc.Close()
		}
		_ = p.conn.Close()
	}
}
