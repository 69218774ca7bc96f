// Package noise performs the noise_xx handshake that authenticates and
// encrypts a raw connection before yamux multiplexing begins (spec §4.4/
// §6's transport-security stage, wired via github.com/flynn/noise since
// go-libp2p's own noise transport is one layer above what this package
// needs to expose for direct testing of the handshake machinery). There
// is no teacher file to adapt directly — core/network.go left transport
// security to go-libp2p's defaults — so this is grounded on the noise
// library's own handshake-state API.
package noise

import (
	"fmt"

	"github.com/flynn/noise"
)

// CipherSuite is the XX pattern over Curve25519/ChaChaPoly/BLAKE2s, the
// combination go-libp2p's noise transport uses by default.
var CipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// Handshake wraps one side of an XX handshake.
type Handshake struct {
	state *noise.HandshakeState
}

// NewInitiator starts the handshake as the dialing side.
func NewInitiator(staticKey noise.DHKey) (*Handshake, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   CipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     true,
		StaticKeypair: staticKey,
	})
	if err != nil {
		return nil, fmt.Errorf("noise: new initiator: %w", err)
	}
	return &Handshake{state: hs}, nil
}

// NewResponder starts the handshake as the accepting side.
func NewResponder(staticKey noise.DHKey) (*Handshake, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   CipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     false,
		StaticKeypair: staticKey,
	})
	if err != nil {
		return nil, fmt.Errorf("noise: new responder: %w", err)
	}
	return &Handshake{state: hs}, nil
}

// GenerateKeypair produces a fresh static Curve25519 keypair.
func GenerateKeypair() (noise.DHKey, error) {
	return CipherSuite.GenerateKeypair(nil)
}

// WriteMessage advances the handshake, producing the next message to send.
func (h *Handshake) WriteMessage(payload []byte) ([]byte, *noise.CipherState, *noise.CipherState, error) {
	out, cs1, cs2, err := h.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("noise: write message: %w", err)
	}
	return out, cs1, cs2, nil
}

// ReadMessage consumes the peer's handshake message.
func (h *Handshake) ReadMessage(msg []byte) ([]byte, *noise.CipherState, *noise.CipherState, error) {
	payload, cs1, cs2, err := h.state.ReadMessage(nil, msg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("noise: read message: %w", err)
	}
	return payload, cs1, cs2, nil
}

// PeerStatic returns the peer's static public key once revealed by the
// handshake (available after message 2 of XX).
func (h *Handshake) PeerStatic() []byte { return h.state.PeerStatic() }
