// Package transport wraps a libp2p host: the multistream-select /
// noise_xx / yamux stack named in spec §4.4/§6, plus the peer-discovery
// and channel sub-protocols layered on top of it. Adapted from the
// teacher's core/network.go NewNode, generalized from a gossip-only
// blockchain node to the Mina protocol set (identify, kademlia, meshsub,
// bitswap-style snark streaming, coda/rpcs/0.0.1).
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	log "github.com/sirupsen/logrus"

	"mina-core/internal/p2p/gossip"
	"mina-core/internal/p2p/nat"
	"mina-core/internal/types"
)

// Protocol ids for the Mina RPC/gossip sub-protocols (spec §6).
const (
	ProtoIdentify   = protocol.ID("/ipfs/id/1.0.0")
	ProtoKademlia   = protocol.ID("/coda/kad/1.0.0")
	ProtoMeshsub    = protocol.ID("/meshsub/1.1.0")
	ProtoRPC        = protocol.ID("coda/rpcs/0.0.1")
	ProtoSnarkBlob  = protocol.ID("/coda/snark-blob/1.0.0")

	TopicConsensus  = "coda/consensus-messages/0.0.1"
	TopicBlock      = "coda/mina-block/0.0.1"
	TopicTx         = "coda/mina-tx/0.0.1"
	TopicSnarkWork  = "coda/mina-snark-work/0.0.1"
)

// Host wraps a libp2p host with Mina-specific bookkeeping: the gossip
// layer, a discovery tag for mDNS, and NAT port mapping for the listen
// address.
type Host struct {
	h        host.Host
	Gossip   *gossip.Gossip
	nat      *nat.Manager
	ctx      context.Context
	cancel   context.CancelFunc
	discTag  string
}

// Config configures a new Host.
type Config struct {
	ListenAddr     string
	DiscoveryTag   string
	BootstrapPeers []string
	ChainID        string // not read by New; the host has no pnet preshared-key layer
}

// New constructs a libp2p host, joins the Mina gossip topics, maps its
// listen port via NAT-PMP/UPnP, and bootstraps to the configured seeds.
// Mirrors the teacher's NewNode but parametrized by Mina's protocol/topic
// set instead of a single blockchain gossip channel.
func New(cfg Config) (*Host, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: create host: %w", err)
	}

	gs, err := gossip.New(ctx, h, []string{TopicConsensus, TopicBlock, TopicTx, TopicSnarkWork})
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("transport: create gossip: %w", err)
	}

	hn := &Host{h: h, Gossip: gs, ctx: ctx, cancel: cancel, discTag: cfg.DiscoveryTag}

	if natMgr, err := nat.NewManager(); err == nil {
		if port, err := parsePort(cfg.ListenAddr); err == nil {
			if err := natMgr.Map(port); err != nil {
				log.Warnf("transport: NAT map failed: %v", err)
			} else {
				go natMgr.Sustain(ctx, port)
			}
		}
		hn.nat = natMgr
	} else {
		log.Warnf("transport: NAT discovery failed: %v", err)
	}

	if err := hn.DialSeeds(cfg.BootstrapPeers); err != nil {
		log.Warnf("transport: DialSeeds warning: %v", err)
	}

	mdns.NewMdnsService(h, cfg.DiscoveryTag, hn)

	return hn, nil
}

// HandlePeerFound implements mdns.Notifee: connect to a peer discovered on
// the LAN, skipping ourselves and peers we already know.
func (t *Host) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == t.h.ID() {
		return
	}
	if t.h.Network().Connectedness(info.ID) == 1 { // network.Connected
		return
	}
	if err := t.h.Connect(t.ctx, info); err != nil {
		log.Warnf("transport: mDNS connect to %s failed: %v", info.ID, err)
		return
	}
	log.Infof("transport: connected to %s via mDNS", info.ID)
}

// DialSeeds connects to a list of bootstrap peer multiaddresses.
func (t *Host) DialSeeds(seeds []string) error {
	var errs []string
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid addr %s: %v", addr, err))
			continue
		}
		if err := t.h.Connect(t.ctx, *pi); err != nil {
			errs = append(errs, fmt.Sprintf("connect %s: %v", addr, err))
			continue
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("transport: dial errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// OpenStream opens a substream to peer for the given sub-protocol, the
// libp2p-path equivalent of spec §4.4's "each requested sub-protocol is
// opened as a substream" once yamux is up (go-libp2p negotiates yamux
// internally as part of its default transport upgrader).
func (t *Host) OpenStream(peerID types.PeerID, proto protocol.ID) error {
	pid, err := peer.Decode(string(peerID))
	if err != nil {
		return fmt.Errorf("transport: bad peer id %s: %w", peerID, err)
	}
	s, err := t.h.NewStream(t.ctx, pid, proto)
	if err != nil {
		return err
	}
	return s.Close()
}

// SetStreamHandler registers a handler for an inbound sub-protocol. The
// handler receives the remote peer id and the full body read from the
// stream before it closes.
func (t *Host) SetStreamHandler(proto protocol.ID, handler func(peer types.PeerID, data []byte)) {
	t.h.SetStreamHandler(proto, func(s network.Stream) {
		defer s.Close()
		remote := types.PeerID(s.Conn().RemotePeer().String())
		buf := make([]byte, 0, 4096)
		tmp := make([]byte, 4096)
		for {
			n, err := s.Read(tmp)
			if n > 0 {
				buf = append(buf, tmp[:n]...)
			}
			if err != nil {
				break
			}
		}
		handler(remote, buf)
	})
}

// ID returns this host's own peer id.
func (t *Host) ID() types.PeerID { return types.PeerID(t.h.ID().String()) }

// Close tears down the host, gossip layer, and NAT mapping.
func (t *Host) Close() error {
	t.cancel()
	if t.nat != nil {
		_ = t.nat.Unmap()
	}
	return t.h.Close()
}

func parsePort(addr string) (int, error) {
	parts := strings.Split(addr, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "tcp" {
			var port int
			_, err := fmt.Sscanf(parts[i+1], "%d", &port)
			return port, err
		}
	}
	return 0, fmt.Errorf("transport: no tcp port in %s", addr)
}
