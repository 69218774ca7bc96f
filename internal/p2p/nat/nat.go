// Package nat discovers the LAN gateway and maps the node's listen port via
// NAT-PMP (falling back to UPnP), so peers behind a home router are
// dialable without manual port forwarding. The libp2p host this package
// serves is long-running rather than a one-shot command, so Manager also
// sustains the mapping for the host's whole lifetime: a NAT-PMP lease
// expires after leaseSeconds, so a mapping opened once at startup and
// never renewed would silently go stale under an hour into the node's
// run.
package nat

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
	log "github.com/sirupsen/logrus"
)

// leaseSeconds is the NAT-PMP/UPnP mapping lifetime requested by Map.
const leaseSeconds = 3600

// Manager manages NAT traversal using NAT-PMP or UPnP.
type Manager struct {
	ip         net.IP
	pmp        *natpmp.Client
	upnp       *internetgateway1.WANIPConnection1
	mappedPort int
}

// NewManager discovers the gateway and external IP.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if gw, err := gateway.DiscoverGateway(); err == nil {
		m.pmp = natpmp.NewClient(gw)
		if res, err := m.pmp.GetExternalAddress(); err == nil {
			m.ip = net.IPv4(res.ExternalIPAddress[0], res.ExternalIPAddress[1], res.ExternalIPAddress[2], res.ExternalIPAddress[3])
		}
	}
	if m.ip == nil {
		if clients, _, err := internetgateway1.NewWANIPConnection1Clients(); err == nil && len(clients) > 0 {
			m.upnp = clients[0]
			if ipStr, err := m.upnp.GetExternalIPAddress(); err == nil {
				m.ip = net.ParseIP(ipStr)
			}
		}
	}
	if m.ip == nil {
		return nil, fmt.Errorf("nat: gateway not found")
	}
	return m, nil
}

// ExternalIP returns the detected public IP address.
func (m *Manager) ExternalIP() net.IP { return m.ip }

// Map opens the given TCP port on the gateway.
func (m *Manager) Map(port int) error {
	if m.pmp != nil {
		if _, err := m.pmp.AddPortMapping("tcp", port, port, leaseSeconds); err == nil {
			m.mappedPort = port
			return nil
		}
	}
	if m.upnp != nil {
		if err := m.upnp.AddPortMapping("", uint16(port), "TCP", uint16(port), m.ip.String(), true, "mina-core", leaseSeconds); err == nil {
			m.mappedPort = port
			return nil
		}
	}
	return fmt.Errorf("nat: mapping failed")
}

// Sustain keeps port mapped for as long as ctx is alive, re-mapping it
// well before each lease expires. The node's libp2p host runs for the
// process lifetime, so a single Map call at startup is not enough; this
// is the renewal loop that makes the mapping outlive one lease.
func (m *Manager) Sustain(ctx context.Context, port int) {
	interval := (leaseSeconds * time.Second) / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Map(port); err != nil {
				log.WithError(err).WithField("port", port).Warn("nat: lease renewal failed")
			}
		}
	}
}

// Unmap removes the previously mapped port.
func (m *Manager) Unmap() error {
	if m.mappedPort == 0 {
		return nil
	}
	if m.pmp != nil {
		if _, err := m.pmp.AddPortMapping("tcp", m.mappedPort, m.mappedPort, 0); err != nil {
			return err
		}
		m.mappedPort = 0
		return nil
	}
	if m.upnp != nil {
		if err := m.upnp.DeletePortMapping("", uint16(m.mappedPort), "TCP"); err != nil {
			return err
		}
		m.mappedPort = 0
	}
	return nil
}
