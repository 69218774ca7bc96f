// Package mux multiplexes the channel suite (best-tip, tx, snark, rpc,
// streaming — spec §3/§4.5) as yamux streams over one post-noise
// connection, and tracks per-peer session lifetime the way the teacher's
// core/connection_pool.go tracks pooled net.Conns: a map keyed by peer,
// reaped on idle, closed as a batch on shutdown.
package mux

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/libp2p/go-yamux/v5"

	"mina-core/internal/types"
)

// Sessions manages one yamux session per peer.
type Sessions struct {
	mu       sync.Mutex
	sessions map[types.PeerID]*entry
	idleTTL  time.Duration
	closing  chan struct{}
	closeOnce sync.Once
}

type entry struct {
	session  *yamux.Session
	lastUsed time.Time
}

// NewSessions creates an empty session table; idle sessions older than
// idleTTL are closed by the background reaper.
func NewSessions(idleTTL time.Duration) *Sessions {
	s := &Sessions{
		sessions: make(map[types.PeerID]*entry),
		idleTTL:  idleTTL,
		closing:  make(chan struct{}),
	}
	go s.reaper()
	return s
}

// Client wraps conn as a yamux client session for id (the dialing side).
func (s *Sessions) Client(id types.PeerID, conn net.Conn) (*yamux.Session, error) {
	sess, err := yamux.Client(conn, yamux.DefaultConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("mux: client session for %s: %w", id, err)
	}
	s.store(id, sess)
	return sess, nil
}

// Server wraps conn as a yamux server session for id (the accepting side).
func (s *Sessions) Server(id types.PeerID, conn net.Conn) (*yamux.Session, error) {
	sess, err := yamux.Server(conn, yamux.DefaultConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("mux: server session for %s: %w", id, err)
	}
	s.store(id, sess)
	return sess, nil
}

func (s *Sessions) store(id types.PeerID, sess *yamux.Session) {
	s.mu.Lock()
	s.sessions[id] = &entry{session: sess, lastUsed: time.Now()}
	s.mu.Unlock()
}

// OpenStream opens a new yamux stream on the peer's session, one per
// channel in the suite.
func (s *Sessions) OpenStream(id types.PeerID) (*yamux.Stream, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mux: no session for peer %s", id)
	}
	e.lastUsed = time.Now()
	stream, err := e.session.OpenStream()
	if err != nil {
		return nil, fmt.Errorf("mux: open stream to %s: %w", id, err)
	}
	return stream, nil
}

// Close tears down one peer's session, used on Disconnect.
func (s *Sessions) Close(id types.PeerID) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return e.session.Close()
}

// CloseAll tears down every session and stops the reaper.
func (s *Sessions) CloseAll() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, e := range s.sessions {
			_ = e.session.Close()
			delete(s.sessions, id)
		}
	})
}

func (s *Sessions) reaper() {
	ticker := time.NewTicker(s.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-s.idleTTL)
			s.mu.Lock()
			for id, e := range s.sessions {
				if e.lastUsed.Before(cutoff) && e.session.NumStreams() == 0 {
					_ = e.session.Close()
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		case <-s.closing:
			return
		}
	}
}
