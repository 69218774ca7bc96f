package p2p

import (
	"testing"
	"time"

	"mina-core/internal/action"
	"mina-core/internal/p2p/conn"
	"mina-core/internal/types"
)

type fakeDispatcher struct {
	now        time.Time
	parent     action.Meta
	dispatched []action.Action
}

func (f *fakeDispatcher) Dispatch(a action.Action) bool {
	f.dispatched = append(f.dispatched, a)
	return true
}
func (f *fakeDispatcher) Now() time.Time          { return f.now }
func (f *fakeDispatcher) ParentMeta() action.Meta { return f.parent }

type fakeService struct {
	outgoingErr error
	disconnects []types.PeerID
}

func (f *fakeService) OutgoingInit(types.PeerID, OutgoingOpts) error { return f.outgoingErr }
func (f *fakeService) IncomingInit(types.PeerID, []byte) error       { return nil }
func (f *fakeService) SetAnswer(types.PeerID, []byte) error          { return nil }
func (f *fakeService) ChannelOpen(types.PeerID, string) error        { return nil }
func (f *fakeService) ChannelSend(types.PeerID, uint64, []byte) error { return nil }
func (f *fakeService) Disconnect(peer types.PeerID) error {
	f.disconnects = append(f.disconnects, peer)
	return nil
}

func TestReduceDisabledStateIgnoresEverything(t *testing.T) {
	s := NewDisabled()
	Reduce(s, OutgoingInitAction{Peer: types.PeerID("peerA")})
	if s.Peers != nil {
		t.Fatalf("expected a disabled state to never gain a peer table")
	}
}

func TestReduceOutgoingInitBeginsConnecting(t *testing.T) {
	s := NewReady(Config{MaxPeers: 8, ChurnInterval: time.Minute})
	Reduce(s, OutgoingInitAction{Peer: types.PeerID("peerA")})

	rec, ok := s.Peers.Get(types.PeerID("peerA"))
	if !ok {
		t.Fatalf("expected peer to be tracked after OutgoingInit")
	}
	if rec.Direction != conn.Outgoing {
		t.Fatalf("expected outgoing direction, got %v", rec.Direction)
	}
}

func TestReduceConnectionSuccessMarksReady(t *testing.T) {
	s := NewReady(Config{MaxPeers: 8, ChurnInterval: time.Minute})
	Reduce(s, OutgoingInitAction{Peer: types.PeerID("peerA")})
	Reduce(s, ConnectionSuccessAction{Base: action.Base{Meta: action.Meta{Time: time.Now()}}, Peer: types.PeerID("peerA")})

	if s.Peers.Count() != 1 {
		t.Fatalf("expected one ready peer, got %d", s.Peers.Count())
	}
	if rec, _ := s.Peers.Get(types.PeerID("peerA")); rec.Status != conn.StatusReady {
		t.Fatalf("expected status Ready, got %v", rec.Status)
	}
}

func TestReducePeerReadyOpensChannelSuite(t *testing.T) {
	s := NewReady(Config{MaxPeers: 8, ChurnInterval: time.Minute})
	peer := types.PeerID("peerA")
	Reduce(s, PeerReadyAction{Peer: peer})

	if _, ok := s.Channels[peer]; !ok {
		t.Fatalf("expected PeerReadyAction to open a channel suite for the peer")
	}
}

func TestReduceDisconnectedRemovesPeerAndChannels(t *testing.T) {
	s := NewReady(Config{MaxPeers: 8, ChurnInterval: time.Minute})
	peer := types.PeerID("peerA")
	Reduce(s, OutgoingInitAction{Peer: peer})
	Reduce(s, PeerReadyAction{Peer: peer})
	Reduce(s, DisconnectedAction{Base: action.Base{Meta: action.Meta{Time: time.Now()}}, Peer: peer, Reason: "test"})

	if _, ok := s.Channels[peer]; ok {
		t.Fatalf("expected channel suite to be removed on disconnect")
	}
	if s.Peers.Count() != 0 {
		t.Fatalf("expected the peer to no longer occupy a slot, got %d", s.Peers.Count())
	}
}

func TestEffectsOutgoingInitErrorDispatchesConnectionError(t *testing.T) {
	s := NewReady(Config{MaxPeers: 8, ChurnInterval: time.Minute})
	svc := &fakeService{outgoingErr: errTest{}}
	d := &fakeDispatcher{now: time.Now()}

	Effects(s, OutgoingInitAction{Peer: types.PeerID("peerA")}, d, svc)

	if len(d.dispatched) != 1 {
		t.Fatalf("expected one dispatched follow-up action, got %d", len(d.dispatched))
	}
	errAct, ok := d.dispatched[0].(ConnectionErrorAction)
	if !ok {
		t.Fatalf("expected a ConnectionErrorAction, got %T", d.dispatched[0])
	}
	if errAct.Kind != conn.ErrTimedOut {
		t.Fatalf("expected ErrTimedOut, got %v", errAct.Kind)
	}
}

func TestEffectsConnectionSuccessDispatchesPeerReady(t *testing.T) {
	s := NewReady(Config{MaxPeers: 8, ChurnInterval: time.Minute})
	svc := &fakeService{}
	d := &fakeDispatcher{now: time.Now()}

	Effects(s, ConnectionSuccessAction{Peer: types.PeerID("peerA")}, d, svc)

	if len(d.dispatched) != 1 {
		t.Fatalf("expected PeerReadyAction to be dispatched, got %d actions", len(d.dispatched))
	}
	if _, ok := d.dispatched[0].(PeerReadyAction); !ok {
		t.Fatalf("expected PeerReadyAction, got %T", d.dispatched[0])
	}
}

func TestEffectsDisconnectActionCallsServiceAndDispatchesDisconnected(t *testing.T) {
	s := NewReady(Config{MaxPeers: 8, ChurnInterval: time.Minute})
	svc := &fakeService{}
	d := &fakeDispatcher{now: time.Now()}
	peer := types.PeerID("peerA")

	Effects(s, DisconnectAction{Peer: peer, Reason: "churn"}, d, svc)

	if len(svc.disconnects) != 1 || svc.disconnects[0] != peer {
		t.Fatalf("expected service.Disconnect to be called with %s, got %v", peer, svc.disconnects)
	}
	if len(d.dispatched) != 1 {
		t.Fatalf("expected DisconnectedAction to be dispatched")
	}
}

type errTest struct{}

func (errTest) Error() string { return "synthetic outgoing init failure" }
