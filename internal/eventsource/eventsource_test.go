package eventsource

import (
	"context"
	"testing"
	"time"
)

func TestPostNextRoundTrip(t *testing.T) {
	s := New(4)
	if _, ok := s.Next(); ok {
		t.Fatalf("expected empty source to return ok=false")
	}

	s.Post(Event{Kind: KindTimer, Payload: "tick"})
	e, ok := s.Next()
	if !ok {
		t.Fatalf("expected an event")
	}
	if e.Kind != KindTimer || e.Payload != "tick" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestPostDropsWhenFull(t *testing.T) {
	s := New(1)
	s.Post(Event{Kind: KindRPC})
	s.Post(Event{Kind: KindP2P}) // should be dropped, queue full

	e, ok := s.Next()
	if !ok || e.Kind != KindRPC {
		t.Fatalf("expected first posted event to survive, got %+v ok=%v", e, ok)
	}
	if _, ok := s.Next(); ok {
		t.Fatalf("expected queue to be empty after draining the one surviving event")
	}
}

func TestWaitUnblocksOnContextCancel(t *testing.T) {
	s := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := s.Wait(ctx)
	if ok {
		t.Fatalf("expected Wait to time out with ok=false")
	}
}
