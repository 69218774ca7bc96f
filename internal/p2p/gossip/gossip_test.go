package gossip

import (
	"context"
	"testing"

	"github.com/libp2p/go-libp2p"
)

func newTestGossip(t *testing.T) (context.Context, *Gossip) {
	t.Helper()
	h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("unexpected error constructing libp2p host: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	g, err := New(ctx, h, []string{"topic-a", "topic-b"})
	if err != nil {
		t.Fatalf("unexpected error constructing gossip: %v", err)
	}
	return ctx, g
}

func TestNewJoinsEveryConfiguredTopic(t *testing.T) {
	ctx, g := newTestGossip(t)
	if err := g.Publish(ctx, "topic-a", []byte("hello")); err != nil {
		t.Fatalf("expected publish on a joined topic to succeed, got %v", err)
	}
	if err := g.Publish(ctx, "topic-b", []byte("hello")); err != nil {
		t.Fatalf("expected publish on a joined topic to succeed, got %v", err)
	}
}

func TestPublishOnUnjoinedTopicErrors(t *testing.T) {
	ctx, g := newTestGossip(t)
	if err := g.Publish(ctx, "topic-z", []byte("hello")); err == nil {
		t.Fatalf("expected publishing to a topic we never joined to error")
	}
}

func TestNextOnUnsubscribedTopicErrors(t *testing.T) {
	ctx, g := newTestGossip(t)
	if _, _, err := g.Next(ctx, "topic-z"); err == nil {
		t.Fatalf("expected Next on an unsubscribed topic to error")
	}
}
