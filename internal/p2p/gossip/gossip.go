// Package gossip wraps gossipsub topic subscriptions for the Mina
// broadcast channels (consensus/best-tip, blocks, transactions, snark
// work — spec §4.5's propagation channel is the request/response half;
// this is the push half used for the initial flood of new blocks and
// transactions before peers fall back to GetNext). Adapted from the
// teacher's pubsub wiring in core/network.go, generalized from one
// gossip channel to the multi-topic set Mina's daemon subscribes to.
package gossip

import (
	"context"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
)

// Gossip owns one *pubsub.PubSub router and a topic handle per subscribed
// name.
type Gossip struct {
	ps *pubsub.PubSub

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
}

// New creates a gossipsub router on h and subscribes to every name in
// topics.
func New(ctx context.Context, h host.Host, topics []string) (*Gossip, error) {
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("gossip: new pubsub: %w", err)
	}
	g := &Gossip{
		ps:     ps,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
	}
	for _, name := range topics {
		if err := g.join(name); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Gossip) join(name string) error {
	t, err := g.ps.Join(name)
	if err != nil {
		return fmt.Errorf("gossip: join %s: %w", name, err)
	}
	sub, err := t.Subscribe()
	if err != nil {
		return fmt.Errorf("gossip: subscribe %s: %w", name, err)
	}
	g.mu.Lock()
	g.topics[name] = t
	g.subs[name] = sub
	g.mu.Unlock()
	return nil
}

// Publish broadcasts data on the named topic.
func (g *Gossip) Publish(ctx context.Context, topic string, data []byte) error {
	g.mu.Lock()
	t, ok := g.topics[topic]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("gossip: not joined to topic %s", topic)
	}
	return t.Publish(ctx, data)
}

// Next blocks until the next message on topic arrives, returning its raw
// payload and publishing peer.
func (g *Gossip) Next(ctx context.Context, topic string) ([]byte, string, error) {
	g.mu.Lock()
	sub, ok := g.subs[topic]
	g.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("gossip: not subscribed to topic %s", topic)
	}
	msg, err := sub.Next(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("gossip: next on %s: %w", topic, err)
	}
	return msg.Data, msg.ReceivedFrom.String(), nil
}
