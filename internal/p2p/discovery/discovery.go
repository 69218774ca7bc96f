// Package discovery tracks known peer addresses learned via mDNS and
// gossip, bucketed by XOR distance from our own peer id, and used to
// pick sync-fetch candidates (spec §4.2's "select a peer by score among
// those believed to have the needed ledger/blocks") when the connection
// table alone doesn't have enough Ready peers to choose from. Adapted
// from the teacher's core/kademlia.go bucket structure, trimmed to the
// address-book role Mina's daemon actually needs (no DHT Store/Lookup —
// Mina does not use libp2p's kad-dht for content routing, only mDNS and
// gossip-learned advertisements).
package discovery

import (
	"crypto/sha256"
	"math/big"
	"sort"
	"sync"

	"mina-core/internal/types"
)

const numBuckets = 160

// Book is a Kademlia-style address book: peers seen via mDNS or gossip,
// organized into XOR-distance buckets from our own id.
type Book struct {
	self    types.PeerID
	buckets [numBuckets][]types.PeerID

	mu sync.RWMutex
}

func hash160(id types.PeerID) [20]byte {
	sum := sha256.Sum256([]byte(id))
	var h [20]byte
	copy(h[:], sum[:20])
	return h
}

// NewBook creates an address book bound to our own peer id.
func NewBook(self types.PeerID) *Book {
	return &Book{self: self}
}

// Add records a newly seen peer in its distance bucket, deduplicating.
func (b *Book) Add(id types.PeerID) {
	if id == b.self {
		return
	}
	idx := b.bucketIndex(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.buckets[idx] {
		if p == id {
			return
		}
	}
	b.buckets[idx] = append(b.buckets[idx], id)
}

// Remove drops a peer from its bucket, used once a peer is permanently
// disconnected with no intent to retry.
func (b *Book) Remove(id types.PeerID) {
	idx := b.bucketIndex(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.buckets[idx]
	for i, p := range list {
		if p == id {
			b.buckets[idx] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Nearest returns up to count known peers closest to target by XOR
// distance, used to seed candidate selection for a sync fetch or for
// churn replacement.
func (b *Book) Nearest(target types.PeerID, count int) []types.PeerID {
	idx := b.bucketIndex(target)
	b.mu.RLock()
	defer b.mu.RUnlock()

	peers := make([]types.PeerID, 0, count*2)
	for i := idx; i >= 0 && len(peers) < count*2; i-- {
		peers = append(peers, b.buckets[i]...)
	}
	for i := idx + 1; i < numBuckets && len(peers) < count*2; i++ {
		peers = append(peers, b.buckets[i]...)
	}

	sort.Slice(peers, func(i, j int) bool {
		return b.distance(peers[i], target).Cmp(b.distance(peers[j], target)) < 0
	})
	if len(peers) > count {
		peers = peers[:count]
	}
	return peers
}

func (b *Book) bucketIndex(id types.PeerID) int {
	diff := b.xor(b.self, id)
	bn := new(big.Int).SetBytes(diff[:])
	if bn.Sign() == 0 {
		return numBuckets - 1
	}
	return numBuckets - bn.BitLen()
}

func (b *Book) distance(a, target types.PeerID) *big.Int {
	diff := b.xor(a, target)
	return new(big.Int).SetBytes(diff[:])
}

func (b *Book) xor(a, c types.PeerID) [20]byte {
	ha, hc := hash160(a), hash160(c)
	var diff [20]byte
	for i := range diff {
		diff[i] = ha[i] ^ hc[i]
	}
	return diff
}
