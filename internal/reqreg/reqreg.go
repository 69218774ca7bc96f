// Package reqreg implements the typed pending-request table used uniformly
// by every async subsystem to correlate requests and completions: block
// verify, work verify, user-command verify, p2p RPC, ledger reads (spec §3,
// §4.6, §8 property 2).
package reqreg

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ID is a monotonically dispensed identifier scoped to one Table[K, V]. The
// phantom-type-like separation the original Rust core gets from
// RequestId<PhantomTag> is reproduced here by K: an ID[BlockVerifyKind] and
// an ID[WorkVerifyKind] are different Go types and cannot be confused at
// compile time, even though both wrap a plain uint64.
type ID[K any] uint64

func (id ID[K]) String() string { return fmt.Sprintf("%d", uint64(id)) }

// Table is a map from ID[K] to a request-state value V. Invariants (spec
// §3): ids are dispensed monotonically; the next-id value is preserved
// across removals; a finished request is explicitly pruned via Remove.
type Table[K any, V any] struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]V
}

// NewTable constructs an empty table whose first dispensed id is 1 (0 is
// reserved as "no request").
func NewTable[K any, V any]() *Table[K, V] {
	return &Table[K, V]{items: make(map[uint64]V)}
}

// NextReqID returns the id the next Init call must use. It does not
// consume the id; Init does that via Insert.
func (t *Table[K, V]) NextReqID() ID[K] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ID[K](t.nextID + 1)
}

// Insert dispenses and consumes the next id, storing v under it, and
// returns the new id. It enforces the "Init enabled iff req_id ==
// next_req_id" invariant (spec §4.6) by ignoring any id the caller may have
// precomputed and always handing out the table's own next value — callers
// should call NextReqID first only to stamp it into the dispatched action,
// then Insert to actually consume it once the action is being reduced.
func (t *Table[K, V]) Insert(v V) ID[K] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.items[id] = v
	log.WithFields(log.Fields{
		"req_id":         id,
		"correlation_id": uuid.NewString(),
	}).Debug("reqreg: opened request")
	return ID[K](id)
}

// Get returns the request state for id, if present.
func (t *Table[K, V]) Get(id ID[K]) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[uint64(id)]
	return v, ok
}

// Set overwrites the request state for an existing id (e.g. Pending ->
// Success transition). It is a no-op if id is not present.
func (t *Table[K, V]) Set(id ID[K], v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[uint64(id)]; ok {
		t.items[uint64(id)] = v
	}
}

// Remove prunes a finished request. The next-id counter is untouched, so
// ids are never reused in this table's lifetime (spec §3, §8 property 2).
func (t *Table[K, V]) Remove(id ID[K]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, uint64(id))
}

// Len returns the number of pending entries.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// ForEach calls fn for every pending entry, in unspecified order. fn must
// not call back into the table (no reentrant locking).
func (t *Table[K, V]) ForEach(fn func(id ID[K], v V)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, v := range t.items {
		fn(ID[K](id), v)
	}
}
