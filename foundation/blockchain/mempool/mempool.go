// Package mempool maintains the payloads waiting to be mined into blocks.
package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry represents a payload waiting in the pool.
type Entry struct {
	ID       string    `json:"id"`
	Payload  string    `json:"payload"`
	Received time.Time `json:"received"`

	seq uint64
}

// Mempool represents a cache of payloads organized by id. Payloads are
// handed out for mining in the order they were received.
type Mempool struct {
	mu   sync.RWMutex
	pool map[string]Entry
	seq  uint64
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]Entry),
	}
}

// Count returns the current number of payloads in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a payload to the mempool and returns the entry created for
// it along with the new size of the pool.
func (mp *Mempool) Upsert(payload string) (Entry, int) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.seq++
	entry := Entry{
		ID:       uuid.NewString(),
		Payload:  payload,
		Received: time.Now().UTC(),
		seq:      mp.seq,
	}

	mp.pool[entry.ID] = entry

	return entry, len(mp.pool)
}

// Delete removes a payload from the mempool.
func (mp *Mempool) Delete(id string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, id)
}

// Truncate clears all the payloads from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]Entry)
}

// PickNext returns the oldest payload in the pool without removing it.
func (mp *Mempool) PickNext() (Entry, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.oldest()
}

// Take removes and returns the oldest payload in the pool. A miner takes
// the payload it works on so no other miner can pick it up.
func (mp *Mempool) Take() (Entry, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	next, found := mp.oldest()
	if found {
		delete(mp.pool, next.ID)
	}

	return next, found
}

// Restore puts a taken payload back in its original place in line.
func (mp *Mempool) Restore(entry Entry) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[entry.ID] = entry

	return len(mp.pool)
}

// oldest must be called with the lock held.
func (mp *Mempool) oldest() (Entry, bool) {
	var next Entry
	var found bool
	for _, entry := range mp.pool {
		if !found || entry.seq < next.seq {
			next = entry
			found = true
		}
	}

	return next, found
}

// Copy returns the payloads in the order they were received.
func (mp *Mempool) Copy() []Entry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	entries := make([]Entry, 0, len(mp.pool))
	for _, entry := range mp.pool {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	return entries
}
