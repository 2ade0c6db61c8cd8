package state

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/envelope"
)

// replies routes the signals peers send back on their own connection to the
// flow waiting on that peer. Waiters for the same peer are served in the
// order they registered.
type replies struct {
	mu       sync.Mutex
	waiting  map[string][]chan envelope.Signal
	inflight map[string]chan struct{}
}

func newReplies() *replies {
	return &replies{
		waiting:  make(map[string][]chan envelope.Signal),
		inflight: make(map[string]chan struct{}),
	}
}

// acquire reserves the peer for a single request. Replies carry no request
// id, so only one request per peer may be outstanding at a time.
func (r *replies) acquire(ctx context.Context, to string) (func(), error) {
	to = filepath.Clean(to)

	r.mu.Lock()
	sem, exists := r.inflight[to]
	if !exists {
		sem = make(chan struct{}, 1)
		r.inflight[to] = sem
	}
	r.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// expect registers interest in the next reply from the peer. The returned
// function must be called once the caller stops waiting.
func (r *replies) expect(from string) (<-chan envelope.Signal, func()) {
	from = filepath.Clean(from)
	ch := make(chan envelope.Signal, 1)

	r.mu.Lock()
	r.waiting[from] = append(r.waiting[from], ch)
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		queue := r.waiting[from]
		for i, c := range queue {
			if c == ch {
				queue = append(queue[:i], queue[i+1:]...)
				break
			}
		}

		if len(queue) == 0 {
			delete(r.waiting, from)
			return
		}
		r.waiting[from] = queue
	}

	return ch, release
}

// deliver hands the signal to the oldest waiter for its sender. It reports
// false when nobody is waiting.
func (r *replies) deliver(sig envelope.Signal) bool {
	from := filepath.Clean(sig.From)

	r.mu.Lock()
	defer r.mu.Unlock()

	queue := r.waiting[from]
	if len(queue) == 0 {
		return false
	}

	ch := queue[0]
	if len(queue) == 1 {
		delete(r.waiting, from)
	} else {
		r.waiting[from] = queue[1:]
	}

	// The channel has room for exactly one signal and is removed from the
	// queue before the send, so this never blocks.
	ch <- sig

	return true
}
