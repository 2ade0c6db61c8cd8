// Package worker implements mining, peer updates and the accepting of
// inbound signals for the node.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
)

// Default intervals used when the configuration leaves them unset.
const (
	defaultPollInterval       = 50 * time.Millisecond
	defaultPeerUpdateInterval = time.Minute
)

// Config represents the settings for the background processes.
type Config struct {
	PollInterval       time.Duration // Longest wait for an inbound connection before yielding.
	PeerUpdateInterval time.Duration // Interval of re-announcing this node to the directory.
	EvHandler          state.EventHandler
}

// =============================================================================

// Worker manages the accept, mining and peer workflows for the node.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	ticker       *time.Ticker
	watcher      *peer.Watcher
	pollInterval time.Duration
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan bool
	shutdownOnce sync.Once
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) {
	evHandler := cfg.EvHandler
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	peerUpdateInterval := cfg.PeerUpdateInterval
	if peerUpdateInterval <= 0 {
		peerUpdateInterval = defaultPeerUpdateInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:        st,
		ctx:          ctx,
		cancel:       cancel,
		ticker:       time.NewTicker(peerUpdateInterval),
		pollInterval: pollInterval,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan bool, 1),
		evHandler:    evHandler,
	}

	// Without the watcher peers are still found on every tick.
	watcher, err := peer.Watch(st.RetrievePeerDir(), st.RetrieveAddr(), evHandler)
	if err != nil {
		w.evHandler("worker: Run: WARNING: watching peer directory: %s", err)
	}
	w.watcher = watcher

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.acceptOperations,
		w.peerOperations,
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	// Payloads may have been submitted before the worker existed.
	if st.QueryMempoolLength() > 0 {
		w.SignalStartMining()
	}
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. It is safe to call
// more than once.
func (w *Worker) Shutdown() {
	w.shutdownOnce.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		if w.watcher != nil {
			w.evHandler("worker: shutdown: stop watcher")
			w.watcher.Close()
		}

		w.evHandler("worker: shutdown: signal cancel mining")
		w.SignalCancelMining()

		w.evHandler("worker: shutdown: terminate goroutines")
		w.cancel()
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
