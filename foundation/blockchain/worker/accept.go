package worker

import (
	"errors"

	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
)

// acceptOperations handles the inbound connections of the node. Every poll
// waits at most the poll interval so a shutdown is noticed quickly.
func (w *Worker) acceptOperations() {
	w.evHandler("worker: acceptOperations: G started")
	defer w.evHandler("worker: acceptOperations: G completed")

	for !w.isShutdown() {
		if _, err := w.state.AcceptNext(w.pollInterval); err != nil {
			if errors.Is(err, state.ErrEndpointClosed) {
				w.evHandler("worker: acceptOperations: endpoint closed")
				return
			}
			w.evHandler("worker: acceptOperations: ERROR: %s", err)
		}
	}

	w.evHandler("worker: acceptOperations: received shut signal")
}
