package worker

import (
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
)

// peerOperations handles finding new peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	// Announce this node before waiting on anything.
	w.Sync()

	// A nil channel blocks forever, which disables the case.
	var changes <-chan peer.Change
	if w.watcher != nil {
		changes = w.watcher.Changes()
	}

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if change.Joined && !w.isShutdown() {
				w.evHandler("worker: peerOperations: peer[%s] joined", change.Peer)
				w.runPeersOperation()
			}
			if !change.Joined {
				w.evHandler("worker: peerOperations: peer[%s] left", change.Peer)
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation announces this node to the peers in the directory and
// refreshes their connectivity status.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	statuses, err := w.state.FetchBlocks(w.ctx)
	if err != nil {
		w.evHandler("worker: runPeersOperation: FetchBlocks: ERROR: %s", err)
	}

	for _, status := range statuses {
		w.evHandler("worker: runPeersOperation: peer[%s]: reachable[%t]", status.Peer, status.Reachable)
	}
}
