package worker

// Sync announces this node to every peer in the directory so they know it
// is available to receive blocks.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	statuses, err := w.state.FetchBlocks(w.ctx)
	if err != nil {
		w.evHandler("worker: sync: FetchBlocks: ERROR: %s", err)
		return
	}

	w.evHandler("worker: sync: peers[%d]", len(statuses))
}
