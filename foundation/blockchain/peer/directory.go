package peer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
	"github.com/fsnotify/fsnotify"
)

// Lookup returns the peers whose endpoints currently exist in the directory,
// excluding the peer at the self address. The result is ordered by address.
func Lookup(dir string, self string) ([]Peer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading peer directory: %w", err)
	}

	selfAbs, _ := filepath.Abs(self)

	var peers []Peer
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), transport.Extension) {
			continue
		}

		if entry.Type()&os.ModeSocket == 0 {
			continue
		}

		addr := filepath.Join(dir, entry.Name())
		if abs, _ := filepath.Abs(addr); abs == selfAbs {
			continue
		}

		peers = append(peers, New(addr))
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Addr < peers[j].Addr })

	return peers, nil
}

// =============================================================================

// Change describes a peer endpoint showing up or going away.
type Change struct {
	Peer   Peer
	Joined bool
}

// Watcher reports changes of the peer endpoints in a directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	self    string
	changes chan Change
	done    chan struct{}
	ev      func(v string, args ...any)
}

// Watch starts watching the directory for peer endpoints coming and going.
// Changes are dropped if the consumer falls behind, a periodic Lookup is
// expected to catch up.
func Watch(dir string, self string, evHandler func(v string, args ...any)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Watcher{
		watcher: watcher,
		self:    self,
		changes: make(chan Change, 16),
		done:    make(chan struct{}),
		ev:      ev,
	}

	go w.run()

	return &w, nil
}

// Changes returns the channel changes are delivered on. It is closed
// when the watcher is closed.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer func() {
		close(w.changes)
		close(w.done)
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !strings.HasSuffix(event.Name, transport.Extension) || event.Name == w.self {
				continue
			}

			switch {
			case event.Has(fsnotify.Create):
				w.send(Change{Peer: New(event.Name), Joined: true})
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.send(Change{Peer: New(event.Name), Joined: false})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.ev("peer: watcher: ERROR: %s", err)
		}
	}
}

func (w *Watcher) send(change Change) {
	select {
	case w.changes <- change:
	default:
		w.ev("peer: watcher: change channel full, discard change for %s", change.Peer)
	}
}
