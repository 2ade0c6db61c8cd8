// Package peer maintains the peer related information such as the set
// of known peers and their connectivity status.
package peer

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Addr string `json:"addr"`
}

// New contructs a new peer value.
func New(addr string) Peer {
	return Peer{
		Addr: addr,
	}
}

// Match validates if the specified address matches this peer.
func (p Peer) Match(addr string) bool {
	return p.Addr == addr
}

// ID returns the peer id embedded in the socket file name.
func (p Peer) ID() string {
	return strings.TrimSuffix(filepath.Base(p.Addr), filepath.Ext(p.Addr))
}

// String implements the fmt.Stringer interface for logging.
func (p Peer) String() string {
	return p.ID()
}

// =============================================================================

// PeerStatus represents information about the connectivity of any given peer.
type PeerStatus struct {
	Peer      Peer      `json:"peer"`
	Reachable bool      `json:"reachable"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]PeerStatus
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]PeerStatus),
	}
}

// Add adds a new peer to the set.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = PeerStatus{Peer: peer}
		return true
	}

	return false
}

// Remove removes a peer from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Record stores the outcome of the latest exchange with the peer. A nil
// error marks the peer as reachable.
func (ps *PeerSet) Record(peer Peer, err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	status := ps.set[peer]
	status.Peer = peer

	if err != nil {
		status.Reachable = false
		status.Failures++
		status.LastError = err.Error()
		ps.set[peer] = status
		return
	}

	status.Reachable = true
	status.Failures = 0
	status.LastError = ""
	status.LastSeen = time.Now().UTC()

	ps.set[peer] = status
}

// Status returns the status for the specified peer.
func (ps *PeerSet) Status(peer Peer) (PeerStatus, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	status, exists := ps.set[peer]
	return status, exists
}

// Copy returns a list of the known peers, excluding the specified address.
func (ps *PeerSet) Copy(addr string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for peer := range ps.set {
		if !peer.Match(addr) {
			peers = append(peers, peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Addr < peers[j].Addr })

	return peers
}

// Statuses returns the status of every known peer ordered by address.
func (ps *PeerSet) Statuses() []PeerStatus {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	statuses := make([]PeerStatus, 0, len(ps.set))
	for _, status := range ps.set {
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Peer.Addr < statuses[j].Peer.Addr })

	return statuses
}
