// Package state is the core API for the peer node and implements all the
// business rules and processing for accepting, mining and exchanging blocks.
package state

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
	"github.com/google/uuid"
)

// Default timeouts used when the configuration leaves them unset.
const (
	defaultReplyTimeout = 2 * time.Second
	defaultReadTimeout  = 2 * time.Second
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks and signals.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and peer updates.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	ID           uuid.UUID
	PeerDir      string
	Genesis      genesis.Genesis
	ReplyTimeout time.Duration
	ReadTimeout  time.Duration
	EvHandler    EventHandler
}

// State manages the ledger and the endpoint of the node.
type State struct {
	id           uuid.UUID
	peerDir      string
	replyTimeout time.Duration
	readTimeout  time.Duration
	evHandler    EventHandler

	genesis    genesis.Genesis
	listener   *transport.Listener
	db         *database.Database
	mempool    *mempool.Mempool
	knownPeers *peer.PeerSet
	replies    *replies

	sessions     sync.WaitGroup
	shutdownOnce sync.Once

	Worker Worker
}

// New constructs the node and acquires its listening endpoint. A failure to
// acquire the endpoint is returned since the node can't operate without it.
// The endpoint is released by Shutdown.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	// Every address is kept absolute so the address a peer dials matches
	// the address the peer reports in its signals.
	peerDir, err := filepath.Abs(cfg.PeerDir)
	if err != nil {
		return nil, fmt.Errorf("peer directory: %w", err)
	}

	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	replyTimeout := cfg.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = defaultReplyTimeout
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	listener, err := transport.Listen(peerDir, id)
	if err != nil {
		return nil, fmt.Errorf("acquire endpoint: %w", err)
	}

	state := State{
		id:           id,
		peerDir:      peerDir,
		replyTimeout: replyTimeout,
		readTimeout:  readTimeout,
		evHandler:    ev,

		genesis:    cfg.Genesis,
		listener:   listener,
		db:         database.New(uint(cfg.Genesis.Difficulty), ev),
		mempool:    mempool.New(),
		knownPeers: peer.NewPeerSet(),
		replies:    newReplies(),
	}

	ev("state: New: endpoint acquired: addr[%s]: difficulty[%d]", listener.Addr(), cfg.Genesis.Difficulty)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down and releases the endpoint. It is
// safe to call more than once.
func (s *State) Shutdown() error {
	var err error

	s.shutdownOnce.Do(func() {
		s.evHandler("state: Shutdown: started")
		defer s.evHandler("state: Shutdown: completed")

		// Stop all mining and accepting activity.
		if s.Worker != nil {
			s.Worker.Shutdown()
		}

		// Release the endpoint so peers stop finding this node.
		err = s.listener.Close()

		// Let sessions in flight finish. Their reads are bounded.
		s.sessions.Wait()
	})

	return err
}

// SubmitPayload adds a payload to the mempool and signals the worker to
// mine it into a block. Payloads that can't be carried as text are refused.
func (s *State) SubmitPayload(payload string) (mempool.Entry, error) {
	if !utf8.ValidString(payload) {
		return mempool.Entry{}, fmt.Errorf("payload: %w", database.ErrInvalidText)
	}

	entry, n := s.mempool.Upsert(payload)
	s.evHandler("state: SubmitPayload: payload[%s]: pool[%d]", entry.ID, n)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return entry, nil
}

