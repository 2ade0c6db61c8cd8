package state

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/envelope"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
	"golang.org/x/sync/errgroup"
)

// Set of errors returned by the outbound flows.
var (
	ErrNoReply        = errors.New("no reply from peer")
	ErrBlockRejected  = errors.New("block rejected by peer")
	ErrAllPeersFailed = errors.New("every peer failed")
)

// FetchBlocks announces this node to every peer in the directory and records
// which of them replied. A failing peer never stops the announcement to the
// others. An error is only returned when every peer failed.
func (s *State) FetchBlocks(ctx context.Context) ([]peer.PeerStatus, error) {
	s.evHandler("state: FetchBlocks: started")
	defer s.evHandler("state: FetchBlocks: completed")

	peers, err := peer.Lookup(s.peerDir, s.RetrieveAddr())
	if err != nil {
		return nil, err
	}

	s.syncKnownPeers(peers)

	var failed int
	statuses := make([]peer.PeerStatus, 0, len(peers))

	for _, pr := range peers {
		if ctx.Err() != nil {
			return statuses, ctx.Err()
		}

		reply, err := s.request(ctx, pr.Addr, envelope.NewMiner(s.RetrieveAddr()))
		if err == nil {
			if okay, isOkay := reply.Value.(envelope.Okay); !isOkay || !okay.OK {
				err = fmt.Errorf("unexpected reply: %s", reply)
			}
		}

		s.knownPeers.Record(pr, err)
		if err != nil {
			failed++
			s.evHandler("state: FetchBlocks: peer[%s]: WARNING: %s", pr, err)
		}

		status, _ := s.knownPeers.Status(pr)
		statuses = append(statuses, status)
	}

	if len(peers) > 0 && failed == len(peers) {
		return statuses, fmt.Errorf("%w: peers[%d]", ErrAllPeersFailed, failed)
	}

	return statuses, nil
}

// SendBlock mines a block for the payload on top of the local tip, appends it
// to the local ledger and proposes it to the peer at the specified address.
// The block is returned along with ErrBlockRejected if the peer refused it.
func (s *State) SendBlock(ctx context.Context, to string, payload string) (database.Block, error) {
	s.evHandler("state: SendBlock: started: to[%s]", to)
	defer s.evHandler("state: SendBlock: completed")

	block, err := s.mineBlock(ctx, payload)
	if err != nil {
		return database.Block{}, err
	}

	pr := peer.New(s.normalize(to))

	reply, err := s.request(ctx, pr.Addr, envelope.AddBlock(s.RetrieveAddr(), block))
	s.knownPeers.Record(pr, err)
	if err != nil {
		return block, err
	}

	okay, isOkay := reply.Value.(envelope.Okay)
	if !isOkay {
		return block, fmt.Errorf("unexpected reply: %s", reply)
	}

	if !okay.OK {
		return block, ErrBlockRejected
	}

	s.evHandler("state: SendBlock: accepted: peer[%s]: block[%s]", pr, block)

	return block, nil
}

// NetSendBlockToPeers takes the new mined block and proposes it to all known
// peers concurrently. Every peer is tried and its outcome recorded.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	var g errgroup.Group

	for _, pr := range s.RetrieveKnownPeers() {
		pr := pr
		g.Go(func() error {
			reply, err := s.request(ctx, pr.Addr, envelope.AddBlock(s.RetrieveAddr(), block))
			if err == nil {
				if okay, isOkay := reply.Value.(envelope.Okay); !isOkay || !okay.OK {
					err = ErrBlockRejected
				}
			}

			s.knownPeers.Record(pr, err)
			if err != nil {
				s.evHandler("state: NetSendBlockToPeers: peer[%s]: WARNING: %s", pr, err)
				return fmt.Errorf("%s: %w", pr, err)
			}

			s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr)
			return nil
		})
	}

	return g.Wait()
}

// =============================================================================

// request sends the signal to the peer and waits a bounded amount of time for
// the peer to send back its reply.
func (s *State) request(ctx context.Context, to string, sig envelope.Signal) (envelope.Signal, error) {
	to = s.normalize(to)

	unlock, err := s.replies.acquire(ctx, to)
	if err != nil {
		return envelope.Signal{}, fmt.Errorf("%w: %s: %w", ErrNoReply, peer.New(to), err)
	}
	defer unlock()

	// Register before sending since the reply can beat the send's return.
	ch, release := s.replies.expect(to)
	defer release()

	if err := s.send(to, sig); err != nil {
		return envelope.Signal{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return envelope.Signal{}, fmt.Errorf("%w: %s: %w", ErrNoReply, peer.New(to), ctx.Err())
	}
}

// send opens a new connection to the address and writes the signal.
func (s *State) send(to string, sig envelope.Signal) error {
	frame, err := envelope.Encode(sig)
	if err != nil {
		return err
	}

	return transport.Send(to, frame, s.replyTimeout)
}

// normalize makes an address absolute so it matches the address the peer
// reports in its own signals.
func (s *State) normalize(addr string) string {
	abs, err := filepath.Abs(addr)
	if err != nil {
		return filepath.Clean(addr)
	}
	return abs
}

// syncKnownPeers makes the known peers follow the directory, which is the
// authority on which peers exist.
func (s *State) syncKnownPeers(peers []peer.Peer) {
	present := make(map[peer.Peer]bool, len(peers))
	for _, pr := range peers {
		present[pr] = true
		if s.knownPeers.Add(pr) {
			s.evHandler("state: syncKnownPeers: add peer[%s]", pr)
		}
	}

	for _, pr := range s.knownPeers.Copy(s.RetrieveAddr()) {
		if !present[pr] {
			s.knownPeers.Remove(pr)
			s.evHandler("state: syncKnownPeers: remove peer[%s]", pr)
		}
	}
}
