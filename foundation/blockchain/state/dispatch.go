package state

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/envelope"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
)

// ErrEndpointClosed is returned by AcceptNext once the endpoint is released.
var ErrEndpointClosed = errors.New("endpoint closed")

// sessionState represents where an inbound session is in its lifecycle.
type sessionState int

// Set of states an inbound session moves through.
const (
	awaitingConnection sessionState = iota
	frameReceived
	decoded
	dispatched
	repliedOrDropped
)

func (ss sessionState) String() string {
	switch ss {
	case awaitingConnection:
		return "AwaitingConnection"
	case frameReceived:
		return "FrameReceived"
	case decoded:
		return "Decoded"
	case dispatched:
		return "Dispatched"
	case repliedOrDropped:
		return "RepliedOrDropped"
	}
	return fmt.Sprintf("sessionState(%d)", int(ss))
}

// =============================================================================

// AcceptNext accepts one pending inbound connection, waiting at most the
// specified duration, and serves it on its own goroutine. It reports false
// when nothing was pending so the caller can yield.
func (s *State) AcceptNext(wait time.Duration) (bool, error) {
	conn, err := s.listener.Accept(wait)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrNoConnection):
			return false, nil
		case errors.Is(err, net.ErrClosed):
			return false, ErrEndpointClosed
		}

		// A failed accept only loses that connection.
		s.evHandler("state: AcceptNext: WARNING: %s", err)
		return false, nil
	}

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		s.serveSession(conn)
	}()

	return true, nil
}

// serveSession reads the single frame carried by the connection, dispatches
// it and sends the reply back to the sender's own endpoint.
func (s *State) serveSession(conn net.Conn) {
	defer conn.Close()

	state := awaitingConnection
	defer func() {
		s.evHandler("state: session: %s -> %s", state, repliedOrDropped)
	}()

	frame, err := transport.ReadFrame(conn, s.readTimeout)
	if err != nil {
		s.evHandler("state: session: %s: DROPPED: %s", state, err)
		return
	}
	state = frameReceived

	sig, err := envelope.Decode(frame)
	if err != nil {
		s.evHandler("state: session: %s: DROPPED: %s", state, err)
		return
	}
	state = decoded

	s.evHandler("state: session: %s: signal[%s]", state, sig)

	reply, ok := s.Dispatch(sig)
	state = dispatched

	if !ok {
		return
	}

	if err := s.send(sig.From, reply); err != nil {
		s.evHandler("state: session: %s: reply to %s: WARNING: %s", state, sig.From, err)
		return
	}

	s.evHandler("state: session: %s: replied[%s]", state, reply)
}

// Dispatch applies the signal to the node and returns the reply to send
// back to the sender, if the signal calls for one.
func (s *State) Dispatch(sig envelope.Signal) (envelope.Signal, bool) {
	switch v := sig.Value.(type) {
	case envelope.BlockProposal:
		err := s.AcceptBlock(v.Block)
		return envelope.IsOkay(s.RetrieveAddr(), err == nil), true

	case envelope.MinerAnnouncement:
		pr := peer.New(s.normalize(sig.From))
		if s.knownPeers.Add(pr) {
			s.evHandler("state: Dispatch: new miner: peer[%s]", pr)
		}
		s.knownPeers.Record(pr, nil)
		return envelope.IsOkay(s.RetrieveAddr(), true), true

	case envelope.Okay, envelope.Conformity, envelope.MinedBlock:
		if !s.replies.deliver(sig) {
			s.evHandler("state: Dispatch: unsolicited: signal[%s]", sig)
		}
		return envelope.Signal{}, false
	}

	s.evHandler("state: Dispatch: WARNING: unhandled signal[%s]", sig)
	return envelope.Signal{}, false
}

// AcceptBlock takes a block received from a peer and appends it to the
// ledger if it extends the current tip.
func (s *State) AcceptBlock(block database.Block) error {
	s.evHandler("state: AcceptBlock: started : block[%s]", block)
	defer s.evHandler("state: AcceptBlock: completed")

	if err := s.db.Append(block); err != nil {
		s.evHandler("state: AcceptBlock: REJECTED: reason[%v]", database.RejectionReason(err))
		return err
	}

	return nil
}
