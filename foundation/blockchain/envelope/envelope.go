// Package envelope defines the signals peers exchange and the textual
// encoding used to put them on the wire. A signal's kind and value are one
// closed variant so a mismatch is rejected at decode time.
package envelope

import (
	"fmt"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// Kind identifies the type of a signal on the wire.
type Kind string

// Set of kinds a signal can have.
const (
	KindIsOkay         Kind = "IsOkay"
	KindAddBlock       Kind = "AddBlock"
	KindIsBlockConform Kind = "IsThisBlockIsConform"
	KindFinishedMining Kind = "FinishedMining"
	KindNewMiner       Kind = "NewMiner"
)

// Value is the payload of a signal. Only the types in this package
// implement it.
type Value interface {
	Kind() Kind
	sealed()
}

// Okay is the acknowledgement a peer sends back for a request.
type Okay struct {
	OK bool
}

// BlockProposal asks the receiving peer to append the block.
type BlockProposal struct {
	Block database.Block
}

// Conformity reports whether a block was found to be conform.
type Conformity struct {
	Conform bool
}

// MinedBlock informs a peer a block was mined.
type MinedBlock struct {
	Block database.Block
}

// MinerAnnouncement introduces a new miner to a peer.
type MinerAnnouncement struct{}

func (Okay) Kind() Kind              { return KindIsOkay }
func (BlockProposal) Kind() Kind     { return KindAddBlock }
func (Conformity) Kind() Kind        { return KindIsBlockConform }
func (MinedBlock) Kind() Kind        { return KindFinishedMining }
func (MinerAnnouncement) Kind() Kind { return KindNewMiner }

func (Okay) sealed()              {}
func (BlockProposal) sealed()     {}
func (Conformity) sealed()        {}
func (MinedBlock) sealed()        {}
func (MinerAnnouncement) sealed() {}

// =============================================================================

// Signal represents one message exchanged between two peers.
type Signal struct {
	From  string
	Value Value
}

// Kind returns the kind of the signal's value.
func (s Signal) Kind() Kind {
	if s.Value == nil {
		return ""
	}
	return s.Value.Kind()
}

// String implements the fmt.Stringer interface for logging.
func (s Signal) String() string {
	switch v := s.Value.(type) {
	case Okay:
		return fmt.Sprintf("%s[%t] from %s", s.Kind(), v.OK, s.From)
	case Conformity:
		return fmt.Sprintf("%s[%t] from %s", s.Kind(), v.Conform, s.From)
	case BlockProposal:
		return fmt.Sprintf("%s[%s] from %s", s.Kind(), v.Block, s.From)
	case MinedBlock:
		return fmt.Sprintf("%s[%s] from %s", s.Kind(), v.Block, s.From)
	}
	return fmt.Sprintf("%s from %s", s.Kind(), s.From)
}

// IsOkay constructs the acknowledgement signal.
func IsOkay(from string, ok bool) Signal {
	return Signal{From: from, Value: Okay{OK: ok}}
}

// AddBlock constructs a signal asking a peer to append the block.
func AddBlock(from string, block database.Block) Signal {
	return Signal{From: from, Value: BlockProposal{Block: block}}
}

// IsBlockConform constructs a signal reporting a block's conformity.
func IsBlockConform(from string, conform bool) Signal {
	return Signal{From: from, Value: Conformity{Conform: conform}}
}

// FinishedMining constructs a signal announcing a mined block.
func FinishedMining(from string, block database.Block) Signal {
	return Signal{From: from, Value: MinedBlock{Block: block}}
}

// NewMiner constructs the announcement a miner sends to its peers.
func NewMiner(from string) Signal {
	return Signal{From: from, Value: MinerAnnouncement{}}
}
