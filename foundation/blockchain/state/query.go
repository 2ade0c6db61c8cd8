package state

import (
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// RetrieveID returns the identifier of this node.
func (s *State) RetrieveID() uuid.UUID {
	return s.id
}

// RetrieveAddr returns the endpoint address peers use to reach this node.
func (s *State) RetrieveAddr() string {
	return s.listener.Addr()
}

// RetrievePeerDir returns the directory holding the peer endpoints.
func (s *State) RetrievePeerDir() string {
	return s.peerDir
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLedger returns a copy of the blocks in the local ledger.
func (s *State) RetrieveLedger() []database.Block {
	return s.db.Snapshot()
}

// RetrieveTip returns the hash of the last block in the ledger.
func (s *State) RetrieveTip() common.Hash {
	return s.db.TipHash()
}

// RetrieveMempool returns a copy of the payloads waiting to be mined.
func (s *State) RetrieveMempool() []mempool.Entry {
	return s.mempool.Copy()
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.RetrieveAddr())
}

// RetrievePeerStatuses returns the connectivity status of the known peers.
func (s *State) RetrievePeerStatuses() []peer.PeerStatus {
	return s.knownPeers.Statuses()
}

// =============================================================================

// QueryLedgerLength returns the number of blocks in the ledger.
func (s *State) QueryLedgerLength() int {
	return s.db.Length()
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}
