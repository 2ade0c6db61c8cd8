package public

import (
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// submitPayload is what a client sends to have a payload mined.
type submitPayload struct {
	Payload string `json:"payload" validate:"required"`
}

// sendBlock is what a client sends to mine a payload and propose the
// resulting block to a single peer.
type sendBlock struct {
	To      string `json:"to" validate:"required"`
	Payload string `json:"payload" validate:"required"`
}

// sendResult reports the outcome of proposing a block to a peer.
type sendResult struct {
	Block    database.Block `json:"block"`
	Accepted bool           `json:"accepted"`
	Peer     string         `json:"peer"`
}

// tip describes the end of the local ledger.
type tip struct {
	Hash   string `json:"hash"`
	Length int    `json:"length"`
}
