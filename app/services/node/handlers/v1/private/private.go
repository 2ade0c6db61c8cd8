// Package private maintains the group of handlers for node operators.
package private

import (
	"context"
	"net/http"

	"github.com/ardanlabs/peerledger/business/web/errs"
	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
	"github.com/ardanlabs/peerledger/foundation/blockchain/peer"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// nodeStatus describes the current state of the node.
type nodeStatus struct {
	ID         string      `json:"id"`
	Endpoint   string      `json:"endpoint"`
	Difficulty uint16      `json:"difficulty"`
	Tip        string      `json:"tip"`
	Length     int         `json:"length"`
	Mempool    int         `json:"mempool"`
	KnownPeers []peer.Peer `json:"known_peers"`
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status := nodeStatus{
		ID:         h.State.RetrieveID().String(),
		Endpoint:   h.State.RetrieveAddr(),
		Difficulty: h.State.RetrieveGenesis().Difficulty,
		Tip:        digest.Hex(h.State.RetrieveTip()),
		Length:     h.State.QueryLedgerLength(),
		Mempool:    h.State.QueryMempoolLength(),
		KnownPeers: h.State.RetrieveKnownPeers(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// FetchBlocks announces the node to the peers in the directory right away
// instead of waiting for the next peer update.
func (h Handlers) FetchBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	statuses, err := h.State.FetchBlocks(ctx)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadGateway)
	}

	return web.Respond(ctx, w, statuses, http.StatusOK)
}
