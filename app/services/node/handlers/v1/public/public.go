// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/peerledger/business/web/errs"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
	"github.com/ardanlabs/peerledger/foundation/events"
	"github.com/ardanlabs/peerledger/foundation/validate"
	"github.com/ardanlabs/peerledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer func() {
		if dropped, err := h.Evts.Release(v.TraceID); err == nil && dropped > 0 {
			h.Log.Infow("events", "traceid", v.TraceID, "dropped", dropped)
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(evt); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Ledger returns a copy of the blocks in the local ledger.
func (h Handlers) Ledger(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.RetrieveLedger()
	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Tip returns the hash of the last block and the length of the ledger.
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := tip{
		Hash:   digest.Hex(h.State.RetrieveTip()),
		Length: h.State.QueryLedgerLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Peers returns the connectivity status of the known peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	statuses := h.State.RetrievePeerStatuses()
	return web.Respond(ctx, w, statuses, http.StatusOK)
}

// Mempool returns the payloads waiting to be mined.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	entries := h.State.RetrieveMempool()
	return web.Respond(ctx, w, entries, http.StatusOK)
}

// SubmitPayload adds a payload to the mempool to be mined by this node.
func (h Handlers) SubmitPayload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var sp submitPayload
	if err := web.Decode(r, &sp); err != nil {
		return decodeError(err)
	}

	entry, err := h.State.SubmitPayload(sp.Payload)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit payload", "traceid", v.TraceID, "id", entry.ID, "size", len(sp.Payload))

	return web.Respond(ctx, w, entry, http.StatusAccepted)
}

// SendBlock mines the payload into a block on top of the local tip and
// proposes it to the specified peer.
func (h Handlers) SendBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var sb sendBlock
	if err := web.Decode(r, &sb); err != nil {
		return decodeError(err)
	}

	h.Log.Infow("send block", "traceid", v.TraceID, "to", sb.To)

	block, err := h.State.SendBlock(ctx, sb.To, sb.Payload)
	switch {
	case errors.Is(err, state.ErrBlockRejected):
		resp := sendResult{Block: block, Accepted: false, Peer: sb.To}
		return web.Respond(ctx, w, resp, http.StatusConflict)

	case errors.Is(err, database.ErrInvalidText):
		return errs.NewTrusted(err, http.StatusBadRequest)

	case errors.Is(err, state.ErrNoReply), errors.Is(err, transport.ErrTransport):
		return errs.NewTrusted(err, http.StatusBadGateway)

	case err != nil:
		return err
	}

	resp := sendResult{Block: block, Accepted: true, Peer: sb.To}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// decodeError keeps validation failures intact for the error middleware and
// reports everything else as a bad request.
func decodeError(err error) error {
	if validate.IsFieldErrors(err) {
		return err
	}
	return errs.NewTrusted(err, http.StatusBadRequest)
}
