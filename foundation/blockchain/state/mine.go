package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// ErrNoPayloads is returned when a block is requested to be created
// and there are no payloads waiting in the mempool.
var ErrNoPayloads = errors.New("no payloads in mempool")

// =============================================================================

// MineNewBlock mines the oldest payload in the mempool into a block that
// becomes the new tip of the local ledger. The payload is claimed for the
// duration of the work and returned to the mempool if no block came of it.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	entry, found := s.mempool.Take()
	if !found {
		return database.Block{}, ErrNoPayloads
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: payload[%s]", entry.ID)

	block, err := s.mineBlock(ctx, entry.Payload)
	if err != nil {
		n := s.mempool.Restore(entry)
		s.evHandler("state: MineNewBlock: MINING: restore payload[%s]: pool[%d]", entry.ID, n)
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: payload[%s] mined", entry.ID)

	return block, nil
}

// =============================================================================

// mineBlock solves the proof of work for the payload on top of the current
// tip and appends the result to the ledger. When the tip moves while the
// search is running, the search is abandoned and restarted on the new tip.
func (s *State) mineBlock(ctx context.Context, payload string) (database.Block, error) {
	for {
		tip, tipChanged := s.db.TipWatch()
		candidate := database.NewCandidate(s.id.String(), payload, tip)

		block, err := s.mineOn(ctx, candidate, tipChanged)
		if err != nil {
			if errors.Is(err, database.ErrCancelled) && ctx.Err() == nil {
				s.evHandler("state: mineBlock: MINING: tip changed, restarting")
				continue
			}
			return database.Block{}, err
		}

		if err := s.db.Append(block); err != nil {
			if errors.Is(err, database.ErrInvalidPrevHash) {
				s.evHandler("state: mineBlock: MINING: stale block, restarting")
				continue
			}
			return database.Block{}, err
		}

		s.evHandler("state: mineBlock: MINING: appended block[%s]", block)

		return block, nil
	}
}

// mineOn runs the proof of work for the candidate until it is solved, the
// context is cancelled or the tip the candidate was built on is replaced.
func (s *State) mineOn(ctx context.Context, candidate database.Block, tipChanged <-chan struct{}) (database.Block, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-tipChanged:
			cancel()
		case <-ctx.Done():
		}
	}()

	return database.Mine(ctx, candidate, s.db.Difficulty(), s.evHandler)
}
