package database

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
)

// ErrCancelled is returned by Mine when the search was stopped before a
// solution was found. It is an expected outcome, the caller is supposed to
// restart against the new tip.
var ErrCancelled = errors.New("mining cancelled")

// ErrNonceSpaceExhausted is returned if every nonce was tried.
var ErrNonceSpaceExhausted = errors.New("nonce space exhausted")

// progressInterval is the number of attempts between progress events.
const progressInterval = 1_000_000

// Mine performs the work of finding a nonce that solves the POW puzzle for
// the candidate block. The search starts at nonce zero and checks the
// context before every attempt.
func Mine(ctx context.Context, candidate Block, difficulty uint, ev func(v string, args ...any)) (Block, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	if difficulty > digest.MaxDifficulty {
		return Block{}, fmt.Errorf("difficulty %d is larger than %d", difficulty, digest.MaxDifficulty)
	}

	if err := CheckText(candidate); err != nil {
		return Block{}, err
	}

	ev("database: Mine: MINING: started: prevBlk[%s]: difficulty[%d]", digest.Short(candidate.PrevHash), difficulty)
	defer ev("database: Mine: MINING: completed")

	var nonce uint64
	for {
		if err := ctx.Err(); err != nil {
			ev("database: Mine: MINING: CANCELLED: attempts[%d]", nonce)
			return Block{}, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		hash := ComputeHash(candidate, nonce)
		if digest.Meets(hash, difficulty) {
			candidate.Nonce = nonce
			candidate.hash = hash

			ev("database: Mine: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]", digest.Short(candidate.PrevHash), digest.Short(hash), nonce)
			return candidate, nil
		}

		if nonce == math.MaxUint64 {
			return Block{}, ErrNonceSpaceExhausted
		}
		nonce++

		if nonce%progressInterval == 0 {
			ev("database: Mine: MINING: attempts[%d]", nonce)
		}
	}
}
