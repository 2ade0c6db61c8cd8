// Package database handles all the lower level support for maintaining the
// blocks of the ledger in memory, mining new blocks and validating blocks
// before they are accepted.
package database

import (
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
	"github.com/ethereum/go-ethereum/common"
)

// Database manages the ordered set of blocks accepted by this node. All
// access goes through Append, TipHash and Snapshot so nothing can observe
// a partially updated chain.
type Database struct {
	mu         sync.Mutex
	difficulty uint
	blocks     []Block
	tipChanged chan struct{}
	evHandler  func(v string, args ...any)
}

// New constructs an empty ledger that accepts blocks solved at the
// specified difficulty.
func New(difficulty uint, evHandler func(v string, args ...any)) *Database {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Database{
		difficulty: difficulty,
		tipChanged: make(chan struct{}),
		evHandler:  ev,
	}
}

// Difficulty returns the difficulty in force for this ledger.
func (db *Database) Difficulty() uint {
	return db.difficulty
}

// Append validates the block against the current tip and adds it to the
// end of the chain. On failure the chain is left unchanged and the error
// carries the rejection reason.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tip := db.tipHash()

	db.evHandler("database: Append: validate: blk[%s]: tip[%s]", block, digest.Short(tip))

	if err := block.Validate(tip, db.difficulty); err != nil {
		db.evHandler("database: Append: REJECTED: blk[%s]: %s", block, err)
		return err
	}

	db.blocks = append(db.blocks, block)

	// Wake up anyone mining against the old tip.
	close(db.tipChanged)
	db.tipChanged = make(chan struct{})

	db.evHandler("database: Append: ACCEPTED: blk[%s]: length[%d]", block, len(db.blocks))

	return nil
}

// TipHash returns the hash of the latest block or ZeroHash when the
// ledger is empty.
func (db *Database) TipHash() common.Hash {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.tipHash()
}

// TipWatch returns the current tip along with a channel that is closed
// the next time the tip advances.
func (db *Database) TipWatch() (common.Hash, <-chan struct{}) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.tipHash(), db.tipChanged
}

// Length returns the number of blocks in the ledger.
func (db *Database) Length() int {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.blocks)
}

// Snapshot returns a copy of the blocks in chain order.
func (db *Database) Snapshot() []Block {
	db.mu.Lock()
	defer db.mu.Unlock()

	cpy := make([]Block, len(db.blocks))
	copy(cpy, db.blocks)

	return cpy
}

// tipHash must be called with the lock held.
func (db *Database) tipHash() common.Hash {
	if len(db.blocks) == 0 {
		return digest.ZeroHash
	}

	return db.blocks[len(db.blocks)-1].hash
}
