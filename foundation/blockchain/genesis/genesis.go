// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date       time.Time `json:"date"`
	ChainID    uint16    `json:"chain_id"`   // The chain id represents an unique id for this running instance.
	Difficulty uint16    `json:"difficulty"` // Number of leading zero bits a block hash needs.
}

// Default returns the genesis used when no file is provided.
func Default() Genesis {
	return Genesis{
		Date:       time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:    1,
		Difficulty: 16,
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// LoadOrDefault loads the genesis file, falling back to the default when
// the file does not exist.
func LoadOrDefault(path string) (Genesis, error) {
	gen, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return gen, err
}

// Validate checks the settings can be used to run a chain.
func (g Genesis) Validate() error {
	if g.Difficulty > digest.MaxDifficulty {
		return fmt.Errorf("difficulty %d is larger than %d", g.Difficulty, digest.MaxDifficulty)
	}

	return nil
}
