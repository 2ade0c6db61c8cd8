package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ardanlabs/peerledger/foundation/blockchain/digest"
	"github.com/ethereum/go-ethereum/common"
)

// Set of reasons a block can be rejected by validation.
var (
	ErrHashMismatch       = errors.New("block hash does not match its fields")
	ErrInvalidPrevHash    = errors.New("block does not extend the expected previous hash")
	ErrInvalidProofOfWork = errors.New("block hash does not meet the difficulty")
)

// ErrInvalidText is returned when a block field can't be carried as text.
var ErrInvalidText = errors.New("block field is not valid UTF-8")

// RejectionReason returns the validation sentinel carried by the error
// or nil if the error is not a validation failure.
func RejectionReason(err error) error {
	for _, reason := range []error{ErrHashMismatch, ErrInvalidPrevHash, ErrInvalidProofOfWork} {
		if errors.Is(err, reason) {
			return reason
		}
	}

	return nil
}

// =============================================================================

// Block represents a unit of data linked to the block before it and
// protected by a proof of work. The hash is derived by the mining engine
// and can't be set by the user of the type.
type Block struct {
	Creator  string      // Unique id of the peer who created the block.
	Payload  string      // Opaque content carried by the block.
	PrevHash common.Hash // Hash of the previous block or ZeroHash.
	Nonce    uint64      // Value identified to solve the hash solution.

	hash common.Hash
}

// NewCandidate constructs an unmined block. The nonce and hash will be
// identified by the mining engine.
func NewCandidate(creator string, payload string, prevHash common.Hash) Block {
	return Block{
		Creator:  creator,
		Payload:  payload,
		PrevHash: prevHash,
	}
}

// CheckText reports an error if the creator or payload is not valid UTF-8.
// Such a block would be altered on the wire and fail validation at the peer.
func CheckText(b Block) error {
	switch {
	case !utf8.ValidString(b.Creator):
		return fmt.Errorf("creator: %w", ErrInvalidText)
	case !utf8.ValidString(b.Payload):
		return fmt.Errorf("payload: %w", ErrInvalidText)
	}
	return nil
}

// ComputeHash returns the hash of the block's canonical fields using the
// specified nonce. The stored hash and nonce are ignored.
func ComputeHash(b Block, nonce uint64) common.Hash {
	var w digest.Writer
	return w.String(b.Creator).
		String(b.Payload).
		Hash(b.PrevHash).
		Uint64(nonce).
		Sum()
}

// Hash returns the hash that was assigned to the block by the mining
// engine or received from the wire.
func (b Block) Hash() common.Hash {
	return b.hash
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%s:%s", b.Creator, digest.Short(b.hash))
}

// Validate takes a block and validates it can extend the chain whose tip is
// the expected previous hash at the specified difficulty.
func (b Block) Validate(expPrevHash common.Hash, difficulty uint) error {
	if hash := ComputeHash(b, b.Nonce); hash != b.hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrHashMismatch, digest.Hex(b.hash), digest.Hex(hash))
	}

	if b.PrevHash != expPrevHash {
		return fmt.Errorf("%w: got %s, exp %s", ErrInvalidPrevHash, digest.Hex(b.PrevHash), digest.Hex(expPrevHash))
	}

	if !digest.Meets(b.hash, difficulty) {
		return fmt.Errorf("%w: zero bits %d, difficulty %d", ErrInvalidProofOfWork, digest.LeadingZeroBits(b.hash), difficulty)
	}

	return nil
}

// IsStructurallyValid reports whether the block passes validation.
func (b Block) IsStructurallyValid(expPrevHash common.Hash, difficulty uint) bool {
	return b.Validate(expPrevHash, difficulty) == nil
}

// =============================================================================

// BlockData represents what is written to the wire for a block.
type BlockData struct {
	Creator  string      `json:"creator"`
	Payload  string      `json:"payload"`
	PrevHash common.Hash `json:"prev_hash"`
	Hash     common.Hash `json:"hash"`
	Nonce    uint64      `json:"nonce"`
}

// NewBlockData constructs the value to serialize to the wire.
func NewBlockData(b Block) BlockData {
	return BlockData{
		Creator:  b.Creator,
		Payload:  b.Payload,
		PrevHash: b.PrevHash,
		Hash:     b.hash,
		Nonce:    b.Nonce,
	}
}

// ToBlock converts a BlockData into a Block. The claimed hash is kept as
// is so validation can detect a mismatch.
func ToBlock(bd BlockData) Block {
	return Block{
		Creator:  bd.Creator,
		Payload:  bd.Payload,
		PrevHash: bd.PrevHash,
		Nonce:    bd.Nonce,
		hash:     bd.Hash,
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(NewBlockData(b))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Block) UnmarshalJSON(data []byte) error {
	var bd BlockData
	if err := json.Unmarshal(data, &bd); err != nil {
		return err
	}

	*b = ToBlock(bd)
	return nil
}
