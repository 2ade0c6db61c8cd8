// Package digest provides helper functions for handling the blockchain
// hashing needs.
package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Size is the number of bytes in a hash value.
const Size = common.HashLength

// MaxDifficulty is the largest number of leading zero bits a hash can have.
const MaxDifficulty = Size * 8

// ZeroHash represents a hash code of zeros. It is the previous hash of
// the first block in every ledger.
var ZeroHash = common.Hash{}

// =============================================================================

// Writer accumulates the canonical encoding of a set of fields so the
// same values always produce the same hash. Variable length fields are
// length prefixed so field boundaries can't shift between values.
type Writer struct {
	buf []byte
}

// String appends a length prefixed string.
func (w *Writer) String(s string) *Writer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// Hash appends a fixed width hash value.
func (w *Writer) Hash(h common.Hash) *Writer {
	w.buf = append(w.buf, h[:]...)
	return w
}

// Uint64 appends an unsigned integer in big endian form.
func (w *Writer) Uint64(v uint64) *Writer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
	return w
}

// Sum returns the SHA-256 hash of everything written so far.
func (w *Writer) Sum() common.Hash {
	return sha256.Sum256(w.buf)
}

// =============================================================================

// LeadingZeroBits counts the number of zero bits at the front of the hash.
func LeadingZeroBits(h common.Hash) int {
	var n int
	for _, b := range h {
		if b != 0 {
			return n + bits.LeadingZeros8(b)
		}
		n += 8
	}

	return n
}

// Meets reports whether the hash has at least difficulty leading zero bits.
func Meets(h common.Hash, difficulty uint) bool {
	return uint(LeadingZeroBits(h)) >= difficulty
}

// Hex returns the 0x prefixed hex form of the hash.
func Hex(h common.Hash) string {
	return hexutil.Encode(h[:])
}

// Short returns an abbreviated hex form of the hash for logging.
func Short(h common.Hash) string {
	s := Hex(h)
	return s[:10]
}
