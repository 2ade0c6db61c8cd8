package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/validate"
	"github.com/ethereum/go-ethereum/common"
)

// ErrDecode is returned when a frame is not a valid signal.
var ErrDecode = errors.New("unable to decode signal")

// signalData represents what is written to the wire for a signal.
type signalData struct {
	From  string          `json:"from_address" validate:"required"`
	Kind  Kind            `json:"kind" validate:"required,oneof=IsOkay AddBlock IsThisBlockIsConform FinishedMining NewMiner"`
	Value json.RawMessage `json:"value"`
}

// blockData is the strict form of a block object. Pointers are used so a
// missing field can be told apart from a zero value.
type blockData struct {
	Creator  *string      `json:"creator" validate:"required"`
	Payload  *string      `json:"payload" validate:"required"`
	PrevHash *common.Hash `json:"prev_hash" validate:"required"`
	Hash     *common.Hash `json:"hash" validate:"required"`
	Nonce    *uint64      `json:"nonce" validate:"required"`
}

// =============================================================================

// Encode produces the canonical text form of the signal.
func Encode(s Signal) ([]byte, error) {
	if s.Value == nil {
		return nil, errors.New("signal has no value")
	}

	if !utf8.ValidString(s.From) {
		return nil, errors.New("from address is not valid UTF-8")
	}

	var value any
	switch v := s.Value.(type) {
	case Okay:
		value = v.OK
	case Conformity:
		value = v.Conform
	case BlockProposal:
		if err := database.CheckText(v.Block); err != nil {
			return nil, err
		}
		value = database.NewBlockData(v.Block)
	case MinedBlock:
		if err := database.CheckText(v.Block); err != nil {
			return nil, err
		}
		value = database.NewBlockData(v.Block)
	case MinerAnnouncement:
		value = nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	sd := signalData{
		From:  s.From,
		Kind:  s.Kind(),
		Value: raw,
	}

	if err := validate.Check(sd); err != nil {
		return nil, fmt.Errorf("invalid signal: %w", err)
	}

	return json.Marshal(sd)
}

// Decode parses the text form of a signal. Any malformed frame, unknown
// kind or value that doesn't match the kind is rejected as a whole.
func Decode(data []byte) (Signal, error) {
	var sd signalData
	if err := strict(data, &sd); err != nil {
		return Signal{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := validate.Check(sd); err != nil {
		return Signal{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	value, err := decodeValue(sd.Kind, sd.Value)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: kind %s: %w", ErrDecode, sd.Kind, err)
	}

	return Signal{From: sd.From, Value: value}, nil
}

// =============================================================================

func decodeValue(kind Kind, raw json.RawMessage) (Value, error) {
	switch kind {
	case KindIsOkay:
		ok, err := decodeBool(raw)
		if err != nil {
			return nil, err
		}
		return Okay{OK: ok}, nil

	case KindIsBlockConform:
		conform, err := decodeBool(raw)
		if err != nil {
			return nil, err
		}
		return Conformity{Conform: conform}, nil

	case KindAddBlock:
		block, err := decodeBlock(raw)
		if err != nil {
			return nil, err
		}
		return BlockProposal{Block: block}, nil

	case KindFinishedMining:
		block, err := decodeBlock(raw)
		if err != nil {
			return nil, err
		}
		return MinedBlock{Block: block}, nil

	case KindNewMiner:
		if len(raw) != 0 && !bytes.Equal(raw, []byte("null")) {
			return nil, errors.New("value must be empty")
		}
		return MinerAnnouncement{}, nil
	}

	return nil, fmt.Errorf("unknown kind %q", kind)
}

func decodeBool(raw json.RawMessage) (bool, error) {
	var b *bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, err
	}
	if b == nil {
		return false, errors.New("value must be a boolean")
	}
	return *b, nil
}

func decodeBlock(raw json.RawMessage) (database.Block, error) {
	var bd blockData
	if err := strict(raw, &bd); err != nil {
		return database.Block{}, err
	}

	if err := validate.Check(bd); err != nil {
		return database.Block{}, err
	}

	block := database.ToBlock(database.BlockData{
		Creator:  *bd.Creator,
		Payload:  *bd.Payload,
		PrevHash: *bd.PrevHash,
		Hash:     *bd.Hash,
		Nonce:    *bd.Nonce,
	})

	return block, nil
}

// strict decodes exactly one JSON object with no unknown fields and no
// trailing data.
func strict(data []byte, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return errors.New("expected a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after signal")
	}

	return nil
}
