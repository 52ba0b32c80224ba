package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ardanlabs/powchain/foundation/validate"
)

// TimestampTolerance is the number of seconds a block's timestamp may trail
// its parent or lead the local clock.
const TimestampTolerance = 60

// Reason identifies which validation rule a block or chain failed.
type Reason string

// Set of reasons a block or chain can be rejected.
const (
	ReasonStructure    Reason = "structure"
	ReasonIndex        Reason = "index"
	ReasonPreviousHash Reason = "previousHash"
	ReasonTimestamp    Reason = "timestamp"
	ReasonHash         Reason = "hash"
	ReasonDifficulty   Reason = "difficulty"
	ReasonGenesis      Reason = "genesis"
)

// ValidationError is returned when a block or chain fails validation.
type ValidationError struct {
	Reason Reason
	Index  uint64
	Err    error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("blk[%d] rejected: %s: %s", ve.Index, ve.Reason, ve.Err)
}

// Unwrap provides access to the underlying error.
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// newValidationError constructs a validation error for the specified block.
func newValidationError(reason Reason, index uint64, format string, args ...any) error {
	return &ValidationError{
		Reason: reason,
		Index:  index,
		Err:    fmt.Errorf(format, args...),
	}
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationError returns a copy of the ValidationError pointer.
func GetValidationError(err error) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return ve
}

// =============================================================================

// PoWPolicy decides what happens when a block's hash does not carry the
// number of leading zero bits its difficulty claims.
type PoWPolicy int

// Set of proof of work policies.
const (
	PoWStrict  PoWPolicy = iota // Reject the block.
	PoWLenient                  // Report the failure and accept the block.
)

// ParsePoWPolicy converts the string form of a policy into a PoWPolicy.
func ParsePoWPolicy(s string) (PoWPolicy, error) {
	switch strings.ToLower(s) {
	case "strict":
		return PoWStrict, nil
	case "lenient":
		return PoWLenient, nil
	}

	return PoWStrict, fmt.Errorf("unknown pow policy %q", s)
}

// String implements the Stringer interface.
func (p PoWPolicy) String() string {
	if p == PoWLenient {
		return "lenient"
	}
	return "strict"
}

// Rules represents the policy applied when validating blocks.
type Rules struct {
	PoW PoWPolicy
	Now func() time.Time
}

// now returns the current unix time using the configured clock.
func (r Rules) now() int64 {
	if r.Now == nil {
		return time.Now().UTC().Unix()
	}
	return r.Now().UTC().Unix()
}

// =============================================================================

// ValidateBlockStructure checks every field of the block carries a value of
// the expected shape.
func ValidateBlockStructure(block Block) error {
	if err := validate.Check(block); err != nil {
		return &ValidationError{Reason: ReasonStructure, Index: block.Index, Err: err}
	}

	return nil
}

// checkBlockData checks every field of a block received on the wire is
// present.
func checkBlockData(blockData BlockData) error {
	if err := validate.Check(blockData); err != nil {
		var index uint64
		if blockData.Index != nil {
			index = *blockData.Index
		}
		return &ValidationError{Reason: ReasonStructure, Index: index, Err: err}
	}

	return nil
}

// ValidateBlock takes a block and validates it to be included into the
// blockchain on top of the specified previous block. The checks run in a
// fixed order and the first failure is returned.
func (b Block) ValidateBlock(previousBlock Block, rules Rules, evHandler EventHandler) error {
	ev := evHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block structure", b.Index)

	if err := ValidateBlockStructure(b); err != nil {
		return err
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Index)

	nextNumber := previousBlock.Index + 1
	if b.Index != nextNumber {
		return newValidationError(ReasonIndex, b.Index, "this block is not the next number, got %d, exp %d", b.Index, nextNumber)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: previous hash does match parent block", b.Index)

	if b.PreviousHash != previousBlock.Hash {
		return newValidationError(ReasonPreviousHash, b.Index, "previous block hash doesn't match our known parent, got %s, exp %s", b.PreviousHash, previousBlock.Hash)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block timestamp is within tolerance", b.Index)

	if previousBlock.Timestamp-TimestampTolerance >= b.Timestamp {
		return newValidationError(ReasonTimestamp, b.Index, "block timestamp %d is too far behind parent block %d", b.Timestamp, previousBlock.Timestamp)
	}

	if now := rules.now(); b.Timestamp-TimestampTolerance >= now {
		return newValidationError(ReasonTimestamp, b.Index, "block timestamp %d is too far ahead of current time %d", b.Timestamp, now)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash matches block content", b.Index)

	if hash := b.CalculateHash(); hash != b.Hash {
		return newValidationError(ReasonHash, b.Index, "invalid block hash, got %s, exp %s", b.Hash, hash)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Index)

	if !IsHashSolved(b.Difficulty, b.Hash) {
		if rules.PoW == PoWLenient {
			ev("database: ValidateBlock: validate: blk[%d]: WARNING: hash[%s] does not solve difficulty[%d]: accepted by lenient policy", b.Index, b.Hash, b.Difficulty)
			return nil
		}
		return newValidationError(ReasonDifficulty, b.Index, "hash %s does not solve difficulty %d", b.Hash, b.Difficulty)
	}

	return nil
}

// ValidateChain validates an entire chain. The first block must be the
// genesis block and every block after must be a valid next block for the
// one before it.
func ValidateChain(blocks []Block, rules Rules, evHandler EventHandler) error {
	if len(blocks) == 0 {
		return newValidationError(ReasonGenesis, 0, "chain is empty")
	}

	if !IsGenesis(blocks[0]) {
		return newValidationError(ReasonGenesis, blocks[0].Index, "first block is not the genesis block, got hash %s", blocks[0].Hash)
	}

	for i := 1; i < len(blocks); i++ {
		if err := blocks[i].ValidateBlock(blocks[i-1], rules, evHandler); err != nil {
			return err
		}
	}

	return nil
}
