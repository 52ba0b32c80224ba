// Package database handles all the lower level support for maintaining the
// blockchain in memory. It owns the block model, the hashing and proof of work
// rules, block and chain validation and the canonical chain itself.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// ErrInsufficientWork is returned when a candidate chain does not carry more
// cumulative work than the current chain.
var ErrInsufficientWork = errors.New("candidate chain does not have more cumulative work")

// =============================================================================

// Database manages the canonical chain. The chain only changes by appending a
// single block or by swapping the whole chain for a heavier one.
type Database struct {
	mu        sync.RWMutex
	rules     Rules
	evHandler EventHandler
	blocks    []Block
}

// New constructs a database holding a chain that contains only the
// genesis block.
func New(rules Rules, evHandler EventHandler) *Database {
	ev := evHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	return &Database{
		rules:     rules,
		evHandler: ev,
		blocks:    []Block{genesisBlock},
	}
}

// Rules returns the validation rules the database applies.
func (db *Database) Rules() Rules {
	return db.rules
}

// Blocks returns a copy of the current chain.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Snapshot returns a copy of the current chain together with its latest block
// taken under a single read lock.
func (db *Database) Snapshot() ([]Block, Block) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks, blocks[len(blocks)-1]
}

// Length returns the number of blocks in the chain including genesis.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// CumulativeWork returns the cumulative work of the current chain.
func (db *Database) CumulativeWork() *uint256.Int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return CumulativeWork(db.blocks)
}

// Append validates the block against the latest block and, if that passes,
// adds it to the end of the chain. On failure the chain is unchanged.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	latest := db.blocks[len(db.blocks)-1]
	if err := block.ValidateBlock(latest, db.rules, db.evHandler); err != nil {
		return err
	}

	db.blocks = append(db.blocks, block)

	return nil
}

// =============================================================================

// WorkComparison captures the cumulative work of both sides of a
// replacement decision.
type WorkComparison struct {
	Candidate *uint256.Int
	Current   *uint256.Int
}

// Replace swaps the current chain for the candidate chain if the candidate is
// valid and carries strictly more cumulative work. The comparison and the
// swap happen under one lock so exactly one replacement can commit against a
// given chain. A rejected candidate leaves the chain untouched.
func (db *Database) Replace(candidate []Block) (WorkComparison, error) {
	blocks := make([]Block, len(candidate))
	copy(blocks, candidate)

	// Validation doesn't depend on the current chain so it can run before
	// the lock is taken.
	if err := ValidateChain(blocks, db.rules, db.evHandler); err != nil {
		return WorkComparison{}, err
	}

	candidateWork := CumulativeWork(blocks)

	db.mu.Lock()
	defer db.mu.Unlock()

	cmp := WorkComparison{
		Candidate: candidateWork,
		Current:   CumulativeWork(db.blocks),
	}

	if !cmp.Candidate.Gt(cmp.Current) {
		return cmp, fmt.Errorf("%w: candidate[%s] current[%s]", ErrInsufficientWork, cmp.Candidate.Dec(), cmp.Current.Dec())
	}

	db.blocks = blocks

	return cmp, nil
}
