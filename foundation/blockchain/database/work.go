package database

import (
	"github.com/holiman/uint256"
)

// BlockWork returns the work represented by a single block, 2^difficulty.
// A difficulty beyond MaxDifficulty saturates at the largest value.
func BlockWork(block Block) *uint256.Int {
	if block.Difficulty > MaxDifficulty {
		return new(uint256.Int).SetAllOne()
	}

	return new(uint256.Int).Lsh(uint256.NewInt(1), block.Difficulty)
}

// CumulativeWork returns the sum of the work of every block in the chain.
// This value, not the length of the chain, decides which of two competing
// chains is kept. The sum saturates instead of wrapping around.
func CumulativeWork(blocks []Block) *uint256.Int {
	total := new(uint256.Int)
	for _, block := range blocks {
		if _, overflow := total.AddOverflow(total, BlockWork(block)); overflow {
			return new(uint256.Int).SetAllOne()
		}
	}

	return total
}
