package database

const (
	// BlockGenerationInterval is the number of seconds expected between blocks.
	BlockGenerationInterval = 10

	// DifficultyAdjustmentInterval is the number of blocks between difficulty
	// adjustments.
	DifficultyAdjustmentInterval = 10

	// MaxDifficulty is the largest difficulty a block can carry. The hash has
	// 256 bits and the work of a block must fit in 256 bits.
	MaxDifficulty = 255
)

// RequiredDifficulty returns the difficulty the next block mined on top of
// the specified chain must carry. Every DifficultyAdjustmentInterval blocks
// the difficulty is recalculated from the time it took to mine the last
// interval, otherwise the difficulty of the latest block carries forward.
func RequiredDifficulty(blocks []Block) uint {
	if len(blocks) == 0 {
		return 0
	}

	latest := blocks[len(blocks)-1]
	if latest.Index%DifficultyAdjustmentInterval != 0 || latest.Index == 0 {
		return latest.Difficulty
	}

	if len(blocks) < DifficultyAdjustmentInterval {
		return latest.Difficulty
	}

	return adjustedDifficulty(latest, blocks)
}

// adjustedDifficulty compares the time taken to mine the last interval of
// blocks against the expected time and moves the difficulty by one step.
func adjustedDifficulty(latest Block, blocks []Block) uint {
	prevAdjustment := blocks[len(blocks)-DifficultyAdjustmentInterval]

	const expected = BlockGenerationInterval * DifficultyAdjustmentInterval
	taken := latest.Timestamp - prevAdjustment.Timestamp

	switch {
	case taken < expected/2:
		if prevAdjustment.Difficulty >= MaxDifficulty {
			return MaxDifficulty
		}
		return prevAdjustment.Difficulty + 1

	case taken > expected*2:
		if prevAdjustment.Difficulty == 0 {
			return 0
		}
		return prevAdjustment.Difficulty - 1
	}

	return prevAdjustment.Difficulty
}
