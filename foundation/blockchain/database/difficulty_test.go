package database_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// syntheticChain builds a chain of the specified number of blocks after
// genesis spaced the specified seconds apart. The blocks are not mined since
// only the timing and difficulty matter for difficulty adjustment.
func syntheticChain(n int, spacing int64, difficulty uint) []database.Block {
	gen := database.Genesis()
	blocks := []database.Block{gen}

	for i := 1; i <= n; i++ {
		blocks = append(blocks, database.Block{
			Index:      uint64(i),
			Timestamp:  gen.Timestamp + int64(i)*spacing,
			Difficulty: difficulty,
		})
	}

	return blocks
}

func Test_RequiredDifficulty(t *testing.T) {
	type table struct {
		name       string
		blocks     []database.Block
		difficulty uint
	}

	tt := []table{
		{name: "genesis", blocks: syntheticChain(0, 10, 3), difficulty: 0},
		{name: "carry", blocks: syntheticChain(7, 10, 3), difficulty: 3},
		{name: "expected", blocks: syntheticChain(10, 10, 3), difficulty: 3},
		{name: "fast", blocks: syntheticChain(10, 3, 3), difficulty: 4},
		{name: "slow", blocks: syntheticChain(10, 25, 3), difficulty: 2},
		{name: "floor", blocks: syntheticChain(10, 25, 0), difficulty: 0},
		{name: "after", blocks: syntheticChain(11, 3, 3), difficulty: 3},
		{name: "empty", blocks: nil, difficulty: 0},
	}

	t.Log("Given the need to adjust difficulty based on block timing.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %q chain.", testID, tst.name)
				{
					difficulty := database.RequiredDifficulty(tst.blocks)
					if difficulty != tst.difficulty {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, difficulty)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.difficulty)
						t.Fatalf("\t%s\tTest %d:\tShould get the required difficulty.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the required difficulty.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
