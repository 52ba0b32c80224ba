package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const genesisHash = "91a73664bc84c0baa1fc75ea6e4aa6d1d20c5df664c724e3159aefc2e1186627"

// =============================================================================

func Test_Digest(t *testing.T) {
	type table struct {
		name       string
		index      uint64
		prevHash   string
		timestamp  int64
		data       string
		difficulty uint
		nonce      uint64
		hash       string
	}

	tt := []table{
		{
			name:      "genesis",
			timestamp: 1465154705,
			data:      "my genesis block!!",
			hash:      genesisHash,
		},
		{
			name:      "first",
			index:     1,
			prevHash:  genesisHash,
			timestamp: 1465154715,
			data:      "a",
			hash:      "4a05ef9c6e6d40f7d2c54e4101fd0996f644f2b5cc4d645465bf5ae6db003787",
		},
		{
			name:      "nonce",
			index:     1,
			prevHash:  genesisHash,
			timestamp: 1465154715,
			data:      "a",
			nonce:     1,
			hash:      "eff7c0f751e01ab8e6310dd321fd915d17874eeb2a39dbaa423295069907616e",
		},
		{
			name:       "difficulty",
			index:      1,
			prevHash:   genesisHash,
			timestamp:  1465154715,
			data:       "a",
			difficulty: 20,
			hash:       "0cdbf19e45a34e7ee719e61338a4596028a348935cd415f07be019fac890cc1c",
		},
		{
			name:       "difficulty and nonce",
			index:      1,
			prevHash:   genesisHash,
			timestamp:  1465154715,
			data:       "a",
			difficulty: 3,
			nonce:      7,
			hash:       "05dfa599e27afd5b29575b118de962396cffafca4425e2c1ac53befcbe380732",
		},
		{
			name:       "nonce and difficulty",
			index:      1,
			prevHash:   genesisHash,
			timestamp:  1465154715,
			data:       "a",
			difficulty: 7,
			nonce:      3,
			hash:       "313bb1a089dd6d099fd4687540e5a3cc56883aa604903ce4a8ed379647c6f1b2",
		},
	}

	t.Log("Given the need to hash block content deterministically.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling block %q.", testID, tst.name)
				{
					for i := 0; i < 2; i++ {
						hash := database.Digest(tst.index, tst.prevHash, tst.timestamp, tst.data, tst.difficulty, tst.nonce)
						if hash != tst.hash {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, hash)
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.hash)
							t.Fatalf("\t%s\tTest %d:\tShould get the expected digest.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected digest.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to have a fixed genesis block.")
	{
		gen := database.Genesis()

		if gen.Index != 0 || gen.PreviousHash != "" || gen.Difficulty != 0 || gen.Nonce != 0 {
			t.Fatalf("\t%s\tShould have the fixed genesis fields: %+v", failed, gen)
		}
		t.Logf("\t%s\tShould have the fixed genesis fields.", success)

		if gen.CalculateHash() != gen.Hash {
			t.Fatalf("\t%s\tShould have a genesis hash that matches its content.", failed)
		}
		t.Logf("\t%s\tShould have a genesis hash that matches its content.", success)

		if !database.IsGenesis(gen) {
			t.Fatalf("\t%s\tShould recognize the genesis block.", failed)
		}
		t.Logf("\t%s\tShould recognize the genesis block.", success)

		gen.Data = "another genesis"
		if database.IsGenesis(gen) {
			t.Fatalf("\t%s\tShould not recognize a modified genesis block.", failed)
		}
		t.Logf("\t%s\tShould not recognize a modified genesis block.", success)
	}
}

func Test_LeadingZeroBits(t *testing.T) {
	type table struct {
		name string
		hash []byte
		bits uint
	}

	tt := []table{
		{name: "none", hash: []byte{0x80, 0x00}, bits: 0},
		{name: "seven", hash: []byte{0x01, 0xff}, bits: 7},
		{name: "twelve", hash: []byte{0x00, 0x0f}, bits: 12},
		{name: "all", hash: []byte{0x00, 0x00}, bits: 16},
	}

	t.Log("Given the need to count leading zero bits.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				bits := database.LeadingZeroBits(tst.hash)
				if bits != tst.bits {
					t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, bits)
					t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.bits)
					t.Fatalf("\t%s\tTest %d:\tShould count the leading zero bits.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould count the leading zero bits.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_IsHashSolved(t *testing.T) {
	const hash = "0cdbf19e45a34e7ee719e61338a4596028a348935cd415f07be019fac890cc1c"

	type table struct {
		name       string
		hash       string
		difficulty uint
		solved     bool
	}

	tt := []table{
		{name: "zero", hash: hash, difficulty: 0, solved: true},
		{name: "exact", hash: hash, difficulty: 4, solved: true},
		{name: "above", hash: hash, difficulty: 5, solved: false},
		{name: "nothex", hash: "zz", difficulty: 0, solved: false},
		{name: "short", hash: "00", difficulty: 0, solved: false},
	}

	t.Log("Given the need to check a hash against a difficulty.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				if database.IsHashSolved(tst.difficulty, tst.hash) != tst.solved {
					t.Fatalf("\t%s\tTest %d:\tShould get solved[%v] for difficulty %d.", failed, testID, tst.solved, tst.difficulty)
				}
				t.Logf("\t%s\tTest %d:\tShould get solved[%v] for difficulty %d.", success, testID, tst.solved, tst.difficulty)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine blocks.")
	{
		t.Logf("\tTest 0:\tWhen mining with a difficulty of zero.")
		{
			block, err := database.POW(context.Background(), database.POWArgs{
				PrevBlock: database.Genesis(),
				Timestamp: 1465154715,
				Data:      "a",
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine a block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to mine a block.", success)

			if block.Nonce != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould find the solution at nonce 0, got %d.", failed, block.Nonce)
			}
			t.Logf("\t%s\tTest 0:\tShould find the solution at nonce 0.", success)

			if block.Index != 1 || block.PreviousHash != genesisHash {
				t.Fatalf("\t%s\tTest 0:\tShould link to the genesis block: %+v", failed, block)
			}
			t.Logf("\t%s\tTest 0:\tShould link to the genesis block.", success)

			if block.Hash != "4a05ef9c6e6d40f7d2c54e4101fd0996f644f2b5cc4d645465bf5ae6db003787" {
				t.Fatalf("\t%s\tTest 0:\tShould get the expected hash, got %s.", failed, block.Hash)
			}
			t.Logf("\t%s\tTest 0:\tShould get the expected hash.", success)
		}

		for _, difficulty := range []uint{1, 4, 8, 12} {
			t.Logf("\tTest 1:\tWhen mining with a difficulty of %d.", difficulty)
			{
				block, err := database.POW(context.Background(), database.POWArgs{
					PrevBlock:  database.Genesis(),
					Timestamp:  1465154715,
					Data:       "pow",
					Difficulty: difficulty,
				})
				if err != nil {
					t.Fatalf("\t%s\tTest 1:\tShould be able to mine a block: %v", failed, err)
				}

				if block.CalculateHash() != block.Hash {
					t.Fatalf("\t%s\tTest 1:\tShould have a hash that matches the content.", failed)
				}
				t.Logf("\t%s\tTest 1:\tShould have a hash that matches the content.", success)

				if !database.IsHashSolved(difficulty, block.Hash) {
					t.Fatalf("\t%s\tTest 1:\tShould have %d leading zero bits: %s", failed, difficulty, block.Hash)
				}
				t.Logf("\t%s\tTest 1:\tShould have %d leading zero bits.", success, difficulty)
			}
		}

		t.Logf("\tTest 2:\tWhen the search is cancelled.")
		{
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := database.POW(ctx, database.POWArgs{
				PrevBlock:  database.Genesis(),
				Timestamp:  1465154715,
				Data:       "never",
				Difficulty: database.MaxDifficulty,
			})
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest 2:\tShould abandon the search, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould abandon the search.", success)
		}
	}
}

func Test_BlockData(t *testing.T) {
	t.Log("Given the need to move blocks across the wire.")
	{
		gen := database.Genesis()

		block, err := database.ToBlock(database.NewBlockData(gen))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to convert the genesis block: %v", failed, err)
		}
		if block != gen {
			t.Fatalf("\t%s\tShould get the same block back: %+v", failed, block)
		}
		t.Logf("\t%s\tShould get the same block back.", success)

		bd := database.NewBlockData(gen)
		bd.Nonce = nil
		_, err = database.ToBlock(bd)

		ve := database.GetValidationError(err)
		if ve == nil || ve.Reason != database.ReasonStructure {
			t.Fatalf("\t%s\tShould reject a block with a missing field, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a block with a missing field.", success)
	}
}
