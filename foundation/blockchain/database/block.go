package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/bits"
	"strconv"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// Block represents a single link in the chain. A block is a value and is never
// modified after it has been constructed and hashed.
type Block struct {
	Index        uint64 `json:"index"`                                                 // Position in the chain, genesis is 0.
	PreviousHash string `json:"previousHash" validate:"omitempty,len=64,hexadecimal,lowercase"` // Hash of the previous block, empty for genesis.
	Timestamp    int64  `json:"timestamp" validate:"gte=0"`                             // Unix time in seconds the block was mined.
	Data         string `json:"data"`                                                  // Opaque payload.
	Difficulty   uint   `json:"difficulty" validate:"lte=255"`                          // Number of leading zero bits required of the hash.
	Nonce        uint64 `json:"nonce"`                                                 // Value identified to solve the hash solution.
	Hash         string `json:"hash" validate:"required,len=64,hexadecimal,lowercase"`  // Digest of the fields above.
}

// CalculateHash recomputes the digest for the block from its content. The
// stored Hash field is not consulted.
func (b Block) CalculateHash() string {
	return Digest(b.Index, b.PreviousHash, b.Timestamp, b.Data, b.Difficulty, b.Nonce)
}

// Digest returns the lowercase hex SHA-256 of the block fields concatenated
// in the order index, previousHash, timestamp, data, difficulty, nonce with
// integers written in base 10 and no separators.
func Digest(index uint64, previousHash string, timestamp int64, data string, difficulty uint, nonce uint64) string {
	buf := digestPrefix(index, previousHash, timestamp, data, difficulty)
	buf = strconv.AppendUint(buf, nonce, 10)

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// digestPrefix builds the part of the digest input that does not change while
// searching for a nonce.
func digestPrefix(index uint64, previousHash string, timestamp int64, data string, difficulty uint) []byte {
	buf := make([]byte, 0, 64+len(previousHash)+len(data))
	buf = strconv.AppendUint(buf, index, 10)
	buf = append(buf, previousHash...)
	buf = strconv.AppendInt(buf, timestamp, 10)
	buf = append(buf, data...)
	buf = strconv.AppendUint(buf, uint64(difficulty), 10)

	return buf
}

// =============================================================================

// LeadingZeroBits counts the zero bits starting from the most significant bit
// of the hash.
func LeadingZeroBits(hash []byte) uint {
	var n uint
	for _, b := range hash {
		if b != 0 {
			return n + uint(bits.LeadingZeros8(b))
		}
		n += 8
	}

	return n
}

// IsHashSolved checks the hex encoded hash to make sure it complies with
// the POW rules. We need to match a difficulty number of leading zero bits.
func IsHashSolved(difficulty uint, hash string) bool {
	raw, err := hex.DecodeString(hash)
	if err != nil || len(raw) != sha256.Size {
		return false
	}

	return LeadingZeroBits(raw) >= difficulty
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlock  Block
	Timestamp  int64
	Data       string
	Difficulty uint
	EvHandler  EventHandler
}

// POW constructs a new Block on top of the previous block and performs the
// work to find a nonce that solves the cryptographic POW puzzle. The nonce
// starts at zero and is incremented by one until a solution is found. The
// context is checked on every attempt so the search can be abandoned.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	nb := Block{
		Index:        args.PrevBlock.Index + 1,
		PreviousHash: args.PrevBlock.Hash,
		Timestamp:    args.Timestamp,
		Data:         args.Data,
		Difficulty:   args.Difficulty,
	}

	ev("database: POW: MINING: started: blk[%d]: difficulty[%d]", nb.Index, nb.Difficulty)
	defer ev("database: POW: MINING: completed: blk[%d]", nb.Index)

	prefix := digestPrefix(nb.Index, nb.PreviousHash, nb.Timestamp, nb.Data, nb.Difficulty)
	buf := make([]byte, len(prefix), len(prefix)+20)
	copy(buf, prefix)

	for nonce := uint64(0); ; nonce++ {
		if nonce > 0 && nonce%1_000_000 == 0 {
			ev("database: POW: MINING: attempts[%d]", nonce)
		}

		select {
		case <-ctx.Done():
			ev("database: POW: MINING: CANCELLED: attempts[%d]", nonce)
			return Block{}, ctx.Err()
		default:
		}

		sum := sha256.Sum256(strconv.AppendUint(buf[:len(prefix)], nonce, 10))
		if LeadingZeroBits(sum[:]) < nb.Difficulty {
			continue
		}

		nb.Nonce = nonce
		nb.Hash = hex.EncodeToString(sum[:])

		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", nb.PreviousHash, nb.Hash, nonce+1)

		return nb, nil
	}
}

// =============================================================================

// BlockData represents the wire form of a block as it is received from a peer
// or an operator. Pointer fields allow a missing field to be told apart from
// a zero value.
type BlockData struct {
	Index        *uint64 `json:"index" validate:"required"`
	PreviousHash *string `json:"previousHash" validate:"required"`
	Timestamp    *int64  `json:"timestamp" validate:"required"`
	Data         *string `json:"data" validate:"required"`
	Difficulty   *uint   `json:"difficulty" validate:"required"`
	Nonce        *uint64 `json:"nonce" validate:"required"`
	Hash         *string `json:"hash" validate:"required"`
}

// NewBlockData constructs the value to send across the network.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Index:        &block.Index,
		PreviousHash: &block.PreviousHash,
		Timestamp:    &block.Timestamp,
		Data:         &block.Data,
		Difficulty:   &block.Difficulty,
		Nonce:        &block.Nonce,
		Hash:         &block.Hash,
	}
}

// ToBlock converts a BlockData into a Block. Every field must be present.
func ToBlock(blockData BlockData) (Block, error) {
	if err := checkBlockData(blockData); err != nil {
		return Block{}, err
	}

	b := Block{
		Index:        *blockData.Index,
		PreviousHash: *blockData.PreviousHash,
		Timestamp:    *blockData.Timestamp,
		Data:         *blockData.Data,
		Difficulty:   *blockData.Difficulty,
		Nonce:        *blockData.Nonce,
		Hash:         *blockData.Hash,
	}

	return b, nil
}

// ToBlocks converts a set of BlockData into a chain of blocks.
func ToBlocks(blockData []BlockData) ([]Block, error) {
	blocks := make([]Block, len(blockData))
	for i, bd := range blockData {
		b, err := ToBlock(bd)
		if err != nil {
			return nil, err
		}
		blocks[i] = b
	}

	return blocks, nil
}

// NewBlocksData converts a chain of blocks into their wire form.
func NewBlocksData(blocks []Block) []BlockData {
	blockData := make([]BlockData, len(blocks))
	for i, b := range blocks {
		blockData[i] = NewBlockData(b)
	}

	return blockData
}
