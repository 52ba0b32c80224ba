package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/metrics"
)

// ErrStaleBlock is returned when a mined block can no longer be appended
// because the chain moved while the nonce was being searched.
var ErrStaleBlock = errors.New("mined block no longer extends the latest block")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context, data string) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: snapshot chain")

	// Take one consistent view of the chain for the whole search.
	blocks, latest := s.db.Snapshot()
	difficulty := s.difficulty(blocks)

	s.evHandler("state: MineNewBlock: MINING: perform POW: difficulty[%d]", difficulty)

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		PrevBlock:  latest,
		Timestamp:  s.now().Unix(),
		Data:       data,
		Difficulty: difficulty,
		EvHandler:  database.EventHandler(s.evHandler),
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: append block: blk[%d]", block.Index)

	if err := s.db.Append(block); err != nil {
		ve := database.GetValidationError(err)
		if ve != nil {
			metrics.AddBlockRejected(string(ve.Reason))

			switch ve.Reason {
			case database.ReasonIndex, database.ReasonPreviousHash:
				s.evHandler("state: MineNewBlock: MINING: WARNING: chain moved: %s", err)
				return database.Block{}, fmt.Errorf("%w: %w", ErrStaleBlock, err)
			}
		}
		return database.Block{}, err
	}

	metrics.AddBlockMined(block.Nonce + 1)
	s.updateChainMetrics()

	// Send an event about this new block.
	s.blockEvent(block)

	// Announce the new head to the network. Log the error, but that's it.
	if err := s.Network.BroadcastLatest(block); err != nil {
		s.evHandler("state: MineNewBlock: MINING: BroadcastLatest: WARNING: %s", err)
	}

	return block, nil
}
