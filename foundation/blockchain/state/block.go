package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/metrics"
)

// ProcessProposedBlock takes a block received from a peer, validates it
// against the latest block and if that passes, appends it to the chain.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: blk[%d]: hash[%s]", block.Index, block.Hash)
	defer s.evHandler("state: ProcessProposedBlock: completed")

	if err := s.db.Append(block); err != nil {
		if ve := database.GetValidationError(err); ve != nil {
			metrics.AddBlockRejected(string(ve.Reason))
		}
		s.evHandler("state: ProcessProposedBlock: REJECTED: %s", err)
		return err
	}

	metrics.AddBlockAccepted()
	s.updateChainMetrics()

	// Any search in flight is now working on a stale parent.
	s.cancelMining("ProcessProposedBlock")

	// Send an event about this new block.
	s.blockEvent(block)

	if err := s.Network.BroadcastLatest(block); err != nil {
		s.evHandler("state: ProcessProposedBlock: BroadcastLatest: WARNING: %s", err)
	}

	return nil
}

// ReplaceChain applies the fork choice rule to a chain received from a peer.
// The candidate becomes the canonical chain only if it is valid and carries
// strictly more cumulative work. A rejected candidate leaves the chain as it
// was and the reason is returned.
func (s *State) ReplaceChain(blocks []database.Block) (database.WorkComparison, error) {
	s.evHandler("state: ReplaceChain: started: blocks[%d]", len(blocks))
	defer s.evHandler("state: ReplaceChain: completed")

	cmp, err := s.db.Replace(blocks)
	if err != nil {
		metrics.AddReplacement(metrics.OutcomeRejected)

		switch {
		case errors.Is(err, database.ErrInsufficientWork):
			s.evHandler("state: ReplaceChain: REJECTED: insufficient work: candidate[%s]: current[%s]", cmp.Candidate.Dec(), cmp.Current.Dec())
		default:
			if ve := database.GetValidationError(err); ve != nil {
				metrics.AddBlockRejected(string(ve.Reason))
			}
			s.evHandler("state: ReplaceChain: REJECTED: %s", err)
		}

		return cmp, err
	}

	metrics.AddReplacement(metrics.OutcomeAccepted)
	s.updateChainMetrics()

	s.evHandler("state: ReplaceChain: ACCEPTED: candidate[%s]: previous[%s]", cmp.Candidate.Dec(), cmp.Current.Dec())

	// The head moved so any search in flight is working on a stale parent.
	s.cancelMining("ReplaceChain")

	latest := s.db.LatestBlock()
	s.blockEvent(latest)

	if err := s.Network.BroadcastLatest(latest); err != nil {
		s.evHandler("state: ReplaceChain: BroadcastLatest: WARNING: %s", err)
	}

	return cmp, nil
}

// =============================================================================

// cancelMining signals the worker to abandon the current search when the
// node is configured to do so.
func (s *State) cancelMining(caller string) {
	if !s.cancelMiningOnReorg {
		s.evHandler("state: %s: mining left to complete", caller)
		return
	}

	s.evHandler("state: %s: signal mining to cancel", caller)
	s.Worker.SignalCancelMining()
}

// updateChainMetrics records the height and the cumulative work of the
// current chain.
func (s *State) updateChainMetrics() {
	latest := s.db.LatestBlock()
	work, _ := new(big.Float).SetInt(s.db.CumulativeWork().ToBig()).Float64()

	metrics.SetChain(latest.Index, work)
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"block":%s}`, block.Hash, string(blockJSON))
}
