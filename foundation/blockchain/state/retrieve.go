package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/holiman/uint256"
)

// Status represents a summary of the chain held by this node.
type Status struct {
	Host               string `json:"host"`
	Height             uint64 `json:"height"`
	LatestBlockHash    string `json:"latest_block_hash"`
	RequiredDifficulty uint   `json:"required_difficulty"`
	CumulativeWork     string `json:"cumulative_work"`
	PoWPolicy          string `json:"pow_policy"`
	KnownPeers         int    `json:"known_peers"`
}

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveGenesis returns a copy of the genesis block.
func (s *State) RetrieveGenesis() database.Block {
	return database.Genesis()
}

// RetrieveBlocks returns a copy of the current chain.
func (s *State) RetrieveBlocks() []database.Block {
	return s.db.Blocks()
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveRequiredDifficulty returns the difficulty the next block
// must be mined at.
func (s *State) RetrieveRequiredDifficulty() uint {
	blocks, _ := s.db.Snapshot()
	return s.difficulty(blocks)
}

// RetrieveCumulativeWork returns the cumulative work of the current chain.
func (s *State) RetrieveCumulativeWork() *uint256.Int {
	return s.db.CumulativeWork()
}

// RetrievePoWPolicy returns the policy applied to blocks whose hash does
// not meet their difficulty.
func (s *State) RetrievePoWPolicy() database.PoWPolicy {
	return s.db.Rules().PoW
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// RetrieveStatus returns a summary of the chain held by this node.
func (s *State) RetrieveStatus() Status {
	blocks, latest := s.db.Snapshot()

	return Status{
		Host:               s.host,
		Height:             latest.Index,
		LatestBlockHash:    latest.Hash,
		RequiredDifficulty: s.difficulty(blocks),
		CumulativeWork:     database.CumulativeWork(blocks).Dec(),
		PoWPolicy:          s.db.Rules().PoW.String(),
		KnownPeers:         len(s.knownPeers.Copy(s.host)),
	}
}
