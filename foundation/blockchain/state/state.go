// Package state is the core API for the blockchain and implements all the
// business rules and processing. It owns the chain database and coordinates
// the miner and the network with every change made to the chain.
package state

import (
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining.
type Worker interface {
	Shutdown()
	SignalCancelMining()
}

// Network interface represents the behavior required to be implemented by any
// package providing support for exchanging blocks with peers.
type Network interface {
	BroadcastLatest(block database.Block) error
	Connect(host string) error
	Peers() []peer.Peer
	Shutdown()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Host                string
	PoWPolicy           database.PoWPolicy
	CancelMiningOnReorg bool
	KnownPeers          *peer.PeerSet
	Difficulty          func(blocks []database.Block) uint
	Now                 func() time.Time
	EvHandler           EventHandler
}

// State manages the blockchain database.
type State struct {
	host                string
	cancelMiningOnReorg bool
	difficulty          func(blocks []database.Block) uint
	now                 func() time.Time
	evHandler           EventHandler

	knownPeers *peer.PeerSet
	db         *database.Database

	Worker  Worker
	Network Network
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	difficulty := cfg.Difficulty
	if difficulty == nil {
		difficulty = database.RequiredDifficulty
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	rules := database.Rules{
		PoW: cfg.PoWPolicy,
		Now: now,
	}

	// Create the State to provide support for managing the blockchain.
	state := State{
		host:                cfg.Host,
		cancelMiningOnReorg: cfg.CancelMiningOnReorg,
		difficulty:          difficulty,
		now:                 now,
		evHandler:           ev,

		knownPeers: knownPeers,
		db:         database.New(rules, database.EventHandler(ev)),

		Worker:  noWorker{},
		Network: noNetwork{},
	}

	// The Worker and Network are not set here. The calls to worker.Run and
	// p2p.Run will assign themselves.

	state.updateChainMetrics()

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	// Release every peer connection.
	s.Network.Shutdown()

	return nil
}

// =============================================================================

// noWorker is used until a worker registers itself with the state.
type noWorker struct{}

func (noWorker) Shutdown()           {}
func (noWorker) SignalCancelMining() {}

// noNetwork is used until a network registers itself with the state.
type noNetwork struct{}

func (noNetwork) BroadcastLatest(block database.Block) error   { return nil }
func (noNetwork) Connect(host string) error                    { return ErrNoNetwork }
func (noNetwork) Peers() []peer.Peer                           { return nil }
func (noNetwork) Shutdown()                                    {}
