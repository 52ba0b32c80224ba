package state_test

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func Test_MineNewBlock(t *testing.T) {
	log, err := logger.New("TEST")
	ifErrFailNow(t, err)
	defer log.Sync()

	evts := events.New()
	defer evts.Shutdown()

	ch := evts.Acquire("test")

	ev := func(v string, args ...any) {
		const websocketPrefix = "viewer:"

		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if strings.HasPrefix(s, websocketPrefix) {
			evts.Send(s)
		}
	}

	var difficulty uint
	net := network{}

	st, err := state.New(state.Config{
		Host:       "localhost:9080",
		KnownPeers: peer.NewPeerSet(),
		Difficulty: func([]database.Block) uint { return difficulty },
		EvHandler:  ev,
	})
	ifErrFailNow(t, err)
	st.Network = &net

	t.Log("Given the need to mine new blocks on top of genesis.")
	{
		t.Logf("\tTest 0:\tWhen the required difficulty is 0.")
		{
			block, err := st.MineNewBlock(context.Background(), "a")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine a block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to mine a block.", success)

			if block.Nonce != 0 || block.Index != 1 || block.PreviousHash != database.Genesis().Hash {
				t.Fatalf("\t%s\tTest 0:\tShould find nonce 0 at index 1 linked to genesis: %+v", failed, block)
			}
			t.Logf("\t%s\tTest 0:\tShould find nonce 0 at index 1 linked to genesis.", success)

			if n := len(st.RetrieveBlocks()); n != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould have a chain of length 2, got %d.", failed, n)
			}
			t.Logf("\t%s\tTest 0:\tShould have a chain of length 2.", success)

			select {
			case s := <-ch:
				if !strings.Contains(s, block.Hash) {
					t.Fatalf("\t%s\tTest 0:\tShould send a block event for the block: %s", failed, s)
				}
			default:
				t.Fatalf("\t%s\tTest 0:\tShould send a block event.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould send a block event.", success)
		}

		t.Logf("\tTest 1:\tWhen the difficulty is forced to 8.")
		{
			difficulty = 8

			block, err := st.MineNewBlock(context.Background(), "b")
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine a block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to mine a block.", success)

			raw, err := hex.DecodeString(block.Hash)
			ifErrFailNow(t, err)

			if raw[0] != 0 || block.Difficulty != 8 {
				t.Fatalf("\t%s\tTest 1:\tShould have the first 8 bits of the hash zero: %s", failed, block.Hash)
			}
			t.Logf("\t%s\tTest 1:\tShould have the first 8 bits of the hash zero.", success)

			if st.RetrieveRequiredDifficulty() != 8 {
				t.Fatalf("\t%s\tTest 1:\tShould report the required difficulty.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould report the required difficulty.", success)
		}

		t.Logf("\tTest 2:\tWhen checking the network was told.")
		{
			if n := net.latestCount(); n != 2 {
				t.Fatalf("\t%s\tTest 2:\tShould broadcast each mined block, got %d.", failed, n)
			}
			t.Logf("\t%s\tTest 2:\tShould broadcast each mined block.", success)
		}

		t.Logf("\tTest 3:\tWhen mining is cancelled.")
		{
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := st.MineNewBlock(ctx, "c"); !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest 3:\tShould get the context error, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould get the context error.", success)

			if st.RetrieveLatestBlock().Index != 2 {
				t.Fatalf("\t%s\tTest 3:\tShould leave the chain unchanged.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould leave the chain unchanged.", success)
		}
	}
}

func Test_ReplaceChain(t *testing.T) {
	gen := []database.Block{database.Genesis()}

	chainA := mineChain(t, gen, 8, 1)
	chainB := mineChain(t, gen, 5, 4)

	t.Log("Given the need to apply fork choice to chains from peers.")
	{
		var wrk worker
		net := network{}

		st, err := state.New(state.Config{
			Host:                "localhost:9080",
			CancelMiningOnReorg: true,
		})
		ifErrFailNow(t, err)
		st.Worker = &wrk
		st.Network = &net

		t.Logf("\tTest 0:\tWhen the longer chain with less work arrives first.")
		{
			if _, err := st.ReplaceChain(chainA); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept chain A: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept chain A.", success)
		}

		t.Logf("\tTest 1:\tWhen the shorter chain with more work arrives.")
		{
			cmp, err := st.ReplaceChain(chainB)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould accept chain B: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould accept chain B.", success)

			if cmp.Candidate.Uint64() != 81 || cmp.Current.Uint64() != 17 {
				t.Fatalf("\t%s\tTest 1:\tShould compare 81 to 17: %s %s", failed, cmp.Candidate.Dec(), cmp.Current.Dec())
			}
			t.Logf("\t%s\tTest 1:\tShould compare 81 to 17.", success)

			if st.RetrieveStatus().CumulativeWork != "81" || st.RetrieveStatus().Height != 5 {
				t.Fatalf("\t%s\tTest 1:\tShould report the new chain: %+v", failed, st.RetrieveStatus())
			}
			t.Logf("\t%s\tTest 1:\tShould report the new chain.", success)
		}

		t.Logf("\tTest 2:\tWhen the chain with less work arrives again.")
		{
			for i := 0; i < 3; i++ {
				if _, err := st.ReplaceChain(chainA); !errors.Is(err, database.ErrInsufficientWork) {
					t.Fatalf("\t%s\tTest 2:\tShould reject chain A, got %v.", failed, err)
				}
			}
			t.Logf("\t%s\tTest 2:\tShould reject chain A every time.", success)

			if st.RetrieveLatestBlock() != chainB[len(chainB)-1] {
				t.Fatalf("\t%s\tTest 2:\tShould still hold chain B.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould still hold chain B.", success)
		}

		t.Logf("\tTest 3:\tWhen checking the collaborators.")
		{
			if n := net.latestCount(); n != 2 {
				t.Fatalf("\t%s\tTest 3:\tShould broadcast only accepted chains, got %d.", failed, n)
			}
			t.Logf("\t%s\tTest 3:\tShould broadcast only accepted chains.", success)

			if n := wrk.cancelCount(); n != 2 {
				t.Fatalf("\t%s\tTest 3:\tShould cancel mining for each accepted chain, got %d.", failed, n)
			}
			t.Logf("\t%s\tTest 3:\tShould cancel mining for each accepted chain.", success)
		}
	}
}

func Test_ProcessProposedBlock(t *testing.T) {
	gen := database.Genesis()
	chain := mineChain(t, []database.Block{gen}, 2, 3)

	t.Log("Given the need to accept blocks proposed by peers.")
	{
		var wrk worker
		net := network{}

		st, err := state.New(state.Config{
			Host:                "localhost:9080",
			CancelMiningOnReorg: false,
		})
		ifErrFailNow(t, err)
		st.Worker = &wrk
		st.Network = &net

		t.Logf("\tTest 0:\tWhen the block extends the latest block.")
		{
			if err := st.ProcessProposedBlock(chain[1]); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the block.", success)

			if net.latestCount() != 1 || wrk.cancelCount() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould broadcast without cancelling mining.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould broadcast without cancelling mining.", success)
		}

		t.Logf("\tTest 1:\tWhen the block does not link to the latest block.")
		{
			orphan := chain[2]
			orphan.PreviousHash = gen.Hash
			orphan.Hash = orphan.CalculateHash()

			err := st.ProcessProposedBlock(orphan)
			if ve := database.GetValidationError(err); ve == nil || ve.Reason != database.ReasonPreviousHash {
				t.Fatalf("\t%s\tTest 1:\tShould reject the block for its previous hash, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the block for its previous hash.", success)

			if st.RetrieveLatestBlock() != chain[1] || net.latestCount() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould leave the chain unchanged.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the chain unchanged.", success)
		}
	}
}

func Test_KnownPeers(t *testing.T) {
	t.Log("Given the need to manage the known peers.")
	{
		st, err := state.New(state.Config{
			Host:       "localhost:9080",
			KnownPeers: peer.NewPeerSet("localhost:9180"),
		})
		ifErrFailNow(t, err)

		if st.AddKnownPeer(peer.New("localhost:9080")) {
			t.Fatalf("\t%s\tShould not add this node as a peer.", failed)
		}
		t.Logf("\t%s\tShould not add this node as a peer.", success)

		if !st.AddKnownPeer(peer.New("localhost:9280")) || len(st.RetrieveKnownPeers()) != 2 {
			t.Fatalf("\t%s\tShould add a new peer.", failed)
		}
		t.Logf("\t%s\tShould add a new peer.", success)

		if err := st.ConnectPeer("localhost:9380"); !errors.Is(err, state.ErrNoNetwork) {
			t.Fatalf("\t%s\tShould fail to connect without a network, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould fail to connect without a network.", success)

		if len(st.RetrieveKnownPeers()) != 3 {
			t.Fatalf("\t%s\tShould remember the peer it tried to connect to.", failed)
		}
		t.Logf("\t%s\tShould remember the peer it tried to connect to.", success)
	}
}

// =============================================================================

// mineChain returns a new chain made of the base chain and n mined blocks
// spaced ten seconds apart.
func mineChain(t *testing.T, base []database.Block, n int, difficulty uint) []database.Block {
	t.Helper()

	blocks := make([]database.Block, len(base), len(base)+n)
	copy(blocks, base)

	for i := 0; i < n; i++ {
		parent := blocks[len(blocks)-1]

		block, err := database.POW(context.Background(), database.POWArgs{
			PrevBlock:  parent,
			Timestamp:  parent.Timestamp + 10,
			Data:       "block",
			Difficulty: difficulty,
		})
		ifErrFailNow(t, err)

		blocks = append(blocks, block)
	}

	return blocks
}

// network records the calls the state makes to the network.
type network struct {
	mu     sync.Mutex
	latest int
}

func (n *network) BroadcastLatest(block database.Block) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.latest++
	return nil
}

func (n *network) Connect(host string) error                    { return nil }
func (n *network) Peers() []peer.Peer                           { return nil }
func (n *network) Shutdown()                                    {}

func (n *network) latestCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.latest
}

// worker records the cancel signals the state sends.
type worker struct {
	mu      sync.Mutex
	cancels int
}

func (w *worker) Shutdown() {}

func (w *worker) SignalCancelMining() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancels++
}

func (w *worker) cancelCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cancels
}
