package p2p

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// BroadcastLatest announces the block as the new head to every peer.
func (n *Node) BroadcastLatest(block database.Block) error {
	n.evHandler("p2p: BroadcastLatest: blk[%d]: hash[%s]", block.Index, block.Hash)
	return n.broadcast(responseMsg(block))
}

// sendChain sends our full chain to a single peer.
func (n *Node) sendChain(c *conn) error {
	blocks := n.state.RetrieveBlocks()
	n.evHandler("p2p: sendChain: host[%s]: blocks[%d]", c.host, len(blocks))
	return c.send(responseMsg(blocks...))
}

// broadcast writes the message to every open connection at the same time.
// Every failed write is reported in the returned error.
func (n *Node) broadcast(msg Message) error {
	var mu sync.Mutex
	var result *multierror.Error

	var g errgroup.Group
	for _, c := range n.connections() {
		c := c
		g.Go(func() error {
			if err := c.send(msg); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("peer %s: %w", c.host, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return result.ErrorOrNil()
}

// =============================================================================

// handshake asks the peer for its latest block as soon as the connection
// is open.
func (n *Node) handshake(c *conn) {
	if err := c.send(queryLatestMsg()); err != nil {
		n.evHandler("p2p: handshake: host[%s]: WARNING: %s", c.host, err)
	}
}

// readLoop processes messages from the peer until the connection closes.
func (n *Node) readLoop(c *conn) {
	defer n.drop(c)

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			n.evHandler("p2p: readLoop: host[%s]: connection closed: %s", c.host, err)
			return
		}

		if err := n.handleMessage(c, msg); err != nil {
			n.evHandler("p2p: readLoop: host[%s]: type[%s]: WARNING: %s", c.host, msg.Type, err)
		}
	}
}

// handleMessage performs the work requested by a single message.
func (n *Node) handleMessage(c *conn, msg Message) error {
	n.evHandler("p2p: handleMessage: host[%s]: type[%s]: blocks[%d]", c.host, msg.Type, len(msg.Data))

	switch msg.Type {
	case QueryLatest:
		return c.send(responseMsg(n.state.RetrieveLatestBlock()))

	case QueryAll:
		return n.sendChain(c)

	case ResponseBlockchain:
		blocks, err := database.ToBlocks(msg.Data)
		if err != nil {
			return fmt.Errorf("decode blocks: %w", err)
		}
		return n.handleBlockchainResponse(c, blocks)
	}

	return fmt.Errorf("unknown message type %d", int(msg.Type))
}

// handleBlockchainResponse decides what to do with blocks sent by a peer. A
// single block that extends our head is appended. A single block that doesn't
// means the peer is on another chain so its whole chain is requested. A whole
// chain goes through fork choice.
func (n *Node) handleBlockchainResponse(c *conn, blocks []database.Block) error {
	if len(blocks) == 0 {
		return errors.New("received an empty blockchain")
	}

	// A response to our query for the whole chain goes through fork choice
	// even when the peer only holds genesis. A head announced while we wait
	// for the chain leaves the query pending.
	var requested bool
	if len(blocks) > 1 || database.IsGenesis(blocks[0]) {
		requested = c.awaitingChain.Swap(false)
	}

	received := blocks[len(blocks)-1]
	held := n.state.RetrieveLatestBlock()

	if received.Hash == held.Hash {
		return nil
	}

	if len(blocks) == 1 && !requested {
		if received.PreviousHash == held.Hash {
			n.evHandler("p2p: handleBlockchainResponse: host[%s]: appending blk[%d]", c.host, received.Index)
			return n.state.ProcessProposedBlock(received)
		}

		n.evHandler("p2p: handleBlockchainResponse: host[%s]: blk[%d] does not extend blk[%d]: query all", c.host, received.Index, held.Index)
		c.awaitingChain.Store(true)
		return c.send(queryAllMsg())
	}

	n.evHandler("p2p: handleBlockchainResponse: host[%s]: evaluating chain: blocks[%d]", c.host, len(blocks))

	cmp, err := n.state.ReplaceChain(blocks)
	if err != nil {

		// When we hold more work, tell the peer so it can switch to our chain.
		// Equal work is left alone so two nodes never trade chains forever.
		if errors.Is(err, database.ErrInsufficientWork) && cmp.Current.Gt(cmp.Candidate) {
			return c.send(responseMsg(n.state.RetrieveLatestBlock()))
		}
		return err
	}

	return nil
}
