// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Node  *p2p.Node
}

// P2P upgrades the request to the websocket used to exchange blocks with
// a peer. The call returns when the peer disconnects.
func (h Handlers) P2P(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Node.Accept(w, r); err != nil {
		h.Log.Infow("p2p", "traceid", web.GetTraceID(ctx), "ERROR", err)
	}

	return nil
}

// ProposeBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	// Decode the JSON in the post call into the wire form of a block.
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return err
	}

	block, err := database.ToBlock(blockData)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode block: %w", err), http.StatusBadRequest)
	}

	// Ask the state package to validate the proposed block. If the block
	// passes validation, it will be added to the blockchain database.
	if err := h.State.ProcessProposedBlock(block); err != nil {
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	resp := struct {
		Status string         `json:"status"`
		Block  database.Block `json:"block"`
	}{
		Status: "accepted",
		Block:  block,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ProposeChain takes a chain received from a peer and applies the fork
// choice rule to it.
func (h Handlers) ProposeChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var blocksData []database.BlockData
	if err := web.Decode(r, &blocksData); err != nil {
		return err
	}

	blocks, err := database.ToBlocks(blocksData)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode blocks: %w", err), http.StatusBadRequest)
	}

	cmp, err := h.State.ReplaceChain(blocks)
	if err != nil {
		if errors.Is(err, database.ErrInsufficientWork) || database.IsValidationError(err) {
			return errs.NewTrusted(err, http.StatusNotAcceptable)
		}
		return err
	}

	resp := struct {
		Status        string `json:"status"`
		CandidateWork string `json:"candidate_work"`
		PreviousWork  string `json:"previous_work"`
	}{
		Status:        "replaced",
		CandidateWork: cmp.Candidate.Dec(),
		PreviousWork:  cmp.Current.Dec(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Blocks returns the current chain for a peer.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveBlocks(), http.StatusOK)
}
