package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case req := <-w.startMining:
			if w.isShutdown() {
				req.result <- Result{Err: ErrShutdown}
				continue
			}
			req.result <- w.runMiningOperation(req)
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines a block for the request and writes it to the
// chain. The search is abandoned when the chain moves to a new head, when the
// worker shuts down or when the requester gives up.
func (w *Worker) runMiningOperation(req request) Result {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// The requester may have given up while the request was queued.
	if err := req.ctx.Err(); err != nil {
		w.evHandler("worker: runMiningOperation: MINING: request abandoned: %s", err)
		return Result{Err: err}
	}

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(req.ctx)
	defer cancel()

	// Set by the cancel G when it stops the search. Read only after
	// both G's are done.
	var cancelErr error

	var res Result

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the mining operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case <-w.cancelMining:
			cancelErr = ErrMiningCancelled
			cancel()
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-w.shut:
			cancelErr = ErrShutdown
			cancel()
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: shutdown")
		case <-ctx.Done():
		}
	}()

	// This G is performing the mining.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		t := time.Now()
		block, err := w.state.MineNewBlock(ctx, req.data)
		duration := time.Since(t)

		w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

		res = Result{Block: block, Err: err}
	}()

	// Wait for both G's to terminate.
	wg.Wait()

	if res.Err == nil {
		return res
	}

	switch {
	case cancelErr != nil && errors.Is(res.Err, context.Canceled):
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
		res.Err = fmt.Errorf("%w: %w", cancelErr, res.Err)
	case errors.Is(res.Err, state.ErrStaleBlock):
		w.evHandler("worker: runMiningOperation: MINING: WARNING: %s", res.Err)
	default:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", res.Err)
	}

	return res
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
