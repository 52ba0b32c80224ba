// Package worker implements mining for the blockchain. Mining requests are
// queued and served one at a time by a dedicated goroutine so the search never
// blocks the paths reading the chain or handling the network.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// maxMiningRequests represents the max number of mining requests that can be
// pending before new requests are refused.
const maxMiningRequests = 10

// Set of errors returned to the requester of a mining operation.
var (
	ErrMiningCancelled = errors.New("mining cancelled, the chain moved to a new head")
	ErrMiningBusy      = errors.New("too many pending mining requests")
	ErrShutdown        = errors.New("worker is shutting down")
)

// Result is the outcome of a mining request.
type Result struct {
	Block database.Block
	Err   error
}

// request represents a queued mining operation.
type request struct {
	ctx    context.Context
	data   string
	result chan Result
}

// =============================================================================

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	mu           sync.Mutex
	closed       bool
	shut         chan struct{}
	startMining  chan request
	cancelMining chan bool
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, evHandler state.EventHandler) *Worker {
	ev := evHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	w := Worker{
		state:        st,
		shut:         make(chan struct{}),
		startMining:  make(chan request, maxMiningRequests),
		cancelMining: make(chan bool, 1),
		evHandler:    ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work. Requests still waiting
// in the queue receive ErrShutdown.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()

	w.evHandler("worker: shutdown: release pending requests")
	for {
		select {
		case req := <-w.startMining:
			req.result <- Result{Err: ErrShutdown}
		default:
			return
		}
	}
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// =============================================================================

// SignalStartMining queues a mining operation for the specified data. The
// returned channel receives exactly one result.
func (w *Worker) SignalStartMining(ctx context.Context, data string) <-chan Result {
	result := make(chan Result, 1)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		result <- Result{Err: ErrShutdown}
		return result
	}

	select {
	case w.startMining <- request{ctx: ctx, data: data, result: result}:
		w.evHandler("worker: SignalStartMining: mining signaled")
	default:
		w.evHandler("worker: SignalStartMining: queue full, mining request refused")
		result <- Result{Err: ErrMiningBusy}
	}

	return result
}

// MineBlock queues a mining operation and waits for the mined block. The
// wait ends early if the context is cancelled.
func (w *Worker) MineBlock(ctx context.Context, data string) (database.Block, error) {
	select {
	case res := <-w.SignalStartMining(ctx, data):
		return res.Block, res.Err
	case <-ctx.Done():
		return database.Block{}, ctx.Err()
	}
}
