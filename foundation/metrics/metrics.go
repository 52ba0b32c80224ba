// Package metrics maintains the prometheus collectors for the node. The
// collectors are registered once with the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powchain"

// Set of outcomes recorded for chain replacements.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

var (
	requests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "number of http requests handled",
	})

	errors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_errors_total",
		Help:      "number of http requests that returned an error",
	})

	panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "number of http requests that panicked",
	})

	blocksMined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_mined_total",
		Help:      "number of blocks mined by this node",
	})

	blocksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_accepted_total",
		Help:      "number of blocks received from peers and appended",
	})

	blocksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_rejected_total",
		Help:      "number of blocks rejected by validation",
	}, []string{"reason"})

	replacements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chain_replacements_total",
		Help:      "number of candidate chains evaluated by fork choice",
	}, []string{"outcome"})

	hashAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hash_attempts_total",
		Help:      "number of hashes computed by successful mining operations",
	})

	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_height",
		Help:      "index of the latest block in the canonical chain",
	})

	chainWork = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_cumulative_work",
		Help:      "cumulative work of the canonical chain",
	})
)

// Handler returns the http handler that exposes the collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AddRequest records a handled http request.
func AddRequest() {
	requests.Inc()
}

// AddError records an http request that returned an error.
func AddError() {
	errors.Inc()
}

// AddPanic records an http request that panicked.
func AddPanic() {
	panics.Inc()
}

// AddBlockMined records a block mined and the hashes it took to find it.
func AddBlockMined(attempts uint64) {
	blocksMined.Inc()
	hashAttempts.Add(float64(attempts))
}

// AddBlockAccepted records a peer block appended to the chain.
func AddBlockAccepted() {
	blocksAccepted.Inc()
}

// AddBlockRejected records a block that failed validation.
func AddBlockRejected(reason string) {
	blocksRejected.WithLabelValues(reason).Inc()
}

// AddReplacement records the outcome of a fork choice decision.
func AddReplacement(outcome string) {
	replacements.WithLabelValues(outcome).Inc()
}

// SetChain records the height and cumulative work of the canonical chain.
func SetChain(height uint64, work float64) {
	chainHeight.Set(float64(height))
	chainWork.Set(work)
}
