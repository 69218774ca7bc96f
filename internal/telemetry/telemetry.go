// Package telemetry is the (+) diagnostic/stable-error-kind channel named
// in spec §7 ("internal fatal errors are surfaced on the diagnostic/
// telemetry channel with a stable error kind code"): counters for applied
// and rejected actions, per-subsystem verification error kinds, and sync
// progress, exposed over /metrics the way the teacher's HealthLogger wires
// a prometheus.Registry alongside its JSON log file.
package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mina-core/internal/action"
	"mina-core/internal/snarkverify"
)

// Collector owns the node's prometheus registry and the counters/gauges
// every subsystem reports through.
type Collector struct {
	registry *prometheus.Registry

	actionsApplied  *prometheus.CounterVec
	actionsRejected prometheus.Counter
	verifyErrors    *prometheus.CounterVec
	peerCount       prometheus.Gauge
	syncPhase       prometheus.Gauge
	bestChainLen    prometheus.Gauge
	snarkPoolSize   prometheus.Gauge
}

// New builds a Collector with its own registry, independent of the global
// prometheus default registry so multiple nodes can run in one test binary
// without colliding metric names.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		actionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mina_actions_applied_total",
			Help: "Total actions applied by kind.",
		}, []string{"kind"}),
		actionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mina_actions_rejected_total",
			Help: "Total actions dropped by the enabling predicate.",
		}),
		verifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mina_verify_errors_total",
			Help: "Verification failures by error kind.",
		}, []string{"kind"}),
		peerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mina_peer_count",
			Help: "Number of peers in Connecting or Ready status.",
		}),
		syncPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mina_sync_phase",
			Help: "Current transition-frontier sync phase, as its ordinal rank.",
		}),
		bestChainLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mina_best_chain_length",
			Help: "Length of the locally-held best chain.",
		}),
		snarkPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mina_snark_pool_size",
			Help: "Number of admitted SNARK work entries.",
		}),
	}
	reg.MustRegister(c.actionsApplied, c.actionsRejected, c.verifyErrors, c.peerCount, c.syncPhase, c.bestChainLen, c.snarkPoolSize)
	return c
}

// Handler exposes the registry's /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordApplied increments the per-kind applied-action counter.
func (c *Collector) RecordApplied(kind action.Kind) {
	c.actionsApplied.WithLabelValues(kindLabel(kind)).Inc()
}

// RecordRejected increments the rejected-action counter.
func (c *Collector) RecordRejected() { c.actionsRejected.Inc() }

// RecordVerifyError increments the per-error-kind verification failure
// counter (spec §7's stable error kind code).
func (c *Collector) RecordVerifyError(kind snarkverify.ErrorKind) {
	c.verifyErrors.WithLabelValues(errorKindLabel(kind)).Inc()
}

// SetPeerCount updates the connected-peer gauge.
func (c *Collector) SetPeerCount(n int) { c.peerCount.Set(float64(n)) }

// SetSyncPhase updates the sync-phase gauge to rank's ordinal value.
func (c *Collector) SetSyncPhase(rank int) { c.syncPhase.Set(float64(rank)) }

// SetBestChainLen updates the best-chain-length gauge.
func (c *Collector) SetBestChainLen(n int) { c.bestChainLen.Set(float64(n)) }

// SetSnarkPoolSize updates the snark-pool-size gauge.
func (c *Collector) SetSnarkPoolSize(n int) { c.snarkPoolSize.Set(float64(n)) }

func kindLabel(k action.Kind) string {
	return strconv.FormatUint(uint64(k), 10)
}

func errorKindLabel(k snarkverify.ErrorKind) string {
	switch k {
	case snarkverify.ErrAccumulatorCheckFailed:
		return "accumulator_check_failed"
	case snarkverify.ErrVerificationFailed:
		return "verification_failed"
	case snarkverify.ErrValidatorThreadCrashed:
		return "validator_thread_crashed"
	default:
		return "unknown"
	}
}
