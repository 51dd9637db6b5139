package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
)

// MatchingCollector bundles Prometheus metrics for relay-assignment passes.
// It implements core.MatchRecorder.
type MatchingCollector struct {
	gatherer prometheus.Gatherer

	Runs      *prometheus.CounterVec
	Durations *prometheus.HistogramVec
	Blocked   *prometheus.CounterVec
	Unmatched *prometheus.CounterVec
	Evictions *prometheus.CounterVec
	Steals    *prometheus.CounterVec
	Carried   *prometheus.CounterVec
}

var _ core.MatchRecorder = (*MatchingCollector)(nil)

// NewMatchingCollector registers matching metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewMatchingCollector(reg prometheus.Registerer) (*MatchingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_matching_runs_total",
		Help: "Total number of relay matching passes, labeled by variant.",
	}, []string{"variant"}), "relay_matching_runs_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_matching_duration_seconds",
		Help:    "Wall-clock duration of one matching pass.",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"variant"}), "relay_matching_duration_seconds")
	if err != nil {
		return nil, err
	}

	blocked, err := variantCounter(reg, "relay_blocked_nodes_total", "Blocked nodes entering a matching pass.")
	if err != nil {
		return nil, err
	}
	unmatched, err := variantCounter(reg, "relay_unmatched_nodes_total", "Blocked nodes left without a relay after a pass.")
	if err != nil {
		return nil, err
	}
	evictions, err := variantCounter(reg, "relay_evictions_total", "Relay slots taken from a previous holder.")
	if err != nil {
		return nil, err
	}
	steals, err := variantCounter(reg, "relay_steals_total", "Carried relay pairs broken to serve another node.")
	if err != nil {
		return nil, err
	}
	carried, err := variantCounter(reg, "relay_carried_pairs_total", "Relay pairs kept from the previous timestep.")
	if err != nil {
		return nil, err
	}

	return &MatchingCollector{
		gatherer:  gatherer,
		Runs:      runs,
		Durations: durations,
		Blocked:   blocked,
		Unmatched: unmatched,
		Evictions: evictions,
		Steals:    steals,
		Carried:   carried,
	}, nil
}

// ObserveMatch records one matching pass.
func (c *MatchingCollector) ObserveMatch(variant string, res core.MatchResult, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(variant).Inc()
	c.Durations.WithLabelValues(variant).Observe(elapsed.Seconds())
	c.Blocked.WithLabelValues(variant).Add(float64(res.Blocked))
	c.Unmatched.WithLabelValues(variant).Add(float64(res.Unmatched))
	c.Evictions.WithLabelValues(variant).Add(float64(res.Evictions))
	c.Steals.WithLabelValues(variant).Add(float64(res.Steals))
	c.Carried.WithLabelValues(variant).Add(float64(res.Carried))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MatchingCollector) Handler() http.Handler {
	return handlerFor(c.gatherer)
}

func variantCounter(reg prometheus.Registerer, name, help string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, []string{"variant"})
	return registerCounterVec(reg, vec, name)
}

func handlerFor(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
