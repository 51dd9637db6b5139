package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
)

// TrialCollector exposes per-trial Prometheus metrics.
type TrialCollector struct {
	gatherer prometheus.Gatherer

	TrialDuration prometheus.Histogram
	TrialsTotal   prometheus.Counter
	TrialsActive  prometheus.Gauge
	TotalCapacity prometheus.Gauge
	MeanDelay     prometheus.Gauge
	FairnessIndex prometheus.Gauge
	RelayChanges  prometheus.Counter
}

// NewTrialCollector registers trial metrics against the provided registerer.
func NewTrialCollector(reg prometheus.Registerer) (*TrialCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_trial_duration_seconds",
		Help:    "Wall-clock duration of one complete trial.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}), "mesh_trial_duration_seconds")
	if err != nil {
		return nil, err
	}

	completed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mesh_trials_completed_total",
		Help: "Cumulative number of trials run to completion.",
	}), "mesh_trials_completed_total")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_trials_active",
		Help: "Number of trials currently running.",
	}), "mesh_trials_active")
	if err != nil {
		return nil, err
	}

	capacity, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_total_capacity_bps",
		Help: "Total capacity of the most recently completed timestep.",
	}), "mesh_total_capacity_bps")
	if err != nil {
		return nil, err
	}

	delay, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_mean_delay_ms",
		Help: "Mean delay of the most recently completed timestep.",
	}), "mesh_mean_delay_ms")
	if err != nil {
		return nil, err
	}

	fairness, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_stability_fairness_index",
		Help: "Jain's fairness index over relay stability counters.",
	}), "mesh_stability_fairness_index")
	if err != nil {
		return nil, err
	}

	changes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mesh_relay_changes_total",
		Help: "Cumulative number of nodes whose relay changed between timesteps.",
	}), "mesh_relay_changes_total")
	if err != nil {
		return nil, err
	}

	return &TrialCollector{
		gatherer:      gatherer,
		TrialDuration: duration,
		TrialsTotal:   completed,
		TrialsActive:  active,
		TotalCapacity: capacity,
		MeanDelay:     delay,
		FairnessIndex: fairness,
		RelayChanges:  changes,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *TrialCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// TrialStarted bumps the active gauge.
func (c *TrialCollector) TrialStarted() {
	if c == nil || c.TrialsActive == nil {
		return
	}
	c.TrialsActive.Inc()
}

// TrialFinished records a trial's duration. Only successful trials count
// as completed.
func (c *TrialCollector) TrialFinished(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.TrialsActive.Dec()
	if err != nil {
		return
	}
	c.TrialDuration.Observe(d.Seconds())
	c.TrialsTotal.Inc()
}

// ObserveStep updates the per-timestep gauges. The fairness index is
// clamped to [0, 1].
func (c *TrialCollector) ObserveStep(r core.StepReport) {
	if c == nil {
		return
	}
	c.TotalCapacity.Set(r.TotalCapacity)
	c.MeanDelay.Set(r.MeanDelay)
	c.FairnessIndex.Set(min(max(r.JainIndex, 0), 1))
	c.RelayChanges.Add(float64(r.RelayChanges))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
