package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
)

func TestObserveMatchRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewMatchingCollector(reg)
	if err != nil {
		t.Fatalf("NewMatchingCollector: %v", err)
	}

	collector.ObserveMatch("stable", core.MatchResult{
		Blocked:   5,
		Matched:   3,
		Unmatched: 2,
		Evictions: 1,
		Carried:   2,
	}, 3*time.Millisecond)

	if got := testutil.ToFloat64(collector.Runs.WithLabelValues("stable")); got != 1 {
		t.Fatalf("relay_matching_runs_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Blocked.WithLabelValues("stable")); got != 5 {
		t.Fatalf("relay_blocked_nodes_total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(collector.Unmatched.WithLabelValues("stable")); got != 2 {
		t.Fatalf("relay_unmatched_nodes_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Evictions.WithLabelValues("stable")); got != 1 {
		t.Fatalf("relay_evictions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Carried.WithLabelValues("stable")); got != 2 {
		t.Fatalf("relay_carried_pairs_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "relay_matching_duration_seconds", map[string]string{
		"variant": "stable",
	}); count != 1 {
		t.Fatalf("relay_matching_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestNewMatchingCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMatchingCollector(reg)
	if err != nil {
		t.Fatalf("NewMatchingCollector: %v", err)
	}
	second, err := NewMatchingCollector(reg)
	if err != nil {
		t.Fatalf("second NewMatchingCollector: %v", err)
	}

	first.ObserveMatch("greedy", core.MatchResult{}, time.Millisecond)
	second.ObserveMatch("greedy", core.MatchResult{}, time.Millisecond)

	if got := testutil.ToFloat64(first.Runs.WithLabelValues("greedy")); got != 2 {
		t.Fatalf("shared relay_matching_runs_total = %v, want 2", got)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var mc *MatchingCollector
	mc.ObserveMatch("greedy", core.MatchResult{}, 0)

	var tc *TrialCollector
	tc.TrialStarted()
	tc.TrialFinished(time.Second, nil)
	tc.ObserveStep(core.StepReport{})
}

func TestTrialCollectorRecordsCompletions(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrialCollector(reg)
	if err != nil {
		t.Fatalf("NewTrialCollector: %v", err)
	}

	collector.TrialStarted()
	collector.TrialStarted()
	if got := testutil.ToFloat64(collector.TrialsActive); got != 2 {
		t.Fatalf("mesh_trials_active = %v, want 2", got)
	}
	collector.TrialFinished(20*time.Millisecond, nil)
	collector.TrialFinished(time.Millisecond, errors.New("cancelled"))

	if got := testutil.ToFloat64(collector.TrialsActive); got != 0 {
		t.Fatalf("mesh_trials_active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.TrialsTotal); got != 1 {
		t.Fatalf("mesh_trials_completed_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "mesh_trial_duration_seconds", nil); count != 1 {
		t.Fatalf("mesh_trial_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestTrialCollectorObserveStep(t *testing.T) {
	collector, err := NewTrialCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewTrialCollector: %v", err)
	}

	collector.ObserveStep(core.StepReport{TotalCapacity: 1e9, MeanDelay: 9.5, JainIndex: 1.5, RelayChanges: 3})
	collector.ObserveStep(core.StepReport{TotalCapacity: 2e9, MeanDelay: 10, JainIndex: 0.75, RelayChanges: 1})

	if got := testutil.ToFloat64(collector.TotalCapacity); got != 2e9 {
		t.Fatalf("mesh_total_capacity_bps = %v, want 2e9", got)
	}
	if got := testutil.ToFloat64(collector.FairnessIndex); got != 0.75 {
		t.Fatalf("mesh_stability_fairness_index = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(collector.RelayChanges); got != 4 {
		t.Fatalf("mesh_relay_changes_total = %v, want 4", got)
	}
}

func TestMetricsHandlerExposesMatchingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewMatchingCollector(reg)
	if err != nil {
		t.Fatalf("NewMatchingCollector: %v", err)
	}
	if _, err := NewTrialCollector(reg); err != nil {
		t.Fatalf("NewTrialCollector: %v", err)
	}
	collector.ObserveMatch("maximal", core.MatchResult{Blocked: 4, Matched: 4}, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"relay_matching_runs_total",
		"relay_matching_duration_seconds",
		"relay_blocked_nodes_total",
		"mesh_trials_active",
		"mesh_total_capacity_bps",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, `variant="maximal"`) {
		t.Fatalf("/metrics output missing variant label: %s", body)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
