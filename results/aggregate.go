package results

import (
	"maps"
	"slices"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
)

// StepMean is the mean of one timestep across every trial that reached it.
type StepMean struct {
	Timestep int `json:"timestep"`
	Trials   int `json:"trials"`

	Blocked   float64 `json:"blocked"`
	Matched   float64 `json:"matched"`
	Unmatched float64 `json:"unmatched"`
	Carried   float64 `json:"carried"`
	Evictions float64 `json:"evictions"`
	Steals    float64 `json:"steals"`

	TotalCapacity   float64 `json:"total_capacity_bps"`
	MeanCapacity    float64 `json:"mean_capacity_bps"`
	MeanDelay       float64 `json:"mean_delay_ms"`
	MaxReachability float64 `json:"max_reachability"`
	MaxStability    float64 `json:"max_stability"`
	JainIndex       float64 `json:"jain_index"`
	RelayChanges    float64 `json:"relay_changes"`

	// FailureRate is the fraction of trials with at least one unmatched
	// blocked node at this timestep.
	FailureRate float64 `json:"failure_rate"`
}

// Summary aggregates all trials in a store.
type Summary struct {
	Trials int        `json:"trials"`
	Steps  []StepMean `json:"steps"`
	// MatchingFailure is the fraction of trials in which any timestep left
	// a blocked node unmatched.
	MatchingFailure float64 `json:"matching_failure"`
}

// Aggregate computes per-timestep means over the recorded trials. Trials
// of different lengths contribute only to the timesteps they reached.
func (s *Store) Aggregate() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Trials: len(s.trials)}
	if sum.Trials == 0 {
		return sum
	}

	failedTrials := 0
	for _, trial := range slices.Sorted(maps.Keys(s.trials)) {
		series := s.trials[trial]
		failed := false
		for _, r := range series {
			for len(sum.Steps) <= r.Timestep {
				sum.Steps = append(sum.Steps, StepMean{Timestep: len(sum.Steps)})
			}
			accumulate(&sum.Steps[r.Timestep], r)
			if r.Match.Unmatched > 0 {
				failed = true
			}
		}
		if failed {
			failedTrials++
		}
	}
	for i := range sum.Steps {
		finish(&sum.Steps[i])
	}
	sum.MatchingFailure = float64(failedTrials) / float64(sum.Trials)
	return sum
}

func accumulate(m *StepMean, r core.StepReport) {
	m.Trials++
	m.Blocked += float64(r.Match.Blocked)
	m.Matched += float64(r.Match.Matched)
	m.Unmatched += float64(r.Match.Unmatched)
	m.Carried += float64(r.Match.Carried)
	m.Evictions += float64(r.Match.Evictions)
	m.Steals += float64(r.Match.Steals)
	m.TotalCapacity += r.TotalCapacity
	m.MeanCapacity += r.MeanCapacity
	m.MeanDelay += r.MeanDelay
	m.MaxReachability += float64(r.MaxReachability)
	m.MaxStability += float64(r.MaxStability)
	m.JainIndex += r.JainIndex
	m.RelayChanges += float64(r.RelayChanges)
	if r.Match.Unmatched > 0 {
		m.FailureRate++
	}
}

func finish(m *StepMean) {
	if m.Trials == 0 {
		return
	}
	n := float64(m.Trials)
	m.Blocked /= n
	m.Matched /= n
	m.Unmatched /= n
	m.Carried /= n
	m.Evictions /= n
	m.Steals /= n
	m.TotalCapacity /= n
	m.MeanCapacity /= n
	m.MeanDelay /= n
	m.MaxReachability /= n
	m.MaxStability /= n
	m.JainIndex /= n
	m.RelayChanges /= n
	m.FailureRate /= n
}
