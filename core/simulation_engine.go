package core

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/mesh-relay-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-relay-simulator/timectrl"
)

// StepReport is the post-pass aggregate for one timestep of one trial.
type StepReport struct {
	Timestep        int
	Match           MatchResult
	TotalCapacity   float64
	MeanCapacity    float64
	MeanDelay       float64
	MaxReachability int
	MaxStability    int
	JainIndex       float64
	// RelayChanges is how many nodes changed relay since the previous step.
	RelayChanges int
}

// SimulationEngine drives one trial: mobility, then the relay-assignment
// pipeline, then capacity and delay, once per timestep.
type SimulationEngine struct {
	Graph    *Graph
	Oracle   VisibilityOracle
	Mobility MobilityModel
	Link     LinkModel
	Rank     RankKey
	Matcher  *Engine

	rng           *rand.Rand
	pacing        time.Duration
	log           logging.Logger
	engineOpts    []EngineOption
	tickListeners []func(StepReport)
}

// SimulationOption customises a SimulationEngine.
type SimulationOption func(*SimulationEngine)

// WithOracle replaces the default grid oracle.
func WithOracle(o VisibilityOracle) SimulationOption {
	return func(se *SimulationEngine) { se.Oracle = o }
}

// WithMobility sets the mobility model; the default is static.
func WithMobility(m MobilityModel) SimulationOption {
	return func(se *SimulationEngine) { se.Mobility = m }
}

// WithLinkModel replaces DefaultLinkModel.
func WithLinkModel(m LinkModel) SimulationOption {
	return func(se *SimulationEngine) { se.Link = m }
}

// WithRankKey sets the candidate ordering; the default is distance.
func WithRankKey(k RankKey) SimulationOption {
	return func(se *SimulationEngine) { se.Rank = k }
}

// WithSimulationLogger attaches a logger to the engine and its matcher.
func WithSimulationLogger(log logging.Logger) SimulationOption {
	return func(se *SimulationEngine) {
		if log != nil {
			se.log = log
		}
	}
}

// WithPacing spaces timesteps by interval of wall-clock time in Run.
func WithPacing(interval time.Duration) SimulationOption {
	return func(se *SimulationEngine) { se.pacing = interval }
}

// WithEngineOptions forwards options to the matching engine.
func WithEngineOptions(opts ...EngineOption) SimulationOption {
	return func(se *SimulationEngine) { se.engineOpts = append(se.engineOpts, opts...) }
}

// NewSimulationEngine wires a trial around g. rng drives mobility and link
// shadowing; the same seed reproduces the same trial.
func NewSimulationEngine(g *Graph, policy Policy, rng *rand.Rand, opts ...SimulationOption) *SimulationEngine {
	se := &SimulationEngine{
		Graph:    g,
		Oracle:   NewGridOracle(),
		Mobility: StaticMobility{},
		Link:     DefaultLinkModel(),
		Rank:     RankByDistance,
		rng:      rng,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(se)
	}
	engineOpts := append([]EngineOption{WithLogger(se.log)}, se.engineOpts...)
	se.Matcher = NewEngine(policy, se.Oracle, engineOpts...)
	return se
}

// RegisterTickListener adds a callback invoked after every step.
func (se *SimulationEngine) RegisterTickListener(fn func(StepReport)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Step runs timestep t. Nodes move before every step except the first.
func (se *SimulationEngine) Step(ctx context.Context, t int) StepReport {
	g := se.Graph
	if t > 0 {
		se.Mobility.Step(g, se.rng)
	}

	g.RefreshBlockage(se.Oracle)
	g.SampleLinks(se.Link, se.rng)
	g.BuildCandidates(se.Oracle)
	g.RankCandidates(se.Rank)
	res := se.Matcher.Run(ctx, g, t)
	ApplyCapacityDelay(g, se.Link)
	changed := RecordStability(g, t)

	report := StepReport{
		Timestep:        t,
		Match:           res,
		TotalCapacity:   TotalCapacity(g),
		MeanCapacity:    MeanCapacity(g),
		MeanDelay:       MeanDelay(g),
		MaxReachability: MaxReachability(g),
		MaxStability:    MaxStability(g),
		JainIndex:       JainIndex(g),
		RelayChanges:    changed,
	}
	for _, fn := range se.tickListeners {
		fn(report)
	}
	return report
}

// Run executes steps timesteps and returns their reports. It stops early,
// returning the reports so far, if ctx is cancelled between steps.
func (se *SimulationEngine) Run(ctx context.Context, steps int) ([]StepReport, error) {
	mode := timectrl.Accelerated
	if se.pacing > 0 {
		mode = timectrl.Paced
	}
	ctrl := timectrl.NewStepController(mode, se.pacing)

	reports := make([]StepReport, 0, steps)
	ctrl.AddListener(func(ctx context.Context, t int) error {
		reports = append(reports, se.Step(ctx, t))
		return nil
	})
	err := ctrl.Run(ctx, steps)
	return reports, err
}
