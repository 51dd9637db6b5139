package trials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/config"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/observability"
	"github.com/signalsfoundry/mesh-relay-simulator/model"
	"github.com/signalsfoundry/mesh-relay-simulator/results"
	"github.com/signalsfoundry/mesh-relay-simulator/timectrl"
)

// ErrNoTrials is returned when a runner is asked to run nothing.
var ErrNoTrials = errors.New("trials and timesteps must be positive")

// Options is everything one batch of trials needs. Every trial starts from
// its own graph; trials never share mutable state.
type Options struct {
	Trials    int
	Timesteps int
	Seed      uint64
	// Workers bounds concurrent trials; 0 means GOMAXPROCS.
	Workers int

	Scenario model.ScenarioSpec
	// Topology, when non-empty, is a placement document for
	// core.LoadTopology used instead of the generator.
	Topology []byte

	Policy    core.Policy
	Rank      core.RankKey
	Mobility  string
	Link      core.LinkModel
	CarryOver bool

	OcclusionRadius float64
	ClutterChance   float64

	Pacing time.Duration
}

// OptionsFromConfig resolves a validated config. topology is the content of
// cfg.Scenario.TopologyFile, or nil.
func OptionsFromConfig(cfg config.Config, topology []byte) (Options, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return Options{}, err
	}
	rank, err := cfg.RankKey()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Trials:          cfg.Run.Trials,
		Timesteps:       cfg.Run.Timesteps,
		Seed:            cfg.Run.Seed,
		Workers:         cfg.Run.Workers,
		Scenario:        cfg.ScenarioSpec(),
		Topology:        topology,
		Policy:          policy,
		Rank:            rank,
		Mobility:        cfg.Scenario.Mobility,
		Link:            cfg.Link,
		CarryOver:       cfg.Matching.CarryOver,
		OcclusionRadius: cfg.Scenario.OcclusionRadius,
		ClutterChance:   cfg.Scenario.ClutterChance,
		Pacing:          cfg.Run.Pacing,
	}, nil
}

// Runner executes independent trials in parallel and collects their step
// reports in a results.Store.
type Runner struct {
	opts Options

	log      logging.Logger
	tracer   trace.Tracer
	matching *observability.MatchingCollector
	trials   *observability.TrialCollector
	store    *results.Store
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMatchingCollector records every matching pass.
func WithMatchingCollector(c *observability.MatchingCollector) RunnerOption {
	return func(r *Runner) { r.matching = c }
}

// WithTrialCollector records trial lifecycles and step aggregates.
func WithTrialCollector(c *observability.TrialCollector) RunnerOption {
	return func(r *Runner) { r.trials = c }
}

// WithStore uses store instead of a fresh one, e.g. to subscribe before Run.
func WithStore(store *results.Store) RunnerOption {
	return func(r *Runner) {
		if store != nil {
			r.store = store
		}
	}
}

// NewRunner validates opts and builds a runner.
func NewRunner(opts Options, ropts ...RunnerOption) (*Runner, error) {
	if opts.Trials < 1 || opts.Timesteps < 1 {
		return nil, fmt.Errorf("NewRunner: %d trials x %d timesteps: %w", opts.Trials, opts.Timesteps, ErrNoTrials)
	}
	if _, err := core.PolicyFor(opts.Policy.Variant); err != nil {
		return nil, fmt.Errorf("NewRunner: %w", err)
	}
	if _, err := core.NewMobilityModel(opts.Mobility); err != nil {
		return nil, fmt.Errorf("NewRunner: %w", err)
	}
	if opts.Link == (core.LinkModel{}) {
		opts.Link = core.DefaultLinkModel()
	}
	r := &Runner{
		opts:   opts,
		log:    logging.Noop(),
		tracer: observability.Tracer(),
		store:  results.NewStore(),
	}
	for _, opt := range ropts {
		opt(r)
	}
	return r, nil
}

// Store returns the store the runner records into.
func (r *Runner) Store() *results.Store { return r.store }

// Run executes every trial and returns the per-timestep means. The first
// failing trial cancels the rest.
func (r *Runner) Run(ctx context.Context) (results.Summary, error) {
	ctx, log := logging.WithRunLogger(ctx, r.log)
	ctx, span := r.tracer.Start(ctx, "trials.Run", trace.WithAttributes(
		attribute.String("run_id", logging.RunIDFromContext(ctx)),
		attribute.String("variant", string(r.opts.Policy.Variant)),
		attribute.Int("trials", r.opts.Trials),
		attribute.Int("timesteps", r.opts.Timesteps),
	))
	defer span.End()

	workers := r.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log.Info(ctx, "starting trials",
		logging.String("variant", string(r.opts.Policy.Variant)),
		logging.Int("trials", r.opts.Trials),
		logging.Int("timesteps", r.opts.Timesteps),
		logging.Int("workers", workers),
	)

	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for trial := range r.opts.Trials {
		eg.Go(func() error {
			return r.runTrial(egCtx, trial, log)
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "trials failed", logging.Err(err))
		return results.Summary{}, err
	}

	summary := r.store.Aggregate()
	log.Info(ctx, "trials complete",
		logging.Int("trials", summary.Trials),
		logging.Float64("matching_failure", summary.MatchingFailure),
		logging.String("elapsed", time.Since(start).String()),
	)
	return summary, nil
}

func (r *Runner) runTrial(ctx context.Context, trial int, log logging.Logger) (err error) {
	ctx, span := r.tracer.Start(ctx, "trial", trace.WithAttributes(attribute.Int("trial", trial)))
	defer span.End()

	log = log.With(logging.Int("trial", trial))
	start := time.Now()
	r.trials.TrialStarted()
	defer func() {
		r.trials.TrialFinished(time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	se, err := r.newSimulation(trial, log)
	if err != nil {
		return fmt.Errorf("trial %d: %w", trial, err)
	}
	se.RegisterTickListener(r.trials.ObserveStep)

	mode := timectrl.Accelerated
	if r.opts.Pacing > 0 {
		mode = timectrl.Paced
	}
	ctrl := timectrl.NewStepController(mode, r.opts.Pacing)
	ctrl.AddListener(func(ctx context.Context, t int) error {
		ctx, stepSpan := r.tracer.Start(ctx, "timestep", trace.WithAttributes(attribute.Int("timestep", t)))
		defer stepSpan.End()

		rep := se.Step(ctx, t)
		stepSpan.SetAttributes(
			attribute.Int("blocked", rep.Match.Blocked),
			attribute.Int("unmatched", rep.Match.Unmatched),
			attribute.Float64("total_capacity_bps", rep.TotalCapacity),
		)
		return r.store.Record(trial, rep)
	})
	if err := ctrl.Run(ctx, r.opts.Timesteps); err != nil {
		return fmt.Errorf("trial %d: %w", trial, err)
	}
	if err := r.store.Complete(trial); err != nil {
		return err
	}
	log.Debug(ctx, "trial complete", logging.String("elapsed", time.Since(start).String()))
	return nil
}

// newSimulation builds the graph and engine for one trial. The trial index
// selects an independent PCG stream so results do not depend on scheduling.
func (r *Runner) newSimulation(trial int, log logging.Logger) (*core.SimulationEngine, error) {
	rng := rand.New(rand.NewPCG(r.opts.Seed, uint64(trial)))

	var g *core.Graph
	if len(r.opts.Topology) > 0 {
		topo, err := core.LoadTopology(bytes.NewReader(r.opts.Topology))
		if err != nil {
			return nil, err
		}
		g = topo.Graph
	} else {
		var err error
		g, err = core.GenerateTopology(r.opts.Scenario, rng)
		if err != nil {
			return nil, err
		}
	}

	mobility, err := core.NewMobilityModel(r.opts.Mobility)
	if err != nil {
		return nil, err
	}

	oracle := core.NewGridOracle()
	if r.opts.OcclusionRadius > 0 {
		oracle.OcclusionRadius = r.opts.OcclusionRadius
	}
	if r.opts.ClutterChance > 0 {
		// separate stream so clutter draws do not shift mobility
		oracle.WithClutter(r.opts.ClutterChance, rand.New(rand.NewPCG(r.opts.Seed, uint64(trial)|1<<63)))
	}

	engineOpts := []core.EngineOption{core.WithCarryOver(r.opts.CarryOver)}
	if r.matching != nil {
		engineOpts = append(engineOpts, core.WithMatchRecorder(r.matching))
	}

	return core.NewSimulationEngine(g, r.opts.Policy, rng,
		core.WithOracle(oracle),
		core.WithMobility(mobility),
		core.WithLinkModel(r.opts.Link),
		core.WithRankKey(r.opts.Rank),
		core.WithSimulationLogger(log),
		core.WithEngineOptions(engineOpts...),
	), nil
}
