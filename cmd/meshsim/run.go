package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mesh-relay-simulator/internal/config"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/observability"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/sim/trials"
	"github.com/signalsfoundry/mesh-relay-simulator/results"
)

// runFlags mirror config fields. Only flags the user set override the file.
type runFlags struct {
	trials      int
	timesteps   int
	seed        uint64
	workers     int
	variant     string
	rank        string
	layout      string
	mobility    string
	population  int
	topology    string
	metricsAddr string
	pacing      time.Duration
	noCarry     bool
	output      string
}

func newRunCmd(gf *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run independent trials and print per-timestep averages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrials(cmd, gf, rf)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&rf.trials, "trials", "n", 0, "number of independent trials")
	f.IntVarP(&rf.timesteps, "timesteps", "t", 0, "timesteps per trial")
	f.Uint64Var(&rf.seed, "seed", 0, "base random seed")
	f.IntVar(&rf.workers, "workers", 0, "concurrent trials (0 = GOMAXPROCS)")
	f.StringVar(&rf.variant, "variant", "", "matching variant: "+strings.Join(variantNames(), ", "))
	f.StringVar(&rf.rank, "rank", "", "candidate ordering: distance, capacity or height")
	f.StringVar(&rf.layout, "layout", "", "topology layout: uniform, group or poisson")
	f.StringVar(&rf.mobility, "mobility", "", "mobility model: static, random-walk or waypoint-group")
	f.IntVar(&rf.population, "population", 0, "number of ground nodes")
	f.StringVar(&rf.topology, "topology", "", "YAML node placement file replacing the generator")
	f.StringVar(&rf.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	f.DurationVar(&rf.pacing, "pacing", 0, "wall-clock delay between timesteps")
	f.BoolVar(&rf.noCarry, "no-carry-over", false, "recompute every pair from scratch each timestep")
	f.StringVarP(&rf.output, "output", "o", "text", "summary format: text or json")
	return cmd
}

func (rf *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("trials") {
		cfg.Run.Trials = rf.trials
	}
	if f.Changed("timesteps") {
		cfg.Run.Timesteps = rf.timesteps
	}
	if f.Changed("seed") {
		cfg.Run.Seed = rf.seed
	}
	if f.Changed("workers") {
		cfg.Run.Workers = rf.workers
	}
	if f.Changed("variant") {
		cfg.Matching.Variant = rf.variant
	}
	if f.Changed("rank") {
		cfg.Matching.Rank = rf.rank
	}
	if f.Changed("layout") {
		cfg.Scenario.Layout = rf.layout
	}
	if f.Changed("mobility") {
		cfg.Scenario.Mobility = rf.mobility
	}
	if f.Changed("population") {
		cfg.Scenario.Population = rf.population
	}
	if f.Changed("topology") {
		cfg.Scenario.TopologyFile = rf.topology
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = rf.metricsAddr
	}
	if f.Changed("pacing") {
		cfg.Run.Pacing = rf.pacing
	}
	if rf.noCarry {
		cfg.Matching.CarryOver = false
	}
}

func runTrials(cmd *cobra.Command, gf *globalFlags, rf *runFlags) error {
	ctx := cmd.Context()
	cfg, log, err := gf.loadConfig(cmd)
	if err != nil {
		return err
	}
	rf.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if rf.output != "text" && rf.output != "json" {
		return fmt.Errorf("unknown output format %q", rf.output)
	}

	shutdown, err := initTracing(cmd, cfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	reg := prometheus.NewRegistry()
	matching, err := observability.NewMatchingCollector(reg)
	if err != nil {
		return err
	}
	trialMetrics, err := observability.NewTrialCollector(reg)
	if err != nil {
		return err
	}
	srv := serveMetrics(cfg.Metrics.Addr, matching.Handler(), log)
	defer shutdownServer(srv)

	topology, err := readTopology(cfg.Scenario.TopologyFile)
	if err != nil {
		return err
	}
	opts, err := trials.OptionsFromConfig(cfg, topology)
	if err != nil {
		return err
	}

	store := results.NewStore()
	total := cfg.Run.Trials
	store.Subscribe(func(ev results.Event) {
		if ev.Type == results.EventTrialCompleted {
			log.Debug(ctx, "trial recorded",
				logging.Int("trial", ev.Trial),
				logging.Int("completed", store.Completed()),
				logging.Int("total", total),
			)
		}
	})

	runner, err := trials.NewRunner(opts,
		trials.WithLogger(log),
		trials.WithMatchingCollector(matching),
		trials.WithTrialCollector(trialMetrics),
		trials.WithStore(store),
	)
	if err != nil {
		return err
	}
	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if rf.output == "json" {
		return writeJSON(cmd.OutOrStdout(), cfg, summary)
	}
	return writeSummary(cmd.OutOrStdout(), cfg, summary)
}

// writeSummary prints one comma-separated row per metric, one column per
// timestep.
func writeSummary(w io.Writer, cfg config.Config, s results.Summary) error {
	rows := []struct {
		title string
		value func(results.StepMean) float64
	}{
		{"Average Data Rate per Node (Gbps)", func(m results.StepMean) float64 { return m.MeanCapacity / 1e9 }},
		{"Total Data Rate (Gbps)", func(m results.StepMean) float64 { return m.TotalCapacity / 1e9 }},
		{"Average Delay (ms)", func(m results.StepMean) float64 { return m.MeanDelay }},
		{"Blocked Nodes", func(m results.StepMean) float64 { return m.Blocked }},
		{"Unmatched Nodes", func(m results.StepMean) float64 { return m.Unmatched }},
		{"Failure Rate (%)", func(m results.StepMean) float64 { return m.FailureRate * 100 }},
		{"Max Unreachability per Node", func(m results.StepMean) float64 { return m.MaxReachability }},
		{"Max Rerouting per Node", func(m results.StepMean) float64 { return m.MaxStability }},
		{"Average Rerouting per Timestep", func(m results.StepMean) float64 { return m.RelayChanges }},
		{"Rerouting Fairness (Jain)", func(m results.StepMean) float64 { return m.JainIndex }},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "variant: %s  trials: %d  timesteps: %d\n", cfg.Matching.Variant, s.Trials, len(s.Steps))
	for _, row := range rows {
		fmt.Fprintf(&b, "%s:\n", row.title)
		for _, m := range s.Steps {
			fmt.Fprintf(&b, "%.4f,", row.value(m))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Matching Failure: %.2f\n", s.MatchingFailure*100)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, cfg config.Config, s results.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Variant string          `json:"variant"`
		Summary results.Summary `json:"summary"`
	}{cfg.Matching.Variant, s})
}
