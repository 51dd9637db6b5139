package main

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
)

type renderFlags struct {
	steps    int
	mode     string
	seed     uint64
	variant  string
	topology string
	interval time.Duration
}

func newRenderCmd(gf *globalFlags) *cobra.Command {
	rf := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Simulate a single trial and print the grid after every timestep",
		Long: `render prints '*' for the access point, 'O' for nodes with line of sight,
'+' for relayed nodes, 'x' for unserved blocked nodes and '-' for empty cells.
The stability and reachability modes print each node's counter instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderTrial(cmd, gf, rf)
		},
	}
	f := cmd.Flags()
	f.IntVar(&rf.steps, "steps", 1, "timesteps to simulate")
	f.StringVar(&rf.mode, "mode", "links", "cell contents: links, stability or reachability")
	f.Uint64Var(&rf.seed, "seed", 0, "random seed (default from config)")
	f.StringVar(&rf.variant, "variant", "", "matching variant (default from config)")
	f.StringVar(&rf.topology, "topology", "", "YAML node placement file replacing the generator")
	f.DurationVar(&rf.interval, "interval", 0, "wall-clock delay between frames")
	return cmd
}

func renderTrial(cmd *cobra.Command, gf *globalFlags, rf *renderFlags) error {
	cfg, log, err := gf.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Run.Seed = rf.seed
	}
	if rf.variant != "" {
		cfg.Matching.Variant = rf.variant
	}
	if rf.topology != "" {
		cfg.Scenario.TopologyFile = rf.topology
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if rf.steps < 1 {
		return fmt.Errorf("steps must be positive, got %d", rf.steps)
	}
	mode, err := core.ParseRenderMode(rf.mode)
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	rank, err := cfg.RankKey()
	if err != nil {
		return err
	}
	mobility, err := core.NewMobilityModel(cfg.Scenario.Mobility)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(cfg.Run.Seed, 0))
	var g *core.Graph
	if cfg.Scenario.TopologyFile != "" {
		data, err := readTopology(cfg.Scenario.TopologyFile)
		if err != nil {
			return err
		}
		topo, err := core.LoadTopology(bytes.NewReader(data))
		if err != nil {
			return err
		}
		g = topo.Graph
	} else {
		g, err = core.GenerateTopology(cfg.ScenarioSpec(), rng)
		if err != nil {
			return err
		}
	}

	oracle := core.NewGridOracle()
	oracle.OcclusionRadius = cfg.Scenario.OcclusionRadius
	if cfg.Scenario.ClutterChance > 0 {
		oracle.WithClutter(cfg.Scenario.ClutterChance, rand.New(rand.NewPCG(cfg.Run.Seed, 1<<63)))
	}

	out := cmd.OutOrStdout()
	se := core.NewSimulationEngine(g, policy, rng,
		core.WithOracle(oracle),
		core.WithMobility(mobility),
		core.WithLinkModel(cfg.Link),
		core.WithRankKey(rank),
		core.WithPacing(rf.interval),
		core.WithSimulationLogger(log),
		core.WithEngineOptions(core.WithCarryOver(cfg.Matching.CarryOver)),
	)

	var renderErr error
	se.RegisterTickListener(func(r core.StepReport) {
		if renderErr != nil {
			return
		}
		fmt.Fprintf(out, "timestep %d: blocked %d matched %d unmatched %d capacity %.3f Gbps delay %.3f ms\n",
			r.Timestep, r.Match.Blocked, r.Match.Matched, r.Match.Unmatched, r.TotalCapacity/1e9, r.MeanDelay)
		renderErr = core.Render(out, g, mode)
	})
	if _, err := se.Run(cmd.Context(), rf.steps); err != nil {
		return err
	}
	return renderErr
}
