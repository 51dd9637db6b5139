package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the on-disk simulator configuration.
type Config struct {
	Scenario ScenarioConfig `yaml:"scenario"`
	Matching MatchingConfig `yaml:"matching"`
	Run      RunConfig      `yaml:"run"`
	Link     core.LinkModel `yaml:"link"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ScenarioConfig describes the arena, population and motion.
type ScenarioConfig struct {
	Width      int               `yaml:"width" validate:"gte=2,lte=4096"`
	Length     int               `yaml:"length" validate:"gte=2,lte=4096"`
	AP         model.AccessPoint `yaml:"ap"`
	Population int               `yaml:"population" validate:"gte=1"`
	Layout     string            `yaml:"layout" validate:"layout"`

	GroupSize      int            `yaml:"group_size" validate:"gte=1"`
	GroupRadius    int            `yaml:"group_radius" validate:"gte=2"`
	Regions        []model.Region `yaml:"regions"`
	MinHeight      float64        `yaml:"min_height" validate:"gt=0"`
	HeightSpreadCm int            `yaml:"height_spread_cm" validate:"gte=0"`

	// TopologyFile, when set, replaces the generator with explicit placements.
	TopologyFile string `yaml:"topology_file"`

	Mobility        string  `yaml:"mobility" validate:"mobility"`
	OcclusionRadius float64 `yaml:"occlusion_radius" validate:"gt=0"`
	ClutterChance   float64 `yaml:"clutter_chance" validate:"gte=0,lte=1"`
}

// MatchingConfig selects the relay-assignment policy.
type MatchingConfig struct {
	Variant   string `yaml:"variant" validate:"variant"`
	Rank      string `yaml:"rank" validate:"rankkey"`
	CarryOver bool   `yaml:"carry_over"`
}

// RunConfig controls the trial runner.
type RunConfig struct {
	Trials    int    `yaml:"trials" validate:"gte=1"`
	Timesteps int    `yaml:"timesteps" validate:"gte=1"`
	Seed      uint64 `yaml:"seed"`
	// Workers bounds concurrent trials; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`
	// Pacing spaces timesteps in wall-clock time; 0 runs flat out.
	Pacing time.Duration `yaml:"pacing" validate:"gte=0"`
}

// LoggingConfig sets the log level and format. ApplyEnv overlays
// LOG_LEVEL and LOG_FORMAT.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// TracingConfig selects the span exporter. ApplyEnv overlays the
// MESH_TRACING_* variables.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	Exporter    string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the server.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration of the reference experiment.
func Default() Config {
	return Config{
		Scenario: ScenarioConfig{
			Width:           model.DefaultWidth,
			Length:          model.DefaultLength,
			AP:              model.AccessPoint{X: model.DefaultWidth / 2, Y: 0, Height: 3},
			Population:      model.DefaultPopulation,
			Layout:          string(model.LayoutGroup),
			GroupSize:       model.DefaultGroupSize,
			GroupRadius:     model.DefaultGroupRadius,
			MinHeight:       model.DefaultMinHeight,
			HeightSpreadCm:  model.DefaultHeightSpread,
			Mobility:        "waypoint-group",
			OcclusionRadius: core.DefaultOcclusionRadius,
		},
		Matching: MatchingConfig{
			Variant:   string(core.VariantGroupFair),
			Rank:      core.RankByDistance.String(),
			CarryOver: true,
		},
		Run: RunConfig{
			Trials:    100,
			Timesteps: 10,
			Seed:      1,
		},
		Link:    core.DefaultLinkModel(),
		Tracing: TracingConfig{ServiceName: "meshsim", Exporter: "stdout", SampleRatio: 1},
	}
}

// Load reads path and overlays it on Default. An empty path returns the
// defaults. The result is validated.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config.Load %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML from r over Default and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs the struct tag rules and the cross-field checks.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := c.Scenario
	if s.AP.X < 0 || s.AP.X >= s.Width || s.AP.Y < 0 || s.AP.Y >= s.Length {
		return fmt.Errorf("%w: ap (%d,%d) outside %dx%d grid", ErrInvalidConfig, s.AP.X, s.AP.Y, s.Width, s.Length)
	}
	if s.AP.Height <= 0 {
		return fmt.Errorf("%w: ap height must be positive", ErrInvalidConfig)
	}
	if s.TopologyFile == "" && s.Population > s.Width*s.Length-1 {
		return fmt.Errorf("%w: population %d does not fit a %dx%d grid", ErrInvalidConfig, s.Population, s.Width, s.Length)
	}
	for i, r := range s.Regions {
		if r.Cells() == 0 || r.MinX < 0 || r.MinY < 0 || r.MaxX > s.Width || r.MaxY > s.Length {
			return fmt.Errorf("%w: region %d %+v outside grid or empty", ErrInvalidConfig, i, r)
		}
	}

	l := c.Link
	if l.BandwidthHz <= 0 || l.CarrierHz <= 0 || l.LimitBps <= 0 || l.FrameBits <= 0 {
		return fmt.Errorf("%w: link bandwidth, carrier, limit and frame size must be positive", ErrInvalidConfig)
	}
	if l.ShadowingStdDevDB < 0 || l.RenderMs < 0 || l.NetworkMs < 0 || l.BeamMs < 0 {
		return fmt.Errorf("%w: link shadowing and delays must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ScenarioSpec converts the scenario section for core.GenerateTopology.
func (c Config) ScenarioSpec() model.ScenarioSpec {
	s := c.Scenario
	spread := s.HeightSpreadCm
	groupSize := s.GroupSize
	if model.Layout(s.Layout) != model.LayoutGroup {
		groupSize = 1
	}
	return model.ScenarioSpec{
		Width:          s.Width,
		Length:         s.Length,
		AP:             s.AP,
		Population:     s.Population,
		Layout:         model.Layout(s.Layout),
		GroupSize:      groupSize,
		GroupRadius:    s.GroupRadius,
		Regions:        append([]model.Region(nil), s.Regions...),
		MinHeight:      s.MinHeight,
		HeightSpreadCm: &spread,
	}
}

// Policy resolves the matching variant.
func (c Config) Policy() (core.Policy, error) {
	v, err := core.ParseVariant(c.Matching.Variant)
	if err != nil {
		return core.Policy{}, err
	}
	return core.PolicyFor(v)
}

// RankKey resolves the candidate ordering.
func (c Config) RankKey() (core.RankKey, error) {
	return core.ParseRankKey(c.Matching.Rank)
}
