package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/config"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-relay-simulator/internal/observability"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand that loads a config.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}
	root := &cobra.Command{
		Use:   "meshsim",
		Short: "Relay assignment simulator for mobile mmWave meshes",
		Long: `meshsim places ground nodes on a grid around an access point, moves them
every timestep, and assigns relays to nodes whose line of sight is blocked.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&gf.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&gf.logFormat, "log-format", "", "text or json (default $LOG_FORMAT or text)")

	root.AddCommand(newRunCmd(gf), newRenderCmd(gf), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the simulator version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meshsim %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "variants: %s\n", strings.Join(variantNames(), ", "))
		},
	}
}

// loadConfig reads the config file, overlays the environment and the
// logging flags, and builds the logger. Flags beat the environment, which
// beats the file.
func (gf *globalFlags) loadConfig(cmd *cobra.Command) (config.Config, logging.Logger, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, nil, err
	}
	if gf.logLevel != "" {
		cfg.Logging.Level = gf.logLevel
	}
	if gf.logFormat != "" {
		cfg.Logging.Format = gf.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	return cfg, log, nil
}

// initTracing sends stdout spans to the command's error stream so they never
// mix with the summary.
func initTracing(cmd *cobra.Command, cfg config.Config, log logging.Logger) (func(context.Context) error, error) {
	tc := cfg.TracingSetup()
	tc.Writer = cmd.ErrOrStderr()
	return observability.InitTracing(cmd.Context(), tc, log)
}

func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" || handler == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func shutdownServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func readTopology(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topology file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func variantNames() []string {
	vs := core.Variants()
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = string(v)
	}
	return names
}
