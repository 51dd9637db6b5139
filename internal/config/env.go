package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/mesh-relay-simulator/internal/observability"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvTracingEnabled  = "MESH_TRACING_ENABLED"
	EnvTracingExporter = "MESH_TRACING_EXPORTER"
	EnvTracingService  = "MESH_TRACING_SERVICE_NAME"
	EnvTracingRatio    = "MESH_TRACING_SAMPLE_RATIO"
	EnvOTLPEndpoint    = "MESH_OTLP_ENDPOINT"
)

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays every non-empty variable above on c. Values that do not
// parse are reported instead of being dropped. Call Validate afterwards.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvLogLevel); ok {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get(EnvLogFormat); ok {
		c.Logging.Format = strings.ToLower(v)
	}
	if v, ok := get(EnvTracingEnabled); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, EnvTracingEnabled, v)
		}
		c.Tracing.Enabled = enabled
	}
	if v, ok := get(EnvTracingExporter); ok {
		c.Tracing.Exporter = strings.ToLower(v)
	}
	if v, ok := get(EnvTracingService); ok {
		c.Tracing.ServiceName = v
	}
	if v, ok := get(EnvTracingRatio); ok {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvTracingRatio, v)
		}
		c.Tracing.SampleRatio = ratio
	}
	if v, ok := get(EnvOTLPEndpoint); ok {
		c.Tracing.Endpoint = v
	}
	return nil
}

// TracingSetup converts the tracing section for observability.InitTracing.
func (c Config) TracingSetup() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
