package telemetry

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, production)
	Environment string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used
	Enabled bool

	// Endpoint is the OTLP/HTTP collector URL (optional).
	// If empty, spans are recorded but not exported
	Endpoint string

	// SampleRate is the fraction of sessions to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns a configuration with tracing disabled
func DefaultConfig() Config {
	return Config{
		ServiceName:    "welcomer",
		ServiceVersion: "dev",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// FromEndpoint enables tracing when an endpoint is configured
func FromEndpoint(endpoint, version string) Config {
	cfg := DefaultConfig()
	cfg.ServiceVersion = version
	if endpoint != "" {
		cfg.Enabled = true
		cfg.Endpoint = endpoint
		cfg.Environment = "production"
	}
	return cfg
}
