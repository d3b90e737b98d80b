package telemetry

import "testing"

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ServiceName != "welcomer" {
		t.Errorf("ServiceName = %q, want %q", config.ServiceName, "welcomer")
	}
	if config.Enabled {
		t.Error("Enabled should be false by default")
	}
	if config.Endpoint != "" {
		t.Error("Endpoint should be empty by default")
	}
	if config.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", config.SampleRate)
	}
}

func TestFromEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		endpoint    string
		wantEnabled bool
		wantEnv     string
	}{
		{"no endpoint", "", false, "development"},
		{"with endpoint", "http://otel:4318", true, "production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := FromEndpoint(tt.endpoint, "1.2.3")
			if config.Enabled != tt.wantEnabled {
				t.Errorf("Enabled = %v, want %v", config.Enabled, tt.wantEnabled)
			}
			if config.Environment != tt.wantEnv {
				t.Errorf("Environment = %q, want %q", config.Environment, tt.wantEnv)
			}
			if config.ServiceVersion != "1.2.3" {
				t.Errorf("ServiceVersion = %q, want %q", config.ServiceVersion, "1.2.3")
			}
		})
	}
}
