package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitProviderDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitProvider(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function, got nil")
	}
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestInitProviderEnabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.Endpoint = "https://collector.example.com"
	config.SampleRate = 0.5

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if _, ok := GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Error("expected an SDK tracer provider")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestShutdownForceFlush(t *testing.T) {
	ctx := context.Background()
	if err := Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush failed: %v", err)
	}
}

type flakyExporter struct {
	failures int
	calls    int
}

func (f *flakyExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("collector unavailable")
	}
	return nil
}

func (f *flakyExporter) Shutdown(context.Context) error { return nil }

func TestRetryableExporterRetries(t *testing.T) {
	inner := &flakyExporter{failures: 2}
	re := newRetryableExporter(inner)

	if err := re.ExportSpans(context.Background(), nil); err != nil {
		t.Fatalf("ExportSpans failed: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	cb := newCircuitBreaker()
	for i := 0; i < cb.failureThreshold; i++ {
		if !cb.allow() {
			t.Fatalf("breaker opened after %d failures", i)
		}
		cb.recordFailure()
	}
	if cb.allow() {
		t.Error("expected breaker to be open")
	}

	cb.recordSuccess()
	if !cb.allow() {
		t.Error("expected breaker to close after success")
	}
}
