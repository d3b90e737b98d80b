package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInitDefault(t *testing.T) {
	m := InitDefault()
	if m == nil {
		t.Fatal("expected metrics, got nil")
	}
	if m != Default {
		t.Error("expected returned metrics to be same as Default")
	}
	if again := InitDefault(); again != m {
		t.Error("expected same instance on second call")
	}
}

func TestNewRegistry(t *testing.T) {
	reg, m := NewRegistry()
	m.RecordSessionStarted("join")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "welcomer_sessions_started_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("metrics not registered with custom registry")
	}
}

func TestHandlerFor(t *testing.T) {
	reg, m := NewRegistry()
	m.RecordAnswer("age", "19-24")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %v, want %v", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "welcomer_answers_total") {
		t.Error("metrics output does not contain welcomer_answers_total")
	}
}

func TestDefaultHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %v, want %v", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "# HELP") {
		t.Error("expected Prometheus metrics format in output")
	}
}
