package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestScriptCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScriptCollector(reg)
	if err != nil {
		t.Fatalf("NewScriptCollector: %v", err)
	}

	collector.ObserveCompilation(true)
	collector.ObserveCompilation(false)
	collector.ObserveExecution("call", true)
	collector.ObserveExecution("signal", false)
	collector.ObserveError("run")
	collector.LinkCacheHit()
	collector.LinkCacheHit()
	collector.LinkCacheMiss()

	if got := testutil.ToFloat64(collector.Compilations.WithLabelValues("ok")); got != 1 {
		t.Fatalf("script_compilations_total{outcome=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Executions.WithLabelValues("signal", "error")); got != 1 {
		t.Fatalf("script_executions_total{mode=signal,outcome=error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ExecErrors.WithLabelValues("run")); got != 1 {
		t.Fatalf("script_errors_total{kind=run} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.LinkCacheHits); got != 2 {
		t.Fatalf("link_cache_hits_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.LinkCacheMisses); got != 1 {
		t.Fatalf("link_cache_misses_total = %v, want 1", got)
	}
}

func TestScriptCollectorQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScriptCollector(reg)
	if err != nil {
		t.Fatalf("NewScriptCollector: %v", err)
	}

	collector.SetQueueDepth("asap", 3)
	collector.SetQueueDepth("timed", 7)

	if got := testutil.ToFloat64(collector.QueueDepth.WithLabelValues("asap")); got != 3 {
		t.Fatalf("event_queue_depth{kind=asap} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.QueueDepth.WithLabelValues("timed")); got != 7 {
		t.Fatalf("event_queue_depth{kind=timed} = %v, want 7", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *ScriptCollector
	collector.ObserveCompilation(true)
	collector.ObserveExecution("call", true)
	collector.ObserveError("compile")
	collector.LinkCacheHit()
	collector.LinkCacheMiss()
	collector.SetQueueDepth("asap", 1)
}

func TestDuplicateRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewScriptCollector(reg)
	if err != nil {
		t.Fatalf("NewScriptCollector: %v", err)
	}
	second, err := NewScriptCollector(reg)
	if err != nil {
		t.Fatalf("NewScriptCollector (second): %v", err)
	}

	first.ObserveCompilation(true)
	second.ObserveCompilation(true)
	if got := testutil.ToFloat64(first.Compilations.WithLabelValues("ok")); got != 2 {
		t.Fatalf("script_compilations_total{outcome=ok} = %v, want 2 (shared collector)", got)
	}
}

func TestMetricsHandlerExposesEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScriptCollector(reg)
	if err != nil {
		t.Fatalf("NewScriptCollector: %v", err)
	}
	collector.ObserveExecution("call", true)
	collector.SetQueueDepth("asap", 2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"script_executions_total",
		"event_queue_depth",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}
