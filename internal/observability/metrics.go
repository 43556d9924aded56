package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScriptCollector bundles Prometheus metrics for scripted-part execution and
// the event queue. All increment helpers are nil-safe so library code can
// carry an optional collector without guarding every call site.
type ScriptCollector struct {
	gatherer prometheus.Gatherer

	Compilations *prometheus.CounterVec
	Executions   *prometheus.CounterVec
	ExecErrors   *prometheus.CounterVec

	LinkCacheHits   prometheus.Counter
	LinkCacheMisses prometheus.Counter

	QueueDepth *prometheus.GaugeVec
}

// NewScriptCollector registers engine Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil.
func NewScriptCollector(reg prometheus.Registerer) (*ScriptCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	compilations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "script_compilations_total",
		Help: "Total number of part script compilations, labeled by outcome.",
	}, []string{"outcome"})
	compilations, err := registerCounterVec(reg, compilations, "script_compilations_total")
	if err != nil {
		return nil, err
	}

	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "script_executions_total",
		Help: "Total number of part executions, labeled by mode (call or signal) and outcome.",
	}, []string{"mode", "outcome"})
	executions, err = registerCounterVec(reg, executions, "script_executions_total")
	if err != nil {
		return nil, err
	}

	execErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "script_errors_total",
		Help: "Total number of part execution failures, labeled by error kind.",
	}, []string{"kind"})
	execErrors, err = registerCounterVec(reg, execErrors, "script_errors_total")
	if err != nil {
		return nil, err
	}

	hits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "link_cache_hits_total",
		Help: "Link proxy resolutions served from cache.",
	}), "link_cache_hits_total")
	if err != nil {
		return nil, err
	}
	misses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "link_cache_misses_total",
		Help: "Link proxy resolutions that walked the scenario graph.",
	}), "link_cache_misses_total")
	if err != nil {
		return nil, err
	}

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "event_queue_depth",
		Help: "Current number of queued events, labeled by kind (asap or timed).",
	}, []string{"kind"})
	queueDepth, err = registerGaugeVec(reg, queueDepth, "event_queue_depth")
	if err != nil {
		return nil, err
	}

	return &ScriptCollector{
		gatherer:        gatherer,
		Compilations:    compilations,
		Executions:      executions,
		ExecErrors:      execErrors,
		LinkCacheHits:   hits,
		LinkCacheMisses: misses,
		QueueDepth:      queueDepth,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ScriptCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveCompilation records one compilation attempt.
func (c *ScriptCollector) ObserveCompilation(ok bool) {
	if c == nil || c.Compilations == nil {
		return
	}
	c.Compilations.WithLabelValues(outcome(ok)).Inc()
}

// ObserveExecution records one part execution. mode is "call" or "signal".
func (c *ScriptCollector) ObserveExecution(mode string, ok bool) {
	if c == nil || c.Executions == nil {
		return
	}
	c.Executions.WithLabelValues(mode, outcome(ok)).Inc()
}

// ObserveError records one failed execution by error kind (compile, call,
// run, linking, other).
func (c *ScriptCollector) ObserveError(kind string) {
	if c == nil || c.ExecErrors == nil {
		return
	}
	c.ExecErrors.WithLabelValues(kind).Inc()
}

func (c *ScriptCollector) LinkCacheHit() {
	if c == nil || c.LinkCacheHits == nil {
		return
	}
	c.LinkCacheHits.Inc()
}

func (c *ScriptCollector) LinkCacheMiss() {
	if c == nil || c.LinkCacheMisses == nil {
		return
	}
	c.LinkCacheMisses.Inc()
}

// SetQueueDepth records the current queue depth for a kind ("asap" or
// "timed").
func (c *ScriptCollector) SetQueueDepth(kind string, depth int) {
	if c == nil || c.QueueDepth == nil {
		return
	}
	c.QueueDepth.WithLabelValues(kind).Set(float64(depth))
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
