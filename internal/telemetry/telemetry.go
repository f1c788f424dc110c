package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converse_turns_total",
		Help: "User turns handled, by terminal path.",
	}, []string{"path"})

	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "converse_turn_duration_seconds",
		Help:    "Wall time of one user turn.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	llmTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "converse_llm_tokens_total",
		Help: "Tokens consumed across all model calls.",
	})

	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converse_tool_calls_total",
		Help: "External tool operations invoked, by operation and outcome.",
	}, []string{"operation", "outcome"})

	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converse_fallbacks_total",
		Help: "Degraded paths taken, by stage.",
	}, []string{"stage"})
)

// Path labels for turn accounting.
const (
	PathEngine  = "engine"
	PathUtility = "utility"
	PathSearch  = "search"
)

// Telemetry tracks turn-level counters both as Prometheus series and as an
// in-process snapshot for the ops endpoint.
type Telemetry struct {
	logger  *log.Logger
	mu      sync.RWMutex
	metrics Metrics
}

// Metrics is the in-process snapshot.
type Metrics struct {
	TotalTurns      int64
	TurnsByPath     map[string]int64
	AverageTurnTime time.Duration
	TotalTokens     int64
	ToolCalls       map[string]int64
	Fallbacks       map[string]int64
}

func New(logger *log.Logger) *Telemetry {
	if logger == nil {
		logger = log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags)
	}
	return &Telemetry{
		logger: logger,
		metrics: Metrics{
			TurnsByPath: make(map[string]int64),
			ToolCalls:   make(map[string]int64),
			Fallbacks:   make(map[string]int64),
		},
	}
}

// RecordTurn records one completed user turn. Token usage is reported
// separately via RecordTokens as each chat call returns.
func (t *Telemetry) RecordTurn(path string, duration time.Duration) {
	turnsTotal.WithLabelValues(path).Inc()
	turnDuration.WithLabelValues(path).Observe(duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalTurns++
	t.metrics.TurnsByPath[path]++
	if t.metrics.TotalTurns == 1 {
		t.metrics.AverageTurnTime = duration
	} else {
		total := t.metrics.AverageTurnTime * time.Duration(t.metrics.TotalTurns-1)
		t.metrics.AverageTurnTime = (total + duration) / time.Duration(t.metrics.TotalTurns)
	}
}

// RecordTokens adds model token usage reported by a chat call.
func (t *Telemetry) RecordTokens(n int64) {
	if n <= 0 {
		return
	}
	llmTokens.Add(float64(n))

	t.mu.Lock()
	t.metrics.TotalTokens += n
	t.mu.Unlock()
}

// RecordToolCall records one external operation invocation.
func (t *Telemetry) RecordToolCall(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	toolCalls.WithLabelValues(operation, outcome).Inc()

	t.mu.Lock()
	t.metrics.ToolCalls[operation+"/"+outcome]++
	t.mu.Unlock()
}

// RecordFallback records a degraded path being taken at a named stage.
func (t *Telemetry) RecordFallback(stage string) {
	fallbacks.WithLabelValues(stage).Inc()

	t.mu.Lock()
	t.metrics.Fallbacks[stage]++
	t.mu.Unlock()
}

// Snapshot returns a copy of the in-process metrics.
func (t *Telemetry) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.metrics
	out.TurnsByPath = make(map[string]int64, len(t.metrics.TurnsByPath))
	for k, v := range t.metrics.TurnsByPath {
		out.TurnsByPath[k] = v
	}
	out.ToolCalls = make(map[string]int64, len(t.metrics.ToolCalls))
	for k, v := range t.metrics.ToolCalls {
		out.ToolCalls[k] = v
	}
	out.Fallbacks = make(map[string]int64, len(t.metrics.Fallbacks))
	for k, v := range t.metrics.Fallbacks {
		out.Fallbacks[k] = v
	}
	return out
}

// Shutdown logs a final usage report.
func (t *Telemetry) Shutdown() {
	m := t.Snapshot()
	t.logger.Printf("final report: turns=%d avg=%v tokens=%d", m.TotalTurns, m.AverageTurnTime, m.TotalTokens)
	for path, n := range m.TurnsByPath {
		t.logger.Printf("  path %s: %d", path, n)
	}
}
