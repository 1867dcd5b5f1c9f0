package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// Metrics holds the Prometheus collectors for the sentinel.
// It implements trigger.Observer.
type Metrics struct {
	snapshots      prometheus.Counter
	triggers       *prometheus.CounterVec
	priority       prometheus.Histogram
	cooldownBlocks *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	activeCooldown prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		snapshots: f.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_snapshots_evaluated_total",
			Help: "Total number of market snapshots evaluated",
		}),
		triggers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_triggers_total",
			Help: "Total number of triggers fired by level",
		}, []string{"level"}),
		priority: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_trigger_priority",
			Help:    "Priority of fired triggers",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		cooldownBlocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_cooldown_blocks_total",
			Help: "Matches suppressed by an active cooldown, by level",
		}, []string{"level"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_decisions_total",
			Help: "Decisions processed by action and validity",
		}, []string{"action", "valid"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_errors_total",
			Help: "Collaborator errors by component",
		}, []string{"component"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_operation_duration_seconds",
			Help:    "Duration of pipeline operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		activeCooldown: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_active_cooldowns",
			Help: "Symbols currently cooling down",
		}),
	}
}

func (m *Metrics) ObserveTrigger(level model.TriggerLevel, priority int) {
	m.triggers.WithLabelValues(level.String()).Inc()
	m.priority.Observe(float64(priority))
}

func (m *Metrics) ObserveCooldownBlock(level model.TriggerLevel) {
	m.cooldownBlocks.WithLabelValues(level.String()).Inc()
}

func (m *Metrics) RecordSnapshot() {
	m.snapshots.Inc()
}

func (m *Metrics) RecordDecision(action model.Action, valid bool) {
	m.decisions.WithLabelValues(string(action), strconv.FormatBool(valid)).Inc()
}

func (m *Metrics) RecordError(component string) {
	m.errorsTotal.WithLabelValues(component).Inc()
}

func (m *Metrics) RecordLatency(operation string, d time.Duration) {
	m.latency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) SetActiveCooldowns(n int) {
	m.activeCooldown.Set(float64(n))
}
