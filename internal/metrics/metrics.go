// Package metrics holds the Prometheus collectors for rule application and
// rule reloading.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/roach88/handyrules/internal/engine"
	"github.com/roach88/handyrules/internal/rule"
)

const namespace = "handyrules"

// Reload outcomes used as the result label of reloads_total.
const (
	ReloadApplied    = "applied"
	ReloadUnchanged  = "unchanged"
	ReloadFailed     = "failed"
	ReloadSuperseded = "superseded"
)

// Metrics contains every collector the service exports.
type Metrics struct {
	RulesApplied   *prometheus.CounterVec
	RuleDuration   *prometheus.HistogramVec
	ApplyDuration  prometheus.Histogram
	Reloads        *prometheus.CounterVec
	ActiveRules    prometheus.Gauge
	RuleSetVersion prometheus.Gauge
	Requests       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		RulesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_applied_total",
				Help:      "Rule evaluations by rule and outcome (matched, no_match, failed, skipped)",
			},
			[]string{"rule_id", "status"},
		),

		RuleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rule_duration_seconds",
				Help:      "Time spent evaluating a single rule, by rule kind",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"kind"},
		),

		ApplyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "apply_duration_seconds",
				Help:      "Time spent applying the whole rule set to one input",
				Buckets:   prometheus.DefBuckets,
			},
		),

		Reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Rule reload attempts by result (applied, unchanged, failed, superseded)",
			},
			[]string{"result"},
		),

		ActiveRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_rules",
				Help:      "Number of enabled rules in the published rule set",
			},
		),

		RuleSetVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ruleset_version",
				Help:      "Version counter of the published rule set",
			},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RulesApplied,
		m.RuleDuration,
		m.ApplyDuration,
		m.Reloads,
		m.ActiveRules,
		m.RuleSetVersion,
		m.Requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRule implements engine.Recorder.
func (m *Metrics) ObserveRule(ruleID string, kind rule.Kind, status engine.Status, d time.Duration) {
	m.RulesApplied.WithLabelValues(ruleID, string(status)).Inc()
	if status != engine.StatusSkipped {
		m.RuleDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
	}
}

// ObserveApply implements engine.Recorder.
func (m *Metrics) ObserveApply(d time.Duration) {
	m.ApplyDuration.Observe(d.Seconds())
}

// RecordReload counts a reload attempt.
func (m *Metrics) RecordReload(result string) {
	m.Reloads.WithLabelValues(result).Inc()
}

// RecordRuleSet updates the gauges describing the published rule set.
func (m *Metrics) RecordRuleSet(set *rule.RuleSet, version uint64) {
	m.ActiveRules.Set(float64(set.EnabledCount()))
	m.RuleSetVersion.Set(float64(version))
}

// RecordRequest counts one HTTP response.
func (m *Metrics) RecordRequest(route string, code int) {
	m.Requests.WithLabelValues(route, statusText(code)).Inc()
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var _ engine.Recorder = (*Metrics)(nil)
