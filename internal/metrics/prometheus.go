/*-------------------------------------------------------------------------
 *
 * prometheus.go
 *    Prometheus metrics for tool calls, generation and the pool
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/metrics/prometheus.go
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neurondb/NeuronDynamic/internal/database"
)

/* Metrics owns a private registry; a nil *Metrics is a no-op */
type Metrics struct {
	registry *prometheus.Registry

	toolCallsTotal    *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
	generationsTotal  *prometheus.CounterVec
	artifactsTotal    *prometheus.CounterVec
	activeDescriptors prometheus.Gauge
}

/* New creates the metric set on a fresh registry */
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurondb_dynamic_tool_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"tool", "status"},
		),

		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neurondb_dynamic_tool_call_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"tool"},
		),

		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurondb_dynamic_generation_outcomes_total",
				Help: "Operations generated or failed, by verb",
			},
			[]string{"verb", "outcome"},
		),

		artifactsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurondb_dynamic_artifacts_total",
				Help: "Artifact publications and reuses, by verb",
			},
			[]string{"verb", "action"},
		),

		activeDescriptors: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "neurondb_dynamic_active_operations",
				Help: "Number of operations currently exposed as tools",
			},
		),
	}
}

/* RecordToolCall records one tool call */
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

/* RecordGeneration records generated and failed operation counts for a verb */
func (m *Metrics) RecordGeneration(verb string, generated, failed int) {
	if m == nil {
		return
	}
	m.generationsTotal.WithLabelValues(verb, "generated").Add(float64(generated))
	m.generationsTotal.WithLabelValues(verb, "failed").Add(float64(failed))
}

/* RecordArtifact records an artifact action: published or reused */
func (m *Metrics) RecordArtifact(verb, action string) {
	if m == nil {
		return
	}
	m.artifactsTotal.WithLabelValues(verb, action).Inc()
}

/* SetActiveOperations sets the number of active operations */
func (m *Metrics) SetActiveOperations(n int) {
	if m == nil {
		return
	}
	m.activeDescriptors.Set(float64(n))
}

/* RegisterPool exports pool statistics, sampled at scrape time */
func (m *Metrics) RegisterPool(stats func() database.PoolStats) {
	if m == nil || stats == nil {
		return
	}
	factory := promauto.With(m.registry)
	gauge := func(name, help string, value func(database.PoolStats) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return value(stats())
		})
	}
	gauge("neurondb_dynamic_db_pool_acquired_connections", "Connections currently checked out",
		func(s database.PoolStats) float64 { return float64(s.AcquiredConns) })
	gauge("neurondb_dynamic_db_pool_idle_connections", "Idle connections",
		func(s database.PoolStats) float64 { return float64(s.IdleConns) })
	gauge("neurondb_dynamic_db_pool_total_connections", "Open connections",
		func(s database.PoolStats) float64 { return float64(s.TotalConns) })
	gauge("neurondb_dynamic_db_pool_max_connections", "Pool size limit",
		func(s database.PoolStats) float64 { return float64(s.MaxConns) })
	gauge("neurondb_dynamic_db_pool_empty_acquires", "Acquires that had to wait for a connection",
		func(s database.PoolStats) float64 { return float64(s.EmptyAcquireCount) })
	gauge("neurondb_dynamic_db_pool_canceled_acquires", "Acquires canceled before a connection was obtained",
		func(s database.PoolStats) float64 { return float64(s.CanceledAcquireCount) })
}

/* Registry returns the underlying registry */
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

/* Handler returns the /metrics handler */
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
