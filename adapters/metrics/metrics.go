// Package metrics provides Prometheus metrics collection for schemagate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for schemagate. A nil *Collector is
// valid and records nothing, so wiring metrics stays optional in tests.
type Collector struct {
	// Schema view metrics
	Reloads      *prometheus.CounterVec
	ReloadShared prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Mutation metrics
	ClassCreates      *prometheus.CounterVec
	FieldAdds         *prometheus.CounterVec
	FieldDeletes      prometheus.Counter
	CreationRaces     prometheus.Counter
	ValidationErrors  *prometheus.CounterVec
	PermissionDenials *prometheus.CounterVec

	// Storage metrics
	StorageDuration *prometheus.HistogramVec
}

// New creates a collector registered on reg. Pass a fresh registry in tests
// to avoid duplicate registration.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		Reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "schema_reloads_total",
				Help:      "Schema view reloads by outcome",
			},
			[]string{"outcome"},
		),
		ReloadShared: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "schema_reloads_shared_total",
				Help:      "Reload requests that joined an in-flight reload",
			},
		),
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "schema_cache_hits_total",
				Help:      "Schema cache hits by lookup kind",
			},
			[]string{"kind"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "schema_cache_misses_total",
				Help:      "Schema cache misses by lookup kind",
			},
			[]string{"kind"},
		),
		ClassCreates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "class_creates_total",
				Help:      "Class creations by outcome",
			},
			[]string{"outcome"},
		),
		FieldAdds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "field_adds_total",
				Help:      "Field additions by outcome",
			},
			[]string{"outcome"},
		),
		FieldDeletes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "field_deletes_total",
				Help:      "Field deletions",
			},
		),
		CreationRaces: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "creation_races_total",
				Help:      "Create conflicts absorbed by reload-and-recheck",
			},
		),
		ValidationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "validation_errors_total",
				Help:      "Object/schema validation failures by error code",
			},
			[]string{"code"},
		),
		PermissionDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemagate",
				Name:      "permission_denials_total",
				Help:      "CLP denials by operation",
			},
			[]string{"operation"},
		),
		StorageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schemagate",
				Name:      "storage_call_duration_seconds",
				Help:      "Storage adapter call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method"},
		),
	}
}

// RecordReload counts one reload with the given outcome ("ok" or "error").
func (c *Collector) RecordReload(outcome string) {
	if c == nil {
		return
	}
	c.Reloads.WithLabelValues(outcome).Inc()
}

// RecordReloadShared counts a reload request served by an in-flight reload.
func (c *Collector) RecordReloadShared() {
	if c == nil {
		return
	}
	c.ReloadShared.Inc()
}

// RecordCache counts a cache hit or miss for a lookup kind ("all" or "one").
func (c *Collector) RecordCache(kind string, hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.WithLabelValues(kind).Inc()
	} else {
		c.CacheMisses.WithLabelValues(kind).Inc()
	}
}

// RecordClassCreate counts a class creation outcome.
func (c *Collector) RecordClassCreate(outcome string) {
	if c == nil {
		return
	}
	c.ClassCreates.WithLabelValues(outcome).Inc()
}

// RecordFieldAdd counts a field addition outcome.
func (c *Collector) RecordFieldAdd(outcome string) {
	if c == nil {
		return
	}
	c.FieldAdds.WithLabelValues(outcome).Inc()
}

// RecordFieldDelete counts a field deletion.
func (c *Collector) RecordFieldDelete() {
	if c == nil {
		return
	}
	c.FieldDeletes.Inc()
}

// RecordCreationRace counts a create conflict absorbed by reload-and-recheck.
func (c *Collector) RecordCreationRace() {
	if c == nil {
		return
	}
	c.CreationRaces.Inc()
}

// RecordValidationError counts a validation failure by stable code.
func (c *Collector) RecordValidationError(code string) {
	if c == nil {
		return
	}
	c.ValidationErrors.WithLabelValues(code).Inc()
}

// RecordPermissionDenial counts a CLP denial.
func (c *Collector) RecordPermissionDenial(operation string) {
	if c == nil {
		return
	}
	c.PermissionDenials.WithLabelValues(operation).Inc()
}

// ObserveStorage records one storage adapter call duration.
func (c *Collector) ObserveStorage(method string, seconds float64) {
	if c == nil {
		return
	}
	c.StorageDuration.WithLabelValues(method).Observe(seconds)
}
