package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/schemagate/schemagate/adapters/metrics"
)

func TestNew(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if m == nil {
		t.Fatal("New returned nil")
	}

	// Verify all metrics are initialized
	if m.Reloads == nil {
		t.Error("Reloads is nil")
	}
	if m.ReloadShared == nil {
		t.Error("ReloadShared is nil")
	}
	if m.CacheHits == nil {
		t.Error("CacheHits is nil")
	}
	if m.CacheMisses == nil {
		t.Error("CacheMisses is nil")
	}
	if m.ClassCreates == nil {
		t.Error("ClassCreates is nil")
	}
	if m.FieldAdds == nil {
		t.Error("FieldAdds is nil")
	}
	if m.ValidationErrors == nil {
		t.Error("ValidationErrors is nil")
	}
	if m.PermissionDenials == nil {
		t.Error("PermissionDenials is nil")
	}
	if m.StorageDuration == nil {
		t.Error("StorageDuration is nil")
	}
}

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	out := map[string]int{}
	for _, f := range families {
		out[f.GetName()] = len(f.GetMetric())
	}
	return out
}

func TestReloadCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordReload("ok")
	m.RecordReload("ok")
	m.RecordReload("error")
	m.RecordReloadShared()

	names := gatherNames(t, reg)
	if names["schemagate_schema_reloads_total"] != 2 {
		t.Errorf("expected 2 reload series, got %d", names["schemagate_schema_reloads_total"])
	}
	if _, ok := names["schemagate_schema_reloads_shared_total"]; !ok {
		t.Error("schemagate_schema_reloads_shared_total metric not found")
	}
}

func TestCacheCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordCache("all", true)
	m.RecordCache("all", false)
	m.RecordCache("one", false)

	names := gatherNames(t, reg)
	if names["schemagate_schema_cache_hits_total"] != 1 {
		t.Errorf("hit series = %d", names["schemagate_schema_cache_hits_total"])
	}
	if names["schemagate_schema_cache_misses_total"] != 2 {
		t.Errorf("miss series = %d", names["schemagate_schema_cache_misses_total"])
	}
}

func TestMutationCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordClassCreate("ok")
	m.RecordClassCreate("exists")
	m.RecordFieldAdd("ok")
	m.RecordFieldAdd("mismatch")
	m.RecordFieldDelete()
	m.RecordCreationRace()
	m.RecordValidationError("111")
	m.RecordPermissionDenial("create")

	names := gatherNames(t, reg)
	for _, want := range []string{
		"schemagate_class_creates_total",
		"schemagate_field_adds_total",
		"schemagate_field_deletes_total",
		"schemagate_creation_races_total",
		"schemagate_validation_errors_total",
		"schemagate_permission_denials_total",
	} {
		if _, ok := names[want]; !ok {
			t.Errorf("%s metric not found", want)
		}
	}
}

func TestObserveStorage(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveStorage("GetAllClasses", 0.003)
	m.ObserveStorage("CreateClass", 0.012)

	names := gatherNames(t, reg)
	if names["schemagate_storage_call_duration_seconds"] != 2 {
		t.Errorf("expected 2 histogram series, got %d", names["schemagate_storage_call_duration_seconds"])
	}
}

// TestNilCollector covers the nil-safe recording path used when metrics are
// disabled.
func TestNilCollector(t *testing.T) {
	var m *metrics.Collector

	m.RecordReload("ok")
	m.RecordReloadShared()
	m.RecordCache("all", true)
	m.RecordClassCreate("ok")
	m.RecordFieldAdd("ok")
	m.RecordFieldDelete()
	m.RecordCreationRace()
	m.RecordValidationError("1")
	m.RecordPermissionDenial("find")
	m.ObserveStorage("GetClass", 0.001)
}
