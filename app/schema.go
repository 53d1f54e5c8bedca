// Package app contains the SchemaController, the orchestrator that owns the
// materialized view of all class schemas and permissions.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/schemagate/schemagate/adapters/metrics"
	"github.com/schemagate/schemagate/domain/class"
	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/pkg/serr"
	"github.com/schemagate/schemagate/ports"
)

// SchemaController holds the in-memory materialized view of every class
// schema and delegates persistence to the storage adapter, consulting the
// schema cache first. The view is only ever rebuilt wholesale and swapped;
// it is never patched field by field, so concurrent readers never observe a
// partially updated schema.
type SchemaController struct {
	storage ports.StorageAdapter
	cache   ports.SchemaCache
	logger  zerolog.Logger
	metrics *metrics.Collector

	mu     sync.RWMutex
	data   map[string]map[string]fieldtype.Type
	perms  map[string]clp.Permissions
	loaded bool

	// volatile holds fields recorded on volatile classes. Those classes have
	// no storage rows, so every rebuild re-injects these on top of their
	// defaults.
	volatile map[string]map[string]fieldtype.Type

	// reloads collapses concurrent non-forced reloads into one storage
	// round trip. Forced reloads always run fresh.
	reloads singleflight.Group
}

// NewSchemaController creates a controller. The collector may be nil.
func NewSchemaController(storage ports.StorageAdapter, cache ports.SchemaCache, logger zerolog.Logger, collector *metrics.Collector) *SchemaController {
	return &SchemaController{
		storage:  storage,
		cache:    cache,
		logger:   logger,
		metrics:  collector,
		data:     map[string]map[string]fieldtype.Type{},
		perms:    map[string]clp.Permissions{},
		volatile: map[string]map[string]fieldtype.Type{},
	}
}

// Reload rebuilds the materialized view from cache or storage. Concurrent
// callers share one in-flight reload unless clearCache forces a fresh run.
func (s *SchemaController) Reload(ctx context.Context, clearCache bool) error {
	if clearCache {
		s.cache.Clear(ctx)
		err := s.loadAll(ctx)
		s.recordReload(err)
		return err
	}

	_, err, shared := s.reloads.Do("reload", func() (any, error) {
		return nil, s.loadAll(ctx)
	})
	if shared {
		s.metrics.RecordReloadShared()
	} else {
		s.recordReload(err)
	}
	return err
}

func (s *SchemaController) recordReload(err error) {
	if err != nil {
		s.metrics.RecordReload("error")
		s.logger.Error().Err(err).Msg("schema reload failed")
		return
	}
	s.metrics.RecordReload("ok")
}

// loadAll fetches every class schema (cache first, storage on miss), builds
// fresh view maps with defaults injected plus the volatile classes, and
// swaps them in.
func (s *SchemaController) loadAll(ctx context.Context) error {
	classes, ok := s.cache.GetAllClasses(ctx)
	s.metrics.RecordCache("all", ok)
	if !ok {
		start := time.Now()
		stored, err := s.storage.GetAllClasses(ctx)
		s.metrics.ObserveStorage("GetAllClasses", time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}
		classes = stored
		s.cache.SetAllClasses(ctx, classes)
	}

	data := make(map[string]map[string]fieldtype.Type, len(classes)+4)
	perms := make(map[string]clp.Permissions, len(classes)+4)
	for _, c := range classes {
		pub := class.WithDefaults(class.ToPublic(c))
		data[pub.Name] = pub.Fields
		perms[pub.Name] = pub.Permissions
	}

	// Volatile classes live only here; they are never persisted.
	for _, name := range class.VolatileClasses() {
		if _, exists := data[name]; exists {
			continue
		}
		v := class.WithDefaults(class.Class{Name: name})
		data[name] = v.Fields
		perms[name] = clp.Permissions{}
	}

	s.mu.Lock()
	for name, extras := range s.volatile {
		if data[name] == nil {
			continue
		}
		for fieldName, t := range extras {
			if _, ok := data[name][fieldName]; !ok {
				data[name][fieldName] = t
			}
		}
	}
	s.data = data
	s.perms = perms
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug().Int("classes", len(data)).Msg("schema view rebuilt")
	return nil
}

// ensureLoaded performs the first reload lazily.
func (s *SchemaController) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Reload(ctx, false)
}

// HasClass reports whether the class is known to the materialized view.
func (s *SchemaController) HasClass(ctx context.Context, className string) (bool, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[className]
	return ok, nil
}

// GetAllClasses returns every known class in the public representation.
// forceRefresh clears the cache and reloads first.
func (s *SchemaController) GetAllClasses(ctx context.Context, forceRefresh bool) ([]class.Class, error) {
	if forceRefresh {
		if err := s.Reload(ctx, true); err != nil {
			return nil, err
		}
	} else if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]class.Class, 0, len(names))
	for _, name := range names {
		out = append(out, s.classLocked(name))
	}
	return out, nil
}

// GetOneSchema returns one class schema in the public representation.
// Volatile classes are served from the view without touching storage when
// allowVolatile is set; otherwise they read as absent.
func (s *SchemaController) GetOneSchema(ctx context.Context, className string, allowVolatile bool) (class.Class, error) {
	if class.IsVolatile(className) {
		if !allowVolatile {
			return class.Class{}, serr.Newf(serr.InvalidClassName, "class %s does not exist", className)
		}
		if err := s.ensureLoaded(ctx); err != nil {
			return class.Class{}, err
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		if _, ok := s.data[className]; !ok {
			return class.Class{}, serr.Newf(serr.InvalidClassName, "class %s does not exist", className)
		}
		return s.classLocked(className), nil
	}

	if cached, ok := s.cache.GetOneSchema(ctx, className); ok {
		s.metrics.RecordCache("one", true)
		return class.WithDefaults(class.ToPublic(cached)), nil
	}
	s.metrics.RecordCache("one", false)

	start := time.Now()
	stored, found, err := s.storage.GetClass(ctx, className)
	s.metrics.ObserveStorage("GetClass", time.Since(start).Seconds())
	if err != nil {
		return class.Class{}, fmt.Errorf("load schema %s: %w", className, err)
	}
	if !found {
		return class.Class{}, serr.Newf(serr.InvalidClassName, "class %s does not exist", className)
	}
	s.cache.SetOneSchema(ctx, stored)
	return class.WithDefaults(class.ToPublic(stored)), nil
}

// classLocked assembles the public Class for a view entry. Callers hold mu.
func (s *SchemaController) classLocked(className string) class.Class {
	fields := make(map[string]fieldtype.Type, len(s.data[className]))
	for k, v := range s.data[className] {
		fields[k] = v
	}
	return class.Class{
		Name:        className,
		Fields:      fields,
		Permissions: s.perms[className].Clone(),
	}
}

// fieldType looks one field up in the view.
func (s *SchemaController) fieldType(className, fieldName string) (fieldtype.Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data[className][fieldName]
	return t, ok
}
