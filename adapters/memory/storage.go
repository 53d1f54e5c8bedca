package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/schemagate/schemagate/domain/class"
	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/ports"
)

// Storage is an in-memory implementation of ports.StorageAdapter.
type Storage struct {
	mu      sync.Mutex
	classes map[string]class.Class

	// failNextCreates makes the next n CreateClass calls fail with
	// ErrClassExists without persisting, for race-path tests.
	failNextCreates int
}

// NewStorage creates an empty in-memory storage adapter.
func NewStorage() *Storage {
	return &Storage{classes: make(map[string]class.Class)}
}

// FailNextCreates arms the adapter to reject the next n creations as
// duplicate-key failures.
func (s *Storage) FailNextCreates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextCreates = n
}

// GetAllClasses returns every stored class.
func (s *Storage) GetAllClasses(ctx context.Context) ([]class.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]class.Class, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c.Clone())
	}
	return out, nil
}

// GetClass returns one stored class.
func (s *Storage) GetClass(ctx context.Context, name string) (class.Class, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.classes[name]
	if !ok {
		return class.Class{}, false, nil
	}
	return c.Clone(), true, nil
}

// CreateClass stores a new class, failing with ErrClassExists on duplicates.
func (s *Storage) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNextCreates > 0 {
		s.failNextCreates--
		return class.Class{}, ports.ErrClassExists
	}
	if _, ok := s.classes[c.Name]; ok {
		return class.Class{}, ports.ErrClassExists
	}
	s.classes[c.Name] = c.Clone()
	return c.Clone(), nil
}

// AddFieldIfNotExists records a field on an existing class; a no-op when
// already recorded.
func (s *Storage) AddFieldIfNotExists(ctx context.Context, className, fieldName string, t fieldtype.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.classes[className]
	if !ok {
		return fmt.Errorf("class %s does not exist", className)
	}
	if _, exists := c.Fields[fieldName]; exists {
		return nil
	}
	cc := c.Clone()
	if cc.Fields == nil {
		cc.Fields = map[string]fieldtype.Type{}
	}
	cc.Fields[fieldName] = t
	s.classes[className] = cc
	return nil
}

// DeleteFields removes field records from a class.
func (s *Storage) DeleteFields(ctx context.Context, className string, c class.Class, fieldNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.classes[className]
	if !ok {
		return nil
	}
	cc := stored.Clone()
	for _, name := range fieldNames {
		delete(cc.Fields, name)
	}
	s.classes[className] = cc
	return nil
}

// DeleteClass removes a class; a no-op when absent.
func (s *Storage) DeleteClass(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.classes, name)
	return nil
}

// SetClassPermissions replaces a class's CLP.
func (s *Storage) SetClassPermissions(ctx context.Context, className string, perms clp.Permissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.classes[className]
	if !ok {
		return nil
	}
	cc := c.Clone()
	cc.Permissions = perms.Clone()
	s.classes[className] = cc
	return nil
}

// Ensure interface compliance.
var _ ports.StorageAdapter = (*Storage)(nil)
