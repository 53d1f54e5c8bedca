package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schemagate/schemagate/domain/class"
	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/domain/names"
	"github.com/schemagate/schemagate/pkg/serr"
	"github.com/schemagate/schemagate/ports"
)

// Schema mutations never hold a lock across storage calls. A mutation that
// loses a race to a concurrent identical mutation is allowed to fail at the
// adapter, after which the controller force-reloads and treats "the desired
// state already holds" as success. One reload-and-recheck cycle; no
// indefinite retries.

// validateSubmittedFields runs the synchronous, side-effect-free checks on a
// submitted field set: legal names, no default-field collisions, well-formed
// type declarations, and at most one geo point across the class.
func validateSubmittedFields(className string, fields map[string]fieldtype.Type) error {
	geocount := 0
	for fieldName, t := range fields {
		if !names.ValidFieldName(fieldName) {
			return serr.Newf(serr.InvalidFieldName, "invalid field name %q", fieldName)
		}
		if !class.FieldAllowed(fieldName, className) {
			return serr.Newf(serr.FieldCannotBeAdded, "field %s cannot be added to %s", fieldName, className)
		}
		if err := fieldtype.ValidateDeclaration(fieldName, t); err != nil {
			return err
		}
		if t.Kind == fieldtype.GeoPoint {
			geocount++
		}
	}
	if geocount > 1 {
		return serr.Newf(serr.TooManyGeoPoints, "class %s can only have one GeoPoint field", className)
	}
	return nil
}

// CreateClassIfAbsent validates and persists a new class, returning it in
// the public representation. A storage-level duplicate-key failure means a
// concurrent caller won the creation race; it surfaces as ClassAlreadyExists
// rather than a generic failure.
func (s *SchemaController) CreateClassIfAbsent(ctx context.Context, className string, fields map[string]fieldtype.Type, perms clp.Permissions) (class.Class, error) {
	if !names.ValidClassName(className) {
		return class.Class{}, serr.Newf(serr.InvalidClassName, "invalid class name %q", className)
	}
	if err := validateSubmittedFields(className, fields); err != nil {
		return class.Class{}, err
	}

	submitted := class.WithDefaults(class.Class{Name: className, Fields: fields, Permissions: perms})
	if err := clp.Validate(perms, submitted.Fields); err != nil {
		return class.Class{}, err
	}

	if exists, err := s.HasClass(ctx, className); err != nil {
		return class.Class{}, err
	} else if exists {
		s.metrics.RecordClassCreate("exists")
		return class.Class{}, serr.Newf(serr.ClassAlreadyExists, "class %s already exists", className)
	}

	start := time.Now()
	created, err := s.storage.CreateClass(ctx, class.ToAdapter(submitted))
	s.metrics.ObserveStorage("CreateClass", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ports.ErrClassExists) {
			s.metrics.RecordCreationRace()
			return class.Class{}, serr.Newf(serr.ClassAlreadyExists, "class %s already exists", className)
		}
		s.metrics.RecordClassCreate("error")
		return class.Class{}, fmt.Errorf("create class %s: %w", className, err)
	}

	if err := s.Reload(ctx, true); err != nil {
		return class.Class{}, err
	}
	s.metrics.RecordClassCreate("ok")
	s.logger.Info().Str("class", className).Msg("class created")
	return class.WithDefaults(class.ToPublic(created)), nil
}

// EnsureClassExists makes the class exist, idempotently. The fast path is a
// view lookup. On a creation failure it force-reloads and rechecks: a
// concurrent caller may have created the class, and that counts as success.
// Only a class still absent after a fresh reload is a genuine failure.
func (s *SchemaController) EnsureClassExists(ctx context.Context, className string) error {
	if exists, err := s.HasClass(ctx, className); err != nil {
		return err
	} else if exists {
		return nil
	}

	_, createErr := s.CreateClassIfAbsent(ctx, className, nil, clp.Permissions{})
	if createErr == nil {
		return nil
	}

	if err := s.Reload(ctx, true); err != nil {
		return err
	}
	s.mu.RLock()
	_, ok := s.data[className]
	s.mu.RUnlock()
	if ok {
		return nil
	}
	return fmt.Errorf("ensure class %s: %w", className, createErr)
}

// EnsureFieldExists makes the field exist with the declared type,
// idempotently. Dotted names address into Object-typed fields and are
// normalized to their root. A nil declared type enforces nothing. A recorded
// type that disagrees with the declaration is a type mismatch carrying both
// sides; a failed add is absorbed by reload-and-recheck like class creation.
func (s *SchemaController) EnsureFieldExists(ctx context.Context, className, fieldName string, declared *fieldtype.Type) error {
	if root, _, dotted := strings.Cut(fieldName, "."); dotted {
		fieldName = root
		declared = &fieldtype.Type{Kind: fieldtype.Object}
	}
	if !names.ValidFieldName(fieldName) {
		return serr.Newf(serr.InvalidFieldName, "invalid field name %q", fieldName)
	}
	if declared == nil {
		return nil
	}

	// Volatile classes have no storage rows; their fields are recorded in
	// the view only.
	if class.IsVolatile(className) {
		return s.ensureVolatileField(ctx, className, fieldName, *declared)
	}

	if err := s.Reload(ctx, false); err != nil {
		return err
	}

	if existing, ok := s.fieldType(className, fieldName); ok {
		if !fieldtype.Compatible(existing, *declared) {
			s.metrics.RecordFieldAdd("mismatch")
			return typeMismatch(className, fieldName, existing, *declared)
		}
		return nil
	}

	start := time.Now()
	addErr := s.storage.AddFieldIfNotExists(ctx, className, fieldName, *declared)
	s.metrics.ObserveStorage("AddFieldIfNotExists", time.Since(start).Seconds())

	if err := s.Reload(ctx, true); err != nil {
		return err
	}
	existing, ok := s.fieldType(className, fieldName)
	if !ok {
		s.metrics.RecordFieldAdd("error")
		if addErr != nil {
			return fmt.Errorf("ensure field %s.%s: %w", className, fieldName, addErr)
		}
		return fmt.Errorf("ensure field %s.%s: field absent after reload", className, fieldName)
	}
	if !fieldtype.Compatible(existing, *declared) {
		// A concurrent writer recorded the field with a different type.
		s.metrics.RecordFieldAdd("mismatch")
		return typeMismatch(className, fieldName, existing, *declared)
	}
	s.metrics.RecordFieldAdd("ok")
	return nil
}

// ensureVolatileField records a field on a volatile class, in memory only.
// The record also goes into the volatile field set so it survives rebuilds.
func (s *SchemaController) ensureVolatileField(ctx context.Context, className, fieldName string, declared fieldtype.Type) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[className][fieldName]; ok {
		if !fieldtype.Compatible(existing, declared) {
			s.metrics.RecordFieldAdd("mismatch")
			return typeMismatch(className, fieldName, existing, declared)
		}
		return nil
	}

	if s.volatile[className] == nil {
		s.volatile[className] = map[string]fieldtype.Type{}
	}
	s.volatile[className][fieldName] = declared

	// View maps are swapped, never mutated in place.
	fields := make(map[string]fieldtype.Type, len(s.data[className])+1)
	for k, v := range s.data[className] {
		fields[k] = v
	}
	fields[fieldName] = declared
	s.data[className] = fields
	s.metrics.RecordFieldAdd("ok")
	return nil
}

func typeMismatch(className, fieldName string, expected, actual fieldtype.Type) error {
	return serr.Newf(serr.IncorrectType,
		"schema mismatch for %s.%s; expected %s but got %s",
		className, fieldName, expected, actual)
}

// DeleteField removes one field from a class, refusing default and system
// fields. Relation fields additionally drop their join collection. The
// check runs against a storage-confirmed schema, not the possibly stale view.
func (s *SchemaController) DeleteField(ctx context.Context, fieldName, className string) error {
	if !names.ValidClassName(className) {
		return serr.Newf(serr.InvalidClassName, "invalid class name %q", className)
	}
	if !names.ValidFieldName(fieldName) {
		return serr.Newf(serr.InvalidFieldName, "invalid field name %q", fieldName)
	}
	if !class.FieldAllowed(fieldName, className) {
		return serr.Newf(serr.FieldCannotBeAdded, "field %s cannot be changed on %s", fieldName, className)
	}

	if err := s.Reload(ctx, true); err != nil {
		return err
	}
	s.mu.RLock()
	fields, classKnown := s.data[className]
	t, fieldKnown := fields[fieldName]
	s.mu.RUnlock()
	if !classKnown {
		return serr.Newf(serr.InvalidClassName, "class %s does not exist", className)
	}
	if !fieldKnown {
		return serr.Newf(serr.FieldDoesNotExist, "field %s does not exist on %s", fieldName, className)
	}

	stored, found, err := s.storage.GetClass(ctx, className)
	if err != nil {
		return fmt.Errorf("load schema %s: %w", className, err)
	}
	if !found {
		return serr.Newf(serr.InvalidClassName, "class %s does not exist", className)
	}

	if t.Kind == fieldtype.Relation {
		if err := s.storage.DeleteClass(ctx, names.JoinTableName(fieldName, className)); err != nil {
			return fmt.Errorf("drop join collection for %s.%s: %w", className, fieldName, err)
		}
	}

	start := time.Now()
	err = s.storage.DeleteFields(ctx, className, stored, []string{fieldName})
	s.metrics.ObserveStorage("DeleteFields", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("delete field %s.%s: %w", className, fieldName, err)
	}

	if err := s.Reload(ctx, true); err != nil {
		return err
	}
	s.metrics.RecordFieldDelete()
	s.logger.Info().Str("class", className).Str("field", fieldName).Msg("field deleted")
	return nil
}

// DeleteClass removes a whole class schema. Volatile classes are in-memory
// only and cannot be deleted.
func (s *SchemaController) DeleteClass(ctx context.Context, className string) error {
	if !names.ValidClassName(className) {
		return serr.Newf(serr.InvalidClassName, "invalid class name %q", className)
	}
	if class.IsVolatile(className) {
		return serr.Newf(serr.OperationForbidden, "class %s cannot be deleted", className)
	}

	start := time.Now()
	err := s.storage.DeleteClass(ctx, className)
	s.metrics.ObserveStorage("DeleteClass", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("delete class %s: %w", className, err)
	}
	return s.Reload(ctx, true)
}

// UpdateClass applies a batch of field additions, field deletions (nil
// entries in submitted), and a CLP replacement. Deletions execute first,
// followed by a forced reload, so the existence check for additions runs
// against a storage-confirmed post-deletion state.
func (s *SchemaController) UpdateClass(ctx context.Context, className string, submitted map[string]*fieldtype.Type, perms *clp.Permissions) (class.Class, error) {
	existing, err := s.GetOneSchema(ctx, className, false)
	if err != nil {
		return class.Class{}, err
	}

	var deletions []string
	additions := map[string]fieldtype.Type{}
	for fieldName, t := range submitted {
		_, present := existing.Fields[fieldName]
		if t == nil {
			if !present {
				return class.Class{}, serr.Newf(serr.FieldDoesNotExist,
					"field %s does not exist on %s, cannot delete", fieldName, className)
			}
			deletions = append(deletions, fieldName)
			continue
		}
		if present {
			return class.Class{}, serr.Newf(serr.FieldAlreadyExists,
				"field %s already exists on %s", fieldName, className)
		}
		additions[fieldName] = *t
	}

	// Merge and re-validate the end state before touching storage. System
	// fields never participate in the merge; defaults re-inject them.
	merged := map[string]fieldtype.Type{}
	for fieldName, t := range existing.Fields {
		if _, reserved := class.DefaultFields(className)[fieldName]; reserved {
			continue
		}
		merged[fieldName] = t
	}
	for _, fieldName := range deletions {
		delete(merged, fieldName)
	}
	for fieldName, t := range additions {
		merged[fieldName] = t
	}
	if err := validateSubmittedFields(className, merged); err != nil {
		return class.Class{}, err
	}
	fullFields := class.WithDefaults(class.Class{Name: className, Fields: merged}).Fields
	if perms != nil {
		if err := clp.Validate(*perms, fullFields); err != nil {
			return class.Class{}, err
		}
	}

	for _, fieldName := range deletions {
		if err := s.DeleteField(ctx, fieldName, className); err != nil {
			return class.Class{}, err
		}
	}
	if err := s.Reload(ctx, true); err != nil {
		return class.Class{}, err
	}
	for fieldName, t := range additions {
		t := t
		if err := s.EnsureFieldExists(ctx, className, fieldName, &t); err != nil {
			return class.Class{}, err
		}
	}
	if perms != nil {
		start := time.Now()
		err := s.storage.SetClassPermissions(ctx, className, *perms)
		s.metrics.ObserveStorage("SetClassPermissions", time.Since(start).Seconds())
		if err != nil {
			return class.Class{}, fmt.Errorf("set permissions on %s: %w", className, err)
		}
	}
	if err := s.Reload(ctx, true); err != nil {
		return class.Class{}, err
	}
	return s.GetOneSchema(ctx, className, true)
}
