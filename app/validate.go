package app

import (
	"context"
	"strconv"
	"strings"

	"github.com/schemagate/schemagate/domain/class"
	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/pkg/serr"
)

// ValidateObject checks an object write against the live schema, creating
// the class lazily when it does not exist yet. Every field in the object is
// enforced into the schema before any geo-point rejection is surfaced, so
// the materialized view stays consistent even when the write is rejected.
//
// existingID is the object id of the row being updated, or empty on create.
// It changes how required fields are judged: an update only violates a
// required column by deleting it, while a create must supply a non-falsy
// value for each.
func (s *SchemaController) ValidateObject(ctx context.Context, className string, object map[string]any, existingID string) error {
	if err := s.EnsureClassExists(ctx, className); err != nil {
		return err
	}

	s.mu.RLock()
	geocount := 0
	schemaGeo := map[string]bool{}
	for fieldName, t := range s.data[className] {
		if t.Kind == fieldtype.GeoPoint {
			geocount++
			schemaGeo[fieldName] = true
		}
	}
	s.mu.RUnlock()

	var enforceErr error
	for fieldName, value := range object {
		// The ACL is implicit on every class.
		if fieldName == "ACL" {
			continue
		}
		expected, err := fieldtype.Classify(value)
		if err != nil {
			s.recordValidationError(err)
			return err
		}
		if expected != nil && expected.Kind == fieldtype.GeoPoint && !schemaGeo[strings.Split(fieldName, ".")[0]] {
			geocount++
		}
		// expected == nil is a Delete operator; EnsureFieldExists treats a
		// nil type as nothing to enforce.
		if err := s.EnsureFieldExists(ctx, className, fieldName, expected); err != nil && enforceErr == nil {
			enforceErr = err
		}
	}
	if geocount > 1 {
		err := serr.Newf(serr.TooManyGeoPoints, "there can only be one geopoint field in a class, found %d on %s", geocount, className)
		s.recordValidationError(err)
		return err
	}
	if enforceErr != nil {
		s.recordValidationError(enforceErr)
		return enforceErr
	}

	return s.validateRequiredColumns(className, object, existingID)
}

// validateRequiredColumns applies the contextual required-field rule.
func (s *SchemaController) validateRequiredColumns(className string, object map[string]any, existingID string) error {
	for _, column := range class.RequiredFields(className) {
		value, present := object[column]
		if existingID != "" {
			// Updates only violate a required column by deleting it.
			if present && isDeleteOperator(value) {
				err := serr.Newf(serr.RequiredFieldMissing, "%s is required on %s", column, className)
				s.recordValidationError(err)
				return err
			}
			continue
		}
		if !present || isFalsy(value) {
			err := serr.Newf(serr.RequiredFieldMissing, "%s is required on %s", column, className)
			s.recordValidationError(err)
			return err
		}
	}
	return nil
}

func isDeleteOperator(value any) bool {
	obj, ok := value.(map[string]any)
	if !ok {
		return false
	}
	op, _ := obj["__op"].(string)
	return op == "Delete"
}

// isFalsy mirrors the loose emptiness rule of the public API: nil, false,
// empty string, and numeric zero all fail a required-column check.
func isFalsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case float64:
		return v == 0
	case int:
		return v == 0
	default:
		return false
	}
}

// CheckPermission authorizes an operation on a class for the caller's
// access group against the live CLP view. A deferred decision returns nil;
// the query/write layer owns the row-level ownership filtering it implies.
func (s *SchemaController) CheckPermission(ctx context.Context, className string, accessGroup []string, operation string) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	perms := s.perms[className]
	s.mu.RUnlock()

	if err := clp.Authorize(perms, operation, accessGroup); err != nil {
		s.metrics.RecordPermissionDenial(operation)
		return err
	}
	return nil
}

// PermissionDecision exposes the three-state outcome of the CLP check so
// callers can apply row-level filtering on deferral.
func (s *SchemaController) PermissionDecision(ctx context.Context, className string, accessGroup []string, operation string) (clp.Decision, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return clp.Forbidden, err
	}
	s.mu.RLock()
	perms := s.perms[className]
	s.mu.RUnlock()
	return clp.Decide(perms, operation, accessGroup), nil
}

func (s *SchemaController) recordValidationError(err error) {
	s.metrics.RecordValidationError(strconv.Itoa(serr.CodeOf(err)))
}
