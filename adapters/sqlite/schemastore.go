package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/schemagate/schemagate/domain/class"
	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/ports"
)

// SchemaStore implements ports.StorageAdapter using SQLite. Field maps and
// CLPs are stored as JSON in the schema_classes table; object rows live in
// the shared objects table so field deletion can scrub their data.
type SchemaStore struct {
	db *DB
}

// NewSchemaStore creates a SQLite schema store.
func NewSchemaStore(db *DB) *SchemaStore {
	return &SchemaStore{db: db}
}

// GetAllClasses returns every persisted class schema.
func (s *SchemaStore) GetAllClasses(ctx context.Context) ([]class.Class, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_name, fields, clp FROM schema_classes
	`)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	var classes []class.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// GetClass returns one class schema.
func (s *SchemaStore) GetClass(ctx context.Context, name string) (class.Class, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT class_name, fields, clp FROM schema_classes WHERE class_name = ?
	`, name)

	c, err := scanClass(row)
	if err == sql.ErrNoRows {
		return class.Class{}, false, nil
	}
	if err != nil {
		return class.Class{}, false, err
	}
	return c, true, nil
}

// CreateClass persists a new class. A primary-key violation means a
// concurrent caller created it first; that surfaces as ports.ErrClassExists.
func (s *SchemaStore) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	fields, err := json.Marshal(c.Fields)
	if err != nil {
		return class.Class{}, fmt.Errorf("marshal fields: %w", err)
	}
	perms, err := json.Marshal(c.Permissions)
	if err != nil {
		return class.Class{}, fmt.Errorf("marshal clp: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schema_classes (class_name, fields, clp) VALUES (?, ?, ?)
	`, c.Name, string(fields), string(perms))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return class.Class{}, ports.ErrClassExists
		}
		return class.Class{}, fmt.Errorf("insert schema %s: %w", c.Name, err)
	}
	return c, nil
}

// AddFieldIfNotExists records a field inside a transaction; recording an
// already-present field is a no-op.
func (s *SchemaStore) AddFieldIfNotExists(ctx context.Context, className, fieldName string, t fieldtype.Type) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT fields FROM schema_classes WHERE class_name = ?
	`, className).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("class %s does not exist", className)
	}
	if err != nil {
		return fmt.Errorf("load schema %s: %w", className, err)
	}

	fields := map[string]fieldtype.Type{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fmt.Errorf("decode fields for %s: %w", className, err)
	}
	if _, ok := fields[fieldName]; ok {
		return nil
	}
	fields[fieldName] = t

	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE schema_classes SET fields = ?, updated_at = CURRENT_TIMESTAMP WHERE class_name = ?
	`, string(encoded), className); err != nil {
		return fmt.Errorf("update schema %s: %w", className, err)
	}
	return tx.Commit()
}

// DeleteFields removes field records and scrubs the deleted keys out of the
// stored object rows of the class.
func (s *SchemaStore) DeleteFields(ctx context.Context, className string, c class.Class, fieldNames []string) error {
	if len(fieldNames) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT fields FROM schema_classes WHERE class_name = ?
	`, className).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("class %s does not exist", className)
	}
	if err != nil {
		return fmt.Errorf("load schema %s: %w", className, err)
	}

	fields := map[string]fieldtype.Type{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fmt.Errorf("decode fields for %s: %w", className, err)
	}
	for _, name := range fieldNames {
		delete(fields, name)
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE schema_classes SET fields = ?, updated_at = CURRENT_TIMESTAMP WHERE class_name = ?
	`, string(encoded), className); err != nil {
		return fmt.Errorf("update schema %s: %w", className, err)
	}

	// Drop the deleted keys from stored objects so reads never resurrect
	// data the schema no longer describes.
	for _, name := range fieldNames {
		if _, err := tx.ExecContext(ctx, `
			UPDATE objects SET data = json_remove(data, ?) WHERE class_name = ?
		`, "$."+name, className); err != nil {
			return fmt.Errorf("scrub field %s.%s: %w", className, name, err)
		}
	}
	return tx.Commit()
}

// DeleteClass removes a class schema and its object rows. Absent classes are
// a no-op; join collections are deleted through this same path.
func (s *SchemaStore) DeleteClass(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_classes WHERE class_name = ?`, name); err != nil {
		return fmt.Errorf("delete schema %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE class_name = ?`, name); err != nil {
		return fmt.Errorf("delete objects %s: %w", name, err)
	}
	return tx.Commit()
}

// SetClassPermissions replaces the CLP of a class.
func (s *SchemaStore) SetClassPermissions(ctx context.Context, className string, perms clp.Permissions) error {
	encoded, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("marshal clp: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE schema_classes SET clp = ?, updated_at = CURRENT_TIMESTAMP WHERE class_name = ?
	`, string(encoded), className)
	if err != nil {
		return fmt.Errorf("update clp %s: %w", className, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(row rowScanner) (class.Class, error) {
	var c class.Class
	var fields, perms string
	if err := row.Scan(&c.Name, &fields, &perms); err != nil {
		return class.Class{}, err
	}
	if err := json.Unmarshal([]byte(fields), &c.Fields); err != nil {
		return class.Class{}, fmt.Errorf("decode fields for %s: %w", c.Name, err)
	}
	if err := json.Unmarshal([]byte(perms), &c.Permissions); err != nil {
		return class.Class{}, fmt.Errorf("decode clp for %s: %w", c.Name, err)
	}
	return c, nil
}

// Ensure interface compliance.
var _ ports.StorageAdapter = (*SchemaStore)(nil)
