// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/schemagate/schemagate/domain/class"
	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	// New generates a request-scoped identifier.
	New() string
	// ObjectID generates a 10-character alphanumeric object id. The CLP
	// key grammar depends on this alphabet and length.
	ObjectID() string
}

// Hasher hashes and verifies secrets.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Schema Ports
// -----------------------------------------------------------------------------

// ErrClassExists is the duplicate-key flagged failure returned by
// StorageAdapter.CreateClass when a concurrent caller won the creation race.
var ErrClassExists = errors.New("class already exists")

// StorageAdapter persists schema metadata, plus the data mutations that must
// accompany field deletion. Schemas cross this boundary in the adapter
// representation.
type StorageAdapter interface {
	// GetAllClasses returns every persisted class schema.
	GetAllClasses(ctx context.Context) ([]class.Class, error)

	// GetClass returns one class schema, reporting whether it exists.
	GetClass(ctx context.Context, name string) (class.Class, bool, error)

	// CreateClass persists a new class and returns it as stored. A lost
	// creation race surfaces as ErrClassExists.
	CreateClass(ctx context.Context, c class.Class) (class.Class, error)

	// AddFieldIfNotExists records a field on an existing class. Adding a
	// field that is already recorded is a no-op.
	AddFieldIfNotExists(ctx context.Context, className, fieldName string, t fieldtype.Type) error

	// DeleteFields removes field records and the object data stored under
	// them. The class schema passed in is the storage-confirmed current one.
	DeleteFields(ctx context.Context, className string, c class.Class, fieldNames []string) error

	// DeleteClass removes a class schema and its backing collection.
	// Deleting an absent class is a no-op.
	DeleteClass(ctx context.Context, name string) error

	// SetClassPermissions replaces the CLP of a class.
	SetClassPermissions(ctx context.Context, className string, perms clp.Permissions) error
}

// SchemaCache stores schema snapshots with a bounded lifetime. It is a pure
// performance optimization: a miss is an absent result, never an error, and
// staleness must never change behavior, only cost.
type SchemaCache interface {
	GetAllClasses(ctx context.Context) ([]class.Class, bool)
	GetOneSchema(ctx context.Context, name string) (class.Class, bool)
	SetAllClasses(ctx context.Context, classes []class.Class)
	SetOneSchema(ctx context.Context, c class.Class)
	Clear(ctx context.Context)
}
