package app_test

import (
	"context"
	"testing"

	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/pkg/serr"
)

func TestValidateObjectCreatesSchemaLazily(t *testing.T) {
	ctrl, storage, _ := newController(t)
	ctx := context.Background()

	err := ctrl.ValidateObject(ctx, "Game", map[string]any{
		"score": 42.0,
		"title": "first",
		"ACL":   map[string]any{"*": map[string]any{"read": true}},
	}, "")
	if err != nil {
		t.Fatalf("ValidateObject: %v", err)
	}

	if _, found, _ := storage.GetClass(ctx, "Game"); !found {
		t.Fatal("class not created lazily")
	}
	c, err := ctrl.GetOneSchema(ctx, "Game", false)
	if err != nil {
		t.Fatalf("GetOneSchema: %v", err)
	}
	if c.Fields["score"].Kind != fieldtype.Number {
		t.Errorf("score = %v", c.Fields["score"])
	}
	if c.Fields["title"].Kind != fieldtype.String {
		t.Errorf("title = %v", c.Fields["title"])
	}
	if _, ok := c.Fields["ACL"]; !ok {
		t.Error("ACL default missing")
	}
}

// TestValidateObjectTypeMismatch follows a class through first contact and a
// later conflicting write: score is inferred as Number, so a string score on
// the next object is rejected while the schema keeps the original type.
func TestValidateObjectTypeMismatch(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	if err := ctrl.ValidateObject(ctx, "Game", map[string]any{"score": 10.0}, ""); err != nil {
		t.Fatalf("first write: %v", err)
	}

	err := ctrl.ValidateObject(ctx, "Game", map[string]any{"score": "ten"}, "")
	if serr.CodeOf(err) != serr.IncorrectType {
		t.Fatalf("conflicting write error = %v", err)
	}

	c, _ := ctrl.GetOneSchema(ctx, "Game", false)
	if c.Fields["score"].Kind != fieldtype.Number {
		t.Errorf("score = %v after rejected write", c.Fields["score"])
	}
}

func TestValidateObjectOperators(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	if err := ctrl.ValidateObject(ctx, "Game", map[string]any{
		"score": map[string]any{"__op": "Increment", "amount": 1},
		"tags":  map[string]any{"__op": "Add", "objects": []any{"fun"}},
		"gone":  map[string]any{"__op": "Delete"},
	}, ""); err != nil {
		t.Fatalf("ValidateObject: %v", err)
	}

	c, _ := ctrl.GetOneSchema(ctx, "Game", false)
	if c.Fields["score"].Kind != fieldtype.Number {
		t.Errorf("score = %v", c.Fields["score"])
	}
	if c.Fields["tags"].Kind != fieldtype.Array {
		t.Errorf("tags = %v", c.Fields["tags"])
	}
	if _, ok := c.Fields["gone"]; ok {
		t.Error("Delete operator created a field")
	}
}

func TestValidateObjectGeoPointCap(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	geo := func() map[string]any {
		return map[string]any{"__type": "GeoPoint", "latitude": 1.0, "longitude": 2.0}
	}

	err := ctrl.ValidateObject(ctx, "Game", map[string]any{
		"here":  geo(),
		"there": geo(),
	}, "")
	if serr.CodeOf(err) != serr.TooManyGeoPoints {
		t.Fatalf("two geo points error = %v", err)
	}

	// One is fine; a second on a later write still trips the cap against the
	// recorded schema field.
	if err := ctrl.ValidateObject(ctx, "Spot", map[string]any{"loc": geo()}, ""); err != nil {
		t.Fatalf("single geo point: %v", err)
	}
	err = ctrl.ValidateObject(ctx, "Spot", map[string]any{"other": geo()}, "")
	if serr.CodeOf(err) != serr.TooManyGeoPoints {
		t.Errorf("second geo point error = %v", err)
	}
}

func TestValidateRequiredColumns(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		object     map[string]any
		existingID string
		wantCode   int
	}{
		{
			name:   "create with required fields",
			object: map[string]any{"username": "ada", "password": "s3cret"},
		},
		{
			name:     "create missing username",
			object:   map[string]any{"password": "s3cret"},
			wantCode: serr.RequiredFieldMissing,
		},
		{
			name:     "create with empty username",
			object:   map[string]any{"username": "", "password": "s3cret"},
			wantCode: serr.RequiredFieldMissing,
		},
		{
			name:       "update without required fields",
			object:     map[string]any{"email": "ada@example.com"},
			existingID: "abc123defg",
		},
		{
			name:       "update deleting a required field",
			object:     map[string]any{"username": map[string]any{"__op": "Delete"}},
			existingID: "abc123defg",
			wantCode:   serr.RequiredFieldMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ctrl.ValidateObject(ctx, "_User", tt.object, tt.existingID)
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("ValidateObject: %v", err)
				}
				return
			}
			if serr.CodeOf(err) != tt.wantCode {
				t.Errorf("error = %v, want code %d", err, tt.wantCode)
			}
		})
	}
}

// TestValidateObjectVolatileClassStaysInMemory: volatile classes gain fields
// in the view only; the storage adapter never sees a row for them.
func TestValidateObjectVolatileClassStaysInMemory(t *testing.T) {
	ctrl, storage, _ := newController(t)
	ctx := context.Background()

	if err := ctrl.ValidateObject(ctx, "_GlobalConfig", map[string]any{"custom": "x"}, ""); err != nil {
		t.Fatalf("ValidateObject: %v", err)
	}

	if _, found, _ := storage.GetClass(ctx, "_GlobalConfig"); found {
		t.Fatal("volatile class persisted to storage")
	}
	if all, err := storage.GetAllClasses(ctx); err != nil || len(all) != 0 {
		t.Errorf("storage classes = %v, %v", all, err)
	}

	c, err := ctrl.GetOneSchema(ctx, "_GlobalConfig", true)
	if err != nil {
		t.Fatalf("GetOneSchema: %v", err)
	}
	if c.Fields["custom"].Kind != fieldtype.String {
		t.Errorf("custom = %v", c.Fields["custom"])
	}

	// The recorded field survives a forced rebuild.
	if err := ctrl.Reload(ctx, true); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	c, _ = ctrl.GetOneSchema(ctx, "_GlobalConfig", true)
	if c.Fields["custom"].Kind != fieldtype.String {
		t.Errorf("custom = %v after reload", c.Fields["custom"])
	}

	// Conflicting types on volatile fields are rejected like any other.
	err = ctrl.ValidateObject(ctx, "_GlobalConfig", map[string]any{"custom": 7.0}, "")
	if serr.CodeOf(err) != serr.IncorrectType {
		t.Errorf("conflicting volatile write = %v", err)
	}
}

// TestPermissionScenario runs the standing example: Game readable by anyone,
// writable only by admins.
func TestPermissionScenario(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	mustCreate(t, ctrl, "Game", map[string]fieldtype.Type{
		"score": {Kind: fieldtype.Number},
	}, clp.Permissions{
		Operations: map[string]map[string]bool{
			"find":   {"*": true},
			"get":    {"*": true},
			"create": {"role:admin": true},
			"update": {"role:admin": true},
			"delete": {"role:admin": true},
		},
	})

	if err := ctrl.CheckPermission(ctx, "Game", nil, "find"); err != nil {
		t.Errorf("anonymous find: %v", err)
	}
	err := ctrl.CheckPermission(ctx, "Game", nil, "create")
	if serr.CodeOf(err) != serr.OperationForbidden {
		t.Errorf("anonymous create = %v", err)
	}
	if err := ctrl.CheckPermission(ctx, "Game", []string{"role:admin"}, "create"); err != nil {
		t.Errorf("admin create: %v", err)
	}
	err = ctrl.CheckPermission(ctx, "Game", []string{"abc123defg", "role:member"}, "update")
	if serr.CodeOf(err) != serr.OperationForbidden {
		t.Errorf("member update = %v", err)
	}
}

func TestPermissionDecisionDeferred(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()

	mustCreate(t, ctrl, "Note", map[string]fieldtype.Type{
		"owner": {Kind: fieldtype.Pointer, TargetClass: "_User"},
	}, clp.Permissions{
		Operations: map[string]map[string]bool{
			"get":    {"role:admin": true},
			"update": {"role:admin": true},
		},
		ReadUserFields:  []string{"owner"},
		WriteUserFields: []string{"owner"},
	})

	d, err := ctrl.PermissionDecision(ctx, "Note", nil, "get")
	if err != nil || d != clp.Deferred {
		t.Errorf("get decision = %v, %v", d, err)
	}
	// Deferred reads pass the coarse check.
	if err := ctrl.CheckPermission(ctx, "Note", nil, "get"); err != nil {
		t.Errorf("deferred get: %v", err)
	}
	d, err = ctrl.PermissionDecision(ctx, "Note", []string{"role:admin"}, "update")
	if err != nil || d != clp.Allowed {
		t.Errorf("admin update decision = %v, %v", d, err)
	}
}

func TestCheckPermissionUnknownClassUnrestricted(t *testing.T) {
	ctrl, _, _ := newController(t)

	// No CLP recorded means no restriction.
	if err := ctrl.CheckPermission(context.Background(), "Fresh", nil, "find"); err != nil {
		t.Errorf("CheckPermission: %v", err)
	}
}
