package fieldtype_test

import (
	"testing"

	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/pkg/serr"
)

func TestClassifyScalars(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  fieldtype.Kind
	}{
		{"bool", true, fieldtype.Boolean},
		{"string", "hello", fieldtype.String},
		{"float", 3.5, fieldtype.Number},
		{"int", 7, fieldtype.Number},
		{"array", []any{1, 2}, fieldtype.Array},
		{"plain object", map[string]any{"a": 1}, fieldtype.Object},
		{"null", nil, fieldtype.Object},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fieldtype.Classify(tt.value)
			if err != nil {
				t.Fatalf("Classify(%v) error: %v", tt.value, err)
			}
			if got == nil || got.Kind != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestClassifyTaggedObjects(t *testing.T) {
	tests := []struct {
		name        string
		value       map[string]any
		want        fieldtype.Type
		wantErr     bool
		wantErrCode int
	}{
		{
			name:  "pointer",
			value: map[string]any{"__type": "Pointer", "className": "_User", "objectId": "abc123defg"},
			want:  fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "_User"},
		},
		{
			name:        "pointer without class",
			value:       map[string]any{"__type": "Pointer", "objectId": "abc123defg"},
			wantErr:     true,
			wantErrCode: serr.InvalidJSON,
		},
		{
			name:  "geopoint",
			value: map[string]any{"__type": "GeoPoint", "latitude": 40.0, "longitude": -30.0},
			want:  fieldtype.Type{Kind: fieldtype.GeoPoint},
		},
		{
			name:        "geopoint with string coords",
			value:       map[string]any{"__type": "GeoPoint", "latitude": "40", "longitude": -30.0},
			wantErr:     true,
			wantErrCode: serr.InvalidJSON,
		},
		{
			name:  "date",
			value: map[string]any{"__type": "Date", "iso": "2024-01-15T12:00:00.000Z"},
			want:  fieldtype.Type{Kind: fieldtype.Date},
		},
		{
			name:  "file",
			value: map[string]any{"__type": "File", "name": "pic.png"},
			want:  fieldtype.Type{Kind: fieldtype.File},
		},
		{
			name:  "bytes",
			value: map[string]any{"__type": "Bytes", "base64": "aGVsbG8="},
			want:  fieldtype.Type{Kind: fieldtype.Bytes},
		},
		{
			name:        "unknown tag",
			value:       map[string]any{"__type": "Money", "amount": 3},
			wantErr:     true,
			wantErrCode: serr.InvalidJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fieldtype.Classify(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Classify(%v) succeeded, want error", tt.value)
				}
				if code := serr.CodeOf(err); code != tt.wantErrCode {
					t.Errorf("error code = %d, want %d", code, tt.wantErrCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify(%v) error: %v", tt.value, err)
			}
			if got == nil || *got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestClassifyOperators(t *testing.T) {
	tests := []struct {
		name  string
		value map[string]any
		want  *fieldtype.Type
	}{
		{
			name:  "increment",
			value: map[string]any{"__op": "Increment", "amount": 1},
			want:  &fieldtype.Type{Kind: fieldtype.Number},
		},
		{
			name:  "add",
			value: map[string]any{"__op": "Add", "objects": []any{"a"}},
			want:  &fieldtype.Type{Kind: fieldtype.Array},
		},
		{
			name:  "add unique",
			value: map[string]any{"__op": "AddUnique", "objects": []any{"a"}},
			want:  &fieldtype.Type{Kind: fieldtype.Array},
		},
		{
			name:  "remove",
			value: map[string]any{"__op": "Remove", "objects": []any{"a"}},
			want:  &fieldtype.Type{Kind: fieldtype.Array},
		},
		{
			name: "add relation",
			value: map[string]any{"__op": "AddRelation", "objects": []any{
				map[string]any{"__type": "Pointer", "className": "Player", "objectId": "abc123defg"},
			}},
			want: &fieldtype.Type{Kind: fieldtype.Relation, TargetClass: "Player"},
		},
		{
			name:  "delete resolves to no type",
			value: map[string]any{"__op": "Delete"},
			want:  nil,
		},
		{
			name: "batch resolves through first op",
			value: map[string]any{"__op": "Batch", "ops": []any{
				map[string]any{"__op": "Increment", "amount": 2},
				map[string]any{"__op": "Increment", "amount": 3},
			}},
			want: &fieldtype.Type{Kind: fieldtype.Number},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fieldtype.Classify(tt.value)
			if err != nil {
				t.Fatalf("Classify error: %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("Classify = %v, want nil (delete)", got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyUnknownOperator(t *testing.T) {
	_, err := fieldtype.Classify(map[string]any{"__op": "Explode"})
	if err == nil {
		t.Fatal("Classify succeeded for unknown operator")
	}
	if code := serr.CodeOf(err); code != serr.IncorrectType {
		t.Errorf("error code = %d, want %d", code, serr.IncorrectType)
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		name     string
		expected fieldtype.Type
		actual   fieldtype.Type
		want     bool
	}{
		{"same scalar", fieldtype.Type{Kind: fieldtype.Number}, fieldtype.Type{Kind: fieldtype.Number}, true},
		{"different scalar", fieldtype.Type{Kind: fieldtype.Number}, fieldtype.Type{Kind: fieldtype.String}, false},
		{
			"same pointer",
			fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "_User"},
			fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "_User"},
			true,
		},
		{
			"pointer to different class",
			fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "_User"},
			fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "Player"},
			false,
		},
		{
			"pointer vs relation",
			fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "_User"},
			fieldtype.Type{Kind: fieldtype.Relation, TargetClass: "_User"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fieldtype.Compatible(tt.expected, tt.actual); got != tt.want {
				t.Errorf("Compatible(%v, %v) = %v, want %v", tt.expected, tt.actual, got, tt.want)
			}
		})
	}
}

func TestValidateDeclaration(t *testing.T) {
	tests := []struct {
		name     string
		t        fieldtype.Type
		wantCode int // 0 = valid
	}{
		{"number", fieldtype.Type{Kind: fieldtype.Number}, 0},
		{"geopoint", fieldtype.Type{Kind: fieldtype.GeoPoint}, 0},
		{"pointer", fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "Game"}, 0},
		{"relation", fieldtype.Type{Kind: fieldtype.Relation, TargetClass: "_User"}, 0},
		{"pointer without target", fieldtype.Type{Kind: fieldtype.Pointer}, serr.InvalidFieldType},
		{"pointer to bad class", fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "9bad"}, serr.InvalidClassName},
		{"made up type", fieldtype.Type{Kind: "Money"}, serr.InvalidFieldType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fieldtype.ValidateDeclaration("f", tt.t)
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("ValidateDeclaration(%v) error: %v", tt.t, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateDeclaration(%v) succeeded, want code %d", tt.t, tt.wantCode)
			}
			if code := serr.CodeOf(err); code != tt.wantCode {
				t.Errorf("error code = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	if got := (fieldtype.Type{Kind: fieldtype.Pointer, TargetClass: "_User"}).String(); got != "Pointer<_User>" {
		t.Errorf("String() = %q", got)
	}
	if got := (fieldtype.Type{Kind: fieldtype.Number}).String(); got != "Number" {
		t.Errorf("String() = %q", got)
	}
}
