// Package fieldtype defines the closed set of schema field types and the
// classification of JSON values into them.
package fieldtype

import (
	"github.com/schemagate/schemagate/domain/names"
	"github.com/schemagate/schemagate/pkg/serr"
)

// Kind is the tag of a field type.
type Kind string

const (
	Number   Kind = "Number"
	String   Kind = "String"
	Boolean  Kind = "Boolean"
	Date     Kind = "Date"
	Object   Kind = "Object"
	Array    Kind = "Array"
	GeoPoint Kind = "GeoPoint"
	File     Kind = "File"
	Bytes    Kind = "Bytes"
	ACL      Kind = "ACL"
	Pointer  Kind = "Pointer"
	Relation Kind = "Relation"
)

// Type is a tagged field type. TargetClass is set only for Pointer and
// Relation kinds.
type Type struct {
	Kind        Kind   `json:"type"`
	TargetClass string `json:"targetClass,omitempty"`
}

// scalarKinds are the kinds that carry no extra data.
var scalarKinds = map[Kind]bool{
	Number:   true,
	String:   true,
	Boolean:  true,
	Date:     true,
	Object:   true,
	Array:    true,
	GeoPoint: true,
	File:     true,
	Bytes:    true,
	ACL:      true,
}

// String renders the type the way it appears in error messages.
func (t Type) String() string {
	switch t.Kind {
	case Pointer:
		return "Pointer<" + t.TargetClass + ">"
	case Relation:
		return "Relation<" + t.TargetClass + ">"
	default:
		return string(t.Kind)
	}
}

// Compatible reports whether two types match exactly: same kind and, for
// Pointer/Relation, same target class.
func Compatible(expected, actual Type) bool {
	return expected.Kind == actual.Kind && expected.TargetClass == actual.TargetClass
}

// ValidateDeclaration checks a submitted field type declaration. Pointer and
// Relation declarations must name a valid target class; every other kind must
// be one of the known scalar kinds.
func ValidateDeclaration(fieldName string, t Type) error {
	switch t.Kind {
	case Pointer, Relation:
		if t.TargetClass == "" {
			return serr.Newf(serr.InvalidFieldType, "field %s: type %s needs a targetClass", fieldName, t.Kind)
		}
		if !names.ValidClassName(t.TargetClass) {
			return serr.Newf(serr.InvalidClassName, "field %s: invalid target class name %q", fieldName, t.TargetClass)
		}
		return nil
	default:
		if !scalarKinds[t.Kind] {
			return serr.Newf(serr.InvalidFieldType, "field %s: invalid type %q", fieldName, string(t.Kind))
		}
		return nil
	}
}

// Classify maps a JSON-shaped value to the field type it implies.
//
// A nil *Type with a nil error means the value is a Delete operator: the
// caller should treat it as a field-removal signal rather than a type.
// Callers skip absent values entirely; Classify never sees them.
func Classify(v any) (*Type, error) {
	switch x := v.(type) {
	case bool:
		return &Type{Kind: Boolean}, nil
	case string:
		return &Type{Kind: String}, nil
	case float64, float32, int, int32, int64:
		return &Type{Kind: Number}, nil
	case []any:
		return &Type{Kind: Array}, nil
	case map[string]any:
		return classifyObject(x)
	case nil:
		return &Type{Kind: Object}, nil
	default:
		return nil, serr.Newf(serr.IncorrectType, "bad value shape %T", v)
	}
}

func classifyObject(obj map[string]any) (*Type, error) {
	if tag, ok := obj["__type"].(string); ok {
		return classifyTagged(tag, obj)
	}
	if op, ok := obj["__op"].(string); ok {
		return classifyOperator(op, obj)
	}
	return &Type{Kind: Object}, nil
}

// classifyTagged validates the structural type tags carried inline in
// object values.
func classifyTagged(tag string, obj map[string]any) (*Type, error) {
	switch tag {
	case "Pointer":
		target, ok := obj["className"].(string)
		if !ok || target == "" {
			return nil, serr.New(serr.InvalidJSON, "Pointer value is missing a className")
		}
		return &Type{Kind: Pointer, TargetClass: target}, nil
	case "Relation":
		target, ok := obj["className"].(string)
		if !ok || target == "" {
			return nil, serr.New(serr.InvalidJSON, "Relation value is missing a className")
		}
		return &Type{Kind: Relation, TargetClass: target}, nil
	case "File":
		if _, ok := obj["name"].(string); !ok {
			return nil, serr.New(serr.InvalidJSON, "File value is missing a name")
		}
		return &Type{Kind: File}, nil
	case "Date":
		if _, ok := obj["iso"].(string); !ok {
			return nil, serr.New(serr.InvalidJSON, "Date value is missing an iso string")
		}
		return &Type{Kind: Date}, nil
	case "GeoPoint":
		if !isNumber(obj["latitude"]) || !isNumber(obj["longitude"]) {
			return nil, serr.New(serr.InvalidJSON, "GeoPoint value needs numeric latitude and longitude")
		}
		return &Type{Kind: GeoPoint}, nil
	case "Bytes":
		if _, ok := obj["base64"].(string); !ok {
			return nil, serr.New(serr.InvalidJSON, "Bytes value is missing base64 data")
		}
		return &Type{Kind: Bytes}, nil
	default:
		return nil, serr.Newf(serr.InvalidJSON, "invalid type tag %q", tag)
	}
}

// classifyOperator resolves an update operator to the type its effect
// implies. Delete resolves to no type at all.
func classifyOperator(op string, obj map[string]any) (*Type, error) {
	switch op {
	case "Increment":
		return &Type{Kind: Number}, nil
	case "Add", "AddUnique", "Remove":
		return &Type{Kind: Array}, nil
	case "AddRelation", "RemoveRelation":
		objects, ok := obj["objects"].([]any)
		if !ok || len(objects) == 0 {
			return nil, serr.Newf(serr.InvalidJSON, "%s operator needs a non-empty objects list", op)
		}
		first, ok := objects[0].(map[string]any)
		if !ok {
			return nil, serr.Newf(serr.InvalidJSON, "%s operator holds a non-pointer object", op)
		}
		target, ok := first["className"].(string)
		if !ok || target == "" {
			return nil, serr.Newf(serr.InvalidJSON, "%s operator object is missing a className", op)
		}
		return &Type{Kind: Relation, TargetClass: target}, nil
	case "Delete":
		return nil, nil
	case "Batch":
		ops, ok := obj["ops"].([]any)
		if !ok || len(ops) == 0 {
			return nil, serr.New(serr.InvalidJSON, "Batch operator needs a non-empty ops list")
		}
		return Classify(ops[0])
	default:
		return nil, serr.Newf(serr.IncorrectType, "unrecognized update operator %q", op)
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}
