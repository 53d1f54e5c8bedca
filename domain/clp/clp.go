// Package clp validates and evaluates class-level permissions.
//
// A CLP maps an operation (find, get, create, update, delete, addField) to a
// set of permission keys, each granted exactly true. Two special entries,
// readUserFields and writeUserFields, list pointer-to-user fields whose
// ownership is checked row by row in the query/write layer, not here.
package clp

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/schemagate/schemagate/domain/fieldtype"
	"github.com/schemagate/schemagate/pkg/serr"
)

// Operations recognized in a CLP, beyond the two pointer-permission lists.
var operations = map[string]bool{
	"find":     true,
	"get":      true,
	"create":   true,
	"update":   true,
	"delete":   true,
	"addField": true,
}

// A permission key is the wildcard, a role reference, or a 10-character
// alphanumeric object id.
var (
	roleKeyRe  = regexp.MustCompile(`^role:.+$`)
	objectIDRe = regexp.MustCompile(`^[A-Za-z0-9]{10}$`)
)

// Permissions is the CLP of one class. A nil Operations entry for an
// operation means the operation is unrestricted.
type Permissions struct {
	Operations      map[string]map[string]bool
	ReadUserFields  []string
	WriteUserFields []string
}

// Clone returns a deep copy.
func (p Permissions) Clone() Permissions {
	out := Permissions{}
	if p.Operations != nil {
		out.Operations = make(map[string]map[string]bool, len(p.Operations))
		for op, keys := range p.Operations {
			ks := make(map[string]bool, len(keys))
			for k, v := range keys {
				ks[k] = v
			}
			out.Operations[op] = ks
		}
	}
	out.ReadUserFields = append([]string(nil), p.ReadUserFields...)
	out.WriteUserFields = append([]string(nil), p.WriteUserFields...)
	return out
}

// IsZero reports whether no permissions are declared at all.
func (p Permissions) IsZero() bool {
	return len(p.Operations) == 0 && len(p.ReadUserFields) == 0 && len(p.WriteUserFields) == 0
}

// MarshalJSON renders the wire shape: one flat object keyed by operation,
// with readUserFields/writeUserFields inline.
func (p Permissions) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Operations)+2)
	for op, keys := range p.Operations {
		out[op] = keys
	}
	if p.ReadUserFields != nil {
		out["readUserFields"] = p.ReadUserFields
	}
	if p.WriteUserFields != nil {
		out["writeUserFields"] = p.WriteUserFields
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the wire shape. Shape errors are coded; semantic
// validation against a field set happens separately in Validate.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return serr.New(serr.InvalidJSON, "class level permissions must be an object")
	}
	parsed := Permissions{}
	for key, val := range raw {
		switch key {
		case "readUserFields", "writeUserFields":
			var fields []string
			if err := json.Unmarshal(val, &fields); err != nil {
				return serr.Newf(serr.InvalidCLPValue, "%s must be an array of field names", key)
			}
			if key == "readUserFields" {
				parsed.ReadUserFields = fields
			} else {
				parsed.WriteUserFields = fields
			}
		default:
			var keys map[string]bool
			if err := json.Unmarshal(val, &keys); err != nil {
				return serr.Newf(serr.InvalidCLPValue, "permissions for %q must map keys to true", key)
			}
			if parsed.Operations == nil {
				parsed.Operations = map[string]map[string]bool{}
			}
			parsed.Operations[key] = keys
		}
	}
	*p = parsed
	return nil
}

// ValidKey reports whether key is a legal permission key.
func ValidKey(key string) bool {
	return key == "*" || roleKeyRe.MatchString(key) || objectIDRe.MatchString(key)
}

// Validate checks a CLP against the field set of its class. Every operation
// must be recognized, every key legal, every grant exactly true, and every
// pointer-permission entry must name an existing Pointer-to-_User field.
func Validate(p Permissions, fields map[string]fieldtype.Type) error {
	for op, keys := range p.Operations {
		if !operations[op] {
			return serr.Newf(serr.InvalidCLPOperation,
				"%q is not a valid class level permission operation, expected one of %s",
				op, strings.Join(OperationNames(), ", "))
		}
		for key, granted := range keys {
			if !ValidKey(key) {
				return serr.Newf(serr.InvalidCLPValue, "%q is not a valid permission key for %s", key, op)
			}
			if !granted {
				return serr.Newf(serr.InvalidCLPValue, "permission for %s on %s must be true", key, op)
			}
		}
	}
	for _, entry := range []struct {
		name   string
		fields []string
	}{
		{"readUserFields", p.ReadUserFields},
		{"writeUserFields", p.WriteUserFields},
	} {
		for _, fieldName := range entry.fields {
			t, ok := fields[fieldName]
			if !ok {
				return serr.Newf(serr.InvalidCLPValue, "%s names %q which is not a field", entry.name, fieldName)
			}
			if t.Kind != fieldtype.Pointer || t.TargetClass != "_User" {
				return serr.Newf(serr.InvalidCLPValue, "%s names %q which is not a pointer to _User", entry.name, fieldName)
			}
		}
	}
	return nil
}

// EvaluateBase reports whether the coarse CLP grants the operation to the
// access group: no entry for the operation at all, a wildcard grant, or a
// grant to any identity or role token in the group. A present entry with no
// grants is a lock-down, not an absence.
func EvaluateBase(p Permissions, operation string, accessGroup []string) bool {
	keys, restricted := p.Operations[operation]
	if !restricted {
		return true
	}
	if keys["*"] {
		return true
	}
	for _, id := range accessGroup {
		if keys[id] {
			return true
		}
	}
	return false
}

// Decision is the outcome of the two-tier permission check.
type Decision int

const (
	// Allowed means the coarse CLP grants the operation outright.
	Allowed Decision = iota
	// Deferred means the CLP denies but a pointer-permission list exists:
	// the caller must apply row-level ownership filtering downstream.
	// Deferred is not itself a grant.
	Deferred
	// Forbidden means the operation is denied.
	Forbidden
)

// Decide runs the two-tier permission check. When the coarse CLP denies, a
// non-empty pointer-permission list for the matching direction defers the
// decision to row-level ownership filtering. Deferral never applies to
// create, which has no pre-existing row to own.
func Decide(p Permissions, operation string, accessGroup []string) Decision {
	if EvaluateBase(p, operation, accessGroup) {
		return Allowed
	}
	switch operation {
	case "get", "find":
		if len(p.ReadUserFields) > 0 {
			return Deferred
		}
	case "create":
		// writeUserFields cannot grant create.
	default:
		if len(p.WriteUserFields) > 0 {
			return Deferred
		}
	}
	return Forbidden
}

// Authorize fails with OperationForbidden unless the operation is allowed
// or deferred to row-level checks.
func Authorize(p Permissions, operation string, accessGroup []string) error {
	if Decide(p, operation, accessGroup) == Forbidden {
		return serr.Newf(serr.OperationForbidden, "permission denied for %s", operation)
	}
	return nil
}

// OperationNames returns the recognized operation names, sorted.
func OperationNames() []string {
	out := make([]string, 0, len(operations))
	for op := range operations {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
