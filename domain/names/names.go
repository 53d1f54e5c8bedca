// Package names validates class and field naming rules.
// Validation is pure; no state and no storage access.
package names

import (
	"regexp"
	"strings"
)

// System classes carry a leading underscore and a fixed schema core.
// Anything else must look like an ordinary identifier.
var systemClasses = []string{
	"_User",
	"_Installation",
	"_Role",
	"_Session",
	"_Product",
	"_PushStatus",
	"_JobStatus",
	"_Hooks",
	"_GlobalConfig",
}

var (
	fieldNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	joinRe      = regexp.MustCompile(`^_Join:[A-Za-z][A-Za-z0-9_]*:_?[A-Za-z][A-Za-z0-9_]*$`)
)

// ValidClassName reports whether name is a legal class name: a recognized
// system class, a join table name, or an ordinary identifier.
func ValidClassName(name string) bool {
	return IsSystemClass(name) || joinRe.MatchString(name) || ValidFieldName(name)
}

// ValidFieldName reports whether name is a legal field name.
func ValidFieldName(name string) bool {
	return fieldNameRe.MatchString(name)
}

// IsSystemClass reports whether name is one of the built-in system classes.
func IsSystemClass(name string) bool {
	for _, c := range systemClasses {
		if c == name {
			return true
		}
	}
	return false
}

// SystemClasses returns the built-in system class names.
func SystemClasses() []string {
	out := make([]string, len(systemClasses))
	copy(out, systemClasses)
	return out
}

// JoinTableName returns the name of the join collection backing a
// relation field on a class.
func JoinTableName(fieldName, className string) string {
	return "_Join:" + fieldName + ":" + className
}

// IsJoinTableName reports whether name denotes a join collection.
func IsJoinTableName(name string) bool {
	return strings.HasPrefix(name, "_Join:")
}
