// Package class defines the schema of a class (a named collection of
// objects) together with the built-in defaults every class carries.
package class

import (
	"github.com/schemagate/schemagate/domain/clp"
	"github.com/schemagate/schemagate/domain/fieldtype"
)

// Class is the schema of one class: its name, its field types, and its
// class-level permissions.
type Class struct {
	Name        string                    `json:"className"`
	Fields      map[string]fieldtype.Type `json:"fields"`
	Permissions clp.Permissions           `json:"classLevelPermissions,omitempty"`
}

// Clone returns a deep copy of the class.
func (c Class) Clone() Class {
	out := Class{Name: c.Name, Permissions: c.Permissions.Clone()}
	if c.Fields != nil {
		out.Fields = make(map[string]fieldtype.Type, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// defaultFields are present on every class once materialized.
var defaultFields = map[string]fieldtype.Type{
	"objectId":  {Kind: fieldtype.String},
	"createdAt": {Kind: fieldtype.Date},
	"updatedAt": {Kind: fieldtype.Date},
	"ACL":       {Kind: fieldtype.ACL},
}

// systemClassFields are the extra mandatory fields of recognized system
// classes.
var systemClassFields = map[string]map[string]fieldtype.Type{
	"_User": {
		"username":      {Kind: fieldtype.String},
		"password":      {Kind: fieldtype.String},
		"email":         {Kind: fieldtype.String},
		"emailVerified": {Kind: fieldtype.Boolean},
		"authData":      {Kind: fieldtype.Object},
	},
	"_Installation": {
		"installationId":   {Kind: fieldtype.String},
		"deviceToken":      {Kind: fieldtype.String},
		"channels":         {Kind: fieldtype.Array},
		"deviceType":       {Kind: fieldtype.String},
		"pushType":         {Kind: fieldtype.String},
		"timeZone":         {Kind: fieldtype.String},
		"localeIdentifier": {Kind: fieldtype.String},
		"badge":            {Kind: fieldtype.Number},
		"appVersion":       {Kind: fieldtype.String},
		"appName":          {Kind: fieldtype.String},
		"appIdentifier":    {Kind: fieldtype.String},
	},
	"_Role": {
		"name":  {Kind: fieldtype.String},
		"users": {Kind: fieldtype.Relation, TargetClass: "_User"},
		"roles": {Kind: fieldtype.Relation, TargetClass: "_Role"},
	},
	"_Session": {
		"user":           {Kind: fieldtype.Pointer, TargetClass: "_User"},
		"installationId": {Kind: fieldtype.String},
		"sessionToken":   {Kind: fieldtype.String},
		"expiresAt":      {Kind: fieldtype.Date},
		"createdWith":    {Kind: fieldtype.Object},
		"restricted":     {Kind: fieldtype.Boolean},
	},
	"_Product": {
		"productIdentifier": {Kind: fieldtype.String},
		"download":          {Kind: fieldtype.File},
		"downloadName":      {Kind: fieldtype.String},
		"icon":              {Kind: fieldtype.File},
		"order":             {Kind: fieldtype.Number},
		"title":             {Kind: fieldtype.String},
		"subtitle":          {Kind: fieldtype.String},
	},
	"_PushStatus": {
		"pushTime":     {Kind: fieldtype.String},
		"source":       {Kind: fieldtype.String},
		"query":        {Kind: fieldtype.String},
		"payload":      {Kind: fieldtype.String},
		"status":       {Kind: fieldtype.String},
		"numSent":      {Kind: fieldtype.Number},
		"numFailed":    {Kind: fieldtype.Number},
		"errorMessage": {Kind: fieldtype.Object},
	},
	"_JobStatus": {
		"jobName":    {Kind: fieldtype.String},
		"source":     {Kind: fieldtype.String},
		"status":     {Kind: fieldtype.String},
		"message":    {Kind: fieldtype.String},
		"params":     {Kind: fieldtype.Object},
		"finishedAt": {Kind: fieldtype.Date},
	},
	"_Hooks": {
		"functionName": {Kind: fieldtype.String},
		"className":    {Kind: fieldtype.String},
		"triggerName":  {Kind: fieldtype.String},
		"url":          {Kind: fieldtype.String},
	},
	"_GlobalConfig": {
		"params": {Kind: fieldtype.Object},
	},
}

// requiredFields lists the columns that must be present on object writes,
// per class. Evaluation is contextual; see the controller's ValidateObject.
var requiredFields = map[string][]string{
	"_User":    {"username", "password"},
	"_Role":    {"name", "ACL"},
	"_Product": {"productIdentifier", "icon", "order", "title", "subtitle"},
}

// volatileClasses exist only in the materialized view; they are injected on
// every reload and never persisted to the schema store.
var volatileClasses = []string{"_Hooks", "_GlobalConfig", "_PushStatus", "_JobStatus"}

// DefaultFields returns the fields every class of this name carries
// implicitly: the universal defaults plus the system extras, if any.
func DefaultFields(className string) map[string]fieldtype.Type {
	out := make(map[string]fieldtype.Type, len(defaultFields))
	for k, v := range defaultFields {
		out[k] = v
	}
	for k, v := range systemClassFields[className] {
		out[k] = v
	}
	return out
}

// FieldAllowed reports whether a submitted field name may be added to the
// class. Names that collide with a default or system field are reserved.
func FieldAllowed(fieldName, className string) bool {
	if _, ok := defaultFields[fieldName]; ok {
		return false
	}
	_, ok := systemClassFields[className][fieldName]
	return !ok
}

// RequiredFields returns the columns object writes must supply for the
// class, or nil when the class has none.
func RequiredFields(className string) []string {
	return requiredFields[className]
}

// IsVolatile reports whether the class lives only in memory.
func IsVolatile(className string) bool {
	for _, c := range volatileClasses {
		if c == className {
			return true
		}
	}
	return false
}

// VolatileClasses returns the in-memory-only class names.
func VolatileClasses() []string {
	out := make([]string, len(volatileClasses))
	copy(out, volatileClasses)
	return out
}

// WithDefaults returns a copy of c whose field set is the union of the
// default fields for its kind and the submitted fields. Submitted fields
// never displace a default; the accept path strips colliding names before
// this point, and the union here keeps defaults authoritative regardless.
func WithDefaults(c Class) Class {
	out := c.Clone()
	merged := DefaultFields(c.Name)
	for k, v := range c.Fields {
		if _, reserved := merged[k]; !reserved {
			merged[k] = v
		}
	}
	out.Fields = merged
	return out
}
