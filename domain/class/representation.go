package class

import (
	"strings"

	"github.com/schemagate/schemagate/domain/fieldtype"
)

// The engine speaks two schema shapes. The public representation is what
// clients see: an implicit ACL field and a plain password field on the user
// class. The adapter representation is what the store persists: ACL split
// into read/write permission lists and the password stored hashed. ToAdapter
// and ToPublic are exact inverses over the fields they touch.

// ToAdapter converts a public-representation class into the shape handed to
// the storage adapter.
func ToAdapter(c Class) Class {
	out := c.Clone()
	if out.Fields == nil {
		out.Fields = map[string]fieldtype.Type{}
	}
	delete(out.Fields, "ACL")
	out.Fields["_rperm"] = fieldtype.Type{Kind: fieldtype.Array}
	out.Fields["_wperm"] = fieldtype.Type{Kind: fieldtype.Array}
	if c.Name == "_User" {
		delete(out.Fields, "password")
		out.Fields["_hashed_password"] = fieldtype.Type{Kind: fieldtype.String}
	}
	return out
}

// ToPublic converts a stored class back into the externally visible shape,
// dropping internal auth-provider bookkeeping fields on the way out.
func ToPublic(c Class) Class {
	out := c.Clone()
	if out.Fields == nil {
		out.Fields = map[string]fieldtype.Type{}
	}
	delete(out.Fields, "_rperm")
	delete(out.Fields, "_wperm")
	out.Fields["ACL"] = fieldtype.Type{Kind: fieldtype.ACL}
	if c.Name == "_User" {
		delete(out.Fields, "_hashed_password")
		out.Fields["password"] = fieldtype.Type{Kind: fieldtype.String}
		for name := range out.Fields {
			if strings.HasPrefix(name, "_auth_data_") {
				delete(out.Fields, name)
			}
		}
	}
	return out
}
