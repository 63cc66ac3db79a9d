// Package objectid defines the opaque, hashable name used to address
// every object in the cluster. It is grounded on original_source's
// dsm::ObjectId (include/dsm/ObjectId.h), which wraps a single string
// and overloads equality and std::hash.
package objectid

// ID is an opaque object name. It is comparable and usable directly as
// a map key: Go structs made of comparable fields (here, a single
// string) already satisfy the "value-equality, stable hash" contract
// spec.md asks for, so no custom Equal/Hash methods are needed.
type ID struct {
	name string
}

// New wraps name as an ID. Two IDs built from the same name compare
// equal and hash to the same bucket wherever ID is used as a map key.
func New(name string) ID {
	return ID{name: name}
}

// String returns the underlying name.
func (id ID) String() string {
	return id.name
}

// Bytes returns the wire/hash representation of id. Placement (and any
// transport codec) must use this rather than String to stay consistent
// if ID ever stops being string-backed.
func (id ID) Bytes() []byte {
	return []byte(id.name)
}

// IsZero reports whether id is the zero value (never a valid object name).
func (id ID) IsZero() bool {
	return id.name == ""
}
