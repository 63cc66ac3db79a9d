// Package codec implements the encode/decode capability spec.md §6
// injects per value type, grounded on original_source's
// Serialization.h contract (serialize/deserialize free functions used
// by DsmCore::get/put). Go's lack of C++-style templates-with-ADL
// means the per-type dispatch has to be an explicit interface instead
// of a free function pair, but the semantics — empty bytes decode to
// the zero value, non-empty bytes of the wrong size are a CodecError —
// are unchanged.
package codec

import (
	"encoding/binary"
	"unsafe"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/dsmerr"
)

// Codec is the capability a caller supplies per value type T. No
// implementation in this package allocates beyond what Encode/Decode
// strictly need.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte, out *T) error
}

// nativeEndian is resolved once at init time the standard way a small
// unsafe probe determines host byte order — this module has no pack
// dependency that already does it, so it is the one place in the
// codebase that reaches for unsafe rather than a library (see
// DESIGN.md for why no third-party codec covers this).
var nativeEndian binary.ByteOrder

func init() {
	var probe uint16 = 0xABCD
	b := (*[2]byte)(unsafe.Pointer(&probe))
	if b[0] == 0xCD {
		nativeEndian = binary.LittleEndian
	} else {
		nativeEndian = binary.BigEndian
	}
}

// StringCodec encodes a string verbatim, per spec.md §6 ("string
// values encode verbatim").
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (StringCodec) Decode(b []byte, out *string) error {
	*out = string(b)
	return nil
}

// Int64Codec encodes int64 using host byte order, per spec.md §6
// ("numeric encodings use host byte order; core is intended for
// homogeneous clusters").
type Int64Codec struct{}

func (Int64Codec) Encode(v int64) ([]byte, error) {
	buf := make([]byte, 8)
	nativeEndian.PutUint64(buf, uint64(v))
	return buf, nil
}

func (Int64Codec) Decode(b []byte, out *int64) error {
	if len(b) == 0 {
		*out = 0
		return nil
	}
	if len(b) != 8 {
		return dsmerr.CodecError{Type: "int64", WantSize: 8, GotSize: len(b)}
	}
	*out = int64(nativeEndian.Uint64(b))
	return nil
}

// BoolCodec encodes bool as a single byte (0 or 1).
type BoolCodec struct{}

func (BoolCodec) Encode(v bool) ([]byte, error) {
	if v {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (BoolCodec) Decode(b []byte, out *bool) error {
	if len(b) == 0 {
		*out = false
		return nil
	}
	if len(b) != 1 {
		return dsmerr.CodecError{Type: "bool", WantSize: 1, GotSize: len(b)}
	}
	*out = b[0] != 0
	return nil
}

// BytesCodec is the identity codec, for callers that already deal in
// the wire representation and don't want a typed view over it.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) {
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (BytesCodec) Decode(b []byte, out *[]byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	*out = cp
	return nil
}
