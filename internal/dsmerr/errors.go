// Package dsmerr defines the error taxonomy shared by the coherence
// engine, the lock manager and the peer transport. It carries a
// Transient flag so callers can tell a retryable failure from a
// permanent one, narrowed to the five kinds spec.md §7 calls out.
package dsmerr

import (
	"errors"
	"fmt"
	"strings"
)

// DsmError wraps an underlying error with a transience hint, built via
// the Permanent/Transient constructors below.
type DsmError struct {
	Err       error
	Transient bool
}

func Permanent(format string, args ...interface{}) DsmError {
	return DsmError{Err: fmt.Errorf(format, args...), Transient: false}
}

func Transient(format string, args ...interface{}) DsmError {
	return DsmError{Err: fmt.Errorf(format, args...), Transient: true}
}

func (e DsmError) Error() string { return e.Err.Error() }
func (e DsmError) Unwrap() error { return e.Err }

// Temporary and Timeout let this satisfy the net.Error-shaped duck type
// some RPC transports probe for when deciding whether to retry.
func (e DsmError) Temporary() bool { return e.Transient }
func (e DsmError) Timeout() bool   { return false }

// IsRetryable reports true for a DsmError marked Transient, or a plain
// error whose message was tagged "[Retryable]" by a transport that
// doesn't know about DsmError.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var dsmErr DsmError
	if errors.As(err, &dsmErr) {
		return dsmErr.Temporary()
	}
	return strings.Contains(err.Error(), "[Retryable]")
}

// Sentinel/typed errors for the five kinds in spec.md §7.

// ErrNotFound: requested object absent on a node that should have it.
var ErrNotFound = errors.New("dsm: object not found")

// MisuseError: a write attempt a handle does not allow — on a read
// (non-writable) handle, or on a handle that has already been closed.
// Op names the attempted operation and the reason.
type MisuseError struct {
	Op string
}

func (e MisuseError) Error() string {
	return fmt.Sprintf("dsm: misuse: %s", e.Op)
}

// CodecError: decode size mismatch on a non-empty payload.
type CodecError struct {
	Type     string
	WantSize int
	GotSize  int
}

func (e CodecError) Error() string {
	return fmt.Sprintf("dsm: codec: %s expects %d bytes, got %d", e.Type, e.WantSize, e.GotSize)
}

// RoleMismatchError: an inbound handler that requires home/backup
// status fired on a node that holds neither role for the object.
type RoleMismatchError struct {
	Handler string
	NodeID  int
	Object  string
}

func (e RoleMismatchError) Error() string {
	return fmt.Sprintf("dsm: %s called on node %d which is neither home nor backup for %q", e.Handler, e.NodeID, e.Object)
}

// TransportError: an outbound RPC failed. Always Transient=true — the
// core's fallback/best-effort policy (spec.md §7) decides what to do
// with it, not the transport.
func TransportError(format string, args ...interface{}) DsmError {
	return Transient(format, args...)
}
