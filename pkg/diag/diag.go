// Package diag defines the structured diagnostics produced by query
// compilation. A compilation either succeeds fully or reports exactly one
// Error; there are no partial results.
package diag

import (
	"errors"
	"fmt"
)

// Code classifies a compilation failure.
type Code string

const (
	// UnsupportedFeature covers constructs the compiler recognizes but does
	// not implement: variable-length relationships, grouping sets, multi-item
	// SET, map-merge properties, undirected CREATE relationships.
	UnsupportedFeature Code = "unsupported_feature"

	// UnresolvedReference is an unknown variable in SET, REMOVE, DELETE,
	// ORDER BY, or an expression.
	UnresolvedReference Code = "unresolved_reference"

	// SchemaConflict is a redeclaration of a variable with an incompatible
	// kind, label, or property constraint.
	SchemaConflict Code = "schema_conflict"

	// MalformedPattern covers structurally invalid input: a named path that
	// is too short, a non-reference target in DELETE or SET, or a mutating
	// clause appearing first in the chain.
	MalformedPattern Code = "malformed_pattern"

	// Internal marks conditions that indicate a bug in the caller or the
	// compiler itself, such as an unrecognized clause node.
	Internal Code = "internal"
)

// NoPos marks diagnostics without a usable source position.
const NoPos = -1

// Error is a structured compilation diagnostic.
type Error struct {
	Code Code
	Msg  string
	Pos  int // byte offset into the original query text, or NoPos
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s (at position %d)", e.Msg, e.Pos)
	}
	return e.Msg
}

// Newf builds an Error with a formatted message.
func Newf(code Code, pos int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// CodeOf extracts the diagnostic code from err, or "" if err does not wrap a
// diag.Error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err wraps a diag.Error with the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
