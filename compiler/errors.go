package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/stagecraft/pkg/ast"
)

// ---------------------------------------------------------------------------
// Front-end errors
// ---------------------------------------------------------------------------

// ErrorKind classifies a front-end error.
type ErrorKind string

const (
	// ParseError reports input the external parser or the tree decoder
	// rejected.
	ParseError ErrorKind = "parse"
	// TypeError reports an ill-typed or ill-staged program.
	TypeError ErrorKind = "type"
	// UnsupportedError reports a construct a pass or backend cannot lower
	// yet. It is an implementation gap, not a user mistake.
	UnsupportedError ErrorKind = "unsupported"
)

var (
	// ErrInternal is wrapped by violations of the compiler's own invariants.
	ErrInternal = errors.New("internal error")

	// ErrUnknownConfiguration is returned when no presplice variant matches
	// the live snippet selection.
	ErrUnknownConfiguration = errors.New("unknown configuration")
)

// Error is a located front-end error.
type Error struct {
	Location ast.Location
	Kind     ErrorKind
	Message  string
}

// Error renders "<filename>:<line>.<col>[-<line>.<col>]: <kind> error: <msg>".
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %s", LocString(e.Location), e.Kind, e.Message)
}

// LocString renders a location in GNU style. The end position is only
// shown when it differs from the start.
func LocString(loc ast.Location) string {
	out := ""
	if loc.Filename != "" {
		out = loc.Filename + ":"
	}
	out += fmt.Sprintf("%d.%d", loc.Start.Line, loc.Start.Column)
	if loc.End.Line != loc.Start.Line || loc.End.Column != loc.Start.Column {
		if loc.End.Line != 0 || loc.End.Column != 0 {
			out += fmt.Sprintf("-%d.%d", loc.End.Line, loc.End.Column)
		}
	}
	return out
}

// newError builds an Error located at n.
func newError(n ast.Node, kind ErrorKind, format string, args ...any) *Error {
	var loc ast.Location
	if n != nil {
		if l := n.Location(); l != nil {
			loc = *l
		}
	}
	return &Error{Location: loc, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func typeErrorf(n ast.Node, format string, args ...any) *Error {
	return newError(n, TypeError, format, args...)
}

func unsupportedf(n ast.Node, format string, args ...any) *Error {
	return newError(n, UnsupportedError, format, args...)
}

// Unsupportedf is the constructor backends use for constructs they cannot
// lower.
func Unsupportedf(n ast.Node, format string, args ...any) error {
	return unsupportedf(n, format, args...)
}

func internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// Internalf wraps ErrInternal for callers outside the package.
func Internalf(format string, args ...any) error {
	return internalf(format, args...)
}

// IsKind reports whether err is a front-end Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
