// Package codecerr defines the error taxonomy shared by every layer of the save codec.
//
// Callers classify failures with errors.Is against the kind sentinels:
//
//	if errors.Is(err, codecerr.ErrValidation) {
//	    // unsupported version, rejected value
//	}
package codecerr

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // wire bytes to record
	PhaseEncode   Phase = "encode"   // record to wire bytes
	PhaseMap      Phase = "map"      // record to canonical form and back
	PhaseBoundary Phase = "boundary" // foreign call entry points
)

// Kind categorizes the error
type Kind string

const (
	KindStructural Kind = "structural" // not enough bits for a field
	KindEncoding   Kind = "encoding"   // invalid UTF-8, unrepresentable value
	KindValidation Kind = "validation" // semantic rejection such as an unsupported version
	KindBoundary   Kind = "boundary"   // bad input buffer, allocation or interchange failure
)

// Kind sentinels. Match any phase.
var (
	ErrStructural = &Error{Kind: KindStructural}
	ErrEncoding   = &Error{Kind: KindEncoding}
	ErrValidation = &Error{Kind: KindValidation}
	ErrBoundary   = &Error{Kind: KindBoundary}
)

var sentinels = []*Error{ErrStructural, ErrEncoding, ErrValidation, ErrBoundary}

// Error is the structured error type of the codec
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A bare kind target (no detail, path or
// cause) matches on kind, and on phase too when it names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Detail != "" || len(t.Path) > 0 || t.Cause != nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Phase == "" || t.Phase == e.Phase
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Boundary creates a boundary error with the given detail
func Boundary(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseBoundary,
		Kind:   KindBoundary,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first classified error in err's chain, or "" if none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Kind
		}
	}
	return ""
}
