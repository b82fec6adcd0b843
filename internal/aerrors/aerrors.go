// Package aerrors implements the error-handling design of spec.md section
// 7: a typed AnalysisError for "definite error" results a checker client
// reads off a bottom invariant, and a distinct ContractViolation panic type
// for internal programming errors.
//
// Grounded on the teacher's internal/errors (SentraError: Type + Message +
// SourceLocation + a hand-built Error() string), renamed to this domain's
// vocabulary.
package aerrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind enumerates the definite-error categories a checker can distinguish
// by reading the statement's resulting bottom invariant plus the engine's
// last-transition reason.
type Kind string

const (
	NullDereference      Kind = "NullDereference"
	DivisionByZero       Kind = "DivisionByZero"
	UninitializedRead     Kind = "UninitializedRead"
	BufferUnderflow       Kind = "BufferUnderflow"
	UseAfterFree          Kind = "UseAfterFree"
	DoubleFree            Kind = "DoubleFree"
	InconsistentSummary   Kind = "InconsistentSummary"
)

// Location is a source position, supplied by the CFG driver.
type Location struct {
	Function string
	Line     int
	Column   int
}

func (l Location) String() string {
	if l.Function == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.Function, l.Line, l.Column)
}

// AnalysisError records why an abstract value transitioned to bottom.
type AnalysisError struct {
	Kind     Kind
	Message  string
	Location Location
}

func (e *AnalysisError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if loc := e.Location.String(); loc != "" {
		sb.WriteString(" at ")
		sb.WriteString(loc)
	}
	return sb.String()
}

// New builds a definite-error value.
func New(kind Kind, message string, loc Location) *AnalysisError {
	return &AnalysisError{Kind: kind, Message: message, Location: loc}
}

// ContractViolation is a distinct panic payload for internal programming
// errors (incompatible bit widths, shift amount out of range, undeclared
// pivot variable in partitioning): spec.md section 7 requires these to
// "abort" rather than degrade into an imprecise-but-sound state, and
// requires a CFG driver be able to recover specifically from them without
// masking a real bottom transition.
type ContractViolation struct {
	Reason string
}

func (c ContractViolation) Error() string { return "contract violation: " + c.Reason }

// Violate panics with a ContractViolation.
func Violate(format string, args ...any) {
	panic(ContractViolation{Reason: fmt.Sprintf(format, args...)})
}

// Wrap attaches context to a lower-layer error (persistence, I/O) using
// github.com/pkg/errors, matching this corpus's convention of wrapping
// rather than re-stringifying errors from external systems.
func Wrap(err error, context string) error {
	return errors.Wrap(err, context)
}
