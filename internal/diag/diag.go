// Package diag implements compiler diagnostics as plain data (spec.md §7):
// a primary span, optional secondary spans, a title, and optional notes.
// There is no exception unwinding — diagnostics are values threaded through
// the pipeline as Go errors, and the first one aborts compilation (§5, §7).
// Grounded on the plain-data conflict/diagnostic shape of
// diagnostic/conflict.go and diagnostic/engine.go in the teacher, and on
// GuppyError's (message, primary, secondary...) constructor in
// _examples/original_source.
package diag

import (
	"fmt"
	"strings"

	"github.com/CQCL/guppy-go/internal/ast"
)

// Class distinguishes user-facing diagnostics from compiler-internal bug
// reports, so that bug reports can be filtered out of normal error streams
// (spec.md §7's "Internal" kind).
type Class uint8

const (
	// ClassUser is any of the user-facing kinds (syntax, definite-assignment,
	// type, arity, linearity, recursion/structural).
	ClassUser Class = iota + 1
	// ClassInternal marks an invariant violation in the compiler itself.
	ClassInternal
)

// Kind enumerates the diagnostic kinds from spec.md §7.
type Kind uint8

const (
	KindSyntax Kind = iota + 1
	KindDefiniteAssignment
	KindType
	KindArity
	KindLinearity
	KindStructural
	KindInternal
	KindNotYetSupported
)

func (k Kind) class() Class {
	if k == KindInternal {
		return ClassInternal
	}
	return ClassUser
}

// Note is a sub-diagnostic attached to the primary message, e.g. pointing at
// a second definition site in a row-reconciliation error.
type Note struct {
	Message string
	Span    *ast.Span // nil if the note has no location of its own
}

// Error is one compiler diagnostic. It implements the error interface so it
// can be threaded through the pipeline with ordinary Go error-handling, but
// callers that need the structured form (e.g. a pretty-printer) should type
// assert or use As.
type Error struct {
	Kind      Kind
	Title     string
	Primary   ast.Span
	Secondary []ast.Span
	Notes     []Note
}

// New builds a diagnostic at kind/title/primary with no secondary spans or
// notes. Use the fluent With* methods to add them.
func New(kind Kind, primary ast.Span, title string, args ...any) *Error {
	if len(args) > 0 {
		title = fmt.Sprintf(title, args...)
	}
	return &Error{Kind: kind, Title: title, Primary: primary}
}

// WithSecondary appends secondary spans (e.g. the other definition site in a
// row-reconciliation conflict, spec.md §4.7).
func (e *Error) WithSecondary(spans ...ast.Span) *Error {
	e.Secondary = append(e.Secondary, spans...)
	return e
}

// WithNote appends a sub-diagnostic note.
func (e *Error) WithNote(msg string, span *ast.Span) *Error {
	e.Notes = append(e.Notes, Note{Message: msg, Span: span})
	return e
}

// Class reports whether this is a user error or an internal bug report.
func (e *Error) Class() Class { return e.Kind.class() }

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s", e.Primary.Start.File, e.Primary.Start.Line, e.Primary.Start.Col, e.Title)
	for _, n := range e.Notes {
		b.WriteString("\n  note: ")
		b.WriteString(n.Message)
	}
	return b.String()
}

// Internal builds a KindInternal diagnostic for an invariant violation
// detected by the compiler itself (spec.md §7's "Internal" kind), so bug
// reports stay distinguishable from user errors at the call site.
func Internal(primary ast.Span, format string, args ...any) *Error {
	return New(KindInternal, primary, format, args...)
}

// Recover turns a panic recovered at the pipeline's outer boundary into an
// Internal diagnostic, matching the recover()-to-error idiom of
// assertion/function/analyzer.go's run() wrapper. It returns nil for a nil
// r, so a caller assigns its result only when something was recovered:
//
//	defer func() {
//		if r := recover(); r != nil {
//			err = diag.Recover(r, fallbackSpan)
//		}
//	}()
func Recover(r any, fallback ast.Span) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return Internal(fallback, "internal error: %v", err)
	}
	return Internal(fallback, "internal error: %v", r)
}

// First returns the earlier of a, b in source order (line then column),
// used by row reconciliation to name the earlier-defined variable first
// (spec.md §4.7, grounded on cfg_checker.check_rows_match's tie-break).
func First(a, b ast.Span) (earlier, later ast.Span) {
	if lessPos(a.Start, b.Start) {
		return a, b
	}
	return b, a
}

func lessPos(a, b ast.Pos) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Col < b.Col
}
