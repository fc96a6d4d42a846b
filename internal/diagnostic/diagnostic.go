// Package diagnostic defines the compiler's error taxonomy: typed semantic
// and IR errors, each carrying the offending construct's source position
// and a human-readable message.
//
// The passes are fail-fast — each raises a typed error and stops, with no
// recovery — so every error type here implements the standard `error`
// interface and is returned, not accumulated; List exists only for the
// CLI's final rendering and for non-fatal notes.
package diagnostic

import "fmt"

// Severity is minimal: every semantic/IR problem is fatal to its pass,
// but Note still lets errors carry secondary location context.
type Severity uint8

const (
	Error Severity = iota
	Note
)

func (s Severity) String() string {
	if s == Note {
		return "note"
	}
	return "error"
}

// Position is a 1-based line/column source location.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a half-open span of source text.
type Range struct {
	Start Position
	End   Position
}

// Code names one error taxonomy entry.
type Code string

const (
	// Semantic
	CodeRedeclaration         Code = "redeclaration"
	CodeUnresolvedName        Code = "unresolved-name"
	CodeUnresolvedType        Code = "unresolved-type"
	CodeTypeMismatch          Code = "type-mismatch"
	CodeNotAPlace             Code = "not-a-place"
	CodeNotMutable            Code = "not-mutable"
	CodeBreakOutsideLoop      Code = "break-outside-loop"
	CodeReturnOutsideFunction Code = "return-outside-function"
	CodeInvalidCast           Code = "invalid-cast"
	CodeAmbiguousIntLiteral   Code = "ambiguous-integer-literal"
	CodeArityMismatch         Code = "arity-mismatch"
	CodeInvalidSelf           Code = "invalid-self"
	CodeNotAddressable        Code = "not-addressable"

	// IR-time
	CodeMissingSymbol      Code = "missing-symbol"
	CodeNonIntegerConstant Code = "non-integer-constant"
	CodeInvalidIR          Code = "invalid-ir"
	CodeUnsupportedFeature Code = "unsupported-feature"
)

// Diagnostic is a single reportable message.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Range    Range
}

// Error satisfies the standard `error` interface so every Diagnostic can
// be returned directly from a pass function.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Range.Start, d.Code, d.Message)
}

// New constructs an error-severity Diagnostic at pos with the given code.
func New(code Code, pos Position, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Severity: Error,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Range:    Range{Start: pos, End: pos},
	}
}

// NewRange is like New but carries an explicit end position.
func NewRange(code Code, rng Range, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: Error, Code: code, Message: fmt.Sprintf(format, args...), Range: rng}
}

// IRException is the IR-time fatal error: any invariant violation
// the lowering pipeline discovers (missing symbol, unresolved type,
// non-integer constant, mismatched operand types) aborts lowering
// immediately. It is distinct from *Diagnostic because it names the internal
// invariant instead of pointing at user-facing source text, though it still
// carries a best-effort Position when one is available.
type IRException struct {
	Code    Code
	Message string
	Pos     Position
}

func (e *IRException) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
}

// NewIRException constructs an IRException with no associated source position.
func NewIRException(code Code, format string, args ...interface{}) *IRException {
	return &IRException{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewIRExceptionAt is like NewIRException but records a source position.
func NewIRExceptionAt(code Code, pos Position, format string, args ...interface{}) *IRException {
	return &IRException{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// List accumulates non-fatal notes produced alongside a fatal error (for
// example related-location context) for the CLI to render together.
type List struct {
	items []Diagnostic
}

// Add appends a diagnostic to the list.
func (l *List) Add(d Diagnostic) { l.items = append(l.items, d) }

// Items returns all accumulated diagnostics in order.
func (l *List) Items() []Diagnostic { return l.items }

// Len reports how many diagnostics have been accumulated.
func (l *List) Len() int { return len(l.items) }
