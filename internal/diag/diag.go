// Package diag defines the stable diagnostic vocabulary shared by every
// compiler pass (spec §7, "Error Handling Design"). It follows the
// error-accumulation idiom of the teacher's own SymbolTable.Errors /
// Analyzer.error(), simplified to the "first error aborts the pass" policy
// spec.md mandates: a pass returns as soon as one *Error is produced.
package diag

import "fmt"

// Kind is a stable identifier usable in tests, per spec §7.
type Kind string

const (
	IncludeNotFound        Kind = "IncludeNotFound"
	CyclicMacro            Kind = "CyclicMacro"
	MalformedDirective     Kind = "MalformedDirective"
	LexUnterminatedLiteral Kind = "LexUnterminatedLiteral"
	LexBadNumber           Kind = "LexBadNumber"
	LexBadChar             Kind = "LexBadChar"
	ParseUnexpectedToken   Kind = "ParseUnexpectedToken"
	UndefinedSymbol        Kind = "UndefinedSymbol"
	DuplicateDefinition    Kind = "DuplicateDefinition"
	TypeMismatch           Kind = "TypeMismatch"
	FieldNotFound          Kind = "FieldNotFound"
	ConstAssignment        Kind = "ConstAssignment"
	NonLValueAssignment    Kind = "NonLValueAssignment"
	BadBitFieldWidth       Kind = "BadBitFieldWidth"
	CircularType           Kind = "CircularType"
	ArraySizeNotConstant   Kind = "ArraySizeNotConstant"
	ArityMismatch          Kind = "ArityMismatch"
	CodegenBranchTooFar    Kind = "CodegenBranchTooFar"
	IOError                Kind = "IOError"
)

// ExitCode maps a diagnostic's originating pass to the exit code spec §6
// assigns to it. IOError and any unlisted kind map to 6; no kind maps to 0.
func (k Kind) ExitCode() int {
	switch k {
	case IncludeNotFound, CyclicMacro, MalformedDirective:
		return 1
	case LexUnterminatedLiteral, LexBadNumber, LexBadChar:
		return 2
	case ParseUnexpectedToken:
		return 3
	case UndefinedSymbol, DuplicateDefinition, TypeMismatch, FieldNotFound,
		ConstAssignment, NonLValueAssignment, BadBitFieldWidth, CircularType,
		ArraySizeNotConstant, ArityMismatch:
		return 4
	case CodegenBranchTooFar:
		return 5
	case IOError:
		return 6
	default:
		return 6
	}
}

// Error is the uniform diagnostic shape: (kind, file, line, column, message).
type Error struct {
	Kind    Kind
	File    string
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Kind, e.Message)
}

// New builds an *Error, the sole constructor every pass should use so the
// five-tuple shape stays uniform.
func New(kind Kind, file string, line, column int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		File:    file,
		Line:    line,
		Column:  column,
		Message: fmt.Sprintf(format, args...),
	}
}
