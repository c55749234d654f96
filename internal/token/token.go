// Package token defines the lexical tokens produced by the lexer, grounded
// on the teacher's yparse/token.go Token shape but extended with a Column
// field (spec §3: "Token. (kind, lexeme, line, column)").
package token

import (
	"fmt"

	"github.com/OmidArdestani/RTMC-Framework/internal/srcpos"
)

// Kind classifies a token.
type Kind int

const (
	Invalid Kind = iota
	EOF

	// Literals
	IntLit
	FloatLit
	CharLit
	StringLit
	BoolLit

	Ident

	// Keywords
	KwIf
	KwElse
	KwWhile
	KwFor
	KwBreak
	KwContinue
	KwReturn
	KwInt
	KwFloat
	KwChar
	KwBool
	KwVoid
	KwStruct
	KwUnion
	KwConst
	KwStatic
	KwTrue
	KwFalse
	KwSizeof
	KwMessage
	KwImport

	// Punctuation / operators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semicolon
	Comma
	Colon
	Dot
	Arrow

	Assign
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	AmpAssign
	PipeAssign
	CaretAssign
	ShlAssign
	ShrAssign

	LogOr
	LogAnd
	Pipe
	Caret
	Amp

	Eq
	Ne
	Lt
	Le
	Gt
	Ge

	Shl
	Shr

	Plus
	Minus
	Star
	Slash
	Percent

	Bang
	Tilde
	Incr
	Decr
)

// keywords is the reserved-keyword set from spec §4.2, excluding the
// RTOS/hardware intrinsic names (§6), which lex as ordinary identifiers and
// are recognized later by name during codegen lowering.
var keywords = map[string]Kind{
	"if": KwIf, "else": KwElse, "while": KwWhile, "for": KwFor,
	"break": KwBreak, "continue": KwContinue, "return": KwReturn,
	"int": KwInt, "float": KwFloat, "char": KwChar, "bool": KwBool, "void": KwVoid,
	"struct": KwStruct, "union": KwUnion, "const": KwConst, "static": KwStatic,
	"true": KwTrue, "false": KwFalse, "sizeof": KwSizeof,
	"message": KwMessage, "import": KwImport,
}

// LookupKeyword returns the keyword Kind for name, and false if name is an
// ordinary identifier.
func LookupKeyword(name string) (Kind, bool) {
	k, ok := keywords[name]
	return k, ok
}

// Token is a single lexical token: (kind, lexeme, line, column).
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    srcpos.Pos

	// Decoded literal values, populated by the lexer for the corresponding
	// literal Kind; zero otherwise.
	IntValue   int64
	FloatValue float64
	BoolValue  bool
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Pos)
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

var kindNames = map[Kind]string{
	Invalid: "INVALID", EOF: "EOF",
	IntLit: "INT_LIT", FloatLit: "FLOAT_LIT", CharLit: "CHAR_LIT",
	StringLit: "STRING_LIT", BoolLit: "BOOL_LIT", Ident: "IDENT",
	KwIf: "if", KwElse: "else", KwWhile: "while", KwFor: "for",
	KwBreak: "break", KwContinue: "continue", KwReturn: "return",
	KwInt: "int", KwFloat: "float", KwChar: "char", KwBool: "bool", KwVoid: "void",
	KwStruct: "struct", KwUnion: "union", KwConst: "const", KwStatic: "static",
	KwTrue: "true", KwFalse: "false", KwSizeof: "sizeof",
	KwMessage: "message", KwImport: "import",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", Semicolon: ";", Comma: ",", Colon: ":",
	Dot: ".", Arrow: "->",
	Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=",
	SlashAssign: "/=", PercentAssign: "%=", AmpAssign: "&=", PipeAssign: "|=",
	CaretAssign: "^=", ShlAssign: "<<=", ShrAssign: ">>=",
	LogOr: "||", LogAnd: "&&", Pipe: "|", Caret: "^", Amp: "&",
	Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	Shl: "<<", Shr: ">>",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Bang: "!", Tilde: "~", Incr: "++", Decr: "--",
}
