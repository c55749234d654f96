package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmidArdestani/RTMC-Framework/internal/token"
)

func lexAll(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := Lex("t.rtmc", src)
	require.Nil(t, err, "unexpected lex error: %v", err)
	return toks
}

func TestNumericLiterals(t *testing.T) {
	// Testable property 4: 0xFF == 255, 0x0 == 0, 0x7FFFFFFF == 2147483647,
	// 0XABCD == 43981, true == 1, false == 0.
	cases := []struct {
		src  string
		want int64
	}{
		{"0xFF", 255},
		{"0x0", 0},
		{"0x7FFFFFFF", 2147483647},
		{"0XABCD", 43981},
	}
	for _, c := range cases {
		toks := lexAll(t, c.src)
		require.Len(t, toks, 2) // literal + EOF
		assert.Equal(t, token.IntLit, toks[0].Kind)
		assert.Equal(t, c.want, toks[0].IntValue)
	}
}

func TestBoolLiterals(t *testing.T) {
	toks := lexAll(t, "true false")
	require.Len(t, toks, 3)
	assert.Equal(t, token.BoolLit, toks[0].Kind)
	assert.True(t, toks[0].BoolValue)
	assert.Equal(t, token.BoolLit, toks[1].Kind)
	assert.False(t, toks[1].BoolValue)
}

func TestFloatLiteral(t *testing.T) {
	toks := lexAll(t, "3.14 2.5e10 1.0e-3")
	require.Len(t, toks, 4)
	for _, tok := range toks[:3] {
		assert.Equal(t, token.FloatLit, tok.Kind)
	}
	assert.InDelta(t, 3.14, toks[0].FloatValue, 1e-9)
	assert.InDelta(t, 2.5e10, toks[1].FloatValue, 1)
	assert.InDelta(t, 1.0e-3, toks[2].FloatValue, 1e-9)
}

func TestStringAndCharEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb" '\t' '\x41'`)
	require.Len(t, toks, 4)
	assert.Equal(t, token.StringLit, toks[0].Kind)
	assert.Equal(t, "a\nb", toks[0].Lexeme)
	assert.Equal(t, token.CharLit, toks[1].Kind)
	assert.Equal(t, int64('\t'), toks[1].IntValue)
	assert.Equal(t, token.CharLit, toks[2].Kind)
	assert.Equal(t, int64('A'), toks[2].IntValue)
}

func TestUnterminatedStringIsFatal(t *testing.T) {
	_, err := Lex("t.rtmc", `"never closed`)
	require.NotNil(t, err)
	assert.Equal(t, "LexUnterminatedLiteral", string(err.Kind))
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := lexAll(t, "int x = while1;")
	require.Len(t, toks, 6)
	assert.Equal(t, token.KwInt, toks[0].Kind)
	assert.Equal(t, token.Ident, toks[1].Kind)
	assert.Equal(t, "x", toks[1].Lexeme)
	assert.Equal(t, token.Assign, toks[2].Kind)
	assert.Equal(t, token.Ident, toks[3].Kind, "while1 is an identifier, not the keyword while")
	assert.Equal(t, "while1", toks[3].Lexeme)
}

func TestCommentsSkipped(t *testing.T) {
	toks := lexAll(t, "int x; // trailing comment\n/* block\ncomment */ int y;")
	var kinds []token.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.KwInt, token.Ident, token.Semicolon,
		token.KwInt, token.Ident, token.Semicolon,
		token.EOF,
	}, kinds)
}

func TestLexerRoundTrip(t *testing.T) {
	// Testable property 1: for every token produced, re-lexing its lexeme
	// yields the same token kind.
	src := `if else while for break continue return int float char bool void
		struct union const static true false sizeof message import
		( ) { } [ ] ; , : . -> = += -= *= /= %= &= |= ^= <<= >>=
		|| && | ^ & == != < <= > >= << >> + - * / % ! ~ ++ --
		x 123 0xFF 1.5 "s" 'c'`
	toks := lexAll(t, src)
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			continue
		}
		reToks := lexAll(t, tok.Lexeme)
		require.GreaterOrEqual(t, len(reToks), 1)
		assert.Equal(t, tok.Kind, reToks[0].Kind, "re-lexing lexeme %q changed kind", tok.Lexeme)
	}
}

func TestOperatorMaximalMunch(t *testing.T) {
	toks := lexAll(t, "a <<= b >>= c")
	require.Len(t, toks, 6)
	assert.Equal(t, token.ShlAssign, toks[1].Kind)
	assert.Equal(t, token.ShrAssign, toks[3].Kind)
}

func TestBadCharacter(t *testing.T) {
	_, err := Lex("t.rtmc", "int x = $;")
	require.NotNil(t, err)
	assert.Equal(t, "LexBadChar", string(err.Kind))
}
