package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/lexer"
)

func parseSrc(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, lexErr := lexer.Lex("t.rtmc", src)
	require.Nil(t, lexErr, "unexpected lex error: %v", lexErr)
	prog, parseErr := Parse("t.rtmc", toks)
	require.Nil(t, parseErr, "unexpected parse error: %v", parseErr)
	return prog
}

func TestParseGlobalVarDecl(t *testing.T) {
	prog := parseSrc(t, "const int limit = 10;")
	require.Len(t, prog.Decls, 1)
	d, ok := prog.Decls[0].(*ast.GlobalVarDecl)
	require.True(t, ok)
	assert.Equal(t, "limit", d.Name)
	assert.True(t, d.IsConst)
	require.NotNil(t, d.Init)
}

func TestParseFuncDecl(t *testing.T) {
	prog := parseSrc(t, `int add(int a, int b) { return a + b; }`)
	require.Len(t, prog.Decls, 1)
	f, ok := prog.Decls[0].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "add", f.Name)
	require.Len(t, f.Params, 2)
	assert.Equal(t, "a", f.Params[0].Name)
	require.Len(t, f.Body.Stmts, 1)
	ret, ok := f.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, bin.Op)
}

// Scenario-style struct with a bit-field packed into a 32-bit storage unit.
func TestParseStructWithBitFields(t *testing.T) {
	prog := parseSrc(t, `struct Flags {
		int enabled : 1;
		int mode : 3;
		int reserved : 28;
	};`)
	require.Len(t, prog.Decls, 1)
	s, ok := prog.Decls[0].(*ast.AggregateDecl)
	require.True(t, ok)
	assert.False(t, s.IsUnion)
	assert.Equal(t, "Flags", s.Name)
	require.Len(t, s.Fields, 3)
	assert.True(t, s.Fields[0].HasBitWidth)
	assert.Equal(t, 1, s.Fields[0].BitWidth)
	assert.Equal(t, 3, s.Fields[1].BitWidth)
	assert.Equal(t, 28, s.Fields[2].BitWidth)
}

// Anonymous nested struct/union group hoists its fields into the parent.
func TestParseAnonymousNestedUnion(t *testing.T) {
	prog := parseSrc(t, `struct Packet {
		int kind;
		union {
			int asInt;
			float asFloat;
		};
	};`)
	s := prog.Decls[0].(*ast.AggregateDecl)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "kind", s.Fields[0].Name)
	assert.Equal(t, "", s.Fields[1].Name)
	require.NotNil(t, s.Fields[1].Nested)
	assert.True(t, s.Fields[1].Nested.IsUnion)
	require.Len(t, s.Fields[1].Nested.Fields, 2)
}

func TestParseMessageDecl(t *testing.T) {
	prog := parseSrc(t, `message<int> events;`)
	m, ok := prog.Decls[0].(*ast.MessageDecl)
	require.True(t, ok)
	assert.Equal(t, "events", m.Name)
	assert.True(t, m.ElemType.IsPointer() == false)
}

func TestParseSendAndRecv(t *testing.T) {
	prog := parseSrc(t, `message<int> events;
	void producer() {
		events.send(42);
	}
	int consumer() {
		return events.recv(timeout: 100);
	}`)
	require.Len(t, prog.Decls, 3)
	producer := prog.Decls[1].(*ast.FuncDecl)
	exprStmt := producer.Body.Stmts[0].(*ast.ExprStmt)
	send, ok := exprStmt.X.(*ast.SendExpr)
	require.True(t, ok)
	lit, ok := send.Value.(*ast.LiteralExpr)
	require.True(t, ok)
	assert.EqualValues(t, 42, lit.IntVal)

	consumer := prog.Decls[2].(*ast.FuncDecl)
	ret := consumer.Body.Stmts[0].(*ast.ReturnStmt)
	recv, ok := ret.Value.(*ast.RecvExpr)
	require.True(t, ok)
	require.NotNil(t, recv.Timeout)
}

func TestParseRecvBlockingForm(t *testing.T) {
	prog := parseSrc(t, `message<int> events;
	int consumer() {
		return events.recv();
	}`)
	consumer := prog.Decls[1].(*ast.FuncDecl)
	ret := consumer.Body.Stmts[0].(*ast.ReturnStmt)
	recv, ok := ret.Value.(*ast.RecvExpr)
	require.True(t, ok)
	assert.Nil(t, recv.Timeout)
}

// The cast-vs-parenthesized-expression and bare-identifier-as-type
// disambiguations both depend on the typeNames table populated while
// parsing the preceding struct declaration.
func TestParseCastVsParenExprAndBareStructName(t *testing.T) {
	prog := parseSrc(t, `struct Point { int x; int y; };
	int useIt() {
		int raw = 5;
		float f = (float) raw;
		int paren = (raw + 1);
		Point p;
		return paren;
	}`)
	fn := prog.Decls[1].(*ast.FuncDecl)
	castDecl := fn.Body.Stmts[1].(*ast.LocalDecl)
	cast, ok := castDecl.Init.(*ast.CastExpr)
	require.True(t, ok)
	assert.True(t, cast.TargetType.IsStruct() == false)

	parenDecl := fn.Body.Stmts[2].(*ast.LocalDecl)
	_, ok = parenDecl.Init.(*ast.BinaryExpr)
	require.True(t, ok, "parenthesized arithmetic expression must not be mistaken for a cast")

	pDecl := fn.Body.Stmts[3].(*ast.LocalDecl)
	assert.True(t, pDecl.Type.IsStruct())
	assert.Equal(t, "Point", pDecl.Type.Name)
}

func TestParseSizeofTypeAndExpr(t *testing.T) {
	prog := parseSrc(t, `struct Point { int x; int y; };
	int useIt() {
		int a = sizeof(Point);
		int b = sizeof(a);
		return a + b;
	}`)
	fn := prog.Decls[1].(*ast.FuncDecl)
	aDecl := fn.Body.Stmts[0].(*ast.LocalDecl)
	sizeofType, ok := aDecl.Init.(*ast.SizeofTypeExpr)
	require.True(t, ok)
	assert.Equal(t, "Point", sizeofType.TargetType.Name)

	bDecl := fn.Body.Stmts[1].(*ast.LocalDecl)
	unary, ok := bDecl.Init.(*ast.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.UnarySizeofExpr, unary.Op)
}

func TestParsePrecedenceOfArithmeticAndLogical(t *testing.T) {
	prog := parseSrc(t, `int f() { return 1 + 2 * 3 == 7 && 1 < 2; }`)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	top, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpLogAnd, top.Op)
	eq, ok := top.Left.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpEq, eq.Op)
	add, ok := eq.Left.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, add.Op)
	mul, ok := add.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpMul, mul.Op)
}

func TestParseCompoundAssignIsRightAssociative(t *testing.T) {
	prog := parseSrc(t, `int f() { int x; int y; x += y += 1; }`)
	fn := prog.Decls[0].(*ast.FuncDecl)
	stmt := fn.Body.Stmts[2].(*ast.ExprStmt)
	outer, ok := stmt.X.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAddAssign, outer.Op)
	inner, ok := outer.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAddAssign, inner.Op)
}

func TestParseForLoop(t *testing.T) {
	prog := parseSrc(t, `int f() {
		for (int i = 0; i < 10; i++) {
			continue;
		}
	}`)
	fn := prog.Decls[0].(*ast.FuncDecl)
	forStmt, ok := fn.Body.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	init, ok := forStmt.Init.(*ast.LocalDecl)
	require.True(t, ok)
	assert.Equal(t, "i", init.Name)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Post)
}

func TestParseArrayDeclAndInitializer(t *testing.T) {
	prog := parseSrc(t, `int table[4] = { 1, 2, 3, 4 };`)
	d := prog.Decls[0].(*ast.GlobalVarDecl)
	assert.Equal(t, 4, d.ArrayLen)
	init, ok := d.Init.(*ast.ArrayInitExpr)
	require.True(t, ok)
	require.Len(t, init.Elems, 4)
}

func TestParseInferredArraySize(t *testing.T) {
	prog := parseSrc(t, `int table[] = { 1, 2, 3 };`)
	d := prog.Decls[0].(*ast.GlobalVarDecl)
	assert.Equal(t, -1, d.ArrayLen)
}

func TestParsePointerTypeAndDeref(t *testing.T) {
	prog := parseSrc(t, `int f(int* p) { return *p; }`)
	fn := prog.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.Params, 1)
	assert.True(t, fn.Params[0].Type.IsPointer())
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	un, ok := ret.Value.(*ast.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.UnaryDeref, un.Op)
}

func TestParseFieldAndArrowAccess(t *testing.T) {
	prog := parseSrc(t, `struct Point { int x; };
	int f(Point* p, Point q) {
		return p->x + q.x;
	}`)
	fn := prog.Decls[1].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	add := ret.Value.(*ast.BinaryExpr)
	arrow := add.Left.(*ast.FieldExpr)
	assert.True(t, arrow.IsArrow)
	dot := add.Right.(*ast.FieldExpr)
	assert.False(t, dot.IsArrow)
}

func TestParseUnexpectedTokenIsFatal(t *testing.T) {
	toks, lexErr := lexer.Lex("t.rtmc", "int x = ;")
	require.Nil(t, lexErr)
	_, err := Parse("t.rtmc", toks)
	require.NotNil(t, err)
	assert.Equal(t, "ParseUnexpectedToken", string(err.Kind))
}
