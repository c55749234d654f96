package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/lexer"
	"github.com/OmidArdestani/RTMC-Framework/internal/parser"
)

func parseSrc(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, lexErr := lexer.Lex("t.rtmc", src)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse("t.rtmc", toks)
	require.Nil(t, parseErr)
	return prog
}

func firstReturnValue(t *testing.T, prog *ast.Program) ast.Expr {
	t.Helper()
	fn, ok := prog.Decls[0].(*ast.FuncDecl)
	require.True(t, ok)
	for _, s := range fn.Body.Stmts {
		if ret, ok := s.(*ast.ReturnStmt); ok {
			return ret.Value
		}
	}
	t.Fatal("no return statement found")
	return nil
}

// Testable property 7: "2+3*4 folds to 14".
func TestFoldArithmetic(t *testing.T) {
	prog := parseSrc(t, `int f() { return 2+3*4; }`)
	Run(prog)
	lit, ok := firstReturnValue(t, prog).(*ast.LiteralExpr)
	require.True(t, ok)
	require.Equal(t, ast.LitInt, lit.Kind)
	require.EqualValues(t, 14, lit.IntVal)
}

func TestFoldComparisonAndLogical(t *testing.T) {
	prog := parseSrc(t, `int f() { return (2 < 3) && (5 == 5); }`)
	Run(prog)
	lit, ok := firstReturnValue(t, prog).(*ast.LiteralExpr)
	require.True(t, ok)
	require.Equal(t, ast.LitBool, lit.Kind)
	require.True(t, lit.BoolVal)
}

func TestFoldAlgebraicIdentities(t *testing.T) {
	prog := parseSrc(t, `int f(int x) { return (x+0)*1; }`)
	Run(prog)
	ident, ok := firstReturnValue(t, prog).(*ast.IdentExpr)
	require.True(t, ok)
	require.Equal(t, "x", ident.Name)
}

// Testable property 7: "if (false) X else Y folds to Y".
func TestDeadBranchElimination(t *testing.T) {
	prog := parseSrc(t, `int f() { if (false) { return 1; } else { return 2; } }`)
	Run(prog)
	fn := prog.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.Body.Stmts, 1)
	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	lit := ret.Value.(*ast.LiteralExpr)
	require.EqualValues(t, 2, lit.IntVal)
}

func TestDeadBranchNoElseDropsEntirely(t *testing.T) {
	prog := parseSrc(t, `int f() { if (0) { return 1; } return 2; }`)
	Run(prog)
	fn := prog.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.Body.Stmts, 2)
	block, ok := fn.Body.Stmts[0].(*ast.Block)
	require.True(t, ok)
	require.Empty(t, block.Stmts)
}

func TestWhileFalseDropped(t *testing.T) {
	prog := parseSrc(t, `int f() { while (false) { int x = 1; } return 0; }`)
	Run(prog)
	fn := prog.Decls[0].(*ast.FuncDecl)
	block, ok := fn.Body.Stmts[0].(*ast.Block)
	require.True(t, ok)
	require.Empty(t, block.Stmts)
}

func TestNonConstantLeftUnfolded(t *testing.T) {
	prog := parseSrc(t, `int f(int x) { return x + 1; }`)
	Run(prog)
	bin, ok := firstReturnValue(t, prog).(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.OpAdd, bin.Op)
}
