package codegen

import (
	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/diag"
	"github.com/OmidArdestani/RTMC-Framework/internal/sema"
)

var binOpcode = map[ast.BinaryOp]Opcode{
	ast.OpAdd: OpAdd, ast.OpSub: OpSub, ast.OpMul: OpMul, ast.OpDiv: OpDiv, ast.OpMod: OpMod,
	ast.OpBitAnd: OpAnd, ast.OpBitOr: OpOr, ast.OpBitXor: OpXor, ast.OpShl: OpShl, ast.OpShr: OpShr,
	ast.OpEq: OpEq, ast.OpNe: OpNeq, ast.OpLt: OpLt, ast.OpLe: OpLte, ast.OpGt: OpGt, ast.OpGe: OpGte,
}

// genValue compiles e so that exactly one value is left on the operand
// stack (see codegen.go's package doc for the stack convention).
func (g *Generator) genValue(expr ast.Expr) *diag.Error {
	loc := expr.GetLoc()
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		g.em.Emit(loc, OpLoadConst, int64(g.internConstExpr(e)))
		return nil

	case *ast.IdentExpr:
		sym := g.res.Idents[e]
		g.em.Emit(loc, OpLoadVar, symScope(sym), int64(symAddr(sym)))
		return nil

	case *ast.BinaryExpr:
		return g.genBinary(e)

	case *ast.UnaryExpr:
		return g.genUnary(e)

	case *ast.CastExpr:
		return g.genValue(e.Operand) // a cast is a compile-time reinterpretation only

	case *ast.CallExpr:
		return g.genCall(e)

	case *ast.IndexExpr:
		return g.genIndexLoad(e)

	case *ast.FieldExpr:
		return g.genFieldLoad(e)

	case *ast.SizeofTypeExpr:
		g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(int64(e.TargetType.Size(g.res)))))
		return nil

	case *ast.SendExpr:
		return g.genSend(e)

	case *ast.RecvExpr:
		return g.genRecv(e)
	}
	return diag.New(diag.TypeMismatch, g.file, loc.Line, loc.Column, "codegen: unsupported expression")
}

func symScope(sym *sema.Symbol) int64 {
	if sym.Kind == sema.SymGlobal {
		return scopeGlobal
	}
	return scopeFrame
}

func symAddr(sym *sema.Symbol) int {
	if sym.Kind == sema.SymGlobal {
		return sym.Address
	}
	return sym.Offset
}

// genAddress pushes the address of an lvalue expression, for use as the
// base operand of a struct/array/pointer access or as the operand of &e.
func (g *Generator) genAddress(expr ast.Expr) *diag.Error {
	loc := expr.GetLoc()
	switch e := expr.(type) {
	case *ast.IdentExpr:
		sym := g.res.Idents[e]
		g.em.Emit(loc, OpLoadAddr, symScope(sym), int64(symAddr(sym)))
		return nil

	case *ast.FieldExpr:
		if err := g.genFieldBase(e); err != nil {
			return err
		}
		layout, _ := g.res.Layout(g.fieldObjectTypeName(e))
		fd, _ := layout.Field(e.Field)
		g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(int64(fd.ByteOffset))))
		g.em.Emit(loc, OpAdd)
		return nil

	case *ast.IndexExpr:
		if err := g.genIndexBase(e); err != nil {
			return err
		}
		if err := g.genValue(e.Index); err != nil {
			return err
		}
		elemSize := e.GetType().Size(g.res)
		g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(int64(elemSize))))
		g.em.Emit(loc, OpMul)
		g.em.Emit(loc, OpAdd)
		return nil

	case *ast.UnaryExpr:
		if e.Op == ast.UnaryDeref {
			return g.genValue(e.Operand) // &*p == p
		}
	}
	return diag.New(diag.TypeMismatch, g.file, loc.Line, loc.Column, "codegen: expression is not an lvalue")
}

func (g *Generator) fieldObjectTypeName(e *ast.FieldExpr) string {
	t := e.Object.GetType()
	if e.IsArrow {
		t = t.Elem
	}
	return t.Name
}

// genFieldBase pushes the base address a field access applies its byte
// offset to: the object's address for '.', or the pointer's value for '->'.
func (g *Generator) genFieldBase(e *ast.FieldExpr) *diag.Error {
	if e.IsArrow {
		return g.genValue(e.Object)
	}
	return g.genAddress(e.Object)
}

// genIndexBase pushes the base address an index applies its offset to: the
// array's address for a true array type, or the pointer's value itself.
func (g *Generator) genIndexBase(e *ast.IndexExpr) *diag.Error {
	if e.Array.GetType().IsPointer() {
		return g.genValue(e.Array)
	}
	return g.genAddress(e.Array)
}

func (g *Generator) genFieldLoad(e *ast.FieldExpr) *diag.Error {
	if err := g.genFieldBase(e); err != nil {
		return err
	}
	layout, _ := g.res.Layout(g.fieldObjectTypeName(e))
	fd, _ := layout.Field(e.Field)
	loc := e.GetLoc()
	if fd.IsBitField {
		g.em.Emit(loc, OpLoadStructMemberBit, int64(fd.ByteOffset), int64(fd.BitOffset), int64(fd.BitWidth))
	} else {
		g.em.Emit(loc, OpLoadStructMember, int64(fd.ByteOffset))
	}
	return nil
}

func (g *Generator) genIndexLoad(e *ast.IndexExpr) *diag.Error {
	if err := g.genIndexBase(e); err != nil {
		return err
	}
	if err := g.genValue(e.Index); err != nil {
		return err
	}
	elemSize := e.GetType().Size(g.res)
	g.em.Emit(e.GetLoc(), OpLoadArrayElem, int64(elemSize))
	return nil
}

func (g *Generator) genBinary(e *ast.BinaryExpr) *diag.Error {
	if e.Op.IsAssign() {
		return g.genAssign(e)
	}

	loc := e.GetLoc()
	if e.Op == ast.OpLogAnd || e.Op == ast.OpLogOr {
		if err := g.genValue(e.Left); err != nil {
			return err
		}
		var shortCircuit patchList
		if e.Op == ast.OpLogAnd {
			g.em.EmitPlaceholder(loc, OpJumpIfFalse, 0, &shortCircuit)
		} else {
			g.em.EmitPlaceholder(loc, OpJumpIfTrue, 0, &shortCircuit)
		}
		if err := g.genValue(e.Right); err != nil {
			return err
		}
		var end patchList
		g.em.EmitPlaceholder(loc, OpJump, 0, &end)
		g.em.PatchAllTo(&shortCircuit, int64(g.em.Here()))
		g.em.Emit(loc, OpLoadConst, int64(g.constPool.internBool(e.Op == ast.OpLogOr)))
		g.em.PatchAllTo(&end, int64(g.em.Here()))
		return nil
	}

	if err := g.genValue(e.Left); err != nil {
		return err
	}
	if err := g.genValue(e.Right); err != nil {
		return err
	}
	g.em.Emit(loc, binOpcode[e.Op])
	return nil
}

// genAssign handles both "lhs = rhs" and compound "lhs op= rhs", leaving
// the assigned value on the stack (assignment is itself a value per the
// grammar's precedence table). A compound assignment to a field/array
// element re-evaluates the base/index sub-expressions once for the load
// and once for the store rather than duplicating them on the stack; a
// side-effecting index expression in that position is a documented
// limitation (see DESIGN.md) rather than a further stack-shuffle opcode.
func (g *Generator) genAssign(e *ast.BinaryExpr) *diag.Error {
	loc := e.GetLoc()
	computeValue := func() *diag.Error {
		if e.Op == ast.OpAssign {
			return g.genValue(e.Right)
		}
		if err := g.genValue(e.Left); err != nil {
			return err
		}
		if err := g.genValue(e.Right); err != nil {
			return err
		}
		g.em.Emit(loc, binOpcode[e.Op.Underlying()])
		return nil
	}

	switch lhs := e.Left.(type) {
	case *ast.IdentExpr:
		if err := computeValue(); err != nil {
			return err
		}
		g.em.Emit(loc, OpDup)
		sym := g.res.Idents[lhs]
		g.em.Emit(loc, OpStoreVar, symScope(sym), int64(symAddr(sym)))
		return nil

	case *ast.FieldExpr:
		if err := g.genFieldBase(lhs); err != nil {
			return err
		}
		if err := computeValue(); err != nil {
			return err
		}
		g.em.Emit(loc, OpDup)
		layout, _ := g.res.Layout(g.fieldObjectTypeName(lhs))
		fd, _ := layout.Field(lhs.Field)
		if fd.IsBitField {
			g.em.Emit(loc, OpStoreStructMemberBit, int64(fd.ByteOffset), int64(fd.BitOffset), int64(fd.BitWidth))
		} else {
			g.em.Emit(loc, OpStoreStructMember, int64(fd.ByteOffset))
		}
		return nil

	case *ast.IndexExpr:
		if err := g.genIndexBase(lhs); err != nil {
			return err
		}
		if err := g.genValue(lhs.Index); err != nil {
			return err
		}
		if err := computeValue(); err != nil {
			return err
		}
		g.em.Emit(loc, OpDup)
		elemSize := lhs.GetType().Size(g.res)
		g.em.Emit(loc, OpStoreArrayElem, int64(elemSize))
		return nil

	case *ast.UnaryExpr: // deref: *p = v
		if err := g.genValue(lhs.Operand); err != nil {
			return err
		}
		if err := computeValue(); err != nil {
			return err
		}
		g.em.Emit(loc, OpDup)
		g.em.Emit(loc, OpStoreDeref, int64(lhs.GetType().Size(g.res)))
		return nil
	}
	return diag.New(diag.TypeMismatch, g.file, loc.Line, loc.Column, "codegen: left-hand side is not assignable")
}

func (g *Generator) genUnary(e *ast.UnaryExpr) *diag.Error {
	loc := e.GetLoc()
	switch e.Op {
	case ast.UnaryAddr:
		return g.genAddress(e.Operand)

	case ast.UnaryDeref:
		if err := g.genValue(e.Operand); err != nil {
			return err
		}
		g.em.Emit(loc, OpLoadDeref, int64(e.GetType().Size(g.res)))
		return nil

	case ast.UnarySizeofExpr:
		g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(int64(e.Operand.GetType().Size(g.res)))))
		return nil

	case ast.UnaryNeg, ast.UnaryPlus, ast.UnaryLogNot, ast.UnaryBitNot:
		if e.Op == ast.UnaryNeg {
			// 0 - x, since there's no dedicated NEG opcode in spec §6's list:
			// the 0 goes below x so SUB computes left minus right.
			g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(0)))
		}
		if err := g.genValue(e.Operand); err != nil {
			return err
		}
		switch e.Op {
		case ast.UnaryNeg:
			g.em.Emit(loc, OpSub)
		case ast.UnaryLogNot:
			g.em.Emit(loc, OpLoadConst, int64(g.constPool.internBool(false)))
			g.em.Emit(loc, OpEq)
		case ast.UnaryBitNot:
			g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(-1)))
			g.em.Emit(loc, OpXor)
		}
		return nil

	case ast.UnaryPreIncr, ast.UnaryPreDecr, ast.UnaryPostIncr, ast.UnaryPostDecr:
		return g.genIncDec(e)
	}
	return diag.New(diag.TypeMismatch, g.file, loc.Line, loc.Column, "codegen: unsupported unary operator")
}

// genIncDec lowers ++/--. Plain-identifier operands get exact pre/post
// semantics via a two-stack-slot trick (no SWAP/DUP2 needed); field/index/
// deref operands are lowered identically to their pre-inc/dec form even in
// post position, since spec §6's opcode set has no stack SWAP primitive to
// reorder a duplicated base out from under the new value. This only differs
// from C semantics when a post-increment on a struct field or array
// element is used as a sub-expression value rather than a bare statement;
// see DESIGN.md.
func (g *Generator) genIncDec(e *ast.UnaryExpr) *diag.Error {
	loc := e.GetLoc()
	delta := int64(1)
	if e.Op == ast.UnaryPreDecr || e.Op == ast.UnaryPostDecr {
		delta = -1
	}
	isPost := e.Op == ast.UnaryPostIncr || e.Op == ast.UnaryPostDecr

	if id, ok := e.Operand.(*ast.IdentExpr); ok {
		sym := g.res.Idents[id]
		g.em.Emit(loc, OpLoadVar, symScope(sym), int64(symAddr(sym)))
		if isPost {
			g.em.Emit(loc, OpDup)
		}
		g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(delta)))
		g.em.Emit(loc, OpAdd)
		if !isPost {
			g.em.Emit(loc, OpDup)
		}
		g.em.Emit(loc, OpStoreVar, symScope(sym), int64(symAddr(sym)))
		return nil
	}

	// Non-identifier lvalue: always returns the new value (see doc comment).
	synthAssign := &ast.BinaryExpr{Base: ast.Base{Loc: loc}, Op: ast.OpAddAssign, Left: e.Operand,
		Right: &ast.LiteralExpr{Base: ast.Base{Loc: loc}, Kind: ast.LitInt, IntVal: delta}}
	if delta < 0 {
		synthAssign.Op = ast.OpSubAssign
		synthAssign.Right = &ast.LiteralExpr{Base: ast.Base{Loc: loc}, Kind: ast.LitInt, IntVal: 1}
	}
	return g.genAssign(synthAssign)
}

func (g *Generator) genSend(e *ast.SendExpr) *diag.Error {
	ch := e.Channel.(*ast.IdentExpr)
	msg := g.res.Messages[g.res.MessageIndex[ch.Name]]
	if err := g.genValue(e.Value); err != nil {
		return err
	}
	g.em.Emit(e.GetLoc(), OpMsgSend, int64(msg.ID))
	g.em.Emit(e.GetLoc(), OpLoadConst, int64(g.constPool.internInt(0)))
	return nil
}

func (g *Generator) genRecv(e *ast.RecvExpr) *diag.Error {
	ch := e.Channel.(*ast.IdentExpr)
	msg := g.res.Messages[g.res.MessageIndex[ch.Name]]
	loc := e.GetLoc()
	if e.Timeout != nil {
		if err := g.genValue(e.Timeout); err != nil {
			return err
		}
	} else {
		g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(-1))) // blocking
	}
	g.em.Emit(loc, OpMsgRecv, int64(msg.ID))
	return nil
}
