package sema

import (
	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/diag"
	"github.com/OmidArdestani/RTMC-Framework/internal/intrinsics"
	"github.com/OmidArdestani/RTMC-Framework/internal/types"
)

// assignable reports whether a value of type src may be stored into a
// location of type dst, per spec §4.4's coercion rules: char/int/float mix
// implicitly, bool/int are interchangeable, pointers require an exact
// (or void*) match, arrays require equal length and assignable elements,
// and structs/unions require an exact name match.
func assignable(dst, src *types.Type) bool {
	if dst == nil || src == nil {
		return false
	}
	if dst.IsNumeric() && src.IsNumeric() {
		return true
	}
	if dst.Kind != src.Kind {
		return false
	}
	switch dst.Kind {
	case types.Void:
		return true
	case types.Pointer:
		if dst.Elem.Kind == types.Void || src.Elem.Kind == types.Void {
			return true
		}
		return dst.Elem.Equal(src.Elem)
	case types.Array:
		return dst.Len == src.Len && assignable(dst.Elem, src.Elem)
	case types.Struct, types.Union:
		return dst.Name == src.Name
	case types.MessageOf:
		return assignable(dst.Elem, src.Elem)
	default:
		return true
	}
}

// isLValue reports whether e may appear on the left of an assignment.
func isLValue(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.IdentExpr, *ast.FieldExpr, *ast.IndexExpr:
		return true
	case *ast.UnaryExpr:
		return x.Op == ast.UnaryDeref
	default:
		return false
	}
}

func (a *analyzer) typeCheckExpr(expr ast.Expr) (*types.Type, *diag.Error) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		return a.typeCheckLiteral(e)
	case *ast.IdentExpr:
		return a.typeCheckIdent(e)
	case *ast.BinaryExpr:
		return a.typeCheckBinary(e)
	case *ast.UnaryExpr:
		return a.typeCheckUnary(e)
	case *ast.CastExpr:
		if _, err := a.typeCheckExpr(e.Operand); err != nil {
			return nil, err
		}
		if err := a.ensureType(e.TargetType, e.Loc); err != nil {
			return nil, err
		}
		e.SetType(e.TargetType)
		return e.TargetType, nil
	case *ast.CallExpr:
		return a.typeCheckCall(e)
	case *ast.IndexExpr:
		return a.typeCheckIndex(e)
	case *ast.FieldExpr:
		return a.typeCheckField(e)
	case *ast.SizeofTypeExpr:
		if err := a.ensureType(e.TargetType, e.Loc); err != nil {
			return nil, err
		}
		t := types.Primitive(types.Int)
		e.SetType(t)
		return t, nil
	case *ast.ArrayInitExpr:
		var elemType *types.Type
		for _, el := range e.Elems {
			t, err := a.typeCheckExpr(el)
			if err != nil {
				return nil, err
			}
			if elemType == nil {
				elemType = t
			}
		}
		arrT := types.ArrayOf(elemType, len(e.Elems))
		e.SetType(arrT)
		return arrT, nil
	case *ast.SendExpr:
		return a.typeCheckSend(e)
	case *ast.RecvExpr:
		return a.typeCheckRecv(e)
	}
	return nil, diag.New(diag.TypeMismatch, a.file, expr.GetLoc().Line, expr.GetLoc().Column, "unsupported expression")
}

func (a *analyzer) typeCheckLiteral(e *ast.LiteralExpr) (*types.Type, *diag.Error) {
	var t *types.Type
	switch e.Kind {
	case ast.LitInt:
		t = types.Primitive(types.Int)
	case ast.LitFloat:
		t = types.Primitive(types.Float)
	case ast.LitChar:
		t = types.Primitive(types.Char)
	case ast.LitBool:
		t = types.Primitive(types.Bool)
	case ast.LitString:
		t = types.PointerTo(types.Primitive(types.Char))
	}
	e.SetType(t)
	return t, nil
}

func (a *analyzer) typeCheckIdent(e *ast.IdentExpr) (*types.Type, *diag.Error) {
	if sym, ok := a.scopes.Lookup(e.Name); ok {
		t := sym.Type
		if sym.ArrayLen > 0 {
			t = types.ArrayOf(sym.Type, sym.ArrayLen)
		}
		e.SetType(t)
		a.resolved[e] = sym
		return t, nil
	}
	if g, ok := a.globalIdx[e.Name]; ok {
		t := g.Type
		if g.ArrayLen > 0 {
			t = types.ArrayOf(g.Type, g.ArrayLen)
		}
		e.SetType(t)
		a.resolved[e] = &Symbol{Name: g.Name, Kind: SymGlobal, Type: g.Type, IsConst: g.IsConst, ArrayLen: g.ArrayLen, Address: g.Address}
		return t, nil
	}
	return nil, diag.New(diag.UndefinedSymbol, a.file, e.Loc.Line, e.Loc.Column, "undefined identifier '%s'", e.Name)
}

// identConst reports whether e names a const symbol, for the
// ConstAssignment check.
func (a *analyzer) identConst(e ast.Expr) bool {
	id, ok := e.(*ast.IdentExpr)
	if !ok {
		return false
	}
	if sym, ok := a.scopes.Lookup(id.Name); ok {
		return sym.IsConst
	}
	if g, ok := a.globalIdx[id.Name]; ok {
		return g.IsConst
	}
	return false
}

func (a *analyzer) typeCheckBinary(e *ast.BinaryExpr) (*types.Type, *diag.Error) {
	lt, err := a.typeCheckExpr(e.Left)
	if err != nil {
		return nil, err
	}
	rt, err := a.typeCheckExpr(e.Right)
	if err != nil {
		return nil, err
	}

	if e.Op.IsAssign() {
		if !isLValue(e.Left) {
			return nil, diag.New(diag.NonLValueAssignment, a.file, e.Loc.Line, e.Loc.Column, "left-hand side is not assignable")
		}
		if a.identConst(e.Left) {
			return nil, diag.New(diag.ConstAssignment, a.file, e.Loc.Line, e.Loc.Column, "assignment to const")
		}
		if !assignable(lt, rt) {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "cannot assign %s to %s", rt, lt)
		}
		e.SetType(lt)
		return lt, nil
	}

	switch e.Op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpLogAnd, ast.OpLogOr:
		if !compatibleOperands(lt, rt) {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "type mismatch: %s vs %s", lt, rt)
		}
		t := types.Primitive(types.Bool)
		e.SetType(t)
		return t, nil
	default:
		if !compatibleOperands(lt, rt) {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "type mismatch: %s vs %s", lt, rt)
		}
		result := lt
		if lt.Kind == types.Float || rt.Kind == types.Float {
			result = types.Primitive(types.Float)
		} else if lt.IsPointer() {
			result = lt
		} else if rt.IsPointer() {
			result = rt
		}
		e.SetType(result)
		return result, nil
	}
}

// compatibleOperands accepts any pairing of numeric types, pointer-with-
// integer (pointer arithmetic), or identical pointer/aggregate types.
func compatibleOperands(a, b *types.Type) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	if a.IsPointer() && b.IsIntegral() {
		return true
	}
	if b.IsPointer() && a.IsIntegral() {
		return true
	}
	return a.Equal(b)
}

func (a *analyzer) typeCheckUnary(e *ast.UnaryExpr) (*types.Type, *diag.Error) {
	if e.Op == ast.UnarySizeofExpr {
		if _, err := a.typeCheckExpr(e.Operand); err != nil {
			return nil, err
		}
		t := types.Primitive(types.Int)
		e.SetType(t)
		return t, nil
	}

	ot, err := a.typeCheckExpr(e.Operand)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case ast.UnaryAddr:
		t := types.PointerTo(ot)
		e.SetType(t)
		return t, nil
	case ast.UnaryDeref:
		if !ot.IsPointer() {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "cannot dereference non-pointer type %s", ot)
		}
		e.SetType(ot.Elem)
		return ot.Elem, nil
	case ast.UnaryPreIncr, ast.UnaryPreDecr, ast.UnaryPostIncr, ast.UnaryPostDecr:
		if !isLValue(e.Operand) {
			return nil, diag.New(diag.NonLValueAssignment, a.file, e.Loc.Line, e.Loc.Column, "operand of ++/-- is not assignable")
		}
		e.SetType(ot)
		return ot, nil
	default:
		e.SetType(ot)
		return ot, nil
	}
}

func (a *analyzer) typeCheckCall(e *ast.CallExpr) (*types.Type, *diag.Error) {
	if intrinsics.IsReserved(e.Callee) {
		return a.typeCheckIntrinsicCall(e)
	}
	idx, ok := a.funcIdx[e.Callee]
	if !ok {
		return nil, diag.New(diag.UndefinedSymbol, a.file, e.Loc.Line, e.Loc.Column, "undefined function '%s'", e.Callee)
	}
	fn := a.functions[idx]
	if len(e.Args) != len(fn.Params) {
		return nil, diag.New(diag.ArityMismatch, a.file, e.Loc.Line, e.Loc.Column,
			"'%s' expects %d argument(s), got %d", e.Callee, len(fn.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		at, err := a.typeCheckExpr(arg)
		if err != nil {
			return nil, err
		}
		if !assignable(fn.Params[i].Type, at) {
			return nil, diag.New(diag.TypeMismatch, a.file, arg.GetLoc().Line, arg.GetLoc().Column,
				"argument %d to '%s': cannot use %s as %s", i+1, e.Callee, at, fn.Params[i].Type)
		}
	}
	e.SetType(fn.ReturnType)
	return fn.ReturnType, nil
}

// typeCheckIntrinsicCall type-checks a call to one of spec §6's reserved
// RTOS/hardware/debug/task-start names. These have no user-defined
// signature to check against, so arity is validated against the shared
// intrinsics.Table and arguments are otherwise type-checked generically.
// StartTask's final argument is a bare function name, not a variable
// reference, so it is resolved against the function table instead of the
// normal identifier lookup.
func (a *analyzer) typeCheckIntrinsicCall(e *ast.CallExpr) (*types.Type, *diag.Error) {
	if !intrinsics.Check(e.Callee, len(e.Args)) {
		return nil, diag.New(diag.ArityMismatch, a.file, e.Loc.Line, e.Loc.Column,
			"'%s' called with %d argument(s)", e.Callee, len(e.Args))
	}

	if e.Callee == "StartTask" {
		for i := 0; i < 4; i++ {
			if _, err := a.typeCheckExpr(e.Args[i]); err != nil {
				return nil, err
			}
		}
		fnArg, ok := e.Args[4].(*ast.IdentExpr)
		if !ok {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Args[4].GetLoc().Line, e.Args[4].GetLoc().Column,
				"StartTask's last argument must be a function name")
		}
		if _, ok := a.funcIdx[fnArg.Name]; !ok {
			return nil, diag.New(diag.UndefinedSymbol, a.file, fnArg.Loc.Line, fnArg.Loc.Column,
				"undefined function '%s'", fnArg.Name)
		}
		t := types.Primitive(types.Int)
		e.SetType(t)
		return t, nil
	}

	if e.Callee == "DBG_PRINT" || e.Callee == "DBG_PRINTF" {
		lit, ok := e.Args[0].(*ast.LiteralExpr)
		if !ok || lit.Kind != ast.LitString {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Args[0].GetLoc().Line, e.Args[0].GetLoc().Column,
				"'%s' requires a string literal as its first argument", e.Callee)
		}
		if _, err := a.typeCheckExpr(lit); err != nil {
			return nil, err
		}
		for _, arg := range e.Args[1:] {
			if _, err := a.typeCheckExpr(arg); err != nil {
				return nil, err
			}
		}
		t := types.Primitive(types.Int)
		e.SetType(t)
		return t, nil
	}

	for _, arg := range e.Args {
		if _, err := a.typeCheckExpr(arg); err != nil {
			return nil, err
		}
	}
	t := types.Primitive(types.Int)
	e.SetType(t)
	return t, nil
}

func (a *analyzer) typeCheckIndex(e *ast.IndexExpr) (*types.Type, *diag.Error) {
	arrT, err := a.typeCheckExpr(e.Array)
	if err != nil {
		return nil, err
	}
	idxT, err := a.typeCheckExpr(e.Index)
	if err != nil {
		return nil, err
	}
	if !idxT.IsIntegral() {
		return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "array index must be an integral type, got %s", idxT)
	}
	var elem *types.Type
	switch arrT.Kind {
	case types.Array:
		elem = arrT.Elem
	case types.Pointer:
		elem = arrT.Elem
	default:
		return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "cannot index non-array/non-pointer type %s", arrT)
	}
	e.SetType(elem)
	return elem, nil
}

func (a *analyzer) typeCheckField(e *ast.FieldExpr) (*types.Type, *diag.Error) {
	objT, err := a.typeCheckExpr(e.Object)
	if err != nil {
		return nil, err
	}
	if e.IsArrow {
		if !objT.IsPointer() {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "'->' requires a pointer type, got %s", objT)
		}
		objT = objT.Elem
	}
	if !objT.IsAggregate() {
		return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "field access requires a struct/union type, got %s", objT)
	}
	layout, ok := a.lc.Layout(objT.Name)
	if !ok {
		return nil, diag.New(diag.UndefinedSymbol, a.file, e.Loc.Line, e.Loc.Column, "undefined struct/union '%s'", objT.Name)
	}
	fd, ok := layout.Field(e.Field)
	if !ok {
		return nil, diag.New(diag.FieldNotFound, a.file, e.Loc.Line, e.Loc.Column, "%s has no field '%s'", objT, e.Field)
	}
	e.SetType(fd.Type)
	return fd.Type, nil
}

func (a *analyzer) typeCheckSend(e *ast.SendExpr) (*types.Type, *diag.Error) {
	msg, err := a.resolveMessageChannel(e.Channel)
	if err != nil {
		return nil, err
	}
	vt, err := a.typeCheckExpr(e.Value)
	if err != nil {
		return nil, err
	}
	if !assignable(msg.ElemType, vt) {
		return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column,
			"cannot send %s on channel of %s", vt, msg.ElemType)
	}
	t := types.Primitive(types.Void)
	e.SetType(t)
	return t, nil
}

func (a *analyzer) typeCheckRecv(e *ast.RecvExpr) (*types.Type, *diag.Error) {
	msg, err := a.resolveMessageChannel(e.Channel)
	if err != nil {
		return nil, err
	}
	if e.Timeout != nil {
		tt, err := a.typeCheckExpr(e.Timeout)
		if err != nil {
			return nil, err
		}
		if !tt.IsIntegral() {
			return nil, diag.New(diag.TypeMismatch, a.file, e.Loc.Line, e.Loc.Column, "recv timeout must be an integer expression in milliseconds")
		}
	}
	e.SetType(msg.ElemType)
	return msg.ElemType, nil
}

func (a *analyzer) resolveMessageChannel(e ast.Expr) (*MessageInfo, *diag.Error) {
	id, ok := e.(*ast.IdentExpr)
	if !ok {
		return nil, diag.New(diag.TypeMismatch, a.file, e.GetLoc().Line, e.GetLoc().Column, "send/recv target must be a message channel name")
	}
	idx, ok := a.msgIdx[id.Name]
	if !ok {
		return nil, diag.New(diag.UndefinedSymbol, a.file, e.GetLoc().Line, e.GetLoc().Column, "undefined message channel '%s'", id.Name)
	}
	id.SetType(types.MessageType(a.messages[idx].ElemType))
	return a.messages[idx], nil
}
