package sema

import (
	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/diag"
	"github.com/OmidArdestani/RTMC-Framework/internal/srcpos"
	"github.com/OmidArdestani/RTMC-Framework/internal/types"
)

// ParamInfo is a resolved function parameter. Offset is its frame-relative
// byte address; params occupy the low end of the frame, locals follow them
// (spec §4.5: arguments pushed left to right, then the callee's ALLOC_FRAME
// reserves the rest).
type ParamInfo struct {
	Name   string
	Type   *types.Type
	Index  int
	Offset int
}

// LocalInfo is a resolved function-local variable or constant, with its
// assigned frame slot.
type LocalInfo struct {
	Name     string
	Type     *types.Type
	Offset   int
	ArrayLen int
	IsConst  bool
}

// FuncInfo is a function's resolved signature plus everything codegen needs
// to emit its prologue/epilogue (spec §4.5's ALLOC_FRAME/FREE_FRAME).
type FuncInfo struct {
	ID         int
	Name       string
	ReturnType *types.Type
	Params     []ParamInfo
	ParamsSize int // total bytes occupied by Params, where local frame offsets start
	Locals     []LocalInfo
	FrameSize  int
	Body       *ast.Block
	Loc        srcpos.Pos
}

// GlobalInfo is a resolved file-scope variable with its assigned data-region
// address (spec §4.4's "address assignment").
type GlobalInfo struct {
	Name     string
	Type     *types.Type
	Address  int
	ArrayLen int
	IsConst  bool
	Init     ast.Expr
	Loc      srcpos.Pos
}

// MessageInfo is a resolved named message channel with its assigned id.
type MessageInfo struct {
	Name     string
	ID       int
	ElemType *types.Type
}

// Result is everything the bytecode generator needs: the read-only struct
// layout table (spec §2: "share a read-only struct layout table") plus the
// resolved global/function/message tables.
type Result struct {
	Layouts       map[string]*types.StructLayout
	Functions     []*FuncInfo
	FunctionIndex map[string]int
	Globals       []*GlobalInfo
	Messages      []*MessageInfo
	MessageIndex  map[string]int

	// Idents resolves every *ast.IdentExpr the analyzer type-checked back to
	// its storage location (global address or local/param frame offset), so
	// the code generator can address it without re-deriving scope lookups.
	Idents map[*ast.IdentExpr]*Symbol
}

func (r *Result) Layout(name string) (*types.StructLayout, bool) {
	l, ok := r.Layouts[name]
	return l, ok
}

// analyzer walks the program once, in the four sub-phases spec §4.4 lists:
// layout computation, name/table registration, type checking, and address
// assignment. Grounded on gmofishsauce-wut4/lang/sem/analyzer.go's
// buildSymbolTables-then-typeCheck structure, generalized to RTMC's richer
// declaration set (structs/unions/messages) and its nested block scopes.
type analyzer struct {
	file string

	aggregateDecls map[string]*ast.AggregateDecl
	lc             *layoutComputer

	fileScope map[string]srcpos.Pos // every top-level name, for DuplicateDefinition

	dataOffset int
	globals    []*GlobalInfo
	globalIdx  map[string]*GlobalInfo

	functions []*FuncInfo
	funcIdx   map[string]int

	messages []*MessageInfo
	msgIdx   map[string]int

	scopes    *ScopeStack
	curFunc   *FuncInfo
	frameOff  int
	loopDepth int

	resolved map[*ast.IdentExpr]*Symbol
}

// Analyze runs the semantic analyzer over prog and produces a Result, or
// the first error encountered (spec §7: first error aborts the pass).
func Analyze(file string, prog *ast.Program) (*Result, *diag.Error) {
	a := &analyzer{
		file:           file,
		aggregateDecls: make(map[string]*ast.AggregateDecl),
		fileScope:      make(map[string]srcpos.Pos),
		globalIdx:      make(map[string]*GlobalInfo),
		funcIdx:        make(map[string]int),
		msgIdx:         make(map[string]int),
		resolved:       make(map[*ast.IdentExpr]*Symbol),
	}

	for _, d := range prog.Decls {
		if ag, ok := d.(*ast.AggregateDecl); ok && ag.Name != "" {
			if _, exists := a.fileScope[ag.Name]; exists {
				return nil, dupErr(file, ag.Name, ag.GetLoc())
			}
			a.fileScope[ag.Name] = ag.GetLoc()
			a.aggregateDecls[ag.Name] = ag
		}
	}
	a.lc = newLayoutComputer(file, a.aggregateDecls)
	for _, d := range prog.Decls {
		if ag, ok := d.(*ast.AggregateDecl); ok && ag.Name != "" {
			if _, err := a.lc.layoutOf(ag.Name, ag.GetLoc()); err != nil {
				return nil, err
			}
		}
	}

	// Pass 2: register globals, functions, and messages, assigning
	// addresses/ids in declaration order (spec §5: "deterministic
	// left-to-right, top-to-bottom" -> reproducible pool ids).
	for _, d := range prog.Decls {
		var err *diag.Error
		switch decl := d.(type) {
		case *ast.GlobalVarDecl:
			err = a.registerGlobal(decl)
		case *ast.FuncDecl:
			err = a.registerFunc(decl)
		case *ast.MessageDecl:
			err = a.registerMessage(decl)
		}
		if err != nil {
			return nil, err
		}
	}

	// Pass 3: type-check every function body.
	for _, fn := range a.functions {
		if err := a.typeCheckFunc(fn); err != nil {
			return nil, err
		}
	}

	return &Result{
		Layouts:       a.lc.layouts,
		Functions:     a.functions,
		FunctionIndex: a.funcIdx,
		Globals:       a.globals,
		Messages:      a.messages,
		MessageIndex:  a.msgIdx,
		Idents:        a.resolved,
	}, nil
}

func dupErr(file, name string, loc srcpos.Pos) *diag.Error {
	return diag.New(diag.DuplicateDefinition, file, loc.Line, loc.Column, "redefinition of '%s'", name)
}

func (a *analyzer) registerGlobal(d *ast.GlobalVarDecl) *diag.Error {
	if _, exists := a.fileScope[d.Name]; exists {
		return dupErr(a.file, d.Name, d.Loc)
	}
	a.fileScope[d.Name] = d.Loc

	if err := a.ensureType(d.Type, d.Loc); err != nil {
		return err
	}
	if d.ArrayLen < 0 {
		n, err := a.inferArrayLen(d.Init, d.Loc)
		if err != nil {
			return err
		}
		d.ArrayLen = n
	}

	align := d.Type.Alignment(a.lc)
	size := d.Type.Size(a.lc)
	if d.ArrayLen > 0 {
		size *= d.ArrayLen
	}
	a.dataOffset = alignUp(a.dataOffset, align)
	g := &GlobalInfo{Name: d.Name, Type: d.Type, Address: a.dataOffset, ArrayLen: d.ArrayLen, IsConst: d.IsConst, Init: d.Init, Loc: d.Loc}
	a.dataOffset += size
	a.globals = append(a.globals, g)
	a.globalIdx[d.Name] = g
	return nil
}

func (a *analyzer) registerFunc(d *ast.FuncDecl) *diag.Error {
	if _, exists := a.fileScope[d.Name]; exists {
		return dupErr(a.file, d.Name, d.Loc)
	}
	a.fileScope[d.Name] = d.Loc

	if err := a.ensureType(d.ReturnType, d.Loc); err != nil {
		return err
	}
	fn := &FuncInfo{ID: len(a.functions), Name: d.Name, ReturnType: d.ReturnType, Body: d.Body, Loc: d.Loc}
	seen := make(map[string]bool)
	paramOff := 0
	for i, p := range d.Params {
		if seen[p.Name] {
			return diag.New(diag.DuplicateDefinition, a.file, p.Loc.Line, p.Loc.Column, "duplicate parameter '%s'", p.Name)
		}
		seen[p.Name] = true
		if err := a.ensureType(p.Type, p.Loc); err != nil {
			return err
		}
		paramOff = alignUp(paramOff, p.Type.Alignment(a.lc))
		fn.Params = append(fn.Params, ParamInfo{Name: p.Name, Type: p.Type, Index: i, Offset: paramOff})
		paramOff += p.Type.Size(a.lc)
	}
	fn.ParamsSize = alignUp(paramOff, 4)
	a.funcIdx[d.Name] = len(a.functions)
	a.functions = append(a.functions, fn)
	return nil
}

func (a *analyzer) registerMessage(d *ast.MessageDecl) *diag.Error {
	if _, exists := a.fileScope[d.Name]; exists {
		return dupErr(a.file, d.Name, d.Loc)
	}
	a.fileScope[d.Name] = d.Loc
	m := &MessageInfo{Name: d.Name, ID: len(a.messages), ElemType: d.ElemType}
	a.msgIdx[d.Name] = len(a.messages)
	a.messages = append(a.messages, m)
	return nil
}

// ensureType forces layout resolution of any named struct/union reachable
// through t, surfacing UndefinedSymbol/CircularType at the point of use.
func (a *analyzer) ensureType(t *types.Type, loc srcpos.Pos) *diag.Error {
	return a.lc.ensureResolvable(t, loc)
}

// inferArrayLen resolves an array declaration's size from its initializer
// when the source wrote "type name[] = { ... }" (spec §4.3's array-size
// grammar only gives a constant INT or omission).
func (a *analyzer) inferArrayLen(init ast.Expr, loc srcpos.Pos) (int, *diag.Error) {
	arr, ok := init.(*ast.ArrayInitExpr)
	if !ok {
		return 0, diag.New(diag.ArraySizeNotConstant, a.file, loc.Line, loc.Column,
			"array size omitted without a brace initializer to infer it from")
	}
	return len(arr.Elems), nil
}

func (a *analyzer) typeCheckFunc(fn *FuncInfo) *diag.Error {
	a.scopes = NewScopeStack()
	a.curFunc = fn
	a.frameOff = fn.ParamsSize

	for _, p := range fn.Params {
		a.scopes.Define(&Symbol{Name: p.Name, Kind: SymParam, Type: p.Type, Offset: p.Offset})
	}
	if err := a.typeCheckBlock(fn.Body); err != nil {
		return err
	}
	fn.FrameSize = alignUp(a.frameOff, 4)
	a.curFunc = nil
	a.scopes = nil
	return nil
}

func (a *analyzer) typeCheckBlock(b *ast.Block) *diag.Error {
	a.scopes.Push()
	defer a.scopes.Pop()
	for _, s := range b.Stmts {
		if err := a.typeCheckStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) typeCheckStmt(stmt ast.Stmt) *diag.Error {
	switch s := stmt.(type) {
	case *ast.Block:
		return a.typeCheckBlock(s)

	case *ast.LocalDecl:
		return a.defineLocal(s)

	case *ast.ExprStmt:
		if s.X == nil {
			return nil
		}
		_, err := a.typeCheckExpr(s.X)
		return err

	case *ast.IfStmt:
		if _, err := a.typeCheckExpr(s.Cond); err != nil {
			return err
		}
		if err := a.typeCheckStmt(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			return a.typeCheckStmt(s.Else)
		}
		return nil

	case *ast.WhileStmt:
		if _, err := a.typeCheckExpr(s.Cond); err != nil {
			return err
		}
		a.loopDepth++
		defer func() { a.loopDepth-- }()
		return a.typeCheckStmt(s.Body)

	case *ast.ForStmt:
		a.scopes.Push()
		defer a.scopes.Pop()
		if s.Init != nil {
			if err := a.typeCheckStmt(s.Init); err != nil {
				return err
			}
		}
		if s.Cond != nil {
			if _, err := a.typeCheckExpr(s.Cond); err != nil {
				return err
			}
		}
		if s.Post != nil {
			if _, err := a.typeCheckExpr(s.Post); err != nil {
				return err
			}
		}
		a.loopDepth++
		defer func() { a.loopDepth-- }()
		return a.typeCheckStmt(s.Body)

	case *ast.ReturnStmt:
		if s.Value == nil {
			if a.curFunc.ReturnType.Kind != types.Void {
				return diag.New(diag.TypeMismatch, a.file, s.Loc.Line, s.Loc.Column,
					"non-void function '%s' must return a value", a.curFunc.Name)
			}
			return nil
		}
		t, err := a.typeCheckExpr(s.Value)
		if err != nil {
			return err
		}
		if !assignable(a.curFunc.ReturnType, t) {
			return diag.New(diag.TypeMismatch, a.file, s.Loc.Line, s.Loc.Column,
				"cannot return %s from function returning %s", t, a.curFunc.ReturnType)
		}
		return nil

	case *ast.BreakStmt:
		if a.loopDepth == 0 {
			return diag.New(diag.ParseUnexpectedToken, a.file, s.Loc.Line, s.Loc.Column, "'break' outside a loop")
		}
		return nil

	case *ast.ContinueStmt:
		if a.loopDepth == 0 {
			return diag.New(diag.ParseUnexpectedToken, a.file, s.Loc.Line, s.Loc.Column, "'continue' outside a loop")
		}
		return nil
	}
	return nil
}

func (a *analyzer) defineLocal(d *ast.LocalDecl) *diag.Error {
	if err := a.ensureType(d.Type, d.Loc); err != nil {
		return err
	}
	if d.ArrayLen < 0 {
		n, err := a.inferArrayLen(d.Init, d.Loc)
		if err != nil {
			return err
		}
		d.ArrayLen = n
	}
	if d.Init != nil {
		initT, err := a.typeCheckExpr(d.Init)
		if err != nil {
			return err
		}
		if _, isArr := d.Init.(*ast.ArrayInitExpr); !isArr && !assignable(d.Type, initT) {
			return diag.New(diag.TypeMismatch, a.file, d.Loc.Line, d.Loc.Column,
				"cannot initialize '%s' of type %s with %s", d.Name, d.Type, initT)
		}
	}

	size := d.Type.Size(a.lc)
	if d.ArrayLen > 0 {
		size *= d.ArrayLen
	}
	align := d.Type.Alignment(a.lc)
	a.frameOff = alignUp(a.frameOff, align)
	offset := a.frameOff
	a.frameOff += size
	d.Offset = offset

	sym := &Symbol{Name: d.Name, Kind: SymLocal, Type: d.Type, IsConst: d.IsConst, ArrayLen: d.ArrayLen, Offset: offset, Loc: d.Loc}
	if !a.scopes.Define(sym) {
		return diag.New(diag.DuplicateDefinition, a.file, d.Loc.Line, d.Loc.Column, "redefinition of '%s'", d.Name)
	}
	a.curFunc.Locals = append(a.curFunc.Locals, LocalInfo{Name: d.Name, Type: d.Type, Offset: offset, ArrayLen: d.ArrayLen, IsConst: d.IsConst})
	return nil
}
