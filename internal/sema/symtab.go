// Package sema implements spec §4.4: name resolution, struct/union layout
// computation, type checking, and address/frame-slot assignment. The scope
// stack (block scopes shadow outer scopes, popped on block exit) and the
// per-function param/local bookkeeping are grounded on
// gmofishsauce-wut4/lang/yparse/symtab.go's SymbolTable/FuncScope, generalized
// from its flat global+one-function-scope model to RTMC's nested block scopes
// and richer type set (structs, unions, messages, bit-fields).
package sema

import (
	"github.com/OmidArdestani/RTMC-Framework/internal/srcpos"
	"github.com/OmidArdestani/RTMC-Framework/internal/types"
)

// SymKind discriminates what a Symbol denotes.
type SymKind int

const (
	SymInvalid SymKind = iota
	SymGlobal
	SymParam
	SymLocal
)

// Symbol is one resolved name: a global variable, a function parameter, or
// a function-local variable/constant.
type Symbol struct {
	Name     string
	Kind     SymKind
	Type     *types.Type
	IsConst  bool
	ArrayLen int // 0 if not an array; -1 if inferred from initializer (resolved by the time a Symbol exists)
	Address  int // for SymGlobal: byte offset into the data region
	Offset   int // for SymParam/SymLocal: frame-relative slot
	Loc      srcpos.Pos
}

// scope is one level of the block-scope stack: a flat name->Symbol map plus
// a link to the enclosing scope.
type scope struct {
	symbols map[string]*Symbol
	parent  *scope
}

// ScopeStack resolves identifiers through nested block scopes, innermost
// first (spec §4.4: "Block scopes shadow outer scopes").
type ScopeStack struct {
	top *scope
}

func NewScopeStack() *ScopeStack {
	s := &ScopeStack{}
	s.Push()
	return s
}

func (s *ScopeStack) Push() {
	s.top = &scope{symbols: make(map[string]*Symbol), parent: s.top}
}

func (s *ScopeStack) Pop() {
	s.top = s.top.parent
}

// Define adds sym to the current (innermost) scope. It reports false if a
// symbol with the same name already exists in THIS scope only - a shadowing
// definition in an outer scope is permitted, per spec §4.4.
func (s *ScopeStack) Define(sym *Symbol) bool {
	if _, exists := s.top.symbols[sym.Name]; exists {
		return false
	}
	s.top.symbols[sym.Name] = sym
	return true
}

// Lookup searches from the innermost scope outward.
func (s *ScopeStack) Lookup(name string) (*Symbol, bool) {
	for sc := s.top; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
