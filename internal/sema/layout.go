package sema

import (
	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/diag"
	"github.com/OmidArdestani/RTMC-Framework/internal/srcpos"
	"github.com/OmidArdestani/RTMC-Framework/internal/types"
)

// layoutComputer resolves struct/union declarations into types.StructLayout,
// memoizing each name and detecting non-pointer containment cycles via a
// "currently resolving" set - the two-phase approach spec §9 describes
// (placeholders, then fill) collapsed into on-demand recursion with a
// visiting-set cycle check, since field types may reference aggregates
// declared later in the file.
type layoutComputer struct {
	decls    map[string]*ast.AggregateDecl
	layouts  map[string]*types.StructLayout
	visiting map[string]bool
	file     string
}

func newLayoutComputer(file string, decls map[string]*ast.AggregateDecl) *layoutComputer {
	return &layoutComputer{
		decls:    decls,
		layouts:  make(map[string]*types.StructLayout),
		visiting: make(map[string]bool),
		file:     file,
	}
}

func (lc *layoutComputer) Layout(name string) (*types.StructLayout, bool) {
	l, ok := lc.layouts[name]
	return l, ok
}

// layoutOf computes (and memoizes) the layout of the named struct/union,
// recursing into aggregate-typed fields (directly or as array elements, but
// never through a pointer) as needed.
func (lc *layoutComputer) layoutOf(name string, loc srcpos.Pos) (*types.StructLayout, *diag.Error) {
	if l, ok := lc.layouts[name]; ok {
		return l, nil
	}
	decl, ok := lc.decls[name]
	if !ok {
		return nil, diag.New(diag.UndefinedSymbol, lc.file, loc.Line, loc.Column, "undefined struct/union '%s'", name)
	}
	if lc.visiting[name] {
		return nil, diag.New(diag.CircularType, lc.file, decl.Loc.Line, decl.Loc.Column,
			"struct/union '%s' contains itself through a non-pointer field", name)
	}
	lc.visiting[name] = true
	layout, err := lc.computeLayout(decl)
	delete(lc.visiting, name)
	if err != nil {
		return nil, err
	}
	lc.layouts[name] = layout
	return layout, nil
}

// packState tracks the running byte offset and the current open bit-field
// storage unit while laying out a struct's fields in order.
type packState struct {
	offset    int // next free byte offset, or past the most recently closed unit
	unitOpen  bool
	unitStart int
	bitsUsed  int
	align     int
}

func (lc *layoutComputer) computeLayout(decl *ast.AggregateDecl) (*types.StructLayout, *diag.Error) {
	if decl.IsUnion {
		return lc.computeUnionLayout(decl)
	}
	return lc.computeStructLayout(decl)
}

func (lc *layoutComputer) computeStructLayout(decl *ast.AggregateDecl) (*types.StructLayout, *diag.Error) {
	st := &packState{align: 1}
	var fields []types.FieldDescriptor

	for _, f := range decl.Fields {
		if f.Nested != nil {
			st.closeUnit()
			nested, err := lc.computeLayout(f.Nested)
			if err != nil {
				return nil, err
			}
			groupStart := alignUp(st.offset, max(nested.Align, 1))
			for _, nf := range nested.Fields {
				nf.ByteOffset += groupStart
				nf.FromAnonGroup = true
				fields = append(fields, nf)
			}
			st.offset = groupStart + nested.Size
			if nested.Align > st.align {
				st.align = nested.Align
			}
			continue
		}

		fieldType := f.Type
		if f.ArrayLen > 0 {
			fieldType = types.ArrayOf(f.Type, f.ArrayLen)
		}

		if f.HasBitWidth {
			if f.BitWidth < 1 || f.BitWidth > 32 {
				return nil, diag.New(diag.BadBitFieldWidth, lc.file, f.Loc.Line, f.Loc.Column,
					"bit-field '%s' width %d out of range [1,32]", f.Name, f.BitWidth)
			}
			if !st.unitOpen {
				st.unitStart = alignUp(st.offset, 4)
				st.unitOpen = true
				st.bitsUsed = 0
			}
			if st.bitsUsed+f.BitWidth > 32 {
				// current unit is full; open the next one
				st.offset = st.unitStart + 4
				st.unitStart = alignUp(st.offset, 4)
				st.bitsUsed = 0
			}
			bitOffset := st.bitsUsed
			byteOffset := st.unitStart
			st.bitsUsed += f.BitWidth
			st.offset = st.unitStart + 4
			if st.align < 4 {
				st.align = 4
			}
			fields = append(fields, types.FieldDescriptor{
				Name: f.Name, Type: fieldType, ByteOffset: byteOffset,
				BitOffset: bitOffset, BitWidth: f.BitWidth, IsBitField: true,
			})
			continue
		}

		st.closeUnit()
		fieldAlign := fieldType.Alignment(lc)
		if err := lc.ensureResolvable(fieldType, f.Loc); err != nil {
			return nil, err
		}
		offset := alignUp(st.offset, fieldAlign)
		size := fieldType.Size(lc)
		fields = append(fields, types.FieldDescriptor{
			Name: f.Name, Type: fieldType, ByteOffset: offset,
		})
		st.offset = offset + size
		if fieldAlign > st.align {
			st.align = fieldAlign
		}
	}
	st.closeUnit()

	size := alignUp(st.offset, st.align)
	layout := &types.StructLayout{Name: decl.Name, IsUnion: false, Size: size, Align: st.align, Fields: fields}
	if len(fields) > 0 && fields[0].Type.IsStruct() && !fields[0].IsBitField {
		layout.BaseField = fields[0].Name
	}
	return layout, nil
}

// computeUnionLayout places every alternative at byte offset 0; the union's
// size is the maximum of its alternatives' sizes (spec §4.4, §8.2).
func (lc *layoutComputer) computeUnionLayout(decl *ast.AggregateDecl) (*types.StructLayout, *diag.Error) {
	var fields []types.FieldDescriptor
	align := 1
	size := 0

	for _, f := range decl.Fields {
		if f.Nested != nil {
			nested, err := lc.computeLayout(f.Nested)
			if err != nil {
				return nil, err
			}
			for _, nf := range nested.Fields {
				nf.FromAnonGroup = true // ByteOffset already relative to 0 within the nested group
				fields = append(fields, nf)
			}
			if nested.Size > size {
				size = nested.Size
			}
			if nested.Align > align {
				align = nested.Align
			}
			continue
		}

		fieldType := f.Type
		if f.ArrayLen > 0 {
			fieldType = types.ArrayOf(f.Type, f.ArrayLen)
		}
		if err := lc.ensureResolvable(fieldType, f.Loc); err != nil {
			return nil, err
		}

		if f.HasBitWidth {
			if f.BitWidth < 1 || f.BitWidth > 32 {
				return nil, diag.New(diag.BadBitFieldWidth, lc.file, f.Loc.Line, f.Loc.Column,
					"bit-field '%s' width %d out of range [1,32]", f.Name, f.BitWidth)
			}
			fields = append(fields, types.FieldDescriptor{
				Name: f.Name, Type: fieldType, ByteOffset: 0,
				BitOffset: 0, BitWidth: f.BitWidth, IsBitField: true,
			})
			if 4 > size {
				size = 4
			}
			if align < 4 {
				align = 4
			}
			continue
		}

		fieldAlign := fieldType.Alignment(lc)
		fieldSize := fieldType.Size(lc)
		fields = append(fields, types.FieldDescriptor{Name: f.Name, Type: fieldType, ByteOffset: 0})
		if fieldSize > size {
			size = fieldSize
		}
		if fieldAlign > align {
			align = fieldAlign
		}
	}

	size = alignUp(size, align)
	return &types.StructLayout{Name: decl.Name, IsUnion: true, Size: size, Align: align, Fields: fields}, nil
}

func (st *packState) closeUnit() {
	if st.unitOpen {
		st.offset = st.unitStart + 4
		st.unitOpen = false
	}
}

// ensureResolvable forces resolution (and cycle detection) of any aggregate
// type reachable through t without crossing a pointer.
func (lc *layoutComputer) ensureResolvable(t *types.Type, loc srcpos.Pos) *diag.Error {
	switch t.Kind {
	case types.Struct, types.Union:
		_, err := lc.layoutOf(t.Name, loc)
		return err
	case types.Array:
		return lc.ensureResolvable(t.Elem, loc)
	default:
		return nil
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
