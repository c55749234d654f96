// Package types describes RTMC's type system and struct/union layout
// computation (spec §3, §4.4). The shape of Type (Kind + nested
// Pointee/Elem + StructName) and the Size/Alignment methods taking a
// registry of struct definitions are grounded on
// gmofishsauce-wut4/lang/yparse/types.go, but the base-type set, sizes, and
// pointer width are RTMC's own (spec §3: char=1, bool=1, int=4, float=4,
// pointer=8 — the teacher's base types and its 2-byte pointer width do not
// apply here).
package types

import "fmt"

// Kind discriminates the type variants of spec §3 ("Types:").
type Kind int

const (
	Invalid Kind = iota
	Int
	Float
	Char
	Bool
	Void
	Pointer
	Array
	Struct
	Union
	MessageOf
)

// Type is an RTMC type descriptor. Pointer and MessageOf use Elem as their
// pointee/payload type; Array uses Elem and Len; Struct/Union use Name to
// look its StructLayout up in a Registry.
type Type struct {
	Kind Kind
	Elem *Type  // Pointer pointee, Array element, or MessageOf payload
	Len  int    // Array element count (constant, spec §4.3 array-size grammar)
	Name string // Struct/Union name
}

func Primitive(k Kind) *Type { return &Type{Kind: k} }

func PointerTo(elem *Type) *Type { return &Type{Kind: Pointer, Elem: elem} }

func ArrayOf(elem *Type, n int) *Type { return &Type{Kind: Array, Elem: elem, Len: n} }

func NamedStruct(name string) *Type { return &Type{Kind: Struct, Name: name} }

func NamedUnion(name string) *Type { return &Type{Kind: Union, Name: name} }

func MessageType(elem *Type) *Type { return &Type{Kind: MessageOf, Elem: elem} }

func (t *Type) IsPointer() bool { return t != nil && t.Kind == Pointer }
func (t *Type) IsArray() bool   { return t != nil && t.Kind == Array }
func (t *Type) IsStruct() bool  { return t != nil && t.Kind == Struct }
func (t *Type) IsUnion() bool   { return t != nil && t.Kind == Union }
func (t *Type) IsAggregate() bool {
	return t != nil && (t.Kind == Struct || t.Kind == Union)
}
func (t *Type) IsNumeric() bool {
	return t != nil && (t.Kind == Int || t.Kind == Float || t.Kind == Char || t.Kind == Bool)
}
func (t *Type) IsIntegral() bool {
	return t != nil && (t.Kind == Int || t.Kind == Char || t.Kind == Bool)
}

func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case Pointer, MessageOf:
		return t.Elem.Equal(o.Elem)
	case Array:
		return t.Len == o.Len && t.Elem.Equal(o.Elem)
	case Struct, Union:
		return t.Name == o.Name
	default:
		return true
	}
}

func (t *Type) String() string {
	switch t.Kind {
	case Int:
		return "int"
	case Float:
		return "float"
	case Char:
		return "char"
	case Bool:
		return "bool"
	case Void:
		return "void"
	case Pointer:
		return t.Elem.String() + "*"
	case Array:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Len)
	case Struct:
		return "struct " + t.Name
	case Union:
		return "union " + t.Name
	case MessageOf:
		return "message<" + t.Elem.String() + ">"
	default:
		return "<invalid>"
	}
}

// Sizes mandated by spec §3 and §9 (pointer width is an explicitly resolved
// Open Question: 8 bytes, for 64-bit host VMs).
const (
	SizeChar    = 1
	SizeBool    = 1
	SizeInt     = 4
	SizeFloat   = 4
	SizePointer = 8
)

// Registry resolves struct/union names to their computed layout. It is the
// read-only table the semantic analyzer builds and the code generator later
// shares (spec §2: "share a read-only struct layout table").
type Registry interface {
	Layout(name string) (*StructLayout, bool)
}

// Size returns sizeof(t) per spec §3's sizeof rules. reg resolves
// struct/union sizes; Size panics only if reg is nil and an aggregate type
// is queried, which would be a compiler bug (every aggregate must have a
// registry by the time Size is called).
func (t *Type) Size(reg Registry) int {
	switch t.Kind {
	case Char, Bool:
		return 1
	case Int, Float:
		return 4
	case Pointer, MessageOf:
		return SizePointer
	case Array:
		return t.Len * t.Elem.Size(reg)
	case Struct, Union:
		layout, ok := reg.Layout(t.Name)
		if !ok {
			return 0
		}
		return layout.Size
	case Void:
		return 0
	default:
		return 0
	}
}

// Alignment returns the natural alignment of t: 1 for char/bool, 4 for
// int/float, 8 for pointers; arrays align to their element; aggregates
// align to their own computed alignment (spec §4.4).
func (t *Type) Alignment(reg Registry) int {
	switch t.Kind {
	case Char, Bool:
		return 1
	case Int, Float:
		return 4
	case Pointer, MessageOf:
		return SizePointer
	case Array:
		return t.Elem.Alignment(reg)
	case Struct, Union:
		layout, ok := reg.Layout(t.Name)
		if !ok {
			return 1
		}
		return layout.Align
	default:
		return 1
	}
}

// FieldDescriptor describes one field of a StructLayout, per spec §3:
// (name, type, byte_offset, bit_offset, bit_width, is_anonymous_group).
type FieldDescriptor struct {
	Name          string
	Type          *Type
	ByteOffset    int
	BitOffset     int // 0 unless this field is a bit-field
	BitWidth      int // 0 unless this field is a bit-field
	IsBitField    bool
	FromAnonGroup bool // contributed by an anonymous nested struct/union
}

// StructLayout is the immutable, once-computed size/alignment/field-offset
// information for a named struct or union (spec §3, §4.4).
type StructLayout struct {
	Name      string
	IsUnion   bool
	Size      int
	Align     int
	Fields    []FieldDescriptor
	BaseField string // name of the first field, set when it establishes first-field-is-struct inheritance
}

// Field looks a field up by name, including fields hoisted in from
// anonymous nested struct/union groups.
func (l *StructLayout) Field(name string) (FieldDescriptor, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}
