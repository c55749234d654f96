package codegen

import "math"

// constPool deduplicates constant-pool entries by (tag, bits), mirroring
// the dedup-by-value approach of a string/constant interning table; the
// teacher has no such pool (its ISA has no indirect constant loads), so this
// is grounded on the general "intern by value, return the stable id"
// pattern spec §4.6 names for both constants and strings.
type constPool struct {
	values []Constant
	index  map[Constant]int
}

func newConstPool() *constPool {
	return &constPool{index: make(map[Constant]int)}
}

func (p *constPool) intern(c Constant) int {
	if id, ok := p.index[c]; ok {
		return id
	}
	id := len(p.values)
	p.values = append(p.values, c)
	p.index[c] = id
	return id
}

func (p *constPool) internInt(v int64) int { return p.intern(Constant{Tag: ConstInt, Bits: v}) }
func (p *constPool) internBool(v bool) int {
	var b int64
	if v {
		b = 1
	}
	return p.intern(Constant{Tag: ConstBool, Bits: b})
}
func (p *constPool) internChar(v int64) int { return p.intern(Constant{Tag: ConstChar, Bits: v}) }
func (p *constPool) internFloat(v float64) int {
	return p.intern(Constant{Tag: ConstFloat, Bits: int64(math.Float32bits(float32(v)))})
}
func (p *constPool) internStringRef(stringID int) int {
	return p.intern(Constant{Tag: ConstStringRef, Bits: int64(stringID)})
}

type stringPool struct {
	values []string
	index  map[string]int
}

func newStringPool() *stringPool {
	return &stringPool{index: make(map[string]int)}
}

func (p *stringPool) intern(s string) int {
	if id, ok := p.index[s]; ok {
		return id
	}
	id := len(p.values)
	p.values = append(p.values, s)
	p.index[s] = id
	return id
}
