package vmb

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/OmidArdestani/RTMC-Framework/internal/codegen"
)

// Read reads and decodes the .vmb image at path.
func Read(path string) (*codegen.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Unmarshal(data)
}

// Unmarshal decodes a .vmb image per spec §6's layout. Globals/Messages
// metadata is not part of the spec's byte layout beyond the debug-only
// symbols[] table (name+address for globals, nothing for messages, whose
// MSG_DECLARE instructions already carry their id and element size inline);
// testable property 8 names only pools, the instruction sequence, and the
// function table as what round-trips, so Unmarshal reconstructs those
// faithfully and leaves Globals/Messages as a best-effort (Globals from
// symbols[] when present, Messages empty).
func Unmarshal(data []byte) (*codegen.Program, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("vmb: file too short for header (%d bytes)", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != magic {
		return nil, fmt.Errorf("vmb: bad magic 0x%08X (expected 0x%08X)", got, magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != formatVersion {
		return nil, fmt.Errorf("vmb: unsupported version %d", version)
	}
	mode := binary.LittleEndian.Uint32(data[8:12])
	instrCount := int(binary.LittleEndian.Uint32(data[12:16]))
	constCount := int(binary.LittleEndian.Uint32(data[16:20]))
	strCount := int(binary.LittleEndian.Uint32(data[20:24]))
	fnCount := int(binary.LittleEndian.Uint32(data[24:28]))
	symCount := int(binary.LittleEndian.Uint32(data[28:32]))
	wantChecksum := binary.LittleEndian.Uint32(data[32:36])

	body := data[headerSize:]
	if got := crc32.ChecksumIEEE(body); got != wantChecksum {
		return nil, fmt.Errorf("vmb: checksum mismatch (got 0x%08X, want 0x%08X)", got, wantChecksum)
	}

	debug := mode == 1
	prog := &codegen.Program{Mode: codegen.Release, EntryFunc: -1}
	if debug {
		prog.Mode = codegen.Debug
	}

	off := 0
	instrs, n, err := readInstructions(body, off, instrCount, debug)
	if err != nil {
		return nil, err
	}
	off = n
	prog.Instructions = instrs

	consts, n, err := readConstants(body, off, constCount)
	if err != nil {
		return nil, err
	}
	off = n
	prog.Constants = consts

	strs, n, err := readStrings(body, off, strCount)
	if err != nil {
		return nil, err
	}
	off = n
	prog.Strings = strs

	fns, n, err := readFunctions(body, off, fnCount)
	if err != nil {
		return nil, err
	}
	off = n
	prog.Functions = fns

	if debug {
		globals, _, err := readSymbols(body, off, symCount)
		if err != nil {
			return nil, err
		}
		prog.Globals = globals
	}

	for i, fn := range prog.Functions {
		if fn.Name == "main" {
			prog.EntryFunc = i
		}
	}
	return prog, nil
}

func readInstructions(body []byte, off, count int, debug bool) ([]codegen.Instruction, int, error) {
	out := make([]codegen.Instruction, 0, count)
	for i := 0; i < count; i++ {
		if off+2 > len(body) {
			return nil, 0, fmt.Errorf("vmb: truncated instruction %d header", i)
		}
		op := codegen.Opcode(body[off])
		argc := int(body[off+1])
		off += 2
		if off+argc*8 > len(body) {
			return nil, 0, fmt.Errorf("vmb: truncated instruction %d operands", i)
		}
		var operands []int64 // nil when argc is 0, as codegen's Emit leaves it
		if argc > 0 {
			operands = make([]int64, argc)
		}
		for j := 0; j < argc; j++ {
			operands[j] = int64(binary.LittleEndian.Uint64(body[off : off+8]))
			off += 8
		}
		ins := codegen.Instruction{Op: op, Operands: operands}
		if debug {
			if off+8 > len(body) {
				return nil, 0, fmt.Errorf("vmb: truncated instruction %d line/col", i)
			}
			ins.Line = int(binary.LittleEndian.Uint32(body[off : off+4]))
			ins.Col = int(binary.LittleEndian.Uint32(body[off+4 : off+8]))
			off += 8
		}
		out = append(out, ins)
	}
	return out, off, nil
}

func readConstants(body []byte, off, count int) ([]codegen.Constant, int, error) {
	out := make([]codegen.Constant, 0, count)
	for i := 0; i < count; i++ {
		if off+5 > len(body) {
			return nil, 0, fmt.Errorf("vmb: truncated constant %d", i)
		}
		tag := body[off]
		raw := binary.LittleEndian.Uint32(body[off+1 : off+5])
		kind := constTagToKind(tag)
		var bits int64
		if kind == codegen.ConstFloat || kind == codegen.ConstStringRef {
			// Both are bit patterns / pool indices, never a signed value in
			// their own right, so zero-extend rather than sign-extend.
			bits = int64(raw)
		} else {
			bits = int64(int32(raw))
		}
		off += 5
		out = append(out, codegen.Constant{Tag: kind, Bits: bits})
	}
	return out, off, nil
}

func readStrings(body []byte, off, count int) ([]string, int, error) {
	var out []string // nil for an empty pool, as codegen leaves it
	for i := 0; i < count; i++ {
		if off+2 > len(body) {
			return nil, 0, fmt.Errorf("vmb: truncated string %d length", i)
		}
		ln := int(binary.LittleEndian.Uint16(body[off : off+2]))
		off += 2
		if off+ln > len(body) {
			return nil, 0, fmt.Errorf("vmb: truncated string %d body", i)
		}
		out = append(out, string(body[off:off+ln]))
		off += ln
	}
	return out, off, nil
}

func readFunctions(body []byte, off, count int) ([]codegen.FuncMeta, int, error) {
	out := make([]codegen.FuncMeta, 0, count)
	for i := 0; i < count; i++ {
		name, addr, n, err := readNamedAddr(body, off, i, "function")
		if err != nil {
			return nil, 0, err
		}
		off = n
		out = append(out, codegen.FuncMeta{Name: name, ID: i, Addr: addr})
	}
	return out, off, nil
}

func readSymbols(body []byte, off, count int) ([]codegen.GlobalMeta, int, error) {
	out := make([]codegen.GlobalMeta, 0, count)
	for i := 0; i < count; i++ {
		name, addr, n, err := readNamedAddr(body, off, i, "symbol")
		if err != nil {
			return nil, 0, err
		}
		off = n
		out = append(out, codegen.GlobalMeta{Name: name, Address: addr})
	}
	return out, off, nil
}

func readNamedAddr(body []byte, off, idx int, what string) (string, int, int, error) {
	if off+1 > len(body) {
		return "", 0, 0, fmt.Errorf("vmb: truncated %s %d name_len", what, idx)
	}
	nameLen := int(body[off])
	off++
	if off+nameLen+4 > len(body) {
		return "", 0, 0, fmt.Errorf("vmb: truncated %s %d", what, idx)
	}
	name := string(body[off : off+nameLen])
	off += nameLen
	addr := int(binary.LittleEndian.Uint32(body[off : off+4]))
	off += 4
	return name, addr, off, nil
}
