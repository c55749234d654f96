// Package vmb implements spec §6's .vmb bytecode image format: the flat,
// little-endian binary layout a serializer writes and an auxiliary VM reads.
// The byte-offset-driven encode/decode style (manual binary.LittleEndian.
// Put*/Uint* calls into/out of a flat buffer, rather than reflection-based
// encoding) is grounded on gmofishsauce-wut4/lang/yld/reader.go and
// os/mkbootimg/main.go, both of which hand-roll a small binary container
// format the same way.
package vmb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/OmidArdestani/RTMC-Framework/internal/codegen"
)

// magic is 'R','T','M','C' read as a little-endian u32, per spec §6.
const magic uint32 = 0x434D5452

const formatVersion uint32 = 1

const headerSize = 4 * 9 // magic, version, mode, 5 counts, checksum = 9 u32 fields

// constant-pool tag values spec §6's layout assigns: 0=i32, 1=u32, 2=f32, 3=ptr.
const (
	tagI32 byte = 0
	tagU32 byte = 1
	tagF32 byte = 2
	tagPtr byte = 3
)

func constTag(tag codegen.ConstTag) byte {
	switch tag {
	case codegen.ConstFloat:
		return tagF32
	case codegen.ConstStringRef:
		return tagPtr
	default: // ConstInt, ConstChar, ConstBool all serialize as a 4-byte int
		return tagI32
	}
}

func constTagToKind(tag byte) codegen.ConstTag {
	switch tag {
	case tagF32:
		return codegen.ConstFloat
	case tagPtr:
		return codegen.ConstStringRef
	default:
		return codegen.ConstInt
	}
}

// Write serializes prog per spec §6's layout and writes it to path.
func Write(path string, prog *codegen.Program) error {
	data, err := Marshal(prog)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal encodes prog into an in-memory .vmb image.
func Marshal(prog *codegen.Program) ([]byte, error) {
	debug := prog.Mode == codegen.Debug

	var body bytes.Buffer
	if err := writeInstructions(&body, prog.Instructions, debug); err != nil {
		return nil, err
	}
	writeConstants(&body, prog.Constants)
	writeStrings(&body, prog.Strings)
	if err := writeFunctions(&body, prog.Functions); err != nil {
		return nil, err
	}
	if debug {
		if err := writeSymbols(&body, prog.Globals); err != nil {
			return nil, err
		}
	}

	checksum := crc32.ChecksumIEEE(body.Bytes())

	header := make([]byte, headerSize)
	mode := uint32(0)
	if debug {
		mode = 1
	}
	symCount := 0
	if debug {
		symCount = len(prog.Globals)
	}
	binary.LittleEndian.PutUint32(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], formatVersion)
	binary.LittleEndian.PutUint32(header[8:12], mode)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(prog.Instructions)))
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(prog.Constants)))
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(prog.Strings)))
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(prog.Functions)))
	binary.LittleEndian.PutUint32(header[28:32], uint32(symCount))
	binary.LittleEndian.PutUint32(header[32:36], checksum)

	out := make([]byte, 0, len(header)+body.Len())
	out = append(out, header...)
	out = append(out, body.Bytes()...)
	return out, nil
}

func writeInstructions(buf *bytes.Buffer, instrs []codegen.Instruction, debug bool) error {
	for _, ins := range instrs {
		if len(ins.Operands) > 255 {
			return fmt.Errorf("vmb: instruction has %d operands, exceeds u8 operand_count", len(ins.Operands))
		}
		buf.WriteByte(byte(ins.Op))
		buf.WriteByte(byte(len(ins.Operands)))
		var tmp [8]byte
		for _, op := range ins.Operands {
			binary.LittleEndian.PutUint64(tmp[:], uint64(op))
			buf.Write(tmp[:])
		}
		if debug {
			var lc [8]byte
			binary.LittleEndian.PutUint32(lc[0:4], uint32(ins.Line))
			binary.LittleEndian.PutUint32(lc[4:8], uint32(ins.Col))
			buf.Write(lc[:])
		}
	}
	return nil
}

func writeConstants(buf *bytes.Buffer, consts []codegen.Constant) {
	for _, c := range consts {
		buf.WriteByte(constTag(c.Tag))
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(c.Bits))
		buf.Write(tmp[:])
	}
}

func writeStrings(buf *bytes.Buffer, strs []string) {
	for _, s := range strs {
		var ln [2]byte
		binary.LittleEndian.PutUint16(ln[:], uint16(len(s)))
		buf.Write(ln[:])
		buf.WriteString(s)
	}
}

func writeFunctions(buf *bytes.Buffer, fns []codegen.FuncMeta) error {
	for _, fn := range fns {
		if len(fn.Name) > 255 {
			return fmt.Errorf("vmb: function name %q exceeds u8 name_len", fn.Name)
		}
		buf.WriteByte(byte(len(fn.Name)))
		buf.WriteString(fn.Name)
		var addr [4]byte
		binary.LittleEndian.PutUint32(addr[:], uint32(fn.Addr))
		buf.Write(addr[:])
	}
	return nil
}

func writeSymbols(buf *bytes.Buffer, globals []codegen.GlobalMeta) error {
	for _, g := range globals {
		if len(g.Name) > 255 {
			return fmt.Errorf("vmb: symbol name %q exceeds u8 name_len", g.Name)
		}
		buf.WriteByte(byte(len(g.Name)))
		buf.WriteString(g.Name)
		var addr [4]byte
		binary.LittleEndian.PutUint32(addr[:], uint32(g.Address))
		buf.Write(addr[:])
	}
	return nil
}
