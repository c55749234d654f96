package vmb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmidArdestani/RTMC-Framework/internal/codegen"
	"github.com/OmidArdestani/RTMC-Framework/internal/lexer"
	"github.com/OmidArdestani/RTMC-Framework/internal/parser"
	"github.com/OmidArdestani/RTMC-Framework/internal/sema"
)

func buildProgram(t *testing.T, src string, mode codegen.Mode) *codegen.Program {
	t.Helper()
	toks, lexErr := lexer.Lex("t.rtmc", src)
	require.Nil(t, lexErr)
	ast, parseErr := parser.Parse("t.rtmc", toks)
	require.Nil(t, parseErr)
	res, semErr := sema.Analyze("t.rtmc", ast)
	require.Nil(t, semErr)
	prog, cgErr := codegen.Generate("t.rtmc", ast, res, mode)
	require.Nil(t, cgErr)
	return prog
}

const ledSrc = `void run(){ HW_GPIO_INIT(13,1); while(1){ HW_GPIO_SET(13,1); RTOS_DELAY_MS(500); HW_GPIO_SET(13,0); RTOS_DELAY_MS(500);} }
void main(){ StartTask(1024,0,2,1,run); }`

// Testable property 8: read-back of a serialized image reproduces the
// in-memory program's pools, instruction sequence, and function table.
func TestRoundTripReleaseMode(t *testing.T) {
	prog := buildProgram(t, ledSrc, codegen.Release)
	data, err := Marshal(prog)
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, prog.Instructions, back.Instructions)
	assert.Equal(t, prog.Constants, back.Constants)
	assert.Equal(t, prog.Strings, back.Strings)
	require.Len(t, back.Functions, len(prog.Functions))
	for i, fn := range prog.Functions {
		assert.Equal(t, fn.Name, back.Functions[i].Name)
		assert.Equal(t, fn.Addr, back.Functions[i].Addr)
	}
	assert.Equal(t, prog.EntryFunc, back.EntryFunc)
}

func TestRoundTripDebugModeCarriesSourcePositions(t *testing.T) {
	prog := buildProgram(t, ledSrc, codegen.Debug)
	data, err := Marshal(prog)
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, back.Instructions, len(prog.Instructions))
	for i, ins := range prog.Instructions {
		assert.Equal(t, ins.Line, back.Instructions[i].Line)
		assert.Equal(t, ins.Col, back.Instructions[i].Col)
	}
}

// Testable property 6: compiling the same source twice produces
// byte-identical output in release mode.
func TestMarshalIsDeterministic(t *testing.T) {
	p1 := buildProgram(t, ledSrc, codegen.Release)
	p2 := buildProgram(t, ledSrc, codegen.Release)
	d1, err := Marshal(p1)
	require.NoError(t, err)
	d2, err := Marshal(p2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestHeaderFields(t *testing.T) {
	prog := buildProgram(t, `int a = 7;`, codegen.Release)
	data, err := Marshal(prog)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), headerSize)
	assert.Equal(t, byte('R'), data[0])
	assert.Equal(t, byte('T'), data[1])
	assert.Equal(t, byte('M'), data[2])
	assert.Equal(t, byte('C'), data[3])
}

func TestBadMagicRejected(t *testing.T) {
	prog := buildProgram(t, `int a = 7;`, codegen.Release)
	data, err := Marshal(prog)
	require.NoError(t, err)
	data[0] = 0
	_, err = Unmarshal(data)
	assert.Error(t, err)
}

func TestCorruptedChecksumRejected(t *testing.T) {
	prog := buildProgram(t, `int a = 7; int f() { return a; }`, codegen.Release)
	data, err := Marshal(prog)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	_, err = Unmarshal(data)
	assert.Error(t, err)
}

func TestDebugSymbolsCarryGlobalNamesAndAddresses(t *testing.T) {
	prog := buildProgram(t, `int a; int b;`, codegen.Debug)
	data, err := Marshal(prog)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, back.Globals, 2)
	assert.Equal(t, "a", back.Globals[0].Name)
	assert.Equal(t, "b", back.Globals[1].Name)
}

func TestNegativeAndFloatConstantsRoundTrip(t *testing.T) {
	prog := buildProgram(t, `int f() { int x; x = -1; float y; y = 2.5; return x; }`, codegen.Release)
	data, err := Marshal(prog)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, prog.Constants, back.Constants)
}

func TestReleaseModeHasNoSymbols(t *testing.T) {
	prog := buildProgram(t, `int a; int b;`, codegen.Release)
	data, err := Marshal(prog)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, back.Globals)
}
