package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmidArdestani/RTMC-Framework/internal/lexer"
	"github.com/OmidArdestani/RTMC-Framework/internal/parser"
	"github.com/OmidArdestani/RTMC-Framework/internal/sema"
)

func compile(t *testing.T, src string) *Program {
	t.Helper()
	toks, lexErr := lexer.Lex("t.rtmc", src)
	require.Nil(t, lexErr)
	prog, parseErr := parser.Parse("t.rtmc", toks)
	require.Nil(t, parseErr)
	res, semErr := sema.Analyze("t.rtmc", prog)
	require.Nil(t, semErr, "unexpected semantic error: %v", semErr)
	out, cgErr := Generate("t.rtmc", prog, res, Release)
	require.Nil(t, cgErr, "unexpected codegen error: %v", cgErr)
	return out
}

func instrsOf(p *Program, fn string) []Instruction {
	var meta FuncMeta
	for _, f := range p.Functions {
		if f.Name == fn {
			meta = f
		}
	}
	end := len(p.Instructions)
	for _, f := range p.Functions {
		if f.Addr > meta.Addr && f.Addr < end {
			end = f.Addr
		}
	}
	return p.Instructions[meta.Addr:end]
}

func countOp(instrs []Instruction, op Opcode) int {
	n := 0
	for _, ins := range instrs {
		if ins.Op == op {
			n++
		}
	}
	return n
}

func indexOf(instrs []Instruction, op Opcode) int {
	for i, ins := range instrs {
		if ins.Op == op {
			return i
		}
	}
	return -1
}

// Scenario A: StartTask lowers to a single RTOS_CREATE_TASK carrying all
// five fields, with the function address resolved even though "run" is
// declared before "main" calls StartTask on it (forward reference from the
// generator's perspective is trivial here, backward in source order).
func TestScenarioA_LEDBlink(t *testing.T) {
	src := `void run(){ HW_GPIO_INIT(13,1); while(1){ HW_GPIO_SET(13,1); RTOS_DELAY_MS(500); HW_GPIO_SET(13,0); RTOS_DELAY_MS(500);} }
	void main(){ StartTask(1024,0,2,1,run); }`
	p := compile(t, src)

	mainInstrs := instrsOf(p, "main")
	require.Equal(t, 1, countOp(mainInstrs, OpRtosCreateTask))

	var create Instruction
	for _, ins := range mainInstrs {
		if ins.Op == OpRtosCreateTask {
			create = ins
		}
	}
	require.Len(t, create.Operands, 5)
	assert.Equal(t, int64(1024), create.Operands[0])
	assert.Equal(t, int64(0), create.Operands[1])
	assert.Equal(t, int64(2), create.Operands[2])
	assert.Equal(t, int64(1), create.Operands[3])

	runFn := func() FuncMeta {
		for _, f := range p.Functions {
			if f.Name == "run" {
				return f
			}
		}
		t.Fatal("run not found")
		return FuncMeta{}
	}()
	assert.Equal(t, int64(runFn.Addr), create.Operands[4])

	runInstrs := instrsOf(p, "run")
	var jumpIdx, gpioSetIdx int = -1, -1
	for i, ins := range runInstrs {
		if ins.Op == OpJump && jumpIdx == -1 {
			jumpIdx = i
		}
		if ins.Op == OpHwGpioSet && gpioSetIdx == -1 {
			gpioSetIdx = i
		}
	}
	require.NotEqual(t, -1, jumpIdx)
	require.NotEqual(t, -1, gpioSetIdx)
	// the while(1) loop's back-jump targets the condition check, which
	// precedes the first HW_GPIO_SET inside the loop body.
	assert.Less(t, int(runInstrs[jumpIdx].Operands[0]), gpioSetIdx+runFn.Addr)
}

// Scenario C: Q.recv(timeout:500) pushes the timeout then MSG_RECV; the
// no-argument form pushes -1 (blocking).
func TestScenarioC_MessageRecvTimeout(t *testing.T) {
	src := `message<int> Q;
	int consumer() { int x = Q.recv(timeout: 500); return x; }
	int blocker() { int x = Q.recv(); return x; }`
	p := compile(t, src)

	c := instrsOf(p, "consumer")
	recvIdx := indexOf(c, OpMsgRecv)
	require.Greater(t, recvIdx, 0)
	loadBeforeRecv := c[recvIdx-1]
	assert.Equal(t, OpLoadConst, loadBeforeRecv.Op)
	assert.Equal(t, int64(500), p.Constants[loadBeforeRecv.Operands[0]].Bits)

	b := instrsOf(p, "blocker")
	recvIdx = indexOf(b, OpMsgRecv)
	require.Greater(t, recvIdx, 0)
	loadBeforeRecv = b[recvIdx-1]
	assert.Equal(t, OpLoadConst, loadBeforeRecv.Op)
	assert.Equal(t, int64(-1), p.Constants[loadBeforeRecv.Operands[0]].Bits)
}

func TestMessageSendLowering(t *testing.T) {
	src := `message<int> Q;
	void producer() { Q.send(42); }`
	p := compile(t, src)
	instrs := instrsOf(p, "producer")
	require.True(t, countOp(instrs, OpMsgSend) == 1)
}

func TestGlobalVarDeclareEmitted(t *testing.T) {
	p := compile(t, `int a = 7; int f() { return a; }`)
	found := false
	for _, ins := range p.Instructions {
		if ins.Op == OpGlobalVarDeclare {
			found = true
			assert.Equal(t, int64(7), p.Constants[ins.Operands[1]].Bits)
		}
	}
	assert.True(t, found)
}

func TestArrayGlobalOneInstructionPerElement(t *testing.T) {
	p := compile(t, `int table[] = { 1, 2, 3, 4 };`)
	n := 0
	for _, ins := range p.Instructions {
		if ins.Op == OpGlobalVarDeclare {
			n++
		}
	}
	assert.Equal(t, 4, n)
}

// Function prologue/epilogue: every function starts with ALLOC_FRAME and
// the fall-through path still tears down the frame and returns.
func TestFunctionPrologueEpilogueShape(t *testing.T) {
	p := compile(t, `void f() { int x; x = 1; }`)
	instrs := instrsOf(p, "f")
	require.NotEmpty(t, instrs)
	assert.Equal(t, OpAllocFrame, instrs[0].Op)
	last3 := instrs[len(instrs)-3:]
	assert.Equal(t, OpLoadConst, last3[0].Op)
	assert.Equal(t, OpFreeFrame, last3[1].Op)
	assert.Equal(t, OpRet, last3[2].Op)
}

func TestIfElseBackpatchedJumps(t *testing.T) {
	p := compile(t, `int f(int x) { if (x > 0) { return 1; } else { return 0; } }`)
	instrs := instrsOf(p, "f")
	require.Equal(t, 1, countOp(instrs, OpJumpIfFalse))
	require.Equal(t, 1, countOp(instrs, OpJump))
	for _, ins := range instrs {
		if ins.Op == OpJumpIfFalse || ins.Op == OpJump {
			assert.NotEqual(t, int64(-1), ins.Operands[0])
		}
	}
}

func TestWhileLoopBackEdge(t *testing.T) {
	p := compile(t, `void f() { int i; i = 0; while (i < 10) { i = i + 1; } }`)
	instrs := instrsOf(p, "f")
	require.Equal(t, 1, countOp(instrs, OpJump))
	for i, ins := range instrs {
		if ins.Op == OpJump {
			// back-edge target must be an earlier instruction index.
			assert.Less(t, int(ins.Operands[0]), i)
		}
	}
}

func TestForLoopContinueJumpsToPost(t *testing.T) {
	p := compile(t, `void f() { for (int i = 0; i < 10; i = i + 1) { continue; } }`)
	instrs := instrsOf(p, "f")
	assert.GreaterOrEqual(t, countOp(instrs, OpJump), 2)
}

// Assignment-as-value: "x = y = 1" must leave 1 on the stack for the outer
// assignment's own store, via the DUP-before-store convention.
func TestAssignmentAsValue(t *testing.T) {
	p := compile(t, `void f() { int x; int y; x = y = 1; }`)
	instrs := instrsOf(p, "f")
	assert.Equal(t, 2, countOp(instrs, OpDup))
	assert.Equal(t, 2, countOp(instrs, OpStoreVar))
}

func TestCompoundAssignDesugarsToUnderlyingOp(t *testing.T) {
	p := compile(t, `void f() { int x; x = 1; x += 2; }`)
	instrs := instrsOf(p, "f")
	assert.Equal(t, 1, countOp(instrs, OpAdd))
}

func TestShortCircuitAnd(t *testing.T) {
	p := compile(t, `int f(int a, int b) { if (a > 0 && b > 0) { return 1; } return 0; }`)
	instrs := instrsOf(p, "f")
	assert.GreaterOrEqual(t, countOp(instrs, OpJumpIfFalse), 1)
}

func TestStructFieldAndBitFieldAccess(t *testing.T) {
	p := compile(t, `struct Packed { int a:16; int b:16; };
	int f() { Packed p; p.a = 5; return p.a; }`)
	instrs := instrsOf(p, "f")
	require.Equal(t, 1, countOp(instrs, OpStoreStructMemberBit))
	require.Equal(t, 1, countOp(instrs, OpLoadStructMemberBit))
}

func TestArrayElementLoadStore(t *testing.T) {
	p := compile(t, `int f() { int a[4]; a[1] = 9; return a[1]; }`)
	instrs := instrsOf(p, "f")
	assert.Equal(t, 1, countOp(instrs, OpStoreArrayElem))
	assert.Equal(t, 1, countOp(instrs, OpLoadArrayElem))
}

func TestDbgPrintInternsStringConstant(t *testing.T) {
	p := compile(t, `void f() { DBG_PRINT("hello"); }`)
	require.Contains(t, p.Strings, "hello")
	instrs := instrsOf(p, "f")
	require.Equal(t, 1, countOp(instrs, OpPrint))
}

func TestDbgPrintfPushesArgsThenInterns(t *testing.T) {
	p := compile(t, `void f() { int x; x = 1; DBG_PRINTF("v={}", x); }`)
	require.Contains(t, p.Strings, "v={}")
	instrs := instrsOf(p, "f")
	for _, ins := range instrs {
		if ins.Op == OpPrintf {
			assert.Equal(t, int64(1), ins.Operands[1])
		}
	}
}

func TestExprStmtAlwaysPops(t *testing.T) {
	p := compile(t, `void f() { int x; x = 1; x + 1; }`)
	instrs := instrsOf(p, "f")
	assert.GreaterOrEqual(t, countOp(instrs, OpPop), 1)
}
