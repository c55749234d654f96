package codegen

import (
	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/diag"
)

var intrinsicOpcode = map[string]Opcode{
	"RTOS_DELETE_TASK": OpRtosDeleteTask, "RTOS_DELAY_MS": OpRtosDelayMs, "RTOS_YIELD": OpRtosYield,
	"RTOS_SUSPEND_TASK": OpRtosSuspendTask, "RTOS_RESUME_TASK": OpRtosResumeTask,
	"RTOS_SEMAPHORE_CREATE": OpRtosSemaphoreCreate, "RTOS_SEMAPHORE_TAKE": OpRtosSemaphoreTake,
	"RTOS_SEMAPHORE_GIVE": OpRtosSemaphoreGive,

	"HW_GPIO_INIT": OpHwGpioInit, "HW_GPIO_SET": OpHwGpioSet, "HW_GPIO_GET": OpHwGpioGet,
	"HW_TIMER_INIT": OpHwTimerInit, "HW_TIMER_START": OpHwTimerStart, "HW_TIMER_STOP": OpHwTimerStop,
	"HW_TIMER_SET_PWM_DUTY": OpHwTimerSetPwmDuty,
	"HW_ADC_INIT":           OpHwAdcInit, "HW_ADC_READ": OpHwAdcRead,
	"HW_UART_WRITE": OpHwUartWrite, "HW_SPI_TRANSFER": OpHwSpiTransfer,
	"HW_I2C_WRITE": OpHwI2cWrite, "HW_I2C_READ": OpHwI2cRead,

	"DBG_BREAKPOINT": OpDbgBreakpoint,
}

func (g *Generator) genCall(e *ast.CallExpr) *diag.Error {
	switch e.Callee {
	case "StartTask":
		return g.genStartTask(e)
	case "DBG_PRINT":
		return g.genDbgPrint(e)
	case "DBG_PRINTF":
		return g.genDbgPrintf(e)
	case "SYSCALL":
		return g.genSyscall(e)
	}
	if op, ok := intrinsicOpcode[e.Callee]; ok {
		return g.genFixedIntrinsic(e, op)
	}
	return g.genUserCall(e)
}

func (g *Generator) genFixedIntrinsic(e *ast.CallExpr, op Opcode) *diag.Error {
	for _, arg := range e.Args {
		if err := g.genValue(arg); err != nil {
			return err
		}
	}
	loc := e.GetLoc()
	g.em.Emit(loc, op)
	g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(0)))
	return nil
}

func (g *Generator) genUserCall(e *ast.CallExpr) *diag.Error {
	for _, arg := range e.Args {
		if err := g.genValue(arg); err != nil {
			return err
		}
	}
	fn := g.res.Functions[g.res.FunctionIndex[e.Callee]]
	g.em.Emit(e.GetLoc(), OpCall, int64(fn.ID), int64(len(e.Args)))
	return nil
}

// genStartTask lowers "StartTask(stackSize, core, priority, taskID, fn)" to
// a single RTOS_CREATE_TASK instruction carrying all five fields as baked
// operands, per spec §6's worked example. The first four must be
// compile-time-constant ints (sema already confirmed arity/shape); fn's
// code address is resolved by a deferred patch once every function has
// been emitted, since StartTask may name a function declared later in the
// file.
func (g *Generator) genStartTask(e *ast.CallExpr) *diag.Error {
	loc := e.GetLoc()
	vals := make([]int64, 4)
	for i := 0; i < 4; i++ {
		v, ok := constFoldInt(e.Args[i])
		if !ok {
			return diag.New(diag.TypeMismatch, g.file, e.Args[i].GetLoc().Line, e.Args[i].GetLoc().Column,
				"StartTask argument %d must be a compile-time constant", i+1)
		}
		vals[i] = v
	}
	fnName := e.Args[4].(*ast.IdentExpr).Name
	idx := g.em.Emit(loc, OpRtosCreateTask, vals[0], vals[1], vals[2], vals[3], -1)
	g.funcPatches = append(g.funcPatches, funcAddrPatch{site: patchSite{instr: idx, operand: 4}, name: fnName})
	g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(vals[3])))
	return nil
}

func (g *Generator) genDbgPrint(e *ast.CallExpr) *diag.Error {
	lit := e.Args[0].(*ast.LiteralExpr)
	loc := e.GetLoc()
	sid := g.strPool.intern(lit.StrVal)
	g.em.Emit(loc, OpPrint, int64(sid))
	g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(0)))
	return nil
}

func (g *Generator) genDbgPrintf(e *ast.CallExpr) *diag.Error {
	lit := e.Args[0].(*ast.LiteralExpr)
	loc := e.GetLoc()
	sid := g.strPool.intern(lit.StrVal)
	for _, arg := range e.Args[1:] {
		if err := g.genValue(arg); err != nil {
			return err
		}
	}
	g.em.Emit(loc, OpPrintf, int64(sid), int64(len(e.Args)-1))
	g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(0)))
	return nil
}

func (g *Generator) genSyscall(e *ast.CallExpr) *diag.Error {
	for _, arg := range e.Args {
		if err := g.genValue(arg); err != nil {
			return err
		}
	}
	loc := e.GetLoc()
	g.em.Emit(loc, OpSyscall, int64(len(e.Args)))
	g.em.Emit(loc, OpLoadConst, int64(g.constPool.internInt(0)))
	return nil
}
