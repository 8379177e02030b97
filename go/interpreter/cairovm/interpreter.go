// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cairovm

import (
	"errors"
	"fmt"
	"math"

	"github.com/Fantom-foundation/Aria/go/aria"
)

// status is enumeration of the execution state of an interpreter run.
type status byte

const (
	statusRunning status = iota // < all fine, instructions are processed
	statusHalted                // < the program counter reached the end of the entry point
)

// builtinSegment is a builtin requested by the entry point together with the
// segment holding its instances.
type builtinSegment struct {
	runner builtinRunner
	base   Relocatable
}

// context is the execution environment of an interpreter run. It contains all
// the necessary state to execute an entry point, including input parameters,
// the program, and internal execution state such as the registers and the
// memory. For each entry point execution, a new context is created.
type context struct {
	// Inputs
	params  aria.Parameters
	context aria.RunContext
	program *Program
	costs   *aria.GasCosts

	// Execution state
	pc, ap, fp Relocatable
	gas        aria.Gas
	steps      *aria.StepCounter
	memory     *Memory

	// Segment layout
	execution    int
	syscalls     Relocatable
	builtins     []builtinSegment
	hintSegments []int
	end          Relocatable

	// Resources consumed by this frame, excluding nested calls.
	stepsUsed uint64
	resources aria.ExecutionResources
}

// useGas reduces the gas level by the given amount.
func (c *context) useGas(amount aria.Gas) error {
	if c.gas < amount {
		c.gas = 0
		return fmt.Errorf("%w: out of gas", aria.ErrResourceExhausted)
	}
	c.gas -= amount
	return nil
}

// --- Interpreter ---

type runner interface {
	// run executes the entry point set up in the given context until it
	// halts. Any error aborts the execution; recoverable errors are turned
	// into failed results by the caller.
	run(*context) error
}

func run(config Config, program *Program, params aria.Parameters) (aria.Result, error) {
	steps := params.Steps
	if steps == nil {
		steps = aria.NewStepCounter(math.MaxUint64)
	}
	costs := params.Costs
	if costs == nil {
		defaults := aria.DefaultGasCosts()
		costs = &defaults
	}

	ctxt := context{
		params:  params,
		context: params.Context,
		program: program,
		costs:   costs,
		gas:     params.Gas,
		steps:   steps,
		memory:  NewMemory(),
	}

	if err := setup(&ctxt); err != nil {
		return failure(&ctxt, err)
	}

	if config.runner == nil {
		config.runner = vanillaRunner{}
	}
	if err := config.runner.run(&ctxt); err != nil {
		return failure(&ctxt, err)
	}
	return generateResult(&ctxt)
}

// setup lays out the memory segments and the initial stack of an entry
// point call.
func setup(c *context) error {
	ep, err := c.program.entryPoint(c.params.EntryPointType, c.params.Selector)
	if err != nil {
		return err
	}

	programBase := c.memory.addReadOnlySegment(c.program.class.Bytecode)
	execution := c.memory.AddSegment()
	c.execution = execution.Segment

	stack := make([]Value, 0, len(ep.Builtins)+5)
	for _, kind := range ep.Builtins {
		builtin, err := newBuiltinRunner(kind)
		if err != nil {
			return err
		}
		base := c.memory.addBuiltinSegment(builtin)
		c.builtins = append(c.builtins, builtinSegment{runner: builtin, base: base})
		stack = append(stack, PtrValue(base))
	}

	c.syscalls = c.memory.AddSegment()
	calldata := c.memory.AddSegment()
	calldataEnd, err := c.memory.LoadFelts(calldata, c.params.Calldata)
	if err != nil {
		return err
	}
	returnFp := c.memory.AddSegment()
	c.end = c.memory.AddSegment()

	stack = append(stack,
		PtrValue(c.syscalls),
		PtrValue(calldata),
		PtrValue(calldataEnd),
		PtrValue(returnFp),
		PtrValue(c.end),
	)
	top, err := c.memory.Load(execution, stack)
	if err != nil {
		return err
	}
	c.pc = programBase.Add(ep.Offset)
	c.ap = top
	c.fp = top
	return nil
}

// failure converts an error into a result. Fatal errors are returned as
// such, recoverable errors produce a failed result.
func failure(c *context, err error) (aria.Result, error) {
	if aria.IsFatal(err) {
		return aria.Result{}, err
	}
	gasLeft := c.gas
	if errors.Is(err, aria.ErrResourceExhausted) {
		gasLeft = 0
	}
	resources := c.resources
	resources.Steps += c.stepsUsed
	return aria.Result{
		Success:   false,
		Retdata:   []aria.Felt{aria.FailureReason(err)},
		GasLeft:   gasLeft,
		Resources: resources,
		Failure:   err,
	}, nil
}

// generateResult reads the return values of a halted run, validates the
// builtin segments, and charges the builtin usage.
func generateResult(c *context) (aria.Result, error) {
	// Below ap: [builtin stop pointers..., syscall ptr, failure flag, retdata start, retdata end]
	numReturns := len(c.builtins) + 4
	base, err := c.ap.AddOffset(-numReturns)
	if err != nil {
		return failure(c, fmt.Errorf("%w: missing return values", aria.ErrExecution))
	}
	for i, builtin := range c.builtins {
		stop, err := c.memory.GetPtr(base.Add(uint64(i)))
		if err != nil {
			return failure(c, err)
		}
		if err := checkStopPointer(c.memory, builtin, stop); err != nil {
			return aria.Result{}, err
		}
	}
	sysStop, err := c.memory.GetPtr(base.Add(uint64(len(c.builtins))))
	if err != nil {
		return failure(c, err)
	}
	if sysStop.Segment != c.syscalls.Segment {
		return aria.Result{}, fmt.Errorf("%w: syscall stop pointer %v outside of the syscall segment", aria.ErrBuiltinValidation, sysStop)
	}
	flag, err := c.memory.GetFelt(base.Add(uint64(len(c.builtins)) + 1))
	if err != nil {
		return failure(c, err)
	}
	start, err := c.memory.GetPtr(base.Add(uint64(len(c.builtins)) + 2))
	if err != nil {
		return failure(c, err)
	}
	end, err := c.memory.GetPtr(base.Add(uint64(len(c.builtins)) + 3))
	if err != nil {
		return failure(c, err)
	}
	retdata, err := c.memory.GetRange(start, end)
	if err != nil {
		return failure(c, err)
	}

	for _, builtin := range c.builtins {
		if err := builtin.runner.finalize(c.memory, builtin.base.Segment); err != nil {
			return aria.Result{}, err
		}
	}
	if _, err := c.memory.Relocate(); err != nil {
		return aria.Result{}, err
	}

	resources := c.resources
	resources.Steps += c.stepsUsed
	resources.MemoryHoles += c.memory.Holes(append([]int{c.execution}, c.hintSegments...)...)
	for _, builtin := range c.builtins {
		kind := builtin.runner.kind()
		instances := builtinInstances(c.memory, builtin)
		resources.Builtins[kind] += instances
		if err := c.useGas(c.costs.Builtins[kind] * aria.Gas(instances)); err != nil {
			return failure(c, err)
		}
	}

	switch {
	case flag.IsZero():
		return aria.Result{
			Success:   true,
			Retdata:   retdata,
			GasLeft:   c.gas,
			Resources: resources,
		}, nil
	case flag == aria.One:
		return aria.Result{
			Success:   false,
			Retdata:   retdata,
			GasLeft:   c.gas,
			Resources: resources,
			Failure:   aria.ErrReverted,
		}, nil
	}
	return failure(c, fmt.Errorf("%w: invalid failure flag %v", aria.ErrExecution, flag))
}

func checkStopPointer(mem *Memory, builtin builtinSegment, stop Relocatable) error {
	if stop.Segment != builtin.base.Segment {
		return fmt.Errorf("%w: %v stop pointer %v outside of its segment", aria.ErrBuiltinValidation, builtin.runner.kind(), stop)
	}
	if used := mem.SegmentUsedSize(stop.Segment); stop.Offset < used {
		return fmt.Errorf("%w: %v stop pointer %v below used size %d", aria.ErrBuiltinValidation, builtin.runner.kind(), stop, used)
	}
	return nil
}

func builtinInstances(mem *Memory, builtin builtinSegment) uint64 {
	cells := builtin.runner.cellsPerInstance()
	return (mem.SegmentUsedSize(builtin.base.Segment) + cells - 1) / cells
}

// --- Runners ---

// vanillaRunner is the default runner that executes the program without
// any additional features.
type vanillaRunner struct{}

func (r vanillaRunner) run(c *context) error {
	status := statusRunning
	var err error
	for status == statusRunning {
		status, err = step(c)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Execution ---

// step executes the hints and the instruction at the current program
// counter.
func step(c *context) (status, error) {
	if c.pc == c.end {
		return statusHalted, nil
	}
	if c.pc.Segment != 0 {
		return statusRunning, fmt.Errorf("%w: program counter %v outside of the program", aria.ErrExecution, c.pc)
	}
	for i := range c.program.hints[c.pc.Offset] {
		if err := runHint(c, &c.program.hints[c.pc.Offset][i]); err != nil {
			return statusRunning, err
		}
	}
	instr, err := c.program.instruction(c.pc.Offset)
	if err != nil {
		return statusRunning, err
	}
	if !c.steps.Use(1) {
		return statusRunning, fmt.Errorf("%w: step limit reached", aria.ErrResourceExhausted)
	}
	if err := c.useGas(c.costs.Step); err != nil {
		return statusRunning, err
	}
	c.stepsUsed++
	return statusRunning, execute(c, instr)
}

// operands are the resolved operands of an instruction.
type operands struct {
	dstAddr, op0Addr, op1Addr Relocatable
	dst, op0, op1, res        Value
	resKnown                  bool
}

func execute(c *context, instr *Instruction) error {
	ops, err := computeOperands(c, instr)
	if err != nil {
		return err
	}
	if instr.Opcode == opAssertEq {
		if !ops.resKnown {
			return fmt.Errorf("%w: undefined result of assert_eq at pc %v", aria.ErrExecution, c.pc)
		}
		if ops.dst != ops.res {
			return fmt.Errorf("%w: assert_eq failed at pc %v: %v != %v", aria.ErrExecution, c.pc, ops.dst, ops.res)
		}
	}
	if instr.Opcode == opCall {
		if ops.op0 != PtrValue(c.pc.Add(instr.Size())) || ops.dst != PtrValue(c.fp) {
			return fmt.Errorf("%w: call at pc %v does not store the return frame", aria.ErrExecution, c.pc)
		}
	}
	c.memory.MarkAccessed(ops.dstAddr)
	c.memory.MarkAccessed(ops.op0Addr)
	c.memory.MarkAccessed(ops.op1Addr)
	return updateRegisters(c, instr, &ops)
}

func (c *context) operandAddress(reg aria.Register, off int16) (Relocatable, error) {
	return c.register(reg).AddOffset(int(off))
}

func computeOperands(c *context, instr *Instruction) (operands, error) {
	var ops operands
	var err error
	var dstKnown, op0Known, op1Known bool

	if ops.dstAddr, err = c.operandAddress(instr.DstReg, instr.OffDst); err != nil {
		return ops, err
	}
	if ops.dst, dstKnown, err = c.memory.Get(ops.dstAddr); err != nil {
		return ops, err
	}
	if ops.op0Addr, err = c.operandAddress(instr.Op0Reg, instr.OffOp0); err != nil {
		return ops, err
	}
	if ops.op0, op0Known, err = c.memory.Get(ops.op0Addr); err != nil {
		return ops, err
	}

	if !op0Known {
		var deduced bool
		if ops.op0, deduced, err = deduceOp0(c, instr, ops.dst, dstKnown); err != nil {
			return ops, err
		}
		if !deduced {
			return ops, fmt.Errorf("%w: unknown op0 at %v", aria.ErrExecution, ops.op0Addr)
		}
		if err := c.memory.Set(ops.op0Addr, ops.op0); err != nil {
			return ops, err
		}
	}

	switch instr.Op1Src {
	case op1Imm:
		ops.op1Addr = c.pc.Add(1)
	case op1FromAP:
		ops.op1Addr, err = c.ap.AddOffset(int(instr.OffOp1))
	case op1FromFP:
		ops.op1Addr, err = c.fp.AddOffset(int(instr.OffOp1))
	default:
		base, ok := ops.op0.Ptr()
		if !ok {
			return ops, fmt.Errorf("%w: op0 %v is not a pointer at pc %v", aria.ErrExecution, ops.op0, c.pc)
		}
		ops.op1Addr, err = base.AddOffset(int(instr.OffOp1))
	}
	if err != nil {
		return ops, err
	}
	if ops.op1, op1Known, err = c.memory.Get(ops.op1Addr); err != nil {
		return ops, err
	}

	if !op1Known {
		var deduced bool
		if ops.op1, deduced, err = deduceOp1(instr, ops.dst, dstKnown, ops.op0); err != nil {
			return ops, err
		}
		if !deduced {
			return ops, fmt.Errorf("%w: unknown op1 at %v", aria.ErrExecution, ops.op1Addr)
		}
		if err := c.memory.Set(ops.op1Addr, ops.op1); err != nil {
			return ops, err
		}
	}

	if ops.res, ops.resKnown, err = computeRes(instr, ops.op0, ops.op1); err != nil {
		return ops, err
	}

	if !dstKnown {
		switch {
		case instr.Opcode == opAssertEq && ops.resKnown:
			ops.dst = ops.res
		case instr.Opcode == opCall:
			ops.dst = PtrValue(c.fp)
		default:
			return ops, fmt.Errorf("%w: unknown dst at %v", aria.ErrExecution, ops.dstAddr)
		}
		if err := c.memory.Set(ops.dstAddr, ops.dst); err != nil {
			return ops, err
		}
	}
	return ops, nil
}

func deduceOp0(c *context, instr *Instruction, dst Value, dstKnown bool) (Value, bool, error) {
	switch instr.Opcode {
	case opCall:
		return PtrValue(c.pc.Add(instr.Size())), true, nil
	case opAssertEq:
		if !dstKnown || instr.Op1Src == op1FromOp0 {
			return Value{}, false, nil
		}
		op1Addr, err := c.op1AddressWithoutOp0(instr)
		if err != nil {
			return Value{}, false, err
		}
		op1, known, err := c.memory.Get(op1Addr)
		if err != nil || !known {
			return Value{}, false, err
		}
		switch instr.Res {
		case resAdd:
			res, err := dst.Sub(op1)
			return res, err == nil, err
		case resMul:
			d, dOk := dst.Felt()
			o, oOk := op1.Felt()
			if dOk && oOk && !o.IsZero() {
				return FeltValue(d.Div(o)), true, nil
			}
		}
	}
	return Value{}, false, nil
}

func (c *context) op1AddressWithoutOp0(instr *Instruction) (Relocatable, error) {
	switch instr.Op1Src {
	case op1Imm:
		return c.pc.Add(1), nil
	case op1FromAP:
		return c.ap.AddOffset(int(instr.OffOp1))
	}
	return c.fp.AddOffset(int(instr.OffOp1))
}

func deduceOp1(instr *Instruction, dst Value, dstKnown bool, op0 Value) (Value, bool, error) {
	if instr.Opcode != opAssertEq || !dstKnown {
		return Value{}, false, nil
	}
	switch instr.Res {
	case resOp1:
		return dst, true, nil
	case resAdd:
		res, err := dst.Sub(op0)
		return res, err == nil, err
	case resMul:
		d, dOk := dst.Felt()
		o, oOk := op0.Felt()
		if dOk && oOk && !o.IsZero() {
			return FeltValue(d.Div(o)), true, nil
		}
	}
	return Value{}, false, nil
}

func computeRes(instr *Instruction, op0, op1 Value) (Value, bool, error) {
	switch instr.Res {
	case resAdd:
		res, err := op0.Add(op1)
		return res, err == nil, err
	case resMul:
		res, err := op0.Mul(op1)
		return res, err == nil, err
	}
	if instr.Pc == pcJnz {
		// The result is undefined for conditional jumps.
		return Value{}, false, nil
	}
	return op1, true, nil
}

func updateRegisters(c *context, instr *Instruction, ops *operands) error {
	// The fp and ap updates depend on the old values of ap.
	var newFp Relocatable
	switch instr.Opcode {
	case opCall:
		newFp = c.ap.Add(2)
	case opRet:
		ptr, ok := ops.dst.Ptr()
		if !ok {
			return fmt.Errorf("%w: return frame pointer %v is not a pointer", aria.ErrExecution, ops.dst)
		}
		newFp = ptr
	default:
		newFp = c.fp
	}

	var newAp Relocatable
	switch instr.Ap {
	case apAdd:
		if !ops.resKnown {
			return fmt.Errorf("%w: undefined result for ap update at pc %v", aria.ErrExecution, c.pc)
		}
		res, err := PtrValue(c.ap).Add(ops.res)
		if err != nil {
			return err
		}
		newAp, _ = res.Ptr()
	case apAdd1:
		newAp = c.ap.Add(1)
	case apAdd2:
		newAp = c.ap.Add(2)
	default:
		newAp = c.ap
	}

	var newPc Relocatable
	switch instr.Pc {
	case pcJumpAbs:
		ptr, ok := ops.res.Ptr()
		if !ops.resKnown || !ok {
			return fmt.Errorf("%w: absolute jump to non-relocatable %v at pc %v", aria.ErrExecution, ops.res, c.pc)
		}
		newPc = ptr
	case pcJumpRel:
		offset, ok := ops.res.Felt()
		if !ops.resKnown || !ok {
			return fmt.Errorf("%w: relative jump by relocatable %v at pc %v", aria.ErrExecution, ops.res, c.pc)
		}
		target, err := c.pc.AddFelt(offset)
		if err != nil {
			return err
		}
		newPc = target
	case pcJnz:
		if ops.dst.IsZero() {
			newPc = c.pc.Add(instr.Size())
			break
		}
		offset, ok := ops.op1.Felt()
		if !ok {
			return fmt.Errorf("%w: conditional jump by relocatable %v at pc %v", aria.ErrExecution, ops.op1, c.pc)
		}
		target, err := c.pc.AddFelt(offset)
		if err != nil {
			return err
		}
		newPc = target
	default:
		newPc = c.pc.Add(instr.Size())
	}

	c.pc, c.ap, c.fp = newPc, newAp, newFp
	return nil
}
