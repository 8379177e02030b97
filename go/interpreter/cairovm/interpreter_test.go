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
	"math/big"
	"slices"
	"testing"

	"github.com/Fantom-foundation/Aria/go/aria"
)

// Layout of the frame of an entry point without builtins.
var (
	sysPtr      = Fp(-5)
	calldataPtr = Fp(-4)
	calldataEnd = Fp(-3)
)

const testGas = aria.Gas(10_000_000)

func allocSegment() aria.Hint {
	return aria.Hint{AllocSegment: &aria.AllocSegmentHint{Dst: aria.CellRef{Register: aria.AP}}}
}

// returnRange emits the epilogue of an entry point returning the values in
// [start, start + n) with the given failure flag. The builtin stop pointers
// are pushed first.
func returnRange(b *Builder, stops []Expr, sys Expr, flag int64, start Cell, startOffset, n int64) {
	for _, stop := range stops {
		b.Push(stop)
	}
	b.Push(sys)
	b.Push(Int(flag))
	b.Push(Add(start, Int(startOffset)))
	b.Push(Add(start, Int(startOffset+n)))
	b.Ret()
}

// echoProgram returns the first calldata element with the given failure
// flag. Its external entry point is called "main".
func echoProgram(flag int64) *aria.CompiledClass {
	b := NewBuilder()
	b.Label("main")
	b.Hint(allocSegment())
	b.ApAdd(1)                               // [fp] = retdata segment
	b.Push(DoubleDeref(calldataPtr, 0))      // [fp+1] = calldata[0]
	b.AssertEq(Fp(1), DoubleDeref(Fp(0), 0)) // retdata[0] = [fp+1]
	returnRange(b, nil, Deref(sysPtr), flag, Fp(0), 0, 1)
	return b.MustBuildClass(EntryPoint{Type: aria.External, Name: "main", Label: "main"})
}

// doubleProgram calls a function doubling the first calldata element.
func doubleProgram() *aria.CompiledClass {
	b := NewBuilder()
	b.Label("main")
	b.Push(DoubleDeref(calldataPtr, 0)) // [fp] = x
	b.Call("double")                    // [fp+3] = 2x
	b.Hint(allocSegment())
	b.ApAdd(1)                               // [fp+4] = retdata segment
	b.AssertEq(Fp(3), DoubleDeref(Fp(4), 0)) // retdata[0] = 2x
	returnRange(b, nil, Deref(sysPtr), 0, Fp(4), 0, 1)

	b.Label("double")
	b.Push(Mul(Fp(-3), Int(2)))
	b.Ret()
	return b.MustBuildClass(EntryPoint{Type: aria.External, Name: "main", Label: "main"})
}

// sumProgram sums up all calldata elements in a loop.
func sumProgram() *aria.CompiledClass {
	b := NewBuilder()
	b.Label("main")
	b.Push(Deref(calldataPtr)) // cursor
	b.Push(Int(0))             // sum

	// Loop invariant: [ap-2] = cursor, [ap-1] = sum.
	b.Label("loop")
	b.Push(Deref(calldataEnd))
	b.AssertEqApPP(Ap(-1), Add(Ap(-3), Deref(Ap(0)))) // end = cursor + [ap]
	b.Jnz("body", Ap(-1))
	b.Jmp("done")

	b.Label("body")
	b.Push(Add(Ap(-4), Int(1)))        // next cursor
	b.Push(DoubleDeref(Ap(-5), 0))     // element
	b.Push(Add(Ap(-5), Deref(Ap(-1)))) // sum + element
	b.Push(Deref(Ap(-3)))              // cursor
	b.Push(Deref(Ap(-2)))              // sum
	b.Jmp("loop")

	// [ap-3] = sum
	b.Label("done")
	b.Hint(allocSegment())
	b.ApAdd(1)
	b.AssertEq(Ap(-4), DoubleDeref(Ap(-1), 0))
	b.Push(Deref(sysPtr))
	b.Push(Int(0))
	b.Push(Deref(Ap(-3)))
	b.Push(Add(Ap(-4), Int(1)))
	b.Ret()
	return b.MustBuildClass(EntryPoint{Type: aria.External, Name: "main", Label: "main"})
}

func loopProgram() *aria.CompiledClass {
	b := NewBuilder()
	b.Label("main")
	b.Jmp("main")
	return b.MustBuildClass(EntryPoint{Type: aria.External, Name: "main", Label: "main"})
}

func newTestVm(t *testing.T) *cairovm {
	t.Helper()
	vm, err := NewVm(Config{})
	if err != nil {
		t.Fatalf("failed to create vm: %v", err)
	}
	return vm
}

func params(class *aria.CompiledClass, calldata ...aria.Felt) aria.Parameters {
	costs := aria.DefaultGasCosts()
	return aria.Parameters{
		Class:          class,
		ClassHash:      class.Hash(),
		EntryPointType: aria.External,
		Selector:       aria.SelectorFromName("main"),
		Calldata:       calldata,
		Gas:            testGas,
		Steps:          aria.NewStepCounter(1_000_000),
		Costs:          &costs,
	}
}

func felts(values ...uint64) []aria.Felt {
	res := make([]aria.Felt, len(values))
	for i, v := range values {
		res[i] = aria.NewFelt(v)
	}
	return res
}

func TestRun_EchoReturnsCalldata(t *testing.T) {
	vm := newTestVm(t)
	res, err := vm.Run(params(echoProgram(0), aria.NewFelt(42)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Failure)
	}
	if want := felts(42); !slices.Equal(res.Retdata, want) {
		t.Errorf("unexpected retdata %v, wanted %v", res.Retdata, want)
	}
	if want := uint64(8); res.Resources.Steps != want {
		t.Errorf("unexpected number of steps %d, wanted %d", res.Resources.Steps, want)
	}
	if want := testGas - 8*100; res.GasLeft != want {
		t.Errorf("unexpected gas left %d, wanted %d", res.GasLeft, want)
	}
}

func TestRun_PanicIsReportedWithPanicData(t *testing.T) {
	vm := newTestVm(t)
	res, err := vm.Run(params(echoProgram(1), aria.NewFelt(13)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("execution should have failed")
	}
	if !errors.Is(res.Failure, aria.ErrReverted) {
		t.Errorf("unexpected failure %v", res.Failure)
	}
	if want := felts(13); !slices.Equal(res.Retdata, want) {
		t.Errorf("unexpected panic data %v, wanted %v", res.Retdata, want)
	}
	if res.GasLeft != testGas-8*100 {
		t.Errorf("unexpected gas left %d", res.GasLeft)
	}
}

func TestRun_FunctionCall(t *testing.T) {
	vm := newTestVm(t)
	res, err := vm.Run(params(doubleProgram(), aria.NewFelt(21)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Failure)
	}
	if want := felts(42); !slices.Equal(res.Retdata, want) {
		t.Errorf("unexpected retdata %v, wanted %v", res.Retdata, want)
	}
	if want := uint64(11); res.Resources.Steps != want {
		t.Errorf("unexpected number of steps %d, wanted %d", res.Resources.Steps, want)
	}
}

func TestRun_LoopOverCalldata(t *testing.T) {
	vm := newTestVm(t)
	for _, n := range []int{0, 1, 5, 20} {
		calldata := make([]aria.Felt, n)
		sum := uint64(0)
		for i := range calldata {
			calldata[i] = aria.NewFelt(uint64(i * 3))
			sum += uint64(i * 3)
		}
		res, err := vm.Run(params(sumProgram(), calldata...))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Success {
			t.Fatalf("execution failed for %d elements: %v", n, res.Failure)
		}
		if want := felts(sum); !slices.Equal(res.Retdata, want) {
			t.Errorf("unexpected sum of %d elements %v, wanted %v", n, res.Retdata, want)
		}
	}
}

func TestRun_StepsAreMonotoneInInputSize(t *testing.T) {
	vm := newTestVm(t)
	last := uint64(0)
	for n := 0; n < 10; n++ {
		res, err := vm.Run(params(sumProgram(), make([]aria.Felt, n)...))
		if err != nil || !res.Success {
			t.Fatalf("unexpected outcome: %v, %v", err, res.Failure)
		}
		if res.Resources.Steps <= last {
			t.Errorf("steps for %d elements not larger than for %d elements: %d <= %d", n, n-1, res.Resources.Steps, last)
		}
		last = res.Resources.Steps
	}
}

func TestRun_OutOfGas(t *testing.T) {
	vm := newTestVm(t)
	p := params(loopProgram())
	p.Gas = 1000
	res, err := vm.Run(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || !errors.Is(res.Failure, aria.ErrResourceExhausted) {
		t.Fatalf("unexpected outcome %t, %v", res.Success, res.Failure)
	}
	if res.GasLeft != 0 {
		t.Errorf("out of gas must consume all gas, got %d left", res.GasLeft)
	}
	if res.Resources.Steps != 10 {
		t.Errorf("unexpected number of steps %d", res.Resources.Steps)
	}
	if want := aria.FailureReason(aria.ErrResourceExhausted); len(res.Retdata) != 1 || res.Retdata[0] != want {
		t.Errorf("unexpected failure data %v", res.Retdata)
	}
}

func TestRun_StepLimitIsSharedAcrossRuns(t *testing.T) {
	vm := newTestVm(t)
	steps := aria.NewStepCounter(20)

	p := params(echoProgram(0), aria.NewFelt(1))
	p.Steps = steps
	res, err := vm.Run(p)
	if err != nil || !res.Success {
		t.Fatalf("first run failed: %v, %v", err, res.Failure)
	}
	if steps.Used() != 8 {
		t.Errorf("unexpected steps used %d", steps.Used())
	}

	p = params(loopProgram())
	p.Steps = steps
	res, err = vm.Run(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || !errors.Is(res.Failure, aria.ErrResourceExhausted) {
		t.Errorf("unexpected outcome %t, %v", res.Success, res.Failure)
	}
	if !steps.Exhausted() {
		t.Errorf("step counter should be exhausted")
	}
	if res.Resources.Steps != 12 {
		t.Errorf("unexpected steps of second run %d", res.Resources.Steps)
	}
}

func TestRun_RecoverableVmFailures(t *testing.T) {
	assertMismatch := NewBuilder()
	assertMismatch.Label("main")
	assertMismatch.Push(Int(1))
	assertMismatch.AssertEq(Ap(-1), Int(2))

	jumpToFelt := NewBuilder()
	jumpToFelt.Label("main")
	jumpToFelt.Push(Int(0))
	jumpToFelt.Data(aria.NewFelt((&Instruction{OffDst: -1, OffOp0: -1, OffOp1: -1, DstReg: aria.FP, Op0Reg: aria.FP, Op1Src: op1FromAP, Pc: pcJumpAbs}).Encode()))

	feltTimesPointer := NewBuilder()
	feltTimesPointer.Label("main")
	feltTimesPointer.Push(Mul(calldataPtr, Int(2)))

	unknownOperand := NewBuilder()
	unknownOperand.Label("main")
	unknownOperand.Push(Deref(Ap(5)))

	pcOutsideProgram := NewBuilder()
	pcOutsideProgram.Label("main")
	pcOutsideProgram.Push(Int(0))

	tests := map[string]*Builder{
		"assert mismatch":    assertMismatch,
		"jump to felt":       jumpToFelt,
		"felt times pointer": feltTimesPointer,
		"unknown operand":    unknownOperand,
		"pc outside program": pcOutsideProgram,
	}
	vm := newTestVm(t)
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			class := b.MustBuildClass(EntryPoint{Type: aria.External, Name: "main", Label: "main"})
			res, err := vm.Run(params(class))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success {
				t.Fatalf("execution should have failed")
			}
			if !errors.Is(res.Failure, aria.ErrExecution) {
				t.Errorf("unexpected failure %v", res.Failure)
			}
			if res.GasLeft == 0 || res.GasLeft == testGas {
				t.Errorf("unexpected gas left %d", res.GasLeft)
			}
		})
	}
}

func TestRun_EmptyCalldataCannotBeRead(t *testing.T) {
	vm := newTestVm(t)
	res, err := vm.Run(params(echoProgram(0)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || !errors.Is(res.Failure, aria.ErrExecution) {
		t.Errorf("unexpected outcome %t, %v", res.Success, res.Failure)
	}
}

func TestRun_MissingEntryPoint(t *testing.T) {
	vm := newTestVm(t)
	p := params(echoProgram(0))
	p.Selector = aria.SelectorFromName("missing")
	res, err := vm.Run(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || !errors.Is(res.Failure, aria.ErrEntryPointNotFound) {
		t.Errorf("unexpected outcome %t, %v", res.Success, res.Failure)
	}
	if res.GasLeft != testGas {
		t.Errorf("no gas should be consumed, got %d left", res.GasLeft)
	}
}

func TestRun_InvalidInstructionIsFatal(t *testing.T) {
	b := NewBuilder()
	b.Label("main")
	b.Data(aria.NewFelt(1 << 63))
	class := b.MustBuildClass(EntryPoint{Type: aria.External, Name: "main", Label: "main"})

	vm := newTestVm(t)
	_, err := vm.Run(params(class))
	if !errors.Is(err, aria.ErrInvalidInstruction) {
		t.Errorf("expected invalid instruction error, got %v", err)
	}
}

func TestRun_NativeClassesAreRejected(t *testing.T) {
	vm := newTestVm(t)
	class := &aria.CompiledClass{Native: "erc20"}
	_, err := vm.Run(aria.Parameters{Class: class, ClassHash: class.Hash()})
	if !errors.Is(err, aria.ErrProtocolInconsistency) {
		t.Errorf("expected protocol inconsistency, got %v", err)
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	vm := newTestVm(t)
	calldata := felts(1, 2, 3, 4, 5)
	first, err := vm.Run(params(sumProgram(), calldata...))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		res, err := vm.Run(params(sumProgram(), calldata...))
		if err != nil {
			t.Fatal(err)
		}
		if res.Success != first.Success || !slices.Equal(res.Retdata, first.Retdata) ||
			res.GasLeft != first.GasLeft || res.Resources != first.Resources {
			t.Errorf("run %d differs: %+v vs %+v", i, res, first)
		}
	}
}

// --- Builtins ---

func rangeCheckProgram(stopOffset int64) *aria.CompiledClass {
	rc := Fp(-6)
	b := NewBuilder()
	b.Label("main")
	b.Push(DoubleDeref(Fp(-4), 0))        // [fp] = x
	b.AssertEq(Fp(0), DoubleDeref(rc, 0)) // rc[0] = x
	returnRange(b, []Expr{Add(rc, Int(stopOffset))}, Deref(Fp(-5)), 0, Fp(-4), 0, 1)
	return b.MustBuildClass(EntryPoint{
		Type:     aria.External,
		Name:     "main",
		Label:    "main",
		Builtins: []aria.Builtin{aria.BuiltinRangeCheck},
	})
}

func TestRun_RangeCheckBuiltin(t *testing.T) {
	vm := newTestVm(t)
	res, err := vm.Run(params(rangeCheckProgram(1), aria.NewFelt(5)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Failure)
	}
	if got := res.Resources.Builtins[aria.BuiltinRangeCheck]; got != 1 {
		t.Errorf("unexpected number of range checks %d", got)
	}
	steps := aria.Gas(res.Resources.Steps)
	if want := testGas - steps*100 - 70; res.GasLeft != want {
		t.Errorf("unexpected gas left %d, wanted %d", res.GasLeft, want)
	}
}

func TestRun_RangeCheckViolationIsFatal(t *testing.T) {
	vm := newTestVm(t)
	tooLarge := aria.FeltFromBig(new(big.Int).Lsh(big.NewInt(1), 128))
	_, err := vm.Run(params(rangeCheckProgram(1), tooLarge))
	if !errors.Is(err, aria.ErrBuiltinValidation) {
		t.Errorf("expected builtin validation error, got %v", err)
	}
}

func TestRun_InvalidStopPointerIsFatal(t *testing.T) {
	vm := newTestVm(t)
	_, err := vm.Run(params(rangeCheckProgram(0), aria.NewFelt(5)))
	if !errors.Is(err, aria.ErrBuiltinValidation) {
		t.Errorf("expected builtin validation error, got %v", err)
	}
}

func TestRun_PedersenBuiltin(t *testing.T) {
	p := Fp(-6)
	b := NewBuilder()
	b.Label("main")
	b.Push(DoubleDeref(Fp(-4), 0))
	b.AssertEq(Fp(0), DoubleDeref(p, 0))
	b.Push(DoubleDeref(Fp(-4), 1))
	b.AssertEq(Fp(1), DoubleDeref(p, 1))
	b.Push(DoubleDeref(p, 2)) // deduced by the builtin
	returnRange(b, []Expr{Add(p, Int(3))}, Deref(Fp(-5)), 0, p, 2, 1)
	class := b.MustBuildClass(EntryPoint{
		Type:     aria.External,
		Name:     "main",
		Label:    "main",
		Builtins: []aria.Builtin{aria.BuiltinPedersen},
	})

	vm := newTestVm(t)
	x, y := aria.NewFelt(1), aria.NewFelt(2)
	res, err := vm.Run(params(class, x, y))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("execution failed: %v", res.Failure)
	}
	if want := []aria.Felt{aria.Pedersen(x, y)}; !slices.Equal(res.Retdata, want) {
		t.Errorf("unexpected hash %v, wanted %v", res.Retdata, want)
	}
	if got := res.Resources.Builtins[aria.BuiltinPedersen]; got != 1 {
		t.Errorf("unexpected number of pedersen instances %d", got)
	}
}

// --- Runners ---

func TestStatisticRunner_CollectsInstructionClasses(t *testing.T) {
	runner := &statisticRunner{stats: newStatistics()}
	vm, err := NewVm(Config{runner: runner})
	if err != nil {
		t.Fatal(err)
	}
	res, err := vm.Run(params(echoProgram(0), aria.NewFelt(1)))
	if err != nil || !res.Success {
		t.Fatalf("unexpected outcome %v, %v", err, res.Failure)
	}
	if runner.stats.count != 8 {
		t.Errorf("unexpected number of recorded steps %d", runner.stats.count)
	}
	if got := runner.stats.singleCount["assert_eq+ap"]; got != 5 {
		t.Errorf("unexpected number of pushes %d", got)
	}
	if got := runner.stats.singleCount["ret"]; got != 1 {
		t.Errorf("unexpected number of returns %d", got)
	}
	if summary := runner.getSummary(); summary == "" {
		t.Errorf("empty summary")
	}
	vm.ResetProfile()
	if runner.stats.count != 0 {
		t.Errorf("statistics should have been reset")
	}
}

func TestLoggingRunner_ProducesSameResult(t *testing.T) {
	plain := newTestVm(t)
	logging, err := NewVm(Config{runner: newLogger(nil)})
	if err != nil {
		t.Fatal(err)
	}
	want, err := plain.Run(params(doubleProgram(), aria.NewFelt(4)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := logging.Run(params(doubleProgram(), aria.NewFelt(4)))
	if err != nil {
		t.Fatal(err)
	}
	if got.Success != want.Success || !slices.Equal(got.Retdata, want.Retdata) || got.GasLeft != want.GasLeft {
		t.Errorf("logging runner produced different result: %+v vs %+v", got, want)
	}
}

func TestRegistry_CairoVmIsRegistered(t *testing.T) {
	vm, err := aria.NewInterpreter("cairovm")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	res, err := vm.Run(params(echoProgram(0), aria.NewFelt(3)))
	if err != nil || !res.Success {
		t.Fatalf("unexpected outcome %v, %v", err, res.Failure)
	}
	if _, err := aria.NewInterpreter("cairovm", 12); err == nil {
		t.Errorf("expected error for invalid configuration type")
	}
}
