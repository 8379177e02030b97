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

	"github.com/Fantom-foundation/Aria/go/aria"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// This file provides a small assembler producing Cairo instruction words.
// It is used to write programs for tests and fixtures without depending on
// an external compiler.

// Cell refers to [reg + off].
type Cell struct {
	Reg aria.Register
	Off int16
}

func Ap(off int16) Cell { return Cell{aria.AP, off} }
func Fp(off int16) Cell { return Cell{aria.FP, off} }

func (c Cell) ref() aria.CellRef {
	return aria.CellRef{Register: c.Reg, Offset: c.Off}
}

// Expr is the right-hand side of an assertion.
type Expr struct {
	kind  exprKind
	cell  Cell
	off   int16
	imm   aria.Felt
	label string
	rhs   *Expr
}

type exprKind byte

const (
	exprDeref exprKind = iota
	exprDoubleDeref
	exprImm
	exprAdd
	exprMul
)

// Deref is the value [cell].
func Deref(c Cell) Expr { return Expr{kind: exprDeref, cell: c} }

// DoubleDeref is the value [[cell] + off].
func DoubleDeref(c Cell, off int16) Expr { return Expr{kind: exprDoubleDeref, cell: c, off: off} }

// Imm is a constant value.
func Imm(v aria.Felt) Expr { return Expr{kind: exprImm, imm: v} }

// Int is a small constant value, negative values wrap around the prime.
func Int(v int64) Expr { return Imm(aria.NewFeltFromInt(v)) }

// Add is the value [cell] + rhs, where rhs is a cell or a constant.
func Add(c Cell, rhs Expr) Expr { return Expr{kind: exprAdd, cell: c, rhs: &rhs} }

// Mul is the value [cell] * rhs, where rhs is a cell or a constant.
func Mul(c Cell, rhs Expr) Expr { return Expr{kind: exprMul, cell: c, rhs: &rhs} }

// Builder assembles a program.
type Builder struct {
	code   []aria.Felt
	labels map[string]uint64
	fixups []fixup
	hints  map[uint64][]aria.Hint
	errs   []error
}

type fixup struct {
	pc    uint64 // position of the instruction
	label string
}

func NewBuilder() *Builder {
	return &Builder{
		labels: map[string]uint64{},
		hints:  map[uint64][]aria.Hint{},
	}
}

// PC is the offset of the next instruction.
func (b *Builder) PC() uint64 {
	return uint64(len(b.code))
}

// Label binds a name to the offset of the next instruction.
func (b *Builder) Label(name string) *Builder {
	if _, found := b.labels[name]; found {
		b.errs = append(b.errs, fmt.Errorf("duplicate label %q", name))
	}
	b.labels[name] = b.PC()
	return b
}

// Hint attaches a hint to the next instruction.
func (b *Builder) Hint(hint aria.Hint) *Builder {
	b.hints[b.PC()] = append(b.hints[b.PC()], hint)
	return b
}

// Data appends raw words to the program.
func (b *Builder) Data(words ...aria.Felt) *Builder {
	b.code = append(b.code, words...)
	return b
}

// AssertEq emits [dst] = expr.
func (b *Builder) AssertEq(dst Cell, expr Expr) *Builder {
	return b.assign(dst, expr, apRegular)
}

// AssertEqApPP emits [dst] = expr; ap++.
func (b *Builder) AssertEqApPP(dst Cell, expr Expr) *Builder {
	return b.assign(dst, expr, apAdd1)
}

// Push emits [ap] = expr; ap++.
func (b *Builder) Push(expr Expr) *Builder {
	return b.assign(Ap(0), expr, apAdd1)
}

// ApAdd emits ap += imm.
func (b *Builder) ApAdd(v int64) *Builder {
	instr := Instruction{OffDst: -1, OffOp0: -1, OffOp1: 1, DstReg: aria.FP, Op0Reg: aria.FP, Op1Src: op1Imm, Ap: apAdd}
	return b.emit(instr, aria.NewFeltFromInt(v), "")
}

// Jmp emits an unconditional relative jump to the label.
func (b *Builder) Jmp(label string) *Builder {
	instr := Instruction{OffDst: -1, OffOp0: -1, OffOp1: 1, DstReg: aria.FP, Op0Reg: aria.FP, Op1Src: op1Imm, Pc: pcJumpRel}
	return b.emit(instr, aria.Zero, label)
}

// Jnz emits a relative jump to the label taken if [cond] is not zero.
func (b *Builder) Jnz(label string, cond Cell) *Builder {
	instr := Instruction{OffDst: cond.Off, OffOp0: -1, OffOp1: 1, DstReg: cond.Reg, Op0Reg: aria.FP, Op1Src: op1Imm, Pc: pcJnz}
	return b.emit(instr, aria.Zero, label)
}

// Call emits a relative call of the function at the label.
func (b *Builder) Call(label string) *Builder {
	instr := Instruction{OffDst: 0, OffOp0: 1, OffOp1: 1, DstReg: aria.AP, Op0Reg: aria.AP, Op1Src: op1Imm, Pc: pcJumpRel, Ap: apAdd2, Opcode: opCall}
	return b.emit(instr, aria.Zero, label)
}

// Ret emits a return from the current function.
func (b *Builder) Ret() *Builder {
	instr := Instruction{OffDst: -2, OffOp0: -1, OffOp1: -1, DstReg: aria.FP, Op0Reg: aria.FP, Op1Src: op1FromFP, Pc: pcJumpAbs, Opcode: opRet}
	return b.emit(instr, aria.Zero, "")
}

func (b *Builder) assign(dst Cell, expr Expr, ap apUpdate) *Builder {
	instr := Instruction{OffDst: dst.Off, DstReg: dst.Reg, OffOp0: -1, Op0Reg: aria.FP, Ap: ap, Opcode: opAssertEq}
	imm, hasImm := aria.Zero, false
	setOp1 := func(e Expr) bool {
		switch e.kind {
		case exprDeref:
			instr.OffOp1 = e.cell.Off
			instr.Op1Src = op1FromAP
			if e.cell.Reg == aria.FP {
				instr.Op1Src = op1FromFP
			}
		case exprImm:
			instr.OffOp1 = 1
			instr.Op1Src = op1Imm
			imm, hasImm = e.imm, true
		default:
			return false
		}
		return true
	}
	switch expr.kind {
	case exprDeref, exprImm:
		setOp1(expr)
	case exprDoubleDeref:
		instr.OffOp0 = expr.cell.Off
		instr.Op0Reg = expr.cell.Reg
		instr.OffOp1 = expr.off
		instr.Op1Src = op1FromOp0
	case exprAdd, exprMul:
		instr.OffOp0 = expr.cell.Off
		instr.Op0Reg = expr.cell.Reg
		if !setOp1(*expr.rhs) {
			b.errs = append(b.errs, fmt.Errorf("invalid operand at pc %d", b.PC()))
		}
		instr.Res = resAdd
		if expr.kind == exprMul {
			instr.Res = resMul
		}
	}
	if !hasImm {
		return b.emit(instr, aria.Zero, "")
	}
	return b.emitImm(instr, imm)
}

func (b *Builder) emitImm(instr Instruction, imm aria.Felt) *Builder {
	b.code = append(b.code, aria.NewFelt(instr.Encode()), imm)
	return b
}

// emit appends the instruction. If a label is given, the immediate is the
// distance from the instruction to the label, resolved by Build.
func (b *Builder) emit(instr Instruction, imm aria.Felt, label string) *Builder {
	if label != "" {
		b.fixups = append(b.fixups, fixup{pc: b.PC(), label: label})
	}
	if instr.Op1Src == op1Imm {
		return b.emitImm(instr, imm)
	}
	b.code = append(b.code, aria.NewFelt(instr.Encode()))
	return b
}

// Offset returns the offset of a label.
func (b *Builder) Offset(label string) uint64 {
	offset, found := b.labels[label]
	if !found {
		b.errs = append(b.errs, fmt.Errorf("unknown label %q", label))
	}
	return offset
}

// Build resolves all label references and returns the bytecode and hints.
func (b *Builder) Build() ([]aria.Felt, []aria.PCHints, error) {
	errs := slices.Clone(b.errs)
	code := slices.Clone(b.code)
	for _, f := range b.fixups {
		target, found := b.labels[f.label]
		if !found {
			errs = append(errs, fmt.Errorf("unknown label %q", f.label))
			continue
		}
		code[f.pc+1] = aria.NewFeltFromInt(int64(target) - int64(f.pc))
	}
	pcs := maps.Keys(b.hints)
	slices.Sort(pcs)
	hints := make([]aria.PCHints, 0, len(pcs))
	for _, pc := range pcs {
		hints = append(hints, aria.PCHints{PC: pc, Hints: b.hints[pc]})
	}
	return code, hints, errors.Join(errs...)
}

// EntryPoint describes an entry point of a class built by BuildClass.
type EntryPoint struct {
	Type     aria.EntryPointType
	Name     string
	Label    string
	Builtins []aria.Builtin
}

// BuildClass assembles the program into a class with the given entry points.
func (b *Builder) BuildClass(entryPoints ...EntryPoint) (*aria.CompiledClass, error) {
	res := &aria.CompiledClass{}
	for _, ep := range entryPoints {
		offset, found := b.labels[ep.Label]
		if !found {
			return nil, fmt.Errorf("unknown entry point label %q", ep.Label)
		}
		entry := aria.EntryPoint{
			Selector: aria.SelectorFromName(ep.Name),
			Offset:   offset,
			Builtins: ep.Builtins,
		}
		switch ep.Type {
		case aria.External:
			res.EntryPoints.External = append(res.EntryPoints.External, entry)
		case aria.L1Handler:
			res.EntryPoints.L1Handler = append(res.EntryPoints.L1Handler, entry)
		case aria.Constructor:
			res.EntryPoints.Constructor = append(res.EntryPoints.Constructor, entry)
		}
	}
	for _, list := range [][]aria.EntryPoint{res.EntryPoints.External, res.EntryPoints.L1Handler, res.EntryPoints.Constructor} {
		slices.SortFunc(list, func(a, b aria.EntryPoint) int { return a.Selector.Cmp(b.Selector) })
	}
	code, hints, err := b.Build()
	if err != nil {
		return nil, err
	}
	res.Bytecode = code
	res.Hints = hints
	return res, nil
}

// MustBuildClass is like BuildClass but panics on errors. It is intended for
// fixtures.
func (b *Builder) MustBuildClass(entryPoints ...EntryPoint) *aria.CompiledClass {
	res, err := b.BuildClass(entryPoints...)
	if err != nil {
		panic(err)
	}
	return res
}
