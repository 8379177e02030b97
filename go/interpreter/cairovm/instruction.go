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
	"fmt"
	"strings"

	"github.com/Fantom-foundation/Aria/go/aria"
)

type op1Source byte

const (
	op1FromOp0 op1Source = iota // [op0 + off_op1]
	op1Imm                      // [pc + 1]
	op1FromFP                   // [fp + off_op1]
	op1FromAP                   // [ap + off_op1]
)

type resLogic byte

const (
	resOp1 resLogic = iota
	resAdd
	resMul
)

type pcUpdate byte

const (
	pcRegular pcUpdate = iota
	pcJumpAbs
	pcJumpRel
	pcJnz
)

type apUpdate byte

const (
	apRegular apUpdate = iota
	apAdd
	apAdd1
	apAdd2 // implied by calls
)

type opcode byte

const (
	opNop opcode = iota
	opCall
	opRet
	opAssertEq
)

// Instruction is a decoded Cairo instruction.
type Instruction struct {
	OffDst int16
	OffOp0 int16
	OffOp1 int16

	DstReg aria.Register
	Op0Reg aria.Register
	Op1Src op1Source
	Res    resLogic
	Pc     pcUpdate
	Ap     apUpdate
	Opcode opcode
}

// Size is the number of memory words occupied by the instruction.
func (i *Instruction) Size() uint64 {
	if i.Op1Src == op1Imm {
		return 2
	}
	return 1
}

const (
	offsetBias = 1 << 15

	flagDstFP     = 1 << 0
	flagOp0FP     = 1 << 1
	flagOp1Imm    = 1 << 2
	flagOp1FP     = 1 << 3
	flagOp1AP     = 1 << 4
	flagResAdd    = 1 << 5
	flagResMul    = 1 << 6
	flagJumpAbs   = 1 << 7
	flagJumpRel   = 1 << 8
	flagJnz       = 1 << 9
	flagApAdd     = 1 << 10
	flagApAdd1    = 1 << 11
	flagCall      = 1 << 12
	flagRet       = 1 << 13
	flagAssertEq  = 1 << 14
	flagsUsedBits = 15
)

func invalidInstruction(word uint64, format string, args ...any) error {
	return fmt.Errorf("%w: %#x: %s", aria.ErrInvalidInstruction, word, fmt.Sprintf(format, args...))
}

// Decode parses an encoded instruction word.
func Decode(word aria.Felt) (Instruction, error) {
	encoding, ok := word.Uint64()
	if !ok || encoding>>63 != 0 {
		return Instruction{}, fmt.Errorf("%w: %v is not an instruction word", aria.ErrInvalidInstruction, word)
	}
	return decode(encoding)
}

func decode(word uint64) (Instruction, error) {
	res := Instruction{
		OffDst: int16(int32(word&0xffff) - offsetBias),
		OffOp0: int16(int32((word>>16)&0xffff) - offsetBias),
		OffOp1: int16(int32((word>>32)&0xffff) - offsetBias),
	}
	flags := word >> 48

	if flags&flagDstFP != 0 {
		res.DstReg = aria.FP
	}
	if flags&flagOp0FP != 0 {
		res.Op0Reg = aria.FP
	}

	switch flags & (flagOp1Imm | flagOp1FP | flagOp1AP) {
	case 0:
		res.Op1Src = op1FromOp0
	case flagOp1Imm:
		res.Op1Src = op1Imm
	case flagOp1FP:
		res.Op1Src = op1FromFP
	case flagOp1AP:
		res.Op1Src = op1FromAP
	default:
		return Instruction{}, invalidInstruction(word, "invalid op1 source")
	}
	if res.Op1Src == op1Imm && res.OffOp1 != 1 {
		return Instruction{}, invalidInstruction(word, "immediate with op1 offset %d", res.OffOp1)
	}

	switch flags & (flagResAdd | flagResMul) {
	case 0:
		res.Res = resOp1
	case flagResAdd:
		res.Res = resAdd
	case flagResMul:
		res.Res = resMul
	default:
		return Instruction{}, invalidInstruction(word, "invalid result logic")
	}

	switch flags & (flagJumpAbs | flagJumpRel | flagJnz) {
	case 0:
		res.Pc = pcRegular
	case flagJumpAbs:
		res.Pc = pcJumpAbs
	case flagJumpRel:
		res.Pc = pcJumpRel
	case flagJnz:
		res.Pc = pcJnz
	default:
		return Instruction{}, invalidInstruction(word, "invalid pc update")
	}
	if res.Pc == pcJnz && res.Res != resOp1 {
		return Instruction{}, invalidInstruction(word, "conditional jump with result logic")
	}

	switch flags & (flagApAdd | flagApAdd1) {
	case 0:
		res.Ap = apRegular
	case flagApAdd:
		res.Ap = apAdd
	case flagApAdd1:
		res.Ap = apAdd1
	default:
		return Instruction{}, invalidInstruction(word, "invalid ap update")
	}

	switch flags & (flagCall | flagRet | flagAssertEq) {
	case 0:
		res.Opcode = opNop
	case flagCall:
		res.Opcode = opCall
	case flagRet:
		res.Opcode = opRet
	case flagAssertEq:
		res.Opcode = opAssertEq
	default:
		return Instruction{}, invalidInstruction(word, "invalid opcode")
	}

	switch res.Opcode {
	case opCall:
		if res.Ap != apRegular {
			return Instruction{}, invalidInstruction(word, "call with ap update")
		}
		if res.Pc != pcJumpAbs && res.Pc != pcJumpRel {
			return Instruction{}, invalidInstruction(word, "call without jump")
		}
		res.Ap = apAdd2
	case opRet:
		if res.Pc != pcJumpAbs {
			return Instruction{}, invalidInstruction(word, "return without absolute jump")
		}
	}
	return res, nil
}

// Encode produces the instruction word of the instruction.
func (i *Instruction) Encode() uint64 {
	res := uint64(uint16(int32(i.OffDst)+offsetBias)) |
		uint64(uint16(int32(i.OffOp0)+offsetBias))<<16 |
		uint64(uint16(int32(i.OffOp1)+offsetBias))<<32

	flags := uint64(0)
	if i.DstReg == aria.FP {
		flags |= flagDstFP
	}
	if i.Op0Reg == aria.FP {
		flags |= flagOp0FP
	}
	flags |= [...]uint64{op1FromOp0: 0, op1Imm: flagOp1Imm, op1FromFP: flagOp1FP, op1FromAP: flagOp1AP}[i.Op1Src]
	flags |= [...]uint64{resOp1: 0, resAdd: flagResAdd, resMul: flagResMul}[i.Res]
	flags |= [...]uint64{pcRegular: 0, pcJumpAbs: flagJumpAbs, pcJumpRel: flagJumpRel, pcJnz: flagJnz}[i.Pc]
	flags |= [...]uint64{apRegular: 0, apAdd: flagApAdd, apAdd1: flagApAdd1, apAdd2: 0}[i.Ap]
	flags |= [...]uint64{opNop: 0, opCall: flagCall, opRet: flagRet, opAssertEq: flagAssertEq}[i.Opcode]
	return res | flags<<48
}

// class names the kind of the instruction for diagnostics and statistics.
func (i *Instruction) class() string {
	switch i.Opcode {
	case opCall:
		return "call"
	case opRet:
		return "ret"
	case opAssertEq:
		if i.Ap != apRegular {
			return "assert_eq+ap"
		}
		return "assert_eq"
	}
	switch i.Pc {
	case pcJumpAbs:
		return "jmp_abs"
	case pcJumpRel:
		return "jmp_rel"
	case pcJnz:
		return "jnz"
	}
	if i.Ap == apAdd {
		return "ap_add"
	}
	return "nop"
}

func (i Instruction) String() string {
	operand := func(reg aria.Register, off int16) string {
		return fmt.Sprintf("[%v%+d]", strings.ToLower(reg.String()), off)
	}
	op1 := ""
	switch i.Op1Src {
	case op1FromOp0:
		op1 = fmt.Sprintf("[%s%+d]", operand(i.Op0Reg, i.OffOp0), i.OffOp1)
	case op1Imm:
		op1 = "imm"
	case op1FromFP:
		op1 = operand(aria.FP, i.OffOp1)
	case op1FromAP:
		op1 = operand(aria.AP, i.OffOp1)
	}
	res := op1
	switch i.Res {
	case resAdd:
		res = operand(i.Op0Reg, i.OffOp0) + " + " + op1
	case resMul:
		res = operand(i.Op0Reg, i.OffOp0) + " * " + op1
	}
	return fmt.Sprintf("%s dst=%s res=%s", i.class(), operand(i.DstReg, i.OffDst), res)
}
