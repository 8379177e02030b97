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
	"math/big"

	"github.com/Fantom-foundation/Aria/go/aria"
)

// runHint executes a hint attached to the current program counter.
func runHint(c *context, hint *aria.Hint) error {
	switch {
	case hint.AllocSegment != nil:
		return hintAllocSegment(c, hint.AllocSegment)
	case hint.SystemCall != nil:
		ptr, err := c.resolvePtr(hint.SystemCall.System)
		if err != nil {
			return err
		}
		return c.syscall(ptr)
	case hint.TestLessThan != nil:
		return hintCompare(c, hint.TestLessThan, func(cmp int) bool { return cmp < 0 })
	case hint.TestLessThanOrEqual != nil:
		return hintCompare(c, hint.TestLessThanOrEqual, func(cmp int) bool { return cmp <= 0 })
	case hint.DivMod != nil:
		return hintDivMod(c, hint.DivMod)
	case hint.AddSignature != nil:
		return hintAddSignature(c, hint.AddSignature)
	}
	return fmt.Errorf("%w: empty hint at pc %v", aria.ErrInvalidInstruction, c.pc)
}

func hintAllocSegment(c *context, hint *aria.AllocSegmentHint) error {
	dst, err := c.cellAddress(hint.Dst)
	if err != nil {
		return err
	}
	base := c.memory.AddSegment()
	c.hintSegments = append(c.hintSegments, base.Segment)
	return c.memory.Set(dst, PtrValue(base))
}

func hintCompare(c *context, hint *aria.CompareHint, test func(int) bool) error {
	lhs, err := c.resolveFelt(hint.Lhs)
	if err != nil {
		return err
	}
	rhs, err := c.resolveFelt(hint.Rhs)
	if err != nil {
		return err
	}
	dst, err := c.cellAddress(hint.Dst)
	if err != nil {
		return err
	}
	res := uint64(0)
	if test(lhs.Cmp(rhs)) {
		res = 1
	}
	return c.memory.Set(dst, IntValue(res))
}

func hintDivMod(c *context, hint *aria.DivModHint) error {
	lhs, err := c.resolveFelt(hint.Lhs)
	if err != nil {
		return err
	}
	rhs, err := c.resolveFelt(hint.Rhs)
	if err != nil {
		return err
	}
	if rhs.IsZero() {
		return fmt.Errorf("%w: division by zero at pc %v", aria.ErrExecution, c.pc)
	}
	quotient, remainder := new(big.Int).DivMod(lhs.BigInt(), rhs.BigInt(), new(big.Int))
	qAddr, err := c.cellAddress(hint.Quotient)
	if err != nil {
		return err
	}
	rAddr, err := c.cellAddress(hint.Remainder)
	if err != nil {
		return err
	}
	if err := c.memory.Set(qAddr, FeltValue(aria.FeltFromBig(quotient))); err != nil {
		return err
	}
	return c.memory.Set(rAddr, FeltValue(aria.FeltFromBig(remainder)))
}

func hintAddSignature(c *context, hint *aria.AddSignatureHint) error {
	ptr, err := c.resolvePtr(hint.Ptr)
	if err != nil {
		return err
	}
	r, err := c.resolveFelt(hint.R)
	if err != nil {
		return err
	}
	s, err := c.resolveFelt(hint.S)
	if err != nil {
		return err
	}
	seg, err := c.memory.segment(ptr)
	if err != nil {
		return err
	}
	ecdsa, ok := seg.builtin.(*ecdsaBuiltin)
	if !ok {
		return fmt.Errorf("%w: signature pointer %v outside of the ecdsa segment", aria.ErrExecution, ptr)
	}
	ecdsa.addSignature(ptr, r, s)
	return nil
}

// --- Operands ---

func (c *context) register(reg aria.Register) Relocatable {
	if reg == aria.FP {
		return c.fp
	}
	return c.ap
}

func (c *context) cellAddress(ref aria.CellRef) (Relocatable, error) {
	return c.register(ref.Register).AddOffset(int(ref.Offset))
}

func (c *context) loadCell(ref aria.CellRef) (Value, error) {
	addr, err := c.cellAddress(ref)
	if err != nil {
		return Value{}, err
	}
	value, known, err := c.memory.Get(addr)
	if err != nil {
		return Value{}, err
	}
	if !known {
		return Value{}, fmt.Errorf("%w: hint operand at %v is unknown", aria.ErrExecution, addr)
	}
	return value, nil
}

// resolve evaluates a hint operand.
func (c *context) resolve(op aria.ResOperand) (Value, error) {
	switch {
	case op.Deref != nil:
		return c.loadCell(*op.Deref)
	case op.DoubleDeref != nil:
		outer, err := c.loadCell(op.DoubleDeref.Cell)
		if err != nil {
			return Value{}, err
		}
		ptr, ok := outer.Ptr()
		if !ok {
			return Value{}, fmt.Errorf("%w: double dereference of felt %v", aria.ErrExecution, outer)
		}
		addr, err := ptr.AddOffset(int(op.DoubleDeref.Inner))
		if err != nil {
			return Value{}, err
		}
		value, known, err := c.memory.Get(addr)
		if err != nil {
			return Value{}, err
		}
		if !known {
			return Value{}, fmt.Errorf("%w: hint operand at %v is unknown", aria.ErrExecution, addr)
		}
		return value, nil
	case op.Immediate != nil:
		return FeltValue(*op.Immediate), nil
	case op.BinOp != nil:
		a, err := c.loadCell(op.BinOp.A)
		if err != nil {
			return Value{}, err
		}
		var b Value
		switch {
		case op.BinOp.B.Deref != nil:
			if b, err = c.loadCell(*op.BinOp.B.Deref); err != nil {
				return Value{}, err
			}
		case op.BinOp.B.Immediate != nil:
			b = FeltValue(*op.BinOp.B.Immediate)
		default:
			return Value{}, fmt.Errorf("%w: empty binary operand", aria.ErrInvalidInstruction)
		}
		switch op.BinOp.Op {
		case aria.OperationAdd:
			return a.Add(b)
		case aria.OperationMul:
			return a.Mul(b)
		}
		return Value{}, fmt.Errorf("%w: unknown operation %q", aria.ErrInvalidInstruction, op.BinOp.Op)
	}
	return Value{}, fmt.Errorf("%w: empty hint operand", aria.ErrInvalidInstruction)
}

func (c *context) resolveFelt(op aria.ResOperand) (aria.Felt, error) {
	value, err := c.resolve(op)
	if err != nil {
		return aria.Felt{}, err
	}
	f, ok := value.Felt()
	if !ok {
		return aria.Felt{}, fmt.Errorf("%w: expected felt operand, got %v", aria.ErrExecution, value)
	}
	return f, nil
}

func (c *context) resolvePtr(op aria.ResOperand) (Relocatable, error) {
	value, err := c.resolve(op)
	if err != nil {
		return Relocatable{}, err
	}
	ptr, ok := value.Ptr()
	if !ok {
		return Relocatable{}, fmt.Errorf("%w: expected relocatable operand, got %v", aria.ErrExecution, value)
	}
	return ptr, nil
}
