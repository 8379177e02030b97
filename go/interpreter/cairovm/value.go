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

	"github.com/Fantom-foundation/Aria/go/aria"
)

// Relocatable is an address within a memory segment. Its absolute position
// is only fixed by the relocation at the end of a run.
type Relocatable struct {
	Segment int
	Offset  uint64
}

func (r Relocatable) Add(n uint64) Relocatable {
	return Relocatable{Segment: r.Segment, Offset: r.Offset + n}
}

// AddOffset applies a signed instruction offset. Negative results are
// memory errors.
func (r Relocatable) AddOffset(off int) (Relocatable, error) {
	if off < 0 && uint64(-off) > r.Offset {
		return Relocatable{}, fmt.Errorf("%w: negative address %v%d", aria.ErrMemory, r, off)
	}
	return Relocatable{Segment: r.Segment, Offset: uint64(int64(r.Offset) + int64(off))}, nil
}

// AddFelt adds a field element, interpreting values close to the prime as
// negative numbers.
func (r Relocatable) AddFelt(f aria.Felt) (Relocatable, error) {
	if v, ok := f.Uint64(); ok && r.Offset+v >= r.Offset {
		return r.Add(v), nil
	}
	if v, ok := f.Neg().Uint64(); ok && v <= r.Offset {
		return Relocatable{Segment: r.Segment, Offset: r.Offset - v}, nil
	}
	return Relocatable{}, fmt.Errorf("%w: offset %v out of range for %v", aria.ErrExecution, f, r)
}

func (r Relocatable) String() string {
	return fmt.Sprintf("%d:%d", r.Segment, r.Offset)
}

// Value is the content of a memory cell: either a field element or a
// relocatable address.
type Value struct {
	felt  aria.Felt
	ptr   Relocatable
	isPtr bool
}

func FeltValue(f aria.Felt) Value {
	return Value{felt: f}
}

func IntValue(v uint64) Value {
	return Value{felt: aria.NewFelt(v)}
}

func PtrValue(r Relocatable) Value {
	return Value{ptr: r, isPtr: true}
}

func (v Value) IsPtr() bool {
	return v.isPtr
}

func (v Value) Felt() (aria.Felt, bool) {
	return v.felt, !v.isPtr
}

func (v Value) Ptr() (Relocatable, bool) {
	return v.ptr, v.isPtr
}

func (v Value) IsZero() bool {
	return !v.isPtr && v.felt.IsZero()
}

func (v Value) Add(o Value) (Value, error) {
	switch {
	case !v.isPtr && !o.isPtr:
		return FeltValue(v.felt.Add(o.felt)), nil
	case v.isPtr && !o.isPtr:
		r, err := v.ptr.AddFelt(o.felt)
		return PtrValue(r), err
	case !v.isPtr && o.isPtr:
		r, err := o.ptr.AddFelt(v.felt)
		return PtrValue(r), err
	}
	return Value{}, fmt.Errorf("%w: cannot add relocatables %v and %v", aria.ErrExecution, v, o)
}

func (v Value) Sub(o Value) (Value, error) {
	switch {
	case !v.isPtr && !o.isPtr:
		return FeltValue(v.felt.Sub(o.felt)), nil
	case v.isPtr && !o.isPtr:
		r, err := v.ptr.AddFelt(o.felt.Neg())
		return PtrValue(r), err
	case v.isPtr && o.isPtr && v.ptr.Segment == o.ptr.Segment:
		return FeltValue(aria.NewFelt(v.ptr.Offset).Sub(aria.NewFelt(o.ptr.Offset))), nil
	}
	return Value{}, fmt.Errorf("%w: cannot subtract %v from %v", aria.ErrExecution, o, v)
}

func (v Value) Mul(o Value) (Value, error) {
	if v.isPtr || o.isPtr {
		return Value{}, fmt.Errorf("%w: cannot multiply %v and %v", aria.ErrExecution, v, o)
	}
	return FeltValue(v.felt.Mul(o.felt)), nil
}

func (v Value) String() string {
	if v.isPtr {
		return v.ptr.String()
	}
	return v.felt.String()
}
