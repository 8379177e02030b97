// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package aria

import "fmt"

// EntryPointType distinguishes the kinds of functions a class exposes.
type EntryPointType byte

const (
	External EntryPointType = iota
	L1Handler
	Constructor
)

var entryPointTypeNames = map[EntryPointType]string{
	External:    "EXTERNAL",
	L1Handler:   "L1_HANDLER",
	Constructor: "CONSTRUCTOR",
}

func (t EntryPointType) String() string {
	if name, found := entryPointTypeNames[t]; found {
		return name
	}
	return fmt.Sprintf("EntryPointType(%d)", t)
}

func (t EntryPointType) MarshalText() ([]byte, error) {
	if name, found := entryPointTypeNames[t]; found {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("invalid entry point type %d", t)
}

func (t *EntryPointType) UnmarshalText(data []byte) error {
	for k, v := range entryPointTypeNames {
		if v == string(data) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("invalid entry point type %q", data)
}

// EntryPoint locates a function within the bytecode of a class.
type EntryPoint struct {
	Selector Felt      `json:"selector"`
	Offset   uint64    `json:"offset"`
	Builtins []Builtin `json:"builtins"`
}

// EntryPointsByType groups the entry points of a class.
type EntryPointsByType struct {
	External    []EntryPoint `json:"EXTERNAL"`
	L1Handler   []EntryPoint `json:"L1_HANDLER"`
	Constructor []EntryPoint `json:"CONSTRUCTOR"`
}

// Get returns the entry points of the given type.
func (e *EntryPointsByType) Get(kind EntryPointType) []EntryPoint {
	switch kind {
	case External:
		return e.External
	case L1Handler:
		return e.L1Handler
	case Constructor:
		return e.Constructor
	}
	return nil
}

// CompiledClass is the immutable program of a contract class as produced by
// a compiler: bytecode, hints, and entry points. Native classes carry no
// bytecode; they name an implementation provided by the host instead.
type CompiledClass struct {
	Bytecode    []Felt            `json:"bytecode"`
	Hints       []PCHints         `json:"hints,omitempty"`
	EntryPoints EntryPointsByType `json:"entry_points_by_type"`
	Native      string            `json:"native,omitempty"`
}

// FindEntryPoint looks up an entry point by type and selector.
func (c *CompiledClass) FindEntryPoint(kind EntryPointType, selector Felt) (EntryPoint, bool) {
	for _, ep := range c.EntryPoints.Get(kind) {
		if ep.Selector == selector {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// HasConstructor reports whether the class defines a constructor.
func (c *CompiledClass) HasConstructor() bool {
	return len(c.EntryPoints.Constructor) > 0
}

var (
	compiledClassPrefix = MustShortString("COMPILED_CLASS_V1")
	nativeClassPrefix   = MustShortString("NATIVE_CLASS_V0")
)

// Hash computes the content hash of the class. Hints are not part of the
// hash.
func (c *CompiledClass) Hash() ClassHash {
	if c.Native != "" {
		name := FeltFromBytes([]byte(c.Native))
		return ClassHash(PedersenArray(nativeClassPrefix, name))
	}
	return ClassHash(PedersenArray(
		compiledClassPrefix,
		hashEntryPoints(c.EntryPoints.External),
		hashEntryPoints(c.EntryPoints.L1Handler),
		hashEntryPoints(c.EntryPoints.Constructor),
		PedersenArray(c.Bytecode...),
	))
}

func hashEntryPoints(entryPoints []EntryPoint) Felt {
	list := make([]Felt, 0, 3*len(entryPoints))
	for _, ep := range entryPoints {
		builtins := make([]Felt, len(ep.Builtins))
		for i, b := range ep.Builtins {
			builtins[i] = FeltFromBytes([]byte(b.String()))
		}
		list = append(list, ep.Selector, NewFelt(ep.Offset), PedersenArray(builtins...))
	}
	return PedersenArray(list...)
}

// --- Hints ---

// Register is one of the two registers operands can be relative to.
type Register byte

const (
	AP Register = iota
	FP
)

func (r Register) String() string {
	if r == FP {
		return "FP"
	}
	return "AP"
}

func (r Register) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Register) UnmarshalText(data []byte) error {
	switch string(data) {
	case "AP":
		*r = AP
	case "FP":
		*r = FP
	default:
		return fmt.Errorf("invalid register %q", data)
	}
	return nil
}

// CellRef refers to the memory cell at a register plus an offset.
type CellRef struct {
	Register Register `json:"register"`
	Offset   int16    `json:"offset"`
}

// DoubleDeref refers to the cell at [[register + offset] + Inner].
type DoubleDeref struct {
	Cell  CellRef `json:"cell"`
	Inner int16   `json:"inner"`
}

// Operation is the arithmetic operation of a BinOp operand.
type Operation string

const (
	OperationAdd Operation = "Add"
	OperationMul Operation = "Mul"
)

// BinOp computes [A] op B, where B is either a cell or an immediate.
type BinOp struct {
	Op Operation  `json:"op"`
	A  CellRef    `json:"a"`
	B  DerefOrImm `json:"b"`
}

// DerefOrImm is the second operand of a BinOp.
type DerefOrImm struct {
	Deref     *CellRef `json:"Deref,omitempty"`
	Immediate *Felt    `json:"Immediate,omitempty"`
}

// ResOperand is an operand of a hint, following the operand forms of
// compiled Cairo assembly. Exactly one field is set.
type ResOperand struct {
	Deref       *CellRef     `json:"Deref,omitempty"`
	DoubleDeref *DoubleDeref `json:"DoubleDeref,omitempty"`
	Immediate   *Felt        `json:"Immediate,omitempty"`
	BinOp       *BinOp       `json:"BinOp,omitempty"`
}

// DerefOperand is a shorthand to create a cell operand.
func DerefOperand(register Register, offset int16) ResOperand {
	return ResOperand{Deref: &CellRef{Register: register, Offset: offset}}
}

// ImmediateOperand is a shorthand to create a constant operand.
func ImmediateOperand(value Felt) ResOperand {
	return ResOperand{Immediate: &value}
}

type AllocSegmentHint struct {
	Dst CellRef `json:"dst"`
}

type SystemCallHint struct {
	System ResOperand `json:"system"`
}

type CompareHint struct {
	Lhs ResOperand `json:"lhs"`
	Rhs ResOperand `json:"rhs"`
	Dst CellRef    `json:"dst"`
}

type DivModHint struct {
	Lhs       ResOperand `json:"lhs"`
	Rhs       ResOperand `json:"rhs"`
	Quotient  CellRef    `json:"quotient"`
	Remainder CellRef    `json:"remainder"`
}

type AddSignatureHint struct {
	Ptr ResOperand `json:"ptr"`
	R   ResOperand `json:"r"`
	S   ResOperand `json:"s"`
}

// Hint is an instruction to the runner, executed before the instruction at
// the associated program counter. Exactly one field is set.
type Hint struct {
	AllocSegment        *AllocSegmentHint `json:"AllocSegment,omitempty"`
	SystemCall          *SystemCallHint   `json:"SystemCall,omitempty"`
	TestLessThan        *CompareHint      `json:"TestLessThan,omitempty"`
	TestLessThanOrEqual *CompareHint      `json:"TestLessThanOrEqual,omitempty"`
	DivMod              *DivModHint       `json:"DivMod,omitempty"`
	AddSignature        *AddSignatureHint `json:"AddSignature,omitempty"`
}

// PCHints lists the hints attached to a program counter.
type PCHints struct {
	PC    uint64 `json:"pc"`
	Hints []Hint `json:"hints"`
}
