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
	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/ecdsa"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

// builtinRunner implements the semantics of a builtin segment. Cells of the
// segment are grouped in instances of a fixed number of cells.
type builtinRunner interface {
	kind() aria.Builtin
	cellsPerInstance() uint64
	// deduce computes the value of an unknown cell, if it is an output cell
	// whose inputs are known.
	deduce(mem *Memory, addr Relocatable) (Value, bool, error)
	// validate checks a value written to the segment.
	validate(mem *Memory, addr Relocatable, value Value) error
	// finalize checks all instances at the end of a run.
	finalize(mem *Memory, segment int) error
}

func newBuiltinRunner(kind aria.Builtin) (builtinRunner, error) {
	switch kind {
	case aria.BuiltinOutput:
		return outputBuiltin{}, nil
	case aria.BuiltinPedersen:
		return pedersenBuiltin{}, nil
	case aria.BuiltinRangeCheck:
		return rangeCheckBuiltin{}, nil
	case aria.BuiltinEcdsa:
		return &ecdsaBuiltin{signatures: map[uint64]ecdsaSignature{}}, nil
	case aria.BuiltinBitwise:
		return bitwiseBuiltin{}, nil
	case aria.BuiltinEcOp:
		return ecOpBuiltin{}, nil
	}
	return nil, fmt.Errorf("%w: unsupported builtin %v", aria.ErrInvalidInstruction, kind)
}

func builtinError(kind aria.Builtin, addr Relocatable, format string, args ...any) error {
	return fmt.Errorf("%w: %v at %v: %s", aria.ErrBuiltinValidation, kind, addr, fmt.Sprintf(format, args...))
}

// instanceInputs reads the first n cells of the instance containing addr.
// The result is false if any of them is unknown.
func instanceInputs(mem *Memory, addr Relocatable, cells, n uint64) ([]aria.Felt, bool, error) {
	base := Relocatable{Segment: addr.Segment, Offset: addr.Offset - addr.Offset%cells}
	res := make([]aria.Felt, n)
	for i := uint64(0); i < n; i++ {
		value, known, err := mem.Get(base.Add(i))
		if err != nil || !known {
			return nil, false, err
		}
		f, ok := value.Felt()
		if !ok {
			return nil, false, fmt.Errorf("%w: relocatable builtin input at %v", aria.ErrBuiltinValidation, base.Add(i))
		}
		res[i] = f
	}
	return res, true, nil
}

func requireFelt(kind aria.Builtin, addr Relocatable, value Value) (aria.Felt, error) {
	f, ok := value.Felt()
	if !ok {
		return aria.Felt{}, builtinError(kind, addr, "relocatable %v is not allowed", value)
	}
	return f, nil
}

// finalizeInstances re-runs the deduction of all output cells of complete
// instances and checks the result against the stored values.
func finalizeInstances(b builtinRunner, mem *Memory, segment int, inputs uint64) error {
	cells := b.cellsPerInstance()
	size := mem.SegmentUsedSize(segment)
	for base := uint64(0); base < size; base += cells {
		for i := inputs; i < cells; i++ {
			addr := Relocatable{Segment: segment, Offset: base + i}
			stored, known, err := mem.Get(addr)
			if err != nil {
				return err
			}
			if !known {
				continue
			}
			expected, found, err := b.deduce(mem, addr)
			if err != nil {
				return err
			}
			if found && expected != stored {
				return builtinError(b.kind(), addr, "expected %v, got %v", expected, stored)
			}
		}
	}
	return nil
}

// --- output ---

type outputBuiltin struct{}

func (outputBuiltin) kind() aria.Builtin                               { return aria.BuiltinOutput }
func (outputBuiltin) cellsPerInstance() uint64                         { return 1 }
func (outputBuiltin) deduce(*Memory, Relocatable) (Value, bool, error) { return Value{}, false, nil }
func (outputBuiltin) validate(*Memory, Relocatable, Value) error       { return nil }
func (outputBuiltin) finalize(*Memory, int) error                      { return nil }

// --- pedersen ---

// pedersenBuiltin instances are [x, y, pedersen(x, y)].
type pedersenBuiltin struct{}

func (pedersenBuiltin) kind() aria.Builtin       { return aria.BuiltinPedersen }
func (pedersenBuiltin) cellsPerInstance() uint64 { return 3 }

func (b pedersenBuiltin) deduce(mem *Memory, addr Relocatable) (Value, bool, error) {
	if addr.Offset%3 != 2 {
		return Value{}, false, nil
	}
	in, known, err := instanceInputs(mem, addr, 3, 2)
	if err != nil || !known {
		return Value{}, false, err
	}
	return FeltValue(aria.Pedersen(in[0], in[1])), true, nil
}

func (b pedersenBuiltin) validate(_ *Memory, addr Relocatable, value Value) error {
	_, err := requireFelt(b.kind(), addr, value)
	return err
}

func (b pedersenBuiltin) finalize(mem *Memory, segment int) error {
	return finalizeInstances(b, mem, segment, 2)
}

// --- range check ---

type rangeCheckBuiltin struct{}

const rangeCheckBits = 128

func (rangeCheckBuiltin) kind() aria.Builtin                               { return aria.BuiltinRangeCheck }
func (rangeCheckBuiltin) cellsPerInstance() uint64                         { return 1 }
func (rangeCheckBuiltin) deduce(*Memory, Relocatable) (Value, bool, error) { return Value{}, false, nil }
func (rangeCheckBuiltin) finalize(*Memory, int) error                      { return nil }

func (b rangeCheckBuiltin) validate(_ *Memory, addr Relocatable, value Value) error {
	f, err := requireFelt(b.kind(), addr, value)
	if err != nil {
		return err
	}
	if f.BitLen() > rangeCheckBits {
		return builtinError(b.kind(), addr, "value %v exceeds %d bits", f, rangeCheckBits)
	}
	return nil
}

// --- ecdsa ---

type ecdsaSignature struct {
	r, s aria.Felt
}

// ecdsaBuiltin instances are [public key, message]; the signature of each
// instance is registered by a hint before the instance is written.
type ecdsaBuiltin struct {
	signatures map[uint64]ecdsaSignature
}

func (*ecdsaBuiltin) kind() aria.Builtin                               { return aria.BuiltinEcdsa }
func (*ecdsaBuiltin) cellsPerInstance() uint64                         { return 2 }
func (*ecdsaBuiltin) deduce(*Memory, Relocatable) (Value, bool, error) { return Value{}, false, nil }

func (b *ecdsaBuiltin) addSignature(addr Relocatable, r, s aria.Felt) {
	b.signatures[addr.Offset/2] = ecdsaSignature{r: r, s: s}
}

func (b *ecdsaBuiltin) validate(mem *Memory, addr Relocatable, value Value) error {
	if _, err := requireFelt(b.kind(), addr, value); err != nil {
		return err
	}
	other := Relocatable{Segment: addr.Segment, Offset: addr.Offset ^ 1}
	otherValue, known, err := mem.Get(other)
	if err != nil || !known {
		return err
	}
	key, msg := value, otherValue
	if addr.Offset%2 == 1 {
		key, msg = otherValue, value
	}
	keyFelt, _ := key.Felt()
	msgFelt, ok := msg.Felt()
	if !ok {
		return builtinError(b.kind(), addr, "relocatable message")
	}
	return b.verify(addr, addr.Offset/2, keyFelt, msgFelt)
}

func (b *ecdsaBuiltin) verify(addr Relocatable, instance uint64, key, msg aria.Felt) error {
	sig, found := b.signatures[instance]
	if !found {
		return builtinError(b.kind(), addr, "no signature registered for instance %d", instance)
	}
	if !verifySignature(key, msg, sig.r, sig.s) {
		return builtinError(b.kind(), addr, "invalid signature for key %v and message %v", key, msg)
	}
	return nil
}

func (b *ecdsaBuiltin) finalize(mem *Memory, segment int) error {
	size := mem.SegmentUsedSize(segment)
	for base := uint64(0); base < size; base += 2 {
		in, known, err := instanceInputs(mem, Relocatable{Segment: segment, Offset: base}, 2, 2)
		if err != nil {
			return err
		}
		if !known {
			return builtinError(b.kind(), Relocatable{Segment: segment, Offset: base}, "incomplete instance")
		}
		if err := b.verify(Relocatable{Segment: segment, Offset: base}, base/2, in[0], in[1]); err != nil {
			return err
		}
	}
	return nil
}

// verifySignature checks a signature for the public key given by its x
// coordinate. Both points with that x coordinate are accepted.
func verifySignature(keyX, msg, r, s aria.Felt) bool {
	curveA, curveB := starkcurve.CurveCoefficients()
	// y^2 = x^3 + a*x + b
	var x, ax, rhs, y fp.Element
	x = *keyX.Fp()
	ax.Mul(&curveA, &x)
	rhs.Square(&x).Mul(&rhs, &x).Add(&rhs, &ax).Add(&rhs, &curveB)
	if y.Sqrt(&rhs) == nil {
		return false
	}
	rBytes, sBytes, msgBytes := r.Bytes(), s.Bytes(), msg.Bytes()
	sig := append(rBytes[:], sBytes[:]...)
	for _, candidate := range []fp.Element{y, *new(fp.Element).Neg(&y)} {
		key := ecdsa.PublicKey{A: starkcurve.G1Affine{X: x, Y: candidate}}
		if valid, err := key.Verify(sig, msgBytes[:], nil); err == nil && valid {
			return true
		}
	}
	return false
}

// --- bitwise ---

// bitwiseBuiltin instances are [x, y, x & y, x ^ y, x | y].
type bitwiseBuiltin struct{}

const bitwiseBits = 251

func (bitwiseBuiltin) kind() aria.Builtin       { return aria.BuiltinBitwise }
func (bitwiseBuiltin) cellsPerInstance() uint64 { return 5 }

func (b bitwiseBuiltin) deduce(mem *Memory, addr Relocatable) (Value, bool, error) {
	index := addr.Offset % 5
	if index < 2 {
		return Value{}, false, nil
	}
	in, known, err := instanceInputs(mem, addr, 5, 2)
	if err != nil || !known {
		return Value{}, false, err
	}
	x, y := in[0].BigInt(), in[1].BigInt()
	res := new(big.Int)
	switch index {
	case 2:
		res.And(x, y)
	case 3:
		res.Xor(x, y)
	case 4:
		res.Or(x, y)
	}
	return FeltValue(aria.FeltFromBig(res)), true, nil
}

func (b bitwiseBuiltin) validate(_ *Memory, addr Relocatable, value Value) error {
	f, err := requireFelt(b.kind(), addr, value)
	if err != nil {
		return err
	}
	if addr.Offset%5 < 2 && f.BitLen() > bitwiseBits {
		return builtinError(b.kind(), addr, "input %v exceeds %d bits", f, bitwiseBits)
	}
	return nil
}

func (b bitwiseBuiltin) finalize(mem *Memory, segment int) error {
	return finalizeInstances(b, mem, segment, 2)
}

// --- ec op ---

// ecOpBuiltin instances are [p.x, p.y, q.x, q.y, m, r.x, r.y] with
// r = p + m * q on the Stark curve.
type ecOpBuiltin struct{}

func (ecOpBuiltin) kind() aria.Builtin       { return aria.BuiltinEcOp }
func (ecOpBuiltin) cellsPerInstance() uint64 { return 7 }

func (b ecOpBuiltin) deduce(mem *Memory, addr Relocatable) (Value, bool, error) {
	index := addr.Offset % 7
	if index < 5 {
		return Value{}, false, nil
	}
	in, known, err := instanceInputs(mem, addr, 7, 5)
	if err != nil || !known {
		return Value{}, false, err
	}
	p := starkcurve.G1Affine{X: *in[0].Fp(), Y: *in[1].Fp()}
	q := starkcurve.G1Affine{X: *in[2].Fp(), Y: *in[3].Fp()}
	if !p.IsOnCurve() || !q.IsOnCurve() {
		return Value{}, false, builtinError(b.kind(), addr, "point not on curve")
	}
	var mq, r starkcurve.G1Affine
	mq.ScalarMultiplication(&q, in[4].BigInt())
	r.Add(&p, &mq)
	if r.IsInfinity() {
		return Value{}, false, builtinError(b.kind(), addr, "result is the point at infinity")
	}
	if index == 5 {
		return FeltValue(aria.Felt(r.X)), true, nil
	}
	return FeltValue(aria.Felt(r.Y)), true, nil
}

func (b ecOpBuiltin) validate(_ *Memory, addr Relocatable, value Value) error {
	_, err := requireFelt(b.kind(), addr, value)
	return err
}

func (b ecOpBuiltin) finalize(mem *Memory, segment int) error {
	return finalizeInstances(b, mem, segment, 5)
}
