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

import (
	"fmt"
	"math/big"
	"math/bits"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

// Felt is an element of the Stark prime field, the native word of the Cairo
// machine. Felts are values: all arithmetic returns a new Felt and the
// underlying representation is canonical, so Felts can be compared with ==
// and used as map keys.
type Felt fp.Element

// FeltBytes is the size of the big-endian encoding of a Felt.
const FeltBytes = fp.Bytes

var (
	Zero = Felt{}
	One  = NewFelt(1)
)

// Prime returns the modulus of the field.
func Prime() *big.Int {
	return fp.Modulus()
}

// NewFelt creates a Felt from an unsigned integer.
func NewFelt(v uint64) Felt {
	var e fp.Element
	e.SetUint64(v)
	return Felt(e)
}

// NewFeltFromInt creates a Felt from a signed integer. Negative values wrap
// around the prime.
func NewFeltFromInt(v int64) Felt {
	var e fp.Element
	e.SetInt64(v)
	return Felt(e)
}

// FeltFromBig reduces the given integer modulo the prime.
func FeltFromBig(v *big.Int) Felt {
	var e fp.Element
	e.SetBigInt(v)
	return Felt(e)
}

// FeltFromBytes interprets the given bytes as a big-endian integer reduced
// modulo the prime.
func FeltFromBytes(b []byte) Felt {
	var e fp.Element
	e.SetBytes(b)
	return Felt(e)
}

// FeltFromHex parses a hexadecimal string with or without 0x prefix.
func FeltFromHex(s string) (Felt, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) == 0 {
		return Felt{}, fmt.Errorf("invalid felt: empty string")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return Felt{}, fmt.Errorf("invalid felt: %q is not hexadecimal", s)
	}
	if v.Cmp(Prime()) >= 0 {
		return Felt{}, fmt.Errorf("invalid felt: 0x%s exceeds the field prime", s)
	}
	return FeltFromBig(v), nil
}

// MustFeltFromHex is like FeltFromHex but panics on invalid input. It is
// intended for constants.
func MustFeltFromHex(s string) Felt {
	f, err := FeltFromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Felt) element() *fp.Element {
	e := fp.Element(f)
	return &e
}

func (f Felt) Add(o Felt) Felt {
	var r fp.Element
	r.Add(f.element(), o.element())
	return Felt(r)
}

func (f Felt) Sub(o Felt) Felt {
	var r fp.Element
	r.Sub(f.element(), o.element())
	return Felt(r)
}

func (f Felt) Mul(o Felt) Felt {
	var r fp.Element
	r.Mul(f.element(), o.element())
	return Felt(r)
}

// Div returns f * o^-1. Division by zero yields zero; callers that need to
// reject it must check o.IsZero() first.
func (f Felt) Div(o Felt) Felt {
	var r fp.Element
	r.Div(f.element(), o.element())
	return Felt(r)
}

func (f Felt) Neg() Felt {
	var r fp.Element
	r.Neg(f.element())
	return Felt(r)
}

func (f Felt) Inverse() Felt {
	var r fp.Element
	r.Inverse(f.element())
	return Felt(r)
}

func (f Felt) IsZero() bool {
	return f == Zero
}

// Cmp compares the canonical integer representations of f and o.
func (f Felt) Cmp(o Felt) int {
	return f.element().Cmp(o.element())
}

// Uint64 returns the value as an unsigned integer and whether it fits.
func (f Felt) Uint64() (uint64, bool) {
	e := f.element()
	if !e.IsUint64() {
		return 0, false
	}
	return e.Uint64(), true
}

// BitLen is the number of bits required to represent the canonical value.
func (f Felt) BitLen() int {
	words := f.element().Bits() // little-endian limbs, out of Montgomery form
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] != 0 {
			return i*64 + bits.Len64(words[i])
		}
	}
	return 0
}

// BigInt returns the canonical value as a big integer.
func (f Felt) BigInt() *big.Int {
	return f.element().BigInt(new(big.Int))
}

// Bytes returns the canonical big-endian encoding.
func (f Felt) Bytes() [FeltBytes]byte {
	return f.element().Bytes()
}

// Fp exposes the value as a field element for cryptographic primitives.
func (f Felt) Fp() *fp.Element {
	return f.element()
}

func (f Felt) String() string {
	return "0x" + f.element().Text(16)
}

func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Felt) UnmarshalText(data []byte) error {
	s := string(data)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 || v.Cmp(Prime()) >= 0 {
			return fmt.Errorf("invalid felt: %q", s)
		}
		*f = FeltFromBig(v)
		return nil
	}
	res, err := FeltFromHex(s)
	if err != nil {
		return err
	}
	*f = res
	return nil
}

// ShortString encodes an ASCII string of at most 31 characters as a Felt,
// the convention used for selectors of syscalls and for panic messages.
func ShortString(s string) (Felt, error) {
	if len(s) > 31 {
		return Felt{}, fmt.Errorf("short string too long: %d > 31 characters", len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return Felt{}, fmt.Errorf("short string contains non-ASCII character at %d", i)
		}
	}
	return FeltFromBytes([]byte(s)), nil
}

// MustShortString is like ShortString but panics on invalid input.
func MustShortString(s string) Felt {
	f, err := ShortString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// DecodeShortString returns the printable ASCII content of f, if any.
func DecodeShortString(f Felt) (string, bool) {
	if f.IsZero() || f.BitLen() > 31*8 {
		return "", false
	}
	b := f.Bytes()
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	for _, c := range b[i:] {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b[i:]), true
}

// FeltsToHex renders a list of Felts for diagnostics.
func FeltsToHex(list []Felt) string {
	parts := make([]string, len(list))
	for i, f := range list {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
