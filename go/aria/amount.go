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
	"bytes"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is a 256-bit unsigned quantity of the fee token, stored big-endian.
// On chain it is represented as a pair of 128-bit felts.
type Amount [32]byte

// MaxAmount is the largest representable amount.
var MaxAmount = AmountFromUint256(new(uint256.Int).SetAllOne())

// NewAmount creates an amount from a small integer.
func NewAmount(v uint64) Amount {
	return AmountFromUint256(new(uint256.Int).SetUint64(v))
}

// AmountFromUint256 converts a *uint256.Int to an Amount. A nil input is
// converted to zero.
func AmountFromUint256(v *uint256.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return v.Bytes32()
}

// AmountFromFelts combines the low and high 128-bit halves of an amount.
// It fails if either half does not fit into 128 bits.
func AmountFromFelts(low, high Felt) (Amount, error) {
	if low.BitLen() > 128 || high.BitLen() > 128 {
		return Amount{}, fmt.Errorf("amount halves exceed 128 bits: low=%v high=%v", low, high)
	}
	l, h := low.Bytes(), high.Bytes()
	var res Amount
	copy(res[0:16], h[16:32])
	copy(res[16:32], l[16:32])
	return res, nil
}

// Felts splits the amount into its low and high 128-bit halves.
func (a Amount) Felts() (low, high Felt) {
	return FeltFromBytes(a[16:32]), FeltFromBytes(a[0:16])
}

func (a Amount) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes(a[:])
}

func (a Amount) ToBig() *big.Int {
	return new(big.Int).SetBytes(a[:])
}

func (a Amount) IsZero() bool {
	return a == Amount{}
}

func (a Amount) Cmp(o Amount) int {
	return bytes.Compare(a[:], o[:])
}

// AddAmounts returns a+b and whether the sum overflowed.
func AddAmounts(a, b Amount) (Amount, bool) {
	res, overflow := new(uint256.Int).AddOverflow(a.ToUint256(), b.ToUint256())
	return AmountFromUint256(res), overflow
}

// SubAmounts returns a-b and whether the difference underflowed.
func SubAmounts(a, b Amount) (Amount, bool) {
	res, underflow := new(uint256.Int).SubOverflow(a.ToUint256(), b.ToUint256())
	return AmountFromUint256(res), underflow
}

// Scale multiplies the amount by s, saturating at the maximum value.
func (a Amount) Scale(s uint64) Amount {
	res, overflow := new(uint256.Int).MulOverflow(a.ToUint256(), new(uint256.Int).SetUint64(s))
	if overflow {
		return MaxAmount
	}
	return AmountFromUint256(res)
}

func (a Amount) String() string {
	return a.ToUint256().Dec()
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.ToUint256().Hex()), nil
}

func (a *Amount) UnmarshalText(data []byte) error {
	var v uint256.Int
	if err := v.UnmarshalText(data); err != nil {
		return err
	}
	*a = AmountFromUint256(&v)
	return nil
}
