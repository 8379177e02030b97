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
	"encoding/json"
	"math/big"
	"testing"
)

func TestFelt_ArithmeticWrapsAroundPrime(t *testing.T) {
	minusOne := Zero.Sub(One)
	want := new(big.Int).Sub(Prime(), big.NewInt(1))
	if got := minusOne.BigInt(); got.Cmp(want) != 0 {
		t.Errorf("unexpected value of -1, wanted %v, got %v", want, got)
	}
	if got := minusOne.Add(One); !got.IsZero() {
		t.Errorf("-1 + 1 should be zero, got %v", got)
	}
	if got, want := NewFeltFromInt(-5), NewFelt(5).Neg(); got != want {
		t.Errorf("unexpected negation, wanted %v, got %v", want, got)
	}
}

func TestFelt_DivisionIsInverseOfMultiplication(t *testing.T) {
	tests := []struct{ a, b uint64 }{
		{1, 1}, {6, 3}, {7, 2}, {0, 5}, {1 << 40, 12345},
	}
	for _, test := range tests {
		a, b := NewFelt(test.a), NewFelt(test.b)
		if got := a.Div(b).Mul(b); got != a {
			t.Errorf("(%d / %d) * %d = %v, wanted %v", test.a, test.b, test.b, got, a)
		}
		if got := b.Mul(b.Inverse()); got != One {
			t.Errorf("%d * %d^-1 = %v, wanted 1", test.b, test.b, got)
		}
	}
}

func TestFelt_Uint64(t *testing.T) {
	if v, ok := NewFelt(42).Uint64(); !ok || v != 42 {
		t.Errorf("unexpected conversion result: %d, %t", v, ok)
	}
	if _, ok := NewFeltFromInt(-1).Uint64(); ok {
		t.Errorf("-1 should not fit into an uint64")
	}
}

func TestFelt_BitLenOfCanonicalValue(t *testing.T) {
	tests := map[string]struct {
		felt Felt
		want int
	}{
		"zero":    {Zero, 0},
		"one":     {One, 1},
		"255":     {NewFelt(255), 8},
		"2^64":    {FeltFromBig(new(big.Int).Lsh(big.NewInt(1), 64)), 65},
		"2^128-1": {FeltFromBig(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))), 128},
		"-1":      {Zero.Sub(One), new(big.Int).Sub(Prime(), big.NewInt(1)).BitLen()},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := test.felt.BitLen(); got != test.want {
				t.Errorf("unexpected bit length, wanted %d, got %d", test.want, got)
			}
			if got, want := test.felt.BitLen(), test.felt.BigInt().BitLen(); got != want {
				t.Errorf("bit length differs from big.Int, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestFelt_HexParsing(t *testing.T) {
	tests := map[string]struct {
		input string
		valid bool
		want  Felt
	}{
		"with prefix":    {"0x2a", true, NewFelt(42)},
		"without prefix": {"2a", true, NewFelt(42)},
		"upper case":     {"0X2A", true, NewFelt(42)},
		"empty":          {"0x", false, Zero},
		"not hex":        {"0xzz", false, Zero},
		"prime":          {"0x800000000000011000000000000000000000000000000000000000000000001", false, Zero},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := FeltFromHex(test.input)
			if test.valid != (err == nil) {
				t.Fatalf("unexpected error state, wanted valid=%t, got %v", test.valid, err)
			}
			if test.valid && got != test.want {
				t.Errorf("unexpected value, wanted %v, got %v", test.want, got)
			}
		})
	}
}

func TestFelt_JSON_Encoding(t *testing.T) {
	tests := []struct {
		felt Felt
		json string
	}{
		{Zero, `"0x0"`},
		{One, `"0x1"`},
		{NewFelt(0xabcdef), `"0xabcdef"`},
	}
	for _, test := range tests {
		encoded, err := json.Marshal(test.felt)
		if err != nil {
			t.Fatalf("failed to encode into JSON: %v", err)
		}
		if want, got := test.json, string(encoded); want != got {
			t.Errorf("unexpected JSON encoding, wanted %v, got %v", want, got)
		}
		var restored Felt
		if err := json.Unmarshal(encoded, &restored); err != nil {
			t.Fatalf("failed to restore felt: %v", err)
		}
		if restored != test.felt {
			t.Errorf("unexpected restored value, wanted %v, got %v", test.felt, restored)
		}
	}
}

func TestFelt_DecimalTextIsAccepted(t *testing.T) {
	var f Felt
	if err := f.UnmarshalText([]byte("257")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != NewFelt(257) {
		t.Errorf("unexpected value, wanted 257, got %v", f)
	}
	if err := f.UnmarshalText([]byte("-1")); err == nil {
		t.Errorf("negative decimal values should be rejected")
	}
}

func TestShortString_EncodeAndDecode(t *testing.T) {
	for _, s := range []string{"a", "StorageRead", "Out of gas", "0123456789012345678901234567890"} {
		f, err := ShortString(s)
		if err != nil {
			t.Fatalf("failed to encode %q: %v", s, err)
		}
		got, ok := DecodeShortString(f)
		if !ok || got != s {
			t.Errorf("unexpected decoding of %q: %q, %t", s, got, ok)
		}
	}
	if _, err := ShortString("01234567890123456789012345678901"); err == nil {
		t.Errorf("strings of 32 characters should be rejected")
	}
	if got, want := MustShortString("a"), NewFelt(0x61); got != want {
		t.Errorf("unexpected encoding, wanted %v, got %v", want, got)
	}
}
