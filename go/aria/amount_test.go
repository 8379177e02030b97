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

	"github.com/holiman/uint256"
)

func TestAmount_FeltsRoundTrip(t *testing.T) {
	value := new(uint256.Int).Lsh(uint256.NewInt(3), 130)
	value.Add(value, uint256.NewInt(17))
	amount := AmountFromUint256(value)

	low, high := amount.Felts()
	if low != NewFelt(17) {
		t.Errorf("unexpected low half, wanted 17, got %v", low)
	}
	if high != NewFelt(12) {
		t.Errorf("unexpected high half, wanted 12, got %v", high)
	}
	restored, err := AmountFromFelts(low, high)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored != amount {
		t.Errorf("unexpected restored amount, wanted %v, got %v", amount, restored)
	}
}

func TestAmount_FeltsExceeding128BitsAreRejected(t *testing.T) {
	tooLarge := FeltFromBig(new(big.Int).Lsh(big.NewInt(1), 128))
	if _, err := AmountFromFelts(tooLarge, Zero); err == nil {
		t.Errorf("expected error for oversized low half")
	}
	if _, err := AmountFromFelts(Zero, tooLarge); err == nil {
		t.Errorf("expected error for oversized high half")
	}
	largest := tooLarge.Sub(One)
	if _, err := AmountFromFelts(largest, largest); err != nil {
		t.Errorf("unexpected error for 128-bit halves: %v", err)
	}
}

func TestAmount_Arithmetic(t *testing.T) {
	sum, overflow := AddAmounts(NewAmount(5), NewAmount(7))
	if overflow || sum != NewAmount(12) {
		t.Errorf("unexpected sum %v, overflow %t", sum, overflow)
	}
	if _, overflow := AddAmounts(MaxAmount, NewAmount(1)); !overflow {
		t.Errorf("expected overflow")
	}
	diff, underflow := SubAmounts(NewAmount(5), NewAmount(7))
	if !underflow {
		t.Errorf("expected underflow, got %v", diff)
	}
	if got := NewAmount(3).Scale(4); got != NewAmount(12) {
		t.Errorf("unexpected scaled amount %v", got)
	}
	if got := MaxAmount.Scale(2); got != MaxAmount {
		t.Errorf("scaling should saturate, got %v", got)
	}
	if NewAmount(3).Cmp(NewAmount(4)) >= 0 || !NewAmount(0).IsZero() {
		t.Errorf("unexpected comparison results")
	}
}

func TestAmount_JSON_Encoding(t *testing.T) {
	encoded, err := json.Marshal(NewAmount(255))
	if err != nil {
		t.Fatalf("failed to encode into JSON: %v", err)
	}
	if want, got := `"0xff"`, string(encoded); want != got {
		t.Errorf("unexpected JSON encoding, wanted %v, got %v", want, got)
	}
	var restored Amount
	if err := json.Unmarshal(encoded, &restored); err != nil {
		t.Fatalf("failed to restore amount: %v", err)
	}
	if restored != NewAmount(255) {
		t.Errorf("unexpected restored value %v", restored)
	}
}
