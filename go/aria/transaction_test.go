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
	"testing"
)

func TestTransaction_MaxFeeBoundDependsOnVersion(t *testing.T) {
	tx := Transaction{
		Version: 1,
		MaxFee:  NewAmount(1000),
		ResourceBounds: &ResourceBounds{
			L1Gas: ResourceBound{MaxAmount: 10, MaxPricePerUnit: NewAmount(3)},
			L2Gas: ResourceBound{MaxAmount: 100, MaxPricePerUnit: NewAmount(2)},
		},
	}
	if got := tx.MaxFeeBound(); got != NewAmount(1000) {
		t.Errorf("unexpected V1 bound %v", got)
	}
	tx.Version = 3
	if got := tx.MaxFeeBound(); got != NewAmount(230) {
		t.Errorf("unexpected V3 bound %v", got)
	}
}

func TestTransaction_HashCoversFields(t *testing.T) {
	chain := MustShortString("SN_TEST")
	tx := Transaction{
		Type:     InvokeTx,
		Version:  1,
		Sender:   Address(NewFelt(257)),
		Nonce:    NewFelt(1),
		Calldata: []Felt{NewFelt(1), NewFelt(2)},
		MaxFee:   NewAmount(1000),
	}
	base := tx.Hash(chain)
	if base != tx.Hash(chain) {
		t.Fatalf("hash is not deterministic")
	}
	modifications := map[string]func(*Transaction){
		"nonce":    func(tx *Transaction) { tx.Nonce = NewFelt(2) },
		"sender":   func(tx *Transaction) { tx.Sender = Address(NewFelt(258)) },
		"calldata": func(tx *Transaction) { tx.Calldata = []Felt{NewFelt(1)} },
		"max fee":  func(tx *Transaction) { tx.MaxFee = NewAmount(1001) },
		"version":  func(tx *Transaction) { tx.Version = 0 },
		"type":     func(tx *Transaction) { tx.Type = L1HandlerTx },
	}
	for name, modify := range modifications {
		modified := tx
		modify(&modified)
		if modified.Hash(chain) == base {
			t.Errorf("modifying the %s does not change the hash", name)
		}
	}
	if tx.Hash(MustShortString("SN_MAIN")) == base {
		t.Errorf("chain id does not change the hash")
	}
}

func TestTransaction_DeployAddressIsDerived(t *testing.T) {
	tx := Transaction{
		Type:                DeployAccountTx,
		ClassHash:           ClassHash(NewFelt(5)),
		ContractAddressSalt: NewFelt(7),
		ConstructorCalldata: []Felt{NewFelt(9)},
	}
	want := ContractAddress(Address{}, NewFelt(7), ClassHash(NewFelt(5)), []Felt{NewFelt(9)})
	if got := tx.ContractAddress(); got != want {
		t.Errorf("unexpected address, wanted %v, got %v", want, got)
	}
	if !tx.HasFee() {
		t.Errorf("deploy account transactions pay fees")
	}
	tx.Type = DeployTx
	if tx.HasFee() {
		t.Errorf("legacy deploy transactions pay no fees")
	}
}

func TestTransaction_JSON_UsesTypeNames(t *testing.T) {
	encoded, err := json.Marshal(Transaction{Type: L1HandlerTx})
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	var restored Transaction
	if err := json.Unmarshal(encoded, &restored); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if restored.Type != L1HandlerTx {
		t.Errorf("unexpected type %v", restored.Type)
	}
}

func TestStepCounter_ExhaustionIsSticky(t *testing.T) {
	counter := NewStepCounter(10)
	if !counter.Use(7) || counter.Remaining() != 3 {
		t.Fatalf("unexpected state after first use: %d", counter.Remaining())
	}
	if counter.Use(4) {
		t.Errorf("using more than the remaining steps should fail")
	}
	if !counter.Exhausted() || counter.Used() != 10 {
		t.Errorf("counter should be exhausted")
	}
}
