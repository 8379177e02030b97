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
	"cmp"

	"golang.org/x/exp/slices"
)

//go:generate mockgen -source processor.go -destination processor_mock.go -package aria

// Processor is an interface for a component capable of executing transactions.
// Implementations check nonces and fee bounds, run the validation and
// execution phases of a transaction including its recursive contract calls,
// and charge fees. The state is never modified; all effects are reported
// through the state diff of the receipt, to be applied by the caller.
type Processor interface {
	// Run executes the transaction on top of the given state. Transactions
	// failing validation or execution produce a receipt with a matching
	// status and a nil error. A non-nil error signals a fatal problem.
	Run(BlockContext, Transaction, StateReader) (Receipt, error)
}

// StateReader provides read access to committed state. Implementations must
// be free of side effects and return zero values for unknown entries.
type StateReader interface {
	GetStorage(Address, StorageKey) (Felt, error)
	GetNonce(Address) (Felt, error)
	GetClassHash(Address) (ClassHash, error)
	// GetCompiledClass returns nil if the class is not declared.
	GetCompiledClass(ClassHash) (*CompiledClass, error)
}

// StorageWrite is an entry of a state diff.
type StorageWrite struct {
	Address Address    `json:"address"`
	Key     StorageKey `json:"key"`
	Value   Felt       `json:"value"`
}

// NonceUpdate is an entry of a state diff.
type NonceUpdate struct {
	Address Address `json:"address"`
	Nonce   Felt    `json:"nonce"`
}

// ClassUpdate binds a class hash to an address in a state diff.
type ClassUpdate struct {
	Address   Address   `json:"address"`
	ClassHash ClassHash `json:"class_hash"`
}

// DeclaredClass is a class added by a state diff.
type DeclaredClass struct {
	ClassHash ClassHash      `json:"class_hash"`
	Class     *CompiledClass `json:"class"`
}

// StateDiff is the set of state changes made by a transaction or block. All
// lists are sorted by address, then key, and free of duplicates.
type StateDiff struct {
	Storage         []StorageWrite  `json:"storage_diffs,omitempty"`
	Nonces          []NonceUpdate   `json:"nonces,omitempty"`
	ClassHashes     []ClassUpdate   `json:"deployed_contracts,omitempty"`
	DeclaredClasses []DeclaredClass `json:"declared_classes,omitempty"`
}

func (d *StateDiff) IsEmpty() bool {
	return len(d.Storage) == 0 && len(d.Nonces) == 0 &&
		len(d.ClassHashes) == 0 && len(d.DeclaredClasses) == 0
}

// Sort brings all entries into canonical order.
func (d *StateDiff) Sort() {
	slices.SortFunc(d.Storage, func(a, b StorageWrite) int {
		if c := a.Address.Cmp(b.Address); c != 0 {
			return c
		}
		return a.Key.Cmp(b.Key)
	})
	slices.SortFunc(d.Nonces, func(a, b NonceUpdate) int { return a.Address.Cmp(b.Address) })
	slices.SortFunc(d.ClassHashes, func(a, b ClassUpdate) int { return a.Address.Cmp(b.Address) })
	slices.SortFunc(d.DeclaredClasses, func(a, b DeclaredClass) int { return a.ClassHash.Cmp(b.ClassHash) })
}

// MergeStateDiffs combines two diffs, where entries of the later diff take precedence
// over entries of the earlier one.
func MergeStateDiffs(earlier, later StateDiff) StateDiff {
	storage := map[[2]Felt]Felt{}
	for _, w := range append(slices.Clone(earlier.Storage), later.Storage...) {
		storage[[2]Felt{Felt(w.Address), Felt(w.Key)}] = w.Value
	}
	nonces := map[Address]Felt{}
	for _, n := range append(slices.Clone(earlier.Nonces), later.Nonces...) {
		nonces[n.Address] = n.Nonce
	}
	classes := map[Address]ClassHash{}
	for _, c := range append(slices.Clone(earlier.ClassHashes), later.ClassHashes...) {
		classes[c.Address] = c.ClassHash
	}
	declared := map[ClassHash]*CompiledClass{}
	for _, c := range append(slices.Clone(earlier.DeclaredClasses), later.DeclaredClasses...) {
		declared[c.ClassHash] = c.Class
	}

	res := StateDiff{}
	for k, v := range storage {
		res.Storage = append(res.Storage, StorageWrite{Address: Address(k[0]), Key: StorageKey(k[1]), Value: v})
	}
	for k, v := range nonces {
		res.Nonces = append(res.Nonces, NonceUpdate{Address: k, Nonce: v})
	}
	for k, v := range classes {
		res.ClassHashes = append(res.ClassHashes, ClassUpdate{Address: k, ClassHash: v})
	}
	for k, v := range declared {
		res.DeclaredClasses = append(res.DeclaredClasses, DeclaredClass{ClassHash: k, Class: v})
	}
	res.Sort()
	return res
}

func sortByOrder[T any](list []T, order func(T) uint64) {
	slices.SortStableFunc(list, func(a, b T) int {
		return cmp.Compare(order(a), order(b))
	})
}
