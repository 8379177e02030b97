// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.


package processor

import (
	"fmt"
	"maps"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/processor/executor"
	"github.com/Fantom-foundation/Aria/go/state"
	"golang.org/x/exp/slices"
)

// ----------------------------------------------------------------------------
// WorldState
// ----------------------------------------------------------------------------

// WorldState provides a utility function to model the state of a chain for
// testing. It is mainly intended to be used to define pre/post states of
// test scenarios for transaction processors.
type WorldState map[aria.Address]Contract

func (s WorldState) Equal(other WorldState) bool {
	return equalMapsIgnoringZero(s, other, func(a, b Contract) bool {
		return a.Equal(&b)
	})
}

func (s WorldState) Clone() WorldState {
	if s == nil {
		return nil
	}
	res := make(WorldState, len(s))
	for k, v := range s {
		res[k] = v.Clone()
	}
	return res
}

func (s WorldState) Diff(other WorldState) []string {
	return diffMaps("", s, other, func(address aria.Address, a, b Contract) []string {
		if a.Equal(&b) {
			return nil
		}
		return a.Diff(fmt.Sprintf("%v/", address), &b)
	})
}

// Build creates a state holding the contracts of the world state. Balances
// are stored in the fee token at the given address, which is deployed as
// well.
func (s WorldState) Build(feeToken aria.Address) *state.MemoryState {
	res := state.NewMemoryState()
	res.Deploy(feeToken, res.Declare(executor.FeeTokenClass()))
	for address, contract := range s {
		if contract.Class != nil {
			res.Deploy(address, res.Declare(contract.Class))
		}
		if contract.Nonce != 0 {
			res.SetNonce(address, aria.NewFelt(contract.Nonce))
		}
		for key, value := range contract.Storage {
			res.SetStorage(address, key, value)
		}
		if !contract.Balance.IsZero() {
			res.Apply(aria.StateDiff{Storage: executor.BalanceWrites(feeToken, address, contract.Balance)})
		}
	}
	return res
}

// ReadWorldState reads the contracts at the given addresses from a state.
// Only the listed storage keys are read.
func ReadWorldState(reader aria.StateReader, feeToken aria.Address, keys map[aria.Address][]aria.StorageKey) (WorldState, error) {
	res := WorldState{}
	for address, list := range keys {
		contract, err := readContract(reader, feeToken, address, list)
		if err != nil {
			return nil, err
		}
		res[address] = contract
	}
	return res, nil
}

func readContract(reader aria.StateReader, feeToken, address aria.Address, keys []aria.StorageKey) (Contract, error) {
	res := Contract{}
	hash, err := reader.GetClassHash(address)
	if err != nil {
		return res, err
	}
	if hash != (aria.ClassHash{}) {
		if res.Class, err = reader.GetCompiledClass(hash); err != nil {
			return res, err
		}
	}
	nonce, err := reader.GetNonce(address)
	if err != nil {
		return res, err
	}
	if value, ok := nonce.Uint64(); ok {
		res.Nonce = value
	} else {
		return res, fmt.Errorf("nonce of %v out of range: %v", address, nonce)
	}
	for _, key := range keys {
		value, err := reader.GetStorage(address, key)
		if err != nil {
			return res, err
		}
		if !value.IsZero() {
			if res.Storage == nil {
				res.Storage = Storage{}
			}
			res.Storage[key] = value
		}
	}
	res.Balance, err = ReadBalance(reader, feeToken, address)
	return res, err
}

// ReadBalance reads the fee token balance of an account.
func ReadBalance(reader aria.StateReader, feeToken, account aria.Address) (aria.Amount, error) {
	var words [2]aria.Felt
	for i, write := range executor.BalanceWrites(feeToken, account, aria.Amount{}) {
		value, err := reader.GetStorage(write.Address, write.Key)
		if err != nil {
			return aria.Amount{}, err
		}
		words[i] = value
	}
	return aria.AmountFromFelts(words[0], words[1])
}

// ----------------------------------------------------------------------------
// Contract
// ----------------------------------------------------------------------------

// Contract represents a contract or account in the world state. The default
// contract is an undeployed address without state, that is ignored by the
// world state.
type Contract struct {
	Class   *aria.CompiledClass
	Nonce   uint64
	Balance aria.Amount
	Storage Storage
}

func (c *Contract) classHash() aria.ClassHash {
	if c.Class == nil {
		return aria.ClassHash{}
	}
	return c.Class.Hash()
}

func (c *Contract) Equal(other *Contract) bool {
	return c.classHash() == other.classHash() &&
		c.Nonce == other.Nonce &&
		c.Balance == other.Balance &&
		c.Storage.Equal(other.Storage)
}

func (c *Contract) Clone() Contract {
	return Contract{
		Class:   c.Class,
		Nonce:   c.Nonce,
		Balance: c.Balance,
		Storage: c.Storage.Clone(),
	}
}

// keys lists the storage keys of the contract in order.
func (c *Contract) keys() []aria.StorageKey {
	res := make([]aria.StorageKey, 0, len(c.Storage))
	for key := range c.Storage {
		res = append(res, key)
	}
	slices.SortFunc(res, func(a, b aria.StorageKey) int { return a.Cmp(b) })
	return res
}

func (c *Contract) Diff(prefix string, other *Contract) []string {
	var res []string
	if a, b := c.classHash(), other.classHash(); a != b {
		res = append(res, fmt.Sprintf("different class: %v != %v", a, b))
	}
	if c.Nonce != other.Nonce {
		res = append(res, fmt.Sprintf("different nonce: %v != %v", c.Nonce, other.Nonce))
	}
	if c.Balance != other.Balance {
		res = append(res, fmt.Sprintf("different balance: %v != %v", c.Balance, other.Balance))
	}
	res = append(res, c.Storage.Diff("Storage/", other.Storage)...)
	for i, diff := range res {
		res[i] = prefix + diff
	}
	return res
}

// ----------------------------------------------------------------------------
// Storage
// ----------------------------------------------------------------------------

// Storage represents the storage of a contract in the world state.
// Zero-valued entries are ignored in the storage.
type Storage map[aria.StorageKey]aria.Felt

func (s Storage) Equal(other Storage) bool {
	return equalMapsIgnoringZero(s, other, func(a, b aria.Felt) bool {
		return a == b
	})
}

func (s Storage) Clone() Storage {
	return maps.Clone(s)
}

func (s Storage) Diff(prefix string, other Storage) []string {
	return diffMaps(prefix, s, other, func(k aria.StorageKey, a, b aria.Felt) []string {
		if a == b {
			return nil
		}
		return []string{
			fmt.Sprintf("different value for key %v: %v != %v", k, a, b),
		}
	})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// equalMapsIgnoringZero compares two maps, ignoring zero-valued entries.
func equalMapsIgnoringZero[K comparable, V any](a, b map[K]V, equal func(V, V) bool) bool {
	for k, v := range a {
		if !equal(v, b[k]) {
			return false
		}
	}
	for k, v := range b {
		if !equal(v, a[k]) {
			return false
		}
	}
	return true
}

// diffMaps compares two maps and returns a list of differences.
func diffMaps[K comparable, V any](prefix string, a, b map[K]V, diff func(K, V, V) []string) []string {
	var diffs []string
	for k, v := range a {
		diffs = append(diffs, diff(k, v, b[k])...)
	}
	for k, v := range b {
		if _, overlap := a[k]; !overlap {
			diffs = append(diffs, diff(k, a[k], v)...)
		}
	}
	for i, diff := range diffs {
		diffs[i] = prefix + diff
	}
	return diffs
}
