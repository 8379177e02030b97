// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.


package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/examples"
	"github.com/Fantom-foundation/Aria/go/processor/executor"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Scenario is a block of transactions together with the initial state it is
// executed on.
type Scenario struct {
	Block        aria.BlockContext   `json:"block"`
	Classes      []ClassSpec         `json:"classes,omitempty"`
	Contracts    []ContractSpec      `json:"contracts,omitempty"`
	Balances     []BalanceSpec       `json:"balances,omitempty"`
	Storage      []aria.StorageWrite `json:"storage,omitempty"`
	Transactions []aria.Transaction  `json:"transactions"`
}

// ClassSpec is a class declared in the initial state. It is either one of
// the fixture classes or read from a compiled class file, relative to the
// scenario file.
type ClassSpec struct {
	Name string `json:"name"`
	File string `json:"file,omitempty"`
}

// ContractSpec is a contract deployed in the initial state.
type ContractSpec struct {
	Address aria.Address `json:"address"`
	Class   string       `json:"class"`
	Nonce   aria.Felt    `json:"nonce"`
}

// BalanceSpec is a fee token balance of the initial state.
type BalanceSpec struct {
	Account aria.Address `json:"account"`
	Amount  aria.Amount  `json:"amount"`
}

var fixtures = map[string]func() *aria.CompiledClass{
	"account":           examples.Account,
	"rejecting_account": examples.RejectingAccount,
	"store":             examples.Store,
	"simple_storage":    examples.SimpleStorage,
	"fee_token":         executor.FeeTokenClass,
}

// fixtureNames lists the names of the fixture classes in order.
func fixtureNames() []string {
	res := maps.Keys(fixtures)
	slices.Sort(res)
	return res
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res := &Scenario{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	for i := range res.Classes {
		if file := res.Classes[i].File; file != "" && !filepath.IsAbs(file) {
			res.Classes[i].File = filepath.Join(filepath.Dir(path), file)
		}
	}
	return res, nil
}

// loadClass resolves a class of the initial state.
func loadClass(spec ClassSpec) (*aria.CompiledClass, error) {
	if spec.File == "" {
		fixture, found := fixtures[spec.Name]
		if !found {
			return nil, fmt.Errorf("unknown fixture class %q, available: %v", spec.Name, fixtureNames())
		}
		return fixture(), nil
	}
	data, err := os.ReadFile(spec.File)
	if err != nil {
		return nil, err
	}
	class := &aria.CompiledClass{}
	if err := json.Unmarshal(data, class); err != nil {
		return nil, fmt.Errorf("invalid class %s: %w", spec.File, err)
	}
	return class, nil
}

// Genesis produces the initial state of the scenario as a diff. The fee
// token is always deployed at the configured address.
func (s *Scenario) Genesis(config executor.Config) (aria.StateDiff, error) {
	res := aria.StateDiff{}
	hashes := map[string]aria.ClassHash{}
	declare := func(name string, class *aria.CompiledClass) {
		hash := class.Hash()
		hashes[name] = hash
		res.DeclaredClasses = append(res.DeclaredClasses, aria.DeclaredClass{ClassHash: hash, Class: class})
	}

	declare("fee_token", executor.FeeTokenClass())
	res.ClassHashes = append(res.ClassHashes, aria.ClassUpdate{Address: config.FeeTokenAddress, ClassHash: hashes["fee_token"]})

	for _, spec := range s.Classes {
		if _, found := hashes[spec.Name]; found {
			continue
		}
		class, err := loadClass(spec)
		if err != nil {
			return aria.StateDiff{}, err
		}
		declare(spec.Name, class)
	}
	for _, contract := range s.Contracts {
		hash, found := hashes[contract.Class]
		if !found {
			return aria.StateDiff{}, fmt.Errorf("contract %v refers to undeclared class %q", contract.Address, contract.Class)
		}
		res.ClassHashes = append(res.ClassHashes, aria.ClassUpdate{Address: contract.Address, ClassHash: hash})
		if !contract.Nonce.IsZero() {
			res.Nonces = append(res.Nonces, aria.NonceUpdate{Address: contract.Address, Nonce: contract.Nonce})
		}
	}
	for _, balance := range s.Balances {
		res.Storage = append(res.Storage, executor.BalanceWrites(config.FeeTokenAddress, balance.Account, balance.Amount)...)
	}
	res.Storage = append(res.Storage, s.Storage...)
	res.Sort()
	return res, nil
}
