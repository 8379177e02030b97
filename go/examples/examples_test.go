// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"testing"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/interpreter/cairovm"
)

func newVm(t *testing.T) aria.Interpreter {
	t.Helper()
	vm, err := cairovm.NewVm(cairovm.Config{})
	if err != nil {
		t.Fatalf("failed to create vm: %v", err)
	}
	return vm
}

func TestExamples_ComputeReferenceResults(t *testing.T) {
	vm := newVm(t)
	for name, example := range GetAllExamples() {
		t.Run(name, func(t *testing.T) {
			for _, arg := range []int{0, 1, 2, 5, 10, 50} {
				got, err := example.RunOn(vm, arg)
				if err != nil {
					t.Fatalf("failed to run example on %d: %v", arg, err)
				}
				if want := example.RunReference(arg); got.Result != want {
					t.Errorf("unexpected result for %d, wanted %d, got %d", arg, want, got.Result)
				}
			}
		})
	}
}

func TestExamples_StepsGrowWithArgument(t *testing.T) {
	vm := newVm(t)
	for _, example := range []Example{GetSumExample(), GetFibExample()} {
		small, err := example.RunOn(vm, 5)
		if err != nil {
			t.Fatalf("failed to run %s: %v", example.Name, err)
		}
		large, err := example.RunOn(vm, 10)
		if err != nil {
			t.Fatalf("failed to run %s: %v", example.Name, err)
		}
		if small.Steps >= large.Steps || small.UsedGas >= large.UsedGas {
			t.Errorf("%s: resources do not grow with the input: %+v vs %+v", example.Name, small, large)
		}
	}
}

func TestContracts_ClassesAreDistinct(t *testing.T) {
	hashes := map[aria.ClassHash]string{}
	for name, class := range map[string]*aria.CompiledClass{
		"account":           Account(),
		"rejecting account": RejectingAccount(),
		"eager account":     EagerAccount(),
		"simple storage":    SimpleStorage(),
		"store":             Store(),
	} {
		hash := class.Hash()
		if other, found := hashes[hash]; found {
			t.Errorf("%s and %s share class hash %v", name, other, hash)
		}
		hashes[hash] = name
	}
}

func TestContracts_AccountEntryPoints(t *testing.T) {
	class := Account()
	for _, selector := range []aria.Felt{aria.ValidateSelector, aria.ValidateDeclareSelector, aria.ValidateDeploySelector, aria.ExecuteSelector} {
		if _, found := class.FindEntryPoint(aria.External, selector); !found {
			t.Errorf("missing entry point %v", selector)
		}
	}
	if class.HasConstructor() {
		t.Errorf("accounts should not have a constructor")
	}
}

func TestContracts_StoreIncrementUpdatesValue(t *testing.T) {
	ctxt := &storageContext{storage: map[aria.StorageKey]aria.Felt{
		aria.StorageKey(aria.NewFelt(7)): aria.NewFelt(42),
	}}
	res, err := newVm(t).Run(aria.Parameters{
		Context:        ctxt,
		Class:          Store(),
		ClassHash:      Store().Hash(),
		EntryPointType: aria.External,
		Selector:       IncrementSelector,
		Calldata:       []aria.Felt{aria.NewFelt(7)},
		Gas:            10_000_000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("increment failed: %v", res.Failure)
	}
	if len(res.Retdata) != 1 || res.Retdata[0] != aria.NewFelt(43) {
		t.Errorf("unexpected result %v", res.Retdata)
	}
	if got := ctxt.storage[aria.StorageKey(aria.NewFelt(7))]; got != aria.NewFelt(43) {
		t.Errorf("unexpected stored value %v", got)
	}
}

// storageContext is a run context with storage only.
type storageContext struct {
	noOpRunContext
	storage map[aria.StorageKey]aria.Felt
}

func (c *storageContext) StorageRead(key aria.StorageKey) (aria.Felt, error) {
	return c.storage[key], nil
}

func (c *storageContext) StorageWrite(key aria.StorageKey, value aria.Felt) error {
	c.storage[key] = value
	return nil
}
