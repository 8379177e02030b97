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
	"strings"
	"testing"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/examples"
	"github.com/Fantom-foundation/Aria/go/interpreter/cairovm"
	"github.com/Fantom-foundation/Aria/go/processor/executor"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func init() {
	cairovm.RegisterExperimentalInterpreterConfigurations()
}

var (
	accountAddress   = aria.Address(aria.NewFelt(0x1001))
	rejectingAddress = aria.Address(aria.NewFelt(0x1002))
	storeAddress     = aria.Address(aria.NewFelt(0x2001))
	simpleAddress    = aria.Address(aria.NewFelt(0x3001))
	sequencerAddress = aria.Address(aria.NewFelt(0x5e0))

	initialBalance = aria.NewAmount(1_000_000_000_000_000_000)
	maxFee         = aria.NewAmount(1_000_000_000_000)
)

func key(v uint64) aria.StorageKey {
	return aria.StorageKey(aria.NewFelt(v))
}

func felts(values ...uint64) []aria.Felt {
	res := make([]aria.Felt, 0, len(values))
	for _, v := range values {
		res = append(res, aria.NewFelt(v))
	}
	return res
}

var block = aria.BlockContext{
	BlockNumber:      1,
	BlockTimestamp:   1_700_000_000,
	SequencerAddress: sequencerAddress,
	GasPrices: aria.GasPrices{
		L1GasPrice: aria.NewAmount(10),
		L2GasPrice: aria.NewAmount(1),
	},
	ChainID: aria.MustShortString("SN_TEST"),
}

// invoke creates a version 1 transaction of the account calling the given
// contract.
func invoke(nonce uint64, to aria.Address, selector aria.Felt, args ...aria.Felt) aria.Transaction {
	return aria.Transaction{
		Type:     aria.InvokeTx,
		Version:  1,
		Sender:   accountAddress,
		Nonce:    aria.NewFelt(nonce),
		Calldata: append([]aria.Felt{aria.Felt(to), selector}, args...),
		MaxFee:   maxFee,
	}
}

// world is the state all scenarios start from: a funded account, a Store
// contract, and a SimpleStorage contract holding the value 17.
func world() WorldState {
	return WorldState{
		accountAddress:   Contract{Class: examples.Account(), Balance: initialBalance},
		rejectingAddress: Contract{Class: examples.RejectingAccount(), Balance: initialBalance},
		storeAddress:     Contract{Class: examples.Store()},
		simpleAddress: Contract{
			Class:   examples.SimpleStorage(),
			Storage: Storage{examples.SimpleStorageKey: aria.NewFelt(17)},
		},
	}
}

// modify returns the world state after applying the given changes.
func modify(changes func(WorldState)) WorldState {
	res := world()
	changes(res)
	return res
}

func setStorage(w WorldState, address aria.Address, key aria.StorageKey, value aria.Felt) {
	contract := w[address]
	contract.Storage = contract.Storage.Clone()
	if contract.Storage == nil {
		contract.Storage = Storage{}
	}
	contract.Storage[key] = value
	w[address] = contract
}

func incrementNonce(w WorldState, address aria.Address) {
	contract := w[address]
	contract.Nonce++
	w[address] = contract
}

func getScenarios() map[string]Scenario {
	foo := aria.SelectorFromName("foo")
	deploy := aria.Transaction{
		Type:                aria.DeployTx,
		ClassHash:           examples.SimpleStorage().Hash(),
		ContractAddressSalt: aria.NewFelt(77),
		ConstructorCalldata: felts(5),
	}
	pair := append([]aria.Felt{aria.Felt(storeAddress)}, felts(1, 11, 2, 22)...)
	tryPair := invoke(0, storeAddress, examples.TryPairSelector, pair...)

	return map[string]Scenario{
		"SimpleStorageReturnsPreviousValue": {
			Before:      world(),
			Block:       block,
			Transaction: invoke(0, simpleAddress, foo, aria.NewFelt(99)),
			Status:      aria.Succeeded,
			Retdata:     felts(17),
			After: modify(func(w WorldState) {
				incrementNonce(w, accountAddress)
				setStorage(w, simpleAddress, examples.SimpleStorageKey, aria.NewFelt(99))
			}),
		},
		"DeployRunsConstructor": {
			Before:      world(),
			Block:       block,
			Declared:    []*aria.CompiledClass{examples.SimpleStorage()},
			Transaction: deploy,
			Status:      aria.Succeeded,
			After: modify(func(w WorldState) {
				w[deploy.ContractAddress()] = Contract{
					Class:   examples.SimpleStorage(),
					Storage: Storage{examples.SimpleStorageKey: aria.NewFelt(5)},
				}
			}),
		},
		"InsufficientL2GasRevertsExecution": {
			Before: world(),
			Block:  block,
			Transaction: func() aria.Transaction {
				tx := invoke(0, simpleAddress, foo, aria.NewFelt(99))
				tx.Version = 3
				tx.MaxFee = aria.Amount{}
				tx.ResourceBounds = &aria.ResourceBounds{
					L1Gas: aria.ResourceBound{MaxAmount: 1_000_000, MaxPricePerUnit: aria.NewAmount(10)},
					L2Gas: aria.ResourceBound{MaxAmount: 10, MaxPricePerUnit: aria.NewAmount(1)},
				}
				return tx
			}(),
			Status: aria.Reverted,
			After: modify(func(w WorldState) {
				incrementNonce(w, accountAddress)
			}),
		},
		"CaughtFailureKeepsWritesOfSibling": {
			Before:      world(),
			Block:       block,
			Transaction: tryPair,
			Status:      aria.Succeeded,
			Retdata:     felts(1),
			After: modify(func(w WorldState) {
				incrementNonce(w, accountAddress)
				setStorage(w, storeAddress, key(2), aria.NewFelt(22))
			}),
		},
		"PropagatedFailureRevertsAllWrites": {
			Before:      world(),
			Block:       block,
			Transaction: tryPair,
			Status:      aria.Reverted,
			Configure: func(c *executor.Config) {
				c.FailurePolicy = executor.PropagateToRoot
			},
			After: modify(func(w WorldState) {
				incrementNonce(w, accountAddress)
			}),
		},
		"RecursionIsBoundedByCallDepth": {
			Before:      world(),
			Block:       block,
			Transaction: invoke(0, storeAddress, examples.RecurseSelector, aria.Felt(storeAddress)),
			Status:      aria.Reverted,
			Configure: func(c *executor.Config) {
				c.MaxCallDepth = 8
			},
			After: modify(func(w WorldState) {
				incrementNonce(w, accountAddress)
			}),
		},
		"L1HandlerStoresMessage": {
			Before: world(),
			Block:  block,
			Transaction: aria.Transaction{
				Type:               aria.L1HandlerTx,
				Sender:             storeAddress,
				EntryPointSelector: examples.OnMessageSelector,
				Calldata:           felts(0xe7, 5, 55),
			},
			Status: aria.Succeeded,
			After: modify(func(w WorldState) {
				setStorage(w, storeAddress, key(5), aria.NewFelt(55))
			}),
		},
		"NonceMismatchIsRejected": {
			Before:      world(),
			Block:       block,
			Transaction: invoke(3, storeAddress, examples.SetSelector, aria.NewFelt(1), aria.NewFelt(2)),
			Status:      aria.Rejected,
			After:       world(),
		},
		"FailedValidationIsRejected": {
			Before: world(),
			Block:  block,
			Transaction: func() aria.Transaction {
				tx := invoke(0, storeAddress, examples.SetSelector, aria.NewFelt(1), aria.NewFelt(2))
				tx.Sender = rejectingAddress
				return tx
			}(),
			Status: aria.Rejected,
			After:  world(),
		},
	}
}

// getProcessors creates an executor for each registered interpreter.
func getProcessors(t *testing.T, config executor.Config) map[string]aria.Processor {
	t.Helper()
	res := map[string]aria.Processor{}
	for name := range aria.GetAllRegisteredInterpreters() {
		if strings.HasSuffix(name, "-logging") {
			continue // < too verbose for tests
		}
		interpreter, err := aria.NewInterpreter(name)
		require.NoError(t, err)
		res[name] = executor.NewProcessor(interpreter, config)
	}
	return res
}

func TestProcessor_Scenarios(t *testing.T) {
	scenarios := getScenarios()
	names := maps.Keys(scenarios)
	slices.Sort(names)
	for _, name := range names {
		scenario := scenarios[name]
		for interpreter, processor := range getProcessors(t, scenario.Config()) {
			t.Run(fmt.Sprintf("%s/%s", interpreter, name), func(t *testing.T) {
				scenario.Run(t, processor)
			})
		}
	}
}

func TestProcessor_ReceiptsAreDeterministic(t *testing.T) {
	for name, scenario := range getScenarios() {
		for interpreter, processor := range getProcessors(t, scenario.Config()) {
			t.Run(fmt.Sprintf("%s/%s", interpreter, name), func(t *testing.T) {
				first := scenario.Run(t, processor)
				second := scenario.Run(t, processor)
				require.Equal(t, first, second)
			})
		}
	}
}

func TestProcessor_InterpretersProduceEqualReceipts(t *testing.T) {
	for name, scenario := range getScenarios() {
		t.Run(name, func(t *testing.T) {
			var reference *aria.Receipt
			for _, processor := range getProcessors(t, scenario.Config()) {
				receipt := scenario.Run(t, processor)
				if reference == nil {
					reference = &receipt
					continue
				}
				require.Equal(t, *reference, receipt)
			}
		})
	}
}

func TestProcessor_ExecutedTransactionsPayTheSequencer(t *testing.T) {
	for name, scenario := range getScenarios() {
		if scenario.Status == aria.Rejected || !scenario.Transaction.HasFee() {
			continue
		}
		t.Run(name, func(t *testing.T) {
			require.False(t, scenario.Block.GasPrices.L1GasPrice.IsZero())
			for _, processor := range getProcessors(t, scenario.Config()) {
				receipt := scenario.Run(t, processor)
				require.False(t, receipt.ActualFee.IsZero())
				require.NotNil(t, receipt.FeeTransferCallInfo)
				require.Equal(t, scenario.Block.SequencerAddress, aria.Address(receipt.FeeTransferCallInfo.Calldata[0]))
			}
		})
	}
}

func TestProcessor_RevertedTransactionsOnlyChangeNonceAndBalances(t *testing.T) {
	for name, scenario := range getScenarios() {
		if scenario.Status != aria.Reverted {
			continue
		}
		t.Run(name, func(t *testing.T) {
			for _, processor := range getProcessors(t, scenario.Config()) {
				receipt := scenario.Run(t, processor)
				require.NotEmpty(t, receipt.RevertReason)
				require.False(t, receipt.ActualFee.IsZero())
				feeToken := scenario.Config().FeeTokenAddress
				for _, write := range receipt.StateDiff.Storage {
					require.Equal(t, feeToken, write.Address)
				}
				require.Equal(t, []aria.NonceUpdate{{Address: accountAddress, Nonce: aria.One}}, receipt.StateDiff.Nonces)
				require.Empty(t, receipt.StateDiff.ClassHashes)
				require.Empty(t, receipt.StateDiff.DeclaredClasses)
			}
		})
	}
}
