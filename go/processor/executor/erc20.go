// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package executor

import (
	"fmt"

	"github.com/Fantom-foundation/Aria/go/aria"
)

// The fee token is an ERC20 contract implemented in Go. It is deployed as a
// native class: a class without bytecode naming the implementation.

const erc20NativeName = "erc20"

// FeeTokenClass is the class of the native fee token.
func FeeTokenClass() *aria.CompiledClass {
	return &aria.CompiledClass{Native: erc20NativeName}
}

var (
	transferEventKey = aria.SelectorFromName("Transfer")

	balanceOfResources = resourcesWithRangeChecks(120, 3)
	transferResources  = resourcesWithRangeChecks(540, 14)

	// feeTransferResources are the resources of a fee transfer, charged
	// in advance as part of the fee of the transaction.
	feeTransferResources = transferResources
)

func resourcesWithRangeChecks(steps, rangeChecks uint64) aria.ExecutionResources {
	res := aria.ExecutionResources{Steps: steps}
	res.Builtins[aria.BuiltinRangeCheck] = rangeChecks
	return res
}

// BalanceKey is the storage key of the low word of the balance of an
// account. The high word is stored at the following key.
func BalanceKey(account aria.Address) aria.StorageKey {
	return aria.StorageVarAddress("ERC20_balances", aria.Felt(account))
}

func highKey(key aria.StorageKey) aria.StorageKey {
	return aria.StorageKey(aria.Felt(key).Add(aria.One))
}

// BalanceWrites are the storage writes setting the balance of an account.
// They are intended for genesis states and tests.
func BalanceWrites(token, account aria.Address, amount aria.Amount) []aria.StorageWrite {
	low, high := amount.Felts()
	key := BalanceKey(account)
	return []aria.StorageWrite{
		{Address: token, Key: key, Value: low},
		{Address: token, Key: highKey(key), Value: high},
	}
}

// balanceOf reads the balance of an account from the given state.
func balanceOf(state aria.StateReader, token, account aria.Address) (aria.Amount, error) {
	key := BalanceKey(account)
	low, err := state.GetStorage(token, key)
	if err != nil {
		return aria.Amount{}, err
	}
	high, err := state.GetStorage(token, highKey(key))
	if err != nil {
		return aria.Amount{}, err
	}
	return aria.AmountFromFelts(low, high)
}

type erc20 struct{}

func (erc20) Run(params aria.Parameters) (aria.Result, error) {
	if params.EntryPointType != aria.External {
		return erc20Failure(params, fmt.Errorf("%w: %v entry point %v", aria.ErrEntryPointNotFound, params.EntryPointType, params.Selector)), nil
	}
	var (
		resources aria.ExecutionResources
		run       func(aria.RunContext, []aria.Felt) ([]aria.Felt, error)
	)
	switch params.Selector {
	case aria.TransferSelector:
		resources, run = transferResources, erc20Transfer
	case aria.BalanceOfSelector:
		resources, run = balanceOfResources, erc20BalanceOf
	default:
		return erc20Failure(params, fmt.Errorf("%w: %v", aria.ErrEntryPointNotFound, params.Selector)), nil
	}

	cost := nativeGas(params.Costs, resources)
	if params.Gas < cost {
		return erc20Failure(params, fmt.Errorf("%w: out of gas", aria.ErrResourceExhausted)), nil
	}
	if params.Steps != nil && !params.Steps.Use(resources.Steps) {
		return erc20Failure(params, fmt.Errorf("%w: step limit reached", aria.ErrResourceExhausted)), nil
	}

	retdata, err := run(params.Context, params.Calldata)
	if aria.IsFatal(err) {
		return aria.Result{}, err
	}
	if err != nil {
		res := erc20Failure(params, err)
		res.GasLeft = params.Gas - cost
		res.Resources = resources
		return res, nil
	}
	return aria.Result{
		Success:   true,
		Retdata:   retdata,
		GasLeft:   params.Gas - cost,
		Resources: resources,
	}, nil
}

func erc20Failure(params aria.Parameters, err error) aria.Result {
	return failedResult(err, params.Gas)
}

func nativeGas(costs *aria.GasCosts, resources aria.ExecutionResources) aria.Gas {
	if costs == nil {
		defaults := aria.DefaultGasCosts()
		costs = &defaults
	}
	res := aria.Gas(resources.Steps) * costs.Step
	for i, count := range resources.Builtins {
		res += aria.Gas(count) * costs.Builtins[i]
	}
	return res
}

func readBalance(ctx aria.RunContext, account aria.Felt) (aria.Amount, error) {
	key := BalanceKey(aria.Address(account))
	low, err := ctx.StorageRead(key)
	if err != nil {
		return aria.Amount{}, err
	}
	high, err := ctx.StorageRead(highKey(key))
	if err != nil {
		return aria.Amount{}, err
	}
	res, err := aria.AmountFromFelts(low, high)
	if err != nil {
		return aria.Amount{}, fmt.Errorf("%w: corrupted balance of %v: %v", aria.ErrExecution, account, err)
	}
	return res, nil
}

func writeBalance(ctx aria.RunContext, account aria.Felt, amount aria.Amount) error {
	key := BalanceKey(aria.Address(account))
	low, high := amount.Felts()
	if err := ctx.StorageWrite(key, low); err != nil {
		return err
	}
	return ctx.StorageWrite(highKey(key), high)
}

func erc20BalanceOf(ctx aria.RunContext, calldata []aria.Felt) ([]aria.Felt, error) {
	if len(calldata) != 1 {
		return nil, fmt.Errorf("%w: balanceOf expects 1 argument, got %d", aria.ErrExecution, len(calldata))
	}
	balance, err := readBalance(ctx, calldata[0])
	if err != nil {
		return nil, err
	}
	low, high := balance.Felts()
	return []aria.Felt{low, high}, nil
}

func erc20Transfer(ctx aria.RunContext, calldata []aria.Felt) ([]aria.Felt, error) {
	if len(calldata) != 3 {
		return nil, fmt.Errorf("%w: transfer expects 3 arguments, got %d", aria.ErrExecution, len(calldata))
	}
	recipient := calldata[0]
	amount, err := aria.AmountFromFelts(calldata[1], calldata[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", aria.ErrExecution, err)
	}
	sender := aria.Felt(ctx.ExecutionInfo().CallerAddress)

	senderBalance, err := readBalance(ctx, sender)
	if err != nil {
		return nil, err
	}
	senderBalance, underflow := aria.SubAmounts(senderBalance, amount)
	if underflow {
		return nil, fmt.Errorf("%w: transfer amount exceeds balance", aria.ErrReverted)
	}
	if err := writeBalance(ctx, sender, senderBalance); err != nil {
		return nil, err
	}

	recipientBalance, err := readBalance(ctx, recipient)
	if err != nil {
		return nil, err
	}
	recipientBalance, overflow := aria.AddAmounts(recipientBalance, amount)
	if overflow {
		return nil, fmt.Errorf("%w: balance overflow", aria.ErrReverted)
	}
	if err := writeBalance(ctx, recipient, recipientBalance); err != nil {
		return nil, err
	}

	low, high := amount.Felts()
	if err := ctx.EmitEvent([]aria.Felt{transferEventKey}, []aria.Felt{sender, recipient, low, high}); err != nil {
		return nil, err
	}
	return []aria.Felt{aria.One}, nil
}
