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
	"errors"
	"testing"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = aria.Address(aria.NewFelt(0xa11ce))
	bob   = aria.Address(aria.NewFelt(0xb0b))
)

// newTokenContext mocks the run context of the fee token with the given
// caller, backed by a storage map.
func newTokenContext(t *testing.T, caller aria.Address, storage map[aria.StorageKey]aria.Felt) *aria.MockRunContext {
	ctrl := gomock.NewController(t)
	ctx := aria.NewMockRunContext(ctrl)
	ctx.EXPECT().ExecutionInfo().Return(aria.ExecutionInfo{CallerAddress: caller}).AnyTimes()
	ctx.EXPECT().StorageRead(gomock.Any()).DoAndReturn(func(key aria.StorageKey) (aria.Felt, error) {
		return storage[key], nil
	}).AnyTimes()
	ctx.EXPECT().StorageWrite(gomock.Any(), gomock.Any()).DoAndReturn(func(key aria.StorageKey, value aria.Felt) error {
		storage[key] = value
		return nil
	}).AnyTimes()
	return ctx
}

func withBalance(storage map[aria.StorageKey]aria.Felt, account aria.Address, amount uint64) map[aria.StorageKey]aria.Felt {
	for _, w := range BalanceWrites(DefaultFeeTokenAddress, account, aria.NewAmount(amount)) {
		storage[w.Key] = w.Value
	}
	return storage
}

func tokenCall(ctx aria.RunContext, selector aria.Felt, calldata ...aria.Felt) aria.Parameters {
	costs := aria.DefaultGasCosts()
	return aria.Parameters{
		Context:        ctx,
		Class:          FeeTokenClass(),
		EntryPointType: aria.External,
		Selector:       selector,
		Calldata:       calldata,
		Gas:            10_000_000,
		Steps:          aria.NewStepCounter(1_000_000),
		Costs:          &costs,
	}
}

func TestErc20_TransferMovesBalanceAndEmitsEvent(t *testing.T) {
	storage := withBalance(map[aria.StorageKey]aria.Felt{}, alice, 100)
	ctx := newTokenContext(t, alice, storage)
	ctx.EXPECT().EmitEvent(
		[]aria.Felt{transferEventKey},
		[]aria.Felt{aria.Felt(alice), aria.Felt(bob), aria.NewFelt(30), aria.Zero},
	)

	res, err := erc20{}.Run(tokenCall(ctx, aria.TransferSelector, aria.Felt(bob), aria.NewFelt(30), aria.Zero))
	require.NoError(t, err)
	require.True(t, res.Success, res.Failure)
	require.Equal(t, []aria.Felt{aria.One}, res.Retdata)
	require.Equal(t, transferResources, res.Resources)
	require.Less(t, res.GasLeft, aria.Gas(10_000_000))

	require.Equal(t, aria.NewFelt(70), storage[BalanceKey(alice)])
	require.Equal(t, aria.NewFelt(30), storage[BalanceKey(bob)])
}

func TestErc20_TransferBeyondBalanceFails(t *testing.T) {
	storage := withBalance(map[aria.StorageKey]aria.Felt{}, alice, 10)
	ctx := newTokenContext(t, alice, storage)

	res, err := erc20{}.Run(tokenCall(ctx, aria.TransferSelector, aria.Felt(bob), aria.NewFelt(11), aria.Zero))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Failure, aria.ErrReverted)
	require.Equal(t, aria.NewFelt(10), storage[BalanceKey(alice)])
}

func TestErc20_BalanceOfReturnsBothWords(t *testing.T) {
	storage := withBalance(map[aria.StorageKey]aria.Felt{}, bob, 12345)
	ctx := newTokenContext(t, alice, storage)

	res, err := erc20{}.Run(tokenCall(ctx, aria.BalanceOfSelector, aria.Felt(bob)))
	require.NoError(t, err)
	require.True(t, res.Success, res.Failure)
	require.Equal(t, []aria.Felt{aria.NewFelt(12345), aria.Zero}, res.Retdata)
}

func TestErc20_InvalidCallsFail(t *testing.T) {
	ctx := newTokenContext(t, alice, map[aria.StorageKey]aria.Felt{})
	tests := map[string]aria.Parameters{
		"unknown selector": tokenCall(ctx, aria.SelectorFromName("mint"), aria.One),
		"wrong arity":      tokenCall(ctx, aria.BalanceOfSelector),
		"out of gas":       func() aria.Parameters { p := tokenCall(ctx, aria.BalanceOfSelector, aria.One); p.Gas = 10; return p }(),
		"out of steps":     func() aria.Parameters { p := tokenCall(ctx, aria.BalanceOfSelector, aria.One); p.Steps = aria.NewStepCounter(10); return p }(),
		"constructor":      func() aria.Parameters { p := tokenCall(ctx, aria.ConstructorSelector); p.EntryPointType = aria.Constructor; return p }(),
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := erc20{}.Run(params)
			require.NoError(t, err)
			require.False(t, res.Success)
			require.NotNil(t, res.Failure)
		})
	}
}

func TestErc20_StateErrorsAreReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := aria.NewMockRunContext(ctrl)
	injected := aria.ErrProtocolInconsistency
	ctx.EXPECT().StorageRead(gomock.Any()).Return(aria.Felt{}, injected)

	_, err := erc20{}.Run(tokenCall(ctx, aria.BalanceOfSelector, aria.One))
	if !errors.Is(err, injected) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestBalanceWrites_SplitAmountIntoWords(t *testing.T) {
	writes := BalanceWrites(DefaultFeeTokenAddress, alice, aria.NewAmount(5))
	require.Len(t, writes, 2)
	require.Equal(t, BalanceKey(alice), writes[0].Key)
	require.Equal(t, highKey(BalanceKey(alice)), writes[1].Key)
	require.Equal(t, aria.NewFelt(5), writes[0].Value)
	require.Equal(t, aria.Zero, writes[1].Value)
}
