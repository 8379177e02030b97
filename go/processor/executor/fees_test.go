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
	"testing"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/stretchr/testify/require"
)

func TestFeeConfig_VmGasIsDominatedByMostExpensiveResource(t *testing.T) {
	config := DefaultFeeConfig()
	tests := []struct {
		resources aria.ExecutionResources
		want      uint64
	}{
		{aria.ExecutionResources{}, 0},
		{aria.ExecutionResources{Steps: 1}, 1},
		{aria.ExecutionResources{Steps: 200}, 1},
		{aria.ExecutionResources{Steps: 201}, 2},
		{resourcesWithRangeChecks(100, 100), 8},
		{resourcesWithRangeChecks(10_000, 100), 50},
	}
	for _, test := range tests {
		if got := config.vmGas(test.resources); got != test.want {
			t.Errorf("unexpected gas for %v, wanted %d, got %d", test.resources, test.want, got)
		}
	}
}

func TestFeeConfig_L1GasAddsAllComponents(t *testing.T) {
	config := DefaultFeeConfig()
	u := usage{
		resources:       aria.ExecutionResources{Steps: 1000, MessageSegmentLength: 4, L1HandlerPayloadSize: 2},
		messages:        1,
		storageWrites:   3,
		contractUpdates: 1,
	}
	want := uint64(5) + 20_000 + 4*612 + 2*612 + 3*1224 + 1224
	if got := config.l1Gas(&u); got != want {
		t.Errorf("unexpected L1 gas, wanted %d, got %d", want, got)
	}
}

func TestFee_ChargesL2GasOnlyIfGiven(t *testing.T) {
	prices := aria.GasPrices{L1GasPrice: aria.NewAmount(10), L2GasPrice: aria.NewAmount(2)}
	require.Equal(t, aria.NewAmount(1000), fee(100, 0, prices))
	require.Equal(t, aria.NewAmount(1010), fee(100, 5, prices))
}

func TestFee_SaturatesOnOverflow(t *testing.T) {
	prices := aria.GasPrices{L1GasPrice: aria.MaxAmount, L2GasPrice: aria.MaxAmount}
	require.Equal(t, aria.MaxAmount, fee(2, 2, prices))
}

func newTestExecution(tx aria.Transaction) *execution {
	return &execution{
		processor: &processor{config: DefaultConfig()},
		block: aria.BlockContext{
			GasPrices: aria.GasPrices{L1GasPrice: aria.NewAmount(10), L2GasPrice: aria.NewAmount(1)},
		},
		tx: &tx,
	}
}

func TestExecution_BaseResourcesChargeCalldata(t *testing.T) {
	e := newTestExecution(aria.Transaction{
		Type:      aria.InvokeTx,
		Calldata:  make([]aria.Felt, 3),
		Signature: make([]aria.Felt, 2),
	})
	res := e.baseResources()
	require.Equal(t, DefaultConfig().OSResources[aria.InvokeTx].Steps+5*8, res.Steps)
	require.Zero(t, res.L1HandlerPayloadSize)

	e = newTestExecution(aria.Transaction{Type: aria.L1HandlerTx, Calldata: make([]aria.Felt, 4)})
	require.Equal(t, uint64(3), e.baseResources().L1HandlerPayloadSize)
}

func TestExecution_CheckFeeBoundsOfVersion1(t *testing.T) {
	e := newTestExecution(aria.Transaction{Type: aria.InvokeTx, Version: 1})
	minimal := e.minimalUsage()
	_, minFee := e.feeOf(&minimal)

	e.tx.MaxFee = minFee
	require.Empty(t, e.checkFeeBounds())

	e.tx.MaxFee, _ = aria.SubAmounts(minFee, aria.NewAmount(1))
	require.Contains(t, e.checkFeeBounds(), "is too low")
}

func TestExecution_CheckFeeBoundsOfVersion3(t *testing.T) {
	e := newTestExecution(aria.Transaction{
		Type:    aria.InvokeTx,
		Version: 3,
		ResourceBounds: &aria.ResourceBounds{
			L1Gas: aria.ResourceBound{MaxAmount: 1_000_000, MaxPricePerUnit: aria.NewAmount(10)},
			L2Gas: aria.ResourceBound{MaxAmount: 1_000_000, MaxPricePerUnit: aria.NewAmount(1)},
		},
	})
	require.Empty(t, e.checkFeeBounds())

	e.tx.ResourceBounds.L2Gas.MaxPricePerUnit = aria.Amount{}
	require.Contains(t, e.checkFeeBounds(), "Max L2 gas price")

	e.tx.ResourceBounds.L2Gas.MaxPricePerUnit = aria.NewAmount(1)
	e.tx.ResourceBounds.L1Gas.MaxAmount = 1
	require.Contains(t, e.checkFeeBounds(), "Max L1 gas amount")
}

func TestExecution_ExceedsBounds(t *testing.T) {
	e := newTestExecution(aria.Transaction{Type: aria.InvokeTx, Version: 1, MaxFee: aria.NewAmount(100)})
	if _, exceeded := e.exceedsBounds(0, aria.NewAmount(100)); exceeded {
		t.Errorf("fee equal to max fee must be accepted")
	}
	if reason, exceeded := e.exceedsBounds(0, aria.NewAmount(101)); !exceeded {
		t.Errorf("fee above max fee must be detected")
	} else {
		require.Contains(t, reason, "exceeds max fee")
	}

	e = newTestExecution(aria.Transaction{Type: aria.InvokeTx, Version: 3, ResourceBounds: &aria.ResourceBounds{
		L1Gas: aria.ResourceBound{MaxAmount: 10},
	}})
	if _, exceeded := e.exceedsBounds(10, aria.MaxAmount); exceeded {
		t.Errorf("version 3 transactions are bounded by L1 gas only")
	}
	if _, exceeded := e.exceedsBounds(11, aria.Amount{}); !exceeded {
		t.Errorf("L1 gas above bound must be detected")
	}
}

func TestExecution_ExecutionStepsAreBoundedByMaxFee(t *testing.T) {
	e := newTestExecution(aria.Transaction{Type: aria.InvokeTx, Version: 1, MaxFee: aria.NewAmount(1000)})
	// 1000 / 10 = 100 L1 gas, paying for 100 * 1000 / 5 steps.
	require.Equal(t, uint64(20_000), e.executionSteps())

	e.tx.MaxFee = aria.MaxAmount
	require.Equal(t, DefaultConfig().InvokeMaxSteps, e.executionSteps())

	e.tx = &aria.Transaction{Type: aria.L1HandlerTx}
	require.Equal(t, DefaultConfig().InvokeMaxSteps, e.executionSteps())
}

func TestExecution_ExecutionGas(t *testing.T) {
	e := newTestExecution(aria.Transaction{Type: aria.InvokeTx, Version: 1})
	require.Equal(t, DefaultConfig().InitialGas, e.executionGas())

	e.tx = &aria.Transaction{Type: aria.InvokeTx, Version: 3, ResourceBounds: &aria.ResourceBounds{
		L2Gas: aria.ResourceBound{MaxAmount: 1234},
	}}
	require.Equal(t, aria.Gas(1234), e.executionGas())
}
