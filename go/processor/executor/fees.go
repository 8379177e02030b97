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

// FeeConfig is the price table turning resources into L1 gas.
type FeeConfig struct {
	// Weights of VM resources in milli-gas per unit.
	StepWeight     uint64                   `json:"step_weight"`
	BuiltinWeights [aria.NumBuiltins]uint64 `json:"builtin_weights"`

	// L1 gas per message to L1, per word of the message segment, and per
	// word of an L1 handler payload.
	MessageGas       uint64 `json:"message_gas"`
	MessageWordGas   uint64 `json:"message_word_gas"`
	L1HandlerWordGas uint64 `json:"l1_handler_word_gas"`

	// Data availability gas per storage write and per contract whose nonce
	// or class changed.
	StorageWriteGas   uint64 `json:"storage_write_gas"`
	ContractUpdateGas uint64 `json:"contract_update_gas"`
}

func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		StepWeight: 5,
		BuiltinWeights: [aria.NumBuiltins]uint64{
			aria.BuiltinOutput:     0,
			aria.BuiltinPedersen:   160,
			aria.BuiltinRangeCheck: 80,
			aria.BuiltinEcdsa:      10240,
			aria.BuiltinBitwise:    320,
			aria.BuiltinEcOp:       5120,
		},
		MessageGas:        20_000,
		MessageWordGas:    612,
		L1HandlerWordGas:  612,
		StorageWriteGas:   1224,
		ContractUpdateGas: 1224,
	}
}

// usage is everything the fee of a transaction depends on.
type usage struct {
	resources       aria.ExecutionResources
	messages        int
	storageWrites   int
	contractUpdates int
	l2Gas           aria.Gas
}

// vmGas is the L1 gas of the VM resources: the most expensive resource
// determines the price.
func (c *FeeConfig) vmGas(r aria.ExecutionResources) uint64 {
	res := r.Steps * c.StepWeight
	for i, count := range r.Builtins {
		res = max(res, count*c.BuiltinWeights[i])
	}
	return (res + 999) / 1000
}

func (c *FeeConfig) l1Gas(u *usage) uint64 {
	return c.vmGas(u.resources) +
		uint64(u.messages)*c.MessageGas +
		u.resources.MessageSegmentLength*c.MessageWordGas +
		u.resources.L1HandlerPayloadSize*c.L1HandlerWordGas +
		uint64(u.storageWrites)*c.StorageWriteGas +
		uint64(u.contractUpdates)*c.ContractUpdateGas
}

// fee is the price of the L1 gas and, for transactions paying for L2 gas,
// of the consumed L2 gas.
func fee(l1Gas uint64, l2Gas aria.Gas, prices aria.GasPrices) aria.Amount {
	res, overflow := aria.AddAmounts(prices.L1GasPrice.Scale(l1Gas), prices.L2GasPrice.Scale(uint64(l2Gas)))
	if overflow {
		return aria.MaxAmount
	}
	return res
}

// paysL2Gas reports whether the transaction pays for L2 gas separately.
func paysL2Gas(tx *aria.Transaction) bool {
	return tx.Version >= 3 && tx.ResourceBounds != nil
}

// feeOf computes the L1 gas and the fee of the given usage.
func (e *execution) feeOf(u *usage) (uint64, aria.Amount) {
	l1Gas := e.config.Fees.l1Gas(u)
	l2Gas := aria.Gas(0)
	if paysL2Gas(e.tx) {
		l2Gas = u.l2Gas
	}
	return l1Gas, fee(l1Gas, l2Gas, e.block.GasPrices)
}

// baseResources are the resources charged to a transaction independently
// of its calls.
func (e *execution) baseResources() aria.ExecutionResources {
	res := e.config.OSResources[e.tx.Type]
	res.Steps += e.config.CalldataSteps * uint64(len(e.tx.Calldata)+len(e.tx.Signature))
	if e.tx.Type == aria.L1HandlerTx && len(e.tx.Calldata) > 0 {
		res.L1HandlerPayloadSize = uint64(len(e.tx.Calldata) - 1)
	}
	return res
}

// minimalUsage is the least a transaction of the given type can consume:
// the base resources, the fee transfer, and the nonce update.
func (e *execution) minimalUsage() usage {
	return usage{
		resources:       e.baseResources().Add(feeTransferResources),
		storageWrites:   2,
		contractUpdates: 1,
	}
}

// checkFeeBounds verifies that the declared bounds can pay for the minimal
// usage at the prices of the block. A non-empty result is the reason to
// reject the transaction.
func (e *execution) checkFeeBounds() string {
	minimal := e.minimalUsage()
	l1Gas, minFee := e.feeOf(&minimal)
	prices := e.block.GasPrices
	if paysL2Gas(e.tx) {
		bounds := e.tx.ResourceBounds
		if bounds.L1Gas.MaxPricePerUnit.Cmp(prices.L1GasPrice) < 0 {
			return fmt.Sprintf("Max L1 gas price (%v) is lower than the actual gas price: %v", bounds.L1Gas.MaxPricePerUnit, prices.L1GasPrice)
		}
		if bounds.L2Gas.MaxPricePerUnit.Cmp(prices.L2GasPrice) < 0 {
			return fmt.Sprintf("Max L2 gas price (%v) is lower than the actual gas price: %v", bounds.L2Gas.MaxPricePerUnit, prices.L2GasPrice)
		}
		if bounds.L1Gas.MaxAmount < l1Gas {
			return fmt.Sprintf("Max L1 gas amount (%d) is lower than the minimal gas amount: %d", bounds.L1Gas.MaxAmount, l1Gas)
		}
		return ""
	}
	if e.tx.MaxFee.Cmp(minFee) < 0 {
		return fmt.Sprintf("Max fee (%v) is too low. Minimum fee: %v", e.tx.MaxFee, minFee)
	}
	return ""
}

// exceedsBounds reports whether the final usage breaks the declared bounds.
func (e *execution) exceedsBounds(l1Gas uint64, actual aria.Amount) (string, bool) {
	if paysL2Gas(e.tx) {
		if bound := e.tx.ResourceBounds.L1Gas.MaxAmount; l1Gas > bound {
			return fmt.Sprintf("Insufficient max L1 gas: max amount: %d, actual used: %d", bound, l1Gas), true
		}
		return "", false
	}
	if actual.Cmp(e.tx.MaxFee) > 0 {
		return fmt.Sprintf("Calculated fee (%v) exceeds max fee (%v)", actual, e.tx.MaxFee), true
	}
	return "", false
}

// executionGas is the gas budget of the execution phase.
func (e *execution) executionGas() aria.Gas {
	if paysL2Gas(e.tx) {
		return aria.Gas(e.tx.ResourceBounds.L2Gas.MaxAmount)
	}
	return e.config.InitialGas
}

// executionSteps is the step budget of the execution phase. For version 1
// account transactions it is bounded by the steps the max fee can pay for.
func (e *execution) executionSteps() uint64 {
	limit := e.config.InvokeMaxSteps
	if !e.tx.HasFee() || paysL2Gas(e.tx) || e.config.Fees.StepWeight == 0 {
		return limit
	}
	price := e.block.GasPrices.L1GasPrice.ToUint256()
	if price.IsZero() {
		return limit
	}
	affordable := e.tx.MaxFee.ToUint256()
	affordable.Div(affordable, price)
	if !affordable.IsUint64() {
		return limit
	}
	gas := affordable.Uint64()
	if gas > (1<<64-1)/1000 {
		return limit
	}
	return min(limit, gas*1000/e.config.Fees.StepWeight)
}
