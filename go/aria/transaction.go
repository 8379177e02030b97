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

import "fmt"

// TransactionType enumerates the supported kinds of transactions.
type TransactionType byte

const (
	InvokeTx TransactionType = iota
	DeclareTx
	DeployAccountTx
	DeployTx
	L1HandlerTx
)

var transactionTypeNames = map[TransactionType]string{
	InvokeTx:        "INVOKE",
	DeclareTx:       "DECLARE",
	DeployAccountTx: "DEPLOY_ACCOUNT",
	DeployTx:        "DEPLOY",
	L1HandlerTx:     "L1_HANDLER",
}

func (t TransactionType) String() string {
	if name, found := transactionTypeNames[t]; found {
		return name
	}
	return fmt.Sprintf("TransactionType(%d)", t)
}

func (t TransactionType) MarshalText() ([]byte, error) {
	if name, found := transactionTypeNames[t]; found {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("invalid transaction type %d", t)
}

func (t *TransactionType) UnmarshalText(data []byte) error {
	for k, v := range transactionTypeNames {
		if v == string(data) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("invalid transaction type %q", data)
}

// ResourceBound limits the amount of a resource and the price paid per unit.
type ResourceBound struct {
	MaxAmount       uint64 `json:"max_amount"`
	MaxPricePerUnit Amount `json:"max_price_per_unit"`
}

// ResourceBounds are the explicit limits of version 3 transactions. The L2
// gas bound is the execution budget, the L1 gas bound caps the fee.
type ResourceBounds struct {
	L1Gas ResourceBound `json:"l1_gas"`
	L2Gas ResourceBound `json:"l2_gas"`
}

// MaxFee is the largest fee the bounds permit.
func (b ResourceBounds) MaxFee() Amount {
	l1 := b.L1Gas.MaxPricePerUnit.Scale(b.L1Gas.MaxAmount)
	l2 := b.L2Gas.MaxPricePerUnit.Scale(b.L2Gas.MaxAmount)
	sum, overflow := AddAmounts(l1, l2)
	if overflow {
		return MaxAmount
	}
	return sum
}

// Transaction summarizes the parameters of a transaction to be executed.
// Which fields are relevant depends on the type.
type Transaction struct {
	Type    TransactionType `json:"type"`
	Version uint64          `json:"version"`

	// Sender is the account paying for the transaction (invoke, declare), or
	// the target contract of an L1 handler. For deployments it is derived.
	Sender    Address `json:"sender_address"`
	Nonce     Felt    `json:"nonce"`
	Calldata  []Felt  `json:"calldata,omitempty"`
	Signature []Felt  `json:"signature,omitempty"`

	// Fee bounds: version 1 uses MaxFee, version 3 the resource bounds.
	MaxFee         Amount          `json:"max_fee"`
	ResourceBounds *ResourceBounds `json:"resource_bounds,omitempty"`

	// L1 handler only.
	EntryPointSelector Felt `json:"entry_point_selector,omitempty"`

	// Declare and deployments.
	ClassHash           ClassHash      `json:"class_hash,omitempty"`
	Class               *CompiledClass `json:"contract_class,omitempty"`
	ContractAddressSalt Felt           `json:"contract_address_salt,omitempty"`
	ConstructorCalldata []Felt         `json:"constructor_calldata,omitempty"`
}

// HasFee reports whether the transaction is charged a fee on L2.
func (t *Transaction) HasFee() bool {
	return t.Type != L1HandlerTx && t.Type != DeployTx
}

// MaxFeeBound returns the fee cap of the transaction.
func (t *Transaction) MaxFeeBound() Amount {
	if t.Version >= 3 && t.ResourceBounds != nil {
		return t.ResourceBounds.MaxFee()
	}
	return t.MaxFee
}

// ContractAddress is the address the transaction operates on: the sender
// for account transactions and the deployed address for deployments.
func (t *Transaction) ContractAddress() Address {
	switch t.Type {
	case DeployAccountTx, DeployTx:
		return ContractAddress(Address{}, t.ContractAddressSalt, t.ClassHash, t.ConstructorCalldata)
	}
	return t.Sender
}

var (
	invokePrefix        = MustShortString("invoke")
	declarePrefix       = MustShortString("declare")
	deployAccountPrefix = MustShortString("deploy_account")
	deployPrefix        = MustShortString("deploy")
	l1HandlerPrefix     = MustShortString("l1_handler")
)

func (t *Transaction) feeField() Felt {
	if t.Version >= 3 && t.ResourceBounds != nil {
		b := t.ResourceBounds
		return PedersenArray(
			NewFelt(b.L1Gas.MaxAmount), FeltFromBig(b.L1Gas.MaxPricePerUnit.ToBig()),
			NewFelt(b.L2Gas.MaxAmount), FeltFromBig(b.L2Gas.MaxPricePerUnit.ToBig()),
		)
	}
	return FeltFromBig(t.MaxFee.ToBig())
}

// Hash computes the transaction hash on the given chain.
func (t *Transaction) Hash(chainID Felt) Felt {
	version := NewFelt(t.Version)
	switch t.Type {
	case InvokeTx:
		return PedersenArray(invokePrefix, version, Felt(t.Sender), Zero,
			PedersenArray(t.Calldata...), t.feeField(), chainID, t.Nonce)
	case DeclareTx:
		return PedersenArray(declarePrefix, version, Felt(t.Sender), Zero,
			PedersenArray(Felt(t.ClassHash)), t.feeField(), chainID, t.Nonce)
	case DeployAccountTx:
		data := append([]Felt{Felt(t.ClassHash), t.ContractAddressSalt}, t.ConstructorCalldata...)
		return PedersenArray(deployAccountPrefix, version, Felt(t.ContractAddress()), Zero,
			PedersenArray(data...), t.feeField(), chainID, t.Nonce)
	case DeployTx:
		return PedersenArray(deployPrefix, version, Felt(t.ContractAddress()), ConstructorSelector,
			PedersenArray(t.ConstructorCalldata...), Zero, chainID)
	case L1HandlerTx:
		return PedersenArray(l1HandlerPrefix, version, Felt(t.Sender), t.EntryPointSelector,
			PedersenArray(t.Calldata...), Zero, chainID, t.Nonce)
	}
	return Zero
}

// GasPrices are the prices of a unit of gas in the fee token.
type GasPrices struct {
	L1GasPrice Amount `json:"l1_gas_price"`
	L2GasPrice Amount `json:"l2_gas_price"`
}

// BlockContext contains information about the block a transaction is
// executed in.
type BlockContext struct {
	BlockNumber      uint64          `json:"block_number"`
	BlockTimestamp   uint64          `json:"block_timestamp"`
	SequencerAddress Address         `json:"sequencer_address"`
	GasPrices        GasPrices       `json:"gas_prices"`
	ChainID          Felt            `json:"chain_id"`
	BlockHashes      map[uint64]Felt `json:"block_hashes,omitempty"`
}
