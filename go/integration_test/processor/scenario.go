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
	"strings"
	"testing"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/processor/executor"
	"golang.org/x/exp/slices"
)

// Scenario represents a test scenario for a transaction processor. A scenario
// consists of a world state before and after the transaction, the block it
// is executed in, and the expected outcome. Balances of the After state do
// not include the fee, which is moved from the paying account to the
// sequencer by Run.
type Scenario struct {
	Before      WorldState
	After       WorldState
	Block       aria.BlockContext
	Transaction aria.Transaction
	Status      aria.ExecutionStatus

	// Declared lists classes declared in addition to those of the contracts
	// of the Before state.
	Declared []*aria.CompiledClass

	// Retdata is the expected result of the executed entry point, it is
	// only checked if not nil.
	Retdata []aria.Felt

	// Configure adapts the executor configuration for the scenario.
	Configure func(*executor.Config)
}

func (s *Scenario) Config() executor.Config {
	res := executor.DefaultConfig()
	if s.Configure != nil {
		s.Configure(&res)
	}
	return res
}

func (s *Scenario) Run(t *testing.T, processor aria.Processor) aria.Receipt {
	t.Helper()
	feeToken := s.Config().FeeTokenAddress
	state := s.Before.Build(feeToken)
	for _, class := range s.Declared {
		state.Declare(class)
	}

	receipt, err := processor.Run(s.Block, s.Transaction, state)
	if err != nil {
		t.Fatalf("failed to run transaction: %v", err)
	}
	if want, got := s.Status, receipt.Status; want != got {
		t.Fatalf("unexpected status, want %v, got %v (%s)", want, got, receipt.RevertReason)
	}
	if s.Retdata != nil {
		if receipt.ExecuteCallInfo == nil {
			t.Fatalf("missing execute call info")
		}
		if want, got := s.Retdata, receipt.ExecuteCallInfo.Retdata; !slices.Equal(want, got) {
			t.Errorf("unexpected result, want %v, got %v", want, got)
		}
	}
	if receipt.Status == aria.Rejected && !receipt.StateDiff.IsEmpty() {
		t.Errorf("rejected transaction modified the state: %+v", receipt.StateDiff)
	}
	if !s.Transaction.HasFee() && !receipt.ActualFee.IsZero() {
		t.Errorf("unexpected fee for transaction without fee: %v", receipt.ActualFee)
	}
	state.Apply(receipt.StateDiff)

	want := s.expectedAfter(receipt.ActualFee)
	got, err := ReadWorldState(state, feeToken, s.keys(receipt.StateDiff, want))
	if err != nil {
		t.Fatalf("failed to read resulting state: %v", err)
	}
	if !want.Equal(got) {
		diff := strings.Join(got.Diff(want), "\n\t")
		t.Fatalf("unexpected world state after the transaction: \n\t%v", diff)
	}
	return receipt
}

// expectedAfter is the After state including the transfer of the fee.
func (s *Scenario) expectedAfter(fee aria.Amount) WorldState {
	res := s.After.Clone()
	if res == nil {
		res = WorldState{}
	}
	if fee.IsZero() {
		return res
	}
	payer := res[s.Transaction.ContractAddress()]
	payer.Balance, _ = aria.SubAmounts(payer.Balance, fee)
	res[s.Transaction.ContractAddress()] = payer

	sequencer := res[s.Block.SequencerAddress]
	sequencer.Balance, _ = aria.AddAmounts(sequencer.Balance, fee)
	res[s.Block.SequencerAddress] = sequencer
	return res
}

// keys lists the contracts and storage keys to be compared after the
// transaction: everything mentioned by the world states or written by the
// transaction, except for the fee token.
func (s *Scenario) keys(diff aria.StateDiff, after WorldState) map[aria.Address][]aria.StorageKey {
	res := map[aria.Address][]aria.StorageKey{}
	for _, world := range []WorldState{s.Before, after} {
		for address, contract := range world {
			res[address] = append(res[address], contract.keys()...)
		}
	}
	feeToken := s.Config().FeeTokenAddress
	for _, write := range diff.Storage {
		if write.Address != feeToken {
			res[write.Address] = append(res[write.Address], write.Key)
		}
	}
	touched := func(address aria.Address) {
		if _, found := res[address]; !found {
			res[address] = nil
		}
	}
	for _, update := range diff.ClassHashes {
		touched(update.Address)
	}
	for _, update := range diff.Nonces {
		touched(update.Address)
	}
	return res
}
