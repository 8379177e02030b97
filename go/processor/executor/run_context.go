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
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/slices"
)

// runContext is the view of a frame on the transaction, handed to the code
// running in the frame.
type runContext struct {
	*execution
	depth int
}

func (r *runContext) frame() *frame {
	return r.stack.at(r.depth)
}

func (r *runContext) StorageRead(key aria.StorageKey) (aria.Felt, error) {
	f := r.frame()
	value, err := f.overlay.GetStorage(f.address, key)
	if err != nil {
		return aria.Felt{}, stateError(err)
	}
	f.info.StorageReadValues = append(f.info.StorageReadValues, value)
	r.access(f, key)
	return value, nil
}

func (r *runContext) StorageWrite(key aria.StorageKey, value aria.Felt) error {
	f := r.frame()
	if err := f.overlay.SetStorage(f.address, key, value); err != nil {
		return stateError(err)
	}
	r.access(f, key)
	return nil
}

func (r *runContext) access(f *frame, key aria.StorageKey) {
	if !slices.Contains(f.info.AccessedStorageKeys, key) {
		f.info.AccessedStorageKeys = append(f.info.AccessedStorageKeys, key)
	}
}

func (r *runContext) EmitEvent(keys, data []aria.Felt) error {
	f := r.frame()
	f.info.Events = append(f.info.Events, aria.OrderedEvent{
		Order: r.eventOrder,
		Keys:  keys,
		Data:  data,
	})
	r.eventOrder++
	return nil
}

func (r *runContext) SendMessageToL1(to common.Address, payload []aria.Felt) error {
	f := r.frame()
	f.info.L2ToL1Messages = append(f.info.L2ToL1Messages, aria.OrderedL2ToL1Message{
		Order:     r.messageOrder,
		ToAddress: to,
		Payload:   payload,
	})
	r.messageOrder++
	return nil
}

func (r *runContext) CallContract(address aria.Address, selector aria.Felt, calldata []aria.Felt, gas aria.Gas) (aria.CallResult, error) {
	hash, err := r.classOf(address)
	if err != nil {
		return aria.CallResult{}, err
	}
	return r.nestedCall(call{
		caller:         r.frame().address,
		address:        address,
		classHash:      hash,
		selector:       selector,
		entryPointType: aria.External,
		callType:       aria.Call,
		calldata:       calldata,
		gas:            gas,
	})
}

func (r *runContext) LibraryCall(class aria.ClassHash, selector aria.Felt, calldata []aria.Felt, gas aria.Gas) (aria.CallResult, error) {
	if err := r.declared(class); err != nil {
		return aria.CallResult{}, err
	}
	f := r.frame()
	return r.nestedCall(call{
		caller:         f.info.CallerAddress,
		address:        f.address,
		classHash:      class,
		selector:       selector,
		entryPointType: aria.External,
		callType:       aria.Delegate,
		calldata:       calldata,
		gas:            gas,
	})
}

func (r *runContext) Deploy(class aria.ClassHash, salt aria.Felt, calldata []aria.Felt, deployFromZero bool, gas aria.Gas) (aria.Address, aria.CallResult, error) {
	deployer := r.frame().address
	if deployFromZero {
		deployer = aria.Address{}
	}
	c, err := r.deployCall(deployer, class, salt, calldata, gas)
	if err != nil {
		return aria.Address{}, aria.CallResult{}, err
	}
	result, err := r.nestedCall(c)
	return c.address, result, err
}

func (r *runContext) ReplaceClass(class aria.ClassHash) error {
	if err := r.declared(class); err != nil {
		return err
	}
	f := r.frame()
	if err := f.overlay.SetClassHash(f.address, class); err != nil {
		return stateError(err)
	}
	return nil
}

func (r *runContext) GetBlockHash(number uint64) (aria.Felt, error) {
	hash, found := r.block.BlockHashes[number]
	if !found {
		return aria.Felt{}, fmt.Errorf("%w: block hash of block %d is not available", aria.ErrSyscallArgument, number)
	}
	return hash, nil
}

func (r *runContext) ExecutionInfo() aria.ExecutionInfo {
	f := r.frame()
	return aria.ExecutionInfo{
		Block:           r.block,
		Transaction:     r.transactionInfo(),
		CallerAddress:   f.info.CallerAddress,
		ContractAddress: f.address,
		Selector:        f.info.EntryPointSelector,
	}
}

func (e *execution) transactionInfo() aria.TransactionInfo {
	return aria.TransactionInfo{
		Version:        e.tx.Version,
		AccountAddress: e.tx.ContractAddress(),
		MaxFee:         e.tx.MaxFeeBound(),
		Signature:      e.tx.Signature,
		Hash:           e.txHash,
		Nonce:          e.tx.Nonce,
	}
}
