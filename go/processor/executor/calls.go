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
	"github.com/Fantom-foundation/Aria/go/state"
)

// execution is the state of the processing of a single transaction.
type execution struct {
	*processor
	block  aria.BlockContext
	tx     *aria.Transaction
	txHash aria.Felt

	// Active phase.
	stack *callStack
	steps *aria.StepCounter

	// Transaction-wide emission order of events and messages.
	eventOrder   uint64
	messageOrder uint64
}

// call describes a contract call to be executed.
type call struct {
	caller         aria.Address
	address        aria.Address // storage context of the call
	classHash      aria.ClassHash
	selector       aria.Felt
	entryPointType aria.EntryPointType
	callType       aria.CallType
	calldata       []aria.Felt
	gas            aria.Gas

	// deploy binds the class to the address in the frame of the call
	// before the constructor runs.
	deploy bool
}

// stateError marks a failed state access. State backends are expected to
// work, failures abort the processing.
func stateError(err error) error {
	return fmt.Errorf("%w: state access failed: %v", aria.ErrProtocolInconsistency, err)
}

func failedResult(err error, gas aria.Gas) aria.Result {
	return aria.Result{
		Retdata: []aria.Felt{aria.FailureReason(err)},
		GasLeft: gas,
		Failure: err,
	}
}

// begin starts a transaction phase on top of the given overlay.
func (e *execution) begin(root *state.Overlay, steps uint64) {
	e.stack = newCallStack(root, e.config.MaxCallDepth)
	e.steps = aria.NewStepCounter(steps)
}

func (e *execution) end() {
	stepsMeter.Mark(int64(e.steps.Used()))
	e.stack = nil
}

// runPhase executes the root call of a transaction phase on top of the given
// overlay.
func (e *execution) runPhase(root *state.Overlay, steps uint64, c call) (aria.Result, *aria.CallInfo, error) {
	e.begin(root, steps)
	defer e.end()
	return e.execute(c)
}

// execute runs a call in a new frame. Recoverable failures are reported in
// the result, and the returned call info is nil if the call could not be
// started. Errors are fatal.
func (e *execution) execute(c call) (aria.Result, *aria.CallInfo, error) {
	class, err := e.stack.overlay().GetCompiledClass(c.classHash)
	if err != nil {
		return aria.Result{}, nil, stateError(err)
	}
	if class == nil {
		return failedResult(fmt.Errorf("%w: %v", aria.ErrClassNotDeclared, c.classHash), c.gas), nil, nil
	}

	info := &aria.CallInfo{
		CallerAddress:      c.caller,
		ContractAddress:    c.address,
		ClassHash:          c.classHash,
		EntryPointSelector: c.selector,
		EntryPointType:     c.entryPointType,
		CallType:           c.callType,
		Calldata:           c.calldata,
	}
	depth, err := e.stack.push(c.address, c.classHash, class, info)
	if err != nil {
		if aria.IsFatal(err) {
			return aria.Result{}, nil, err
		}
		return failedResult(err, c.gas), nil, nil
	}
	if c.deploy {
		if err := e.stack.at(depth).overlay.SetClassHash(c.address, c.classHash); err != nil {
			return aria.Result{}, nil, stateError(err)
		}
	}

	result, err := e.run(depth, class, c)
	if err != nil {
		if _, popErr := e.stack.pop(aria.ExecutionResources{}, false); popErr != nil {
			e.log.Error("Failed to unwind call stack", "err", popErr)
		}
		return aria.Result{}, nil, err
	}

	info.Retdata = result.Retdata
	if result.GasLeft <= c.gas {
		info.GasConsumed = c.gas - result.GasLeft
	}
	if _, err := e.stack.pop(result.Resources, result.Success); err != nil {
		return aria.Result{}, nil, err
	}
	if !result.Success {
		e.log.Debug("Call failed", "address", c.address, "selector", c.selector, "depth", depth, "reason", result.Failure)
	}
	return result, info, nil
}

// run dispatches a call to the implementation of its class.
func (e *execution) run(depth int, class *aria.CompiledClass, c call) (aria.Result, error) {
	if c.entryPointType == aria.Constructor && class.Native == "" && !class.HasConstructor() {
		if len(c.calldata) > 0 {
			return failedResult(fmt.Errorf("%w: constructor calldata for class without constructor", aria.ErrExecution), c.gas), nil
		}
		return aria.Result{Success: true, Retdata: []aria.Felt{}, GasLeft: c.gas}, nil
	}

	impl := e.interpreter
	if class.Native != "" {
		native, found := e.natives[class.Native]
		if !found {
			return failedResult(fmt.Errorf("%w: unknown native class %q", aria.ErrExecution, class.Native), c.gas), nil
		}
		impl = native
	}
	return impl.Run(aria.Parameters{
		Context:        &runContext{execution: e, depth: depth},
		Class:          class,
		ClassHash:      c.classHash,
		EntryPointType: c.entryPointType,
		Selector:       c.selector,
		Calldata:       c.calldata,
		Gas:            c.gas,
		Depth:          depth,
		Steps:          e.steps,
		Costs:          &e.config.GasCosts,
	})
}

// nestedCall executes a call issued by a running program and applies the
// failure policy to its outcome.
func (e *execution) nestedCall(c call) (aria.CallResult, error) {
	result, _, err := e.execute(c)
	if err != nil {
		return aria.CallResult{}, err
	}
	consumed := aria.Gas(0)
	if result.GasLeft <= c.gas {
		consumed = c.gas - result.GasLeft
	}
	if !result.Success {
		if e.steps.Exhausted() {
			return aria.CallResult{}, fmt.Errorf("%w: step limit reached in nested call", aria.ErrResourceExhausted)
		}
		if e.config.FailurePolicy == PropagateToRoot {
			return aria.CallResult{}, fmt.Errorf("nested call to %v failed: %w", c.address, result.Failure)
		}
	}
	return aria.CallResult{
		Success:     result.Success,
		Retdata:     result.Retdata,
		GasConsumed: consumed,
	}, nil
}

// classOf returns the class hash of a deployed contract.
func (e *execution) classOf(address aria.Address) (aria.ClassHash, error) {
	hash, err := e.stack.overlay().GetClassHash(address)
	if err != nil {
		return aria.ClassHash{}, stateError(err)
	}
	if hash == (aria.ClassHash{}) {
		return aria.ClassHash{}, fmt.Errorf("%w: %v", aria.ErrContractNotFound, address)
	}
	return hash, nil
}

// declared checks that a class is declared in the current state.
func (e *execution) declared(hash aria.ClassHash) error {
	class, err := e.stack.overlay().GetCompiledClass(hash)
	if err != nil {
		return stateError(err)
	}
	if class == nil {
		return fmt.Errorf("%w: %v", aria.ErrClassNotDeclared, hash)
	}
	return nil
}

// deployCall prepares the deployment of a class to the address derived from
// the deployer, the salt, and the constructor calldata.
func (e *execution) deployCall(deployer aria.Address, hash aria.ClassHash, salt aria.Felt, calldata []aria.Felt, gas aria.Gas) (call, error) {
	if err := e.declared(hash); err != nil {
		return call{}, err
	}
	address := aria.ContractAddress(deployer, salt, hash, calldata)
	current, err := e.stack.overlay().GetClassHash(address)
	if err != nil {
		return call{}, stateError(err)
	}
	if current != (aria.ClassHash{}) {
		return call{}, fmt.Errorf("%w: %v", aria.ErrAddressUnavailable, address)
	}
	return call{
		caller:         deployer,
		address:        address,
		classHash:      hash,
		selector:       aria.ConstructorSelector,
		entryPointType: aria.Constructor,
		callType:       aria.Call,
		calldata:       calldata,
		gas:            gas,
		deploy:         true,
	}, nil
}
