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
	"fmt"
	"math"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/ethereum/go-ethereum/common"
)

// Example is an executable description of a contract class and an entry
// point with a (int)->int signature.
type Example struct {
	exampleSpec
	classHash aria.ClassHash
}

// exampleSpec specifies a contract and an entry point with a (int)->int signature.
type exampleSpec struct {
	Name      string
	class     *aria.CompiledClass // the program of the contract
	function  string              // name of the entry point to be called
	reference func(int) int       // a reference function computing the same function
}

func (s exampleSpec) build() Example {
	return Example{
		exampleSpec: s,
		classHash:   s.class.Hash(),
	}
}

// Class returns the compiled class of the example.
func (e *Example) Class() *aria.CompiledClass {
	return e.class
}

type Result struct {
	Result  int
	UsedGas int64
	Steps   uint64
}

// RunOn runs this example on the given interpreter, using the given argument.
func (e *Example) RunOn(interpreter aria.Interpreter, argument int) (Result, error) {
	const initialGas = math.MaxInt64
	params := aria.Parameters{
		Context:        noOpRunContext{},
		Class:          e.class,
		ClassHash:      e.classHash,
		EntryPointType: aria.External,
		Selector:       aria.SelectorFromName(e.function),
		Calldata:       []aria.Felt{aria.NewFelt(uint64(argument))},
		Gas:            initialGas,
	}

	res, err := interpreter.Run(params)
	if err != nil {
		return Result{}, err
	}
	if !res.Success {
		return Result{}, fmt.Errorf("execution of %s failed: %v", e.Name, res.Failure)
	}

	result, err := decodeOutput(res.Retdata)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Result:  result,
		UsedGas: initialGas - int64(res.GasLeft),
		Steps:   res.Resources.Steps,
	}, nil
}

// RunReference runs the reference function of this example to produce the expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

func decodeOutput(output []aria.Felt) (int, error) {
	if len(output) != 1 {
		return 0, fmt.Errorf("unexpected length of output; wanted 1, got %d", len(output))
	}
	res, ok := output[0].Uint64()
	if !ok || res > math.MaxInt64 {
		return 0, fmt.Errorf("output %v exceeds the integer range", output[0])
	}
	return int(res), nil
}

// GetAllExamples lists the examples by name.
func GetAllExamples() map[string]Example {
	res := map[string]Example{}
	for _, example := range []Example{
		GetStaticOverheadExample(),
		GetSumExample(),
		GetFibExample(),
	} {
		res[example.Name] = example
	}
	return res
}

// noOpRunContext is a simple aria.RunContext implementation for example
// programs not depending on any chain state. No operation has any effect.
type noOpRunContext struct{}

func (noOpRunContext) StorageRead(aria.StorageKey) (aria.Felt, error) {
	return aria.Felt{}, nil
}

func (noOpRunContext) StorageWrite(aria.StorageKey, aria.Felt) error {
	return nil
}

func (noOpRunContext) EmitEvent(keys, data []aria.Felt) error {
	return nil
}

func (noOpRunContext) SendMessageToL1(common.Address, []aria.Felt) error {
	return nil
}

func (noOpRunContext) CallContract(aria.Address, aria.Felt, []aria.Felt, aria.Gas) (aria.CallResult, error) {
	return aria.CallResult{Success: true}, nil
}

func (noOpRunContext) LibraryCall(aria.ClassHash, aria.Felt, []aria.Felt, aria.Gas) (aria.CallResult, error) {
	return aria.CallResult{Success: true}, nil
}

func (noOpRunContext) Deploy(aria.ClassHash, aria.Felt, []aria.Felt, bool, aria.Gas) (aria.Address, aria.CallResult, error) {
	return aria.Address{}, aria.CallResult{Success: true}, nil
}

func (noOpRunContext) ReplaceClass(aria.ClassHash) error {
	return nil
}

func (noOpRunContext) GetBlockHash(uint64) (aria.Felt, error) {
	return aria.Felt{}, nil
}

func (noOpRunContext) ExecutionInfo() aria.ExecutionInfo {
	return aria.ExecutionInfo{}
}
