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

import "github.com/ethereum/go-ethereum/common"

//go:generate mockgen -source interpreter.go -destination interpreter_mock.go -package aria

// Interpreter is a component capable of executing the entry point of a
// compiled class. It is the core of the execution engine; recursive calls,
// state management, and fees are handled by the RunContext and the Processor.
// To obtain an Interpreter instance, client code should use NewInterpreter()
// provided by the registry file in this package.
type Interpreter interface {
	// Run executes the entry point described by the parameters. The resulting
	// error is nil whenever the program was correctly processed, even if it
	// failed with a recoverable failure; such failures are reported through
	// Result.Success and Result.Failure. A non-nil error signals a fatal
	// problem (see IsFatal) and leaves the result undefined. Interpreters
	// are required to be thread-safe.
	Run(Parameters) (Result, error)
}

// ProfilingInterpreter is an optional extension of the Interpreter interface
// implemented by interpreters collecting statistics on their executions.
type ProfilingInterpreter interface {
	Interpreter

	// ResetProfile clears the statistics collected so far. It should not be
	// called while the interpreter is running entry points in parallel.
	ResetProfile()

	// DumpProfile prints the statistics collected since the last reset to
	// stdout.
	DumpProfile()
}

// Parameters summarizes the inputs required for running an entry point.
type Parameters struct {
	Context        RunContext
	Class          *CompiledClass
	ClassHash      ClassHash
	EntryPointType EntryPointType
	Selector       Felt
	Calldata       []Felt
	Gas            Gas
	Depth          int

	// Steps is the step budget shared by all frames of a transaction.
	Steps *StepCounter
	Costs *GasCosts
}

// Result summarizes the outcome of running an entry point.
type Result struct {
	Success bool

	// Retdata is the return data on success and the panic data on failure.
	Retdata   []Felt
	GasLeft   Gas
	Resources ExecutionResources

	// Failure describes the recoverable failure if Success is false.
	Failure error
}

// RunContext is the side-effect surface of a running frame. All operations
// implicitly refer to the contract executed by the frame.
//
// Errors returned by the operations fail the calling frame. Failures of
// nested calls that the caller may inspect are reported through a
// CallResult with Success set to false instead.
type RunContext interface {
	StorageRead(key StorageKey) (Felt, error)
	StorageWrite(key StorageKey, value Felt) error

	EmitEvent(keys, data []Felt) error
	SendMessageToL1(to common.Address, payload []Felt) error

	CallContract(address Address, selector Felt, calldata []Felt, gas Gas) (CallResult, error)
	LibraryCall(class ClassHash, selector Felt, calldata []Felt, gas Gas) (CallResult, error)
	Deploy(class ClassHash, salt Felt, calldata []Felt, deployFromZero bool, gas Gas) (Address, CallResult, error)
	ReplaceClass(class ClassHash) error

	GetBlockHash(number uint64) (Felt, error)
	ExecutionInfo() ExecutionInfo
}

// CallResult is the outcome of a nested call as seen by the caller.
type CallResult struct {
	Success     bool
	Retdata     []Felt
	GasConsumed Gas
}

// ExecutionInfo is the view of a frame on its block, transaction, and call.
type ExecutionInfo struct {
	Block           BlockContext
	Transaction     TransactionInfo
	CallerAddress   Address
	ContractAddress Address
	Selector        Felt
}

// TransactionInfo is the part of a transaction visible to programs.
type TransactionInfo struct {
	Version        uint64
	AccountAddress Address
	MaxFee         Amount
	Signature      []Felt
	Hash           Felt
	Nonce          Felt
}

// StepCounter tracks the steps consumed by all frames of a transaction.
// It is not safe for concurrent use.
type StepCounter struct {
	limit uint64
	used  uint64
}

func NewStepCounter(limit uint64) *StepCounter {
	return &StepCounter{limit: limit}
}

// Use consumes n steps. It returns false if the budget does not cover them,
// in which case the counter is exhausted.
func (c *StepCounter) Use(n uint64) bool {
	if c.limit-c.used < n {
		c.used = c.limit
		return false
	}
	c.used += n
	return true
}

func (c *StepCounter) Used() uint64 {
	return c.used
}

func (c *StepCounter) Remaining() uint64 {
	return c.limit - c.used
}

func (c *StepCounter) Exhausted() bool {
	return c.used >= c.limit
}

// SyscallCost is the price of a system call: the gas charged to the calling
// frame and the resources the operating system spends on serving it.
type SyscallCost struct {
	Gas         Gas    `json:"gas"`
	Steps       uint64 `json:"steps"`
	RangeChecks uint64 `json:"range_checks"`
}

// GasCosts is the gas price table of the interpreter.
type GasCosts struct {
	Step     Gas                    `json:"step"`
	Builtins [NumBuiltins]Gas       `json:"builtins"`
	Syscalls map[string]SyscallCost `json:"syscalls"`

	// KeccakRound is charged per 17-word block hashed by the Keccak syscall.
	KeccakRound Gas `json:"keccak_round"`
}

// Syscall returns the cost of the system call with the given name.
func (c *GasCosts) Syscall(name string) SyscallCost {
	return c.Syscalls[name]
}

const (
	stepGasCost        = 100
	syscallBaseGasCost = 100 * stepGasCost
	entryPointGasCost  = 10000 + 100*stepGasCost
)

func syscallCost(steps, rangeChecks uint64, extra Gas) SyscallCost {
	return SyscallCost{
		Gas:         syscallBaseGasCost + Gas(steps)*stepGasCost + Gas(rangeChecks)*70 + extra,
		Steps:       steps,
		RangeChecks: rangeChecks,
	}
}

// DefaultGasCosts returns the default gas price table.
func DefaultGasCosts() GasCosts {
	return GasCosts{
		Step: stepGasCost,
		Builtins: [NumBuiltins]Gas{
			BuiltinOutput:     0,
			BuiltinPedersen:   4050,
			BuiltinRangeCheck: 70,
			BuiltinEcdsa:      10561,
			BuiltinBitwise:    583,
			BuiltinEcOp:       4085,
		},
		Syscalls: map[string]SyscallCost{
			"StorageRead":        syscallCost(50, 1, 0),
			"StorageWrite":       syscallCost(50, 1, 0),
			"GetCallerAddress":   syscallCost(10, 0, 0),
			"GetContractAddress": syscallCost(10, 0, 0),
			"GetBlockNumber":     syscallCost(10, 0, 0),
			"GetBlockTimestamp":  syscallCost(10, 0, 0),
			"GetBlockHash":       syscallCost(50, 2, 0),
			"GetExecutionInfo":   syscallCost(10, 0, 0),
			"EmitEvent":          syscallCost(61, 1, 0),
			"SendMessageToL1":    syscallCost(141, 1, 0),
			"CallContract":       syscallCost(510, 19, entryPointGasCost),
			"LibraryCall":        syscallCost(510, 19, entryPointGasCost),
			"Deploy":             syscallCost(700, 21, entryPointGasCost),
			"ReplaceClass":       syscallCost(98, 1, 0),
			"Keccak":             syscallCost(0, 0, 0),
		},
		KeccakRound: 180000,
	}
}
