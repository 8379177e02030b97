// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cairovm

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// A system call request at the syscall pointer is laid out as
//
//	[selector, gas, args...]
//
// and followed by the response
//
//	[gas_left, 0, payload...]               on success, or
//	[gas_left, 1, reason_start, reason_end] on failure.
type syscall struct {
	name    string
	numArgs int
	handler func(c *context, call *syscallCall) ([]Value, error)
}

// syscallCall is the decoded request of a system call in progress.
type syscallCall struct {
	ptr  Relocatable
	args []Value
	// gas is the gas available to the syscall after its cost was charged.
	gas aria.Gas
	// failure is set by handlers reporting a failure to the program.
	failure []aria.Felt
}

var syscalls = map[aria.Felt]*syscall{}

func init() {
	for _, s := range []*syscall{
		{name: "StorageRead", numArgs: 2, handler: sysStorageRead},
		{name: "StorageWrite", numArgs: 3, handler: sysStorageWrite},
		{name: "GetCallerAddress", handler: sysGetCallerAddress},
		{name: "GetContractAddress", handler: sysGetContractAddress},
		{name: "GetBlockNumber", handler: sysGetBlockNumber},
		{name: "GetBlockTimestamp", handler: sysGetBlockTimestamp},
		{name: "GetBlockHash", numArgs: 1, handler: sysGetBlockHash},
		{name: "GetExecutionInfo", handler: sysGetExecutionInfo},
		{name: "EmitEvent", numArgs: 4, handler: sysEmitEvent},
		{name: "SendMessageToL1", numArgs: 3, handler: sysSendMessageToL1},
		{name: "CallContract", numArgs: 4, handler: sysCallContract},
		{name: "LibraryCall", numArgs: 4, handler: sysLibraryCall},
		{name: "Deploy", numArgs: 5, handler: sysDeploy},
		{name: "ReplaceClass", numArgs: 1, handler: sysReplaceClass},
		{name: "Keccak", numArgs: 2, handler: sysKeccak},
	} {
		syscalls[aria.MustShortString(s.name)] = s
	}
}

// SyscallSelector returns the selector of the system call with the given
// name, as written into the request by programs.
func SyscallSelector(name string) (aria.Felt, error) {
	selector, err := aria.ShortString(name)
	if err != nil {
		return aria.Felt{}, err
	}
	if _, found := syscalls[selector]; !found {
		return aria.Felt{}, fmt.Errorf("unknown syscall %q", name)
	}
	return selector, nil
}

func syscallArgumentError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", aria.ErrSyscallArgument, fmt.Sprintf(format, args...))
}

var (
	outOfGasReason  = aria.MustShortString("Out of gas")
	maxRequestedGas = new(big.Int).Lsh(big.NewInt(1), 64)
)

// syscall serves the system call request at the given pointer.
func (c *context) syscall(ptr Relocatable) error {
	selector, err := c.memory.GetFelt(ptr)
	if err != nil {
		return syscallArgumentError("selector: %v", err)
	}
	sys, found := syscalls[selector]
	if !found {
		return syscallArgumentError("unknown selector %v", selector)
	}
	// The cost is charged whether or not the request is well-formed.
	cost := c.costs.Syscall(sys.name)
	if err := c.useGas(cost.Gas); err != nil {
		return err
	}
	c.resources.Steps += cost.Steps
	c.resources.Builtins[aria.BuiltinRangeCheck] += cost.RangeChecks

	requested, err := c.memory.GetFelt(ptr.Add(1))
	if err != nil {
		return syscallArgumentError("gas: %v", err)
	}
	if requested.BigInt().Cmp(maxRequestedGas) >= 0 {
		return syscallArgumentError("requested gas %v exceeds 64 bits", requested)
	}
	gas, _ := requested.Uint64()

	call := &syscallCall{ptr: ptr, args: make([]Value, sys.numArgs)}
	for i := range call.args {
		value, known, err := c.memory.Get(ptr.Add(uint64(2 + i)))
		if err != nil {
			return err
		}
		if !known {
			return syscallArgumentError("%s argument %d is unknown", sys.name, i)
		}
		call.args[i] = value
	}
	response := ptr.Add(uint64(2 + sys.numArgs))

	if aria.Gas(gas) < cost.Gas {
		return c.writeFailure(response, aria.Gas(gas), []aria.Felt{outOfGasReason})
	}
	call.gas = aria.Gas(gas) - cost.Gas

	payload, err := sys.handler(c, call)
	if err != nil {
		return err
	}
	if call.failure != nil {
		return c.writeFailure(response, call.gas, call.failure)
	}
	_, err = c.memory.Load(response, append([]Value{IntValue(uint64(call.gas)), IntValue(0)}, payload...))
	return err
}

func (c *context) writeFailure(response Relocatable, gasLeft aria.Gas, reason []aria.Felt) error {
	start, end, err := c.allocFelts(reason)
	if err != nil {
		return err
	}
	_, err = c.memory.Load(response, []Value{
		IntValue(uint64(gasLeft)), IntValue(1), PtrValue(start), PtrValue(end),
	})
	return err
}

// allocFelts stores the given values in a new segment.
func (c *context) allocFelts(values []aria.Felt) (start, end Relocatable, err error) {
	start = c.memory.AddSegment()
	end, err = c.memory.LoadFelts(start, values)
	return start, end, err
}

// useNestedGas charges the gas consumed by a nested call. The nested call
// was granted at most the gas of the call, which itself never exceeds the
// gas of the frame.
func (c *context) useNestedGas(call *syscallCall, consumed aria.Gas) error {
	if consumed > call.gas {
		return fmt.Errorf("%w: nested call consumed %d gas of %d", aria.ErrProtocolInconsistency, consumed, call.gas)
	}
	call.gas -= consumed
	return c.useGas(consumed)
}

// nestedGas is the budget of a nested call.
func (c *context) nestedGas(call *syscallCall) aria.Gas {
	return min(call.gas, c.gas)
}

// --- Argument decoding ---

func (call *syscallCall) felt(i int) (aria.Felt, error) {
	f, ok := call.args[i].Felt()
	if !ok {
		return aria.Felt{}, syscallArgumentError("argument %d must be a felt, got %v", i, call.args[i])
	}
	return f, nil
}

func (call *syscallCall) pointer(i int) (Relocatable, error) {
	p, ok := call.args[i].Ptr()
	if !ok {
		return Relocatable{}, syscallArgumentError("argument %d must be a pointer, got %v", i, call.args[i])
	}
	return p, nil
}

// span reads the felts between the pointers of arguments i and i+1.
func (c *context) span(call *syscallCall, i int) ([]aria.Felt, error) {
	start, err := call.pointer(i)
	if err != nil {
		return nil, err
	}
	end, err := call.pointer(i + 1)
	if err != nil {
		return nil, err
	}
	if start.Segment != end.Segment || end.Offset < start.Offset {
		return nil, syscallArgumentError("malformed segment [%v, %v)", start, end)
	}
	res, err := c.memory.GetRange(start, end)
	if err != nil && !aria.IsFatal(err) {
		return nil, syscallArgumentError("segment [%v, %v): %v", start, end, err)
	}
	return res, err
}

func (call *syscallCall) storageKey() (aria.StorageKey, error) {
	domain, err := call.felt(0)
	if err != nil {
		return aria.StorageKey{}, err
	}
	if !domain.IsZero() {
		return aria.StorageKey{}, syscallArgumentError("unsupported address domain %v", domain)
	}
	key, err := call.felt(1)
	return aria.StorageKey(key), err
}

// --- Handlers ---

func sysStorageRead(c *context, call *syscallCall) ([]Value, error) {
	key, err := call.storageKey()
	if err != nil {
		return nil, err
	}
	value, err := c.context.StorageRead(key)
	if err != nil {
		return nil, err
	}
	return []Value{FeltValue(value)}, nil
}

func sysStorageWrite(c *context, call *syscallCall) ([]Value, error) {
	key, err := call.storageKey()
	if err != nil {
		return nil, err
	}
	value, err := call.felt(2)
	if err != nil {
		return nil, err
	}
	return nil, c.context.StorageWrite(key, value)
}

func sysGetCallerAddress(c *context, _ *syscallCall) ([]Value, error) {
	return []Value{FeltValue(aria.Felt(c.context.ExecutionInfo().CallerAddress))}, nil
}

func sysGetContractAddress(c *context, _ *syscallCall) ([]Value, error) {
	return []Value{FeltValue(aria.Felt(c.context.ExecutionInfo().ContractAddress))}, nil
}

func sysGetBlockNumber(c *context, _ *syscallCall) ([]Value, error) {
	return []Value{IntValue(c.context.ExecutionInfo().Block.BlockNumber)}, nil
}

func sysGetBlockTimestamp(c *context, _ *syscallCall) ([]Value, error) {
	return []Value{IntValue(c.context.ExecutionInfo().Block.BlockTimestamp)}, nil
}

func sysGetBlockHash(c *context, call *syscallCall) ([]Value, error) {
	number, err := call.felt(0)
	if err != nil {
		return nil, err
	}
	n, ok := number.Uint64()
	if !ok {
		return nil, syscallArgumentError("block number %v exceeds 64 bits", number)
	}
	hash, err := c.context.GetBlockHash(n)
	if err != nil {
		return nil, err
	}
	return []Value{FeltValue(hash)}, nil
}

func sysGetExecutionInfo(c *context, _ *syscallCall) ([]Value, error) {
	info := c.context.ExecutionInfo()
	block, _, err := c.allocFelts([]aria.Felt{
		aria.NewFelt(info.Block.BlockNumber),
		aria.NewFelt(info.Block.BlockTimestamp),
		aria.Felt(info.Block.SequencerAddress),
	})
	if err != nil {
		return nil, err
	}
	sigStart, sigEnd, err := c.allocFelts(info.Transaction.Signature)
	if err != nil {
		return nil, err
	}
	tx := c.memory.AddSegment()
	if _, err := c.memory.Load(tx, []Value{
		IntValue(info.Transaction.Version),
		FeltValue(aria.Felt(info.Transaction.AccountAddress)),
		FeltValue(aria.FeltFromBig(info.Transaction.MaxFee.ToBig())),
		PtrValue(sigStart),
		PtrValue(sigEnd),
		FeltValue(info.Transaction.Hash),
		FeltValue(info.Block.ChainID),
		FeltValue(info.Transaction.Nonce),
	}); err != nil {
		return nil, err
	}
	res := c.memory.AddSegment()
	if _, err := c.memory.Load(res, []Value{
		PtrValue(block),
		PtrValue(tx),
		FeltValue(aria.Felt(info.CallerAddress)),
		FeltValue(aria.Felt(info.ContractAddress)),
		FeltValue(info.Selector),
	}); err != nil {
		return nil, err
	}
	return []Value{PtrValue(res)}, nil
}

func sysEmitEvent(c *context, call *syscallCall) ([]Value, error) {
	keys, err := c.span(call, 0)
	if err != nil {
		return nil, err
	}
	data, err := c.span(call, 2)
	if err != nil {
		return nil, err
	}
	return nil, c.context.EmitEvent(keys, data)
}

var l1AddressBound = new(big.Int).Lsh(big.NewInt(1), 160)

func sysSendMessageToL1(c *context, call *syscallCall) ([]Value, error) {
	to, err := call.felt(0)
	if err != nil {
		return nil, err
	}
	if to.BigInt().Cmp(l1AddressBound) >= 0 {
		return nil, syscallArgumentError("L1 address %v exceeds 160 bits", to)
	}
	payload, err := c.span(call, 1)
	if err != nil {
		return nil, err
	}
	return nil, c.context.SendMessageToL1(common.BytesToAddress(to.BigInt().Bytes()), payload)
}

// finishCall charges a nested call and returns its result to the program.
func (c *context) finishCall(call *syscallCall, result aria.CallResult, extra ...Value) ([]Value, error) {
	if err := c.useNestedGas(call, result.GasConsumed); err != nil {
		return nil, err
	}
	if !result.Success {
		call.failure = result.Retdata
		if call.failure == nil {
			call.failure = []aria.Felt{}
		}
		return nil, nil
	}
	start, end, err := c.allocFelts(result.Retdata)
	if err != nil {
		return nil, err
	}
	return append(extra, PtrValue(start), PtrValue(end)), nil
}

func sysCallContract(c *context, call *syscallCall) ([]Value, error) {
	address, err := call.felt(0)
	if err != nil {
		return nil, err
	}
	selector, err := call.felt(1)
	if err != nil {
		return nil, err
	}
	calldata, err := c.span(call, 2)
	if err != nil {
		return nil, err
	}
	result, err := c.context.CallContract(aria.Address(address), selector, calldata, c.nestedGas(call))
	if err != nil {
		return nil, err
	}
	return c.finishCall(call, result)
}

func sysLibraryCall(c *context, call *syscallCall) ([]Value, error) {
	class, err := call.felt(0)
	if err != nil {
		return nil, err
	}
	selector, err := call.felt(1)
	if err != nil {
		return nil, err
	}
	calldata, err := c.span(call, 2)
	if err != nil {
		return nil, err
	}
	result, err := c.context.LibraryCall(aria.ClassHash(class), selector, calldata, c.nestedGas(call))
	if err != nil {
		return nil, err
	}
	return c.finishCall(call, result)
}

func sysDeploy(c *context, call *syscallCall) ([]Value, error) {
	class, err := call.felt(0)
	if err != nil {
		return nil, err
	}
	salt, err := call.felt(1)
	if err != nil {
		return nil, err
	}
	calldata, err := c.span(call, 2)
	if err != nil {
		return nil, err
	}
	fromZero, err := call.felt(4)
	if err != nil {
		return nil, err
	}
	address, result, err := c.context.Deploy(aria.ClassHash(class), salt, calldata, !fromZero.IsZero(), c.nestedGas(call))
	if err != nil {
		return nil, err
	}
	return c.finishCall(call, result, FeltValue(aria.Felt(address)))
}

func sysReplaceClass(c *context, call *syscallCall) ([]Value, error) {
	class, err := call.felt(0)
	if err != nil {
		return nil, err
	}
	return nil, c.context.ReplaceClass(aria.ClassHash(class))
}

// keccakRate is the number of 64-bit words absorbed per Keccak round.
const keccakRate = 17

func sysKeccak(c *context, call *syscallCall) ([]Value, error) {
	input, err := c.span(call, 0)
	if err != nil {
		return nil, err
	}
	if len(input)%keccakRate != 0 {
		return nil, syscallArgumentError("keccak input length %d is not a multiple of %d", len(input), keccakRate)
	}
	rounds := aria.Gas(len(input) / keccakRate)
	cost := rounds * c.costs.KeccakRound
	if call.gas < cost {
		call.failure = []aria.Felt{outOfGasReason}
		return nil, nil
	}
	if err := c.useGas(cost); err != nil {
		return nil, err
	}
	call.gas -= cost

	data := make([]byte, 0, 8*len(input))
	for _, word := range input {
		w, ok := word.Uint64()
		if !ok {
			return nil, syscallArgumentError("keccak input word %v exceeds 64 bits", word)
		}
		data = binary.LittleEndian.AppendUint64(data, w)
	}
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	digest := hasher.Sum(nil)

	// The digest is read as a little-endian 256-bit integer.
	low := make([]byte, 16)
	high := make([]byte, 16)
	for i := 0; i < 16; i++ {
		low[15-i] = digest[i]
		high[15-i] = digest[16+i]
	}
	return []Value{
		FeltValue(aria.FeltFromBytes(low)),
		FeltValue(aria.FeltFromBytes(high)),
	}, nil
}
