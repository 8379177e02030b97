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
	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/interpreter/cairovm"
)

// This file provides contract classes exercising the system calls, used as
// fixtures by tests and demo scenarios.

// requestGas is the gas requested by system calls. It exceeds any budget,
// nested calls are bounded by the gas left in the calling frame.
var requestGas = aria.NewFelt(1 << 62)

// function assembles the body of an entry point. Values pushed by the
// function are stored at [fp], [fp+1], ... in order.
type function struct {
	b      *cairovm.Builder
	locals int16 // number of values pushed
	sys    int16 // offset of the next request in the syscall segment
}

func newFunction(b *cairovm.Builder, label string) *function {
	b.Label(label)
	return &function{b: b}
}

func (f *function) push(e cairovm.Expr) cairovm.Cell {
	f.b.Push(e)
	f.locals++
	return cairovm.Fp(f.locals - 1)
}

// syscall writes a request to the syscall segment and performs the call.
// The result is the offset of the response in the segment, which occupies
// the given number of cells.
func (f *function) syscall(name string, size int16, args ...cairovm.Expr) int16 {
	request := append([]cairovm.Expr{cairovm.Imm(aria.MustShortString(name)), cairovm.Imm(requestGas)}, args...)
	ptr := f.push(cairovm.Add(sysPtr, cairovm.Int(int64(f.sys))))
	for i, arg := range request {
		f.b.AssertEq(f.push(arg), cairovm.DoubleDeref(ptr, int16(i)))
	}
	f.b.Hint(aria.Hint{SystemCall: &aria.SystemCallHint{System: aria.DerefOperand(aria.FP, ptr.Off)}})
	response := f.sys + int16(len(request))
	f.sys = response + size
	return response
}

// cell is the value of a cell of the syscall segment.
func (f *function) cell(offset int16) cairovm.Expr {
	return cairovm.DoubleDeref(sysPtr, offset)
}

// ptr is the address of a cell of the syscall segment.
func (f *function) ptr(offset int16) cairovm.Expr {
	return cairovm.Add(sysPtr, cairovm.Int(int64(offset)))
}

func (f *function) ret(flag, start, end cairovm.Expr) {
	f.b.Push(f.ptr(f.sys))
	f.b.Push(flag)
	f.b.Push(start)
	f.b.Push(end)
	f.b.Ret()
}

func (f *function) retEmpty() {
	f.ret(cairovm.Int(0), cairovm.Deref(calldataPtr), cairovm.Deref(calldataPtr))
}

// failWithCalldata fails with the calldata as panic data.
func (f *function) failWithCalldata() {
	f.ret(cairovm.Int(1), cairovm.Deref(calldataPtr), cairovm.Deref(calldataEnd))
}

func arg(i int16) cairovm.Expr {
	return cairovm.DoubleDeref(calldataPtr, i)
}

// args is the calldata starting at the given index.
func args(from int64) (start, end cairovm.Expr) {
	return cairovm.Add(calldataPtr, cairovm.Int(from)), cairovm.Deref(calldataEnd)
}

// forward calls the contract at calldata[0] with the selector at
// calldata[1] and the remaining calldata, and returns its result. Failures
// of the callee are propagated.
func forward(f *function, selector cairovm.Expr) {
	start, end := args(2)
	r := f.syscall("CallContract", 4, arg(0), selector, start, end)
	f.ret(f.cell(r+1), f.cell(r+2), f.cell(r+3))
}

func external(name, label string) cairovm.EntryPoint {
	return cairovm.EntryPoint{Type: aria.External, Name: name, Label: label}
}

// Account is an account contract accepting all transactions. Its
// __execute__ entry point calls the contract at calldata[0] with the
// selector at calldata[1] and the remaining calldata.
func Account() *aria.CompiledClass {
	return account(true)
}

// RejectingAccount is an account contract failing all validations.
func RejectingAccount() *aria.CompiledClass {
	return account(false)
}

func account(valid bool) *aria.CompiledClass {
	b := cairovm.NewBuilder()
	f := newFunction(b, "validate")
	if valid {
		f.retEmpty()
	} else {
		f.failWithCalldata()
	}
	forward(newFunction(b, "execute"), arg(1))
	return b.MustBuildClass(
		external("__validate__", "validate"),
		external("__validate_declare__", "validate"),
		external("__validate_deploy__", "validate"),
		external("__execute__", "execute"),
	)
}

// EagerAccount is an account contract performing the call of a transaction
// twice, once in __validate__ and again in __execute__.
func EagerAccount() *aria.CompiledClass {
	b := cairovm.NewBuilder()
	forward(newFunction(b, "validate"), arg(1))
	forward(newFunction(b, "execute"), arg(1))
	return b.MustBuildClass(
		external("__validate__", "validate"),
		external("__execute__", "execute"),
	)
}

// SimpleStorageKey is the storage key of the value field of the
// SimpleStorage contract.
var SimpleStorageKey = aria.StorageVarAddress("value")

// SimpleStorage is a contract storing a single value. Its constructor takes
// the initial value, foo(a) stores a and returns the previous value.
func SimpleStorage() *aria.CompiledClass {
	key := cairovm.Imm(aria.Felt(SimpleStorageKey))
	b := cairovm.NewBuilder()

	f := newFunction(b, "constructor")
	f.syscall("StorageWrite", 2, cairovm.Int(0), key, arg(0))
	f.retEmpty()

	f = newFunction(b, "foo")
	read := f.syscall("StorageRead", 3, cairovm.Int(0), key)
	f.syscall("StorageWrite", 2, cairovm.Int(0), key, arg(0))
	f.ret(cairovm.Int(0), f.ptr(read+2), f.ptr(read+3))

	return b.MustBuildClass(
		cairovm.EntryPoint{Type: aria.Constructor, Name: "constructor", Label: "constructor"},
		external("foo", "foo"),
	)
}

// Selectors of the entry points of the Store contract.
var (
	GetSelector          = aria.SelectorFromName("get")
	SetSelector          = aria.SelectorFromName("set")
	IncrementSelector    = aria.SelectorFromName("increment")
	WriteAndFailSelector = aria.SelectorFromName("write_and_fail")
	FailSelector         = aria.SelectorFromName("fail")
	EmitSelector         = aria.SelectorFromName("emit")
	SendSelector         = aria.SelectorFromName("send")
	ForwardSelector      = aria.SelectorFromName("forward")
	TrySelector          = aria.SelectorFromName("try")
	TryPairSelector      = aria.SelectorFromName("try_pair")
	RecurseSelector      = aria.SelectorFromName("recurse")
	DeploySelector       = aria.SelectorFromName("deploy")
	LibraryCallSelector  = aria.SelectorFromName("library_call")
	ReplaceSelector      = aria.SelectorFromName("replace")
	OnMessageSelector    = aria.SelectorFromName("on_message")
)

// Store is a contract with entry points for all kinds of interactions:
//
//	get(key) -> [value]
//	set(key, value)
//	increment(key) -> [value + 1]
//	write_and_fail(key, value) fails after writing value
//	fail(data...) fails with the given panic data
//	emit(data...) emits an event with the data as keys and data
//	send(to, payload...) sends a message to L1
//	forward(to, selector, calldata...) calls another contract, propagating failures
//	try(to, selector, calldata...) -> [failed] calls another contract, catching failures
//	try_pair(to, k1, v1, k2, v2) -> [failed] calls to.write_and_fail(k1, v1) catching its failure, then to.set(k2, v2)
//	recurse(self) calls itself until the call fails
//	deploy(class, salt, calldata...) -> [address]
//	library_call(class, selector, calldata...) runs another class on this contract
//	replace(class) replaces the class of this contract
//
// The constructor takes a key and a value to be stored. The L1 handler
// on_message(from, key, value) stores the value.
func Store() *aria.CompiledClass {
	b := cairovm.NewBuilder()

	for _, label := range []string{"set", "constructor"} {
		f := newFunction(b, label)
		f.syscall("StorageWrite", 2, cairovm.Int(0), arg(0), arg(1))
		f.retEmpty()
	}

	f := newFunction(b, "on_message")
	f.syscall("StorageWrite", 2, cairovm.Int(0), arg(1), arg(2))
	f.retEmpty()

	f = newFunction(b, "get")
	r := f.syscall("StorageRead", 3, cairovm.Int(0), arg(0))
	f.ret(cairovm.Int(0), f.ptr(r+2), f.ptr(r+3))

	f = newFunction(b, "increment")
	r = f.syscall("StorageRead", 3, cairovm.Int(0), arg(0))
	value := f.push(f.cell(r + 2))
	w := f.syscall("StorageWrite", 2, cairovm.Int(0), arg(0), cairovm.Add(value, cairovm.Int(1)))
	f.ret(cairovm.Int(0), f.ptr(w-1), f.ptr(w)) // the value of the write request

	f = newFunction(b, "write_and_fail")
	f.syscall("StorageWrite", 2, cairovm.Int(0), arg(0), arg(1))
	f.failWithCalldata()

	newFunction(b, "fail").failWithCalldata()

	f = newFunction(b, "emit")
	f.syscall("EmitEvent", 2, cairovm.Deref(calldataPtr), cairovm.Deref(calldataEnd), cairovm.Deref(calldataPtr), cairovm.Deref(calldataEnd))
	f.retEmpty()

	f = newFunction(b, "send")
	start, end := args(1)
	f.syscall("SendMessageToL1", 2, arg(0), start, end)
	f.retEmpty()

	forward(newFunction(b, "forward"), arg(1))

	f = newFunction(b, "try")
	start, end = args(2)
	r = f.syscall("CallContract", 4, arg(0), arg(1), start, end)
	f.ret(cairovm.Int(0), f.ptr(r+1), f.ptr(r+2))

	f = newFunction(b, "try_pair")
	first := f.syscall("CallContract", 4, arg(0), cairovm.Imm(WriteAndFailSelector), cairovm.Add(calldataPtr, cairovm.Int(1)), cairovm.Add(calldataPtr, cairovm.Int(3)))
	second := f.syscall("CallContract", 4, arg(0), cairovm.Imm(SetSelector), cairovm.Add(calldataPtr, cairovm.Int(3)), cairovm.Add(calldataPtr, cairovm.Int(5)))
	b.Jnz("try_pair_failed", f.push(f.cell(second+1)))
	f.ret(cairovm.Int(0), f.ptr(first+1), f.ptr(first+2))
	b.Label("try_pair_failed")
	f.ret(cairovm.Int(1), f.cell(second+2), f.cell(second+3))

	f = newFunction(b, "recurse")
	r = f.syscall("CallContract", 4, arg(0), cairovm.Imm(RecurseSelector), cairovm.Deref(calldataPtr), cairovm.Deref(calldataEnd))
	f.ret(f.cell(r+1), f.cell(r+2), f.cell(r+3))

	f = newFunction(b, "deploy")
	start, end = args(2)
	r = f.syscall("Deploy", 5, arg(0), arg(1), start, end, cairovm.Int(0))
	b.Jnz("deploy_failed", f.push(f.cell(r+1)))
	f.ret(cairovm.Int(0), f.ptr(r+2), f.ptr(r+3))
	b.Label("deploy_failed")
	f.ret(cairovm.Int(1), f.cell(r+2), f.cell(r+3))

	f = newFunction(b, "library_call")
	start, end = args(2)
	r = f.syscall("LibraryCall", 4, arg(0), arg(1), start, end)
	f.ret(f.cell(r+1), f.cell(r+2), f.cell(r+3))

	f = newFunction(b, "replace")
	f.syscall("ReplaceClass", 2, arg(0))
	f.retEmpty()

	entryPoints := []cairovm.EntryPoint{
		{Type: aria.Constructor, Name: "constructor", Label: "constructor"},
		{Type: aria.L1Handler, Name: "on_message", Label: "on_message"},
	}
	for _, name := range []string{"get", "set", "increment", "write_and_fail", "fail", "emit", "send", "forward", "try", "try_pair", "recurse", "deploy", "library_call", "replace"} {
		entryPoints = append(entryPoints, external(name, name))
	}
	return b.MustBuildClass(entryPoints...)
}
