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

// Layout of the frame of an entry point without builtins.
var (
	sysPtr      = cairovm.Fp(-5)
	calldataPtr = cairovm.Fp(-4)
	calldataEnd = cairovm.Fp(-3)
)

func allocSegment() aria.Hint {
	return aria.Hint{AllocSegment: &aria.AllocSegmentHint{Dst: aria.CellRef{Register: aria.AP}}}
}

// returnTop emits the epilogue of an entry point returning the value at
// [ap-1] as its only result.
func returnTop(b *cairovm.Builder) {
	b.Hint(allocSegment())
	b.ApAdd(1)
	b.AssertEq(cairovm.Ap(-2), cairovm.DoubleDeref(cairovm.Ap(-1), 0)) // retdata[0] = result
	b.Push(cairovm.Deref(sysPtr))
	b.Push(cairovm.Int(0))
	b.Push(cairovm.Deref(cairovm.Ap(-3)))
	b.Push(cairovm.Add(cairovm.Ap(-4), cairovm.Int(1)))
	b.Ret()
}

// GetStaticOverheadExample returns its argument. It measures the cost of
// running an entry point.
func GetStaticOverheadExample() Example {
	b := cairovm.NewBuilder()
	b.Label("main")
	b.Push(cairovm.DoubleDeref(calldataPtr, 0))
	returnTop(b)

	return exampleSpec{
		Name:      "static_overhead",
		class:     b.MustBuildClass(cairovm.EntryPoint{Type: aria.External, Name: "main", Label: "main"}),
		function:  "main",
		reference: func(n int) int { return n },
	}.build()
}

// GetSumExample sums up the integers up to its argument in a loop.
func GetSumExample() Example {
	b := cairovm.NewBuilder()
	b.Label("main")
	b.Push(cairovm.DoubleDeref(calldataPtr, 0)) // i = n
	b.Push(cairovm.Int(0))                      // sum = 0

	// Loop invariant: [ap-2] = i, [ap-1] = sum.
	b.Label("loop")
	b.Jnz("body", cairovm.Ap(-2))
	b.Jmp("done")

	b.Label("body")
	b.Push(cairovm.Add(cairovm.Ap(-1), cairovm.Deref(cairovm.Ap(-2)))) // sum + i
	b.Push(cairovm.Add(cairovm.Ap(-3), cairovm.Int(-1)))               // i - 1
	b.Push(cairovm.Deref(cairovm.Ap(-1)))
	b.Push(cairovm.Deref(cairovm.Ap(-3)))
	b.Jmp("loop")

	b.Label("done")
	returnTop(b)

	return exampleSpec{
		Name:      "sum",
		class:     b.MustBuildClass(cairovm.EntryPoint{Type: aria.External, Name: "sum", Label: "main"}),
		function:  "sum",
		reference: sum,
	}.build()
}

func sum(n int) int {
	return n * (n + 1) / 2
}

// GetFibExample computes the n-th Fibonacci number iteratively.
func GetFibExample() Example {
	b := cairovm.NewBuilder()
	b.Label("main")
	b.Push(cairovm.DoubleDeref(calldataPtr, 0)) // i = n
	b.Push(cairovm.Int(0))                      // a = fib(0)
	b.Push(cairovm.Int(1))                      // b = fib(1)

	// Loop invariant: [ap-3] = i, [ap-2] = a, [ap-1] = b.
	b.Label("loop")
	b.Jnz("body", cairovm.Ap(-3))
	b.Jmp("done")

	b.Label("body")
	b.Push(cairovm.Add(cairovm.Ap(-3), cairovm.Int(-1)))               // i - 1
	b.Push(cairovm.Deref(cairovm.Ap(-2)))                              // b
	b.Push(cairovm.Add(cairovm.Ap(-4), cairovm.Deref(cairovm.Ap(-3)))) // a + b
	b.Jmp("loop")

	b.Label("done")
	b.Push(cairovm.Deref(cairovm.Ap(-2)))
	returnTop(b)

	return exampleSpec{
		Name:      "fib",
		class:     b.MustBuildClass(cairovm.EntryPoint{Type: aria.External, Name: "fib", Label: "main"}),
		function:  "fib",
		reference: fib,
	}.build()
}

func fib(n int) int {
	a, b := 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}
