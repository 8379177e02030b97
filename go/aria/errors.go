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

import "errors"

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// Errors produced during execution fall into two tiers. Fatal errors signal
// a corrupted class, a bug in the engine, or an inconsistency of the
// protocol; they must abort the processing of a block. All other errors are
// recoverable: they revert the affected call frame, or the transaction, and
// are reported in the receipt.
const (
	// Fatal errors.
	ErrInvalidInstruction    = ConstError("invalid instruction")
	ErrMemory                = ConstError("memory error")
	ErrBuiltinValidation     = ConstError("builtin validation failed")
	ErrProtocolInconsistency = ConstError("protocol inconsistency")

	// Recoverable errors.
	ErrResourceExhausted  = ConstError("resources exhausted")
	ErrSyscallArgument    = ConstError("invalid syscall arguments")
	ErrExecution          = ConstError("execution failed")
	ErrReverted           = ConstError("execution reverted")
	ErrEntryPointNotFound = ConstError("entry point not found")
	ErrCallDepthExceeded  = ConstError("max call depth exceeded")
	ErrContractNotFound   = ConstError("contract not deployed")
	ErrClassNotDeclared   = ConstError("class not declared")
	ErrAddressUnavailable = ConstError("contract address unavailable")
)

var fatalErrors = []error{
	ErrInvalidInstruction,
	ErrMemory,
	ErrBuiltinValidation,
	ErrProtocolInconsistency,
}

// IsFatal reports whether the given error belongs to the fatal tier. A nil
// error is not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, fatal := range fatalErrors {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return false
}

// FailureReason encodes the category of a recoverable error as a short
// string, suitable as panic data reported to a calling program.
func FailureReason(err error) Felt {
	var category ConstError
	msg := "failure"
	if errors.As(err, &category) {
		msg = string(category)
	}
	if len(msg) > 31 {
		msg = msg[:31]
	}
	res, err := ShortString(msg)
	if err != nil {
		return Zero
	}
	return res
}
