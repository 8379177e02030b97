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

import (
	"errors"
	"fmt"
	"testing"
)

func TestConstError_Error(t *testing.T) {
	const myError = ConstError("this is a constant error")

	if myError.Error() != "this is a constant error" {
		t.Errorf("expected 'this is a constant error', got '%s'", myError.Error())
	}
	if !errors.Is(myError, ConstError("this is a constant error")) {
		t.Errorf("expected true, got false")
	}
}

func TestIsFatal_ClassifiesTiers(t *testing.T) {
	tests := map[error]bool{
		nil:                      false,
		ErrInvalidInstruction:    true,
		ErrMemory:                true,
		ErrBuiltinValidation:     true,
		ErrProtocolInconsistency: true,
		ErrResourceExhausted:     false,
		ErrSyscallArgument:       false,
		ErrExecution:             false,
		ErrReverted:              false,
		ErrEntryPointNotFound:    false,
		ErrCallDepthExceeded:     false,
		ErrContractNotFound:      false,
		ErrClassNotDeclared:      false,
		ErrAddressUnavailable:    false,
		fmt.Errorf("%w: write to program segment", ErrMemory): true,
		fmt.Errorf("%w: out of gas", ErrResourceExhausted):    false,
		errors.New("unrelated"):                               false,
	}
	for err, want := range tests {
		if got := IsFatal(err); got != want {
			t.Errorf("IsFatal(%v) = %t, wanted %t", err, got, want)
		}
	}
}

func TestFailureReason_EncodesErrorCategory(t *testing.T) {
	err := fmt.Errorf("%w: address 0x12", ErrContractNotFound)
	got, ok := DecodeShortString(FailureReason(err))
	if !ok || got != "contract not deployed" {
		t.Errorf("unexpected reason: %q", got)
	}
	got, ok = DecodeShortString(FailureReason(errors.New("plain")))
	if !ok || got != "failure" {
		t.Errorf("unexpected reason for uncategorized error: %q", got)
	}
}
