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
	"github.com/Fantom-foundation/Aria/go/examples"
	"github.com/stretchr/testify/require"
)

func address(v uint64) aria.Address {
	return aria.Address(aria.NewFelt(v))
}

func TestWorldState_Equal(t *testing.T) {
	tests := map[string]struct {
		a, b WorldState
	}{
		"both_nil": {},
		"left_hand_side_nil": {
			b: WorldState{},
		},
		"zero_contracts_are_ignored": {
			a: WorldState{address(1): Contract{}},
			b: WorldState{address(2): Contract{}},
		},
		"zero_storage_values_are_ignored": {
			a: WorldState{address(1): Contract{Nonce: 1, Storage: Storage{key(1): aria.Zero}}},
			b: WorldState{address(1): Contract{Nonce: 1}},
		},
		"classes_are_compared_by_hash": {
			a: WorldState{address(1): Contract{Class: examples.Store()}},
			b: WorldState{address(1): Contract{Class: examples.Store()}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if !test.a.Equal(test.b) {
				t.Errorf("world states %v and %v are expected to be equivalent, but they are not", test.a, test.b)
			}
		})
	}
}

func TestWorldState_DiffListsAllDifferences(t *testing.T) {
	a := WorldState{
		address(1): Contract{Class: examples.Store(), Nonce: 1, Storage: Storage{key(1): aria.One}},
		address(2): Contract{Balance: aria.NewAmount(5)},
	}
	b := WorldState{
		address(1): Contract{Class: examples.Account(), Nonce: 2, Storage: Storage{key(1): aria.NewFelt(2)}},
		address(3): Contract{Nonce: 1},
	}
	require.False(t, a.Equal(b))

	diff := strings.Join(a.Diff(b), "\n")
	for _, want := range []string{"different class", "different nonce", "different value for key", "different balance"} {
		require.Contains(t, diff, want)
	}
	require.Len(t, a.Diff(b), 5)
	require.Empty(t, a.Diff(a.Clone()))
}

func TestWorldState_ClonesAreIndependent(t *testing.T) {
	a := WorldState{address(1): Contract{Storage: Storage{key(1): aria.One}}}
	b := a.Clone()
	b[address(1)].Storage[key(1)] = aria.NewFelt(2)
	b[address(2)] = Contract{Nonce: 1}

	require.Equal(t, aria.One, a[address(1)].Storage[key(1)])
	require.NotContains(t, a, address(2))
}

func TestWorldState_BuildAndReadAreConsistent(t *testing.T) {
	feeToken := address(0xfee)
	want := WorldState{
		address(1): Contract{Class: examples.Account(), Nonce: 3, Balance: aria.NewAmount(1000)},
		address(2): Contract{Class: examples.Store(), Storage: Storage{key(7): aria.NewFelt(8)}},
		address(3): Contract{Balance: aria.NewAmount(12)},
	}
	state := want.Build(feeToken)

	got, err := ReadWorldState(state, feeToken, map[aria.Address][]aria.StorageKey{
		address(1): nil,
		address(2): {key(7), key(8)},
		address(3): nil,
	})
	require.NoError(t, err)
	require.True(t, want.Equal(got), "%v", got.Diff(want))

	balance, err := ReadBalance(state, feeToken, address(1))
	require.NoError(t, err)
	require.Equal(t, aria.NewAmount(1000), balance)
}
