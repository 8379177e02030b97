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
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	pedersenhash "github.com/consensys/gnark-crypto/ecc/stark-curve/pedersen-hash"
	"golang.org/x/crypto/sha3"
)

// Address identifies a deployed contract instance.
type Address Felt

// ClassHash is the content hash identifying a declared contract class.
type ClassHash Felt

// StorageKey addresses a slot in the storage of a contract.
type StorageKey Felt

// Gas is the unit in which execution budgets are tracked.
type Gas uint64

func (a Address) String() string    { return Felt(a).String() }
func (c ClassHash) String() string  { return Felt(c).String() }
func (k StorageKey) String() string { return Felt(k).String() }

func (a Address) MarshalText() ([]byte, error)     { return Felt(a).MarshalText() }
func (a *Address) UnmarshalText(data []byte) error { return (*Felt)(a).UnmarshalText(data) }

func (c ClassHash) MarshalText() ([]byte, error)     { return Felt(c).MarshalText() }
func (c *ClassHash) UnmarshalText(data []byte) error { return (*Felt)(c).UnmarshalText(data) }

func (k StorageKey) MarshalText() ([]byte, error)     { return Felt(k).MarshalText() }
func (k *StorageKey) UnmarshalText(data []byte) error { return (*Felt)(k).UnmarshalText(data) }

// Cmp orders addresses by their integer value.
func (a Address) Cmp(o Address) int { return Felt(a).Cmp(Felt(o)) }

// Cmp orders storage keys by their integer value.
func (k StorageKey) Cmp(o StorageKey) int { return Felt(k).Cmp(Felt(o)) }

// Cmp orders class hashes by their integer value.
func (c ClassHash) Cmp(o ClassHash) int { return Felt(c).Cmp(Felt(o)) }

// addressBound is 2^251 - 256, the exclusive upper bound of contract
// addresses and storage variable addresses.
var addressBound = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 251), big.NewInt(256))

var mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// StarknetKeccak computes keccak256 of the data truncated to 250 bits.
func StarknetKeccak(data []byte) Felt {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	digest := new(big.Int).SetBytes(hasher.Sum(nil))
	return FeltFromBig(digest.And(digest, mask250))
}

// SelectorFromName derives the entry point selector for a function name.
func SelectorFromName(name string) Felt {
	return StarknetKeccak([]byte(name))
}

// Well-known entry point selectors.
var (
	ExecuteSelector         = SelectorFromName("__execute__")
	ValidateSelector        = SelectorFromName("__validate__")
	ValidateDeclareSelector = SelectorFromName("__validate_declare__")
	ValidateDeploySelector  = SelectorFromName("__validate_deploy__")
	ConstructorSelector     = SelectorFromName("constructor")
	TransferSelector        = SelectorFromName("transfer")
	BalanceOfSelector       = SelectorFromName("balanceOf")
)

// PedersenArray hashes a list of felts the way Starknet hashes arrays: a
// chain of pedersen hashes starting at zero and ending with the length.
func PedersenArray(elems ...Felt) Felt {
	list := make([]*fp.Element, len(elems))
	for i := range elems {
		list[i] = elems[i].Fp()
	}
	return Felt(pedersenhash.PedersenArray(list...))
}

// Pedersen is the two-input Starknet pedersen hash.
func Pedersen(a, b Felt) Felt {
	return Felt(pedersenhash.Pedersen(a.Fp(), b.Fp()))
}

func reduceToAddressBound(f Felt) Felt {
	v := f.BigInt()
	return FeltFromBig(v.Mod(v, addressBound))
}

// StorageVarAddress computes the storage key of a storage variable with the
// given name, optionally indexed by a list of keys.
func StorageVarAddress(name string, keys ...Felt) StorageKey {
	res := StarknetKeccak([]byte(name))
	for _, key := range keys {
		res = Pedersen(res, key)
	}
	return StorageKey(reduceToAddressBound(res))
}

var contractAddressPrefix = MustShortString("STARKNET_CONTRACT_ADDRESS")

// ContractAddress computes the deterministic address of a contract deployed
// by the given deployer with the given salt, class, and constructor
// arguments.
func ContractAddress(deployer Address, salt Felt, class ClassHash, constructorCalldata []Felt) Address {
	hash := PedersenArray(
		contractAddressPrefix,
		Felt(deployer),
		salt,
		Felt(class),
		PedersenArray(constructorCalldata...),
	)
	return Address(reduceToAddressBound(hash))
}
