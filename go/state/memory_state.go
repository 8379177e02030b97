// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"sync"

	"github.com/Fantom-foundation/Aria/go/aria"
)

// MemoryState is a map-backed StateReader. It is safe for concurrent use.
type MemoryState struct {
	mutex       sync.RWMutex
	storage     map[slot]aria.Felt
	nonces      map[aria.Address]aria.Felt
	classHashes map[aria.Address]aria.ClassHash
	classes     map[aria.ClassHash]*aria.CompiledClass
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		storage:     map[slot]aria.Felt{},
		nonces:      map[aria.Address]aria.Felt{},
		classHashes: map[aria.Address]aria.ClassHash{},
		classes:     map[aria.ClassHash]*aria.CompiledClass{},
	}
}

func (s *MemoryState) GetStorage(address aria.Address, key aria.StorageKey) (aria.Felt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.storage[slot{address, key}], nil
}

func (s *MemoryState) GetNonce(address aria.Address) (aria.Felt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.nonces[address], nil
}

func (s *MemoryState) GetClassHash(address aria.Address) (aria.ClassHash, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.classHashes[address], nil
}

func (s *MemoryState) GetCompiledClass(hash aria.ClassHash) (*aria.CompiledClass, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.classes[hash], nil
}

func (s *MemoryState) SetStorage(address aria.Address, key aria.StorageKey, value aria.Felt) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.storage[slot{address, key}] = value
}

func (s *MemoryState) SetNonce(address aria.Address, nonce aria.Felt) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nonces[address] = nonce
}

// Deploy binds the class to the address.
func (s *MemoryState) Deploy(address aria.Address, hash aria.ClassHash) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.classHashes[address] = hash
}

// Declare adds the class under its hash and returns the hash.
func (s *MemoryState) Declare(class *aria.CompiledClass) aria.ClassHash {
	hash := class.Hash()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.classes[hash] = class
	return hash
}

// Apply writes all changes of the diff.
func (s *MemoryState) Apply(diff aria.StateDiff) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, w := range diff.Storage {
		s.storage[slot{w.Address, w.Key}] = w.Value
	}
	for _, n := range diff.Nonces {
		s.nonces[n.Address] = n.Nonce
	}
	for _, c := range diff.ClassHashes {
		s.classHashes[c.Address] = c.ClassHash
	}
	for _, c := range diff.DeclaredClasses {
		s.classes[c.ClassHash] = c.Class
	}
}
