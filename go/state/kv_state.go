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
	"encoding/json"
	"fmt"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Key prefixes of the entries of a KVState.
const (
	storagePrefix   = 's'
	noncePrefix     = 'n'
	classHashPrefix = 'c'
	classPrefix     = 'C'
)

const classCacheSize = 1 << 10

// KVState is a StateReader persisted in a key-value store. Keys are a one
// byte prefix followed by 32-byte big-endian felts; classes are stored as
// JSON. Decoded classes are cached.
type KVState struct {
	db      ethdb.KeyValueStore
	classes *lru.Cache[aria.ClassHash, *aria.CompiledClass]
	log     log.Logger
}

func NewKVState(db ethdb.KeyValueStore) (*KVState, error) {
	classes, err := lru.New[aria.ClassHash, *aria.CompiledClass](classCacheSize)
	if err != nil {
		return nil, err
	}
	return &KVState{
		db:      db,
		classes: classes,
		log:     log.New("module", "state"),
	}, nil
}

func key(prefix byte, felts ...aria.Felt) []byte {
	res := make([]byte, 0, 1+32*len(felts))
	res = append(res, prefix)
	for _, f := range felts {
		bytes := f.Bytes()
		res = append(res, bytes[:]...)
	}
	return res
}

func storageKey(address aria.Address, k aria.StorageKey) []byte {
	return key(storagePrefix, aria.Felt(address), aria.Felt(k))
}

// get returns nil if the key is not present.
func (s *KVState) get(key []byte) ([]byte, error) {
	found, err := s.db.Has(key)
	if err != nil || !found {
		return nil, err
	}
	return s.db.Get(key)
}

func (s *KVState) getFelt(key []byte) (aria.Felt, error) {
	data, err := s.get(key)
	if err != nil || data == nil {
		return aria.Zero, err
	}
	return aria.FeltFromBytes(data), nil
}

func (s *KVState) GetStorage(address aria.Address, k aria.StorageKey) (aria.Felt, error) {
	return s.getFelt(storageKey(address, k))
}

func (s *KVState) GetNonce(address aria.Address) (aria.Felt, error) {
	return s.getFelt(key(noncePrefix, aria.Felt(address)))
}

func (s *KVState) GetClassHash(address aria.Address) (aria.ClassHash, error) {
	res, err := s.getFelt(key(classHashPrefix, aria.Felt(address)))
	return aria.ClassHash(res), err
}

func (s *KVState) GetCompiledClass(hash aria.ClassHash) (*aria.CompiledClass, error) {
	if class, found := s.classes.Get(hash); found {
		return class, nil
	}
	data, err := s.get(key(classPrefix, aria.Felt(hash)))
	if err != nil || data == nil {
		return nil, err
	}
	class := &aria.CompiledClass{}
	if err := json.Unmarshal(data, class); err != nil {
		return nil, fmt.Errorf("corrupted class %v: %w", hash, err)
	}
	s.classes.Add(hash, class)
	return class, nil
}

// Commit persists the changes of the diff in a single batch. Zero values
// delete their entries.
func (s *KVState) Commit(diff aria.StateDiff) error {
	batch := s.db.NewBatch()
	putFelt := func(key []byte, value aria.Felt) error {
		if value.IsZero() {
			return batch.Delete(key)
		}
		bytes := value.Bytes()
		return batch.Put(key, bytes[:])
	}
	for _, w := range diff.Storage {
		if err := putFelt(storageKey(w.Address, w.Key), w.Value); err != nil {
			return err
		}
	}
	for _, n := range diff.Nonces {
		if err := putFelt(key(noncePrefix, aria.Felt(n.Address)), n.Nonce); err != nil {
			return err
		}
	}
	for _, c := range diff.ClassHashes {
		if err := putFelt(key(classHashPrefix, aria.Felt(c.Address)), aria.Felt(c.ClassHash)); err != nil {
			return err
		}
	}
	for _, c := range diff.DeclaredClasses {
		data, err := json.Marshal(c.Class)
		if err != nil {
			return err
		}
		if err := batch.Put(key(classPrefix, aria.Felt(c.ClassHash)), data); err != nil {
			return err
		}
	}
	s.log.Debug("Committing state diff", "storage", len(diff.Storage), "nonces", len(diff.Nonces),
		"deployed", len(diff.ClassHashes), "declared", len(diff.DeclaredClasses), "bytes", batch.ValueSize())
	return batch.Write()
}
