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
	"fmt"

	"github.com/Fantom-foundation/Aria/go/aria"
)

// ErrOverlayClosed is returned when using an overlay that was merged or
// discarded.
const ErrOverlayClosed = aria.ConstError("overlay closed")

type slot struct {
	address aria.Address
	key     aria.StorageKey
}

// Overlay is a layer of pending state changes on top of a parent overlay or
// a committed StateReader. Reads fall through the chain of parents; writes
// are kept local until the overlay is merged into its parent. Overlays are
// not safe for concurrent use.
type Overlay struct {
	parent *Overlay
	reader aria.StateReader

	storage     map[slot]aria.Felt
	nonces      map[aria.Address]aria.Felt
	classHashes map[aria.Address]aria.ClassHash
	declared    map[aria.ClassHash]*aria.CompiledClass

	closed bool
}

// NewOverlay creates a root overlay on top of the given reader.
func NewOverlay(reader aria.StateReader) *Overlay {
	return newOverlay(nil, reader)
}

func newOverlay(parent *Overlay, reader aria.StateReader) *Overlay {
	return &Overlay{
		parent:      parent,
		reader:      reader,
		storage:     map[slot]aria.Felt{},
		nonces:      map[aria.Address]aria.Felt{},
		classHashes: map[aria.Address]aria.ClassHash{},
		declared:    map[aria.ClassHash]*aria.CompiledClass{},
	}
}

// Snapshot creates a child overlay. The child sees all writes of this
// overlay; its own writes stay invisible to this overlay until merged.
func (o *Overlay) Snapshot() (*Overlay, error) {
	if o.closed {
		return nil, ErrOverlayClosed
	}
	return newOverlay(o, o.reader), nil
}

// Merge folds the writes of this overlay into its parent and closes it.
func (o *Overlay) Merge() error {
	if o.closed {
		return ErrOverlayClosed
	}
	if o.parent == nil {
		return fmt.Errorf("cannot merge root overlay")
	}
	if o.parent.closed {
		return fmt.Errorf("%w: parent", ErrOverlayClosed)
	}
	for k, v := range o.storage {
		o.parent.storage[k] = v
	}
	for k, v := range o.nonces {
		o.parent.nonces[k] = v
	}
	for k, v := range o.classHashes {
		o.parent.classHashes[k] = v
	}
	for k, v := range o.declared {
		o.parent.declared[k] = v
	}
	o.close()
	return nil
}

// Discard drops the writes of this overlay and closes it.
func (o *Overlay) Discard() {
	o.close()
}

func (o *Overlay) close() {
	o.closed = true
	o.storage, o.nonces, o.classHashes, o.declared = nil, nil, nil, nil
}

func (o *Overlay) Closed() bool {
	return o.closed
}

// lookup walks the chain of overlays and falls back to the reader if no
// overlay holds the value.
func lookup[K comparable, V any](o *Overlay, layer func(*Overlay) map[K]V, key K, read func() (V, error)) (V, error) {
	var zero V
	for cur := o; cur != nil; cur = cur.parent {
		if cur.closed {
			return zero, ErrOverlayClosed
		}
		if v, found := layer(cur)[key]; found {
			return v, nil
		}
	}
	return read()
}

func (o *Overlay) GetStorage(address aria.Address, key aria.StorageKey) (aria.Felt, error) {
	return lookup(o, func(o *Overlay) map[slot]aria.Felt { return o.storage }, slot{address, key},
		func() (aria.Felt, error) { return o.reader.GetStorage(address, key) })
}

func (o *Overlay) GetNonce(address aria.Address) (aria.Felt, error) {
	return lookup(o, func(o *Overlay) map[aria.Address]aria.Felt { return o.nonces }, address,
		func() (aria.Felt, error) { return o.reader.GetNonce(address) })
}

func (o *Overlay) GetClassHash(address aria.Address) (aria.ClassHash, error) {
	return lookup(o, func(o *Overlay) map[aria.Address]aria.ClassHash { return o.classHashes }, address,
		func() (aria.ClassHash, error) { return o.reader.GetClassHash(address) })
}

func (o *Overlay) GetCompiledClass(hash aria.ClassHash) (*aria.CompiledClass, error) {
	return lookup(o, func(o *Overlay) map[aria.ClassHash]*aria.CompiledClass { return o.declared }, hash,
		func() (*aria.CompiledClass, error) { return o.reader.GetCompiledClass(hash) })
}

func (o *Overlay) SetStorage(address aria.Address, key aria.StorageKey, value aria.Felt) error {
	if o.closed {
		return ErrOverlayClosed
	}
	o.storage[slot{address, key}] = value
	return nil
}

func (o *Overlay) SetNonce(address aria.Address, nonce aria.Felt) error {
	if o.closed {
		return ErrOverlayClosed
	}
	o.nonces[address] = nonce
	return nil
}

func (o *Overlay) SetClassHash(address aria.Address, hash aria.ClassHash) error {
	if o.closed {
		return ErrOverlayClosed
	}
	o.classHashes[address] = hash
	return nil
}

// DeclareClass adds a compiled class under the given hash.
func (o *Overlay) DeclareClass(hash aria.ClassHash, class *aria.CompiledClass) error {
	if o.closed {
		return ErrOverlayClosed
	}
	o.declared[hash] = class
	return nil
}

// Diff returns the changes of this overlay and all its ancestors relative to
// the backing reader. Writes restoring the committed value are omitted.
func (o *Overlay) Diff() (aria.StateDiff, error) {
	if o.closed {
		return aria.StateDiff{}, ErrOverlayClosed
	}
	chain := []*Overlay{}
	for cur := o; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	// Collect effective writes, inner overlays take precedence.
	storage := map[slot]aria.Felt{}
	nonces := map[aria.Address]aria.Felt{}
	classHashes := map[aria.Address]aria.ClassHash{}
	declared := map[aria.ClassHash]*aria.CompiledClass{}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].storage {
			storage[k] = v
		}
		for k, v := range chain[i].nonces {
			nonces[k] = v
		}
		for k, v := range chain[i].classHashes {
			classHashes[k] = v
		}
		for k, v := range chain[i].declared {
			declared[k] = v
		}
	}

	res := aria.StateDiff{}
	for k, v := range storage {
		committed, err := o.reader.GetStorage(k.address, k.key)
		if err != nil {
			return aria.StateDiff{}, err
		}
		if committed != v {
			res.Storage = append(res.Storage, aria.StorageWrite{Address: k.address, Key: k.key, Value: v})
		}
	}
	for address, nonce := range nonces {
		committed, err := o.reader.GetNonce(address)
		if err != nil {
			return aria.StateDiff{}, err
		}
		if committed != nonce {
			res.Nonces = append(res.Nonces, aria.NonceUpdate{Address: address, Nonce: nonce})
		}
	}
	for address, hash := range classHashes {
		committed, err := o.reader.GetClassHash(address)
		if err != nil {
			return aria.StateDiff{}, err
		}
		if committed != hash {
			res.ClassHashes = append(res.ClassHashes, aria.ClassUpdate{Address: address, ClassHash: hash})
		}
	}
	for hash, class := range declared {
		committed, err := o.reader.GetCompiledClass(hash)
		if err != nil {
			return aria.StateDiff{}, err
		}
		if committed == nil {
			res.DeclaredClasses = append(res.DeclaredClasses, aria.DeclaredClass{ClassHash: hash, Class: class})
		}
	}
	res.Sort()
	return res, nil
}
