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
	"fmt"

	"github.com/Fantom-foundation/Aria/go/aria"
)

type cell struct {
	value    Value
	known    bool
	accessed bool
}

type segment struct {
	cells    []cell
	readOnly bool
	builtin  builtinRunner
}

// Memory is the write-once memory of a Cairo run, organized in segments of
// growing size. Cells are addressed by relocatable addresses until the
// final relocation assigns absolute positions.
type Memory struct {
	segments []*segment
}

func NewMemory() *Memory {
	return &Memory{}
}

// AddSegment creates a new, empty segment and returns its base address.
func (m *Memory) AddSegment() Relocatable {
	m.segments = append(m.segments, &segment{})
	return Relocatable{Segment: len(m.segments) - 1}
}

// addReadOnlySegment creates a segment holding the given values which can
// not be modified afterwards.
func (m *Memory) addReadOnlySegment(values []aria.Felt) Relocatable {
	base := m.AddSegment()
	seg := m.segments[base.Segment]
	seg.cells = make([]cell, len(values))
	for i, v := range values {
		seg.cells[i] = cell{value: FeltValue(v), known: true}
	}
	seg.readOnly = true
	return base
}

// addBuiltinSegment creates a segment whose cells are deduced and validated
// by the given builtin.
func (m *Memory) addBuiltinSegment(builtin builtinRunner) Relocatable {
	base := m.AddSegment()
	m.segments[base.Segment].builtin = builtin
	return base
}

func (m *Memory) NumSegments() int {
	return len(m.segments)
}

func (m *Memory) segment(addr Relocatable) (*segment, error) {
	if addr.Segment < 0 || addr.Segment >= len(m.segments) {
		return nil, fmt.Errorf("%w: unknown segment in address %v", aria.ErrMemory, addr)
	}
	return m.segments[addr.Segment], nil
}

// Get returns the value stored at the given address. Unknown cells of
// builtin segments are deduced by the builtin if possible. The result is
// false if the cell is not known.
func (m *Memory) Get(addr Relocatable) (Value, bool, error) {
	seg, err := m.segment(addr)
	if err != nil {
		return Value{}, false, err
	}
	if addr.Offset < uint64(len(seg.cells)) && seg.cells[addr.Offset].known {
		return seg.cells[addr.Offset].value, true, nil
	}
	if seg.builtin == nil {
		return Value{}, false, nil
	}
	value, found, err := seg.builtin.deduce(m, addr)
	if err != nil || !found {
		return Value{}, false, err
	}
	if err := m.Set(addr, value); err != nil {
		return Value{}, false, err
	}
	return value, true, nil
}

// GetFelt returns the field element stored at the given address. Unknown
// cells and relocatables are execution errors.
func (m *Memory) GetFelt(addr Relocatable) (aria.Felt, error) {
	value, known, err := m.Get(addr)
	if err != nil {
		return aria.Felt{}, err
	}
	if !known {
		return aria.Felt{}, fmt.Errorf("%w: unknown value at %v", aria.ErrExecution, addr)
	}
	f, ok := value.Felt()
	if !ok {
		return aria.Felt{}, fmt.Errorf("%w: expected felt at %v, got %v", aria.ErrExecution, addr, value)
	}
	return f, nil
}

// GetPtr returns the relocatable stored at the given address.
func (m *Memory) GetPtr(addr Relocatable) (Relocatable, error) {
	value, known, err := m.Get(addr)
	if err != nil {
		return Relocatable{}, err
	}
	if !known {
		return Relocatable{}, fmt.Errorf("%w: unknown value at %v", aria.ErrExecution, addr)
	}
	r, ok := value.Ptr()
	if !ok {
		return Relocatable{}, fmt.Errorf("%w: expected relocatable at %v, got %v", aria.ErrExecution, addr, value)
	}
	return r, nil
}

// GetRange reads the felts in [start, end).
func (m *Memory) GetRange(start, end Relocatable) ([]aria.Felt, error) {
	if start.Segment != end.Segment || end.Offset < start.Offset {
		return nil, fmt.Errorf("%w: invalid range [%v, %v)", aria.ErrExecution, start, end)
	}
	res := make([]aria.Felt, 0, end.Offset-start.Offset)
	for addr := start; addr.Offset < end.Offset; addr = addr.Add(1) {
		f, err := m.GetFelt(addr)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, nil
}

// Set writes a value to a cell. Cells may only be written once; writing the
// same value again is permitted.
func (m *Memory) Set(addr Relocatable, value Value) error {
	seg, err := m.segment(addr)
	if err != nil {
		return err
	}
	if seg.readOnly {
		return fmt.Errorf("%w: write to read-only segment at %v", aria.ErrMemory, addr)
	}
	if addr.Offset >= uint64(len(seg.cells)) {
		if addr.Offset >= maxSegmentSize {
			return fmt.Errorf("%w: address %v exceeds segment size limit", aria.ErrMemory, addr)
		}
		size := max(2*uint64(len(seg.cells)), addr.Offset+1, 16)
		grown := make([]cell, addr.Offset+1, size)
		copy(grown, seg.cells)
		seg.cells = grown
	}
	c := &seg.cells[addr.Offset]
	if c.known {
		if c.value != value {
			return fmt.Errorf("%w: inconsistent write at %v: %v != %v", aria.ErrMemory, addr, c.value, value)
		}
		return nil
	}
	if seg.builtin != nil {
		if err := seg.builtin.validate(m, addr, value); err != nil {
			return err
		}
	}
	c.value = value
	c.known = true
	return nil
}

// Load writes the given values to consecutive cells starting at base and
// returns the address after the last written cell.
func (m *Memory) Load(base Relocatable, values []Value) (Relocatable, error) {
	for i, v := range values {
		if err := m.Set(base.Add(uint64(i)), v); err != nil {
			return Relocatable{}, err
		}
	}
	return base.Add(uint64(len(values))), nil
}

// LoadFelts is like Load for a list of field elements.
func (m *Memory) LoadFelts(base Relocatable, values []aria.Felt) (Relocatable, error) {
	for i, v := range values {
		if err := m.Set(base.Add(uint64(i)), FeltValue(v)); err != nil {
			return Relocatable{}, err
		}
	}
	return base.Add(uint64(len(values))), nil
}

// MarkAccessed records that a cell was used by an instruction.
func (m *Memory) MarkAccessed(addr Relocatable) {
	if addr.Segment < 0 || addr.Segment >= len(m.segments) {
		return
	}
	seg := m.segments[addr.Segment]
	if addr.Offset < uint64(len(seg.cells)) {
		seg.cells[addr.Offset].accessed = true
	}
}

// SegmentUsedSize is the size of the segment up to its last written cell.
func (m *Memory) SegmentUsedSize(index int) uint64 {
	if index < 0 || index >= len(m.segments) {
		return 0
	}
	cells := m.segments[index].cells
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i].known {
			return uint64(i + 1)
		}
	}
	return 0
}

// Holes counts the cells within the used size of the given segments that
// were not accessed by any instruction.
func (m *Memory) Holes(segments ...int) uint64 {
	res := uint64(0)
	for _, index := range segments {
		size := m.SegmentUsedSize(index)
		accessed := uint64(0)
		for _, c := range m.segments[index].cells[:size] {
			if c.accessed {
				accessed++
			}
		}
		res += size - accessed
	}
	return res
}

// RelocatedMemory is the linear memory produced by the relocation pass.
// Unknown cells are nil.
type RelocatedMemory struct {
	Bases []uint64
	Cells []*aria.Felt
}

// Relocate assigns consecutive absolute base addresses to all segments,
// starting at 1, and resolves all relocatable values. References to unknown
// segments or beyond the end of their segment are memory errors.
func (m *Memory) Relocate() (RelocatedMemory, error) {
	sizes := make([]uint64, len(m.segments))
	bases := make([]uint64, len(m.segments))
	next := uint64(1)
	for i := range m.segments {
		sizes[i] = m.SegmentUsedSize(i)
		bases[i] = next
		next += sizes[i]
	}
	res := RelocatedMemory{Bases: bases, Cells: make([]*aria.Felt, next)}
	for i, seg := range m.segments {
		for j, c := range seg.cells[:sizes[i]] {
			if !c.known {
				continue
			}
			value := c.value.felt
			if ptr, isPtr := c.value.Ptr(); isPtr {
				if ptr.Segment < 0 || ptr.Segment >= len(m.segments) || ptr.Offset > sizes[ptr.Segment] {
					return RelocatedMemory{}, fmt.Errorf("%w: unresolved reference %v at %d:%d", aria.ErrMemory, ptr, i, j)
				}
				value = aria.NewFelt(bases[ptr.Segment] + ptr.Offset)
			}
			res.Cells[bases[i]+uint64(j)] = &value
		}
	}
	return res, nil
}

// maxSegmentSize bounds the offsets written within a segment.
const maxSegmentSize = 1 << 32
