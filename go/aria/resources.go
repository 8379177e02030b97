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
	"encoding/json"
	"fmt"
	"strings"
)

// Builtin enumerates the specialized computation units of the Cairo machine.
type Builtin byte

const (
	BuiltinOutput Builtin = iota
	BuiltinPedersen
	BuiltinRangeCheck
	BuiltinEcdsa
	BuiltinBitwise
	BuiltinEcOp
	NumBuiltins int = iota
)

var builtinNames = [NumBuiltins]string{
	BuiltinOutput:     "output",
	BuiltinPedersen:   "pedersen",
	BuiltinRangeCheck: "range_check",
	BuiltinEcdsa:      "ecdsa",
	BuiltinBitwise:    "bitwise",
	BuiltinEcOp:       "ec_op",
}

func (b Builtin) String() string {
	if int(b) < NumBuiltins {
		return builtinNames[b]
	}
	return fmt.Sprintf("builtin(%d)", b)
}

// ParseBuiltin resolves a builtin by its canonical name. The suffix
// "_builtin" used by some compilers is accepted.
func ParseBuiltin(name string) (Builtin, error) {
	name = strings.TrimSuffix(strings.ToLower(name), "_builtin")
	for i, n := range builtinNames {
		if n == name {
			return Builtin(i), nil
		}
	}
	return 0, fmt.Errorf("unknown builtin %q", name)
}

func (b Builtin) MarshalText() ([]byte, error) {
	if int(b) >= NumBuiltins {
		return nil, fmt.Errorf("unknown builtin %d", b)
	}
	return []byte(b.String()), nil
}

func (b *Builtin) UnmarshalText(data []byte) error {
	res, err := ParseBuiltin(string(data))
	if err != nil {
		return err
	}
	*b = res
	return nil
}

// ExecutionResources is the resource vector metered during execution. All
// entries are additive across the call tree.
type ExecutionResources struct {
	Steps                uint64
	MemoryHoles          uint64
	Builtins             [NumBuiltins]uint64
	MessageSegmentLength uint64
	L1HandlerPayloadSize uint64
}

// Add returns the element-wise sum of r and o.
func (r ExecutionResources) Add(o ExecutionResources) ExecutionResources {
	r.Steps += o.Steps
	r.MemoryHoles += o.MemoryHoles
	for i := range r.Builtins {
		r.Builtins[i] += o.Builtins[i]
	}
	r.MessageSegmentLength += o.MessageSegmentLength
	r.L1HandlerPayloadSize += o.L1HandlerPayloadSize
	return r
}

// Sub returns the element-wise difference of r and o. Entries saturate at
// zero.
func (r ExecutionResources) Sub(o ExecutionResources) ExecutionResources {
	sub := func(a, b uint64) uint64 {
		if a < b {
			return 0
		}
		return a - b
	}
	r.Steps = sub(r.Steps, o.Steps)
	r.MemoryHoles = sub(r.MemoryHoles, o.MemoryHoles)
	for i := range r.Builtins {
		r.Builtins[i] = sub(r.Builtins[i], o.Builtins[i])
	}
	r.MessageSegmentLength = sub(r.MessageSegmentLength, o.MessageSegmentLength)
	r.L1HandlerPayloadSize = sub(r.L1HandlerPayloadSize, o.L1HandlerPayloadSize)
	return r
}

// Covers reports whether every entry of r is at least the corresponding
// entry of o.
func (r ExecutionResources) Covers(o ExecutionResources) bool {
	if r.Steps < o.Steps || r.MemoryHoles < o.MemoryHoles ||
		r.MessageSegmentLength < o.MessageSegmentLength ||
		r.L1HandlerPayloadSize < o.L1HandlerPayloadSize {
		return false
	}
	for i := range r.Builtins {
		if r.Builtins[i] < o.Builtins[i] {
			return false
		}
	}
	return true
}

func (r ExecutionResources) String() string {
	builder := strings.Builder{}
	fmt.Fprintf(&builder, "steps=%d holes=%d", r.Steps, r.MemoryHoles)
	for i, count := range r.Builtins {
		if count > 0 {
			fmt.Fprintf(&builder, " %v=%d", Builtin(i), count)
		}
	}
	if r.MessageSegmentLength > 0 {
		fmt.Fprintf(&builder, " l1_messages=%d", r.MessageSegmentLength)
	}
	if r.L1HandlerPayloadSize > 0 {
		fmt.Fprintf(&builder, " l1_payload=%d", r.L1HandlerPayloadSize)
	}
	return builder.String()
}

type jsonResources struct {
	Steps                uint64             `json:"n_steps"`
	MemoryHoles          uint64             `json:"n_memory_holes"`
	Builtins             map[Builtin]uint64 `json:"builtin_instance_counter,omitempty"`
	MessageSegmentLength uint64             `json:"message_segment_length,omitempty"`
	L1HandlerPayloadSize uint64             `json:"l1_handler_payload_size,omitempty"`
}

func (r ExecutionResources) MarshalJSON() ([]byte, error) {
	res := jsonResources{
		Steps:                r.Steps,
		MemoryHoles:          r.MemoryHoles,
		MessageSegmentLength: r.MessageSegmentLength,
		L1HandlerPayloadSize: r.L1HandlerPayloadSize,
	}
	for i, count := range r.Builtins {
		if count > 0 {
			if res.Builtins == nil {
				res.Builtins = map[Builtin]uint64{}
			}
			res.Builtins[Builtin(i)] = count
		}
	}
	return json.Marshal(res)
}

func (r *ExecutionResources) UnmarshalJSON(data []byte) error {
	var res jsonResources
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	*r = ExecutionResources{
		Steps:                res.Steps,
		MemoryHoles:          res.MemoryHoles,
		MessageSegmentLength: res.MessageSegmentLength,
		L1HandlerPayloadSize: res.L1HandlerPayloadSize,
	}
	for builtin, count := range res.Builtins {
		r.Builtins[builtin] = count
	}
	return nil
}
