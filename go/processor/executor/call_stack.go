// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package executor

import (
	"fmt"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/state"
)

// frame is an active call of a transaction phase.
type frame struct {
	address   aria.Address
	classHash aria.ClassHash
	class     *aria.CompiledClass
	overlay   *state.Overlay
	info      *aria.CallInfo
	// inner accumulates the resources of the completed nested calls.
	inner aria.ExecutionResources
}

// callStack is the stack of active frames of a transaction phase. Frames
// live in an arena indexed by depth, the root frame at depth 0.
type callStack struct {
	root     *state.Overlay
	frames   []frame
	maxDepth int
}

func newCallStack(root *state.Overlay, maxDepth int) *callStack {
	return &callStack{
		root:     root,
		frames:   make([]frame, 0, 8),
		maxDepth: maxDepth,
	}
}

func (s *callStack) depth() int {
	return len(s.frames)
}

// top returns the innermost frame, nil if the stack is empty.
func (s *callStack) top() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

// overlay is the state seen by the innermost frame.
func (s *callStack) overlay() *state.Overlay {
	if top := s.top(); top != nil {
		return top.overlay
	}
	return s.root
}

// at returns the frame at the given depth. Frame pointers are invalidated
// by push, frames are to be looked up by depth instead.
func (s *callStack) at(depth int) *frame {
	return &s.frames[depth]
}

// push opens a frame on a snapshot of the current state and returns its
// depth.
func (s *callStack) push(address aria.Address, classHash aria.ClassHash, class *aria.CompiledClass, info *aria.CallInfo) (int, error) {
	if len(s.frames) >= s.maxDepth {
		return 0, fmt.Errorf("%w: %d", aria.ErrCallDepthExceeded, s.maxDepth)
	}
	overlay, err := s.overlay().Snapshot()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", aria.ErrProtocolInconsistency, err)
	}
	s.frames = append(s.frames, frame{
		address:   address,
		classHash: classHash,
		class:     class,
		overlay:   overlay,
		info:      info,
	})
	return len(s.frames) - 1, nil
}

// pop closes the innermost frame. The frame's writes are merged into the
// caller on success and discarded otherwise. The resources of the frame and
// its nested calls are accounted to the caller.
func (s *callStack) pop(own aria.ExecutionResources, success bool) (*aria.CallInfo, error) {
	top := s.top()
	if top == nil {
		return nil, fmt.Errorf("%w: pop of empty call stack", aria.ErrProtocolInconsistency)
	}
	info := top.info
	info.Resources = own.Add(top.inner)
	info.Failed = !success
	if success {
		if err := top.overlay.Merge(); err != nil {
			return nil, fmt.Errorf("%w: %v", aria.ErrProtocolInconsistency, err)
		}
	} else {
		top.overlay.Discard()
		info.Events = nil
		info.L2ToL1Messages = nil
	}
	s.frames[len(s.frames)-1] = frame{}
	s.frames = s.frames[:len(s.frames)-1]
	if parent := s.top(); parent != nil {
		parent.inner = parent.inner.Add(info.Resources)
		parent.info.InnerCalls = append(parent.info.InnerCalls, info)
	}
	return info, nil
}
