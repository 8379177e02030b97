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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ExecutionStatus is the outcome of a transaction.
type ExecutionStatus byte

const (
	// Succeeded transactions keep all their state changes.
	Succeeded ExecutionStatus = iota
	// Reverted transactions keep only the nonce increment and the fee charge.
	Reverted
	// Rejected transactions failed before execution and change no state.
	Rejected
)

func (s ExecutionStatus) String() string {
	switch s {
	case Succeeded:
		return "SUCCEEDED"
	case Reverted:
		return "REVERTED"
	case Rejected:
		return "REJECTED"
	}
	return fmt.Sprintf("ExecutionStatus(%d)", s)
}

func (s ExecutionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ExecutionStatus) UnmarshalText(data []byte) error {
	for _, status := range []ExecutionStatus{Succeeded, Reverted, Rejected} {
		if status.String() == string(data) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("invalid execution status %q", data)
}

// CallType distinguishes regular calls from calls executing foreign code in
// the storage context of the caller.
type CallType byte

const (
	Call CallType = iota
	Delegate
)

func (c CallType) String() string {
	if c == Delegate {
		return "DELEGATE"
	}
	return "CALL"
}

func (c CallType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CallType) UnmarshalText(data []byte) error {
	switch string(data) {
	case "CALL":
		*c = Call
	case "DELEGATE":
		*c = Delegate
	default:
		return fmt.Errorf("invalid call type %q", data)
	}
	return nil
}

// OrderedEvent is an event together with its position among all events of
// the transaction.
type OrderedEvent struct {
	Order uint64 `json:"order"`
	Keys  []Felt `json:"keys"`
	Data  []Felt `json:"data"`
}

// OrderedL2ToL1Message is a message to an L1 contract together with its
// position among all messages of the transaction.
type OrderedL2ToL1Message struct {
	Order     uint64         `json:"order"`
	ToAddress common.Address `json:"to_address"`
	Payload   []Felt         `json:"payload"`
}

// CallInfo is a node of the call tree of a transaction.
type CallInfo struct {
	CallerAddress      Address        `json:"caller_address"`
	ContractAddress    Address        `json:"contract_address"`
	ClassHash          ClassHash      `json:"class_hash"`
	EntryPointSelector Felt           `json:"entry_point_selector"`
	EntryPointType     EntryPointType `json:"entry_point_type"`
	CallType           CallType       `json:"call_type"`
	Calldata           []Felt         `json:"calldata"`

	Retdata        []Felt                 `json:"retdata"`
	Events         []OrderedEvent         `json:"events,omitempty"`
	L2ToL1Messages []OrderedL2ToL1Message `json:"l2_to_l1_messages,omitempty"`

	StorageReadValues   []Felt       `json:"storage_read_values,omitempty"`
	AccessedStorageKeys []StorageKey `json:"accessed_storage_keys,omitempty"`

	// Resources covers this call and all its inner calls.
	Resources   ExecutionResources `json:"execution_resources"`
	GasConsumed Gas                `json:"gas_consumed"`
	InnerCalls  []*CallInfo        `json:"internal_calls,omitempty"`
	Failed      bool               `json:"failed"`
}

// AllEvents returns the events of the call tree of successful calls in
// emission order.
func (c *CallInfo) AllEvents() []OrderedEvent {
	var res []OrderedEvent
	c.walk(func(info *CallInfo) { res = append(res, info.Events...) })
	sortByOrder(res, func(e OrderedEvent) uint64 { return e.Order })
	return res
}

// AllMessages returns the L2 to L1 messages of the call tree of successful
// calls in emission order.
func (c *CallInfo) AllMessages() []OrderedL2ToL1Message {
	var res []OrderedL2ToL1Message
	c.walk(func(info *CallInfo) { res = append(res, info.L2ToL1Messages...) })
	sortByOrder(res, func(m OrderedL2ToL1Message) uint64 { return m.Order })
	return res
}

func (c *CallInfo) walk(visit func(*CallInfo)) {
	if c == nil || c.Failed {
		return
	}
	visit(c)
	for _, inner := range c.InnerCalls {
		inner.walk(visit)
	}
}

// Receipt summarizes the result of the execution of a transaction.
type Receipt struct {
	Status          ExecutionStatus    `json:"execution_status"`
	TransactionHash Felt               `json:"transaction_hash"`
	ActualFee       Amount             `json:"actual_fee"`
	Resources       ExecutionResources `json:"execution_resources"`
	StateDiff       StateDiff          `json:"state_diff"`
	RevertReason    string             `json:"revert_reason,omitempty"`

	ValidateCallInfo    *CallInfo `json:"validate_invocation,omitempty"`
	ExecuteCallInfo     *CallInfo `json:"execute_invocation,omitempty"`
	FeeTransferCallInfo *CallInfo `json:"fee_transfer_invocation,omitempty"`

	// ContractAddress is set for transactions deploying a contract.
	ContractAddress *Address `json:"contract_address,omitempty"`
}

// Success is true if the transaction kept its execution effects.
func (r *Receipt) Success() bool {
	return r.Status == Succeeded
}

// Events lists all events of the transaction in emission order.
func (r *Receipt) Events() []OrderedEvent {
	var res []OrderedEvent
	for _, info := range []*CallInfo{r.ValidateCallInfo, r.ExecuteCallInfo, r.FeeTransferCallInfo} {
		res = append(res, info.AllEvents()...)
	}
	return res
}

// Messages lists all L2 to L1 messages of the transaction.
func (r *Receipt) Messages() []OrderedL2ToL1Message {
	var res []OrderedL2ToL1Message
	for _, info := range []*CallInfo{r.ValidateCallInfo, r.ExecuteCallInfo, r.FeeTransferCallInfo} {
		res = append(res, info.AllMessages()...)
	}
	return res
}
