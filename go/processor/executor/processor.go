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
	"strings"
	"time"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/state"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

func init() {
	aria.RegisterProcessorFactory("executor", newProcessor)
}

var (
	statusCounters = map[aria.ExecutionStatus]metrics.Counter{
		aria.Succeeded: metrics.NewRegisteredCounter("executor/tx/succeeded", nil),
		aria.Reverted:  metrics.NewRegisteredCounter("executor/tx/reverted", nil),
		aria.Rejected:  metrics.NewRegisteredCounter("executor/tx/rejected", nil),
	}
	runTimer   = metrics.NewRegisteredTimer("executor/tx/time", nil)
	stepsMeter = metrics.NewRegisteredMeter("executor/steps", nil)
)

func newProcessor(interpreter aria.Interpreter) aria.Processor {
	return NewProcessor(interpreter, DefaultConfig())
}

// NewProcessor creates a transaction executor running contract classes on
// the given interpreter.
func NewProcessor(interpreter aria.Interpreter, config Config) aria.Processor {
	return &processor{
		interpreter: interpreter,
		config:      config,
		natives: map[string]aria.Interpreter{
			erc20NativeName: erc20{},
		},
		log: log.New("module", "executor"),
	}
}

type processor struct {
	interpreter aria.Interpreter
	config      Config
	natives     map[string]aria.Interpreter
	log         log.Logger
}

func (p *processor) Run(block aria.BlockContext, transaction aria.Transaction, reader aria.StateReader) (aria.Receipt, error) {
	start := time.Now()
	defer runTimer.UpdateSince(start)

	e := &execution{
		processor: p,
		block:     block,
		tx:        &transaction,
		txHash:    transaction.Hash(block.ChainID),
	}
	receipt, err := e.process(state.NewOverlay(reader))
	if err != nil {
		p.log.Error("Transaction processing aborted", "hash", e.txHash, "type", transaction.Type, "err", err)
		return aria.Receipt{}, err
	}
	statusCounters[receipt.Status].Inc(1)
	p.log.Debug("Transaction processed", "hash", e.txHash, "type", transaction.Type, "status", receipt.Status, "fee", receipt.ActualFee)
	return receipt, nil
}

func (e *execution) reject(reason string) aria.Receipt {
	e.log.Debug("Transaction rejected", "hash", e.txHash, "reason", reason)
	return aria.Receipt{
		Status:          aria.Rejected,
		TransactionHash: e.txHash,
		RevertReason:    reason,
	}
}

// process runs the phases of the transaction. The root overlay collects the
// effects of the transaction.
func (e *execution) process(root *state.Overlay) (aria.Receipt, error) {
	tx := e.tx
	reason, err := e.preValidate(root)
	if err != nil {
		return aria.Receipt{}, err
	}
	if reason != "" {
		return e.reject(reason), nil
	}

	account := tx.ContractAddress()
	if tx.HasFee() {
		if err := e.incrementNonce(root, account); err != nil {
			return aria.Receipt{}, err
		}
	}

	receipt := aria.Receipt{
		Status:          aria.Succeeded,
		TransactionHash: e.txHash,
	}
	if tx.Type == aria.DeployAccountTx || tx.Type == aria.DeployTx {
		receipt.ContractAddress = &account
	}

	// Validation of all account transactions but deploy account, which is
	// validated after its constructor.
	if tx.HasFee() && tx.Type != aria.DeployAccountTx {
		info, reason, err := e.validate(root, account)
		if err != nil {
			return aria.Receipt{}, err
		}
		if reason != "" {
			return e.validationFailed(root, reason)
		}
		receipt.ValidateCallInfo = info
	}

	pending, err := root.Snapshot()
	if err != nil {
		return aria.Receipt{}, stateError(err)
	}
	reverted := false
	revert := func(reason string) {
		if !reverted {
			pending.Discard()
			reverted = true
			receipt.Status = aria.Reverted
			receipt.RevertReason = reason
		}
	}

	switch tx.Type {
	case aria.DeclareTx:
		if err := pending.DeclareClass(tx.ClassHash, tx.Class); err != nil {
			return aria.Receipt{}, stateError(err)
		}

	case aria.DeployAccountTx:
		result, info, err := e.deploy(pending)
		if err != nil {
			return aria.Receipt{}, err
		}
		if !result.Success {
			pending.Discard()
			return e.validationFailed(root, "Deployment failed: "+describeFailure(result))
		}
		receipt.ExecuteCallInfo = info
		validateInfo, reason, err := e.validate(pending, account)
		if err != nil {
			return aria.Receipt{}, err
		}
		if reason != "" {
			pending.Discard()
			return e.validationFailed(root, reason)
		}
		receipt.ValidateCallInfo = validateInfo

	case aria.DeployTx:
		result, info, err := e.deploy(pending)
		if err != nil {
			return aria.Receipt{}, err
		}
		receipt.ExecuteCallInfo = info
		if !result.Success {
			revert(describeFailure(result))
		}

	case aria.InvokeTx, aria.L1HandlerTx:
		c, err := e.executeCall(pending)
		if err != nil {
			return aria.Receipt{}, err
		}
		result, info, err := e.runPhase(pending, e.executionSteps(), c)
		if err != nil {
			return aria.Receipt{}, err
		}
		receipt.ExecuteCallInfo = info
		if !result.Success {
			revert(describeFailure(result))
		}

	default:
		return aria.Receipt{}, fmt.Errorf("%w: unsupported transaction type %v", aria.ErrProtocolInconsistency, tx.Type)
	}

	if tx.HasFee() {
		current := func() *state.Overlay {
			if reverted {
				return root
			}
			return pending
		}
		// A fee exceeding the bounds reverts the transaction and is capped
		// at the bound.
		boundedFee := func(u *usage) (uint64, aria.Amount) {
			l1Gas, fee := e.feeOf(u)
			if reason, exceeded := e.exceedsBounds(l1Gas, fee); exceeded {
				revert(reason)
				if bound := tx.MaxFeeBound(); fee.Cmp(bound) > 0 {
					fee = bound
				}
			}
			return l1Gas, fee
		}
		usage, err := e.usage(current(), receipt.ValidateCallInfo, receipt.ExecuteCallInfo)
		if err != nil {
			return aria.Receipt{}, err
		}
		l1Gas, fee := boundedFee(&usage)

		balance, err := balanceOf(current(), e.config.FeeTokenAddress, account)
		if err != nil {
			return aria.Receipt{}, stateError(err)
		}
		if balance.Cmp(fee) < 0 && !reverted {
			revert(fmt.Sprintf("Insufficient fee token balance: balance %v, actual fee %v", balance, fee))
			if usage, err = e.usage(root, receipt.ValidateCallInfo, nil); err != nil {
				return aria.Receipt{}, err
			}
			l1Gas, fee = boundedFee(&usage)
			if balance, err = balanceOf(root, e.config.FeeTokenAddress, account); err != nil {
				return aria.Receipt{}, stateError(err)
			}
		}
		// The balance was checked against the bounds before validation, so
		// only the account's own validation can have spent it.
		if balance.Cmp(fee) < 0 {
			return aria.Receipt{}, fmt.Errorf("%w: balance %v of %v does not cover the fee %v after validation", aria.ErrProtocolInconsistency, balance, account, fee)
		}
		if !reverted {
			if err := pending.Merge(); err != nil {
				return aria.Receipt{}, stateError(err)
			}
		}

		info, err := e.transferFee(root, account, fee)
		if err != nil {
			return aria.Receipt{}, err
		}
		receipt.FeeTransferCallInfo = info
		receipt.ActualFee = fee
		receipt.Resources = usage.resources
		e.log.Debug("Fee charged", "hash", e.txHash, "l1Gas", l1Gas, "l2Gas", usage.l2Gas, "fee", fee)
	} else {
		resources := e.baseResources()
		if receipt.ExecuteCallInfo != nil {
			resources = resources.Add(receipt.ExecuteCallInfo.Resources)
		}
		receipt.Resources = resources
		if !reverted {
			if err := pending.Merge(); err != nil {
				return aria.Receipt{}, stateError(err)
			}
		}
	}

	diff, err := root.Diff()
	if err != nil {
		return aria.Receipt{}, stateError(err)
	}
	receipt.StateDiff = diff
	if reverted {
		receipt.ExecuteCallInfo = markFailed(receipt.ExecuteCallInfo)
	}
	return receipt, nil
}

// validationFailed produces the receipt of a transaction failing its
// validation. Its effects are dropped, except for the nonce increment if
// configured so.
func (e *execution) validationFailed(root *state.Overlay, reason string) (aria.Receipt, error) {
	receipt := e.reject(reason)
	if !e.config.RejectedNonceOnValidationFailure {
		return receipt, nil
	}
	account := e.tx.ContractAddress()
	nonce, err := root.GetNonce(account)
	if err != nil {
		return aria.Receipt{}, stateError(err)
	}
	receipt.StateDiff = aria.StateDiff{
		Nonces: []aria.NonceUpdate{{Address: account, Nonce: nonce}},
	}
	return receipt, nil
}

// markFailed flags the root of a discarded execution phase as failed.
func markFailed(info *aria.CallInfo) *aria.CallInfo {
	if info != nil {
		info.Failed = true
		info.Events = nil
		info.L2ToL1Messages = nil
	}
	return info
}

func describeFailure(result aria.Result) string {
	reason := "execution failed"
	if result.Failure != nil {
		reason = result.Failure.Error()
	}
	var messages []string
	for _, word := range result.Retdata {
		if msg, ok := aria.DecodeShortString(word); ok {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 && len(result.Retdata) > 0 {
		return fmt.Sprintf("%s: %s", reason, aria.FeltsToHex(result.Retdata))
	}
	if len(messages) > 0 && messages[0] != reason {
		return fmt.Sprintf("%s: %s", reason, strings.Join(messages, ", "))
	}
	return reason
}

func (e *execution) incrementNonce(root *state.Overlay, account aria.Address) error {
	nonce, err := root.GetNonce(account)
	if err != nil {
		return stateError(err)
	}
	if err := root.SetNonce(account, nonce.Add(aria.One)); err != nil {
		return stateError(err)
	}
	return nil
}

// preValidate checks the transaction against the state before it is
// processed. A non-empty result is the reason to reject the transaction.
func (e *execution) preValidate(root *state.Overlay) (string, error) {
	tx := e.tx
	account := tx.ContractAddress()
	deployed, err := root.GetClassHash(account)
	if err != nil {
		return "", stateError(err)
	}

	switch tx.Type {
	case aria.InvokeTx, aria.L1HandlerTx:
		if deployed == (aria.ClassHash{}) {
			return fmt.Sprintf("Contract %v is not deployed", account), nil
		}
	case aria.DeclareTx:
		if tx.Class == nil {
			return "Declared class is missing", nil
		}
		if tx.Class.Native != "" {
			return "Native classes can not be declared", nil
		}
		if hash := tx.Class.Hash(); hash != tx.ClassHash {
			return fmt.Sprintf("Class hash mismatch: declared %v, computed %v", tx.ClassHash, hash), nil
		}
		existing, err := root.GetCompiledClass(tx.ClassHash)
		if err != nil {
			return "", stateError(err)
		}
		if existing != nil {
			return fmt.Sprintf("Class %v is already declared", tx.ClassHash), nil
		}
		if deployed == (aria.ClassHash{}) {
			return fmt.Sprintf("Contract %v is not deployed", account), nil
		}
	case aria.DeployAccountTx, aria.DeployTx:
		class, err := root.GetCompiledClass(tx.ClassHash)
		if err != nil {
			return "", stateError(err)
		}
		if class == nil {
			return fmt.Sprintf("Class %v is not declared", tx.ClassHash), nil
		}
		if deployed != (aria.ClassHash{}) {
			return fmt.Sprintf("Contract %v is already deployed", account), nil
		}
	}

	if !tx.HasFee() {
		return "", nil
	}
	nonce, err := root.GetNonce(account)
	if err != nil {
		return "", stateError(err)
	}
	if nonce != tx.Nonce {
		return fmt.Sprintf("Invalid transaction nonce. Expected: %v, got: %v", nonce, tx.Nonce), nil
	}
	if reason := e.checkFeeBounds(); reason != "" {
		return reason, nil
	}
	balance, err := balanceOf(root, e.config.FeeTokenAddress, account)
	if err != nil {
		return "", stateError(err)
	}
	if bound := tx.MaxFeeBound(); balance.Cmp(bound) < 0 {
		return fmt.Sprintf("Resources bounds (%v) exceed balance (%v)", bound, balance), nil
	}
	return "", nil
}

// validate runs the validation entry point of the account. A non-empty
// reason reports a failed validation.
func (e *execution) validate(overlay *state.Overlay, account aria.Address) (*aria.CallInfo, string, error) {
	tx := e.tx
	hash, err := overlay.GetClassHash(account)
	if err != nil {
		return nil, "", stateError(err)
	}
	c := call{
		address:        account,
		classHash:      hash,
		entryPointType: aria.External,
		callType:       aria.Call,
		gas:            e.config.InitialGas,
	}
	switch tx.Type {
	case aria.InvokeTx:
		c.selector = aria.ValidateSelector
		c.calldata = tx.Calldata
	case aria.DeclareTx:
		c.selector = aria.ValidateDeclareSelector
		c.calldata = []aria.Felt{aria.Felt(tx.ClassHash)}
	case aria.DeployAccountTx:
		c.selector = aria.ValidateDeploySelector
		c.calldata = append([]aria.Felt{aria.Felt(tx.ClassHash), tx.ContractAddressSalt}, tx.ConstructorCalldata...)
	}
	result, info, err := e.runPhase(overlay, e.config.ValidateMaxSteps, c)
	if err != nil {
		return nil, "", err
	}
	if !result.Success {
		return info, "Validation failed: " + describeFailure(result), nil
	}
	return info, "", nil
}

// deploy runs the constructor of a deployment transaction.
func (e *execution) deploy(overlay *state.Overlay) (aria.Result, *aria.CallInfo, error) {
	e.begin(overlay, e.executionSteps())
	defer e.end()
	c, err := e.deployCall(aria.Address{}, e.tx.ClassHash, e.tx.ContractAddressSalt, e.tx.ConstructorCalldata, e.executionGas())
	if err != nil {
		if aria.IsFatal(err) {
			return aria.Result{}, nil, err
		}
		return failedResult(err, 0), nil, nil
	}
	return e.execute(c)
}

// executeCall is the root call of the execution phase of invoke and L1
// handler transactions.
func (e *execution) executeCall(overlay *state.Overlay) (call, error) {
	tx := e.tx
	hash, err := overlay.GetClassHash(tx.Sender)
	if err != nil {
		return call{}, stateError(err)
	}
	c := call{
		address:   tx.Sender,
		classHash: hash,
		callType:  aria.Call,
		calldata:  tx.Calldata,
		gas:       e.executionGas(),
	}
	if tx.Type == aria.L1HandlerTx {
		c.selector = tx.EntryPointSelector
		c.entryPointType = aria.L1Handler
	} else {
		c.selector = aria.ExecuteSelector
		c.entryPointType = aria.External
	}
	return c, nil
}

// usage collects the resources of the transaction relevant for its fee.
// A nil execution info excludes the execution phase. Failed calls are paid
// for by their resources, their messages are dropped.
func (e *execution) usage(overlay *state.Overlay, validate, execute *aria.CallInfo) (usage, error) {
	res := usage{resources: e.baseResources().Add(feeTransferResources)}
	for _, info := range []*aria.CallInfo{validate, execute} {
		if info == nil {
			continue
		}
		res.resources = res.resources.Add(info.Resources)
		res.l2Gas += info.GasConsumed
		for _, msg := range info.AllMessages() {
			res.messages++
			res.resources.MessageSegmentLength += 3 + uint64(len(msg.Payload))
		}
	}

	diff, err := overlay.Diff()
	if err != nil {
		return usage{}, stateError(err)
	}
	type slot struct {
		address aria.Address
		key     aria.StorageKey
	}
	writes := map[slot]struct{}{}
	for _, w := range diff.Storage {
		writes[slot{w.Address, w.Key}] = struct{}{}
	}
	token := e.config.FeeTokenAddress
	for _, account := range []aria.Address{e.tx.ContractAddress(), e.block.SequencerAddress} {
		writes[slot{token, BalanceKey(account)}] = struct{}{}
	}
	res.storageWrites = len(writes)

	updated := map[aria.Address]struct{}{}
	for _, n := range diff.Nonces {
		updated[n.Address] = struct{}{}
	}
	for _, c := range diff.ClassHashes {
		updated[c.Address] = struct{}{}
	}
	res.contractUpdates = len(updated)
	return res, nil
}

// transferFee moves the fee from the account to the sequencer. The fee is
// covered by the balance, a failing transfer is a protocol inconsistency.
func (e *execution) transferFee(root *state.Overlay, account aria.Address, fee aria.Amount) (*aria.CallInfo, error) {
	e.begin(root, e.config.InvokeMaxSteps)
	defer e.end()
	hash, err := e.classOf(e.config.FeeTokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: fee token unavailable: %v", aria.ErrProtocolInconsistency, err)
	}
	low, high := fee.Felts()
	result, info, err := e.execute(call{
		caller:         account,
		address:        e.config.FeeTokenAddress,
		classHash:      hash,
		selector:       aria.TransferSelector,
		entryPointType: aria.External,
		callType:       aria.Call,
		calldata:       []aria.Felt{aria.Felt(e.block.SequencerAddress), low, high},
		gas:            e.config.InitialGas,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: fee transfer of %v from %v failed: %s", aria.ErrProtocolInconsistency, fee, account, describeFailure(result))
	}
	return info, nil
}
