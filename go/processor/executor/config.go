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
	"encoding/json"
	"fmt"
	"os"

	"github.com/Fantom-foundation/Aria/go/aria"
)

// FailurePolicy decides how far a recoverable failure of a nested call
// reaches.
type FailurePolicy byte

const (
	// CatchAtCallBoundary reports callee failures to the calling program,
	// which may inspect them and continue.
	CatchAtCallBoundary FailurePolicy = iota
	// PropagateToRoot fails every frame from the failing callee up to the
	// root call of the transaction phase.
	PropagateToRoot
)

func (p FailurePolicy) String() string {
	switch p {
	case CatchAtCallBoundary:
		return "catch"
	case PropagateToRoot:
		return "propagate"
	}
	return fmt.Sprintf("FailurePolicy(%d)", p)
}

func (p FailurePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *FailurePolicy) UnmarshalText(data []byte) error {
	switch string(data) {
	case "catch":
		*p = CatchAtCallBoundary
	case "propagate":
		*p = PropagateToRoot
	default:
		return fmt.Errorf("invalid failure policy %q", data)
	}
	return nil
}

// Config are the versioned constants of the executor.
type Config struct {
	FailurePolicy FailurePolicy `json:"failure_policy"`
	MaxCallDepth  int           `json:"max_call_depth"`

	// Step limits of the execution and the validation phase.
	InvokeMaxSteps   uint64 `json:"invoke_max_steps"`
	ValidateMaxSteps uint64 `json:"validate_max_steps"`

	// InitialGas is the gas budget of calls not bounded by L2 gas: the
	// validation phase, version 1 transactions, and the fee transfer.
	InitialGas aria.Gas `json:"initial_gas"`

	FeeTokenAddress aria.Address `json:"fee_token_address"`

	// RejectedNonceOnValidationFailure keeps the nonce increment of
	// transactions failing validation, as older protocol versions did.
	RejectedNonceOnValidationFailure bool `json:"rejected_nonce_on_validation_failure"`

	Fees     FeeConfig     `json:"fees"`
	GasCosts aria.GasCosts `json:"gas_costs"`

	// OSResources are the resources spent by the operating system on each
	// type of transaction, excluding the contract calls.
	OSResources map[aria.TransactionType]aria.ExecutionResources `json:"os_resources"`
	// CalldataSteps is charged per word of calldata and signature.
	CalldataSteps uint64 `json:"calldata_steps"`
}

func osResources(steps, rangeChecks, pedersen uint64) aria.ExecutionResources {
	res := aria.ExecutionResources{Steps: steps}
	res.Builtins[aria.BuiltinRangeCheck] = rangeChecks
	res.Builtins[aria.BuiltinPedersen] = pedersen
	return res
}

// DefaultFeeTokenAddress is the address of the fee token in the default
// configuration.
var DefaultFeeTokenAddress = aria.Address(aria.MustFeltFromHex("0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"))

func DefaultConfig() Config {
	return Config{
		FailurePolicy:    CatchAtCallBoundary,
		MaxCallDepth:     100,
		InvokeMaxSteps:   4_000_000,
		ValidateMaxSteps: 1_000_000,
		InitialGas:       1_000_000_000,
		FeeTokenAddress:  DefaultFeeTokenAddress,
		Fees:             DefaultFeeConfig(),
		GasCosts:         aria.DefaultGasCosts(),
		OSResources: map[aria.TransactionType]aria.ExecutionResources{
			aria.InvokeTx:        osResources(3203, 74, 0),
			aria.DeclareTx:       osResources(2839, 63, 15),
			aria.DeployAccountTx: osResources(3612, 83, 23),
			aria.DeployTx:        osResources(0, 0, 0),
			aria.L1HandlerTx:     osResources(1233, 26, 0),
		},
		CalldataSteps: 8,
	}
}

// LoadConfig reads a configuration from a JSON file. Missing fields keep
// their default values.
func LoadConfig(path string) (Config, error) {
	res := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return Config{}, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return res, res.Validate()
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.MaxCallDepth <= 0 {
		return fmt.Errorf("max call depth must be positive, got %d", c.MaxCallDepth)
	}
	if c.InvokeMaxSteps == 0 || c.ValidateMaxSteps == 0 {
		return fmt.Errorf("step limits must be positive")
	}
	if c.GasCosts.Syscalls == nil {
		return fmt.Errorf("missing syscall gas costs")
	}
	return nil
}
