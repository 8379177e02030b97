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
	"os"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultIsValid(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("default configuration is invalid: %v", err)
	}
	for _, tx := range []aria.TransactionType{aria.InvokeTx, aria.DeclareTx, aria.DeployAccountTx, aria.DeployTx, aria.L1HandlerTx} {
		if _, found := config.OSResources[tx]; !found {
			t.Errorf("missing OS resources of %v", tx)
		}
	}
}

func TestConfig_ValidateDetectsInvalidLimits(t *testing.T) {
	tests := map[string]func(*Config){
		"depth":    func(c *Config) { c.MaxCallDepth = 0 },
		"invoke":   func(c *Config) { c.InvokeMaxSteps = 0 },
		"validate": func(c *Config) { c.ValidateMaxSteps = 0 },
		"syscalls": func(c *Config) { c.GasCosts.Syscalls = nil },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig()
			modify(&config)
			if err := config.Validate(); err == nil {
				t.Errorf("invalid configuration not detected")
			}
		})
	}
}

func TestConfig_LoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"failure_policy": "propagate", "max_call_depth": 7, "fees": {"step_weight": 10}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, PropagateToRoot, config.FailurePolicy)
	require.Equal(t, 7, config.MaxCallDepth)
	require.Equal(t, uint64(10), config.Fees.StepWeight)
	require.Equal(t, DefaultConfig().InvokeMaxSteps, config.InvokeMaxSteps)
	require.Equal(t, DefaultFeeTokenAddress, config.FeeTokenAddress)
}

func TestConfig_LoadRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Errorf("missing file not detected")
	}

	tests := map[string]string{
		"syntax": `{"max_call_depth": `,
		"policy": `{"failure_policy": "ignore"}`,
		"depth":  `{"max_call_depth": -1}`,
	}
	for name, data := range tests {
		path := filepath.Join(dir, name+".json")
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("invalid configuration %s not detected", name)
		}
	}
}

func TestFailurePolicy_TextRoundTrip(t *testing.T) {
	for _, policy := range []FailurePolicy{CatchAtCallBoundary, PropagateToRoot} {
		text, err := policy.MarshalText()
		require.NoError(t, err)
		var restored FailurePolicy
		require.NoError(t, restored.UnmarshalText(text))
		require.Equal(t, policy, restored)
	}
	if got := FailurePolicy(7).String(); got != "FailurePolicy(7)" {
		t.Errorf("unexpected name of unknown policy: %s", got)
	}
}
