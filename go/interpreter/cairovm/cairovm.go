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
	"time"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/ethereum/go-ethereum/metrics"
)

// Registers the Cairo VM as a possible interpreter implementation.
func init() {
	aria.MustRegisterInterpreterFactory("cairovm", func(config any) (aria.Interpreter, error) {
		cfg := Config{}
		if config != nil {
			c, ok := config.(Config)
			if !ok {
				return nil, fmt.Errorf("invalid cairovm configuration of type %T", config)
			}
			cfg = c
		}
		return NewVm(cfg)
	})
}

// RegisterExperimentalInterpreterConfigurations registers the tracing and
// profiling variants of the Cairo VM to the interpreter registry. This
// function should not be called in production code.
func RegisterExperimentalInterpreterConfigurations() {
	for _, mode := range []string{"-stats", "-logging"} {
		mode := mode
		aria.MustRegisterInterpreterFactory("cairovm"+mode, func(any) (aria.Interpreter, error) {
			config := Config{}
			if mode == "-stats" {
				config.runner = &statisticRunner{stats: newStatistics()}
			} else {
				config.runner = newLogger(nil)
			}
			return NewVm(config)
		})
	}
	aria.MustRegisterInterpreterFactory("cairovm-no-program-cache", func(any) (aria.Interpreter, error) {
		return NewVm(Config{ProgramCacheConfig: ProgramCacheConfig{CacheSize: -1}})
	})
}

type Config struct {
	ProgramCacheConfig
	runner runner
}

type cairovm struct {
	config Config
	cache  *ProgramCache
}

var (
	runTimer   = metrics.NewRegisteredTimer("cairovm/run", nil)
	stepsMeter = metrics.NewRegisteredMeter("cairovm/steps", nil)
)

func NewVm(config Config) (*cairovm, error) {
	cache, err := NewProgramCache(config.ProgramCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %v", err)
	}
	return &cairovm{config: config, cache: cache}, nil
}

func (v *cairovm) Run(params aria.Parameters) (aria.Result, error) {
	if params.Class == nil {
		return aria.Result{}, fmt.Errorf("%w: no class for %v", aria.ErrProtocolInconsistency, params.ClassHash)
	}
	if params.Class.Native != "" {
		return aria.Result{}, fmt.Errorf("%w: native class %q cannot be interpreted", aria.ErrProtocolInconsistency, params.Class.Native)
	}
	start := time.Now()
	program := v.cache.Get(params.ClassHash, params.Class)
	res, err := run(v.config, program, params)
	runTimer.UpdateSince(start)
	stepsMeter.Mark(int64(res.Resources.Steps))
	return res, err
}

func (v *cairovm) DumpProfile() {
	if statsRunner, ok := v.config.runner.(*statisticRunner); ok {
		fmt.Print(statsRunner.getSummary())
	}
}

func (v *cairovm) ResetProfile() {
	if statsRunner, ok := v.config.runner.(*statisticRunner); ok {
		statsRunner.reset()
	}
}
