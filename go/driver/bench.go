// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.


package main

import (
	"fmt"
	"time"

	"github.com/Fantom-foundation/Aria/go/aria"
	cliUtils "github.com/Fantom-foundation/Aria/go/driver/cli"
	"github.com/Fantom-foundation/Aria/go/examples"
	"github.com/Fantom-foundation/Aria/go/interpreter/cairovm"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var BenchCmd = cli.Command{
	Action: doBench,
	Name:   "bench",
	Usage:  "Run the example programs and report their step throughput",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "argument",
			Usage: "argument passed to the examples",
			Value: 1000,
		},
		&cli.IntFlag{
			Name:  "repeat",
			Usage: "number of runs per example",
			Value: 10,
		},
		cliUtils.FilterFlag,
		cliUtils.InterpreterFlag,
	},
}

func doBench(context *cli.Context) error {
	cairovm.RegisterExperimentalInterpreterConfigurations()
	filter, err := cliUtils.FilterFlag.Fetch(context)
	if err != nil {
		return err
	}
	interpreter, err := aria.NewInterpreter(cliUtils.InterpreterFlag.Fetch(context))
	if err != nil {
		return err
	}
	argument, repeat := context.Int("argument"), context.Int("repeat")
	if repeat <= 0 {
		return fmt.Errorf("invalid number of runs: %d", repeat)
	}

	profiler, profiling := interpreter.(aria.ProfilingInterpreter)
	if profiling {
		profiler.ResetProfile()
	}

	all := examples.GetAllExamples()
	names := maps.Keys(all)
	slices.Sort(names)
	for _, name := range names {
		if !filter.MatchString(name) {
			continue
		}
		example := all[name]
		want := example.RunReference(argument)

		var result examples.Result
		start := time.Now()
		for i := 0; i < repeat; i++ {
			if result, err = example.RunOn(interpreter, argument); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		elapsed := time.Since(start)
		if result.Result != want {
			return fmt.Errorf("%s: wrong result, wanted %d, got %d", name, want, result.Result)
		}
		rate := float64(result.Steps) * float64(repeat) / elapsed.Seconds()
		fmt.Printf("%-16s steps=%-10d gas=%-12d time/run=%-12v ~%s steps per second\n",
			name, result.Steps, result.UsedGas, (elapsed / time.Duration(repeat)).Round(time.Microsecond),
			unitconv.FormatPrefix(rate, unitconv.SI, 1))
	}

	if profiling {
		profiler.DumpProfile()
	}
	return nil
}
