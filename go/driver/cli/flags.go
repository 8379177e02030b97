// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.


package cliUtils

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"runtime/pprof"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

type filterFlagType struct {
	cli.StringFlag
}

var FilterFlag = &filterFlagType{
	cli.StringFlag{
		Name:    "filter",
		Aliases: []string{"f"},
		Usage:   "process only items which name matches the given regex",
		Value:   ".*",
	},
}

func (f *filterFlagType) Fetch(context *cli.Context) (*regexp.Regexp, error) {
	return regexp.Compile(context.String(f.Name))
}

type workersFlagType struct {
	cli.IntFlag
}

var WorkersFlag = &workersFlagType{
	cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"j"},
		Usage:   "number of transactions processed simultaneously in parallel mode",
		Value:   runtime.NumCPU(),
	},
}

func (f *workersFlagType) Fetch(context *cli.Context) int {
	if workers := context.Int(f.Name); workers > 0 {
		return workers
	}
	return runtime.NumCPU()
}

type seedFlagType struct {
	cli.Uint64Flag
}

var SeedFlag = &seedFlagType{
	cli.Uint64Flag{
		Name:    "seed",
		Aliases: []string{"s"},
		Usage:   "seed for the random number generator",
	},
}

func (f *seedFlagType) Fetch(context *cli.Context) uint64 {
	return context.Uint64(f.Name)
}

type interpreterFlagType struct {
	cli.StringFlag
}

var InterpreterFlag = &interpreterFlagType{
	cli.StringFlag{
		Name:  "interpreter",
		Usage: "name of the interpreter running the contracts",
		Value: "cairovm",
	},
}

func (f *interpreterFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type cpuProfileType struct {
	cli.StringFlag
}

var CpuProfileFlag = &cpuProfileType{
	cli.StringFlag{
		Name:      "cpuprofile",
		Usage:     "store CPU profile in the provided filename",
		TakesFile: true,
	},
}

func (f *cpuProfileType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type verbosityFlagType struct {
	cli.IntFlag
}

var VerbosityFlag = &verbosityFlagType{
	cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	},
}

func (f *verbosityFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

var commonFlags = []cli.Flag{
	CpuProfileFlag,
	VerbosityFlag,
}

// AddCommonFlags adds the profiling and logging flags to the command.
func AddCommonFlags(command cli.Command) cli.Command {
	command.Flags = append(command.Flags, commonFlags...)

	action := command.Action
	command.Action = func(ctx *cli.Context) (err error) {
		SetupLogging(VerbosityFlag.Fetch(ctx))

		if cpuprofileFilename := CpuProfileFlag.Fetch(ctx); cpuprofileFilename != "" {
			f, err := os.Create(cpuprofileFilename)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		return action(ctx)
	}
	return command
}

// SetupLogging installs a terminal logger with the given verbosity as the
// default logger.
func SetupLogging(verbosity int) {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), true)))
}
