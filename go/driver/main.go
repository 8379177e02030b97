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
	"os"

	cliUtils "github.com/Fantom-foundation/Aria/go/driver/cli"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "aria",
		Usage:     "Aria Transaction Execution Driver",
		Copyright: "(c) 2024 Fantom Foundation",
		Flags:     []cli.Flag{},
		Commands: []*cli.Command{
			ptr(cliUtils.AddCommonFlags(RunCmd)),
			ptr(cliUtils.AddCommonFlags(GenerateCmd)),
			ptr(cliUtils.AddCommonFlags(BenchCmd)),
			&ClassHashCmd,
			&SelectorCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func ptr[T any](v T) *T {
	return &v
}
