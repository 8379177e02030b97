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
	"encoding/json"
	"fmt"
	"os"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/urfave/cli/v2"
)

var ClassHashCmd = cli.Command{
	Action:    doClassHash,
	Name:      "class-hash",
	Usage:     "Compute the hash of a compiled class",
	ArgsUsage: "<class.json>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "fixture",
			Usage: fmt.Sprintf("name of a fixture class instead of a file, one of %v", fixtureNames()),
		},
		&cli.StringFlag{
			Name:      "output",
			Aliases:   []string{"o"},
			Usage:     "file the class is written to as JSON",
			TakesFile: true,
		},
	},
}

var SelectorCmd = cli.Command{
	Action:    doSelector,
	Name:      "selector",
	Usage:     "Compute the selector of entry point names",
	ArgsUsage: "<name>...",
}

func doClassHash(context *cli.Context) error {
	spec := ClassSpec{Name: context.String("fixture"), File: context.Args().First()}
	if spec.Name == "" && spec.File == "" {
		return fmt.Errorf("missing class file or fixture name")
	}
	class, err := loadClass(spec)
	if err != nil {
		return err
	}
	fmt.Println(class.Hash())
	if path := context.String("output"); path != "" {
		return writeClass(path, class)
	}
	return nil
}

func doSelector(context *cli.Context) error {
	if context.NArg() == 0 {
		return fmt.Errorf("missing entry point name")
	}
	for _, name := range context.Args().Slice() {
		fmt.Printf("%v %s\n", aria.SelectorFromName(name), name)
	}
	return nil
}

// writeClass stores a compiled class as JSON, the format read by
// class-hash and scenario files.
func writeClass(path string, class *aria.CompiledClass) error {
	data, err := json.MarshalIndent(class, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
