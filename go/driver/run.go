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
	"time"

	"github.com/Fantom-foundation/Aria/go/aria"
	cliUtils "github.com/Fantom-foundation/Aria/go/driver/cli"
	_ "github.com/Fantom-foundation/Aria/go/interpreter/cairovm"
	"github.com/Fantom-foundation/Aria/go/processor/executor"
	"github.com/Fantom-foundation/Aria/go/state"
	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Execute the transactions of a scenario file",
	ArgsUsage: "<scenario.json>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      "db",
			Usage:     "directory of a LevelDB database keeping the state, an in-memory state is used if empty",
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:      "config",
			Usage:     "JSON file overriding the default executor configuration",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:  "parallel",
			Usage: "execute the transactions concurrently, only valid for independent transactions",
		},
		&cli.BoolFlag{
			Name:  "receipts",
			Usage: "print the full receipts as JSON",
		},
		cliUtils.WorkersFlag,
		cliUtils.InterpreterFlag,
	},
}

func openDatabase(path string) (ethdb.KeyValueStore, error) {
	if path == "" {
		return memorydb.New(), nil
	}
	return leveldb.New(path, 16, 16, "aria", false)
}

func loadConfig(path string) (executor.Config, error) {
	if path == "" {
		return executor.DefaultConfig(), nil
	}
	return executor.LoadConfig(path)
}

func doRun(context *cli.Context) error {
	path := context.Args().First()
	if path == "" {
		return fmt.Errorf("missing scenario file")
	}
	scenario, err := LoadScenario(path)
	if err != nil {
		return err
	}
	config, err := loadConfig(context.String("config"))
	if err != nil {
		return err
	}
	interpreter, err := aria.NewInterpreter(cliUtils.InterpreterFlag.Fetch(context))
	if err != nil {
		return err
	}
	processor := executor.NewProcessor(interpreter, config)

	db, err := openDatabase(context.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	kv, err := state.NewKVState(db)
	if err != nil {
		return err
	}
	genesis, err := scenario.Genesis(config)
	if err != nil {
		return err
	}
	if err := kv.Commit(genesis); err != nil {
		return fmt.Errorf("failed to write initial state: %w", err)
	}

	log.Info("Executing scenario", "file", path, "transactions", len(scenario.Transactions), "parallel", context.Bool("parallel"))
	start := time.Now()
	var (
		receipts []aria.Receipt
		diff     aria.StateDiff
	)
	if context.Bool("parallel") {
		receipts, diff, err = executor.RunBlockParallel(context.Context, processor, scenario.Block, scenario.Transactions, kv, cliUtils.WorkersFlag.Fetch(context))
	} else {
		receipts, diff, err = executor.RunBlock(processor, scenario.Block, scenario.Transactions, kv)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	if err := kv.Commit(diff); err != nil {
		return fmt.Errorf("failed to commit block: %w", err)
	}

	if context.Bool("receipts") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(receipts); err != nil {
			return err
		}
	} else {
		printSummary(receipts)
	}

	rate := float64(len(receipts)) / elapsed.Seconds()
	fmt.Printf("Processed %d transactions in %v, ~%s transactions per second\n",
		len(receipts), elapsed.Round(time.Microsecond), unitconv.FormatPrefix(rate, unitconv.SI, 0))
	fmt.Printf("State diff: %d storage writes, %d nonces, %d deployments, %d declared classes\n",
		len(diff.Storage), len(diff.Nonces), len(diff.ClassHashes), len(diff.DeclaredClasses))
	return nil
}

func printSummary(receipts []aria.Receipt) {
	counts := map[aria.ExecutionStatus]int{}
	for i, receipt := range receipts {
		counts[receipt.Status]++
		line := fmt.Sprintf("%4d %v %-9v fee=%v steps=%d", i, receipt.TransactionHash, receipt.Status, receipt.ActualFee, receipt.Resources.Steps)
		if receipt.RevertReason != "" {
			line += " reason=" + receipt.RevertReason
		}
		fmt.Println(line)
	}
	fmt.Printf("Succeeded: %d, reverted: %d, rejected: %d\n", counts[aria.Succeeded], counts[aria.Reverted], counts[aria.Rejected])
}
