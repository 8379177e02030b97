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
	cliUtils "github.com/Fantom-foundation/Aria/go/driver/cli"
	"github.com/Fantom-foundation/Aria/go/examples"
	"github.com/urfave/cli/v2"
	"pgregory.net/rand"
)

var GenerateCmd = cli.Command{
	Action: doGenerate,
	Name:   "generate",
	Usage:  "Generate a random scenario of independent transactions",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "transactions",
			Usage: "number of transactions",
			Value: 1000,
		},
		&cli.IntFlag{
			Name:  "contracts",
			Usage: "number of contracts receiving the transactions",
			Value: 16,
		},
		&cli.StringFlag{
			Name:      "output",
			Aliases:   []string{"o"},
			Usage:     "file the scenario is written to, standard output if empty",
			TakesFile: true,
		},
		cliUtils.SeedFlag,
	},
}

// contractAddress is the address of the i-th generated contract.
func contractAddress(i int) aria.Address {
	return aria.Address(aria.NewFelt(0x10000 + uint64(i)))
}

// GenerateScenario creates a scenario of L1 handler transactions writing
// random values to random keys of Store contracts. The transactions do not
// read any state, so they can be executed in parallel.
func GenerateScenario(seed uint64, transactions, contracts int) *Scenario {
	rnd := rand.New(seed)
	res := &Scenario{
		Block: aria.BlockContext{
			BlockNumber:    1,
			BlockTimestamp: 1_700_000_000,
			GasPrices: aria.GasPrices{
				L1GasPrice: aria.NewAmount(1_000_000_000),
				L2GasPrice: aria.NewAmount(1),
			},
			ChainID: aria.MustShortString("SN_ARIA"),
		},
		Classes: []ClassSpec{{Name: "store"}},
	}
	for i := 0; i < contracts; i++ {
		res.Contracts = append(res.Contracts, ContractSpec{Address: contractAddress(i), Class: "store"})
	}
	for i := 0; i < transactions; i++ {
		res.Transactions = append(res.Transactions, aria.Transaction{
			Type:               aria.L1HandlerTx,
			Sender:             contractAddress(rnd.Intn(contracts)),
			Nonce:              aria.NewFelt(uint64(i)),
			EntryPointSelector: examples.OnMessageSelector,
			Calldata: []aria.Felt{
				aria.NewFelt(rnd.Uint64n(1 << 40)),
				aria.NewFelt(rnd.Uint64n(1024)),
				aria.NewFelt(rnd.Uint64()),
			},
		})
	}
	return res
}

func doGenerate(context *cli.Context) error {
	transactions, contracts := context.Int("transactions"), context.Int("contracts")
	if transactions < 0 || contracts <= 0 {
		return fmt.Errorf("invalid number of transactions (%d) or contracts (%d)", transactions, contracts)
	}
	scenario := GenerateScenario(cliUtils.SeedFlag.Fetch(context), transactions, contracts)

	out := os.Stdout
	if path := context.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(scenario)
}
