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
	"github.com/ethereum/go-ethereum/log"
)

// loggingRunner traces every executed instruction with its registers and
// remaining gas.
type loggingRunner struct {
	log log.Logger
}

func newLogger(logger log.Logger) loggingRunner {
	return loggingRunner{log: logger}
}

func (l loggingRunner) run(c *context) error {
	logger := l.log
	if logger == nil {
		logger = log.Root()
	}
	status := statusRunning
	var err error
	for status == statusRunning {
		if c.pc.Segment == 0 && c.pc != c.end {
			if instr, err := c.program.instruction(c.pc.Offset); err == nil {
				logger.Trace("cairo step", "pc", c.pc, "ap", c.ap, "fp", c.fp, "gas", c.gas, "instruction", instr)
			}
		}
		status, err = step(c)
		if err != nil {
			logger.Trace("cairo step failed", "pc", c.pc, "err", err)
			return err
		}
	}
	return nil
}
