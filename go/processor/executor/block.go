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
	"context"
	"fmt"
	"runtime"

	"github.com/Fantom-foundation/Aria/go/aria"
	"github.com/Fantom-foundation/Aria/go/state"
	"golang.org/x/sync/errgroup"
)

// RunBlock executes the transactions of a block in order. Each transaction
// observes the effects of its predecessors. The result is the receipts and
// the state diff of the block relative to the given state. A fatal error
// aborts the block.
func RunBlock(processor aria.Processor, block aria.BlockContext, transactions []aria.Transaction, reader aria.StateReader) ([]aria.Receipt, aria.StateDiff, error) {
	overlay := state.NewOverlay(reader)
	receipts := make([]aria.Receipt, 0, len(transactions))
	for i, tx := range transactions {
		receipt, err := processor.Run(block, tx, overlay)
		if err != nil {
			return nil, aria.StateDiff{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		if err := Apply(overlay, receipt.StateDiff); err != nil {
			return nil, aria.StateDiff{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		receipts = append(receipts, receipt)
	}
	diff, err := overlay.Diff()
	if err != nil {
		return nil, aria.StateDiff{}, err
	}
	return receipts, diff, nil
}

// RunBlockParallel executes the transactions of a block concurrently, each
// on the given state. It is equivalent to RunBlock for transactions not
// depending on each other's effects. The diffs are merged in transaction
// order. The number of workers defaults to the number of CPUs if not
// positive. The reader must support concurrent use.
func RunBlockParallel(ctx context.Context, processor aria.Processor, block aria.BlockContext, transactions []aria.Transaction, reader aria.StateReader, workers int) ([]aria.Receipt, aria.StateDiff, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	receipts := make([]aria.Receipt, len(transactions))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := range transactions {
		i := i
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			receipt, err := processor.Run(block, transactions[i], reader)
			if err != nil {
				return fmt.Errorf("transaction %d: %w", i, err)
			}
			receipts[i] = receipt
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, aria.StateDiff{}, err
	}

	diff := aria.StateDiff{}
	for _, receipt := range receipts {
		diff = aria.MergeStateDiffs(diff, receipt.StateDiff)
	}
	return receipts, diff, nil
}

// Apply writes a state diff into an overlay.
func Apply(overlay *state.Overlay, diff aria.StateDiff) error {
	for _, w := range diff.Storage {
		if err := overlay.SetStorage(w.Address, w.Key, w.Value); err != nil {
			return err
		}
	}
	for _, n := range diff.Nonces {
		if err := overlay.SetNonce(n.Address, n.Nonce); err != nil {
			return err
		}
	}
	for _, c := range diff.ClassHashes {
		if err := overlay.SetClassHash(c.Address, c.ClassHash); err != nil {
			return err
		}
	}
	for _, c := range diff.DeclaredClasses {
		if err := overlay.DeclareClass(c.ClassHash, c.Class); err != nil {
			return err
		}
	}
	return nil
}
