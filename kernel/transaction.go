package kernel

import (
	"fmt"
	"time"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/kernel/module/costing"
	"github.com/onflow/flow-kernel/kernel/module/logger"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
	"github.com/onflow/flow-kernel/utils/logging"
)

// Transaction is a list of invocations run from the root frame. Its hash
// seeds the node ids allocated by the transaction.
type Transaction struct {
	Hash         [32]byte
	Instructions []Invocation
}

type Outcome uint8

const (
	OutcomeCommitted Outcome = iota + 1
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Receipt is the result of a transaction. Failed transactions carry their
// error and no state updates.
type Receipt struct {
	Outcome      Outcome
	Err          errors.CodedError
	StateUpdates *substate.StateUpdates
	Outputs      []codec.IndexedValue
	Logs         []logger.Log
	CostUsed     uint64
	AllocatedIds []substate.NodeId
}

func (r *Receipt) IsCommitted() bool {
	return r.Outcome == OutcomeCommitted
}

// Commit writes the state updates of a committed receipt to db.
func (r *Receipt) Commit(db storage.CommittableSubstateDatabase) error {
	if !r.IsCommitted() {
		return fmt.Errorf("cannot commit a %s transaction", r.Outcome)
	}
	return db.Commit(r.StateUpdates)
}

// ExecuteTransaction runs every instruction of tx against db. The returned
// error is a failure of the execution environment; errors of the
// transaction itself are reported in the receipt.
func ExecuteTransaction(ctx Context, db storage.SubstateDatabase, tx Transaction) (*Receipt, error) {
	start := time.Now()
	log := ctx.Logger.With().
		Str("component", "kernel").
		Hex("tx_hash", tx.Hash[:]).
		Logger()

	tr := track.New(db, ctx.Parameters.Track)
	pipeline := module.NewPipeline(ctx.modules()...)
	k := New(ctx, tr, tx.Hash, pipeline)

	log.Debug().Int("instructions", len(tx.Instructions)).Msg("executing transaction")

	receipt := &Receipt{}
	err := k.execute(tx, receipt)

	txErr, failure := errors.SplitErrorTypes(err)
	if failure != nil {
		log.Error().
			Err(failure).
			Str("step", "execute").
			Msg("transaction failed with a fatal error")
		return nil, failure
	}

	receipt.AllocatedIds = k.allocator.Allocated()
	if found, ok := pipeline.Find(logger.Name); ok {
		receipt.Logs = found.(*logger.Module).Logs()
	}
	if found, ok := pipeline.Find(costing.Name); ok {
		receipt.CostUsed = uint64(found.(*costing.Module).TotalCostUsed())
	}

	if txErr != nil {
		receipt.Outcome = OutcomeFailed
		receipt.Err = txErr
		receipt.Outputs = nil
	} else {
		receipt.Outcome = OutcomeCommitted
		receipt.StateUpdates = tr.Finalize()
	}

	ctx.Metrics.KernelTransactionExecuted(time.Since(start), receipt.CostUsed, receipt.IsCommitted())

	event := log.Debug().
		Str("outcome", receipt.Outcome.String()).
		Uint64("cost_used", receipt.CostUsed).
		Strs("allocated_ids", logging.IDs(receipt.AllocatedIds)).
		Int64("time_spent_in_ms", time.Since(start).Milliseconds())
	if txErr != nil {
		event = event.Str("error", txErr.Error())
	}
	event.Msg("transaction executed")

	return receipt, nil
}

func (k *Kernel) execute(tx Transaction, receipt *Receipt) error {
	err := k.withMode(ModeKernelModule, func() error {
		return k.modules.OnInit(k)
	})
	if err != nil {
		return err
	}

	collector := errors.NewErrorsCollector()
	collector.Collect(k.runInstructions(tx, receipt))
	if !collector.CollectedError() && k.aborted != nil {
		collector.Collect(k.aborted)
	}

	// teardown runs on failed transactions too, so modules can release
	// what they hold
	collector.Collect(k.withMode(ModeKernelModule, func() error {
		return k.modules.OnTeardown(k)
	}))
	return collector.ErrorOrNil()
}

func (k *Kernel) runInstructions(tx Transaction, receipt *Receipt) error {
	for _, instruction := range tx.Instructions {
		output, err := k.Invoke(instruction)
		if err != nil {
			return err
		}
		receipt.Outputs = append(receipt.Outputs, output)
	}

	err := k.withMode(ModeAutoDrop, func() error {
		return k.autoDrop(k.frames[0])
	})
	if err != nil {
		return err
	}

	if unused := k.allocator.Unused(); len(unused) > 0 {
		return errors.NewIdAllocationErrorf("%d node ids left unused: %v", len(unused), unused)
	}
	if open := k.track.OpenLocks(); open > 0 {
		return errors.NewInvariantViolationf("%d track locks left open", open)
	}
	return nil
}
