package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// Beginner opens the batch transaction. *pgxpool.Pool satisfies it; tests
// supply a fake.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RowProcessor runs the resolve-then-write pipeline for one row inside the
// row's savepoint; the context carries the savepoint transaction for
// composables.UseTx. A returned error makes the runner roll the savepoint
// back and record an error outcome; when the processor also returns a
// non-zero Outcome alongside the error, that outcome is recorded instead of
// a generic one.
type RowProcessor interface {
	ProcessRow(ctx context.Context, row domain.Row, index int) (domain.Outcome, error)
}

// CancelDecision tells the runner what to do with work already applied when
// the batch is interrupted mid-flight.
type CancelDecision int

const (
	CancelKeep CancelDecision = iota
	CancelDiscard
	CancelDiscardSuppressExport
)

// CancelDecider is consulted once, at the first row boundary after the
// context is cancelled. The CLI backs it with an interactive prompt; tests
// with a constant.
type CancelDecider interface {
	Decide(progress domain.BatchProgress) CancelDecision
}

// CancelDeciderFunc adapts a plain function to the CancelDecider interface.
type CancelDeciderFunc func(progress domain.BatchProgress) CancelDecision

func (f CancelDeciderFunc) Decide(progress domain.BatchProgress) CancelDecision {
	return f(progress)
}

// BatchOptions configures one run. LogEvery is the checkpoint cadence: every
// LogEvery rows the work so far is committed and a progress summary logged.
type BatchOptions struct {
	DryRun   bool
	LogEvery int
}

// BatchResult is the audit-ready outcome of a run: exactly one outcome per
// input row, in input order, plus the final counters.
type BatchResult struct {
	Outcomes       []domain.Outcome
	Progress       domain.BatchProgress
	SuppressExport bool
}

// BatchRunner drives the per-row pipeline over an input table: one outer
// transaction, one nested savepoint per row, commits every LogEvery rows.
// A row's failure rolls back only that row; the batch continues.
type BatchRunner struct {
	db      Beginner
	decider CancelDecider
	log     *logrus.Entry
}

func NewBatchRunner(db Beginner, decider CancelDecider, log *logrus.Logger) *BatchRunner {
	return &BatchRunner{
		db:      db,
		decider: decider,
		log:     log.WithField("component", "batch"),
	}
}

// Run processes every row of table through proc. Rows are handled strictly
// sequentially; cancellation is honored only at row boundaries so a row is
// always either fully applied or fully rolled back.
func (r *BatchRunner) Run(ctx context.Context, table *domain.Table, proc RowProcessor, opts BatchOptions) (*BatchResult, error) {
	result := &BatchResult{
		Outcomes: make([]domain.Outcome, 0, table.Len()),
		Progress: domain.BatchProgress{Total: table.Len()},
	}
	logEvery := opts.LogEvery
	if logEvery <= 0 {
		logEvery = 200
	}
	log := r.log.WithField("run", uuid.NewString())

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	for i, row := range table.Rows {
		if ctx.Err() != nil {
			return r.cancel(ctx, log, tx, result, i, opts.DryRun)
		}

		outcome, err := r.runRow(ctx, tx, proc, row, i)
		if err != nil {
			if domain.IsBatchFatal(err) {
				return nil, err
			}
			if outcome == (domain.Outcome{}) {
				outcome = domain.Failed(err.Error())
			}
			log.WithField("row", i+1).WithError(err).Warn("row rolled back")
		}
		result.Outcomes = append(result.Outcomes, outcome)
		result.Progress.Record(outcome)

		if (i+1)%logEvery == 0 {
			log.WithFields(result.Progress.Fields()).Info("progress")
			if !opts.DryRun {
				if err := tx.Commit(ctx); err != nil {
					return nil, err
				}
				tx, err = r.db.Begin(ctx)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	if opts.DryRun {
		log.WithFields(result.Progress.Fields()).Info("dry run complete, discarding changes")
		if err := tx.Rollback(ctx); err != nil {
			return nil, err
		}
	} else {
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
	}
	committed = true
	log.WithFields(result.Progress.Fields()).Info("batch complete")
	return result, nil
}

// runRow wraps one row in a savepoint. pgx maps Begin on an open transaction
// to SAVEPOINT, and Rollback on the nested transaction to ROLLBACK TO
// SAVEPOINT, so a failed row's writes are undone without touching committed
// or preceding rows.
func (r *BatchRunner) runRow(ctx context.Context, tx pgx.Tx, proc RowProcessor, row domain.Row, index int) (domain.Outcome, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}
	outcome, err := proc.ProcessRow(composables.WithTx(ctx, sp), row, index)
	if err != nil {
		_ = sp.Rollback(context.WithoutCancel(ctx))
		return outcome, err
	}
	if err := sp.Commit(ctx); err != nil {
		return domain.Outcome{}, err
	}
	return outcome, nil
}

// cancel handles an interrupt observed at a row boundary: ask what to do
// with the work applied so far, then mark every unprocessed row. A dry run
// never consults the decider; its transaction is discarded no matter what.
func (r *BatchRunner) cancel(ctx context.Context, log *logrus.Entry, tx pgx.Tx, result *BatchResult, next int, dryRun bool) (*BatchResult, error) {
	decision := CancelDiscard
	if !dryRun && r.decider != nil {
		decision = r.decider.Decide(result.Progress)
	}
	// The batch context is already cancelled; closing the transaction must
	// not be.
	cleanup := context.WithoutCancel(ctx)
	switch decision {
	case CancelKeep:
		if err := tx.Commit(cleanup); err != nil {
			return nil, err
		}
		log.Info("batch interrupted, committed work kept")
	case CancelDiscardSuppressExport:
		result.SuppressExport = true
		fallthrough
	default:
		if err := tx.Rollback(cleanup); err != nil {
			return nil, err
		}
		log.Info("batch interrupted, pending work discarded")
	}

	for i := next; i < result.Progress.Total; i++ {
		o := domain.Outcome{Status: domain.StatusCancelled, EntityID: domain.NoEntityID, Message: "cancelled, not processed"}
		result.Outcomes = append(result.Outcomes, o)
		result.Progress.Record(o)
	}
	log.WithFields(result.Progress.Fields()).Info("batch cancelled")
	return result, nil
}
