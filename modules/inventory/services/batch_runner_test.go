package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
	"github.com/cityatlas/platform-management/pkg/composables"
)

// fakeTx records transaction lifecycle calls. Embedding the pgx.Tx interface
// satisfies the rest of it; only Begin, Commit and Rollback are exercised.
type fakeTx struct {
	pgx.Tx
	db        *fakeDB
	savepoint bool
	committed bool
	rolled    bool
	closed    bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	sp := &fakeTx{db: t.db, savepoint: true}
	t.db.savepoints = append(t.db.savepoints, sp)
	return sp, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.rolled = true
	return nil
}

type fakeDB struct {
	txs        []*fakeTx
	savepoints []*fakeTx
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	tx := &fakeTx{db: db}
	db.txs = append(db.txs, tx)
	return tx, nil
}

func (db *fakeDB) committedTxs() int {
	n := 0
	for _, tx := range db.txs {
		if tx.committed {
			n++
		}
	}
	return n
}

type rowFunc func(ctx context.Context, row domain.Row, index int) (domain.Outcome, error)

func (f rowFunc) ProcessRow(ctx context.Context, row domain.Row, index int) (domain.Outcome, error) {
	return f(ctx, row, index)
}

func makeTable(n int) *domain.Table {
	t := &domain.Table{Columns: []string{"geometry"}}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, domain.Row{"geometry": fmt.Sprintf("g%d", i)})
	}
	return t
}

func TestRun_OneOutcomePerRowInOrder(t *testing.T) {
	db := &fakeDB{}
	runner := NewBatchRunner(db, nil, silentLogger())

	proc := rowFunc(func(ctx context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		// the savepoint must travel in the context, repositories pull it there
		_, err := composables.UseTx(ctx)
		require.NoError(t, err)
		return domain.Inserted(int64(index), "ok"), nil
	})

	result, err := runner.Run(context.Background(), makeTable(3), proc, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)
	for i, o := range result.Outcomes {
		require.Equal(t, domain.StatusInserted, o.Status)
		require.Equal(t, int64(i), o.EntityID)
	}
	require.Equal(t, 3, result.Progress.Inserted)
	require.Equal(t, 1, db.committedTxs())
	for _, sp := range db.savepoints {
		require.True(t, sp.committed)
	}
}

func TestRun_FailingRowRollsBackOnlyItsSavepoint(t *testing.T) {
	db := &fakeDB{}
	runner := NewBatchRunner(db, nil, silentLogger())

	proc := rowFunc(func(_ context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		if index == 1 {
			return domain.Outcome{}, fmt.Errorf("boom")
		}
		return domain.Updated(int64(index), ""), nil
	})

	result, err := runner.Run(context.Background(), makeTable(3), proc, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)
	require.Equal(t, domain.StatusError, result.Outcomes[1].Status)
	require.Equal(t, "boom", result.Outcomes[1].Message)
	require.Equal(t, domain.StatusUpdated, result.Outcomes[2].Status)

	require.Len(t, db.savepoints, 3)
	require.True(t, db.savepoints[0].committed)
	require.True(t, db.savepoints[1].rolled)
	require.True(t, db.savepoints[2].committed)
	require.Equal(t, 1, db.committedTxs())
}

func TestRun_ProcessorOutcomeSurvivesError(t *testing.T) {
	db := &fakeDB{}
	runner := NewBatchRunner(db, nil, silentLogger())

	proc := rowFunc(func(_ context.Context, _ domain.Row, _ int) (domain.Outcome, error) {
		return domain.Skipped("geometry cannot be parsed"), fmt.Errorf("decode: bad ring")
	})

	result, err := runner.Run(context.Background(), makeTable(1), proc, BatchOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusSkipped, result.Outcomes[0].Status)
	require.Equal(t, "geometry cannot be parsed", result.Outcomes[0].Message)
	require.True(t, db.savepoints[0].rolled)
}

func TestRun_ReferenceErrorAbortsBatch(t *testing.T) {
	db := &fakeDB{}
	runner := NewBatchRunner(db, nil, silentLogger())

	proc := rowFunc(func(_ context.Context, _ domain.Row, _ int) (domain.Outcome, error) {
		return domain.Outcome{}, &domain.ReferenceNotFoundError{Entity: "city", Name: "Nowhere"}
	})

	_, err := runner.Run(context.Background(), makeTable(2), proc, BatchOptions{})
	require.Error(t, err)
	require.True(t, db.txs[0].rolled)
	require.Zero(t, db.committedTxs())
}

func TestRun_CheckpointCadenceCommits(t *testing.T) {
	db := &fakeDB{}
	runner := NewBatchRunner(db, nil, silentLogger())

	proc := rowFunc(func(_ context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		return domain.Inserted(int64(index), ""), nil
	})

	result, err := runner.Run(context.Background(), makeTable(5), proc, BatchOptions{LogEvery: 2})
	require.NoError(t, err)
	require.Equal(t, 5, result.Progress.Processed)
	// checkpoints after rows 2 and 4, final commit after row 5
	require.Len(t, db.txs, 3)
	require.Equal(t, 3, db.committedTxs())
}

func TestRun_DryRunRollsBackEverything(t *testing.T) {
	db := &fakeDB{}
	runner := NewBatchRunner(db, nil, silentLogger())

	proc := rowFunc(func(_ context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		return domain.Inserted(int64(index), ""), nil
	})

	result, err := runner.Run(context.Background(), makeTable(5), proc, BatchOptions{DryRun: true, LogEvery: 2})
	require.NoError(t, err)
	require.Equal(t, 5, result.Progress.Inserted)
	// dry run never checkpoints, the single transaction is discarded at the end
	require.Len(t, db.txs, 1)
	require.True(t, db.txs[0].rolled)
	require.Zero(t, db.committedTxs())
}

func TestRun_DryRunCancelNeverCommits(t *testing.T) {
	db := &fakeDB{}
	deciderCalled := false
	decider := CancelDeciderFunc(func(domain.BatchProgress) CancelDecision {
		deciderCalled = true
		return CancelKeep
	})
	runner := NewBatchRunner(db, decider, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	proc := rowFunc(func(_ context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		if index == 0 {
			cancel()
		}
		return domain.Inserted(int64(index), ""), nil
	})

	result, err := runner.Run(ctx, makeTable(3), proc, BatchOptions{DryRun: true})
	require.NoError(t, err)
	// a dry run is never offered the keep option, its work is always discarded
	require.False(t, deciderCalled)
	require.Zero(t, db.committedTxs())
	require.True(t, db.txs[0].rolled)
	require.Equal(t, 2, result.Progress.Cancelled)
}

func TestRun_CancelDiscardsAndMarksRemaining(t *testing.T) {
	db := &fakeDB{}
	var asked *domain.BatchProgress
	decider := CancelDeciderFunc(func(p domain.BatchProgress) CancelDecision {
		asked = &p
		return CancelDiscard
	})
	runner := NewBatchRunner(db, decider, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	proc := rowFunc(func(_ context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		if index == 0 {
			cancel()
		}
		return domain.Inserted(int64(index), ""), nil
	})

	result, err := runner.Run(ctx, makeTable(4), proc, BatchOptions{})
	require.NoError(t, err)
	require.NotNil(t, asked)
	require.Equal(t, 1, asked.Inserted)

	require.Len(t, result.Outcomes, 4)
	require.Equal(t, domain.StatusInserted, result.Outcomes[0].Status)
	for _, o := range result.Outcomes[1:] {
		require.Equal(t, domain.StatusCancelled, o.Status)
		require.Equal(t, domain.NoEntityID, o.EntityID)
		require.Equal(t, "cancelled, not processed", o.Message)
	}
	require.True(t, db.txs[0].rolled)
	require.False(t, result.SuppressExport)
}

func TestRun_CancelKeepCommitsAppliedWork(t *testing.T) {
	db := &fakeDB{}
	decider := CancelDeciderFunc(func(domain.BatchProgress) CancelDecision { return CancelKeep })
	runner := NewBatchRunner(db, decider, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	proc := rowFunc(func(_ context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		if index == 0 {
			cancel()
		}
		return domain.Inserted(int64(index), ""), nil
	})

	result, err := runner.Run(ctx, makeTable(3), proc, BatchOptions{})
	require.NoError(t, err)
	require.True(t, db.txs[0].committed)
	require.Equal(t, 2, result.Progress.Cancelled)
}

func TestRun_CancelSuppressExport(t *testing.T) {
	db := &fakeDB{}
	decider := CancelDeciderFunc(func(domain.BatchProgress) CancelDecision {
		return CancelDiscardSuppressExport
	})
	runner := NewBatchRunner(db, decider, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := runner.Run(ctx, makeTable(2), proc0(), BatchOptions{})
	require.NoError(t, err)
	require.True(t, result.SuppressExport)
	require.True(t, db.txs[0].rolled)
	require.Equal(t, 2, result.Progress.Cancelled)
}

func proc0() RowProcessor {
	return rowFunc(func(_ context.Context, _ domain.Row, index int) (domain.Outcome, error) {
		return domain.Inserted(int64(index), ""), nil
	})
}
