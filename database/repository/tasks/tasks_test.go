package tasks

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/database/repository/workers"
	"github.com/thrasher-corp/fcs/task"
	"github.com/thrasher-corp/fcs/types"
)

// Tests in this package need a migrated PostgreSQL instance; set
// FCS_TEST_DATABASE to its connection string to enable them. Every test
// runs inside a transaction that is rolled back afterwards
const testDBEnv = "FCS_TEST_DATABASE"

func withTx(t *testing.T, f func(ctx context.Context, tx *sql.Tx)) {
	t.Helper()
	url := os.Getenv(testDBEnv)
	if url == "" {
		t.Skipf("%s not set, skipping database test", testDBEnv)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, url, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.CloseConnection() })

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })

	f(ctx, tx)
}

func dt(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	require.NoError(t, err)
	return ts.UTC()
}

func testWorkerID(t *testing.T) types.WorkerID {
	t.Helper()
	id, err := types.ParseWorkerID("00000000-0000-0000-0000-000000001234")
	require.NoError(t, err)
	return id
}

func getStatus(ctx context.Context, t *testing.T, tx *sql.Tx, id types.TaskID) types.TaskStatus {
	t.Helper()
	var status types.TaskStatus
	err := tx.QueryRowContext(ctx,
		"select status from tasks where id = $1", id.String()).Scan(&status)
	require.NoError(t, err)
	return status
}

func TestTaskFlow(t *testing.T) {
	for _, succeeded := range []bool{true, false} {
		succeeded := succeeded
		t.Run(map[bool]string{true: "succeeded", false: "failed"}[succeeded], func(t *testing.T) {
			withTx(t, func(ctx context.Context, tx *sql.Tx) {
				now := dt(t, "2018-01-01 12:00:00")
				workerID := testWorkerID(t)

				require.NoError(t, workers.Upsert(ctx, tx, workerID, now))

				id, err := Create(ctx, tx, task.BarDef{}, now, nil)
				require.NoError(t, err)

				created, err := FindOne(ctx, tx, id)
				require.NoError(t, err)
				assert.Equal(t, task.BarDef{}, created.Def)
				assert.Nil(t, created.WorkerID)
				assert.Equal(t, types.TaskPending, created.Status)
				assert.Equal(t, now, created.CreatedAt.UTC())
				assert.Equal(t, now, created.UpdatedAt.UTC())
				assert.Nil(t, created.ScheduledAt)

				dispatched, err := Dispatch(ctx, tx, id, workerID, now)
				require.NoError(t, err)
				assert.True(t, dispatched)
				assert.Equal(t, types.TaskDispatched, getStatus(ctx, t, tx, id))

				def, err := Begin(ctx, tx, id, now)
				require.NoError(t, err)
				assert.Equal(t, task.BarDef{}, def)
				assert.Equal(t, types.TaskRunning, getStatus(ctx, t, tx, id))

				require.NoError(t, Complete(ctx, tx, id, succeeded, now))

				expected := types.TaskFailed
				if succeeded {
					expected = types.TaskSucceeded
				}
				assert.Equal(t, expected, getStatus(ctx, t, tx, id))
			})
		})
	}
}

func TestDoubleDispatch(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		now := dt(t, "2018-01-01 12:00:00")
		workerID := testWorkerID(t)

		require.NoError(t, workers.Upsert(ctx, tx, workerID, now))

		id, err := Create(ctx, tx, task.BarDef{}, now, nil)
		require.NoError(t, err)

		dispatched, err := Dispatch(ctx, tx, id, workerID, now)
		require.NoError(t, err)
		assert.True(t, dispatched)

		dispatched, err = Dispatch(ctx, tx, id, workerID, now)
		require.NoError(t, err)
		assert.False(t, dispatched)
		assert.Equal(t, types.TaskDispatched, getStatus(ctx, t, tx, id))
	})
}

func TestCompleteOutsideRunningIsNoOp(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		now := dt(t, "2018-01-01 12:00:00")

		id, err := Create(ctx, tx, task.FooDef{}, now, nil)
		require.NoError(t, err)

		require.NoError(t, Complete(ctx, tx, id, true, now))
		assert.Equal(t, types.TaskPending, getStatus(ctx, t, tx, id))
	})
}

func TestBeginOutsideDispatched(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		now := dt(t, "2018-01-01 12:00:00")

		id, err := Create(ctx, tx, task.FooDef{}, now, nil)
		require.NoError(t, err)

		_, err = Begin(ctx, tx, id, now)
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.Equal(t, types.TaskPending, getStatus(ctx, t, tx, id))
	})
}

func TestInterrupt(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		now := dt(t, "2018-01-01 12:00:00")
		workerID := testWorkerID(t)

		require.NoError(t, workers.Upsert(ctx, tx, workerID, now))

		id, err := Create(ctx, tx, task.FooDef{}, now, nil)
		require.NoError(t, err)

		dispatched, err := Dispatch(ctx, tx, id, workerID, now)
		require.NoError(t, err)
		require.True(t, dispatched)

		affected, err := Interrupt(ctx, tx, workerID, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, affected)
		assert.Equal(t, types.TaskInterrupted, getStatus(ctx, t, tx, id))

		// A completion arriving after the interruption still lands
		require.NoError(t, Complete(ctx, tx, id, false, now))
		assert.Equal(t, types.TaskFailed, getStatus(ctx, t, tx, id))
	})
}

func TestBacklogAndFind(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		now := dt(t, "2018-01-01 12:00:00")
		scheduledAt := dt(t, "2018-01-02 10:00:00")

		first, err := Create(ctx, tx, task.FooDef{}, now, &scheduledAt)
		require.NoError(t, err)
		second, err := Create(ctx, tx, task.BazDef{}, now, nil)
		require.NoError(t, err)

		backlog, err := Backlog(ctx, tx)
		require.NoError(t, err)
		require.Len(t, backlog, 2)

		entries := map[types.TaskID]*time.Time{}
		for i := range backlog {
			entries[backlog[i].ID] = backlog[i].ScheduledAt
		}
		require.Contains(t, entries, first)
		require.Contains(t, entries, second)
		require.NotNil(t, entries[first])
		assert.Equal(t, scheduledAt, entries[first].UTC())
		assert.Nil(t, entries[second])

		pending := types.TaskPending
		found, err := Find(ctx, tx, Filter{Status: &pending})
		require.NoError(t, err)
		assert.Len(t, found, 2)

		require.NoError(t, Delete(ctx, tx, first))
		_, err = FindOne(ctx, tx, first)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}
