// Package tasks owns all SQL touching the tasks table. State transitions
// are expressed as predicated updates so the database itself arbitrates
// races: a dispatch that lost loses cleanly, reporting zero rows affected
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/volatiletech/null"

	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/log"
	"github.com/thrasher-corp/fcs/task"
	"github.com/thrasher-corp/fcs/types"
)

// ErrTaskNotFound is returned by single-row lookups with no matching row
var ErrTaskNotFound = errors.New("task not found")

// BacklogEntry is a pending task recovered at supervisor startup
type BacklogEntry struct {
	ID          types.TaskID
	ScheduledAt *time.Time
}

// Filter narrows Find results; nil fields match everything
type Filter struct {
	ID     *types.TaskID
	Status *types.TaskStatus
}

// Create inserts a fresh pending task and returns its generated id.
//
// Id collisions are possible in theory; the unique constraint surfaces them
// as an error rather than silently overwriting, and the caller propagates
func Create(ctx context.Context, exec database.Executor, def task.Def, createdAt time.Time, scheduledAt *time.Time) (types.TaskID, error) {
	id, err := types.NewTaskID()
	if err != nil {
		return types.TaskID{}, err
	}

	defPayload, err := task.MarshalDef(def)
	if err != nil {
		return types.TaskID{}, err
	}

	query := `
		insert into tasks (
			id,
			def,
			worker_id,
			status,
			created_at,
			updated_at,
			scheduled_at
		) values (
			$1,
			$2,
			null,
			'pending',
			$3,
			$3,
			$4
		)`

	// jsonb wants a text parameter; a []byte would arrive as bytea
	_, err = exec.ExecContext(ctx, query,
		id.String(),
		string(defPayload),
		createdAt,
		nullTime(scheduledAt))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return types.TaskID{}, fmt.Errorf("task id %s already taken: %w", id, err)
		}
		return types.TaskID{}, err
	}

	return id, nil
}

// Dispatch conditionally transitions pending -> dispatched, assigning the
// worker. The returned flag reports whether this call won the transition;
// false means the task was deleted or already assigned elsewhere
func Dispatch(ctx context.Context, exec database.Executor, taskID types.TaskID, workerID types.WorkerID, now time.Time) (bool, error) {
	query := `
		update tasks
		   set worker_id = $1,
		       status = 'dispatched',
		       updated_at = $2
		 where id = $3
		   and status = 'pending'`

	result, err := exec.ExecContext(ctx, query, workerID.String(), now, taskID.String())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Begin conditionally transitions dispatched -> running and returns the
// task's definition for execution. ErrTaskNotFound means the task was
// deleted or isn't in dispatched
func Begin(ctx context.Context, exec database.Executor, id types.TaskID, now time.Time) (task.Def, error) {
	query := `
		   update tasks
		      set status = 'running',
		          updated_at = $1
		    where id = $2
		      and status = 'dispatched'
		returning def`

	var defPayload []byte
	err := exec.QueryRowContext(ctx, query, now, id.String()).Scan(&defPayload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return task.UnmarshalDef(defPayload)
}

// Complete conditionally transitions running/interrupted to a terminal
// state. A stale completion, e.g. for a task that got re-assigned, affects
// zero rows and is deliberately not an error
func Complete(ctx context.Context, exec database.Executor, id types.TaskID, succeeded bool, now time.Time) error {
	status := types.TaskFailed
	if succeeded {
		status = types.TaskSucceeded
	}

	query := `
		update tasks
		   set status = $1::task_status,
		       updated_at = $2
		 where id = $3
		   and status in ('running', 'interrupted')`

	result, err := exec.ExecContext(ctx, query, status, now, id.String())
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		log.Debugf(log.DatabaseMgr, "Completion of task %s affected no rows", id)
	}
	return nil
}

// Interrupt marks a dead worker's in-flight tasks interrupted and returns
// how many rows were touched
func Interrupt(ctx context.Context, exec database.Executor, workerID types.WorkerID, now time.Time) (int64, error) {
	query := `
		update tasks
		   set status = 'interrupted',
		       updated_at = $1
		 where worker_id = $2
		   and status in ('dispatched', 'running')`

	result, err := exec.ExecContext(ctx, query, now, workerID.String())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes a task row outright
func Delete(ctx context.Context, exec database.Executor, id types.TaskID) error {
	_, err := exec.ExecContext(ctx, `delete from tasks where id = $1`, id.String())
	return err
}

// FindOne returns a single task by id
func FindOne(ctx context.Context, exec database.Executor, id types.TaskID) (*task.Task, error) {
	results, err := Find(ctx, exec, Filter{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return &results[0], nil
}

// Find returns tasks matching the filter
func Find(ctx context.Context, exec database.Executor, f Filter) ([]task.Task, error) {
	query := `
		select id,
		       def,
		       worker_id,
		       status,
		       created_at,
		       updated_at,
		       scheduled_at
		  from tasks
		 where ($1::uuid is null or id = $1)
		   and ($2::task_status is null or status = $2)`

	var id interface{}
	if f.ID != nil {
		id = f.ID.String()
	}
	var status interface{}
	if f.Status != nil {
		status = f.Status.String()
	}

	rows, err := exec.QueryContext(ctx, query, id, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *t)
	}
	return results, rows.Err()
}

// Backlog returns every pending task's id and schedule, used to rebuild the
// supervisor's queue after a restart
func Backlog(ctx context.Context, exec database.Executor) ([]BacklogEntry, error) {
	query := `
		select id, scheduled_at
		  from tasks
		 where status = 'pending'`

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var backlog []BacklogEntry
	for rows.Next() {
		var (
			rawID       string
			scheduledAt null.Time
		)
		if err := rows.Scan(&rawID, &scheduledAt); err != nil {
			return nil, err
		}
		id, err := types.ParseTaskID(rawID)
		if err != nil {
			return nil, err
		}
		backlog = append(backlog, BacklogEntry{
			ID:          id,
			ScheduledAt: timePtr(scheduledAt),
		})
	}
	return backlog, rows.Err()
}

func scanTask(rows *sql.Rows) (*task.Task, error) {
	var (
		rawID       string
		defPayload  []byte
		rawWorkerID null.String
		status      types.TaskStatus
		createdAt   time.Time
		updatedAt   time.Time
		scheduledAt null.Time
	)

	err := rows.Scan(&rawID, &defPayload, &rawWorkerID, &status, &createdAt,
		&updatedAt, &scheduledAt)
	if err != nil {
		return nil, err
	}

	id, err := types.ParseTaskID(rawID)
	if err != nil {
		return nil, err
	}

	def, err := task.UnmarshalDef(defPayload)
	if err != nil {
		return nil, err
	}

	t := &task.Task{
		ID:          id,
		Def:         def,
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		ScheduledAt: timePtr(scheduledAt),
	}

	if rawWorkerID.Valid {
		workerID, err := types.ParseWorkerID(rawWorkerID.String)
		if err != nil {
			return nil, err
		}
		t.WorkerID = &workerID
	}

	return t, nil
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(*t)
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
