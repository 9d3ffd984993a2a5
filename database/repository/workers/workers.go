// Package workers owns all SQL touching the workers table
package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/types"
)

// ErrWorkerNotFound is returned by lookups with no matching row
var ErrWorkerNotFound = errors.New("worker not found")

// Upsert registers a worker, refreshing last_heard_at if the row already
// exists. Run on worker startup
func Upsert(ctx context.Context, exec database.Executor, id types.WorkerID, lastHeardAt time.Time) error {
	query := `
		insert into workers (
			id,
			last_heard_at
		) values (
			$1,
			$2
		) on conflict (id) do update set
			last_heard_at = $2`

	_, err := exec.ExecContext(ctx, query, id.String(), lastHeardAt)
	return err
}

// Touch refreshes last_heard_at; a no-op when the row is missing. Run on
// every heartbeat
func Touch(ctx context.Context, exec database.Executor, id types.WorkerID, lastHeardAt time.Time) error {
	query := `
		update workers
		   set last_heard_at = $1
		 where id = $2`

	_, err := exec.ExecContext(ctx, query, lastHeardAt, id.String())
	return err
}

// LastHeardAt returns when the worker last reported in
func LastHeardAt(ctx context.Context, exec database.Executor, id types.WorkerID) (time.Time, error) {
	query := `
		select last_heard_at
		  from workers
		 where id = $1`

	var lastHeardAt time.Time
	err := exec.QueryRowContext(ctx, query, id.String()).Scan(&lastHeardAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	return lastHeardAt, err
}
