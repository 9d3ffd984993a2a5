// Package worker implements the executing half of the cluster: a process
// that waits for dispatches on its own channel, runs task definitions and
// reports outcomes, while a watchdog goroutine keeps its liveness fresh
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thrasher-corp/fcs/config"
	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/database/pubsub"
	"github.com/thrasher-corp/fcs/database/repository/tasks"
	"github.com/thrasher-corp/fcs/database/repository/workers"
	"github.com/thrasher-corp/fcs/log"
	"github.com/thrasher-corp/fcs/protocol"
	"github.com/thrasher-corp/fcs/task"
	"github.com/thrasher-corp/fcs/types"
)

var (
	// ErrDuplicateWorker is returned on startup when the worker's id looks
	// owned by another live process
	ErrDuplicateWorker = errors.New("another live worker appears to own this id")

	// ErrWatchdogDied is the worker's fatal shutdown cause when its
	// heartbeat loop aborts
	ErrWatchdogDied = errors.New("watchdog died, shutting down")
)

// Worker owns one execution loop. Its id is chosen by the operator at
// launch and identifies it across restarts
type Worker struct {
	id       types.WorkerID
	cfg      *config.Config
	db       *database.Instance
	listener *pubsub.Listener
	status   *types.AtomicWorkerStatus
}

// New subscribes to the worker's own channel, connects the pool and
// registers the worker row. As with the supervisor, subscribing first
// closes the window in which a dispatch could slip past unnoticed.
//
// If the worker row was heard from within the heartbeat timeout, another
// process is probably running with the same id and startup fails; a
// doubly-claimed id would make the supervisor dispatch one task to two
// executors
func New(ctx context.Context, cfg *config.Config, id types.WorkerID) (*Worker, error) {
	listener, err := pubsub.NewListener(cfg.DatabaseURL, protocol.WorkerChannel(id))
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.ConnectTimeout)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	w := &Worker{
		id:       id,
		cfg:      cfg,
		db:       db,
		listener: listener,
		status:   &types.AtomicWorkerStatus{},
	}

	if err := w.register(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}

	return w, nil
}

func (w *Worker) register(ctx context.Context) error {
	now := time.Now()

	lastHeardAt, err := workers.LastHeardAt(ctx, w.db.GetSQL(), w.id)
	switch {
	case err == nil:
		if silentFor := now.Sub(lastHeardAt); silentFor < w.cfg.HeartbeatTimeout {
			return fmt.Errorf("%w: %s heard from %s ago", ErrDuplicateWorker,
				w.id, silentFor)
		}
	case !errors.Is(err, workers.ErrWorkerNotFound):
		return err
	}

	return workers.Upsert(ctx, w.db.GetSQL(), w.id, now)
}

// DB exposes the pool for the HTTP API, which shares this process
func (w *Worker) DB() *database.Instance {
	return w.db
}

// Run spawns the watchdog and enters the execution loop. It returns when
// ctx is cancelled, on an unrecoverable database error, or when the
// watchdog dies; in the last case the supervisor notices through heartbeat
// expiry and garbage-collects this worker
func (w *Worker) Run(ctx context.Context) error {
	log.Infof(log.WorkerMgr, "Worker %s ready", w.id)

	died := make(chan error, 1)
	wd := &watchdog{
		id:       w.id,
		status:   w.status,
		interval: w.cfg.HeartbeatInterval,
		db:       w.db,
	}
	go wd.run(ctx, died)

	for {
		select {
		case <-ctx.Done():
			return nil

		case n := <-w.listener.C():
			if n == nil {
				return pubsub.ErrConnectionLost
			}
			notification, err := protocol.DecodeWorkerNotification([]byte(n.Extra))
			if err != nil {
				// Protocol-version mismatch with the supervisor; fatal
				return err
			}
			if v, ok := notification.(protocol.TaskDispatched); ok {
				if err := w.processTask(ctx, v.ID); err != nil {
					return fmt.Errorf("couldn't process task %s: %w", v.ID, err)
				}
			}

		case err := <-w.listener.Err():
			return err

		case err := <-died:
			return fmt.Errorf("%w: %v", ErrWatchdogDied, err)
		}
	}
}

// processTask runs a dispatched task to completion. The definition's own
// error means the task failed, which is an outcome to record, not a worker
// error; only infrastructure failures propagate
func (w *Worker) processTask(ctx context.Context, id types.TaskID) error {
	w.status.Store(types.WorkerBusy)

	log.Infof(log.WorkerMgr, "Starting task %s", id)

	def, err := tasks.Begin(ctx, w.db.GetSQL(), id, time.Now())
	if err != nil {
		return err
	}

	succeeded := true
	if err := def.Run(ctx, &task.Context{ID: id}); err != nil {
		log.Infof(log.WorkerMgr, "Task %s failed: %s", id, err)
		succeeded = false
	} else {
		log.Infof(log.WorkerMgr, "Task %s succeeded", id)
	}

	if err := tasks.Complete(ctx, w.db.GetSQL(), id, succeeded, time.Now()); err != nil {
		return err
	}

	w.status.Store(types.WorkerIdle)

	return pubsub.Notify(ctx, w.db.GetSQL(), protocol.SupervisorChannel,
		protocol.WorkerIdle{ID: w.id})
}

// Close releases the subscription and the pool
func (w *Worker) Close() error {
	_ = w.listener.Close()
	return w.db.CloseConnection()
}
