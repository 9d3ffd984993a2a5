// Package supervisor implements the scheduling half of the cluster: a
// single process that watches the notification bus, tracks worker liveness
// and decides which idle worker runs which task and when
package supervisor

import (
	"context"
	"time"

	"github.com/thrasher-corp/fcs/config"
	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/database/pubsub"
	"github.com/thrasher-corp/fcs/database/repository/tasks"
	"github.com/thrasher-corp/fcs/log"
	"github.com/thrasher-corp/fcs/protocol"
	"github.com/thrasher-corp/fcs/types"
)

// Supervisor owns the scheduling loop. All of its in-memory state (the
// roster and the pending queue) is derived from the database and the
// notification stream; a crashed supervisor restarts from scratch without
// data loss
type Supervisor struct {
	cfg      *config.Config
	db       *database.Instance
	listener *pubsub.Listener
	workers  *SupervisedWorkers
	tasks    *PendingTasks
}

// New subscribes to the supervisor channel and connects the database pool.
//
// Ordering here is critical: the subscription must be live before the pool
// opens, otherwise a task created between pool-open and subscribe would be
// invisible until the next restart's backlog scan
func New(ctx context.Context, cfg *config.Config) (*Supervisor, error) {
	listener, err := pubsub.NewListener(cfg.DatabaseURL, protocol.SupervisorChannel)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.ConnectTimeout)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	return &Supervisor{
		cfg:      cfg,
		db:       db,
		listener: listener,
		workers:  NewSupervisedWorkers(cfg.HeartbeatTimeout),
		tasks:    NewPendingTasks(),
	}, nil
}

// Run recovers the backlog and enters the scheduling loop. It returns when
// ctx is cancelled or on an unrecoverable database error
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.recoverBacklog(ctx); err != nil {
		return err
	}

	log.Infoln(log.SupervisorMgr, "Supervisor ready")

	maintenance := time.NewTicker(s.cfg.MaintenanceInterval)
	defer maintenance.Stop()

	wakeup := time.NewTimer(0)
	defer wakeup.Stop()
	if !wakeup.Stop() {
		<-wakeup.C
	}

	for {
		// Re-arm the queue timer every iteration; pushes, pauses and pops
		// all happen on this goroutine, so the head can only change
		// between waits
		var ready <-chan time.Time
		if wait, ok := s.tasks.WakeAfter(time.Now()); ok {
			wakeup.Reset(wait)
			ready = wakeup.C
		}

		select {
		case <-ctx.Done():
			s.drainTimer(wakeup, ready)
			return nil

		case n := <-s.listener.C():
			s.drainTimer(wakeup, ready)
			if n == nil {
				return pubsub.ErrConnectionLost
			}
			if err := s.handleNotification(ctx, []byte(n.Extra)); err != nil {
				return err
			}

		case err := <-s.listener.Err():
			s.drainTimer(wakeup, ready)
			return err

		case <-ready:
			if id, ok := s.tasks.PopReady(time.Now()); ok {
				if err := s.dispatch(ctx, id); err != nil {
					return err
				}
			}

		case now := <-maintenance.C:
			s.drainTimer(wakeup, ready)
			if err := s.maintain(ctx, now); err != nil {
				return err
			}
		}
	}
}

// Close releases the subscription and the pool
func (s *Supervisor) Close() error {
	_ = s.listener.Close()
	return s.db.CloseConnection()
}

// recoverBacklog loads every pending task left over from before this
// supervisor started. Tasks created between subscribe and this scan are
// observed twice; the dispatch predicate drops the duplicate
func (s *Supervisor) recoverBacklog(ctx context.Context) error {
	backlog, err := tasks.Backlog(ctx, s.db.GetSQL())
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range backlog {
		log.Infof(log.SupervisorMgr,
			"Recovered task %s created while the supervisor was down", backlog[i].ID)
		s.tasks.Push(backlog[i].ID, backlog[i].ScheduledAt, now)
	}

	return nil
}

func (s *Supervisor) handleNotification(ctx context.Context, payload []byte) error {
	n, err := protocol.DecodeSupervisorNotification(payload)
	if err != nil {
		// Someone on this bus speaks a different protocol version; that is
		// an operator error, not something to paper over
		return err
	}

	switch v := n.(type) {
	case protocol.WorkerHeartbeat:
		s.workers.Add(v.ID, v.Status, time.Now())
		s.tasks.Resume()
	case protocol.WorkerIdle:
		s.workers.MarkAsIdle(v.ID)
		s.tasks.Resume()
	case protocol.TaskCreated:
		log.Infof(log.SupervisorMgr, "Task %s created", v.ID)
		s.tasks.Push(v.ID, v.ScheduledAt, time.Now())
	}

	return nil
}

// dispatch hands a ready task to an idle worker. The pending -> dispatched
// transition and the worker's wake-up notification commit atomically, so a
// worker never hears about a task it doesn't own
func (s *Supervisor) dispatch(ctx context.Context, id types.TaskID) error {
	workerID, ok := s.workers.ChooseIdling()
	if !ok {
		// Whole cluster busy or empty; park the task at the head of the
		// queue and stall until a worker reports in
		log.Debugf(log.TaskQueue,
			"No idle workers, parking task %s and pausing dispatch", id)
		s.tasks.Push(id, nil, time.Now())
		s.tasks.Pause()
		return nil
	}

	log.Infof(log.SupervisorMgr, "Dispatching task %s to worker %s", id, workerID)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	affected, err := tasks.Dispatch(ctx, tx, id, workerID, now)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if !affected {
		// Deleted meanwhile, or the second sighting of a task the backlog
		// scan already dispatched; either way nothing to do, and the chosen
		// worker keeps its turn
		log.Debugf(log.SupervisorMgr,
			"Task %s is no longer pending, skipping dispatch", id)
		s.workers.MarkAsIdle(workerID)
		return tx.Rollback()
	}

	err = pubsub.Notify(ctx, tx, protocol.WorkerChannel(workerID), protocol.TaskDispatched{ID: id})
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// maintain garbage-collects silent workers and marks whatever they were
// running as interrupted, so operators can tell an orphaned task from a
// merely slow one
func (s *Supervisor) maintain(ctx context.Context, now time.Time) error {
	for _, workerID := range s.workers.GC(now) {
		affected, err := tasks.Interrupt(ctx, s.db.GetSQL(), workerID, now)
		if err != nil {
			return err
		}
		if affected > 0 {
			log.Warnf(log.SupervisorMgr,
				"Marked %d task(s) of dead worker %s as interrupted", affected, workerID)
		}
	}
	return nil
}

// drainTimer stops the queue timer after a non-timer branch won the select,
// keeping a stale tick from firing on the next iteration
func (s *Supervisor) drainTimer(t *time.Timer, armed <-chan time.Time) {
	if armed == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
