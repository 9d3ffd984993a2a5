package supervisor

import (
	"math/rand"
	"time"

	"github.com/thrasher-corp/fcs/log"
	"github.com/thrasher-corp/fcs/types"
)

// SupervisedWorkers is the supervisor's in-memory roster: every worker we
// have heard from, when we last heard from it, and which of them are idle.
// It is derived state; a restarted supervisor rebuilds it from heartbeats
// within one heartbeat interval.
//
// The roster is owned exclusively by the supervisor loop, so no locking
type SupervisedWorkers struct {
	workers          map[types.WorkerID]*supervisedWorker
	idlingWorkers    map[types.WorkerID]struct{}
	heartbeatTimeout time.Duration
	rng              *rand.Rand
}

type supervisedWorker struct {
	lastHeardAt time.Time
}

// NewSupervisedWorkers returns an empty roster. Workers not heard from for
// heartbeatTimeout are considered dead and removed by GC
func NewSupervisedWorkers(heartbeatTimeout time.Duration) *SupervisedWorkers {
	return &SupervisedWorkers{
		workers:          make(map[types.WorkerID]*supervisedWorker),
		idlingWorkers:    make(map[types.WorkerID]struct{}),
		heartbeatTimeout: heartbeatTimeout,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Add records a heartbeat. The first observation of a worker registers it
// and, when it reports idle, adds it to the idle set. Later observations
// only refresh lastHeardAt: between us marking a worker busy at dispatch
// and the worker acknowledging, a straggler heartbeat may still claim
// idle, and trusting it would dispatch the same worker twice. Idleness
// after registration comes only from explicit idle reports and the
// dispatch path
func (w *SupervisedWorkers) Add(id types.WorkerID, status types.WorkerStatus, now time.Time) {
	if known, ok := w.workers[id]; ok {
		known.lastHeardAt = now
		return
	}

	log.Infof(log.SupervisorMgr, "worker %s joined the cluster", id)

	w.workers[id] = &supervisedWorker{lastHeardAt: now}
	if status == types.WorkerIdle {
		w.idlingWorkers[id] = struct{}{}
	}
}

// MarkAsIdle returns a worker to the idle set; a no-op for unknown workers
func (w *SupervisedWorkers) MarkAsIdle(id types.WorkerID) {
	if _, ok := w.workers[id]; !ok {
		return
	}
	w.idlingWorkers[id] = struct{}{}
}

// ChooseIdling removes and returns a uniformly random idle worker, or false
// when none are idle. Random selection spreads load without any
// work-stealing bookkeeping
func (w *SupervisedWorkers) ChooseIdling() (types.WorkerID, bool) {
	if len(w.idlingWorkers) == 0 {
		return types.WorkerID{}, false
	}

	ids := make([]types.WorkerID, 0, len(w.idlingWorkers))
	for id := range w.idlingWorkers {
		ids = append(ids, id)
	}

	id := ids[w.rng.Intn(len(ids))]
	delete(w.idlingWorkers, id)

	return id, true
}

// GC removes workers not heard from within the heartbeat timeout and
// returns their ids so the caller can deal with any tasks they were
// holding
func (w *SupervisedWorkers) GC(now time.Time) []types.WorkerID {
	hadWorkers := len(w.workers) > 0

	var dead []types.WorkerID
	for id, worker := range w.workers {
		if lastHeardIn := now.Sub(worker.lastHeardAt); lastHeardIn >= w.heartbeatTimeout {
			dead = append(dead, id)
		}
	}

	for _, id := range dead {
		log.Warnf(log.SupervisorMgr, "worker %s seems to have died, cleaning up", id)
		delete(w.workers, id)
		delete(w.idlingWorkers, id)
	}

	if hadWorkers && len(w.workers) == 0 {
		log.Warnln(log.SupervisorMgr, "all workers seem dead; tasks will not be dispatched until workers come back to life")
	}

	return dead
}

// Len returns the number of known workers
func (w *SupervisedWorkers) Len() int {
	return len(w.workers)
}
