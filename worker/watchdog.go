package worker

import (
	"context"
	"time"

	"github.com/thrasher-corp/fcs/database"
	"github.com/thrasher-corp/fcs/database/pubsub"
	"github.com/thrasher-corp/fcs/database/repository/workers"
	"github.com/thrasher-corp/fcs/log"
	"github.com/thrasher-corp/fcs/protocol"
	"github.com/thrasher-corp/fcs/types"
)

// watchdog beats on behalf of its worker: every interval it refreshes the
// worker row and publishes a heartbeat carrying the current busy/idle
// status. The first failed beat is reported on died and the loop exits;
// the worker treats that as fatal, since a silent worker is a dead worker
// as far as the supervisor is concerned
type watchdog struct {
	id       types.WorkerID
	status   *types.AtomicWorkerStatus
	interval time.Duration
	db       *database.Instance
}

func (wd *watchdog) run(ctx context.Context, died chan<- error) {
	log.Debugf(log.WatchdogMgr, "Watchdog for worker %s running", wd.id)

	// Ticker semantics drop ticks missed while a slow beat is in flight
	// rather than bursting to catch up
	ticker := time.NewTicker(wd.interval)
	defer ticker.Stop()

	for {
		if err := wd.heartbeat(ctx); err != nil {
			log.Errorf(log.WatchdogMgr, "Heartbeat failed: %s", err)
			died <- err
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (wd *watchdog) heartbeat(ctx context.Context) error {
	if err := workers.Touch(ctx, wd.db.GetSQL(), wd.id, time.Now()); err != nil {
		return err
	}

	return pubsub.Notify(ctx, wd.db.GetSQL(), protocol.SupervisorChannel,
		protocol.WorkerHeartbeat{ID: wd.id, Status: wd.status.Load()})
}
