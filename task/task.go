// Package task defines the task entity, its opaque definition payload and
// the runner that executes definitions on a worker
package task

import (
	"time"

	"github.com/thrasher-corp/fcs/types"
)

// Task is the persisted task entity
type Task struct {
	ID          types.TaskID     `json:"id"`
	Def         Def              `json:"def"`
	WorkerID    *types.WorkerID  `json:"worker_id"`
	Status      types.TaskStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ScheduledAt *time.Time       `json:"scheduled_at"`
}

// Context carries execution metadata into a definition's Run
type Context struct {
	ID types.TaskID
}
