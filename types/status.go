package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInvalidTaskStatus is returned when parsing an unknown task status
	ErrInvalidTaskStatus = errors.New("invalid task status")
	// ErrInvalidWorkerStatus is returned when parsing an unknown worker status
	ErrInvalidWorkerStatus = errors.New("invalid worker status")
)

// TaskStatus tracks a task through its persisted lifecycle. Stored in the
// database as the task_status enum; values are kebab-case on the wire
type TaskStatus string

// Task lifecycle states. Transitions only ever move forward:
// pending -> dispatched -> running -> succeeded/failed, with running ->
// interrupted when the assigned worker disappears and interrupted ->
// succeeded/failed if the worker comes back to report
const (
	TaskPending     TaskStatus = "pending"
	TaskDispatched  TaskStatus = "dispatched"
	TaskRunning     TaskStatus = "running"
	TaskSucceeded   TaskStatus = "succeeded"
	TaskFailed      TaskStatus = "failed"
	TaskInterrupted TaskStatus = "interrupted"
)

// ParseTaskStatus validates and returns a task status from its string form
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskPending, TaskDispatched, TaskRunning, TaskSucceeded, TaskFailed,
		TaskInterrupted:
		return TaskStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTaskStatus, s)
	}
}

// String implements fmt.Stringer
func (s TaskStatus) String() string {
	return string(s)
}

// Value implements driver.Valuer
func (s TaskStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner
func (s *TaskStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		parsed, err := ParseTaskStatus(v)
		if err != nil {
			return err
		}
		*s = parsed
	case []byte:
		parsed, err := ParseTaskStatus(string(v))
		if err != nil {
			return err
		}
		*s = parsed
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidTaskStatus, value)
	}
	return nil
}

// WorkerStatus is a worker's self-reported busy/idle flag
type WorkerStatus string

// Worker states as carried inside heartbeat notifications
const (
	WorkerBusy WorkerStatus = "busy"
	WorkerIdle WorkerStatus = "idle"
)

// ParseWorkerStatus validates and returns a worker status from its string form
func ParseWorkerStatus(s string) (WorkerStatus, error) {
	switch WorkerStatus(s) {
	case WorkerBusy, WorkerIdle:
		return WorkerStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkerStatus, s)
	}
}

// String implements fmt.Stringer
func (s WorkerStatus) String() string {
	return string(s)
}

// AtomicWorkerStatus is the busy/idle flag shared between a worker's main
// loop (writer) and its watchdog (reader). A sequentially consistent atomic
// is all that's needed here, a lock would be overkill
type AtomicWorkerStatus struct {
	busy int32
}

// Store atomically replaces the current status
func (a *AtomicWorkerStatus) Store(s WorkerStatus) {
	var v int32
	if s == WorkerBusy {
		v = 1
	}
	atomic.StoreInt32(&a.busy, v)
}

// Load atomically retrieves the current status
func (a *AtomicWorkerStatus) Load() WorkerStatus {
	if atomic.LoadInt32(&a.busy) == 1 {
		return WorkerBusy
	}
	return WorkerIdle
}
