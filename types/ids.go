// Package types holds the identifier and status value objects shared by the
// supervisor, the workers and the persistence layer
package types

import (
	"bytes"

	"github.com/gofrs/uuid"
)

// TaskID uniquely identifies a task. Generated by the persistence layer on
// task creation
type TaskID struct {
	uuid.UUID
}

// NewTaskID returns a fresh random task id
func NewTaskID() (TaskID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return TaskID{}, err
	}
	return TaskID{id}, nil
}

// ParseTaskID parses a task id from its canonical string form
func ParseTaskID(s string) (TaskID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return TaskID{}, err
	}
	return TaskID{id}, nil
}

// Less imposes a total order on task ids; used as the pending-queue
// tie-breaker
func (t TaskID) Less(other TaskID) bool {
	return bytes.Compare(t.Bytes(), other.Bytes()) < 0
}

// WorkerID uniquely identifies a worker. Chosen by the operator when the
// worker process is launched
type WorkerID struct {
	uuid.UUID
}

// ParseWorkerID parses a worker id from its canonical string form
func ParseWorkerID(s string) (WorkerID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return WorkerID{}, err
	}
	return WorkerID{id}, nil
}
