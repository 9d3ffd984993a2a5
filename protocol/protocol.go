// Package protocol defines the notification messages exchanged between the
// supervisor and the workers over the database's pub/sub channels.
//
// Messages are tagged unions encoded as UTF-8 JSON with a kebab-case "ty"
// discriminator, e.g. {"ty":"worker-heartbeat","id":"…","status":"idle"}.
// Decoding is strict; an unknown or missing discriminator means the two
// sides are running incompatible versions and is surfaced loudly
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/thrasher-corp/fcs/types"
)

// SupervisorChannel is the pub/sub channel the supervisor subscribes to
const SupervisorChannel = "supervisor"

// WorkerChannel returns the per-worker pub/sub channel name
func WorkerChannel(id types.WorkerID) string {
	return "worker:" + id.String()
}

// ErrDecode is returned when a notification payload fails to decode
var ErrDecode = errors.New("couldn't decode notification")

// Discriminator values
const (
	tyWorkerHeartbeat = "worker-heartbeat"
	tyWorkerIdle      = "worker-idle"
	tyTaskCreated     = "task-created"
	tyTaskDispatched  = "task-dispatched"
)

// SupervisorNotification is a message published on the supervisor channel
type SupervisorNotification interface {
	supervisorNotification()
}

// WorkerNotification is a message published on a per-worker channel
type WorkerNotification interface {
	workerNotification()
}

// WorkerHeartbeat is a worker's periodic liveness signal.
//
// The supervisor performs node discovery solely through heartbeats, so the
// message carries the worker's self-reported status as well; otherwise a
// freshly started supervisor couldn't tell whether a node is busy or idling
type WorkerHeartbeat struct {
	ID     types.WorkerID     `json:"id"`
	Status types.WorkerStatus `json:"status"`
}

func (WorkerHeartbeat) supervisorNotification() {}

// MarshalJSON implements json.Marshaler
func (n WorkerHeartbeat) MarshalJSON() ([]byte, error) {
	type alias WorkerHeartbeat
	return json.Marshal(struct {
		Ty string `json:"ty"`
		alias
	}{tyWorkerHeartbeat, alias(n)})
}

// WorkerIdle announces that a worker has finished its task and can accept
// another one
type WorkerIdle struct {
	ID types.WorkerID `json:"id"`
}

func (WorkerIdle) supervisorNotification() {}

// MarshalJSON implements json.Marshaler
func (n WorkerIdle) MarshalJSON() ([]byte, error) {
	type alias WorkerIdle
	return json.Marshal(struct {
		Ty string `json:"ty"`
		alias
	}{tyWorkerIdle, alias(n)})
}

// TaskCreated announces a freshly inserted task row
type TaskCreated struct {
	ID          types.TaskID `json:"id"`
	ScheduledAt *time.Time   `json:"scheduled_at"`
}

func (TaskCreated) supervisorNotification() {}

// MarshalJSON implements json.Marshaler
func (n TaskCreated) MarshalJSON() ([]byte, error) {
	type alias TaskCreated
	return json.Marshal(struct {
		Ty string `json:"ty"`
		alias
	}{tyTaskCreated, alias(n)})
}

// TaskDispatched tells a worker it has been handed a task
type TaskDispatched struct {
	ID types.TaskID `json:"id"`
}

func (TaskDispatched) workerNotification() {}

// MarshalJSON implements json.Marshaler
func (n TaskDispatched) MarshalJSON() ([]byte, error) {
	type alias TaskDispatched
	return json.Marshal(struct {
		Ty string `json:"ty"`
		alias
	}{tyTaskDispatched, alias(n)})
}

// Encode serialises any notification variant to its wire form
func Encode(n json.Marshaler) ([]byte, error) {
	return n.MarshalJSON()
}

func discriminator(data []byte) (string, error) {
	ty, err := jsonparser.GetUnsafeString(data, "ty")
	if err != nil {
		return "", fmt.Errorf("%w %q: missing discriminator", ErrDecode, data)
	}
	return ty, nil
}

// DecodeSupervisorNotification decodes a payload received on the supervisor
// channel
func DecodeSupervisorNotification(data []byte) (SupervisorNotification, error) {
	ty, err := discriminator(data)
	if err != nil {
		return nil, err
	}

	var n SupervisorNotification
	switch ty {
	case tyWorkerHeartbeat:
		var v WorkerHeartbeat
		err = json.Unmarshal(data, &v)
		n = v
	case tyWorkerIdle:
		var v WorkerIdle
		err = json.Unmarshal(data, &v)
		n = v
	case tyTaskCreated:
		var v TaskCreated
		err = json.Unmarshal(data, &v)
		n = v
	default:
		return nil, fmt.Errorf("%w %q: unknown discriminator %q", ErrDecode, data, ty)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrDecode, data, err)
	}
	return n, nil
}

// DecodeWorkerNotification decodes a payload received on a per-worker channel
func DecodeWorkerNotification(data []byte) (WorkerNotification, error) {
	ty, err := discriminator(data)
	if err != nil {
		return nil, err
	}

	switch ty {
	case tyTaskDispatched:
		var v TaskDispatched
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrDecode, data, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w %q: unknown discriminator %q", ErrDecode, data, ty)
	}
}
