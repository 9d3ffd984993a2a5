package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrasher-corp/fcs/types"
)

func workerID(t *testing.T) types.WorkerID {
	t.Helper()
	id, err := types.ParseWorkerID("11111111-2222-3333-4444-555555555555")
	require.NoError(t, err)
	return id
}

func taskID(t *testing.T) types.TaskID {
	t.Helper()
	id, err := types.ParseTaskID("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	require.NoError(t, err)
	return id
}

func TestWorkerChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"worker:11111111-2222-3333-4444-555555555555",
		WorkerChannel(workerID(t)))
}

func TestSupervisorNotificationRoundTrip(t *testing.T) {
	t.Parallel()
	scheduledAt := time.Date(2018, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, n := range []SupervisorNotification{
		WorkerHeartbeat{ID: workerID(t), Status: types.WorkerIdle},
		WorkerHeartbeat{ID: workerID(t), Status: types.WorkerBusy},
		WorkerIdle{ID: workerID(t)},
		TaskCreated{ID: taskID(t)},
		TaskCreated{ID: taskID(t), ScheduledAt: &scheduledAt},
	} {
		payload, err := json.Marshal(n)
		require.NoError(t, err)

		back, err := DecodeSupervisorNotification(payload)
		require.NoError(t, err)
		assert.Equal(t, n, back)
	}
}

func TestWorkerNotificationRoundTrip(t *testing.T) {
	t.Parallel()
	payload, err := json.Marshal(TaskDispatched{ID: taskID(t)})
	require.NoError(t, err)

	back, err := DecodeWorkerNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskDispatched{ID: taskID(t)}, back)
}

func TestWireFormat(t *testing.T) {
	t.Parallel()
	payload, err := json.Marshal(WorkerHeartbeat{
		ID:     workerID(t),
		Status: types.WorkerIdle,
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"ty":"worker-heartbeat","id":"11111111-2222-3333-4444-555555555555","status":"idle"}`,
		string(payload))

	payload, err = json.Marshal(TaskCreated{ID: taskID(t)})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"ty":"task-created","id":"aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee","scheduled_at":null}`,
		string(payload))
}

func TestDecodeFailures(t *testing.T) {
	t.Parallel()
	_, err := DecodeSupervisorNotification([]byte(`{"id":"x"}`))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeSupervisorNotification([]byte(`{"ty":"task-dispatched","id":"x"}`))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeWorkerNotification([]byte(`{"ty":"worker-idle","id":"x"}`))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeSupervisorNotification([]byte(`{"ty":"worker-idle","id":"not-a-uuid"}`))
	assert.ErrorIs(t, err, ErrDecode)
}
