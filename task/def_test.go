package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrasher-corp/fcs/types"
)

func TestUnmarshalDef(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		payload  string
		expected Def
	}{
		{`{"ty":"foo"}`, FooDef{}},
		{`{"ty":"bar"}`, BarDef{}},
		{`{"ty":"baz"}`, BazDef{}},
	} {
		d, err := UnmarshalDef([]byte(tc.payload))
		require.NoError(t, err)
		assert.Equal(t, tc.expected, d)
	}

	_, err := UnmarshalDef([]byte(`{"ty":"qux"}`))
	assert.ErrorIs(t, err, ErrUnknownDef)

	_, err = UnmarshalDef([]byte(`{}`))
	assert.Error(t, err)
}

func TestMarshalDefRoundTrip(t *testing.T) {
	t.Parallel()
	for _, d := range []Def{FooDef{}, BarDef{}, BazDef{}} {
		payload, err := MarshalDef(d)
		require.NoError(t, err)

		back, err := UnmarshalDef(payload)
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}
}

func TestTaskMarshalJSON(t *testing.T) {
	t.Parallel()
	id, err := types.ParseTaskID("00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)

	payload, err := json.Marshal(&Task{
		ID:     id,
		Def:    BarDef{},
		Status: types.TaskPending,
	})
	require.NoError(t, err)

	assert.Contains(t, string(payload), `"id":"00000000-0000-0000-0000-000000000001"`)
	assert.Contains(t, string(payload), `"def":{"ty":"bar"}`)
	assert.Contains(t, string(payload), `"worker_id":null`)
	assert.Contains(t, string(payload), `"status":"pending"`)
}
