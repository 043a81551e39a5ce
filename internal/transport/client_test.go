package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

type recordingCaller struct {
	method string
	args   []any
	body   string
	err    error
}

func (r *recordingCaller) Call(_ context.Context, method string, args ...any) (json.RawMessage, error) {
	r.method = method
	r.args = args
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.body), nil
}

func TestClient_GetJobResultNullIsNil(t *testing.T) {
	c := NewClient(&recordingCaller{body: "null"})

	res, err := c.GetJobResult(context.Background(), "j1")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestClient_GetJobResultFillsJobID(t *testing.T) {
	c := NewClient(&recordingCaller{body: `{"status":"running"}`})

	res, err := c.GetJobResult(context.Background(), "j1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "j1", res.JobID)
	assert.Equal(t, models.JobStatusRunning, res.Status)
}

func TestClient_RunToolOmitsEmptyJobID(t *testing.T) {
	rc := &recordingCaller{body: `{"success":true,"job_id":"job_1"}`}
	c := NewClient(rc)

	_, err := c.RunTool(context.Background(), "lights_center", "")
	require.NoError(t, err)
	assert.Equal(t, MethodRunTool, rc.method)
	assert.Equal(t, []any{"lights_center"}, rc.args)

	_, err = c.RunTool(context.Background(), "cancel", "job_1")
	require.NoError(t, err)
	assert.Equal(t, []any{"cancel", "job_1"}, rc.args)
}

func TestClient_AddTimeSavingPassesRange(t *testing.T) {
	rc := &recordingCaller{body: `{"totalSeconds":420}`}
	c := NewClient(rc)

	sv, err := c.AddTimeSaving(context.Background(), "lights_center", models.MinutesRange{Min: 5, Max: 9})
	require.NoError(t, err)
	assert.Equal(t, MethodAddTimeSaving, rc.method)
	assert.Equal(t, []any{"lights_center", models.MinutesRange{Min: 5, Max: 9}}, rc.args)
	assert.Equal(t, 420.0, sv.TotalSeconds)
	assert.NotNil(t, sv.Executed)
}

func TestClient_NullResponseIsNoBackend(t *testing.T) {
	c := NewClient(&recordingCaller{body: "null"})

	_, err := c.GetRevitStatus(context.Background())
	assert.ErrorIs(t, err, ErrNoBackend)
}
