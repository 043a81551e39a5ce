package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

func TestRegisterDispatch(t *testing.T) {
	s := newState()
	tool := models.Tool{ID: "tool_a", Name: "Tool A", TimeSaved: 5}

	assert.Equal(t, "Tool A_1", s.registerDispatch("j1", tool))
	assert.Equal(t, "Tool A_2", s.registerDispatch("j2", tool))
	assert.Equal(t, []string{"j1", "j2"}, s.PendingJobIDs)
	assert.Equal(t, JobMeta{ToolID: "tool_a", Minutes: 5}, s.JobMeta["j1"])
	assert.Equal(t, 2, s.RunCounters["tool_a"])
}

func TestNextDisplayName_MatchesRegistration(t *testing.T) {
	s := newState()
	tool := models.Tool{ID: "tool_a", Name: "Tool A"}

	assert.Equal(t, "Tool A_1", s.nextDisplayName(tool))
	assert.Equal(t, "Tool A_1", s.nextDisplayName(tool))
	assert.Equal(t, s.nextDisplayName(tool), s.registerDispatch("j1", tool))
	assert.Equal(t, "Tool A_2", s.nextDisplayName(tool))
}

func TestDisplayName_BlankToolName(t *testing.T) {
	s := newState()
	assert.Equal(t, "Job_1", s.registerDispatch("j1", models.Tool{ID: "x", Name: "  "}))
}

func TestTrack(t *testing.T) {
	s := newState()

	assert.True(t, s.track("j1"))
	assert.False(t, s.track("j1"))
	assert.Equal(t, []string{"j1"}, s.PendingJobIDs)

	s.untrack("j1")
	assert.Empty(t, s.PendingJobIDs)
	assert.True(t, s.Finished["j1"])
	assert.False(t, s.track("j1"))
	assert.Empty(t, s.PendingJobIDs)
}

func TestUntrack_DropsMeta(t *testing.T) {
	s := newState()
	s.registerDispatch("j1", models.Tool{ID: "tool_a", Name: "A"})
	s.registerDispatch("j2", models.Tool{ID: "tool_b", Name: "B"})

	s.untrack("j1")
	assert.Equal(t, []string{"j2"}, s.PendingJobIDs)
	assert.NotContains(t, s.JobMeta, "j1")
	assert.Equal(t, []string{"tool_b"}, s.runningToolIDs())
	assert.Equal(t, "A_1", s.DisplayNames["j1"])
}

func TestTrackedJobIDs(t *testing.T) {
	s := newState()
	s.track("j1")
	s.track("j2")
	s.LastJobID = "j2"
	assert.Equal(t, []string{"j1", "j2"}, s.trackedJobIDs())

	s.LastJobID = "j3"
	assert.Equal(t, []string{"j1", "j2", "j3"}, s.trackedJobIDs())

	s.Finished["j3"] = true
	assert.Equal(t, []string{"j1", "j2"}, s.trackedJobIDs())

	s.LastJobID = ""
	s.untrack("j1")
	s.untrack("j2")
	assert.Empty(t, s.trackedJobIDs())
}

func TestClone_IsIndependent(t *testing.T) {
	s := newState()
	s.registerDispatch("j1", models.Tool{ID: "tool_a", Name: "A"})

	next := s.clone()
	next.registerDispatch("j2", models.Tool{ID: "tool_a", Name: "A"})
	next.untrack("j1")

	assert.Equal(t, []string{"j1"}, s.PendingJobIDs)
	assert.Equal(t, 1, s.RunCounters["tool_a"])
	assert.False(t, s.Finished["j1"])
	assert.NotContains(t, s.DisplayNames, "j2")
}
