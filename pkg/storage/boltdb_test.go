package storage

import (
	"testing"
	"time"

	"github.com/gantryci/gantry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)

	run := &types.PipelineRun{
		ID:       "run-1",
		Workflow: types.WorkflowCI,
		Revision: "abc123",
		Platform: "linux-amd64",
		Status:   types.RunStatusFailed,
		Error:    "gate_failure",
		Steps: []types.StepResult{
			{Name: "checkout", Status: types.StepStatusSuccess},
			{Name: "scan", Status: types.StepStatusFailed, Message: "severity gate failed"},
		},
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}
	require.NoError(t, s.SaveRun(run))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, got.Status)
	assert.Equal(t, "gate_failure", got.Error)
	assert.Len(t, got.Steps, 2)
	assert.Equal(t, types.StepStatusFailed, got.Steps[1].Status)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun("nope")
	assert.Error(t, err)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveRun(&types.PipelineRun{ID: "a", Status: types.RunStatusSuccess}))
	require.NoError(t, s.SaveRun(&types.PipelineRun{ID: "b", Status: types.RunStatusAborted}))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
