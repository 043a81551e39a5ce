package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// AddTimeSavingCall records one AddTimeSaving invocation.
type AddTimeSavingCall struct {
	ToolID  string
	Minutes models.MinutesRange
}

// MockHub satisfies models.Hub for testing. Nil Func fields fall back to
// sensible defaults. All recorded calls are safe for concurrent use.
type MockHub struct {
	GetToolsConfigFunc   func(ctx context.Context) (*models.ToolsConfig, error)
	GetRevitStatusFunc   func(ctx context.Context) (*models.RevitStatus, error)
	RunToolFunc          func(ctx context.Context, toolID, jobID string) (*models.RunResult, error)
	GetJobResultFunc     func(ctx context.Context, jobID string) (*models.JobResult, error)
	GetTimeSavingsFunc   func(ctx context.Context) (*models.TimeSavings, error)
	AddTimeSavingFunc    func(ctx context.Context, toolID string, minutes models.MinutesRange) (*models.TimeSavings, error)
	ResetTimeSavingsFunc func(ctx context.Context) (*models.TimeSavings, error)

	mu          sync.Mutex
	runCalls    [][2]string
	creditCalls []AddTimeSavingCall
	resultCalls map[string]int
	resetCalls  int
}

func (m *MockHub) GetToolsConfig(ctx context.Context) (*models.ToolsConfig, error) {
	if m.GetToolsConfigFunc != nil {
		return m.GetToolsConfigFunc(ctx)
	}
	return &models.ToolsConfig{Tools: map[string]models.Tool{}, Categories: map[string]models.Category{}}, nil
}

func (m *MockHub) GetRevitStatus(ctx context.Context) (*models.RevitStatus, error) {
	if m.GetRevitStatusFunc != nil {
		return m.GetRevitStatusFunc(ctx)
	}
	return &models.RevitStatus{Connected: true, Document: "mock.rvt"}, nil
}

func (m *MockHub) RunTool(ctx context.Context, toolID, jobID string) (*models.RunResult, error) {
	m.mu.Lock()
	m.runCalls = append(m.runCalls, [2]string{toolID, jobID})
	m.mu.Unlock()
	if m.RunToolFunc != nil {
		return m.RunToolFunc(ctx, toolID, jobID)
	}
	return &models.RunResult{Success: true, JobID: "job_" + toolID, ToolID: toolID}, nil
}

func (m *MockHub) GetJobResult(ctx context.Context, jobID string) (*models.JobResult, error) {
	m.mu.Lock()
	if m.resultCalls == nil {
		m.resultCalls = make(map[string]int)
	}
	m.resultCalls[jobID]++
	m.mu.Unlock()
	if m.GetJobResultFunc != nil {
		return m.GetJobResultFunc(ctx, jobID)
	}
	return &models.JobResult{JobID: jobID, Status: models.JobStatusRunning}, nil
}

func (m *MockHub) GetTimeSavings(ctx context.Context) (*models.TimeSavings, error) {
	if m.GetTimeSavingsFunc != nil {
		return m.GetTimeSavingsFunc(ctx)
	}
	return &models.TimeSavings{Executed: map[string]int{}}, nil
}

func (m *MockHub) AddTimeSaving(ctx context.Context, toolID string, minutes models.MinutesRange) (*models.TimeSavings, error) {
	m.mu.Lock()
	m.creditCalls = append(m.creditCalls, AddTimeSavingCall{ToolID: toolID, Minutes: minutes})
	m.mu.Unlock()
	if m.AddTimeSavingFunc != nil {
		return m.AddTimeSavingFunc(ctx, toolID, minutes)
	}
	avg := (minutes.Min + minutes.Max) / 2
	return &models.TimeSavings{
		TotalSeconds: avg * 60,
		Executed:     map[string]int{toolID: 1},
	}, nil
}

func (m *MockHub) ResetTimeSavings(ctx context.Context) (*models.TimeSavings, error) {
	m.mu.Lock()
	m.resetCalls++
	m.mu.Unlock()
	if m.ResetTimeSavingsFunc != nil {
		return m.ResetTimeSavingsFunc(ctx)
	}
	return &models.TimeSavings{Executed: map[string]int{}}, nil
}

// RunCalls returns every (toolID, jobID) pair passed to RunTool.
func (m *MockHub) RunCalls() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string(nil), m.runCalls...)
}

// CreditCalls returns every AddTimeSaving invocation.
func (m *MockHub) CreditCalls() []AddTimeSavingCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AddTimeSavingCall(nil), m.creditCalls...)
}

// ResultCalls returns how many times jobID was polled.
func (m *MockHub) ResultCalls(jobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultCalls[jobID]
}

// ResetCalls returns how many times ResetTimeSavings was called.
func (m *MockHub) ResetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCalls
}

// Compile-time check that MockHub implements models.Hub.
var _ models.Hub = (*MockHub)(nil)
