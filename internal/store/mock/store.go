package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kiranshivaraju/eomhub/internal/store"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// MockStore is an in-memory store.Store for testing. Set a Func field to
// override one operation.
type MockStore struct {
	PingFunc            func(ctx context.Context) error
	RecordDispatchFunc  func(ctx context.Context, job *models.JobRecord) error
	UpdateJobStatusFunc func(ctx context.Context, id string, status string, opts ...store.JobUpdateOption) error
	RecordCreditFunc    func(ctx context.Context, event *models.CreditEvent) error

	mu      sync.Mutex
	jobs    map[string]*models.JobRecord
	credits []*models.CreditEvent
}

func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockStore) RecordDispatch(ctx context.Context, job *models.JobRecord) error {
	if m.RecordDispatchFunc != nil {
		return m.RecordDispatchFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = make(map[string]*models.JobRecord)
	}
	if _, ok := m.jobs[job.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *job
	if cp.Status == "" {
		cp.Status = models.JobStatusPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MockStore) GetJob(_ context.Context, id string) (*models.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MockStore) ListRecentJobs(_ context.Context, filter store.JobFilter) ([]*models.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobRecord
	for _, j := range m.jobs {
		if filter.SessionID != "" && j.SessionID != filter.SessionID {
			continue
		}
		if filter.ToolID != "" && j.ToolID != filter.ToolID {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateJobStatus only records the status; options are ignored.
func (m *MockStore) UpdateJobStatus(ctx context.Context, id string, status string, opts ...store.JobUpdateOption) error {
	if m.UpdateJobStatusFunc != nil {
		return m.UpdateJobStatusFunc(ctx, id, status, opts...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if models.IsTerminal(j.Status) {
		return store.ErrInvalidTransition
	}
	j.Status = status
	return nil
}

func (m *MockStore) RecordCredit(ctx context.Context, event *models.CreditEvent) error {
	if m.RecordCreditFunc != nil {
		return m.RecordCreditFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.credits = append(m.credits, &cp)
	return nil
}

func (m *MockStore) ListCredits(_ context.Context, jobID string) ([]*models.CreditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditEvent
	for _, e := range m.credits {
		if e.JobID == jobID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Credits returns every recorded credit event.
func (m *MockStore) Credits() []models.CreditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CreditEvent, len(m.credits))
	for i, e := range m.credits {
		out[i] = *e
	}
	return out
}

var _ store.Store = (*MockStore)(nil)
