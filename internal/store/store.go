package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface for job history. All database
// operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	RecordDispatch(ctx context.Context, job *models.JobRecord) error
	GetJob(ctx context.Context, id string) (*models.JobRecord, error)
	ListRecentJobs(ctx context.Context, filter JobFilter) ([]*models.JobRecord, error)
	UpdateJobStatus(ctx context.Context, id string, status string, opts ...JobUpdateOption) error

	RecordCredit(ctx context.Context, event *models.CreditEvent) error
	ListCredits(ctx context.Context, jobID string) ([]*models.CreditEvent, error)
}

type JobFilter struct {
	SessionID string
	ToolID    string
	Limit     int
}

type jobUpdateParams struct {
	Message       *string
	ErrorMessage  *string
	Stats         *models.JobStats
	Summary       map[string]any
	ExecutionTime *float64
}

type JobUpdateOption func(*jobUpdateParams)

func WithMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Message = &msg
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithStats(stats models.JobStats) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Stats = &stats
	}
}

func WithSummary(summary map[string]any) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Summary = summary
	}
}

func WithExecutionTime(seconds float64) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ExecutionTime = &seconds
	}
}

// ResultOptions builds update options from a polled job snapshot.
func ResultOptions(res *models.JobResult) []JobUpdateOption {
	if res == nil {
		return nil
	}
	var opts []JobUpdateOption
	if res.Message != "" {
		opts = append(opts, WithMessage(res.Message))
	}
	if res.Error != "" {
		opts = append(opts, WithErrorMessage(res.Error))
	}
	if res.Stats != nil {
		opts = append(opts, WithStats(*res.Stats))
	}
	if len(res.Summary) > 0 {
		opts = append(opts, WithSummary(res.Summary))
	}
	if res.ExecutionTime != nil {
		opts = append(opts, WithExecutionTime(*res.ExecutionTime))
	}
	return opts
}
