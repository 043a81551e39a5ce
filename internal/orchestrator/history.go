package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/eomhub/internal/store"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// StatusMirror publishes the latest observed status of a job, e.g. to Redis.
type StatusMirror interface {
	SetJobStatus(ctx context.Context, jobID string, status string, ttl time.Duration) error
}

func (c *Controller) recordDispatch(ctx context.Context, jobID string, tool models.Tool, name, message string) {
	if c.opts.History == nil {
		return
	}
	rec := &models.JobRecord{
		ID:          jobID,
		ToolID:      tool.ID,
		DisplayName: name,
		SessionID:   c.opts.SessionID,
		Status:      models.JobStatusPending,
	}
	if message != "" {
		rec.Message = &message
	}
	if err := c.opts.History.RecordDispatch(ctx, rec); err != nil {
		slog.Warn("recording dispatch failed", "job_id", jobID, "tool_id", tool.ID, "error", err)
	}
}

func (c *Controller) recordTerminal(ctx context.Context, jobID, status string, res *models.JobResult) {
	if c.opts.History == nil {
		return
	}
	err := c.opts.History.UpdateJobStatus(ctx, jobID, status, store.ResultOptions(res)...)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidTransition):
		// not dispatched by this process, or already terminal
		slog.Debug("job history not updated", "job_id", jobID, "status", status, "error", err)
	default:
		slog.Warn("updating job history failed", "job_id", jobID, "status", status, "error", err)
	}
}

func (c *Controller) recordCredit(ctx context.Context, jobID, toolID string, minutes models.MinutesRange, creditErr error) {
	if c.opts.History == nil {
		return
	}
	ev := &models.CreditEvent{
		ID:         uuid.New(),
		JobID:      jobID,
		ToolID:     toolID,
		SessionID:  c.opts.SessionID,
		MinutesMin: minutes.Min,
		MinutesMax: minutes.Max,
		Succeeded:  creditErr == nil,
		CreatedAt:  time.Now().UTC(),
	}
	if creditErr != nil {
		msg := creditErr.Error()
		ev.Error = &msg
	}
	if err := c.opts.History.RecordCredit(ctx, ev); err != nil {
		slog.Warn("recording credit failed", "job_id", jobID, "error", err)
	}
}

func (c *Controller) mirrorStatus(ctx context.Context, jobID, status string) {
	if c.opts.Mirror == nil {
		return
	}
	if err := c.opts.Mirror.SetJobStatus(ctx, jobID, status, c.opts.MirrorTTL); err != nil {
		slog.Debug("mirroring job status failed", "job_id", jobID, "error", err)
	}
}
