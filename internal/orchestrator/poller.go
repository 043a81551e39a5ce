package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/eomhub/internal/uxerror"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// pollOnce fetches every tracked job in parallel and applies the results.
// The tracked set is read from the latest state when the tick starts, so
// overlapping ticks never work from a stale registry.
func (c *Controller) pollOnce(ctx context.Context) {
	ids := c.state.load().trackedJobIDs()
	if len(ids) == 0 {
		return
	}

	results := make([]*models.JobResult, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			res, err := c.hub.GetJobResult(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				res = &models.JobResult{JobID: id, Status: models.JobStatusError, Error: uxerror.Text(err)}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}
	for i, id := range ids {
		c.observe(ctx, id, results[i])
	}
}

// observe applies one job snapshot. Registry and focused-job changes happen in
// a single mutation; terminal side effects run afterwards, once per job.
func (c *Controller) observe(ctx context.Context, jobID string, res *models.JobResult) {
	if res == nil {
		return
	}
	status := res.Status
	if status == "" {
		status = models.JobStatusCompleted
	}
	terminal := models.IsTerminal(status)

	var (
		applied bool
		meta    *JobMeta
	)
	c.state.update(func(s *State) {
		if s.Finished[jobID] {
			return
		}
		applied = true
		if m, ok := s.JobMeta[jobID]; ok {
			meta = &m
		}
		if s.LastJobID == jobID {
			applyFocused(s, jobID, status, res)
		}
		if terminal {
			s.untrack(jobID)
		} else {
			s.track(jobID)
		}
	})
	if !applied {
		return
	}

	c.mirrorStatus(ctx, jobID, status)
	if terminal {
		c.recordTerminal(ctx, jobID, status, res)
	}
	if status == models.JobStatusCompleted {
		c.creditJob(ctx, jobID, res, meta)
	}
}

// applyFocused replaces the focused job's visible status wholesale.
func applyFocused(s *State, jobID, status string, res *models.JobResult) {
	s.JobResult = res
	s.JobStatus = status

	switch status {
	case models.JobStatusError:
		info := uxerror.Classify(firstNonEmpty(res.Error, res.Message, fmt.Sprintf("Job %s failed", jobID)), uxerror.ContextJobPoll)
		s.UxError = &info
		s.JobMessage = info.Message
	case models.JobStatusCancelled:
		info := uxerror.Classify(firstNonEmpty(res.Error, res.Message, "cancelled"), uxerror.ContextJobPoll)
		s.UxError = &info
		s.JobMessage = info.Message
	default:
		s.UxError = nil
		if msg := firstNonEmpty(res.Message, res.Error); msg != "" {
			s.JobMessage = msg
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
