package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// Summary keys a tool can use to report its own time-saved estimate.
const (
	summaryMinutes    = "time_saved_minutes"
	summaryMinutesMin = "time_saved_minutes_min"
	summaryMinutesMax = "time_saved_minutes_max"
)

// CountedSet records which jobs have been credited. MarkCounted must be an
// atomic claim: it returns true for exactly one caller per job id.
type CountedSet interface {
	MarkCounted(ctx context.Context, jobID string) (bool, error)
}

// MemoryCountedSet is a process-local CountedSet.
type MemoryCountedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemoryCountedSet() *MemoryCountedSet {
	return &MemoryCountedSet{ids: make(map[string]struct{})}
}

func (m *MemoryCountedSet) MarkCounted(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[jobID]; ok {
		return false, nil
	}
	m.ids[jobID] = struct{}{}
	return true, nil
}

// ResolveMinutes picks the credited range for a completed job. An explicit
// min/max pair in the summary wins (a lone bound mirrors the other), then a
// single summary average, then the tool's per-run fallback from meta.
func ResolveMinutes(summary map[string]any, meta *JobMeta) (models.MinutesRange, bool) {
	minV, hasMin := number(summary[summaryMinutesMin])
	maxV, hasMax := number(summary[summaryMinutesMax])

	if !hasMin && !hasMax {
		if avg, ok := number(summary[summaryMinutes]); ok {
			return models.MinutesRange{Min: avg, Max: avg}, true
		}
		if meta != nil {
			return models.MinutesRange{Min: meta.Minutes, Max: meta.Minutes}, true
		}
		return models.MinutesRange{}, false
	}

	if !hasMin {
		minV = maxV
	}
	if !hasMax {
		maxV = minV
	}
	return models.MinutesRange{Min: minV, Max: maxV}, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// creditJob credits a completed job at most once. The counted-set claim comes
// first, so a failed or skipped credit is never retried.
func (c *Controller) creditJob(ctx context.Context, jobID string, res *models.JobResult, meta *JobMeta) {
	claimed, err := c.opts.Counted.MarkCounted(ctx, jobID)
	if err != nil {
		slog.Warn("counted set unavailable, skipping credit", "job_id", jobID, "error", err)
		return
	}
	if !claimed {
		return
	}

	toolID := res.ToolID
	if meta != nil && meta.ToolID != "" {
		toolID = meta.ToolID
	}
	minutes, ok := ResolveMinutes(res.Summary, meta)
	if !ok || !(minutes.Max > 0) || toolID == "" {
		slog.Debug("credit skipped", "job_id", jobID, "tool_id", toolID, "minutes_max", minutes.Max)
		return
	}

	savings, err := c.hub.AddTimeSaving(ctx, toolID, minutes)
	c.recordCredit(ctx, jobID, toolID, minutes, err)
	if err != nil {
		slog.Warn("crediting time saving failed", "job_id", jobID, "tool_id", toolID, "error", err)
		return
	}

	slog.Info("time saving credited", "job_id", jobID, "tool_id", toolID, "min", minutes.Min, "max", minutes.Max)
	c.state.update(func(s *State) {
		s.Savings = *savings
	})
}
