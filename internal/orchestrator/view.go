package orchestrator

import (
	"fmt"
	"sort"

	"github.com/kiranshivaraju/eomhub/internal/confirm"
	"github.com/kiranshivaraju/eomhub/internal/uxerror"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// View is the read-only projection handed to the presentation layer.
type View struct {
	Connected          bool                     `json:"connected"`
	Status             models.RevitStatus       `json:"status"`
	Categories         []models.Category        `json:"categories"`
	ToolsByCategory    map[string][]models.Tool `json:"toolsByCategory"`
	ActiveCategory     string                   `json:"activeCategory,omitempty"`
	RunningToolIDs     []string                 `json:"runningToolIds"`
	PendingJobIDs      []string                 `json:"pendingJobIds"`
	QueueLabel         *string                  `json:"queueLabel"`
	LastTool           *models.Tool             `json:"lastTool,omitempty"`
	LastJobID          string                   `json:"lastJobId,omitempty"`
	FriendlyJobName    string                   `json:"friendlyJobName,omitempty"`
	JobStatus          string                   `json:"jobStatus"`
	JobStatusLabel     string                   `json:"jobStatusLabel"`
	JobMessage         string                   `json:"jobMessage,omitempty"`
	JobResult          *models.JobResult        `json:"jobResult,omitempty"`
	ResolvedStats      *models.JobStats         `json:"resolvedStats,omitempty"`
	HasLogs            bool                     `json:"hasLogs"`
	UxError            *uxerror.Info            `json:"uxError,omitempty"`
	ResultTab          ResultTab                `json:"resultTab"`
	OverlayVisible     bool                     `json:"overlayVisible"`
	ShowConnectionHelp bool                     `json:"showConnectionHelp"`
	ConfirmDialog      *confirm.Dialog          `json:"confirmDialog,omitempty"`
	Savings            models.TimeSavings       `json:"savings"`
}

// View projects the latest state.
func (c *Controller) View() View {
	return c.state.load().View()
}

func (s *State) View() View {
	return View{
		Connected:          s.Status.Connected,
		Status:             s.Status,
		Categories:         s.filteredCategories(),
		ToolsByCategory:    s.toolsByCategory(),
		ActiveCategory:     s.ActiveCategory,
		RunningToolIDs:     s.runningToolIDs(),
		PendingJobIDs:      append([]string{}, s.PendingJobIDs...),
		QueueLabel:         queueLabel(len(s.PendingJobIDs)),
		LastTool:           s.LastTool,
		LastJobID:          s.LastJobID,
		FriendlyJobName:    s.DisplayNames[s.LastJobID],
		JobStatus:          s.JobStatus,
		JobStatusLabel:     statusLabel(s.JobStatus),
		JobMessage:         s.JobMessage,
		JobResult:          s.JobResult,
		ResolvedStats:      resolvedStats(s.JobResult),
		HasLogs:            s.JobResult != nil && len(s.JobResult.Details) > 0,
		UxError:            s.UxError,
		ResultTab:          s.ResultTab,
		OverlayVisible:     s.overlayVisible(),
		ShowConnectionHelp: s.ShowConnectionHelp,
		ConfirmDialog:      s.ConfirmDialog,
		Savings:            s.Savings,
	}
}

func (s *State) overlayVisible() bool {
	if s.JobStatus == models.JobStatusError && s.UxError != nil {
		return true
	}
	return s.LastTool != nil && s.LastJobID != "" && s.OverlayJobID == s.LastJobID
}

func (s *State) toolsByCategory() map[string][]models.Tool {
	out := map[string][]models.Tool{}
	if s.Config == nil {
		return out
	}
	for id, tool := range s.Config.Tools {
		if tool.ID == "" {
			tool.ID = id
		}
		out[tool.Category] = append(out[tool.Category], tool)
	}
	for _, tools := range out {
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	}
	return out
}

// filteredCategories returns categories by display order, restricted to the
// active category when one is selected.
func (s *State) filteredCategories() []models.Category {
	out := []models.Category{}
	if s.Config == nil {
		return out
	}
	for id, cat := range s.Config.Categories {
		if cat.ID == "" {
			cat.ID = id
		}
		if s.ActiveCategory != "" && cat.ID != s.ActiveCategory {
			continue
		}
		out = append(out, cat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func queueLabel(pending int) *string {
	if pending <= 1 {
		return nil
	}
	label := fmt.Sprintf("Queued: %d", pending-1)
	return &label
}

func statusLabel(status string) string {
	switch status {
	case models.JobStatusPending:
		return "Pending"
	case models.JobStatusRunning:
		return "Running"
	case models.JobStatusCompleted:
		return "Done"
	case models.JobStatusError:
		return "Error"
	case models.JobStatusCancelled:
		return "Cancelled"
	default:
		return "Idle"
	}
}

// resolvedStats prefers the hub's own stats and otherwise counts detail lines.
func resolvedStats(res *models.JobResult) *models.JobStats {
	if res == nil {
		return nil
	}
	if res.Stats != nil {
		return res.Stats
	}
	if len(res.Details) == 0 {
		return nil
	}
	stats := &models.JobStats{Total: len(res.Details)}
	for _, d := range res.Details {
		switch d.Status {
		case "success":
			stats.Processed++
		case "skipped":
			stats.Skipped++
		case "error":
			stats.Errors++
		}
	}
	return stats
}
