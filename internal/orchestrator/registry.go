package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// JobMeta is what crediting needs to know about a tracked job.
type JobMeta struct {
	ToolID  string  `json:"toolId"`
	Minutes float64 `json:"minutes"`
}

// registerDispatch starts tracking a freshly dispatched job and returns its
// display name. Run counters only grow.
func (s *State) registerDispatch(jobID string, tool models.Tool) string {
	s.track(jobID)
	s.JobMeta[jobID] = JobMeta{ToolID: tool.ID, Minutes: tool.TimeSaved}

	s.RunCounters[tool.ID]++
	name := displayName(tool, s.RunCounters[tool.ID])
	s.DisplayNames[jobID] = name
	return name
}

// nextDisplayName is the name registerDispatch will give the next job of tool.
func (s *State) nextDisplayName(tool models.Tool) string {
	return displayName(tool, s.RunCounters[tool.ID]+1)
}

// track adds jobID to the pending set unless it is already there or was
// already observed terminal.
func (s *State) track(jobID string) bool {
	if s.Finished[jobID] {
		return false
	}
	for _, id := range s.PendingJobIDs {
		if id == jobID {
			return false
		}
	}
	s.PendingJobIDs = append(s.PendingJobIDs, jobID)
	return true
}

// untrack removes a terminal job from the registry for good.
func (s *State) untrack(jobID string) {
	kept := s.PendingJobIDs[:0]
	for _, id := range s.PendingJobIDs {
		if id != jobID {
			kept = append(kept, id)
		}
	}
	s.PendingJobIDs = kept
	delete(s.JobMeta, jobID)
	s.Finished[jobID] = true
}

// trackedJobIDs is the set polled on the next tick: the pending set plus the
// focused job, without duplicates or terminal jobs.
func (s *State) trackedJobIDs() []string {
	ids := make([]string, 0, len(s.PendingJobIDs)+1)
	seen := make(map[string]bool, len(s.PendingJobIDs)+1)
	add := func(id string) {
		if id == "" || seen[id] || s.Finished[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range s.PendingJobIDs {
		add(id)
	}
	add(s.LastJobID)
	return ids
}

func (s *State) runningToolIDs() []string {
	set := map[string]bool{}
	for _, id := range s.PendingJobIDs {
		if meta, ok := s.JobMeta[id]; ok && meta.ToolID != "" {
			set[meta.ToolID] = true
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func displayName(tool models.Tool, n int) string {
	base := strings.TrimSpace(tool.Name)
	if base == "" {
		base = "Job"
	}
	return fmt.Sprintf("%s_%d", base, n)
}
