package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/eomhub/internal/api/response"
	"github.com/kiranshivaraju/eomhub/internal/store"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// JobHistory is the read side of the job history store.
type JobHistory interface {
	GetJob(ctx context.Context, id string) (*models.JobRecord, error)
	ListRecentJobs(ctx context.Context, filter store.JobFilter) ([]*models.JobRecord, error)
	ListCredits(ctx context.Context, jobID string) ([]*models.CreditEvent, error)
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(h JobHistory, sessionID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit := defaultListLimit
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = min(n, maxListLimit)
		}

		filter := store.JobFilter{ToolID: q.Get("tool_id"), Limit: limit}
		switch q.Get("session") {
		case "", "current":
			filter.SessionID = sessionID
		case "all":
		default:
			filter.SessionID = q.Get("session")
		}

		jobs, err := h.ListRecentJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.JobRecord{}
		}
		response.Collection(w, jobs, response.ListMeta{Limit: limit, Count: len(jobs)})
	}
}

// StatusReader returns the last status mirrored for a job, e.g. from Redis.
type StatusReader interface {
	GetJobStatus(ctx context.Context, jobID string) (string, bool, error)
}

// CountedReader reports whether a job's savings were already claimed.
type CountedReader interface {
	IsCounted(ctx context.Context, jobID string) (bool, error)
}

// GetJobOption adds live data to the job detail response.
type GetJobOption func(*getJobHandler)

// WithLiveStatus adds the mirrored status as live_status.
func WithLiveStatus(r StatusReader) GetJobOption {
	return func(h *getJobHandler) { h.live = r }
}

// WithCounted adds whether the job was counted for time savings.
func WithCounted(r CountedReader) GetJobOption {
	return func(h *getJobHandler) { h.counted = r }
}

type getJobHandler struct {
	history JobHistory
	live    StatusReader
	counted CountedReader
}

type jobResponse struct {
	*models.JobRecord
	Credits    []*models.CreditEvent `json:"credits"`
	LiveStatus *string               `json:"live_status,omitempty"`
	Counted    *bool                 `json:"counted,omitempty"`
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// Live lookups are best effort; a failing one is left out of the response.
func NewGetJobHandler(h JobHistory, opts ...GetJobOption) http.HandlerFunc {
	gh := &getJobHandler{history: h}
	for _, opt := range opts {
		opt(gh)
	}
	return gh.serve
}

func (gh *getJobHandler) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	job, err := gh.history.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
		return
	}

	credits, err := gh.history.ListCredits(ctx, jobID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load credits", nil)
		return
	}
	if credits == nil {
		credits = []*models.CreditEvent{}
	}

	resp := jobResponse{JobRecord: job, Credits: credits}
	if gh.live != nil {
		status, ok, err := gh.live.GetJobStatus(ctx, jobID)
		switch {
		case err != nil:
			slog.Warn("reading mirrored job status failed", "job_id", jobID, "error", err)
		case ok:
			resp.LiveStatus = &status
		}
	}
	if gh.counted != nil {
		counted, err := gh.counted.IsCounted(ctx, jobID)
		if err != nil {
			slog.Warn("reading counted flag failed", "job_id", jobID, "error", err)
		} else {
			resp.Counted = &counted
		}
	}
	response.JSON(w, resp)
}
