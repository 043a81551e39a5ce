package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/eomhub/internal/store"
	storemock "github.com/kiranshivaraju/eomhub/internal/store/mock"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

func seededHistory(t *testing.T) *storemock.MockStore {
	t.Helper()
	ctx := context.Background()
	ms := &storemock.MockStore{}
	require.NoError(t, ms.RecordDispatch(ctx, &models.JobRecord{ID: "j1", ToolID: "tool_a", SessionID: "s1"}))
	require.NoError(t, ms.RecordDispatch(ctx, &models.JobRecord{ID: "j2", ToolID: "tool_b", SessionID: "s1"}))
	require.NoError(t, ms.RecordDispatch(ctx, &models.JobRecord{ID: "j3", ToolID: "tool_a", SessionID: "s2"}))
	require.NoError(t, ms.RecordCredit(ctx, &models.CreditEvent{ID: uuid.New(), JobID: "j1", ToolID: "tool_a", Succeeded: true}))
	return ms
}

type listBody struct {
	Data []models.JobRecord `json:"data"`
	Meta struct {
		Limit int `json:"limit"`
		Count int `json:"count"`
	} `json:"meta"`
}

func listJobs(t *testing.T, h http.HandlerFunc, query string) (*httptest.ResponseRecorder, listBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs"+query, nil))
	var body listBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	}
	return rec, body
}

func TestListJobs_CurrentSession(t *testing.T) {
	h := NewListJobsHandler(seededHistory(t), "s1")

	rec, body := listJobs(t, h, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body.Data, 2)
	assert.Equal(t, defaultListLimit, body.Meta.Limit)
	assert.Equal(t, 2, body.Meta.Count)
}

func TestListJobs_Filters(t *testing.T) {
	h := NewListJobsHandler(seededHistory(t), "s1")

	_, body := listJobs(t, h, "?session=all")
	assert.Len(t, body.Data, 3)

	_, body = listJobs(t, h, "?session=all&tool_id=tool_a")
	assert.Len(t, body.Data, 2)

	_, body = listJobs(t, h, "?session=s2")
	require.Len(t, body.Data, 1)
	assert.Equal(t, "j3", body.Data[0].ID)

	_, body = listJobs(t, h, "?session=all&limit=1")
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 1, body.Meta.Limit)

	_, body = listJobs(t, h, "?limit=5000")
	assert.Equal(t, maxListLimit, body.Meta.Limit)
}

func TestListJobs_InvalidLimit(t *testing.T) {
	h := NewListJobsHandler(seededHistory(t), "s1")

	for _, q := range []string{"?limit=0", "?limit=abc", "?limit=-3"} {
		rec, _ := listJobs(t, h, q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListJobs_Empty(t *testing.T) {
	h := NewListJobsHandler(&storemock.MockStore{}, "s1")

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

type failingHistory struct{ storemock.MockStore }

func (f *failingHistory) ListRecentJobs(context.Context, store.JobFilter) ([]*models.JobRecord, error) {
	return nil, errors.New("db down")
}

func TestListJobs_StoreError(t *testing.T) {
	h := NewListJobsHandler(&failingHistory{}, "s1")

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetJob(t *testing.T) {
	h := NewGetJobHandler(seededHistory(t))

	rec := httptest.NewRecorder()
	h(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1", nil), "jobID", "j1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.Equal(t, "j1", data["id"])
	assert.Equal(t, models.JobStatusPending, data["status"])
	assert.Len(t, data["credits"], 1)
}

func TestGetJob_NoCredits(t *testing.T) {
	h := NewGetJobHandler(seededHistory(t))

	rec := httptest.NewRecorder()
	h(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j2", nil), "jobID", "j2"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, dataOf(t, rec)["credits"])
}

func TestGetJob_NotFound(t *testing.T) {
	h := NewGetJobHandler(seededHistory(t))

	rec := httptest.NewRecorder()
	h(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil), "jobID", "nope"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errCode(t, rec))
}

type liveJobs struct {
	statuses map[string]string
	counted  map[string]bool
	err      error
}

func (l *liveJobs) GetJobStatus(_ context.Context, jobID string) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	s, ok := l.statuses[jobID]
	return s, ok, nil
}

func (l *liveJobs) IsCounted(_ context.Context, jobID string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.counted[jobID], nil
}

func TestGetJob_LiveStatusAndCounted(t *testing.T) {
	live := &liveJobs{
		statuses: map[string]string{"j1": models.JobStatusCompleted},
		counted:  map[string]bool{"j1": true},
	}
	h := NewGetJobHandler(seededHistory(t), WithLiveStatus(live), WithCounted(live))

	rec := httptest.NewRecorder()
	h(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1", nil), "jobID", "j1"))
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.Equal(t, models.JobStatusCompleted, data["live_status"])
	assert.Equal(t, true, data["counted"])

	rec = httptest.NewRecorder()
	h(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j2", nil), "jobID", "j2"))
	require.Equal(t, http.StatusOK, rec.Code)
	data = dataOf(t, rec)
	assert.NotContains(t, data, "live_status")
	assert.Equal(t, false, data["counted"])
}

func TestGetJob_LiveLookupFailureIsOmitted(t *testing.T) {
	live := &liveJobs{err: errors.New("redis down")}
	h := NewGetJobHandler(seededHistory(t), WithLiveStatus(live), WithCounted(live))

	rec := httptest.NewRecorder()
	h(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1", nil), "jobID", "j1"))

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.NotContains(t, data, "live_status")
	assert.NotContains(t, data, "counted")
	assert.Len(t, data["credits"], 1)
}

func TestGetJob_WithoutLiveReaders(t *testing.T) {
	h := NewGetJobHandler(seededHistory(t))

	rec := httptest.NewRecorder()
	h(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1", nil), "jobID", "j1"))

	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, rec)
	assert.NotContains(t, data, "live_status")
	assert.NotContains(t, data, "counted")
}
