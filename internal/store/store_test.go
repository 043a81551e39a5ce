package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kiranshivaraju/eomhub/internal/store"
	"github.com/kiranshivaraju/eomhub/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("eomhub_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func dispatchJob(t *testing.T, s store.Store, toolID string) *models.JobRecord {
	t.Helper()
	job := &models.JobRecord{
		ID:          "job_" + uuid.NewString()[:8],
		ToolID:      toolID,
		DisplayName: "Lights_1",
		SessionID:   "session-1",
	}
	require.NoError(t, s.RecordDispatch(context.Background(), job))
	return job
}

// --- Job Tests ---

func TestJob_RecordAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	job := dispatchJob(t, s, "lights_center")

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, "lights_center", got.ToolID)
	assert.Equal(t, "Lights_1", got.DisplayName)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.Stats)
}

func TestJob_RecordDuplicate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	job := dispatchJob(t, s, "lights_center")
	err := s.RecordDispatch(context.Background(), &models.JobRecord{ID: job.ID, ToolID: "x", SessionID: "s"})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestJob_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_UpdateStatusPendingToRunning(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := dispatchJob(t, s, "lights_center")
	require.NoError(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestJob_UpdateStatusCompletedWithResult(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := dispatchJob(t, s, "lights_center")
	elapsed := 4.5
	res := &models.JobResult{
		Status:        models.JobStatusCompleted,
		Message:       "Placed 12 lights",
		ExecutionTime: &elapsed,
		Stats:         &models.JobStats{Total: 12, Processed: 10, Skipped: 2},
		Summary:       map[string]any{"time_saved_minutes": 7.0},
	}

	err := s.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted, store.ResultOptions(res)...)
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Message)
	assert.Equal(t, "Placed 12 lights", *got.Message)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 10, got.Stats.Processed)
	assert.Equal(t, 7.0, got.Summary["time_saved_minutes"])
	require.NotNil(t, got.ExecutionTime)
	assert.Equal(t, 4.5, *got.ExecutionTime)
}

func TestJob_UpdateStatusError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := dispatchJob(t, s, "lights_center")
	require.NoError(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning))

	err := s.UpdateJobStatus(ctx, job.ID, models.JobStatusError, store.WithErrorMessage("no rooms"))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "no rooms", *got.ErrorMessage)
}

func TestJob_TerminalIsAbsorbing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := dispatchJob(t, s, "lights_center")
	require.NoError(t, s.UpdateJobStatus(ctx, job.ID, models.JobStatusCancelled))

	for _, status := range []string{models.JobStatusRunning, models.JobStatusCompleted, models.JobStatusCancelled} {
		err := s.UpdateJobStatus(ctx, job.ID, status)
		assert.ErrorIs(t, err, store.ErrInvalidTransition, status)
	}

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
}

func TestJob_UpdateStatusNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateJobStatus(context.Background(), "missing", models.JobStatusRunning)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_ListRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, toolID := range []string{"lights_center", "sockets", "lights_center"} {
		require.NoError(t, s.RecordDispatch(ctx, &models.JobRecord{
			ID:        uuid.NewString(),
			ToolID:    toolID,
			SessionID: "session-1",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.RecordDispatch(ctx, &models.JobRecord{ID: uuid.NewString(), ToolID: "sockets", SessionID: "other"}))

	all, err := s.ListRecentJobs(ctx, store.JobFilter{SessionID: "session-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	lights, err := s.ListRecentJobs(ctx, store.JobFilter{SessionID: "session-1", ToolID: "lights_center"})
	require.NoError(t, err)
	assert.Len(t, lights, 2)

	limited, err := s.ListRecentJobs(ctx, store.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// --- Credit Tests ---

func TestCredit_RecordAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	msg := "hub timeout"
	require.NoError(t, s.RecordCredit(ctx, &models.CreditEvent{
		ID: uuid.New(), JobID: "j1", ToolID: "lights_center", SessionID: "session-1",
		MinutesMin: 5, MinutesMax: 9, Succeeded: false, Error: &msg,
	}))

	events, err := s.ListCredits(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 9.0, events[0].MinutesMax)
	assert.False(t, events[0].Succeeded)
	require.NotNil(t, events[0].Error)
	assert.Equal(t, "hub timeout", *events[0].Error)

	empty, err := s.ListCredits(ctx, "j2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
