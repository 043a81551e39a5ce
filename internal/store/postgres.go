package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

const defaultListLimit = 50

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

const jobColumns = `id, tool_id, display_name, session_id, status, message, error_message,
		stats, summary, execution_time, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.JobRecord, error) {
	var j models.JobRecord
	err := row.Scan(&j.ID, &j.ToolID, &j.DisplayName, &j.SessionID, &j.Status, &j.Message, &j.ErrorMessage,
		&j.Stats, &j.Summary, &j.ExecutionTime, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) RecordDispatch(ctx context.Context, job *models.JobRecord) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, tool_id, display_name, session_id, status, message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.ToolID, job.DisplayName, job.SessionID, job.Status, job.Message, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.JobRecord, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListRecentJobs(ctx context.Context, filter JobFilter) ([]*models.JobRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = $%d", argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.ToolID != "" {
		query += fmt.Sprintf(" AND tool_id = $%d", argIdx)
		args = append(args, filter.ToolID)
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIdx)
	args = append(args, filter.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Terminal statuses have no outgoing transitions.
var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning, models.JobStatusCompleted, models.JobStatusError, models.JobStatusCancelled},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusError, models.JobStatusCancelled},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id string, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	// Fetch current status
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	// Validate transition
	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $3, updated_at = $4`
	args := []any{id, currentStatus, status, now}
	argIdx := 5

	if models.IsTerminal(status) {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.Message != nil {
		query += fmt.Sprintf(", message = $%d", argIdx)
		args = append(args, *params.Message)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.Stats != nil {
		query += fmt.Sprintf(", stats = $%d", argIdx)
		args = append(args, params.Stats)
		argIdx++
	}
	if params.Summary != nil {
		query += fmt.Sprintf(", summary = $%d", argIdx)
		args = append(args, params.Summary)
		argIdx++
	}
	if params.ExecutionTime != nil {
		query += fmt.Sprintf(", execution_time = $%d", argIdx)
		args = append(args, *params.ExecutionTime)
		argIdx++
	}

	// The status guard makes a concurrent transition lose instead of overwrite.
	query += " WHERE id = $1 AND status = $2"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
	}
	return nil
}

// --- Credits ---

func (s *PostgresStore) RecordCredit(ctx context.Context, event *models.CreditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credit_events (id, job_id, tool_id, session_id, minutes_min, minutes_max, succeeded, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.JobID, event.ToolID, event.SessionID, event.MinutesMin, event.MinutesMax,
		event.Succeeded, event.Error, event.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("record credit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCredits(ctx context.Context, jobID string) ([]*models.CreditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, tool_id, session_id, minutes_min, minutes_max, succeeded, error, created_at
		 FROM credit_events WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var events []*models.CreditEvent
	for rows.Next() {
		var e models.CreditEvent
		if err := rows.Scan(&e.ID, &e.JobID, &e.ToolID, &e.SessionID, &e.MinutesMin, &e.MinutesMax,
			&e.Succeeded, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
