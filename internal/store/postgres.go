package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/rankwatch/internal/model"
)

// pgxPool is the subset of *pgxpool.Pool used by PostgresStore.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresSchema creates the job table when it does not exist yet.
const PostgresSchema = `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL,
	status        TEXT NOT NULL,
	result_data   JSONB,
	error_message TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
)`

// PostgresStore keeps analysis job records in PostgreSQL.
type PostgresStore struct {
	pool   pgxPool
	now    func() time.Time
	logger *slog.Logger
}

// NewPostgresStore connects to dsn and ensures the job table exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating %s table: %w", TableName, err)
	}
	return newPostgresStore(pool, logger), nil
}

func newPostgresStore(pool pgxPool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, now: time.Now, logger: logger}
}

// MarkProcessing creates the job record, or resets an existing one, with
// status processing.
func (s *PostgresStore) MarkProcessing(ctx context.Context, jobID, employerID string) error {
	query := `
		INSERT INTO ` + TableName + ` (id, company_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			status = EXCLUDED.status,
			result_data = NULL,
			error_message = NULL,
			completed_at = NULL
	`
	if _, err := s.pool.Exec(ctx, query, jobID, employerID, string(model.StatusProcessing), s.now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark job processing", "job_id", jobID, "error", err)
		return fmt.Errorf("marking job %s processing: %w", jobID, err)
	}
	return nil
}

// Complete stores the final postings and marks the job completed.
func (s *PostgresStore) Complete(ctx context.Context, jobID string, postings []model.Posting, at time.Time) error {
	data, err := encodePostings(postings)
	if err != nil {
		return err
	}
	query := `
		UPDATE ` + TableName + `
		SET status = $2, result_data = $3, error_message = NULL, completed_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, jobID, string(model.StatusCompleted), data, at.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to complete job", "job_id", jobID, "error", err)
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, model.ErrJobNotFound)
	}
	return nil
}

// Fail records message and marks the job failed.
func (s *PostgresStore) Fail(ctx context.Context, jobID, message string, at time.Time) error {
	query := `
		UPDATE ` + TableName + `
		SET status = $2, error_message = $3, completed_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, jobID, string(model.StatusFailed), message, at.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark job failed", "job_id", jobID, "error", err)
		return fmt.Errorf("failing job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, model.ErrJobNotFound)
	}
	return nil
}

// Get returns the job record, or model.ErrJobNotFound.
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	query := `
		SELECT id, company_id, status, result_data, error_message, created_at, completed_at
		FROM ` + TableName + `
		WHERE id = $1
	`
	var (
		rec        model.JobRecord
		status     string
		resultData []byte
		errMsg     *string
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&rec.ID,
		&rec.EmployerID,
		&status,
		&resultData,
		&errMsg,
		&rec.CreatedAt,
		&rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, model.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", jobID, err)
	}

	rec.Status = model.JobStatus(status)
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	if rec.Postings, err = decodePostings(resultData); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	return &rec, nil
}

// Cleanup deletes finished job records completed more than olderThan ago.
func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM ` + TableName + `
		WHERE status <> $1 AND completed_at IS NOT NULL AND completed_at < $2
	`
	tag, err := s.pool.Exec(ctx, query, string(model.StatusProcessing), s.now().Add(-olderThan).UTC())
	if err != nil {
		return 0, fmt.Errorf("cleaning up jobs older than %v: %w", olderThan, err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
