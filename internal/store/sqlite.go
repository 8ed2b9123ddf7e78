package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amishk599/rankwatch/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps analysis job records in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// live_analysis_jobs table exists. Missing parent directories are created.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		id            TEXT PRIMARY KEY,
		company_id    TEXT NOT NULL,
		status        TEXT NOT NULL,
		result_data   TEXT,
		error_message TEXT,
		created_at    TEXT NOT NULL,
		completed_at  TEXT
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating %s table: %w", TableName, err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// MarkProcessing creates the job record, or resets an existing one, with
// status processing.
func (s *SQLiteStore) MarkProcessing(ctx context.Context, jobID, employerID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+TableName+` (id, company_id, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			company_id = excluded.company_id,
			status = excluded.status,
			result_data = NULL,
			error_message = NULL,
			completed_at = NULL`,
		jobID, employerID, string(model.StatusProcessing), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("marking job %s processing: %w", jobID, err)
	}
	return nil
}

// Complete stores the final postings and marks the job completed.
func (s *SQLiteStore) Complete(ctx context.Context, jobID string, postings []model.Posting, at time.Time) error {
	data, err := encodePostings(postings)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+TableName+`
		SET status = ?, result_data = ?, error_message = NULL, completed_at = ?
		WHERE id = ?`,
		string(model.StatusCompleted), string(data), formatTime(at), jobID)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	return requireRow(res, jobID)
}

// Fail records message and marks the job failed.
func (s *SQLiteStore) Fail(ctx context.Context, jobID, message string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE `+TableName+`
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?`,
		string(model.StatusFailed), message, formatTime(at), jobID)
	if err != nil {
		return fmt.Errorf("failing job %s: %w", jobID, err)
	}
	return requireRow(res, jobID)
}

// Get returns the job record, or model.ErrJobNotFound.
func (s *SQLiteStore) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	var (
		rec                       model.JobRecord
		status, createdAt         string
		resultData, errMsg, compl sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, company_id, status, result_data, error_message, created_at, completed_at
		FROM `+TableName+` WHERE id = ?`, jobID).
		Scan(&rec.ID, &rec.EmployerID, &status, &resultData, &errMsg, &createdAt, &compl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, model.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", jobID, err)
	}

	rec.Status = model.JobStatus(status)
	rec.ErrorMessage = errMsg.String
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if compl.Valid {
		t, err := parseTime(compl.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &t
	}
	if rec.Postings, err = decodePostings([]byte(resultData.String)); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	return &rec, nil
}

// Cleanup deletes finished job records completed more than olderThan ago.
// Records still processing are kept. Returns the number of deleted records.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(s.now().Add(-olderThan))
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+TableName+`
		WHERE status != ? AND completed_at IS NOT NULL AND completed_at < ?`,
		string(model.StatusProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up jobs older than %v: %w", olderThan, err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, model.ErrJobNotFound)
	}
	return nil
}
