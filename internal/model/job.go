package model

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of an analysis job record.
type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// JobRecord is the persisted state of one analysis run.
type JobRecord struct {
	ID           string     `json:"id"`
	EmployerID   string     `json:"company_id"`
	Status       JobStatus  `json:"status"`
	Postings     []Posting  `json:"vacancies"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// JobStore persists analysis job records. A run calls MarkProcessing once and
// then exactly one of Complete or Fail.
type JobStore interface {
	MarkProcessing(ctx context.Context, jobID, employerID string) error
	Complete(ctx context.Context, jobID string, postings []Posting, at time.Time) error
	Fail(ctx context.Context, jobID, message string, at time.Time) error
	Get(ctx context.Context, jobID string) (*JobRecord, error)
	Close() error
}

// PostingSource walks every active posting of an employer.
type PostingSource interface {
	FetchAllPostings(ctx context.Context, employerID string) ([]Posting, error)
}

// TitleNormalizer sets NormalizedTitle on the given postings in place.
type TitleNormalizer interface {
	Normalize(ctx context.Context, postings []Posting) error
}

// PositionTracker annotates postings with search position and competitor count.
type PositionTracker interface {
	Track(ctx context.Context, postings []Posting) []Posting
}
