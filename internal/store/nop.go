package store

import (
	"context"
	"fmt"
	"time"

	"github.com/amishk599/rankwatch/internal/model"
)

// NopStore is a no-op store used in dry-run mode. It accepts every write and
// never finds a record.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) MarkProcessing(context.Context, string, string) error { return nil }
func (s *NopStore) Complete(context.Context, string, []model.Posting, time.Time) error {
	return nil
}
func (s *NopStore) Fail(context.Context, string, string, time.Time) error { return nil }
func (s *NopStore) Get(_ context.Context, jobID string) (*model.JobRecord, error) {
	return nil, fmt.Errorf("job %s: %w", jobID, model.ErrJobNotFound)
}
func (s *NopStore) Close() error { return nil }
