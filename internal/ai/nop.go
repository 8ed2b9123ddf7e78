package ai

import (
	"context"
	"strings"

	"github.com/amishk599/rankwatch/internal/model"
)

// RawTitleNormalizer is used when ai.provider is "none".
// It copies each raw title verbatim with no LLM calls.
type RawTitleNormalizer struct{}

// NewRawTitleNormalizer returns a RawTitleNormalizer.
func NewRawTitleNormalizer() *RawTitleNormalizer {
	return &RawTitleNormalizer{}
}

// Normalize sets NormalizedTitle to the trimmed raw title.
func (RawTitleNormalizer) Normalize(_ context.Context, postings []model.Posting) error {
	for i := range postings {
		postings[i].NormalizedTitle = strings.TrimSpace(postings[i].RawTitle)
	}
	return nil
}
