package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/template"

	"github.com/amishk599/rankwatch/internal/model"
)

// TitleNormalizer implements model.TitleNormalizer using an LLM.
type TitleNormalizer struct {
	provider  LLMProvider
	tmpl      *template.Template
	batchSize int
	logger    *slog.Logger
}

// NormalizerOption configures a TitleNormalizer.
type NormalizerOption func(*TitleNormalizer)

// WithBatchSize caps the number of titles sent in one prompt. Zero or less
// sends every posting in a single prompt.
func WithBatchSize(n int) NormalizerOption {
	return func(t *TitleNormalizer) { t.batchSize = n }
}

// NewTitleNormalizer creates a normalizer. A nil tmpl uses NormalizeTitlesTemplate.
func NewTitleNormalizer(provider LLMProvider, tmpl *template.Template, logger *slog.Logger, opts ...NormalizerOption) *TitleNormalizer {
	if tmpl == nil {
		tmpl = NormalizeTitlesTemplate
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &TitleNormalizer{provider: provider, tmpl: tmpl, logger: logger}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// titleItem is one {id, title} pair, both in the prompt and in the response.
type titleItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Normalize sets NormalizedTitle on every posting the model returned a title
// for. Ids the model invented are ignored; postings it skipped stay unset.
// Any provider failure or unusable response fails the whole call with an error
// wrapping model.ErrNormalization.
func (n *TitleNormalizer) Normalize(ctx context.Context, postings []model.Posting) error {
	size := n.batchSize
	if size <= 0 || size > len(postings) {
		size = len(postings)
	}

	assigned := 0
	for start := 0; start < len(postings); start += size {
		end := min(start+size, len(postings))
		count, err := n.normalizeBatch(ctx, postings[start:end])
		if err != nil {
			return err
		}
		assigned += count
	}

	n.logger.Info("normalized titles", "postings", len(postings), "normalized", assigned)
	return nil
}

func (n *TitleNormalizer) normalizeBatch(ctx context.Context, batch []model.Posting) (int, error) {
	items := make([]titleItem, len(batch))
	byID := make(map[int64][]int, len(batch))
	for i, p := range batch {
		items[i] = titleItem{ID: p.ID, Title: p.RawTitle}
		byID[p.ID] = append(byID[p.ID], i)
	}

	titlesJSON, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal titles: %w", model.ErrNormalization, err)
	}
	var promptBuf bytes.Buffer
	if err := n.tmpl.Execute(&promptBuf, struct{ Titles string }{Titles: string(titlesJSON)}); err != nil {
		return 0, fmt.Errorf("%w: render prompt: %w", model.ErrNormalization, err)
	}

	raw, err := n.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return 0, fmt.Errorf("%w: llm complete: %w", model.ErrNormalization, err)
	}

	titles, err := parseTitles(raw)
	if err != nil {
		n.logger.Error("unusable normalizer response", "error", err, "raw_response", raw)
		return 0, fmt.Errorf("%w: %w", model.ErrNormalization, err)
	}

	assigned := 0
	for _, t := range titles {
		idxs, ok := byID[t.ID]
		if !ok {
			n.logger.Debug("normalizer returned unknown id", "id", t.ID)
			continue
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		for _, i := range idxs {
			batch[i].NormalizedTitle = title
		}
		assigned += len(idxs)
	}
	return assigned, nil
}

// parseTitles extracts the JSON array between the first '[' and the last ']'
// of raw and decodes it. Ids may be numbers or numeric strings; entries with
// any other id are dropped.
func parseTitles(raw string) ([]titleItem, error) {
	first := strings.Index(raw, "[")
	last := strings.LastIndex(raw, "]")
	if first < 0 || last < first {
		return nil, errors.New("no JSON array in response")
	}

	var entries []struct {
		ID    json.RawMessage `json:"id"`
		Title string          `json:"title"`
	}
	if err := json.Unmarshal([]byte(raw[first:last+1]), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal titles JSON: %w", err)
	}

	titles := make([]titleItem, 0, len(entries))
	for _, e := range entries {
		id, ok := parseFlexibleID(e.ID)
		if !ok {
			continue
		}
		titles = append(titles, titleItem{ID: id, Title: e.Title})
	}
	return titles, nil
}

func parseFlexibleID(raw json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
