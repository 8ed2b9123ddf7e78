package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/normalize_titles.md
var normalizeTitlesPromptRaw string

// NormalizeTitlesTemplate is the parsed prompt template for title normalization.
// Parsed once at package init; reused for every batch.
var NormalizeTitlesTemplate = template.Must(template.New("normalize_titles").Parse(normalizeTitlesPromptRaw))
