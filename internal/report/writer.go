package report

import (
	"fmt"
	"io"

	"github.com/amishk599/rankwatch/internal/model"
)

// Writer renders one job record.
type Writer interface {
	Write(rec *model.JobRecord) error
}

// Format names an output format accepted by NewWriter.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// NewWriter returns the writer for format.
func NewWriter(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatMarkdown, "markdown":
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want md or json)", format)
	}
}
