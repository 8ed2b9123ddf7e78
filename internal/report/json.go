package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/amishk599/rankwatch/internal/model"
)

// JSONWriter outputs the job record as indented JSON, in the same shape the
// store persists and the HTTP API serves.
type JSONWriter struct {
	output io.Writer
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{output: output}
}

// Write encodes rec.
func (w *JSONWriter) Write(rec *model.JobRecord) error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encoding job %s: %w", rec.ID, err)
	}
	return nil
}
