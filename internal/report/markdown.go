package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/amishk599/rankwatch/internal/model"
)

// MarkdownWriter outputs a job record as a Markdown document.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders rec: header, outcome summary, and one row per posting.
func (w *MarkdownWriter) Write(rec *model.JobRecord) error {
	md := markdown.NewMarkdown(w.output)
	summary := Summarize(rec.Postings)

	w.writeHeader(md, rec)
	w.writeSummary(md, rec, summary)
	w.writePostings(md, rec.Postings)

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, rec *model.JobRecord) {
	md.H1("Vacancy Position Report")
	md.PlainText("")

	completed := "-"
	if rec.CompletedAt != nil {
		completed = rec.CompletedAt.Format("2006-01-02 15:04:05 MST")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Job", "`" + rec.ID + "`"},
			{"Employer", rec.EmployerID},
			{"Status", statusText(rec)},
			{"Started", rec.CreatedAt.Format("2006-01-02 15:04:05 MST")},
			{"Completed", completed},
		},
	})
	md.PlainText("")
}

func statusText(rec *model.JobRecord) string {
	switch rec.Status {
	case model.StatusCompleted:
		return "✅ Completed"
	case model.StatusFailed:
		return "❌ Failed"
	default:
		return "⏳ " + string(rec.Status)
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, rec *model.JobRecord, s Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Postings"},
		Rows: [][]string{
			{"Ranked in top 100", strconv.Itoa(s.Ranked)},
			{"Ranked in top 10", strconv.Itoa(s.TopTen)},
			{"Not in top 100", strconv.Itoa(s.OutsideWindow)},
			{"Search failed", strconv.Itoa(s.SearchFailed)},
			{"Not searched", strconv.Itoa(s.NotSearched)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		writePieChart(md, s)
	}

	switch {
	case rec.Status == model.StatusFailed:
		md.Cautionf("The analysis failed: %s", rec.ErrorMessage)
	case s.SearchFailed > 0:
		md.Warningf("%d posting(s) could not be ranked because their search failed.", s.SearchFailed)
	case rec.Status == model.StatusCompleted && s.Total == 0:
		md.Note("The employer has no active postings.")
	case rec.Status == model.StatusCompleted:
		md.Tip("Every searchable posting was ranked.")
	}
	md.PlainText("")
}

func writePieChart(md *markdown.Markdown, s Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Posting Outcomes"),
		piechart.WithShowData(true),
	)
	if n := s.TopTen; n > 0 {
		chart.LabelAndIntValue("Top 10", uint64(n))
	}
	if n := s.Ranked - s.TopTen; n > 0 {
		chart.LabelAndIntValue("Top 11-100", uint64(n))
	}
	if s.OutsideWindow > 0 {
		chart.LabelAndIntValue("Not in top 100", uint64(s.OutsideWindow))
	}
	if s.SearchFailed > 0 {
		chart.LabelAndIntValue("Search failed", uint64(s.SearchFailed))
	}
	if s.NotSearched > 0 {
		chart.LabelAndIntValue("Not searched", uint64(s.NotSearched))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePostings(md *markdown.Markdown, postings []model.Posting) {
	md.H2("Postings")
	md.PlainText("")

	if len(postings) == 0 {
		md.PlainText("No postings.")
		return
	}

	rows := make([][]string, len(postings))
	for i, p := range postings {
		normalized := p.NormalizedTitle
		if normalized == "" {
			normalized = "-"
		}
		competitors := "-"
		if p.CompetitorsCount != nil {
			competitors = strconv.Itoa(*p.CompetitorsCount)
		}
		position := "-"
		if p.Position.Kind != model.PositionUnset {
			position = p.Position.String()
		}
		link := strconv.FormatInt(p.ID, 10)
		if p.URL != "" {
			link = "[" + link + "](" + p.URL + ")"
		}
		rows[i] = []string{
			link,
			p.RawTitle,
			normalized,
			p.AreaName,
			position,
			competitors,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Vacancy", "Title", "Normalized", "Area", "Position", "Competitors"},
		Rows:   rows,
	})
}
