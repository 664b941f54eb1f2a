package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders reports as ASCII tables.
type TableFormatter struct{}

// FormatFetch renders a resolution summary followed by its attempts.
func (f *TableFormatter) FormatFetch(report *FetchReport) (string, error) {
	if report == nil {
		return "", nil
	}

	summary := table.NewWriter()
	summary.SetStyle(table.StyleRounded)
	summary.AppendRows([]table.Row{
		{"Domain", report.Domain},
		{"Key", report.Key},
		{"Source", report.Source},
		{"Cache", cacheLabel(report)},
		{"Elapsed", report.Elapsed.String()},
		{"Items", report.Items},
	})

	var sb strings.Builder
	sb.WriteString(summary.Render())

	if len(report.Attempts) > 0 {
		attempts := table.NewWriter()
		attempts.SetStyle(table.StyleRounded)
		attempts.AppendHeader(table.Row{"#", "Source", "Elapsed", "Outcome"})
		for i, a := range report.Attempts {
			attempts.AppendRow(table.Row{i + 1, a.Source, fmt.Sprintf("%dms", a.ElapsedMS), attemptOutcome(a)})
		}
		sb.WriteString("\n")
		sb.WriteString(attempts.Render())
	}

	return sb.String(), nil
}

// FormatSources renders the cascade plan of every domain.
func (f *TableFormatter) FormatSources(rows []SourceRow) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Domain", "#", "Source", "Provider", "Keyed", "Timeout", "TTL", "Status"})

	active := 0
	for _, row := range rows {
		if row.Skipped == "" {
			active++
		}
		t.AppendRow(table.Row{
			row.Domain,
			row.Position,
			row.Name,
			row.Provider,
			keyedLabel(row.Keyed),
			row.Timeout.String(),
			row.TTL.String(),
			statusLabel(row),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", fmt.Sprintf("%d/%d active", active, len(rows))})

	return t.Render(), nil
}
