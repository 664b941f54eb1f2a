package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders reports as markdown tables.
type MarkdownFormatter struct{}

// FormatFetch renders a resolution summary as Markdown.
func (f *MarkdownFormatter) FormatFetch(report *FetchReport) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(report.Domain)))
	sb.WriteString(fmt.Sprintf("**Source**: %s (cache %s, %s, %d items)\n",
		escapeMarkdownCell(report.Source), cacheLabel(report), report.Elapsed, report.Items))

	if len(report.Attempts) > 0 {
		sb.WriteString("\n| # | Source | Elapsed | Outcome |\n")
		sb.WriteString("|---|--------|---------|---------|\n")
		for i, a := range report.Attempts {
			sb.WriteString(fmt.Sprintf("| %d | %s | %dms | %s |\n",
				i+1,
				escapeMarkdownCell(a.Source),
				a.ElapsedMS,
				escapeMarkdownCell(attemptOutcome(a)),
			))
		}
	}

	return sb.String(), nil
}

// FormatSources renders the cascade plan as Markdown.
func (f *MarkdownFormatter) FormatSources(rows []SourceRow) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Domain | # | Source | Provider | Keyed | Timeout | TTL | Status |\n")
	sb.WriteString("|--------|---|--------|----------|-------|---------|-----|--------|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(row.Domain),
			row.Position,
			escapeMarkdownCell(row.Name),
			escapeMarkdownCell(row.Provider),
			keyedLabel(row.Keyed),
			row.Timeout,
			row.TTL,
			escapeMarkdownCell(statusLabel(row)),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
